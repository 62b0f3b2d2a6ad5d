package ledmatrix

import (
	"errors"
	"fmt"
)

// Channel identifies one of the four transfer channels of the refresh chain.
type Channel uint8

const (
	ChannelPeriod Channel = iota
	ChannelCompare
	ChannelAddress
	ChannelData

	// NoLink ends a chain.
	NoLink Channel = 0xff
)

// NumChannels is the number of transfer channels a Peripheral must provide.
const NumChannels = 4

func (c Channel) String() string {
	switch c {
	case ChannelPeriod:
		return "period"
	case ChannelCompare:
		return "compare"
	case ChannelAddress:
		return "address"
	case ChannelData:
		return "data"
	case NoLink:
		return "none"
	}
	return fmt.Sprintf("Channel(%d)", uint8(c))
}

// Target is the fixed destination of a channel.
type Target uint8

const (
	TargetTimerPeriod Target = iota
	TargetTimerCompare
	TargetAddressPort
	TargetDataPort
)

func (t Target) String() string {
	switch t {
	case TargetTimerPeriod:
		return "timer-period"
	case TargetTimerCompare:
		return "timer-compare"
	case TargetAddressPort:
		return "address-port"
	case TargetDataPort:
		return "data-port"
	}
	return fmt.Sprintf("Target(%d)", uint8(t))
}

// Trigger is what starts a channel's minor loop.
type Trigger uint8

const (
	// TriggerTimer starts the minor loop on every timer overflow.
	TriggerTimer Trigger = iota
	// TriggerLink starts the minor loop when the linking channel finishes
	// its own.
	TriggerLink
)

// Descriptor programs one transfer channel. Each trigger moves MinorLoop
// elements from the source to Target and advances the source. After
// MajorLoops triggers the source wraps back to its start and, if
// InterruptOnMajor is set, the channel's interrupt handler runs.
//
// Exactly one of Words and Bytes is set. Timer targets take Words, ports
// take Bytes.
type Descriptor struct {
	Channel          Channel
	Target           Target
	Trigger          Trigger
	Words            []uint32
	Bytes            []byte
	MinorLoop        int
	MajorLoops       int
	Link             Channel
	InterruptOnMajor bool
}

// Len is the number of source elements the descriptor covers.
func (d Descriptor) Len() int {
	if d.Words != nil {
		return len(d.Words)
	}
	return len(d.Bytes)
}

// Validate checks the descriptor for shape errors.
func (d Descriptor) Validate() error {
	if int(d.Channel) >= NumChannels {
		return fmt.Errorf("%w: channel %v", ErrDescriptor, d.Channel)
	}
	if (d.Words == nil) == (d.Bytes == nil) {
		return fmt.Errorf("%w: %v needs exactly one of words or bytes", ErrDescriptor, d.Channel)
	}
	timer := d.Target == TargetTimerPeriod || d.Target == TargetTimerCompare
	if timer != (d.Words != nil) {
		return fmt.Errorf("%w: %v source width does not match %v", ErrDescriptor, d.Channel, d.Target)
	}
	if d.MinorLoop < 1 || d.MajorLoops < 1 || d.MinorLoop*d.MajorLoops != d.Len() {
		return fmt.Errorf("%w: %v moves %dx%d elements from a source of %d",
			ErrDescriptor, d.Channel, d.MajorLoops, d.MinorLoop, d.Len())
	}
	if d.Link != NoLink && (int(d.Link) >= NumChannels || d.Link == d.Channel) {
		return fmt.Errorf("%w: %v links to %v", ErrDescriptor, d.Channel, d.Link)
	}
	return nil
}

// ErrDescriptor is returned for malformed descriptors.
var ErrDescriptor = errors.New("ledmatrix: invalid descriptor")

// TimerConfig programs the PWM timer that paces the chain. Period and
// Compare are the initial register values; the chain overwrites them on
// every overflow.
type TimerConfig struct {
	Hz      uint32
	Max     uint32
	Period  uint32
	Compare uint32
}

// Peripheral is the hardware capability the matrix needs: a PWM timer whose
// overflow triggers a chain of four transfer channels, with an interrupt on
// the data channel's major loop.
//
// The interrupt handler runs in interrupt context. Repoint is the only
// Peripheral method called from there.
type Peripheral interface {
	ConfigureTimer(TimerConfig) error
	ConfigureDescriptor(Descriptor) error
	SetInterruptHandler(Channel, func())
	// Repoint replaces the source of c with src, which has the same length,
	// taking effect at the next minor loop.
	Repoint(c Channel, src []byte)
	Start() error
	Stop() error
}
