package ledmatrix

// chain returns the descriptors that replay the tables and the active
// bitstream. One timer overflow runs, in order:
//
//	period   next period word into the timer
//	compare  next compare word into the timer
//	address  AddressRepeat copies of the row code onto the address port
//	data     one row-plane of (data, clock) pairs onto the data port
//
// Period, compare and address wrap every page. Data wraps once per full
// scan and interrupts, which is where buffer swaps happen.
func chain(g Geometry, timing *TimingTable, addresses *AddressTable, active []byte) []Descriptor {
	sub := g.Subframes()
	return []Descriptor{
		{
			Channel:    ChannelPeriod,
			Target:     TargetTimerPeriod,
			Trigger:    TriggerTimer,
			Words:      timing.period,
			MinorLoop:  1,
			MajorLoops: sub,
			Link:       ChannelCompare,
		},
		{
			Channel:    ChannelCompare,
			Target:     TargetTimerCompare,
			Trigger:    TriggerLink,
			Words:      timing.compare,
			MinorLoop:  1,
			MajorLoops: sub,
			Link:       ChannelAddress,
		},
		{
			Channel:    ChannelAddress,
			Target:     TargetAddressPort,
			Trigger:    TriggerLink,
			Bytes:      addresses.codes,
			MinorLoop:  g.AddressRepeat,
			MajorLoops: sub,
			Link:       ChannelData,
		},
		{
			Channel:          ChannelData,
			Target:           TargetDataPort,
			Trigger:          TriggerLink,
			Bytes:            active,
			MinorLoop:        g.RowBytes(),
			MajorLoops:       sub * g.Pages,
			Link:             NoLink,
			InterruptOnMajor: true,
		},
	}
}
