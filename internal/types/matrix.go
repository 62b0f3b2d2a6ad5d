package types

import "tinygo.org/x/drivers"

// Dimmer is a panel whose brightness can be changed while it refreshes.
type Dimmer interface {
	// SetBrightness sets the brightness, clamped to [0, 1]
	SetBrightness(b float32)
	// Brightness returns the current brightness
	Brightness() float32
}

// Display is a drawable, dimmable panel
type Display interface {
	drivers.Displayer
	Dimmer
}
