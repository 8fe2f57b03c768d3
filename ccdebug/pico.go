//go:build pico

package ccdebug

import (
	"device"
	"machine"
)

// NewPico returns an Interface on RP2040 GPIOs. gate may be machine.NoPin.
// delay is the number of nops per quarter clock period.
func NewPico(dc, dd, reset, gate machine.Pin, delay uint32) *Interface {
	dc.Configure(machine.PinConfig{Mode: machine.PinOutput})
	reset.Configure(machine.PinConfig{Mode: machine.PinOutput})
	p := Pins{
		DC:    dc.Set,
		DD:    dd.Set,
		DDGet: dd.Get,
		DDInput: func(input bool) {
			if input {
				// Pulled up so an absent target never reads as ready.
				dd.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
			} else {
				dd.Configure(machine.PinConfig{Mode: machine.PinOutput})
			}
		},
		Reset: reset.Set,
		Delay: func() {
			for i := uint32(0); i < delay; i++ {
				device.Asm("nop")
			}
		},
	}
	if gate != machine.NoPin {
		gate.Configure(machine.PinConfig{Mode: machine.PinOutput})
		p.Gate = gate.Set
	}
	return New(p)
}
