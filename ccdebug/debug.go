// Package ccdebug implements the two-wire debug interface of the TI CC253x
// family: a debug clock (DC) driven by the host, a bidirectional debug data
// line (DD) and RESET_N.
//
// [Interface] bit-bangs debug commands over caller supplied pin functions.
// [Bus] builds on it to reach the XDATA address space of a halted chip by
// executing single 8051 instructions, which is all the cc2530 radio driver
// needs to run from a separate host microcontroller.
package ccdebug

import (
	"errors"
)

// Debug commands.
const (
	CmdChipErase  = 0x14
	CmdWrConfig   = 0x1D
	CmdRdConfig   = 0x24
	CmdGetPC      = 0x28
	CmdReadStatus = 0x34
	CmdHalt       = 0x44
	CmdResume     = 0x4C
	// CmdDebugInstr is ORed with the instruction length (1 to 3 bytes).
	CmdDebugInstr = 0x54
	CmdStepInstr  = 0x5C
	CmdGetChipID  = 0x68
)

// ParamLen returns the number of parameter bytes following cmd.
func ParamLen(cmd uint8) int {
	switch {
	case cmd&^3 == CmdDebugInstr:
		return int(cmd & 3)
	case cmd == CmdWrConfig:
		return 1
	}
	return 0
}

// ResponseLen returns the number of bytes the target answers cmd with.
func ResponseLen(cmd uint8) int {
	switch cmd {
	case CmdGetChipID, CmdGetPC:
		return 2
	}
	return 1
}

// Status is the debug status byte returned by READ_STATUS, HALT and RESUME.
type Status uint8

const (
	StatusStackOverflow Status = 1 << 0
	StatusOscStable     Status = 1 << 1
	StatusDebugLocked   Status = 1 << 2
	StatusHaltStatus    Status = 1 << 3
	StatusPMActive      Status = 1 << 4
	StatusCPUHalted     Status = 1 << 5
	StatusPCONIdle      Status = 1 << 6
	StatusEraseBusy     Status = 1 << 7
)

func (s Status) Halted() bool { return s&StatusCPUHalted != 0 }
func (s Status) Locked() bool { return s&StatusDebugLocked != 0 }

// DefaultReadyWait is the number of 8-clock wait cycles allowed for the
// target to signal it is ready to respond.
const DefaultReadyWait = 64

var (
	ErrNoResponse = errors.New("ccdebug: target did not signal ready")
	ErrInstrLen   = errors.New("ccdebug: debug instruction must be 1 to 3 bytes")
)

// Pins are the GPIO operations used to drive the debug interface.
type Pins struct {
	// DC sets the debug clock level.
	DC func(level bool)
	// DD sets the debug data level while DD is an output.
	DD func(level bool)
	// DDGet samples the debug data line while DD is an input.
	DDGet func() bool
	// DDInput switches DD between input (true) and output (false).
	DDInput func(input bool)
	// Reset sets the RESET_N level.
	Reset func(level bool)
	// Gate, if not nil, is driven low for the duration of each command so a
	// logic analyzer can frame commands.
	Gate func(level bool)
	// Delay waits a quarter of the clock period. May be nil.
	Delay func()
}

// Interface is a bit-banged CC253x debug interface. Data is shifted MSB
// first. The host changes DD while DC is low and the target samples on the
// falling edge; when reading, the target drives DD after the rising edge and
// the host samples after the falling edge.
type Interface struct {
	p Pins
	// ReadyWait bounds the readiness wait, in 8-clock cycles.
	ReadyWait int
}

// New returns an Interface over p. Pins are left in their idle state: DC
// low, DD output low, RESET_N and Gate high.
func New(p Pins) *Interface {
	d := &Interface{p: p, ReadyWait: DefaultReadyWait}
	d.p.DC(false)
	d.p.DDInput(false)
	d.p.DD(false)
	d.p.Reset(true)
	d.gate(true)
	return d
}

// EnterDebug resets the chip into debug mode: two DC pulses with RESET_N held low.
func (d *Interface) EnterDebug() {
	d.p.Reset(false)
	d.delay()
	for i := 0; i < 2; i++ {
		d.p.DC(true)
		d.delay()
		d.p.DC(false)
		d.delay()
	}
	d.p.Reset(true)
	d.delay()
}

// ReadStatus returns the debug status.
func (d *Interface) ReadStatus() (Status, error) {
	return d.statusCmd(CmdReadStatus)
}

// Halt stops the CPU.
func (d *Interface) Halt() (Status, error) {
	return d.statusCmd(CmdHalt)
}

// Resume lets the CPU run.
func (d *Interface) Resume() (Status, error) {
	return d.statusCmd(CmdResume)
}

// ChipID returns the chip identifier and revision.
func (d *Interface) ChipID() (id, rev uint8, err error) {
	var buf [2]byte
	err = d.command(CmdGetChipID, nil, buf[:])
	return buf[0], buf[1], err
}

// GetPC returns the program counter of the halted CPU.
func (d *Interface) GetPC() (uint16, error) {
	var buf [2]byte
	err := d.command(CmdGetPC, nil, buf[:])
	return uint16(buf[0])<<8 | uint16(buf[1]), err
}

// DebugInstr executes a single 8051 instruction on the halted CPU and
// returns the accumulator afterwards.
func (d *Interface) DebugInstr(instr ...byte) (acc uint8, err error) {
	if len(instr) == 0 || len(instr) > 3 {
		return 0, ErrInstrLen
	}
	var buf [1]byte
	err = d.command(CmdDebugInstr|uint8(len(instr)), instr, buf[:])
	return buf[0], err
}

func (d *Interface) statusCmd(cmd uint8) (Status, error) {
	var buf [1]byte
	err := d.command(cmd, nil, buf[:])
	return Status(buf[0]), err
}

func (d *Interface) command(cmd uint8, params, resp []byte) error {
	d.gate(false)
	defer d.gate(true)
	d.writeByte(cmd)
	for _, b := range params {
		d.writeByte(b)
	}
	d.p.DDInput(true)
	defer d.p.DDInput(false)
	if err := d.waitReady(); err != nil {
		return err
	}
	for i := range resp {
		resp[i] = d.readByte()
	}
	return nil
}

// waitReady waits for the target to pull DD low, clocking 8 bits each
// time it finds DD high.
func (d *Interface) waitReady() error {
	for i := 0; i <= d.ReadyWait; i++ {
		d.delay()
		if !d.p.DDGet() {
			return nil
		}
		d.readByte()
	}
	return ErrNoResponse
}

func (d *Interface) writeByte(b byte) {
	for i := 7; i >= 0; i-- {
		d.p.DD(b&(1<<i) != 0)
		d.delay()
		d.p.DC(true)
		d.delay()
		d.p.DC(false)
		d.delay()
	}
}

func (d *Interface) readByte() (b byte) {
	for i := 0; i < 8; i++ {
		d.p.DC(true)
		d.delay()
		d.p.DC(false)
		d.delay()
		b = b<<1 | b2u8(d.p.DDGet())
	}
	return b
}

func (d *Interface) gate(level bool) {
	if d.p.Gate != nil {
		d.p.Gate(level)
	}
}

func (d *Interface) delay() {
	if d.p.Delay != nil {
		d.p.Delay()
	}
}

func b2u8(b bool) byte {
	if b {
		return 1
	}
	return 0
}
