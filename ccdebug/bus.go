package ccdebug

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// 8051 opcodes used to reach XDATA.
const (
	OpMovDPTR   = 0x90 // MOV DPTR,#data16
	OpMovxRead  = 0xE0 // MOVX A,@DPTR
	OpMovA      = 0x74 // MOV A,#data
	OpMovxWrite = 0xF0 // MOVX @DPTR,A
)

// Chip IDs returned by GET_CHIP_ID.
const (
	ChipCC2530 = 0xA5
	ChipCC2531 = 0xB5
	ChipCC2533 = 0x95
	ChipCC2540 = 0x8D
	ChipCC2541 = 0x41
)

var (
	ErrUnknownChip = errors.New("ccdebug: unknown chip id")
	ErrLocked      = errors.New("ccdebug: debug interface locked")
	ErrNotHalted   = errors.New("ccdebug: cpu not halted")
)

// Chip identifies an attached target.
type Chip struct {
	ID  uint8
	Rev uint8
}

func (c Chip) String() string {
	name := ""
	switch c.ID {
	case ChipCC2530:
		name = "CC2530"
	case ChipCC2531:
		name = "CC2531"
	case ChipCC2533:
		name = "CC2533"
	case ChipCC2540:
		name = "CC2540"
	case ChipCC2541:
		name = "CC2541"
	default:
		return fmt.Sprintf("chip(%#x) rev %#x", c.ID, c.Rev)
	}
	return fmt.Sprintf("%s rev %#x", name, c.Rev)
}

// Bus gives register access to a halted CC253x through its debug
// interface. It implements cc2530.Bus. Bus is not safe for concurrent use.
type Bus struct {
	dbg    *Interface
	logger *slog.Logger
	// dptr is the value last loaded into the target's DPTR.
	dptr      uint16
	dptrValid bool
	halted    bool
}

// NewBus returns a Bus using dbg. Attach must be called before any register access.
func NewBus(dbg *Interface, logger *slog.Logger) *Bus {
	return &Bus{dbg: dbg, logger: logger}
}

// Attach enters debug mode, halts the CPU and identifies the chip.
func (b *Bus) Attach() (chip Chip, err error) {
	b.dptrValid = false
	b.dbg.EnterDebug()
	chip.ID, chip.Rev, err = b.dbg.ChipID()
	if err != nil {
		return chip, err
	}
	switch chip.ID {
	case ChipCC2530, ChipCC2531, ChipCC2533, ChipCC2540, ChipCC2541:
	default:
		return chip, fmt.Errorf("%w %#x", ErrUnknownChip, chip.ID)
	}
	status, err := b.dbg.Halt()
	if err != nil {
		return chip, err
	}
	if status.Locked() {
		return chip, ErrLocked
	}
	status, err = b.dbg.ReadStatus()
	if err != nil {
		return chip, err
	}
	if !status.Halted() {
		return chip, ErrNotHalted
	}
	b.halted = true
	b.info("attached", slog.String("chip", chip.String()), slog.Uint64("status", uint64(status)))
	return chip, nil
}

// Detach resumes the CPU. The Bus may not be used until the next Attach.
func (b *Bus) Detach() error {
	b.halted = false
	b.dptrValid = false
	_, err := b.dbg.Resume()
	if err == nil {
		b.info("detached")
	}
	return err
}

// ReadReg reads the XDATA byte at addr.
func (b *Bus) ReadReg(addr uint16) (uint8, error) {
	if err := b.loadDPTR(addr); err != nil {
		return 0, err
	}
	return b.dbg.DebugInstr(OpMovxRead)
}

// WriteReg writes value to the XDATA byte at addr.
func (b *Bus) WriteReg(addr uint16, value uint8) error {
	if err := b.loadDPTR(addr); err != nil {
		return err
	}
	if _, err := b.dbg.DebugInstr(OpMovA, value); err != nil {
		return err
	}
	_, err := b.dbg.DebugInstr(OpMovxWrite)
	return err
}

// loadDPTR points DPTR at addr. FIFO access through RFD reuses the loaded
// pointer so each byte costs a single instruction.
func (b *Bus) loadDPTR(addr uint16) error {
	if !b.halted {
		return ErrNotHalted
	}
	if b.dptrValid && b.dptr == addr {
		return nil
	}
	_, err := b.dbg.DebugInstr(OpMovDPTR, uint8(addr>>8), uint8(addr))
	if err != nil {
		b.dptrValid = false
		return err
	}
	b.dptr = addr
	b.dptrValid = true
	return nil
}

func (b *Bus) info(msg string, attrs ...slog.Attr) {
	if b.logger != nil {
		b.logger.LogAttrs(context.Background(), slog.LevelInfo, "ccdebug:"+msg, attrs...)
	}
}
