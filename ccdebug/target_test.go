package ccdebug

import (
	"github.com/soypat/cc2530/radiosim"
)

// target emulates the debug port of a CC2530 at the pin level. XDATA
// accesses made through debug instructions land in a simulated radio.
type target struct {
	radio *radiosim.Radio
	chip  uint8

	dc, reset  bool
	hostDD     bool
	hostDrives bool
	dd         bool // Level driven by the target while DD is an input at the host.

	// Reset sequencing.
	resetPulses int
	debugMode   bool

	// Command reception.
	inByte uint8
	inBits int
	cmd    []byte

	// Response transmission.
	busyPerCmd int
	busy       int
	waitClk    int
	out        []byte
	outBit     int

	halted bool
	dptr   uint16
	acc    uint8
	// instrs counts executed debug instructions by opcode.
	instrs map[uint8]int
}

func newTarget(r *radiosim.Radio) *target {
	return &target{radio: r, chip: ChipCC2530, reset: true, dd: true, instrs: make(map[uint8]int)}
}

func (t *target) pins() Pins {
	return Pins{
		DC:      t.setDC,
		DD:      func(level bool) { t.hostDD = level },
		DDGet:   t.getDD,
		DDInput: t.setDDInput,
		Reset:   t.setReset,
	}
}

func (t *target) getDD() bool {
	if t.hostDrives {
		return t.hostDD
	}
	return t.dd
}

func (t *target) setDDInput(input bool) {
	t.hostDrives = !input
	if t.hostDrives {
		// Host takes the line back: drop any unread response.
		t.out = nil
		t.dd = true
	}
}

func (t *target) setReset(level bool) {
	if !level && t.reset {
		t.resetPulses = 0
		t.halted = false
	}
	if level && !t.reset {
		t.debugMode = t.resetPulses == 2
		t.cmd = t.cmd[:0]
		t.inBits = 0
	}
	t.reset = level
}

func (t *target) setDC(level bool) {
	rising := level && !t.dc
	falling := !level && t.dc
	t.dc = level
	switch {
	case !t.reset:
		if rising {
			t.resetPulses++
		}
	case !t.debugMode:
	case t.hostDrives:
		if falling {
			t.shiftIn()
		}
	case t.out != nil && t.busy > 0:
		if falling {
			t.waitClk++
			if t.waitClk == 8 {
				t.waitClk = 0
				t.busy--
				t.dd = t.busy > 0
			}
		}
	case t.out != nil:
		if rising && t.outBit < 8*len(t.out) {
			b := t.out[t.outBit/8]
			t.dd = b&(0x80>>(t.outBit%8)) != 0
			t.outBit++
		}
	}
}

func (t *target) shiftIn() {
	t.inByte = t.inByte<<1 | b2u8(t.hostDD)
	t.inBits++
	if t.inBits < 8 {
		return
	}
	t.cmd = append(t.cmd, t.inByte)
	t.inBits = 0
	if len(t.cmd) < 1+ParamLen(t.cmd[0]) {
		return
	}
	t.out = t.exec(t.cmd)
	t.cmd = t.cmd[:0]
	t.outBit = 0
	t.busy = t.busyPerCmd
	t.waitClk = 0
	t.dd = t.busy > 0
}

func (t *target) status() byte {
	s := StatusOscStable
	if t.halted {
		s |= StatusCPUHalted | StatusHaltStatus
	}
	return byte(s)
}

func (t *target) exec(cmd []byte) []byte {
	switch {
	case cmd[0] == CmdGetChipID:
		return []byte{t.chip, 0x10}
	case cmd[0] == CmdReadStatus:
		return []byte{t.status()}
	case cmd[0] == CmdHalt:
		t.halted = true
		return []byte{t.status()}
	case cmd[0] == CmdResume:
		t.halted = false
		return []byte{t.status()}
	case cmd[0] == CmdGetPC:
		return []byte{0x12, 0x34}
	case cmd[0]&^3 == CmdDebugInstr:
		if t.halted {
			t.instr(cmd[1:])
		}
		return []byte{t.acc}
	}
	return []byte{0}
}

func (t *target) instr(op []byte) {
	t.instrs[op[0]]++
	switch op[0] {
	case OpMovDPTR:
		t.dptr = uint16(op[1])<<8 | uint16(op[2])
	case OpMovxRead:
		t.acc, _ = t.radio.ReadReg(t.dptr)
	case OpMovA:
		t.acc = op[1]
	case OpMovxWrite:
		t.radio.WriteReg(t.dptr, t.acc)
	}
}
