package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/soypat/cc2530/rfcore"
)

func TestParseCommand(t *testing.T) {
	// MOV DPTR,#0x618F with two wait cycles.
	c, err := parseCommand([]byte{0x57, 0x90, 0x61, 0x8F, 0xFF, 0xFF, 0x00})
	if err != nil {
		t.Fatal(err)
	}
	if c.Cmd != 0x57 || !bytes.Equal(c.Params, []byte{0x90, 0x61, 0x8F}) || c.Wait != 2 || !bytes.Equal(c.Resp, []byte{0}) {
		t.Errorf("parsed %s", c.String())
	}
	c, err = parseCommand([]byte{0x68, 0xA5, 0x10})
	if err != nil || c.Wait != 0 || !bytes.Equal(c.Resp, []byte{0xA5, 0x10}) {
		t.Errorf("chip id: %s %v", c.String(), err)
	}
	if _, err = parseCommand([]byte{0x57, 0x90}); err == nil {
		t.Error("short transaction accepted")
	}
	if _, err = parseCommand(nil); err == nil {
		t.Error("empty transaction accepted")
	}
}

func instr(acc byte, op ...byte) debugCmd {
	return debugCmd{Cmd: 0x54 | uint8(len(op)), Params: op, Resp: []byte{acc}}
}

func TestInterpreter(t *testing.T) {
	freq := uint16(rfcore.FREQCTRL)
	rfst := uint16(rfcore.RFST)
	cmds := []debugCmd{
		{Cmd: 0x68, Resp: []byte{0xA5, 0x10}},
		instr(0, 0x90, uint8(freq>>8), uint8(freq)),
		instr(0x0B, 0x74, 0x0B),
		instr(0x0B, 0xF0),
		instr(0x0B, 0xE0),
		instr(0x0B, 0x90, uint8(rfst>>8), uint8(rfst)),
		instr(0xEA, 0x74, 0xEA),
		instr(0xEA, 0xF0),
		instr(0xEA, 0xF0),
	}
	var out bytes.Buffer
	an := Analyzer{}
	if err := an.write(&out, nil, cmds); err != nil {
		t.Fatal(err)
	}
	want := []string{
		"x1   write  FREQCTRL    = 0xb",
		"x1   read   FREQCTRL    = 0xb",
		"x2   strobe ISTXONCCA",
	}
	got := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(got) != len(want) {
		t.Fatalf("got:\n%s", out.String())
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d: got %q, want %q", i, got[i], want[i])
		}
	}

	out.Reset()
	an = Analyzer{OmitReads: true, ShowDebug: true}
	an.write(&out, nil, cmds)
	s := out.String()
	if strings.Contains(s, "read") || !strings.Contains(s, "GET_CHIP_ID") {
		t.Errorf("filtered output:\n%s", s)
	}
}
