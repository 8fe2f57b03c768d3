package spin

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"
)

func TestPacketCodec(t *testing.T) {
	p := Packet{TxID: 2, Round: 0x0102, RSSI: []int8{-40, NoRSSI, -90}}
	b, err := p.AppendTo(nil)
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{'S', 2, 0x02, 0x01, 3, 0xD8, 0x7F, 0xA6}
	if !bytes.Equal(b, want) {
		t.Fatalf("encoded %x, want %x", b, want)
	}
	if p.Len() != len(b) {
		t.Errorf("Len() = %d, encoded %d", p.Len(), len(b))
	}
	got, err := DecodePacket(b)
	if err != nil {
		t.Fatal(err)
	}
	if got.TxID != 2 || got.Round != 0x0102 || len(got.RSSI) != 3 || got.RSSI[0] != -40 || got.RSSI[1] != NoRSSI {
		t.Errorf("decoded %+v", got)
	}
}

func TestPacketErrors(t *testing.T) {
	tests := []struct {
		name string
		b    []byte
		want error
	}{
		{"short", []byte{'S', 1}, errShortPacket},
		{"kind", []byte{'X', 1, 0, 0, 1, 0}, errPacketKind},
		{"truncated-vector", []byte{'S', 1, 0, 0, 4, 0, 0}, errShortPacket},
		{"zero-nodes", []byte{'S', 1, 0, 0, 0}, errNodeCount},
		{"tx-zero", []byte{'S', 0, 0, 0, 1, 0}, errTxID},
		{"tx-beyond", []byte{'S', 3, 0, 0, 2, 0, 0}, errTxID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodePacket(tt.b); !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
	p := Packet{TxID: 1, RSSI: make([]int8, MaxNodes+1)}
	if _, err := p.AppendTo(nil); !errors.Is(err, errNodeCount) {
		t.Errorf("oversized network: %v", err)
	}
}

func TestSchedule(t *testing.T) {
	t0 := time.Unix(0, 0)
	const timeout = 10 * time.Millisecond
	s1 := NewSchedule(1, 3, timeout, t0)
	s3 := NewSchedule(3, 3, timeout, t0)
	if !s1.MyTurn(t0) {
		t.Fatal("node 1 opens the first round")
	}
	if s3.MyTurn(t0) || !s3.Due().Equal(t0.Add(2*timeout)) {
		t.Fatalf("node 3 due at %v", s3.Due().Sub(t0))
	}
	// Node 1 transmitted, node 2 is silent.
	t1 := t0.Add(time.Millisecond)
	s1.Heard(1, t1)
	s3.Heard(1, t1)
	if s3.MyTurn(t1) || s3.MyTurn(t1.Add(timeout-1)) {
		t.Error("node 3 must wait one timeout for node 2")
	}
	if !s3.MyTurn(t1.Add(timeout)) {
		t.Error("node 3 should take over after node 2's timeout")
	}
	s1.Heard(3, t1)
	if s1.Next() != 1 || !s1.MyTurn(t1) {
		t.Error("turn wraps from node 3 to node 1")
	}
	s1.Heard(7, t1.Add(time.Hour))
	if !s1.MyTurn(t1) {
		t.Error("heard from unknown node must be ignored")
	}
}

func TestTable(t *testing.T) {
	tb := NewTable(3)
	if _, ok := tb.Link(1, 2); ok {
		t.Fatal("new table has known link")
	}
	tb.Update(Packet{TxID: 2, RSSI: []int8{-50, -1, NoRSSI}})
	tb.Update(Packet{TxID: 1, RSSI: []int8{0, -60, -70}})
	if v, ok := tb.Link(1, 2); !ok || v != -50 {
		t.Errorf("Link(1,2) = %d %v", v, ok)
	}
	if _, ok := tb.Link(3, 2); ok {
		t.Error("NoRSSI stored as known")
	}
	if _, ok := tb.Link(2, 2); ok {
		t.Error("self link stored")
	}
	if v, ok := tb.Pair(1, 2); !ok || v != -55 {
		t.Errorf("Pair(1,2) = %d %v", v, ok)
	}
	if v, ok := tb.Pair(1, 3); !ok || v != -70 {
		t.Errorf("Pair(1,3) = %d %v", v, ok)
	}
	if _, ok := tb.Link(0, 4); ok {
		t.Error("out of range link")
	}
	tb.Update(Packet{TxID: 9, RSSI: []int8{1}})
}

func TestCRC16(t *testing.T) {
	if got := CRC16([]byte("123456789")); got != 0x6F91 {
		t.Errorf("check value %#04x, want 0x6f91", got)
	}
	if got := CRC16(nil); got != 0xFFFF {
		t.Errorf("empty %#04x", got)
	}
}

func TestFrameResync(t *testing.T) {
	var stream []byte
	stream = append(stream, 0x00, 0xFF, 0x7E) // Line noise.
	stream, _ = AppendFrame(stream, 1, []byte("one"))
	bad, _ := AppendFrame(nil, 2, []byte("two"))
	bad[3] ^= 0x01 // Corrupt payload.
	stream = append(stream, bad...)
	stream, _ = AppendFrame(stream, 3, []byte("three"))

	fr := NewFrameReader(bytes.NewReader(stream))
	seq, payload, err := fr.ReadFrame()
	if err != nil || seq != 1 || string(payload) != "one" {
		t.Fatalf("first frame: %d %q %v", seq, payload, err)
	}
	seq, payload, err = fr.ReadFrame()
	if err != nil || seq != 3 || string(payload) != "three" {
		t.Fatalf("second frame: %d %q %v", seq, payload, err)
	}
	if fr.Dropped < 3+len(bad) {
		t.Errorf("dropped %d bytes", fr.Dropped)
	}
	if _, _, err = fr.ReadFrame(); err != io.EOF {
		t.Errorf("end of stream: %v", err)
	}
	if _, err := AppendFrame(nil, 0, make([]byte, MaxFramePayload+1)); err == nil {
		t.Error("oversized payload accepted")
	}
}

func TestReportStream(t *testing.T) {
	var buf bytes.Buffer
	w := NewReportWriter(&buf)
	reports := []Report{
		{SinkRSSI: -42, Packet: Packet{TxID: 1, Round: 7, RSSI: []int8{NoRSSI, -50}}},
		{SinkRSSI: -80, Packet: Packet{TxID: 2, Round: 7, RSSI: []int8{-51, NoRSSI}}},
	}
	for _, r := range reports {
		if err := w.WriteReport(r); err != nil {
			t.Fatal(err)
		}
	}
	// A CRC-valid frame that is not a report.
	junk, _ := AppendFrame(nil, 9, []byte{1, 2})
	buf.Write(junk)

	rr := NewReportReader(&buf)
	for i, want := range reports {
		got, err := rr.ReadReport()
		if err != nil {
			t.Fatal(err)
		}
		if got.SinkRSSI != want.SinkRSSI || got.Packet.TxID != want.Packet.TxID || !bytes.Equal(i8bytes(got.Packet.RSSI), i8bytes(want.Packet.RSSI)) {
			t.Errorf("report %d: got %+v, want %+v", i, got, want)
		}
	}
	if _, err := rr.ReadReport(); err != io.EOF {
		t.Errorf("got %v, want EOF", err)
	}
	if rr.Bad != 1 {
		t.Errorf("bad frames %d, want 1", rr.Bad)
	}
}

func i8bytes(v []int8) []byte {
	b := make([]byte, len(v))
	for i := range v {
		b[i] = uint8(v[i])
	}
	return b
}
