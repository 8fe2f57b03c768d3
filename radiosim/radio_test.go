package radiosim

import (
	"bytes"
	"errors"
	"testing"

	"github.com/soypat/cc2530/rfcore"
)

func strobe(t *testing.T, r *Radio, cmd rfcore.Strobe) {
	t.Helper()
	for i := 0; i < rfcore.StrobeRepeat; i++ {
		if err := r.WriteReg(rfcore.RFST, uint8(cmd)); err != nil {
			t.Fatal(err)
		}
	}
}

func loadTx(t *testing.T, r *Radio, frame []byte) {
	t.Helper()
	if err := r.WriteReg(rfcore.RFD, uint8(len(frame)+rfcore.FCSLen)); err != nil {
		t.Fatal(err)
	}
	for _, b := range frame {
		if err := r.WriteReg(rfcore.RFD, b); err != nil {
			t.Fatal(err)
		}
	}
}

func dataFrame(pan, dst, src uint16, payload ...byte) []byte {
	hdr := rfcore.NewDataHeader(pan, dst, src, 1)
	frame := make([]byte, rfcore.HeaderLen+len(payload))
	hdr.Put(frame)
	copy(frame[rfcore.HeaderLen:], payload)
	return frame
}

func TestStrobeRepeatLatch(t *testing.T) {
	r := New()
	strobe(t, r, rfcore.ISRXON)
	if !r.RxOn() {
		t.Fatal("receiver should be on")
	}
	frame := dataFrame(1, 2, 3, 0xAA)
	loadTx(t, r, frame)
	// Doubled ISTXONCCA must transmit a single frame.
	strobe(t, r, rfcore.ISTXONCCA)
	sent := r.Sent()
	if len(sent) != 1 || !bytes.Equal(sent[0], frame) {
		t.Fatalf("sent %x, want one frame %x", sent, frame)
	}
	got := r.Strobes()
	want := []rfcore.Strobe{rfcore.ISRXON, rfcore.ISRXON, rfcore.ISTXONCCA, rfcore.ISTXONCCA}
	if len(got) != len(want) {
		t.Fatalf("strobes %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("strobes %v, want %v", got, want)
		}
	}
	if r.Reg(rfcore.RFIRQF1)&rfcore.RFIRQF1_TXDONE == 0 {
		t.Error("TXDONE not set after transmission")
	}
}

func TestCCA(t *testing.T) {
	r := New()
	loadTx(t, r, dataFrame(1, 2, 3))
	strobe(t, r, rfcore.ISTXONCCA)
	if len(r.Sent()) != 0 {
		t.Fatal("CCA with receiver off must not transmit")
	}
	strobe(t, r, rfcore.ISRXON)
	r.SetChannelBusy(1)
	strobe(t, r, rfcore.ISTXONCCA)
	stat, _ := r.ReadReg(rfcore.FSMSTAT1)
	if stat&rfcore.FSMSTAT1_SAMPLED_CCA != 0 || len(r.Sent()) != 0 {
		t.Fatal("busy channel must not transmit")
	}
	strobe(t, r, rfcore.ISTXONCCA)
	stat, _ = r.ReadReg(rfcore.FSMSTAT1)
	if stat&rfcore.FSMSTAT1_SAMPLED_CCA == 0 || len(r.Sent()) != 1 {
		t.Fatal("clear channel must transmit")
	}
}

func TestAirDelivery(t *testing.T) {
	air := NewAir()
	a, b, c := air.NewRadio(), air.NewRadio(), air.NewRadio()
	for _, r := range []*Radio{a, b, c} {
		r.WriteReg(rfcore.PAN_ID0, 0x34)
		r.WriteReg(rfcore.PAN_ID1, 0x12)
		strobe(t, r, rfcore.ISRXON)
	}
	b.WriteReg(rfcore.SHORT_ADDR0, 2)
	c.WriteReg(rfcore.SHORT_ADDR0, 3)
	air.SetLink(a, b, -10)
	irqs := 0
	b.OnIRQ(func() { irqs++ })

	frame := dataFrame(0x1234, 2, 1, 0xAA, 0xBB)
	loadTx(t, a, frame)
	strobe(t, a, rfcore.ISTXONCCA)

	if irqs != 1 {
		t.Errorf("irqs = %d, want 1", irqs)
	}
	if c.RxFIFOLen() != 0 {
		t.Error("frame for address 2 passed filtering at address 3")
	}
	cnt, _ := b.ReadReg(rfcore.RXFIFOCNT)
	if int(cnt) != 1+len(frame)+rfcore.FCSLen {
		t.Fatalf("rx fifo count %d", cnt)
	}
	got := make([]byte, cnt)
	for i := range got {
		got[i], _ = b.ReadReg(rfcore.RFD)
	}
	if got[0] != uint8(len(frame)+rfcore.FCSLen) || !bytes.Equal(got[1:1+len(frame)], frame) {
		t.Errorf("fifo %x", got)
	}
	if int8(got[len(got)-2]) != -10 || got[len(got)-1]&rfcore.RXSTATUS_CRC_OK == 0 {
		t.Errorf("rssi/status %x", got[len(got)-2:])
	}
	if b.Reg(rfcore.RFIRQF0)&rfcore.RFIRQF0_RXPKTDONE == 0 {
		t.Error("RXPKTDONE not set")
	}
}

func TestAirChannelAndCut(t *testing.T) {
	air := NewAir()
	a, b := air.NewRadio(), air.NewRadio()
	b.WriteReg(rfcore.FRMFILT0, 0) // Promiscuous.
	strobe(t, a, rfcore.ISRXON)
	strobe(t, b, rfcore.ISRXON)
	b.WriteReg(rfcore.FREQCTRL, 16)
	loadTx(t, a, dataFrame(1, 2, 3))
	strobe(t, a, rfcore.ISTXONCCA)
	if b.RxFIFOLen() != 0 {
		t.Fatal("frame crossed channels")
	}
	b.WriteReg(rfcore.FREQCTRL, 11)
	air.Cut(a, b)
	loadTx(t, a, dataFrame(1, 2, 3))
	strobe(t, a, rfcore.ISTXONCCA)
	if b.RxFIFOLen() != 0 {
		t.Fatal("frame crossed a cut link")
	}
	air.SetLink(a, b, 0)
	loadTx(t, a, dataFrame(1, 2, 3))
	strobe(t, a, rfcore.ISTXONCCA)
	if b.RxFIFOLen() == 0 {
		t.Fatal("promiscuous radio should receive")
	}
}

func TestFailAfter(t *testing.T) {
	r := New()
	errBus := errors.New("bus down")
	r.FailAfter(1, errBus)
	if err := r.WriteReg(rfcore.PAN_ID0, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := r.ReadReg(rfcore.PAN_ID0); !errors.Is(err, errBus) {
		t.Fatalf("got %v, want %v", err, errBus)
	}
	r.FailAfter(0, nil)
	if _, err := r.ReadReg(rfcore.PAN_ID0); err != nil {
		t.Fatal(err)
	}
	if _, err := r.ReadReg(0x1000); err == nil {
		t.Fatal("expected error for address outside rf core")
	}
}

func TestUnderflow(t *testing.T) {
	r := New()
	v, err := r.ReadReg(rfcore.RFD)
	if err != nil || v != 0 {
		t.Fatal(v, err)
	}
	if r.Reg(rfcore.RFERRF)&rfcore.RFERRF_RXUNDERF == 0 {
		t.Error("RXUNDERF not flagged")
	}
}

func TestFlagWriteZeroClears(t *testing.T) {
	r := New()
	strobe(t, r, rfcore.ISRXON)
	if !r.Inject(dataFrame(1, 2, 3, 0xAA), DefaultRawRSSI, true) {
		t.Fatal("inject failed")
	}
	if err := r.WriteReg(rfcore.RFIRQF0, ^uint8(rfcore.RFIRQF0_FIFOP)); err != nil {
		t.Fatal(err)
	}
	got := r.Reg(rfcore.RFIRQF0)
	if got&rfcore.RFIRQF0_FIFOP != 0 {
		t.Error("FIFOP not cleared")
	}
	if got&rfcore.RFIRQF0_RXPKTDONE == 0 {
		t.Error("writing 1 must leave RXPKTDONE set")
	}
	if got&rfcore.RFIRQF0_RXMASKZERO != 0 {
		t.Error("writing 1 must not raise RXMASKZERO")
	}
}
