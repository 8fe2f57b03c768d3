// Package radiosim simulates the register interface of CC2530 radios sharing
// a medium. A *Radio satisfies cc2530.Bus so the driver can be exercised
// without hardware: strobes drive a small state machine, RFD feeds the FIFOs
// and transmitted frames are delivered to the other radios tuned to the
// same channel.
package radiosim

import (
	"errors"
	"strconv"
	"sync"

	"github.com/soypat/cc2530/rfcore"
)

const (
	xdataBase = 0x6000
	xdataEnd  = 0x7100
	fifoSize  = 128
	// defaultCorr is the correlation value appended to delivered frames.
	defaultCorr = 0x6C
)

var errAddr = errors.New("radiosim: address outside rf core")

// Radio is one simulated transceiver. Its methods are safe for concurrent use.
type Radio struct {
	mu     sync.Mutex
	air    *Air
	regs   [xdataEnd - xdataBase]uint8
	rxfifo []byte
	txfifo []byte
	rxOn   bool
	// ccaBusy is the number of upcoming clear channel assessments that fail.
	ccaBusy int
	// repeat is true while the last access was a strobe write, so that an
	// identical strobe written right after it is treated as its latch repeat.
	repeat     bool
	lastStrobe rfcore.Strobe
	strobes    []rfcore.Strobe
	writes     int
	sent       [][]byte
	onIRQ      func()
	failIn     int
	failErr    error
}

// New returns a radio that is not attached to any medium. Frames it
// transmits are only recorded.
func New() *Radio {
	r := &Radio{}
	r.reset()
	return r
}

func (r *Radio) reset() {
	r.regs = [xdataEnd - xdataBase]uint8{}
	r.regs[rfcore.FRMFILT0-xdataBase] = rfcore.FRMFILT0_RESET_VALUE
	r.regs[rfcore.FRMCTRL0-xdataBase] = rfcore.FRMCTRL0_AUTOCRC
	r.regs[rfcore.FREQCTRL-xdataBase] = 0x0B
	r.rxfifo = make([]byte, 0, fifoSize)
	r.txfifo = make([]byte, 0, fifoSize)
}

// ReadReg implements cc2530.Bus.
func (r *Radio) ReadReg(addr uint16) (uint8, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail(); err != nil {
		return 0, err
	}
	if addr < xdataBase || addr >= xdataEnd {
		return 0, errAddr
	}
	r.repeat = false
	switch addr {
	case rfcore.RFD:
		if len(r.rxfifo) == 0 {
			r.regs[rfcore.RFERRF-xdataBase] |= rfcore.RFERRF_RXUNDERF
			return 0, nil
		}
		b := r.rxfifo[0]
		r.rxfifo = append(r.rxfifo[:0], r.rxfifo[1:]...)
		return b, nil
	case rfcore.RXFIFOCNT:
		return uint8(len(r.rxfifo)), nil
	case rfcore.TXFIFOCNT:
		return uint8(len(r.txfifo)), nil
	case rfcore.RSSISTAT:
		if r.rxOn {
			return rfcore.RSSISTAT_RSSI_VALID, nil
		}
		return 0, nil
	case rfcore.FSMSTAT1:
		return r.fsmstat1(), nil
	}
	return r.regs[addr-xdataBase], nil
}

// WriteReg implements cc2530.Bus.
func (r *Radio) WriteReg(addr uint16, value uint8) error {
	r.mu.Lock()
	if err := r.fail(); err != nil {
		r.mu.Unlock()
		return err
	}
	if addr < xdataBase || addr >= xdataEnd {
		r.mu.Unlock()
		return errAddr
	}
	r.writes++
	var frame []byte
	switch addr {
	case rfcore.RFST:
		cmd := rfcore.Strobe(value)
		r.strobes = append(r.strobes, cmd)
		if r.repeat && cmd == r.lastStrobe {
			r.repeat = false // Latch repeat of the previous strobe.
			break
		}
		r.lastStrobe = cmd
		r.repeat = true
		frame = r.execStrobe(cmd)
	case rfcore.RFD:
		r.repeat = false
		if len(r.txfifo) >= fifoSize {
			r.regs[rfcore.RFERRF-xdataBase] |= rfcore.RFERRF_TXOVERF
			break
		}
		r.txfifo = append(r.txfifo, value)
	case rfcore.RFIRQF0, rfcore.RFIRQF1, rfcore.RFERRF:
		// Flags clear on 0 and ignore 1.
		r.repeat = false
		r.regs[addr-xdataBase] &= value
	default:
		r.repeat = false
		r.regs[addr-xdataBase] = value
	}
	r.mu.Unlock()
	if frame != nil && r.air != nil {
		r.air.transmit(r, frame)
	}
	return nil
}

// execStrobe runs cmd and returns the PSDU (without FCS) if it started a transmission.
func (r *Radio) execStrobe(cmd rfcore.Strobe) (frame []byte) {
	switch cmd {
	case rfcore.ISRXON:
		r.rxOn = true
	case rfcore.ISRFOFF:
		r.rxOn = false
	case rfcore.ISFLUSHRX:
		r.rxfifo = r.rxfifo[:0]
	case rfcore.ISFLUSHTX:
		r.txfifo = r.txfifo[:0]
	case rfcore.ISTXON:
		frame = r.startTx()
	case rfcore.ISTXONCCA:
		if !r.rxOn || r.ccaBusy > 0 {
			if r.ccaBusy > 0 {
				r.ccaBusy--
			}
			r.regs[rfcore.FSMSTAT1-xdataBase] &^= rfcore.FSMSTAT1_SAMPLED_CCA
			break
		}
		r.regs[rfcore.FSMSTAT1-xdataBase] |= rfcore.FSMSTAT1_SAMPLED_CCA
		frame = r.startTx()
	}
	return frame
}

func (r *Radio) startTx() []byte {
	if len(r.txfifo) == 0 {
		r.regs[rfcore.RFERRF-xdataBase] |= rfcore.RFERRF_TXUNDERF
		return nil
	}
	psdu := int(r.txfifo[0])
	n := psdu - rfcore.FCSLen
	if n < 0 || 1+n > len(r.txfifo) {
		r.regs[rfcore.RFERRF-xdataBase] |= rfcore.RFERRF_TXUNDERF
		return nil
	}
	frame := append([]byte(nil), r.txfifo[1:1+n]...)
	r.sent = append(r.sent, frame)
	r.regs[rfcore.RFIRQF1-xdataBase] |= rfcore.RFIRQF1_TXDONE
	return frame
}

func (r *Radio) fsmstat1() (v uint8) {
	v = r.regs[rfcore.FSMSTAT1-xdataBase] & rfcore.FSMSTAT1_SAMPLED_CCA
	if r.rxOn {
		v |= rfcore.FSMSTAT1_RX_ACTIVE | rfcore.FSMSTAT1_LOCK_STATUS
		if r.ccaBusy == 0 {
			v |= rfcore.FSMSTAT1_CCA
		}
	}
	if r.regs[rfcore.RFIRQF0-xdataBase]&rfcore.RFIRQF0_RXPKTDONE != 0 {
		v |= rfcore.FSMSTAT1_FIFOP
	}
	if len(r.rxfifo) > 0 {
		v |= rfcore.FSMSTAT1_FIFO
	}
	return v
}

// receive queues a frame heard on air. It returns false if the frame was dropped.
func (r *Radio) receive(frame []byte, rawRSSI int8, freq uint8) bool {
	r.mu.Lock()
	if !r.rxOn || r.regs[rfcore.FREQCTRL-xdataBase] != freq {
		r.mu.Unlock()
		return false
	}
	if r.regs[rfcore.FRMFILT0-xdataBase]&rfcore.FRMFILT0_FRM_FILTER_EN != 0 {
		hdr, _, err := rfcore.DecodeHeader(frame)
		if err != nil || !hdr.Accepts(r.pan(), r.addr()) {
			r.mu.Unlock()
			return false
		}
	}
	ok := r.pushRx(frame, rawRSSI, true)
	onIRQ := r.onIRQ
	r.mu.Unlock()
	if ok && onIRQ != nil {
		onIRQ()
	}
	return ok
}

func (r *Radio) pushRx(frame []byte, rawRSSI int8, crcOK bool) bool {
	if len(r.rxfifo)+1+len(frame)+rfcore.FCSLen > fifoSize {
		r.regs[rfcore.RFERRF-xdataBase] |= rfcore.RFERRF_RXOVERF
		return false
	}
	status := uint8(defaultCorr)
	if crcOK {
		status |= rfcore.RXSTATUS_CRC_OK
	}
	r.rxfifo = append(r.rxfifo, uint8(len(frame)+rfcore.FCSLen))
	r.rxfifo = append(r.rxfifo, frame...)
	r.rxfifo = append(r.rxfifo, uint8(rawRSSI), status)
	r.regs[rfcore.RFIRQF0-xdataBase] |= rfcore.RFIRQF0_RXPKTDONE | rfcore.RFIRQF0_FIFOP | rfcore.RFIRQF0_FRAME_ACCEPTED
	return true
}

func (r *Radio) pan() uint16 {
	return uint16(r.regs[rfcore.PAN_ID0-xdataBase]) | uint16(r.regs[rfcore.PAN_ID1-xdataBase])<<8
}

func (r *Radio) addr() uint16 {
	return uint16(r.regs[rfcore.SHORT_ADDR0-xdataBase]) | uint16(r.regs[rfcore.SHORT_ADDR1-xdataBase])<<8
}

func (r *Radio) fail() error {
	if r.failErr == nil {
		return nil
	}
	if r.failIn > 0 {
		r.failIn--
		return nil
	}
	return r.failErr
}

// Inject places a frame (MAC header and payload, no FCS) in the RX FIFO as
// if it had been received with the given raw RSSI reading. It bypasses
// channel, receiver state and address filtering.
func (r *Radio) Inject(frame []byte, rawRSSI int8, crcOK bool) bool {
	r.mu.Lock()
	ok := r.pushRx(frame, rawRSSI, crcOK)
	onIRQ := r.onIRQ
	r.mu.Unlock()
	if ok && onIRQ != nil {
		onIRQ()
	}
	return ok
}

// InjectRaw appends raw bytes to the RX FIFO and flags a completed frame.
// Used to model corrupted FIFO contents.
func (r *Radio) InjectRaw(b ...byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rxfifo = append(r.rxfifo, b...)
	r.regs[rfcore.RFIRQF0-xdataBase] |= rfcore.RFIRQF0_RXPKTDONE
}

// SetChannelBusy makes the next n clear channel assessments fail.
func (r *Radio) SetChannelBusy(n int) {
	r.mu.Lock()
	r.ccaBusy = n
	r.mu.Unlock()
}

// FailAfter makes every bus access fail with err after n more accesses
// succeed. A nil err clears the failure.
func (r *Radio) FailAfter(n int, err error) {
	r.mu.Lock()
	r.failIn = n
	r.failErr = err
	r.mu.Unlock()
}

// OnIRQ sets a function called whenever a frame lands in the RX FIFO. It is
// called without the radio lock held.
func (r *Radio) OnIRQ(fn func()) {
	r.mu.Lock()
	r.onIRQ = fn
	r.mu.Unlock()
}

// Reg returns a register value without the side effects of ReadReg.
func (r *Radio) Reg(addr uint16) uint8 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if addr < xdataBase || addr >= xdataEnd {
		panic("radiosim: bad register address " + strconv.Itoa(int(addr)))
	}
	return r.regs[addr-xdataBase]
}

// RxOn reports whether the receiver is on.
func (r *Radio) RxOn() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rxOn
}

// RxFIFOLen returns the number of bytes in the RX FIFO.
func (r *Radio) RxFIFOLen() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rxfifo)
}

// Writes returns the number of register writes performed so far, strobes included.
func (r *Radio) Writes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writes
}

// Strobes returns every value written to RFST, repeats included.
func (r *Radio) Strobes() []rfcore.Strobe {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]rfcore.Strobe(nil), r.strobes...)
}

// Sent returns the frames transmitted so far, MAC header included.
func (r *Radio) Sent() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([][]byte, len(r.sent))
	for i, f := range r.sent {
		out[i] = append([]byte(nil), f...)
	}
	return out
}

// ClearLogs resets the write counter, strobe log and sent frames.
func (r *Radio) ClearLogs() {
	r.mu.Lock()
	r.writes = 0
	r.strobes = r.strobes[:0]
	r.sent = r.sent[:0]
	r.mu.Unlock()
}
