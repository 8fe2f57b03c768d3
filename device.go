// Package cc2530 drives the IEEE 802.15.4 radio of a TI CC2530/CC2531
// system-on-chip: configuration, the immediate strobe protocol that moves the
// radio between off, receive and transmit, CCA gated transmission and
// reception of completed frames.
//
// The transceiver is reached through a [Bus] so the same driver runs against
// the real chip (see package ccdebug) and against a simulated register file
// (see package radiosim).
package cc2530

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/soypat/cc2530/rfcore"
)

// Bus gives byte-wide access to the CC2530 XDATA address space where the RF
// core registers live. Addresses are the ones defined in package rfcore.
type Bus interface {
	ReadReg(addr uint16) (uint8, error)
	WriteReg(addr uint16, value uint8) error
}

// State is the radio state as tracked by the driver.
type State uint8

const (
	StateOff State = iota
	// StateReceiving means the receiver is on and no complete frame is buffered.
	StateReceiving
	// StateReceiveReady means a complete frame is waiting in the RX FIFO.
	StateReceiveReady
	// StateTransmitting is observable while SendPacket runs, or after it
	// failed to turn the radio off. The hardware state is then unknown.
	StateTransmitting
)

func (s State) String() string {
	switch s {
	case StateOff:
		return "off"
	case StateReceiving:
		return "receiving"
	case StateReceiveReady:
		return "receive-ready"
	case StateTransmitting:
		return "transmitting"
	}
	return "unknown"
}

// Default transmit tuning used when the corresponding Config field is zero.
const (
	DefaultCCARetries = 8
	// DefaultCCABackoff is 20 symbol periods at 250kbps.
	DefaultCCABackoff = 320 * time.Microsecond
	DefaultTxTimeout  = 10 * time.Millisecond

	maxBackoffShift = 3
	// rxSettleTimeout bounds the wait for RSSI_VALID after ISRXON.
	rxSettleTimeout = 2 * time.Millisecond
)

// Config is the on-air identity of the node plus transmit tuning.
// Config is copied by Init and never modified by the driver.
type Config struct {
	PAN  uint16 // Network (PAN) identifier.
	Addr uint16 // Short address of this node within PAN.
	// Channel is the IEEE 802.15.4 channel, 11 through 26.
	Channel uint16
	// TxPower is a power level from 0 (weakest) to 31 (full power).
	TxPower uint16
	// Promiscuous disables hardware frame filtering so frames addressed to
	// other nodes or PANs are also received.
	Promiscuous bool

	// CCARetries is the number of clear channel assessments attempted per
	// SendPacket call before failing with ErrChannelBusy.
	CCARetries int
	// CCABackoff is the wait after the first failed assessment. It doubles
	// with each further failure up to 8 times its initial value.
	CCABackoff time.Duration
	// TxTimeout bounds the wait for TXDONE once a transmission started.
	TxTimeout time.Duration

	Logger *slog.Logger
}

// DefaultConfig returns a configuration on channel 11 at full power.
func DefaultConfig(pan, addr uint16) Config {
	return Config{
		PAN:     pan,
		Addr:    addr,
		Channel: rfcore.MinChannel,
		TxPower: rfcore.MaxTxPowerLevel,
	}
}

func (cfg *Config) setDefaults() {
	if cfg.CCARetries <= 0 {
		cfg.CCARetries = DefaultCCARetries
	}
	if cfg.CCABackoff <= 0 {
		cfg.CCABackoff = DefaultCCABackoff
	}
	if cfg.TxTimeout <= 0 {
		cfg.TxTimeout = DefaultTxTimeout
	}
}

// Device is a handle to a single CC2530 radio. All methods except
// HandleInterrupt are mutually exclusive.
type Device struct {
	mu     sync.Mutex
	bus    Bus
	cfg    Config
	state  State
	inited bool
	// irq is set from interrupt context by HandleInterrupt.
	irq atomic.Bool
	// err is the first bus error of the operation in progress. Once set,
	// the remaining register accesses of that operation are skipped.
	err           error
	logger        *slog.Logger
	_traceenabled bool
	// txbuf stages the PSDU so SendPacket does not allocate.
	txbuf [rfcore.MaxPSDU]byte
	// rxbuf holds the frame drained from the RX FIFO.
	rxbuf [rfcore.MaxPSDU]byte
}

// New returns a Device that accesses the radio through bus. Init must be
// called before sending or receiving.
func New(bus Bus) *Device {
	return &Device{bus: bus}
}

// Init programs the radio from cfg: PAN and short address filters, channel,
// transmit power, correlation and CCA thresholds and the transmit filter.
// Both FIFOs are flushed and the radio ends Off. Any transfer in progress
// is aborted. cfg is validated before any register is touched.
func (d *Device) Init(cfg Config) (err error) {
	freq, ok := rfcore.FreqCtrl(cfg.Channel)
	if !ok {
		return fmt.Errorf("%w %d not in %d..%d", ErrUnsupportedChannel, cfg.Channel, rfcore.MinChannel, rfcore.MaxChannel)
	}
	power, ok := rfcore.TxPowerReg(cfg.TxPower)
	if !ok {
		return fmt.Errorf("%w %d not in 0..%d", ErrUnsupportedPower, cfg.TxPower, rfcore.MaxTxPowerLevel)
	}
	cfg.setDefaults()

	d.acquire()
	defer d.release()
	d.logger = cfg.Logger
	d._traceenabled = d.logger != nil && d.logger.Handler().Enabled(context.Background(), levelTrace)
	d.info("Init:start",
		slog.Uint64("pan", uint64(cfg.PAN)),
		slog.Uint64("addr", uint64(cfg.Addr)),
		slog.Uint64("channel", uint64(cfg.Channel)),
		slog.Uint64("txpower", uint64(cfg.TxPower)),
	)
	d.inited = false
	d.strobe(rfcore.ISRFOFF)

	d.write(rfcore.PAN_ID0, uint8(cfg.PAN))
	d.write(rfcore.PAN_ID1, uint8(cfg.PAN>>8))
	d.write(rfcore.SHORT_ADDR0, uint8(cfg.Addr))
	d.write(rfcore.SHORT_ADDR1, uint8(cfg.Addr>>8))
	filt := uint8(rfcore.FRMFILT0_RESET_VALUE)
	if cfg.Promiscuous {
		filt &^= rfcore.FRMFILT0_FRM_FILTER_EN
	}
	d.write(rfcore.FRMFILT0, filt)
	d.write(rfcore.FRMCTRL0, rfcore.FRMCTRL0_AUTOCRC)

	d.write(rfcore.FREQCTRL, freq)
	d.write(rfcore.TXPOWER, power)

	d.write(rfcore.MDMCTRL1, rfcore.CORR_THR)
	d.write(rfcore.CCACTRL0, rfcore.CCA_THR)
	d.write(rfcore.TXFILTCFG, rfcore.TXFILTCFG_RESET_VALUE)
	d.write(rfcore.AGCCTRL1, rfcore.AGCCTRL1_RECOMMENDED)
	d.write(rfcore.FSCAL1, rfcore.FSCAL1_RECOMMENDED)

	d.strobe(rfcore.ISFLUSHRX)
	d.strobe(rfcore.ISFLUSHTX)
	d.write(rfcore.RFIRQF0, 0)
	d.write(rfcore.RFIRQF1, 0)
	d.write(rfcore.RFERRF, 0)
	d.irq.Store(false)
	d.state = StateOff
	if err = d.takeErr(); err != nil {
		d.logerr("Init:failed", slog.String("err", err.Error()))
		return err
	}
	d.cfg = cfg
	d.inited = true
	d.info("Init:done")
	return nil
}

// Listen turns the receiver on (Off to Receiving). Stale RX FIFO contents
// are flushed first.
func (d *Device) Listen() error {
	d.acquire()
	defer d.release()
	if !d.inited {
		return ErrNotInitialized
	}
	d.strobe(rfcore.ISFLUSHRX)
	d.clearRxFlags()
	d.strobe(rfcore.ISRXON)
	if err := d.takeErr(); err != nil {
		return err
	}
	d.state = StateReceiving
	d.debug("Listen")
	return nil
}

// Off turns the radio off from any state. Frames in the RX FIFO are kept.
func (d *Device) Off() error {
	d.acquire()
	defer d.release()
	d.strobe(rfcore.ISRFOFF)
	if err := d.takeErr(); err != nil {
		return err
	}
	d.state = StateOff
	d.debug("Off")
	return nil
}

// State returns the radio state. A receiving radio with a complete frame
// pending is reported as StateReceiveReady.
func (d *Device) State() State {
	d.acquire()
	defer d.release()
	if d.state != StateReceiving {
		return d.state
	}
	ready, err := d.packetReady()
	if err != nil {
		d.logerr("State", slog.String("err", err.Error()))
	}
	if ready {
		return StateReceiveReady
	}
	return d.state
}

func (d *Device) acquire() {
	d.mu.Lock()
	d.err = nil
}

func (d *Device) release() {
	d.mu.Unlock()
}

// takeErr returns and clears the sticky bus error of the current operation.
func (d *Device) takeErr() error {
	err := d.err
	d.err = nil
	return err
}

func errjoin(errs ...error) error {
	return errors.Join(errs...)
}
