package spin

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/soypat/cc2530"
	"github.com/soypat/cc2530/rfcore"
)

// SinkAddr is the short address of the sink. Nodes use their ID as address.
const SinkAddr = 0

// DefaultTimeout is the wait for a missing turn.
const DefaultTimeout = 20 * time.Millisecond

// Radio is the part of *cc2530.Device used by nodes and the sink.
type Radio interface {
	SendPacket(payload []byte, dst, src uint16, seq uint8) error
	ReceiveFrame(dst []byte) (cc2530.RxInfo, error)
	PacketReady() bool
	Listen() error
}

var _ Radio = (*cc2530.Device)(nil)

// Node is a network member taking part in the measurement rounds.
type Node struct {
	radio  Radio
	sched  *Schedule
	rssi   []int8
	round  uint16
	seq    uint8
	logger *slog.Logger
	rxbuf  [rfcore.MaxPayload]byte
	txbuf  [rfcore.MaxPayload]byte
	// Busy counts turns lost to a busy channel.
	Busy int
}

// NodeConfig configures a Node.
type NodeConfig struct {
	ID    int
	Nodes int
	// Timeout defaults to DefaultTimeout.
	Timeout time.Duration
	Logger  *slog.Logger
}

// NewNode returns a node that transmits through radio. The radio must be
// initialized with the node ID as its short address.
func NewNode(radio Radio, cfg NodeConfig, now time.Time) (*Node, error) {
	if cfg.Nodes < 1 || cfg.Nodes > MaxNodes {
		return nil, errNodeCount
	}
	if cfg.ID < 1 || cfg.ID > cfg.Nodes {
		return nil, errTxID
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	n := &Node{
		radio:  radio,
		sched:  NewSchedule(cfg.ID, cfg.Nodes, cfg.Timeout, now),
		rssi:   make([]int8, cfg.Nodes),
		logger: cfg.Logger,
	}
	n.clearRSSI()
	return n, radio.Listen()
}

// Round returns the current round number.
func (n *Node) Round() uint16 { return n.round }

// Measured returns the RSSI last measured from node id.
func (n *Node) Measured(id int) int8 {
	if id < 1 || id > len(n.rssi) {
		return NoRSSI
	}
	return n.rssi[id-1]
}

// Poll processes a pending packet, if any, and transmits if it is this
// node's turn. It must be called often, from a single goroutine.
func (n *Node) Poll(now time.Time) error {
	if n.radio.PacketReady() {
		if err := n.receive(now); err != nil {
			return err
		}
	}
	if n.sched.MyTurn(now) {
		return n.transmit(now)
	}
	return nil
}

func (n *Node) receive(now time.Time) error {
	info, err := n.radio.ReceiveFrame(n.rxbuf[:])
	switch {
	case errors.Is(err, cc2530.ErrBadFrame), errors.Is(err, cc2530.ErrTruncated):
		n.log(slog.LevelWarn, "spin:rx-drop", slog.String("err", err.Error()))
		return nil
	case err != nil:
		return err
	case info.Len == 0 || !info.CRCOK:
		return nil
	}
	p, err := DecodePacket(n.rxbuf[:info.N])
	if err != nil || int(p.TxID) != int(info.Header.Src) || len(p.RSSI) != len(n.rssi) {
		n.log(slog.LevelDebug, "spin:rx-foreign", slog.Uint64("src", uint64(info.Header.Src)))
		return nil
	}
	from := int(p.TxID)
	n.rssi[from-1] = info.RSSI
	n.round = p.Round
	if from == n.sched.Nodes {
		n.round++
	}
	n.sched.Heard(from, now)
	n.log(slog.LevelDebug, "spin:rx", slog.Int("from", from), slog.Int("rssi", int(info.RSSI)))
	return nil
}

func (n *Node) transmit(now time.Time) error {
	p := Packet{TxID: uint8(n.sched.ID), Round: n.round, RSSI: n.rssi}
	buf, err := p.AppendTo(n.txbuf[:0])
	if err != nil {
		return err
	}
	err = n.radio.SendPacket(buf, rfcore.BroadcastAddr, uint16(n.sched.ID), n.seq)
	n.seq++
	// The turn is spent whether or not the frame made it out.
	n.sched.Heard(n.sched.ID, now)
	if n.sched.ID == n.sched.Nodes {
		n.round++
	}
	n.clearRSSI()
	if errors.Is(err, cc2530.ErrChannelBusy) {
		n.Busy++
		n.log(slog.LevelWarn, "spin:tx-busy", slog.Int("round", int(p.Round)))
		err = nil
	}
	if err != nil {
		return err
	}
	// SendPacket leaves the radio off.
	return n.radio.Listen()
}

func (n *Node) clearRSSI() {
	for i := range n.rssi {
		n.rssi[i] = NoRSSI
	}
}

func (n *Node) log(level slog.Level, msg string, attrs ...slog.Attr) {
	if n.logger != nil {
		n.logger.LogAttrs(context.Background(), level, msg, attrs...)
	}
}

// Sink hears every measurement packet and forwards it as a Report.
type Sink struct {
	radio Radio
	w     *ReportWriter
	rxbuf [rfcore.MaxPayload]byte
}

// NewSink returns a sink forwarding reports to w. The radio must be
// initialized with SinkAddr as its short address.
func NewSink(radio Radio, w *ReportWriter) (*Sink, error) {
	return &Sink{radio: radio, w: w}, radio.Listen()
}

// Poll forwards a pending packet, if any. It reports whether a report was written.
func (s *Sink) Poll() (bool, error) {
	if !s.radio.PacketReady() {
		return false, nil
	}
	info, err := s.radio.ReceiveFrame(s.rxbuf[:])
	if err != nil && !errors.Is(err, cc2530.ErrBadFrame) {
		return false, err
	}
	if err != nil || info.Len == 0 || !info.CRCOK {
		return false, nil
	}
	p, err := DecodePacket(s.rxbuf[:info.N])
	if err != nil {
		return false, nil
	}
	return true, s.w.WriteReport(Report{SinkRSSI: info.RSSI, Packet: p})
}
