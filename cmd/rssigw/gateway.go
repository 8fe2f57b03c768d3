package main

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strconv"

	"github.com/soypat/cc2530/spin"
)

// gateway turns sink reports into MQTT messages.
type gateway struct {
	rr      *spin.ReportReader
	table   *spin.Table
	topic   string
	publish func(topic string, payload []byte) error
	logger  *slog.Logger
}

type reportMsg struct {
	Tx       int    `json:"tx"`
	Round    int    `json:"round"`
	SinkRSSI int    `json:"sink_rssi"`
	RSSI     []*int `json:"rssi"`
}

type tableMsg struct {
	Round int `json:"round"`
	// Links[i][j] is the RSSI at node j+1 for node i+1, nil if unknown.
	Links [][]*int `json:"links"`
}

func newGateway(r io.Reader, nodes int, topic string, publish func(string, []byte) error, logger *slog.Logger) *gateway {
	return &gateway{
		rr:      spin.NewReportReader(r),
		table:   spin.NewTable(nodes),
		topic:   topic,
		publish: publish,
		logger:  logger,
	}
}

// run forwards reports until the serial stream ends or publishing fails.
func (g *gateway) run() error {
	for {
		err := g.next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func (g *gateway) next() error {
	r, err := g.rr.ReadReport()
	if err != nil {
		return err
	}
	p := r.Packet
	g.table.Update(p)
	msg := reportMsg{
		Tx:       int(p.TxID),
		Round:    int(p.Round),
		SinkRSSI: int(r.SinkRSSI),
		RSSI:     rssiList(p.RSSI),
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if err := g.publish(g.topic+"/node/"+strconv.Itoa(msg.Tx), b); err != nil {
		return err
	}
	g.logger.Debug("report", slog.Int("tx", msg.Tx), slog.Int("round", msg.Round), slog.Int("dropped", g.rr.Dropped()))
	if int(p.TxID) != g.table.Nodes() {
		return nil
	}
	// Last node of the round: publish the assembled table.
	b, err = json.Marshal(g.tableMsg(msg.Round))
	if err != nil {
		return err
	}
	return g.publish(g.topic+"/table", b)
}

func (g *gateway) tableMsg(round int) tableMsg {
	n := g.table.Nodes()
	msg := tableMsg{Round: round, Links: make([][]*int, n)}
	for from := 1; from <= n; from++ {
		row := make([]*int, n)
		for to := 1; to <= n; to++ {
			if v, ok := g.table.Link(from, to); ok {
				iv := int(v)
				row[to-1] = &iv
			}
		}
		msg.Links[from-1] = row
	}
	return msg
}

func rssiList(v []int8) []*int {
	out := make([]*int, len(v))
	for i, r := range v {
		if r == spin.NoRSSI {
			continue
		}
		iv := int(r)
		out[i] = &iv
	}
	return out
}
