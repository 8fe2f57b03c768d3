package main

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/soypat/cc2530/spin"
)

type published struct {
	topic   string
	payload []byte
}

func TestGateway(t *testing.T) {
	var serial bytes.Buffer
	w := spin.NewReportWriter(&serial)
	w.WriteReport(spin.Report{SinkRSSI: -40, Packet: spin.Packet{TxID: 1, Round: 3, RSSI: []int8{spin.NoRSSI, -60}}})
	serial.Write([]byte{0x00, 0xFF, 0x7E}) // Noise between frames.
	w.WriteReport(spin.Report{SinkRSSI: -41, Packet: spin.Packet{TxID: 2, Round: 3, RSSI: []int8{-62, spin.NoRSSI}}})

	var msgs []published
	publish := func(topic string, payload []byte) error {
		msgs = append(msgs, published{topic, append([]byte(nil), payload...)})
		return nil
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	gw := newGateway(&serial, 2, "lab", publish, logger)
	if err := gw.run(); err != nil {
		t.Fatal(err)
	}
	topics := []string{"lab/node/1", "lab/node/2", "lab/table"}
	if len(msgs) != len(topics) {
		t.Fatalf("published %d messages, want %d", len(msgs), len(topics))
	}
	for i, want := range topics {
		if msgs[i].topic != want {
			t.Errorf("message %d topic %q, want %q", i, msgs[i].topic, want)
		}
	}
	var rep reportMsg
	if err := json.Unmarshal(msgs[0].payload, &rep); err != nil {
		t.Fatal(err)
	}
	if rep.Tx != 1 || rep.Round != 3 || rep.SinkRSSI != -40 || rep.RSSI[0] != nil || rep.RSSI[1] == nil || *rep.RSSI[1] != -60 {
		t.Errorf("report message %s", msgs[0].payload)
	}
	var tab tableMsg
	if err := json.Unmarshal(msgs[2].payload, &tab); err != nil {
		t.Fatal(err)
	}
	// Node 1 heard node 2 at -60, node 2 heard node 1 at -62.
	if tab.Links[1][0] == nil || *tab.Links[1][0] != -60 || tab.Links[0][1] == nil || *tab.Links[0][1] != -62 {
		t.Errorf("table message %s", msgs[2].payload)
	}
	if tab.Links[0][0] != nil {
		t.Error("self link published")
	}
}
