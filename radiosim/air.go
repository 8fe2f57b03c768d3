package radiosim

import (
	"sync"

	"github.com/soypat/cc2530/rfcore"
)

// DefaultRawRSSI is the raw RSSI reading of links without an explicit level.
// With the -76 dBm offset it corresponds to -46 dBm.
const DefaultRawRSSI int8 = 30

type link struct{ from, to *Radio }

// Air is a shared medium. Frames transmitted by one of its radios are
// delivered to every other radio on the same channel with its receiver on.
type Air struct {
	mu     sync.Mutex
	radios []*Radio
	rssi   map[link]int8
	cut    map[link]bool
}

// NewAir returns an empty medium.
func NewAir() *Air {
	return &Air{
		rssi: make(map[link]int8),
		cut:  make(map[link]bool),
	}
}

// NewRadio creates a radio attached to the medium.
func (a *Air) NewRadio() *Radio {
	r := New()
	r.air = a
	a.mu.Lock()
	a.radios = append(a.radios, r)
	a.mu.Unlock()
	return r
}

// SetLink sets the raw RSSI reading at to for frames sent by from.
func (a *Air) SetLink(from, to *Radio, rawRSSI int8) {
	a.mu.Lock()
	a.rssi[link{from, to}] = rawRSSI
	delete(a.cut, link{from, to})
	a.mu.Unlock()
}

// Cut prevents frames sent by from from reaching to.
func (a *Air) Cut(from, to *Radio) {
	a.mu.Lock()
	a.cut[link{from, to}] = true
	a.mu.Unlock()
}

func (a *Air) transmit(from *Radio, frame []byte) {
	freq := from.Reg(rfcore.FREQCTRL)
	type delivery struct {
		to   *Radio
		rssi int8
	}
	a.mu.Lock()
	targets := make([]delivery, 0, len(a.radios))
	for _, to := range a.radios {
		l := link{from, to}
		if to == from || a.cut[l] {
			continue
		}
		rssi, ok := a.rssi[l]
		if !ok {
			rssi = DefaultRawRSSI
		}
		targets = append(targets, delivery{to: to, rssi: rssi})
	}
	a.mu.Unlock()
	for _, t := range targets {
		t.to.receive(frame, t.rssi, freq)
	}
}
