// Package spin implements a round-robin RSSI measurement protocol on top of
// the cc2530 driver. Nodes numbered 1 to N take turns broadcasting a packet
// carrying the signal strength they measured from every other node. A sink
// hears every broadcast and forwards it, framed and checksummed, over a
// serial link to a host that assembles the link table.
package spin

import (
	"encoding/binary"
	"errors"
)

const (
	packetKind = 'S'
	// packetHeaderLen is kind(1) tx(1) round(2) n(1).
	packetHeaderLen = 5
	// MaxNodes is the largest network a measurement packet can describe.
	MaxNodes = 32
	// NoRSSI marks a link that was not heard during the last round.
	NoRSSI int8 = 127
)

var (
	errShortPacket = errors.New("spin: packet too short")
	errPacketKind  = errors.New("spin: not a measurement packet")
	errNodeCount   = errors.New("spin: node count out of range")
	errTxID        = errors.New("spin: transmitter id out of range")
)

// Packet is the payload broadcast by a node on its turn.
type Packet struct {
	// TxID is the transmitting node, 1 to len(RSSI).
	TxID  uint8
	Round uint16
	// RSSI[i] is the signal strength in dBm measured at TxID for node i+1
	// during the previous round, or NoRSSI.
	RSSI []int8
}

// Len returns the encoded size of p.
func (p *Packet) Len() int { return packetHeaderLen + len(p.RSSI) }

// AppendTo appends the encoded packet to dst.
func (p *Packet) AppendTo(dst []byte) ([]byte, error) {
	if err := p.validate(); err != nil {
		return dst, err
	}
	dst = append(dst, packetKind, p.TxID)
	dst = binary.LittleEndian.AppendUint16(dst, p.Round)
	dst = append(dst, uint8(len(p.RSSI)))
	for _, v := range p.RSSI {
		dst = append(dst, uint8(v))
	}
	return dst, nil
}

func (p *Packet) validate() error {
	n := len(p.RSSI)
	if n == 0 || n > MaxNodes {
		return errNodeCount
	}
	if p.TxID == 0 || int(p.TxID) > n {
		return errTxID
	}
	return nil
}

// DecodePacket parses a measurement packet.
func DecodePacket(b []byte) (p Packet, err error) {
	if len(b) < packetHeaderLen {
		return p, errShortPacket
	}
	if b[0] != packetKind {
		return p, errPacketKind
	}
	p.TxID = b[1]
	p.Round = binary.LittleEndian.Uint16(b[2:])
	n := int(b[4])
	if len(b) < packetHeaderLen+n {
		return p, errShortPacket
	}
	raw := b[packetHeaderLen : packetHeaderLen+n]
	p.RSSI = make([]int8, n)
	for i, v := range raw {
		p.RSSI[i] = int8(v)
	}
	return p, p.validate()
}
