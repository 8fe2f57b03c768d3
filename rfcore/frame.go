package rfcore

import (
	"encoding/binary"
	"errors"
	"strconv"

	"golang.org/x/exp/constraints"
)

// IEEE 802.15.4 PHY and MAC sizes.
const (
	// MaxPSDU is the largest PHY payload, counted by the length byte.
	MaxPSDU = 127
	// FCSLen is the size of the frame check sequence appended by AUTOCRC.
	// On reception the hardware replaces it with an RSSI byte and a status byte.
	FCSLen = 2
	// HeaderLen is the MAC header size of a short-addressed data frame with
	// PAN ID compression: FCF(2) Seq(1) DstPAN(2) Dst(2) Src(2).
	HeaderLen = 9
	// MaxPayload is the largest MAC payload that fits in a single frame.
	MaxPayload = MaxPSDU - HeaderLen - FCSLen
	// MinPSDU is the shortest PSDU carrying a full header.
	MinPSDU = HeaderLen + FCSLen
)

// BroadcastAddr is the short and PAN broadcast address.
const BroadcastAddr = 0xFFFF

// FCF_DATA_SHORT is the frame control field for a data frame with PAN ID
// compression and short destination and source addresses.
const FCF_DATA_SHORT = 0x8841

const (
	fcfTypeMask     = 0x0007
	fcfTypeData     = 0x0001
	fcfPANIDCompr   = 1 << 6
	fcfDstModeShift = 10
	fcfSrcModeShift = 14
	fcfAddrModeMask = 0x3
	addrModeShort   = 0x2
)

var errShortHeader = errors.New("rfcore: frame shorter than mac header")

// Header is the MAC header of a short-addressed data frame.
type Header struct {
	FCF    uint16
	Seq    uint8
	DstPAN uint16
	Dst    uint16
	Src    uint16
}

// NewDataHeader returns a data frame header addressed within a single PAN.
func NewDataHeader(pan, dst, src uint16, seq uint8) Header {
	return Header{FCF: FCF_DATA_SHORT, Seq: seq, DstPAN: pan, Dst: dst, Src: src}
}

// Put writes the HeaderLen bytes of the header to dst. Panics if dst is shorter than HeaderLen.
func (h *Header) Put(dst []byte) {
	_ = dst[HeaderLen-1]
	binary.LittleEndian.PutUint16(dst[0:], h.FCF)
	dst[2] = h.Seq
	binary.LittleEndian.PutUint16(dst[3:], h.DstPAN)
	binary.LittleEndian.PutUint16(dst[5:], h.Dst)
	binary.LittleEndian.PutUint16(dst[7:], h.Src)
}

// DecodeHeader parses the MAC header at the start of frame and returns the
// bytes that follow it. Only short-addressed data frames with PAN ID
// compression are understood.
func DecodeHeader(frame []byte) (h Header, payload []byte, err error) {
	if len(frame) < HeaderLen {
		return h, nil, errShortHeader
	}
	h.FCF = binary.LittleEndian.Uint16(frame)
	if !h.isShortData() {
		return h, nil, errors.New("rfcore: unsupported frame control 0x" + strconv.FormatUint(uint64(h.FCF), 16))
	}
	h.Seq = frame[2]
	h.DstPAN = binary.LittleEndian.Uint16(frame[3:])
	h.Dst = binary.LittleEndian.Uint16(frame[5:])
	h.Src = binary.LittleEndian.Uint16(frame[7:])
	return h, frame[HeaderLen:], nil
}

func (h Header) isShortData() bool {
	return h.FCF&fcfTypeMask == fcfTypeData &&
		h.FCF&fcfPANIDCompr != 0 &&
		(h.FCF>>fcfDstModeShift)&fcfAddrModeMask == addrModeShort &&
		(h.FCF>>fcfSrcModeShift)&fcfAddrModeMask == addrModeShort
}

// Accepts reports whether a frame with this header passes hardware address
// filtering for a node with the given PAN and short address.
func (h Header) Accepts(pan, addr uint16) bool {
	panOK := h.DstPAN == pan || h.DstPAN == BroadcastAddr
	addrOK := h.Dst == addr || h.Dst == BroadcastAddr
	return panOK && addrOK
}

// RSSIdBm converts a raw RSSI register reading to dBm with RSSI_OFFSET applied.
// The result saturates at the int8 limits.
func RSSIdBm(raw int8) int8 {
	return int8(clamp(int(raw)+RSSI_OFFSET, -128, 127))
}

func clamp[T constraints.Integer](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
