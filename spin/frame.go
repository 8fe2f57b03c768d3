package spin

import (
	"bufio"
	"errors"
	"io"
)

// Serial frame layout: len(1) seq(1) payload crc(2, big endian) sync(1).
// len counts the whole frame. The CRC covers len, seq and payload.
const (
	frameHeaderLen  = 2
	frameTrailerLen = 3
	frameMinLen     = frameHeaderLen + frameTrailerLen
	// MaxFrameLen is the largest serial frame.
	MaxFrameLen = 64
	// MaxFramePayload is the largest payload carried by a serial frame.
	MaxFramePayload = MaxFrameLen - frameMinLen
	frameSync       = 0x7E
)

var errFramePayload = errors.New("spin: frame payload too large")

// CRC16 is the CRC-16/MCRF4XX checksum used by the serial framing.
func CRC16(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		b = b ^ uint8(crc&0xFF)
		b = b ^ (b << 4)
		b16 := uint16(b)
		crc = (b16<<8 | crc>>8) ^ (b16 >> 4) ^ (b16 << 3)
	}
	return crc
}

// AppendFrame appends a serial frame carrying payload to dst.
func AppendFrame(dst []byte, seq uint8, payload []byte) ([]byte, error) {
	if len(payload) > MaxFramePayload {
		return dst, errFramePayload
	}
	start := len(dst)
	dst = append(dst, uint8(len(payload)+frameMinLen), seq)
	dst = append(dst, payload...)
	crc := CRC16(dst[start:])
	return append(dst, uint8(crc>>8), uint8(crc), frameSync), nil
}

// FrameReader extracts frames from a byte stream, skipping garbage and
// frames that fail the length, sync or CRC checks.
type FrameReader struct {
	r   *bufio.Reader
	buf [MaxFrameLen]byte
	// Dropped counts bytes discarded while resynchronizing.
	Dropped int
}

// NewFrameReader returns a FrameReader reading from r.
func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{r: bufio.NewReaderSize(r, 4*MaxFrameLen)}
}

// ReadFrame returns the next valid frame. The payload is only valid until
// the next call.
func (fr *FrameReader) ReadFrame() (seq uint8, payload []byte, err error) {
	for {
		hdr, err := fr.r.Peek(1)
		if err != nil {
			return 0, nil, err
		}
		n := int(hdr[0])
		if n < frameMinLen || n > MaxFrameLen {
			fr.drop()
			continue
		}
		frame, err := fr.r.Peek(n)
		if err != nil {
			if err == io.EOF && len(frame) > 0 {
				err = io.ErrUnexpectedEOF
			}
			return 0, nil, err
		}
		crc := uint16(frame[n-3])<<8 | uint16(frame[n-2])
		if frame[n-1] != frameSync || crc != CRC16(frame[:n-frameTrailerLen]) {
			fr.drop()
			continue
		}
		copy(fr.buf[:], frame)
		fr.r.Discard(n)
		return fr.buf[1], fr.buf[frameHeaderLen : n-frameTrailerLen], nil
	}
}

func (fr *FrameReader) drop() {
	fr.r.Discard(1)
	fr.Dropped++
}

// Report is what the sink forwards to the host for every packet it hears.
type Report struct {
	// SinkRSSI is the signal strength of the packet at the sink in dBm.
	SinkRSSI int8
	Packet   Packet
}

// AppendTo appends the encoded report to dst.
func (r *Report) AppendTo(dst []byte) ([]byte, error) {
	return r.Packet.AppendTo(append(dst, uint8(r.SinkRSSI)))
}

// DecodeReport parses a report payload.
func DecodeReport(b []byte) (r Report, err error) {
	if len(b) < 1 {
		return r, errShortPacket
	}
	r.SinkRSSI = int8(b[0])
	r.Packet, err = DecodePacket(b[1:])
	return r, err
}

// ReportWriter frames reports onto a serial link.
type ReportWriter struct {
	w   io.Writer
	seq uint8
	buf []byte
}

func NewReportWriter(w io.Writer) *ReportWriter {
	return &ReportWriter{w: w, buf: make([]byte, 0, 2*MaxFrameLen)}
}

func (rw *ReportWriter) WriteReport(r Report) error {
	payload, err := r.AppendTo(rw.buf[MaxFrameLen:MaxFrameLen])
	if err != nil {
		return err
	}
	frame, err := AppendFrame(rw.buf[:0], rw.seq, payload)
	if err != nil {
		return err
	}
	rw.seq++
	_, err = rw.w.Write(frame)
	return err
}

// ReportReader decodes reports from a serial link.
type ReportReader struct {
	fr *FrameReader
	// Bad counts frames that passed the CRC but did not hold a report.
	Bad int
}

func NewReportReader(r io.Reader) *ReportReader {
	return &ReportReader{fr: NewFrameReader(r)}
}

// ReadReport returns the next valid report.
func (rr *ReportReader) ReadReport() (Report, error) {
	for {
		_, payload, err := rr.fr.ReadFrame()
		if err != nil {
			return Report{}, err
		}
		r, err := DecodeReport(payload)
		if err != nil {
			rr.Bad++
			continue
		}
		return r, nil
	}
}

// Dropped returns the number of bytes skipped while resynchronizing.
func (rr *ReportReader) Dropped() int { return rr.fr.Dropped }
