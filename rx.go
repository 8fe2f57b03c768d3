package cc2530

import (
	"log/slog"

	"github.com/soypat/cc2530/rfcore"
)

// RxInfo describes the frame consumed by a call to ReceiveFrame.
type RxInfo struct {
	// N is the number of payload bytes copied into the caller's buffer.
	N int
	// Len is the payload length of the received frame. Len > N means the
	// payload was truncated.
	Len    int
	Header rfcore.Header
	// RSSI is the received signal strength in dBm, offset corrected.
	RSSI int8
	// CRCOK is the hardware FCS check result.
	CRCOK bool
	// Corr is the average correlation value of the first 8 symbols.
	Corr uint8
}

// PacketReady reports whether a complete frame is waiting in the RX FIFO.
// It does not modify any radio or driver state and may be polled.
func (d *Device) PacketReady() bool {
	d.acquire()
	defer d.release()
	ready, err := d.packetReady()
	if err != nil {
		d.logerr("PacketReady", slog.String("err", err.Error()))
	}
	return ready
}

func (d *Device) packetReady() (bool, error) {
	if !d.inited {
		return false, nil
	}
	if d.irq.Load() {
		return true, nil
	}
	flags := d.read(rfcore.RFIRQF0)
	if err := d.takeErr(); err != nil {
		return false, err
	}
	return flags&rfcore.RFIRQF0_RXPKTDONE != 0, nil
}

// HandleInterrupt records that the radio signalled a received frame. It is
// meant to be called from the RF interrupt handler (or a FIFOP pin change
// handler): it only sets a flag observed by PacketReady and never touches
// the bus, so it does not take the device lock.
func (d *Device) HandleInterrupt() {
	d.irq.Store(true)
}

// ReceivePacket copies the payload of the pending frame into dst and returns
// the number of bytes copied and the frame's RSSI in dBm. If no frame is
// pending it returns 0 and a nil error. If the payload did not fit in dst the
// first len(dst) bytes are copied and ErrTruncated is returned.
func (d *Device) ReceivePacket(dst []byte) (n int, rssi int8, err error) {
	info, err := d.ReceiveFrame(dst)
	return info.N, info.RSSI, err
}

// ReceiveFrame is like ReceivePacket but also reports the frame header and
// link quality. The RX FIFO is flushed after the frame is read so the radio
// is ready for the next frame. A bus failure while checking for, reading or
// flushing the frame is returned.
func (d *Device) ReceiveFrame(dst []byte) (info RxInfo, err error) {
	d.acquire()
	defer d.release()
	if !d.inited {
		return info, ErrNotInitialized
	}
	ready, err := d.packetReady()
	if err != nil || !ready {
		return info, err
	}
	defer func() {
		if ferr := d.rxDone(); ferr != nil {
			err = errjoin(err, ferr)
		}
	}()

	count := d.read(rfcore.RXFIFOCNT)
	if count == 0 {
		return info, d.takeErr()
	}
	plen := int(d.read(rfcore.RFD))
	if d.err == nil && (plen < rfcore.MinPSDU || plen > rfcore.MaxPSDU || plen+1 > int(count)) {
		d.warn("rx:bad-length", slog.Int("len", plen), slog.Int("fifocnt", int(count)))
		return info, ErrBadFrame
	}
	frame := d.rxbuf[:plen]
	d.readFIFO(frame)
	if err = d.takeErr(); err != nil {
		return info, err
	}
	// AUTOCRC replaces the FCS with RSSI and CRC_OK|correlation.
	status := frame[plen-1]
	info.RSSI = rfcore.RSSIdBm(int8(frame[plen-2]))
	info.CRCOK = status&rfcore.RXSTATUS_CRC_OK != 0
	info.Corr = status & rfcore.RXSTATUS_CORR_MSK

	hdr, payload, err := rfcore.DecodeHeader(frame[:plen-rfcore.FCSLen])
	if err != nil {
		d.warn("rx:bad-header", slog.String("err", err.Error()))
		return info, errjoin(ErrBadFrame, err)
	}
	info.Header = hdr
	info.Len = len(payload)
	info.N = copy(dst, payload)
	d.debug("rx",
		slog.Uint64("src", uint64(hdr.Src)),
		slog.Uint64("seq", uint64(hdr.Seq)),
		slog.Int("len", info.Len),
		slog.Int("rssi", int(info.RSSI)),
		slog.Bool("crcok", info.CRCOK),
	)
	if info.N < info.Len {
		return info, ErrTruncated
	}
	return info, nil
}

// rxDone discards what is left of the frame in the RX FIFO and clears the
// receive flags, moving the radio from ReceiveReady back to Receiving.
func (d *Device) rxDone() error {
	d.strobe(rfcore.ISFLUSHRX)
	d.clearRxFlags()
	if err := d.takeErr(); err != nil {
		d.logerr("rx:flush", slog.String("err", err.Error()))
		return err
	}
	return nil
}

// clearRxFlags clears the receive flags. The interrupt flag is kept if the
// bus write failed so the pending frame is still reported.
func (d *Device) clearRxFlags() {
	d.clearFlags(rfcore.RFIRQF0, rfcore.RFIRQF0_RXPKTDONE|rfcore.RFIRQF0_FIFOP|rfcore.RFIRQF0_FRAME_ACCEPTED|rfcore.RFIRQF0_SFD)
	if d.err == nil {
		d.irq.Store(false)
	}
}
