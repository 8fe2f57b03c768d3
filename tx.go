package cc2530

import (
	"log/slog"
	"time"

	"github.com/soypat/cc2530/rfcore"
)

// SendPacket transmits payload in a data frame addressed from src to dst
// within the configured PAN, carrying sequence number seq. The header fields
// are copied into the frame and otherwise not interpreted.
//
// Transmission is gated by clear channel assessment. If the channel stays
// busy for Config.CCARetries attempts SendPacket returns ErrChannelBusy.
// Payloads longer than rfcore.MaxPayload are rejected with
// ErrPayloadTooLarge before any register is accessed. The radio is Off when
// SendPacket returns, whether it succeeded or not, unless a bus error kept
// the off strobe from reaching it. State then reports StateTransmitting
// until Off or Init succeeds.
func (d *Device) SendPacket(payload []byte, dst, src uint16, seq uint8) error {
	if len(payload) > rfcore.MaxPayload {
		return ErrPayloadTooLarge
	}
	d.acquire()
	defer d.release()
	if !d.inited {
		return ErrNotInitialized
	}
	start := time.Now()
	wasOff := d.state != StateReceiving
	d.state = StateTransmitting

	// Stage the PSDU: length byte counts the FCS appended by AUTOCRC.
	psduLen := rfcore.HeaderLen + len(payload) + rfcore.FCSLen
	hdr := rfcore.NewDataHeader(d.cfg.PAN, dst, src, seq)
	d.txbuf[0] = uint8(psduLen)
	hdr.Put(d.txbuf[1:])
	n := 1 + rfcore.HeaderLen + copy(d.txbuf[1+rfcore.HeaderLen:], payload)

	d.strobe(rfcore.ISFLUSHTX)
	d.writeFIFO(d.txbuf[:n])
	if wasOff {
		// CCA is only valid once the receiver has been running for 8 symbols.
		d.strobe(rfcore.ISRXON)
		d.waitRxSettled()
	}
	d.clearFlags(rfcore.RFIRQF1, rfcore.RFIRQF1_TXDONE)

	txErr := d.transmitCCA()
	busErr := d.takeErr()
	// Turn the radio off even if the transfer failed. The state is left as
	// StateTransmitting when that is not possible.
	d.strobe(rfcore.ISFLUSHTX)
	d.strobe(rfcore.ISRFOFF)
	offErr := d.takeErr()
	if offErr == nil {
		d.state = StateOff
	}
	if err := errjoin(busErr, offErr); err != nil {
		d.logerr("SendPacket:bus", slog.String("err", err.Error()))
		return err
	}
	if txErr != nil {
		d.warn("SendPacket:failed", slog.String("err", txErr.Error()), slog.Int("plen", len(payload)))
		return txErr
	}
	d.debug("SendPacket:done",
		slog.Uint64("dst", uint64(dst)),
		slog.Uint64("seq", uint64(seq)),
		slog.Int("plen", len(payload)),
		slog.Duration("took", time.Since(start)),
	)
	return nil
}

// transmitCCA issues ISTXONCCA until a clear channel assessment lets the
// frame go out or the retry budget is spent, then waits for TXDONE.
func (d *Device) transmitCCA() error {
	backoff := d.cfg.CCABackoff
	for attempt := 0; attempt < d.cfg.CCARetries; attempt++ {
		d.strobe(rfcore.ISTXONCCA)
		stat := d.read(rfcore.FSMSTAT1)
		if d.err != nil {
			return nil // Reported by caller through takeErr.
		}
		if stat&rfcore.FSMSTAT1_SAMPLED_CCA != 0 {
			d.trace("tx:cca-clear", slog.Int("attempt", attempt))
			return d.waitTxDone()
		}
		d.debug("tx:cca-busy", slog.Int("attempt", attempt), slog.Duration("backoff", backoff))
		if attempt == d.cfg.CCARetries-1 {
			break
		}
		time.Sleep(backoff)
		if backoff < d.cfg.CCABackoff<<maxBackoffShift {
			backoff *= 2
		}
	}
	return ErrChannelBusy
}

func (d *Device) waitTxDone() error {
	deadline := time.Now().Add(d.cfg.TxTimeout)
	for {
		flags := d.read(rfcore.RFIRQF1)
		if d.err != nil {
			return nil
		}
		if flags&rfcore.RFIRQF1_TXDONE != 0 {
			d.clearFlags(rfcore.RFIRQF1, rfcore.RFIRQF1_TXDONE)
			return nil
		}
		if time.Since(deadline) >= 0 {
			return ErrTxTimeout
		}
		time.Sleep(10 * time.Microsecond)
	}
}

// waitRxSettled waits for RSSI_VALID after the receiver is turned on.
// If it never shows up the following assessments fail and SendPacket
// reports ErrChannelBusy.
func (d *Device) waitRxSettled() {
	deadline := time.Now().Add(rxSettleTimeout)
	for d.err == nil {
		if d.read(rfcore.RSSISTAT)&rfcore.RSSISTAT_RSSI_VALID != 0 {
			return
		}
		if time.Since(deadline) >= 0 {
			d.warn("tx:rssi-not-valid")
			return
		}
		time.Sleep(10 * time.Microsecond)
	}
}
