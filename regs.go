package cc2530

import (
	"errors"
	"log/slog"

	"github.com/soypat/cc2530/rfcore"
)

// write stores value in the register at addr unless an earlier access of the
// current operation failed.
func (d *Device) write(addr uint16, value uint8) {
	if d.err != nil {
		return
	}
	err := d.bus.WriteReg(addr, value)
	if err != nil {
		d.err = errjoin(errors.New("cc2530: write "+rfcore.RegName(addr)), err)
		return
	}
	d.trace("write", slog.String("reg", rfcore.RegName(addr)), slog.Uint64("val", uint64(value)))
}

// read returns the register at addr. It returns 0 if the current operation
// already failed or the read fails.
func (d *Device) read(addr uint16) uint8 {
	if d.err != nil {
		return 0
	}
	v, err := d.bus.ReadReg(addr)
	if err != nil {
		d.err = errjoin(errors.New("cc2530: read "+rfcore.RegName(addr)), err)
		return 0
	}
	return v
}

// clearFlags clears mask in an interrupt flag register. RFIRQF0, RFIRQF1 and
// RFERRF bits are cleared by writing 0 and unaffected by writing 1, so no
// read is needed and flags raised concurrently by the radio are kept.
func (d *Device) clearFlags(addr uint16, mask uint8) {
	d.write(addr, ^mask)
}

// strobe issues an immediate strobe command. The strobe is written
// rfcore.StrobeRepeat times so that the command processor latches it.
func (d *Device) strobe(cmd rfcore.Strobe) {
	for i := 0; i < rfcore.StrobeRepeat && d.err == nil; i++ {
		d.write(rfcore.RFST, uint8(cmd))
	}
	d.trace("strobe", slog.String("cmd", cmd.String()))
}

// writeFIFO pushes buf into the TX FIFO through RFD.
func (d *Device) writeFIFO(buf []byte) {
	for _, b := range buf {
		if d.err != nil {
			return
		}
		d.write(rfcore.RFD, b)
	}
}

// readFIFO pops len(dst) bytes from the RX FIFO through RFD.
func (d *Device) readFIFO(dst []byte) {
	for i := range dst {
		dst[i] = d.read(rfcore.RFD)
	}
}
