// Package rfcore contains the CC2530 RF core register map, immediate strobe
// opcodes and the operating constants used to drive the transceiver.
//
// All addresses are given in the 8051 XDATA address space. SFRs are mirrored
// into XDATA at SFR_XDATA_BASE so a single 16-bit address space covers every
// register the radio driver touches.
package rfcore

// RF core XREG addresses.
const (
	EXT_ADDR0   = 0x616A
	PAN_ID0     = 0x6172
	PAN_ID1     = 0x6173
	SHORT_ADDR0 = 0x6174
	SHORT_ADDR1 = 0x6175

	FRMFILT0  = 0x6180
	FRMFILT1  = 0x6181
	SRCMATCH  = 0x6182
	FRMCTRL0  = 0x6189
	FRMCTRL1  = 0x618A
	RXENABLE  = 0x618B
	FREQCTRL  = 0x618F
	TXPOWER   = 0x6190
	TXCTRL    = 0x6191
	FSMSTAT0  = 0x6192
	FSMSTAT1  = 0x6193
	FIFOPCTRL = 0x6194
	CCACTRL0  = 0x6196
	CCACTRL1  = 0x6197
	RSSI      = 0x6198
	RSSISTAT  = 0x6199
	RXFIRST   = 0x619A
	RXFIFOCNT = 0x619B
	TXFIFOCNT = 0x619C
	RFIRQM0   = 0x61A3
	RFIRQM1   = 0x61A4
	MDMCTRL0  = 0x61A8
	MDMCTRL1  = 0x61A9
	FSCAL1    = 0x61AE
	AGCCTRL1  = 0x61B2
	TXFILTCFG = 0x61FA
)

// SFR_XDATA_BASE is where SFR address 0x80 is mirrored in XDATA.
const SFR_XDATA_BASE = 0x7000

// SFR addresses as seen from XDATA.
const (
	RFIRQF1 = SFR_XDATA_BASE + 0x91
	RFERRF  = SFR_XDATA_BASE + 0xBF
	RFD     = SFR_XDATA_BASE + 0xD9
	RFST    = SFR_XDATA_BASE + 0xE1
	RFIRQF0 = SFR_XDATA_BASE + 0xE9
)

// Operating thresholds and reset values.
const (
	// RSSI_OFFSET is added to the raw RSSI reading to get dBm.
	RSSI_OFFSET = -76
	CORR_THR    = 0x14
	CCA_THR     = 0xF8

	TXFILTCFG_RESET_VALUE = 0x09
	AGCCTRL1_RECOMMENDED  = 0x15
	FSCAL1_RECOMMENDED    = 0x00
)

// FSMSTAT1 bits.
const (
	FSMSTAT1_RX_ACTIVE   = 1 << 0
	FSMSTAT1_TX_ACTIVE   = 1 << 1
	FSMSTAT1_LOCK_STATUS = 1 << 2
	FSMSTAT1_SAMPLED_CCA = 1 << 3
	FSMSTAT1_CCA         = 1 << 4
	FSMSTAT1_SFD         = 1 << 5
	FSMSTAT1_FIFOP       = 1 << 6
	FSMSTAT1_FIFO        = 1 << 7
)

// RFIRQF0 bits.
const (
	RFIRQF0_SFD            = 1 << 1
	RFIRQF0_FIFOP          = 1 << 2
	RFIRQF0_FRAME_ACCEPTED = 1 << 5
	RFIRQF0_RXPKTDONE      = 1 << 6
	RFIRQF0_RXMASKZERO     = 1 << 7
)

// RFIRQF1 bits.
const (
	RFIRQF1_TXACKDONE = 1 << 0
	RFIRQF1_TXDONE    = 1 << 1
	RFIRQF1_RFIDLE    = 1 << 2
)

// RFERRF bits.
const (
	RFERRF_NLOCK    = 1 << 0
	RFERRF_RXABO    = 1 << 1
	RFERRF_RXOVERF  = 1 << 2
	RFERRF_RXUNDERF = 1 << 3
	RFERRF_TXOVERF  = 1 << 4
	RFERRF_TXUNDERF = 1 << 5
)

// Misc register bits.
const (
	RSSISTAT_RSSI_VALID    = 1 << 0
	FRMFILT0_FRM_FILTER_EN = 1 << 0
	FRMFILT0_RESET_VALUE   = 0x0D
	FRMCTRL0_AUTOCRC       = 1 << 6
	FRMCTRL0_AUTOACK       = 1 << 5
	// RX FIFO appended status byte: CRC_OK flag and 7-bit correlation value.
	RXSTATUS_CRC_OK   = 1 << 7
	RXSTATUS_CORR_MSK = 0x7F
)

// Channel limits of the 2.4 GHz IEEE 802.15.4 band.
const (
	MinChannel = 11
	MaxChannel = 26
	// MaxTxPowerLevel is the highest accepted transmit power level.
	MaxTxPowerLevel = 31
)

// FreqCtrl returns the FREQCTRL value for an IEEE 802.15.4 channel.
// ok is false for channels outside [MinChannel, MaxChannel].
func FreqCtrl(channel uint16) (v uint8, ok bool) {
	if channel < MinChannel || channel > MaxChannel {
		return 0, false
	}
	// f = 2394 + FREQCTRL MHz and channel k sits at 2405 + 5(k-11) MHz.
	return uint8(11 + 5*(channel-MinChannel)), true
}

// Channel is the inverse of FreqCtrl. ok is false if v is not a channel center.
func Channel(v uint8) (channel uint16, ok bool) {
	if v < 11 || (v-11)%5 != 0 {
		return 0, false
	}
	channel = uint16(v-11)/5 + MinChannel
	return channel, channel <= MaxChannel
}

// txPowerTable holds TXPOWER values ordered from weakest (-22 dBm) to strongest (4.5 dBm).
var txPowerTable = [16]uint8{
	0x05, 0x15, 0x25, 0x35, 0x45, 0x55, 0x65, 0x75,
	0x85, 0x95, 0xA5, 0xB5, 0xC5, 0xD5, 0xE5, 0xF5,
}

// TxPowerReg maps a power level in 0..MaxTxPowerLevel onto the TXPOWER register.
// Two adjacent levels share a hardware setting; level 31 is full power.
func TxPowerReg(level uint16) (v uint8, ok bool) {
	if level > MaxTxPowerLevel {
		return 0, false
	}
	return txPowerTable[level/2], true
}
