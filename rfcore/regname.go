package rfcore

import "strconv"

var regNames = map[uint16]string{
	PAN_ID0:     "PAN_ID0",
	PAN_ID1:     "PAN_ID1",
	SHORT_ADDR0: "SHORT_ADDR0",
	SHORT_ADDR1: "SHORT_ADDR1",
	FRMFILT0:    "FRMFILT0",
	FRMFILT1:    "FRMFILT1",
	SRCMATCH:    "SRCMATCH",
	FRMCTRL0:    "FRMCTRL0",
	FRMCTRL1:    "FRMCTRL1",
	RXENABLE:    "RXENABLE",
	FREQCTRL:    "FREQCTRL",
	TXPOWER:     "TXPOWER",
	TXCTRL:      "TXCTRL",
	FSMSTAT0:    "FSMSTAT0",
	FSMSTAT1:    "FSMSTAT1",
	FIFOPCTRL:   "FIFOPCTRL",
	CCACTRL0:    "CCACTRL0",
	CCACTRL1:    "CCACTRL1",
	RSSI:        "RSSI",
	RSSISTAT:    "RSSISTAT",
	RXFIRST:     "RXFIRST",
	RXFIFOCNT:   "RXFIFOCNT",
	TXFIFOCNT:   "TXFIFOCNT",
	RFIRQM0:     "RFIRQM0",
	RFIRQM1:     "RFIRQM1",
	MDMCTRL0:    "MDMCTRL0",
	MDMCTRL1:    "MDMCTRL1",
	FSCAL1:      "FSCAL1",
	AGCCTRL1:    "AGCCTRL1",
	TXFILTCFG:   "TXFILTCFG",
	RFIRQF1:     "RFIRQF1",
	RFERRF:      "RFERRF",
	RFD:         "RFD",
	RFST:        "RFST",
	RFIRQF0:     "RFIRQF0",
}

// RegName returns the datasheet name of the register at addr, or its
// hexadecimal address if it is not a known RF core register.
func RegName(addr uint16) string {
	if name, ok := regNames[addr]; ok {
		return name
	}
	if addr >= EXT_ADDR0 && addr < EXT_ADDR0+8 {
		return "EXT_ADDR" + strconv.Itoa(int(addr-EXT_ADDR0))
	}
	return "0x" + strconv.FormatUint(uint64(addr), 16)
}
