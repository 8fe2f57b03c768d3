package rfcore

import "strconv"

// Strobe is an immediate strobe command written to RFST. The CSMA/CA strobe
// processor only latches an immediate strobe reliably when it is written
// twice in a row.
type Strobe uint8

const (
	ISRXON    Strobe = 0xE3
	ISTXON    Strobe = 0xE9
	ISTXONCCA Strobe = 0xEA
	ISFLUSHRX Strobe = 0xED
	ISFLUSHTX Strobe = 0xEE
	ISRFOFF   Strobe = 0xEF
)

// StrobeRepeat is how many times each strobe must be written to RFST.
const StrobeRepeat = 2

func (s Strobe) String() (str string) {
	switch s {
	case ISRXON:
		str = "ISRXON"
	case ISTXON:
		str = "ISTXON"
	case ISTXONCCA:
		str = "ISTXONCCA"
	case ISFLUSHRX:
		str = "ISFLUSHRX"
	case ISFLUSHTX:
		str = "ISFLUSHTX"
	case ISRFOFF:
		str = "ISRFOFF"
	default:
		str = "Strobe(0x" + strconv.FormatUint(uint64(s), 16) + ")"
	}
	return str
}

// IsValid reports whether s is one of the strobes the driver issues.
func (s Strobe) IsValid() bool {
	switch s {
	case ISRXON, ISTXON, ISTXONCCA, ISFLUSHRX, ISFLUSHTX, ISRFOFF:
		return true
	}
	return false
}
