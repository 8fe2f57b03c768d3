package cc2530

import (
	"errors"
	"fmt"
)

var (
	// ErrConfig is the parent of every configuration rejected by Init.
	ErrConfig             = errors.New("cc2530: unsupported radio configuration")
	ErrUnsupportedChannel = fmt.Errorf("%w: channel", ErrConfig)
	ErrUnsupportedPower   = fmt.Errorf("%w: tx power level", ErrConfig)

	ErrNotInitialized  = errors.New("cc2530: radio not initialized")
	ErrPayloadTooLarge = errors.New("cc2530: payload exceeds maximum frame size")
	// ErrChannelBusy is returned when clear channel assessment kept failing
	// for every attempt of the retry budget. The radio is left Off.
	ErrChannelBusy = errors.New("cc2530: channel busy, clear channel assessment retries exhausted")
	// ErrTxTimeout is returned when a transmission started but TXDONE never
	// showed up. The radio is left Off.
	ErrTxTimeout = errors.New("cc2530: timeout waiting for transmission to complete")
	// ErrTruncated accompanies a successful receive whose payload did not fit
	// in the caller's buffer. The bytes that were copied are valid.
	ErrTruncated = errors.New("cc2530: received payload truncated")
	// ErrBadFrame is returned when the RX FIFO held a frame that could not be
	// parsed. The frame is flushed.
	ErrBadFrame = errors.New("cc2530: malformed frame in rx fifo")
)
