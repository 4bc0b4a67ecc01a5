package jack

import (
	"errors"
	"fmt"
)

// CodeInvalidArgument is returned by status-code operations that rejected
// their arguments before calling the native library.
const CodeInvalidArgument = -1

// InvalidPortName is returned by the port naming operations for a port handle
// that is nil, invalidated or stale.
const InvalidPortName = "invalid-port"

var (
	// Argument errors, detected before the native boundary.
	ErrInvalidHandle  = errors.New("jack: invalid handle")
	ErrInvalidPattern = errors.New("jack: invalid search pattern")
	ErrUnknownFlag    = errors.New("jack: unknown flag")
	ErrNotAudioPort   = errors.New("jack: port is not an audio port")
	ErrWrongDirection = errors.New("jack: port has the wrong direction for this transfer")
	ErrFrameCount     = errors.New("jack: frame count exceeds the slice length")
	ErrNativeBuffer   = errors.New("jack: native library returned no port buffer")
	ErrNilNative      = errors.New("jack: no native library")

	// Resource-state errors raised by audio slices and pools.
	ErrOutOfRange      = errors.New("jack: index out of range")
	ErrUnderflow       = errors.New("jack: sequential access past the end of the slice")
	ErrExpired         = errors.New("jack: audio slice has expired")
	ErrNotTransferable = errors.New("jack: audio slice is not backed by pool memory")
	ErrPoolExhausted   = errors.New("jack: buffer pool exhausted")
	ErrPoolBusy        = errors.New("jack: buffer pool still has buffers in use")
	ErrPoolClosed      = errors.New("jack: buffer pool is closed")
)

// IndexError describes an index outside [0, Len).
type IndexError struct {
	Index int
	Len   int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("jack: index %d out of range [0, %d)", e.Index, e.Len)
}

func (e *IndexError) Unwrap() error {
	return ErrOutOfRange
}
