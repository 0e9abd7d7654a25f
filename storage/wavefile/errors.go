package wavefile

import (
	"errors"
	"fmt"
)

var (
	// ErrBadMagic is returned when a file does not start with the array file magic.
	ErrBadMagic = errors.New("wavefile: not an array file")

	// ErrUnsupportedFlags is returned for flag bits this version does not understand.
	ErrUnsupportedFlags = errors.New("wavefile: unsupported flags")

	// ErrChecksum is the sentinel behind ChecksumMismatchError.
	ErrChecksum = errors.New("wavefile: checksum mismatch")

	// ErrBodyTooLarge is returned when a body exceeds the reader's size limit.
	ErrBodyTooLarge = errors.New("wavefile: body too large")

	// ErrInvalidLength is returned for a declared waveform length below 1.
	ErrInvalidLength = errors.New("wavefile: invalid waveform length")
)

// ChecksumMismatchError is returned when the stored checksum does not match the body.
type ChecksumMismatchError struct {
	Expected uint32
	Actual   uint32
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("wavefile: checksum mismatch: expected 0x%08x, got 0x%08x", e.Expected, e.Actual)
}

// Unwrap returns ErrChecksum.
func (e *ChecksumMismatchError) Unwrap() error {
	return ErrChecksum
}
