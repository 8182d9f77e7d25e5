// --- START OF FINAL REVISED FILE pkg/textstore/errors.go ---
package textstore

import "errors"

// --- Exported Error Variables ---
// Every error returned by a Handle wraps one of these, together with the
// underlying cause. Library users can check against them using errors.Is.

var (
	// ErrIOFailure indicates that a file could not be opened, sized, mapped,
	// created or written, or that a temporary file could not be obtained.
	// The handle's state is unchanged when this is returned from an accessor.
	ErrIOFailure = errors.New("text storage i/o failure")

	// ErrConversionFailed indicates that converting between narrow and wide
	// text produced no output for the given input. Codec errors wrapping
	// encoding.ErrConversionFailed are reported with this error too, so both
	// match with errors.Is.
	ErrConversionFailed = errors.New("text conversion failed")

	// ErrAllocationFailure indicates that the destination of a conversion could
	// not be allocated: its size overflows, exceeds Options.MaxBufferBytes, or
	// the runtime panicked while producing it.
	ErrAllocationFailure = errors.New("allocation failure")

	// ErrStateMismatch indicates an operation that requires a specific current
	// representation (for example replacing a wide buffer) was called in another one.
	ErrStateMismatch = errors.New("operation not valid in current state")

	// ErrClosed indicates the handle has been closed.
	ErrClosed = errors.New("text handle closed")

	// ErrConfigValidation indicates that the Options passed to a constructor
	// failed validation (empty path, unsupported codepage, negative limits).
	ErrConfigValidation = errors.New("invalid text handle options")
)

// --- END OF FINAL REVISED FILE pkg/textstore/errors.go ---
