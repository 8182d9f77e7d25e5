package textstore

import "github.com/stackvity/textstore/pkg/textstore/tempfile"

// Defaults applied by the constructors when Options leaves a field zero.
const (
	// DefaultTempPrefix is the file name prefix of temporary artifacts.
	DefaultTempPrefix = tempfile.DefaultPrefix
	// DefaultMaxBufferBytes of 0 means conversions are not size-limited.
	DefaultMaxBufferBytes = 0
)

// Destination sizing for conversions: narrow->wide reserves
// len*wideUnitBytes+wideSlackBytes bytes, wide->narrow len*narrowBytesPerUnit.
const (
	wideUnitBytes      = 2
	wideSlackBytes     = 6
	narrowBytesPerUnit = 3
)
