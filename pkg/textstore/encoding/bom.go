package encoding

import (
	"bytes"
	"io"
)

// Unicoding identifies the Unicode transformation format signalled by a
// byte-order mark, or UnicodingNone for content without one.
type Unicoding int

const (
	UnicodingNone Unicoding = iota
	UnicodingUTF8
	UnicodingUTF16LE
	UnicodingUTF16BE
)

func (u Unicoding) String() string {
	switch u {
	case UnicodingUTF8:
		return "utf-8"
	case UnicodingUTF16LE:
		return "utf-16le"
	case UnicodingUTF16BE:
		return "utf-16be"
	default:
		return "none"
	}
}

// UnitSize is the width in bytes of one code unit of the encoding.
func (u Unicoding) UnitSize() int {
	if u == UnicodingUTF16LE || u == UnicodingUTF16BE {
		return 2
	}
	return 1
}

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// BOM returns the byte-order mark written for u (nil for UnicodingNone).
// The returned slice is a copy and may be modified by the caller.
func BOM(u Unicoding) []byte {
	switch u {
	case UnicodingUTF8:
		return bytes.Clone(bomUTF8)
	case UnicodingUTF16LE:
		return bytes.Clone(bomUTF16LE)
	case UnicodingUTF16BE:
		return bytes.Clone(bomUTF16BE)
	}
	return nil
}

// DetectBOM inspects the leading bytes of content and returns the
// signalled encoding together with the BOM length in bytes.
func DetectBOM(content []byte) (Unicoding, int) {
	switch {
	case bytes.HasPrefix(content, bomUTF8):
		return UnicodingUTF8, len(bomUTF8)
	case bytes.HasPrefix(content, bomUTF16LE):
		return UnicodingUTF16LE, len(bomUTF16LE)
	case bytes.HasPrefix(content, bomUTF16BE):
		return UnicodingUTF16BE, len(bomUTF16BE)
	}
	return UnicodingNone, 0
}

// WriteBOM writes the byte-order mark for u and returns the number of bytes written.
func WriteBOM(w io.Writer, u Unicoding) (int, error) {
	bom := BOM(u)
	if len(bom) == 0 {
		return 0, nil
	}
	return w.Write(bom)
}
