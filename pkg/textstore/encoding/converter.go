// --- START OF FINAL REVISED FILE pkg/textstore/encoding/converter.go ---
package encoding

import (
	"errors"
	"fmt"
	"unicode/utf16"
	"unicode/utf8"

	xenc "golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const (
	// wideSlackBytes is the fixed slack added to the narrow->wide size estimate
	// (n * sizeof(wide unit) + 6 bytes).
	wideSlackBytes = 6
	// narrowExpansion is the worst case bytes-per-unit estimate for wide->narrow.
	// It covers every multi-byte codepage in the table except GB18030 4-byte
	// sequences, which are handled by growing the destination.
	narrowExpansion = 3
	// substituteByte replaces runes the target codepage cannot represent.
	substituteByte = '?'
)

// Codec converts between narrow codepage bytes and wide UTF-16 code units.
// Implementations must return ErrConversionFailed (possibly wrapped) when
// non-empty input produces no output.
type Codec interface {
	NarrowToWide(src []byte) ([]uint16, error)
	WideToNarrow(src []uint16) ([]byte, error)
}

// Converter is the default Codec, bound to a single codepage.
// A Converter is not safe for concurrent use: it records whether the last
// conversion had to substitute characters.
type Converter struct {
	cp    Codepage
	enc   xenc.Encoding
	lossy bool
}

// NewConverter creates a Converter for the given narrow codepage.
func NewConverter(cp Codepage) (*Converter, error) { // minimal comment
	enc, err := Lookup(cp)
	if err != nil {
		return nil, err
	}
	return &Converter{cp: cp, enc: enc}, nil
}

// Codepage returns the codepage the converter is bound to.
func (c *Converter) Codepage() Codepage { return c.cp }

// LastLossy reports whether the most recent conversion substituted characters.
// Known gap: a genuine U+FFFD in the source is indistinguishable from a substitution.
func (c *Converter) LastLossy() bool { return c.lossy }

// NarrowToWide implements Codec.
func (c *Converter) NarrowToWide(src []byte) ([]uint16, error) {
	out, lossy, err := c.NarrowToWideLossy(src)
	c.lossy = lossy
	return out, err
}

// WideToNarrow implements Codec.
func (c *Converter) WideToNarrow(src []uint16) ([]byte, error) {
	out, lossy, err := c.WideToNarrowLossy(src)
	c.lossy = lossy
	return out, err
}

// NarrowToWideLossy decodes codepage bytes into UTF-16 code units.
// The destination is allocated from a generous estimate (len*2+6 bytes of
// wide storage), filled, and then shrunk to the number of units produced.
// Undecodable bytes become U+FFFD and set lossy.
func (c *Converter) NarrowToWideLossy(src []byte) ([]uint16, bool, error) {
	if len(src) == 0 {
		return []uint16{}, false, nil
	}

	// Intermediate UTF-8: every narrow byte yields at most 3 UTF-8 bytes.
	scratch, err := transformAll(c.enc.NewDecoder(), make([]byte, len(src)*3+wideSlackBytes), src)
	if err != nil {
		return nil, false, fmt.Errorf("decode codepage %d: %w", int(c.cp), err)
	}

	lossy := false
	units := make([]uint16, 0, (len(src)*2+wideSlackBytes)/2)
	for len(scratch) > 0 {
		r, size := utf8.DecodeRune(scratch)
		if r == utf8.RuneError {
			lossy = true
		}
		units = utf16.AppendRune(units, r)
		scratch = scratch[size:]
	}
	if len(units) == 0 {
		return nil, lossy, fmt.Errorf("%w: codepage %d decoded %d bytes to nothing", ErrConversionFailed, int(c.cp), len(src))
	}
	return shrink(units), lossy, nil
}

// WideToNarrowLossy encodes UTF-16 code units into codepage bytes.
// The destination is allocated as len*3 bytes, filled, and shrunk to the
// bytes produced. Unpaired surrogates and runes the codepage cannot
// represent are written as '?' and set lossy.
func (c *Converter) WideToNarrowLossy(src []uint16) ([]byte, bool, error) {
	if len(src) == 0 {
		return []byte{}, false, nil
	}

	text, lossy := wideToUTF8(src)

	enc := c.enc.NewEncoder()
	dst := make([]byte, len(src)*narrowExpansion)
	nDst := 0
	for len(text) > 0 {
		n, nSrc, err := enc.Transform(dst[nDst:], text, true)
		nDst += n
		text = text[nSrc:]
		switch {
		case err == nil:
			// Transform consumed everything (atEOF).
		case errors.Is(err, transform.ErrShortDst):
			dst = double(dst, nDst)
		default:
			// The encoder stopped at a rune it cannot represent.
			_, size := utf8.DecodeRune(text)
			dst = grow(dst, nDst, 1)
			dst[nDst] = substituteByte
			nDst++
			text = text[size:]
			lossy = true
			enc.Reset()
		}
	}
	if nDst == 0 {
		return nil, lossy, fmt.Errorf("%w: codepage %d encoded %d units to nothing", ErrConversionFailed, int(c.cp), len(src))
	}
	return shrink(dst[:nDst]), lossy, nil
}

// wideToUTF8 converts UTF-16 units to UTF-8, replacing unpaired surrogates with U+FFFD.
func wideToUTF8(src []uint16) ([]byte, bool) {
	lossy := false
	out := make([]byte, 0, len(src)*3)
	for i := 0; i < len(src); i++ {
		r := rune(src[i])
		if utf16.IsSurrogate(r) {
			if i+1 < len(src) {
				if dec := utf16.DecodeRune(r, rune(src[i+1])); dec != utf8.RuneError {
					out = utf8.AppendRune(out, dec)
					i++
					continue
				}
			}
			r = utf8.RuneError
			lossy = true
		}
		out = utf8.AppendRune(out, r)
	}
	return out, lossy
}

// ChunkDecoder converts chunks of source text to UTF-8. It is the
// byte-oriented codec used by the streaming transcoder.
type ChunkDecoder struct {
	from Unicoding
	t    transform.Transformer
}

// NewChunkDecoder returns a decoder for text in the given Unicode format.
// For UnicodingNone the codepage selects the narrow encoding; for the
// Unicode formats it is ignored.
func NewChunkDecoder(from Unicoding, cp Codepage) (*ChunkDecoder, error) {
	var t transform.Transformer
	switch from {
	case UnicodingUTF8:
		t = unicode.UTF8.NewDecoder()
	case UnicodingUTF16LE:
		t = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder()
	case UnicodingUTF16BE:
		t = unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewDecoder()
	default:
		enc, err := Lookup(cp)
		if err != nil {
			return nil, err
		}
		t = enc.NewDecoder()
	}
	return &ChunkDecoder{from: from, t: t}, nil
}

// Decode converts one complete chunk into dst and returns the bytes written.
// It returns transform.ErrShortDst when dst cannot hold the whole chunk; the
// caller should grow dst and call Decode again with the same chunk.
func (d *ChunkDecoder) Decode(dst, src []byte) (int, error) {
	d.t.Reset()
	nDst, nSrc, err := d.t.Transform(dst, src, true)
	if err != nil {
		return nDst, err
	}
	if nSrc < len(src) {
		return nDst, transform.ErrShortDst
	}
	if nDst == 0 && len(src) > 0 {
		return 0, fmt.Errorf("%w: %s chunk of %d bytes", ErrConversionFailed, d.from, len(src))
	}
	return nDst, nil
}

// transformAll runs t over src with atEOF set, doubling dst on ErrShortDst.
func transformAll(t transform.Transformer, dst, src []byte) ([]byte, error) {
	t.Reset()
	nDst := 0
	for {
		n, nSrc, err := t.Transform(dst[nDst:], src, true)
		nDst += n
		src = src[nSrc:]
		if !errors.Is(err, transform.ErrShortDst) {
			return dst[:nDst], err
		}
		dst = double(dst, nDst)
	}
}

// double returns dst with its size doubled, keeping the first used bytes.
func double(dst []byte, used int) []byte {
	grown := make([]byte, len(dst)*2+utf8.UTFMax)
	copy(grown, dst[:used])
	return grown
}

// grow makes sure dst has at least need free bytes after used, doubling its size.
func grow(dst []byte, used, need int) []byte {
	if len(dst)-used >= need {
		return dst
	}
	size := len(dst) * 2
	if size < used+need {
		size = used + need
	}
	grown := make([]byte, size)
	copy(grown, dst[:used])
	return grown
}

// shrink returns s trimmed to its length, reallocating when a large part of
// the capacity would otherwise stay pinned.
func shrink[T byte | uint16](s []T) []T {
	if cap(s)-len(s) <= len(s)/4 {
		return s[:len(s):len(s)]
	}
	out := make([]T, len(s))
	copy(out, s)
	return out
}

// --- END OF FINAL REVISED FILE pkg/textstore/encoding/converter.go ---
