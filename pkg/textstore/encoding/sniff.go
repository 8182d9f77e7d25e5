// --- START OF FINAL REVISED FILE pkg/textstore/encoding/sniff.go ---
package encoding

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/go-enry/go-enry/v2"
	"golang.org/x/net/html/charset"
)

const (
	// sniffLen is the number of bytes used by http.DetectContentType
	sniffLen = 512
	// checkLen is a buffer size used for null byte checks and declaration prescans.
	checkLen = 1024
	// Share of NUL bytes above which the head counts as binary.
	nullThreshold = 0.15 // 15%
)

// MIME types http.DetectContentType reports for text formats.
var knownTextMIMEPrefixes = map[string]bool{
	"text/":                  true,
	"application/json":       true,
	"application/xml":        true,
	"application/javascript": true,
	"application/yaml":       true,
	"application/csv":        true,
	"application/sql":        true,
	"application/rtf":        true,
	"image/svg+xml":          true,
}

// Structured-text suffixes such as application/ld+json.
var knownTextMIMESuffixes = map[string]bool{
	"+xml":  true,
	"+json": true,
}

// Sniffed describes the encoding detected for a piece of content.
type Sniffed struct {
	// Unicoding is the format signalled by a byte-order mark (UnicodingNone if absent).
	Unicoding Unicoding
	// BOMLen is the length of the byte-order mark in bytes.
	BOMLen int
	// Codepage is the narrow codepage to use when Unicoding is UnicodingNone or
	// UnicodingUTF8 (CodepageUTF8), or the UTF-16 codepage for wide content.
	Codepage Codepage
	// Certain is true when the result comes from a BOM rather than a guess.
	Certain bool
}

// IsWide reports whether the content is UTF-16.
func (s Sniffed) IsWide() bool {
	return s.Unicoding == UnicodingUTF16LE || s.Unicoding == UnicodingUTF16BE
}

// Sniff detects the encoding of content. A byte-order mark wins; otherwise
// an in-band HTML meta declaration or valid non-ASCII UTF-8
// selects the codepage, and everything else falls back to the given codepage.
// Pure ASCII always keeps the fallback since every table agrees on it.
func Sniff(content []byte, fallback Codepage) Sniffed {
	if u, n := DetectBOM(content); u != UnicodingNone {
		s := Sniffed{Unicoding: u, BOMLen: n, Certain: true}
		switch u {
		case UnicodingUTF8:
			s.Codepage = CodepageUTF8
		case UnicodingUTF16LE:
			s.Codepage = CodepageUTF16LE
		case UnicodingUTF16BE:
			s.Codepage = CodepageUTF16BE
		}
		return s
	}

	result := Sniffed{Unicoding: UnicodingNone, Codepage: fallback}
	head := content
	if len(head) > checkLen {
		head = head[:checkLen]
	}
	if isASCII(head) && !bytes.Contains(head, []byte("charset")) && !bytes.Contains(head, []byte("encoding=")) {
		return result
	}

	_, name, _ := charset.DetermineEncoding(head, "")
	if name == "windows-1252" {
		// DetermineEncoding's last resort, not a finding.
		return result
	}
	if name == "utf-8" && isASCII(head) {
		return result
	}
	if cp, ok := ByName(name); ok && IsSupported(cp) {
		result.Codepage = cp
	}
	return result
}

func isASCII(b []byte) bool {
	for _, c := range b {
		if c >= 0x80 {
			return false
		}
	}
	return true
}

func isMIMETextBased(contentType string) bool { // minimal comment
	mimeType := strings.SplitN(contentType, ";", 2)[0]
	mimeType = strings.TrimSpace(mimeType)

	if strings.HasPrefix(mimeType, "text/") {
		return true
	}
	if _, ok := knownTextMIMEPrefixes[mimeType]; ok {
		return true
	}
	for suffix := range knownTextMIMESuffixes {
		if strings.HasSuffix(mimeType, suffix) {
			return true
		}
	}
	// octet-stream is the sniffer's answer for unrecognised bytes; the NUL ratio decides.
	return mimeType == "application/octet-stream"
}

// IsBinary checks if the content is likely binary data. UTF-16 content with a
// byte-order mark is always text. Otherwise the MIME sniff
// (http.DetectContentType on the first 512 bytes) and the NUL ratio in the
// first 1024 bytes decide for the head; go-enry's heuristic covers the rest.
func IsBinary(content []byte) bool {
	contentLen := len(content)
	if contentLen == 0 {
		return false
	}
	if u, _ := DetectBOM(content); u != UnicodingNone {
		return false
	}

	// 1. MIME type check
	contentType := http.DetectContentType(content[:min(contentLen, sniffLen)])
	if !isMIMETextBased(contentType) {
		return true
	}

	// 2. Null byte check
	checkLimitNull := min(contentLen, checkLen)
	nullCount := bytes.Count(content[:checkLimitNull], []byte{0x00})
	if float64(nullCount)/float64(checkLimitNull) > nullThreshold {
		return true
	}

	// 3. Past the sampled head, go-enry's check (any NUL within its 8000 byte window) decides.
	if contentLen > checkLen {
		return enry.IsBinary(content[checkLen:])
	}
	return false
}

// --- END OF FINAL REVISED FILE pkg/textstore/encoding/sniff.go ---
