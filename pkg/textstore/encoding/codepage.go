// --- START OF FINAL REVISED FILE pkg/textstore/encoding/codepage.go ---
package encoding

import (
	"errors"
	"fmt"
	"strings"

	xenc "golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/encoding/unicode"
)

// Codepage is a Windows-style integer identifier selecting a narrow (8-bit or
// multi-byte) text encoding table. A Codepage is fixed for the lifetime of a
// text handle and is used for every narrow<->wide conversion it performs.
type Codepage int

// Well-known codepage identifiers.
const (
	CodepageUTF16LE Codepage = 1200
	CodepageUTF16BE Codepage = 1201
	CodepageWindows Codepage = 1252 // Western European (Windows), the default narrow codepage.
	CodepageUTF8    Codepage = 65001
)

// DefaultCodepage is used when no codepage is configured or detected.
const DefaultCodepage = CodepageWindows

var (
	// ErrUnsupportedCodepage indicates that a codepage identifier has no narrow encoding table.
	// UTF-16 codepages (1200/1201) are wide encodings and are reported with this error too.
	ErrUnsupportedCodepage = errors.New("unsupported codepage")

	// ErrConversionFailed indicates that a codec produced no output for non-empty input.
	// This is the only signature of a codec failure that callers at this layer can detect.
	ErrConversionFailed = errors.New("conversion produced no output")
)

type codepageEntry struct {
	name string // IANA / WHATWG label
	enc  xenc.Encoding
}

var codepageTable = map[Codepage]codepageEntry{
	437:   {"ibm437", charmap.CodePage437},
	850:   {"ibm850", charmap.CodePage850},
	852:   {"ibm852", charmap.CodePage852},
	855:   {"ibm855", charmap.CodePage855},
	858:   {"ibm00858", charmap.CodePage858},
	860:   {"ibm860", charmap.CodePage860},
	862:   {"ibm862", charmap.CodePage862},
	863:   {"ibm863", charmap.CodePage863},
	865:   {"ibm865", charmap.CodePage865},
	866:   {"ibm866", charmap.CodePage866},
	874:   {"windows-874", charmap.Windows874},
	932:   {"shift_jis", japanese.ShiftJIS},
	936:   {"gbk", simplifiedchinese.GBK},
	949:   {"euc-kr", korean.EUCKR},
	950:   {"big5", traditionalchinese.Big5},
	1250:  {"windows-1250", charmap.Windows1250},
	1251:  {"windows-1251", charmap.Windows1251},
	1252:  {"windows-1252", charmap.Windows1252},
	1253:  {"windows-1253", charmap.Windows1253},
	1254:  {"windows-1254", charmap.Windows1254},
	1255:  {"windows-1255", charmap.Windows1255},
	1256:  {"windows-1256", charmap.Windows1256},
	1257:  {"windows-1257", charmap.Windows1257},
	1258:  {"windows-1258", charmap.Windows1258},
	10000: {"macintosh", charmap.Macintosh},
	20866: {"koi8-r", charmap.KOI8R},
	21866: {"koi8-u", charmap.KOI8U},
	28591: {"iso-8859-1", charmap.ISO8859_1},
	28592: {"iso-8859-2", charmap.ISO8859_2},
	28593: {"iso-8859-3", charmap.ISO8859_3},
	28594: {"iso-8859-4", charmap.ISO8859_4},
	28595: {"iso-8859-5", charmap.ISO8859_5},
	28596: {"iso-8859-6", charmap.ISO8859_6},
	28597: {"iso-8859-7", charmap.ISO8859_7},
	28598: {"iso-8859-8", charmap.ISO8859_8},
	28599: {"iso-8859-9", charmap.ISO8859_9},
	28603: {"iso-8859-13", charmap.ISO8859_13},
	28605: {"iso-8859-15", charmap.ISO8859_15},
	50220: {"iso-2022-jp", japanese.ISO2022JP},
	51932: {"euc-jp", japanese.EUCJP},
	54936: {"gb18030", simplifiedchinese.GB18030},
	65001: {"utf-8", unicode.UTF8},
}

// Lookup returns the x/text encoding for a narrow codepage.
// The wide UTF-16 codepages and unknown identifiers return ErrUnsupportedCodepage.
func Lookup(cp Codepage) (xenc.Encoding, error) {
	entry, ok := codepageTable[cp]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedCodepage, int(cp))
	}
	return entry.enc, nil
}

// Name returns the IANA label of a codepage, or "" if it is not in the table.
func Name(cp Codepage) string {
	switch cp {
	case CodepageUTF16LE:
		return "utf-16le"
	case CodepageUTF16BE:
		return "utf-16be"
	}
	return codepageTable[cp].name
}

// ByName maps an IANA label (case-insensitive) back to a codepage.
func ByName(name string) (Codepage, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return 0, false
	}
	switch name {
	case "utf-16le":
		return CodepageUTF16LE, true
	case "utf-16be":
		return CodepageUTF16BE, true
	case "latin1", "iso8859-1":
		return 28591, true
	case "sjis", "windows-31j":
		return 932, true
	case "gb2312":
		return 936, true
	}
	for cp, entry := range codepageTable {
		if entry.name == name {
			return cp, true
		}
	}
	return 0, false
}

// IsSupported reports whether cp can be used as a narrow codepage.
func IsSupported(cp Codepage) bool {
	_, ok := codepageTable[cp]
	return ok
}

// --- END OF FINAL REVISED FILE pkg/textstore/encoding/codepage.go ---
