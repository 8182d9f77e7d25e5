// --- START OF FINAL REVISED FILE pkg/textstore/types.go ---
package textstore

// Representation defines where the current data of a Handle lives.
type Representation string

// Constants representing the defined representations.
const (
	RepresentationFile   Representation = "file"
	RepresentationBuffer Representation = "buffer"
)

// Encoding defines the character width of the current data.
type Encoding string

// Constants representing the defined encodings.
const (
	// EncodingNarrow is text in the handle's codepage (bytes).
	EncodingNarrow Encoding = "narrow"
	// EncodingWide is UTF-16 text (16-bit code units).
	EncodingWide Encoding = "wide"
)

// State is the current representation and encoding of a Handle.
type State struct {
	Representation Representation
	Encoding       Encoding
}

// String returns the state as "representation/encoding", e.g. "file/wide".
func (s State) String() string {
	return string(s.Representation) + "/" + string(s.Encoding)
}

// Convenience values for the four states.
var (
	StateFileNarrow   = State{RepresentationFile, EncodingNarrow}
	StateFileWide     = State{RepresentationFile, EncodingWide}
	StateBufferNarrow = State{RepresentationBuffer, EncodingNarrow}
	StateBufferWide   = State{RepresentationBuffer, EncodingWide}
)

// payload is the current data of a Handle. Exactly one variant is live at a
// time and only buffer variants carry data, so a handle never holds both
// a narrow and a wide buffer.
type payload interface {
	state() State
}

// fileNarrow: data is the source file, in the handle's codepage.
type fileNarrow struct{}

// fileWide: data is the source file, UTF-16 with a byte-order mark.
type fileWide struct{}

type bufferNarrow struct{ data []byte }

type bufferWide struct{ data []uint16 }

func (fileNarrow) state() State   { return StateFileNarrow }
func (fileWide) state() State     { return StateFileWide }
func (bufferNarrow) state() State { return StateBufferNarrow }
func (bufferWide) state() State   { return StateBufferWide }

func fileOf(enc Encoding) payload {
	if enc == EncodingWide {
		return fileWide{}
	}
	return fileNarrow{}
}

// --- END OF FINAL REVISED FILE pkg/textstore/types.go ---
