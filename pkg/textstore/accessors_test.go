package textstore_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"unicode/utf16"

	"github.com/stackvity/textstore/internal/testutil"
	"github.com/stackvity/textstore/pkg/textstore"
	"github.com/stackvity/textstore/pkg/textstore/encoding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const sampleText = "Grüße, café €\r\nzweite Zeile\n"

var allStates = []textstore.State{
	textstore.StateFileNarrow,
	textstore.StateFileWide,
	textstore.StateBufferNarrow,
	textstore.StateBufferWide,
}

// handleIn returns a handle holding text in the given state, starting from a
// cp1252 source file.
func handleIn(t *testing.T, state textstore.State, text string, opts textstore.Options, dir string) *textstore.Handle {
	t.Helper()
	h, err := textstore.NewNarrowFile(writeSource(t, dir, cp1252(t, text)), opts)
	require.NoError(t, err)
	switch state {
	case textstore.StateFileWide:
		_, err = h.AsFileWide()
	case textstore.StateBufferNarrow:
		_, err = h.AsBufferNarrow()
	case textstore.StateBufferWide:
		_, err = h.AsBufferWide()
	}
	require.NoError(t, err)
	require.Equal(t, state, h.State())
	return h
}

func TestAccessors_AllTransitions(t *testing.T) {
	for _, from := range allStates {
		for _, to := range allStates {
			t.Run(from.String()+"->"+to.String(), func(t *testing.T) {
				opts, dir, _ := newTestOptions(t)
				h := handleIn(t, from, sampleText, opts, dir)
				defer h.Close()

				switch to {
				case textstore.StateFileNarrow:
					path, err := h.AsFileNarrow()
					require.NoError(t, err)
					assert.Equal(t, cp1252(t, sampleText), testutil.ReadFile(t, path))
				case textstore.StateFileWide:
					path, err := h.AsFileWide()
					require.NoError(t, err)
					assert.Equal(t, testutil.WideFileBytes(sampleText), testutil.ReadFile(t, path))
				case textstore.StateBufferNarrow:
					data, err := h.AsBufferNarrow()
					require.NoError(t, err)
					assert.Equal(t, cp1252(t, sampleText), data)
				case textstore.StateBufferWide:
					data, err := h.AsBufferWide()
					require.NoError(t, err)
					assert.Equal(t, utf16.Encode([]rune(sampleText)), data)
				}
				assert.Equal(t, to, h.State())
				assert.Len(t, testutil.FilesWithPrefix(t, dir, textstore.DefaultTempPrefix), expectedTemps(from, to),
					"no orphaned temporary files")
			})
		}
	}
}

// expectedTemps is the number of handle-owned files left after reaching to
// from a narrow source file without overwrite: the first file transition
// redirects the source to a temp file, and later ones replace it in place.
func expectedTemps(from, to textstore.State) int {
	if from == textstore.StateFileWide || to == textstore.StateFileWide {
		return 1
	}
	if from == textstore.StateFileNarrow && to == textstore.StateFileNarrow {
		return 0
	}
	if to == textstore.StateFileNarrow {
		return 1
	}
	return 0
}

func TestAccessors_RoundTrip(t *testing.T) {
	opts, dir, _ := newTestOptions(t)
	original := cp1252(t, sampleText)
	src := writeSource(t, dir, original)
	h, err := textstore.NewNarrowFile(src, opts)
	require.NoError(t, err)

	wide, err := h.AsBufferWide()
	require.NoError(t, err)
	assert.Equal(t, sampleText, string(utf16.Decode(wide)))

	_, err = h.AsFileWide()
	require.NoError(t, err)
	narrow, err := h.AsBufferNarrow()
	require.NoError(t, err)
	assert.Equal(t, original, narrow)

	path, err := h.AsFileNarrow()
	require.NoError(t, err)
	assert.Equal(t, original, testutil.ReadFile(t, path))
	assert.Equal(t, original, testutil.ReadFile(t, src), "caller's file is never modified")
}

func TestAccessors_MatchingStateIsNoOp(t *testing.T) {
	opts, dir, _ := newTestOptions(t)
	src := writeSource(t, dir, []byte("abc"))
	namer := &testutil.MockNamer{}
	tmp := filepath.Join(dir, "_TSwide")
	namer.On("NewTempFile").Return(tmp, nil).Once()
	opts.Namer = namer

	h, err := textstore.NewNarrowFile(src, opts)
	require.NoError(t, err)

	path, err := h.AsFileNarrow()
	require.NoError(t, err)
	assert.Equal(t, src, path)
	namer.AssertNotCalled(t, "NewTempFile")

	p1, err := h.AsFileWide()
	require.NoError(t, err)
	before, err := os.Stat(p1)
	require.NoError(t, err)

	p2, err := h.AsFileWide()
	require.NoError(t, err)
	after, err := os.Stat(p2)
	require.NoError(t, err)

	assert.Equal(t, p1, p2)
	assert.Equal(t, before.ModTime(), after.ModTime())
	namer.AssertNumberOfCalls(t, "NewTempFile", 1)

	b1, err := h.AsBufferWide()
	require.NoError(t, err)
	b2, err := h.AsBufferWide()
	require.NoError(t, err)
	assert.Same(t, &b1[0], &b2[0], "buffer accessor must return the live buffer")
}

func TestAccessors_OwnershipWithoutOverwrite(t *testing.T) {
	opts, dir, _ := newTestOptions(t)
	original := cp1252(t, sampleText)
	src := writeSource(t, dir, original)
	h, err := textstore.NewNarrowFile(src, opts)
	require.NoError(t, err)

	first, err := h.AsFileWide()
	require.NoError(t, err)
	assert.NotEqual(t, src, first)
	assert.Equal(t, first, h.Source())
	assert.Equal(t, original, testutil.ReadFile(t, src))

	second, err := h.AsFileNarrow()
	require.NoError(t, err)
	assert.Equal(t, first, second, "later transitions overwrite the handle-owned file")
	assert.Equal(t, original, testutil.ReadFile(t, second))
	assert.Len(t, testutil.FilesWithPrefix(t, dir, textstore.DefaultTempPrefix), 1)
}

func TestAccessors_OwnershipWithOverwrite(t *testing.T) {
	opts, dir, _ := newTestOptions(t)
	opts.Overwrite = true
	src := writeSource(t, dir, cp1252(t, sampleText))
	h, err := textstore.NewNarrowFile(src, opts)
	require.NoError(t, err)

	path, err := h.AsFileWide()
	require.NoError(t, err)
	assert.Equal(t, src, path)
	assert.Equal(t, testutil.WideFileBytes(sampleText), testutil.ReadFile(t, src))
	assert.Empty(t, testutil.FilesWithPrefix(t, dir, textstore.DefaultTempPrefix))
}

func TestAccessors_ZeroOutputRemovesTemp(t *testing.T) {
	opts, dir, _ := newTestOptions(t)
	src := writeSource(t, dir, []byte("some text"))
	codec := &testutil.MockCodec{}
	codec.On("NarrowToWide", mock.Anything).Return([]uint16{}, nil)
	opts.Codec = codec

	h, err := textstore.NewNarrowFile(src, opts)
	require.NoError(t, err)

	_, err = h.AsFileWide()
	assert.ErrorIs(t, err, textstore.ErrConversionFailed)
	assert.Equal(t, textstore.StateFileNarrow, h.State())
	assert.Equal(t, src, h.Source())
	assert.Empty(t, testutil.FilesWithPrefix(t, dir, textstore.DefaultTempPrefix), "temp file must be removed")
	assert.Equal(t, []byte("some text"), testutil.ReadFile(t, src))

	_, err = h.AsBufferWide()
	assert.ErrorIs(t, err, textstore.ErrConversionFailed)
	assert.Equal(t, textstore.StateFileNarrow, h.State())
}

func TestAccessors_PendingDestIsNotReused(t *testing.T) {
	opts, dir, _ := newTestOptions(t)
	src := writeSource(t, dir, cp1252(t, sampleText))
	h, err := textstore.NewNarrowFile(src, opts)
	require.NoError(t, err)
	defer h.Close()

	dest, err := h.DestPath()
	require.NoError(t, err)
	testutil.CreateDummyFile(t, dest, []byte("consumer edit"))

	for _, fn := range []func() (string, error){h.AsFileWide, h.AsFileNarrow} {
		_, err = fn()
		assert.ErrorIs(t, err, textstore.ErrStateMismatch)
	}
	_, err = h.TranscodeToUTF8(false)
	assert.ErrorIs(t, err, textstore.ErrStateMismatch)

	assert.Equal(t, textstore.StateFileNarrow, h.State())
	assert.Equal(t, src, h.Source())
	assert.Equal(t, []byte("consumer edit"), testutil.ReadFile(t, dest), "the consumer's file must survive")

	// Buffer accessors do not stage files and leave the destination alone.
	_, err = h.AsBufferWide()
	require.NoError(t, err)
	assert.Equal(t, []byte("consumer edit"), testutil.ReadFile(t, dest))

	require.NoError(t, h.DiscardDest())
	assert.NoFileExists(t, dest)
	path, err := h.AsFileWide()
	require.NoError(t, err)
	assert.Equal(t, testutil.WideFileBytes(sampleText), testutil.ReadFile(t, path))
}

// retainingCodec keeps every narrow input it is given.
type retainingCodec struct {
	encoding.Codec
	kept [][]byte
}

func (c *retainingCodec) NarrowToWide(src []byte) ([]uint16, error) {
	c.kept = append(c.kept, src)
	return c.Codec.NarrowToWide(src)
}

func TestAccessors_CustomCodecMayRetainInput(t *testing.T) {
	opts, dir, _ := newTestOptions(t)
	conv, err := encoding.NewConverter(1252)
	require.NoError(t, err)
	codec := &retainingCodec{Codec: conv}
	opts.Codec = codec

	content := cp1252(t, sampleText)
	h, err := textstore.NewNarrowFile(writeSource(t, dir, content), opts)
	require.NoError(t, err)

	wide, err := h.AsBufferWide()
	require.NoError(t, err)
	assert.Equal(t, utf16.Encode([]rune(sampleText)), wide)
	require.Len(t, codec.kept, 1)
	// The file mapping is gone by now; the retained slice must still be readable.
	assert.Equal(t, content, codec.kept[0])
}

func TestAccessors_CodecErrorIsConversionFailure(t *testing.T) {
	opts, dir, _ := newTestOptions(t)
	codec := &testutil.MockCodec{}
	codecErr := errors.Join(encoding.ErrConversionFailed, errors.New("bad sequence"))
	codec.On("NarrowToWide", mock.Anything).Return(nil, codecErr)
	opts.Codec = codec

	h, err := textstore.NewNarrowFile(writeSource(t, dir, []byte("x")), opts)
	require.NoError(t, err)

	_, err = h.AsBufferWide()
	assert.ErrorIs(t, err, textstore.ErrConversionFailed)
	assert.ErrorIs(t, err, encoding.ErrConversionFailed)
	codec.AssertExpectations(t)
}

func TestAccessors_PanicBecomesAllocationFailure(t *testing.T) {
	opts, dir, logBuf := newTestOptions(t)
	codec := &testutil.MockCodec{}
	codec.On("NarrowToWide", mock.Anything).Run(func(mock.Arguments) {
		panic("runtime: out of memory")
	}).Return(nil, nil)
	opts.Codec = codec

	h, err := textstore.NewNarrowFile(writeSource(t, dir, []byte("x")), opts)
	require.NoError(t, err)

	_, err = h.AsFileWide()
	assert.ErrorIs(t, err, textstore.ErrAllocationFailure)
	assert.Equal(t, textstore.StateFileNarrow, h.State())
	assert.Empty(t, testutil.FilesWithPrefix(t, dir, textstore.DefaultTempPrefix))
	assert.Contains(t, logBuf.String(), "Panic recovered during conversion")
}

func TestAccessors_MaxBufferBytes(t *testing.T) {
	opts, dir, _ := newTestOptions(t)
	opts.MaxBufferBytes = 16
	h, err := textstore.NewNarrowFile(writeSource(t, dir, []byte("twenty bytes of txt!")), opts)
	require.NoError(t, err)

	_, err = h.AsBufferWide()
	assert.ErrorIs(t, err, textstore.ErrAllocationFailure)
	_, err = h.AsBufferNarrow()
	assert.ErrorIs(t, err, textstore.ErrAllocationFailure)
	assert.Equal(t, textstore.StateFileNarrow, h.State())
}

func TestAccessors_EmptyData(t *testing.T) {
	opts, dir, _ := newTestOptions(t)
	h, err := textstore.NewNarrowFile(writeSource(t, dir, nil), opts)
	require.NoError(t, err)

	_, err = h.AsFileWide()
	assert.ErrorIs(t, err, textstore.ErrConversionFailed, "an empty wide file is reported as a failed conversion")
	assert.Equal(t, textstore.StateFileNarrow, h.State())

	wide, err := h.AsBufferWide()
	require.NoError(t, err)
	assert.Empty(t, wide)

	_, err = h.AsFileWide()
	assert.ErrorIs(t, err, textstore.ErrConversionFailed)
	assert.Equal(t, textstore.StateBufferWide, h.State())

	path, err := h.AsFileNarrow()
	require.NoError(t, err)
	assert.Empty(t, testutil.ReadFile(t, path))
}

func TestAccessors_WideFileByteOrder(t *testing.T) {
	tests := []struct {
		name    string
		content []byte
	}{
		{"little endian bom", []byte{0xFF, 0xFE, 'h', 0, 'i', 0}},
		{"big endian bom", []byte{0xFE, 0xFF, 0, 'h', 0, 'i'}},
		{"no bom", []byte{'h', 0, 'i', 0}},
		{"odd trailing byte", []byte{0xFF, 0xFE, 'h', 0, 'i', 0, 'x'}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, dir, _ := newTestOptions(t)
			h, err := textstore.NewWideFile(writeSource(t, dir, tt.content), opts)
			require.NoError(t, err)

			wide, err := h.AsBufferWide()
			require.NoError(t, err)
			assert.Equal(t, []uint16{'h', 'i'}, wide)
		})
	}
}

func TestAccessors_UTF8NarrowSkipsBOM(t *testing.T) {
	opts, dir, _ := newTestOptions(t)
	opts.Codepage = encoding.CodepageUTF8
	h, err := textstore.NewNarrowFile(writeSource(t, dir, []byte("\xEF\xBB\xBFhé")), opts)
	require.NoError(t, err)

	wide, err := h.AsBufferWide()
	require.NoError(t, err)
	assert.Equal(t, utf16.Encode([]rune("hé")), wide)
}

func TestAccessors_UTF8BufferSkipsBOM(t *testing.T) {
	opts, dir, _ := newTestOptions(t)
	opts.Codepage = encoding.CodepageUTF8
	h, err := textstore.NewFile(writeSource(t, dir, []byte("\xEF\xBB\xBFabc")), opts)
	require.NoError(t, err)
	require.Equal(t, encoding.CodepageUTF8, h.ContentCodepage())

	narrow, err := h.AsBufferNarrow()
	require.NoError(t, err)
	assert.Equal(t, []byte("\xEF\xBB\xBFabc"), narrow, "narrow buffers keep the file bytes")

	wide, err := h.AsBufferWide()
	require.NoError(t, err)
	assert.Equal(t, utf16.Encode([]rune("abc")), wide, "file and buffer sources decode alike")
}

func TestAccessors_LossyConversionReported(t *testing.T) {
	opts, dir, logBuf := newTestOptions(t)
	hooks := &testutil.MockHooks{}
	hooks.On("OnTransition", mock.Anything).Return(nil)
	opts.Hooks = hooks

	h := handleIn(t, textstore.StateBufferWide, "x", opts, dir)
	require.NoError(t, h.ReplaceBufferWide(utf16.Encode([]rune("aΩb"))))

	path, err := h.AsFileNarrow()
	require.NoError(t, err)
	assert.Equal(t, []byte("a?b"), testutil.ReadFile(t, path))

	last := hooks.Calls[len(hooks.Calls)-1].Arguments.Get(0).(textstore.TransitionEvent)
	assert.True(t, last.Lossy)
	assert.Equal(t, textstore.StateBufferWide, last.From)
	assert.Equal(t, textstore.StateFileNarrow, last.To)
	assert.Equal(t, h.ID(), last.HandleID)
	assert.Contains(t, logBuf.String(), "substituted unrepresentable characters")
}

func TestAccessors_HookErrorIsLogged(t *testing.T) {
	opts, dir, logBuf := newTestOptions(t)
	hooks := &testutil.MockHooks{}
	hooks.On("OnTransition", mock.Anything).Return(errors.New("hook failed"))
	opts.Hooks = hooks

	h, err := textstore.NewNarrowFile(writeSource(t, dir, []byte("abc")), opts)
	require.NoError(t, err)
	_, err = h.AsBufferNarrow()
	require.NoError(t, err, "hook errors do not fail the transition")
	assert.Contains(t, logBuf.String(), "OnTransition hook returned an error")
	hooks.AssertNumberOfCalls(t, "OnTransition", 1)
}
