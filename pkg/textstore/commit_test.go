package textstore_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"unicode/utf16"

	"github.com/stackvity/textstore/internal/testutil"
	"github.com/stackvity/textstore/pkg/textstore"
	"github.com/stackvity/textstore/pkg/textstore/encoding"
	"github.com/stackvity/textstore/pkg/textstore/transcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestCommitFile_UnchangedKeepsSource(t *testing.T) {
	opts, dir, _ := newTestOptions(t)
	src := writeSource(t, dir, []byte("original"))
	h, err := textstore.NewNarrowFile(src, opts)
	require.NoError(t, err)

	dst, err := h.DestPath()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(dst, []byte("edited but not counted"), 0o644))

	require.NoError(t, h.CommitFile())
	assert.Equal(t, src, h.Source())
	assert.Equal(t, []byte("original"), testutil.ReadFile(t, src))
	assert.NoFileExists(t, dst)
	assert.Empty(t, testutil.FilesWithPrefix(t, dir, textstore.DefaultTempPrefix))
}

func TestCommitFile_ChangedRedirectsThenOverwrites(t *testing.T) {
	opts, dir, _ := newTestOptions(t)
	src := writeSource(t, dir, []byte("v0"))
	h, err := textstore.NewNarrowFile(src, opts)
	require.NoError(t, err)

	dst, err := h.DestPath()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(dst, []byte("v1"), 0o644))
	h.AddChanges(1)
	assert.True(t, h.Dirty())

	require.NoError(t, h.CommitFile())
	assert.False(t, h.Dirty())
	assert.Equal(t, dst, h.Source())
	assert.Equal(t, []byte("v0"), testutil.ReadFile(t, src), "first commit never touches the caller's file")

	dst2, err := h.DestPath()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(dst2, []byte("v2"), 0o644))
	h.AddChanges(2)
	require.NoError(t, h.CommitFile())

	assert.Equal(t, dst, h.Source(), "later commits replace the handle-owned file")
	assert.Equal(t, []byte("v2"), testutil.ReadFile(t, dst))
	assert.NoFileExists(t, dst2)
	assert.Equal(t, 3, h.Changes())
}

func TestCommitFile_OverwriteReplacesSource(t *testing.T) {
	opts, dir, _ := newTestOptions(t)
	opts.Overwrite = true
	src := writeSource(t, dir, []byte("v0"))
	h, err := textstore.NewNarrowFile(src, opts)
	require.NoError(t, err)

	dst, err := h.DestPath()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(dst, []byte("v1"), 0o644))
	h.AddChanges(1)
	require.NoError(t, h.CommitFile())

	assert.Equal(t, src, h.Source())
	assert.Equal(t, []byte("v1"), testutil.ReadFile(t, src))
	assert.Empty(t, testutil.FilesWithPrefix(t, dir, textstore.DefaultTempPrefix))
}

func TestCommitFileAs_ChangesEncoding(t *testing.T) {
	opts, dir, _ := newTestOptions(t)
	h, err := textstore.NewNarrowFile(writeSource(t, dir, []byte("abc")), opts)
	require.NoError(t, err)

	assert.ErrorIs(t, h.CommitFileAs("utf-32"), textstore.ErrConfigValidation)

	require.NoError(t, h.CommitFileAs(textstore.EncodingWide))
	assert.Equal(t, textstore.StateFileNarrow, h.State(), "no change, no state change")

	dst, err := h.DestPath()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(dst, testutil.WideFileBytes("xyz"), 0o644))
	h.AddChanges(1)
	require.NoError(t, h.CommitFileAs(textstore.EncodingWide))
	assert.Equal(t, textstore.StateFileWide, h.State())

	data, err := h.AsBufferNarrow()
	require.NoError(t, err)
	assert.Equal(t, []byte("xyz"), data)
}

func TestCommit_StateMismatch(t *testing.T) {
	opts, dir, _ := newTestOptions(t)
	h, err := textstore.NewNarrowFile(writeSource(t, dir, []byte("abc")), opts)
	require.NoError(t, err)

	assert.ErrorIs(t, h.CommitBuffer(), textstore.ErrStateMismatch)

	_, err = h.AsBufferNarrow()
	require.NoError(t, err)
	assert.ErrorIs(t, h.CommitFile(), textstore.ErrStateMismatch)
	assert.ErrorIs(t, h.CommitFileAs(textstore.EncodingNarrow), textstore.ErrStateMismatch)
}

func TestCommitBuffer_ValidatesReplacement(t *testing.T) {
	opts, dir, _ := newTestOptions(t)
	hooks := &testutil.MockHooks{}
	hooks.On("OnTransition", mock.Anything).Return(nil)
	hooks.On("OnCommit", mock.Anything).Return(errors.New("commit hook failed"))
	opts.Hooks = hooks
	h, err := textstore.NewNarrowFile(writeSource(t, dir, []byte("abc")), opts)
	require.NoError(t, err)

	_, err = h.AsBufferNarrow()
	require.NoError(t, err)
	require.NoError(t, h.ReplaceBufferNarrow([]byte("abd")))
	h.AddChanges(1)
	require.NoError(t, h.CommitBuffer())
	assert.False(t, h.Dirty())

	hooks.AssertCalled(t, "OnCommit", mock.MatchedBy(func(e textstore.CommitEvent) bool {
		return e.Changed && e.State == textstore.StateBufferNarrow && e.HandleID == h.ID()
	}))

	path, err := h.AsFileNarrow()
	require.NoError(t, err)
	assert.Equal(t, []byte("abd"), testutil.ReadFile(t, path))
}

func TestTranscodeToUTF8_FromNarrowFile(t *testing.T) {
	opts, dir, _ := newTestOptions(t)
	src := writeSource(t, dir, cp1252(t, sampleText))
	h, err := textstore.NewNarrowFile(src, opts)
	require.NoError(t, err)

	var chunks int
	path, err := h.TranscodeToUTF8(false, transcode.WithProgress(func(transcode.ChunkStats) { chunks++ }))
	require.NoError(t, err)

	assert.Equal(t, []byte(sampleText), testutil.ReadFile(t, path))
	assert.Equal(t, path, h.Source())
	assert.NotEqual(t, src, path)
	assert.Equal(t, textstore.StateFileNarrow, h.State())
	assert.Equal(t, encoding.CodepageUTF8, h.ContentCodepage())
	assert.Equal(t, encoding.Codepage(1252), h.Codepage())
	assert.Equal(t, 1, chunks)
	assert.False(t, h.Dirty())

	wide, err := h.AsBufferWide()
	require.NoError(t, err)
	assert.Equal(t, utf16.Encode([]rune(sampleText)), wide, "later conversions read the data as UTF-8")
}

func TestTranscodeToUTF8_FromWideBuffer(t *testing.T) {
	opts, dir, _ := newTestOptions(t)
	h := handleIn(t, textstore.StateBufferWide, "x", opts, dir)
	text := "emoji 😀 survives\n"
	require.NoError(t, h.ReplaceBufferWide(utf16.Encode([]rune(text))))

	path, err := h.TranscodeToUTF8(true)
	require.NoError(t, err)
	assert.Equal(t, append([]byte{0xEF, 0xBB, 0xBF}, text...), testutil.ReadFile(t, path))
	assert.Equal(t, textstore.StateFileNarrow, h.State())

	data, err := h.AsBufferNarrow()
	require.NoError(t, err)
	assert.Equal(t, []byte("\xEF\xBB\xBF"+text), data, "narrow buffers keep the file bytes")
}

func TestTranscodeToUTF8_FailureKeepsState(t *testing.T) {
	opts, dir, _ := newTestOptions(t)
	src := writeSource(t, dir, []byte("abc"))
	h, err := textstore.NewNarrowFile(src, opts)
	require.NoError(t, err)
	require.NoError(t, os.Remove(src))

	_, err = h.TranscodeToUTF8(false)
	assert.ErrorIs(t, err, textstore.ErrIOFailure)
	assert.Equal(t, textstore.StateFileNarrow, h.State())
	assert.Equal(t, encoding.Codepage(1252), h.ContentCodepage())
	assert.Empty(t, testutil.FilesWithPrefix(t, dir, textstore.DefaultTempPrefix))
}

func TestTranscodeToUTF8_BufferFailureKeepsBuffer(t *testing.T) {
	opts, dir, _ := newTestOptions(t)
	src := writeSource(t, dir, cp1252(t, sampleText))
	scratch := filepath.Join(dir, textstore.DefaultTempPrefix+"scratch")
	testutil.CreateDummyFile(t, scratch, nil)
	namer := &testutil.MockNamer{}
	namer.On("NewTempFile").Return(scratch, nil).Once()
	namer.On("NewTempFile").Return("", errors.New("no space left on device")).Once()
	opts.Namer = namer

	h, err := textstore.NewNarrowFile(src, opts)
	require.NoError(t, err)
	before, err := h.AsBufferNarrow()
	require.NoError(t, err)
	before = bytes.Clone(before)

	_, err = h.TranscodeToUTF8(false)
	assert.ErrorIs(t, err, textstore.ErrIOFailure)
	namer.AssertExpectations(t)

	assert.Equal(t, textstore.StateBufferNarrow, h.State())
	assert.Equal(t, encoding.Codepage(1252), h.ContentCodepage())
	data, err := h.AsBufferNarrow()
	require.NoError(t, err)
	assert.Equal(t, before, data)
	assert.Equal(t, src, h.Source())
	assert.Equal(t, cp1252(t, sampleText), testutil.ReadFile(t, src))
	assert.Empty(t, testutil.FilesWithPrefix(t, dir, textstore.DefaultTempPrefix), "the scratch file must be removed")
}

func TestTranscodeToUTF8_FromNarrowBufferRemovesScratch(t *testing.T) {
	opts, dir, _ := newTestOptions(t)
	h := handleIn(t, textstore.StateBufferNarrow, sampleText, opts, dir)
	defer h.Close()

	path, err := h.TranscodeToUTF8(false)
	require.NoError(t, err)
	assert.Equal(t, []byte(sampleText), testutil.ReadFile(t, path))
	assert.Equal(t, []string{path}, testutil.FilesWithPrefix(t, dir, textstore.DefaultTempPrefix), "only the result remains")
}

func TestTranscodeToUTF8_UnmarkedWideFile(t *testing.T) {
	opts, dir, _ := newTestOptions(t)
	h, err := textstore.NewWideFile(writeSource(t, dir, []byte{'h', 0, 'i', 0, '\n', 0}), opts)
	require.NoError(t, err)

	path, err := h.TranscodeToUTF8(false)
	require.NoError(t, err)
	assert.Equal(t, []byte("hi\n"), testutil.ReadFile(t, path), "wide files without a mark are little-endian")

	wide, err := h.AsBufferWide()
	require.NoError(t, err)
	assert.Equal(t, utf16.Encode([]rune("hi\n")), wide)
}
