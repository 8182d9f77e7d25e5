package textstore

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/stackvity/textstore/pkg/textstore/encoding"
	"github.com/stackvity/textstore/pkg/textstore/transcode"
)

// CommitFile validates a new version a consumer wrote to DestPath. If the
// change counter moved since the last commit the file becomes the source
// (replacing it when overwriting is enabled); otherwise the file is deleted and
// the source is kept byte for byte. The handle must be in a file state.
func (h *Handle) CommitFile() error {
	if h.closed {
		return ErrClosed
	}
	return h.commitFile(h.current.state().Encoding)
}

// CommitFileAs is CommitFile for a consumer that left the new file in the
// given encoding. The state only changes when a change is committed.
func (h *Handle) CommitFileAs(enc Encoding) error {
	if h.closed {
		return ErrClosed
	}
	if enc != EncodingNarrow && enc != EncodingWide {
		return fmt.Errorf("%w: unknown encoding %q", ErrConfigValidation, enc)
	}
	return h.commitFile(enc)
}

func (h *Handle) commitFile(enc Encoding) error {
	if h.current.state().Representation != RepresentationFile {
		return fmt.Errorf("%w: commit file in state %s", ErrStateMismatch, h.current.state())
	}

	changed := h.Dirty()
	if err := h.files.Commit(changed); err != nil {
		return fmt.Errorf("%w: commit: %w", ErrIOFailure, err)
	}
	if changed {
		h.validated = h.changes
		h.current = fileOf(enc)
	}

	event := CommitEvent{HandleID: h.id, State: h.current.state(), Source: h.files.Source(), Changed: changed}
	h.logger.Debug("File committed", slog.Bool("changed", changed), slog.String("source", event.Source), slog.String("state", event.State.String()))
	if hookErr := h.hooks.OnCommit(event); hookErr != nil {
		h.logger.Warn("OnCommit hook returned an error", slog.String("error", hookErr.Error()))
	}
	return nil
}

// CommitBuffer validates an in-situ buffer replacement. The handle must be in
// a buffer state.
func (h *Handle) CommitBuffer() error {
	if h.closed {
		return ErrClosed
	}
	if h.current.state().Representation != RepresentationBuffer {
		return fmt.Errorf("%w: commit buffer in state %s", ErrStateMismatch, h.current.state())
	}
	changed := h.Dirty()
	h.validated = h.changes

	event := CommitEvent{HandleID: h.id, State: h.current.state(), Source: h.files.Source(), Changed: changed}
	h.logger.Debug("Buffer committed", slog.Bool("changed", changed), slog.String("state", event.State.String()))
	if hookErr := h.hooks.OnCommit(event); hookErr != nil {
		h.logger.Warn("OnCommit hook returned an error", slog.String("error", hookErr.Error()))
	}
	return nil
}

// TranscodeToUTF8 rewrites the data as a UTF-8 file and returns its path.
// Files are streamed through the transcoder directly (a wide file keeps every
// character); buffers are first written to a scratch file of their own
// encoding, which is removed afterwards. Afterwards the handle is a narrow
// file whose content codepage is UTF-8. On failure the handle is unchanged.
func (h *Handle) TranscodeToUTF8(writeBOM bool, opts ...transcode.Option) (path string, err error) {
	if h.closed {
		return "", ErrClosed
	}
	if err := h.checkNoPendingDest(); err != nil {
		return "", err
	}
	start := time.Now()
	codec := h.codec
	if h.contentCP != encoding.CodepageUTF8 && !h.customCodec {
		conv, convErr := encoding.NewConverter(encoding.CodepageUTF8)
		if convErr != nil {
			return "", fmt.Errorf("%w: %w", ErrConversionFailed, convErr)
		}
		codec = conv
	}

	src := h.files.Source()
	switch cur := h.current.(type) {
	case bufferNarrow:
		src, err = h.writeScratch(cur.data)
	case bufferWide:
		src, err = h.writeScratch(encodeWideFile(cur.data))
	case fileWide:
		// Wide files without a byte-order mark are little-endian.
		opts = append([]transcode.Option{transcode.WithDefaultUnicoding(encoding.UnicodingUTF16LE)}, opts...)
	}
	if err != nil {
		return "", err
	}
	if src != h.files.Source() {
		defer h.removeScratch(src)
	}

	dst, err := h.DestPath()
	if err != nil {
		return "", err
	}
	opts = append([]transcode.Option{transcode.WithLogger(h.logger.Handler())}, opts...)
	stats, err := transcode.ToUTF8(h.contentCP, src, dst, writeBOM, opts...)
	if err != nil {
		h.files.Abandon()
		if errors.Is(err, encoding.ErrConversionFailed) || errors.Is(err, encoding.ErrUnsupportedCodepage) {
			return "", fmt.Errorf("%w: %w", ErrConversionFailed, err)
		}
		return "", fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	if err := h.files.Promote(); err != nil {
		h.files.Abandon()
		return "", fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	h.changes++
	h.validated = h.changes

	h.codec = codec
	h.contentCP = encoding.CodepageUTF8
	h.advance(fileNarrow{}, int(stats.BytesOut), false, start)
	return h.files.Source(), nil
}

// writeScratch stores data in a temporary file the manager does not track.
func (h *Handle) writeScratch(data []byte) (string, error) {
	path, err := h.namer.NewTempFile()
	if err != nil {
		return "", fmt.Errorf("%w: create scratch file: %w", ErrIOFailure, err)
	}
	if err := writeFile(path, data); err != nil {
		h.removeScratch(path)
		return "", fmt.Errorf("%w: write scratch file %s: %w", ErrIOFailure, path, err)
	}
	return path, nil
}

func (h *Handle) removeScratch(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		h.logger.Warn("Failed to remove scratch file", slog.String("path", path), slog.String("error", err.Error()))
	}
}
