package textstore

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"time"

	"github.com/stackvity/textstore/pkg/textstore/encoding"
	"github.com/stackvity/textstore/pkg/textstore/mapped"
)

// AsFileNarrow returns the path of a file holding the data in the handle's
// codepage, converting if needed. When the handle already is a narrow file
// the current source path is returned without any I/O.
func (h *Handle) AsFileNarrow() (path string, err error) {
	if h.closed {
		return "", ErrClosed
	}
	if _, ok := h.current.(fileNarrow); ok {
		return h.files.Source(), nil
	}
	if err := h.checkNoPendingDest(); err != nil {
		return "", err
	}
	start := time.Now()
	defer h.recoverAllocation(&err, true)

	var narrow []byte
	lossy := false
	switch cur := h.current.(type) {
	case fileWide:
		err = h.withWideFile(func(units []uint16) error {
			var convErr error
			narrow, lossy, convErr = h.toNarrow(units)
			return convErr
		})
	case bufferWide:
		narrow, lossy, err = h.toNarrow(cur.data)
	case bufferNarrow:
		narrow = cur.data
	}
	if err != nil {
		return "", err
	}

	if err := h.stageFile(narrow); err != nil {
		return "", err
	}
	h.advance(fileNarrow{}, len(narrow), lossy, start)
	return h.files.Source(), nil
}

// AsFileWide returns the path of a UTF-16LE file (with an FF FE byte-order
// mark) holding the data, converting if needed.
//
// Empty data cannot be turned into a wide file: the result is
// ErrConversionFailed, as a zero-length conversion is indistinguishable from
// a failed one.
func (h *Handle) AsFileWide() (path string, err error) {
	if h.closed {
		return "", ErrClosed
	}
	if _, ok := h.current.(fileWide); ok {
		return h.files.Source(), nil
	}
	if err := h.checkNoPendingDest(); err != nil {
		return "", err
	}
	start := time.Now()
	defer h.recoverAllocation(&err, true)

	var wide []uint16
	lossy := false
	switch cur := h.current.(type) {
	case fileNarrow:
		err = h.withNarrowFile(func(content []byte) error {
			var convErr error
			wide, lossy, convErr = h.toWide(content)
			return convErr
		})
	case bufferNarrow:
		wide, lossy, err = h.toWide(cur.data)
	case bufferWide:
		wide = cur.data
	}
	if err == nil && len(wide) == 0 {
		err = fmt.Errorf("%w: empty data cannot be stored as a wide file", ErrConversionFailed)
	}
	if err != nil {
		return "", err
	}

	if err := h.stageFile(encodeWideFile(wide)); err != nil {
		return "", err
	}
	h.advance(fileWide{}, len(wide), lossy, start)
	return h.files.Source(), nil
}

// AsBufferNarrow returns the data as bytes in the handle's codepage,
// converting if needed. The returned slice is owned by the handle and stays
// valid until the next transition, ReplaceBufferNarrow or Close.
func (h *Handle) AsBufferNarrow() (data []byte, err error) {
	if h.closed {
		return nil, ErrClosed
	}
	if cur, ok := h.current.(bufferNarrow); ok {
		return cur.data, nil
	}
	start := time.Now()
	defer h.recoverAllocation(&err, false)

	var narrow []byte
	lossy := false
	switch cur := h.current.(type) {
	case fileNarrow:
		err = mapped.ReadAll(h.files.Source(), func(content []byte) error {
			if allocErr := h.reserve(len(content), 1, 0); allocErr != nil {
				return allocErr
			}
			narrow = bytes.Clone(content)
			if narrow == nil {
				narrow = []byte{}
			}
			return nil
		})
		err = ioError(err)
	case fileWide:
		err = h.withWideFile(func(units []uint16) error {
			var convErr error
			narrow, lossy, convErr = h.toNarrow(units)
			return convErr
		})
	case bufferWide:
		narrow, lossy, err = h.toNarrow(cur.data)
	}
	if err != nil {
		return nil, err
	}

	h.advance(bufferNarrow{data: narrow}, len(narrow), lossy, start)
	return narrow, nil
}

// AsBufferWide returns the data as UTF-16 code units, converting if needed.
// The returned slice is owned by the handle and stays valid until the next
// transition, ReplaceBufferWide or Close.
func (h *Handle) AsBufferWide() (data []uint16, err error) {
	if h.closed {
		return nil, ErrClosed
	}
	if cur, ok := h.current.(bufferWide); ok {
		return cur.data, nil
	}
	start := time.Now()
	defer h.recoverAllocation(&err, false)

	var wide []uint16
	lossy := false
	switch cur := h.current.(type) {
	case fileNarrow:
		err = h.withNarrowFile(func(content []byte) error {
			var convErr error
			wide, lossy, convErr = h.toWide(content)
			return convErr
		})
	case fileWide:
		err = h.withWideFile(func(units []uint16) error {
			wide = units
			return nil
		})
	case bufferNarrow:
		wide, lossy, err = h.toWide(cur.data)
	}
	if err != nil {
		return nil, err
	}

	h.advance(bufferWide{data: wide}, len(wide), lossy, start)
	return wide, nil
}

// advance records a successful transition. The previous payload, and with it
// any buffer it carried, is dropped only here.
func (h *Handle) advance(next payload, units int, lossy bool, start time.Time) {
	from := h.current.state()
	h.current = next
	event := TransitionEvent{
		HandleID: h.id,
		From:     from,
		To:       next.state(),
		Source:   h.files.Source(),
		Units:    units,
		Lossy:    lossy,
		Duration: time.Since(start),
	}
	h.logger.Debug("Representation changed",
		slog.String("from", from.String()), slog.String("to", event.To.String()),
		slog.String("source", event.Source), slog.Int("units", units), slog.Bool("lossy", lossy),
		slog.Duration("duration", event.Duration))
	if lossy {
		h.logger.Warn("Conversion substituted unrepresentable characters",
			slog.String("to", event.To.String()), slog.Int("codepage", int(h.contentCP)))
	}
	if hookErr := h.hooks.OnTransition(event); hookErr != nil {
		h.logger.Warn("OnTransition hook returned an error", slog.String("error", hookErr.Error()))
	}
}

// checkNoPendingDest refuses to stage a file while a consumer's DestPath is
// outstanding, so the consumer's version is never reused or deleted.
func (h *Handle) checkNoPendingDest() error {
	if p := h.files.Pending(); p != "" {
		return fmt.Errorf("%w: destination %s is pending, commit or discard it first", ErrStateMismatch, p)
	}
	return nil
}

// stageFile writes data to a new temporary file and promotes it to the
// source. On failure the temporary file is removed and nothing is renamed.
func (h *Handle) stageFile(data []byte) error {
	tmp, err := h.files.Acquire()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	if err := writeFile(tmp, data); err != nil {
		h.files.Abandon()
		return fmt.Errorf("%w: write %s: %w", ErrIOFailure, tmp, err)
	}
	if err := h.files.Promote(); err != nil {
		h.files.Abandon()
		return fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	return nil
}

// withNarrowFile maps the current narrow source file for the duration of fn.
// A custom codec gets a copy: it may keep its input after the mapping is gone.
func (h *Handle) withNarrowFile(fn func(content []byte) error) error {
	return ioError(mapped.ReadAll(h.files.Source(), func(content []byte) error {
		if h.customCodec {
			if err := h.reserve(len(content), 1, 0); err != nil {
				return err
			}
			content = bytes.Clone(content)
		}
		return fn(content)
	}))
}

// withWideFile maps the current wide source file and hands its code units
// to fn. FF FE (or no mark) means little-endian, FE FF big-endian; an odd
// trailing byte is ignored.
func (h *Handle) withWideFile(fn func(units []uint16) error) error {
	return ioError(mapped.ReadAll(h.files.Source(), func(content []byte) error {
		var order binary.ByteOrder = binary.LittleEndian
		switch u, n := encoding.DetectBOM(content); u {
		case encoding.UnicodingUTF16LE:
			content = content[n:]
		case encoding.UnicodingUTF16BE:
			content = content[n:]
			order = binary.BigEndian
		}
		count := len(content) / wideUnitBytes
		if err := h.reserve(count, wideUnitBytes, 0); err != nil {
			return err
		}
		units := make([]uint16, count)
		for i := range units {
			units[i] = order.Uint16(content[i*wideUnitBytes:])
		}
		return fn(units)
	}))
}

// toWide converts narrow data with the handle's codec. A UTF-8 byte-order
// mark is not part of UTF-8 narrow content, whether it comes from a file or
// a buffer.
func (h *Handle) toWide(narrow []byte) ([]uint16, bool, error) {
	if h.contentCP == encoding.CodepageUTF8 {
		if u, n := encoding.DetectBOM(narrow); u == encoding.UnicodingUTF8 {
			narrow = narrow[n:]
		}
	}
	if len(narrow) == 0 {
		return []uint16{}, false, nil
	}
	if err := h.reserve(len(narrow), wideUnitBytes, wideSlackBytes); err != nil {
		return nil, false, err
	}
	wide, err := h.codec.NarrowToWide(narrow)
	if err == nil && len(wide) == 0 {
		err = encoding.ErrConversionFailed
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: %d narrow bytes: %w", ErrConversionFailed, len(narrow), err)
	}
	return wide, h.lastLossy(), nil
}

// toNarrow converts wide data with the handle's codec.
func (h *Handle) toNarrow(wide []uint16) ([]byte, bool, error) {
	if len(wide) == 0 {
		return []byte{}, false, nil
	}
	if err := h.reserve(len(wide), narrowBytesPerUnit, 0); err != nil {
		return nil, false, err
	}
	narrow, err := h.codec.WideToNarrow(wide)
	if err == nil && len(narrow) == 0 {
		err = encoding.ErrConversionFailed
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: %d wide units: %w", ErrConversionFailed, len(wide), err)
	}
	return narrow, h.lastLossy(), nil
}

func (h *Handle) lastLossy() bool {
	if l, ok := h.codec.(interface{ LastLossy() bool }); ok {
		return l.LastLossy()
	}
	return false
}

// reserve checks that a destination of count*width+slack bytes can be allocated.
func (h *Handle) reserve(count, width, slack int) error {
	if count > (math.MaxInt-slack)/width {
		return fmt.Errorf("%w: destination for %d units overflows", ErrAllocationFailure, count)
	}
	size := int64(count*width + slack)
	if h.maxBuffer > 0 && size > h.maxBuffer {
		return fmt.Errorf("%w: destination of %d bytes exceeds limit of %d", ErrAllocationFailure, size, h.maxBuffer)
	}
	return nil
}

// recoverAllocation turns a panic raised while producing a new representation
// into ErrAllocationFailure. The handle state is untouched because advance
// only runs after the new data exists. staging is set by the file accessors,
// whose half-written temporary file is removed.
func (h *Handle) recoverAllocation(err *error, staging bool) {
	if r := recover(); r != nil {
		if staging {
			h.files.Abandon()
		}
		h.logger.Error("Panic recovered during conversion", slog.Any("panicValue", r))
		*err = fmt.Errorf("%w: %v", ErrAllocationFailure, r)
	}
}

// ioError wraps failures of the mapped layer with ErrIOFailure, leaving
// errors that already carry a textstore sentinel alone.
func ioError(err error) error {
	if err == nil || errors.Is(err, ErrAllocationFailure) || errors.Is(err, ErrConversionFailed) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrIOFailure, err)
}

// encodeWideFile renders units as an FF FE marked UTF-16LE file.
func encodeWideFile(units []uint16) []byte {
	out := make([]byte, 0, len(units)*wideUnitBytes+2)
	out = append(out, encoding.BOM(encoding.UnicodingUTF16LE)...)
	for _, u := range units {
		out = binary.LittleEndian.AppendUint16(out, u)
	}
	return out
}

// writeFile replaces the content of the (already created) temporary file.
func writeFile(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	_, err = f.Write(data)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	return err
}
