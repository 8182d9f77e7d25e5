// Package transcode converts whole text files to UTF-8 without loading them
// through an intermediate wide representation. The source is memory-mapped
// and processed in chunks that always end on a line terminator, so neither a
// multi-byte sequence nor a CR LF pair is ever split across two conversions.
package transcode

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"golang.org/x/text/transform"

	"github.com/stackvity/textstore/pkg/textstore/encoding"
	"github.com/stackvity/textstore/pkg/textstore/mapped"
)

// MinChunkSize is the minimum number of source bytes converted per chunk.
// Chunks extend past this size up to the next line terminator.
const MinChunkSize = 128 * 1024

// writeBufferSize is the size of the buffered writer over the destination.
const writeBufferSize = 64 * 1024

var (
	// ErrIOFailure indicates the source could not be opened or mapped, or the
	// destination could not be created or written.
	ErrIOFailure = errors.New("transcode i/o failure")

	// ErrSameFile indicates the source and destination name the same file.
	ErrSameFile = errors.New("source and destination are the same file")
)

// Stats summarises a completed transcoding run.
type Stats struct {
	Unicoding encoding.Unicoding // format detected from the source BOM
	Chunks    int
	BytesIn   int64 // source bytes converted, excluding the BOM
	BytesOut  int64 // bytes written, including any BOM
}

// ChunkStats is reported to the progress callback after each chunk.
type ChunkStats struct {
	Index  int
	Offset int // source offset of the chunk
	In     int
	Out    int
}

// Option customises a ToUTF8 call.
type Option func(*config)

type config struct {
	minChunk int
	progress func(ChunkStats)
	logger   *slog.Logger
	fallback encoding.Unicoding
}

// WithMinChunkSize overrides MinChunkSize. Values below 1 are ignored.
func WithMinChunkSize(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.minChunk = n
		}
	}
}

// WithProgress registers a callback invoked after each converted chunk.
func WithProgress(fn func(ChunkStats)) Option {
	return func(c *config) { c.progress = fn }
}

// WithDefaultUnicoding decodes a source without a byte-order mark as u
// instead of the codepage. UnicodingNone restores the default.
func WithDefaultUnicoding(u encoding.Unicoding) Option {
	return func(c *config) { c.fallback = u }
}

// WithLogger sets the slog handler used for debug output.
func WithLogger(h slog.Handler) Option {
	return func(c *config) {
		if h != nil {
			c.logger = slog.New(h).With(slog.String("component", "transcode"))
		}
	}
}

// ToUTF8 converts the file at src to UTF-8 and writes it to dst, replacing
// any existing content. A leading byte-order mark selects UTF-8, UTF-16LE or
// UTF-16BE; without one the content is decoded with cp, or as the format
// given to WithDefaultUnicoding. The source BOM is
// never copied; a UTF-8 BOM is written first when writeBOM is set, also for
// an empty source.
//
// On failure dst may hold a partial result.
func ToUTF8(cp encoding.Codepage, src, dst string, writeBOM bool, opts ...Option) (Stats, error) {
	cfg := config{
		minChunk: MinChunkSize,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	if err := checkDistinct(src, dst); err != nil {
		return Stats{}, err
	}

	view, err := mapped.Open(src)
	if err != nil {
		return Stats{}, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	defer view.Close()

	content := view.Bytes()
	from, bomLen := encoding.DetectBOM(content)
	if from == encoding.UnicodingNone {
		from = cfg.fallback
	}
	dec, err := encoding.NewChunkDecoder(from, cp)
	if err != nil {
		return Stats{}, err
	}

	out, err := os.Create(dst)
	if err != nil {
		return Stats{}, fmt.Errorf("%w: create %s: %w", ErrIOFailure, dst, err)
	}
	stats, err := run(cfg, dec, from, content, bomLen, out, writeBOM)
	if closeErr := out.Close(); closeErr != nil && err == nil {
		err = fmt.Errorf("%w: close %s: %w", ErrIOFailure, dst, closeErr)
	}
	if err != nil {
		return stats, err
	}

	cfg.logger.Debug("Transcoded to UTF-8",
		slog.String("source", src), slog.String("dest", dst),
		slog.String("from", from.String()), slog.Int("codepage", int(cp)),
		slog.Int("chunks", stats.Chunks), slog.Int64("bytes_in", stats.BytesIn), slog.Int64("bytes_out", stats.BytesOut))
	return stats, nil
}

func run(cfg config, dec *encoding.ChunkDecoder, from encoding.Unicoding, content []byte, pos int, out io.Writer, writeBOM bool) (Stats, error) {
	stats := Stats{Unicoding: from}
	w := bufio.NewWriterSize(out, writeBufferSize)

	if writeBOM {
		n, err := encoding.WriteBOM(w, encoding.UnicodingUTF8)
		stats.BytesOut += int64(n)
		if err != nil {
			return stats, fmt.Errorf("%w: write BOM: %w", ErrIOFailure, err)
		}
	}

	buf := make([]byte, cfg.minChunk)
	for {
		end := chunkEnd(content, pos, from, cfg.minChunk)
		chunk := content[pos:end]
		if len(chunk) == 0 {
			break
		}
		if need := len(chunk) * 2; need > len(buf) {
			buf = make([]byte, need)
		}

		n, err := dec.Decode(buf, chunk)
		for errors.Is(err, transform.ErrShortDst) {
			buf = make([]byte, len(buf)*2)
			n, err = dec.Decode(buf, chunk)
		}
		if err != nil {
			return stats, fmt.Errorf("chunk %d at offset %d: %w", stats.Chunks, pos, err)
		}

		if _, err := w.Write(buf[:n]); err != nil {
			return stats, fmt.Errorf("%w: write chunk %d: %w", ErrIOFailure, stats.Chunks, err)
		}
		if cfg.progress != nil {
			cfg.progress(ChunkStats{Index: stats.Chunks, Offset: pos, In: len(chunk), Out: n})
		}
		stats.Chunks++
		stats.BytesIn += int64(len(chunk))
		stats.BytesOut += int64(n)
		pos = end
	}

	if err := w.Flush(); err != nil {
		return stats, fmt.Errorf("%w: flush: %w", ErrIOFailure, err)
	}
	return stats, nil
}

// chunkEnd returns the end offset of the chunk starting at pos: at least
// minChunk bytes (unit aligned), then up to and including the next CR, LF or
// CR LF pair, or the end of content.
func chunkEnd(content []byte, pos int, from encoding.Unicoding, minChunk int) int {
	size := from.UnitSize()
	if minChunk%size != 0 {
		minChunk += size - minChunk%size
	}
	end := pos + minChunk
	if end >= len(content) {
		return len(content)
	}
	for end+size <= len(content) {
		c := unitAt(content, end, from)
		end += size
		switch c {
		case '\n':
			return end
		case '\r':
			if end+size <= len(content) && unitAt(content, end, from) == '\n' {
				end += size
			}
			return end
		}
	}
	return len(content)
}

func unitAt(b []byte, i int, from encoding.Unicoding) uint16 {
	switch from {
	case encoding.UnicodingUTF16LE:
		return uint16(b[i]) | uint16(b[i+1])<<8
	case encoding.UnicodingUTF16BE:
		return uint16(b[i])<<8 | uint16(b[i+1])
	default:
		return uint16(b[i])
	}
}

// checkDistinct refuses to truncate the file being read.
func checkDistinct(src, dst string) error {
	dstInfo, err := os.Stat(dst)
	if err != nil {
		return nil // dst does not exist yet, or Create will report the problem
	}
	srcInfo, err := os.Stat(src)
	if err != nil {
		return nil // mapped.Open reports a missing source
	}
	if os.SameFile(srcInfo, dstInfo) {
		return fmt.Errorf("%w: %s", ErrSameFile, src)
	}
	return nil
}
