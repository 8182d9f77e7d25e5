// --- START OF FINAL REVISED FILE pkg/textstore/tempfile/manager.go ---
package tempfile

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// DefaultPrefix is the file name prefix used for temporary artifacts.
const DefaultPrefix = "_TS"

// ErrNoPending indicates a commit was requested while no temporary file was staged.
var ErrNoPending = errors.New("no pending temporary file")

// Namer generates temporary file names. Implementations MUST create the
// file (empty) before returning its path, which is how collisions are avoided.
type Namer interface {
	NewTempFile() (string, error)
}

// DirNamer creates temporary files in Dir (os.TempDir() when empty) with
// names starting with Prefix (DefaultPrefix when empty).
type DirNamer struct {
	Dir    string
	Prefix string
}

// NewTempFile implements Namer.
func (n DirNamer) NewTempFile() (string, error) { // minimal comment
	prefix := n.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}
	f, err := os.CreateTemp(n.Dir, prefix+"*")
	if err != nil {
		return "", err
	}
	name := f.Name()
	if err := f.Close(); err != nil {
		_ = os.Remove(name)
		return "", err
	}
	return name, nil
}

// Manager tracks the authoritative source path of a piece of text, the
// temporary file staged for its next version, and whether committing may
// replace the source in place.
//
// The first committed version never touches the original file: the staged
// path simply becomes the source and overwriting is enabled from then on,
// because every later source is a file this Manager created itself.
type Manager struct {
	source    string
	overwrite bool
	pending   string
	namer     Namer
	logger    *slog.Logger
}

// NewManager creates a Manager for source. A nil namer uses DirNamer{}; a nil
// handler discards log output.
func NewManager(source string, overwrite bool, namer Namer, loggerHandler slog.Handler) *Manager {
	if namer == nil {
		namer = DirNamer{}
	}
	if loggerHandler == nil {
		loggerHandler = slog.NewTextHandler(io.Discard, nil)
	}
	return &Manager{
		source:    source,
		overwrite: overwrite,
		namer:     namer,
		logger:    slog.New(loggerHandler).With(slog.String("component", "tempfile")),
	}
}

// Source returns the current authoritative path.
func (m *Manager) Source() string { return m.source }

// Overwrite reports whether a commit replaces the source in place.
func (m *Manager) Overwrite() bool { return m.overwrite }

// Pending returns the staged temporary path, or "" if none.
func (m *Manager) Pending() string { return m.pending }

// Acquire returns the staged temporary path, creating one if needed.
// Repeated calls return the same path until Commit, Promote, Discard or Abandon.
func (m *Manager) Acquire() (string, error) {
	if m.pending != "" {
		return m.pending, nil
	}
	path, err := m.namer.NewTempFile()
	if err != nil {
		return "", fmt.Errorf("create temporary file: %w", err)
	}
	m.pending = path
	m.logger.Debug("Temporary file acquired", slog.String("temp_path", path))
	return path, nil
}

// Commit applies the staged file. When changed is false the staged file is
// deleted and the source is left untouched. When changed is true the staged
// file becomes the new source (see Promote).
func (m *Manager) Commit(changed bool) error {
	if !changed {
		m.Abandon()
		return nil
	}
	return m.Promote()
}

// Promote makes the staged file the authoritative source. With overwrite
// enabled the staged file is renamed over the source; otherwise the source is
// redirected to the staged path and overwrite is enabled for later commits.
//
// Failing to remove or replace the old source is logged, not returned: the
// new content already exists and is kept by redirecting the source to it.
// A staged file that is missing is an error and changes nothing.
func (m *Manager) Promote() error {
	if m.pending == "" {
		return ErrNoPending
	}
	if _, err := os.Stat(m.pending); err != nil {
		return fmt.Errorf("staged file %s: %w", m.pending, err)
	}

	if m.overwrite {
		if err := m.replace(m.pending, m.source); err != nil {
			m.logger.Warn("Could not replace source with staged file, redirecting source",
				slog.String("source", m.source), slog.String("temp_path", m.pending), slog.Any("error", err))
			m.source = m.pending
		} else {
			m.logger.Debug("Source replaced from staged file", slog.String("source", m.source))
		}
	} else {
		m.logger.Debug("Source redirected to staged file", slog.String("from", m.source), slog.String("to", m.pending))
		m.source = m.pending
		m.overwrite = true
	}
	m.pending = ""
	return nil
}

// replace moves staged over target. Rename replaces an existing target
// atomically on POSIX systems; elsewhere the old target is removed first.
func (m *Manager) replace(staged, target string) error {
	if err := os.Rename(staged, target); err == nil {
		return nil
	}
	if err := os.Remove(target); err != nil && !errors.Is(err, os.ErrNotExist) {
		m.logger.Warn("Failed to remove old source file", slog.String("path", target), slog.Any("error", err))
	}
	return os.Rename(staged, target)
}

// Abandon deletes the staged file, if any, and forgets it. Removal failures
// are logged.
func (m *Manager) Abandon() {
	if m.pending == "" {
		return
	}
	if err := os.Remove(m.pending); err != nil && !errors.Is(err, os.ErrNotExist) {
		m.logger.Warn("Failed to remove temporary file", slog.String("temp_path", m.pending), slog.Any("error", err))
	} else {
		m.logger.Debug("Temporary file removed", slog.String("temp_path", m.pending))
	}
	m.pending = ""
}

// Discard deletes the staged file, if any, and reports a removal failure.
func (m *Manager) Discard() error {
	if m.pending == "" {
		return nil
	}
	path := m.pending
	m.pending = ""
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove temporary file %s: %w", path, err)
	}
	return nil
}

// --- END OF FINAL REVISED FILE pkg/textstore/tempfile/manager.go ---
