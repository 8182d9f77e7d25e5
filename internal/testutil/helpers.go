// --- START OF NEW FILE internal/testutil/helpers.go ---
package testutil

import (
	"bytes"
	"encoding/binary"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf16"

	"github.com/stretchr/testify/require"
)

// CreateDummyFile creates a file with the given content at path, ensuring
// parent directories exist. It uses require assertions for test setup.
func CreateDummyFile(t *testing.T, path string, content []byte) {
	t.Helper()
	fullPath := filepath.Clean(path)
	dir := filepath.Dir(fullPath)
	err := os.MkdirAll(dir, 0o755)
	require.NoError(t, err, "Failed to create directory %s for dummy file", dir)
	err = os.WriteFile(fullPath, content, 0o644)
	require.NoError(t, err, "Failed to write dummy file %s", fullPath)
}

// CreateDummyDir ensures a directory exists at the given path, creating parents if needed.
func CreateDummyDir(t *testing.T, path string) {
	t.Helper()
	fullPath := filepath.Clean(path)
	err := os.MkdirAll(fullPath, 0o755)
	require.NoError(t, err, "Failed to create dummy directory %s", fullPath)
}

// ReadFile returns the content of path, failing the test on error.
func ReadFile(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err, "Failed to read %s", path)
	return data
}

// WideFileBytes renders text as an FF FE marked UTF-16LE file.
func WideFileBytes(text string) []byte {
	units := utf16.Encode([]rune(text))
	out := []byte{0xFF, 0xFE}
	for _, u := range units {
		out = binary.LittleEndian.AppendUint16(out, u)
	}
	return out
}

// FilesWithPrefix lists the files in dir whose names start with prefix.
func FilesWithPrefix(t *testing.T, dir, prefix string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), prefix) {
			names = append(names, filepath.Join(dir, e.Name()))
		}
	}
	return names
}

// NewLogBuffer returns a debug-level text handler writing into the returned buffer.
func NewLogBuffer() (slog.Handler, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}), &buf
}

// --- END OF NEW FILE internal/testutil/helpers.go ---
