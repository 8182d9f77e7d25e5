package mapped_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stackvity/textstore/pkg/textstore/mapped"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.txt")
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

func TestOpen_MapsContent(t *testing.T) {
	path := writeFile(t, []byte("line one\nline two\n"))

	v, err := mapped.Open(path)
	require.NoError(t, err)
	assert.Equal(t, "line one\nline two\n", string(v.Bytes()))
	assert.Equal(t, 18, v.Len())
	assert.Equal(t, path, v.Path())

	require.NoError(t, v.Close())
	assert.Nil(t, v.Bytes(), "content must not be reachable after Close")
	assert.NoError(t, v.Close(), "Close must be idempotent")
}

func TestOpen_EmptyFile(t *testing.T) {
	v, err := mapped.Open(writeFile(t, nil))
	require.NoError(t, err)
	defer v.Close()
	assert.Zero(t, v.Len())
	assert.Empty(t, v.Bytes())
}

func TestOpen_Errors(t *testing.T) {
	_, err := mapped.Open(filepath.Join(t.TempDir(), "missing.txt"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = mapped.Open(t.TempDir())
	assert.Error(t, err)
}

func TestReadAll(t *testing.T) {
	path := writeFile(t, []byte("abc"))

	var seen string
	err := mapped.ReadAll(path, func(content []byte) error {
		seen = string(content)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "abc", seen)

	errBoom := errors.New("boom")
	err = mapped.ReadAll(path, func([]byte) error { return errBoom })
	assert.ErrorIs(t, err, errBoom)

	// The file must not be held open: removing it succeeds everywhere.
	require.NoError(t, os.Remove(path))
}
