// Package mapped provides read-only memory-mapped views of files whose
// lifetime is scoped to a single operation. Callers always pair Open with a
// deferred Close so that neither the mapping nor the file handle outlives
// the call that acquired it, including on error paths.
package mapped

import (
	"errors"
	"fmt"
	"os"

	mmap "github.com/edsrzf/mmap-go"
)

// View is a read-only mapping of a whole file.
// Empty files are represented without a mapping, since zero-length mappings
// are rejected by most platforms.
type View struct {
	path   string
	file   *os.File
	region mmap.MMap
	closed bool
}

// Open maps path read-only.
func Open(path string) (*View, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, fmt.Errorf("map %s: is a directory", path)
	}

	v := &View{path: path, file: f}
	if info.Size() == 0 {
		return v, nil
	}
	if int64(int(info.Size())) != info.Size() {
		_ = f.Close()
		return nil, fmt.Errorf("map %s: file too large (%d bytes)", path, info.Size())
	}
	region, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("map %s: %w", path, err)
	}
	v.region = region
	return v, nil
}

// Bytes returns the mapped content. The slice is only valid until Close and
// must not be written to.
func (v *View) Bytes() []byte {
	if v == nil || v.closed {
		return nil
	}
	return v.region
}

// Len returns the size of the mapped file in bytes.
func (v *View) Len() int {
	return len(v.Bytes())
}

// Path returns the mapped file's path.
func (v *View) Path() string { return v.path }

// Close unmaps the view and closes the file. It is safe to call more than once;
// only the first call releases resources.
func (v *View) Close() error {
	if v == nil || v.closed {
		return nil
	}
	v.closed = true
	var errs []error
	if v.region != nil {
		if err := v.region.Unmap(); err != nil {
			errs = append(errs, fmt.Errorf("unmap %s: %w", v.path, err))
		}
		v.region = nil
	}
	if err := v.file.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close %s: %w", v.path, err))
	}
	return errors.Join(errs...)
}

// ReadAll maps path, hands the content to fn and releases the mapping before
// returning. fn must not retain the slice.
func ReadAll(path string, fn func(content []byte) error) (err error) {
	v, err := Open(path)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := v.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return fn(v.Bytes())
}
