package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
)

// ErrNoSpace is returned when a write would exceed the flash capacity.
var ErrNoSpace = errors.New("storage: no space left on flash")

// Flash wraps a Local store with a fixed byte capacity, mirroring the
// bounded flash partition audio payloads are written to on the device.
//
// Usage is computed from the files present at construction time and kept
// current as writes and deletes go through the wrapper. Writes that would
// push usage past the capacity fail with ErrNoSpace; callers that hit it
// can Format and retry.
type Flash struct {
	local    *Local
	capacity int64

	mu   sync.Mutex
	used int64
}

var _ FileStore = (*Flash)(nil)

// NewFlash creates a Flash store rooted at dir with the given byte capacity.
// Existing files under dir count against the capacity.
func NewFlash(dir string, capacity int64) (*Flash, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("storage: flash capacity must be positive, got %d", capacity)
	}
	local, err := NewLocal(dir)
	if err != nil {
		return nil, err
	}
	f := &Flash{local: local, capacity: capacity}
	files, err := local.List(context.Background())
	if err != nil {
		return nil, err
	}
	for _, fi := range files {
		f.used += fi.Size
	}
	return f, nil
}

// Capacity returns the configured capacity in bytes.
func (f *Flash) Capacity() int64 { return f.capacity }

// Used returns the number of bytes currently stored.
func (f *Flash) Used() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.used
}

// Free returns the number of bytes still available for writing.
func (f *Flash) Free() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := f.capacity - f.used
	if n < 0 {
		n = 0
	}
	return n
}

// Read opens the named file for reading.
func (f *Flash) Read(ctx context.Context, path string) (io.ReadCloser, error) {
	return f.local.Read(ctx, path)
}

// Write opens the named file for writing. Bytes written through the returned
// WriteCloser count against the capacity as they are written; once the
// capacity is exhausted further writes fail with ErrNoSpace.
func (f *Flash) Write(ctx context.Context, path string) (io.WriteCloser, error) {
	// Overwriting a file releases its old bytes first.
	if err := f.Delete(ctx, path); err != nil {
		return nil, err
	}
	w, err := f.local.Write(ctx, path)
	if err != nil {
		return nil, err
	}
	return &flashWriter{flash: f, w: w}, nil
}

// Delete removes the named file and releases its bytes.
func (f *Flash) Delete(ctx context.Context, path string) error {
	fi, err := f.local.Stat(ctx, path)
	if err != nil {
		// Not existing is fine; Delete is idempotent.
		return f.local.Delete(ctx, path)
	}
	if err := f.local.Delete(ctx, path); err != nil {
		return err
	}
	f.mu.Lock()
	f.used -= fi.Size
	if f.used < 0 {
		f.used = 0
	}
	f.mu.Unlock()
	return nil
}

// Exists reports whether the named file exists.
func (f *Flash) Exists(ctx context.Context, path string) (bool, error) {
	return f.local.Exists(ctx, path)
}

// Stat returns the name and size of the named file.
func (f *Flash) Stat(ctx context.Context, path string) (FileInfo, error) {
	return f.local.Stat(ctx, path)
}

// List returns every stored file, sorted by name.
func (f *Flash) List(ctx context.Context) ([]FileInfo, error) {
	return f.local.List(ctx)
}

// Format deletes every stored file, returning the flash to an empty state.
// It is the recovery path for writes that failed with ErrNoSpace.
func (f *Flash) Format(ctx context.Context) error {
	files, err := f.local.List(ctx)
	if err != nil {
		return err
	}
	for _, fi := range files {
		if err := f.Delete(ctx, fi.Name); err != nil {
			return err
		}
	}
	f.mu.Lock()
	f.used = 0
	f.mu.Unlock()
	return nil
}

// reserve claims n bytes of capacity, failing with ErrNoSpace if they are
// not available.
func (f *Flash) reserve(n int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.used+n > f.capacity {
		return ErrNoSpace
	}
	f.used += n
	return nil
}

// release returns n bytes of capacity.
func (f *Flash) release(n int64) {
	f.mu.Lock()
	f.used -= n
	if f.used < 0 {
		f.used = 0
	}
	f.mu.Unlock()
}

// flashWriter accounts bytes against the flash capacity as they are written.
type flashWriter struct {
	flash *Flash
	w     io.WriteCloser
}

func (fw *flashWriter) Write(p []byte) (int, error) {
	if err := fw.flash.reserve(int64(len(p))); err != nil {
		return 0, err
	}
	n, err := fw.w.Write(p)
	if n < len(p) {
		fw.flash.release(int64(len(p) - n))
	}
	return n, err
}

func (fw *flashWriter) Close() error {
	return fw.w.Close()
}
