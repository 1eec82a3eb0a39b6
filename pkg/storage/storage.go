// Package storage defines the FileStore interface the audio subsystem
// persists uploaded payloads to, and the backends that implement it.
//
// The gateway writes incoming transfers to a capacity-capped local store
// (Flash) and can optionally mirror completed uploads to an S3-compatible
// object store for off-device archive. Callers depend only on FileStore so
// backends can be swapped without changing protocol code.
package storage

import (
	"context"
	"io"
)

// FileInfo describes a stored file.
type FileInfo struct {
	// Name is the storage path of the file, forward-slash separated.
	Name string
	// Size is the file size in bytes.
	Size int64
}

// FileStore is a minimal interface for file-oriented storage.
//
// Paths are forward-slash separated and relative to the store root.
// Implementations must be safe for concurrent use.
type FileStore interface {
	// Read opens the named file for reading.
	// The caller must close the returned ReadCloser when done.
	// If the file does not exist, an error wrapping os.ErrNotExist is returned.
	Read(ctx context.Context, path string) (io.ReadCloser, error)

	// Write opens the named file for writing.
	// If the file already exists it is truncated.
	// Parent directories are created automatically.
	// The caller must close the returned WriteCloser to flush data.
	Write(ctx context.Context, path string) (io.WriteCloser, error)

	// Delete removes the named file.
	// If the file does not exist, Delete returns nil (idempotent).
	Delete(ctx context.Context, path string) error

	// Exists reports whether the named file exists.
	Exists(ctx context.Context, path string) (bool, error)

	// Stat returns the name and size of the named file.
	// If the file does not exist, an error wrapping os.ErrNotExist is returned.
	Stat(ctx context.Context, path string) (FileInfo, error)

	// List returns every stored file, sorted by name.
	List(ctx context.Context) ([]FileInfo, error)
}
