package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrNotFound is returned when a blob does not exist.
// It aliases os.ErrNotExist so both checks work with errors.Is.
var ErrNotFound = os.ErrNotExist

// ErrInvalidName is returned for names that escape the store root.
var ErrInvalidName = errors.New("blobstore: invalid blob name")

// BlobStore gives access to the immutable blobs of a synapse dataset:
// the manifest, the column tables, and cached positions.
// Implementations must be safe for concurrent use.
type BlobStore interface {
	// Open opens a blob for reading.
	Open(ctx context.Context, name string) (Blob, error)
	// Create creates a blob for streaming writes, committed on Close.
	Create(ctx context.Context, name string) (WritableBlob, error)
	// Put writes a blob atomically.
	Put(ctx context.Context, name string, data []byte) error
	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error
	// List returns the sorted names starting with prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Blob is a read-only handle to a blob.
type Blob interface {
	// ReadAt reads len(p) bytes at off. It returns io.EOF when fewer
	// bytes are available.
	ReadAt(ctx context.Context, p []byte, off int64) (int, error)
	// Size returns the size of the blob in bytes.
	Size() int64
	io.Closer
}

// WritableBlob is a blob under construction.
type WritableBlob interface {
	io.Writer
	io.Closer
	Sync() error
}

// Mappable is implemented by blobs that expose their contents without
// copying. The slice is valid until the blob is closed.
type Mappable interface {
	Bytes() ([]byte, error)
}

// ReadFull reads exactly n bytes at off.
func ReadFull(ctx context.Context, b Blob, off int64, n int) ([]byte, error) {
	if n < 0 || off < 0 || off > b.Size() || int64(n) > b.Size()-off {
		return nil, fmt.Errorf("read %d bytes at %d: %w", n, off, io.ErrUnexpectedEOF)
	}
	if m, ok := b.(Mappable); ok {
		data, err := m.Bytes()
		if err == nil {
			return data[off : off+int64(n) : off+int64(n)], nil
		}
	}
	buf := make([]byte, n)
	read, err := b.ReadAt(ctx, buf, off)
	if read == n {
		return buf, nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return nil, fmt.Errorf("read %d bytes at %d: %w", n, off, err)
}

// ReadAll opens name and returns its full contents.
func ReadAll(ctx context.Context, s BlobStore, name string) ([]byte, error) {
	b, err := s.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer b.Close()

	data, err := ReadFull(ctx, b, 0, int(b.Size()))
	if err != nil {
		return nil, err
	}
	if _, ok := b.(Mappable); ok {
		// The mapping dies with the blob.
		data = append([]byte(nil), data...)
	}
	return data, nil
}

// ReaderAt adapts a Blob to io.ReaderAt, binding ctx to every read.
func ReaderAt(ctx context.Context, b Blob) io.ReaderAt {
	return readerAt{ctx: ctx, b: b}
}

type readerAt struct {
	ctx context.Context
	b   Blob
}

func (r readerAt) ReadAt(p []byte, off int64) (int, error) {
	return r.b.ReadAt(r.ctx, p, off)
}
