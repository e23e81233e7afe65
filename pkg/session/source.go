package session

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
)

// FileSource hands the session one export to read
type FileSource interface {
	Name() string
	Open(ctx context.Context) (io.ReadCloser, error)
}

// PathSource reads an export from disk
type PathSource string

// Name returns the file's base name
func (p PathSource) Name() string {
	return filepath.Base(string(p))
}

// Open opens the file for reading
func (p PathSource) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return os.Open(string(p))
}

// BytesSource serves an export already held in memory
type BytesSource struct {
	Filename string
	Data     []byte
}

// Name returns the filename the data was read from
func (b BytesSource) Name() string {
	return b.Filename
}

// Open returns a reader over the data
func (b BytesSource) Open(ctx context.Context) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(b.Data)), nil
}
