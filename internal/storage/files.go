package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Uploaded files on local disk. Objects are addressed by a caller-chosen key,
// normally the upload id.
type FileStore struct {
	root string
}

func NewFileStore(root string) (*FileStore, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	return &FileStore{root: root}, nil
}

// Writes r under key and returns the stored path and byte count
func (s *FileStore) Put(ctx context.Context, key string, r io.Reader) (string, int64, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return "", 0, fmt.Errorf("invalid object key %q", key)
	}

	path := filepath.Join(s.root, key)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return "", 0, err
	}

	n, err := io.Copy(f, &ctxReader{ctx: ctx, r: r})
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(path)
		return "", 0, err
	}

	return path, n, nil
}

func (s *FileStore) Delete(key string) error {
	return os.Remove(filepath.Join(s.root, key))
}

// Stops a copy once ctx is cancelled
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
