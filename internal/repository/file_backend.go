package repository

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// FileBackend keeps each document as <dir>/<name>.json.
// Writes go to a temporary file first and are renamed into place.
type FileBackend struct {
	fs  afero.Fs
	dir string
}

// NewFileBackend creates a file backend rooted at dir, creating it if needed.
// Parameters:
//   - fsys: filesystem to use; afero.NewOsFs() in production.
//   - dir: directory holding the documents.
//
// Returns:
//   - *FileBackend: initialized backend.
//   - error: non-nil if dir cannot be created.
func NewFileBackend(fsys afero.Fs, dir string) (*FileBackend, error) {
	if err := fsys.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &FileBackend{fs: fsys, dir: dir}, nil
}

func (b *FileBackend) path(name DocumentName) string {
	return filepath.Join(b.dir, string(name)+".json")
}

// Read implements Backend.
func (b *FileBackend) Read(_ context.Context, name DocumentName) ([]byte, error) {
	data, err := afero.ReadFile(b.fs, b.path(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrDocumentNotFound
		}
		return nil, err
	}
	return data, nil
}

// Write implements Backend.
func (b *FileBackend) Write(_ context.Context, name DocumentName, data []byte) error {
	target := b.path(name)
	tmp := target + ".tmp-" + uuid.New().String()
	if err := afero.WriteFile(b.fs, tmp, data, 0644); err != nil {
		return err
	}
	if err := b.fs.Rename(tmp, target); err != nil {
		_ = b.fs.Remove(tmp)
		return err
	}
	return nil
}

// Close implements Backend.
func (b *FileBackend) Close() error {
	return nil
}
