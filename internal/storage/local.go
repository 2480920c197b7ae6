package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// LocalURLPrefix is the route under which local objects are served.
const LocalURLPrefix = "/uploads"

// TempFilePrefix marks in-flight uploads; they are never served.
const TempFilePrefix = ".upload-"

// LocalStorage implements ObjectStorage on a filesystem directory.
type LocalStorage struct {
	fs        afero.Fs
	dir       string
	publicURL string
}

// NewLocalStorage creates local storage rooted at dir.
// When publicURL is empty GetURL returns paths under LocalURLPrefix.
func NewLocalStorage(fsys afero.Fs, dir, publicURL string) *LocalStorage {
	return &LocalStorage{
		fs:        fsys,
		dir:       dir,
		publicURL: strings.TrimSuffix(publicURL, "/"),
	}
}

// Dir returns the root directory.
func (s *LocalStorage) Dir() string {
	return s.dir
}

// FileSystem exposes the root for static serving.
func (s *LocalStorage) FileSystem() afero.Fs {
	return afero.NewBasePathFs(s.fs, s.dir)
}

func (s *LocalStorage) path(key string) (string, error) {
	clean := path.Clean("/" + key)
	if clean == "/" {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return filepath.Join(s.dir, filepath.FromSlash(clean)), nil
}

// EnsureBucket creates the root directory
func (s *LocalStorage) EnsureBucket(_ context.Context) error {
	if err := s.fs.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create upload directory: %w", err)
	}
	return nil
}

// Upload writes an object to disk. The data goes to a hidden temp file in the
// same directory first and is renamed into place, so readers never see a
// partial object.
func (s *LocalStorage) Upload(_ context.Context, key string, reader io.Reader, _ int64, _ string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	dir := filepath.Dir(p)
	if err := s.fs.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create object directory: %w", err)
	}
	f, err := afero.TempFile(s.fs, dir, TempFilePrefix+"*")
	if err != nil {
		return fmt.Errorf("failed to upload object: %w", err)
	}
	tmp := f.Name()
	if _, err := io.Copy(f, reader); err != nil {
		f.Close()
		s.fs.Remove(tmp)
		return fmt.Errorf("failed to upload object: %w", err)
	}
	if err := f.Close(); err != nil {
		s.fs.Remove(tmp)
		return fmt.Errorf("failed to upload object: %w", err)
	}
	if err := s.fs.Rename(tmp, p); err != nil {
		s.fs.Remove(tmp)
		return fmt.Errorf("failed to upload object: %w", err)
	}
	return nil
}

// Download opens an object for reading
func (s *LocalStorage) Download(_ context.Context, key string) (io.ReadCloser, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	f, err := s.fs.Open(p)
	if err != nil {
		return nil, fmt.Errorf("failed to download object: %w", err)
	}
	return f, nil
}

// GetURL returns the public URL for accessing an object
func (s *LocalStorage) GetURL(key string) string {
	if s.publicURL != "" {
		return fmt.Sprintf("%s/%s", s.publicURL, key)
	}
	return fmt.Sprintf("%s/%s", LocalURLPrefix, key)
}

// Delete removes an object
func (s *LocalStorage) Delete(_ context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := s.fs.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

// Exists checks if an object exists
func (s *LocalStorage) Exists(_ context.Context, key string) (bool, error) {
	p, err := s.path(key)
	if err != nil {
		return false, err
	}
	ok, err := afero.Exists(s.fs, p)
	if err != nil {
		return false, fmt.Errorf("failed to check object existence: %w", err)
	}
	return ok, nil
}
