package repository

import (
	"bytes"
	"context"
	"io"

	"github.com/timmy/memevote/internal/storage"
)

// ObjectBackend keeps documents as JSON objects in object storage.
type ObjectBackend struct {
	objects storage.ObjectStorage
	prefix  string
}

// NewObjectBackend stores documents under prefix in objects.
func NewObjectBackend(objects storage.ObjectStorage, prefix string) *ObjectBackend {
	return &ObjectBackend{objects: objects, prefix: prefix}
}

func (b *ObjectBackend) key(name DocumentName) string {
	return b.prefix + string(name) + ".json"
}

// Read implements Backend.
func (b *ObjectBackend) Read(ctx context.Context, name DocumentName) ([]byte, error) {
	key := b.key(name)
	exists, err := b.objects.Exists(ctx, key)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrDocumentNotFound
	}

	rc, err := b.objects.Download(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// Write implements Backend.
func (b *ObjectBackend) Write(ctx context.Context, name DocumentName, data []byte) error {
	return b.objects.Upload(ctx, b.key(name), bytes.NewReader(data), int64(len(data)), "application/json")
}

// Close implements Backend.
func (b *ObjectBackend) Close() error {
	return nil
}
