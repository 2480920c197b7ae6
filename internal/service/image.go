package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/timmy/memevote/internal/domain"
	"github.com/timmy/memevote/internal/logger"
	"github.com/timmy/memevote/internal/storage"
	_ "golang.org/x/image/webp"
)

// DefaultMaxImageBytes caps an uploaded image at 5 MB.
const DefaultMaxImageBytes int64 = 5 * 1024 * 1024

const removeTimeout = 10 * time.Second

var (
	ErrImageTooLarge = fmt.Errorf("%w: file too large", domain.ErrValidation)
	ErrNotAnImage    = fmt.Errorf("%w: only image files are allowed", domain.ErrValidation)
	ErrNoImage       = fmt.Errorf("%w: no image file uploaded", domain.ErrValidation)
)

// UploadedImage describes a stored image.
type UploadedImage struct {
	Key         string
	URL         string
	ContentType string
	Size        int64
	Width       int
	Height      int
}

// ImageService validates uploaded images and writes them to object storage.
type ImageService struct {
	storage  storage.ObjectStorage
	maxBytes int64
	now      func() time.Time
}

// NewImageService creates an image service. maxBytes <= 0 uses DefaultMaxImageBytes.
func NewImageService(objectStorage storage.ObjectStorage, maxBytes int64) *ImageService {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxImageBytes
	}
	return &ImageService{
		storage:  objectStorage,
		maxBytes: maxBytes,
		now:      time.Now,
	}
}

// MaxBytes returns the upload size limit.
func (s *ImageService) MaxBytes() int64 {
	return s.maxBytes
}

// Upload sniffs r, rejects anything that is not an image/* type or exceeds
// the size limit, and stores it under a unique key derived from filename.
// The returned URL comes from the storage and may be host-relative.
func (s *ImageService) Upload(ctx context.Context, filename string, r io.Reader) (*UploadedImage, error) {
	data, err := io.ReadAll(io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read upload: %v", domain.ErrValidation, err)
	}
	if len(data) == 0 {
		return nil, ErrNoImage
	}
	if int64(len(data)) > s.maxBytes {
		return nil, ErrImageTooLarge
	}

	mtype := mimetype.Detect(data)
	contentType := strings.SplitN(mtype.String(), ";", 2)[0]
	if !strings.HasPrefix(contentType, "image/") {
		return nil, ErrNotAnImage
	}

	img := &UploadedImage{
		Key:         s.storageKey(filename, mtype.Extension()),
		ContentType: contentType,
		Size:        int64(len(data)),
	}

	// Raster formats must decode; vector formats such as SVG are stored as-is
	if decodable(contentType) {
		cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return nil, ErrNotAnImage
		}
		img.Width, img.Height = cfg.Width, cfg.Height
	}

	if err := s.storage.Upload(ctx, img.Key, bytes.NewReader(data), img.Size, contentType); err != nil {
		return nil, fmt.Errorf("%w: failed to store image: %v", domain.ErrStoreUnavailable, err)
	}
	img.URL = s.storage.GetURL(img.Key)

	logger.With(logger.Fields{"content_type": img.ContentType}).
		WithSize(img.Size).
		Info(ctx, "Image stored: %s (%dx%d)", img.Key, img.Width, img.Height)

	return img, nil
}

// Remove deletes a stored image. It is used to roll back an upload whose
// meme was rejected, so it runs even if ctx has been canceled.
func (s *ImageService) Remove(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), removeTimeout)
	defer cancel()

	if err := s.storage.Delete(ctx, key); err != nil {
		logger.FromContext(ctx).WithError(err).Warnf("Failed to remove image %s", key)
		return fmt.Errorf("%w: failed to remove image: %v", domain.ErrStoreUnavailable, err)
	}
	logger.CtxDebug(ctx, "Image removed: %s", key)
	return nil
}

func (s *ImageService) storageKey(filename, ext string) string {
	name := sanitizeFilename(filename)
	if filepath.Ext(name) == "" {
		name += ext
	}
	return fmt.Sprintf("%d-%s-%s", s.now().UnixMilli(), uuid.NewString()[:8], name)
}

func decodable(contentType string) bool {
	switch contentType {
	case "image/png", "image/jpeg", "image/gif", "image/webp":
		return true
	default:
		return false
	}
}

const maxFilenameLen = 100

// sanitizeFilename keeps the base name and replaces anything outside
// [A-Za-z0-9._-] with '-'.
func sanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	out := strings.Trim(b.String(), ".-")
	if len(out) > maxFilenameLen {
		out = out[len(out)-maxFilenameLen:]
	}
	if out == "" {
		return "image"
	}
	return out
}
