package storage

import (
	"strings"

	"github.com/spf13/afero"
	"github.com/timmy/memevote/internal/config"
)

// StorageType defines the storage implementation
type StorageType string

const (
	StorageTypeLocal        StorageType = "local"
	StorageTypeMinIO        StorageType = "minio"
	StorageTypeR2           StorageType = "r2"
	StorageTypeS3           StorageType = "s3"
	StorageTypeS3Compatible StorageType = "s3compatible"
)

// Config holds configuration for every storage type
type Config struct {
	Type      StorageType
	LocalDir  string
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
	Region    string
	PublicURL string // Public URL prefix for R2.dev, a CDN or the local /uploads route
}

// ConfigFrom converts application config into storage config.
func ConfigFrom(c *config.StorageConfig) *Config {
	return &Config{
		Type:      StorageType(c.Type),
		LocalDir:  c.LocalDir,
		Endpoint:  c.Endpoint,
		AccessKey: c.AccessKey,
		SecretKey: c.SecretKey,
		UseSSL:    c.UseSSL,
		Bucket:    c.Bucket,
		Region:    c.Region,
		PublicURL: c.PublicURL,
	}
}

// NewStorage creates an ObjectStorage instance based on the configuration.
// Parameters:
//   - cfg: storage configuration including endpoint, credentials, and bucket.
//
// Returns:
//   - ObjectStorage: initialized storage client implementation.
//   - error: non-nil if the storage client cannot be created.
func NewStorage(cfg *Config) (ObjectStorage, error) {
	if cfg.Type == "" {
		if cfg.Endpoint == "" {
			cfg.Type = StorageTypeLocal
		} else {
			cfg.Type = detectStorageType(cfg.Endpoint)
		}
	}

	switch cfg.Type {
	case StorageTypeLocal:
		return NewLocalStorage(afero.NewOsFs(), cfg.LocalDir, cfg.PublicURL), nil
	case StorageTypeMinIO:
		return NewMinIOStorage(cfg)
	default:
		return NewS3Storage(cfg)
	}
}

// detectStorageType attempts to detect the storage type from the endpoint
func detectStorageType(endpoint string) StorageType {
	endpoint = strings.ToLower(endpoint)

	switch {
	case strings.Contains(endpoint, "r2.cloudflarestorage.com"):
		return StorageTypeR2
	case strings.Contains(endpoint, "amazonaws.com"):
		return StorageTypeS3
	default:
		return StorageTypeS3Compatible
	}
}
