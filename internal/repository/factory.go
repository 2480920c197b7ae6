package repository

import (
	"context"
	"fmt"

	"github.com/spf13/afero"
	"github.com/timmy/memevote/internal/config"
	"github.com/timmy/memevote/internal/storage"
)

// NewBackend creates the document backend selected by cfg.Store.Backend.
// Parameters:
//   - ctx: context for connection setup.
//   - cfg: full application config; the object backend reuses cfg.Storage.
//
// Returns:
//   - Backend: connected backend.
//   - error: non-nil if the backend cannot be initialized.
func NewBackend(ctx context.Context, cfg *config.Config) (Backend, error) {
	sc := &cfg.Store
	switch sc.Backend {
	case "", "file":
		return NewFileBackend(afero.NewOsFs(), sc.File.Dir)
	case "sqlite", "postgres":
		dbCfg := sc.Database
		dbCfg.Driver = sc.Backend
		db, err := InitDB(&dbCfg)
		if err != nil {
			return nil, err
		}
		return NewGormBackend(db), nil
	case "redis":
		return NewRedisBackend(ctx, sc.Redis.URL, sc.Redis.KeyPrefix)
	case "mongo":
		return NewMongoBackend(ctx, sc.Mongo.URI, sc.Mongo.Database, sc.Mongo.Collection)
	case "object":
		objects, err := storage.NewStorage(storage.ConfigFrom(&cfg.Storage))
		if err != nil {
			return nil, err
		}
		// Local objects live under the publicly served /uploads tree
		if _, ok := objects.(*storage.LocalStorage); ok {
			return nil, fmt.Errorf("store backend %q requires remote object storage", sc.Backend)
		}
		if err := objects.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return NewObjectBackend(objects, sc.Object.Prefix), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", sc.Backend)
	}
}
