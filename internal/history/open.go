package history

import (
	"context"
	"fmt"

	"skychat/internal/config"
	"skychat/internal/redis"
	"skychat/internal/storage"
)

// Open builds the store selected by cfg.History.Backend.
// An empty backend yields the disabled store.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	backend := cfg.History.Backend
	switch backend {
	case "", "none", "disabled":
		return Disabled(), nil
	case "dynamodb":
		return NewDynamoStore(ctx, cfg.History)
	case "redis":
		client, err := redis.NewRedisClient(cfg)
		if err != nil {
			return nil, fmt.Errorf("%w: redis: %v", ErrStoreUnavailable, err)
		}
		return NewRedisStore(client), nil
	case "sqlite", "sqlite3", "mysql", "postgres":
		db, err := storage.Open(backend, cfg)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		if err := storage.Migrate(db, backend); err != nil {
			db.Close()
			return nil, err
		}
		return NewSQLStore(db, backend), nil
	default:
		return nil, fmt.Errorf("unsupported history backend: %s", backend)
	}
}
