package khata

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/boikhata/khata/storage"
)

// OpenStorage builds the backend selected by cfg.Driver. The returned close function
// releases connections owned by the backend and is never nil.
func OpenStorage(ctx context.Context, cfg StorageConfig) (storage.Backend, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Driver {
	case "", StorageMemory:
		return storage.NewMemory(), noop, nil
	case StorageFile:
		f, err := storage.NewFile(cfg.Dir)
		if err != nil {
			return nil, noop, err
		}
		return f, noop, nil
	case StorageRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		r := storage.NewRedis(client, cfg.RedisPrefix, cfg.RedisTTL)
		if err := r.Ping(ctx); err != nil {
			_ = client.Close()
			return nil, noop, err
		}
		return r, client.Close, nil
	default:
		return nil, noop, fmt.Errorf("storage driver %q is not supported", cfg.Driver)
	}
}
