package app

import (
	"context"
	"fmt"

	"github.com/annel0/related-world/internal/config"
	"github.com/annel0/related-world/internal/logging"
	"github.com/annel0/related-world/internal/relworld"
	"github.com/annel0/related-world/internal/storage"
)

// OpenStore открывает хранилище описаний миров по имени бэкенда
func OpenStore(ctx context.Context, cfg config.StorageConfig) (relworld.Store, error) {
	switch cfg.Backend {
	case "", "memory":
		logging.Info("💾 Хранилище миров: память")
		return storage.NewMemoryWorldStore(), nil

	case "badger":
		st, err := storage.NewBadgerWorldStore(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("не удалось открыть BadgerDB: %w", err)
		}
		logging.Info("💾 Хранилище миров: BadgerDB (%s)", cfg.Path)
		return st, nil

	case "redis":
		rc := storage.DefaultRedisConfig()
		rc.Addr = cfg.RedisAddr
		rc.Password = cfg.RedisPassword
		rc.DB = cfg.RedisDB
		if cfg.RedisPrefix != "" {
			rc.KeyPrefix = cfg.RedisPrefix
		}
		st, err := storage.NewRedisWorldStore(ctx, rc)
		if err != nil {
			return nil, fmt.Errorf("не удалось подключиться к Redis: %w", err)
		}
		logging.Info("💾 Хранилище миров: Redis (%s)", cfg.RedisAddr)
		return st, nil

	default:
		return nil, fmt.Errorf("неизвестное хранилище %q", cfg.Backend)
	}
}
