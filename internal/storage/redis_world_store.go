package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/annel0/related-world/internal/logging"
	"github.com/annel0/related-world/internal/relworld"
	"github.com/go-redis/redis/v8"
)

// RedisConfig содержит настройки подключения к Redis
type RedisConfig struct {
	Addr      string // Адрес Redis сервера
	Password  string // Пароль (пустой если не требуется)
	DB        int    // Номер базы данных
	KeyPrefix string // Префикс для ключей
}

// DefaultRedisConfig возвращает конфигурацию по умолчанию
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Addr:      "localhost:6379",
		DB:        0,
		KeyPrefix: "relworld:",
	}
}

// RedisWorldStore хранит описания миров в хеше Redis <prefix>worlds.
// Позволяет нескольким хостам видеть один набор миров.
type RedisWorldStore struct {
	client *redis.Client
	key    string
}

// NewRedisWorldStore подключается к Redis и проверяет соединение
func NewRedisWorldStore(ctx context.Context, config *RedisConfig) (*RedisWorldStore, error) {
	if config == nil {
		config = DefaultRedisConfig()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logging.Info("🔴 Connected to Redis at %s", config.Addr)
	return &RedisWorldStore{client: client, key: config.KeyPrefix + "worlds"}, nil
}

// SaveWorld сохраняет описание мира
func (s *RedisWorldStore) SaveWorld(ctx context.Context, d relworld.Descriptor) error {
	if d.Name == "" {
		return fmt.Errorf("storage: пустое имя мира")
	}
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to marshal world: %w", err)
	}
	if err := s.client.HSet(ctx, s.key, d.Name, data).Err(); err != nil {
		return fmt.Errorf("failed to save world: %w", err)
	}
	return nil
}

// DeleteWorld удаляет описание мира
func (s *RedisWorldStore) DeleteWorld(ctx context.Context, name string) error {
	if err := s.client.HDel(ctx, s.key, name).Err(); err != nil {
		return fmt.Errorf("failed to delete world: %w", err)
	}
	return nil
}

// LoadWorlds читает все описания миров; битые записи пропускаются
func (s *RedisWorldStore) LoadWorlds(ctx context.Context) ([]relworld.Descriptor, error) {
	entries, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load worlds: %w", err)
	}

	out := make([]relworld.Descriptor, 0, len(entries))
	for name, data := range entries {
		var d relworld.Descriptor
		if err := json.Unmarshal([]byte(data), &d); err != nil {
			logging.Warn("⚠️ Failed to unmarshal world %s: %v", name, err)
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Close закрывает соединение с Redis
func (s *RedisWorldStore) Close() error {
	return s.client.Close()
}
