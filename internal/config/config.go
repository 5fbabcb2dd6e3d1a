// Package config читает YAML-конфигурацию сервера вторичных миров.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/annel0/related-world/internal/vec"
	"gopkg.in/yaml.v3"
)

// EnvConfigPath переменная окружения с путём к файлу конфигурации
const EnvConfigPath = "RELWORLD_CONFIG"

// Config корневая структура конфигурации приложения.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Hooks      HooksConfig      `yaml:"hooks"`
	Simulation SimulationConfig `yaml:"simulation"`
	EventBus   EventBusConfig   `yaml:"eventbus"`
	Storage    StorageConfig    `yaml:"storage"`
	Sync       SyncConfig       `yaml:"sync"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	Worlds     []WorldConfig    `yaml:"worlds"`
}

type ServerConfig struct {
	Name        string `yaml:"name"`
	RESTPort    int    `yaml:"rest_port"`
	MetricsPort int    `yaml:"metrics_port"`
	// AdminToken Bearer-токен для изменяющих запросов REST; пусто — без проверки
	AdminToken string `yaml:"admin_token"`
}

type HooksConfig struct {
	Enabled bool `yaml:"enabled"`
}

type SimulationConfig struct {
	TickMillis int `yaml:"tick_ms"`
	// LoopbackObserver создаёт в процессе мир наблюдателя, подключённый к серверу
	LoopbackObserver bool `yaml:"loopback_observer"`
}

type EventBusConfig struct {
	URL       string `yaml:"url"` // пусто — шина в памяти
	Stream    string `yaml:"stream"`
	Retention int    `yaml:"retention_hours"`
	Buffer    int    `yaml:"buffer"`
}

type StorageConfig struct {
	Backend       string `yaml:"backend"` // memory | badger | redis
	Path          string `yaml:"path"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	RedisPrefix   string `yaml:"redis_prefix"`
}

type SyncConfig struct {
	Enabled      bool `yaml:"enabled"`
	BatchSize    int  `yaml:"batch_size"`
	FlushEvery   int  `yaml:"flush_every_seconds"`
	UseGzipCompr bool `yaml:"use_gzip_compression"`
}

type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
}

// WorldConfig вторичный мир, создаваемый при старте
type WorldConfig struct {
	Name      string   `yaml:"name"`
	Origin    vec.Vec3 `yaml:"origin"`
	Networked bool     `yaml:"networked"`
}

// Default конфигурация без файла
func Default() *Config {
	return &Config{
		Server:     ServerConfig{Name: "server"},
		Hooks:      HooksConfig{Enabled: true},
		Simulation: SimulationConfig{TickMillis: 33},
		EventBus:   EventBusConfig{Stream: "RELWORLD", Retention: 24, Buffer: 256},
		Storage:    StorageConfig{Backend: "memory", Path: "data", RedisAddr: "localhost:6379", RedisPrefix: "relworld:"},
		Sync:       SyncConfig{BatchSize: 256, FlushEvery: 1, UseGzipCompr: true},
		Telemetry:  TelemetryConfig{ServiceName: "related-world"},
	}
}

// TickInterval период шага симуляции
func (s SimulationConfig) TickInterval() time.Duration {
	return time.Duration(s.TickMillis) * time.Millisecond
}

// FlushInterval период отправки пакетов журнала
func (s SyncConfig) FlushInterval() time.Duration {
	return time.Duration(s.FlushEvery) * time.Second
}

// RetentionPeriod срок хранения событий в стриме
func (e EventBusConfig) RetentionPeriod() time.Duration {
	return time.Duration(e.Retention) * time.Hour
}

// GetRESTPort возвращает REST API порт с поддержкой fallback значений
func (s *ServerConfig) GetRESTPort() int {
	return getPortWithEnvFallback(s.RESTPort, "RELWORLD_REST_PORT", 8088)
}

// GetMetricsPort возвращает Prometheus метрики порт с поддержкой fallback значений
func (s *ServerConfig) GetMetricsPort() int {
	return getPortWithEnvFallback(s.MetricsPort, "RELWORLD_METRICS_PORT", 2112)
}

// GetAdminToken возвращает токен администратора: config -> RELWORLD_ADMIN_TOKEN
func (s *ServerConfig) GetAdminToken() string {
	if s.AdminToken != "" {
		return s.AdminToken
	}
	return os.Getenv("RELWORLD_ADMIN_TOKEN")
}

// getPortWithEnvFallback возвращает порт с приоритетом: config -> env -> default
func getPortWithEnvFallback(configPort int, envVar string, defaultPort int) int {
	if configPort > 0 {
		return configPort
	}
	if envVal := os.Getenv(envVar); envVal != "" {
		if port, err := strconv.Atoi(envVal); err == nil && port > 0 {
			return port
		}
	}
	return defaultPort
}

// Validate проверяет значения конфигурации
func (c *Config) Validate() error {
	var errs []error

	if c.Simulation.TickMillis <= 0 {
		errs = append(errs, fmt.Errorf("simulation.tick_ms должен быть > 0, получено %d", c.Simulation.TickMillis))
	}
	switch c.Storage.Backend {
	case "memory", "badger", "redis":
	default:
		errs = append(errs, fmt.Errorf("storage.backend: неизвестное хранилище %q", c.Storage.Backend))
	}
	if c.Storage.Backend == "badger" && c.Storage.Path == "" {
		errs = append(errs, errors.New("storage.path обязателен для badger"))
	}
	if c.Sync.Enabled && c.Sync.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("sync.batch_size должен быть > 0, получено %d", c.Sync.BatchSize))
	}

	seen := make(map[string]bool, len(c.Worlds))
	for i, w := range c.Worlds {
		if w.Name == "" {
			errs = append(errs, fmt.Errorf("worlds[%d]: пустое имя", i))
			continue
		}
		if seen[w.Name] {
			errs = append(errs, fmt.Errorf("worlds[%d]: повтор имени %s", i, w.Name))
		}
		seen[w.Name] = true
	}

	return errors.Join(errs...)
}

// Load читает YAML файл конфигурации поверх Default().
// Если path == "", берёт путь из RELWORLD_CONFIG; без него возвращает Default().
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv(EnvConfigPath)
		if path == "" {
			return cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}
