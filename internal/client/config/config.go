// Package config loads client configuration from a YAML file, an optional
// .env file and CHATSYNC_* environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/iudanet/chatsync/internal/client/chat"
	"github.com/iudanet/chatsync/internal/client/queue"
	"github.com/iudanet/chatsync/internal/client/storage/backend"
	syncengine "github.com/iudanet/chatsync/internal/client/sync"
)

// EnvPrefix префикс переменных окружения
const EnvPrefix = "CHATSYNC_"

// Поддерживаемые драйверы хранилища
const (
	DriverBolt   = backend.Bolt
	DriverSQLite = backend.SQLite
	DriverMemory = backend.Memory
)

// Config is the full client configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Log       LogConfig       `yaml:"log"`
	Sync      SyncConfig      `yaml:"sync"`
	Queue     QueueConfig     `yaml:"queue"`
	Reactions ReactionsConfig `yaml:"reactions"`
}

// ServerConfig параметры подключения к API
type ServerConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// StorageConfig параметры локального хранилища
type StorageConfig struct {
	Driver string `yaml:"driver"` // bolt, sqlite или memory
	Path   string `yaml:"path"`
}

// LogConfig параметры логирования
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text или json
}

// SyncConfig параметры опроса сервера
type SyncConfig struct {
	ForegroundInterval time.Duration `yaml:"foreground_interval"`
	BackgroundInterval time.Duration `yaml:"background_interval"`
	IdleInterval       time.Duration `yaml:"idle_interval"`
	IdleAfter          time.Duration `yaml:"idle_after"`
	FailurePenalty     float64       `yaml:"failure_penalty"`
	MaxPenalty         float64       `yaml:"max_penalty"`
	BackoffInitial     time.Duration `yaml:"backoff_initial"`
	BackoffMax         time.Duration `yaml:"backoff_max"`
	BackoffMultiplier  float64       `yaml:"backoff_multiplier"`
	BackoffJitter      float64       `yaml:"backoff_jitter"`
	MaxRetries         int           `yaml:"max_retries"`
	RefreshMinSpacing  time.Duration `yaml:"refresh_min_spacing"`
}

// QueueConfig параметры очереди запросов
type QueueConfig struct {
	ConflictDelay      time.Duration `yaml:"conflict_delay"`
	MaxConflictRetries int           `yaml:"max_conflict_retries"`
	RatePerSecond      int           `yaml:"rate_per_second"`
}

// ReactionsConfig параметры оптимистичных реакций
type ReactionsConfig struct {
	RetryInitial  time.Duration `yaml:"retry_initial"`
	RetryMax      time.Duration `yaml:"retry_max"`
	MaxRetries    uint64        `yaml:"max_retries"`
	LedgerMaxAge  time.Duration `yaml:"ledger_max_age"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// Default возвращает конфигурацию по умолчанию
func Default() Config {
	s := syncengine.DefaultConfig()
	r := chat.DefaultConfig()
	return Config{
		Server: ServerConfig{
			URL:     "http://localhost:8080",
			Timeout: 30 * time.Second,
		},
		Storage: StorageConfig{
			Driver: DriverBolt,
			Path:   "chatsync-client.db",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Sync: SyncConfig{
			ForegroundInterval: s.ForegroundInterval,
			BackgroundInterval: s.BackgroundInterval,
			IdleInterval:       s.IdleInterval,
			IdleAfter:          s.IdleAfter,
			FailurePenalty:     s.FailurePenalty,
			MaxPenalty:         s.MaxPenalty,
			BackoffInitial:     s.BackoffInitial,
			BackoffMax:         s.BackoffMax,
			BackoffMultiplier:  s.BackoffMultiplier,
			BackoffJitter:      s.BackoffJitter,
			MaxRetries:         s.MaxRetries,
			RefreshMinSpacing:  s.RefreshMinSpacing,
		},
		Queue: QueueConfig{
			ConflictDelay:      300 * time.Millisecond,
			MaxConflictRetries: 5,
		},
		Reactions: ReactionsConfig{
			RetryInitial:  r.ReactionRetryInitial,
			RetryMax:      r.ReactionRetryMax,
			MaxRetries:    r.ReactionMaxRetries,
			LedgerMaxAge:  r.LedgerMaxAge,
			SweepInterval: r.LedgerSweepInterval,
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if
// path is not empty), then envFile (ignored if missing), then the environment.
func Load(path, envFile string) (*Config, error) {
	cfg := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("config file not found: %s", path)
			}
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if envFile != "" {
		// godotenv не перезаписывает уже заданные переменные окружения
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	if err := ApplyEnv(&cfg, os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyEnv applies CHATSYNC_* overrides read through lookup.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	get := func(name string) (string, bool) {
		v, ok := lookup(EnvPrefix + name)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	strs := map[string]*string{
		"SERVER_URL":     &cfg.Server.URL,
		"STORAGE_DRIVER": &cfg.Storage.Driver,
		"STORAGE_PATH":   &cfg.Storage.Path,
		"LOG_LEVEL":      &cfg.Log.Level,
		"LOG_FORMAT":     &cfg.Log.Format,
	}
	for name, dst := range strs {
		if v, ok := get(name); ok {
			*dst = v
		}
	}

	durations := map[string]*time.Duration{
		"SERVER_TIMEOUT":      &cfg.Server.Timeout,
		"FOREGROUND_INTERVAL": &cfg.Sync.ForegroundInterval,
		"BACKGROUND_INTERVAL": &cfg.Sync.BackgroundInterval,
		"IDLE_INTERVAL":       &cfg.Sync.IdleInterval,
		"IDLE_AFTER":          &cfg.Sync.IdleAfter,
		"BACKOFF_INITIAL":     &cfg.Sync.BackoffInitial,
		"BACKOFF_MAX":         &cfg.Sync.BackoffMax,
		"REFRESH_MIN_SPACING": &cfg.Sync.RefreshMinSpacing,
		"CONFLICT_DELAY":      &cfg.Queue.ConflictDelay,
	}
	for name, dst := range durations {
		v, ok := get(name)
		if !ok {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s%s: %w", EnvPrefix, name, err)
		}
		*dst = d
	}

	ints := map[string]*int{
		"MAX_RETRIES":          &cfg.Sync.MaxRetries,
		"MAX_CONFLICT_RETRIES": &cfg.Queue.MaxConflictRetries,
		"QUEUE_RATE":           &cfg.Queue.RatePerSecond,
	}
	for name, dst := range ints {
		v, ok := get(name)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s%s: %w", EnvPrefix, name, err)
		}
		*dst = n
	}

	return nil
}

// Validate проверяет корректность конфигурации
func (c *Config) Validate() error {
	var errs []error

	if u, err := url.Parse(c.Server.URL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("server.url must be an absolute URL, got %q", c.Server.URL))
	}

	switch c.Storage.Driver {
	case DriverBolt, DriverSQLite:
		if c.Storage.Path == "" {
			errs = append(errs, fmt.Errorf("storage.path is required for driver %s", c.Storage.Driver))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown storage.driver %q", c.Storage.Driver))
	}

	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}

	s := c.Sync
	if s.ForegroundInterval <= 0 || s.BackgroundInterval <= 0 || s.IdleInterval <= 0 {
		errs = append(errs, errors.New("sync intervals must be positive"))
	}
	if s.BackoffInitial <= 0 || s.BackoffMax < s.BackoffInitial {
		errs = append(errs, errors.New("sync.backoff_max must be >= sync.backoff_initial > 0"))
	}
	if s.BackoffMultiplier < 1 {
		errs = append(errs, errors.New("sync.backoff_multiplier must be >= 1"))
	}
	if s.BackoffJitter < 0 || s.BackoffJitter > 1 {
		errs = append(errs, errors.New("sync.backoff_jitter must be within [0, 1]"))
	}
	if s.FailurePenalty < 0 || s.MaxPenalty < 1 {
		errs = append(errs, errors.New("sync.failure_penalty must be >= 0 and sync.max_penalty >= 1"))
	}
	if s.MaxRetries < 0 {
		errs = append(errs, errors.New("sync.max_retries must not be negative"))
	}

	if c.Queue.MaxConflictRetries < 0 || c.Queue.RatePerSecond < 0 {
		errs = append(errs, errors.New("queue limits must not be negative"))
	}

	return errors.Join(errs...)
}

// SyncEngine returns the sync engine configuration.
func (c *Config) SyncEngine() syncengine.Config {
	return syncengine.Config{
		ForegroundInterval: c.Sync.ForegroundInterval,
		BackgroundInterval: c.Sync.BackgroundInterval,
		IdleInterval:       c.Sync.IdleInterval,
		IdleAfter:          c.Sync.IdleAfter,
		FailurePenalty:     c.Sync.FailurePenalty,
		MaxPenalty:         c.Sync.MaxPenalty,
		BackoffInitial:     c.Sync.BackoffInitial,
		BackoffMax:         c.Sync.BackoffMax,
		BackoffMultiplier:  c.Sync.BackoffMultiplier,
		BackoffJitter:      c.Sync.BackoffJitter,
		MaxRetries:         c.Sync.MaxRetries,
		RefreshMinSpacing:  c.Sync.RefreshMinSpacing,
	}
}

// RequestQueue returns the request queue configuration.
func (c *Config) RequestQueue() queue.Config {
	return queue.Config{
		ConflictDelay:      c.Queue.ConflictDelay,
		MaxConflictRetries: c.Queue.MaxConflictRetries,
		RatePerSecond:      c.Queue.RatePerSecond,
	}
}

// Chat returns the chat facade configuration.
func (c *Config) Chat() chat.Config {
	return chat.Config{
		Location:             time.Local,
		ReactionRetryInitial: c.Reactions.RetryInitial,
		ReactionRetryMax:     c.Reactions.RetryMax,
		ReactionMaxRetries:   c.Reactions.MaxRetries,
		LedgerMaxAge:         c.Reactions.LedgerMaxAge,
		LedgerSweepInterval:  c.Reactions.SweepInterval,
	}
}

// ParseLevel преобразует строковый уровень логирования
func ParseLevel(level string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return 0, fmt.Errorf("invalid log.level %q: %w", level, err)
	}
	return l, nil
}
