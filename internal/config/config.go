package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dyluth/lanes/internal/board"
	"github.com/dyluth/lanes/internal/instance"
	"github.com/dyluth/lanes/internal/persist"
	"github.com/dyluth/lanes/internal/realtime"
	"github.com/dyluth/lanes/pkg/boardstore"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. LANES_REDIS_URL.
const EnvPrefix = "LANES"

// Supported durable store backends.
const (
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

// Config is the full lanes configuration (lanes.yml plus LANES_* overrides).
type Config struct {
	Instance   string           `mapstructure:"instance"`
	Backend    string           `mapstructure:"backend"`
	Redis      RedisConfig      `mapstructure:"redis"`
	SQLite     SQLiteConfig     `mapstructure:"sqlite"`
	Board      BoardConfig      `mapstructure:"board"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	Annotation AnnotationConfig `mapstructure:"annotation"`
	Retry      RetryConfig      `mapstructure:"retry"`
	Log        LogConfig        `mapstructure:"log"`
}

type RedisConfig struct {
	URL string `mapstructure:"url"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// BoardConfig declares the container topology and how store tables map onto it.
type BoardConfig struct {
	Containers []board.ContainerSpec `mapstructure:"containers"`
	Feed       string                `mapstructure:"feed"`
	Bank       string                `mapstructure:"bank"`
	FeedLimit  int                   `mapstructure:"feed_limit"`
	Tables     map[string][]string   `mapstructure:"tables"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

// AnnotationConfig points at the streaming consult endpoint.
type AnnotationConfig struct {
	Endpoint string        `mapstructure:"endpoint"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type RetryConfig struct {
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	MaxElapsedTime  time.Duration `mapstructure:"max_elapsed_time"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("instance", instance.DefaultName)
	v.SetDefault("backend", BackendRedis)
	v.SetDefault("redis.url", "redis://localhost:6379")
	v.SetDefault("sqlite.path", "lanes.db")
	v.SetDefault("board.containers", []map[string]any{
		{"id": string(board.FeedContainer), "tracked": true},
		{"id": string(board.StagingContainer), "tracked": false},
		{"id": string(board.BankContainer), "tracked": true},
	})
	v.SetDefault("board.feed", string(board.FeedContainer))
	v.SetDefault("board.bank", string(board.BankContainer))
	v.SetDefault("board.feed_limit", 20)
	v.SetDefault("board.tables", map[string]any{
		realtime.TableBank:  []string{string(board.BankContainer)},
		realtime.TableItems: []string{string(board.FeedContainer)},
	})
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("annotation.endpoint", "http://localhost:3000/api/consult")
	v.SetDefault("annotation.timeout", 30*time.Second)
	v.SetDefault("retry.initial_interval", 500*time.Millisecond)
	v.SetDefault("retry.max_interval", 5*time.Second)
	v.SetDefault("retry.max_elapsed_time", 30*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// Load reads configuration from path (or ./lanes.yml when path is empty and
// the file exists), applies LANES_* environment overrides and validates it.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else {
		v.SetConfigName("lanes")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate performs strict validation on the configuration
func (c *Config) Validate() error {
	if c.Instance == "" {
		return fmt.Errorf("instance is required")
	}
	if err := instance.ValidateName(c.Instance); err != nil {
		return err
	}

	switch c.Backend {
	case BackendRedis:
		if c.Redis.URL == "" {
			return fmt.Errorf("redis.url is required for the redis backend")
		}
	case BackendSQLite:
		if c.SQLite.Path == "" {
			return fmt.Errorf("sqlite.path is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("invalid backend: %s (must be '%s' or '%s')", c.Backend, BackendRedis, BackendSQLite)
	}

	if err := c.Board.validate(); err != nil {
		return err
	}

	if c.Annotation.Timeout < 0 {
		return fmt.Errorf("annotation.timeout must be >= 0, got %s", c.Annotation.Timeout)
	}
	if c.Retry.InitialInterval <= 0 {
		return fmt.Errorf("retry.initial_interval must be positive, got %s", c.Retry.InitialInterval)
	}
	if c.Retry.MaxElapsedTime < 0 {
		return fmt.Errorf("retry.max_elapsed_time must be >= 0 (0 = retry forever), got %s", c.Retry.MaxElapsedTime)
	}

	if c.Log.Format != "console" && c.Log.Format != "json" {
		return fmt.Errorf("invalid log.format: %s (must be 'console' or 'json')", c.Log.Format)
	}

	return nil
}

func (b *BoardConfig) validate() error {
	if len(b.Containers) == 0 {
		return fmt.Errorf("board.containers must declare at least one container")
	}

	tracked := make(map[string]bool, len(b.Containers))
	for _, spec := range b.Containers {
		if spec.ID == "" {
			return fmt.Errorf("board.containers: container id cannot be empty")
		}
		if _, dup := tracked[string(spec.ID)]; dup {
			return fmt.Errorf("board.containers: duplicate container id '%s'", spec.ID)
		}
		tracked[string(spec.ID)] = spec.Tracked
	}

	for _, role := range []struct{ name, id string }{{"feed", b.Feed}, {"bank", b.Bank}} {
		isTracked, ok := tracked[role.id]
		if !ok {
			return fmt.Errorf("board.%s: unknown container '%s'", role.name, role.id)
		}
		if !isTracked {
			return fmt.Errorf("board.%s: container '%s' must be tracked", role.name, role.id)
		}
	}
	if b.Feed == b.Bank {
		return fmt.Errorf("board.feed and board.bank must differ")
	}

	if b.FeedLimit <= 0 {
		return fmt.Errorf("board.feed_limit must be positive, got %d", b.FeedLimit)
	}

	for table, ids := range b.Tables {
		for _, id := range ids {
			isTracked, ok := tracked[id]
			if !ok {
				return fmt.Errorf("board.tables.%s: unknown container '%s'", table, id)
			}
			if !isTracked {
				return fmt.Errorf("board.tables.%s: container '%s' is local and cannot be refreshed", table, id)
			}
		}
	}

	return nil
}

// Topology returns the declared containers in order.
func (c *Config) Topology() []board.ContainerSpec {
	return append([]board.ContainerSpec(nil), c.Board.Containers...)
}

// Routes returns the table routing for the realtime syncer.
func (c *Config) Routes() realtime.Routes {
	routes := make(realtime.Routes, len(c.Board.Tables))
	for table, ids := range c.Board.Tables {
		for _, id := range ids {
			routes[table] = append(routes[table], board.ContainerID(id))
		}
	}
	return routes
}

// Layout returns the store layout for the configured feed and bank.
func (c *Config) Layout() boardstore.Layout {
	return boardstore.Layout{
		Feed:      board.ContainerID(c.Board.Feed),
		Bank:      board.ContainerID(c.Board.Bank),
		FeedLimit: c.Board.FeedLimit,
	}
}

func (c *Config) RetryPolicy() persist.RetryPolicy {
	return persist.RetryPolicy{
		InitialInterval: c.Retry.InitialInterval,
		MaxInterval:     c.Retry.MaxInterval,
		MaxElapsedTime:  c.Retry.MaxElapsedTime,
	}
}

// RedisOptions parses redis.url.
func (c *Config) RedisOptions() (*redis.Options, error) {
	opts, err := redis.ParseURL(c.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis.url: %w", err)
	}
	return opts, nil
}
