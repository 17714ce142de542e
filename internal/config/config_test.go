package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dyluth/lanes/internal/board"
	"github.com/dyluth/lanes/internal/realtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lanes.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `instance: desk
backend: sqlite
sqlite:
  path: /tmp/lanes-test.db
board:
  containers:
    - id: inbox
      tracked: true
    - id: scratch
      tracked: false
    - id: vault
      tracked: true
  feed: inbox
  bank: vault
  feed_limit: 5
  tables:
    items: [inbox]
    the_bank: [vault]
annotation:
  endpoint: http://consult.local/api
  timeout: 10s
retry:
  initial_interval: 100ms
  max_interval: 1s
  max_elapsed_time: 5s
log:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "desk", cfg.Instance)
	assert.Equal(t, BackendSQLite, cfg.Backend)
	assert.Equal(t, "/tmp/lanes-test.db", cfg.SQLite.Path)
	assert.Equal(t, []board.ContainerSpec{
		{ID: "inbox", Tracked: true},
		{ID: "scratch", Tracked: false},
		{ID: "vault", Tracked: true},
	}, cfg.Topology())
	assert.Equal(t, 10*time.Second, cfg.Annotation.Timeout)
	assert.Equal(t, 100*time.Millisecond, cfg.Retry.InitialInterval)
	assert.Equal(t, "json", cfg.Log.Format)

	layout := cfg.Layout()
	assert.Equal(t, board.ContainerID("inbox"), layout.Feed)
	assert.Equal(t, board.ContainerID("vault"), layout.Bank)
	assert.Equal(t, 5, layout.FeedLimit)

	routes := cfg.Routes()
	assert.Equal(t, []board.ContainerID{"inbox"}, routes[realtime.TableItems])
	assert.Equal(t, []board.ContainerID{"vault"}, routes[realtime.TableBank])

	policy := cfg.RetryPolicy()
	assert.Equal(t, time.Second, policy.MaxInterval)
	assert.Equal(t, 5*time.Second, policy.MaxElapsedTime)
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "instance: defaults\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, BackendRedis, cfg.Backend)
	assert.Equal(t, "redis://localhost:6379", cfg.Redis.URL)
	assert.Equal(t, board.DefaultTopology(), cfg.Topology())
	assert.Equal(t, string(board.FeedContainer), cfg.Board.Feed)
	assert.Equal(t, string(board.BankContainer), cfg.Board.Bank)
	assert.Equal(t, 20, cfg.Board.FeedLimit)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, 30*time.Second, cfg.Annotation.Timeout)
	assert.Equal(t, 500*time.Millisecond, cfg.Retry.InitialInterval)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, realtime.DefaultRoutes(), cfg.Routes())
}

func TestLoad_EnvOverride(t *testing.T) {
	path := writeConfig(t, "instance: from-file\n")
	t.Setenv("LANES_INSTANCE", "from-env")
	t.Setenv("LANES_REDIS_URL", "redis://cache:6380/2")
	t.Setenv("LANES_BOARD_FEED_LIMIT", "7")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Instance)
	assert.Equal(t, 7, cfg.Board.FeedLimit)

	opts, err := cfg.RedisOptions()
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, 2, opts.DB)
}

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "default", cfg.Instance)
}

func TestLoad_FileNotFound(t *testing.T) {
	cfg, err := Load("/nonexistent/lanes.yml")
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to read config")
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "instance: [unclosed\nbackend: redis\n")

	cfg, err := Load(path)
	assert.Error(t, err)
	assert.Nil(t, cfg)
}

func TestLoad_InvalidConfig(t *testing.T) {
	path := writeConfig(t, "backend: mongo\n")

	cfg, err := Load(path)
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "invalid configuration")
	assert.Contains(t, err.Error(), "invalid backend: mongo")
}

func validConfig() *Config {
	return &Config{
		Instance: "test",
		Backend:  BackendRedis,
		Redis:    RedisConfig{URL: "redis://localhost:6379"},
		Board: BoardConfig{
			Containers: board.DefaultTopology(),
			Feed:       string(board.FeedContainer),
			Bank:       string(board.BankContainer),
			FeedLimit:  20,
			Tables: map[string][]string{
				realtime.TableItems: {string(board.FeedContainer)},
			},
		},
		Retry: RetryConfig{InitialInterval: time.Second},
		Log:   LogConfig{Level: "info", Format: "console"},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing instance", func(c *Config) { c.Instance = "" }, "instance is required"},
		{"instance with separator", func(c *Config) { c.Instance = "a:b" }, "invalid instance name"},
		{"unknown backend", func(c *Config) { c.Backend = "etcd" }, "invalid backend"},
		{"redis without url", func(c *Config) { c.Redis.URL = "" }, "redis.url is required"},
		{"sqlite without path", func(c *Config) { c.Backend = BackendSQLite }, "sqlite.path is required"},
		{"no containers", func(c *Config) { c.Board.Containers = nil }, "at least one container"},
		{"empty container id", func(c *Config) {
			c.Board.Containers = append(c.Board.Containers, board.ContainerSpec{})
		}, "container id cannot be empty"},
		{"duplicate container", func(c *Config) {
			c.Board.Containers = append(c.Board.Containers, board.ContainerSpec{ID: board.FeedContainer, Tracked: true})
		}, "duplicate container id 'feed-1'"},
		{"unknown feed", func(c *Config) { c.Board.Feed = "nowhere" }, "board.feed: unknown container"},
		{"local bank", func(c *Config) { c.Board.Bank = string(board.StagingContainer) }, "board.bank: container 'active-ops' must be tracked"},
		{"feed equals bank", func(c *Config) { c.Board.Feed = c.Board.Bank }, "must differ"},
		{"zero feed limit", func(c *Config) { c.Board.FeedLimit = 0 }, "feed_limit must be positive"},
		{"table to unknown container", func(c *Config) {
			c.Board.Tables["notes"] = []string{"ghost"}
		}, "board.tables.notes: unknown container 'ghost'"},
		{"table to local container", func(c *Config) {
			c.Board.Tables["notes"] = []string{string(board.StagingContainer)}
		}, "is local and cannot be refreshed"},
		{"negative timeout", func(c *Config) { c.Annotation.Timeout = -time.Second }, "annotation.timeout"},
		{"zero retry interval", func(c *Config) { c.Retry.InitialInterval = 0 }, "retry.initial_interval"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "invalid log.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRedisOptions_InvalidURL(t *testing.T) {
	cfg := validConfig()
	cfg.Redis.URL = "http://not-redis"

	_, err := cfg.RedisOptions()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid redis.url")
}
