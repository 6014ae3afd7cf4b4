package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lattice.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, BackendFile, cfg.Store.Backend)
	assert.Equal(t, ".lattice/flows", cfg.Store.Path)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, "/", cfg.SocketIO.Namespace)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
log_level: debug
flows:
  dir: ./flows
store:
  backend: redis
  redis:
    addr: localhost:6379
    db: 2
    ttl: 90s
http:
  addr: ":9090"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "./flows", cfg.Flows.Dir)
	assert.Equal(t, BackendRedis, cfg.Store.Backend)
	assert.Equal(t, "localhost:6379", cfg.Store.Redis.Addr)
	assert.Equal(t, 2, cfg.Store.Redis.DB)
	assert.Equal(t, 90*time.Second, cfg.Store.Redis.TTL)
	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.Equal(t, ".lattice/flows", cfg.Store.Path, "defaults survive a partial store section")
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "store:\n  backend: memory\n")
	t.Setenv("LATTICE_STORE_BACKEND", "postgres")
	t.Setenv("LATTICE_STORE_POSTGRES_DSN", "postgres://localhost/lattice")
	t.Setenv("LATTICE_STORE_REDIS_TTL", "1m")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, BackendPostgres, cfg.Store.Backend)
	assert.Equal(t, "postgres://localhost/lattice", cfg.Store.Postgres.DSN)
	assert.Equal(t, time.Minute, cfg.Store.Redis.TTL)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"unknown backend", "store:\n  backend: etcd\n", "oneof"},
		{"redis without addr", "store:\n  backend: redis\n", "Redis.Addr"},
		{"postgres without dsn", "store:\n  backend: postgres\n", "Postgres.DSN"},
		{"bad log level", "log_level: loud\n", "LogLevel"},
		{"unknown key", "stroe:\n  backend: memory\n", "stroe"},
		{"bad socketio url", "socketio:\n  url: not a url\n", "URL"},
		{"encryption key not base64", "store:\n  encryption:\n    key: '%%%'\n", "Encryption.Key"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestEnvKeys(t *testing.T) {
	keys := EnvKeys()
	assert.Contains(t, keys, "LATTICE_HTTP_ADDR")
	assert.IsIncreasing(t, keys)
}
