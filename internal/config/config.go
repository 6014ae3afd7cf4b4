// Package config loads the host configuration of the lattice binary.
//
// Sources, later ones winning: built-in defaults, an optional YAML file, a
// .env file and LATTICE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// DefaultFile is read when Load is given no path and the file exists.
const DefaultFile = "lattice.yaml"

// Store backends.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Config is the decoded configuration.
type Config struct {
	LogLevel string         `mapstructure:"log_level" validate:"omitempty,oneof=debug info warn warning error"`
	Flows    FlowsConfig    `mapstructure:"flows"`
	Store    StoreConfig    `mapstructure:"store"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	SocketIO SocketIOConfig `mapstructure:"socketio"`
	Commands CommandsConfig `mapstructure:"commands"`
}

// FlowsConfig points at a directory of authored flow files. When set, flows
// are loaded (and watched) from it instead of the store.
type FlowsConfig struct {
	Dir string `mapstructure:"dir"`
}

type StoreConfig struct {
	Backend  string         `mapstructure:"backend" validate:"oneof=memory file redis postgres"`
	Path     string         `mapstructure:"path"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Postgres PostgresConfig `mapstructure:"postgres"`

	Encryption EncryptionConfig `mapstructure:"encryption"`
	// Redact lists patterns of setting names masked before a flow is stored.
	Redact []string `mapstructure:"redact"`
}

// EncryptionConfig seals node settings at rest when Key is set. Keys are
// base64 encoded AES-256 keys.
type EncryptionConfig struct {
	Key          string   `mapstructure:"key" validate:"omitempty,base64"`
	FallbackKeys []string `mapstructure:"fallback_keys" validate:"dive,base64"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr" validate:"omitempty,hostname_port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db" validate:"gte=0"`
	Prefix   string        `mapstructure:"prefix"`
	TTL      time.Duration `mapstructure:"ttl" validate:"gte=0"`
}

type PostgresConfig struct {
	DSN   string `mapstructure:"dsn"`
	Table string `mapstructure:"table"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr" validate:"required"`
}

// SocketIOConfig enables the event bus source when URL is set.
type SocketIOConfig struct {
	URL       string `mapstructure:"url" validate:"omitempty,url"`
	Namespace string `mapstructure:"namespace"`
}

// CommandsConfig points at the allow-list of local commands exec nodes may run.
type CommandsConfig struct {
	File string `mapstructure:"file"`
}

// envKeys maps environment variables onto configuration keys.
var envKeys = map[string]string{
	"LATTICE_LOG_LEVEL":            "log_level",
	"LATTICE_FLOWS_DIR":            "flows.dir",
	"LATTICE_STORE_BACKEND":        "store.backend",
	"LATTICE_STORE_PATH":           "store.path",
	"LATTICE_STORE_REDIS_ADDR":     "store.redis.addr",
	"LATTICE_STORE_REDIS_PASSWORD": "store.redis.password",
	"LATTICE_STORE_REDIS_DB":       "store.redis.db",
	"LATTICE_STORE_REDIS_PREFIX":   "store.redis.prefix",
	"LATTICE_STORE_REDIS_TTL":      "store.redis.ttl",
	"LATTICE_STORE_POSTGRES_DSN":   "store.postgres.dsn",
	"LATTICE_STORE_POSTGRES_TABLE": "store.postgres.table",
	"LATTICE_STORE_ENCRYPTION_KEY": "store.encryption.key",
	"LATTICE_HTTP_ADDR":            "http.addr",
	"LATTICE_SOCKETIO_URL":         "socketio.url",
	"LATTICE_SOCKETIO_NAMESPACE":   "socketio.namespace",
	"LATTICE_COMMANDS_FILE":        "commands.file",
}

// EnvKeys returns the supported environment variables, sorted.
func EnvKeys() []string {
	out := make([]string, 0, len(envKeys))
	for k := range envKeys {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func defaults() map[string]any {
	return map[string]any{
		"log_level": "info",
		"store": map[string]any{
			"backend": BackendFile,
			"path":    ".lattice/flows",
		},
		"http": map[string]any{
			"addr": ":8080",
		},
		"socketio": map[string]any{
			"namespace": "/",
		},
	}
}

// Load reads the configuration. An empty path falls back to DefaultFile when
// it exists; an explicit path must exist.
func Load(path string) (*Config, error) {
	// A missing .env is the common case.
	_ = godotenv.Load()

	raw := defaults()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		var file map[string]any
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		merge(raw, file)
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	for env, key := range envKeys {
		if v, ok := os.LookupEnv(env); ok {
			set(raw, key, v)
		}
	}

	return Decode(raw)
}

// Decode turns a raw key tree into a checked Config.
func Decode(raw map[string]any) (*Config, error) {
	var cfg Config
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           &cfg,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		s := sl.Current().Interface().(StoreConfig)
		switch s.Backend {
		case BackendFile:
			if strings.TrimSpace(s.Path) == "" {
				sl.ReportError(s.Path, "Path", "Path", "required_for_backend", s.Backend)
			}
		case BackendRedis:
			if s.Redis.Addr == "" {
				sl.ReportError(s.Redis.Addr, "Redis.Addr", "Addr", "required_for_backend", s.Backend)
			}
		case BackendPostgres:
			if s.Postgres.DSN == "" {
				sl.ReportError(s.Postgres.DSN, "Postgres.DSN", "DSN", "required_for_backend", s.Backend)
			}
		}
	}, StoreConfig{})
	return v
}

// Validate checks field constraints and backend requirements.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fmt.Sprintf("%s: failed %s %s", fe.Namespace(), fe.Tag(), fe.Param()))
		}
		return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
	}
	return nil
}

// merge copies src into dst, descending into nested maps.
func merge(dst, src map[string]any) {
	for k, v := range src {
		if sub, ok := v.(map[string]any); ok {
			if existing, ok := dst[k].(map[string]any); ok {
				merge(existing, sub)
				continue
			}
		}
		dst[k] = v
	}
}

// set writes value at a dotted key, creating intermediate maps.
func set(m map[string]any, key string, value any) {
	parts := strings.Split(key, ".")
	for _, p := range parts[:len(parts)-1] {
		next, ok := m[p].(map[string]any)
		if !ok {
			next = map[string]any{}
			m[p] = next
		}
		m = next
	}
	m[parts[len(parts)-1]] = value
}
