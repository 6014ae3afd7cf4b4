package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/aretw0/loam"
	backend "github.com/redis/go-redis/v9"

	"github.com/aretw0/lattice"
	"github.com/aretw0/lattice/internal/config"
	"github.com/aretw0/lattice/pkg/adapters/file"
	loamadapter "github.com/aretw0/lattice/pkg/adapters/loam"
	"github.com/aretw0/lattice/pkg/adapters/memory"
	"github.com/aretw0/lattice/pkg/adapters/postgres"
	"github.com/aretw0/lattice/pkg/adapters/process"
	"github.com/aretw0/lattice/pkg/adapters/redis"
	"github.com/aretw0/lattice/pkg/persistence/middleware"
	"github.com/aretw0/lattice/pkg/ports"
)

// Stack is the set of adapters a configuration selects.
type Stack struct {
	Store  ports.FlowStore
	Loader ports.FlowLoader
	Locker ports.DistributedLocker
	// Commands is set when a commands file is configured.
	Commands ports.CommandRunner

	closers []func() error
}

// Close releases the backend connections of the stack.
func (s *Stack) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	return errors.Join(errs...)
}

// Options returns the engine options that install the stack.
func (s *Stack) Options() []lattice.Option {
	opts := []lattice.Option{lattice.WithStore(s.Store)}
	if s.Loader != nil {
		opts = append(opts, lattice.WithLoader(s.Loader))
	}
	if s.Locker != nil {
		opts = append(opts, lattice.WithLocker(s.Locker))
	}
	if s.Commands != nil {
		opts = append(opts, lattice.WithCommands(s.Commands))
	}
	return opts
}

// OpenStack connects the configured store backend and, when flows.dir is
// set, a Loam loader over that directory. A commands file enables exec nodes.
func OpenStack(ctx context.Context, cfg *config.Config) (*Stack, error) {
	st := &Stack{}

	switch cfg.Store.Backend {
	case config.BackendMemory:
		st.Store = memory.NewStore()
	case config.BackendFile:
		st.Store = file.New(cfg.Store.Path)
	case config.BackendRedis:
		client := backend.NewClient(&backend.Options{
			Addr:     cfg.Store.Redis.Addr,
			Password: cfg.Store.Redis.Password,
			DB:       cfg.Store.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("redis %s: %w", cfg.Store.Redis.Addr, err)
		}
		prefix := cfg.Store.Redis.Prefix
		if prefix == "" {
			prefix = redis.DefaultPrefix
		}
		st.Store = redis.NewFromClient(client, redis.WithPrefix(prefix), redis.WithTTL(cfg.Store.Redis.TTL))
		st.Locker = redis.NewLocker(client, prefix)
		st.closers = append(st.closers, client.Close)
	case config.BackendPostgres:
		var opts []postgres.Option
		if cfg.Store.Postgres.Table != "" {
			opts = append(opts, postgres.WithTable(cfg.Store.Postgres.Table))
		}
		pg, err := postgres.Connect(ctx, cfg.Store.Postgres.DSN, opts...)
		if err != nil {
			return nil, err
		}
		st.Store = pg
		st.closers = append(st.closers, func() error { pg.Close(); return nil })
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}

	mws, err := storeMiddleware(cfg.Store)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	st.Store = middleware.Chain(st.Store, mws...)

	if cfg.Flows.Dir != "" {
		loader, err := OpenLoader(cfg.Flows.Dir)
		if err != nil {
			_ = st.Close()
			return nil, err
		}
		st.Loader = loader
	}

	if cfg.Commands.File != "" {
		runner, err := OpenCommands(cfg.Commands.File)
		if err != nil {
			_ = st.Close()
			return nil, err
		}
		st.Commands = runner
	}
	return st, nil
}

// storeMiddleware builds the redaction and encryption layers the store
// config asks for. Redaction runs first so masked values are sealed too.
func storeMiddleware(cfg config.StoreConfig) ([]middleware.Middleware, error) {
	var mws []middleware.Middleware
	if len(cfg.Redact) > 0 {
		mw, err := middleware.NewRedactMiddleware(cfg.Redact)
		if err != nil {
			return nil, err
		}
		mws = append(mws, mw)
	}
	if cfg.Encryption.Key != "" {
		enc := middleware.EncryptionConfig{}
		key, err := middleware.ParseKey(cfg.Encryption.Key)
		if err != nil {
			return nil, fmt.Errorf("store.encryption.key: %w", err)
		}
		enc.ActiveKey = key
		for i, raw := range cfg.Encryption.FallbackKeys {
			k, err := middleware.ParseKey(raw)
			if err != nil {
				return nil, fmt.Errorf("store.encryption.fallback_keys[%d]: %w", i, err)
			}
			enc.FallbackKeys = append(enc.FallbackKeys, k)
		}
		mw, err := middleware.NewEncryptionMiddleware(enc)
		if err != nil {
			return nil, err
		}
		mws = append(mws, mw)
	}
	return mws, nil
}

// OpenCommands loads the allow-listed commands in path. Commands run from the
// directory holding the file.
func OpenCommands(path string) (*process.Runner, error) {
	commands, err := process.LoadCommands(path)
	if err != nil {
		return nil, err
	}
	return process.NewRunner(
		process.WithCommands(commands),
		process.WithBaseDir(filepath.Dir(path)),
	), nil
}

// OpenLoader initializes a read-only Loam repository over dir.
func OpenLoader(dir string) (*loamadapter.Loader, error) {
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}
	// Strict mode keeps numbers as json.Number; read-only keeps Loam from
	// staging writes in a sandbox.
	repo, err := loam.Init(absPath,
		loam.WithStrict(true),
		loam.WithReadOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize loam: %w", err)
	}
	return loamadapter.New(loam.NewTypedRepository[loamadapter.FlowMetadata](repo)), nil
}

// NewEngine builds an engine over the stack, logging to logger. Extra
// options are applied last.
func NewEngine(st *Stack, logger *slog.Logger, opts ...lattice.Option) (*lattice.Engine, error) {
	all := append(st.Options(), lattice.WithLogger(logger))
	all = append(all, opts...)
	eng, err := lattice.New(all...)
	if err != nil {
		return nil, fmt.Errorf("error initializing engine: %w", err)
	}
	return eng, nil
}
