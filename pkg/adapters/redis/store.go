package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/aretw0/lattice/pkg/document"
)

// DefaultPrefix namespaces every key the store writes.
const DefaultPrefix = "lattice:flow:"

// Store implements ports.FlowStore using Redis.
// Documents are kept as JSON strings; a sorted set indexes the stored ids.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
	codec  document.Codec
}

type Option func(*Store)

// WithTTL sets the expiration for stored flows.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// WithCodec replaces the JSON codec, e.g. with document.Binary{}.
func WithCodec(c document.Codec) Option {
	return func(s *Store) {
		s.codec = c
	}
}

// New creates a new Redis store with options.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: DefaultPrefix,
		codec:  document.JSON{},
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

func (s *Store) key(id string) string {
	return s.prefix + id
}

func (s *Store) indexKey() string {
	return s.prefix + "index"
}

// Save persists the flow.
func (s *Store) Save(ctx context.Context, f *document.Flow) error {
	if f == nil || f.ID == "" {
		return fmt.Errorf("flow id cannot be empty")
	}
	cp := document.Clone(f)
	cp.UpdatedAt = time.Now().UTC()
	data, err := s.codec.Marshal(cp)
	if err != nil {
		return fmt.Errorf("failed to encode flow: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.key(f.ID), data, s.ttl)

	// Score is the expiry time; flows without a TTL sort at the far end.
	score := float64(time.Now().Add(s.ttl).Unix())
	if s.ttl == 0 {
		score = 4102444800 // 2100-01-01
	}
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{
		Score:  score,
		Member: f.ID,
	})

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

// Load retrieves the flow.
func (s *Store) Load(ctx context.Context, id string) (*document.Flow, error) {
	val, err := s.client.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, fmt.Errorf("%w: %s", document.ErrFlowNotFound, id)
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}

	var f document.Flow
	if err := s.codec.Unmarshal(val, &f); err != nil {
		return nil, fmt.Errorf("failed to decode flow %s: %w", id, err)
	}
	return &f, nil
}

// Delete removes the flow and its index entry.
func (s *Store) Delete(ctx context.Context, id string) error {
	pipe := s.client.Pipeline()
	pipe.Del(ctx, s.key(id))
	pipe.ZRem(ctx, s.indexKey(), id)
	_, err := pipe.Exec(ctx)
	return err
}

// List returns the stored ids, pruning index entries whose TTL has passed.
func (s *Store) List(ctx context.Context) ([]string, error) {
	now := float64(time.Now().Unix())
	err := s.client.ZRemRangeByScore(ctx, s.indexKey(), "-inf", fmt.Sprintf("%f", now)).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to prune expired flows: %w", err)
	}

	ids, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list flows: %w", err)
	}
	return ids, nil
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
