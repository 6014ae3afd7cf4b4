// Package postgres stores flow documents in a PostgreSQL table as jsonb.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aretw0/lattice/pkg/document"
)

// DefaultTable is the table used when none is configured.
const DefaultTable = "lattice_flows"

var tableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Store implements ports.FlowStore on top of a pgx pool.
type Store struct {
	pool  *pgxpool.Pool
	table string
}

type Option func(*Store)

// WithTable overrides the table name. Invalid identifiers are ignored.
func WithTable(name string) Option {
	return func(s *Store) {
		if tableName.MatchString(name) {
			s.table = name
		}
	}
}

// New wraps an existing pool.
func New(pool *pgxpool.Pool, opts ...Option) *Store {
	s := &Store{pool: pool, table: DefaultTable}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Connect opens a pool for dsn and makes sure the table exists.
func Connect(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres pool: %w", err)
	}
	s := New(pool, opts...)
	if err := s.CreateTables(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// CreateTables creates the flow table if it is missing.
func (s *Store) CreateTables(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id         VARCHAR(255) PRIMARY KEY,
			name       TEXT NOT NULL DEFAULT '',
			document   JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_%s_updated_at ON %s (updated_at);
	`, s.table, s.table, s.table)

	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return nil
}

// Save upserts the flow.
func (s *Store) Save(ctx context.Context, f *document.Flow) error {
	if f == nil || f.ID == "" {
		return fmt.Errorf("flow id cannot be empty")
	}
	cp := document.Clone(f)
	cp.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("failed to encode flow: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, name, document, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			document = EXCLUDED.document,
			updated_at = EXCLUDED.updated_at
	`, s.table)

	if _, err := s.pool.Exec(ctx, query, cp.ID, cp.Name, data, cp.UpdatedAt); err != nil {
		return fmt.Errorf("failed to save flow: %w", err)
	}
	return nil
}

// Load reads one flow.
func (s *Store) Load(ctx context.Context, id string) (*document.Flow, error) {
	query := fmt.Sprintf(`SELECT document FROM %s WHERE id = $1`, s.table)

	var data []byte
	if err := s.pool.QueryRow(ctx, query, id).Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", document.ErrFlowNotFound, id)
		}
		return nil, fmt.Errorf("failed to load flow: %w", err)
	}

	var f document.Flow
	if err := (document.JSON{}).Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to decode flow %s: %w", id, err)
	}
	return &f, nil
}

// Delete removes a flow. Deleting a missing id is not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = $1", s.table)
	if _, err := s.pool.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("failed to delete flow: %w", err)
	}
	return nil
}

// List returns all ids in ascending order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf("SELECT id FROM %s ORDER BY id", s.table))
	if err != nil {
		return nil, fmt.Errorf("failed to list flows: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan flow ids: %w", err)
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}
