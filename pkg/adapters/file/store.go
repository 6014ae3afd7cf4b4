package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aretw0/lattice/pkg/document"
)

// Store implements ports.FlowStore using the local filesystem.
// Each flow is one file named <id><ext> in a configured directory.
type Store struct {
	BasePath string
	codec    document.Codec
	ext      string
}

// Option configures a Store.
type Option func(*Store)

// WithFormat selects the file format by extension (".json", ".yaml", ".lfb").
func WithFormat(ext string) Option {
	return func(s *Store) {
		if codec, err := document.CodecFor("flow" + ext); err == nil {
			s.codec = codec
			s.ext = strings.ToLower(ext)
		}
	}
}

// New creates a new Store with the given base path.
// If basePath is empty, it defaults to ".lattice/flows".
func New(basePath string, opts ...Option) *Store {
	if basePath == "" {
		basePath = filepath.Join(".lattice", "flows")
	}
	s := &Store{BasePath: basePath, codec: document.JSON{}, ext: ".json"}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) path(id string) string {
	return filepath.Join(s.BasePath, id+s.ext)
}

func validID(id string) error {
	if id == "" {
		return fmt.Errorf("flow id cannot be empty")
	}
	if strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return fmt.Errorf("invalid flow id %q", id)
	}
	return nil
}

// Save persists the flow atomically.
// It writes to a temporary file first, syncs via fsync, and then renames it to the destination.
func (s *Store) Save(ctx context.Context, f *document.Flow) error {
	if f == nil {
		return fmt.Errorf("nil flow")
	}
	if err := validID(f.ID); err != nil {
		return err
	}
	if err := os.MkdirAll(s.BasePath, 0755); err != nil {
		return fmt.Errorf("failed to ensure flow directory: %w", err)
	}

	cp := document.Clone(f)
	cp.UpdatedAt = time.Now().UTC()
	data, err := s.codec.Marshal(cp)
	if err != nil {
		return fmt.Errorf("failed to encode flow: %w", err)
	}

	// Same directory keeps the rename on one filesystem.
	tmpFile, err := os.CreateTemp(s.BasePath, "tmp-"+f.ID+"-*"+s.ext)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath) // no-op after a successful rename
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	// Cannot rename an open file on Windows.
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	destPath := s.path(f.ID)
	// On Windows, os.Rename fails if dest exists.
	if _, err := os.Stat(destPath); err == nil {
		if err := os.Remove(destPath); err != nil {
			return fmt.Errorf("failed to remove existing flow file for overwrite: %w", err)
		}
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// Load reads a flow file.
func (s *Store) Load(ctx context.Context, id string) (*document.Flow, error) {
	if err := validID(id); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", document.ErrFlowNotFound, id)
		}
		return nil, fmt.Errorf("failed to read flow file: %w", err)
	}

	var f document.Flow
	if err := s.codec.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to decode flow %s: %w", id, err)
	}
	return &f, nil
}

// Delete removes the flow file.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := validID(id); err != nil {
		return err
	}
	err := os.Remove(s.path(id))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete flow file: %w", err)
	}
	return nil
}

// List returns the ids of all flow files.
func (s *Store) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.BasePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list flows: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, "tmp-") || !strings.EqualFold(filepath.Ext(name), s.ext) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, filepath.Ext(name)))
	}
	sort.Strings(ids)
	return ids, nil
}
