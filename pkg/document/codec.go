package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v3"
)

// Codec converts flow documents to and from bytes.
type Codec interface {
	Name() string
	Marshal(f *Flow) ([]byte, error)
	Unmarshal(data []byte, f *Flow) error
}

// JSON is the default codec.
type JSON struct{}

func (JSON) Name() string { return "json" }

func (JSON) Marshal(f *Flow) ([]byte, error) {
	return json.MarshalIndent(f, "", "  ")
}

// Unmarshal keeps numbers exact; boxing normalizes them later.
func (JSON) Unmarshal(data []byte, f *Flow) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(f)
}

// YAML reads and writes flows as YAML documents.
type YAML struct{}

func (YAML) Name() string { return "yaml" }

func (YAML) Marshal(f *Flow) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(f); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (YAML) Unmarshal(data []byte, f *Flow) error {
	return yaml.Unmarshal(data, f)
}

// Binary is MessagePack compressed with zstd.
type Binary struct{}

func (Binary) Name() string { return "binary" }

func (Binary) Marshal(f *Flow) ([]byte, error) {
	raw, err := msgpack.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("msgpack encode: %w", err)
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll(raw, make([]byte, 0, len(raw))), nil
}

func (Binary) Unmarshal(data []byte, f *Flow) error {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return err
	}
	defer dec.Close()
	raw, err := dec.DecodeAll(data, nil)
	if err != nil {
		return fmt.Errorf("zstd decode: %w", err)
	}
	if err := msgpack.Unmarshal(raw, f); err != nil {
		return fmt.Errorf("msgpack decode: %w", err)
	}
	return nil
}

// BinaryExt is the file extension of the binary codec.
const BinaryExt = ".lfb"

// Extensions lists the file extensions CodecFor understands.
var Extensions = []string{".json", ".yaml", ".yml", BinaryExt}

// CodecFor picks a codec by file extension.
func CodecFor(path string) (Codec, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return JSON{}, nil
	case ".yaml", ".yml":
		return YAML{}, nil
	case BinaryExt:
		return Binary{}, nil
	default:
		return nil, fmt.Errorf("unsupported flow file extension: %q", filepath.Ext(path))
	}
}

// ReadFile loads a flow document, choosing the codec by extension.
// A document without an id takes the file name (without extension).
func ReadFile(path string) (*Flow, error) {
	codec, err := CodecFor(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f Flow
	if err := codec.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if f.ID == "" {
		f.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return &f, nil
}

// WriteFile encodes f with the codec matching path.
func WriteFile(path string, f *Flow) error {
	codec, err := CodecFor(path)
	if err != nil {
		return err
	}
	data, err := codec.Marshal(f)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
