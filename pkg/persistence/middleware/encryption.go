package middleware

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/aretw0/lattice/pkg/document"
	"github.com/aretw0/lattice/pkg/ports"
)

// SealedSetting is the only setting a sealed node keeps in the wrapped store.
const SealedSetting = "__sealed__"

// ErrNotSealed is returned when a loaded node carries plain settings.
var ErrNotSealed = errors.New("node settings are not sealed")

// KeySize is the AES-256 key length.
const KeySize = 32

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey seals new writes.
	ActiveKey []byte

	// FallbackKeys are tried in order when the active key cannot open a
	// node, so stores can be re-keyed without downtime.
	FallbackKeys [][]byte
}

// Validate checks the key sizes.
func (c EncryptionConfig) Validate() error {
	if len(c.ActiveKey) != KeySize {
		return fmt.Errorf("active key must be %d bytes, got %d", KeySize, len(c.ActiveKey))
	}
	for i, k := range c.FallbackKeys {
		if len(k) != KeySize {
			return fmt.Errorf("fallback key %d must be %d bytes, got %d", i, KeySize, len(k))
		}
	}
	return nil
}

type encryptionMiddleware struct {
	next   ports.FlowStore
	config EncryptionConfig
}

// NewEncryptionMiddleware seals the settings of every node with AES-GCM.
// Ids, types, layout and connections stay readable so stores can still list
// and summarize flows; setting values are only visible through the middleware.
func NewEncryptionMiddleware(config EncryptionConfig) (Middleware, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return func(next ports.FlowStore) ports.FlowStore {
		return &encryptionMiddleware{next: next, config: config}
	}, nil
}

func (m *encryptionMiddleware) Save(ctx context.Context, f *document.Flow) error {
	if f == nil {
		return m.next.Save(ctx, f)
	}
	sealed := document.Clone(f)
	for i, n := range sealed.Nodes {
		if len(n.Settings) == 0 {
			continue
		}
		plain, err := json.Marshal(n.Settings)
		if err != nil {
			return fmt.Errorf("failed to marshal settings of %s: %w", n.ID, err)
		}
		ciphertext, err := encrypt(plain, m.config.ActiveKey)
		if err != nil {
			return fmt.Errorf("failed to seal settings of %s: %w", n.ID, err)
		}
		sealed.Nodes[i].Settings = map[string]document.Value{
			SealedSetting: {Type: "string", Value: base64.StdEncoding.EncodeToString(ciphertext)},
		}
	}
	return m.next.Save(ctx, sealed)
}

func (m *encryptionMiddleware) Load(ctx context.Context, id string) (*document.Flow, error) {
	f, err := m.next.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	for i, n := range f.Nodes {
		if len(n.Settings) == 0 {
			continue
		}
		v, ok := n.Settings[SealedSetting]
		encoded, isString := v.Value.(string)
		if !ok || !isString || len(n.Settings) != 1 {
			return nil, fmt.Errorf("flow %s node %s: %w", id, n.ID, ErrNotSealed)
		}
		ciphertext, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("flow %s node %s: failed to decode ciphertext: %w", id, n.ID, err)
		}
		plain, err := decryptWithRotation(ciphertext, m.config.ActiveKey, m.config.FallbackKeys)
		if err != nil {
			return nil, fmt.Errorf("flow %s node %s: %w", id, n.ID, err)
		}
		settings := map[string]document.Value{}
		dec := json.NewDecoder(bytes.NewReader(plain))
		dec.UseNumber()
		if err := dec.Decode(&settings); err != nil {
			return nil, fmt.Errorf("flow %s node %s: failed to unmarshal settings: %w", id, n.ID, err)
		}
		f.Nodes[i].Settings = settings
	}
	return f, nil
}

func (m *encryptionMiddleware) Delete(ctx context.Context, id string) error {
	return m.next.Delete(ctx, id)
}

func (m *encryptionMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

func encrypt(plaintext []byte, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func decryptWithRotation(ciphertext []byte, activeKey []byte, fallbackKeys [][]byte) ([]byte, error) {
	if plain, err := decrypt(ciphertext, activeKey); err == nil {
		return plain, nil
	}
	for _, key := range fallbackKeys {
		if plain, err := decrypt(ciphertext, key); err == nil {
			return plain, nil
		}
	}
	return nil, errors.New("decryption failed with all available keys")
}

func decrypt(ciphertext []byte, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}
	nonce, body := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	return gcm.Open(nil, nonce, body, nil)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// ParseKey decodes a base64 AES-256 key.
func ParseKey(s string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("key is not base64: %w", err)
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("key must decode to %d bytes, got %d", KeySize, len(key))
	}
	return key, nil
}
