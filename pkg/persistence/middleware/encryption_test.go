package middleware_test

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/lattice/pkg/adapters/memory"
	"github.com/aretw0/lattice/pkg/persistence/middleware"
	"github.com/aretw0/lattice/pkg/ports"
)

func generateKey(t *testing.T) []byte {
	t.Helper()
	k := make([]byte, middleware.KeySize)
	_, err := io.ReadFull(rand.Reader, k)
	require.NoError(t, err)
	return k
}

func sealed(t *testing.T, next ports.FlowStore, cfg middleware.EncryptionConfig) ports.FlowStore {
	t.Helper()
	mw, err := middleware.NewEncryptionMiddleware(cfg)
	require.NoError(t, err)
	return mw(next)
}

func TestEncryptionMiddleware_Contract(t *testing.T) {
	store := sealed(t, memory.NewStore(), middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	ports.RunFlowStoreContract(t, store)
}

func TestEncryptionMiddleware_HidesSettings(t *testing.T) {
	ctx := context.Background()
	inner := memory.NewStore()
	store := sealed(t, inner, middleware.EncryptionConfig{ActiveKey: generateKey(t)})

	flow := ports.ContractFlow("secret")
	require.NoError(t, store.Save(ctx, flow))

	raw, err := inner.Load(ctx, "secret")
	require.NoError(t, err)
	require.Len(t, raw.Nodes, 3)
	for _, n := range raw.Nodes {
		require.Len(t, n.Settings, 1, "node %s", n.ID)
		v, ok := n.Settings[middleware.SealedSetting]
		require.True(t, ok, "node %s", n.ID)
		assert.Equal(t, "string", v.Type)
	}
	assert.Equal(t, flow.Connections, raw.Connections)
	assert.Equal(t, flow.Nodes[2].Layout, raw.Nodes[2].Layout)

	// The caller's document is not modified.
	assert.Contains(t, flow.Nodes[0].Settings, "value_to_add")
}

func TestEncryptionMiddleware_KeyRotation(t *testing.T) {
	ctx := context.Background()
	inner := memory.NewStore()
	oldKey, newKey := generateKey(t), generateKey(t)

	require.NoError(t, sealed(t, inner, middleware.EncryptionConfig{ActiveKey: oldKey}).Save(ctx, ports.ContractFlow("rot")))

	rotated := sealed(t, inner, middleware.EncryptionConfig{ActiveKey: newKey, FallbackKeys: [][]byte{oldKey}})
	got, err := rotated.Load(ctx, "rot")
	require.NoError(t, err)
	ports.AssertSameFlow(t, ports.ContractFlow("rot"), got)

	// Without the old key the flow cannot be opened.
	_, err = sealed(t, inner, middleware.EncryptionConfig{ActiveKey: newKey}).Load(ctx, "rot")
	assert.ErrorContains(t, err, "decryption failed")
}

func TestEncryptionMiddleware_RejectsPlainNodes(t *testing.T) {
	ctx := context.Background()
	inner := memory.NewStore()
	require.NoError(t, inner.Save(ctx, ports.ContractFlow("plain")))

	_, err := sealed(t, inner, middleware.EncryptionConfig{ActiveKey: generateKey(t)}).Load(ctx, "plain")
	assert.ErrorIs(t, err, middleware.ErrNotSealed)
}

func TestEncryptionConfig_Validate(t *testing.T) {
	_, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: []byte("short")})
	assert.Error(t, err)

	_, err = middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
		ActiveKey:    generateKey(t),
		FallbackKeys: [][]byte{[]byte("short")},
	})
	assert.ErrorContains(t, err, "fallback key 0")
}

func TestParseKey(t *testing.T) {
	key := generateKey(t)
	got, err := middleware.ParseKey(base64.StdEncoding.EncodeToString(key))
	require.NoError(t, err)
	assert.Equal(t, key, got)

	_, err = middleware.ParseKey("not base64!")
	assert.Error(t, err)
	_, err = middleware.ParseKey(base64.StdEncoding.EncodeToString([]byte("short")))
	assert.ErrorContains(t, err, "32 bytes")
}
