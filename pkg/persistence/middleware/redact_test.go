package middleware_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/lattice/pkg/adapters/memory"
	"github.com/aretw0/lattice/pkg/document"
	"github.com/aretw0/lattice/pkg/persistence/middleware"
	"github.com/aretw0/lattice/pkg/ports"
)

func TestRedactMiddleware(t *testing.T) {
	ctx := context.Background()
	inner := memory.NewStore()
	mw, err := middleware.NewRedactMiddleware([]string{"(?i)token", "^password$"})
	require.NoError(t, err)
	store := mw(inner)

	flow := ports.ContractFlow("hook")
	flow.Nodes[1].Settings["api_token"] = document.Value{Type: "string", Value: "s3cr3t"}
	flow.Nodes[2].Settings["payload"] = document.Value{Type: "object", Value: map[string]any{
		"count": int64(1),
		"auth":  map[string]any{"password": "hunter2", "user": "bob"},
	}}
	require.NoError(t, store.Save(ctx, flow))

	got, err := store.Load(ctx, "hook")
	require.NoError(t, err)
	assert.Equal(t, middleware.Mask, got.Nodes[1].Settings["api_token"].Value)
	assert.Equal(t, "string", got.Nodes[1].Settings["api_token"].Type)
	assert.Equal(t, "result", got.Nodes[1].Settings["key"].Value)

	payload := got.Nodes[2].Settings["payload"].Value.(map[string]any)
	assert.Equal(t, int64(1), payload["count"])
	assert.Equal(t, map[string]any{"password": middleware.Mask, "user": "bob"}, payload["auth"])

	// The caller's document keeps its values.
	assert.Equal(t, "s3cr3t", flow.Nodes[1].Settings["api_token"].Value)
	auth := flow.Nodes[2].Settings["payload"].Value.(map[string]any)["auth"].(map[string]any)
	assert.Equal(t, "hunter2", auth["password"])
}

func TestRedactMiddleware_BadPattern(t *testing.T) {
	_, err := middleware.NewRedactMiddleware([]string{"("})
	assert.Error(t, err)
}

func TestChain(t *testing.T) {
	ctx := context.Background()
	inner := memory.NewStore()
	redact, err := middleware.NewRedactMiddleware([]string{"key"})
	require.NoError(t, err)
	seal, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	require.NoError(t, err)

	store := middleware.Chain(inner, redact, seal)
	require.NoError(t, store.Save(ctx, ports.ContractFlow("c")))

	got, err := store.Load(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, middleware.Mask, got.Nodes[1].Settings["key"].Value)

	raw, err := inner.Load(ctx, "c")
	require.NoError(t, err)
	assert.Contains(t, raw.Nodes[1].Settings, middleware.SealedSetting)
}
