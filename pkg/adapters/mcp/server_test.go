package mcp

import (
	"context"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/lattice"
	"github.com/aretw0/lattice/pkg/document"
	"github.com/aretw0/lattice/pkg/executor"
	"github.com/aretw0/lattice/pkg/ports"
)

func newTestServer(t *testing.T) (*Server, *lattice.Engine) {
	t.Helper()
	eng, err := lattice.New()
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, eng.SaveFlow(ctx, ports.ContractFlow("orders")))

	broken := ports.ContractFlow("broken")
	broken.Connections = broken.Connections[:1]
	require.NoError(t, eng.Store().Save(ctx, broken))

	return NewServer(eng, "test"), eng
}

func TestServer_ListFlows(t *testing.T) {
	s, _ := newTestServer(t)
	out, err := s.handleListFlows(context.Background(), mcp.CallToolRequest{}, nil)
	require.NoError(t, err)
	require.Len(t, out.Flows, 2)
	assert.Equal(t, "broken", out.Flows[0].ID)
	assert.Equal(t, "orders", out.Flows[1].ID)
}

func TestServer_GetFlow(t *testing.T) {
	s, _ := newTestServer(t)
	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]any{"id": "orders"}

	res, err := s.handleGetFlow(context.Background(), req)
	require.NoError(t, err)
	require.False(t, res.IsError)
	require.Len(t, res.Content, 1)

	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	var f document.Flow
	require.NoError(t, document.JSON{}.Unmarshal([]byte(text.Text), &f))
	ports.AssertSameFlow(t, ports.ContractFlow("orders"), &f)

	req.Params.Arguments = map[string]any{"id": "missing"}
	res, err = s.handleGetFlow(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestServer_ValidateFlow(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()

	ok, err := s.handleValidateFlow(ctx, mcp.CallToolRequest{}, map[string]any{"id": "orders"})
	require.NoError(t, err)
	assert.True(t, ok.Valid)
	assert.Empty(t, ok.Issues)

	bad, err := s.handleValidateFlow(ctx, mcp.CallToolRequest{}, map[string]any{"id": "broken"})
	require.NoError(t, err)
	assert.False(t, bad.Valid)
	assert.Contains(t, bad.Issues, "no connected start node")
}

func TestServer_RunFlow(t *testing.T) {
	s, eng := newTestServer(t)
	ctx := context.Background()

	out, err := s.handleRunFlow(ctx, mcp.CallToolRequest{}, map[string]any{
		"id":      "orders",
		"payload": `{"count": 10}`,
	})
	require.NoError(t, err)
	assert.Equal(t, "orders", out.Report.FlowID)
	assert.Empty(t, out.Failed)

	b, ok := eng.Recorder().Last("result")
	require.True(t, ok)
	assert.Equal(t, int64(14), b.Value())

	_, err = s.handleRunFlow(ctx, mcp.CallToolRequest{}, map[string]any{"id": "orders", "payload": `[1]`})
	assert.ErrorIs(t, err, errPayloadNotObject)

	_, err = s.handleRunFlow(ctx, mcp.CallToolRequest{}, map[string]any{
		"id":      "orders",
		"node":    "inc",
		"payload": `{"count": 10}`,
	})
	assert.ErrorIs(t, err, executor.ErrUnknownTrigger)
}
