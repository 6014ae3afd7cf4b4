// Package mcp exposes stored flows to Model Context Protocol clients: list,
// inspect, validate and run them as tools, and browse them as a resource.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/aretw0/lattice/internal/logging"
	"github.com/aretw0/lattice/pkg/document"
	"github.com/aretw0/lattice/pkg/executor"
	"github.com/aretw0/lattice/pkg/graph"
	"github.com/aretw0/lattice/pkg/types"
)

// FlowsURI is the resource listing every flow.
const FlowsURI = "lattice://flows"

// Engine is the part of lattice.Engine the server drives.
type Engine interface {
	ListFlows(ctx context.Context) ([]document.Summary, error)
	LoadFlow(ctx context.Context, id string) (*document.Flow, error)
	Validate(f *document.Flow) (graph.Issues, error)
	RunFlow(ctx context.Context, f *document.Flow, trig executor.Trigger) (executor.Report, error)
}

// FlowList is the result of list_flows.
type FlowList struct {
	Flows []document.Summary `json:"flows" jsonschema_description:"Known flows, sorted by id"`
}

// Validation is the result of validate_flow.
type Validation struct {
	Valid  bool     `json:"valid" jsonschema_description:"True when the flow can run"`
	Issues []string `json:"issues" jsonschema_description:"Validity problems, empty when valid"`
}

// RunResult is the result of run_flow.
type RunResult struct {
	Report executor.Report `json:"report" jsonschema_description:"Per-node outcome of the run"`
	Failed []string        `json:"failed" jsonschema_description:"Nodes that failed at their own hand"`
}

// Server wraps an Engine as an MCP server.
type Server struct {
	engine    Engine
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer registers the flow tools and resources for engine.
func NewServer(engine Engine, version string, opts ...Option) *Server {
	s := &Server{
		engine:    engine,
		logger:    logging.NewNop(),
		mcpServer: server.NewMCPServer("lattice-mcp", strings.TrimSpace(version)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio serves on stdin and stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves over SSE on port until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(fmt.Sprintf("http://localhost:%d", port)))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))
	httpServer := &http.Server{Addr: addr, Handler: mux}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("mcp server listening (sse)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("list_flows",
		mcp.WithDescription("List the stored flows with their node counts."),
		mcp.WithOutputSchema[FlowList](),
	), mcp.NewStructuredToolHandler(s.handleListFlows))

	s.mcpServer.AddTool(mcp.NewTool("get_flow",
		mcp.WithDescription("Get the full document of a flow: nodes, settings and connections."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Flow ID")),
	), s.handleGetFlow)

	s.mcpServer.AddTool(mcp.NewTool("validate_flow",
		mcp.WithDescription("Check whether a flow can run and list what is wrong with it."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Flow ID")),
		mcp.WithOutputSchema[Validation](),
	), mcp.NewStructuredToolHandler(s.handleValidateFlow))

	s.mcpServer.AddTool(mcp.NewTool("run_flow",
		mcp.WithDescription("Run a flow once, as a manual trigger, and report every node."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Flow ID")),
		mcp.WithString("node", mcp.Description("Start node receiving the payload (optional when the flow has one start node)")),
		mcp.WithString("payload", mcp.Description("JSON object overriding the start payload (optional)")),
		mcp.WithOutputSchema[RunResult](),
	), mcp.NewStructuredToolHandler(s.handleRunFlow))
}

func (s *Server) handleListFlows(ctx context.Context, _ mcp.CallToolRequest, _ map[string]interface{}) (FlowList, error) {
	flows, err := s.engine.ListFlows(ctx)
	if err != nil {
		return FlowList{}, fmt.Errorf("list flows: %w", err)
	}
	if flows == nil {
		flows = []document.Summary{}
	}
	return FlowList{Flows: flows}, nil
}

func (s *Server) handleGetFlow(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, _ := request.GetArguments()["id"].(string)
	f, err := s.engine.LoadFlow(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("load %s: %v", id, err)), nil
	}
	data, err := document.JSON{}.Marshal(f)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode %s: %v", id, err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) handleValidateFlow(ctx context.Context, _ mcp.CallToolRequest, args map[string]interface{}) (Validation, error) {
	id, _ := args["id"].(string)
	f, err := s.engine.LoadFlow(ctx, id)
	if err != nil {
		return Validation{}, fmt.Errorf("load %s: %w", id, err)
	}
	issues, err := s.engine.Validate(f)
	if err != nil {
		return Validation{Issues: []string{err.Error()}}, nil
	}
	out := Validation{Valid: len(issues) == 0, Issues: []string{}}
	for _, is := range issues {
		out.Issues = append(out.Issues, is.String())
	}
	return out, nil
}

func (s *Server) handleRunFlow(ctx context.Context, _ mcp.CallToolRequest, args map[string]interface{}) (RunResult, error) {
	id, _ := args["id"].(string)
	f, err := s.engine.LoadFlow(ctx, id)
	if err != nil {
		return RunResult{}, fmt.Errorf("load %s: %w", id, err)
	}

	trig := executor.Trigger{}
	trig.NodeID, _ = args["node"].(string)
	if raw, _ := args["payload"].(string); strings.TrimSpace(raw) != "" {
		payload, err := decodePayload(raw)
		if err != nil {
			return RunResult{}, err
		}
		trig.Payload = &payload
	}

	report, err := s.engine.RunFlow(ctx, f, trig)
	if err != nil {
		s.logger.Warn("mcp run failed", "flow", id, "err", err)
		return RunResult{}, fmt.Errorf("run %s: %w", id, err)
	}
	out := RunResult{Report: report, Failed: []string{}}
	for _, n := range report.Failed() {
		out.Failed = append(out.Failed, n.NodeID)
	}
	return out, nil
}

var errPayloadNotObject = errors.New("payload must be a JSON object")

func decodePayload(raw string) (types.Box, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil || obj == nil {
		return types.Box{}, errPayloadNotObject
	}
	return types.NewBox(obj, types.Object)
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(FlowsURI, "Stored flows",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		list, err := s.handleListFlows(ctx, mcp.CallToolRequest{}, nil)
		if err != nil {
			return nil, err
		}
		data, _ := json.Marshal(list)
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      FlowsURI,
				MIMEType: "application/json",
				Text:     string(data),
			},
		}, nil
	})
}
