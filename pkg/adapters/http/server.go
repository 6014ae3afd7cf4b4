// Package http receives webhooks for webhook_start nodes and serves the
// operational routes of a lattice host.
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aretw0/lattice/internal/logging"
	"github.com/aretw0/lattice/pkg/ports"
)

// MaxBodyBytes caps the size of a webhook body.
const MaxBodyBytes = 1 << 20

const shutdownTimeout = 5 * time.Second

// Server is a chi router that doubles as a ports.EventSource: webhook
// start nodes subscribe to a path and receive the decoded request body.
type Server struct {
	router   chi.Router
	logger   *slog.Logger
	gatherer prometheus.Gatherer
	title    string
	version  string

	mu    sync.RWMutex
	hooks map[string]ports.EventHandler
}

var _ ports.EventSource = (*Server)(nil)

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithGatherer sets the registry served on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// WithInfo sets the title and version of the OpenAPI description.
func WithInfo(title, version string) Option {
	return func(s *Server) {
		s.title = title
		s.version = version
	}
}

// NewServer builds the router.
func NewServer(opts ...Option) *Server {
	s := &Server{
		logger:   logging.NewNop(),
		gatherer: prometheus.DefaultGatherer,
		title:    "lattice",
		version:  "dev",
		hooks:    make(map[string]ports.EventHandler),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)
	r.Get("/healthz", s.health)
	r.Get("/openapi.json", s.openAPI)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	r.Post("/hooks/*", s.webhook)
	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Subscribe routes POST /hooks/<topic> to h.
func (s *Server) Subscribe(topic string, h ports.EventHandler) (ports.Unsubscribe, error) {
	if topic == "" {
		return nil, fmt.Errorf("webhook path cannot be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.hooks[topic]; ok {
		return nil, fmt.Errorf("%w: /hooks/%s", ports.ErrTopicInUse, topic)
	}
	s.hooks[topic] = h
	s.logger.Debug("webhook registered", "path", "/hooks/"+topic)

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.hooks, topic)
			s.mu.Unlock()
			s.logger.Debug("webhook removed", "path", "/hooks/"+topic)
		})
	}, nil
}

// Hooks lists the registered webhook topics.
func (s *Server) Hooks() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	topics := make([]string, 0, len(s.hooks))
	for t := range s.hooks {
		topics = append(topics, t)
	}
	sort.Strings(topics)
	return topics
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) webhook(w http.ResponseWriter, r *http.Request) {
	topic := chi.URLParam(r, "*")

	s.mu.RLock()
	h, ok := s.hooks[topic]
	s.mu.RUnlock()
	if !ok {
		http.Error(w, "Unknown webhook", http.StatusNotFound)
		return
	}

	payload, err := decodeBody(r)
	if err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.logger.Warn("webhook: invalid request body", "path", topic, "error", err)
		return
	}

	if err := h(r.Context(), payload); err != nil {
		http.Error(w, fmt.Sprintf("Run error: %v", err), http.StatusInternalServerError)
		s.logger.Error("webhook run failed", "path", topic, "error", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// decodeBody reads an optional JSON body. An empty body decodes to nil.
func decodeBody(r *http.Request) (any, error) {
	data, err := io.ReadAll(io.LimitReader(r.Body, MaxBodyBytes))
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) openAPI(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Describe())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
