// Package socketio turns events from a socket.io server into flow triggers
// for event_start nodes.
package socketio

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"

	"github.com/aretw0/lattice/internal/logging"
	"github.com/aretw0/lattice/pkg/ports"
)

// ConnectTimeout bounds Dial when ctx has no deadline.
const ConnectTimeout = 15 * time.Second

// Config describes the socket.io endpoint.
type Config struct {
	URL                string `mapstructure:"url" validate:"omitempty,url"`
	Namespace          string `mapstructure:"namespace"`
	InsecureSkipVerify bool   `mapstructure:"insecure_skip_verify"`
}

// ListenFunc registers fn for every occurrence of event.
type ListenFunc func(event string, fn func(args ...any))

// Source is a ports.EventSource backed by socket.io events. Each event name
// is one topic.
type Source struct {
	listen ListenFunc
	logger *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc
	close  func()

	mu        sync.Mutex
	handlers  map[string]ports.EventHandler
	listening map[string]bool
	inflight  sync.WaitGroup
}

var _ ports.EventSource = (*Source)(nil)

// Option configures a Source.
type Option func(*Source)

// WithLogger sets the logger used for handler failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *Source) { s.logger = l }
}

// NewSource builds a Source on top of an arbitrary listener registration,
// which lets callers plug in any emitter.
func NewSource(listen ListenFunc, opts ...Option) *Source {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Source{
		listen:    listen,
		logger:    logging.NewNop(),
		ctx:       ctx,
		cancel:    cancel,
		close:     func() {},
		handlers:  make(map[string]ports.EventHandler),
		listening: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dial connects to the server and returns a Source bound to the connected socket.
func Dial(ctx context.Context, cfg Config, opts ...Option) (*Source, error) {
	parsedURL, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}

	sopts := socket.DefaultOptions()
	sopts.SetPath(parsedURL.Path)
	if cfg.InsecureSkipVerify {
		sopts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	sopts.SetTransports(types.NewSet(transports.WebSocket))

	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	manager := socket.NewManager(baseURL, sopts)
	io := manager.Socket(cfg.Namespace, sopts)

	connected := make(chan error, 1)
	io.Once(types.EventName("connect"), func(...any) {
		connected <- nil
	})
	io.Once(types.EventName("connect_error"), func(errs ...any) {
		err := fmt.Errorf("connect error")
		if len(errs) > 0 {
			if e, ok := errs[0].(error); ok {
				err = e
			}
		}
		connected <- err
	})
	io.Connect()

	select {
	case err := <-connected:
		if err != nil {
			io.Disconnect()
			return nil, fmt.Errorf("socket.io connection failed: %w", err)
		}
	case <-ctx.Done():
		io.Disconnect()
		return nil, fmt.Errorf("context cancelled while waiting for socket.io connection: %w", ctx.Err())
	case <-time.After(ConnectTimeout):
		io.Disconnect()
		return nil, fmt.Errorf("timed out after %s waiting for socket.io connection", ConnectTimeout)
	}

	s := NewSource(func(event string, fn func(...any)) {
		io.On(types.EventName(event), fn)
	}, opts...)
	s.close = func() { io.Disconnect() }
	s.logger.Info("socket.io connected", "url", cfg.URL, "namespace", cfg.Namespace, "sid", io.Id())
	return s, nil
}

// Subscribe routes event to h. The first subscription to an event name
// installs a listener that stays for the life of the Source.
func (s *Source) Subscribe(event string, h ports.EventHandler) (ports.Unsubscribe, error) {
	if event == "" {
		return nil, fmt.Errorf("event name cannot be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.handlers[event]; ok {
		return nil, fmt.Errorf("%w: %s", ports.ErrTopicInUse, event)
	}
	s.handlers[event] = h
	if !s.listening[event] {
		s.listening[event] = true
		s.listen(event, func(args ...any) { s.deliver(event, args) })
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.handlers, event)
			s.mu.Unlock()
		})
	}, nil
}

// deliver runs the handler off the socket's event goroutine.
func (s *Source) deliver(event string, args []any) {
	s.mu.Lock()
	h, ok := s.handlers[event]
	s.mu.Unlock()
	if !ok || s.ctx.Err() != nil {
		return
	}

	var payload any
	if len(args) > 0 {
		payload = args[0]
	}

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		if err := h(s.ctx, payload); err != nil {
			s.logger.Warn("socket.io event handler failed", "event", event, "err", err)
		}
	}()
}

// Close disconnects and waits for running handlers.
func (s *Source) Close() error {
	s.cancel()
	s.close()
	s.inflight.Wait()
	return nil
}
