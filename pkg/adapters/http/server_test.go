package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/lattice/pkg/ports"
)

func post(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestWebhook_DeliversPayload(t *testing.T) {
	srv := NewServer()
	var got any
	_, err := srv.Subscribe("orders/new", func(ctx context.Context, payload any) error {
		got = payload
		return nil
	})
	require.NoError(t, err)

	w := post(t, srv, "/hooks/orders/new", `{"count": 3}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]any{"count": json.Number("3")}, got)
}

func TestWebhook_EmptyBodyIsNil(t *testing.T) {
	srv := NewServer()
	called := false
	_, err := srv.Subscribe("ping", func(ctx context.Context, payload any) error {
		called = true
		assert.Nil(t, payload)
		return nil
	})
	require.NoError(t, err)

	w := post(t, srv, "/hooks/ping", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, called)
}

func TestWebhook_Errors(t *testing.T) {
	srv := NewServer()
	_, err := srv.Subscribe("fail", func(ctx context.Context, payload any) error {
		return errors.New("boom")
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusNotFound, post(t, srv, "/hooks/unknown", "{}").Code)
	assert.Equal(t, http.StatusBadRequest, post(t, srv, "/hooks/fail", "{not json").Code)

	w := post(t, srv, "/hooks/fail", "{}")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "boom")
}

func TestSubscribe_OneHandlerPerTopic(t *testing.T) {
	srv := NewServer()
	noop := func(context.Context, any) error { return nil }

	un, err := srv.Subscribe("a", noop)
	require.NoError(t, err)

	_, err = srv.Subscribe("a", noop)
	assert.ErrorIs(t, err, ports.ErrTopicInUse)

	un()
	un()
	assert.Empty(t, srv.Hooks())
	assert.Equal(t, http.StatusNotFound, post(t, srv, "/hooks/a", "{}").Code)

	_, err = srv.Subscribe("a", noop)
	assert.NoError(t, err)
}

func TestOpenAPI_ListsActiveHooks(t *testing.T) {
	srv := NewServer(WithInfo("lattice", "1.2.3"))
	_, err := srv.Subscribe("orders", func(context.Context, any) error { return nil })
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/openapi.json", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	doc, err := openapi3.NewLoader().LoadFromData(w.Body.Bytes())
	require.NoError(t, err)
	require.NoError(t, doc.Validate(context.Background()))

	assert.Equal(t, "1.2.3", doc.Info.Version)
	require.NotNil(t, doc.Paths.Find("/hooks/orders"))
	assert.NotNil(t, doc.Paths.Find("/hooks/orders").Post)
	assert.NotNil(t, doc.Paths.Find("/healthz"))
}

func TestHealthAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "lattice_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	srv := NewServer(WithGatherer(reg))

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "lattice_test_total 1")
}

func TestListenAndServe_StopsOnCancel(t *testing.T) {
	srv := NewServer()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe(ctx, "127.0.0.1:0") }()
	cancel()
	assert.NoError(t, <-done)
}
