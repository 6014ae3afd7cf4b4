package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/aretw0/lattice"
	"github.com/aretw0/lattice/internal/config"
	httpadapter "github.com/aretw0/lattice/pkg/adapters/http"
	"github.com/aretw0/lattice/pkg/adapters/socketio"
)

// Serve activates every known flow and serves webhooks, the OpenAPI
// description and metrics on cfg.HTTP.Addr until ctx is done. Flows loaded
// from a directory are reloaded as their files change.
func Serve(ctx context.Context, cfg *config.Config, logger *slog.Logger, version string) error {
	st, err := OpenStack(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	srv := httpadapter.NewServer(
		httpadapter.WithLogger(logger),
		httpadapter.WithGatherer(reg),
		httpadapter.WithInfo("lattice", version),
	)
	opts := []lattice.Option{lattice.WithWebhooks(srv), lattice.WithMetrics(reg)}

	if cfg.SocketIO.URL != "" {
		src, err := socketio.Dial(ctx, socketio.Config{URL: cfg.SocketIO.URL, Namespace: cfg.SocketIO.Namespace}, socketio.WithLogger(logger))
		if err != nil {
			return fmt.Errorf("socket.io %s: %w", cfg.SocketIO.URL, err)
		}
		defer func() { _ = src.Close() }()
		opts = append(opts, lattice.WithEvents(src))
	}

	eng, err := NewEngine(st, logger, opts...)
	if err != nil {
		return err
	}
	defer func() {
		if err := eng.Close(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("deactivation failed", "err", err)
		}
	}()

	if err := eng.ActivateAll(ctx); err != nil {
		logger.Warn("some flows are not active", "err", err)
	}
	logger.Info("flows active", "flows", eng.Triggers().Active(), "hooks", srv.Hooks())

	changes, err := eng.Watch(ctx)
	switch {
	case errors.Is(err, lattice.ErrNotWatchable):
	case err != nil:
		return err
	default:
		go func() {
			for id := range changes {
				logger.Info("flow reloaded", "flow", id, "hooks", srv.Hooks())
			}
		}()
	}

	return srv.ListenAndServe(ctx, cfg.HTTP.Addr)
}
