package queueadmin

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrymomot/mailqueue/pkg/httpserver"
	"github.com/dmitrymomot/mailqueue/pkg/logger"
)

// Mountable is implemented by services that expose their own routes.
type Mountable interface {
	Handle() http.Handler
}

// RouterOptions configures the process-level router. Every field is optional.
type RouterOptions struct {
	Queue          Mountable
	ReadinessCheck map[string]httpserver.CheckFunc
	CheckTimeout   time.Duration
	Metrics        http.Handler
	Logger         *slog.Logger
}

// Router mounts the queue API under /queue next to health probes and /metrics.
func Router(opts RouterOptions) chi.Router {
	if opts.CheckTimeout <= 0 {
		opts.CheckTimeout = 2 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/health", func(h chi.Router) {
		h.Get("/live", httpserver.LivenessHandler())
		h.Get("/ready", httpserver.ReadinessHandler(opts.Logger, opts.CheckTimeout, opts.ReadinessCheck))
	})

	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics)
	}
	if opts.Queue != nil {
		r.Mount("/queue", opts.Queue.Handle())
	}

	return r
}

// RequestIDExtractor adds chi's request id to log records written with the request context.
func RequestIDExtractor(ctx context.Context) (slog.Attr, bool) {
	id := middleware.GetReqID(ctx)
	if id == "" {
		return slog.Attr{}, false
	}
	return logger.RequestID(id), true
}
