// Package server exposes the HTTP API: health and readiness probes, Prometheus metrics, the queue
// snapshot and leaderboard, playback URLs for the player overlay, a websocket state feed, and the
// admin command/import endpoints. Every request carries a correlation id and a trace span.
package server

import (
	"bufio"
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/onnwee/clipqueue/command"
	"github.com/onnwee/clipqueue/config"
	"github.com/onnwee/clipqueue/engine"
	"github.com/onnwee/clipqueue/queue"
)

// Engine is the part of *engine.Engine the API uses.
type Engine interface {
	Ready() <-chan struct{}
	Snapshot() queue.State
	Subscribe() (<-chan queue.State, func())
	Execute(ctx context.Context, cmd command.Command, who command.Identity) error
	Import(ctx context.Context, urls []string, tag string) (engine.ImportResult, error)
	Playback(ctx context.Context, id string) (engine.Playback, error)
	PlayerEnded(ctx context.Context, id string) error
}

// Deps are the collaborators of the API.
type Deps struct {
	Engine Engine
	// Ping checks the state backend; nil means there is nothing to check.
	Ping func(ctx context.Context) error
}

// NewRouter returns the HTTP handler with all routes. ctx bounds the rate limiter's cleanup
// goroutine.
func NewRouter(ctx context.Context, deps Deps, cfg *config.Config) http.Handler {
	corsCfg := newCORSConfig(cfg)
	h := &Handlers{engine: deps.Engine, ping: deps.Ping, origins: corsCfg}
	limiter := newIPRateLimiter(ctx, newRateLimiterConfig(cfg))

	r := chi.NewRouter()
	r.Use(withCORS(corsCfg))
	r.Use(withCorrelation)
	r.Use(middleware.Recoverer)

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", h.HandleHealthz)
	r.Get("/readyz", h.HandleReadyz)

	r.Get("/queue", h.HandleQueue)
	r.Get("/queue/leaderboard", h.HandleLeaderboard)
	r.Get("/clips/{id}/playback", h.HandlePlayback)
	r.Post("/player/ended", h.HandlePlayerEnded)
	r.Get("/ws", h.HandleWebsocket)

	r.Route("/admin", func(r chi.Router) {
		r.Use(adminAuth(newAuthConfig(cfg)))
		r.Use(rateLimit(limiter))
		r.Post("/command", h.HandleAdminCommand)
		r.Post("/import", h.HandleAdminImport)
	})
	return r
}

// statusRecorder wraps ResponseWriter to capture status code
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

// Flush implements http.Flusher if the underlying ResponseWriter supports it
func (r *statusRecorder) Flush() {
	if flusher, ok := r.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Hijack lets the websocket upgrade take over the connection.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.statusCode = http.StatusSwitchingProtocols
	return hj.Hijack()
}

// Start runs the HTTP server on addr and shuts down gracefully when ctx is done.
func Start(ctx context.Context, handler http.Handler, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		// Use WithoutCancel to inherit context values but allow shutdown to complete
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("http server shutdown error", slog.Any("err", err))
		}
	}()

	slog.Info("http server listening", slog.String("addr", addr), slog.String("component", "http"))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("http server error", slog.Any("err", err))
		return err
	}
	return nil
}
