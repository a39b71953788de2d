// Command clipqueue runs a chat-driven media queue for a Twitch stream.
// It:
//   - Loads configuration and initializes structured logging.
//   - Restores the queue from the configured state backend (Postgres, Redis or memory).
//   - Listens to Twitch chat for links and moderator commands.
//   - Exposes the HTTP API with /healthz, /readyz, /metrics, the queue view and a websocket feed.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/onnwee/clipqueue/chat"
	"github.com/onnwee/clipqueue/config"
	"github.com/onnwee/clipqueue/db"
	"github.com/onnwee/clipqueue/engine"
	"github.com/onnwee/clipqueue/provider"
	"github.com/onnwee/clipqueue/server"
	"github.com/onnwee/clipqueue/telemetry"
	"github.com/onnwee/clipqueue/twitchapi"
	"github.com/onnwee/clipqueue/youtubeapi"
)

const version = "1.0.0"

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}
	setupLogging(cfg)

	telemetry.Init()
	shutdownTracing, err := telemetry.InitTracing(cfg.OTLPEndpoint, "clipqueue", version)
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdownTracing()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, ping, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		slog.Error("state backend unavailable", slog.String("backend", cfg.StateBackend), slog.Any("err", err))
		os.Exit(1)
	}
	defer closeStore()

	registry := provider.NewDefault(providerDeps(ctx, cfg), provider.Options{
		MaxConcurrent: cfg.MaxConcurrentFetches,
		Timeout:       cfg.FetchTimeout,
		Logger:        slog.Default(),
	})
	enabled, ok := provider.ParseEnabled(cfg.EnabledProviders)
	if !ok {
		slog.Warn("ENABLED_PROVIDERS has no known names, using all", slog.String("value", cfg.EnabledProviders))
		enabled = append([]provider.Name{}, provider.Known...)
	}
	// Providers missing credentials are not registered.
	registry.SetEnabled(enabled)
	enabled = registry.Enabled()

	eng := engine.New(engine.Config{
		Providers:         enabled,
		Autoplay:          cfg.Autoplay,
		AutoplayDelay:     cfg.AutoplayDelay,
		SkipVoteThreshold: cfg.SkipVoteThreshold,
		HighlightDuration: cfg.HighlightDuration,
		MemoryRetention:   cfg.MemoryRetention,
		FetchTimeout:      cfg.FetchTimeout,
		Logger:            slog.Default(),
	}, registry, store)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return eng.Run(gctx) })

	if cfg.TwitchChannel != "" {
		if err := cfg.ValidateChatReady(); err != nil {
			slog.Info("bot credentials incomplete, joining chat anonymously", slog.Any("reason", err))
		}
		listener := &chat.Listener{
			Channel:    cfg.TwitchChannel,
			Username:   cfg.TwitchBotUsername,
			OAuthToken: cfg.TwitchOAuthToken,
			Prefix:     cfg.CommandPrefix,
			Sink:       eng,
			Logger:     slog.Default(),
		}
		g.Go(func() error { return listener.Run(gctx) })
	} else {
		slog.Info("chat listener disabled (TWITCH_CHANNEL not set)")
	}

	router := server.NewRouter(gctx, server.Deps{Engine: eng, Ping: ping}, cfg)
	g.Go(func() error { return server.Start(gctx, router, cfg.HTTPAddr) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("shutting down after error", slog.Any("err", err))
		stop()
		closeStore()
		shutdownTracing()
		os.Exit(1)
	}
	slog.Info("shut down")
}

// setupLogging installs the default logger. Defaults: level=info, format=text.
func setupLogging(cfg *config.Config) {
	lvl, known := cfg.SlogLevel()
	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler
	if strings.EqualFold(cfg.LogFormat, "json") {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
	if !known {
		slog.Warn("unknown LOG_LEVEL, using info", slog.String("value", cfg.LogLevel))
	}
	slog.Info("logger initialized", slog.String("level", lvl.String()), slog.String("format", cfg.LogFormat))
}

// openStore connects the configured state backend. ping backs the readiness probe.
func openStore(ctx context.Context, cfg *config.Config) (engine.Store, func(context.Context) error, func(), error) {
	switch cfg.StateBackend {
	case config.BackendRedis:
		rs, err := db.NewRedisStore(ctx, cfg.RedisURL, cfg.StateKey)
		if err != nil {
			return nil, nil, nil, err
		}
		ping := func(ctx context.Context) error { return rs.Client.Ping(ctx).Err() }
		return rs, ping, func() {
			if err := rs.Close(); err != nil {
				slog.Debug("redis close", slog.Any("err", err))
			}
		}, nil
	case config.BackendMemory:
		slog.Warn("state backend is memory, the queue is lost on restart")
		return &db.MemoryStore{}, nil, func() {}, nil
	default:
		database, err := db.Connect(cfg.DBDsn)
		if err != nil {
			return nil, nil, nil, err
		}
		slog.Info("running database migrations", slog.String("component", "db_migrate"))
		if err := db.Prepare(ctx, database); err != nil {
			_ = database.Close()
			return nil, nil, nil, err
		}
		return &db.PostgresStore{DB: database, Channel: cfg.StateKey}, database.PingContext, func() {
			if err := database.Close(); err != nil {
				slog.Error("failed to close database", slog.Any("err", err))
			}
		}, nil
	}
}

// providerDeps wires the optional Twitch Helix and YouTube Data API clients.
func providerDeps(ctx context.Context, cfg *config.Config) provider.Deps {
	deps := provider.Deps{
		HTTPClient:     &http.Client{Timeout: cfg.FetchTimeout},
		TwitchClientID: cfg.TwitchClientID,
		TwitchParent:   cfg.TwitchEmbedParent,
	}
	if cfg.TwitchClientID != "" && cfg.TwitchClientSecret != "" {
		ts := &twitchapi.TokenSource{ClientID: cfg.TwitchClientID, ClientSecret: cfg.TwitchClientSecret}
		deps.TwitchToken = ts
		// Best-effort warm-up; a failure only logs.
		tctx, cancel := context.WithTimeout(ctx, 8*time.Second)
		if tok, err := ts.Get(tctx); err != nil {
			slog.Warn("twitch app token fetch failed", slog.Any("err", err))
		} else if len(tok) > 6 {
			slog.Info("twitch app token acquired", slog.String("tail", "***"+tok[len(tok)-6:]))
		}
		cancel()
	} else {
		slog.Warn("twitch helix disabled (client id/secret not set), twitch links are ignored")
	}
	if cfg.YouTubeAPIKey != "" {
		yt, err := youtubeapi.New(ctx, cfg.YouTubeAPIKey)
		if err != nil {
			slog.Warn("youtube data api unavailable, using oEmbed", slog.Any("err", err))
		} else {
			deps.YouTube = yt
		}
	}
	return deps
}
