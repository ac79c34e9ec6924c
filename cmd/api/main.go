// Package main implements the politician lookup API server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/WessleyAI/polidossier/engine/cache"
	"github.com/WessleyAI/polidossier/engine/dossier"
	"github.com/WessleyAI/polidossier/engine/events"
	"github.com/WessleyAI/polidossier/engine/oracle"
	"github.com/WessleyAI/polidossier/engine/photo"
	"github.com/WessleyAI/polidossier/pkg/metrics"
	"github.com/WessleyAI/polidossier/pkg/natsutil"
	"github.com/WessleyAI/polidossier/pkg/resilience"
)

func main() {
	cfg, err := loadConfig()
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)
	if err != nil {
		logger.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	// --- Oracle ---
	provider, err := oracle.New(ctx, cfg.oracleConfig())
	if err != nil {
		return fmt.Errorf("oracle: %w", err)
	}
	breaker := resilience.NewBreaker(resilience.BreakerOpts{
		FailThreshold: cfg.BreakerThreshold,
		Timeout:       cfg.BreakerCooldown,
		Ignore:        resilience.IgnoreCanceled,
		OnStateChange: func(from, to resilience.State) {
			logger.Warn("oracle circuit breaker", "from", from.String(), "to", to.String())
		},
	})
	gw := oracle.Guarded(oracle.Instrumented(provider, cfg.Provider, m), breaker)

	// --- Events (optional) ---
	var pub events.Publisher = events.Nop{}
	if cfg.NATSURL != "" {
		nc, err := natsutil.Connect(cfg.NATSURL, "polidossier-api", logger)
		if err != nil {
			return err
		}
		defer nc.Drain()
		pub = events.NewNATS(nc)
		logger.Info("publishing events to NATS", "url", cfg.NATSURL)
	}

	// --- Service ---
	store := cache.NewStore(cfg.CacheTTL, cache.WithMetrics(m))
	svc := dossier.New(dossier.Deps{
		Oracle:  gw,
		Photos:  photo.NewResolver(gw, photo.NewValidator(cfg.PhotoTimeout, m, logger), logger),
		Store:   store,
		Events:  pub,
		Metrics: m,
		Logger:  logger,
	})
	limiter := resilience.NewKeyedLimiter(resilience.KeyedOpts{Max: cfg.RateLimitMax, Window: cfg.RateLimitWindow})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      newHandler(svc, limiter, m, cfg, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	// --- Graceful shutdown ---
	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "port", cfg.Port, "provider", cfg.Provider, "static_dir", cfg.StaticDir)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}
