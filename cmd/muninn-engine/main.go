// Package main initializes and runs the muninn campaign engine daemon.
//
// It acts as the composition root: it loads configuration, selects the
// user store backend, wires the engine and serves the host API and
// observability endpoints until a shutdown signal arrives.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/rafaeljc/muninn/internal/config"
	"github.com/rafaeljc/muninn/internal/dispatch"
	"github.com/rafaeljc/muninn/internal/engine"
	"github.com/rafaeljc/muninn/internal/hostapi"
	"github.com/rafaeljc/muninn/internal/identity"
	"github.com/rafaeljc/muninn/internal/logger"
	"github.com/rafaeljc/muninn/internal/mixer"
	"github.com/rafaeljc/muninn/internal/observability"
	"github.com/rafaeljc/muninn/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Configuration and logging
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log := logger.New(&cfg.App)
	slog.SetDefault(log)
	cfg.LogConfig(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. User store backend
	userStore, checkers, err := buildStore(ctx, log, cfg)
	if err != nil {
		return err
	}
	defer userStore.Close()

	// 3. Mixer client
	mixerClient := mixer.NewClient(log, &cfg.Mixer, cfg.App.Version)
	checkers = append(checkers, mixerClient)

	// 4. Engine wiring
	images, err := dispatch.NewImageResolver(log, &http.Client{Timeout: cfg.Mixer.RequestTimeout},
		cfg.Engine.ImageCacheCapacity, cfg.Engine.ImageCacheTTL)
	if err != nil {
		return fmt.Errorf("failed to create image resolver: %w", err)
	}
	defer images.Close()

	credentials := identity.NewMutableProvider()
	presenter := dispatch.NewLoggingPresenter(log, cfg.Engine.MessageHoldDuration)

	eng := engine.New(ctx, log, cfg.Engine, engine.Dependencies{
		Provider:   credentials,
		Store:      userStore,
		Fetcher:    mixerClient,
		Permission: mixerClient,
		Presenter:  presenter,
		Images:     images,
	})

	// 5. Servers
	obs := observability.NewServer(log, &cfg.Observability, checkers...)
	obs.Start()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
		defer cancel()
		_ = obs.Shutdown(shutdownCtx)
	}()

	api := hostapi.NewAPI(eng, credentials)

	log.Info("muninn engine started",
		slog.String("hostapi_port", cfg.HostAPI.Port),
		slog.String("store_backend", cfg.Store.Backend),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return eng.Run(gctx) })
	g.Go(func() error { return api.Serve(gctx, &cfg.HostAPI) })

	if err := g.Wait(); err != nil && err != http.ErrServerClosed {
		return err
	}

	log.Info("muninn engine exited")
	return nil
}

// buildStore selects and initializes the configured user store backend,
// returning any readiness checkers it contributes.
func buildStore(ctx context.Context, log *slog.Logger, cfg *config.Config) (store.UserStore, []observability.Checker, error) {
	switch cfg.Store.Backend {
	case config.StoreBackendMemory:
		return store.NewMemoryStore(), nil, nil

	case config.StoreBackendRedis:
		client, err := store.NewRedisClient(ctx, &cfg.Redis)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		s := store.NewRedisStore(log, client, cfg.Store.KeyPrefix)
		return s, []observability.Checker{s}, nil

	case config.StoreBackendPostgres:
		pool, err := store.NewPostgresPool(ctx, &cfg.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		s := store.NewPostgresStore(log, pool)
		return s, []observability.Checker{s}, nil

	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}
