package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/jkimaro/pesaflow/backend/internal/config"
	"github.com/jkimaro/pesaflow/backend/internal/logging"
	"github.com/jkimaro/pesaflow/backend/internal/scoring"
	"github.com/jkimaro/pesaflow/backend/internal/server"
	"github.com/jkimaro/pesaflow/backend/internal/service"
	"github.com/jkimaro/pesaflow/backend/internal/store"
)

func main() {
	ctx := context.Background()

	// Optional .env for local runs; the environment wins in deployment.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging)

	if cfg.Scoring.URL == "" {
		logger.Error("SCORING_URL is required")
		os.Exit(1)
	}

	st, err := buildStore(ctx, logger, cfg)
	if err != nil {
		logger.Error("failed to create transaction store", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			logger.Warn("closing transaction store failed", "error", err)
		}
	}()

	notifier, _ := st.(store.Notifier)

	scorer := scoring.NewClient(cfg.Scoring.URL, scoring.PayloadVariant(cfg.Scoring.Payload), cfg.Scoring.Timeout)
	if cfg.Scoring.FailOpen {
		logger.Warn("fail-open scoring policy active: unscoreable transfers will be classified legit")
	}

	pipeline := service.NewPipeline(st, scorer, service.PipelineConfig{
		Thresholds: service.Thresholds{
			Flag:  cfg.Policy.FlagThreshold,
			Block: cfg.Policy.BlockThreshold,
		},
		TransferFee: cfg.Policy.TransferFee,
		Currency:    cfg.Policy.Currency,
		FailOpen:    cfg.Scoring.FailOpen,
	}, logger, nil)

	view := service.NewRecipientView(st, notifier, cfg.Policy.FeedPollInterval, logger)

	origins := parseAllowedOrigins(cfg.HTTP.AllowedOriginsCSV)
	apiHandlers := server.NewAPIHandlers(logger, pipeline, st, view, cfg.Policy.HighValueAdvisory, origins)

	router := server.NewRouter(logger, server.RouterDependencies{
		Health:           server.StoreHealthService{Store: st},
		API:              apiHandlers,
		AllowedOrigins:   origins,
		AllowCredentials: true,
	})

	srv := server.New(logger, cfg.HTTP, router)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("server stopped unexpectedly", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}

// buildStore selects Postgres when configured, otherwise the in-memory
// backend, and layers the Redis projection cache when an address is set.
func buildStore(ctx context.Context, logger *slog.Logger, cfg config.Config) (store.Store, error) {
	var st store.Store
	if cfg.Database.URL != "" {
		pg, err := store.NewPostgresStore(ctx, store.Options{
			URL:            cfg.Database.URL,
			MaxConnections: cfg.Database.MaxConnections,
		})
		if err != nil {
			return nil, err
		}
		logger.Info("using postgres transaction store")
		st = pg
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory transaction store")
		st = store.NewMemoryStore()
	}

	if cfg.Redis.Addr != "" {
		logger.Info("recipient feed cache enabled", "addr", cfg.Redis.Addr)
		st = store.NewCachedStore(st, store.CacheOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Redis.FeedTTL,
		}, logger)
	}
	return st, nil
}

func parseAllowedOrigins(csv string) []string {
	if csv == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	var origins []string
	for _, part := range parts {
		origin := strings.TrimSpace(part)
		if origin == "" {
			continue
		}
		origins = append(origins, origin)
	}
	return origins
}
