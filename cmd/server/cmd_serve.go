package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/maryannartillero/POS-namon/internal/cache"
	"github.com/maryannartillero/POS-namon/internal/config"
	"github.com/maryannartillero/POS-namon/internal/httpapi"
	"github.com/maryannartillero/POS-namon/internal/inventory"
	"github.com/maryannartillero/POS-namon/internal/logger"
	"github.com/maryannartillero/POS-namon/internal/metrics"
	"github.com/maryannartillero/POS-namon/internal/notify"
	"github.com/maryannartillero/POS-namon/internal/service"
	"github.com/maryannartillero/POS-namon/internal/store"
	"github.com/maryannartillero/POS-namon/internal/store/memory"
	pgstore "github.com/maryannartillero/POS-namon/internal/store/postgres"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(contextOf(cmd))
		},
	}
}

func runServe(ctx context.Context) error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	log := logger.New(cfg.AppEnv)

	startCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	closers := make([]func() error, 0, 3)
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				log.Error("close failed", "error", err)
			}
		}
	}()

	repo, ready, closeRepo, err := openRepository(startCtx, cfg, log)
	if err != nil {
		return err
	}
	closers = append(closers, closeRepo)

	reports := cache.ReportCache(cache.NoopReportCache{})
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisReportCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.Location())
		if err := redisCache.Ping(startCtx); err != nil {
			log.Warn("redis unavailable, report cache disabled", "addr", cfg.RedisAddr, "error", err)
			_ = redisCache.Close()
		} else {
			reports = redisCache
			closers = append(closers, redisCache.Close)
			log.Info("report cache: redis", "addr", cfg.RedisAddr)
		}
	}

	m := metrics.New()
	notifier := notify.New(notify.WebhookConfig{
		URL:     cfg.NotifyWebhookURL,
		Timeout: cfg.NotifyTimeout(),
		Workers: cfg.NotifyWorkers,
	}, log, m)
	if c, ok := notifier.(io.Closer); ok {
		closers = append(closers, c.Close)
	}

	policy, err := inventory.ParseOutPolicy(cfg.StockOutPolicy)
	if err != nil {
		return err
	}

	svc := service.New(repo, service.Options{
		TaxRatePercent:     cfg.TaxRatePercent,
		OutPolicy:          policy,
		ClampFixedDiscount: cfg.DiscountClampFixed,
		Location:           cfg.Location(),
		Notifier:           notifier,
		ReportCache:        reports,
		ReportCacheTTL:     cfg.ReportCacheTTL(),
		Recorder:           m,
		Logger:             log,
		TopProducts:        cfg.TopProductsLimit,
		RecentComments:     cfg.FeedbackCommentsLimit,
	})
	auth := httpapi.NewAuthManager(cfg.AuthSecret, cfg.AccessTokenTTL(), repo)
	api := httpapi.New(svc, auth, httpapi.Options{
		AllowedOrigin: cfg.AllowedOrigin,
		Logger:        log,
		Metrics:       m,
		Ready:         ready,
	})

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("pos server listening", "addr", cfg.Address(), "env", cfg.AppEnv, "stock_out_policy", policy)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-sigCtx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
	}
	log.Info("server stopped")
	return nil
}

// openRepository picks postgres when DATABASE_URL is set and the seeded
// in-memory store otherwise. A configured but unreachable database is fatal.
func openRepository(ctx context.Context, cfg config.Config, log *slog.Logger) (store.Repository, func(context.Context) error, func() error, error) {
	if cfg.DatabaseURL == "" {
		log.Info("repository: in-memory")
		return memory.NewSeeded(), nil, func() error { return nil }, nil
	}

	pg, err := pgstore.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("postgres unavailable and DATABASE_URL is set: %w", err)
	}
	if cfg.MigrateOnStart {
		if err := pg.Migrate(ctx); err != nil {
			_ = pg.Close()
			return nil, nil, nil, fmt.Errorf("migrate: %w", err)
		}
	}
	log.Info("repository: postgres")
	return pg, pg.Ping, pg.Close, nil
}
