package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/spf13/cobra"

	"parking-gate-backend/config"
	"parking-gate-backend/internal/api"
	"parking-gate-backend/internal/db"
	"parking-gate-backend/internal/decision"
	"parking-gate-backend/internal/gate"
	"parking-gate-backend/internal/notification"
	"parking-gate-backend/internal/registry"
	"parking-gate-backend/internal/session"
	"parking-gate-backend/internal/store"
	"parking-gate-backend/internal/store/memory"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			cfg, err := loadConfig(opts, logger)
			if err != nil {
				return err
			}
			return serve(cfg, logger)
		},
	}
}

// openStore selects the storage backend named by the config.
func openStore(cfg *config.Config, logger *log.Logger) (store.Store, error) {
	if cfg.Database.Driver == "memory" {
		logger.Println("using in-memory store; data is lost on restart")
		return memory.New(), nil
	}

	gormDB, err := db.Open(&cfg.Database)
	if err != nil {
		return nil, err
	}
	if cfg.Database.AutoMigrate {
		if err := db.Migrate(gormDB); err != nil {
			return nil, err
		}
	}
	logger.Println("database initialized successfully")
	return store.NewGormStore(gormDB), nil
}

// buildRouter wires the services behind the HTTP router. notifier may be nil.
func buildRouter(cfg *config.Config, s store.Store, webpushOptions *webpush.Options, notifier decision.Notifier, logger *log.Logger) http.Handler {
	gates := gate.NewCachedDirectory(s, cfg.GateCache.TTL)
	engine := decision.New(gates, s, s, s, decision.Options{
		DuplicateWindow: cfg.Decision.DuplicateWindow,
		EventTimeout:    cfg.Decision.EventTimeout,
		Logger:          logger,
		Notifier:        notifier,
	})

	return api.NewRouter(api.Deps{
		Store:    s,
		Engine:   engine,
		Registry: registry.NewService(s, s),
		Sessions: session.NewService(s, s, cfg.Location),
		WebPush:  webpushOptions,
		Logger:   logger,
	}, api.RouterOptions{
		RateLimit: cfg.Server.RateLimitPerSec,
		Burst:     cfg.Server.RateLimitBurst,
		CacheTTL:  time.Duration(cfg.Server.CacheTTLSeconds) * time.Second,
	})
}

func serve(cfg *config.Config, logger *log.Logger) error {
	appStore, err := openStore(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}

	// Create a context that can be cancelled
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		webpushOptions *webpush.Options
		notifier       decision.Notifier
	)
	if cfg.Push.Enabled() {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
		pool := notification.NewWorkerPool(cfg.WorkerPool.Size, cfg.WorkerPool.Queue, appStore, webpushOptions)
		pool.Start(ctx)
		notifier = pool
	} else {
		logger.Println("VAPID keys are not configured; push notifications disabled")
	}

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: buildRouter(cfg, appStore, webpushOptions, notifier, logger),
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Printf("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Setup signal handling for graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Println("Shutdown signal received, stopping services...")
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("HTTP server ListenAndServe: %w", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP server Shutdown: %w", err)
	}

	logger.Println("Server gracefully stopped")
	return nil
}
