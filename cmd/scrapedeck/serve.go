package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/use-agent/scrapedeck/api"
	"github.com/use-agent/scrapedeck/config"
	"github.com/use-agent/scrapedeck/models"
	"github.com/use-agent/scrapedeck/refresh"
	"github.com/use-agent/scrapedeck/webhook"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	var (
		host     string
		port     int
		file     string
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Long: `Serve the board over the HTTP API under /api/v1.

Settings come from SCRAPEDECK_* environment variables; flags override them.
With --refresh (or SCRAPEDECK_AUTO_REFRESH) every entity is re-fetched on a
fixed interval and changes are posted to SCRAPEDECK_WEBHOOK_URL when set.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load()
			flags := cmd.Flags()
			if flags.Changed("host") {
				cfg.Server.Host = host
			}
			if flags.Changed("port") {
				cfg.Server.Port = port
			}
			if flags.Changed("config") {
				cfg.Board.ConfigPath = file
			}
			if flags.Changed("refresh") {
				cfg.Refresh.Enabled = interval > 0
				cfg.Refresh.Interval = interval
			}
			initLogger(cfg.Log, os.Stdout)
			return serve(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "listen host (default $SCRAPEDECK_HOST or 127.0.0.1)")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (default $SCRAPEDECK_PORT or 8080)")
	cmd.Flags().StringVarP(&file, "config", "c", "", "board file used by /config/save and /config/load")
	cmd.Flags().DurationVar(&interval, "refresh", 0, "auto refresh interval, 0 disables")

	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	slog.Info("scrapedeck starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"engine", cfg.Engine.Kind,
	)

	board, engineName, closeEngine, err := newBoard(cfg)
	if err != nil {
		return fmt.Errorf("init engine: %w", err)
	}
	defer closeEngine()

	if cfg.Board.LoadOnStart {
		if err := board.Load(ctx, cfg.Board.ConfigPath); err != nil {
			slog.Warn("initial board load failed", "path", cfg.Board.ConfigPath, "error", err)
		}
	}

	if cfg.Refresh.Enabled {
		var opts []refresh.Option
		if cfg.Webhook.URL != "" {
			notifier := webhook.NewNotifier(cfg.Webhook.URL, cfg.Webhook.Secret)
			opts = append(opts, refresh.WithReportHandler(func(r []models.FetchReport) {
				notifier.NotifyAsync(r)
			}))
		}
		scheduler := refresh.New(board, cfg.Refresh.Interval, opts...)
		scheduler.Start()
		defer scheduler.Stop()
	}

	router := api.NewRouter(board, cfg, time.Now(), engineName)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-sigCtx.Done():
		slog.Info("shutdown signal received")
	}

	// In-flight requests get 5 seconds to complete.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	slog.Info("scrapedeck stopped")
	return nil
}
