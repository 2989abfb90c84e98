package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/use-agent/scrapedeck/config"
	"github.com/use-agent/scrapedeck/models"
	"github.com/use-agent/scrapedeck/refresh"
	"github.com/use-agent/scrapedeck/webhook"
)

// NewWatchCmd creates the watch command.
func NewWatchCmd() *cobra.Command {
	var (
		file    string
		every   time.Duration
		hookURL string
		secret  string
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-fetch a board on an interval and print what changed",
		Long: `Load a board, then re-fetch every entity on a fixed interval. Entities
whose text changed, or whose fetch failed, are printed and optionally posted
to a webhook signed with HMAC-SHA256.`,
		Example: `  scrapedeck watch --config board.json --every 10m
  scrapedeck watch -c board.json --webhook https://hooks.example.com/x --secret s3cr3t`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load()
			flags := cmd.Flags()
			if file != "" {
				cfg.Board.ConfigPath = file
			}
			if flags.Changed("every") {
				cfg.Refresh.Interval = every
			}
			if flags.Changed("webhook") {
				cfg.Webhook.URL = hookURL
			}
			if flags.Changed("secret") {
				cfg.Webhook.Secret = secret
			}
			if cfg.Refresh.Interval <= 0 {
				return fmt.Errorf("--every must be positive, got %s", cfg.Refresh.Interval)
			}
			initLogger(cfg.Log, os.Stderr)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return watch(ctx, cfg, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&file, "config", "c", "", "board file (default $SCRAPEDECK_CONFIG or config.json)")
	cmd.Flags().DurationVar(&every, "every", 5*time.Minute, "refresh interval")
	cmd.Flags().StringVar(&hookURL, "webhook", "", "POST change events to this URL")
	cmd.Flags().StringVar(&secret, "secret", "", "HMAC secret for webhook signatures")

	return cmd
}

func watch(ctx context.Context, cfg *config.Config, out io.Writer) error {
	board, _, closeEngine, err := newBoard(cfg)
	if err != nil {
		return err
	}
	defer closeEngine()

	if err := board.Load(ctx, cfg.Board.ConfigPath); err != nil {
		return fmt.Errorf("%s", board.Status())
	}

	var notifier *webhook.Notifier
	if cfg.Webhook.URL != "" {
		notifier = webhook.NewNotifier(cfg.Webhook.URL, cfg.Webhook.Secret)
	}
	handle := func(reports []models.FetchReport) {
		printChanges(out, reports, time.Now())
		if notifier != nil {
			notifier.NotifyAsync(reports)
		}
	}

	scheduler := refresh.New(board, cfg.Refresh.Interval, refresh.WithReportHandler(handle))

	// Load fetched every entity once; that text is the baseline.
	fmt.Fprintf(out, "watching %d entities every %s\n", board.Len(), cfg.Refresh.Interval)

	scheduler.Start()
	<-ctx.Done()
	scheduler.Stop()
	return nil
}

// printChanges writes one block per changed or failed entity.
func printChanges(w io.Writer, reports []models.FetchReport, at time.Time) {
	stamp := at.Format(refresh.StatusTimeFormat)
	for _, r := range reports {
		switch {
		case r.Error != nil:
			fmt.Fprintf(w, "%s [%s] %s failed: %s\n", stamp, r.ID, r.URL, r.Error.Message)
		case r.Changed:
			fmt.Fprintf(w, "%s [%s] %s changed\n%s\n", stamp, r.ID, r.URL, r.Text)
			if r.LayoutDrifted {
				fmt.Fprintf(w, "%s [%s] page layout drifted, check the filter\n", stamp, r.ID)
			}
		}
	}
}
