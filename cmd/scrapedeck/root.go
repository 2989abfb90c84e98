package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/use-agent/scrapedeck/cleaner"
	"github.com/use-agent/scrapedeck/config"
	"github.com/use-agent/scrapedeck/engine"
	"github.com/use-agent/scrapedeck/scraper"
)

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scrapedeck",
		Short: "Watch pieces of web pages",
		Long: `scrapedeck keeps a board of entities. Each entity fetches one URL,
narrows the page with a class, text or CSS selector filter, renders the
result as markup, text or Markdown and optionally passes it through a
Go transform function.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewRunCmd())
	cmd.AddCommand(NewWatchCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newBoard wires the configured engine into an empty board. The returned
// close func releases the engine (the browser, for the browser engine).
func newBoard(cfg *config.Config) (*scraper.Board, string, func(), error) {
	eng, err := engine.New(cfg.Engine, cfg.Browser)
	if err != nil {
		return nil, "", nil, err
	}
	closeFn := func() {
		if c, ok := eng.(io.Closer); ok {
			if err := c.Close(); err != nil {
				slog.Warn("engine close failed", "engine", eng.Name(), "error", err)
			}
		}
	}

	fetcher := engine.NewFetcher(eng)
	board := scraper.NewBoard(fetcher, cleaner.NewCleaner(), cfg.Board.ChangeThreshold)
	return board, fetcher.EngineName(), closeFn, nil
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig, w io.Writer) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	slog.SetDefault(slog.New(handler))
}
