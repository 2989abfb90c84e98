package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/use-agent/scrapedeck/config"
	"github.com/use-agent/scrapedeck/models"
)

// NewRunCmd creates the run command.
func NewRunCmd() *cobra.Command {
	var (
		file string
		id   string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Load a board, fetch every entity and print its text",
		Example: `  scrapedeck run --config board.json
  scrapedeck run --config board.yaml --id 2`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load()
			if file != "" {
				cfg.Board.ConfigPath = file
			}
			initLogger(cfg.Log, os.Stderr)

			board, _, closeEngine, err := newBoard(cfg)
			if err != nil {
				return err
			}
			defer closeEngine()

			if err := board.Load(cmd.Context(), cfg.Board.ConfigPath); err != nil {
				return fmt.Errorf("%s", board.Status())
			}

			views := board.Snapshots()
			if id != "" {
				views = filterViews(views, id)
				if len(views) == 0 {
					return fmt.Errorf("no entity with id %s", id)
				}
			}
			printViews(cmd.OutOrStdout(), views)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "config", "c", "", "board file (default $SCRAPEDECK_CONFIG or config.json)")
	cmd.Flags().StringVar(&id, "id", "", "print only this entity")

	return cmd
}

func filterViews(views []models.EntityView, id string) []models.EntityView {
	for _, v := range views {
		if v.ID == id {
			return []models.EntityView{v}
		}
	}
	return nil
}

// printViews writes a header line per entity followed by its text, or by
// its status message when there is no text.
func printViews(w io.Writer, views []models.EntityView) {
	for i, v := range views {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "[%s] %s (%s)\n", v.ID, v.URL, v.State)
		switch {
		case v.Text != "":
			fmt.Fprintln(w, v.Text)
		case v.Message != "":
			fmt.Fprintf(w, "! %s\n", v.Message)
		}
	}
}
