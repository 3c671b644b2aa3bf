package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/bailiff/internal/backfill"
	"github.com/MikeSquared-Agency/bailiff/internal/config"
)

func newBackfillCmd() *cobra.Command {
	var (
		cfg   backfill.Config
		since string
	)

	cmd := &cobra.Command{
		Use:   "backfill <dir>",
		Short: "Replay a directory of notice .txt files, oldest first",
		Long: `Process every *.txt notice under <dir> in modification-time order.
Progress is saved to a state file so an interrupted run resumes where it stopped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.Dir = args[0]
			cfg.Output = cmd.OutOrStdout()
			if since != "" {
				t, err := time.Parse("2006-01-02", since)
				if err != nil {
					return fmt.Errorf("invalid --since %q: %w", since, err)
				}
				cfg.Since = t
			}

			p, err := buildPipeline(cmd.Context(), config.Load())
			if err != nil {
				return err
			}
			defer p.Close()

			var notifier backfill.Notifier
			if p.poster != nil {
				notifier = p.poster
			}
			return backfill.NewRunner(cfg, p.proc, p.parser, notifier, slog.Default()).Run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&cfg.StatePath, "state", backfill.DefaultStatePath, "state file for resuming")
	cmd.Flags().StringVar(&since, "since", "", "skip files modified before this date (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&cfg.DryRun, "dry-run", false, "parse only, no store or calendar writes")
	cmd.Flags().IntVar(&cfg.BatchSize, "batch-size", 25, "save state and post a summary every N files")
	cmd.Flags().DurationVar(&cfg.Pause, "pause", 0, "pause between batches")
	cmd.Flags().StringVar(&cfg.Source, "source", "backfill", "source label stored with each notice")
	return cmd
}
