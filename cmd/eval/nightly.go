package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/stellarlinkco/replay-eval/internal/replay"
	"github.com/stellarlinkco/replay-eval/internal/report"
	"github.com/stellarlinkco/replay-eval/internal/store"
)

type nightlyOptions struct {
	mode string
}

func newNightlyCmd(st *cliState) *cobra.Command {
	var opts nightlyOptions

	cmd := &cobra.Command{
		Use:   "nightly",
		Short: "Run the configured sweep and write reports (for cron)",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return loadState(st)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNightly(cmd, st, &opts)
		},
	}

	cmd.Flags().StringVar(&opts.mode, "mode", "dry", "replay mode: dry|live")

	return cmd
}

// runNightly is the cron entry point: everything comes from config, the
// sweep is always persisted, and both report formats land in the report
// directory. A critical alert flips the exit code so the job shows up
// red without anyone reading the output.
func runNightly(cmd *cobra.Command, st *cliState, opts *nightlyOptions) error {
	if st == nil || st.cfg == nil {
		return fmt.Errorf("nightly: missing config (internal error)")
	}

	mode, err := replay.ParseMode(opts.mode)
	if err != nil {
		return fmt.Errorf("nightly: %w", err)
	}

	driver, err := buildDriver(st.cfg, &runOptions{maxEpisodes: -1, concurrency: -1}, mode)
	if err != nil {
		return fmt.Errorf("nightly: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	run, err := driver.Run(ctx)
	if err != nil {
		return err
	}

	stor, err := store.Open(st.cfg)
	if err != nil {
		return fmt.Errorf("nightly: open store: %w", err)
	}
	defer func() { _ = stor.Close() }()
	if err := driver.Save(cmd.Context(), stor, run); err != nil {
		return fmt.Errorf("nightly: save sweep: %w", err)
	}

	jsonPath, err := report.WriteJSON(st.cfg.Report.Dir, run)
	if err != nil {
		return fmt.Errorf("nightly: %w", err)
	}
	mdPath, err := report.WriteMarkdown(st.cfg.Report.Dir, run)
	if err != nil {
		return fmt.Errorf("nightly: %w", err)
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Sweep: %s pairs=%d passed=%d failed=%d critical=%d\n",
		run.ID, run.Total, run.Passed, run.Failed, run.Critical)
	_, _ = fmt.Fprintf(out, "Reports: %s %s\n", jsonPath, mdPath)

	if run.Critical > 0 {
		return errRegression
	}
	return nil
}
