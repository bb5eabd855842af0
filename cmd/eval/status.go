package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/stellarlinkco/replay-eval/internal/fetcher"
)

func newStatusCmd(st *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check episode store connectivity",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return loadState(st)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, st)
		},
	}
}

func runStatus(cmd *cobra.Command, st *cliState) error {
	if st == nil || st.cfg == nil {
		return fmt.Errorf("status: missing config (internal error)")
	}

	client := fetcher.NewClient(st.cfg.EpisodeStoreURL)

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()

	started := time.Now()
	health, err := client.CheckHealth(ctx)
	if err != nil {
		return fmt.Errorf("status: episode store %s unreachable: %w", st.cfg.EpisodeStoreURL, err)
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Episode store: %s\n", st.cfg.EpisodeStoreURL)
	_, _ = fmt.Fprintf(out, "Status: %s (rtt=%dms)\n", health.Status, time.Since(started).Milliseconds())
	if health.Version != "" {
		_, _ = fmt.Fprintf(out, "Version: %s\n", health.Version)
	}
	return nil
}
