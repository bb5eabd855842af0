package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/stellarlinkco/replay-eval/internal/store"
)

type historyOptions struct {
	agentID string
	limit   int
	since   string
}

func newHistoryCmd(st *cliState) *cobra.Command {
	var opts historyOptions

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show sweep history",
		Args:  cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadState(st)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistoryList(cmd, st, &opts)
		},
	}

	cmd.Flags().StringVar(&opts.agentID, "agent", "", "agent id to filter")
	cmd.Flags().IntVar(&opts.limit, "limit", 20, "max sweeps to list")
	cmd.Flags().StringVar(&opts.since, "since", "", "only sweeps since date (YYYY-MM-DD or RFC3339)")

	cmd.AddCommand(newHistoryShowCmd(st))
	cmd.AddCommand(newHistoryTrendCmd(st))
	return cmd
}

func newHistoryShowCmd(st *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "show <sweep-id>",
		Short: "Show details for a sweep",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistoryShow(cmd, st, args[0])
		},
	}
}

func newHistoryTrendCmd(st *cliState) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "trend <agent-id>",
		Short: "Show an agent's score trend across recent sweeps",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistoryTrend(cmd, st, args[0], limit)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "max sweeps in the trend")
	return cmd
}

func runHistoryList(cmd *cobra.Command, st *cliState, opts *historyOptions) error {
	if st == nil || st.cfg == nil {
		return fmt.Errorf("history: missing config (internal error)")
	}
	if opts == nil {
		return fmt.Errorf("history: nil options")
	}

	since, err := parseSince(opts.since)
	if err != nil {
		return fmt.Errorf("history: %w", err)
	}

	stor, err := store.Open(st.cfg)
	if err != nil {
		return err
	}
	defer func() { _ = stor.Close() }()

	var reader store.SweepReader = stor

	sweeps, err := reader.ListSweeps(cmd.Context(), store.SweepFilter{
		AgentID: strings.TrimSpace(opts.agentID),
		Since:   since,
		Limit:   opts.limit,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(sweeps) == 0 {
		_, _ = fmt.Fprintln(out, "No sweeps found.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SWEEP_ID\tSTARTED\tMODE\tAGENT\tPAIRS\tPASSED\tFAILED\tCRITICAL\tAVG")
	for _, s := range sweeps {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%d\t%.3f\n",
			s.ID,
			formatTime(s.StartedAt),
			s.Mode,
			s.AgentID,
			s.TotalPairs,
			s.Passed,
			s.Failed,
			s.CriticalAlerts,
			s.AvgOverall,
		)
	}
	return tw.Flush()
}

func runHistoryShow(cmd *cobra.Command, st *cliState, sweepID string) error {
	if st == nil || st.cfg == nil {
		return fmt.Errorf("history: missing config (internal error)")
	}

	stor, err := store.Open(st.cfg)
	if err != nil {
		return err
	}
	defer func() { _ = stor.Close() }()

	run, err := loadStoredRun(cmd.Context(), stor, sweepID)
	if err != nil {
		return fmt.Errorf("history: %w", err)
	}

	_, _ = fmt.Fprint(cmd.OutOrStdout(), formatRunTable(run))
	return nil
}

func runHistoryTrend(cmd *cobra.Command, st *cliState, agentID string, limit int) error {
	if st == nil || st.cfg == nil {
		return fmt.Errorf("history: missing config (internal error)")
	}

	agentID = strings.TrimSpace(agentID)
	if agentID == "" {
		return fmt.Errorf("history: missing agent id")
	}

	stor, err := store.Open(st.cfg)
	if err != nil {
		return err
	}
	defer func() { _ = stor.Close() }()

	var analytics store.Analytics = stor

	sweeps, err := analytics.AgentHistory(cmd.Context(), agentID, limit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(sweeps) == 0 {
		_, _ = fmt.Fprintf(out, "No sweeps found for agent %q.\n", agentID)
		return nil
	}

	_, _ = fmt.Fprintf(out, "Agent: %s\n", agentID)
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tSWEEP_ID\tAVG\tDELTA\tCRITICAL")
	// AgentHistory returns newest first; walk backwards so the trend
	// reads oldest to newest and deltas point the right way.
	prev := 0.0
	havePrev := false
	for i := len(sweeps) - 1; i >= 0; i-- {
		s := sweeps[i]
		delta := "-"
		if havePrev {
			delta = fmt.Sprintf("%+.3f", s.AvgOverall-prev)
		}
		fmt.Fprintf(tw, "%s\t%s\t%.3f\t%s\t%d\n",
			formatTime(s.StartedAt), s.ID, s.AvgOverall, delta, s.CriticalAlerts)
		prev = s.AvgOverall
		havePrev = true
	}
	return tw.Flush()
}
