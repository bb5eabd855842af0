package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/stellarlinkco/replay-eval/internal/regression"
	"github.com/stellarlinkco/replay-eval/internal/replay"
	"github.com/stellarlinkco/replay-eval/internal/scorer"
	"github.com/stellarlinkco/replay-eval/internal/store"
	"github.com/stellarlinkco/replay-eval/internal/sweep"
)

type reportOptions struct {
	output string
}

func newReportCmd(st *cliState) *cobra.Command {
	var opts reportOptions

	cmd := &cobra.Command{
		Use:   "report <sweep-id>",
		Short: "Render a stored sweep",
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return loadState(st)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(cmd, st, args[0], &opts)
		},
	}

	cmd.Flags().StringVar(&opts.output, "output", "markdown", "output format: table|json|markdown")

	return cmd
}

func runReport(cmd *cobra.Command, st *cliState, sweepID string, opts *reportOptions) error {
	if st == nil || st.cfg == nil {
		return fmt.Errorf("report: missing config (internal error)")
	}

	output, err := resolveOutputFormat(opts.output)
	if err != nil {
		return fmt.Errorf("report: %w", err)
	}

	stor, err := store.Open(st.cfg)
	if err != nil {
		return fmt.Errorf("report: open store: %w", err)
	}
	defer func() { _ = stor.Close() }()

	run, err := loadStoredRun(cmd.Context(), stor, sweepID)
	if err != nil {
		return fmt.Errorf("report: %w", err)
	}

	return printRun(cmd, run, output)
}

// loadStoredRun reassembles a sweep from its persisted records. Episode
// outputs are not stored, so a re-rendered report has no output diffs.
func loadStoredRun(ctx context.Context, reader store.SweepReader, sweepID string) (*sweep.Run, error) {
	sweepID = strings.TrimSpace(sweepID)
	if sweepID == "" {
		return nil, fmt.Errorf("missing sweep id")
	}

	rec, err := reader.GetSweep(ctx, sweepID)
	if err != nil {
		return nil, fmt.Errorf("sweep %q not found: %w", sweepID, err)
	}
	results, err := reader.GetResults(ctx, sweepID)
	if err != nil {
		return nil, err
	}
	alerts, err := reader.GetAlerts(ctx, sweepID)
	if err != nil {
		return nil, err
	}

	alertsByResult := make(map[string][]regression.Alert, len(alerts))
	run := &sweep.Run{
		ID:         rec.ID,
		Mode:       replay.Mode(rec.Mode),
		AgentID:    rec.AgentID,
		StartedAt:  rec.StartedAt,
		FinishedAt: rec.FinishedAt,
		Total:      rec.TotalPairs,
		Passed:     rec.Passed,
		Failed:     rec.Failed,
		Critical:   rec.CriticalAlerts,
		AvgOverall: rec.AvgOverall,
	}

	for _, a := range alerts {
		alert := regression.Alert{
			Dimension: scorer.Dimension(a.Dimension),
			Severity:  regression.Severity(a.Severity),
			Raw:       a.Raw,
			Message:   a.Message,
		}
		alertsByResult[a.ResultID] = append(alertsByResult[a.ResultID], alert)
	}

	for _, rr := range results {
		pr := sweep.PairResult{
			EpisodeID: rr.BaselineID,
			Error:     rr.Error,
		}
		if rr.Error == "" {
			pr.Result = &scorer.EvalResult{
				BaselineID: rr.BaselineID,
				ReplayID:   rr.ReplayID,
				AgentID:    rr.AgentID,
				Model:      rr.Model,
				Timestamp:  rr.CreatedAt,
				Dimensions: rr.Dimensions,
				Overall:    rr.Overall,
				Flags:      rr.Flags,
			}
		}
		for _, alert := range alertsByResult[rr.ID] {
			alert.BaselineID = rr.BaselineID
			alert.ReplayID = rr.ReplayID
			pr.Alerts = append(pr.Alerts, alert)
			run.Alerts = append(run.Alerts, alert)
		}
		run.Results = append(run.Results, pr)
	}

	return run, nil
}
