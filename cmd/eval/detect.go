package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/stellarlinkco/replay-eval/internal/regression"
	"github.com/stellarlinkco/replay-eval/internal/store"
	"github.com/stellarlinkco/replay-eval/internal/sweep"
)

type detectOptions struct {
	file string
}

func newDetectCmd(st *cliState) *cobra.Command {
	var opts detectOptions

	cmd := &cobra.Command{
		Use:   "detect [sweep-id]",
		Short: "Re-run regression detection with the current thresholds",
		Long: "Re-applies the threshold table from the config file to a stored sweep " +
			"(or a sweep JSON written by run/nightly) without re-scoring anything. " +
			"Useful after tightening thresholds.",
		Args: cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return loadState(st)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			sweepID := ""
			if len(args) == 1 {
				sweepID = args[0]
			}
			return runDetect(cmd, st, sweepID, &opts)
		},
	}

	cmd.Flags().StringVar(&opts.file, "file", "", "sweep JSON file instead of a stored sweep")

	return cmd
}

func runDetect(cmd *cobra.Command, st *cliState, sweepID string, opts *detectOptions) error {
	if st == nil || st.cfg == nil {
		return fmt.Errorf("detect: missing config (internal error)")
	}

	file := strings.TrimSpace(opts.file)
	switch {
	case file != "" && sweepID != "":
		return fmt.Errorf("detect: --file and a sweep id are mutually exclusive")
	case file == "" && sweepID == "":
		return fmt.Errorf("detect: specify a sweep id or --file <path>")
	}

	var run *sweep.Run
	var err error
	if file != "" {
		run, err = loadRunFile(file)
	} else {
		var stor store.Store
		stor, err = store.Open(st.cfg)
		if err != nil {
			return fmt.Errorf("detect: open store: %w", err)
		}
		defer func() { _ = stor.Close() }()
		run, err = loadStoredRun(cmd.Context(), stor, sweepID)
	}
	if err != nil {
		return fmt.Errorf("detect: %w", err)
	}

	table, err := st.cfg.ThresholdTable()
	if err != nil {
		return fmt.Errorf("detect: %w", err)
	}
	detector, err := regression.NewDetector(table)
	if err != nil {
		return fmt.Errorf("detect: %w", err)
	}

	var alerts []regression.Alert
	scored := 0
	for _, pr := range run.Results {
		if pr.Result == nil {
			continue
		}
		scored++
		found, err := detector.Detect(pr.Result)
		if err != nil {
			return fmt.Errorf("detect: %w", err)
		}
		alerts = append(alerts, found...)
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Sweep: %s results=%d\n", run.ID, scored)
	if len(alerts) == 0 {
		_, _ = fmt.Fprintln(out, "No regressions detected.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SEVERITY\tDIMENSION\tEPISODE\tMESSAGE")
	for _, a := range alerts {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", coloredSeverity(a.Severity), a.Dimension, a.BaselineID, a.Message)
	}
	_ = tw.Flush()

	if regression.HasCritical(alerts) {
		return errRegression
	}
	return nil
}

func loadRunFile(path string) (*sweep.Run, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var run sweep.Run
	if err := json.Unmarshal(b, &run); err != nil {
		return nil, fmt.Errorf("parse %q: %w", path, err)
	}
	if run.ID == "" && len(run.Results) == 0 {
		return nil, fmt.Errorf("%q does not look like a sweep file", path)
	}
	return &run, nil
}
