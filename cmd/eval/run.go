package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/stellarlinkco/replay-eval/internal/config"
	"github.com/stellarlinkco/replay-eval/internal/fetcher"
	"github.com/stellarlinkco/replay-eval/internal/llm"
	"github.com/stellarlinkco/replay-eval/internal/regression"
	"github.com/stellarlinkco/replay-eval/internal/replay"
	"github.com/stellarlinkco/replay-eval/internal/report"
	"github.com/stellarlinkco/replay-eval/internal/safety"
	"github.com/stellarlinkco/replay-eval/internal/scorer"
	"github.com/stellarlinkco/replay-eval/internal/store"
	"github.com/stellarlinkco/replay-eval/internal/sweep"
)

var errRegression = errors.New("replay-eval: critical regression detected")

type runOptions struct {
	agentID     string
	modelFilter string
	maxEpisodes int
	concurrency int
	mode        string
	output      string
	noSave      bool
}

func newRunCmd(st *cliState) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one evaluation sweep",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return loadState(st)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep(cmd, st, &opts)
		},
	}

	cmd.Flags().StringVar(&opts.agentID, "agent", "", "agent id to filter episodes (overrides config)")
	cmd.Flags().StringVar(&opts.modelFilter, "model", "", "model to filter episodes (overrides config)")
	cmd.Flags().IntVar(&opts.maxEpisodes, "max", -1, "max episodes per sweep (overrides config)")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", -1, "parallel pair evaluations (overrides config)")
	cmd.Flags().StringVar(&opts.mode, "mode", "dry", "replay mode: dry|live")
	cmd.Flags().StringVar(&opts.output, "output", "", "output format: table|json|markdown")
	cmd.Flags().BoolVar(&opts.noSave, "no-save", false, "skip persisting the sweep")

	return cmd
}

func runSweep(cmd *cobra.Command, st *cliState, opts *runOptions) error {
	if st == nil || st.cfg == nil {
		return fmt.Errorf("run: missing config (internal error)")
	}
	if opts == nil {
		return fmt.Errorf("run: nil options")
	}

	output, err := resolveOutputFormat(opts.output)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}

	mode, err := replay.ParseMode(opts.mode)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}

	driver, err := buildDriver(st.cfg, opts, mode)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	run, err := driver.Run(ctx)
	if err != nil {
		return err
	}

	if !opts.noSave {
		stor, err := store.Open(st.cfg)
		if err != nil {
			return fmt.Errorf("run: open store: %w", err)
		}
		defer func() { _ = stor.Close() }()
		if err := driver.Save(cmd.Context(), stor, run); err != nil {
			return fmt.Errorf("run: save sweep: %w", err)
		}
	}

	if err := printRun(cmd, run, output); err != nil {
		return err
	}

	if run.Critical > 0 {
		return errRegression
	}
	return nil
}

func printRun(cmd *cobra.Command, run *sweep.Run, output OutputFormat) error {
	out := cmd.OutOrStdout()
	switch output {
	case FormatTable:
		_, _ = fmt.Fprint(out, formatRunTable(run))
	case FormatJSON:
		b, err := report.JSON(run)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(out, string(b))
	case FormatMarkdown:
		_, _ = fmt.Fprint(out, report.Markdown(run))
	default:
		return fmt.Errorf("internal error: unknown output format %q", output)
	}
	return nil
}

// buildDriver wires the sweep collaborators from config plus flag
// overrides. Live mode requires a gateway provider; dry mode never
// touches a model, so its classifier is the no-op one.
func buildDriver(cfg *config.Config, opts *runOptions, mode replay.Mode) (*sweep.Driver, error) {
	client := fetcher.NewClient(cfg.EpisodeStoreURL)

	var provider llm.Provider
	if mode == replay.ModeLive {
		provider = llm.GatewayProvider(cfg)
		if provider == nil {
			return nil, fmt.Errorf("live mode requires gateway_url in config")
		}
	}
	runner := replay.NewRunner(client, provider)

	var classifier safety.Classifier = safety.NoopClassifier{}
	if mode == replay.ModeLive {
		judge, err := llm.DefaultProviderFromConfig(cfg)
		if err != nil {
			return nil, fmt.Errorf("safety judge: %w", err)
		}
		classifier = safety.NewJudgeClassifier(judge)
	}

	weights, err := cfg.ScoreWeights()
	if err != nil {
		return nil, err
	}
	engine, err := scorer.NewEngine(scorer.DefaultRegistry(), weights)
	if err != nil {
		return nil, err
	}

	table, err := cfg.ThresholdTable()
	if err != nil {
		return nil, err
	}
	detector, err := regression.NewDetector(table)
	if err != nil {
		return nil, err
	}

	sweepCfg := sweep.Config{
		AgentID:     cfg.Evaluation.AgentID,
		ModelFilter: cfg.Evaluation.ModelFilter,
		MaxEpisodes: cfg.Evaluation.MaxEpisodes,
		Concurrency: cfg.Evaluation.Concurrency,
		Mode:        mode,
		Timeout:     cfg.Evaluation.Timeout,
	}
	if opts.agentID != "" {
		sweepCfg.AgentID = opts.agentID
	}
	if opts.modelFilter != "" {
		sweepCfg.ModelFilter = opts.modelFilter
	}
	if opts.maxEpisodes >= 0 {
		sweepCfg.MaxEpisodes = opts.maxEpisodes
	}
	if opts.concurrency >= 0 {
		sweepCfg.Concurrency = opts.concurrency
	}

	return sweep.NewDriver(client, runner, classifier, engine, detector, sweepCfg)
}
