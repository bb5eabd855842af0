// Package sweep drives a batch evaluation: fetch episodes, replay and
// classify them, score pairs in parallel, then detect regressions
// sequentially and summarize.
package sweep

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/stellarlinkco/replay-eval/internal/fetcher"
	"github.com/stellarlinkco/replay-eval/internal/regression"
	"github.com/stellarlinkco/replay-eval/internal/replay"
	"github.com/stellarlinkco/replay-eval/internal/safety"
	"github.com/stellarlinkco/replay-eval/internal/scorer"
	"github.com/stellarlinkco/replay-eval/internal/store"
)

// An overall score at or above the pass bar counts the pair as passed
// in the sweep summary.
const passBar = 0.7

// Config controls one sweep.
type Config struct {
	AgentID     string
	ModelFilter string
	MaxEpisodes int
	Concurrency int
	Mode        replay.Mode
	Timeout     time.Duration
}

// PairResult is the outcome for one episode pair within a sweep.
type PairResult struct {
	EpisodeID      string                 `json:"episode_id"`
	Result         *scorer.EvalResult     `json:"result,omitempty"`
	Alerts         []regression.Alert     `json:"alerts,omitempty"`
	Err            error                  `json:"-"`
	Error          string                 `json:"error,omitempty"`
	BaselineOutput string                 `json:"baseline_output,omitempty"`
	ReplayOutput   string                 `json:"replay_output,omitempty"`
}

// Run is one complete sweep across a batch of episodes.
type Run struct {
	ID         string             `json:"sweep_id"`
	Mode       replay.Mode        `json:"mode"`
	AgentID    string             `json:"agent_id,omitempty"`
	StartedAt  time.Time          `json:"started_at"`
	FinishedAt time.Time          `json:"finished_at"`
	Results    []PairResult       `json:"results"`
	Alerts     []regression.Alert `json:"alerts,omitempty"`
	Total      int                `json:"total"`
	Passed     int                `json:"passed"`
	Failed     int                `json:"failed"`
	Critical   int                `json:"critical_alerts"`
	AvgOverall float64            `json:"avg_overall"`
}

// Driver wires the collaborators of a sweep together.
type Driver struct {
	client     *fetcher.Client
	runner     *replay.Runner
	classifier safety.Classifier
	engine     *scorer.Engine
	detector   *regression.Detector
	cfg        Config
}

// NewDriver validates the wiring. A nil classifier defaults to the
// no-op classifier.
func NewDriver(client *fetcher.Client, runner *replay.Runner, classifier safety.Classifier, engine *scorer.Engine, detector *regression.Detector, cfg Config) (*Driver, error) {
	if client == nil {
		return nil, errors.New("sweep: nil fetcher")
	}
	if runner == nil {
		return nil, errors.New("sweep: nil replay runner")
	}
	if engine == nil {
		return nil, errors.New("sweep: nil scoring engine")
	}
	if detector == nil {
		return nil, errors.New("sweep: nil detector")
	}
	if classifier == nil {
		classifier = safety.NoopClassifier{}
	}
	if cfg.MaxEpisodes <= 0 {
		cfg.MaxEpisodes = 100
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.Mode == "" {
		cfg.Mode = replay.ModeDry
	}

	return &Driver{
		client:     client,
		runner:     runner,
		classifier: classifier,
		engine:     engine,
		detector:   detector,
		cfg:        cfg,
	}, nil
}

// Run executes one sweep. Pair evaluation runs in parallel bounded by
// the configured concurrency; detection runs sequentially afterwards so
// alert order is stable. A canceled context abandons unstarted pairs;
// finished results are kept as-is.
func (d *Driver) Run(ctx context.Context) (*Run, error) {
	if d == nil {
		return nil, errors.New("sweep: nil driver")
	}
	if ctx == nil {
		return nil, errors.New("sweep: nil context")
	}

	id, err := newSweepID()
	if err != nil {
		return nil, fmt.Errorf("sweep: generate id: %w", err)
	}

	run := &Run{
		ID:        id,
		Mode:      d.cfg.Mode,
		AgentID:   d.cfg.AgentID,
		StartedAt: time.Now().UTC(),
	}

	summaries, err := d.client.ListEpisodes(ctx, fetcher.Filter{
		AgentID: d.cfg.AgentID,
		Model:   d.cfg.ModelFilter,
		Limit:   d.cfg.MaxEpisodes,
	})
	if err != nil {
		return nil, fmt.Errorf("sweep: list episodes: %w", err)
	}

	run.Results = make([]PairResult, len(summaries))
	sem := make(chan struct{}, d.cfg.Concurrency)
	var wg sync.WaitGroup

	for i, summary := range summaries {
		i, epID := i, summary.ID
		run.Results[i] = PairResult{EpisodeID: epID}

		select {
		case <-ctx.Done():
			run.Results[i].Err = ctx.Err()
			continue
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			d.evaluateOne(ctx, &run.Results[i], epID)
		}()
	}
	wg.Wait()

	// Sequential detection keeps alert output deterministic.
	for i := range run.Results {
		pr := &run.Results[i]
		if pr.Err != nil {
			pr.Error = pr.Err.Error()
			continue
		}
		alerts, err := d.detector.Detect(pr.Result)
		if err != nil {
			pr.Err = err
			pr.Error = err.Error()
			continue
		}
		pr.Alerts = alerts
		run.Alerts = append(run.Alerts, alerts...)
	}

	run.FinishedAt = time.Now().UTC()
	summarize(run)
	return run, nil
}

func (d *Driver) evaluateOne(ctx context.Context, out *PairResult, episodeID string) {
	if d.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.Timeout)
		defer cancel()
	}

	pair, _, err := d.runner.Pair(ctx, episodeID, d.cfg.Mode)
	if err != nil {
		out.Err = err
		return
	}

	if err := d.classifier.Classify(ctx, pair.Replay); err != nil {
		out.Err = err
		return
	}

	result, err := d.engine.Score(pair)
	if err != nil {
		out.Err = err
		return
	}

	out.Result = result
	out.BaselineOutput = pair.Baseline.FinalOutput
	out.ReplayOutput = pair.Replay.FinalOutput
}

func summarize(run *Run) {
	run.Total = len(run.Results)
	sum := 0.0
	scored := 0
	critical := 0
	for _, pr := range run.Results {
		if pr.Result == nil {
			run.Failed++
			continue
		}
		scored++
		sum += pr.Result.Overall
		if pr.Result.Overall >= passBar {
			run.Passed++
		} else {
			run.Failed++
		}
		if regression.HasCritical(pr.Alerts) {
			critical++
		}
	}
	if scored > 0 {
		run.AvgOverall = sum / float64(scored)
	}
	run.Critical = critical
}

// Save persists the run, its results and its alerts.
func (d *Driver) Save(ctx context.Context, st store.SweepWriter, run *Run) error {
	if st == nil {
		return errors.New("sweep: missing store")
	}
	if run == nil {
		return errors.New("sweep: nil run")
	}

	rec := &store.SweepRecord{
		ID:             run.ID,
		StartedAt:      run.StartedAt,
		FinishedAt:     run.FinishedAt,
		Mode:           string(run.Mode),
		AgentID:        run.AgentID,
		TotalPairs:     run.Total,
		Passed:         run.Passed,
		Failed:         run.Failed,
		CriticalAlerts: run.Critical,
		AvgOverall:     run.AvgOverall,
		Config: map[string]any{
			"max_episodes": d.cfg.MaxEpisodes,
			"concurrency":  d.cfg.Concurrency,
			"mode":         string(d.cfg.Mode),
		},
	}
	if err := st.SaveSweep(ctx, rec); err != nil {
		return err
	}

	alerts := make([]*store.AlertRecord, 0, len(run.Alerts))
	for i, pr := range run.Results {
		resultID := fmt.Sprintf("%s-%04d", run.ID, i)
		resRec := &store.ResultRecord{
			ID:        resultID,
			SweepID:   run.ID,
			Error:     pr.Error,
			CreatedAt: run.FinishedAt,
		}
		if pr.Result != nil {
			resRec.BaselineID = pr.Result.BaselineID
			resRec.ReplayID = pr.Result.ReplayID
			resRec.AgentID = pr.Result.AgentID
			resRec.Model = pr.Result.Model
			resRec.Overall = pr.Result.Overall
			resRec.Flags = pr.Result.Flags
			resRec.Dimensions = pr.Result.Dimensions
		} else {
			resRec.BaselineID = pr.EpisodeID
		}
		if err := st.SaveResult(ctx, resRec); err != nil {
			return err
		}

		for _, a := range pr.Alerts {
			alerts = append(alerts, &store.AlertRecord{
				SweepID:   run.ID,
				ResultID:  resultID,
				Dimension: string(a.Dimension),
				Severity:  string(a.Severity),
				Raw:       a.Raw,
				Message:   a.Message,
				CreatedAt: run.FinishedAt,
			})
		}
	}

	return st.SaveAlerts(ctx, alerts)
}

func newSweepID() (string, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", err
	}
	return fmt.Sprintf("sweep_%s_%x", time.Now().UTC().Format("20060102T150405Z"), buf), nil
}
