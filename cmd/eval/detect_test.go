package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stellarlinkco/replay-eval/internal/scorer"
	"github.com/stellarlinkco/replay-eval/internal/store"
)

func TestLoadRunFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "sweep.json")
	content := `{
  "sweep_id": "sweep_x",
  "mode": "dry",
  "results": [
    {
      "episode_id": "ep-1",
      "result": {
        "baseline_id": "ep-1",
        "replay_id": "ep-1-replay",
        "overall": 0.9,
        "dimensions": [
          {"dimension": "cost", "raw": 0.25, "score": 0.75}
        ]
      }
    }
  ]
}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	run, err := loadRunFile(path)
	if err != nil {
		t.Fatalf("loadRunFile: %v", err)
	}
	if run.ID != "sweep_x" || len(run.Results) != 1 {
		t.Fatalf("run: got %+v", run)
	}
	sc, ok := run.Results[0].Result.Dimension(scorer.DimCost)
	if !ok || sc.Raw != 0.25 {
		t.Fatalf("cost score: got %+v ok=%v", sc, ok)
	}

	bad := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(bad, []byte(`{"unrelated": true}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := loadRunFile(bad); err == nil {
		t.Fatalf("non-sweep file: expected error")
	}

	if _, err := loadRunFile(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatalf("missing file: expected error")
	}
}

func TestLoadStoredRun(t *testing.T) {
	t.Parallel()

	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "eval.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	ctx := context.Background()
	started := time.Date(2026, 3, 14, 2, 0, 0, 0, time.UTC)

	if err := st.SaveSweep(ctx, &store.SweepRecord{
		ID:             "sweep_1",
		StartedAt:      started,
		FinishedAt:     started.Add(time.Minute),
		Mode:           "dry",
		AgentID:        "agent-a",
		TotalPairs:     2,
		Passed:         1,
		Failed:         1,
		CriticalAlerts: 1,
		AvgOverall:     0.6,
	}); err != nil {
		t.Fatalf("SaveSweep: %v", err)
	}
	if err := st.SaveResult(ctx, &store.ResultRecord{
		ID:         "sweep_1-0000",
		SweepID:    "sweep_1",
		BaselineID: "ep-1",
		ReplayID:   "ep-1-replay",
		AgentID:    "agent-a",
		Overall:    0.3,
		Dimensions: []scorer.Score{
			{Dimension: scorer.DimCorrectness, Raw: 0.3, Value: 0.3},
		},
		CreatedAt: started,
	}); err != nil {
		t.Fatalf("SaveResult: %v", err)
	}
	if err := st.SaveResult(ctx, &store.ResultRecord{
		ID:         "sweep_1-0001",
		SweepID:    "sweep_1",
		BaselineID: "ep-2",
		Error:      "episode not found",
		CreatedAt:  started,
	}); err != nil {
		t.Fatalf("SaveResult: %v", err)
	}
	if err := st.SaveAlerts(ctx, []*store.AlertRecord{
		{SweepID: "sweep_1", ResultID: "sweep_1-0000", Dimension: "correctness", Severity: "critical", Raw: 0.3, Message: "correctness score 0.30 below threshold 0.50", CreatedAt: started},
	}); err != nil {
		t.Fatalf("SaveAlerts: %v", err)
	}

	run, err := loadStoredRun(ctx, st, "sweep_1")
	if err != nil {
		t.Fatalf("loadStoredRun: %v", err)
	}

	if run.ID != "sweep_1" || run.Total != 2 || run.Critical != 1 {
		t.Fatalf("run: got %+v", run)
	}
	if len(run.Results) != 2 {
		t.Fatalf("results: got %d", len(run.Results))
	}
	scored := run.Results[0]
	if scored.Result == nil || scored.Result.Overall != 0.3 {
		t.Fatalf("scored result: got %+v", scored)
	}
	if len(scored.Alerts) != 1 || scored.Alerts[0].BaselineID != "ep-1" {
		t.Fatalf("alerts rejoined: got %+v", scored.Alerts)
	}
	if run.Results[1].Result != nil || run.Results[1].Error == "" {
		t.Fatalf("error row: got %+v", run.Results[1])
	}
	if len(run.Alerts) != 1 {
		t.Fatalf("run alerts: got %d", len(run.Alerts))
	}

	if _, err := loadStoredRun(ctx, st, "sweep_missing"); err == nil {
		t.Fatalf("missing sweep: expected error")
	}
	if _, err := loadStoredRun(ctx, st, " "); err == nil {
		t.Fatalf("empty id: expected error")
	}
}
