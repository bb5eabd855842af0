package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stellarlinkco/replay-eval/internal/scorer"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()

	path := filepath.Join(t.TempDir(), "store.db")
	st, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	return st
}

func sampleSweep(id string, started time.Time) *SweepRecord {
	return &SweepRecord{
		ID:             id,
		StartedAt:      started,
		FinishedAt:     started.Add(90 * time.Second),
		Mode:           "dry",
		AgentID:        "agent-a",
		TotalPairs:     3,
		Passed:         2,
		Failed:         1,
		CriticalAlerts: 1,
		AvgOverall:     0.78,
		Config: map[string]any{
			"max_episodes": 10,
			"concurrency":  2,
		},
	}
}

func TestSQLiteStoreSaveGetSweep(t *testing.T) {
	t.Parallel()

	st := newTestSQLiteStore(t)
	ctx := context.Background()

	start := time.UnixMilli(1_700_000_000_000).UTC()
	rec := sampleSweep("sweep_1", start)
	if err := st.SaveSweep(ctx, rec); err != nil {
		t.Fatalf("SaveSweep: %v", err)
	}

	got, err := st.GetSweep(ctx, "sweep_1")
	if err != nil {
		t.Fatalf("GetSweep: %v", err)
	}
	if got.ID != rec.ID || got.Mode != "dry" || got.AgentID != "agent-a" {
		t.Fatalf("sweep: got %+v", got)
	}
	if !got.StartedAt.Equal(rec.StartedAt) || !got.FinishedAt.Equal(rec.FinishedAt) {
		t.Fatalf("timestamps: got %v %v", got.StartedAt, got.FinishedAt)
	}
	if got.TotalPairs != 3 || got.Passed != 2 || got.Failed != 1 || got.CriticalAlerts != 1 {
		t.Fatalf("counters: got %+v", got)
	}
	if got.AvgOverall != 0.78 {
		t.Fatalf("avg overall: got %v", got.AvgOverall)
	}

	if _, err := st.GetSweep(ctx, "sweep_missing"); err == nil {
		t.Fatalf("missing sweep: expected error")
	}
}

func TestSQLiteStoreResults(t *testing.T) {
	t.Parallel()

	st := newTestSQLiteStore(t)
	ctx := context.Background()

	start := time.UnixMilli(1_700_000_000_000).UTC()
	if err := st.SaveSweep(ctx, sampleSweep("sweep_1", start)); err != nil {
		t.Fatalf("SaveSweep: %v", err)
	}

	rec := &ResultRecord{
		ID:         "sweep_1-0000",
		SweepID:    "sweep_1",
		BaselineID: "ep-1",
		ReplayID:   "ep-1-replay",
		AgentID:    "agent-a",
		Model:      "m-1",
		Overall:    0.85,
		Flags:      []string{"cost: baseline has zero tokens"},
		Dimensions: []scorer.Score{
			{Dimension: scorer.DimCorrectness, Raw: 1, Value: 1, Detail: "exact match"},
			{Dimension: scorer.DimCost, Raw: 0, Value: 0, NonComparable: true},
		},
		CreatedAt: start,
	}
	if err := st.SaveResult(ctx, rec); err != nil {
		t.Fatalf("SaveResult: %v", err)
	}
	if err := st.SaveResult(ctx, &ResultRecord{
		ID:         "sweep_1-0001",
		SweepID:    "sweep_1",
		BaselineID: "ep-2",
		Error:      "episode not found",
		CreatedAt:  start,
	}); err != nil {
		t.Fatalf("SaveResult: %v", err)
	}

	results, err := st.GetResults(ctx, "sweep_1")
	if err != nil {
		t.Fatalf("GetResults: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results: got %d want 2", len(results))
	}

	got := results[0]
	if got.ID != "sweep_1-0000" || got.Overall != 0.85 {
		t.Fatalf("result: got %+v", got)
	}
	if len(got.Dimensions) != 2 || got.Dimensions[0].Dimension != scorer.DimCorrectness {
		t.Fatalf("dimensions: got %+v", got.Dimensions)
	}
	if !got.Dimensions[1].NonComparable {
		t.Fatalf("non-comparable flag lost: %+v", got.Dimensions[1])
	}
	if len(got.Flags) != 1 {
		t.Fatalf("flags: got %v", got.Flags)
	}
	if results[1].Error != "episode not found" {
		t.Fatalf("error row: got %+v", results[1])
	}
}

func TestSQLiteStoreAlerts(t *testing.T) {
	t.Parallel()

	st := newTestSQLiteStore(t)
	ctx := context.Background()

	start := time.UnixMilli(1_700_000_000_000).UTC()
	if err := st.SaveSweep(ctx, sampleSweep("sweep_1", start)); err != nil {
		t.Fatalf("SaveSweep: %v", err)
	}

	alerts := []*AlertRecord{
		{SweepID: "sweep_1", ResultID: "sweep_1-0000", Dimension: "cost", Severity: "warning", Raw: 0.25, Message: "cost increased by 25.0% (warning threshold: 20.0%)", CreatedAt: start},
		{SweepID: "sweep_1", ResultID: "sweep_1-0000", Dimension: "overall", Severity: "critical", Raw: 0.41, Message: "overall score 0.41 below threshold 0.50", CreatedAt: start},
	}
	if err := st.SaveAlerts(ctx, alerts); err != nil {
		t.Fatalf("SaveAlerts: %v", err)
	}

	got, err := st.GetAlerts(ctx, "sweep_1")
	if err != nil {
		t.Fatalf("GetAlerts: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("alerts: got %d want 2", len(got))
	}
	if got[0].Dimension != "cost" || got[0].Severity != "warning" {
		t.Fatalf("alert: got %+v", got[0])
	}
	if got[1].Raw != 0.41 {
		t.Fatalf("alert raw: got %v", got[1].Raw)
	}

	if err := st.SaveAlerts(ctx, nil); err != nil {
		t.Fatalf("SaveAlerts(nil): %v", err)
	}
}

func TestSQLiteStoreListSweeps(t *testing.T) {
	t.Parallel()

	st := newTestSQLiteStore(t)
	ctx := context.Background()

	base := time.UnixMilli(1_700_000_000_000).UTC()
	for i, agent := range []string{"agent-a", "agent-b", "agent-a"} {
		rec := sampleSweep("sweep_"+string(rune('1'+i)), base.Add(time.Duration(i)*time.Hour))
		rec.AgentID = agent
		if err := st.SaveSweep(ctx, rec); err != nil {
			t.Fatalf("SaveSweep: %v", err)
		}
	}

	{
		all, err := st.ListSweeps(ctx, SweepFilter{})
		if err != nil {
			t.Fatalf("ListSweeps: %v", err)
		}
		if len(all) != 3 {
			t.Fatalf("all sweeps: got %d", len(all))
		}
		// Newest first.
		if all[0].ID != "sweep_3" || all[2].ID != "sweep_1" {
			t.Fatalf("order: got %s .. %s", all[0].ID, all[2].ID)
		}
	}
	{
		byAgent, err := st.ListSweeps(ctx, SweepFilter{AgentID: "agent-a"})
		if err != nil {
			t.Fatalf("ListSweeps(agent): %v", err)
		}
		if len(byAgent) != 2 {
			t.Fatalf("agent filter: got %d", len(byAgent))
		}
	}
	{
		since, err := st.ListSweeps(ctx, SweepFilter{Since: base.Add(30 * time.Minute)})
		if err != nil {
			t.Fatalf("ListSweeps(since): %v", err)
		}
		if len(since) != 2 {
			t.Fatalf("since filter: got %d", len(since))
		}
	}
	{
		limited, err := st.ListSweeps(ctx, SweepFilter{Limit: 1})
		if err != nil {
			t.Fatalf("ListSweeps(limit): %v", err)
		}
		if len(limited) != 1 || limited[0].ID != "sweep_3" {
			t.Fatalf("limit: got %+v", limited)
		}
	}
}

func TestSQLiteStoreAgentHistory(t *testing.T) {
	t.Parallel()

	st := newTestSQLiteStore(t)
	ctx := context.Background()

	base := time.UnixMilli(1_700_000_000_000).UTC()
	for i := 0; i < 3; i++ {
		rec := sampleSweep("sweep_"+string(rune('1'+i)), base.Add(time.Duration(i)*time.Hour))
		if i == 1 {
			rec.AgentID = "agent-other"
		}
		if err := st.SaveSweep(ctx, rec); err != nil {
			t.Fatalf("SaveSweep: %v", err)
		}
	}

	history, err := st.AgentHistory(ctx, "agent-a", 10)
	if err != nil {
		t.Fatalf("AgentHistory: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history: got %d want 2", len(history))
	}
	if history[0].ID != "sweep_3" {
		t.Fatalf("newest first: got %s", history[0].ID)
	}
}
