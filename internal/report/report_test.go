package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stellarlinkco/replay-eval/internal/regression"
	"github.com/stellarlinkco/replay-eval/internal/replay"
	"github.com/stellarlinkco/replay-eval/internal/scorer"
	"github.com/stellarlinkco/replay-eval/internal/sweep"
)

func sampleRun() *sweep.Run {
	started := time.Date(2026, 3, 14, 2, 0, 0, 0, time.UTC)

	good := &scorer.EvalResult{
		BaselineID: "ep-1",
		ReplayID:   "ep-1-replay",
		AgentID:    "agent-a",
		Overall:    0.97,
		Dimensions: []scorer.Score{
			{Dimension: scorer.DimCorrectness, Raw: 1, Value: 1},
			{Dimension: scorer.DimCost, Raw: 0.05, Value: 0.95},
			{Dimension: scorer.DimToolMatch, Raw: 1, Value: 1},
			{Dimension: scorer.DimLatency, Raw: -0.1, Value: 1},
			{Dimension: scorer.DimSafety, Raw: 1, Value: 1},
		},
	}
	bad := &scorer.EvalResult{
		BaselineID: "ep-2",
		ReplayID:   "ep-2-replay",
		AgentID:    "agent-a",
		Overall:    0.31,
		Flags:      []string{"cost: baseline has zero tokens"},
		Dimensions: []scorer.Score{
			{Dimension: scorer.DimCorrectness, Raw: 0.2, Value: 0.2},
			{Dimension: scorer.DimCost, Raw: 0, Value: 0, NonComparable: true},
			{Dimension: scorer.DimToolMatch, Raw: 0.5, Value: 0.5},
			{Dimension: scorer.DimLatency, Raw: 0.1, Value: 0.9},
			{Dimension: scorer.DimSafety, Raw: 1, Value: 1},
		},
	}
	badAlerts := []regression.Alert{
		{Dimension: scorer.DimCorrectness, Severity: regression.SeverityCritical, Raw: 0.2, Message: "correctness score 0.20 below threshold 0.50", BaselineID: "ep-2", ReplayID: "ep-2-replay"},
		{Dimension: scorer.DimOverall, Severity: regression.SeverityCritical, Raw: 0.31, Message: "overall score 0.31 below threshold 0.50", BaselineID: "ep-2", ReplayID: "ep-2-replay"},
	}

	return &sweep.Run{
		ID:         "sweep_20260314T020000Z_deadbeef",
		Mode:       replay.ModeDry,
		AgentID:    "agent-a",
		StartedAt:  started,
		FinishedAt: started.Add(time.Minute),
		Results: []sweep.PairResult{
			{EpisodeID: "ep-1", Result: good},
			{EpisodeID: "ep-2", Result: bad, Alerts: badAlerts, BaselineOutput: "ship the fix today", ReplayOutput: "ship the rollback today"},
			{EpisodeID: "ep-3", Error: "episode not found"},
		},
		Alerts:     badAlerts,
		Total:      3,
		Passed:     1,
		Failed:     2,
		Critical:   1,
		AvgOverall: 0.64,
	}
}

func TestJSON(t *testing.T) {
	t.Parallel()

	b, err := JSON(sampleRun())
	if err != nil {
		t.Fatalf("JSON: %v", err)
	}

	var decoded sweep.Run
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("round trip: %v", err)
	}
	if decoded.ID != "sweep_20260314T020000Z_deadbeef" || decoded.Total != 3 {
		t.Fatalf("decoded: got %+v", decoded)
	}
	if len(decoded.Results) != 3 || decoded.Results[2].Error != "episode not found" {
		t.Fatalf("results: got %+v", decoded.Results)
	}

	if _, err := JSON(nil); err == nil {
		t.Fatalf("nil run: expected error")
	}
}

func TestMarkdown(t *testing.T) {
	t.Parallel()

	md := Markdown(sampleRun())

	for _, want := range []string{
		"# Eval Sweep sweep_20260314T020000Z_deadbeef",
		"- Mode: dry",
		"- Episodes: 3 (passed: 1, failed: 2)",
		"## Results",
		"| ep-1 |",
		"cost: baseline has zero tokens",
		"## Alerts",
		"| CRITICAL | correctness | ep-2 |",
		"## Output Diffs",
		"### ep-2",
		"```diff",
	} {
		if !strings.Contains(md, want) {
			t.Fatalf("markdown missing %q:\n%s", want, md)
		}
	}

	// Both sides of the divergence show up in the diff body.
	if !strings.Contains(md, "fix") || !strings.Contains(md, "rollback") {
		t.Fatalf("diff missing output text:\n%s", md)
	}

	// The healthy pair gets no diff section.
	if strings.Contains(md, "### ep-1") {
		t.Fatalf("unexpected diff for healthy pair:\n%s", md)
	}

	if got := Markdown(nil); got != "" {
		t.Fatalf("nil run: got %q", got)
	}
}

func TestMarkdownNoAlerts(t *testing.T) {
	t.Parallel()

	run := sampleRun()
	run.Alerts = nil
	run.Results = run.Results[:1]

	md := Markdown(run)
	if !strings.Contains(md, "No regressions detected.") {
		t.Fatalf("markdown missing clean banner:\n%s", md)
	}
	if strings.Contains(md, "## Alerts") {
		t.Fatalf("unexpected alerts section:\n%s", md)
	}
}

func TestWriteReports(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "reports")
	run := sampleRun()

	jsonPath, err := WriteJSON(dir, run)
	if err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	mdPath, err := WriteMarkdown(dir, run)
	if err != nil {
		t.Fatalf("WriteMarkdown: %v", err)
	}

	if filepath.Base(jsonPath) != run.ID+".json" || filepath.Base(mdPath) != run.ID+".md" {
		t.Fatalf("paths: got %q %q", jsonPath, mdPath)
	}

	b, err := os.ReadFile(mdPath)
	if err != nil {
		t.Fatalf("read markdown: %v", err)
	}
	if !strings.Contains(string(b), "# Eval Sweep") {
		t.Fatalf("markdown file content: %q", string(b)[:80])
	}
}
