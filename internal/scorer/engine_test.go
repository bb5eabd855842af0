package scorer

import (
	"math"
	"strings"
	"testing"

	"github.com/stellarlinkco/replay-eval/internal/episode"
)

func TestWeightsValidate(t *testing.T) {
	t.Parallel()

	if err := DefaultWeights().Validate(); err != nil {
		t.Fatalf("default weights: %v", err)
	}

	{
		w := Weights{
			DimCorrectness: 0.5,
			DimCost:        0.2,
			DimLatency:     0.2,
			DimToolMatch:   0.1,
			DimSafety:      0.1,
		}
		if err := w.Validate(); err == nil {
			t.Fatalf("sum 1.1: expected error")
		}
	}
	{
		w := Weights{
			DimCorrectness: 1.2,
			DimCost:        -0.2,
			DimLatency:     0,
			DimToolMatch:   0,
			DimSafety:      0,
		}
		if err := w.Validate(); err == nil {
			t.Fatalf("negative weight: expected error")
		}
	}
}

func TestNewEngineCoverage(t *testing.T) {
	t.Parallel()

	if _, err := NewEngine(nil, nil); err == nil {
		t.Fatalf("nil registry: expected error")
	}

	// A registry missing a dimension is a wiring error.
	reg := NewRegistry()
	reg.Register(CorrectnessScorer{})
	if _, err := NewEngine(reg, nil); err == nil {
		t.Fatalf("partial registry: expected error")
	}

	if _, err := NewEngine(DefaultRegistry(), nil); err != nil {
		t.Fatalf("default weights fallback: %v", err)
	}
}

func TestEngineScore(t *testing.T) {
	t.Parallel()

	e := DefaultEngine()

	pair := &episode.Pair{
		Baseline: &episode.Episode{
			ID:              "base-1",
			AgentID:         "agent-a",
			Model:           "m-1",
			TotalTokens:     1000,
			TotalDurationMs: 2000,
			FinalOutput:     "done",
			Calls: []episode.Call{
				{Index: 0, Tool: "search", Tokens: 400, DurationMs: 800},
				{Index: 1, Tokens: 600, DurationMs: 1200},
			},
		},
		Replay: &episode.Episode{
			ID:              "repl-1",
			AgentID:         "agent-a",
			Model:           "m-2",
			TotalTokens:     1500,
			TotalDurationMs: 1500,
			FinalOutput:     "done",
			Calls: []episode.Call{
				{Index: 0, Tool: "search", Tokens: 700, DurationMs: 700},
				{Index: 1, Tokens: 800, DurationMs: 800},
			},
		},
	}

	res, err := e.Score(pair)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}

	if res.BaselineID != "base-1" || res.ReplayID != "repl-1" {
		t.Fatalf("ids: got %q %q", res.BaselineID, res.ReplayID)
	}
	if res.AgentID != "agent-a" || res.Model != "m-2" {
		t.Fatalf("metadata: got agent=%q model=%q", res.AgentID, res.Model)
	}
	if len(res.Dimensions) != len(Dimensions) {
		t.Fatalf("dimensions: got %d want %d", len(res.Dimensions), len(Dimensions))
	}
	for i, d := range Dimensions {
		if res.Dimensions[i].Dimension != d {
			t.Fatalf("dimension order[%d]: got %q want %q", i, res.Dimensions[i].Dimension, d)
		}
	}

	// correctness 1.0, cost 1-0.5, latency 1.0 (faster), tools 1.0,
	// safety 1.0 under default weights.
	want := 0.40*1.0 + 0.20*0.5 + 0.20*1.0 + 0.10*1.0 + 0.10*1.0
	if math.Abs(res.Overall-want) > 1e-9 {
		t.Fatalf("overall: got %v want %v", res.Overall, want)
	}
	if len(res.Flags) != 0 {
		t.Fatalf("flags: got %v want none", res.Flags)
	}
}

func TestEngineScoreNonComparable(t *testing.T) {
	t.Parallel()

	e := DefaultEngine()

	pair := &episode.Pair{
		Baseline: &episode.Episode{ID: "base-1", FinalOutput: "ok", TotalDurationMs: 100},
		Replay:   &episode.Episode{ID: "repl-1", FinalOutput: "ok", TotalDurationMs: 100},
	}

	res, err := e.Score(pair)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}

	// Zero-token baseline: cost is flagged, scored at the floor, and
	// still present in the dimension list.
	sc, ok := res.Dimension(DimCost)
	if !ok {
		t.Fatalf("cost dimension missing")
	}
	if !sc.NonComparable || sc.Value != 0 {
		t.Fatalf("cost: got value=%v non_comparable=%v", sc.Value, sc.NonComparable)
	}

	found := false
	for _, f := range res.Flags {
		if strings.HasPrefix(f, string(DimCost)+":") {
			found = true
		}
	}
	if !found {
		t.Fatalf("flags: %v missing cost flag", res.Flags)
	}

	want := 0.40*1.0 + 0.20*0 + 0.20*1.0 + 0.10*1.0 + 0.10*1.0
	if math.Abs(res.Overall-want) > 1e-9 {
		t.Fatalf("overall: got %v want %v", res.Overall, want)
	}
}

func TestEngineScoreInvalidPair(t *testing.T) {
	t.Parallel()

	e := DefaultEngine()
	if _, err := e.Score(nil); err == nil {
		t.Fatalf("nil pair: expected error")
	}
	if _, err := e.Score(&episode.Pair{Baseline: &episode.Episode{ID: "b"}}); err == nil {
		t.Fatalf("missing replay: expected error")
	}
}
