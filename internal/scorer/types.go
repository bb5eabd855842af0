// Package scorer implements the five dimension scorers and the weighted
// scoring engine that turns a baseline/replay episode pair into one
// EvalResult.
package scorer

import (
	"fmt"
	"time"

	"github.com/stellarlinkco/replay-eval/internal/episode"
)

// Dimension names one independently scored axis of comparison.
type Dimension string

const (
	DimCorrectness Dimension = "correctness"
	DimCost        Dimension = "cost"
	DimToolMatch   Dimension = "tool_match"
	DimLatency     Dimension = "latency"
	DimSafety      Dimension = "safety"

	// DimOverall is not a scorer dimension; it names the weighted
	// combination for threshold rules and alerts.
	DimOverall Dimension = "overall"
)

// Dimensions is the canonical scoring order. Engine output and detector
// alerts follow it so results stay diffable across runs.
var Dimensions = []Dimension{DimCorrectness, DimCost, DimToolMatch, DimLatency, DimSafety}

// Score is one dimension's judgment for a pair. Raw is the measured
// value in the dimension's own unit (fraction for correctness,
// tool_match and safety; signed fractional delta for cost and latency,
// 0.5 meaning +50%). Value is the normalized score in [0,1] where 1 is
// "no regression". NonComparable marks a score that is zero because the
// inputs could not be compared, not because behavior was bad.
type Score struct {
	Dimension     Dimension `json:"dimension"`
	Raw           float64   `json:"raw"`
	Value         float64   `json:"score"`
	NonComparable bool      `json:"non_comparable,omitempty"`
	Detail        string    `json:"detail,omitempty"`
}

// Scorer is a pure, deterministic function over an episode pair.
// Implementations must not keep state or perform I/O.
type Scorer interface {
	Dimension() Dimension
	Score(pair *episode.Pair) Score
}

// EvalResult is the durable output for one pair: the five dimension
// scores in canonical order plus the weighted overall score. Never
// mutated after the engine returns it.
type EvalResult struct {
	BaselineID string    `json:"baseline_id"`
	ReplayID   string    `json:"replay_id"`
	AgentID    string    `json:"agent_id"`
	Model      string    `json:"model,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	Dimensions []Score   `json:"dimensions"`
	Overall    float64   `json:"overall"`
	Flags      []string  `json:"flags,omitempty"`
}

// Dimension returns the score for a named dimension if present.
func (r *EvalResult) Dimension(d Dimension) (Score, bool) {
	if r == nil {
		return Score{}, false
	}
	for _, s := range r.Dimensions {
		if s.Dimension == d {
			return s, true
		}
	}
	return Score{}, false
}

// Registry maps dimension names to scorers. The set is resolved once at
// engine construction time; nothing branches on dimension names during
// scoring.
type Registry struct {
	scorers map[Dimension]Scorer
}

// NewRegistry creates an empty scorer registry.
func NewRegistry() *Registry {
	return &Registry{scorers: make(map[Dimension]Scorer)}
}

// Register adds a scorer to the registry.
func (r *Registry) Register(s Scorer) {
	if r == nil {
		panic("scorer: register on nil registry")
	}
	if s == nil {
		panic("scorer: register nil scorer")
	}
	d := s.Dimension()
	if d == "" {
		panic("scorer: scorer has empty dimension")
	}
	if r.scorers == nil {
		r.scorers = make(map[Dimension]Scorer)
	}
	r.scorers[d] = s
}

// Get returns the scorer for a dimension if present.
func (r *Registry) Get(d Dimension) (Scorer, bool) {
	if r == nil || r.scorers == nil {
		return nil, false
	}
	s, ok := r.scorers[d]
	return s, ok
}

// DefaultRegistry returns a registry holding the five standard scorers.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(CorrectnessScorer{})
	r.Register(CostScorer{})
	r.Register(ToolMatchScorer{})
	r.Register(LatencyScorer{})
	r.Register(SafetyScorer{})
	return r
}

func formatPct(v float64) string {
	return fmt.Sprintf("%+.1f%%", v*100)
}
