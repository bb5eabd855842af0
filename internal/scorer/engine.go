package scorer

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/stellarlinkco/replay-eval/internal/episode"
)

const weightSumTolerance = 1e-9

// Weights maps each scoring dimension to its share of the overall
// score. The default table is fixed so results stay comparable across
// runs; a replacement table must still cover every registered dimension
// and sum to 1.0.
type Weights map[Dimension]float64

// DefaultWeights returns the standard weight table:
// 0.40 correctness, 0.20 cost, 0.20 tool_match, 0.10 latency, 0.10 safety.
func DefaultWeights() Weights {
	return Weights{
		DimCorrectness: 0.40,
		DimCost:        0.20,
		DimToolMatch:   0.20,
		DimLatency:     0.10,
		DimSafety:      0.10,
	}
}

// Validate rejects weight tables that could produce an overall score
// outside [0,1] or silently drop a dimension.
func (w Weights) Validate() error {
	if len(w) == 0 {
		return errors.New("scorer: empty weight table")
	}

	sum := 0.0
	for d, v := range w {
		if v < 0 {
			return fmt.Errorf("scorer: weight for %s is negative", d)
		}
		sum += v
	}
	if math.Abs(sum-1.0) > weightSumTolerance {
		return fmt.Errorf("scorer: weights sum to %v, want 1.0", sum)
	}
	return nil
}

// Engine runs every registered scorer over a pair and combines the
// results under its weight table. Construction validates configuration
// so scoring itself cannot fail on config; the only Score error is a
// structurally invalid pair.
type Engine struct {
	registry *Registry
	weights  Weights
	now      func() time.Time
}

// NewEngine builds an engine from a scorer registry and a weight table.
// Every dimension in the canonical order must have both a scorer and a
// weight; a malformed weight table is a configuration error.
func NewEngine(registry *Registry, weights Weights) (*Engine, error) {
	if registry == nil {
		return nil, errors.New("scorer: nil registry")
	}
	if weights == nil {
		weights = DefaultWeights()
	}
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	for _, d := range Dimensions {
		if _, ok := registry.Get(d); !ok {
			return nil, fmt.Errorf("scorer: no scorer registered for %s", d)
		}
		if _, ok := weights[d]; !ok {
			return nil, fmt.Errorf("scorer: no weight for %s", d)
		}
	}

	return &Engine{
		registry: registry,
		weights:  weights,
		now:      time.Now,
	}, nil
}

// DefaultEngine returns an engine over the standard scorers and
// weights. The default configuration is valid by construction.
func DefaultEngine() *Engine {
	e, err := NewEngine(DefaultRegistry(), DefaultWeights())
	if err != nil {
		panic(fmt.Sprintf("scorer: default engine: %v", err))
	}
	return e
}

// Score evaluates one pair. Non-comparable dimensions keep their floor
// score and are surfaced through Flags rather than omitted, so Overall
// is always computable and always in [0,1].
func (e *Engine) Score(pair *episode.Pair) (*EvalResult, error) {
	if e == nil {
		return nil, errors.New("scorer: nil engine")
	}
	if err := pair.Validate(); err != nil {
		return nil, err
	}

	result := &EvalResult{
		BaselineID: pair.Baseline.ID,
		ReplayID:   pair.Replay.ID,
		AgentID:    pair.Replay.AgentID,
		Model:      pair.Replay.Model,
		Timestamp:  e.now().UTC(),
		Dimensions: make([]Score, 0, len(Dimensions)),
	}

	overall := 0.0
	for _, d := range Dimensions {
		s, ok := e.registry.Get(d)
		if !ok {
			return nil, fmt.Errorf("scorer: no scorer registered for %s", d)
		}
		sc := s.Score(pair)
		sc.Value = clamp01(sc.Value)
		result.Dimensions = append(result.Dimensions, sc)
		if sc.NonComparable {
			result.Flags = append(result.Flags, string(d)+": "+sc.Detail)
		}
		overall += e.weights[d] * sc.Value
	}
	result.Overall = clamp01(overall)

	return result, nil
}
