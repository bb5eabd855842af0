package scorer

import (
	"strings"

	"github.com/stellarlinkco/replay-eval/internal/episode"
)

// CorrectnessScorer compares the baseline's final output to the
// replay's. Exact match after normalization scores 1.0; otherwise a
// token-overlap ratio over the two outputs. An empty baseline output is
// non-comparable: correctness cannot be confirmed and scores 0.
type CorrectnessScorer struct{}

func (CorrectnessScorer) Dimension() Dimension {
	return DimCorrectness
}

func (CorrectnessScorer) Score(pair *episode.Pair) Score {
	base := normalizeOutput(pair.Baseline.FinalOutput)
	repl := normalizeOutput(pair.Replay.FinalOutput)

	if base == "" {
		return Score{
			Dimension:     DimCorrectness,
			Raw:           0,
			Value:         0,
			NonComparable: true,
			Detail:        "baseline has no final output",
		}
	}

	if base == repl {
		return Score{
			Dimension: DimCorrectness,
			Raw:       1,
			Value:     1,
			Detail:    "exact match",
		}
	}

	sim := tokenOverlap(strings.Fields(base), strings.Fields(repl))
	return Score{
		Dimension: DimCorrectness,
		Raw:       sim,
		Value:     sim,
		Detail:    "token overlap",
	}
}

// tokenOverlap is a multiset Dice coefficient: twice the number of
// shared tokens over the combined length. Deterministic and symmetric.
func tokenOverlap(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	counts := make(map[string]int, len(a))
	for _, tok := range a {
		counts[tok]++
	}

	common := 0
	for _, tok := range b {
		if counts[tok] > 0 {
			counts[tok]--
			common++
		}
	}

	return clamp01(2 * float64(common) / float64(len(a)+len(b)))
}
