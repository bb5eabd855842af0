package scorer

import (
	"github.com/stellarlinkco/replay-eval/internal/episode"
)

// CostScorer measures the token-spend delta between replay and
// baseline. Raw is the signed fractional change (0.5 = +50%). Only
// increases erode the normalized score; a cheaper replay scores 1.0. A
// zero-token baseline is a recording problem, not a regression, and is
// flagged non-comparable.
type CostScorer struct{}

func (CostScorer) Dimension() Dimension {
	return DimCost
}

func (CostScorer) Score(pair *episode.Pair) Score {
	base := pair.Baseline.TotalTokens
	if base <= 0 {
		return Score{
			Dimension:     DimCost,
			Raw:           0,
			Value:         0,
			NonComparable: true,
			Detail:        "baseline has zero tokens",
		}
	}

	raw := float64(pair.Replay.TotalTokens-base) / float64(base)
	return Score{
		Dimension: DimCost,
		Raw:       raw,
		Value:     deltaScore(raw),
		Detail:    "tokens " + formatPct(raw),
	}
}
