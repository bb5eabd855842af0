package scorer

import (
	"github.com/stellarlinkco/replay-eval/internal/episode"
)

// LatencyScorer measures the wall-clock delta between replay and
// baseline, same shape as CostScorer: increases erode the score, a
// faster replay scores 1.0, a zero-duration baseline is non-comparable.
type LatencyScorer struct{}

func (LatencyScorer) Dimension() Dimension {
	return DimLatency
}

func (LatencyScorer) Score(pair *episode.Pair) Score {
	base := pair.Baseline.TotalDurationMs
	if base <= 0 {
		return Score{
			Dimension:     DimLatency,
			Raw:           0,
			Value:         0,
			NonComparable: true,
			Detail:        "baseline has zero duration",
		}
	}

	raw := float64(pair.Replay.TotalDurationMs-base) / float64(base)
	return Score{
		Dimension: DimLatency,
		Raw:       raw,
		Value:     deltaScore(raw),
		Detail:    "duration " + formatPct(raw),
	}
}
