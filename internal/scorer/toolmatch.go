package scorer

import (
	"fmt"

	"github.com/stellarlinkco/replay-eval/internal/episode"
)

// ToolMatchScorer compares the ordered tool-name sequences of the two
// episodes with a longest-common-subsequence measure:
//
//	score = 2 * lcs / (len(baseline) + len(replay))
//
// Same tools in the same relative order score high while an extra
// lookup or a retried call costs a fraction instead of zeroing an
// exact-sequence comparison. Two episodes with no tool calls match
// perfectly.
type ToolMatchScorer struct{}

func (ToolMatchScorer) Dimension() Dimension {
	return DimToolMatch
}

func (ToolMatchScorer) Score(pair *episode.Pair) Score {
	base := pair.Baseline.ToolSequence()
	repl := pair.Replay.ToolSequence()

	if len(base) == 0 && len(repl) == 0 {
		return Score{
			Dimension: DimToolMatch,
			Raw:       1,
			Value:     1,
			Detail:    "no tool calls on either side",
		}
	}

	common := lcsLength(base, repl)
	ratio := clamp01(2 * float64(common) / float64(len(base)+len(repl)))
	return Score{
		Dimension: DimToolMatch,
		Raw:       ratio,
		Value:     ratio,
		Detail:    fmt.Sprintf("lcs %d over %d+%d tools", common, len(base), len(repl)),
	}
}

func lcsLength(a, b []string) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				cur[j] = prev[j-1] + 1
			} else if prev[j] >= cur[j-1] {
				cur[j] = prev[j]
			} else {
				cur[j] = cur[j-1]
			}
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}
