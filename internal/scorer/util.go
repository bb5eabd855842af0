package scorer

import "strings"

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// normalizeOutput case-folds and collapses whitespace so that trivially
// reformatted outputs still compare as exact matches.
func normalizeOutput(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// deltaScore normalizes a signed fractional delta: increases erode the
// score linearly up to +100%, decreases are never penalized.
func deltaScore(raw float64) float64 {
	return 1 - clamp01(raw)
}
