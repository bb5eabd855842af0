package scorer

import (
	"math"
	"testing"

	"github.com/stellarlinkco/replay-eval/internal/episode"
)

func pairWithOutputs(base, repl string) *episode.Pair {
	return &episode.Pair{
		Baseline: &episode.Episode{ID: "base-1", FinalOutput: base},
		Replay:   &episode.Episode{ID: "repl-1", FinalOutput: repl},
	}
}

func TestCorrectnessScorer(t *testing.T) {
	t.Parallel()

	s := CorrectnessScorer{}
	if s.Dimension() != DimCorrectness {
		t.Fatalf("Dimension: got %q", s.Dimension())
	}

	{
		sc := s.Score(pairWithOutputs("The answer is 42.", "the  answer is 42."))
		if sc.Value != 1.0 || sc.NonComparable {
			t.Fatalf("normalized exact match: got value=%v non_comparable=%v", sc.Value, sc.NonComparable)
		}
	}
	{
		// baseline: [the answer is 42] replay: [the answer is 43]
		// shared 3 of 4+4 tokens.
		sc := s.Score(pairWithOutputs("the answer is 42", "the answer is 43"))
		want := 2 * 3.0 / 8.0
		if math.Abs(sc.Value-want) > 1e-9 {
			t.Fatalf("token overlap: got %v want %v", sc.Value, want)
		}
		if sc.NonComparable {
			t.Fatalf("token overlap: flagged non-comparable")
		}
	}
	{
		sc := s.Score(pairWithOutputs("alpha beta", "gamma delta"))
		if sc.Value != 0 {
			t.Fatalf("disjoint outputs: got %v want 0", sc.Value)
		}
	}
	{
		sc := s.Score(pairWithOutputs("", "anything"))
		if !sc.NonComparable || sc.Value != 0 {
			t.Fatalf("empty baseline: got value=%v non_comparable=%v", sc.Value, sc.NonComparable)
		}
	}
	{
		sc := s.Score(pairWithOutputs("something", ""))
		if sc.NonComparable || sc.Value != 0 {
			t.Fatalf("empty replay: got value=%v non_comparable=%v", sc.Value, sc.NonComparable)
		}
	}
}

func TestTokenOverlapSymmetric(t *testing.T) {
	t.Parallel()

	a := []string{"a", "b", "b", "c"}
	b := []string{"b", "c", "d"}
	if got, want := tokenOverlap(a, b), tokenOverlap(b, a); got != want {
		t.Fatalf("symmetry: got %v and %v", got, want)
	}
}
