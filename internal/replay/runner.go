// Package replay produces the replay episode of a pair, either from the
// store's replay view (dry, no model calls) or by re-issuing model
// calls through an OpenAI-compatible gateway (live). The scoring core
// only consumes the resulting episode shape and is agnostic to the mode.
package replay

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stellarlinkco/replay-eval/internal/episode"
	"github.com/stellarlinkco/replay-eval/internal/fetcher"
	"github.com/stellarlinkco/replay-eval/internal/llm"
)

// Mode selects how the replay episode is produced.
type Mode string

const (
	// ModeDry fetches the stored replay view; no model calls, no cost.
	ModeDry Mode = "dry"
	// ModeLive re-issues the episode's model calls through the gateway.
	ModeLive Mode = "live"
)

// ParseMode validates a mode string.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(ModeDry):
		return ModeDry, nil
	case string(ModeLive):
		return ModeLive, nil
	default:
		return "", fmt.Errorf("replay: invalid mode %q (expected dry|live)", s)
	}
}

// Result is one produced replay plus how it was produced.
type Result struct {
	Episode *episode.Episode `json:"episode"`
	Mode    Mode             `json:"mode"`
	WallMs  int64            `json:"wall_ms"`
}

// Runner fetches episodes and produces their replays.
type Runner struct {
	client   *fetcher.Client
	provider llm.Provider
}

// NewRunner creates a Runner. A nil provider limits the runner to dry
// mode.
func NewRunner(client *fetcher.Client, provider llm.Provider) *Runner {
	return &Runner{client: client, provider: provider}
}

// Pair fetches the baseline episode and produces its replay in the
// given mode, returning the assembled pair.
func (r *Runner) Pair(ctx context.Context, episodeID string, mode Mode) (*episode.Pair, *Result, error) {
	if r == nil || r.client == nil {
		return nil, nil, errors.New("replay: nil runner")
	}

	baseline, err := r.client.GetEpisode(ctx, episodeID)
	if err != nil {
		return nil, nil, err
	}

	res, err := r.Replay(ctx, baseline, mode)
	if err != nil {
		return nil, nil, err
	}

	pair := &episode.Pair{Baseline: baseline, Replay: res.Episode}
	if err := pair.Validate(); err != nil {
		return nil, nil, err
	}
	return pair, res, nil
}

// Replay produces the replay episode for an already-fetched baseline.
func (r *Runner) Replay(ctx context.Context, baseline *episode.Episode, mode Mode) (*Result, error) {
	if r == nil || r.client == nil {
		return nil, errors.New("replay: nil runner")
	}
	if baseline == nil {
		return nil, errors.New("replay: nil baseline")
	}

	start := time.Now()
	switch mode {
	case "", ModeDry:
		ep, err := r.client.GetReplayView(ctx, baseline.ID)
		if err != nil {
			return nil, err
		}
		return &Result{Episode: ep, Mode: ModeDry, WallMs: time.Since(start).Milliseconds()}, nil

	case ModeLive:
		if r.provider == nil {
			return nil, errors.New("replay: live mode requires a gateway provider")
		}
		ep, err := r.liveReplay(ctx, baseline)
		if err != nil {
			return nil, err
		}
		return &Result{Episode: ep, Mode: ModeLive, WallMs: time.Since(start).Milliseconds()}, nil

	default:
		return nil, fmt.Errorf("replay: invalid mode %q", mode)
	}
}

// liveReplay re-issues every plain completion through the gateway and
// carries tool calls over as recorded; tools cannot be re-executed from
// here. The produced episode measures fresh tokens and durations.
func (r *Runner) liveReplay(ctx context.Context, baseline *episode.Episode) (*episode.Episode, error) {
	out := &episode.Episode{
		ID:      baseline.ID + "-replay",
		AgentID: baseline.AgentID,
		Model:   baseline.Model,
		Calls:   make([]episode.Call, 0, len(baseline.Calls)),
	}

	lastOutput := ""
	for _, call := range baseline.Calls {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if strings.TrimSpace(call.Tool) != "" {
			// Recorded tool result, replayed as-is.
			out.Calls = append(out.Calls, call)
			out.TotalTokens += call.Tokens
			out.TotalDurationMs += call.DurationMs
			continue
		}

		resp, err := r.provider.Complete(ctx, &llm.Request{
			Model:    baseline.Model,
			Messages: []llm.Message{{Role: "user", Content: call.Input}},
		})
		if err != nil {
			return nil, fmt.Errorf("replay: call %d: %w", call.Index, err)
		}

		replayed := episode.Call{
			Index:      call.Index,
			Input:      call.Input,
			Tokens:     resp.TotalTokens(),
			DurationMs: resp.LatencyMs,
			Output:     resp.Content,
		}
		out.Calls = append(out.Calls, replayed)
		out.TotalTokens += replayed.Tokens
		out.TotalDurationMs += replayed.DurationMs
		lastOutput = resp.Content
	}

	// An empty final output stays empty; correctness scores the
	// divergence instead of us guessing.
	out.FinalOutput = lastOutput
	return out, nil
}
