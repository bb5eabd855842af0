// Package episode defines the recorded-run data model shared by the
// scoring engine, the regression detector and their collaborators.
package episode

import (
	"errors"
	"fmt"
	"strings"
)

// Call is one model or tool invocation inside an episode. A call with an
// empty Tool is a plain model completion. Calls are immutable once
// recorded; only the safety classifier's violation annotation is added
// after the fact.
type Call struct {
	Index      int    `json:"index"`
	Tool       string `json:"tool,omitempty"`
	Input      string `json:"input,omitempty"`
	Tokens     int    `json:"tokens"`
	DurationMs int64  `json:"duration_ms"`
	Output     string `json:"output,omitempty"`
	Violation  bool   `json:"violation,omitempty"`
}

// Episode is one recorded end-to-end agent run: an ordered call sequence
// plus run-level metadata. TotalTokens and TotalDurationMs are recorded
// independently of the call sums and are authoritative.
type Episode struct {
	ID              string `json:"episode_id"`
	AgentID         string `json:"agent_id"`
	Model           string `json:"model"`
	TotalTokens     int    `json:"total_tokens"`
	TotalDurationMs int64  `json:"total_duration_ms"`
	FinalOutput     string `json:"final_output"`
	Violations      int    `json:"violations,omitempty"`
	Calls           []Call `json:"calls,omitempty"`
}

// Summary is the list-view shape returned by the episode store.
type Summary struct {
	ID      string `json:"episode_id"`
	AgentID string `json:"agent_id"`
	Model   string `json:"model"`
}

// Pair is a baseline episode and a replay episode believed to represent
// the same task. It is the scoring engine's unit of work.
type Pair struct {
	Baseline *Episode `json:"baseline"`
	Replay   *Episode `json:"replay"`
}

// Validate checks the episode invariants: call indexes must be unique
// and strictly increasing (sequence order is execution order).
func (e *Episode) Validate() error {
	if e == nil {
		return errors.New("episode: nil episode")
	}
	if strings.TrimSpace(e.ID) == "" {
		return errors.New("episode: missing episode id")
	}
	if e.TotalTokens < 0 {
		return fmt.Errorf("episode %s: negative total tokens", e.ID)
	}
	if e.TotalDurationMs < 0 {
		return fmt.Errorf("episode %s: negative total duration", e.ID)
	}

	last := -1
	for i, c := range e.Calls {
		if c.Index <= last {
			return fmt.Errorf("episode %s: call %d: index %d not strictly increasing (previous %d)", e.ID, i, c.Index, last)
		}
		if c.Tokens < 0 || c.DurationMs < 0 {
			return fmt.Errorf("episode %s: call %d: negative tokens or duration", e.ID, i)
		}
		last = c.Index
	}
	return nil
}

// ToolSequence returns the ordered tool names of the episode, skipping
// plain model completions.
func (e *Episode) ToolSequence() []string {
	if e == nil || len(e.Calls) == 0 {
		return nil
	}
	out := make([]string, 0, len(e.Calls))
	for _, c := range e.Calls {
		if name := strings.TrimSpace(c.Tool); name != "" {
			out = append(out, name)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Validate checks that both episodes of the pair exist and are well
// formed. A replay with zero calls is valid input; it scores as a full
// behavioral divergence, not an error.
func (p *Pair) Validate() error {
	if p == nil {
		return errors.New("episode: nil pair")
	}
	if p.Baseline == nil {
		return errors.New("episode: pair missing baseline")
	}
	if p.Replay == nil {
		return errors.New("episode: pair missing replay")
	}
	if err := p.Baseline.Validate(); err != nil {
		return fmt.Errorf("episode: baseline: %w", err)
	}
	if err := p.Replay.Validate(); err != nil {
		return fmt.Errorf("episode: replay: %w", err)
	}
	return nil
}
