package replay

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stellarlinkco/replay-eval/internal/episode"
	"github.com/stellarlinkco/replay-eval/internal/fetcher"
	"github.com/stellarlinkco/replay-eval/internal/llm"
)

type fakeProvider struct {
	responses map[string]*llm.Response
	err       error
	calls     int
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) Complete(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	if len(req.Messages) == 0 {
		return nil, errors.New("fake: no messages")
	}
	if resp, ok := p.responses[req.Messages[0].Content]; ok {
		return resp, nil
	}
	return &llm.Response{Content: "default", InputTokens: 1, OutputTokens: 1}, nil
}

func TestParseMode(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"", ModeDry, false},
		{"dry", ModeDry, false},
		{"DRY", ModeDry, false},
		{"live", ModeLive, false},
		{" Live ", ModeLive, false},
		{"replay", "", true},
	}
	for _, tc := range cases {
		got, err := ParseMode(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("ParseMode(%q): expected error", tc.in)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("ParseMode(%q): got %q, %v want %q", tc.in, got, err, tc.want)
		}
	}
}

func TestPairDryMode(t *testing.T) {
	t.Parallel()

	baseline := episode.Episode{
		ID:              "ep-1",
		AgentID:         "agent-a",
		TotalTokens:     100,
		TotalDurationMs: 500,
		FinalOutput:     "the answer",
	}
	replayView := episode.Episode{
		ID:              "ep-1-replay",
		AgentID:         "agent-a",
		TotalTokens:     130,
		TotalDurationMs: 450,
		FinalOutput:     "the answer",
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/episodes/ep-1":
			_ = json.NewEncoder(w).Encode(baseline)
		case "/v1/episodes/ep-1/replay":
			_ = json.NewEncoder(w).Encode(replayView)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	r := NewRunner(fetcher.NewClient(srv.URL), nil)

	pair, result, err := r.Pair(context.Background(), "ep-1", ModeDry)
	if err != nil {
		t.Fatalf("Pair: %v", err)
	}
	if pair.Baseline.ID != "ep-1" || pair.Replay.ID != "ep-1-replay" {
		t.Fatalf("pair ids: got %q %q", pair.Baseline.ID, pair.Replay.ID)
	}
	if result.Mode != ModeDry {
		t.Fatalf("mode: got %q", result.Mode)
	}
	if pair.Replay.TotalTokens != 130 {
		t.Fatalf("replay tokens: got %d", pair.Replay.TotalTokens)
	}
}

func TestReplayLiveMode(t *testing.T) {
	t.Parallel()

	baseline := &episode.Episode{
		ID:      "ep-2",
		AgentID: "agent-a",
		Model:   "m-1",
		Calls: []episode.Call{
			{Index: 0, Tool: "search", Input: "q", Tokens: 40, DurationMs: 100, Output: "results"},
			{Index: 1, Input: "summarize", Tokens: 60, DurationMs: 300, Output: "old summary"},
		},
	}

	provider := &fakeProvider{
		responses: map[string]*llm.Response{
			"summarize": {Content: "new summary", InputTokens: 30, OutputTokens: 25, LatencyMs: 200},
		},
	}

	r := NewRunner(fetcher.NewClient("http://unused.invalid"), provider)

	result, err := r.Replay(context.Background(), baseline, ModeLive)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}

	ep := result.Episode
	if ep.ID != "ep-2-replay" {
		t.Fatalf("id: got %q", ep.ID)
	}
	if provider.calls != 1 {
		t.Fatalf("provider calls: got %d want 1 (tool calls are not re-issued)", provider.calls)
	}
	if len(ep.Calls) != 2 {
		t.Fatalf("calls: got %d", len(ep.Calls))
	}
	if ep.Calls[0].Output != "results" {
		t.Fatalf("tool call carried over: got %q", ep.Calls[0].Output)
	}
	if ep.Calls[1].Output != "new summary" {
		t.Fatalf("completion output: got %q", ep.Calls[1].Output)
	}
	// 40 recorded tool tokens plus 55 fresh completion tokens.
	if ep.TotalTokens != 95 {
		t.Fatalf("tokens: got %d want 95", ep.TotalTokens)
	}
	if ep.TotalDurationMs != 300 {
		t.Fatalf("duration: got %d want 300", ep.TotalDurationMs)
	}
	if ep.FinalOutput != "new summary" {
		t.Fatalf("final output: got %q", ep.FinalOutput)
	}
}

func TestReplayLiveModeRequiresProvider(t *testing.T) {
	t.Parallel()

	r := NewRunner(fetcher.NewClient("http://unused.invalid"), nil)
	_, err := r.Replay(context.Background(), &episode.Episode{ID: "ep-3"}, ModeLive)
	if err == nil {
		t.Fatalf("live without provider: expected error")
	}
}

func TestReplayProviderFailure(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{err: errors.New("gateway down")}
	r := NewRunner(fetcher.NewClient("http://unused.invalid"), provider)

	baseline := &episode.Episode{
		ID:    "ep-4",
		Calls: []episode.Call{{Index: 0, Input: "go"}},
	}
	_, err := r.Replay(context.Background(), baseline, ModeLive)
	if err == nil {
		t.Fatalf("provider failure: expected error")
	}
}
