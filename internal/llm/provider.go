// Package llm provides the single-shot completion providers used by the
// safety classifier judge and the live replay runner.
package llm

import "context"

// Provider is a single-shot completion backend.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req *Request) (*Response, error)
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Request struct {
	Model       string
	Messages    []Message
	System      string
	MaxTokens   int
	Temperature float64
}

type Response struct {
	Content      string `json:"content"`
	Model        string `json:"model,omitempty"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
	LatencyMs    int64  `json:"latency_ms"`
}

// TotalTokens returns the combined token usage of a response.
func (r *Response) TotalTokens() int {
	if r == nil {
		return 0
	}
	return r.InputTokens + r.OutputTokens
}
