package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultClaudeModel = "claude-sonnet-4-5-20250929"

type ClaudeProvider struct {
	client anthropic.Client
	model  string
}

func NewClaudeProvider(apiKey string, baseURL string, model string) *ClaudeProvider {
	opts := make([]option.RequestOption, 0, 2)
	if v := strings.TrimSpace(apiKey); v != "" {
		opts = append(opts, option.WithAPIKey(v))
	}
	if v := strings.TrimSpace(baseURL); v != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(v, "/")))
	}

	m := strings.TrimSpace(model)
	if m == "" {
		m = defaultClaudeModel
	}

	return &ClaudeProvider{
		client: anthropic.NewClient(opts...),
		model:  m,
	}
}

func (p *ClaudeProvider) Name() string {
	return "claude"
}

func (p *ClaudeProvider) Complete(ctx context.Context, req *Request) (*Response, error) {
	if p == nil {
		return nil, errors.New("llm: claude: nil provider")
	}
	if ctx == nil {
		return nil, errors.New("llm: claude: nil context")
	}
	if req == nil {
		return nil, errors.New("llm: claude: nil request")
	}

	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = p.model
	}

	msgs := make([]anthropic.MessageParam, 0, len(req.Messages))
	for _, m := range req.Messages {
		block := anthropic.NewTextBlock(m.Content)
		if strings.EqualFold(strings.TrimSpace(m.Role), "assistant") {
			msgs = append(msgs, anthropic.NewAssistantMessage(block))
		} else {
			msgs = append(msgs, anthropic.NewUserMessage(block))
		}
	}
	if len(msgs) == 0 {
		return nil, errors.New("llm: claude: empty messages")
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(clampMaxTokens(req.MaxTokens)),
		Messages:  msgs,
	}
	if system := strings.TrimSpace(req.System); system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}

	start := time.Now()
	msg, err := p.client.Messages.New(ctx, params)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, errors.New("llm: claude: nil response")
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}

	return &Response{
		Content:      sb.String(),
		Model:        string(msg.Model),
		InputTokens:  int(msg.Usage.InputTokens),
		OutputTokens: int(msg.Usage.OutputTokens),
		LatencyMs:    latency,
	}, nil
}
