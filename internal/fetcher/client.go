// Package fetcher is the HTTP client for the agent episode store. It
// either returns a well-formed episode (or pair) or an error; it never
// hands partial data to the scoring engine.
package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/stellarlinkco/replay-eval/internal/episode"
)

const defaultTimeout = 30 * time.Second

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if c == nil || timeout <= 0 {
			return
		}
		if c.httpClient == nil {
			c.httpClient = &http.Client{}
		}
		c.httpClient.Timeout = timeout
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if c == nil || hc == nil {
			return
		}
		c.httpClient = hc
	}
}

// Client talks to the episode store API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient constructs a Client for the given store base URL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Health holds the store's health response.
type Health struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

// Filter narrows episode listings.
type Filter struct {
	AgentID string
	Model   string
	Limit   int
	Offset  int
}

// CheckHealth queries the store health endpoint.
func (c *Client) CheckHealth(ctx context.Context) (*Health, error) {
	var out Health
	if err := c.getJSON(ctx, "/v1/health", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListEpisodes lists episode summaries with optional filters.
func (c *Client) ListEpisodes(ctx context.Context, filter Filter) ([]episode.Summary, error) {
	params := url.Values{}
	if v := strings.TrimSpace(filter.AgentID); v != "" {
		params.Set("agent_id", v)
	}
	if v := strings.TrimSpace(filter.Model); v != "" {
		params.Set("model", v)
	}
	if filter.Limit > 0 {
		params.Set("limit", strconv.Itoa(filter.Limit))
	}
	if filter.Offset > 0 {
		params.Set("offset", strconv.Itoa(filter.Offset))
	}

	var out []episode.Summary
	if err := c.getJSON(ctx, "/v1/episodes", params, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetEpisode fetches a single episode with all calls.
func (c *Client) GetEpisode(ctx context.Context, id string) (*episode.Episode, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.New("fetcher: empty episode id")
	}

	var out episode.Episode
	if err := c.getJSON(ctx, "/v1/episodes/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	if err := out.Validate(); err != nil {
		return nil, fmt.Errorf("fetcher: episode %s: %w", id, err)
	}
	return &out, nil
}

// GetReplayView fetches the store's replay-ready view of an episode:
// the shape a dry replay consumes without making any model calls.
func (c *Client) GetReplayView(ctx context.Context, id string) (*episode.Episode, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.New("fetcher: empty episode id")
	}

	var out episode.Episode
	if err := c.getJSON(ctx, "/v1/episodes/"+url.PathEscape(id)+"/replay", nil, &out); err != nil {
		return nil, err
	}
	if err := out.Validate(); err != nil {
		return nil, fmt.Errorf("fetcher: replay view %s: %w", id, err)
	}
	return &out, nil
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	if c == nil || c.httpClient == nil {
		return errors.New("fetcher: nil client")
	}
	if c.baseURL == "" {
		return errors.New("fetcher: empty base url")
	}
	if ctx == nil {
		return errors.New("fetcher: nil context")
	}

	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("fetcher: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetcher: %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return fmt.Errorf("fetcher: read %s: %w", path, err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("fetcher: %s: not found", path)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("fetcher: %s: status %d: %s", path, resp.StatusCode, truncate(string(body), 200))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("fetcher: decode %s: %w", path, err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
