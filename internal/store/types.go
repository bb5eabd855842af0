package store

import (
	"context"
	"time"

	"github.com/stellarlinkco/replay-eval/internal/scorer"
)

// SweepWriter defines persistence for sweep summaries and per-pair
// results.
type SweepWriter interface {
	SaveSweep(ctx context.Context, sweep *SweepRecord) error
	SaveResult(ctx context.Context, result *ResultRecord) error
	SaveAlerts(ctx context.Context, alerts []*AlertRecord) error
}

// SweepReader defines read access to sweep data.
type SweepReader interface {
	GetSweep(ctx context.Context, id string) (*SweepRecord, error)
	ListSweeps(ctx context.Context, filter SweepFilter) ([]*SweepRecord, error)
	GetResults(ctx context.Context, sweepID string) ([]*ResultRecord, error)
	GetAlerts(ctx context.Context, sweepID string) ([]*AlertRecord, error)
}

// Analytics defines query helpers for historical trends.
type Analytics interface {
	AgentHistory(ctx context.Context, agentID string, limit int) ([]*SweepRecord, error)
}

// Store defines persistence for eval sweeps.
type Store interface {
	SweepWriter
	SweepReader
	Analytics
	Close() error
}

// SweepRecord stores one sweep summary.
type SweepRecord struct {
	ID             string
	StartedAt      time.Time
	FinishedAt     time.Time
	Mode           string
	AgentID        string
	TotalPairs     int
	Passed         int
	Failed         int
	CriticalAlerts int
	AvgOverall     float64
	Config         map[string]any // Serialized sweep config
}

// ResultRecord stores one pair evaluation.
type ResultRecord struct {
	ID         string
	SweepID    string
	BaselineID string
	ReplayID   string
	AgentID    string
	Model      string
	Overall    float64
	Flags      []string
	Dimensions []scorer.Score // JSON serialized
	Error      string
	CreatedAt  time.Time
}

// AlertRecord stores one regression alert.
type AlertRecord struct {
	SweepID   string
	ResultID  string
	Dimension string
	Severity  string
	Raw       float64
	Message   string
	CreatedAt time.Time
}

// SweepFilter filters sweep listings.
type SweepFilter struct {
	AgentID string
	Since   time.Time
	Limit   int
}
