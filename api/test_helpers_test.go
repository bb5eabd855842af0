package api

import (
	"context"

	"github.com/stellarlinkco/replay-eval/internal/store"
)

type fakeStore struct {
	SaveSweepFunc    func(ctx context.Context, sweep *store.SweepRecord) error
	SaveResultFunc   func(ctx context.Context, result *store.ResultRecord) error
	SaveAlertsFunc   func(ctx context.Context, alerts []*store.AlertRecord) error
	GetSweepFunc     func(ctx context.Context, id string) (*store.SweepRecord, error)
	ListSweepsFunc   func(ctx context.Context, filter store.SweepFilter) ([]*store.SweepRecord, error)
	GetResultsFunc   func(ctx context.Context, sweepID string) ([]*store.ResultRecord, error)
	GetAlertsFunc    func(ctx context.Context, sweepID string) ([]*store.AlertRecord, error)
	AgentHistoryFunc func(ctx context.Context, agentID string, limit int) ([]*store.SweepRecord, error)
	CloseFunc        func() error
}

func (s *fakeStore) SaveSweep(ctx context.Context, sweep *store.SweepRecord) error {
	if s.SaveSweepFunc != nil {
		return s.SaveSweepFunc(ctx, sweep)
	}
	return nil
}

func (s *fakeStore) SaveResult(ctx context.Context, result *store.ResultRecord) error {
	if s.SaveResultFunc != nil {
		return s.SaveResultFunc(ctx, result)
	}
	return nil
}

func (s *fakeStore) SaveAlerts(ctx context.Context, alerts []*store.AlertRecord) error {
	if s.SaveAlertsFunc != nil {
		return s.SaveAlertsFunc(ctx, alerts)
	}
	return nil
}

func (s *fakeStore) GetSweep(ctx context.Context, id string) (*store.SweepRecord, error) {
	if s.GetSweepFunc != nil {
		return s.GetSweepFunc(ctx, id)
	}
	return nil, nil
}

func (s *fakeStore) ListSweeps(ctx context.Context, filter store.SweepFilter) ([]*store.SweepRecord, error) {
	if s.ListSweepsFunc != nil {
		return s.ListSweepsFunc(ctx, filter)
	}
	return nil, nil
}

func (s *fakeStore) GetResults(ctx context.Context, sweepID string) ([]*store.ResultRecord, error) {
	if s.GetResultsFunc != nil {
		return s.GetResultsFunc(ctx, sweepID)
	}
	return nil, nil
}

func (s *fakeStore) GetAlerts(ctx context.Context, sweepID string) ([]*store.AlertRecord, error) {
	if s.GetAlertsFunc != nil {
		return s.GetAlertsFunc(ctx, sweepID)
	}
	return nil, nil
}

func (s *fakeStore) AgentHistory(ctx context.Context, agentID string, limit int) ([]*store.SweepRecord, error) {
	if s.AgentHistoryFunc != nil {
		return s.AgentHistoryFunc(ctx, agentID, limit)
	}
	return nil, nil
}

func (s *fakeStore) Close() error {
	if s.CloseFunc != nil {
		return s.CloseFunc()
	}
	return nil
}
