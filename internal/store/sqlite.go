package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/stellarlinkco/replay-eval/internal/scorer"
)

const defaultHistoryLimit = 50

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB

	insertSweepStmt    *sql.Stmt
	insertResultStmt   *sql.Stmt
	insertAlertStmt    *sql.Stmt
	getSweepStmt       *sql.Stmt
	resultsBySweepStmt *sql.Stmt
	alertsBySweepStmt  *sql.Stmt
	agentHistoryStmt   *sql.Stmt
}

// NewSQLiteStore opens or creates a SQLite store at the given path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("store: empty sqlite path")
	}
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("store: create sqlite dir: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: ping sqlite: %w", err)
	}

	if err := initSQLiteSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	st := &SQLiteStore{db: db}
	if err := st.prepareStatements(); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

func initSQLiteSchema(db *sql.DB) error {
	stmts := []string{
		`PRAGMA foreign_keys = ON`,
		`PRAGMA journal_mode = WAL`,
		`CREATE TABLE IF NOT EXISTS sweeps (
			id TEXT PRIMARY KEY,
			started_at INTEGER NOT NULL,
			finished_at INTEGER NOT NULL,
			mode TEXT NOT NULL,
			agent_id TEXT NOT NULL DEFAULT '',
			total_pairs INTEGER NOT NULL,
			passed INTEGER NOT NULL,
			failed INTEGER NOT NULL,
			critical_alerts INTEGER NOT NULL,
			avg_overall REAL NOT NULL,
			config_json TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS results (
			id TEXT PRIMARY KEY,
			sweep_id TEXT NOT NULL,
			baseline_id TEXT NOT NULL,
			replay_id TEXT NOT NULL,
			agent_id TEXT NOT NULL DEFAULT '',
			model TEXT NOT NULL DEFAULT '',
			overall REAL NOT NULL,
			flags TEXT,
			dimensions BLOB NOT NULL,
			error TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL,
			FOREIGN KEY(sweep_id) REFERENCES sweeps(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS alerts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			sweep_id TEXT NOT NULL,
			result_id TEXT NOT NULL,
			dimension TEXT NOT NULL,
			severity TEXT NOT NULL,
			raw REAL NOT NULL,
			message TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			FOREIGN KEY(sweep_id) REFERENCES sweeps(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_results_sweep_id ON results(sweep_id)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_sweep_id ON alerts(sweep_id)`,
		`CREATE INDEX IF NOT EXISTS idx_sweeps_agent ON sweeps(agent_id, started_at)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("store: init schema: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) prepareStatements() error {
	if s == nil || s.db == nil {
		return errors.New("store: nil sqlite store")
	}

	ctx := context.Background()
	type stmtSpec struct {
		dst    **sql.Stmt
		query  string
		errFmt string
	}

	specs := []stmtSpec{
		{
			dst: &s.insertSweepStmt,
			query: `
				INSERT INTO sweeps (
					id, started_at, finished_at, mode, agent_id, total_pairs, passed, failed,
					critical_alerts, avg_overall, config_json
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`,
			errFmt: "store: prepare insert sweep: %w",
		},
		{
			dst: &s.insertResultStmt,
			query: `
				INSERT INTO results (
					id, sweep_id, baseline_id, replay_id, agent_id, model, overall, flags,
					dimensions, error, created_at
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`,
			errFmt: "store: prepare insert result: %w",
		},
		{
			dst: &s.insertAlertStmt,
			query: `
				INSERT INTO alerts (
					sweep_id, result_id, dimension, severity, raw, message, created_at
				) VALUES (?, ?, ?, ?, ?, ?, ?)
			`,
			errFmt: "store: prepare insert alert: %w",
		},
		{
			dst: &s.getSweepStmt,
			query: `
				SELECT id, started_at, finished_at, mode, agent_id, total_pairs, passed, failed,
					critical_alerts, avg_overall, config_json
				FROM sweeps WHERE id = ?
			`,
			errFmt: "store: prepare get sweep: %w",
		},
		{
			dst: &s.resultsBySweepStmt,
			query: `
				SELECT id, sweep_id, baseline_id, replay_id, agent_id, model, overall, flags,
					dimensions, error, created_at
				FROM results
				WHERE sweep_id = ?
				ORDER BY created_at ASC, baseline_id ASC
			`,
			errFmt: "store: prepare get results: %w",
		},
		{
			dst: &s.alertsBySweepStmt,
			query: `
				SELECT sweep_id, result_id, dimension, severity, raw, message, created_at
				FROM alerts
				WHERE sweep_id = ?
				ORDER BY id ASC
			`,
			errFmt: "store: prepare get alerts: %w",
		},
		{
			dst: &s.agentHistoryStmt,
			query: `
				SELECT id, started_at, finished_at, mode, agent_id, total_pairs, passed, failed,
					critical_alerts, avg_overall, config_json
				FROM sweeps
				WHERE agent_id = ?
				ORDER BY started_at DESC
				LIMIT ?
			`,
			errFmt: "store: prepare agent history: %w",
		},
	}

	for _, spec := range specs {
		stmt, err := s.db.PrepareContext(ctx, spec.query)
		if err != nil {
			return fmt.Errorf(spec.errFmt, err)
		}
		*spec.dst = stmt
	}

	return nil
}

// Close releases database resources.
func (s *SQLiteStore) Close() error {
	if s == nil {
		return nil
	}
	stmts := []*sql.Stmt{
		s.insertSweepStmt,
		s.insertResultStmt,
		s.insertAlertStmt,
		s.getSweepStmt,
		s.resultsBySweepStmt,
		s.alertsBySweepStmt,
		s.agentHistoryStmt,
	}
	for _, stmt := range stmts {
		if stmt != nil {
			_ = stmt.Close()
		}
	}
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveSweep persists a sweep summary.
func (s *SQLiteStore) SaveSweep(ctx context.Context, sweep *SweepRecord) error {
	if s == nil {
		return errors.New("store: nil sqlite store")
	}
	if ctx == nil {
		return errors.New("store: nil context")
	}
	if sweep == nil {
		return errors.New("store: nil sweep")
	}

	id := strings.TrimSpace(sweep.ID)
	if id == "" {
		return errors.New("store: empty sweep id")
	}
	if sweep.StartedAt.IsZero() || sweep.FinishedAt.IsZero() {
		return errors.New("store: missing sweep timestamps")
	}

	cfgJSON := []byte("null")
	if sweep.Config != nil {
		var err error
		cfgJSON, err = json.Marshal(sweep.Config)
		if err != nil {
			return fmt.Errorf("store: marshal sweep config: %w", err)
		}
	}

	_, err := s.insertSweepStmt.ExecContext(
		ctx,
		id,
		sweep.StartedAt.UTC().UnixMilli(),
		sweep.FinishedAt.UTC().UnixMilli(),
		sweep.Mode,
		sweep.AgentID,
		sweep.TotalPairs,
		sweep.Passed,
		sweep.Failed,
		sweep.CriticalAlerts,
		sweep.AvgOverall,
		string(cfgJSON),
	)
	if err != nil {
		return fmt.Errorf("store: insert sweep: %w", err)
	}
	return nil
}

// SaveResult persists one pair evaluation.
func (s *SQLiteStore) SaveResult(ctx context.Context, result *ResultRecord) error {
	if s == nil {
		return errors.New("store: nil sqlite store")
	}
	if ctx == nil {
		return errors.New("store: nil context")
	}
	if result == nil {
		return errors.New("store: nil result")
	}

	id := strings.TrimSpace(result.ID)
	if id == "" {
		return errors.New("store: empty result id")
	}
	if strings.TrimSpace(result.SweepID) == "" {
		return errors.New("store: empty sweep id")
	}

	createdAt := result.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	dimJSON, err := json.Marshal(result.Dimensions)
	if err != nil {
		return fmt.Errorf("store: marshal dimensions: %w", err)
	}
	flagsJSON, err := json.Marshal(result.Flags)
	if err != nil {
		return fmt.Errorf("store: marshal flags: %w", err)
	}

	_, err = s.insertResultStmt.ExecContext(
		ctx,
		id,
		result.SweepID,
		result.BaselineID,
		result.ReplayID,
		result.AgentID,
		result.Model,
		result.Overall,
		string(flagsJSON),
		dimJSON,
		result.Error,
		createdAt.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("store: insert result: %w", err)
	}
	return nil
}

// SaveAlerts persists a batch of alerts in one transaction.
func (s *SQLiteStore) SaveAlerts(ctx context.Context, alerts []*AlertRecord) error {
	if s == nil {
		return errors.New("store: nil sqlite store")
	}
	if ctx == nil {
		return errors.New("store: nil context")
	}
	if len(alerts) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin alerts tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt := tx.StmtContext(ctx, s.insertAlertStmt)
	defer stmt.Close()

	for i, a := range alerts {
		if a == nil {
			return fmt.Errorf("store: nil alert at %d", i)
		}
		createdAt := a.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		if _, err := stmt.ExecContext(
			ctx,
			a.SweepID,
			a.ResultID,
			a.Dimension,
			a.Severity,
			a.Raw,
			a.Message,
			createdAt.UTC().UnixMilli(),
		); err != nil {
			return fmt.Errorf("store: insert alert: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit alerts: %w", err)
	}
	return nil
}

// GetSweep loads one sweep summary.
func (s *SQLiteStore) GetSweep(ctx context.Context, id string) (*SweepRecord, error) {
	if s == nil {
		return nil, errors.New("store: nil sqlite store")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.New("store: empty sweep id")
	}

	row := s.getSweepStmt.QueryRowContext(ctx, id)
	rec, err := scanSweep(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("store: sweep %q not found", id)
	}
	return rec, err
}

// ListSweeps lists sweeps, most recent first.
func (s *SQLiteStore) ListSweeps(ctx context.Context, filter SweepFilter) ([]*SweepRecord, error) {
	if s == nil {
		return nil, errors.New("store: nil sqlite store")
	}

	query := `
		SELECT id, started_at, finished_at, mode, agent_id, total_pairs, passed, failed,
			critical_alerts, avg_overall, config_json
		FROM sweeps
	`
	conds := make([]string, 0, 2)
	args := make([]any, 0, 3)
	if v := strings.TrimSpace(filter.AgentID); v != "" {
		conds = append(conds, "agent_id = ?")
		args = append(args, v)
	}
	if !filter.Since.IsZero() {
		conds = append(conds, "started_at >= ?")
		args = append(args, filter.Since.UTC().UnixMilli())
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY started_at DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	query += " LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list sweeps: %w", err)
	}
	defer rows.Close()

	out := make([]*SweepRecord, 0)
	for rows.Next() {
		rec, err := scanSweep(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list sweeps rows: %w", err)
	}
	return out, nil
}

// GetResults loads all pair results of a sweep.
func (s *SQLiteStore) GetResults(ctx context.Context, sweepID string) ([]*ResultRecord, error) {
	if s == nil {
		return nil, errors.New("store: nil sqlite store")
	}
	sweepID = strings.TrimSpace(sweepID)
	if sweepID == "" {
		return nil, errors.New("store: empty sweep id")
	}

	rows, err := s.resultsBySweepStmt.QueryContext(ctx, sweepID)
	if err != nil {
		return nil, fmt.Errorf("store: get results: %w", err)
	}
	defer rows.Close()

	out := make([]*ResultRecord, 0)
	for rows.Next() {
		var (
			rec       ResultRecord
			createdAt int64
			flagsJSON sql.NullString
			dimJSON   []byte
		)
		if err := rows.Scan(
			&rec.ID,
			&rec.SweepID,
			&rec.BaselineID,
			&rec.ReplayID,
			&rec.AgentID,
			&rec.Model,
			&rec.Overall,
			&flagsJSON,
			&dimJSON,
			&rec.Error,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("store: scan result: %w", err)
		}
		rec.CreatedAt = time.UnixMilli(createdAt).UTC()
		if flagsJSON.Valid && flagsJSON.String != "" && flagsJSON.String != "null" {
			if err := json.Unmarshal([]byte(flagsJSON.String), &rec.Flags); err != nil {
				return nil, fmt.Errorf("store: decode flags: %w", err)
			}
		}
		if len(dimJSON) > 0 {
			var dims []scorer.Score
			if err := json.Unmarshal(dimJSON, &dims); err != nil {
				return nil, fmt.Errorf("store: decode dimensions: %w", err)
			}
			rec.Dimensions = dims
		}
		out = append(out, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: results rows: %w", err)
	}
	return out, nil
}

// GetAlerts loads the alerts of a sweep in emission order.
func (s *SQLiteStore) GetAlerts(ctx context.Context, sweepID string) ([]*AlertRecord, error) {
	if s == nil {
		return nil, errors.New("store: nil sqlite store")
	}
	sweepID = strings.TrimSpace(sweepID)
	if sweepID == "" {
		return nil, errors.New("store: empty sweep id")
	}

	rows, err := s.alertsBySweepStmt.QueryContext(ctx, sweepID)
	if err != nil {
		return nil, fmt.Errorf("store: get alerts: %w", err)
	}
	defer rows.Close()

	out := make([]*AlertRecord, 0)
	for rows.Next() {
		var (
			rec       AlertRecord
			createdAt int64
		)
		if err := rows.Scan(
			&rec.SweepID,
			&rec.ResultID,
			&rec.Dimension,
			&rec.Severity,
			&rec.Raw,
			&rec.Message,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("store: scan alert: %w", err)
		}
		rec.CreatedAt = time.UnixMilli(createdAt).UTC()
		out = append(out, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: alerts rows: %w", err)
	}
	return out, nil
}

// AgentHistory lists the most recent sweeps for an agent.
func (s *SQLiteStore) AgentHistory(ctx context.Context, agentID string, limit int) ([]*SweepRecord, error) {
	if s == nil {
		return nil, errors.New("store: nil sqlite store")
	}
	agentID = strings.TrimSpace(agentID)
	if agentID == "" {
		return nil, errors.New("store: empty agent id")
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	rows, err := s.agentHistoryStmt.QueryContext(ctx, agentID, limit)
	if err != nil {
		return nil, fmt.Errorf("store: agent history: %w", err)
	}
	defer rows.Close()

	out := make([]*SweepRecord, 0)
	for rows.Next() {
		rec, err := scanSweep(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: history rows: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSweep(row rowScanner) (*SweepRecord, error) {
	var (
		rec        SweepRecord
		startedAt  int64
		finishedAt int64
		cfgJSON    sql.NullString
	)
	if err := row.Scan(
		&rec.ID,
		&startedAt,
		&finishedAt,
		&rec.Mode,
		&rec.AgentID,
		&rec.TotalPairs,
		&rec.Passed,
		&rec.Failed,
		&rec.CriticalAlerts,
		&rec.AvgOverall,
		&cfgJSON,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("store: scan sweep: %w", err)
	}

	rec.StartedAt = time.UnixMilli(startedAt).UTC()
	rec.FinishedAt = time.UnixMilli(finishedAt).UTC()
	if cfgJSON.Valid && cfgJSON.String != "" && cfgJSON.String != "null" {
		if err := json.Unmarshal([]byte(cfgJSON.String), &rec.Config); err != nil {
			return nil, fmt.Errorf("store: decode sweep config: %w", err)
		}
	}
	return &rec, nil
}
