package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"common-addresses/internal/finder"
)

// Run is one row of intersection_runs.
type Run struct {
	ID            string    `json:"id"`
	RequestID     string    `json:"requestId"`
	CreatedAt     time.Time `json:"createdAt"`
	FilesReceived int       `json:"filesReceived"`
	FilesAccepted int       `json:"filesAccepted"`
	FilesDropped  int       `json:"filesDropped"`
	CommonCount   int       `json:"commonCount"`
	DurationMS    int64     `json:"durationMs"`
	Outcome       string    `json:"outcome"`
	Error         string    `json:"error,omitempty"`
}

// Bounds for Recent.
const (
	DefaultRecentLimit = 20
	MaxRecentLimit     = 100
)

// RunStore records find-common runs. It implements finder.Recorder.
type RunStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewRunStore(db *sql.DB) *RunStore {
	return &RunStore{db: db, now: time.Now}
}

// RecordRun inserts a summary. Only counts are stored, never tokens.
func (s *RunStore) RecordRun(ctx context.Context, sum finder.Summary) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO intersection_runs
			(id, request_id, created_at, files_received, files_accepted, files_dropped,
			 common_count, duration_ms, outcome, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		uuid.NewString(), sum.RequestID, s.now().UTC(), sum.Received, sum.Accepted, sum.Dropped,
		sum.Common, sum.Duration.Milliseconds(), sum.Outcome, sum.Err,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// ClampLimit maps a requested page size into [1, MaxRecentLimit].
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultRecentLimit
	case limit > MaxRecentLimit:
		return MaxRecentLimit
	default:
		return limit
	}
}

// Recent returns the newest runs first.
func (s *RunStore) Recent(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, request_id, created_at, files_received, files_accepted, files_dropped,
		       common_count, duration_ms, outcome, error
		FROM intersection_runs
		ORDER BY created_at DESC
		LIMIT $1`, ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.RequestID, &r.CreatedAt, &r.FilesReceived, &r.FilesAccepted,
			&r.FilesDropped, &r.CommonCount, &r.DurationMS, &r.Outcome, &r.Error); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Ping reports database reachability for readiness checks.
func (s *RunStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
