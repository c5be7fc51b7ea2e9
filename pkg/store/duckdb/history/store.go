package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/de-tools/flowlog-atlas/pkg/models/store"
	"github.com/de-tools/flowlog-atlas/pkg/store/duckdb"
)

var ErrRunNotFound = errors.New("run not found")

// Store persists reconcile runs and their action reports. Writes join the
// transaction carried by the context when there is one.
type Store interface {
	CreateRun(ctx context.Context, run *store.Run) error
	FinishRun(ctx context.Context, runID string, finishedAt time.Time, processed, failed int, runErr *string) error
	AddReports(ctx context.Context, reports []store.ActionReport) error
	ListRuns(ctx context.Context, limit int) ([]store.Run, error)
	ListReports(ctx context.Context, runID string) ([]store.ActionReport, error)
}

type historyStore struct {
	db *sql.DB
}

func NewStore(db *sql.DB) (Store, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}
	return &historyStore{
		db: db,
	}, nil
}

func (h *historyStore) conn(ctx context.Context) duckdb.Executor {
	return duckdb.ExecutorFor(ctx, h.db)
}

func (h *historyStore) CreateRun(ctx context.Context, run *store.Run) error {
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	_, err := h.conn(ctx).ExecContext(ctx, `
		INSERT INTO reconcile_runs (id, variant, mode, location, what_if, source, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Variant, run.Mode, run.Location, run.WhatIf, run.Source, run.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func (h *historyStore) FinishRun(
	ctx context.Context,
	runID string,
	finishedAt time.Time,
	processed, failed int,
	runErr *string,
) error {
	res, err := h.conn(ctx).ExecContext(ctx, `
		UPDATE reconcile_runs
		SET finished_at = ?, processed = ?, failed = ?, error = ?
		WHERE id = ?`,
		finishedAt, processed, failed, nullable(runErr), runID,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

func (h *historyStore) AddReports(ctx context.Context, reports []store.ActionReport) error {
	if len(reports) == 0 {
		return nil
	}

	stmt, err := h.conn(ctx).PrepareContext(ctx, `
		INSERT INTO action_reports (
			run_id, seq, name, subscription, location, target_type,
			action, failure_verb, failure_message, recorded_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, r := range reports {
		recordedAt := r.RecordedAt
		if recordedAt.IsZero() {
			recordedAt = now
		}
		_, err = stmt.ExecContext(ctx,
			r.RunID,
			r.Seq,
			r.Name,
			r.Subscription,
			r.Location,
			r.TargetType,
			r.Action,
			nullable(r.FailureVerb),
			nullable(r.FailureMessage),
			recordedAt,
		)
		if err != nil {
			return fmt.Errorf("insert report: %w", err)
		}
	}
	return nil
}

// ListRuns returns the most recent runs first. A non-positive limit returns
// every run.
func (h *historyStore) ListRuns(ctx context.Context, limit int) ([]store.Run, error) {
	query := `
		SELECT id, variant, mode, location, what_if, source, started_at, finished_at, processed, failed, error
		FROM reconcile_runs
		ORDER BY started_at DESC, id`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := make([]store.Run, 0)
	for rows.Next() {
		var (
			run      store.Run
			location sql.NullString
			source   sql.NullString
			finished sql.NullTime
			runErr   sql.NullString
		)
		if err := rows.Scan(
			&run.ID, &run.Variant, &run.Mode, &location, &run.WhatIf, &source,
			&run.StartedAt, &finished, &run.Processed, &run.Failed, &runErr,
		); err != nil {
			return nil, err
		}
		run.Location = location.String
		run.Source = source.String
		if finished.Valid {
			t := finished.Time
			run.FinishedAt = &t
		}
		if runErr.Valid {
			s := runErr.String
			run.Error = &s
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (h *historyStore) ListReports(ctx context.Context, runID string) ([]store.ActionReport, error) {
	rows, err := h.db.QueryContext(ctx, `
		SELECT run_id, seq, name, subscription, location, target_type,
			action, failure_verb, failure_message, recorded_at
		FROM action_reports
		WHERE run_id = ?
		ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("query reports: %w", err)
	}
	defer rows.Close()

	reports := make([]store.ActionReport, 0)
	for rows.Next() {
		var (
			r                                  store.ActionReport
			subscription, location, targetType sql.NullString
			verb, message                      sql.NullString
		)
		if err := rows.Scan(
			&r.RunID, &r.Seq, &r.Name, &subscription, &location, &targetType,
			&r.Action, &verb, &message, &r.RecordedAt,
		); err != nil {
			return nil, err
		}
		r.Subscription = subscription.String
		r.Location = location.String
		r.TargetType = targetType.String
		if verb.Valid {
			v := verb.String
			r.FailureVerb = &v
		}
		if message.Valid {
			m := message.String
			r.FailureMessage = &m
		}
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
