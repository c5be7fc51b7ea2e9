package history

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/de-tools/flowlog-atlas/pkg/adapters"
	"github.com/de-tools/flowlog-atlas/pkg/models/domain"
	"github.com/de-tools/flowlog-atlas/pkg/models/store"
	"github.com/de-tools/flowlog-atlas/pkg/store/duckdb"
	historystore "github.com/de-tools/flowlog-atlas/pkg/store/duckdb/history"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Meta describes a run as it is started.
type Meta struct {
	Variant  string
	Mode     string
	Location string
	Source   string
	WhatIf   bool
}

// Recorder writes an audit trail of runs into the history database.
type Recorder struct {
	db    *sql.DB
	store historystore.Store
	newID func() string
}

func NewRecorder(db *sql.DB, s historystore.Store) *Recorder {
	return &Recorder{
		db:    db,
		store: s,
		newID: uuid.NewString,
	}
}

type Run struct {
	recorder *Recorder
	id       string

	mu        sync.Mutex
	seq       int
	processed int
	failed    int
}

func (r *Recorder) Begin(ctx context.Context, meta Meta) (*Run, error) {
	run := &store.Run{
		ID:        r.newID(),
		Variant:   meta.Variant,
		Mode:      meta.Mode,
		Location:  meta.Location,
		Source:    meta.Source,
		WhatIf:    meta.WhatIf,
		StartedAt: time.Now().UTC(),
	}
	if err := r.store.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to start run: %w", err)
	}
	zerolog.Ctx(ctx).Debug().Str("run_id", run.ID).Msg("run history started")
	return &Run{recorder: r, id: run.ID}, nil
}

func (run *Run) ID() string {
	return run.id
}

// Record appends one batch of reports atomically.
func (run *Run) Record(ctx context.Context, reports []domain.ActionReport) error {
	if len(reports) == 0 {
		return nil
	}

	run.mu.Lock()
	defer run.mu.Unlock()

	rows := make([]store.ActionReport, 0, len(reports))
	failed := 0
	for i, r := range reports {
		rows = append(rows, adapters.MapDomainReportToStore(run.id, run.seq+i, r))
		if r.Failed() {
			failed++
		}
	}

	err := duckdb.InTransaction(ctx, run.recorder.db, func(ctx context.Context) error {
		return run.recorder.store.AddReports(ctx, rows)
	})
	if err != nil {
		return fmt.Errorf("failed to store action reports: %w", err)
	}

	run.seq += len(reports)
	run.processed += len(reports)
	run.failed += failed
	return nil
}

// Exported counts records written by an export run.
func (run *Run) Exported(n int) {
	run.mu.Lock()
	defer run.mu.Unlock()
	run.processed += n
}

// Finish closes the run, keeping runErr as its outcome.
func (run *Run) Finish(ctx context.Context, runErr error) error {
	run.mu.Lock()
	defer run.mu.Unlock()

	var msg *string
	if runErr != nil {
		s := runErr.Error()
		msg = &s
	}
	if err := run.recorder.store.FinishRun(ctx, run.id, time.Now().UTC(), run.processed, run.failed, msg); err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	return nil
}

// Runs returns recent runs, newest first.
func (r *Recorder) Runs(ctx context.Context, limit int) ([]store.Run, error) {
	return r.store.ListRuns(ctx, limit)
}

func (r *Recorder) Reports(ctx context.Context, runID string) ([]domain.ActionReport, error) {
	rows, err := r.store.ListReports(ctx, runID)
	if err != nil {
		return nil, err
	}
	reports := make([]domain.ActionReport, 0, len(rows))
	for _, row := range rows {
		reports = append(reports, adapters.MapStoreReportToDomain(row))
	}
	return reports, nil
}
