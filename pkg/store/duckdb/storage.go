package duckdb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"

	"github.com/marcboeker/go-duckdb/v2"
)

const ReconcileRunsSchema = `
	CREATE TABLE IF NOT EXISTS reconcile_runs (
		id VARCHAR PRIMARY KEY,
		variant VARCHAR NOT NULL,
		mode VARCHAR NOT NULL,
		location VARCHAR,
		what_if BOOLEAN NOT NULL DEFAULT FALSE,
		source VARCHAR,
		started_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		finished_at TIMESTAMP NULL,
		processed INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0,
		error VARCHAR NULL
	);
`
const ActionReportsSchema = `
	CREATE TABLE IF NOT EXISTS action_reports (
		run_id VARCHAR NOT NULL,
		seq INTEGER NOT NULL,
		name VARCHAR NOT NULL,
		subscription VARCHAR,
		location VARCHAR,
		target_type VARCHAR,
		action VARCHAR NOT NULL,
		failure_verb VARCHAR NULL,
		failure_message VARCHAR NULL,
		recorded_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (run_id, seq)
	);
`

var bootQueries = []string{
	ReconcileRunsSchema,
	ActionReportsSchema,
}

type Settings struct {
	DbPath string
}

func NewDB(settings Settings) (*sql.DB, error) {
	if settings.DbPath == "" {
		return nil, fmt.Errorf("database path is empty")
	}
	c, err := duckdb.NewConnector(fmt.Sprintf("%s?threads=4", settings.DbPath), func(exec driver.ExecerContext) error {
		for _, query := range bootQueries {
			_, err := exec.ExecContext(context.Background(), query, nil)
			if err != nil {
				return err
			}
		}
		return nil
	})

	if err != nil {
		return nil, err
	}

	db := sql.OpenDB(c)
	return db, nil
}
