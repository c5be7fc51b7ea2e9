package duckdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Executor is what stores write through: the database itself or the
// transaction of the current batch.
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

type batchTxKey struct{}

func WithTransaction(ctx context.Context, tx *sql.Tx) context.Context {
	return context.WithValue(ctx, batchTxKey{}, tx)
}

func GetTransaction(ctx context.Context) *sql.Tx {
	tx, _ := ctx.Value(batchTxKey{}).(*sql.Tx)
	return tx
}

// ExecutorFor returns the transaction carried by ctx, or db when there is
// none.
func ExecutorFor(ctx context.Context, db *sql.DB) Executor {
	if tx := GetTransaction(ctx); tx != nil {
		return tx
	}
	return db
}

// InTransaction runs fn with a context carrying a new transaction and
// commits it when fn succeeds. A context that already carries a
// transaction is reused as is, leaving commit to its owner.
func InTransaction(ctx context.Context, db *sql.DB, fn func(ctx context.Context) error) error {
	if GetTransaction(ctx) != nil {
		return fn(ctx)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to instantiate transaction: %w", err)
	}
	if err := fn(WithTransaction(ctx, tx)); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			return errors.Join(err, fmt.Errorf("rollback: %w", rerr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
