package repository

import (
	"context"
	"database/sql"
)

// txKey carries an open *sql.Tx through the context so repository
// methods invoked inside withTx run their statements on the
// transaction instead of the pool.
type txKey struct{}

// runner is the subset of *sql.DB and *sql.Tx the repositories use.
type runner interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// run returns the transaction from ctx when present, else the pool.
func run(ctx context.Context, db *sql.DB) runner {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return db
}

// withTx runs fn inside a single transaction, made visible to
// repository methods through the context. Any error from fn rolls the
// transaction back. Failures the database attributes to conflicting
// writers come back as model.ErrTxConflict, whether they surface on a
// statement inside fn, on begin, or on commit.
func withTx(ctx context.Context, db *sql.DB, fn func(ctx context.Context) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return asTxConflict(err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return asTxConflict(err)
	}
	if err := tx.Commit(); err != nil {
		return asTxConflict(err)
	}
	committed = true
	return nil
}
