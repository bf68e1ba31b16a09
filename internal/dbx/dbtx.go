// Package dbx holds the small database/sql helpers shared by the client
// repositories: the DBTX handle satisfied by both *sql.DB and *sql.Tx, and
// WithTx for all-or-nothing writes.
package dbx

import (
	"context"
	"database/sql"
	"fmt"
)

// DBTX is the subset of database/sql the repositories use.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// TxFunc is the body of a transaction. The handle it receives must be used
// for every statement that belongs to the transaction.
type TxFunc func(ctx context.Context, tx DBTX) error

// WithTx runs fn inside a transaction. The transaction is committed when fn
// returns nil and rolled back when fn returns an error or panics; a panic is
// re-raised after the rollback.
//
//	err := dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
//	    return repo.WithDB(tx).Set(ctx, "local", "token", v)
//	})
func WithTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn TxFunc) (err error) {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		if cerr := tx.Commit(); cerr != nil {
			err = fmt.Errorf("commit tx: %w", cerr)
		}
	}()

	return fn(ctx, tx)
}
