package store

import (
	"context"
	"database/sql"

	"insured/pkg/platform/tx"
)

// SQLTx runs a unit of work inside one database transaction. The transaction
// travels through the context so every SQL store call made by fn joins it.
type SQLTx struct {
	db *sql.DB
}

// NewSQLTx constructs a transaction runner over db.
func NewSQLTx(db *sql.DB) *SQLTx {
	return &SQLTx{db: db}
}

// RunInTx commits when fn returns nil and rolls back otherwise. Nested calls
// reuse the outer transaction. AfterCommit callbacks registered by fn run
// once the commit succeeds.
func (t *SQLTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if tx.InTx(ctx) {
		return fn(ctx)
	}
	sqlTx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("begin transaction", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = sqlTx.Rollback()
		}
	}()

	txCtx, runHooks := tx.WithCommitHooks(tx.WithTx(ctx, sqlTx))
	if err = fn(txCtx); err != nil {
		return err
	}
	if cerr := sqlTx.Commit(); cerr != nil {
		return storageErr("commit transaction", cerr)
	}
	runHooks()
	return nil
}
