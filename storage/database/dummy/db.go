// Package dummydb provides in-memory repository implementations for
// tests and local hacking. Data lives in slices guarded by mutexes; a
// transaction takes the store-wide lock so concurrent callers are
// serialized the way a row lock would in postgres.
package dummydb

import (
	"context"
	"database/sql"
	"errors"

	"github.com/trezcool/kazi/core"
)

var errNoSQL = errors.New("dummydb: raw SQL not supported")

// noopExecutor satisfies core.DBExecutor; dummy repositories never
// issue raw SQL so every method fails loudly.
type noopExecutor struct{}

func (noopExecutor) Exec(string, ...interface{}) (sql.Result, error) { return nil, errNoSQL }

func (noopExecutor) ExecContext(context.Context, string, ...interface{}) (sql.Result, error) {
	return nil, errNoSQL
}

func (noopExecutor) Query(string, ...interface{}) (*sql.Rows, error) { return nil, errNoSQL }

func (noopExecutor) QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error) {
	return nil, errNoSQL
}

func (noopExecutor) QueryRow(string, ...interface{}) *sql.Row { return nil }

func (noopExecutor) QueryRowContext(context.Context, string, ...interface{}) *sql.Row { return nil }

type DB struct {
	noopExecutor
	sem chan struct{}
}

var _ core.DB = (*DB)(nil) // interface compliance check

func NewDB() *DB {
	return &DB{sem: make(chan struct{}, 1)}
}

func (db *DB) BeginTx(ctx context.Context, _ *sql.TxOptions) (core.DBTransactor, error) {
	select {
	case db.sem <- struct{}{}:
		return &Tx{db: db}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type Tx struct {
	noopExecutor
	db   *DB
	done bool
}

func (tx *Tx) Commit() error   { return tx.finish() }
func (tx *Tx) Rollback() error { return tx.finish() }

func (tx *Tx) finish() error {
	if tx.done {
		return sql.ErrTxDone
	}
	tx.done = true
	<-tx.db.sem
	return nil
}

// paging clamps an offset/limit window to n elements.
func paging(n, offset, limit int) (lo, hi int) {
	if offset > n {
		offset = n
	}
	hi = offset + limit
	if hi > n {
		hi = n
	}
	return offset, hi
}
