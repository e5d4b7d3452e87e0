// Package sqlxrepos implements the core repositories on postgres with
// squirrel-built queries and sqlx row scanning.
package sqlxrepos

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/kazi/core"
)

// psql builds queries with postgres placeholders.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// getExec returns the service-provided executor (a transaction) if any,
// falling back to the repository's default connection.
func getExec(dflt core.DBExecutor, svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 {
		return svcExec[0]
	}
	return dflt
}

// trapUniqueErr maps a unique constraint violation to a Conflict;
// this is the database-level backstop for check-then-insert races.
func trapUniqueErr(err error, msg string) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return core.NewConflictError(msg + ": record already exists")
	}
	return errors.Wrap(err, msg)
}

// selectAll runs a select and scans all rows into dest (a pointer to a
// slice of row structs).
func selectAll(ctx context.Context, exec core.DBExecutor, q sq.SelectBuilder, dest interface{}, msg string) error {
	query, args, err := q.ToSql()
	if err != nil {
		return errors.Wrap(err, msg)
	}
	rows, err := exec.QueryContext(ctx, query, args...)
	if err != nil {
		return errors.Wrap(err, msg)
	}
	defer func() { _ = rows.Close() }()
	return errors.Wrap(sqlx.StructScan(rows, dest), msg)
}
