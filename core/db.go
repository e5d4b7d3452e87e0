package core

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"
)

type (
	DBExecutor interface {
		Exec(query string, args ...interface{}) (sql.Result, error)
		ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
		Query(query string, args ...interface{}) (*sql.Rows, error)
		QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
		QueryRow(query string, args ...interface{}) *sql.Row
		QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	}

	DB interface {
		DBExecutor

		BeginTx(context.Context, *sql.TxOptions) (DBTransactor, error)
	}

	DBTransactor interface {
		DBExecutor

		Commit() error
		Rollback() error
	}
)

// RunInTx runs fn within a transaction; committed if fn returns nil,
// rolled back entirely otherwise.
func RunInTx(ctx context.Context, db DB, fn func(tx DBTransactor) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Wrap(rbErr, "rolling back transaction")
		}
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

const (
	defaultPage  = 1
	defaultLimit = 10

	OrderAsc  = "ASC"
	OrderDesc = "DESC"
)

var (
	errUnknownOrderColumn    = errors.New("unknown order column")
	errInvalidOrderDirection = errors.New("order direction must be ASC or DESC")
)

// Paginator holds caller-provided offset pagination and ordering params.
type Paginator struct {
	Page           int    `json:"page" query:"page"`
	Limit          int    `json:"limit" query:"limit"`
	OrderBy        string `json:"order_by" query:"order_by"`
	OrderDirection string `json:"order_direction" query:"order_direction"`
}

// Clean applies defaults and resolves the requested ordering against an
// allow-list of exposed sort keys mapped to actual storage columns.
// Anything outside the allow-list is rejected.
func (pg *Paginator) Clean(orderColumns map[string]string) (DBOrdering, error) {
	if pg.Page < 1 {
		pg.Page = defaultPage
	}
	if pg.Limit < 1 {
		pg.Limit = defaultLimit
	}
	if pg.OrderBy == "" {
		pg.OrderBy = "created_at"
	}
	if pg.OrderDirection == "" {
		pg.OrderDirection = OrderDesc
	}

	col, ok := orderColumns[pg.OrderBy]
	if !ok {
		return DBOrdering{}, NewValidationError(errUnknownOrderColumn,
			FieldError{Field: "order_by", Error: errUnknownOrderColumn.Error()})
	}

	switch strings.ToUpper(pg.OrderDirection) {
	case OrderAsc:
		return DBOrdering{Field: col, Ascending: true}, nil
	case OrderDesc:
		return DBOrdering{Field: col}, nil
	default:
		return DBOrdering{}, NewValidationError(errInvalidOrderDirection,
			FieldError{Field: "order_direction", Error: errInvalidOrderDirection.Error()})
	}
}

func (pg Paginator) Offset() int {
	return (pg.Page - 1) * pg.Limit
}
