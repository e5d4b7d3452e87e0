package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/core/classtoken"
)

type classTokenRepository struct {
	exec core.DBExecutor
}

var _ classtoken.Repository = (*classTokenRepository)(nil) // interface compliance check

func NewClassTokenRepository(exec core.DBExecutor) *classTokenRepository {
	return &classTokenRepository{exec: exec}
}

type classTokenRow struct {
	ID             string    `db:"id"`
	Token          string    `db:"token"`
	TokenNumber    int       `db:"token_number"`
	ExpirationDate time.Time `db:"expiration_date"`
	CreatedAt      time.Time `db:"created_at"`

	ClassID        string      `db:"class_id"`
	ClassNumber    int         `db:"class_number"`
	TeacherName    null.String `db:"teacher_name"`
	ClassIsActive  bool        `db:"class_is_active"`
	ClassCreatedAt time.Time   `db:"class_created_at"`
	ClassUpdatedAt time.Time   `db:"class_updated_at"`

	PeriodID       string `db:"period_id"`
	PeriodYear     int    `db:"period_year"`
	PeriodSemester string `db:"period_semester"`
	PeriodNumber   int    `db:"period_number"`
	PeriodIsActive bool   `db:"period_is_active"`
}

func unrowToken(r classTokenRow) classtoken.ClassToken {
	return classtoken.ClassToken{
		ID:             r.ID,
		Token:          r.Token,
		TokenNumber:    r.TokenNumber,
		ExpirationDate: r.ExpirationDate,
		CreatedAt:      r.CreatedAt,
		Class: unrowClass(classRow{
			ID:             r.ClassID,
			ClassNumber:    r.ClassNumber,
			TeacherName:    r.TeacherName,
			IsActive:       r.ClassIsActive,
			CreatedAt:      r.ClassCreatedAt,
			UpdatedAt:      r.ClassUpdatedAt,
			PeriodID:       r.PeriodID,
			PeriodYear:     r.PeriodYear,
			PeriodSemester: r.PeriodSemester,
			PeriodNumber:   r.PeriodNumber,
			PeriodIsActive: r.PeriodIsActive,
		}),
	}
}

// selectTokens joins the owning class (and its period) in.
func selectTokens() sq.SelectBuilder {
	return psql.
		Select(
			"ct.id", "ct.token", "ct.token_number", "ct.expiration_date", "ct.created_at",
			"c.id AS class_id", "c.class_number", "c.teacher_name", "c.is_active AS class_is_active",
			"c.created_at AS class_created_at", "c.updated_at AS class_updated_at",
			"p.id AS period_id", "p.year AS period_year", "p.semester AS period_semester",
			"p.period_number AS period_number", "p.is_active AS period_is_active").
		From("class_tokens ct").
		Join("classes c ON c.id = ct.class_id").
		Join("periods p ON p.id = c.period_id")
}

func (repo classTokenRepository) CreateToken(ctx context.Context, tok classtoken.ClassToken, exec ...core.DBExecutor) (classtoken.ClassToken, error) {
	tok.ID = uuid.New().String()

	query, args, err := psql.
		Insert("class_tokens").
		Columns("id", "token", "token_number", "expiration_date", "class_id", "created_at").
		Values(tok.ID, tok.Token, tok.TokenNumber, tok.ExpirationDate, tok.Class.ID, tok.CreatedAt).
		ToSql()
	if err != nil {
		return classtoken.ClassToken{}, errors.Wrap(err, "inserting class token")
	}
	if _, err = getExec(repo.exec, exec).ExecContext(ctx, query, args...); err != nil {
		return classtoken.ClassToken{}, trapUniqueErr(err, "inserting class token")
	}
	return tok, nil
}

func (repo classTokenRepository) GetTokenByString(ctx context.Context, token string, exec ...core.DBExecutor) (classtoken.ClassToken, error) {
	var rows []classTokenRow
	q := selectTokens().Where(sq.Eq{"ct.token": token})
	if err := selectAll(ctx, getExec(repo.exec, exec), q, &rows, "getting class token"); err != nil {
		return classtoken.ClassToken{}, err
	}
	if len(rows) == 0 {
		return classtoken.ClassToken{}, classtoken.ErrNotFound
	}
	return unrowToken(rows[0]), nil
}

func (repo classTokenRepository) GetLastClassToken(ctx context.Context, classID string, exec ...core.DBExecutor) (classtoken.ClassToken, error) {
	var rows []classTokenRow
	q := selectTokens().
		Where(sq.Eq{"ct.class_id": classID}).
		OrderBy("ct.created_at DESC").
		Limit(1)
	if err := selectAll(ctx, getExec(repo.exec, exec), q, &rows, "getting last class token"); err != nil {
		return classtoken.ClassToken{}, err
	}
	if len(rows) == 0 {
		return classtoken.ClassToken{}, classtoken.ErrNotFound
	}
	return unrowToken(rows[0]), nil
}

func (repo classTokenRepository) DeleteToken(ctx context.Context, token string, exec ...core.DBExecutor) error {
	query, args, err := psql.Delete("class_tokens").Where(sq.Eq{"token": token}).ToSql()
	if err != nil {
		return errors.Wrap(err, "deleting class token")
	}
	// deleting an absent token is a no-op
	_, err = getExec(repo.exec, exec).ExecContext(ctx, query, args...)
	return errors.Wrap(err, "deleting class token")
}

func (repo classTokenRepository) QueryActiveTokens(
	ctx context.Context,
	filter classtoken.QueryFilter,
	ordering core.DBOrdering,
	offset, limit int,
	exec ...core.DBExecutor,
) ([]classtoken.ClassToken, int, error) {
	exe := getExec(repo.exec, exec)
	now := classtoken.NowFunc().UTC()

	countQ := psql.Select("COUNT(*)").From("class_tokens ct").Where(sq.Gt{"ct.expiration_date": now})
	dataQ := selectTokens().Where(sq.Gt{"ct.expiration_date": now})
	if !filter.IsEmpty() {
		countQ = countQ.Where(sq.Eq{"ct.class_id": filter.ClassID})
		dataQ = dataQ.Where(sq.Eq{"ct.class_id": filter.ClassID})
	}

	query, args, err := countQ.ToSql()
	if err != nil {
		return nil, 0, errors.Wrap(err, "counting active class tokens")
	}
	var total int
	if err = exe.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "counting active class tokens")
	}

	dataQ = dataQ.
		OrderBy("ct." + ordering.String()).
		Offset(uint64(offset)).
		Limit(uint64(limit))

	var rows []classTokenRow
	if err = selectAll(ctx, exe, dataQ, &rows, "querying active class tokens"); err != nil {
		return nil, 0, err
	}
	toks := make([]classtoken.ClassToken, 0, len(rows))
	for _, r := range rows {
		toks = append(toks, unrowToken(r))
	}
	return toks, total, nil
}
