package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/core/school"
)

type schoolRepository struct {
	exec core.DBExecutor
}

var _ school.Repository = (*schoolRepository)(nil) // interface compliance check

func NewSchoolRepository(exec core.DBExecutor) *schoolRepository {
	return &schoolRepository{exec: exec}
}

type userRow struct {
	ID        string      `db:"id"`
	Name      string      `db:"name"`
	Email     string      `db:"email"`
	Role      string      `db:"role"`
	ClassID   null.String `db:"class_id"`
	CreatedAt time.Time   `db:"created_at"`
	UpdatedAt time.Time   `db:"updated_at"`
}

func unrowUser(r userRow) school.User {
	return school.User{
		ID:        r.ID,
		Name:      r.Name,
		Email:     r.Email,
		Role:      r.Role,
		ClassID:   r.ClassID.String,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func unrowUserSlice(rows []userRow) []school.User {
	users := make([]school.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, unrowUser(r))
	}
	return users
}

// classRow flattens a class joined with its period.
type classRow struct {
	ID          string      `db:"id"`
	ClassNumber int         `db:"class_number"`
	TeacherName null.String `db:"teacher_name"`
	IsActive    bool        `db:"is_active"`
	CreatedAt   time.Time   `db:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at"`

	PeriodID       string `db:"period_id"`
	PeriodYear     int    `db:"period_year"`
	PeriodSemester string `db:"period_semester"`
	PeriodNumber   int    `db:"period_number"`
	PeriodIsActive bool   `db:"period_is_active"`
}

func unrowClass(r classRow) school.Class {
	return school.Class{
		ID:          r.ID,
		ClassNumber: r.ClassNumber,
		TeacherName: r.TeacherName.String,
		IsActive:    r.IsActive,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
		Period: school.Period{
			ID:           r.PeriodID,
			Year:         r.PeriodYear,
			Semester:     r.PeriodSemester,
			PeriodNumber: r.PeriodNumber,
			IsActive:     r.PeriodIsActive,
		},
	}
}

func selectUsers() sq.SelectBuilder {
	return psql.Select("id", "name", "email", "role", "class_id", "created_at", "updated_at").From("users")
}

func selectClasses() sq.SelectBuilder {
	return psql.
		Select(
			"c.id", "c.class_number", "c.teacher_name", "c.is_active", "c.created_at", "c.updated_at",
			"p.id AS period_id", "p.year AS period_year", "p.semester AS period_semester",
			"p.period_number AS period_number", "p.is_active AS period_is_active").
		From("classes c").
		Join("periods p ON p.id = c.period_id")
}

func (repo schoolRepository) GetUser(ctx context.Context, id string, exec ...core.DBExecutor) (school.User, error) {
	var rows []userRow
	q := selectUsers().Where(sq.Eq{"id": id})
	if err := selectAll(ctx, getExec(repo.exec, exec), q, &rows, "getting user"); err != nil {
		return school.User{}, err
	}
	if len(rows) == 0 {
		return school.User{}, school.ErrUserNotFound
	}
	return unrowUser(rows[0]), nil
}

func (repo schoolRepository) QueryAllUsers(ctx context.Context, exec ...core.DBExecutor) ([]school.User, error) {
	var rows []userRow
	if err := selectAll(ctx, getExec(repo.exec, exec), selectUsers(), &rows, "querying users"); err != nil {
		return nil, err
	}
	return unrowUserSlice(rows), nil
}

func (repo schoolRepository) QueryUsersByClassIDs(ctx context.Context, classIDs []string, exec ...core.DBExecutor) ([]school.User, error) {
	var rows []userRow
	q := selectUsers().Where(sq.Eq{"class_id": classIDs})
	if err := selectAll(ctx, getExec(repo.exec, exec), q, &rows, "querying users by class"); err != nil {
		return nil, err
	}
	return unrowUserSlice(rows), nil
}

func (repo schoolRepository) GetClass(ctx context.Context, filter school.ClassFilter, exec ...core.DBExecutor) (school.Class, error) {
	q := selectClasses().Where(sq.Eq{"c.id": filter.ID})
	if filter.ActiveOnly {
		q = q.Where(sq.Eq{"c.is_active": true})
	}
	if filter.Lock {
		q = q.Suffix("FOR UPDATE OF c")
	}

	var rows []classRow
	if err := selectAll(ctx, getExec(repo.exec, exec), q, &rows, "getting class"); err != nil {
		return school.Class{}, err
	}
	if len(rows) == 0 {
		return school.Class{}, school.ErrClassNotFound
	}
	return unrowClass(rows[0]), nil
}

func (repo schoolRepository) QueryActiveClassesByPeriodID(ctx context.Context, periodID string, exec ...core.DBExecutor) ([]school.Class, error) {
	q := selectClasses().Where(sq.Eq{"c.period_id": periodID, "c.is_active": true})

	var rows []classRow
	if err := selectAll(ctx, getExec(repo.exec, exec), q, &rows, "querying classes by period"); err != nil {
		return nil, err
	}
	classes := make([]school.Class, 0, len(rows))
	for _, r := range rows {
		classes = append(classes, unrowClass(r))
	}
	return classes, nil
}

type periodRow struct {
	ID           string `db:"id"`
	Year         int    `db:"year"`
	Semester     string `db:"semester"`
	PeriodNumber int    `db:"period_number"`
	IsActive     bool   `db:"is_active"`
}

func (repo schoolRepository) GetPeriod(ctx context.Context, id string, activeOnly bool, exec ...core.DBExecutor) (school.Period, error) {
	q := psql.Select("id", "year", "semester", "period_number", "is_active").
		From("periods").
		Where(sq.Eq{"id": id})
	if activeOnly {
		q = q.Where(sq.Eq{"is_active": true})
	}

	var rows []periodRow
	if err := selectAll(ctx, getExec(repo.exec, exec), q, &rows, "getting period"); err != nil {
		return school.Period{}, err
	}
	if len(rows) == 0 {
		return school.Period{}, school.ErrPeriodNotFound
	}
	r := rows[0]
	return school.Period{
		ID:           r.ID,
		Year:         r.Year,
		Semester:     r.Semester,
		PeriodNumber: r.PeriodNumber,
		IsActive:     r.IsActive,
	}, nil
}
