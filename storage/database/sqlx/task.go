package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/core/task"
)

type taskRepository struct {
	exec core.DBExecutor
}

var _ task.Repository = (*taskRepository)(nil) // interface compliance check

func NewTaskRepository(exec core.DBExecutor) *taskRepository {
	return &taskRepository{exec: exec}
}

type taskRow struct {
	ID                 string      `db:"id"`
	Title              string      `db:"title"`
	Description        null.String `db:"description"`
	Link               null.String `db:"link"`
	Type               string      `db:"type"`
	AvailabilityStatus string      `db:"availability_status"`
	AvailabilityAt     null.Time   `db:"availability_at"`
	Deadline           time.Time   `db:"deadline"`
	CreatedAt          time.Time   `db:"created_at"`
	UpdatedAt          time.Time   `db:"updated_at"`
	CreatedBy          string      `db:"created_by"`
	UpdatedBy          string      `db:"updated_by"`
}

func rowTask(tsk task.Task) taskRow {
	return taskRow{
		ID:                 tsk.ID,
		Title:              tsk.Title,
		Description:        null.NewString(tsk.Description, tsk.Description != ""),
		Link:               null.NewString(tsk.Link, tsk.Link != ""),
		Type:               string(tsk.Type),
		AvailabilityStatus: string(tsk.AvailabilityStatus),
		AvailabilityAt:     null.NewTime(tsk.AvailabilityAt.UTC(), !tsk.AvailabilityAt.IsZero()),
		Deadline:           tsk.Deadline.UTC(),
		CreatedAt:          tsk.CreatedAt.UTC(),
		UpdatedAt:          tsk.UpdatedAt.UTC(),
		CreatedBy:          tsk.CreatedBy,
		UpdatedBy:          tsk.UpdatedBy,
	}
}

func unrowTask(r taskRow) task.Task {
	return task.Task{
		ID:                 r.ID,
		Title:              r.Title,
		Description:        r.Description.String,
		Link:               r.Link.String,
		Type:               task.Type(r.Type),
		AvailabilityStatus: task.AvailabilityStatus(r.AvailabilityStatus),
		AvailabilityAt:     r.AvailabilityAt.Time,
		Deadline:           r.Deadline,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
		CreatedBy:          r.CreatedBy,
		UpdatedBy:          r.UpdatedBy,
	}
}

func selectTasks() sq.SelectBuilder {
	return psql.
		Select(
			"t.id", "t.title", "t.description", "t.link", "t.type", "t.availability_status",
			"t.availability_at", "t.deadline", "t.created_at", "t.updated_at", "t.created_by", "t.updated_by").
		From("tasks t")
}

func (repo taskRepository) CreateTask(ctx context.Context, tsk task.Task, exec ...core.DBExecutor) (task.Task, error) {
	tsk.ID = uuid.New().String()
	r := rowTask(tsk)

	query, args, err := psql.
		Insert("tasks").
		Columns("id", "title", "description", "link", "type", "availability_status",
			"availability_at", "deadline", "created_at", "updated_at", "created_by", "updated_by").
		Values(r.ID, r.Title, r.Description, r.Link, r.Type, r.AvailabilityStatus,
			r.AvailabilityAt, r.Deadline, r.CreatedAt, r.UpdatedAt, r.CreatedBy, r.UpdatedBy).
		ToSql()
	if err != nil {
		return task.Task{}, errors.Wrap(err, "inserting task")
	}
	if _, err = getExec(repo.exec, exec).ExecContext(ctx, query, args...); err != nil {
		return task.Task{}, errors.Wrap(err, "inserting task")
	}
	return tsk, nil
}

func (repo taskRepository) GetTaskByID(ctx context.Context, id string, exec ...core.DBExecutor) (task.Task, error) {
	var rows []taskRow
	q := selectTasks().Where(sq.Eq{"t.id": id})
	if err := selectAll(ctx, getExec(repo.exec, exec), q, &rows, "getting task"); err != nil {
		return task.Task{}, err
	}
	if len(rows) == 0 {
		return task.Task{}, task.ErrNotFound
	}
	return unrowTask(rows[0]), nil
}

func (repo taskRepository) UpdateTask(ctx context.Context, tsk task.Task, exec ...core.DBExecutor) (task.Task, error) {
	r := rowTask(tsk)

	query, args, err := psql.
		Update("tasks").
		Set("title", r.Title).
		Set("description", r.Description).
		Set("link", r.Link).
		Set("type", r.Type).
		Set("availability_status", r.AvailabilityStatus).
		Set("availability_at", r.AvailabilityAt).
		Set("deadline", r.Deadline).
		Set("updated_at", r.UpdatedAt).
		Set("updated_by", r.UpdatedBy).
		Where(sq.Eq{"id": tsk.ID}).
		ToSql()
	if err != nil {
		return task.Task{}, errors.Wrap(err, "updating task")
	}

	res, err := getExec(repo.exec, exec).ExecContext(ctx, query, args...)
	if err != nil {
		return task.Task{}, errors.Wrap(err, "updating task")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return task.Task{}, task.ErrNotFound
	}
	return tsk, nil
}

func (repo taskRepository) DeleteTask(ctx context.Context, id string, exec ...core.DBExecutor) error {
	query, args, err := psql.Delete("tasks").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return errors.Wrap(err, "deleting task")
	}
	_, err = getExec(repo.exec, exec).ExecContext(ctx, query, args...)
	return errors.Wrap(err, "deleting task")
}

func (repo taskRepository) QueryTasks(
	ctx context.Context,
	filter task.QueryFilter,
	ordering core.DBOrdering,
	offset, limit int,
	exec ...core.DBExecutor,
) ([]task.Task, error) {
	q := selectTasks()

	// audience filters join through task_assignments; by-creator reads
	// tasks directly.
	joined := false
	switch {
	case filter.UserID != "":
		q = q.Join("task_assignments ta ON ta.task_id = t.id").
			Where(sq.Eq{"ta.user_id": filter.UserID})
		joined = true
	case filter.ClassID != "":
		q = q.Join("task_assignments ta ON ta.task_id = t.id").
			Join("users u ON u.id = ta.user_id").
			Where(sq.Eq{"u.class_id": filter.ClassID})
		joined = true
	case filter.PeriodID != "":
		q = q.Join("task_assignments ta ON ta.task_id = t.id").
			Join("users u ON u.id = ta.user_id").
			Join("classes c ON c.id = u.class_id").
			Where(sq.Eq{"c.period_id": filter.PeriodID, "c.is_active": true})
		joined = true
	case filter.CreatedBy != "":
		q = q.Where(sq.Eq{"t.created_by": filter.CreatedBy})
	}

	if filter.Type != "" {
		q = q.Where(sq.Eq{"t.type": string(filter.Type)})
	}
	if filter.AvailabilityStatus != "" {
		q = q.Where(sq.Eq{"t.availability_status": string(filter.AvailabilityStatus)})
	}
	if joined {
		if filter.AssignmentStatus != "" {
			q = q.Where(sq.Eq{"ta.status": string(filter.AssignmentStatus)})
		}
		// one row per task even when several recipients match the join
		q = q.Distinct()
	}

	q = q.
		OrderBy("t." + ordering.String()).
		Offset(uint64(offset)).
		Limit(uint64(limit))

	var rows []taskRow
	if err := selectAll(ctx, getExec(repo.exec, exec), q, &rows, "querying tasks"); err != nil {
		return nil, err
	}
	tasks := make([]task.Task, 0, len(rows))
	for _, r := range rows {
		tasks = append(tasks, unrowTask(r))
	}
	return tasks, nil
}

type assignmentRow struct {
	ID        string    `db:"id"`
	Status    string    `db:"status"`
	TaskID    string    `db:"task_id"`
	UserID    string    `db:"user_id"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func unrowAssignment(r assignmentRow) task.Assignment {
	return task.Assignment{
		ID:        r.ID,
		Status:    task.Status(r.Status),
		TaskID:    r.TaskID,
		UserID:    r.UserID,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func selectAssignments() sq.SelectBuilder {
	return psql.Select("id", "status", "task_id", "user_id", "created_at", "updated_at").From("task_assignments")
}

// BulkCreateAssignments persists the whole fan-out as a single
// multi-row insert.
func (repo taskRepository) BulkCreateAssignments(ctx context.Context, assignments []task.Assignment, exec ...core.DBExecutor) ([]task.Assignment, error) {
	if len(assignments) == 0 {
		return assignments, nil
	}

	q := psql.
		Insert("task_assignments").
		Columns("id", "status", "task_id", "user_id", "created_at", "updated_at")
	for i := range assignments {
		assignments[i].ID = uuid.New().String()
		a := assignments[i]
		q = q.Values(a.ID, string(a.Status), a.TaskID, a.UserID, a.CreatedAt.UTC(), a.UpdatedAt.UTC())
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "inserting task assignments")
	}
	if _, err = getExec(repo.exec, exec).ExecContext(ctx, query, args...); err != nil {
		return nil, trapUniqueErr(err, "inserting task assignments")
	}
	return assignments, nil
}

func (repo taskRepository) GetAssignment(ctx context.Context, taskID, userID string, exec ...core.DBExecutor) (task.Assignment, error) {
	var rows []assignmentRow
	q := selectAssignments().Where(sq.Eq{"task_id": taskID, "user_id": userID})
	if err := selectAll(ctx, getExec(repo.exec, exec), q, &rows, "getting task assignment"); err != nil {
		return task.Assignment{}, err
	}
	if len(rows) == 0 {
		return task.Assignment{}, task.ErrAssignmentNotFound
	}
	return unrowAssignment(rows[0]), nil
}

func (repo taskRepository) UpdateAssignment(ctx context.Context, a task.Assignment, exec ...core.DBExecutor) (task.Assignment, error) {
	query, args, err := psql.
		Update("task_assignments").
		Set("status", string(a.Status)).
		Set("updated_at", a.UpdatedAt.UTC()).
		Where(sq.Eq{"id": a.ID}).
		ToSql()
	if err != nil {
		return task.Assignment{}, errors.Wrap(err, "updating task assignment")
	}

	res, err := getExec(repo.exec, exec).ExecContext(ctx, query, args...)
	if err != nil {
		return task.Assignment{}, errors.Wrap(err, "updating task assignment")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return task.Assignment{}, task.ErrAssignmentNotFound
	}
	return a, nil
}

func (repo taskRepository) QueryAssignmentsByTaskID(ctx context.Context, taskID string, exec ...core.DBExecutor) ([]task.Assignment, error) {
	var rows []assignmentRow
	q := selectAssignments().Where(sq.Eq{"task_id": taskID})
	if err := selectAll(ctx, getExec(repo.exec, exec), q, &rows, "querying task assignments"); err != nil {
		return nil, err
	}
	assignments := make([]task.Assignment, 0, len(rows))
	for _, r := range rows {
		assignments = append(assignments, unrowAssignment(r))
	}
	return assignments, nil
}

func (repo taskRepository) DeleteAssignmentsByTaskID(ctx context.Context, taskID string, exec ...core.DBExecutor) error {
	query, args, err := psql.Delete("task_assignments").Where(sq.Eq{"task_id": taskID}).ToSql()
	if err != nil {
		return errors.Wrap(err, "deleting task assignments")
	}
	_, err = getExec(repo.exec, exec).ExecContext(ctx, query, args...)
	return errors.Wrap(err, "deleting task assignments")
}
