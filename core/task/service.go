package task

import (
	"context"
	"errors"
	"time"

	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/core/school"
)

var (
	NowFunc = time.Now // mockable

	// errors
	ErrNotFound           = core.NewNotFoundError("task not found")
	ErrAssignmentNotFound = core.NewNotFoundError("task assignment not found")
	ErrEmptyAudience      = core.NewConflictError("no users found")
	ErrAssignmentClosed   = core.NewConflictError("task assignment already canceled or expired")

	errInvalidFilter = errors.New("invalid task filter")
	errInvalidStatus = errors.New("unknown assignment status")
)

type (
	Repository interface {
		CreateTask(ctx context.Context, tsk Task, exec ...core.DBExecutor) (Task, error)
		GetTaskByID(ctx context.Context, id string, exec ...core.DBExecutor) (Task, error)
		UpdateTask(ctx context.Context, tsk Task, exec ...core.DBExecutor) (Task, error)
		DeleteTask(ctx context.Context, id string, exec ...core.DBExecutor) error
		// QueryTasks applies AND semantics on the available QueryFilter
		// fields; audience fields join through task_assignments.
		QueryTasks(ctx context.Context, filter QueryFilter, ordering core.DBOrdering, offset, limit int, exec ...core.DBExecutor) ([]Task, error)

		// BulkCreateAssignments persists all assignments as a single batched write.
		BulkCreateAssignments(ctx context.Context, assignments []Assignment, exec ...core.DBExecutor) ([]Assignment, error)
		GetAssignment(ctx context.Context, taskID, userID string, exec ...core.DBExecutor) (Assignment, error)
		UpdateAssignment(ctx context.Context, a Assignment, exec ...core.DBExecutor) (Assignment, error)
		QueryAssignmentsByTaskID(ctx context.Context, taskID string, exec ...core.DBExecutor) ([]Assignment, error)
		DeleteAssignmentsByTaskID(ctx context.Context, taskID string, exec ...core.DBExecutor) error
	}

	Service struct {
		db         core.DB
		repo       Repository
		schoolRepo school.Repository
		log        core.Logger
	}

	// audienceFunc resolves the set of users a task fans out to.
	audienceFunc func(ctx context.Context, exec core.DBExecutor) ([]school.User, error)
)

func NewService(db core.DB, repo Repository, schoolRepo school.Repository, log core.Logger) *Service {
	return &Service{db: db, repo: repo, schoolRepo: schoolRepo, log: log}
}

// CreateForUser creates a task assigned to a single user.
func (svc *Service) CreateForUser(ctx context.Context, userID, creatorID string, nt NewTask) (Task, error) {
	svc.log.Debug("creating task for user", "user_id", userID)

	return svc.create(ctx, creatorID, nt, func(ctx context.Context, exec core.DBExecutor) ([]school.User, error) {
		usr, err := svc.schoolRepo.GetUser(ctx, userID, exec)
		if err != nil {
			return nil, err
		}
		return []school.User{usr}, nil
	})
}

// CreateForClass creates a task assigned to every user of an active class.
func (svc *Service) CreateForClass(ctx context.Context, classID, creatorID string, nt NewTask) (Task, error) {
	svc.log.Debug("creating task for class", "class_id", classID)

	return svc.create(ctx, creatorID, nt, func(ctx context.Context, exec core.DBExecutor) ([]school.User, error) {
		cls, err := svc.schoolRepo.GetClass(ctx, school.ClassFilter{ID: classID, ActiveOnly: true}, exec)
		if err != nil {
			return nil, err
		}
		return svc.schoolRepo.QueryUsersByClassIDs(ctx, []string{cls.ID}, exec)
	})
}

// CreateForPeriod creates a task assigned to every user across the
// active classes of an active period.
func (svc *Service) CreateForPeriod(ctx context.Context, periodID, creatorID string, nt NewTask) (Task, error) {
	svc.log.Debug("creating task for period", "period_id", periodID)

	return svc.create(ctx, creatorID, nt, func(ctx context.Context, exec core.DBExecutor) ([]school.User, error) {
		prd, err := svc.schoolRepo.GetPeriod(ctx, periodID, true, exec)
		if err != nil {
			return nil, err
		}
		classes, err := svc.schoolRepo.QueryActiveClassesByPeriodID(ctx, prd.ID, exec)
		if err != nil {
			return nil, err
		}
		classIDs := make([]string, 0, len(classes))
		for _, cls := range classes {
			classIDs = append(classIDs, cls.ID)
		}
		if len(classIDs) == 0 {
			return nil, nil
		}
		return svc.schoolRepo.QueryUsersByClassIDs(ctx, classIDs, exec)
	})
}

// CreateForAllUsers creates a task assigned to every user in the system.
func (svc *Service) CreateForAllUsers(ctx context.Context, creatorID string, nt NewTask) (Task, error) {
	svc.log.Debug("creating task for all users")

	return svc.create(ctx, creatorID, nt, func(ctx context.Context, exec core.DBExecutor) ([]school.User, error) {
		return svc.schoolRepo.QueryAllUsers(ctx, exec)
	})
}

// create is the shared fan-out path: resolve creator and audience, then
// persist the task and one pending assignment per audience member as one
// atomic operation. An empty audience aborts before any write.
func (svc *Service) create(ctx context.Context, creatorID string, nt NewTask, audience audienceFunc) (Task, error) {
	if err := nt.Validate(); err != nil {
		return Task{}, err
	}

	var tsk Task
	err := core.RunInTx(ctx, svc.db, func(tx core.DBTransactor) error {
		creator, err := svc.schoolRepo.GetUser(ctx, creatorID, tx)
		if err != nil {
			return err
		}

		users, err := audience(ctx, tx)
		if err != nil {
			return err
		}
		if len(users) == 0 {
			return ErrEmptyAudience
		}

		now := NowFunc().UTC()
		tsk, err = svc.repo.CreateTask(ctx, Task{
			Title:              nt.Title,
			Description:        nt.Description,
			Link:               nt.Link,
			Type:               nt.Type,
			AvailabilityStatus: nt.AvailabilityStatus,
			AvailabilityAt:     nt.AvailabilityAt.UTC(),
			Deadline:           nt.Deadline.UTC(),
			CreatedAt:          now,
			UpdatedAt:          now,
			CreatedBy:          creator.ID,
			UpdatedBy:          creator.ID,
		}, tx)
		if err != nil {
			return err
		}

		assignments := make([]Assignment, 0, len(users))
		for _, usr := range users {
			assignments = append(assignments, Assignment{
				Status:    StatusPending,
				TaskID:    tsk.ID,
				UserID:    usr.ID,
				CreatedAt: now,
				UpdatedAt: now,
			})
		}
		_, err = svc.repo.BulkCreateAssignments(ctx, assignments, tx)
		return err
	})
	if err != nil {
		return Task{}, err
	}

	svc.log.Info("task created", "task_id", tsk.ID)
	return tsk, nil
}

func (svc *Service) GetByID(ctx context.Context, taskID string) (Task, error) {
	return svc.repo.GetTaskByID(ctx, taskID)
}

// Update applies a partial update to a task's content fields and stamps
// the editor. Existing assignments are untouched.
func (svc *Service) Update(ctx context.Context, taskID, editorID string, ut UpdateTask) (Task, error) {
	if err := ut.Validate(); err != nil {
		return Task{}, err
	}

	tsk, err := svc.repo.GetTaskByID(ctx, taskID)
	if err != nil {
		return Task{}, err
	}
	editor, err := svc.schoolRepo.GetUser(ctx, editorID)
	if err != nil {
		return Task{}, err
	}

	tsk = ut.Apply(tsk)
	tsk.UpdatedBy = editor.ID
	tsk.UpdatedAt = NowFunc().UTC()
	return svc.repo.UpdateTask(ctx, tsk)
}

// Delete removes a task and all its assignments in one transaction;
// assignments go first so no orphan can ever be observed.
func (svc *Service) Delete(ctx context.Context, taskID string) error {
	svc.log.Debug("deleting task", "task_id", taskID)

	return core.RunInTx(ctx, svc.db, func(tx core.DBTransactor) error {
		if _, err := svc.repo.GetTaskByID(ctx, taskID, tx); err != nil {
			return err
		}
		if err := svc.repo.DeleteAssignmentsByTaskID(ctx, taskID, tx); err != nil {
			return err
		}
		return svc.repo.DeleteTask(ctx, taskID, tx)
	})
}

// UpdateAssignmentStatus transitions a recipient's assignment status.
// Closed (canceled/expired/completed) assignments admit no transition.
func (svc *Service) UpdateAssignmentStatus(ctx context.Context, taskID, userID string, status Status) (Assignment, error) {
	if !status.IsValid() {
		return Assignment{}, core.NewValidationError(errInvalidStatus,
			core.FieldError{Field: "status", Error: errInvalidStatus.Error()})
	}

	a, err := svc.repo.GetAssignment(ctx, taskID, userID)
	if err != nil {
		return Assignment{}, err
	}
	if !a.Status.CanTransitionTo(status) {
		svc.log.Warn("assignment transition rejected",
			"task_id", taskID, "user_id", userID, "from", a.Status, "to", status)
		return Assignment{}, ErrAssignmentClosed
	}

	a.Status = status
	a.UpdatedAt = NowFunc().UTC()
	return svc.repo.UpdateAssignment(ctx, a)
}

// QueryByUser lists the tasks assigned to a user.
func (svc *Service) QueryByUser(ctx context.Context, userID string, filter QueryFilter, pg core.Paginator) ([]Task, error) {
	if _, err := svc.schoolRepo.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	filter.UserID = userID
	return svc.query(ctx, filter, pg)
}

// QueryByClass lists the tasks assigned to members of an active class.
func (svc *Service) QueryByClass(ctx context.Context, classID string, filter QueryFilter, pg core.Paginator) ([]Task, error) {
	if _, err := svc.schoolRepo.GetClass(ctx, school.ClassFilter{ID: classID, ActiveOnly: true}); err != nil {
		return nil, err
	}
	filter.ClassID = classID
	return svc.query(ctx, filter, pg)
}

// QueryByPeriod lists the tasks assigned to members of the active
// classes of an active period.
func (svc *Service) QueryByPeriod(ctx context.Context, periodID string, filter QueryFilter, pg core.Paginator) ([]Task, error) {
	if _, err := svc.schoolRepo.GetPeriod(ctx, periodID, true); err != nil {
		return nil, err
	}
	filter.PeriodID = periodID
	return svc.query(ctx, filter, pg)
}

// QueryByCreator lists the tasks a user created.
func (svc *Service) QueryByCreator(ctx context.Context, creatorID string, pg core.Paginator) ([]Task, error) {
	if _, err := svc.schoolRepo.GetUser(ctx, creatorID); err != nil {
		return nil, err
	}
	return svc.query(ctx, QueryFilter{CreatedBy: creatorID}, pg)
}

func (svc *Service) query(ctx context.Context, filter QueryFilter, pg core.Paginator) ([]Task, error) {
	if err := filter.Clean(); err != nil {
		return nil, err
	}
	ordering, err := pg.Clean(OrderColumns)
	if err != nil {
		return nil, err
	}
	return svc.repo.QueryTasks(ctx, filter, ordering, pg.Offset(), pg.Limit)
}
