package dummydb

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/core/school"
	"github.com/trezcool/kazi/core/task"
)

// TaskRepository needs the school data to resolve class and period
// audience filters the way the postgres joins do.
type TaskRepository struct {
	mu          sync.RWMutex
	tasks       []task.Task
	assignments []task.Assignment

	school *SchoolRepository
}

var _ task.Repository = (*TaskRepository)(nil) // interface compliance check

func NewTaskRepository(schoolRepo *SchoolRepository) *TaskRepository {
	return &TaskRepository{school: schoolRepo}
}

func (repo *TaskRepository) CreateTask(_ context.Context, tsk task.Task, _ ...core.DBExecutor) (task.Task, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	tsk.ID = uuid.New().String()
	repo.tasks = append(repo.tasks, tsk)
	return tsk, nil
}

func (repo *TaskRepository) GetTaskByID(_ context.Context, id string, _ ...core.DBExecutor) (task.Task, error) {
	repo.mu.RLock()
	defer repo.mu.RUnlock()

	for _, tsk := range repo.tasks {
		if tsk.ID == id {
			return tsk, nil
		}
	}
	return task.Task{}, task.ErrNotFound
}

func (repo *TaskRepository) UpdateTask(_ context.Context, tsk task.Task, _ ...core.DBExecutor) (task.Task, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	for i, existing := range repo.tasks {
		if existing.ID == tsk.ID {
			repo.tasks[i] = tsk
			return tsk, nil
		}
	}
	return task.Task{}, task.ErrNotFound
}

func (repo *TaskRepository) DeleteTask(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	for i, tsk := range repo.tasks {
		if tsk.ID == id {
			repo.tasks = append(repo.tasks[:i], repo.tasks[i+1:]...)
			return nil
		}
	}
	return nil
}

func (repo *TaskRepository) QueryTasks(
	ctx context.Context,
	filter task.QueryFilter,
	ordering core.DBOrdering,
	offset, limit int,
	_ ...core.DBExecutor,
) ([]task.Task, error) {
	taskIDs, joined, err := repo.audienceTaskIDs(ctx, filter)
	if err != nil {
		return nil, err
	}

	repo.mu.RLock()
	defer repo.mu.RUnlock()

	var tasks []task.Task
	for _, tsk := range repo.tasks {
		if joined {
			if _, ok := taskIDs[tsk.ID]; !ok {
				continue
			}
		} else if filter.CreatedBy != "" && tsk.CreatedBy != filter.CreatedBy {
			continue
		}
		if filter.Type != "" && tsk.Type != filter.Type {
			continue
		}
		if filter.AvailabilityStatus != "" && tsk.AvailabilityStatus != filter.AvailabilityStatus {
			continue
		}
		tasks = append(tasks, tsk)
	}

	less := func(a, b task.Task) bool {
		switch ordering.Field {
		case "title":
			return a.Title < b.Title
		case "type":
			return a.Type < b.Type
		case "availability_status":
			return a.AvailabilityStatus < b.AvailabilityStatus
		case "availability_at":
			return a.AvailabilityAt.Before(b.AvailabilityAt)
		case "deadline":
			return a.Deadline.Before(b.Deadline)
		case "updated_at":
			return a.UpdatedAt.Before(b.UpdatedAt)
		default:
			return a.CreatedAt.Before(b.CreatedAt)
		}
	}
	sort.SliceStable(tasks, func(i, j int) bool {
		if ordering.Ascending {
			return less(tasks[i], tasks[j])
		}
		return less(tasks[j], tasks[i])
	})

	lo, hi := paging(len(tasks), offset, limit)
	return tasks[lo:hi], nil
}

// audienceTaskIDs resolves the audience fields of filter to a set of
// matching task IDs by walking the assignments, mirroring the joins the
// postgres repository performs.
func (repo *TaskRepository) audienceTaskIDs(ctx context.Context, filter task.QueryFilter) (map[string]struct{}, bool, error) {
	userIDs := make(map[string]struct{})
	switch {
	case filter.UserID != "":
		userIDs[filter.UserID] = struct{}{}
	case filter.ClassID != "":
		users, err := repo.school.QueryUsersByClassIDs(ctx, []string{filter.ClassID})
		if err != nil {
			return nil, false, err
		}
		for _, usr := range users {
			userIDs[usr.ID] = struct{}{}
		}
	case filter.PeriodID != "":
		classes, err := repo.school.QueryActiveClassesByPeriodID(ctx, filter.PeriodID)
		if err != nil {
			return nil, false, err
		}
		classIDs := make([]string, 0, len(classes))
		for _, cls := range classes {
			classIDs = append(classIDs, cls.ID)
		}
		var users []school.User
		if len(classIDs) > 0 {
			if users, err = repo.school.QueryUsersByClassIDs(ctx, classIDs); err != nil {
				return nil, false, err
			}
		}
		for _, usr := range users {
			userIDs[usr.ID] = struct{}{}
		}
	default:
		return nil, false, nil
	}

	repo.mu.RLock()
	defer repo.mu.RUnlock()

	taskIDs := make(map[string]struct{})
	for _, a := range repo.assignments {
		if _, ok := userIDs[a.UserID]; !ok {
			continue
		}
		if filter.AssignmentStatus != "" && a.Status != filter.AssignmentStatus {
			continue
		}
		taskIDs[a.TaskID] = struct{}{}
	}
	return taskIDs, true, nil
}

func (repo *TaskRepository) BulkCreateAssignments(_ context.Context, assignments []task.Assignment, _ ...core.DBExecutor) ([]task.Assignment, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	for i := range assignments {
		for _, existing := range repo.assignments {
			if existing.TaskID == assignments[i].TaskID && existing.UserID == assignments[i].UserID {
				return nil, core.NewConflictError("inserting task assignments: record already exists")
			}
		}
		assignments[i].ID = uuid.New().String()
	}
	repo.assignments = append(repo.assignments, assignments...)
	return assignments, nil
}

func (repo *TaskRepository) GetAssignment(_ context.Context, taskID, userID string, _ ...core.DBExecutor) (task.Assignment, error) {
	repo.mu.RLock()
	defer repo.mu.RUnlock()

	for _, a := range repo.assignments {
		if a.TaskID == taskID && a.UserID == userID {
			return a, nil
		}
	}
	return task.Assignment{}, task.ErrAssignmentNotFound
}

func (repo *TaskRepository) UpdateAssignment(_ context.Context, a task.Assignment, _ ...core.DBExecutor) (task.Assignment, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	for i, existing := range repo.assignments {
		if existing.ID == a.ID {
			repo.assignments[i] = a
			return a, nil
		}
	}
	return task.Assignment{}, task.ErrAssignmentNotFound
}

func (repo *TaskRepository) QueryAssignmentsByTaskID(_ context.Context, taskID string, _ ...core.DBExecutor) ([]task.Assignment, error) {
	repo.mu.RLock()
	defer repo.mu.RUnlock()

	var assignments []task.Assignment
	for _, a := range repo.assignments {
		if a.TaskID == taskID {
			assignments = append(assignments, a)
		}
	}
	return assignments, nil
}

func (repo *TaskRepository) DeleteAssignmentsByTaskID(_ context.Context, taskID string, _ ...core.DBExecutor) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	kept := repo.assignments[:0]
	for _, a := range repo.assignments {
		if a.TaskID != taskID {
			kept = append(kept, a)
		}
	}
	repo.assignments = kept
	return nil
}
