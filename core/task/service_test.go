package task_test

import (
	"context"
	"errors"
	"io/ioutil"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/core/school"
	"github.com/trezcool/kazi/core/task"
	logsvc "github.com/trezcool/kazi/services/logger"
	dummydb "github.com/trezcool/kazi/storage/database/dummy"
)

type fixture struct {
	svc        *task.Service
	schoolRepo *dummydb.SchoolRepository
	repo       *dummydb.TaskRepository

	period      school.Period
	class       school.Class
	otherClass  school.Class
	coordinator school.User
	students    []school.User
}

func setup(t *testing.T) *fixture {
	t.Cleanup(func() { task.NowFunc = time.Now })

	schoolRepo := dummydb.NewSchoolRepository()
	repo := dummydb.NewTaskRepository(schoolRepo)
	logger := logsvc.NewConsoleLogger(log.New(ioutil.Discard, "", 0))

	f := &fixture{
		svc:        task.NewService(dummydb.NewDB(), repo, schoolRepo, logger),
		schoolRepo: schoolRepo,
		repo:       repo,
	}

	f.period = schoolRepo.CreatePeriod(school.Period{Year: 2025, Semester: "1", PeriodNumber: 2, IsActive: true})
	f.class = schoolRepo.CreateClass(school.Class{ClassNumber: 1, IsActive: true, Period: f.period})
	f.otherClass = schoolRepo.CreateClass(school.Class{ClassNumber: 2, IsActive: true, Period: f.period})
	f.coordinator = schoolRepo.CreateUser(school.User{Name: "Coord", Email: "coord@kazi.local", Role: school.RoleCoordinator})
	for i, email := range []string{"a@kazi.local", "b@kazi.local", "c@kazi.local"} {
		cls := f.class
		if i == 2 {
			cls = f.otherClass
		}
		f.students = append(f.students, schoolRepo.CreateUser(school.User{
			Name: email, Email: email, Role: school.RoleStudent, ClassID: cls.ID,
		}))
	}
	return f
}

func newTask(title string) task.NewTask {
	return task.NewTask{Title: title, Type: task.TypeTask, Deadline: time.Now().Add(24 * time.Hour)}
}

func TestService_CreateForUser(t *testing.T) {
	ctx := context.Background()

	t.Run("creates the task and one pending assignment", func(t *testing.T) {
		f := setup(t)
		tsk, err := f.svc.CreateForUser(ctx, f.students[0].ID, f.coordinator.ID, newTask("read chapter 1"))
		require.NoError(t, err)
		assert.Equal(t, f.coordinator.ID, tsk.CreatedBy)
		assert.Equal(t, task.AvailabilityAvailable, tsk.AvailabilityStatus)

		assignments, err := f.repo.QueryAssignmentsByTaskID(ctx, tsk.ID)
		require.NoError(t, err)
		require.Len(t, assignments, 1)
		assert.Equal(t, f.students[0].ID, assignments[0].UserID)
		assert.Equal(t, task.StatusPending, assignments[0].Status)
	})

	t.Run("unknown recipient aborts with no writes", func(t *testing.T) {
		f := setup(t)
		_, err := f.svc.CreateForUser(ctx, "nope", f.coordinator.ID, newTask("t"))
		assert.Equal(t, school.ErrUserNotFound, err)

		tasks, err := f.svc.QueryByCreator(ctx, f.coordinator.ID, core.Paginator{})
		require.NoError(t, err)
		assert.Empty(t, tasks)
	})

	t.Run("unknown creator is rejected", func(t *testing.T) {
		f := setup(t)
		_, err := f.svc.CreateForUser(ctx, f.students[0].ID, "nope", newTask("t"))
		assert.Equal(t, school.ErrUserNotFound, err)
	})

	t.Run("invalid payload is rejected", func(t *testing.T) {
		f := setup(t)
		_, err := f.svc.CreateForUser(ctx, f.students[0].ID, f.coordinator.ID, task.NewTask{Type: task.TypeTask})
		assert.Error(t, err)
	})
}

func TestService_CreateForClass(t *testing.T) {
	ctx := context.Background()

	t.Run("fans out to every member of the class", func(t *testing.T) {
		f := setup(t)
		tsk, err := f.svc.CreateForClass(ctx, f.class.ID, f.coordinator.ID, newTask("group work"))
		require.NoError(t, err)

		assignments, err := f.repo.QueryAssignmentsByTaskID(ctx, tsk.ID)
		require.NoError(t, err)
		assert.Len(t, assignments, 2) // two students in f.class
		for _, a := range assignments {
			assert.Equal(t, task.StatusPending, a.Status)
			assert.Equal(t, tsk.ID, a.TaskID)
		}
	})

	t.Run("inactive class is not found", func(t *testing.T) {
		f := setup(t)
		inactive := f.schoolRepo.CreateClass(school.Class{ClassNumber: 9, IsActive: false, Period: f.period})
		_, err := f.svc.CreateForClass(ctx, inactive.ID, f.coordinator.ID, newTask("t"))
		assert.Equal(t, school.ErrClassNotFound, err)
	})

	t.Run("class with no members aborts the fan-out", func(t *testing.T) {
		f := setup(t)
		empty := f.schoolRepo.CreateClass(school.Class{ClassNumber: 3, IsActive: true, Period: f.period})
		_, err := f.svc.CreateForClass(ctx, empty.ID, f.coordinator.ID, newTask("t"))
		assert.Equal(t, task.ErrEmptyAudience, err)

		tasks, err := f.svc.QueryByCreator(ctx, f.coordinator.ID, core.Paginator{})
		require.NoError(t, err)
		assert.Empty(t, tasks)
	})
}

func TestService_CreateForPeriod(t *testing.T) {
	ctx := context.Background()

	t.Run("fans out across all active classes of the period", func(t *testing.T) {
		f := setup(t)
		tsk, err := f.svc.CreateForPeriod(ctx, f.period.ID, f.coordinator.ID, newTask("exam prep"))
		require.NoError(t, err)

		assignments, err := f.repo.QueryAssignmentsByTaskID(ctx, tsk.ID)
		require.NoError(t, err)
		assert.Len(t, assignments, 3) // all students across both classes
	})

	t.Run("inactive period is not found", func(t *testing.T) {
		f := setup(t)
		inactive := f.schoolRepo.CreatePeriod(school.Period{Year: 2020, PeriodNumber: 1, IsActive: false})
		_, err := f.svc.CreateForPeriod(ctx, inactive.ID, f.coordinator.ID, newTask("t"))
		assert.Equal(t, school.ErrPeriodNotFound, err)
	})

	t.Run("period with no active classes aborts the fan-out", func(t *testing.T) {
		f := setup(t)
		bare := f.schoolRepo.CreatePeriod(school.Period{Year: 2026, PeriodNumber: 1, IsActive: true})
		_, err := f.svc.CreateForPeriod(ctx, bare.ID, f.coordinator.ID, newTask("t"))
		assert.Equal(t, task.ErrEmptyAudience, err)
	})
}

func TestService_CreateForAllUsers(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	tsk, err := f.svc.CreateForAllUsers(ctx, f.coordinator.ID, newTask("townhall"))
	require.NoError(t, err)

	assignments, err := f.repo.QueryAssignmentsByTaskID(ctx, tsk.ID)
	require.NoError(t, err)
	assert.Len(t, assignments, 4) // coordinator included
}

func TestService_Update(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	tsk, err := f.svc.CreateForClass(ctx, f.class.ID, f.coordinator.ID, newTask("draft"))
	require.NoError(t, err)

	editor := f.students[0]
	newDeadline := time.Now().Add(72 * time.Hour).UTC()
	got, err := f.svc.Update(ctx, tsk.ID, editor.ID, task.UpdateTask{Title: "final", Deadline: &newDeadline})
	require.NoError(t, err)

	assert.Equal(t, "final", got.Title)
	assert.True(t, got.Deadline.Equal(newDeadline))
	assert.Equal(t, tsk.Type, got.Type) // untouched
	assert.Equal(t, f.coordinator.ID, got.CreatedBy)
	assert.Equal(t, editor.ID, got.UpdatedBy)

	// assignments untouched
	assignments, err := f.repo.QueryAssignmentsByTaskID(ctx, tsk.ID)
	require.NoError(t, err)
	assert.Len(t, assignments, 2)
	for _, a := range assignments {
		assert.Equal(t, task.StatusPending, a.Status)
	}

	t.Run("unknown task", func(t *testing.T) {
		_, err := f.svc.Update(ctx, "nope", editor.ID, task.UpdateTask{Title: "x"})
		assert.Equal(t, task.ErrNotFound, err)
	})
}

func TestService_Delete(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	tsk, err := f.svc.CreateForClass(ctx, f.class.ID, f.coordinator.ID, newTask("doomed"))
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, tsk.ID))

	_, err = f.svc.GetByID(ctx, tsk.ID)
	assert.Equal(t, task.ErrNotFound, err)
	assignments, err := f.repo.QueryAssignmentsByTaskID(ctx, tsk.ID)
	require.NoError(t, err)
	assert.Empty(t, assignments)

	assert.Equal(t, task.ErrNotFound, f.svc.Delete(ctx, tsk.ID))
}

func TestService_UpdateAssignmentStatus(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	tsk, err := f.svc.CreateForClass(ctx, f.class.ID, f.coordinator.ID, newTask("homework"))
	require.NoError(t, err)
	student := f.students[0]

	t.Run("pending completes", func(t *testing.T) {
		a, err := f.svc.UpdateAssignmentStatus(ctx, tsk.ID, student.ID, task.StatusCompleted)
		require.NoError(t, err)
		assert.Equal(t, task.StatusCompleted, a.Status)
	})

	t.Run("closed assignments admit no transition", func(t *testing.T) {
		_, err := f.svc.UpdateAssignmentStatus(ctx, tsk.ID, student.ID, task.StatusCanceled)
		assert.Equal(t, task.ErrAssignmentClosed, err)

		// other recipients are unaffected
		a, err := f.svc.UpdateAssignmentStatus(ctx, tsk.ID, f.students[1].ID, task.StatusCanceled)
		require.NoError(t, err)
		assert.Equal(t, task.StatusCanceled, a.Status)
	})

	t.Run("unknown status is rejected", func(t *testing.T) {
		_, err := f.svc.UpdateAssignmentStatus(ctx, tsk.ID, student.ID, "lost")
		var vErr *core.ValidationError
		assert.True(t, errors.As(err, &vErr), "UpdateAssignmentStatus() error = %v, want ValidationError", err)
	})

	t.Run("unknown assignment", func(t *testing.T) {
		_, err := f.svc.UpdateAssignmentStatus(ctx, tsk.ID, f.coordinator.ID, task.StatusCompleted)
		assert.Equal(t, task.ErrAssignmentNotFound, err)
	})
}

func TestService_Query(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	task.NowFunc = func() time.Time { return time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC) }
	classTask, err := f.svc.CreateForClass(ctx, f.class.ID, f.coordinator.ID, newTask("class task"))
	require.NoError(t, err)

	task.NowFunc = func() time.Time { return time.Date(2025, 3, 2, 9, 0, 0, 0, time.UTC) }
	nt := newTask("solo project")
	nt.Type = task.TypeProject
	soloTask, err := f.svc.CreateForUser(ctx, f.students[0].ID, f.coordinator.ID, nt)
	require.NoError(t, err)

	t.Run("by user", func(t *testing.T) {
		tasks, err := f.svc.QueryByUser(ctx, f.students[0].ID, task.QueryFilter{}, core.Paginator{})
		require.NoError(t, err)
		require.Len(t, tasks, 2)
		// created_at DESC by default
		assert.Equal(t, soloTask.ID, tasks[0].ID)
		assert.Equal(t, classTask.ID, tasks[1].ID)
	})

	t.Run("by user filtered by type", func(t *testing.T) {
		tasks, err := f.svc.QueryByUser(ctx, f.students[0].ID, task.QueryFilter{Type: task.TypeProject}, core.Paginator{})
		require.NoError(t, err)
		require.Len(t, tasks, 1)
		assert.Equal(t, soloTask.ID, tasks[0].ID)
	})

	t.Run("by class", func(t *testing.T) {
		tasks, err := f.svc.QueryByClass(ctx, f.class.ID, task.QueryFilter{}, core.Paginator{})
		require.NoError(t, err)
		assert.Len(t, tasks, 2)

		tasks, err = f.svc.QueryByClass(ctx, f.otherClass.ID, task.QueryFilter{}, core.Paginator{})
		require.NoError(t, err)
		assert.Empty(t, tasks)
	})

	t.Run("by period", func(t *testing.T) {
		tasks, err := f.svc.QueryByPeriod(ctx, f.period.ID, task.QueryFilter{}, core.Paginator{})
		require.NoError(t, err)
		assert.Len(t, tasks, 2)
	})

	t.Run("a task with several matching recipients lists once", func(t *testing.T) {
		// classTask fanned out to both members of f.class
		assignments, err := f.repo.QueryAssignmentsByTaskID(ctx, classTask.ID)
		require.NoError(t, err)
		require.Len(t, assignments, 2)

		for name, query := range map[string]func() ([]task.Task, error){
			"class": func() ([]task.Task, error) {
				return f.svc.QueryByClass(ctx, f.class.ID, task.QueryFilter{}, core.Paginator{})
			},
			"period": func() ([]task.Task, error) {
				return f.svc.QueryByPeriod(ctx, f.period.ID, task.QueryFilter{}, core.Paginator{})
			},
		} {
			tasks, err := query()
			require.NoError(t, err, name)
			seen := 0
			for _, tsk := range tasks {
				if tsk.ID == classTask.ID {
					seen++
				}
			}
			assert.Equal(t, 1, seen, "%s listing returned the task %d times", name, seen)
		}
	})

	t.Run("by creator", func(t *testing.T) {
		tasks, err := f.svc.QueryByCreator(ctx, f.coordinator.ID, core.Paginator{})
		require.NoError(t, err)
		assert.Len(t, tasks, 2)
	})

	t.Run("by assignment status", func(t *testing.T) {
		_, err := f.svc.UpdateAssignmentStatus(ctx, classTask.ID, f.students[0].ID, task.StatusCompleted)
		require.NoError(t, err)

		tasks, err := f.svc.QueryByUser(ctx, f.students[0].ID, task.QueryFilter{AssignmentStatus: task.StatusCompleted}, core.Paginator{})
		require.NoError(t, err)
		require.Len(t, tasks, 1)
		assert.Equal(t, classTask.ID, tasks[0].ID)
	})

	t.Run("unknown filter value is rejected", func(t *testing.T) {
		_, err := f.svc.QueryByUser(ctx, f.students[0].ID, task.QueryFilter{Type: "chore"}, core.Paginator{})
		var vErr *core.ValidationError
		assert.True(t, errors.As(err, &vErr), "QueryByUser() error = %v, want ValidationError", err)
	})

	t.Run("unknown audience is not found", func(t *testing.T) {
		_, err := f.svc.QueryByUser(ctx, "nope", task.QueryFilter{}, core.Paginator{})
		assert.Equal(t, school.ErrUserNotFound, err)
		_, err = f.svc.QueryByClass(ctx, "nope", task.QueryFilter{}, core.Paginator{})
		assert.Equal(t, school.ErrClassNotFound, err)
		_, err = f.svc.QueryByPeriod(ctx, "nope", task.QueryFilter{}, core.Paginator{})
		assert.Equal(t, school.ErrPeriodNotFound, err)
	})
}
