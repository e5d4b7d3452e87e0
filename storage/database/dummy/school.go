package dummydb

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/core/school"
)

type SchoolRepository struct {
	mu      sync.RWMutex
	periods []school.Period
	classes []school.Class
	users   []school.User
}

var _ school.Repository = (*SchoolRepository)(nil) // interface compliance check

func NewSchoolRepository() *SchoolRepository {
	return &SchoolRepository{}
}

// CreatePeriod seeds a period. Test helper; not part of school.Repository.
func (repo *SchoolRepository) CreatePeriod(prd school.Period) school.Period {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	if prd.ID == "" {
		prd.ID = uuid.New().String()
	}
	repo.periods = append(repo.periods, prd)
	return prd
}

// CreateClass seeds a class. Test helper; not part of school.Repository.
func (repo *SchoolRepository) CreateClass(cls school.Class) school.Class {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	if cls.ID == "" {
		cls.ID = uuid.New().String()
	}
	if cls.CreatedAt.IsZero() {
		cls.CreatedAt = time.Now().UTC()
		cls.UpdatedAt = cls.CreatedAt
	}
	repo.classes = append(repo.classes, cls)
	return cls
}

// CreateUser seeds a user. Test helper; not part of school.Repository.
func (repo *SchoolRepository) CreateUser(usr school.User) school.User {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	if usr.ID == "" {
		usr.ID = uuid.New().String()
	}
	if usr.CreatedAt.IsZero() {
		usr.CreatedAt = time.Now().UTC()
		usr.UpdatedAt = usr.CreatedAt
	}
	repo.users = append(repo.users, usr)
	return usr
}

func (repo *SchoolRepository) GetUser(_ context.Context, id string, _ ...core.DBExecutor) (school.User, error) {
	repo.mu.RLock()
	defer repo.mu.RUnlock()

	for _, usr := range repo.users {
		if usr.ID == id {
			return usr, nil
		}
	}
	return school.User{}, school.ErrUserNotFound
}

func (repo *SchoolRepository) QueryAllUsers(_ context.Context, _ ...core.DBExecutor) ([]school.User, error) {
	repo.mu.RLock()
	defer repo.mu.RUnlock()

	users := make([]school.User, len(repo.users))
	copy(users, repo.users)
	return users, nil
}

func (repo *SchoolRepository) QueryUsersByClassIDs(_ context.Context, classIDs []string, _ ...core.DBExecutor) ([]school.User, error) {
	repo.mu.RLock()
	defer repo.mu.RUnlock()

	ids := make(map[string]struct{}, len(classIDs))
	for _, id := range classIDs {
		ids[id] = struct{}{}
	}

	var users []school.User
	for _, usr := range repo.users {
		if _, ok := ids[usr.ClassID]; ok {
			users = append(users, usr)
		}
	}
	return users, nil
}

func (repo *SchoolRepository) GetClass(_ context.Context, filter school.ClassFilter, _ ...core.DBExecutor) (school.Class, error) {
	repo.mu.RLock()
	defer repo.mu.RUnlock()

	for _, cls := range repo.classes {
		if cls.ID != filter.ID {
			continue
		}
		if filter.ActiveOnly && !cls.IsActive {
			break
		}
		// filter.Lock is moot here; BeginTx already serializes writers.
		return cls, nil
	}
	return school.Class{}, school.ErrClassNotFound
}

func (repo *SchoolRepository) QueryActiveClassesByPeriodID(_ context.Context, periodID string, _ ...core.DBExecutor) ([]school.Class, error) {
	repo.mu.RLock()
	defer repo.mu.RUnlock()

	var classes []school.Class
	for _, cls := range repo.classes {
		if cls.Period.ID == periodID && cls.IsActive {
			classes = append(classes, cls)
		}
	}
	return classes, nil
}

func (repo *SchoolRepository) GetPeriod(_ context.Context, id string, activeOnly bool, _ ...core.DBExecutor) (school.Period, error) {
	repo.mu.RLock()
	defer repo.mu.RUnlock()

	for _, prd := range repo.periods {
		if prd.ID != id {
			continue
		}
		if activeOnly && !prd.IsActive {
			break
		}
		return prd, nil
	}
	return school.Period{}, school.ErrPeriodNotFound
}
