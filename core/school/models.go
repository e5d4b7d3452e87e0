package school

import (
	"context"
	"time"

	"github.com/trezcool/kazi/core"
)

// Roles
const (
	RoleStudent     = "student"
	RoleCoordinator = "coordinator"
	RoleAdmin       = "admin"
)

type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	ClassID   string    `json:"class_id,omitempty"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

func (u User) IsStudent() bool { return u.Role == RoleStudent }

func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

type Period struct {
	ID           string `json:"id"`
	Year         int    `json:"year"`
	Semester     string `json:"semester"`
	PeriodNumber int    `json:"period_number"`
	IsActive     bool   `json:"is_active"`
}

type Class struct {
	ID          string    `json:"id"`
	ClassNumber int       `json:"class_number"`
	TeacherName string    `json:"teacher_name,omitempty"`
	IsActive    bool      `json:"is_active"`
	Period      Period    `json:"period"`
	CreatedAt   time.Time `json:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"` // UTC
}

// ClassFilter restricts a single-class lookup.
// Lock takes a row-level lock on the class for the duration of the
// enclosing transaction; only meaningful when an exec override is passed.
type ClassFilter struct {
	ID         string
	ActiveOnly bool
	Lock       bool
}

var (
	// errors
	ErrUserNotFound   = core.NewNotFoundError("user not found")
	ErrClassNotFound  = core.NewNotFoundError("class not found")
	ErrPeriodNotFound = core.NewNotFoundError("period not found")
)

// Repository resolves the identity records this engine references but
// does not own: users, classes and their periods.
type Repository interface {
	GetUser(ctx context.Context, id string, exec ...core.DBExecutor) (User, error)
	QueryAllUsers(ctx context.Context, exec ...core.DBExecutor) ([]User, error)
	// QueryUsersByClassIDs returns the users enrolled in any of the given classes.
	QueryUsersByClassIDs(ctx context.Context, classIDs []string, exec ...core.DBExecutor) ([]User, error)
	// GetClass resolves a class along with its period.
	GetClass(ctx context.Context, filter ClassFilter, exec ...core.DBExecutor) (Class, error)
	QueryActiveClassesByPeriodID(ctx context.Context, periodID string, exec ...core.DBExecutor) ([]Class, error)
	GetPeriod(ctx context.Context, id string, activeOnly bool, exec ...core.DBExecutor) (Period, error)
}
