package task

import (
	"time"

	"github.com/trezcool/kazi/core"
)

// Task types
type Type string

const (
	TypeProject    Type = "project"
	TypeTask       Type = "task"
	TypeAssessment Type = "assessment"
	TypeMeeting    Type = "meeting"
)

func (t Type) IsValid() bool {
	switch t {
	case TypeProject, TypeTask, TypeAssessment, TypeMeeting:
		return true
	}
	return false
}

// Task availability statuses
type AvailabilityStatus string

const (
	AvailabilityPending   AvailabilityStatus = "pending"
	AvailabilityExpired   AvailabilityStatus = "expired"
	AvailabilityCanceled  AvailabilityStatus = "canceled"
	AvailabilityAvailable AvailabilityStatus = "available"
)

func (s AvailabilityStatus) IsValid() bool {
	switch s {
	case AvailabilityPending, AvailabilityExpired, AvailabilityCanceled, AvailabilityAvailable:
		return true
	}
	return false
}

// Assignment statuses
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusCanceled  Status = "canceled"
	StatusExpired   Status = "expired"
)

// statusTransitions is the exhaustive assignment state machine:
// pending may move to any of the three closed states; closed states
// have no outgoing transitions.
var statusTransitions = map[Status][]Status{
	StatusPending:   {StatusCompleted, StatusCanceled, StatusExpired},
	StatusCompleted: {},
	StatusCanceled:  {},
	StatusExpired:   {},
}

func (s Status) IsValid() bool {
	_, ok := statusTransitions[s]
	return ok
}

func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range statusTransitions[s] {
		if next == allowed {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is permitted from s.
func (s Status) IsTerminal() bool {
	return s.IsValid() && len(statusTransitions[s]) == 0
}

// Task is a recipient-independent unit of work definition.
type Task struct {
	ID                 string             `json:"id"`
	Title              string             `json:"title"`
	Description        string             `json:"description,omitempty"`
	Link               string             `json:"link,omitempty"`
	Type               Type               `json:"type"`
	AvailabilityStatus AvailabilityStatus `json:"availability_status"`
	AvailabilityAt     time.Time          `json:"availability_at,omitempty"` // UTC; zero when unset
	Deadline           time.Time          `json:"deadline"`                  // UTC
	CreatedAt          time.Time          `json:"created_at"`                // UTC
	UpdatedAt          time.Time          `json:"updated_at"`                // UTC
	CreatedBy          string             `json:"created_by"`
	UpdatedBy          string             `json:"updated_by"`
}

// Assignment is the per-recipient instance of a Task, carrying that
// recipient's completion status.
type Assignment struct {
	ID        string    `json:"id"`
	Status    Status    `json:"status"`
	TaskID    string    `json:"task_id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

// NewTask contains information needed to create a new Task.
type NewTask struct {
	Title              string             `json:"title" validate:"required"`
	Description        string             `json:"description"`
	Link               string             `json:"link" validate:"omitempty,url"`
	Type               Type               `json:"type" validate:"required,oneof=project task assessment meeting"`
	AvailabilityStatus AvailabilityStatus `json:"availability_status" validate:"omitempty,oneof=pending expired canceled available"`
	AvailabilityAt     time.Time          `json:"availability_at"`
	Deadline           time.Time          `json:"deadline" validate:"required"`
}

func (nt *NewTask) Validate() error {
	nt.Title = core.CleanString(nt.Title)
	nt.Description = core.CleanString(nt.Description)
	nt.Link = core.CleanString(nt.Link)
	if nt.AvailabilityStatus == "" {
		nt.AvailabilityStatus = AvailabilityAvailable
	}
	return core.Validate.Struct(nt)
}

// UpdateTask defines what information may be provided to modify an
// existing Task. Each provided field overwrites; absent fields retain
// their prior value. Description and Link are pointers so an explicit
// empty value clears them.
type UpdateTask struct {
	Title              string             `json:"title"`
	Description        *string            `json:"description"`
	Link               *string            `json:"link" validate:"omitempty,url"`
	Type               Type               `json:"type" validate:"omitempty,oneof=project task assessment meeting"`
	AvailabilityStatus AvailabilityStatus `json:"availability_status" validate:"omitempty,oneof=pending expired canceled available"`
	AvailabilityAt     *time.Time         `json:"availability_at"`
	Deadline           *time.Time         `json:"deadline"`
}

func (ut *UpdateTask) Validate() error {
	ut.Title = core.CleanString(ut.Title)
	if ut.Description != nil {
		*ut.Description = core.CleanString(*ut.Description)
	}
	if ut.Link != nil {
		*ut.Link = core.CleanString(*ut.Link)
	}
	return core.Validate.Struct(ut)
}

// Apply overwrites the provided fields onto tsk.
func (ut UpdateTask) Apply(tsk Task) Task {
	if ut.Title != "" {
		tsk.Title = ut.Title
	}
	if ut.Description != nil {
		tsk.Description = *ut.Description
	}
	if ut.Link != nil {
		tsk.Link = *ut.Link
	}
	if ut.Type != "" {
		tsk.Type = ut.Type
	}
	if ut.AvailabilityStatus != "" {
		tsk.AvailabilityStatus = ut.AvailabilityStatus
	}
	if ut.AvailabilityAt != nil {
		tsk.AvailabilityAt = ut.AvailabilityAt.UTC()
	}
	if ut.Deadline != nil {
		tsk.Deadline = ut.Deadline.UTC()
	}
	return tsk
}

// OrderColumns maps the sort keys exposed to callers onto the actual
// tasks columns. Anything else is rejected at pagination time.
var OrderColumns = map[string]string{
	"title":               "title",
	"type":                "type",
	"availability_status": "availability_status",
	"availability_at":     "availability_at",
	"deadline":            "deadline",
	"created_at":          "created_at",
	"updated_at":          "updated_at",
}

// QueryFilter restricts task listings. The audience fields (UserID,
// ClassID, PeriodID, CreatedBy) are set by the service; the remaining
// fields come from the caller and apply with AND semantics.
type QueryFilter struct {
	UserID    string
	ClassID   string
	PeriodID  string
	CreatedBy string

	Type               Type               `query:"type"`
	AvailabilityStatus AvailabilityStatus `query:"availability_status"`
	AssignmentStatus   Status             `query:"status"`
}

func (qf *QueryFilter) Clean() error {
	var flds []core.FieldError
	if qf.Type != "" && !qf.Type.IsValid() {
		flds = append(flds, core.FieldError{Field: "type", Error: "unknown task type"})
	}
	if qf.AvailabilityStatus != "" && !qf.AvailabilityStatus.IsValid() {
		flds = append(flds, core.FieldError{Field: "availability_status", Error: "unknown availability status"})
	}
	if qf.AssignmentStatus != "" && !qf.AssignmentStatus.IsValid() {
		flds = append(flds, core.FieldError{Field: "status", Error: "unknown assignment status"})
	}
	if flds != nil {
		return core.NewValidationError(errInvalidFilter, flds...)
	}
	return nil
}
