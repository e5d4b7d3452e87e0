package classtoken

import (
	"time"

	"github.com/trezcool/kazi/core/school"
)

type ClassToken struct {
	ID             string       `json:"id"`
	Token          string       `json:"token"`
	TokenNumber    int          `json:"token_number"`
	ExpirationDate time.Time    `json:"expiration_date"` // UTC
	CreatedAt      time.Time    `json:"created_at"`      // UTC
	Class          school.Class `json:"class"`
}

// Expired reports whether the token is no longer valid at instant t.
func (ct ClassToken) Expired(t time.Time) bool {
	return !ct.ExpirationDate.After(t)
}

// OrderColumns maps the sort keys exposed to callers onto the actual
// class_tokens columns. Anything else is rejected at pagination time.
var OrderColumns = map[string]string{
	"token":           "token",
	"token_number":    "token_number",
	"expiration_date": "expiration_date",
	"created_at":      "created_at",
}

// QueryFilter scopes active-token listings.
type QueryFilter struct {
	ClassID string `query:"class_id"`
}

func (qf QueryFilter) IsEmpty() bool { return qf.ClassID == "" }
