package workflow

import (
	"strings"
	"time"
)

// Status is the review state of a submission. The string values are stored and
// returned over the API as-is.
type Status string

const (
	StatusPending        Status = "pending"
	StatusPendingChanges Status = "pending_changes"
	StatusApproved       Status = "approved"
	StatusRejected       Status = "rejected"
	StatusCompleted      Status = "completed"
)

var allStatuses = []Status{
	StatusPending,
	StatusPendingChanges,
	StatusApproved,
	StatusRejected,
	StatusCompleted,
}

// ParseStatus returns the status matching s, or false when s is not one of the
// five known values.
func ParseStatus(s string) (Status, bool) {
	for _, st := range allStatuses {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

// Editable reports whether the submitter may still change the content.
func (s Status) Editable() bool {
	return s == StatusPending || s == StatusPendingChanges
}

// IsReviewTarget reports whether s can be requested through a review action.
func IsReviewTarget(s Status) bool {
	switch s {
	case StatusApproved, StatusRejected, StatusPendingChanges:
		return true
	}
	return false
}

// TemplateKey selects the notification message for a status.
type TemplateKey string

const (
	TemplateApproved       TemplateKey = "approved"
	TemplateRejected       TemplateKey = "rejected"
	TemplatePendingChanges TemplateKey = "pending_changes"
	TemplateCompleted      TemplateKey = "completed"
	TemplateOther          TemplateKey = "other"
)

func TemplateFor(s Status) TemplateKey {
	switch s {
	case StatusApproved:
		return TemplateApproved
	case StatusRejected:
		return TemplateRejected
	case StatusPendingChanges:
		return TemplatePendingChanges
	case StatusCompleted:
		return TemplateCompleted
	}
	return TemplateOther
}

// Kind tags a submission as a project or a workshop.
type Kind string

const (
	KindProject  Kind = "project"
	KindWorkshop Kind = "workshop"
)

func ParseKind(s string) (Kind, bool) {
	switch Kind(strings.ToLower(s)) {
	case KindProject:
		return KindProject, true
	case KindWorkshop:
		return KindWorkshop, true
	}
	return "", false
}

type Role string

const (
	RoleStudent Role = "student"
	RoleAdmin   Role = "admin"
)

// Actor is the authenticated caller of an operation.
type Actor struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// Identity is a person reference stored on a submission.
type Identity struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
}

// Review holds the most recent reviewer decision. It is overwritten on every
// review action.
type Review struct {
	ReviewerID   string `json:"reviewer_id"`
	ReviewerName string `json:"reviewer_name"`
	Comments     string `json:"comments"`
}

type Reviewer struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// HistoryEntry is one line of the append-only change history.
type HistoryEntry struct {
	Status   Status    `json:"status"`
	Comments string    `json:"comments"`
	Reviewer Reviewer  `json:"reviewer"`
	Date     time.Time `json:"date"`
}

// Summary is the kind-independent view of a submission handed to notifiers.
type Summary struct {
	Kind             Kind              `json:"kind"`
	Title            string            `json:"title"`
	Description      string            `json:"description"`
	ReviewerComments string            `json:"reviewer_comments,omitempty"`
	ExtraFields      map[string]string `json:"extra_fields,omitempty"`
}
