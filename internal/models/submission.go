package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/huangang/projecthub/backend/internal/workflow"
	"gorm.io/gorm"
)

// SubmissionBase holds the review state shared by projects and workshops.
type SubmissionBase struct {
	ID            string                  `gorm:"primaryKey;size:36" json:"id"`
	Status        workflow.Status         `gorm:"size:20;index;not null;default:pending" json:"status"`
	Submitter     workflow.Identity       `gorm:"embedded;embeddedPrefix:submitter_" json:"submitter"`
	Roster        []workflow.Member       `gorm:"serializer:json;type:text" json:"roster"`
	RosterIndex   string                  `gorm:"type:text" json:"-"` // |email|email| for membership queries
	MemberEmails  []string                `gorm:"serializer:json;type:text" json:"member_emails"`
	MemberCount   int                     `gorm:"not null;default:1" json:"member_count"`
	Review        *workflow.Review        `gorm:"serializer:json;type:text" json:"review"`
	ChangeHistory []workflow.HistoryEntry `gorm:"serializer:json;type:text" json:"change_history"`
	Version       int64                   `gorm:"not null;default:1" json:"version"`
	CreatedAt     time.Time               `gorm:"index" json:"created_at"`
	UpdatedAt     time.Time               `json:"updated_at"`
}

// Submission is implemented by *Project and *Workshop.
type Submission interface {
	Base() *SubmissionBase
	Kind() workflow.Kind
	Title() string
	Summary() workflow.Summary
}

func (b *SubmissionBase) Base() *SubmissionBase { return b }

// Subject returns the view the transition policy decides on.
func (b *SubmissionBase) Subject(kind workflow.Kind) workflow.Subject {
	return workflow.Subject{
		Kind:      kind,
		Status:    b.Status,
		Submitter: b.Submitter,
		Roster:    b.Roster,
	}
}

// ReviewerComments returns the current reviewer comments, or "".
func (b *SubmissionBase) ReviewerComments() string {
	if b.Review == nil {
		return ""
	}
	return b.Review.Comments
}

// AppendHistory records one transition.
func (b *SubmissionBase) AppendHistory(status workflow.Status, comments string, reviewer workflow.Reviewer, at time.Time) {
	b.ChangeHistory = append(b.ChangeHistory, workflow.HistoryEntry{
		Status:   status,
		Comments: comments,
		Reviewer: reviewer,
		Date:     at,
	})
}

// IndexRoster refreshes the membership lookup column from the roster.
func (b *SubmissionBase) IndexRoster() {
	var sb strings.Builder
	sb.WriteString("|")
	for _, m := range b.Roster {
		sb.WriteString(m.Email)
		sb.WriteString("|")
	}
	b.RosterIndex = sb.String()
}

func (b *SubmissionBase) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.Status == "" {
		b.Status = workflow.StatusPending
	}
	if b.Version == 0 {
		b.Version = 1
	}
	b.IndexRoster()
	return nil
}

// RosterLikeEscape is the ESCAPE character used by RosterIndexPattern.
const RosterLikeEscape = "!"

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// RosterIndexPattern is the LIKE pattern matching a roster containing email.
// Wildcards in the email are escaped with RosterLikeEscape.
func RosterIndexPattern(email string) string {
	return "%|" + likeEscaper.Replace(workflow.NormalizeEmail(email)) + "|%"
}
