package models

import (
	"strconv"

	"github.com/huangang/projecthub/backend/internal/workflow"
)

// Workshop is a workshop proposal. Roster entries are the instructors.
type Workshop struct {
	SubmissionBase
	WorkshopTitle string        `gorm:"column:title;size:200;not null" json:"title"`
	Details       string        `gorm:"type:text" json:"details"`
	Links         WorkshopLinks `gorm:"serializer:json;type:text" json:"links"`
}

func (Workshop) TableName() string { return "workshops" }

type WorkshopLinks struct {
	Github       string   `json:"github"`
	Presentation string   `json:"presentation"`
	Other        []string `json:"other"`
}

func (w *Workshop) Kind() workflow.Kind { return workflow.KindWorkshop }

func (w *Workshop) Title() string { return w.WorkshopTitle }

func (w *Workshop) Summary() workflow.Summary {
	return workflow.Summary{
		Kind:             workflow.KindWorkshop,
		Title:            w.WorkshopTitle,
		Description:      w.Details,
		ReviewerComments: w.ReviewerComments(),
		ExtraFields: map[string]string{
			"instructor_count": strconv.Itoa(w.MemberCount),
			"github":           w.Links.Github,
			"presentation":     w.Links.Presentation,
		},
	}
}

// NewSubmission returns an empty submission of the given kind.
func NewSubmission(kind workflow.Kind) Submission {
	if kind == workflow.KindWorkshop {
		return &Workshop{}
	}
	return &Project{}
}
