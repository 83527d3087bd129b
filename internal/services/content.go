package services

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/huangang/projecthub/backend/internal/models"
	"github.com/huangang/projecthub/backend/internal/workflow"
)

var githubRepoPattern = regexp.MustCompile(`^https://github\.com/[\w-]+/[\w-]+/?$`)

// ContentInput is the submitter-editable part of a submission.
type ContentInput interface {
	Kind() workflow.Kind
	Validate() error
	// Emails is the raw co-member list as typed by the submitter.
	Emails() []string
	Count() int
	apply(sub models.Submission)
}

// ProjectInput is the body of a project create or update.
type ProjectInput struct {
	Name          string              `json:"name" binding:"required,max=200"`
	Description   string              `json:"description" binding:"required"`
	Objectives    string              `json:"objectives" binding:"required"`
	Technologies  []string            `json:"technologies"`
	StudentCount  int                 `json:"student_count"`
	StudentEmails []string            `json:"student_emails"`
	Links         models.ProjectLinks `json:"links"`
}

func (in *ProjectInput) Kind() workflow.Kind { return workflow.KindProject }
func (in *ProjectInput) Emails() []string    { return in.StudentEmails }
func (in *ProjectInput) Count() int          { return in.StudentCount }

func (in *ProjectInput) Validate() error {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return fmt.Errorf("%w: name is required", workflow.ErrValidation)
	}
	if strings.TrimSpace(in.Description) == "" {
		return fmt.Errorf("%w: description is required", workflow.ErrValidation)
	}
	if strings.TrimSpace(in.Objectives) == "" {
		return fmt.Errorf("%w: objectives are required", workflow.ErrValidation)
	}

	techs := in.Technologies[:0]
	for _, t := range in.Technologies {
		if t = strings.TrimSpace(t); t != "" {
			techs = append(techs, t)
		}
	}
	in.Technologies = techs
	if len(in.Technologies) == 0 {
		return fmt.Errorf("%w: at least one technology is required", workflow.ErrValidation)
	}
	if in.StudentCount < 1 {
		return fmt.Errorf("%w: student_count must be at least 1", workflow.ErrValidation)
	}
	return nil
}

func (in *ProjectInput) apply(sub models.Submission) {
	p := sub.(*models.Project)
	p.Name = in.Name
	p.Description = in.Description
	p.Objectives = in.Objectives
	p.Technologies = in.Technologies
	p.Links = in.Links
}

// WorkshopInput is the body of a workshop create or update.
type WorkshopInput struct {
	Title            string               `json:"title" binding:"required,max=200"`
	Details          string               `json:"details" binding:"required"`
	InstructorCount  int                  `json:"instructor_count"`
	InstructorEmails []string             `json:"instructor_emails"`
	Links            models.WorkshopLinks `json:"links"`
}

func (in *WorkshopInput) Kind() workflow.Kind { return workflow.KindWorkshop }
func (in *WorkshopInput) Emails() []string    { return in.InstructorEmails }
func (in *WorkshopInput) Count() int          { return in.InstructorCount }

func (in *WorkshopInput) Validate() error {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return fmt.Errorf("%w: title is required", workflow.ErrValidation)
	}
	if strings.TrimSpace(in.Details) == "" {
		return fmt.Errorf("%w: details are required", workflow.ErrValidation)
	}
	if in.InstructorCount < 1 {
		return fmt.Errorf("%w: instructor_count must be at least 1", workflow.ErrValidation)
	}
	if in.Links.Github == "" || in.Links.Presentation == "" {
		return fmt.Errorf("%w: github and presentation links are required", workflow.ErrValidation)
	}
	if !githubRepoPattern.MatchString(in.Links.Github) {
		return fmt.Errorf("%w: github link must look like https://github.com/username/repo", workflow.ErrValidation)
	}
	return nil
}

func (in *WorkshopInput) apply(sub models.Submission) {
	w := sub.(*models.Workshop)
	w.WorkshopTitle = in.Title
	w.Details = in.Details
	w.Links = in.Links
}

// AdditionalInfoInput is the body of the approved-project info patch.
type AdditionalInfoInput struct {
	PersonalGithub string            `json:"personal_github"`
	ProjectGithub  string            `json:"project_github"`
	Documents      []models.Document `json:"documents"`
}

// ReviewInput is the body of a review action.
type ReviewInput struct {
	Status   workflow.Status `json:"status" binding:"required"`
	Comments string          `json:"comments"`
	Credits  *int            `json:"credits"`
	// Force re-sends notifications and retries registration even when the
	// status did not change.
	Force bool `json:"force"`
}

// CommentsInput is the optional body of complete and request-changes.
type CommentsInput struct {
	Comments string `json:"comments"`
}
