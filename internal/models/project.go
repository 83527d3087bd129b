package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/huangang/projecthub/backend/internal/workflow"
)

// Project is a student project proposal.
type Project struct {
	SubmissionBase
	Name            string           `gorm:"size:200;not null" json:"name"`
	Description     string           `gorm:"type:text" json:"description"`
	Objectives      string           `gorm:"type:text" json:"objectives"`
	Technologies    []string         `gorm:"serializer:json;type:text" json:"technologies"`
	Links           ProjectLinks     `gorm:"serializer:json;type:text" json:"links"`
	Credits         *int             `json:"credits"`
	AdditionalInfo  *AdditionalInfo  `gorm:"serializer:json;type:text" json:"additional_info"`
	ExternalRequest *ExternalRequest `gorm:"type:text" json:"external_request"`
}

func (Project) TableName() string { return "projects" }

type ProjectLinks struct {
	Github string   `json:"github"`
	Docs   string   `json:"docs"`
	Other  []string `json:"other"`
}

// AdditionalInfo can be patched by the submitter once the project is approved.
type AdditionalInfo struct {
	PersonalGithub string     `json:"personal_github"`
	ProjectGithub  string     `json:"project_github"`
	Documents      []Document `json:"documents"`
}

type Document struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// ExternalRequest records the outcome of registering the project with the
// external registrar. Response is stored verbatim.
type ExternalRequest struct {
	Sent     bool           `json:"sent"`
	SentAt   time.Time      `json:"sent_at"`
	Response map[string]any `json:"response,omitempty"`
	Error    string         `json:"error,omitempty"`
}

func (e ExternalRequest) Value() (driver.Value, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (e *ExternalRequest) Scan(value any) error {
	var data []byte
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported external_request value %T", value)
	}
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	return json.Unmarshal(data, e)
}

func (p *Project) Kind() workflow.Kind { return workflow.KindProject }

func (p *Project) Title() string { return p.Name }

func (p *Project) Summary() workflow.Summary {
	extra := map[string]string{
		"objectives":    p.Objectives,
		"technologies":  strings.Join(p.Technologies, ", "),
		"student_count": strconv.Itoa(p.MemberCount),
	}
	if p.Credits != nil {
		extra["credits"] = strconv.Itoa(*p.Credits)
	}
	return workflow.Summary{
		Kind:             workflow.KindProject,
		Title:            p.Name,
		Description:      p.Description,
		ReviewerComments: p.ReviewerComments(),
		ExtraFields:      extra,
	}
}

// Registered reports whether a successful registration is on record.
func (p *Project) Registered() bool {
	return p.ExternalRequest != nil && p.ExternalRequest.Sent
}
