package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/huangang/projecthub/backend/internal/models"
	"github.com/huangang/projecthub/backend/internal/workflow"
	"gorm.io/gorm"
)

// SubmissionStore persists projects and workshops.
type SubmissionStore interface {
	FindByID(ctx context.Context, kind workflow.Kind, id string) (models.Submission, error)
	// FindByStatus lists submissions newest first. An empty status lists all of them.
	FindByStatus(ctx context.Context, kind workflow.Kind, status workflow.Status) ([]models.Submission, error)
	// FindByParticipant lists submissions submitted by userID or whose roster contains email.
	FindByParticipant(ctx context.Context, kind workflow.Kind, userID, email string) ([]models.Submission, error)
	Create(ctx context.Context, sub models.Submission) error
	// Save writes sub only if the stored version still equals sub's version,
	// then increments it. A stale write fails with workflow.ErrConflict.
	Save(ctx context.Context, sub models.Submission) error
	DeleteByID(ctx context.Context, kind workflow.Kind, id string) error
	// RecordExternalRequest stores a registrar outcome on a project and bumps its version.
	RecordExternalRequest(ctx context.Context, id string, req *models.ExternalRequest) error
}

type GormSubmissionStore struct {
	db *gorm.DB
}

func NewSubmissionStore(db *gorm.DB) *GormSubmissionStore {
	return &GormSubmissionStore{db: db}
}

func (s *GormSubmissionStore) FindByID(ctx context.Context, kind workflow.Kind, id string) (models.Submission, error) {
	sub := models.NewSubmission(kind)
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(sub).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s %s", workflow.ErrNotFound, kind, id)
		}
		return nil, err
	}
	return sub, nil
}

func (s *GormSubmissionStore) FindByStatus(ctx context.Context, kind workflow.Kind, status workflow.Status) ([]models.Submission, error) {
	query := s.db.WithContext(ctx).Order("created_at DESC")
	if status != "" {
		query = query.Where("status = ?", status)
	}
	return s.find(query, kind)
}

func (s *GormSubmissionStore) FindByParticipant(ctx context.Context, kind workflow.Kind, userID, email string) ([]models.Submission, error) {
	query := s.db.WithContext(ctx).
		Where("submitter_user_id = ? OR roster_index LIKE ? ESCAPE '"+models.RosterLikeEscape+"'", userID, models.RosterIndexPattern(email)).
		Order("created_at DESC")
	return s.find(query, kind)
}

func (s *GormSubmissionStore) find(query *gorm.DB, kind workflow.Kind) ([]models.Submission, error) {
	switch kind {
	case workflow.KindProject:
		var rows []*models.Project
		if err := query.Find(&rows).Error; err != nil {
			return nil, err
		}
		out := make([]models.Submission, len(rows))
		for i, r := range rows {
			out[i] = r
		}
		return out, nil
	case workflow.KindWorkshop:
		var rows []*models.Workshop
		if err := query.Find(&rows).Error; err != nil {
			return nil, err
		}
		out := make([]models.Submission, len(rows))
		for i, r := range rows {
			out[i] = r
		}
		return out, nil
	}
	return nil, fmt.Errorf("unknown submission kind %q", kind)
}

func (s *GormSubmissionStore) Create(ctx context.Context, sub models.Submission) error {
	return s.db.WithContext(ctx).Create(sub).Error
}

func (s *GormSubmissionStore) Save(ctx context.Context, sub models.Submission) error {
	base := sub.Base()
	expected := base.Version

	base.Version = expected + 1
	base.UpdatedAt = time.Now()
	base.IndexRoster()

	result := s.db.WithContext(ctx).
		Model(sub).
		Where("version = ?", expected).
		Select("*").
		Omit("created_at").
		Updates(sub)
	if result.Error != nil {
		base.Version = expected
		return result.Error
	}
	if result.RowsAffected == 0 {
		base.Version = expected
		if _, err := s.FindByID(ctx, sub.Kind(), base.ID); err != nil {
			return err
		}
		return fmt.Errorf("%w: %s %s", workflow.ErrConflict, sub.Kind(), base.ID)
	}
	return nil
}

func (s *GormSubmissionStore) DeleteByID(ctx context.Context, kind workflow.Kind, id string) error {
	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(models.NewSubmission(kind))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s %s", workflow.ErrNotFound, kind, id)
	}
	return nil
}

func (s *GormSubmissionStore) RecordExternalRequest(ctx context.Context, id string, req *models.ExternalRequest) error {
	result := s.db.WithContext(ctx).
		Model(&models.Project{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"external_request": req,
			"version":          gorm.Expr("version + 1"),
			"updated_at":       time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: project %s", workflow.ErrNotFound, id)
	}
	return nil
}
