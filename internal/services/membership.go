package services

import (
	"context"
	"errors"
	"time"

	"github.com/huangang/projecthub/backend/internal/models"
	"github.com/huangang/projecthub/backend/internal/workflow"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Resolution pairs an email with the account it belongs to, if any.
type Resolution struct {
	Email  string
	UserID *string
}

// MembershipResolver maps roster emails to known accounts.
type MembershipResolver interface {
	Resolve(ctx context.Context, emails []string) ([]Resolution, error)
}

// UserService manages the account table and resolves roster emails against it.
type UserService struct {
	db *gorm.DB
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

func (s *UserService) Resolve(ctx context.Context, emails []string) ([]Resolution, error) {
	normalized := make([]string, 0, len(emails))
	for _, e := range emails {
		if e = workflow.NormalizeEmail(e); e != "" {
			normalized = append(normalized, e)
		}
	}

	known := make(map[string]string)
	if len(normalized) > 0 {
		var users []models.User
		if err := s.db.WithContext(ctx).Where("email IN ?", normalized).Find(&users).Error; err != nil {
			return nil, err
		}
		for _, u := range users {
			known[u.Email] = u.ID
		}
	}

	out := make([]Resolution, 0, len(normalized))
	for _, e := range normalized {
		r := Resolution{Email: e}
		if id, ok := known[e]; ok {
			id := id
			r.UserID = &id
		}
		out = append(out, r)
	}
	return out, nil
}

// Touch records an authenticated caller so later roster resolution can find them.
// An account already holding the caller's email under another id (created by the
// operator CLI, or a previous identity provider id) is re-keyed to the caller.
func (s *UserService) Touch(ctx context.Context, actor workflow.Actor) error {
	now := time.Now()
	user := models.User{
		ID:        actor.ID,
		Email:     workflow.NormalizeEmail(actor.Email),
		Name:      actor.Name,
		Role:      string(actor.Role),
		LastLogin: &now,
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var holder models.User
		err := tx.Where("email = ?", user.Email).Take(&holder).Error
		switch {
		case err == nil && holder.ID != user.ID:
			var taken int64
			if err := tx.Model(&models.User{}).Where("id = ?", user.ID).Count(&taken).Error; err != nil {
				return err
			}
			if taken > 0 {
				// the caller already has a row; the email moves to it
				if err := tx.Where("id = ?", holder.ID).Delete(&models.User{}).Error; err != nil {
					return err
				}
			} else if err := tx.Model(&models.User{}).Where("id = ?", holder.ID).Update("id", user.ID).Error; err != nil {
				return err
			}
		case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"email", "name", "role", "last_login", "updated_at"}),
		}).Create(&user).Error
	})
}

// Create adds an account. Used by the operator CLI.
func (s *UserService) Create(ctx context.Context, email, name string, role workflow.Role) (*models.User, error) {
	email = workflow.NormalizeEmail(email)
	if email == "" {
		return nil, errors.New("email is required")
	}
	if role == "" {
		role = workflow.RoleStudent
	}
	user := &models.User{Email: email, Name: name, Role: string(role)}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserService) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", workflow.NormalizeEmail(email)).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *UserService) GetByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// lookupFrom turns resolver output into the lookup used by workflow.BuildRoster.
func lookupFrom(resolved []Resolution) workflow.LookupFunc {
	ids := make(map[string]*string, len(resolved))
	for _, r := range resolved {
		ids[r.Email] = r.UserID
	}
	return func(email string) *string {
		return ids[email]
	}
}
