package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is a known account. Roster emails are resolved against this table.
type User struct {
	ID        string     `gorm:"primaryKey;size:36" json:"id"`
	Email     string     `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Name      string     `gorm:"size:100" json:"name"`
	Role      string     `gorm:"size:20;default:student" json:"role"` // student, admin
	LastLogin *time.Time `json:"last_login"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (User) TableName() string { return "users" }

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}
