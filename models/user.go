package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	RoleAdmin   = "ADMIN"
	RoleAuditor = "AUDITOR"
	RoleViewer  = "VIEWER"
)

type User struct {
	ID        string    `gorm:"column:id;primaryKey;size:36" json:"id"`
	Email     string    `gorm:"column:email;size:255;uniqueIndex;not null" json:"email"`
	FirstName string    `gorm:"column:first_name;size:100;not null" json:"first_name"`
	LastName  string    `gorm:"column:last_name;size:100;not null" json:"last_name"`
	Password  string    `gorm:"column:password;size:255;not null" json:"-"` // bcrypt hash
	Role      string    `gorm:"column:role;size:20;not null;default:'AUDITOR'" json:"role"`
	IsActive  bool      `gorm:"column:is_active;not null" json:"is_active"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	assignID(&u.ID)
	return nil
}

// UserSummary is the non-sensitive projection returned next to templates and inspections.
type UserSummary struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

func (u *User) Summary() *UserSummary {
	if u == nil {
		return nil
	}
	return &UserSummary{ID: u.ID, FirstName: u.FirstName, LastName: u.LastName, Email: u.Email}
}
