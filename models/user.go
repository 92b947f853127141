package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const UserTable = "inv_users"

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

type User struct {
	ID          string `gorm:"primaryKey;type:uuid" json:"id"`
	Username    string `gorm:"uniqueIndex;size:255;not null" json:"username"`
	DisplayName string `gorm:"size:255;not null" json:"displayName"`
	Designation string `gorm:"size:255" json:"designation,omitempty"`
	Role        string `gorm:"size:16;not null;default:'user'" json:"role"`

	LastSeenAt *time.Time `gorm:"index" json:"lastSeenAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (User) TableName() string {
	return UserTable
}

func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Role == "" {
		u.Role = RoleUser
	}
	if u.DisplayName == "" {
		u.DisplayName = u.Username
	}
	return nil
}
