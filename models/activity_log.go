package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ActivityLog 记录成功的写操作，ExpiresAt 之后由定时任务清理
type ActivityLog struct {
	ID           string    `gorm:"type:uuid;primaryKey" json:"id"`
	UserID       string    `gorm:"type:uuid;index" json:"userId"`
	Username     string    `gorm:"size:255" json:"username"`
	Action       string    `gorm:"size:40;index" json:"action"`
	ResourceType string    `gorm:"size:40" json:"resourceType"`
	ResourceID   string    `gorm:"size:64" json:"resourceId,omitempty"`
	Details      string    `gorm:"size:255" json:"details"`
	IPAddress    string    `gorm:"size:45" json:"ipAddress,omitempty"`
	UserAgent    string    `gorm:"size:255" json:"-"`
	CreatedAt    time.Time `gorm:"index" json:"createdAt"`
	ExpiresAt    time.Time `gorm:"index;not null" json:"expiresAt"`
}

func (ActivityLog) TableName() string { return "inv_activity_logs" }

func (l *ActivityLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	return nil
}
