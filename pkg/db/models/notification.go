package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/opticore/opticore-backend/pkg/enums"
)

// Notification stores in-app notification payloads scoped to users.
type Notification struct {
	ID        uuid.UUID              `gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID              `gorm:"column:user_id;type:uuid;not null;index"`
	Type      enums.NotificationType `gorm:"column:type;type:text;not null"`
	Title     string                 `gorm:"type:text;not null"`
	Message   string                 `gorm:"type:text;not null"`
	Link      *string                `gorm:"type:text"`
	ReadAt    *time.Time             `gorm:"column:read_at"`
	CreatedAt time.Time              `gorm:"column:created_at;autoCreateTime"`
}
