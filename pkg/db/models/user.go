package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/opticore/opticore-backend/pkg/enums"
)

// User represents the clinic's identity directory entry. Authentication is
// handled upstream; the core only consumes role and branch assignment.
type User struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey"`
	Email     string     `gorm:"type:text;not null;uniqueIndex"`
	FirstName string     `gorm:"column:first_name;not null"`
	LastName  string     `gorm:"column:last_name;not null"`
	Role      enums.Role `gorm:"column:role;type:text;not null"`
	BranchID  *uuid.UUID `gorm:"column:branch_id;type:uuid"`
	IsActive  bool       `gorm:"column:is_active;not null;default:true"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
