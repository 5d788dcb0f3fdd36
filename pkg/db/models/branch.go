package models

import (
	"time"

	"github.com/google/uuid"
)

// Branch is a physical clinic location holding its own stock ledger.
type Branch struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Name      string    `gorm:"column:name;not null;uniqueIndex"`
	Address   *string   `gorm:"column:address"`
	Phone     *string   `gorm:"column:phone"`
	IsActive  bool      `gorm:"column:is_active;not null;default:true"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
