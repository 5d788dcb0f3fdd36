package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/opticore/opticore-backend/pkg/enums"
)

// RestockRequest asks for more units of a product at a branch. CurrentStock
// snapshots the ledger at creation time so reviewers see what prompted the
// request even after the ledger moves.
type RestockRequest struct {
	ID                uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	BranchID          uuid.UUID           `gorm:"column:branch_id;type:uuid;not null;index"`
	ProductID         uuid.UUID           `gorm:"column:product_id;type:uuid;not null"`
	RequestedQuantity int                 `gorm:"column:requested_quantity;not null"`
	CurrentStock      int                 `gorm:"column:current_stock;not null;default:0"`
	Status            enums.RestockStatus `gorm:"column:status;type:text;not null;default:pending"`
	Notes             *string             `gorm:"column:notes"`
	RequestedBy       uuid.UUID           `gorm:"column:requested_by;type:uuid;not null"`
	DecidedBy         *uuid.UUID          `gorm:"column:decided_by;type:uuid"`
	DecidedAt         *time.Time          `gorm:"column:decided_at"`
	FulfilledAt       *time.Time          `gorm:"column:fulfilled_at"`
	Branch            *Branch             `gorm:"foreignKey:BranchID"`
	Product           *Product            `gorm:"foreignKey:ProductID"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
