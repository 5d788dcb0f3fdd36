package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/opticore/opticore-backend/pkg/enums"
)

// StockTransfer moves units of a product between two branches. Stock only
// changes hands at completion; approval re-validates the source ledger.
type StockTransfer struct {
	ID           uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	FromBranchID uuid.UUID            `gorm:"column:from_branch_id;type:uuid;not null;index"`
	ToBranchID   uuid.UUID            `gorm:"column:to_branch_id;type:uuid;not null;index"`
	ProductID    uuid.UUID            `gorm:"column:product_id;type:uuid;not null"`
	Quantity     int                  `gorm:"column:quantity;not null"`
	Status       enums.TransferStatus `gorm:"column:status;type:text;not null;default:pending"`
	Notes        *string              `gorm:"column:notes"`
	RequestedBy  uuid.UUID            `gorm:"column:requested_by;type:uuid;not null"`
	DecidedBy    *uuid.UUID           `gorm:"column:decided_by;type:uuid"`
	DecidedAt    *time.Time           `gorm:"column:decided_at"`
	CompletedAt  *time.Time           `gorm:"column:completed_at"`
	FromBranch   *Branch              `gorm:"foreignKey:FromBranchID"`
	ToBranch     *Branch              `gorm:"foreignKey:ToBranchID"`
	Product      *Product             `gorm:"foreignKey:ProductID"`
	CreatedAt    time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
