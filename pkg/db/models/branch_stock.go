package models

import (
	"time"

	"github.com/google/uuid"
)

// BranchStock is one ledger row: how many units of a product a branch holds
// and how many of those are promised to pending or approved reservations.
// Invariant: stock_quantity >= reserved_quantity >= 0.
type BranchStock struct {
	ID                uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	BranchID          uuid.UUID  `gorm:"column:branch_id;type:uuid;not null;uniqueIndex:idx_branch_stock_branch_product"`
	ProductID         uuid.UUID  `gorm:"column:product_id;type:uuid;not null;uniqueIndex:idx_branch_stock_branch_product"`
	StockQuantity     int        `gorm:"column:stock_quantity;not null;default:0"`
	ReservedQuantity  int        `gorm:"column:reserved_quantity;not null;default:0"`
	MinStockThreshold int        `gorm:"column:min_stock_threshold;not null;default:5"`
	ExpiryDate        *time.Time `gorm:"column:expiry_date;type:date"`
	LastRestockAt     *time.Time `gorm:"column:last_restock_at"`
	Branch            *Branch    `gorm:"foreignKey:BranchID"`
	Product           *Product   `gorm:"foreignKey:ProductID"`
	CreatedAt         time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// AvailableQuantity is the portion of on-hand stock not promised to a
// reservation.
func (b *BranchStock) AvailableQuantity() int {
	return b.StockQuantity - b.ReservedQuantity
}

func (BranchStock) TableName() string { return "branch_stock" }
