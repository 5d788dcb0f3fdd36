package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is a catalog entry (frames, lenses, solutions). Pricing is kept as
// an exact decimal so reservation billing never accumulates float error.
type Product struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	SKU         string          `gorm:"column:sku;not null;uniqueIndex"`
	Name        string          `gorm:"column:name;not null"`
	Description *string         `gorm:"column:description"`
	Category    string          `gorm:"column:category;not null"`
	Brand       *string         `gorm:"column:brand"`
	Price       decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	IsActive    bool            `gorm:"column:is_active;not null;default:true"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
