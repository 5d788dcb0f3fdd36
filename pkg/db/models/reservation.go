package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/opticore/opticore-backend/pkg/enums"
)

// Reservation holds a quantity of a product at a branch for a customer.
// While the reservation is pending or approved the quantity is carried in
// the ledger's reserved_quantity; completion converts it into a stock
// decrement, rejection or cancellation releases it.
type Reservation struct {
	ID         uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	CustomerID uuid.UUID               `gorm:"column:customer_id;type:uuid;not null;index"`
	BranchID   uuid.UUID               `gorm:"column:branch_id;type:uuid;not null;index"`
	ProductID  uuid.UUID               `gorm:"column:product_id;type:uuid;not null"`
	Quantity   int                     `gorm:"column:quantity;not null"`
	Status     enums.ReservationStatus `gorm:"column:status;type:text;not null;default:pending"`
	Notes      *string                 `gorm:"column:notes"`
	DecidedBy  *uuid.UUID              `gorm:"column:decided_by;type:uuid"`
	DecidedAt  *time.Time              `gorm:"column:decided_at"`
	Customer   *User                   `gorm:"foreignKey:CustomerID"`
	Branch     *Branch                 `gorm:"foreignKey:BranchID"`
	Product    *Product                `gorm:"foreignKey:ProductID"`
	CreatedAt  time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}
