package alerts

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/opticore/opticore-backend/pkg/db/models"
)

// Repository runs the ledger projections behind stock alerting. Alerts are
// derived views; nothing here mutates the ledger.
type Repository interface {
	LowStock(ctx context.Context, branchID *uuid.UUID) ([]models.BranchStock, error)
	OutOfStock(ctx context.Context, branchID *uuid.UUID) ([]models.BranchStock, error)
	Expiring(ctx context.Context, branchID *uuid.UUID, now time.Time, window time.Duration) ([]models.BranchStock, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an alerts repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) LowStock(ctx context.Context, branchID *uuid.UUID) ([]models.BranchStock, error) {
	query := r.db.WithContext(ctx).
		Preload("Product").
		Preload("Branch").
		Where("stock_quantity - reserved_quantity > 0").
		Where("stock_quantity - reserved_quantity <= min_stock_threshold")
	if branchID != nil {
		query = query.Where("branch_id = ?", *branchID)
	}
	var rows []models.BranchStock
	if err := query.Order("created_at DESC, id DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) OutOfStock(ctx context.Context, branchID *uuid.UUID) ([]models.BranchStock, error) {
	query := r.db.WithContext(ctx).
		Preload("Product").
		Preload("Branch").
		Where("stock_quantity - reserved_quantity <= 0")
	if branchID != nil {
		query = query.Where("branch_id = ?", *branchID)
	}
	var rows []models.BranchStock
	if err := query.Order("created_at DESC, id DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) Expiring(ctx context.Context, branchID *uuid.UUID, now time.Time, window time.Duration) ([]models.BranchStock, error) {
	horizon := now.Add(window)
	query := r.db.WithContext(ctx).
		Preload("Product").
		Preload("Branch").
		Where("expiry_date IS NOT NULL AND expiry_date > ? AND expiry_date <= ?", now, horizon).
		Where("stock_quantity > 0")
	if branchID != nil {
		query = query.Where("branch_id = ?", *branchID)
	}
	var rows []models.BranchStock
	if err := query.Order("expiry_date ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
