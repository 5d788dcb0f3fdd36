package transfers

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/opticore/opticore-backend/pkg/db/models"
	"github.com/opticore/opticore-backend/pkg/enums"
	"github.com/opticore/opticore-backend/pkg/pagination"
)

// Repository manages persistence for inter-branch stock transfers.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, transfer *models.StockTransfer) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.StockTransfer, error)
	GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.StockTransfer, error)
	HasOpen(ctx context.Context, fromBranchID, toBranchID, productID uuid.UUID) (bool, error)
	List(ctx context.Context, params ListTransfersParams) ([]models.StockTransfer, *pagination.Cursor, error)
	UpdateStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, from, to enums.TransferStatus, decidedBy *uuid.UUID, now time.Time) (bool, error)
	MarkCompleted(ctx context.Context, tx *gorm.DB, id uuid.UUID, from enums.TransferStatus, now time.Time) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a transfers repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// ListTransfersParams filters and paginates transfer listings. BranchID
// matches either end of the route.
type ListTransfersParams struct {
	BranchID  *uuid.UUID
	ProductID *uuid.UUID
	Status    *enums.TransferStatus
	Limit     int
	Cursor    *pagination.Cursor
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, transfer *models.StockTransfer) error {
	return r.db.WithContext(ctx).Create(transfer).Error
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*models.StockTransfer, error) {
	var transfer models.StockTransfer
	err := r.db.WithContext(ctx).
		Preload("Product").
		Preload("FromBranch").
		Preload("ToBranch").
		Where("id = ?", id).
		First(&transfer).Error
	if err != nil {
		return nil, err
	}
	return &transfer, nil
}

func (r *repository) GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.StockTransfer, error) {
	conn := tx
	if conn == nil {
		conn = r.db
	}
	query := conn.WithContext(ctx)
	if conn.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var transfer models.StockTransfer
	if err := query.Where("id = ?", id).First(&transfer).Error; err != nil {
		return nil, err
	}
	return &transfer, nil
}

// HasOpen reports whether a non-terminal transfer already exists for the
// product and route. Approved and in-transit transfers still block a
// duplicate, not just pending ones.
func (r *repository) HasOpen(ctx context.Context, fromBranchID, toBranchID, productID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.StockTransfer{}).
		Where("from_branch_id = ? AND to_branch_id = ? AND product_id = ? AND status IN ?",
			fromBranchID, toBranchID, productID,
			[]enums.TransferStatus{enums.TransferStatusPending, enums.TransferStatusApproved, enums.TransferStatusInTransit}).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) List(ctx context.Context, params ListTransfersParams) ([]models.StockTransfer, *pagination.Cursor, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)

	query := r.db.WithContext(ctx).Model(&models.StockTransfer{}).
		Preload("Product").
		Preload("FromBranch").
		Preload("ToBranch")
	if params.BranchID != nil {
		query = query.Where("from_branch_id = ? OR to_branch_id = ?", *params.BranchID, *params.BranchID)
	}
	if params.ProductID != nil {
		query = query.Where("product_id = ?", *params.ProductID)
	}
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var transfers []models.StockTransfer
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&transfers).Error; err != nil {
		return nil, nil, err
	}

	if len(transfers) > normalized {
		transfers = transfers[:normalized]
		last := transfers[normalized-1]
		return transfers, &pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}, nil
	}
	return transfers, nil, nil
}

// UpdateStatus transitions a transfer only when it still holds the expected
// source status.
func (r *repository) UpdateStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, from, to enums.TransferStatus, decidedBy *uuid.UUID, now time.Time) (bool, error) {
	conn := tx
	if conn == nil {
		conn = r.db
	}
	updates := map[string]any{
		"status":     to,
		"updated_at": now,
	}
	if decidedBy != nil {
		updates["decided_by"] = *decidedBy
		updates["decided_at"] = now
	}
	res := conn.WithContext(ctx).
		Model(&models.StockTransfer{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) MarkCompleted(ctx context.Context, tx *gorm.DB, id uuid.UUID, from enums.TransferStatus, now time.Time) (bool, error) {
	conn := tx
	if conn == nil {
		conn = r.db
	}
	res := conn.WithContext(ctx).
		Model(&models.StockTransfer{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{
			"status":       enums.TransferStatusCompleted,
			"completed_at": now,
			"updated_at":   now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
