package restock

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

// Repository manages persistence for restock requests.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, request *models.RestockRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.RestockRequest, error)
	GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.RestockRequest, error)
	HasOpen(ctx context.Context, branchID, productID uuid.UUID) (bool, error)
	List(ctx context.Context, params ListRestockParams) ([]models.RestockRequest, *pagination.Cursor, error)
	UpdateStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, from, to enums.RestockStatus, decidedBy *uuid.UUID, now time.Time) (bool, error)
	MarkFulfilled(ctx context.Context, tx *gorm.DB, id uuid.UUID, now time.Time) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a restock repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// ListRestockParams filters and paginates restock listings.
type ListRestockParams struct {
	BranchID  *uuid.UUID
	ProductID *uuid.UUID
	Status    *enums.RestockStatus
	Limit     int
	Cursor    *pagination.Cursor
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, request *models.RestockRequest) error {
	return r.db.WithContext(ctx).Create(request).Error
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*models.RestockRequest, error) {
	var request models.RestockRequest
	err := r.db.WithContext(ctx).
		Preload("Product").
		Preload("Branch").
		Where("id = ?", id).
		First(&request).Error
	if err != nil {
		return nil, err
	}
	return &request, nil
}

func (r *repository) GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.RestockRequest, error) {
	conn := tx
	if conn == nil {
		conn = r.db
	}
	query := conn.WithContext(ctx)
	if conn.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var request models.RestockRequest
	if err := query.Where("id = ?", id).First(&request).Error; err != nil {
		return nil, err
	}
	return &request, nil
}

func (r *repository) HasOpen(ctx context.Context, branchID, productID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.RestockRequest{}).
		Where("branch_id = ? AND product_id = ? AND status = ?",
			branchID, productID, enums.RestockStatusPending).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) List(ctx context.Context, params ListRestockParams) ([]models.RestockRequest, *pagination.Cursor, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)

	query := r.db.WithContext(ctx).Model(&models.RestockRequest{}).
		Preload("Product").
		Preload("Branch")
	if params.BranchID != nil {
		query = query.Where("branch_id = ?", *params.BranchID)
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

	var requests []models.RestockRequest
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&requests).Error; err != nil {
		return nil, nil, err
	}

	if len(requests) > normalized {
		requests = requests[:normalized]
		last := requests[normalized-1]
		return requests, &pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}, nil
	}
	return requests, nil, nil
}

func (r *repository) UpdateStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, from, to enums.RestockStatus, decidedBy *uuid.UUID, now time.Time) (bool, error) {
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
		Model(&models.RestockRequest{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) MarkFulfilled(ctx context.Context, tx *gorm.DB, id uuid.UUID, now time.Time) (bool, error) {
	conn := tx
	if conn == nil {
		conn = r.db
	}
	res := conn.WithContext(ctx).
		Model(&models.RestockRequest{}).
		Where("id = ? AND status = ?", id, enums.RestockStatusApproved).
		Updates(map[string]any{
			"status":       enums.RestockStatusFulfilled,
			"fulfilled_at": now,
			"updated_at":   now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
