package reservations

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

// Repository manages persistence for reservations.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, reservation *models.Reservation) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Reservation, error)
	GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Reservation, error)
	HasOpen(ctx context.Context, customerID, productID uuid.UUID) (bool, error)
	List(ctx context.Context, params ListReservationsParams) ([]models.Reservation, *pagination.Cursor, error)
	ListApprovedByCustomer(ctx context.Context, customerID uuid.UUID) ([]models.Reservation, error)
	UpdateStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, from, to enums.ReservationStatus, decidedBy *uuid.UUID, now time.Time) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a reservations repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// ListReservationsParams filters and paginates reservation listings.
type ListReservationsParams struct {
	CustomerID *uuid.UUID
	BranchID   *uuid.UUID
	Status     *enums.ReservationStatus
	Limit      int
	Cursor     *pagination.Cursor
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, reservation *models.Reservation) error {
	return r.db.WithContext(ctx).Create(reservation).Error
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	var reservation models.Reservation
	err := r.db.WithContext(ctx).
		Preload("Product").
		Preload("Branch").
		Where("id = ?", id).
		First(&reservation).Error
	if err != nil {
		return nil, err
	}
	return &reservation, nil
}

func (r *repository) GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Reservation, error) {
	conn := tx
	if conn == nil {
		conn = r.db
	}
	query := conn.WithContext(ctx)
	if conn.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var reservation models.Reservation
	if err := query.Where("id = ?", id).First(&reservation).Error; err != nil {
		return nil, err
	}
	return &reservation, nil
}

// HasOpen reports whether the customer already holds a pending reservation
// for the product at any branch.
func (r *repository) HasOpen(ctx context.Context, customerID, productID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Reservation{}).
		Where("customer_id = ? AND product_id = ? AND status = ?",
			customerID, productID, enums.ReservationStatusPending).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) List(ctx context.Context, params ListReservationsParams) ([]models.Reservation, *pagination.Cursor, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)

	query := r.db.WithContext(ctx).Model(&models.Reservation{}).Preload("Product").Preload("Branch")
	if params.CustomerID != nil {
		query = query.Where("customer_id = ?", *params.CustomerID)
	}
	if params.BranchID != nil {
		query = query.Where("branch_id = ?", *params.BranchID)
	}
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var reservations []models.Reservation
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&reservations).Error; err != nil {
		return nil, nil, err
	}

	if len(reservations) > normalized {
		reservations = reservations[:normalized]
		last := reservations[normalized-1]
		return reservations, &pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}, nil
	}
	return reservations, nil, nil
}

func (r *repository) ListApprovedByCustomer(ctx context.Context, customerID uuid.UUID) ([]models.Reservation, error) {
	var reservations []models.Reservation
	err := r.db.WithContext(ctx).
		Preload("Product").
		Where("customer_id = ? AND status = ?", customerID, enums.ReservationStatusApproved).
		Order("created_at ASC").
		Find(&reservations).Error
	if err != nil {
		return nil, err
	}
	return reservations, nil
}

// UpdateStatus transitions a reservation only when it still holds the
// expected source status. Zero rows affected means a concurrent writer won.
func (r *repository) UpdateStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, from, to enums.ReservationStatus, decidedBy *uuid.UUID, now time.Time) (bool, error) {
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
		Model(&models.Reservation{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
