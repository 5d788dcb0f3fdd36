package stock

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/opticore/opticore-backend/pkg/db/models"
	"github.com/opticore/opticore-backend/pkg/pagination"
)

// Repository manages persistence for branch stock ledger rows. The guarded
// mutation helpers enforce stock_quantity >= reserved_quantity >= 0 at the
// SQL level so concurrent writers cannot drive a row negative.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Get(ctx context.Context, branchID, productID uuid.UUID) (*models.BranchStock, error)
	GetForUpdate(ctx context.Context, tx *gorm.DB, branchID, productID uuid.UUID) (*models.BranchStock, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.BranchStock, error)
	ListByBranch(ctx context.Context, params ListStockParams) ([]models.BranchStock, *pagination.Cursor, error)
	Upsert(ctx context.Context, row *models.BranchStock) error
	Reserve(ctx context.Context, tx *gorm.DB, branchID, productID uuid.UUID, qty int) (bool, error)
	Release(ctx context.Context, tx *gorm.DB, branchID, productID uuid.UUID, qty int) (bool, error)
	CommitReserved(ctx context.Context, tx *gorm.DB, branchID, productID uuid.UUID, qty int) (bool, error)
	Deduct(ctx context.Context, tx *gorm.DB, branchID, productID uuid.UUID, qty int) (bool, error)
	Add(ctx context.Context, tx *gorm.DB, branchID, productID uuid.UUID, qty int) error
	CountByStatus(ctx context.Context, branchID *uuid.UUID, now time.Time, expiryWindow time.Duration) (*SummaryCounts, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a stock repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// ListStockParams filters and paginates ledger listings.
type ListStockParams struct {
	BranchID  *uuid.UUID
	ProductID *uuid.UUID
	Limit     int
	Cursor    *pagination.Cursor
}

// SummaryCounts aggregates ledger health for a branch or the whole network.
type SummaryCounts struct {
	TotalRows     int64
	LowStock      int64
	OutOfStock    int64
	ExpiringSoon  int64
	TotalUnits    int64
	ReservedUnits int64
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Get(ctx context.Context, branchID, productID uuid.UUID) (*models.BranchStock, error) {
	var row models.BranchStock
	err := r.db.WithContext(ctx).
		Where("branch_id = ? AND product_id = ?", branchID, productID).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// GetForUpdate loads the ledger row holding a row lock for the duration of
// the transaction. SQLite has no FOR UPDATE; its writers serialize anyway.
func (r *repository) GetForUpdate(ctx context.Context, tx *gorm.DB, branchID, productID uuid.UUID) (*models.BranchStock, error) {
	conn := tx
	if conn == nil {
		conn = r.db
	}
	query := conn.WithContext(ctx)
	if conn.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var row models.BranchStock
	if err := query.Where("branch_id = ? AND product_id = ?", branchID, productID).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*models.BranchStock, error) {
	var row models.BranchStock
	err := r.db.WithContext(ctx).
		Preload("Product").
		Preload("Branch").
		Where("id = ?", id).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) ListByBranch(ctx context.Context, params ListStockParams) ([]models.BranchStock, *pagination.Cursor, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)

	query := r.db.WithContext(ctx).Model(&models.BranchStock{}).Preload("Product")
	if params.BranchID != nil {
		query = query.Where("branch_id = ?", *params.BranchID)
	}
	if params.ProductID != nil {
		query = query.Where("product_id = ?", *params.ProductID)
	}
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var rows []models.BranchStock
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, nil, err
	}

	if len(rows) > normalized {
		rows = rows[:normalized]
		// The cursor marks the last row handed out; the next page resumes
		// strictly after it.
		last := rows[normalized-1]
		return rows, &pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}, nil
	}
	return rows, nil, nil
}

func (r *repository) Upsert(ctx context.Context, row *models.BranchStock) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "branch_id"}, {Name: "product_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"stock_quantity", "min_stock_threshold", "expiry_date", "updated_at",
			}),
		}).
		Create(row).Error
}

func (r *repository) Reserve(ctx context.Context, tx *gorm.DB, branchID, productID uuid.UUID, qty int) (bool, error) {
	return r.guardedExec(ctx, tx, `
		UPDATE branch_stock
		SET reserved_quantity = reserved_quantity + ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE branch_id = ? AND product_id = ?
		  AND stock_quantity - reserved_quantity >= ?
	`, qty, branchID, productID, qty)
}

func (r *repository) Release(ctx context.Context, tx *gorm.DB, branchID, productID uuid.UUID, qty int) (bool, error) {
	return r.guardedExec(ctx, tx, `
		UPDATE branch_stock
		SET reserved_quantity = reserved_quantity - ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE branch_id = ? AND product_id = ?
		  AND reserved_quantity >= ?
	`, qty, branchID, productID, qty)
}

func (r *repository) CommitReserved(ctx context.Context, tx *gorm.DB, branchID, productID uuid.UUID, qty int) (bool, error) {
	return r.guardedExec(ctx, tx, `
		UPDATE branch_stock
		SET stock_quantity = stock_quantity - ?,
			reserved_quantity = reserved_quantity - ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE branch_id = ? AND product_id = ?
		  AND stock_quantity >= ? AND reserved_quantity >= ?
	`, qty, qty, branchID, productID, qty, qty)
}

func (r *repository) Deduct(ctx context.Context, tx *gorm.DB, branchID, productID uuid.UUID, qty int) (bool, error) {
	return r.guardedExec(ctx, tx, `
		UPDATE branch_stock
		SET stock_quantity = stock_quantity - ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE branch_id = ? AND product_id = ?
		  AND stock_quantity - reserved_quantity >= ?
	`, qty, branchID, productID, qty)
}

// Add increments on-hand stock, creating the ledger row when the branch has
// never held the product before. Every credit stamps last_restock_at so the
// ledger shows when stock last arrived.
func (r *repository) Add(ctx context.Context, tx *gorm.DB, branchID, productID uuid.UUID, qty int) error {
	conn := tx
	if conn == nil {
		conn = r.db
	}
	now := time.Now().UTC()
	res := conn.WithContext(ctx).Exec(`
		UPDATE branch_stock
		SET stock_quantity = stock_quantity + ?,
			last_restock_at = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE branch_id = ? AND product_id = ?
	`, qty, now, branchID, productID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	row := &models.BranchStock{
		BranchID:      branchID,
		ProductID:     productID,
		StockQuantity: qty,
		LastRestockAt: &now,
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	return conn.WithContext(ctx).Create(row).Error
}

func (r *repository) CountByStatus(ctx context.Context, branchID *uuid.UUID, now time.Time, expiryWindow time.Duration) (*SummaryCounts, error) {
	base := r.db.WithContext(ctx).Model(&models.BranchStock{})
	if branchID != nil {
		base = base.Where("branch_id = ?", *branchID)
	}

	counts := &SummaryCounts{}
	if err := base.Session(&gorm.Session{}).Count(&counts.TotalRows).Error; err != nil {
		return nil, err
	}
	if err := base.Session(&gorm.Session{}).
		Where("stock_quantity - reserved_quantity <= 0").
		Count(&counts.OutOfStock).Error; err != nil {
		return nil, err
	}
	if err := base.Session(&gorm.Session{}).
		Where("stock_quantity - reserved_quantity > 0").
		Where("stock_quantity - reserved_quantity <= min_stock_threshold").
		Count(&counts.LowStock).Error; err != nil {
		return nil, err
	}
	horizon := now.Add(expiryWindow)
	if err := base.Session(&gorm.Session{}).
		Where("expiry_date IS NOT NULL AND expiry_date > ? AND expiry_date <= ?", now, horizon).
		Where("stock_quantity > 0").
		Count(&counts.ExpiringSoon).Error; err != nil {
		return nil, err
	}

	type totals struct {
		Stock    int64
		Reserved int64
	}
	var sums totals
	if err := base.Session(&gorm.Session{}).
		Select("COALESCE(SUM(stock_quantity), 0) AS stock, COALESCE(SUM(reserved_quantity), 0) AS reserved").
		Scan(&sums).Error; err != nil {
		return nil, err
	}
	counts.TotalUnits = sums.Stock
	counts.ReservedUnits = sums.Reserved
	return counts, nil
}

func (r *repository) guardedExec(ctx context.Context, tx *gorm.DB, sql string, args ...any) (bool, error) {
	conn := tx
	if conn == nil {
		conn = r.db
	}
	res := conn.WithContext(ctx).Exec(sql, args...)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
