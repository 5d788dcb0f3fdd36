package stock

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/opticore/opticore-backend/pkg/db/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(
		&models.Branch{},
		&models.Product{},
		&models.BranchStock{},
	); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	return conn
}

func seedLedgerRow(t *testing.T, db *gorm.DB, stockQty, reservedQty, threshold int) *models.BranchStock {
	t.Helper()
	branch := &models.Branch{ID: uuid.New(), Name: "Branch " + uuid.NewString()[:8], IsActive: true}
	if err := db.Create(branch).Error; err != nil {
		t.Fatalf("seed branch: %v", err)
	}
	product := &models.Product{ID: uuid.New(), SKU: uuid.NewString(), Name: "Frames", Category: "frames"}
	if err := db.Create(product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	row := &models.BranchStock{
		ID:                uuid.New(),
		BranchID:          branch.ID,
		ProductID:         product.ID,
		StockQuantity:     stockQty,
		ReservedQuantity:  reservedQty,
		MinStockThreshold: threshold,
	}
	if err := db.Create(row).Error; err != nil {
		t.Fatalf("seed branch stock: %v", err)
	}
	return row
}

func TestRepository_ReserveGuardsAvailability(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	row := seedLedgerRow(t, db, 10, 8, 5)

	ok, err := repo.Reserve(ctx, nil, row.BranchID, row.ProductID, 2)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if !ok {
		t.Fatal("expected reserve within availability to succeed")
	}

	ok, err = repo.Reserve(ctx, nil, row.BranchID, row.ProductID, 1)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if ok {
		t.Fatal("expected reserve beyond availability to fail")
	}

	current, err := repo.Get(ctx, row.BranchID, row.ProductID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if current.ReservedQuantity != 10 {
		t.Fatalf("expected reserved 10, got %d", current.ReservedQuantity)
	}
}

func TestRepository_ReleaseAndCommitReserved(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	row := seedLedgerRow(t, db, 10, 4, 5)

	ok, err := repo.Release(ctx, nil, row.BranchID, row.ProductID, 2)
	if err != nil || !ok {
		t.Fatalf("release failed: ok=%v err=%v", ok, err)
	}

	ok, err = repo.CommitReserved(ctx, nil, row.BranchID, row.ProductID, 2)
	if err != nil || !ok {
		t.Fatalf("commit failed: ok=%v err=%v", ok, err)
	}

	current, err := repo.Get(ctx, row.BranchID, row.ProductID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if current.StockQuantity != 8 || current.ReservedQuantity != 0 {
		t.Fatalf("unexpected ledger state stock=%d reserved=%d", current.StockQuantity, current.ReservedQuantity)
	}

	ok, err = repo.Release(ctx, nil, row.BranchID, row.ProductID, 1)
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if ok {
		t.Fatal("expected release with nothing reserved to fail")
	}
}

func TestRepository_DeductRespectsReservations(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	row := seedLedgerRow(t, db, 10, 6, 5)

	ok, err := repo.Deduct(ctx, nil, row.BranchID, row.ProductID, 5)
	if err != nil {
		t.Fatalf("deduct: %v", err)
	}
	if ok {
		t.Fatal("deduct should not dip into reserved units")
	}

	ok, err = repo.Deduct(ctx, nil, row.BranchID, row.ProductID, 4)
	if err != nil || !ok {
		t.Fatalf("deduct failed: ok=%v err=%v", ok, err)
	}
}

func TestRepository_AddCreatesMissingRow(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	branch := &models.Branch{ID: uuid.New(), Name: "North", IsActive: true}
	product := &models.Product{ID: uuid.New(), SKU: "SKU-1", Name: "Lens Cleaner", Category: "accessories"}
	if err := db.Create(branch).Error; err != nil {
		t.Fatalf("seed branch: %v", err)
	}
	if err := db.Create(product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}

	if err := repo.Add(ctx, nil, branch.ID, product.ID, 7); err != nil {
		t.Fatalf("add: %v", err)
	}
	row, err := repo.Get(ctx, branch.ID, product.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if row.StockQuantity != 7 {
		t.Fatalf("expected stock 7, got %d", row.StockQuantity)
	}

	if err := repo.Add(ctx, nil, branch.ID, product.ID, 3); err != nil {
		t.Fatalf("add existing: %v", err)
	}
	row, err = repo.Get(ctx, branch.ID, product.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if row.StockQuantity != 10 {
		t.Fatalf("expected stock 10, got %d", row.StockQuantity)
	}
}

func TestRepository_CountByStatus(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	seedLedgerRow(t, db, 10, 2, 5)  // in stock
	seedLedgerRow(t, db, 5, 2, 5)   // low: available 3 <= 5
	seedLedgerRow(t, db, 4, 4, 5)   // out: available 0

	expiring := seedLedgerRow(t, db, 6, 0, 2)
	soon := time.Now().UTC().Add(10 * 24 * time.Hour)
	if err := db.Model(expiring).Update("expiry_date", soon).Error; err != nil {
		t.Fatalf("set expiry: %v", err)
	}

	// Already past its date: counts as expired, never as expiring soon.
	lapsed := seedLedgerRow(t, db, 6, 0, 2)
	past := time.Now().UTC().Add(-2 * 24 * time.Hour)
	if err := db.Model(lapsed).Update("expiry_date", past).Error; err != nil {
		t.Fatalf("set expiry: %v", err)
	}

	counts, err := repo.CountByStatus(ctx, nil, time.Now().UTC(), 30*24*time.Hour)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if counts.TotalRows != 5 {
		t.Fatalf("expected 5 rows, got %d", counts.TotalRows)
	}
	if counts.OutOfStock != 1 {
		t.Fatalf("expected 1 out of stock, got %d", counts.OutOfStock)
	}
	if counts.LowStock != 1 {
		t.Fatalf("expected 1 low stock, got %d", counts.LowStock)
	}
	if counts.ExpiringSoon != 1 {
		t.Fatalf("expected 1 expiring, got %d", counts.ExpiringSoon)
	}
	if counts.TotalUnits != 31 || counts.ReservedUnits != 8 {
		t.Fatalf("unexpected sums units=%d reserved=%d", counts.TotalUnits, counts.ReservedUnits)
	}
}
