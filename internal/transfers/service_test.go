package transfers

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/opticore/opticore-backend/internal/stock"
	"github.com/opticore/opticore-backend/pkg/db/models"
	"github.com/opticore/opticore-backend/pkg/enums"
	pkgerrors "github.com/opticore/opticore-backend/pkg/errors"
)

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(tx)
	})
}

type fixture struct {
	db      *gorm.DB
	svc     Service
	source  *models.Branch
	dest    *models.Branch
	product *models.Product
	staff   *models.User
	stock   stock.Repository
}

func newFixture(t *testing.T, sourceStock, sourceReserved int) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Branch{},
		&models.Product{},
		&models.User{},
		&models.BranchStock{},
		&models.StockTransfer{},
		&models.Notification{},
	); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}

	source := &models.Branch{ID: uuid.New(), Name: "Source", IsActive: true}
	dest := &models.Branch{ID: uuid.New(), Name: "Destination", IsActive: true}
	product := &models.Product{ID: uuid.New(), SKU: "LN-200", Name: "Blue Light Lenses", Category: "lenses"}
	staff := &models.User{
		ID: uuid.New(), Email: "staff@example.com",
		FirstName: "Sam", LastName: "Cho",
		Role: enums.RoleStaff, BranchID: &source.ID, IsActive: true,
	}
	ledger := &models.BranchStock{
		ID: uuid.New(), BranchID: source.ID, ProductID: product.ID,
		StockQuantity: sourceStock, ReservedQuantity: sourceReserved, MinStockThreshold: 5,
	}
	for _, seed := range []any{source, dest, product, staff, ledger} {
		if err := db.Create(seed).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	stockRepo := stock.NewRepository(db)
	svc, err := NewService(NewRepository(db), stockRepo, gormTxRunner{db: db}, nil)
	if err != nil {
		t.Fatalf("transfers service: %v", err)
	}
	return &fixture{db: db, svc: svc, source: source, dest: dest, product: product, staff: staff, stock: stockRepo}
}

func (f *fixture) create(t *testing.T, qty int) *models.StockTransfer {
	t.Helper()
	transfer, err := f.svc.Create(context.Background(), CreateInput{
		FromBranchID: f.source.ID,
		ToBranchID:   f.dest.ID,
		ProductID:    f.product.ID,
		Quantity:     qty,
		RequestedBy:  f.staff.ID,
	})
	if err != nil {
		t.Fatalf("create transfer: %v", err)
	}
	return transfer
}

func TestService_CreateValidations(t *testing.T) {
	f := newFixture(t, 10, 0)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, CreateInput{
		FromBranchID: f.source.ID, ToBranchID: f.source.ID,
		ProductID: f.product.ID, Quantity: 1, RequestedBy: f.staff.ID,
	})
	if err == nil {
		t.Fatal("expected same-branch validation error")
	}

	_, err = f.svc.Create(ctx, CreateInput{
		FromBranchID: f.source.ID, ToBranchID: f.dest.ID,
		ProductID: f.product.ID, Quantity: 11, RequestedBy: f.staff.ID,
	})
	if err == nil {
		t.Fatal("expected insufficiency error")
	}
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeInsufficientStock {
		t.Fatalf("expected insufficient stock code, got %v", err)
	}
}

func TestService_CreateDuplicatePendingConflicts(t *testing.T) {
	f := newFixture(t, 10, 0)
	f.create(t, 2)

	_, err := f.svc.Create(context.Background(), CreateInput{
		FromBranchID: f.source.ID, ToBranchID: f.dest.ID,
		ProductID: f.product.ID, Quantity: 1, RequestedBy: f.staff.ID,
	})
	if err == nil {
		t.Fatal("expected conflict for open route")
	}
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict code, got %v", err)
	}
}

func TestService_CreateDuplicateApprovedConflicts(t *testing.T) {
	f := newFixture(t, 10, 0)
	ctx := context.Background()
	transfer := f.create(t, 2)

	if _, err := f.svc.Approve(ctx, transfer.ID, f.staff.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}

	// The route stays blocked until the transfer reaches a terminal status.
	_, err := f.svc.Create(ctx, CreateInput{
		FromBranchID: f.source.ID, ToBranchID: f.dest.ID,
		ProductID: f.product.ID, Quantity: 1, RequestedBy: f.staff.ID,
	})
	if err == nil {
		t.Fatal("expected conflict for duplicate in-flight transfer")
	}
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict code, got %v", err)
	}

	if _, err := f.svc.Complete(ctx, transfer.ID, f.staff.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if _, err := f.svc.Create(ctx, CreateInput{
		FromBranchID: f.source.ID, ToBranchID: f.dest.ID,
		ProductID: f.product.ID, Quantity: 1, RequestedBy: f.staff.ID,
	}); err != nil {
		t.Fatalf("completed transfer must unblock the route: %v", err)
	}
}

func TestService_ApproveRejectsWhenStockDrained(t *testing.T) {
	f := newFixture(t, 10, 0)
	ctx := context.Background()
	transfer := f.create(t, 8)

	// Drain availability after the request was filed.
	if ok, err := f.stock.Deduct(ctx, nil, f.source.ID, f.product.ID, 5); err != nil || !ok {
		t.Fatalf("drain stock: ok=%v err=%v", ok, err)
	}

	updated, err := f.svc.Approve(ctx, transfer.ID, f.staff.ID)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if updated.Status != enums.TransferStatusRejected {
		t.Fatalf("expected auto-reject on shortfall, got %s", updated.Status)
	}

	reloaded, err := f.svc.Get(ctx, transfer.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if reloaded.Status != enums.TransferStatusRejected {
		t.Fatalf("unfillable transfer should land on rejected, got %s", reloaded.Status)
	}
}

func TestService_CompleteMovesStock(t *testing.T) {
	f := newFixture(t, 10, 0)
	ctx := context.Background()
	transfer := f.create(t, 4)

	if _, err := f.svc.Approve(ctx, transfer.ID, f.staff.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}
	completed, err := f.svc.Complete(ctx, transfer.ID, f.staff.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if completed.Status != enums.TransferStatusCompleted {
		t.Fatalf("expected completed, got %s", completed.Status)
	}
	if completed.CompletedAt == nil {
		t.Fatal("expected completed_at to be set")
	}

	sourceRow, err := f.stock.Get(ctx, f.source.ID, f.product.ID)
	if err != nil {
		t.Fatalf("source ledger: %v", err)
	}
	if sourceRow.StockQuantity != 6 {
		t.Fatalf("expected source stock 6, got %d", sourceRow.StockQuantity)
	}

	destRow, err := f.stock.Get(ctx, f.dest.ID, f.product.ID)
	if err != nil {
		t.Fatalf("destination ledger: %v", err)
	}
	if destRow.StockQuantity != 4 {
		t.Fatalf("expected destination stock 4, got %d", destRow.StockQuantity)
	}
}

func TestService_CompleteRespectsReservedUnits(t *testing.T) {
	f := newFixture(t, 10, 0)
	ctx := context.Background()
	transfer := f.create(t, 8)

	if _, err := f.svc.Approve(ctx, transfer.ID, f.staff.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}

	// Reservations arrive between approval and hand-off.
	if ok, err := f.stock.Reserve(ctx, nil, f.source.ID, f.product.ID, 5); err != nil || !ok {
		t.Fatalf("reserve: ok=%v err=%v", ok, err)
	}

	_, err := f.svc.Complete(ctx, transfer.ID, f.staff.ID)
	if err == nil {
		t.Fatal("expected insufficiency error")
	}
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeInsufficientStock {
		t.Fatalf("expected insufficient stock code, got %v", err)
	}

	sourceRow, err := f.stock.Get(ctx, f.source.ID, f.product.ID)
	if err != nil {
		t.Fatalf("source ledger: %v", err)
	}
	if sourceRow.StockQuantity != 10 {
		t.Fatalf("failed completion must not move stock, got %d", sourceRow.StockQuantity)
	}
}

func TestService_CancelFromApproved(t *testing.T) {
	f := newFixture(t, 10, 0)
	ctx := context.Background()
	transfer := f.create(t, 2)

	if _, err := f.svc.Approve(ctx, transfer.ID, f.staff.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}
	cancelled, err := f.svc.Cancel(ctx, transfer.ID, f.staff.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != enums.TransferStatusCancelled {
		t.Fatalf("expected cancelled, got %s", cancelled.Status)
	}

	if _, err := f.svc.Complete(ctx, transfer.ID, f.staff.ID); err == nil {
		t.Fatal("expected state conflict completing a cancelled transfer")
	}
}

func TestService_DispatchThenComplete(t *testing.T) {
	f := newFixture(t, 10, 0)
	ctx := context.Background()
	transfer := f.create(t, 3)

	if _, err := f.svc.Approve(ctx, transfer.ID, f.staff.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}
	inTransit, err := f.svc.Dispatch(ctx, transfer.ID, f.staff.ID)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if inTransit.Status != enums.TransferStatusInTransit {
		t.Fatalf("expected in_transit, got %s", inTransit.Status)
	}

	if _, err := f.svc.Complete(ctx, transfer.ID, f.staff.ID); err != nil {
		t.Fatalf("complete from in_transit: %v", err)
	}
}
