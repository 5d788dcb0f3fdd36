package users

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/opticore/opticore-backend/pkg/db/models"
	"github.com/opticore/opticore-backend/pkg/enums"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&models.Branch{}, &models.User{}); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	return conn
}

func seedUser(t *testing.T, db *gorm.DB, role enums.Role, branchID *uuid.UUID) *models.User {
	t.Helper()
	user := &models.User{
		ID:        uuid.New(),
		Email:     uuid.NewString() + "@example.com",
		FirstName: "Test",
		LastName:  "User",
		Role:      role,
		BranchID:  branchID,
		IsActive:  true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

func TestRepository_ListByRoleFiltersBranch(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	branch := &models.Branch{ID: uuid.New(), Name: "Central", IsActive: true}
	other := &models.Branch{ID: uuid.New(), Name: "North", IsActive: true}
	if err := db.Create(branch).Error; err != nil {
		t.Fatalf("seed branch: %v", err)
	}
	if err := db.Create(other).Error; err != nil {
		t.Fatalf("seed branch: %v", err)
	}

	inBranch := seedUser(t, db, enums.RoleStaff, &branch.ID)
	seedUser(t, db, enums.RoleStaff, &other.ID)
	seedUser(t, db, enums.RoleAdmin, nil)

	staff, err := repo.ListByRole(ctx, enums.RoleStaff, &branch.ID)
	if err != nil {
		t.Fatalf("list staff: %v", err)
	}
	if len(staff) != 1 || staff[0].ID != inBranch.ID {
		t.Fatalf("unexpected staff listing: %+v", staff)
	}

	admins, err := repo.ListByRole(ctx, enums.RoleAdmin, nil)
	if err != nil {
		t.Fatalf("list admins: %v", err)
	}
	if len(admins) != 1 {
		t.Fatalf("expected 1 admin, got %d", len(admins))
	}
}

func TestRepository_AssignBranchOnlyWhenEmpty(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	first := uuid.New()
	second := uuid.New()
	user := seedUser(t, db, enums.RoleCustomer, nil)

	ok, err := repo.AssignBranch(ctx, nil, user.ID, first)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if !ok {
		t.Fatal("expected first assignment to stick")
	}

	ok, err = repo.AssignBranch(ctx, nil, user.ID, second)
	if err != nil {
		t.Fatalf("assign again: %v", err)
	}
	if ok {
		t.Fatal("expected second assignment to be a no-op")
	}

	reloaded, err := repo.GetByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if reloaded.BranchID == nil || *reloaded.BranchID != first {
		t.Fatal("home branch should keep the first assignment")
	}
}
