package models

import (
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// All models must auto-migrate onto SQLite so the package-level test
// databases can be built from them; Postgres-only column defaults live in
// the goose migrations instead of the struct tags.
func TestModelsAutoMigrateOnSQLite(t *testing.T) {
	dsn := "file:models_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	err = db.AutoMigrate(
		&User{},
		&Branch{},
		&Product{},
		&BranchStock{},
		&Reservation{},
		&StockTransfer{},
		&RestockRequest{},
		&Notification{},
	)
	if err != nil {
		t.Fatalf("auto migrate: %v", err)
	}

	branch := &Branch{ID: uuid.New(), Name: "Central", IsActive: true}
	if err := db.Create(branch).Error; err != nil {
		t.Fatalf("create branch: %v", err)
	}
}
