package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestBranchStockMigrationContainsConstraints(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_products_and_branch_stock.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no branch stock migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TABLE IF NOT EXISTS branch_stock",
		"FOREIGN KEY (branch_id) REFERENCES branches(id) ON DELETE CASCADE",
		"FOREIGN KEY (product_id) REFERENCES products(id) ON DELETE CASCADE",
		"CHECK (reserved_quantity >= 0)",
		"CHECK (stock_quantity >= reserved_quantity)",
		"UNIQUE (branch_id, product_id)",
		"DROP TABLE IF EXISTS branch_stock",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestWorkflowMigrationsHaveOpenRowBackstops(t *testing.T) {
	cases := map[string]struct {
		index     string
		predicate string
	}{
		"*_create_reservations.sql": {
			index:     "uq_reservations_open",
			predicate: "WHERE status = 'pending'",
		},
		// Transfers stay blocked for the whole non-terminal lifecycle, not
		// just while pending.
		"*_create_stock_transfers.sql": {
			index:     "uq_stock_transfers_open",
			predicate: "WHERE status IN ('pending', 'approved', 'in_transit')",
		},
		"*_create_restock_requests.sql": {
			index:     "uq_restock_requests_open",
			predicate: "WHERE status = 'pending'",
		},
	}

	for pattern, want := range cases {
		matches, err := filepath.Glob(filepath.Join("migrations", pattern))
		if err != nil {
			t.Fatalf("glob %s: %v", pattern, err)
		}
		if len(matches) == 0 {
			t.Fatalf("no migration matching %s", pattern)
		}
		data, err := os.ReadFile(matches[0])
		if err != nil {
			t.Fatalf("read migration file: %v", err)
		}
		if !strings.Contains(string(data), want.index) {
			t.Errorf("migration %s missing partial unique index %q", matches[0], want.index)
		}
		if !strings.Contains(string(data), want.predicate) {
			t.Errorf("migration %s backstop missing predicate %q", matches[0], want.predicate)
		}
	}
}

func TestMigrationsDirValidates(t *testing.T) {
	entries, err := os.ReadDir("migrations")
	if err != nil {
		t.Fatalf("read migrations dir: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("expected migration files")
	}
	for _, e := range entries {
		data, err := os.ReadFile(filepath.Join("migrations", e.Name()))
		if err != nil {
			t.Fatalf("read %s: %v", e.Name(), err)
		}
		if !strings.Contains(string(data), "-- +goose Up") || !strings.Contains(string(data), "-- +goose Down") {
			t.Errorf("migration %s missing goose markers", e.Name())
		}
	}
}
