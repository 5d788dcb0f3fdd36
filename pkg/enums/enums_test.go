package enums

import "testing"

func TestParseRole(t *testing.T) {
	for _, raw := range []string{"customer", "optometrist", "staff", "admin"} {
		role, err := ParseRole(raw)
		if err != nil {
			t.Fatalf("parse %q: %v", raw, err)
		}
		if !role.IsValid() {
			t.Fatalf("expected %q to be valid", raw)
		}
	}
	if _, err := ParseRole("manager"); err == nil {
		t.Fatal("expected error for unknown role")
	}
}

func TestTransferStatusTerminal(t *testing.T) {
	terminal := []TransferStatus{TransferStatusCompleted, TransferStatusRejected, TransferStatusCancelled}
	for _, status := range terminal {
		if !status.IsTerminal() {
			t.Fatalf("expected %s to be terminal", status)
		}
	}
	for _, status := range []TransferStatus{TransferStatusPending, TransferStatusApproved, TransferStatusInTransit} {
		if status.IsTerminal() {
			t.Fatalf("expected %s to be non-terminal", status)
		}
	}
}

func TestDeriveStockStatus(t *testing.T) {
	cases := []struct {
		available int
		threshold int
		want      StockStatus
	}{
		{available: 0, threshold: 5, want: StockStatusOutOfStock},
		{available: -2, threshold: 5, want: StockStatusOutOfStock},
		{available: 4, threshold: 5, want: StockStatusLowStock},
		{available: 5, threshold: 5, want: StockStatusLowStock},
		{available: 6, threshold: 5, want: StockStatusInStock},
	}
	for _, tc := range cases {
		if got := DeriveStockStatus(tc.available, tc.threshold); got != tc.want {
			t.Fatalf("available=%d threshold=%d: got %s want %s", tc.available, tc.threshold, got, tc.want)
		}
	}
}
