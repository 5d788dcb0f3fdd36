package enums

// StockStatus is the availability tier derived from a ledger entry.
type StockStatus string

const (
	StockStatusInStock    StockStatus = "in_stock"
	StockStatusLowStock   StockStatus = "low_stock"
	StockStatusOutOfStock StockStatus = "out_of_stock"
)

// String implements fmt.Stringer.
func (s StockStatus) String() string {
	return string(s)
}

// DeriveStockStatus computes the tier from available quantity and the
// low-stock threshold.
func DeriveStockStatus(available, threshold int) StockStatus {
	switch {
	case available <= 0:
		return StockStatusOutOfStock
	case available <= threshold:
		return StockStatusLowStock
	default:
		return StockStatusInStock
	}
}
