package enums

import "fmt"

// RestockStatus tracks the lifecycle of a branch restock request.
type RestockStatus string

const (
	RestockStatusPending   RestockStatus = "pending"
	RestockStatusApproved  RestockStatus = "approved"
	RestockStatusRejected  RestockStatus = "rejected"
	RestockStatusFulfilled RestockStatus = "fulfilled"
)

var validRestockStatuses = []RestockStatus{
	RestockStatusPending,
	RestockStatusApproved,
	RestockStatusRejected,
	RestockStatusFulfilled,
}

// String implements fmt.Stringer.
func (s RestockStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known RestockStatus.
func (s RestockStatus) IsValid() bool {
	for _, candidate := range validRestockStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseRestockStatus converts raw input into a RestockStatus.
func ParseRestockStatus(value string) (RestockStatus, error) {
	for _, candidate := range validRestockStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid restock status %q", value)
}
