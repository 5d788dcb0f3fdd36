package enums

import "fmt"

// TransferStatus tracks the lifecycle of an inter-branch stock transfer.
type TransferStatus string

const (
	TransferStatusPending   TransferStatus = "pending"
	TransferStatusApproved  TransferStatus = "approved"
	TransferStatusInTransit TransferStatus = "in_transit"
	TransferStatusCompleted TransferStatus = "completed"
	TransferStatusRejected  TransferStatus = "rejected"
	TransferStatusCancelled TransferStatus = "cancelled"
)

var validTransferStatuses = []TransferStatus{
	TransferStatusPending,
	TransferStatusApproved,
	TransferStatusInTransit,
	TransferStatusCompleted,
	TransferStatusRejected,
	TransferStatusCancelled,
}

// String implements fmt.Stringer.
func (s TransferStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known TransferStatus.
func (s TransferStatus) IsValid() bool {
	for _, candidate := range validTransferStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are allowed.
func (s TransferStatus) IsTerminal() bool {
	switch s {
	case TransferStatusCompleted, TransferStatusRejected, TransferStatusCancelled:
		return true
	}
	return false
}

// ParseTransferStatus converts raw input into a TransferStatus.
func ParseTransferStatus(value string) (TransferStatus, error) {
	for _, candidate := range validTransferStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid transfer status %q", value)
}
