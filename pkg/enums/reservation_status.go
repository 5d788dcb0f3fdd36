package enums

import "fmt"

// ReservationStatus tracks the lifecycle of a customer stock reservation.
type ReservationStatus string

const (
	ReservationStatusPending   ReservationStatus = "pending"
	ReservationStatusApproved  ReservationStatus = "approved"
	ReservationStatusRejected  ReservationStatus = "rejected"
	ReservationStatusCompleted ReservationStatus = "completed"
	ReservationStatusCancelled ReservationStatus = "cancelled"
)

var validReservationStatuses = []ReservationStatus{
	ReservationStatusPending,
	ReservationStatusApproved,
	ReservationStatusRejected,
	ReservationStatusCompleted,
	ReservationStatusCancelled,
}

// String implements fmt.Stringer.
func (s ReservationStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known ReservationStatus.
func (s ReservationStatus) IsValid() bool {
	for _, candidate := range validReservationStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are allowed.
func (s ReservationStatus) IsTerminal() bool {
	switch s {
	case ReservationStatusRejected, ReservationStatusCompleted, ReservationStatusCancelled:
		return true
	}
	return false
}

// ParseReservationStatus converts raw input into a ReservationStatus.
func ParseReservationStatus(value string) (ReservationStatus, error) {
	for _, candidate := range validReservationStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid reservation status %q", value)
}
