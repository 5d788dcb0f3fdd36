package enums

import "fmt"

// NotificationType maps to the notification_type enum in Postgres.
type NotificationType string

const (
	NotificationTypeLowStock        NotificationType = "low_stock"
	NotificationTypeOutOfStock      NotificationType = "out_of_stock"
	NotificationTypeExpiringStock   NotificationType = "expiring_stock"
	NotificationTypeReservation     NotificationType = "reservation"
	NotificationTypeTransferUpdate  NotificationType = "transfer_update"
	NotificationTypeRestockUpdate   NotificationType = "restock_update"
	NotificationTypeSystemBroadcast NotificationType = "system_broadcast"
)

var validNotificationTypes = []NotificationType{
	NotificationTypeLowStock,
	NotificationTypeOutOfStock,
	NotificationTypeExpiringStock,
	NotificationTypeReservation,
	NotificationTypeTransferUpdate,
	NotificationTypeRestockUpdate,
	NotificationTypeSystemBroadcast,
}

// IsValid checks whether the given type matches the canonical enum.
func (n NotificationType) IsValid() bool {
	for _, candidate := range validNotificationTypes {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationType converts raw strings into NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	for _, candidate := range validNotificationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification type %q", value)
}
