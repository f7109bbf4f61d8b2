package enums

import "fmt"

// NotificationType classifies the notification rows shown to patrons.
type NotificationType string

const (
	NotificationReservationReady   NotificationType = "reservation_ready"
	NotificationReservationQueued  NotificationType = "reservation_queued"
	NotificationReservationExpired NotificationType = "reservation_expired"
	NotificationLoanCreated        NotificationType = "loan_created"
	NotificationLoanReturned       NotificationType = "loan_returned"
	NotificationLoanDueSoon        NotificationType = "loan_due_soon"
	NotificationLoanOverdue        NotificationType = "loan_overdue"
	NotificationFineAssessed       NotificationType = "fine_assessed"
)

var validNotificationTypes = []NotificationType{
	NotificationReservationReady,
	NotificationReservationQueued,
	NotificationReservationExpired,
	NotificationLoanCreated,
	NotificationLoanReturned,
	NotificationLoanDueSoon,
	NotificationLoanOverdue,
	NotificationFineAssessed,
}

// String implements fmt.Stringer.
func (n NotificationType) String() string {
	return string(n)
}

// IsValid reports whether the value is a known NotificationType.
func (n NotificationType) IsValid() bool {
	for _, candidate := range validNotificationTypes {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationType converts raw input into a NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	for _, candidate := range validNotificationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification type %q", value)
}
