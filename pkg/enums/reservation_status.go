package enums

import "fmt"

// ReservationStatus tracks a reservation through its lifecycle. FULFILLED,
// CANCELLED and EXPIRED are terminal.
type ReservationStatus string

const (
	ReservationStatusActive    ReservationStatus = "ACTIVE"
	ReservationStatusPrepared  ReservationStatus = "PREPARED"
	ReservationStatusFulfilled ReservationStatus = "FULFILLED"
	ReservationStatusCancelled ReservationStatus = "CANCELLED"
	ReservationStatusExpired   ReservationStatus = "EXPIRED"
)

var validReservationStatuses = []ReservationStatus{
	ReservationStatusActive,
	ReservationStatusPrepared,
	ReservationStatusFulfilled,
	ReservationStatusCancelled,
	ReservationStatusExpired,
}

// String implements fmt.Stringer.
func (r ReservationStatus) String() string {
	return string(r)
}

// IsValid reports whether the value is a known ReservationStatus.
func (r ReservationStatus) IsValid() bool {
	for _, candidate := range validReservationStatuses {
		if candidate == r {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the reservation can never change state again.
func (r ReservationStatus) IsTerminal() bool {
	switch r {
	case ReservationStatusFulfilled, ReservationStatusCancelled, ReservationStatusExpired:
		return true
	default:
		return false
	}
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
