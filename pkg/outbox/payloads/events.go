package payloads

import (
	"time"

	"github.com/google/uuid"
)

// LoanCreatedEvent signals a copy was handed to a patron.
type LoanCreatedEvent struct {
	LoanID     uuid.UUID `json:"loan_id"`
	UserID     uuid.UUID `json:"user_id"`
	BookID     uuid.UUID `json:"book_id"`
	BookCopyID uuid.UUID `json:"book_copy_id"`
	DueAt      time.Time `json:"due_at"`
}

// LoanReturnedEvent is emitted when a copy comes back to the desk.
type LoanReturnedEvent struct {
	LoanID     uuid.UUID `json:"loan_id"`
	UserID     uuid.UUID `json:"user_id"`
	BookID     uuid.UUID `json:"book_id"`
	BookCopyID uuid.UUID `json:"book_copy_id"`
	ReturnedAt time.Time `json:"returned_at"`
	WasOverdue bool      `json:"was_overdue"`
}

// LoanExtendedEvent carries the new due date after an extension.
type LoanExtendedEvent struct {
	LoanID         uuid.UUID `json:"loan_id"`
	UserID         uuid.UUID `json:"user_id"`
	DueAt          time.Time `json:"due_at"`
	ExtensionCount int       `json:"extension_count"`
}

// LoanDueSoonEvent is the reminder payload published ahead of the due date.
type LoanDueSoonEvent struct {
	LoanID   uuid.UUID `json:"loanId"`
	UserID   uuid.UUID `json:"userId"`
	BookID   uuid.UUID `json:"bookId"`
	DueAt    time.Time `json:"dueAt"`
	DaysLeft int       `json:"daysLeft"`
}

// LoanOverdueEvent is published by the overdue sweep.
type LoanOverdueEvent struct {
	LoanID      uuid.UUID `json:"loanId"`
	UserID      uuid.UUID `json:"userId"`
	BookID      uuid.UUID `json:"bookId"`
	DueAt       time.Time `json:"dueAt"`
	DaysOverdue int       `json:"daysOverdue"`
}

// ReservationCreatedEvent signals a new spot taken in a book's hold queue.
type ReservationCreatedEvent struct {
	ReservationID uuid.UUID `json:"reservation_id"`
	UserID        uuid.UUID `json:"user_id"`
	BookID        uuid.UUID `json:"book_id"`
	QueuePosition int       `json:"queue_position"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// ReservationReadyEvent tells the patron their hold reached the front and a
// copy is waiting within the pickup window.
type ReservationReadyEvent struct {
	ReservationID uuid.UUID `json:"reservation_id"`
	UserID        uuid.UUID `json:"user_id"`
	BookID        uuid.UUID `json:"book_id"`
	PickupBy      time.Time `json:"pickup_by"`
}

// ReservationPreparedEvent is emitted when staff sets a copy aside for a hold.
type ReservationPreparedEvent struct {
	ReservationID uuid.UUID `json:"reservation_id"`
	UserID        uuid.UUID `json:"user_id"`
	BookID        uuid.UUID `json:"book_id"`
	PreparedAt    time.Time `json:"prepared_at"`
}

// ReservationFulfilledEvent closes a hold once the patron borrows the copy.
type ReservationFulfilledEvent struct {
	ReservationID uuid.UUID `json:"reservation_id"`
	UserID        uuid.UUID `json:"user_id"`
	BookID        uuid.UUID `json:"book_id"`
	LoanID        uuid.UUID `json:"loan_id"`
	FulfilledAt   time.Time `json:"fulfilled_at"`
}

// ReservationCancelledEvent is emitted for patron- or staff-initiated cancels.
type ReservationCancelledEvent struct {
	ReservationID uuid.UUID `json:"reservation_id"`
	UserID        uuid.UUID `json:"user_id"`
	BookID        uuid.UUID `json:"book_id"`
	CancelledAt   time.Time `json:"cancelled_at"`
	Reason        string    `json:"reason,omitempty"`
}

// ReservationExpiredEvent is published by the expiry sweep.
type ReservationExpiredEvent struct {
	ReservationID uuid.UUID `json:"reservationId"`
	UserID        uuid.UUID `json:"userId"`
	BookID        uuid.UUID `json:"bookId"`
	ExpiredAt     time.Time `json:"expiredAt"`
}

// CopyWithdrawnEvent records a copy leaving circulation for good.
type CopyWithdrawnEvent struct {
	BookCopyID    uuid.UUID `json:"book_copy_id"`
	BookID        uuid.UUID `json:"book_id"`
	InventoryCode string    `json:"inventory_code"`
	Reason        string    `json:"reason"`
	WithdrawnAt   time.Time `json:"withdrawn_at"`
}

// FineAssessedEvent is emitted whenever an overdue fine is created or the
// sweep grows its amount.
type FineAssessedEvent struct {
	FineID      uuid.UUID `json:"fine_id"`
	LoanID      uuid.UUID `json:"loan_id"`
	UserID      uuid.UUID `json:"user_id"`
	Amount      string    `json:"amount"`
	Currency    string    `json:"currency"`
	DaysOverdue int       `json:"days_overdue"`
}
