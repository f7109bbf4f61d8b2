package reservations

import (
	"time"

	"github.com/google/uuid"

	"github.com/barthig/Biblioteka-sub002/pkg/enums"
)

// CreateReservationInput places a user in a book's hold queue.
type CreateReservationInput struct {
	UserID        uuid.UUID
	BookID        uuid.UUID
	ExpiresInDays *int
	ActorUserID   uuid.UUID
	ActorRole     string
}

// CancelReservationInput cancels a hold, either by the owner or by staff.
type CancelReservationInput struct {
	ReservationID uuid.UUID
	Reason        string
	ActorUserID   uuid.UUID
	ActorRole     string
}

// PrepareReservationInput marks an assigned copy as physically set aside.
type PrepareReservationInput struct {
	ReservationID uuid.UUID
	ActorUserID   uuid.UUID
	ActorRole     string
}

// ReservationSummary is the row shown in a user's reservation list and in a
// book's queue view.
type ReservationSummary struct {
	ID            uuid.UUID               `json:"id"`
	BookID        uuid.UUID               `json:"book_id"`
	UserID        uuid.UUID               `json:"user_id"`
	Status        enums.ReservationStatus `json:"status"`
	ReservedAt    time.Time               `json:"reserved_at"`
	ExpiresAt     time.Time               `json:"expires_at"`
	QueuePosition int                     `json:"queue_position,omitempty"`
	CopyAssigned  bool                    `json:"copy_assigned"`
}

// ReservationList wraps a paginated reservation set.
type ReservationList struct {
	Reservations []ReservationSummary `json:"reservations"`
	NextCursor   string               `json:"next_cursor,omitempty"`
}
