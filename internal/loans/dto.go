package loans

import (
	"time"

	"github.com/google/uuid"
)

// CreateLoanInput lends a copy to a user. PreferredCopyID lets staff lend a
// specific physical copy; when absent the service resolves one.
type CreateLoanInput struct {
	UserID          uuid.UUID
	BookID          uuid.UUID
	PreferredCopyID *uuid.UUID
	ActorUserID     uuid.UUID
	ActorRole       string
}

// PickUpInput converts a reservation with an assigned copy into a loan at
// the desk.
type PickUpInput struct {
	ReservationID uuid.UUID
	ActorUserID   uuid.UUID
	ActorRole     string
}

// ReturnLoanInput closes a loan and frees or hands off its copy.
type ReturnLoanInput struct {
	LoanID      uuid.UUID
	ActorUserID uuid.UUID
	ActorRole   string
}

// ExtendLoanInput pushes the due date out by one loan period.
type ExtendLoanInput struct {
	LoanID      uuid.UUID
	ActorUserID uuid.UUID
	ActorRole   string
}

// ReturnResult reports what happened to the freed copy.
type ReturnResult struct {
	LoanID          uuid.UUID  `json:"loan_id"`
	ReturnedAt      time.Time  `json:"returned_at"`
	WasOverdue      bool       `json:"was_overdue"`
	HandedOffTo     *uuid.UUID `json:"handed_off_to,omitempty"`
	FineAssessed    bool       `json:"fine_assessed"`
	CopyMadeShelved bool       `json:"copy_back_on_shelf"`
}

// LoanSummary is the row shown in a user's loan list.
type LoanSummary struct {
	ID             uuid.UUID  `json:"id"`
	BookID         uuid.UUID  `json:"book_id"`
	BookCopyID     uuid.UUID  `json:"book_copy_id"`
	BorrowedAt     time.Time  `json:"borrowed_at"`
	DueAt          time.Time  `json:"due_at"`
	ReturnedAt     *time.Time `json:"returned_at,omitempty"`
	ExtensionCount int        `json:"extension_count"`
	Overdue        bool       `json:"overdue"`
}

// LoanList wraps a paginated loan set.
type LoanList struct {
	Loans      []LoanSummary `json:"loans"`
	NextCursor string        `json:"next_cursor,omitempty"`
}
