package inventory

import (
	"time"

	"github.com/google/uuid"

	"github.com/barthig/Biblioteka-sub002/pkg/enums"
)

// CreateBookInput captures a new catalog title plus optional starting inventory.
type CreateBookInput struct {
	Title         string
	Author        string
	ISBN          *string
	Publisher     *string
	PublishedYear *int
	InitialCopies []CreateCopyInput
	ActorUserID   uuid.UUID
	ActorRole     string
}

// UpdateBookInput holds the mutable bibliographic fields. Counters are never
// settable from the outside.
type UpdateBookInput struct {
	BookID        uuid.UUID
	Title         *string
	Author        *string
	ISBN          *string
	Publisher     *string
	PublishedYear *int
}

// CreateCopyInput describes one physical copy to register. An empty
// InventoryCode asks the service to generate one.
type CreateCopyInput struct {
	BookID        uuid.UUID
	InventoryCode string
	AccessType    string
	Location      *string
	AcquiredAt    *time.Time
}

// UpdateCopyInput holds the mutable copy fields. Status changes go through
// the transition table; invalid enum values are rejected here, unlike the
// lenient bulk import.
type UpdateCopyInput struct {
	CopyID     uuid.UUID
	Status     *string
	AccessType *string
	Location   *string
}

// ImportCopyRow is one line of a bulk inventory import. Unknown status or
// access values fall back to defaults instead of failing the whole file.
type ImportCopyRow struct {
	InventoryCode string
	Status        string
	AccessType    string
	Location      *string
}

// ImportCopiesInput is a bulk registration of copies for one title.
type ImportCopiesInput struct {
	BookID      uuid.UUID
	Rows        []ImportCopyRow
	ActorUserID uuid.UUID
	ActorRole   string
}

// ImportCopiesResult summarizes a bulk import run.
type ImportCopiesResult struct {
	Created int      `json:"created"`
	Skipped int      `json:"skipped"`
	Errors  []string `json:"errors,omitempty"`
}

// WithdrawCopyInput weeds one copy out of circulation.
type WithdrawCopyInput struct {
	CopyID      uuid.UUID
	Reason      string
	ActorUserID uuid.UUID
	ActorRole   string
}

// BookFilters describe the inputs supported by the catalog list.
type BookFilters struct {
	Query         string
	Author        string
	AvailableOnly bool
}

// BookSummary is the catalog row returned by list queries. Availability comes
// straight from the derived counters so listing never scans copies.
type BookSummary struct {
	ID              uuid.UUID `json:"id"`
	Title           string    `json:"title"`
	Author          string    `json:"author"`
	ISBN            *string   `json:"isbn,omitempty"`
	TotalCopies     int       `json:"total_copies"`
	AvailableCopies int       `json:"available_copies"`
	OpenStackCopies int       `json:"open_stack_copies"`
}

// BookList wraps the paginated catalog plus the next page cursor.
type BookList struct {
	Books      []BookSummary `json:"books"`
	NextCursor string        `json:"next_cursor,omitempty"`
}

// CopySummary is the per-copy row shown on a title's inventory page.
type CopySummary struct {
	ID            uuid.UUID            `json:"id"`
	InventoryCode string               `json:"inventory_code"`
	Status        enums.CopyStatus     `json:"status"`
	AccessType    enums.CopyAccessType `json:"access_type"`
	Location      *string              `json:"location,omitempty"`
}
