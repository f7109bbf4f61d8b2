package fines

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/barthig/Biblioteka-sub002/pkg/enums"
)

// IssueFineInput records a manual fine against a loan.
type IssueFineInput struct {
	LoanID      uuid.UUID
	Amount      decimal.Decimal
	ActorUserID uuid.UUID
	ActorRole   string
}

// PayFineInput settles a pending fine at the desk.
type PayFineInput struct {
	FineID      uuid.UUID
	ActorUserID uuid.UUID
	ActorRole   string
}

// CancelFineInput waives a pending fine.
type CancelFineInput struct {
	FineID      uuid.UUID
	Reason      string
	ActorUserID uuid.UUID
	ActorRole   string
}

// FineSummary is the row shown in a user's fine list.
type FineSummary struct {
	ID          uuid.UUID        `json:"id"`
	LoanID      uuid.UUID        `json:"loan_id"`
	Amount      decimal.Decimal  `json:"amount"`
	Currency    string           `json:"currency"`
	Status      enums.FineStatus `json:"status"`
	DaysOverdue int              `json:"days_overdue"`
	AssessedAt  time.Time        `json:"assessed_at"`
	PaidAt      *time.Time       `json:"paid_at,omitempty"`
}

// FineList wraps a paginated fine set.
type FineList struct {
	Fines      []FineSummary   `json:"fines"`
	NextCursor string          `json:"next_cursor,omitempty"`
	TotalOwed  decimal.Decimal `json:"total_owed"`
}
