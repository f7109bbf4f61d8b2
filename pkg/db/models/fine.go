package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/barthig/Biblioteka-sub002/pkg/enums"
)

// Fine is an overdue charge tied to a loan. One pending fine per loan; the
// sweep upserts the amount while the loan stays overdue.
type Fine struct {
	ID          uuid.UUID        `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	LoanID      uuid.UUID        `gorm:"column:loan_id;type:uuid;not null;uniqueIndex:uq_fines_loan_pending,where:status = 'PENDING'"`
	UserID      uuid.UUID        `gorm:"column:user_id;type:uuid;not null;index"`
	Amount      decimal.Decimal  `gorm:"type:numeric(10,2);not null"`
	Currency    string           `gorm:"type:char(3);not null"`
	Status      enums.FineStatus `gorm:"type:fine_status;not null;default:'PENDING'"`
	DaysOverdue int              `gorm:"column:days_overdue;not null;default:0"`
	AssessedAt  time.Time        `gorm:"column:assessed_at;not null"`
	PaidAt      *time.Time       `gorm:"column:paid_at"`
	CancelledAt *time.Time       `gorm:"column:cancelled_at"`
	CreatedAt   time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time        `gorm:"column:updated_at;autoUpdateTime"`

	Loan *Loan `gorm:"foreignKey:LoanID"`
}
