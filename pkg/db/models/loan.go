package models

import (
	"time"

	"github.com/google/uuid"
)

// Loan records a copy checked out to a user. ReturnedAt nil means the loan is
// active; ExtensionCount is capped by the circulation policy.
type Loan struct {
	ID             uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID         uuid.UUID  `gorm:"column:user_id;type:uuid;not null;index"`
	BookID         uuid.UUID  `gorm:"column:book_id;type:uuid;not null;index"`
	BookCopyID     uuid.UUID  `gorm:"column:book_copy_id;type:uuid;not null;index"`
	BorrowedAt     time.Time  `gorm:"column:borrowed_at;not null"`
	DueAt          time.Time  `gorm:"column:due_at;not null;index"`
	ReturnedAt     *time.Time `gorm:"column:returned_at"`
	ExtensionCount int        `gorm:"column:extension_count;not null;default:0"`
	LastExtendedAt *time.Time `gorm:"column:last_extended_at"`
	CreatedAt      time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time  `gorm:"column:updated_at;autoUpdateTime"`

	Book     *Book     `gorm:"foreignKey:BookID"`
	BookCopy *BookCopy `gorm:"foreignKey:BookCopyID"`
}

// IsActive reports whether the copy is still out.
func (l Loan) IsActive() bool {
	return l.ReturnedAt == nil
}

// IsOverdue reports whether an active loan passed its due date at the given instant.
func (l Loan) IsOverdue(now time.Time) bool {
	return l.ReturnedAt == nil && now.After(l.DueAt)
}
