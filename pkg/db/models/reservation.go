package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/barthig/Biblioteka-sub002/pkg/enums"
)

// Reservation is one spot in a book's FIFO hold queue. Queue order is
// reserved_at ascending with id ascending as the tiebreaker.
type Reservation struct {
	ID          uuid.UUID               `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID      uuid.UUID               `gorm:"column:user_id;type:uuid;not null;index"`
	BookID      uuid.UUID               `gorm:"column:book_id;type:uuid;not null;index"`
	Status      enums.ReservationStatus `gorm:"type:reservation_status;not null;default:'ACTIVE'"`
	BookCopyID  *uuid.UUID              `gorm:"column:book_copy_id;type:uuid"`
	ReservedAt  time.Time               `gorm:"column:reserved_at;not null"`
	ExpiresAt   time.Time               `gorm:"column:expires_at;not null;index"`
	PreparedAt  *time.Time              `gorm:"column:prepared_at"`
	FulfilledAt *time.Time              `gorm:"column:fulfilled_at"`
	CancelledAt *time.Time              `gorm:"column:cancelled_at"`
	ExpiredAt   *time.Time              `gorm:"column:expired_at"`
	CreatedAt   time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time               `gorm:"column:updated_at;autoUpdateTime"`

	Book     *Book     `gorm:"foreignKey:BookID"`
	BookCopy *BookCopy `gorm:"foreignKey:BookCopyID"`
}
