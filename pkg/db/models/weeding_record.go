package models

import (
	"time"

	"github.com/google/uuid"
)

// WeedingRecord is the audit trail left behind when a copy is withdrawn from
// circulation. It survives even if the copy row is later removed.
type WeedingRecord struct {
	ID            uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	BookCopyID    uuid.UUID  `gorm:"column:book_copy_id;type:uuid;not null;index"`
	BookID        uuid.UUID  `gorm:"column:book_id;type:uuid;not null;index"`
	InventoryCode string     `gorm:"column:inventory_code;type:text;not null"`
	Reason        string     `gorm:"type:text;not null"`
	WithdrawnBy   *uuid.UUID `gorm:"column:withdrawn_by;type:uuid"`
	WithdrawnAt   time.Time  `gorm:"column:withdrawn_at;not null"`
	CreatedAt     time.Time  `gorm:"column:created_at;autoCreateTime"`
}
