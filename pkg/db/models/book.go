package models

import (
	"time"

	"github.com/google/uuid"
)

// Book is the bibliographic record copies hang off of. The copy counters are
// derived columns: they are recalculated from the copies table inside the same
// transaction as any copy mutation, never adjusted by deltas.
type Book struct {
	ID              uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Title           string     `gorm:"type:text;not null"`
	Author          string     `gorm:"type:text;not null"`
	ISBN            *string    `gorm:"column:isbn;type:text;uniqueIndex"`
	Publisher       *string    `gorm:"type:text"`
	PublishedYear   *int       `gorm:"column:published_year"`
	TotalCopies     int        `gorm:"column:total_copies;not null;default:0"`
	AvailableCopies int        `gorm:"column:available_copies;not null;default:0"`
	OpenStackCopies int        `gorm:"column:open_stack_copies;not null;default:0"`
	DeletedAt       *time.Time `gorm:"column:deleted_at;index"`
	CreatedAt       time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
