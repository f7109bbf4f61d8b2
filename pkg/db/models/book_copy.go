package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/barthig/Biblioteka-sub002/pkg/enums"
)

// BookCopy is a single physical copy identified by its inventory code.
type BookCopy struct {
	ID            uuid.UUID            `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	BookID        uuid.UUID            `gorm:"column:book_id;type:uuid;not null;index"`
	InventoryCode string               `gorm:"column:inventory_code;type:text;not null;uniqueIndex:uq_book_copies_inventory_code"`
	Status        enums.CopyStatus     `gorm:"type:copy_status;not null;default:'AVAILABLE'"`
	AccessType    enums.CopyAccessType `gorm:"column:access_type;type:copy_access_type;not null;default:'STORAGE'"`
	Location      *string              `gorm:"type:text"`
	AcquiredAt    *time.Time           `gorm:"column:acquired_at"`
	CreatedAt     time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time            `gorm:"column:updated_at;autoUpdateTime"`

	Book *Book `gorm:"foreignKey:BookID"`
}

func (BookCopy) TableName() string {
	return "book_copies"
}
