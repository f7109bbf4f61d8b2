package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/barthig/Biblioteka-sub002/pkg/enums"
)

// User represents the canonical identity entity. A LoanLimit of zero means
// the user may hold any number of concurrent loans.
type User struct {
	ID           uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Email        string         `gorm:"type:text;not null;uniqueIndex"`
	PasswordHash string         `gorm:"column:password_hash;not null"`
	FirstName    string         `gorm:"column:first_name;not null"`
	LastName     string         `gorm:"column:last_name;not null"`
	Role         enums.UserRole `gorm:"type:user_role;not null;default:'patron'"`
	CardNumber   string         `gorm:"column:card_number;type:text;not null;uniqueIndex"`
	IsActive     bool           `gorm:"column:is_active;not null;default:true"`
	IsBlocked    bool           `gorm:"column:is_blocked;not null;default:false"`
	LoanLimit    int            `gorm:"column:loan_limit;not null;default:5"`
	LastLoginAt  *time.Time     `gorm:"column:last_login_at"`
	CreatedAt    time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
