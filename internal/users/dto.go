package users

import (
	"time"

	"github.com/google/uuid"

	"github.com/barthig/Biblioteka-sub002/pkg/db/models"
	"github.com/barthig/Biblioteka-sub002/pkg/enums"
)

// UserDTO is the transport shape that omits credentials.
type UserDTO struct {
	ID          uuid.UUID      `json:"id"`
	Email       string         `json:"email"`
	FirstName   string         `json:"first_name"`
	LastName    string         `json:"last_name"`
	Role        enums.UserRole `json:"role"`
	CardNumber  string         `json:"card_number"`
	IsActive    bool           `json:"is_active"`
	IsBlocked   bool           `json:"is_blocked"`
	LoanLimit   int            `json:"loan_limit"`
	LastLoginAt *time.Time     `json:"last_login_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// FromModel converts a persisted user into its transport shape.
func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}
	return &UserDTO{
		ID:          u.ID,
		Email:       u.Email,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Role:        u.Role,
		CardNumber:  u.CardNumber,
		IsActive:    u.IsActive,
		IsBlocked:   u.IsBlocked,
		LoanLimit:   u.LoanLimit,
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

// RegisterUserInput onboards a new patron at the sign-up form or front desk.
type RegisterUserInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      string
}

// UpdateProfileInput changes the fields a patron may edit themselves.
type UpdateProfileInput struct {
	UserID    uuid.UUID
	FirstName *string
	LastName  *string
}

// SetBlockedInput suspends or reinstates a patron's borrowing privileges.
type SetBlockedInput struct {
	UserID      uuid.UUID
	Blocked     bool
	Reason      string
	ActorUserID uuid.UUID
	ActorRole   string
}

// SetLoanLimitInput adjusts the concurrent loan cap. Zero means unlimited.
type SetLoanLimitInput struct {
	UserID    uuid.UUID
	LoanLimit int
}
