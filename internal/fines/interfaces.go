package fines

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/barthig/Biblioteka-sub002/pkg/db/models"
	"github.com/barthig/Biblioteka-sub002/pkg/pagination"
)

// Repository defines persistence operations for fines.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, fine *models.Fine) (*models.Fine, error)
	Update(ctx context.Context, fine *models.Fine) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Fine, error)
	FindPendingByLoan(ctx context.Context, loanID uuid.UUID) (*models.Fine, error)
	SumPendingByUser(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error)
	ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) (*FineList, error)
}
