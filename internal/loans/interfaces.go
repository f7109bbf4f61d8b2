package loans

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/barthig/Biblioteka-sub002/pkg/db/models"
	"github.com/barthig/Biblioteka-sub002/pkg/pagination"
)

// Repository defines persistence operations for loans.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, loan *models.Loan) (*models.Loan, error)
	Update(ctx context.Context, loan *models.Loan) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Loan, error)
	FindActiveByCopy(ctx context.Context, copyID uuid.UUID) (*models.Loan, error)
	CountActiveByUser(ctx context.Context, userID uuid.UUID) (int64, error)

	ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) (*LoanList, error)
	FindOverdue(ctx context.Context, now time.Time, limit int) ([]models.Loan, error)
	FindDueBetween(ctx context.Context, from, to time.Time, limit int) ([]models.Loan, error)
}
