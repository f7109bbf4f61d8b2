package fines

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/barthig/Biblioteka-sub002/pkg/db/models"
	"github.com/barthig/Biblioteka-sub002/pkg/enums"
	"github.com/barthig/Biblioteka-sub002/pkg/pagination"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a fines repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, fine *models.Fine) (*models.Fine, error) {
	if err := r.db.WithContext(ctx).Create(fine).Error; err != nil {
		return nil, err
	}
	return fine, nil
}

func (r *repository) Update(ctx context.Context, fine *models.Fine) error {
	return r.db.WithContext(ctx).Save(fine).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Fine, error) {
	var fine models.Fine
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&fine).Error
	if err != nil {
		return nil, err
	}
	return &fine, nil
}

// FindPendingByLoan returns the open fine for a loan. The partial unique
// index on (loan_id) WHERE status = 'PENDING' guarantees a single row.
func (r *repository) FindPendingByLoan(ctx context.Context, loanID uuid.UUID) (*models.Fine, error) {
	var fine models.Fine
	err := r.db.WithContext(ctx).
		Where("loan_id = ? AND status = ?", loanID, enums.FinePending).
		First(&fine).Error
	if err != nil {
		return nil, err
	}
	return &fine, nil
}

func (r *repository) SumPendingByUser(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	err := r.db.WithContext(ctx).
		Model(&models.Fine{}).
		Select("SUM(amount)").
		Where("user_id = ? AND status = ?", userID, enums.FinePending).
		Scan(&total).Error
	if err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) (*FineList, error) {
	normalizedLimit := pagination.NormalizeLimit(params.Limit)
	limitWithBuffer := pagination.LimitWithBuffer(params.Limit)
	decodedCursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}

	query := r.db.WithContext(ctx).
		Model(&models.Fine{}).
		Where("user_id = ?", userID)
	if decodedCursor != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)",
			decodedCursor.CreatedAt, decodedCursor.CreatedAt, decodedCursor.ID)
	}

	var fines []models.Fine
	err = query.Order("created_at DESC").Order("id DESC").Limit(limitWithBuffer).Find(&fines).Error
	if err != nil {
		return nil, err
	}

	nextCursor := ""
	if len(fines) > normalizedLimit {
		fines = fines[:normalizedLimit]
		last := fines[len(fines)-1]
		nextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}

	owed, err := r.SumPendingByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	summaries := make([]FineSummary, 0, len(fines))
	for _, fine := range fines {
		summaries = append(summaries, FineSummary{
			ID:          fine.ID,
			LoanID:      fine.LoanID,
			Amount:      fine.Amount,
			Currency:    fine.Currency,
			Status:      fine.Status,
			DaysOverdue: fine.DaysOverdue,
			AssessedAt:  fine.AssessedAt,
			PaidAt:      fine.PaidAt,
		})
	}
	return &FineList{Fines: summaries, NextCursor: nextCursor, TotalOwed: owed}, nil
}
