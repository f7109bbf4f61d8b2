package loans

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/barthig/Biblioteka-sub002/pkg/db/models"
	"github.com/barthig/Biblioteka-sub002/pkg/pagination"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a loans repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, loan *models.Loan) (*models.Loan, error) {
	if err := r.db.WithContext(ctx).Create(loan).Error; err != nil {
		return nil, err
	}
	return loan, nil
}

func (r *repository) Update(ctx context.Context, loan *models.Loan) error {
	return r.db.WithContext(ctx).Save(loan).Error
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.Loan{}, "id = ?", id).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Loan, error) {
	var loan models.Loan
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&loan).Error
	if err != nil {
		return nil, err
	}
	return &loan, nil
}

// FindActiveByCopy returns the open loan holding the copy, if any. The
// partial unique index on (book_copy_id) WHERE returned_at IS NULL
// guarantees at most one row matches.
func (r *repository) FindActiveByCopy(ctx context.Context, copyID uuid.UUID) (*models.Loan, error) {
	var loan models.Loan
	err := r.db.WithContext(ctx).
		Where("book_copy_id = ? AND returned_at IS NULL", copyID).
		First(&loan).Error
	if err != nil {
		return nil, err
	}
	return &loan, nil
}

func (r *repository) CountActiveByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Loan{}).
		Where("user_id = ? AND returned_at IS NULL", userID).
		Count(&count).Error
	return count, err
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) (*LoanList, error) {
	normalizedLimit := pagination.NormalizeLimit(params.Limit)
	limitWithBuffer := pagination.LimitWithBuffer(params.Limit)
	decodedCursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}

	query := r.db.WithContext(ctx).
		Model(&models.Loan{}).
		Where("user_id = ?", userID)
	if decodedCursor != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)",
			decodedCursor.CreatedAt, decodedCursor.CreatedAt, decodedCursor.ID)
	}

	var loans []models.Loan
	err = query.Order("created_at DESC").Order("id DESC").Limit(limitWithBuffer).Find(&loans).Error
	if err != nil {
		return nil, err
	}

	nextCursor := ""
	if len(loans) > normalizedLimit {
		loans = loans[:normalizedLimit]
		last := loans[len(loans)-1]
		nextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}

	now := time.Now().UTC()
	summaries := make([]LoanSummary, 0, len(loans))
	for _, loan := range loans {
		summaries = append(summaries, LoanSummary{
			ID:             loan.ID,
			BookID:         loan.BookID,
			BookCopyID:     loan.BookCopyID,
			BorrowedAt:     loan.BorrowedAt,
			DueAt:          loan.DueAt,
			ReturnedAt:     loan.ReturnedAt,
			ExtensionCount: loan.ExtensionCount,
			Overdue:        loan.IsOverdue(now),
		})
	}
	return &LoanList{Loans: summaries, NextCursor: nextCursor}, nil
}

// FindOverdue returns open loans past their due date, most overdue first.
func (r *repository) FindOverdue(ctx context.Context, now time.Time, limit int) ([]models.Loan, error) {
	var loans []models.Loan
	query := r.db.WithContext(ctx).
		Where("returned_at IS NULL AND due_at < ?", now).
		Order("due_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&loans).Error; err != nil {
		return nil, err
	}
	return loans, nil
}

// FindDueBetween returns open loans due inside the window, used by the
// reminder sweep.
func (r *repository) FindDueBetween(ctx context.Context, from, to time.Time, limit int) ([]models.Loan, error) {
	var loans []models.Loan
	query := r.db.WithContext(ctx).
		Where("returned_at IS NULL AND due_at >= ? AND due_at < ?", from, to).
		Order("due_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&loans).Error; err != nil {
		return nil, err
	}
	return loans, nil
}
