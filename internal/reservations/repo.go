package reservations

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/barthig/Biblioteka-sub002/pkg/db/models"
	"github.com/barthig/Biblioteka-sub002/pkg/enums"
	"github.com/barthig/Biblioteka-sub002/pkg/pagination"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a reservations repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, reservation *models.Reservation) (*models.Reservation, error) {
	if err := r.db.WithContext(ctx).Create(reservation).Error; err != nil {
		return nil, err
	}
	return reservation, nil
}

func (r *repository) Update(ctx context.Context, reservation *models.Reservation) error {
	return r.db.WithContext(ctx).Save(reservation).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	var reservation models.Reservation
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&reservation).Error
	if err != nil {
		return nil, err
	}
	return &reservation, nil
}

// FindQueueHead returns the oldest ACTIVE reservation for a book that has no
// copy assigned yet.
func (r *repository) FindQueueHead(ctx context.Context, bookID uuid.UUID) (*models.Reservation, error) {
	var reservation models.Reservation
	err := r.db.WithContext(ctx).
		Where("book_id = ? AND status = ? AND book_copy_id IS NULL", bookID, enums.ReservationStatusActive).
		Order("reserved_at ASC").
		Order("id ASC").
		First(&reservation).Error
	if err != nil {
		return nil, err
	}
	return &reservation, nil
}

func (r *repository) ListActiveByBook(ctx context.Context, bookID uuid.UUID) ([]models.Reservation, error) {
	var reservations []models.Reservation
	err := r.db.WithContext(ctx).
		Where("book_id = ? AND status = ?", bookID, enums.ReservationStatusActive).
		Order("reserved_at ASC").
		Order("id ASC").
		Find(&reservations).Error
	if err != nil {
		return nil, err
	}
	return reservations, nil
}

// QueuePosition is 1-based among the book's ACTIVE reservations.
func (r *repository) QueuePosition(ctx context.Context, reservation *models.Reservation) (int, error) {
	var ahead int64
	err := r.db.WithContext(ctx).
		Model(&models.Reservation{}).
		Where("book_id = ? AND status = ?", reservation.BookID, enums.ReservationStatusActive).
		Where("(reserved_at < ?) OR (reserved_at = ? AND id < ?)",
			reservation.ReservedAt, reservation.ReservedAt, reservation.ID).
		Count(&ahead).Error
	if err != nil {
		return 0, err
	}
	return int(ahead) + 1, nil
}

func (r *repository) FindActiveByUserAndBook(ctx context.Context, userID, bookID uuid.UUID) (*models.Reservation, error) {
	var reservation models.Reservation
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND book_id = ? AND status = ?", userID, bookID, enums.ReservationStatusActive).
		First(&reservation).Error
	if err != nil {
		return nil, err
	}
	return &reservation, nil
}

// FindClaimByUserAndBook also matches PREPARED holds, since a prepared copy
// is still waiting for the same patron.
func (r *repository) FindClaimByUserAndBook(ctx context.Context, userID, bookID uuid.UUID) (*models.Reservation, error) {
	var reservation models.Reservation
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND book_id = ? AND status IN ?", userID, bookID,
			[]enums.ReservationStatus{enums.ReservationStatusActive, enums.ReservationStatusPrepared}).
		Order("reserved_at ASC").
		First(&reservation).Error
	if err != nil {
		return nil, err
	}
	return &reservation, nil
}

func (r *repository) CountActiveByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Reservation{}).
		Where("user_id = ? AND status = ?", userID, enums.ReservationStatusActive).
		Count(&count).Error
	return count, err
}

func (r *repository) HasActiveFromOtherUsers(ctx context.Context, bookID, excludedUserID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Reservation{}).
		Where("book_id = ? AND status = ? AND user_id <> ?", bookID, enums.ReservationStatusActive, excludedUserID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) (*ReservationList, error) {
	normalizedLimit := pagination.NormalizeLimit(params.Limit)
	limitWithBuffer := pagination.LimitWithBuffer(params.Limit)
	decodedCursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}

	query := r.db.WithContext(ctx).
		Model(&models.Reservation{}).
		Where("user_id = ?", userID)
	if decodedCursor != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)",
			decodedCursor.CreatedAt, decodedCursor.CreatedAt, decodedCursor.ID)
	}

	var reservations []models.Reservation
	err = query.Order("created_at DESC").Order("id DESC").Limit(limitWithBuffer).Find(&reservations).Error
	if err != nil {
		return nil, err
	}

	nextCursor := ""
	if len(reservations) > normalizedLimit {
		reservations = reservations[:normalizedLimit]
		last := reservations[len(reservations)-1]
		nextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}

	summaries := make([]ReservationSummary, 0, len(reservations))
	for _, reservation := range reservations {
		summary := ReservationSummary{
			ID:           reservation.ID,
			BookID:       reservation.BookID,
			UserID:       reservation.UserID,
			Status:       reservation.Status,
			ReservedAt:   reservation.ReservedAt,
			ExpiresAt:    reservation.ExpiresAt,
			CopyAssigned: reservation.BookCopyID != nil,
		}
		if reservation.Status == enums.ReservationStatusActive {
			position, err := r.QueuePosition(ctx, &reservation)
			if err != nil {
				return nil, err
			}
			summary.QueuePosition = position
		}
		summaries = append(summaries, summary)
	}
	return &ReservationList{Reservations: summaries, NextCursor: nextCursor}, nil
}

// FindExpirable returns ACTIVE and PREPARED reservations whose pickup or
// wait window passed, oldest first, for the expiry sweep. A prepared hold
// the patron never collects expires like any other.
func (r *repository) FindExpirable(ctx context.Context, cutoff time.Time, limit int) ([]models.Reservation, error) {
	var reservations []models.Reservation
	query := r.db.WithContext(ctx).
		Where("status IN ? AND expires_at < ?", []enums.ReservationStatus{enums.ReservationStatusActive, enums.ReservationStatusPrepared}, cutoff).
		Order("expires_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&reservations).Error; err != nil {
		return nil, err
	}
	return reservations, nil
}
