package reservations

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/barthig/Biblioteka-sub002/pkg/db/models"
	"github.com/barthig/Biblioteka-sub002/pkg/pagination"
)

// Repository defines persistence operations for the hold queue. Queue order
// is reserved_at ascending with id ascending as the tiebreaker everywhere.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, reservation *models.Reservation) (*models.Reservation, error)
	Update(ctx context.Context, reservation *models.Reservation) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Reservation, error)

	FindQueueHead(ctx context.Context, bookID uuid.UUID) (*models.Reservation, error)
	ListActiveByBook(ctx context.Context, bookID uuid.UUID) ([]models.Reservation, error)
	QueuePosition(ctx context.Context, reservation *models.Reservation) (int, error)

	FindActiveByUserAndBook(ctx context.Context, userID, bookID uuid.UUID) (*models.Reservation, error)
	FindClaimByUserAndBook(ctx context.Context, userID, bookID uuid.UUID) (*models.Reservation, error)
	CountActiveByUser(ctx context.Context, userID uuid.UUID) (int64, error)
	HasActiveFromOtherUsers(ctx context.Context, bookID, excludedUserID uuid.UUID) (bool, error)

	ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) (*ReservationList, error)
	FindExpirable(ctx context.Context, cutoff time.Time, limit int) ([]models.Reservation, error)
}
