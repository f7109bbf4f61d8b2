package reservations

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/barthig/Biblioteka-sub002/pkg/config"
	"github.com/barthig/Biblioteka-sub002/pkg/db/models"
	"github.com/barthig/Biblioteka-sub002/pkg/enums"
	pkgerrors "github.com/barthig/Biblioteka-sub002/pkg/errors"
	"github.com/barthig/Biblioteka-sub002/pkg/outbox"
	"github.com/barthig/Biblioteka-sub002/pkg/outbox/payloads"
)

// QueueGateway exposes transaction-scoped queue operations to the loan
// service, so returns can hand a freed copy straight to the next patron
// inside the same transaction.
type QueueGateway interface {
	GetClaim(ctx context.Context, tx *gorm.DB, reservationID uuid.UUID) (*models.Reservation, error)
	FindUserClaim(ctx context.Context, tx *gorm.DB, userID, bookID uuid.UUID) (*models.Reservation, error)
	HasOtherActive(ctx context.Context, tx *gorm.DB, bookID, excludedUserID uuid.UUID) (bool, error)
	AssignNext(ctx context.Context, tx *gorm.DB, bookID uuid.UUID, copy *models.BookCopy, now time.Time) (*models.Reservation, error)
	FulfillWithLoan(ctx context.Context, tx *gorm.DB, reservation *models.Reservation, loanID uuid.UUID, now time.Time, actor *outbox.ActorRef) error
}

type queueGateway struct {
	repo   Repository
	outbox outboxPublisher
	cfg    config.CirculationConfig
}

// NewQueueGateway exposes the default queue gateway implementation.
func NewQueueGateway(repo Repository, outboxSvc outboxPublisher, cfg config.CirculationConfig) QueueGateway {
	return &queueGateway{repo: repo, outbox: outboxSvc, cfg: cfg}
}

func (g *queueGateway) GetClaim(ctx context.Context, tx *gorm.DB, reservationID uuid.UUID) (*models.Reservation, error) {
	reservation, err := g.repo.WithTx(tx).FindByID(ctx, reservationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "reservation not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load reservation")
	}
	return reservation, nil
}

// FindUserClaim returns the user's ACTIVE or PREPARED reservation for the
// book, or nil when the user holds none.
func (g *queueGateway) FindUserClaim(ctx context.Context, tx *gorm.DB, userID, bookID uuid.UUID) (*models.Reservation, error) {
	reservation, err := g.repo.WithTx(tx).FindClaimByUserAndBook(ctx, userID, bookID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find user reservation")
	}
	return reservation, nil
}

func (g *queueGateway) HasOtherActive(ctx context.Context, tx *gorm.DB, bookID, excludedUserID uuid.UUID) (bool, error) {
	has, err := g.repo.WithTx(tx).HasActiveFromOtherUsers(ctx, bookID, excludedUserID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check reservation queue")
	}
	return has, nil
}

// AssignNext earmarks the freed copy for the head of the queue and restarts
// its clock as the pickup window. Returns nil when the queue is empty.
func (g *queueGateway) AssignNext(ctx context.Context, tx *gorm.DB, bookID uuid.UUID, copy *models.BookCopy, now time.Time) (*models.Reservation, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction required for queue assignment")
	}
	repo := g.repo.WithTx(tx)
	reservation, err := repo.FindQueueHead(ctx, bookID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find queue head")
	}

	pickupDays := g.cfg.PickupWindowDays
	if pickupDays <= 0 {
		pickupDays = 2
	}
	copyID := copy.ID
	reservation.BookCopyID = &copyID
	reservation.ExpiresAt = now.AddDate(0, 0, pickupDays)
	if err := repo.Update(ctx, reservation); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "assign copy to reservation")
	}

	event := outbox.DomainEvent{
		EventType:     enums.EventReservationReady,
		AggregateType: enums.AggregateReservation,
		AggregateID:   reservation.ID,
		Data: payloads.ReservationReadyEvent{
			ReservationID: reservation.ID,
			UserID:        reservation.UserID,
			BookID:        reservation.BookID,
			PickupBy:      reservation.ExpiresAt,
		},
	}
	if err := g.outbox.Emit(ctx, tx, event); err != nil {
		return nil, err
	}
	return reservation, nil
}

// FulfillWithLoan closes the reservation as part of the pickup transaction
// that created the loan.
func (g *queueGateway) FulfillWithLoan(ctx context.Context, tx *gorm.DB, reservation *models.Reservation, loanID uuid.UUID, now time.Time, actor *outbox.ActorRef) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for reservation fulfillment")
	}
	switch reservation.Status {
	case enums.ReservationStatusFulfilled:
		return pkgerrors.New(pkgerrors.CodeConflict, "reservation already fulfilled")
	case enums.ReservationStatusCancelled:
		return pkgerrors.New(pkgerrors.CodeConflict, "reservation already cancelled")
	case enums.ReservationStatusExpired:
		return pkgerrors.New(pkgerrors.CodeConflict, "reservation already expired")
	}

	reservation.Status = enums.ReservationStatusFulfilled
	reservation.FulfilledAt = &now
	if err := g.repo.WithTx(tx).Update(ctx, reservation); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fulfill reservation")
	}

	event := outbox.DomainEvent{
		EventType:     enums.EventReservationFulfilled,
		AggregateType: enums.AggregateReservation,
		AggregateID:   reservation.ID,
		Actor:         actor,
		Data: payloads.ReservationFulfilledEvent{
			ReservationID: reservation.ID,
			UserID:        reservation.UserID,
			BookID:        reservation.BookID,
			LoanID:        loanID,
			FulfilledAt:   now,
		},
	}
	return g.outbox.Emit(ctx, tx, event)
}
