package reservations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/barthig/Biblioteka-sub002/pkg/config"
	dbpkg "github.com/barthig/Biblioteka-sub002/pkg/db"
	"github.com/barthig/Biblioteka-sub002/pkg/db/models"
	"github.com/barthig/Biblioteka-sub002/pkg/enums"
	pkgerrors "github.com/barthig/Biblioteka-sub002/pkg/errors"
	"github.com/barthig/Biblioteka-sub002/pkg/outbox"
	"github.com/barthig/Biblioteka-sub002/pkg/outbox/payloads"
	"github.com/barthig/Biblioteka-sub002/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type copyGateway interface {
	GetBook(ctx context.Context, tx *gorm.DB, bookID uuid.UUID) (*models.Book, error)
	GetCopy(ctx context.Context, tx *gorm.DB, copyID uuid.UUID) (*models.BookCopy, error)
	TransitionCopy(ctx context.Context, tx *gorm.DB, copy *models.BookCopy, target enums.CopyStatus, now time.Time) error
	Recalculate(ctx context.Context, tx *gorm.DB, bookID uuid.UUID) error
}

type userDirectory interface {
	GetUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*models.User, error)
}

// msgNotYetExpired lets the expiry sweep tell a clock or query mismatch
// apart from losing a race with another worker.
const msgNotYetExpired = "reservation not yet expired"

// Service defines hold queue operations.
type Service interface {
	Create(ctx context.Context, input CreateReservationInput) (*models.Reservation, error)
	Cancel(ctx context.Context, input CancelReservationInput) error
	Prepare(ctx context.Context, input PrepareReservationInput) error
	Fulfill(ctx context.Context, reservationID uuid.UUID, actorUserID uuid.UUID, actorRole string) error
	Expire(ctx context.Context, reservationID uuid.UUID) error
	ExpireDue(ctx context.Context, now time.Time, batchSize int) (int, error)
	Get(ctx context.Context, reservationID uuid.UUID) (*models.Reservation, error)
	ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) (*ReservationList, error)
	ListQueue(ctx context.Context, bookID uuid.UUID) ([]ReservationSummary, error)
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
	copies copyGateway
	users  userDirectory
	cfg    config.CirculationConfig
}

// NewService builds a reservations service with the required dependencies.
func NewService(repo Repository, tx txRunner, outboxSvc outboxPublisher, copies copyGateway, users userDirectory, cfg config.CirculationConfig) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("reservations repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if copies == nil {
		return nil, fmt.Errorf("copy gateway required")
	}
	if users == nil {
		return nil, fmt.Errorf("user directory required")
	}
	return &service{repo: repo, tx: tx, outbox: outboxSvc, copies: copies, users: users, cfg: cfg}, nil
}

func (s *service) Create(ctx context.Context, input CreateReservationInput) (*models.Reservation, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if input.BookID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "book id required")
	}
	expiresInDays := s.cfg.ReservationMaxDays
	if expiresInDays <= 0 {
		expiresInDays = 14
	}
	if input.ExpiresInDays != nil {
		expiresInDays = *input.ExpiresInDays
		minDays := s.cfg.ReservationMinDays
		maxDays := s.cfg.ReservationMaxDays
		if minDays <= 0 {
			minDays = 1
		}
		if maxDays <= 0 {
			maxDays = 14
		}
		if expiresInDays < minDays || expiresInDays > maxDays {
			return nil, pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("expiresInDays must be between %d and %d", minDays, maxDays))
		}
	}

	now := time.Now().UTC()
	reservation := &models.Reservation{
		UserID:     input.UserID,
		BookID:     input.BookID,
		Status:     enums.ReservationStatusActive,
		ReservedAt: now,
		ExpiresAt:  now.AddDate(0, 0, expiresInDays),
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		user, err := s.users.GetUser(ctx, tx, input.UserID)
		if err != nil {
			return err
		}
		if user.IsBlocked {
			return pkgerrors.New(pkgerrors.CodeForbidden, "user account is blocked")
		}

		book, err := s.copies.GetBook(ctx, tx, input.BookID)
		if err != nil {
			return err
		}
		// Reservations are a waitlist for unavailability, not an
		// alternative to borrowing.
		if book.AvailableCopies+book.OpenStackCopies > 0 {
			return pkgerrors.New(pkgerrors.CodeBadRequest, "book currently available")
		}

		repo := s.repo.WithTx(tx)
		if _, err := repo.FindActiveByUserAndBook(ctx, input.UserID, input.BookID); err == nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "user already has an active reservation for this book")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check duplicate reservation")
		}

		maxActive := s.cfg.MaxActiveReservations
		if maxActive <= 0 {
			maxActive = 5
		}
		active, err := repo.CountActiveByUser(ctx, input.UserID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count active reservations")
		}
		if active >= int64(maxActive) {
			return pkgerrors.New(pkgerrors.CodeLimitExceeded,
				fmt.Sprintf("active reservation limit of %d reached", maxActive))
		}

		if _, err := repo.Create(ctx, reservation); err != nil {
			if dbpkg.IsUniqueViolation(err, "ux_reservations_user_book_active") {
				return pkgerrors.New(pkgerrors.CodeConflict, "user already has an active reservation for this book")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create reservation")
		}

		position, err := repo.QueuePosition(ctx, reservation)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue position")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventReservationCreated,
			AggregateType: enums.AggregateReservation,
			AggregateID:   reservation.ID,
			Actor:         buildActor(input.ActorUserID, input.ActorRole),
			Data: payloads.ReservationCreatedEvent{
				ReservationID: reservation.ID,
				UserID:        reservation.UserID,
				BookID:        reservation.BookID,
				QueuePosition: position,
				ExpiresAt:     reservation.ExpiresAt,
			},
		}
		return s.outbox.Emit(ctx, tx, event)
	})
	if err != nil {
		return nil, err
	}
	return reservation, nil
}

func (s *service) Cancel(ctx context.Context, input CancelReservationInput) error {
	if input.ReservationID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "reservation id required")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		reservation, err := repo.FindByID(ctx, input.ReservationID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "reservation not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load reservation")
		}
		if !canActOnReservation(reservation, input.ActorUserID, input.ActorRole) {
			return pkgerrors.New(pkgerrors.CodeForbidden, "reservation belongs to another reader")
		}
		if err := rejectTerminal(reservation.Status); err != nil {
			return err
		}

		now := time.Now().UTC()
		if err := s.releaseAssignedCopy(ctx, tx, reservation, now); err != nil {
			return err
		}

		reservation.Status = enums.ReservationStatusCancelled
		reservation.CancelledAt = &now
		reservation.BookCopyID = nil
		if err := repo.Update(ctx, reservation); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel reservation")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventReservationCancelled,
			AggregateType: enums.AggregateReservation,
			AggregateID:   reservation.ID,
			Actor:         buildActor(input.ActorUserID, input.ActorRole),
			Data: payloads.ReservationCancelledEvent{
				ReservationID: reservation.ID,
				UserID:        reservation.UserID,
				BookID:        reservation.BookID,
				CancelledAt:   now,
				Reason:        input.Reason,
			},
		}
		return s.outbox.Emit(ctx, tx, event)
	})
}

func (s *service) Prepare(ctx context.Context, input PrepareReservationInput) error {
	if input.ReservationID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "reservation id required")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		reservation, err := repo.FindByID(ctx, input.ReservationID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "reservation not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load reservation")
		}
		if err := rejectTerminal(reservation.Status); err != nil {
			return err
		}
		if reservation.Status == enums.ReservationStatusPrepared {
			return pkgerrors.New(pkgerrors.CodeConflict, "reservation already prepared for pickup")
		}
		if reservation.BookCopyID == nil {
			return pkgerrors.New(pkgerrors.CodeBadRequest, "no copy assigned for pickup yet")
		}

		now := time.Now().UTC()
		reservation.Status = enums.ReservationStatusPrepared
		reservation.PreparedAt = &now
		if err := repo.Update(ctx, reservation); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "prepare reservation")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventReservationPrepared,
			AggregateType: enums.AggregateReservation,
			AggregateID:   reservation.ID,
			Actor:         buildActor(input.ActorUserID, input.ActorRole),
			Data: payloads.ReservationPreparedEvent{
				ReservationID: reservation.ID,
				UserID:        reservation.UserID,
				BookID:        reservation.BookID,
				PreparedAt:    now,
			},
		}
		return s.outbox.Emit(ctx, tx, event)
	})
}

// Fulfill flips the reservation to FULFILLED once its assigned copy has been
// lent out. It performs no copy mutation, loan creation already did that.
func (s *service) Fulfill(ctx context.Context, reservationID uuid.UUID, actorUserID uuid.UUID, actorRole string) error {
	if reservationID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "reservation id required")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		reservation, err := repo.FindByID(ctx, reservationID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "reservation not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load reservation")
		}
		switch reservation.Status {
		case enums.ReservationStatusFulfilled:
			return pkgerrors.New(pkgerrors.CodeConflict, "reservation already fulfilled")
		case enums.ReservationStatusCancelled:
			return pkgerrors.New(pkgerrors.CodeConflict, "reservation already cancelled")
		case enums.ReservationStatusExpired:
			return pkgerrors.New(pkgerrors.CodeConflict, "reservation already expired")
		}
		if reservation.BookCopyID == nil {
			return pkgerrors.New(pkgerrors.CodeBadRequest, "no copy assigned for pickup yet")
		}
		copy, err := s.copies.GetCopy(ctx, tx, *reservation.BookCopyID)
		if err != nil {
			return err
		}
		if copy.Status != enums.CopyStatusBorrowed {
			return pkgerrors.New(pkgerrors.CodeBadRequest, "assigned copy has not been lent out yet")
		}

		now := time.Now().UTC()
		reservation.Status = enums.ReservationStatusFulfilled
		reservation.FulfilledAt = &now
		if err := repo.Update(ctx, reservation); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fulfill reservation")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventReservationFulfilled,
			AggregateType: enums.AggregateReservation,
			AggregateID:   reservation.ID,
			Actor:         buildActor(actorUserID, actorRole),
			Data: payloads.ReservationFulfilledEvent{
				ReservationID: reservation.ID,
				UserID:        reservation.UserID,
				BookID:        reservation.BookID,
				FulfilledAt:   now,
			},
		}
		return s.outbox.Emit(ctx, tx, event)
	})
}

// Expire releases an overdue hold. Expiry and cancellation are tracked as
// distinct audit trails even though the copy release is identical.
func (s *service) Expire(ctx context.Context, reservationID uuid.UUID) error {
	if reservationID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "reservation id required")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		reservation, err := repo.FindByID(ctx, reservationID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "reservation not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load reservation")
		}
		if err := rejectTerminal(reservation.Status); err != nil {
			return err
		}
		now := time.Now().UTC()
		if now.Before(reservation.ExpiresAt) {
			return pkgerrors.New(pkgerrors.CodeConflict, msgNotYetExpired)
		}
		if err := s.releaseAssignedCopy(ctx, tx, reservation, now); err != nil {
			return err
		}

		reservation.Status = enums.ReservationStatusExpired
		reservation.ExpiredAt = &now
		reservation.BookCopyID = nil
		if err := repo.Update(ctx, reservation); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "expire reservation")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventReservationExpired,
			AggregateType: enums.AggregateReservation,
			AggregateID:   reservation.ID,
			Data: payloads.ReservationExpiredEvent{
				ReservationID: reservation.ID,
				UserID:        reservation.UserID,
				BookID:        reservation.BookID,
				ExpiredAt:     now,
			},
		}
		return s.outbox.EmitIfNotExists(ctx, tx, event)
	})
}

// ExpireDue runs the expiry sweep. Each reservation expires in its own
// transaction so one bad row never blocks the rest of the batch.
func (s *service) ExpireDue(ctx context.Context, now time.Time, batchSize int) (int, error) {
	due, err := s.repo.FindExpirable(ctx, now, batchSize)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find expirable reservations")
	}

	expired := 0
	var errs error
	for _, reservation := range due {
		if err := s.Expire(ctx, reservation.ID); err != nil {
			// A terminal-state conflict means another worker got there
			// first. A not-yet-expired conflict on a row the sweep query
			// selected points at clock skew and is surfaced.
			if pkgerrors.HasCode(err, pkgerrors.CodeConflict) {
				if typed := pkgerrors.As(err); typed != nil && typed.Message() != msgNotYetExpired {
					continue
				}
			}
			errs = multierr.Append(errs, fmt.Errorf("reservation %s: %w", reservation.ID, err))
			continue
		}
		expired++
	}
	return expired, errs
}

func (s *service) Get(ctx context.Context, reservationID uuid.UUID) (*models.Reservation, error) {
	reservation, err := s.repo.FindByID(ctx, reservationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "reservation not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load reservation")
	}
	return reservation, nil
}

func (s *service) ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) (*ReservationList, error) {
	list, err := s.repo.ListByUser(ctx, userID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list reservations")
	}
	return list, nil
}

func (s *service) ListQueue(ctx context.Context, bookID uuid.UUID) ([]ReservationSummary, error) {
	reservations, err := s.repo.ListActiveByBook(ctx, bookID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list queue")
	}
	summaries := make([]ReservationSummary, 0, len(reservations))
	for i, reservation := range reservations {
		summaries = append(summaries, ReservationSummary{
			ID:            reservation.ID,
			BookID:        reservation.BookID,
			UserID:        reservation.UserID,
			Status:        reservation.Status,
			ReservedAt:    reservation.ReservedAt,
			ExpiresAt:     reservation.ExpiresAt,
			QueuePosition: i + 1,
			CopyAssigned:  reservation.BookCopyID != nil,
		})
	}
	return summaries, nil
}

// releaseAssignedCopy puts an earmarked copy back on the shelf. A BORROWED
// assigned copy is impossible in a consistent store and aborts the call.
func (s *service) releaseAssignedCopy(ctx context.Context, tx *gorm.DB, reservation *models.Reservation, now time.Time) error {
	if reservation.BookCopyID == nil {
		return nil
	}
	copy, err := s.copies.GetCopy(ctx, tx, *reservation.BookCopyID)
	if err != nil {
		return err
	}
	if copy.Status == enums.CopyStatusBorrowed {
		return pkgerrors.New(pkgerrors.CodeInternal, "assigned copy is on loan, reservation state inconsistent")
	}
	if copy.Status != enums.CopyStatusReserved {
		return nil
	}
	if err := s.copies.TransitionCopy(ctx, tx, copy, enums.CopyStatusAvailable, now); err != nil {
		return err
	}
	return s.copies.Recalculate(ctx, tx, copy.BookID)
}

// rejectTerminal guards mutations on settled reservations. PREPARED is not
// terminal: a prepared hold still cancels and expires like an active one.
func rejectTerminal(status enums.ReservationStatus) error {
	switch status {
	case enums.ReservationStatusFulfilled:
		return pkgerrors.New(pkgerrors.CodeConflict, "reservation already fulfilled")
	case enums.ReservationStatusCancelled:
		return pkgerrors.New(pkgerrors.CodeConflict, "reservation already cancelled")
	case enums.ReservationStatusExpired:
		return pkgerrors.New(pkgerrors.CodeConflict, "reservation already expired")
	}
	return nil
}

func canActOnReservation(reservation *models.Reservation, actorUserID uuid.UUID, actorRole string) bool {
	if reservation.UserID == actorUserID {
		return true
	}
	role := enums.UserRole(actorRole)
	return role == enums.UserRoleLibrarian || role == enums.UserRoleAdmin
}

func buildActor(userID uuid.UUID, role string) *outbox.ActorRef {
	if userID == uuid.Nil {
		return nil
	}
	return &outbox.ActorRef{UserID: userID, Role: role}
}
