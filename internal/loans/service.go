package loans

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/barthig/Biblioteka-sub002/pkg/config"
	dbpkg "github.com/barthig/Biblioteka-sub002/pkg/db"
	"github.com/barthig/Biblioteka-sub002/pkg/db/models"
	"github.com/barthig/Biblioteka-sub002/pkg/enums"
	pkgerrors "github.com/barthig/Biblioteka-sub002/pkg/errors"
	"github.com/barthig/Biblioteka-sub002/pkg/metrics"
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
	PickLendableCopy(ctx context.Context, tx *gorm.DB, bookID uuid.UUID) (*models.BookCopy, error)
	TransitionCopy(ctx context.Context, tx *gorm.DB, copy *models.BookCopy, target enums.CopyStatus, now time.Time) error
	Recalculate(ctx context.Context, tx *gorm.DB, bookID uuid.UUID) error
}

type queueGateway interface {
	GetClaim(ctx context.Context, tx *gorm.DB, reservationID uuid.UUID) (*models.Reservation, error)
	FindUserClaim(ctx context.Context, tx *gorm.DB, userID, bookID uuid.UUID) (*models.Reservation, error)
	HasOtherActive(ctx context.Context, tx *gorm.DB, bookID, excludedUserID uuid.UUID) (bool, error)
	AssignNext(ctx context.Context, tx *gorm.DB, bookID uuid.UUID, copy *models.BookCopy, now time.Time) (*models.Reservation, error)
	FulfillWithLoan(ctx context.Context, tx *gorm.DB, reservation *models.Reservation, loanID uuid.UUID, now time.Time, actor *outbox.ActorRef) error
}

type userDirectory interface {
	GetUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*models.User, error)
}

// fineAssessor settles the overdue fine inside the return transaction.
type fineAssessor interface {
	AssessOverdue(ctx context.Context, tx *gorm.DB, loan *models.Loan, now time.Time, actor *outbox.ActorRef) (bool, error)
}

// Service defines lending desk operations.
type Service interface {
	Create(ctx context.Context, input CreateLoanInput) (*models.Loan, error)
	PickUp(ctx context.Context, input PickUpInput) (*models.Loan, error)
	Return(ctx context.Context, input ReturnLoanInput) (*ReturnResult, error)
	Extend(ctx context.Context, input ExtendLoanInput) (*models.Loan, error)
	Delete(ctx context.Context, loanID uuid.UUID) error
	Get(ctx context.Context, loanID uuid.UUID) (*models.Loan, error)
	ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) (*LoanList, error)
	ListOverdue(ctx context.Context, now time.Time, limit int) ([]models.Loan, error)
	ListDueSoon(ctx context.Context, now time.Time, leadDays, limit int) ([]models.Loan, error)
}

type service struct {
	repo    Repository
	tx      txRunner
	outbox  outboxPublisher
	copies  copyGateway
	queue   queueGateway
	users   userDirectory
	fines   fineAssessor
	metrics *metrics.CirculationMetrics
	cfg     config.CirculationConfig
}

// NewService builds a loans service with the required dependencies. The fine
// assessor and metrics may be nil; returns then skip fines and counting.
func NewService(
	repo Repository,
	tx txRunner,
	outboxSvc outboxPublisher,
	copies copyGateway,
	queue queueGateway,
	users userDirectory,
	fines fineAssessor,
	circMetrics *metrics.CirculationMetrics,
	cfg config.CirculationConfig,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("loans repository required")
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
	if queue == nil {
		return nil, fmt.Errorf("queue gateway required")
	}
	if users == nil {
		return nil, fmt.Errorf("user directory required")
	}
	return &service{
		repo:    repo,
		tx:      tx,
		outbox:  outboxSvc,
		copies:  copies,
		queue:   queue,
		users:   users,
		fines:   fines,
		metrics: circMetrics,
		cfg:     cfg,
	}, nil
}

// Create lends a copy of the book to the user. A reader whose own hold has a
// copy waiting is lent that copy and the hold is fulfilled in the same
// transaction.
func (s *service) Create(ctx context.Context, input CreateLoanInput) (*models.Loan, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if input.BookID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "book id required")
	}

	var loan *models.Loan
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
		if err := s.checkLoanLimit(ctx, tx, user); err != nil {
			return err
		}

		claim, err := s.queue.FindUserClaim(ctx, tx, user.ID, book.ID)
		if err != nil {
			return err
		}

		copy, claimToFulfill, err := s.resolveCopy(ctx, tx, input, book, claim)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		if err := s.copies.TransitionCopy(ctx, tx, copy, enums.CopyStatusBorrowed, now); err != nil {
			return err
		}

		loan = s.newLoan(user.ID, book.ID, copy.ID, now)
		if _, err := s.repo.WithTx(tx).Create(ctx, loan); err != nil {
			if dbpkg.IsUniqueViolation(err, "ux_loans_active_copy") {
				return pkgerrors.New(pkgerrors.CodeConflict, "copy already on loan")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create loan")
		}

		actor := buildActor(input.ActorUserID, input.ActorRole)
		if claimToFulfill != nil {
			if err := s.queue.FulfillWithLoan(ctx, tx, claimToFulfill, loan.ID, now, actor); err != nil {
				return err
			}
		}
		if err := s.copies.Recalculate(ctx, tx, book.ID); err != nil {
			return err
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventLoanCreated,
			AggregateType: enums.AggregateLoan,
			AggregateID:   loan.ID,
			Actor:         actor,
			Data: payloads.LoanCreatedEvent{
				LoanID:     loan.ID,
				UserID:     loan.UserID,
				BookID:     loan.BookID,
				BookCopyID: loan.BookCopyID,
				DueAt:      loan.DueAt,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncLoansCreated()
	return loan, nil
}

// PickUp lends the copy earmarked for a reservation and fulfills the
// reservation atomically.
func (s *service) PickUp(ctx context.Context, input PickUpInput) (*models.Loan, error) {
	if input.ReservationID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reservation id required")
	}

	var loan *models.Loan
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		reservation, err := s.queue.GetClaim(ctx, tx, input.ReservationID)
		if err != nil {
			return err
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

		user, err := s.users.GetUser(ctx, tx, reservation.UserID)
		if err != nil {
			return err
		}
		if user.IsBlocked {
			return pkgerrors.New(pkgerrors.CodeForbidden, "user account is blocked")
		}
		if err := s.checkLoanLimit(ctx, tx, user); err != nil {
			return err
		}

		copy, err := s.copies.GetCopy(ctx, tx, *reservation.BookCopyID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		if err := s.copies.TransitionCopy(ctx, tx, copy, enums.CopyStatusBorrowed, now); err != nil {
			return err
		}

		loan = s.newLoan(user.ID, reservation.BookID, copy.ID, now)
		if _, err := s.repo.WithTx(tx).Create(ctx, loan); err != nil {
			if dbpkg.IsUniqueViolation(err, "ux_loans_active_copy") {
				return pkgerrors.New(pkgerrors.CodeConflict, "copy already on loan")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create loan")
		}

		actor := buildActor(input.ActorUserID, input.ActorRole)
		if err := s.queue.FulfillWithLoan(ctx, tx, reservation, loan.ID, now, actor); err != nil {
			return err
		}
		if err := s.copies.Recalculate(ctx, tx, reservation.BookID); err != nil {
			return err
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventLoanCreated,
			AggregateType: enums.AggregateLoan,
			AggregateID:   loan.ID,
			Actor:         actor,
			Data: payloads.LoanCreatedEvent{
				LoanID:     loan.ID,
				UserID:     loan.UserID,
				BookID:     loan.BookID,
				BookCopyID: loan.BookCopyID,
				DueAt:      loan.DueAt,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncLoansCreated()
	return loan, nil
}

// Return closes the loan. The freed copy goes straight to the head of the
// book's hold queue when one is waiting, otherwise back on the shelf.
func (s *service) Return(ctx context.Context, input ReturnLoanInput) (*ReturnResult, error) {
	if input.LoanID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "loan id required")
	}

	var result *ReturnResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		loan, err := repo.FindByID(ctx, input.LoanID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "loan not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load loan")
		}
		if !canActOnLoan(loan, input.ActorUserID, input.ActorRole) {
			return pkgerrors.New(pkgerrors.CodeForbidden, "loan belongs to another reader")
		}
		if loan.ReturnedAt != nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "loan already returned")
		}

		copy, err := s.copies.GetCopy(ctx, tx, loan.BookCopyID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		wasOverdue := loan.IsOverdue(now)
		loan.ReturnedAt = &now
		if err := repo.Update(ctx, loan); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "return loan")
		}

		result = &ReturnResult{
			LoanID:     loan.ID,
			ReturnedAt: now,
			WasOverdue: wasOverdue,
		}

		next, err := s.queue.AssignNext(ctx, tx, loan.BookID, copy, now)
		if err != nil {
			return err
		}
		if next != nil {
			if err := s.copies.TransitionCopy(ctx, tx, copy, enums.CopyStatusReserved, now); err != nil {
				return err
			}
			userID := next.UserID
			result.HandedOffTo = &userID
		} else {
			if err := s.copies.TransitionCopy(ctx, tx, copy, enums.CopyStatusAvailable, now); err != nil {
				return err
			}
			result.CopyMadeShelved = true
		}

		actor := buildActor(input.ActorUserID, input.ActorRole)
		if wasOverdue && s.fines != nil {
			assessed, err := s.fines.AssessOverdue(ctx, tx, loan, now, actor)
			if err != nil {
				return err
			}
			result.FineAssessed = assessed
		}

		if err := s.copies.Recalculate(ctx, tx, loan.BookID); err != nil {
			return err
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventLoanReturned,
			AggregateType: enums.AggregateLoan,
			AggregateID:   loan.ID,
			Actor:         actor,
			Data: payloads.LoanReturnedEvent{
				LoanID:     loan.ID,
				UserID:     loan.UserID,
				BookID:     loan.BookID,
				BookCopyID: loan.BookCopyID,
				ReturnedAt: now,
				WasOverdue: wasOverdue,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncLoansReturned()
	return result, nil
}

// Extend pushes the due date out by one loan period. Readers waiting in the
// hold queue take precedence over an extension.
func (s *service) Extend(ctx context.Context, input ExtendLoanInput) (*models.Loan, error) {
	if input.LoanID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "loan id required")
	}

	var loan *models.Loan
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		found, err := repo.FindByID(ctx, input.LoanID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "loan not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load loan")
		}
		loan = found
		if !canActOnLoan(loan, input.ActorUserID, input.ActorRole) {
			return pkgerrors.New(pkgerrors.CodeForbidden, "loan belongs to another reader")
		}
		if loan.ReturnedAt != nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "loan already returned")
		}

		maxExtensions := s.cfg.MaxExtensions
		if maxExtensions <= 0 {
			maxExtensions = 1
		}
		if loan.ExtensionCount >= maxExtensions {
			return pkgerrors.New(pkgerrors.CodeConflict, "loan already extended")
		}

		now := time.Now().UTC()
		waiting, err := s.queue.HasOtherActive(ctx, tx, loan.BookID, loan.UserID)
		if err != nil {
			return err
		}
		if waiting {
			return pkgerrors.New(pkgerrors.CodeConflict, "book is reserved by another reader")
		}

		loan.DueAt = loan.DueAt.AddDate(0, 0, s.loanPeriodDays())
		loan.ExtensionCount++
		loan.LastExtendedAt = &now
		if err := repo.Update(ctx, loan); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "extend loan")
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventLoanExtended,
			AggregateType: enums.AggregateLoan,
			AggregateID:   loan.ID,
			Actor:         buildActor(input.ActorUserID, input.ActorRole),
			Data: payloads.LoanExtendedEvent{
				LoanID:         loan.ID,
				UserID:         loan.UserID,
				DueAt:          loan.DueAt,
				ExtensionCount: loan.ExtensionCount,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncLoansExtended()
	return loan, nil
}

// Delete is the administrative escape hatch: it removes the loan outright
// and, for an unreturned one, puts the copy straight back on the shelf.
// No return record, no fine, no reservation hand-off.
func (s *service) Delete(ctx context.Context, loanID uuid.UUID) error {
	if loanID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "loan id required")
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		loan, err := repo.FindByID(ctx, loanID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "loan not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load loan")
		}
		if loan.ReturnedAt == nil {
			copy, err := s.copies.GetCopy(ctx, tx, loan.BookCopyID)
			if err != nil {
				return err
			}
			if copy.Status == enums.CopyStatusBorrowed {
				now := time.Now().UTC()
				if err := s.copies.TransitionCopy(ctx, tx, copy, enums.CopyStatusAvailable, now); err != nil {
					return err
				}
			}
			if err := s.copies.Recalculate(ctx, tx, loan.BookID); err != nil {
				return err
			}
		}
		if err := repo.Delete(ctx, loan.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete loan")
		}
		return nil
	})
}

func (s *service) Get(ctx context.Context, loanID uuid.UUID) (*models.Loan, error) {
	loan, err := s.repo.FindByID(ctx, loanID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "loan not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load loan")
	}
	return loan, nil
}

func (s *service) ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) (*LoanList, error) {
	list, err := s.repo.ListByUser(ctx, userID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list loans")
	}
	return list, nil
}

func (s *service) ListOverdue(ctx context.Context, now time.Time, limit int) ([]models.Loan, error) {
	loans, err := s.repo.FindOverdue(ctx, now, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list overdue loans")
	}
	return loans, nil
}

func (s *service) ListDueSoon(ctx context.Context, now time.Time, leadDays, limit int) ([]models.Loan, error) {
	if leadDays <= 0 {
		leadDays = s.cfg.DueReminderLeadDays
	}
	if leadDays <= 0 {
		leadDays = 3
	}
	loans, err := s.repo.FindDueBetween(ctx, now, now.AddDate(0, 0, leadDays), limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list due loans")
	}
	return loans, nil
}

// resolveCopy picks the physical copy to lend. The caller's own hold wins;
// an explicitly requested copy must be lendable or earmarked for the caller.
func (s *service) resolveCopy(ctx context.Context, tx *gorm.DB, input CreateLoanInput, book *models.Book, claim *models.Reservation) (*models.BookCopy, *models.Reservation, error) {
	if input.PreferredCopyID != nil {
		copy, err := s.copies.GetCopy(ctx, tx, *input.PreferredCopyID)
		if err != nil {
			return nil, nil, err
		}
		if copy.BookID != book.ID {
			return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "copy does not belong to this book")
		}
		if !copy.AccessType.Circulates() {
			return nil, nil, pkgerrors.New(pkgerrors.CodeBadRequest, "reference copies do not circulate")
		}
		switch copy.Status {
		case enums.CopyStatusBorrowed:
			return nil, nil, pkgerrors.New(pkgerrors.CodeConflict, "copy already on loan")
		case enums.CopyStatusMaintenance:
			return nil, nil, pkgerrors.New(pkgerrors.CodeConflict, "copy is under maintenance")
		case enums.CopyStatusWithdrawn:
			return nil, nil, pkgerrors.New(pkgerrors.CodeStateConflict, "copy has been withdrawn from circulation")
		case enums.CopyStatusReserved:
			if claim != nil && claim.BookCopyID != nil && *claim.BookCopyID == copy.ID {
				return copy, claim, nil
			}
			return nil, nil, pkgerrors.New(pkgerrors.CodeConflict, "copy reserved by another reader")
		}
		return copy, nil, nil
	}

	if claim != nil && claim.BookCopyID != nil {
		copy, err := s.copies.GetCopy(ctx, tx, *claim.BookCopyID)
		if err != nil {
			return nil, nil, err
		}
		return copy, claim, nil
	}

	copy, err := s.copies.PickLendableCopy(ctx, tx, book.ID)
	if err != nil {
		return nil, nil, err
	}
	if copy == nil {
		waiting, err := s.queue.HasOtherActive(ctx, tx, book.ID, input.UserID)
		if err != nil {
			return nil, nil, err
		}
		if waiting {
			return nil, nil, pkgerrors.New(pkgerrors.CodeConflict, "book is reserved by another reader")
		}
		return nil, nil, pkgerrors.New(pkgerrors.CodeConflict, "no copies available")
	}
	return copy, nil, nil
}

func (s *service) checkLoanLimit(ctx context.Context, tx *gorm.DB, user *models.User) error {
	// A limit of zero means unlimited.
	if user.LoanLimit <= 0 {
		return nil
	}
	active, err := s.repo.WithTx(tx).CountActiveByUser(ctx, user.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count active loans")
	}
	if active >= int64(user.LoanLimit) {
		return pkgerrors.New(pkgerrors.CodeLimitExceeded,
			fmt.Sprintf("loan limit of %d reached", user.LoanLimit))
	}
	return nil
}

func (s *service) newLoan(userID, bookID, copyID uuid.UUID, now time.Time) *models.Loan {
	return &models.Loan{
		UserID:     userID,
		BookID:     bookID,
		BookCopyID: copyID,
		BorrowedAt: now,
		DueAt:      now.AddDate(0, 0, s.loanPeriodDays()),
	}
}

func (s *service) loanPeriodDays() int {
	if s.cfg.LoanPeriodDays > 0 {
		return s.cfg.LoanPeriodDays
	}
	return 14
}

func canActOnLoan(loan *models.Loan, actorUserID uuid.UUID, actorRole string) bool {
	if loan.UserID == actorUserID {
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
