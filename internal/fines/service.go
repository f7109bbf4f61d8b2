package fines

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/barthig/Biblioteka-sub002/pkg/config"
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

// loanSource resolves loans for manual fines and feeds the sweep with open
// loans past their due date.
type loanSource interface {
	Get(ctx context.Context, loanID uuid.UUID) (*models.Loan, error)
	ListOverdue(ctx context.Context, now time.Time, limit int) ([]models.Loan, error)
}

// Service defines fine operations.
type Service interface {
	Issue(ctx context.Context, input IssueFineInput) (*models.Fine, error)
	Pay(ctx context.Context, input PayFineInput) (*models.Fine, error)
	Cancel(ctx context.Context, input CancelFineInput) (*models.Fine, error)
	Get(ctx context.Context, fineID uuid.UUID) (*models.Fine, error)
	ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) (*FineList, error)
	OutstandingByUser(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error)
	SweepOverdue(ctx context.Context, now time.Time, batchSize int) (int, error)
}

type service struct {
	repo     Repository
	tx       txRunner
	outbox   outboxPublisher
	assessor Assessor
	loans    loanSource
	metrics  *metrics.CirculationMetrics
	cfg      config.CirculationConfig
}

// NewService builds a fines service. The loan source and metrics may be nil
// when the sweep is not wired, SweepOverdue then fails fast.
func NewService(
	repo Repository,
	tx txRunner,
	outboxSvc outboxPublisher,
	fineAssessor Assessor,
	loans loanSource,
	circMetrics *metrics.CirculationMetrics,
	cfg config.CirculationConfig,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("fines repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if fineAssessor == nil {
		return nil, fmt.Errorf("fine assessor required")
	}
	return &service{
		repo:     repo,
		tx:       tx,
		outbox:   outboxSvc,
		assessor: fineAssessor,
		loans:    loans,
		metrics:  circMetrics,
		cfg:      cfg,
	}, nil
}

// Issue records a fine a librarian charges at the desk, typically for a
// damaged or lost item. Staff only; the controller enforces the role. The
// fine is tied to a loan and competes with the sweep for the one pending
// slot that loan has.
func (s *service) Issue(ctx context.Context, input IssueFineInput) (*models.Fine, error) {
	if input.LoanID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "loan id required")
	}
	if !input.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if s.loans == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "loan source not configured")
	}

	loan, err := s.loans.Get(ctx, input.LoanID)
	if err != nil {
		return nil, err
	}

	var fine *models.Fine
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if existing, err := repo.FindPendingByLoan(ctx, loan.ID); err == nil && existing != nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "loan already has a pending fine")
		} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check pending fine")
		}

		now := time.Now().UTC()
		fine = &models.Fine{
			LoanID:     loan.ID,
			UserID:     loan.UserID,
			Amount:     input.Amount,
			Currency:   s.currency(),
			Status:     enums.FinePending,
			AssessedAt: now,
		}
		if _, err := repo.Create(ctx, fine); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create fine")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventFineAssessed,
			AggregateType: enums.AggregateFine,
			AggregateID:   fine.ID,
			Actor:         &outbox.ActorRef{UserID: input.ActorUserID, Role: input.ActorRole},
			Data: payloads.FineAssessedEvent{
				FineID:   fine.ID,
				LoanID:   fine.LoanID,
				UserID:   fine.UserID,
				Amount:   fine.Amount.StringFixed(2),
				Currency: fine.Currency,
			},
		}
		return s.outbox.Emit(ctx, tx, event)
	})
	if err != nil {
		return nil, err
	}
	return fine, nil
}

func (s *service) currency() string {
	if s.cfg.FineCurrency != "" {
		return s.cfg.FineCurrency
	}
	return "PLN"
}

func (s *service) Pay(ctx context.Context, input PayFineInput) (*models.Fine, error) {
	if input.FineID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "fine id required")
	}

	var fine *models.Fine
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		found, err := repo.FindByID(ctx, input.FineID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "fine not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load fine")
		}
		fine = found
		if !canActOnFine(fine, input.ActorUserID, input.ActorRole) {
			return pkgerrors.New(pkgerrors.CodeForbidden, "fine belongs to another reader")
		}
		switch fine.Status {
		case enums.FinePaid:
			return pkgerrors.New(pkgerrors.CodeConflict, "fine already paid")
		case enums.FineCancelled:
			return pkgerrors.New(pkgerrors.CodeConflict, "fine already cancelled")
		}

		now := time.Now().UTC()
		fine.Status = enums.FinePaid
		fine.PaidAt = &now
		if err := repo.Update(ctx, fine); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "pay fine")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return fine, nil
}

// Cancel waives a pending fine. Staff only; the controller enforces the role,
// the service still refuses settled fines.
func (s *service) Cancel(ctx context.Context, input CancelFineInput) (*models.Fine, error) {
	if input.FineID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "fine id required")
	}

	var fine *models.Fine
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		found, err := repo.FindByID(ctx, input.FineID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "fine not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load fine")
		}
		fine = found
		switch fine.Status {
		case enums.FinePaid:
			return pkgerrors.New(pkgerrors.CodeConflict, "fine already paid")
		case enums.FineCancelled:
			return pkgerrors.New(pkgerrors.CodeConflict, "fine already cancelled")
		}

		now := time.Now().UTC()
		fine.Status = enums.FineCancelled
		fine.CancelledAt = &now
		if err := repo.Update(ctx, fine); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel fine")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return fine, nil
}

func (s *service) Get(ctx context.Context, fineID uuid.UUID) (*models.Fine, error) {
	fine, err := s.repo.FindByID(ctx, fineID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "fine not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load fine")
	}
	return fine, nil
}

func (s *service) ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) (*FineList, error) {
	list, err := s.repo.ListByUser(ctx, userID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list fines")
	}
	return list, nil
}

func (s *service) OutstandingByUser(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	total, err := s.repo.SumPendingByUser(ctx, userID)
	if err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum pending fines")
	}
	return total, nil
}

// SweepOverdue walks open overdue loans, upserting their pending fines and
// publishing an overdue notice once per loan. Each loan runs in its own
// transaction so one bad row never blocks the rest of the batch.
func (s *service) SweepOverdue(ctx context.Context, now time.Time, batchSize int) (int, error) {
	if s.loans == nil {
		return 0, pkgerrors.New(pkgerrors.CodeDependency, "loan source not configured")
	}
	overdue, err := s.loans.ListOverdue(ctx, now, batchSize)
	if err != nil {
		return 0, err
	}

	assessed := 0
	var errs error
	for _, loan := range overdue {
		loan := loan
		grown := false
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			did, err := s.assessor.AssessOverdue(ctx, tx, &loan, now, nil)
			if err != nil {
				return err
			}
			grown = did

			event := outbox.DomainEvent{
				EventType:     enums.EventLoanOverdue,
				AggregateType: enums.AggregateLoan,
				AggregateID:   loan.ID,
				Data: payloads.LoanOverdueEvent{
					LoanID:      loan.ID,
					UserID:      loan.UserID,
					BookID:      loan.BookID,
					DueAt:       loan.DueAt,
					DaysOverdue: daysOverdue(loan.DueAt, now),
				},
			}
			return s.outbox.EmitIfNotExists(ctx, tx, event)
		})
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("loan %s: %w", loan.ID, err))
			continue
		}
		if grown {
			assessed++
			s.metrics.IncFinesAssessed()
		}
	}
	return assessed, errs
}

func canActOnFine(fine *models.Fine, actorUserID uuid.UUID, actorRole string) bool {
	if fine.UserID == actorUserID {
		return true
	}
	role := enums.UserRole(actorRole)
	return role == enums.UserRoleLibrarian || role == enums.UserRoleAdmin
}
