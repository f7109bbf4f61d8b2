package fines

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/barthig/Biblioteka-sub002/pkg/config"
	dbpkg "github.com/barthig/Biblioteka-sub002/pkg/db"
	"github.com/barthig/Biblioteka-sub002/pkg/db/models"
	"github.com/barthig/Biblioteka-sub002/pkg/enums"
	pkgerrors "github.com/barthig/Biblioteka-sub002/pkg/errors"
	"github.com/barthig/Biblioteka-sub002/pkg/outbox"
	"github.com/barthig/Biblioteka-sub002/pkg/outbox/payloads"
)

// Assessor settles the overdue charge for a loan inside the caller's
// transaction. The return desk and the overdue sweep both go through it.
type Assessor interface {
	AssessOverdue(ctx context.Context, tx *gorm.DB, loan *models.Loan, now time.Time, actor *outbox.ActorRef) (bool, error)
}

type assessor struct {
	repo   Repository
	outbox outboxPublisher
	cfg    config.CirculationConfig
}

// NewAssessor exposes the default fine assessor implementation.
func NewAssessor(repo Repository, outboxSvc outboxPublisher, cfg config.CirculationConfig) Assessor {
	return &assessor{repo: repo, outbox: outboxSvc, cfg: cfg}
}

// AssessOverdue upserts the loan's pending fine at the daily rate. It
// reports false when the grace period still covers the delay or the pending
// amount is already current.
func (g *assessor) AssessOverdue(ctx context.Context, tx *gorm.DB, loan *models.Loan, now time.Time, actor *outbox.ActorRef) (bool, error) {
	if tx == nil {
		return false, pkgerrors.New(pkgerrors.CodeDependency, "transaction required for fine assessment")
	}

	days := daysOverdue(loan.DueAt, now)
	chargeable := days - g.cfg.FineGraceDays
	if chargeable <= 0 {
		return false, nil
	}
	amount := g.cfg.DailyRate().Mul(decimal.NewFromInt(int64(chargeable)))

	repo := g.repo.WithTx(tx)
	fine, err := repo.FindPendingByLoan(ctx, loan.ID)
	switch {
	case err == nil:
		if !amount.GreaterThan(fine.Amount) {
			return false, nil
		}
		fine.Amount = amount
		fine.DaysOverdue = days
		fine.AssessedAt = now
		if err := repo.Update(ctx, fine); err != nil {
			return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "grow fine")
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		fine = &models.Fine{
			LoanID:      loan.ID,
			UserID:      loan.UserID,
			Amount:      amount,
			Currency:    g.currency(),
			Status:      enums.FinePending,
			DaysOverdue: days,
			AssessedAt:  now,
		}
		if _, err := repo.Create(ctx, fine); err != nil {
			if dbpkg.IsUniqueViolation(err, "uq_fines_loan_pending") {
				// Another worker assessed in parallel; its amount stands.
				return false, nil
			}
			return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create fine")
		}
	default:
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find pending fine")
	}

	event := outbox.DomainEvent{
		EventType:     enums.EventFineAssessed,
		AggregateType: enums.AggregateFine,
		AggregateID:   fine.ID,
		Actor:         actor,
		Data: payloads.FineAssessedEvent{
			FineID:      fine.ID,
			LoanID:      fine.LoanID,
			UserID:      fine.UserID,
			Amount:      fine.Amount.StringFixed(2),
			Currency:    fine.Currency,
			DaysOverdue: fine.DaysOverdue,
		},
	}
	if err := g.outbox.Emit(ctx, tx, event); err != nil {
		return false, err
	}
	return true, nil
}

func (g *assessor) currency() string {
	if g.cfg.FineCurrency != "" {
		return g.cfg.FineCurrency
	}
	return "PLN"
}

// daysOverdue counts started 24-hour days past the due date.
func daysOverdue(dueAt, now time.Time) int {
	if !now.After(dueAt) {
		return 0
	}
	elapsed := now.Sub(dueAt)
	days := int(elapsed / (24 * time.Hour))
	if elapsed%(24*time.Hour) > 0 {
		days++
	}
	return days
}
