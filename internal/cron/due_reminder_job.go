package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/barthig/Biblioteka-sub002/pkg/db/models"
	"github.com/barthig/Biblioteka-sub002/pkg/enums"
	"github.com/barthig/Biblioteka-sub002/pkg/logger"
	"github.com/barthig/Biblioteka-sub002/pkg/outbox"
	"github.com/barthig/Biblioteka-sub002/pkg/outbox/payloads"
)

const (
	defaultReminderLeadDays = 3
	defaultReminderBatch    = 200
)

type DueReminderJobParams struct {
	Logger    *logger.Logger
	DB        txRunner
	Loans     dueSoonSource
	Outbox    reminderEmitter
	LeadDays  int
	BatchSize int
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type dueSoonSource interface {
	ListDueSoon(ctx context.Context, now time.Time, leadDays, limit int) ([]models.Loan, error)
}

type reminderEmitter interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// NewDueReminderJob queues a due-soon notice for loans approaching their due date.
func NewDueReminderJob(params DueReminderJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Loans == nil {
		return nil, fmt.Errorf("loans service required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	leadDays := params.LeadDays
	if leadDays <= 0 {
		leadDays = defaultReminderLeadDays
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultReminderBatch
	}
	return &dueReminderJob{
		logg:     params.Logger,
		db:       params.DB,
		loans:    params.Loans,
		outbox:   params.Outbox,
		leadDays: leadDays,
		batch:    batch,
		now:      time.Now,
	}, nil
}

type dueReminderJob struct {
	logg     *logger.Logger
	db       txRunner
	loans    dueSoonSource
	outbox   reminderEmitter
	leadDays int
	batch    int
	now      func() time.Time
}

func (j *dueReminderJob) Name() string { return "due-reminder" }

func (j *dueReminderJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	loans, err := j.loans.ListDueSoon(ctx, now, j.leadDays, j.batch)
	if err != nil {
		return fmt.Errorf("list due soon loans: %w", err)
	}

	var errs error
	reminded := 0
	for _, loan := range loans {
		if err := j.remind(ctx, loan, now); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("loan %s: %w", loan.ID, err))
			continue
		}
		reminded++
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"candidates": len(loans),
		"reminded":   reminded,
		"lead_days":  j.leadDays,
	})
	j.logg.Info(logCtx, "due reminder sweep complete")
	return errs
}

// remind writes at most one due-soon event per loan; reruns of the sweep
// dedupe on the (event type, aggregate) pair.
func (j *dueReminderJob) remind(ctx context.Context, loan models.Loan, now time.Time) error {
	return j.db.WithTx(ctx, func(tx *gorm.DB) error {
		return j.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventLoanDueSoon,
			AggregateType: enums.AggregateLoan,
			AggregateID:   loan.ID,
			Data: payloads.LoanDueSoonEvent{
				LoanID:   loan.ID,
				UserID:   loan.UserID,
				BookID:   loan.BookID,
				DueAt:    loan.DueAt,
				DaysLeft: daysUntil(now, loan.DueAt),
			},
		})
	})
}

// daysUntil counts started 24-hour days between now and the due date.
func daysUntil(now, dueAt time.Time) int {
	remaining := dueAt.Sub(now)
	if remaining <= 0 {
		return 0
	}
	days := int(remaining / (24 * time.Hour))
	if remaining%(24*time.Hour) > 0 {
		days++
	}
	return days
}
