package cron

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/barthig/Biblioteka-sub002/pkg/db/models"
	"github.com/barthig/Biblioteka-sub002/pkg/enums"
	"github.com/barthig/Biblioteka-sub002/pkg/logger"
	"github.com/barthig/Biblioteka-sub002/pkg/outbox"
	"github.com/barthig/Biblioteka-sub002/pkg/outbox/payloads"
)

type fakeDueSoonSource struct {
	loans    []models.Loan
	lastLead int
}

func (f *fakeDueSoonSource) ListDueSoon(ctx context.Context, now time.Time, leadDays, limit int) ([]models.Loan, error) {
	f.lastLead = leadDays
	return f.loans, nil
}

type fakeReminderEmitter struct {
	events []outbox.DomainEvent
}

func (f *fakeReminderEmitter) EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	f.events = append(f.events, event)
	return nil
}

func TestDueReminderJobEmitsOneEventPerLoan(t *testing.T) {
	now := time.Date(2026, 8, 10, 12, 0, 0, 0, time.UTC)
	loans := []models.Loan{
		{ID: uuid.New(), UserID: uuid.New(), BookID: uuid.New(), DueAt: now.Add(72 * time.Hour)},
		{ID: uuid.New(), UserID: uuid.New(), BookID: uuid.New(), DueAt: now.Add(30 * time.Hour)},
	}
	source := &fakeDueSoonSource{loans: loans}
	emitter := &fakeReminderEmitter{}

	jobIface, err := NewDueReminderJob(DueReminderJobParams{
		Logger:   logger.New(logger.Options{ServiceName: "test"}),
		DB:       passthroughTxRunner{},
		Loans:    source,
		Outbox:   emitter,
		LeadDays: 3,
	})
	if err != nil {
		t.Fatalf("NewDueReminderJob: %v", err)
	}
	job := jobIface.(*dueReminderJob)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if source.lastLead != 3 {
		t.Fatalf("expected lead days 3, got %d", source.lastLead)
	}
	if len(emitter.events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(emitter.events))
	}
	first := emitter.events[0]
	if first.EventType != enums.EventLoanDueSoon || first.AggregateID != loans[0].ID {
		t.Fatalf("unexpected event %+v", first)
	}
	payload, ok := first.Data.(payloads.LoanDueSoonEvent)
	if !ok {
		t.Fatalf("unexpected payload type %T", first.Data)
	}
	if payload.DaysLeft != 3 {
		t.Fatalf("expected 3 days left, got %d", payload.DaysLeft)
	}
	second, ok := emitter.events[1].Data.(payloads.LoanDueSoonEvent)
	if !ok {
		t.Fatalf("unexpected payload type %T", emitter.events[1].Data)
	}
	if second.DaysLeft != 2 {
		t.Fatalf("expected 2 days left for partial day, got %d", second.DaysLeft)
	}
}

func TestDaysUntil(t *testing.T) {
	now := time.Date(2026, 8, 10, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		name  string
		dueAt time.Time
		want  int
	}{
		{"past due", now.Add(-time.Hour), 0},
		{"same instant", now, 0},
		{"under a day", now.Add(6 * time.Hour), 1},
		{"exactly two days", now.Add(48 * time.Hour), 2},
		{"two days and change", now.Add(49 * time.Hour), 3},
	}
	for _, tc := range cases {
		if got := daysUntil(now, tc.dueAt); got != tc.want {
			t.Errorf("%s: expected %d, got %d", tc.name, tc.want, got)
		}
	}
}
