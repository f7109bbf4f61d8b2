package notifications

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/barthig/Biblioteka-sub002/pkg/enums"
	"github.com/barthig/Biblioteka-sub002/pkg/outbox/payloads"
)

func mustMarshal(t *testing.T, payload any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return data
}

func TestBuildLoanDueSoonNotice(t *testing.T) {
	userID := uuid.New()
	dueAt := time.Date(2026, time.September, 12, 18, 0, 0, 0, time.UTC)
	data := mustMarshal(t, payloads.LoanDueSoonEvent{
		LoanID:   uuid.New(),
		UserID:   userID,
		BookID:   uuid.New(),
		DueAt:    dueAt,
		DaysLeft: 3,
	})

	notice, err := buildLoanDueSoonNotice(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if notice.UserID != userID {
		t.Fatalf("notice targets wrong user")
	}
	if notice.Type != enums.NotificationLoanDueSoon {
		t.Fatalf("unexpected type %s", notice.Type)
	}
	if !strings.Contains(notice.Message, "3 days") || !strings.Contains(notice.Message, "12 Sep 2026") {
		t.Fatalf("unexpected message %q", notice.Message)
	}
}

func TestBuildLoanOverdueNoticeSingularDay(t *testing.T) {
	data := mustMarshal(t, payloads.LoanOverdueEvent{
		LoanID:      uuid.New(),
		UserID:      uuid.New(),
		BookID:      uuid.New(),
		DueAt:       time.Now().Add(-25 * time.Hour),
		DaysOverdue: 1,
	})

	notice, err := buildLoanOverdueNotice(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(notice.Message, "1 day overdue") {
		t.Fatalf("unexpected message %q", notice.Message)
	}
}

func TestBuildLoanReturnedNoticeOverdueVariant(t *testing.T) {
	data := mustMarshal(t, payloads.LoanReturnedEvent{
		LoanID:     uuid.New(),
		UserID:     uuid.New(),
		BookID:     uuid.New(),
		BookCopyID: uuid.New(),
		ReturnedAt: time.Now(),
		WasOverdue: true,
	})

	notice, err := buildLoanReturnedNotice(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(notice.Message, "fines") {
		t.Fatalf("overdue return should mention fines, got %q", notice.Message)
	}
}

func TestBuildFineAssessedNotice(t *testing.T) {
	userID := uuid.New()
	data := mustMarshal(t, payloads.FineAssessedEvent{
		FineID:      uuid.New(),
		LoanID:      uuid.New(),
		UserID:      userID,
		Amount:      "1.50",
		Currency:    "PLN",
		DaysOverdue: 3,
	})

	notice, err := buildFineAssessedNotice(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if notice.Type != enums.NotificationFineAssessed {
		t.Fatalf("unexpected type %s", notice.Type)
	}
	if !strings.Contains(notice.Message, "1.50 PLN") {
		t.Fatalf("unexpected message %q", notice.Message)
	}
}

func TestBuildReservationQueuedNotice(t *testing.T) {
	data := mustMarshal(t, payloads.ReservationCreatedEvent{
		ReservationID: uuid.New(),
		UserID:        uuid.New(),
		BookID:        uuid.New(),
		QueuePosition: 2,
		ExpiresAt:     time.Now().Add(14 * 24 * time.Hour),
	})

	notice, err := buildReservationQueuedNotice(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if notice.Type != enums.NotificationReservationQueued {
		t.Fatalf("unexpected type %s", notice.Type)
	}
	if !strings.Contains(notice.Message, "number 2") {
		t.Fatalf("unexpected message %q", notice.Message)
	}
}

func TestNoticeBuildersRejectMissingUser(t *testing.T) {
	data := mustMarshal(t, payloads.LoanCreatedEvent{
		LoanID: uuid.New(),
		BookID: uuid.New(),
		DueAt:  time.Now().Add(14 * 24 * time.Hour),
	})

	if _, err := buildLoanCreatedNotice(data); err == nil {
		t.Fatal("expected missing user id to be rejected")
	}
}

func TestNoticeBuildersCoverAllPatronEvents(t *testing.T) {
	expected := []enums.OutboxEventType{
		enums.EventLoanCreated,
		enums.EventLoanReturned,
		enums.EventLoanDueSoon,
		enums.EventLoanOverdue,
		enums.EventReservationCreated,
		enums.EventReservationReady,
		enums.EventReservationExpired,
		enums.EventFineAssessed,
	}
	for _, eventType := range expected {
		if _, ok := noticeBuilders[eventType]; !ok {
			t.Fatalf("no builder registered for %s", eventType)
		}
	}
}
