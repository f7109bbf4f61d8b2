package fines

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/barthig/Biblioteka-sub002/pkg/config"
	"github.com/barthig/Biblioteka-sub002/pkg/db/models"
	"github.com/barthig/Biblioteka-sub002/pkg/enums"
	pkgerrors "github.com/barthig/Biblioteka-sub002/pkg/errors"
	"github.com/barthig/Biblioteka-sub002/pkg/outbox"
	"github.com/barthig/Biblioteka-sub002/pkg/pagination"
)

type stubFinesRepo struct {
	fines map[uuid.UUID]*models.Fine
}

func newStubFinesRepo() *stubFinesRepo {
	return &stubFinesRepo{fines: make(map[uuid.UUID]*models.Fine)}
}

func (s *stubFinesRepo) WithTx(tx *gorm.DB) Repository {
	return s
}

func (s *stubFinesRepo) Create(ctx context.Context, fine *models.Fine) (*models.Fine, error) {
	if fine.ID == uuid.Nil {
		fine.ID = uuid.New()
	}
	clone := *fine
	s.fines[fine.ID] = &clone
	return fine, nil
}

func (s *stubFinesRepo) Update(ctx context.Context, fine *models.Fine) error {
	clone := *fine
	s.fines[fine.ID] = &clone
	return nil
}

func (s *stubFinesRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Fine, error) {
	fine, ok := s.fines[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *fine
	return &clone, nil
}

func (s *stubFinesRepo) FindPendingByLoan(ctx context.Context, loanID uuid.UUID) (*models.Fine, error) {
	for _, fine := range s.fines {
		if fine.LoanID == loanID && fine.Status == enums.FinePending {
			clone := *fine
			return &clone, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubFinesRepo) SumPendingByUser(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, fine := range s.fines {
		if fine.UserID == userID && fine.Status == enums.FinePending {
			total = total.Add(fine.Amount)
		}
	}
	return total, nil
}

func (s *stubFinesRepo) ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) (*FineList, error) {
	panic("not implemented")
}

type stubOutboxPublisher struct {
	events  []outbox.DomainEvent
	deduped []outbox.DomainEvent
}

func (s *stubOutboxPublisher) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	s.events = append(s.events, event)
	return nil
}

func (s *stubOutboxPublisher) EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	s.deduped = append(s.deduped, event)
	return nil
}

type stubOverdueSource struct {
	loans []models.Loan
}

func (s *stubOverdueSource) Get(ctx context.Context, loanID uuid.UUID) (*models.Loan, error) {
	for i := range s.loans {
		if s.loans[i].ID == loanID {
			clone := s.loans[i]
			return &clone, nil
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "loan not found")
}

func (s *stubOverdueSource) ListOverdue(ctx context.Context, now time.Time, limit int) ([]models.Loan, error) {
	return s.loans, nil
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

func testCirculationConfig() config.CirculationConfig {
	return config.CirculationConfig{
		LoanPeriodDays:   14,
		FineDailyRate:    "0.50",
		FineCurrency:     "PLN",
		FineGraceDays:    0,
		PickupWindowDays: 2,
	}
}

type fineFixture struct {
	repo      *stubFinesRepo
	publisher *stubOutboxPublisher
	source    *stubOverdueSource
	assessor  Assessor
	svc       Service

	userID uuid.UUID
}

func newFineFixture(t *testing.T) *fineFixture {
	t.Helper()
	f := &fineFixture{
		repo:      newStubFinesRepo(),
		publisher: &stubOutboxPublisher{},
		source:    &stubOverdueSource{},
		userID:    uuid.New(),
	}
	f.assessor = NewAssessor(f.repo, f.publisher, testCirculationConfig())

	svc, err := NewService(f.repo, stubTxRunner{}, f.publisher, f.assessor, f.source, nil, testCirculationConfig())
	if err != nil {
		t.Fatalf("service constructor failed: %v", err)
	}
	f.svc = svc
	return f
}

func (f *fineFixture) overdueLoan(now time.Time, daysLate int) models.Loan {
	return models.Loan{
		ID:         uuid.New(),
		UserID:     f.userID,
		BookID:     uuid.New(),
		BookCopyID: uuid.New(),
		BorrowedAt: now.AddDate(0, 0, -14-daysLate),
		DueAt:      now.AddDate(0, 0, -daysLate),
	}
}

func TestAssessOverdueCreatesPendingFine(t *testing.T) {
	f := newFineFixture(t)
	now := time.Now().UTC()
	loan := f.overdueLoan(now, 3)

	assessed, err := f.assessor.AssessOverdue(context.Background(), &gorm.DB{}, &loan, now, nil)
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if !assessed {
		t.Fatalf("expected a fine to be assessed")
	}

	fine, err := f.repo.FindPendingByLoan(context.Background(), loan.ID)
	if err != nil {
		t.Fatalf("pending fine missing: %v", err)
	}
	if !fine.Amount.Equal(decimal.RequireFromString("1.50")) {
		t.Fatalf("expected 3 days at 0.50, got %s", fine.Amount)
	}
	if fine.Currency != "PLN" || fine.DaysOverdue != 3 {
		t.Fatalf("unexpected fine %+v", fine)
	}
	if len(f.publisher.events) != 1 || f.publisher.events[0].EventType != enums.EventFineAssessed {
		t.Fatalf("expected fine_assessed event")
	}
}

func TestAssessOverdueGrowsExistingFine(t *testing.T) {
	f := newFineFixture(t)
	now := time.Now().UTC()
	loan := f.overdueLoan(now, 2)
	ctx := context.Background()

	if _, err := f.assessor.AssessOverdue(ctx, &gorm.DB{}, &loan, now, nil); err != nil {
		t.Fatalf("first assessment failed: %v", err)
	}

	// Same instant: the amount is current, nothing to grow.
	assessed, err := f.assessor.AssessOverdue(ctx, &gorm.DB{}, &loan, now, nil)
	if err != nil {
		t.Fatalf("idempotent re-run failed: %v", err)
	}
	if assessed {
		t.Fatalf("unchanged amount must not re-assess")
	}

	later := now.AddDate(0, 0, 2)
	assessed, err = f.assessor.AssessOverdue(ctx, &gorm.DB{}, &loan, later, nil)
	if err != nil {
		t.Fatalf("grow failed: %v", err)
	}
	if !assessed {
		t.Fatalf("expected the fine to grow")
	}
	fine, err := f.repo.FindPendingByLoan(ctx, loan.ID)
	if err != nil {
		t.Fatalf("pending fine missing: %v", err)
	}
	if !fine.Amount.Equal(decimal.RequireFromString("2.00")) {
		t.Fatalf("expected 4 days at 0.50, got %s", fine.Amount)
	}
}

func TestAssessOverdueRespectsGracePeriod(t *testing.T) {
	f := newFineFixture(t)
	cfg := testCirculationConfig()
	cfg.FineGraceDays = 5
	graceAssessor := NewAssessor(f.repo, f.publisher, cfg)
	now := time.Now().UTC()
	loan := f.overdueLoan(now, 3)

	assessed, err := graceAssessor.AssessOverdue(context.Background(), &gorm.DB{}, &loan, now, nil)
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if assessed {
		t.Fatalf("delay inside the grace period must not be fined")
	}
	if len(f.repo.fines) != 0 {
		t.Fatalf("no fine row expected")
	}
}

func TestIssueFine(t *testing.T) {
	f := newFineFixture(t)
	now := time.Now().UTC()
	loan := f.overdueLoan(now, 0)
	f.source.loans = []models.Loan{loan}
	librarian := uuid.New()

	fine, err := f.svc.Issue(context.Background(), IssueFineInput{
		LoanID:      loan.ID,
		Amount:      decimal.RequireFromString("25.00"),
		ActorUserID: librarian,
		ActorRole:   string(enums.UserRoleLibrarian),
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if fine.Status != enums.FinePending || fine.UserID != loan.UserID {
		t.Fatalf("unexpected fine %+v", fine)
	}
	if fine.Currency != "PLN" || fine.Amount.StringFixed(2) != "25.00" {
		t.Fatalf("unexpected charge %s %s", fine.Amount, fine.Currency)
	}
	if len(f.publisher.events) != 1 || f.publisher.events[0].EventType != enums.EventFineAssessed {
		t.Fatalf("expected one assessed event, got %+v", f.publisher.events)
	}
	if actor := f.publisher.events[0].Actor; actor == nil || actor.UserID != librarian {
		t.Fatalf("event actor not recorded: %+v", f.publisher.events[0].Actor)
	}
}

func TestIssueFineRejectsSecondPending(t *testing.T) {
	f := newFineFixture(t)
	now := time.Now().UTC()
	loan := f.overdueLoan(now, 0)
	f.source.loans = []models.Loan{loan}
	f.repo.fines[uuid.New()] = &models.Fine{
		ID:     uuid.New(),
		LoanID: loan.ID,
		UserID: loan.UserID,
		Amount: decimal.RequireFromString("1.50"),
		Status: enums.FinePending,
	}

	_, err := f.svc.Issue(context.Background(), IssueFineInput{
		LoanID:      loan.ID,
		Amount:      decimal.RequireFromString("10.00"),
		ActorUserID: uuid.New(),
		ActorRole:   string(enums.UserRoleLibrarian),
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
	if typed.Message() != "loan already has a pending fine" {
		t.Fatalf("unexpected message %q", typed.Message())
	}
}

func TestIssueFineValidatesAmount(t *testing.T) {
	f := newFineFixture(t)
	_, err := f.svc.Issue(context.Background(), IssueFineInput{
		LoanID: uuid.New(),
		Amount: decimal.Zero,
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestPayFine(t *testing.T) {
	f := newFineFixture(t)
	fine := &models.Fine{
		ID:         uuid.New(),
		LoanID:     uuid.New(),
		UserID:     f.userID,
		Amount:     decimal.RequireFromString("1.00"),
		Currency:   "PLN",
		Status:     enums.FinePending,
		AssessedAt: time.Now().UTC(),
	}
	f.repo.fines[fine.ID] = fine

	ctx := context.Background()
	paid, err := f.svc.Pay(ctx, PayFineInput{FineID: fine.ID, ActorUserID: f.userID})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if paid.Status != enums.FinePaid || paid.PaidAt == nil {
		t.Fatalf("fine not settled: %+v", paid)
	}

	_, err = f.svc.Pay(ctx, PayFineInput{FineID: fine.ID, ActorUserID: f.userID})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
	if typed.Message() != "fine already paid" {
		t.Fatalf("unexpected message %q", typed.Message())
	}
}

func TestPayFineForbiddenForStranger(t *testing.T) {
	f := newFineFixture(t)
	fine := &models.Fine{
		ID:     uuid.New(),
		LoanID: uuid.New(),
		UserID: f.userID,
		Amount: decimal.RequireFromString("1.00"),
		Status: enums.FinePending,
	}
	f.repo.fines[fine.ID] = fine

	_, err := f.svc.Pay(context.Background(), PayFineInput{FineID: fine.ID, ActorUserID: uuid.New()})
	if !pkgerrors.HasCode(err, pkgerrors.CodeForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestCancelFine(t *testing.T) {
	f := newFineFixture(t)
	fine := &models.Fine{
		ID:     uuid.New(),
		LoanID: uuid.New(),
		UserID: f.userID,
		Amount: decimal.RequireFromString("2.50"),
		Status: enums.FinePending,
	}
	f.repo.fines[fine.ID] = fine

	cancelled, err := f.svc.Cancel(context.Background(), CancelFineInput{
		FineID:      fine.ID,
		Reason:      "damaged barcode, not the reader's fault",
		ActorUserID: uuid.New(),
		ActorRole:   string(enums.UserRoleLibrarian),
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if cancelled.Status != enums.FineCancelled || cancelled.CancelledAt == nil {
		t.Fatalf("fine not cancelled: %+v", cancelled)
	}
}

func TestSweepOverdue(t *testing.T) {
	f := newFineFixture(t)
	now := time.Now().UTC()
	first := f.overdueLoan(now, 1)
	second := f.overdueLoan(now, 4)
	f.source.loans = []models.Loan{first, second}

	assessed, err := f.svc.SweepOverdue(context.Background(), now, 100)
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if assessed != 2 {
		t.Fatalf("expected 2 fines assessed, got %d", assessed)
	}
	if len(f.publisher.deduped) != 2 {
		t.Fatalf("expected an overdue notice per loan, got %d", len(f.publisher.deduped))
	}
	for _, event := range f.publisher.deduped {
		if event.EventType != enums.EventLoanOverdue {
			t.Fatalf("unexpected event type %s", event.EventType)
		}
	}

	// Re-running at the same instant assesses nothing new.
	assessed, err = f.svc.SweepOverdue(context.Background(), now, 100)
	if err != nil {
		t.Fatalf("second sweep failed: %v", err)
	}
	if assessed != 0 {
		t.Fatalf("expected idempotent sweep, got %d", assessed)
	}
}
