package inventory

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/barthig/Biblioteka-sub002/pkg/config"
	"github.com/barthig/Biblioteka-sub002/pkg/db/models"
	"github.com/barthig/Biblioteka-sub002/pkg/enums"
	pkgerrors "github.com/barthig/Biblioteka-sub002/pkg/errors"
	"github.com/barthig/Biblioteka-sub002/pkg/outbox"
	"github.com/barthig/Biblioteka-sub002/pkg/pagination"
)

type stubInventoryRepo struct {
	book         *models.Book
	copies       map[uuid.UUID]*models.BookCopy
	codes        map[string]bool
	weeding      []models.WeedingRecord
	recalculated []uuid.UUID
}

func newStubInventoryRepo() *stubInventoryRepo {
	return &stubInventoryRepo{
		copies: make(map[uuid.UUID]*models.BookCopy),
		codes:  make(map[string]bool),
	}
}

func (s *stubInventoryRepo) WithTx(tx *gorm.DB) Repository {
	return s
}

func (s *stubInventoryRepo) CreateBook(ctx context.Context, book *models.Book) (*models.Book, error) {
	if book.ID == uuid.Nil {
		book.ID = uuid.New()
	}
	s.book = book
	return book, nil
}

func (s *stubInventoryRepo) UpdateBook(ctx context.Context, book *models.Book) error {
	s.book = book
	return nil
}

func (s *stubInventoryRepo) FindBookByID(ctx context.Context, id uuid.UUID) (*models.Book, error) {
	if s.book == nil || s.book.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return s.book, nil
}

func (s *stubInventoryRepo) ListBooks(ctx context.Context, params pagination.Params, filters BookFilters) (*BookList, error) {
	panic("not implemented")
}

func (s *stubInventoryRepo) SoftDeleteBook(ctx context.Context, id uuid.UUID, deletedAt time.Time) error {
	if s.book != nil && s.book.ID == id {
		s.book.DeletedAt = &deletedAt
	}
	return nil
}

func (s *stubInventoryRepo) CreateCopy(ctx context.Context, copy *models.BookCopy) (*models.BookCopy, error) {
	if s.codes[copy.InventoryCode] {
		return nil, &duplicateCodeError{}
	}
	if copy.ID == uuid.Nil {
		copy.ID = uuid.New()
	}
	s.copies[copy.ID] = copy
	s.codes[copy.InventoryCode] = true
	return copy, nil
}

func (s *stubInventoryRepo) CreateCopies(ctx context.Context, copies []models.BookCopy) error {
	for i := range copies {
		if _, err := s.CreateCopy(ctx, &copies[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s *stubInventoryRepo) UpdateCopy(ctx context.Context, copy *models.BookCopy) error {
	s.copies[copy.ID] = copy
	return nil
}

func (s *stubInventoryRepo) UpdateCopyStatusGuarded(ctx context.Context, copy *models.BookCopy, from enums.CopyStatus) error {
	current, ok := s.copies[copy.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if current != copy && current.Status != from {
		return gorm.ErrRecordNotFound
	}
	s.copies[copy.ID] = copy
	return nil
}

func (s *stubInventoryRepo) DeleteCopy(ctx context.Context, id uuid.UUID) error {
	delete(s.copies, id)
	return nil
}

func (s *stubInventoryRepo) FindCopyByID(ctx context.Context, id uuid.UUID) (*models.BookCopy, error) {
	copy, ok := s.copies[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return copy, nil
}

func (s *stubInventoryRepo) FindCopyByInventoryCode(ctx context.Context, code string) (*models.BookCopy, error) {
	for _, copy := range s.copies {
		if copy.InventoryCode == code {
			return copy, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubInventoryRepo) ListCopiesByBook(ctx context.Context, bookID uuid.UUID) ([]models.BookCopy, error) {
	var copies []models.BookCopy
	for _, copy := range s.copies {
		if copy.BookID == bookID {
			copies = append(copies, *copy)
		}
	}
	return copies, nil
}

func (s *stubInventoryRepo) FindLendableCopy(ctx context.Context, bookID uuid.UUID) (*models.BookCopy, error) {
	for _, copy := range s.copies {
		if copy.BookID == bookID && copy.Status == enums.CopyStatusAvailable && copy.AccessType.Circulates() {
			return copy, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubInventoryRepo) CountCopiesByStatus(ctx context.Context, bookID uuid.UUID, status enums.CopyStatus) (int64, error) {
	var count int64
	for _, copy := range s.copies {
		if copy.BookID == bookID && copy.Status == status {
			count++
		}
	}
	return count, nil
}

func (s *stubInventoryRepo) InsertWeedingRecord(ctx context.Context, record *models.WeedingRecord) error {
	s.weeding = append(s.weeding, *record)
	return nil
}

func (s *stubInventoryRepo) ListWeedingRecords(ctx context.Context, bookID uuid.UUID) ([]models.WeedingRecord, error) {
	return s.weeding, nil
}

func (s *stubInventoryRepo) RecalculateCounters(ctx context.Context, bookID uuid.UUID) error {
	s.recalculated = append(s.recalculated, bookID)
	return nil
}

// duplicateCodeError mimics the driver error the unique index produces.
type duplicateCodeError struct{}

func (duplicateCodeError) Error() string {
	return `duplicate key value violates unique constraint "uq_book_copies_inventory_code"`
}

type stubOutboxPublisher struct {
	events []outbox.DomainEvent
	err    error
}

func (s *stubOutboxPublisher) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, event)
	return nil
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func testCirculationConfig() config.CirculationConfig {
	return config.CirculationConfig{
		LoanPeriodDays:          14,
		MaxExtensions:           1,
		PickupWindowDays:        2,
		MaxActiveReservations:   5,
		ReservationMinDays:      1,
		ReservationMaxDays:      14,
		InventoryCodeMaxLength:  60,
		InventoryCodeAutoPrefix: "BC",
	}
}

func newTestService(t *testing.T, repo Repository, publisher outboxPublisher) Service {
	t.Helper()
	svc, err := NewService(repo, stubTxRunner{}, publisher, testCirculationConfig())
	if err != nil {
		t.Fatalf("service constructor failed: %v", err)
	}
	return svc
}

func TestCreateBookWithInitialCopies(t *testing.T) {
	repo := newStubInventoryRepo()
	publisher := &stubOutboxPublisher{}
	svc := newTestService(t, repo, publisher)

	book, err := svc.CreateBook(context.Background(), CreateBookInput{
		Title:  "Lalka",
		Author: "Boleslaw Prus",
		InitialCopies: []CreateCopyInput{
			{InventoryCode: "LAL-001"},
			{InventoryCode: "LAL-002", AccessType: "open_stack"},
		},
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if len(repo.copies) != 2 {
		t.Fatalf("expected 2 copies got %d", len(repo.copies))
	}
	if len(repo.recalculated) != 1 || repo.recalculated[0] != book.ID {
		t.Fatalf("expected one counter recalculation for the new book")
	}
	for _, copy := range repo.copies {
		if copy.Status != enums.CopyStatusAvailable {
			t.Fatalf("new copies must start AVAILABLE, got %s", copy.Status)
		}
	}
}

func TestCreateCopyGeneratesInventoryCode(t *testing.T) {
	repo := newStubInventoryRepo()
	repo.book = &models.Book{ID: uuid.New(), Title: "Quo Vadis", Author: "Henryk Sienkiewicz"}
	svc := newTestService(t, repo, &stubOutboxPublisher{})

	copy, err := svc.CreateCopy(context.Background(), CreateCopyInput{BookID: repo.book.ID})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if !strings.HasPrefix(copy.InventoryCode, "BC-") {
		t.Fatalf("expected generated code with BC prefix, got %s", copy.InventoryCode)
	}
	if len(repo.recalculated) != 1 {
		t.Fatal("expected counter recalculation after copy insert")
	}
}

func TestCreateCopyNormalizesInventoryCode(t *testing.T) {
	repo := newStubInventoryRepo()
	repo.book = &models.Book{ID: uuid.New(), Title: "Quo Vadis", Author: "Henryk Sienkiewicz"}
	svc := newTestService(t, repo, &stubOutboxPublisher{})

	copy, err := svc.CreateCopy(context.Background(), CreateCopyInput{
		BookID:        repo.book.ID,
		InventoryCode: "  qv-001 ",
	})
	if err != nil {
		t.Fatalf("lower-case code must normalize, got %v", err)
	}
	if copy.InventoryCode != "QV-001" {
		t.Fatalf("expected upper-cased trimmed code, got %q", copy.InventoryCode)
	}

	_, err = svc.CreateCopy(context.Background(), CreateCopyInput{
		BookID:        repo.book.ID,
		InventoryCode: "QV-001",
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("normalized duplicate must conflict, got %v", err)
	}
}

func TestCreateCopyRejectsBadInventoryCode(t *testing.T) {
	repo := newStubInventoryRepo()
	repo.book = &models.Book{ID: uuid.New(), Title: "Quo Vadis", Author: "Henryk Sienkiewicz"}
	svc := newTestService(t, repo, &stubOutboxPublisher{})

	_, err := svc.CreateCopy(context.Background(), CreateCopyInput{
		BookID:        repo.book.ID,
		InventoryCode: "bad code!",
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(repo.copies) != 0 {
		t.Fatal("copy must not be created")
	}
}

func TestCreateCopyDuplicateCode(t *testing.T) {
	repo := newStubInventoryRepo()
	repo.book = &models.Book{ID: uuid.New(), Title: "Quo Vadis", Author: "Henryk Sienkiewicz"}
	svc := newTestService(t, repo, &stubOutboxPublisher{})

	ctx := context.Background()
	if _, err := svc.CreateCopy(ctx, CreateCopyInput{BookID: repo.book.ID, InventoryCode: "QV-001"}); err != nil {
		t.Fatalf("first create failed: %v", err)
	}
	_, err := svc.CreateCopy(ctx, CreateCopyInput{BookID: repo.book.ID, InventoryCode: "QV-001"})
	if !pkgerrors.HasCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestUpdateCopyRejectsUnknownStatus(t *testing.T) {
	repo := newStubInventoryRepo()
	copyID := uuid.New()
	repo.copies[copyID] = &models.BookCopy{
		ID:            copyID,
		BookID:        uuid.New(),
		InventoryCode: "QV-001",
		Status:        enums.CopyStatusAvailable,
		AccessType:    enums.CopyAccessStorage,
	}
	svc := newTestService(t, repo, &stubOutboxPublisher{})

	bad := "LOST"
	_, err := svc.UpdateCopy(context.Background(), UpdateCopyInput{CopyID: copyID, Status: &bad})
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestImportCopiesLenientFallback(t *testing.T) {
	repo := newStubInventoryRepo()
	repo.book = &models.Book{ID: uuid.New(), Title: "Quo Vadis", Author: "Henryk Sienkiewicz"}
	repo.codes["QV-DUP"] = true
	svc := newTestService(t, repo, &stubOutboxPublisher{})

	result, err := svc.ImportCopies(context.Background(), ImportCopiesInput{
		BookID: repo.book.ID,
		Rows: []ImportCopyRow{
			{InventoryCode: "QV-101", Status: "shelved", AccessType: "warehouse"},
			{InventoryCode: "QV-102", Status: "maintenance", AccessType: "reference"},
			{InventoryCode: "qv-103 "},
			{InventoryCode: "QV-DUP"},
		},
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if result.Created != 3 || result.Skipped != 1 {
		t.Fatalf("expected created=3 skipped=1 got %+v", result)
	}

	first, err := repo.FindCopyByInventoryCode(context.Background(), "QV-101")
	if err != nil {
		t.Fatalf("copy missing: %v", err)
	}
	if first.Status != enums.CopyStatusAvailable || first.AccessType != enums.CopyAccessStorage {
		t.Fatalf("unknown values must fall back to defaults, got %s/%s", first.Status, first.AccessType)
	}

	second, err := repo.FindCopyByInventoryCode(context.Background(), "QV-102")
	if err != nil {
		t.Fatalf("copy missing: %v", err)
	}
	if second.Status != enums.CopyStatusMaintenance || second.AccessType != enums.CopyAccessReference {
		t.Fatalf("known values must be honored, got %s/%s", second.Status, second.AccessType)
	}

	if _, err := repo.FindCopyByInventoryCode(context.Background(), "QV-103"); err != nil {
		t.Fatalf("lower-case row must import under its normalized code: %v", err)
	}
}

func TestWithdrawCopyGuards(t *testing.T) {
	cases := []struct {
		status  enums.CopyStatus
		code    pkgerrors.Code
		message string
	}{
		{enums.CopyStatusBorrowed, pkgerrors.CodeConflict, "cannot weed a copy with an active loan"},
		{enums.CopyStatusReserved, pkgerrors.CodeConflict, "cannot weed a copy held for a reservation"},
		{enums.CopyStatusWithdrawn, pkgerrors.CodeStateConflict, "copy already withdrawn"},
	}
	for _, tc := range cases {
		repo := newStubInventoryRepo()
		copyID := uuid.New()
		repo.copies[copyID] = &models.BookCopy{
			ID:            copyID,
			BookID:        uuid.New(),
			InventoryCode: "QV-001",
			Status:        tc.status,
		}
		publisher := &stubOutboxPublisher{}
		svc := newTestService(t, repo, publisher)

		err := svc.WithdrawCopy(context.Background(), WithdrawCopyInput{
			CopyID: copyID,
			Reason: "water damage",
		})
		typed := pkgerrors.As(err)
		if typed == nil || typed.Code() != tc.code {
			t.Fatalf("status %s: expected %s got %v", tc.status, tc.code, err)
		}
		if typed.Message() != tc.message {
			t.Fatalf("status %s: expected message %q got %q", tc.status, tc.message, typed.Message())
		}
		if repo.copies[copyID].Status != tc.status {
			t.Fatalf("status %s: guard must not mutate the copy", tc.status)
		}
		if len(publisher.events) != 0 {
			t.Fatalf("status %s: unexpected outbox event", tc.status)
		}
	}
}

func TestWithdrawCopySuccess(t *testing.T) {
	repo := newStubInventoryRepo()
	copyID := uuid.New()
	bookID := uuid.New()
	repo.copies[copyID] = &models.BookCopy{
		ID:            copyID,
		BookID:        bookID,
		InventoryCode: "QV-001",
		Status:        enums.CopyStatusAvailable,
		AccessType:    enums.CopyAccessStorage,
	}
	publisher := &stubOutboxPublisher{}
	svc := newTestService(t, repo, publisher)

	actorID := uuid.New()
	err := svc.WithdrawCopy(context.Background(), WithdrawCopyInput{
		CopyID:      copyID,
		Reason:      "superseded edition",
		ActorUserID: actorID,
		ActorRole:   string(enums.UserRoleLibrarian),
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if repo.copies[copyID].Status != enums.CopyStatusWithdrawn {
		t.Fatalf("expected WITHDRAWN got %s", repo.copies[copyID].Status)
	}
	if len(repo.weeding) != 1 {
		t.Fatalf("expected weeding record")
	}
	if repo.weeding[0].WithdrawnBy == nil || *repo.weeding[0].WithdrawnBy != actorID {
		t.Fatal("expected actor on weeding record")
	}
	if len(repo.recalculated) != 1 || repo.recalculated[0] != bookID {
		t.Fatal("expected counter recalculation")
	}
	if len(publisher.events) != 1 || publisher.events[0].EventType != enums.EventCopyWithdrawn {
		t.Fatalf("expected copy_withdrawn event, got %+v", publisher.events)
	}
}

func TestDeleteBookWithBorrowedCopies(t *testing.T) {
	repo := newStubInventoryRepo()
	bookID := uuid.New()
	repo.book = &models.Book{ID: bookID, Title: "Quo Vadis", Author: "Henryk Sienkiewicz"}
	copyID := uuid.New()
	repo.copies[copyID] = &models.BookCopy{ID: copyID, BookID: bookID, Status: enums.CopyStatusBorrowed}
	svc := newTestService(t, repo, &stubOutboxPublisher{})

	err := svc.DeleteBook(context.Background(), bookID)
	if !pkgerrors.HasCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if repo.book.DeletedAt != nil {
		t.Fatal("book must not be deleted")
	}
}
