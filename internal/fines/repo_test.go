package fines

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	dbpkg "github.com/barthig/Biblioteka-sub002/pkg/db"
	"github.com/barthig/Biblioteka-sub002/pkg/db/models"
	"github.com/barthig/Biblioteka-sub002/pkg/enums"
)

func mustCreateFineFixtures(t *testing.T, tx *gorm.DB) (*models.User, *models.Loan) {
	t.Helper()
	user := &models.User{
		ID:           uuid.New(),
		Email:        fmt.Sprintf("bib_test_%s@example.com", uuid.NewString()),
		PasswordHash: "hash",
		FirstName:    "Fine",
		LastName:     "Tester",
		Role:         enums.UserRolePatron,
		CardNumber:   fmt.Sprintf("CARD-%s", uuid.NewString()),
		IsActive:     true,
	}
	if err := tx.Create(user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	book := &models.Book{ID: uuid.New(), Title: "Quo Vadis", Author: "Henryk Sienkiewicz"}
	if err := tx.Create(book).Error; err != nil {
		t.Fatalf("create book: %v", err)
	}
	copy := &models.BookCopy{
		ID:            uuid.New(),
		BookID:        book.ID,
		InventoryCode: fmt.Sprintf("BC-%s", uuid.NewString()[:8]),
		Status:        enums.CopyStatusBorrowed,
		AccessType:    enums.CopyAccessStorage,
	}
	if err := tx.Create(copy).Error; err != nil {
		t.Fatalf("create copy: %v", err)
	}
	now := time.Now().UTC()
	loan := &models.Loan{
		ID:         uuid.New(),
		UserID:     user.ID,
		BookID:     book.ID,
		BookCopyID: copy.ID,
		BorrowedAt: now.AddDate(0, 0, -20),
		DueAt:      now.AddDate(0, 0, -6),
	}
	if err := tx.Create(loan).Error; err != nil {
		t.Fatalf("create loan: %v", err)
	}
	return user, loan
}

func TestRepositoryPendingFinePerLoan(t *testing.T) {
	conn := openTestDB(t)
	tx := conn.Begin()
	if tx.Error != nil {
		t.Fatalf("begin: %v", tx.Error)
	}
	t.Cleanup(func() { tx.Rollback() })

	user, loan := mustCreateFineFixtures(t, tx)
	repo := NewRepository(tx)
	ctx := context.Background()

	now := time.Now().UTC()
	first := &models.Fine{
		LoanID:     loan.ID,
		UserID:     user.ID,
		Amount:     decimal.RequireFromString("3.00"),
		Currency:   "PLN",
		Status:     enums.FinePending,
		AssessedAt: now,
	}
	if _, err := repo.Create(ctx, first); err != nil {
		t.Fatalf("create fine: %v", err)
	}

	duplicate := &models.Fine{
		LoanID:     loan.ID,
		UserID:     user.ID,
		Amount:     decimal.RequireFromString("4.00"),
		Currency:   "PLN",
		Status:     enums.FinePending,
		AssessedAt: now,
	}
	_, err := repo.Create(ctx, duplicate)
	if !dbpkg.IsUniqueViolation(err, "uq_fines_loan_pending") {
		t.Fatalf("expected unique violation for second pending fine, got %v", err)
	}
}

func TestRepositorySumPendingByUser(t *testing.T) {
	conn := openTestDB(t)
	tx := conn.Begin()
	if tx.Error != nil {
		t.Fatalf("begin: %v", tx.Error)
	}
	t.Cleanup(func() { tx.Rollback() })

	user, loan := mustCreateFineFixtures(t, tx)
	repo := NewRepository(tx)
	ctx := context.Background()

	now := time.Now().UTC()
	paidAt := now.Add(-time.Hour)
	fines := []*models.Fine{
		{LoanID: loan.ID, UserID: user.ID, Amount: decimal.RequireFromString("2.50"), Currency: "PLN", Status: enums.FinePending, AssessedAt: now},
		{LoanID: loan.ID, UserID: user.ID, Amount: decimal.RequireFromString("9.00"), Currency: "PLN", Status: enums.FinePaid, AssessedAt: now, PaidAt: &paidAt},
	}
	for _, fine := range fines {
		if _, err := repo.Create(ctx, fine); err != nil {
			t.Fatalf("create fine: %v", err)
		}
	}

	total, err := repo.SumPendingByUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("sum pending: %v", err)
	}
	if !total.Equal(decimal.RequireFromString("2.50")) {
		t.Fatalf("expected settled fines excluded, got %s", total)
	}
}
