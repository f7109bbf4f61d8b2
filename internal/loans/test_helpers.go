package loans

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/barthig/Biblioteka-sub002/pkg/db/models"
	"github.com/barthig/Biblioteka-sub002/pkg/enums"
)

func mustCreateDeskUser(t *testing.T, tx *gorm.DB) *models.User {
	t.Helper()
	user := &models.User{
		ID:           uuid.New(),
		Email:        fmt.Sprintf("bib_test_%s@example.com", uuid.NewString()),
		PasswordHash: "hash",
		FirstName:    "Desk",
		LastName:     "Tester",
		Role:         enums.UserRolePatron,
		CardNumber:   fmt.Sprintf("CARD-%s", uuid.NewString()),
		IsActive:     true,
		LoanLimit:    5,
	}
	if err := tx.Create(user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

func mustCreateDeskBook(t *testing.T, tx *gorm.DB) *models.Book {
	t.Helper()
	book := &models.Book{ID: uuid.New(), Title: "Lalka", Author: "Boleslaw Prus"}
	if err := tx.Create(book).Error; err != nil {
		t.Fatalf("create book: %v", err)
	}
	return book
}

func mustCreateDeskCopy(t *testing.T, tx *gorm.DB, bookID uuid.UUID, status enums.CopyStatus) *models.BookCopy {
	t.Helper()
	copy := &models.BookCopy{
		ID:            uuid.New(),
		BookID:        bookID,
		InventoryCode: fmt.Sprintf("BC-%s", uuid.NewString()[:8]),
		Status:        status,
		AccessType:    enums.CopyAccessStorage,
	}
	if err := tx.Create(copy).Error; err != nil {
		t.Fatalf("create copy: %v", err)
	}
	return copy
}

func mustCreateDeskLoan(t *testing.T, tx *gorm.DB, userID, bookID, copyID uuid.UUID, dueAt time.Time, returnedAt *time.Time) *models.Loan {
	t.Helper()
	loan := &models.Loan{
		ID:         uuid.New(),
		UserID:     userID,
		BookID:     bookID,
		BookCopyID: copyID,
		BorrowedAt: dueAt.AddDate(0, 0, -14),
		DueAt:      dueAt,
		ReturnedAt: returnedAt,
	}
	if err := tx.Create(loan).Error; err != nil {
		t.Fatalf("create loan: %v", err)
	}
	return loan
}
