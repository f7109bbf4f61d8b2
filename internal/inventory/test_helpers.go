package inventory

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/barthig/Biblioteka-sub002/pkg/db/models"
	"github.com/barthig/Biblioteka-sub002/pkg/enums"
)

func mustCreateTestUser(t *testing.T, tx *gorm.DB) *models.User {
	t.Helper()
	user := &models.User{
		ID:           uuid.New(),
		Email:        fmt.Sprintf("bib_test_%s@example.com", uuid.NewString()),
		PasswordHash: "hash",
		FirstName:    "Repo",
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

func mustCreateTestBook(t *testing.T, tx *gorm.DB) *models.Book {
	t.Helper()
	isbn := fmt.Sprintf("978-%s", uuid.NewString()[:12])
	book := &models.Book{
		ID:     uuid.New(),
		Title:  "Pan Tadeusz",
		Author: "Adam Mickiewicz",
		ISBN:   &isbn,
	}
	if err := tx.Create(book).Error; err != nil {
		t.Fatalf("create book: %v", err)
	}
	return book
}

func mustCreateTestCopy(t *testing.T, tx *gorm.DB, bookID uuid.UUID, status enums.CopyStatus, access enums.CopyAccessType) *models.BookCopy {
	t.Helper()
	now := time.Now().UTC()
	copy := &models.BookCopy{
		ID:            uuid.New(),
		BookID:        bookID,
		InventoryCode: fmt.Sprintf("BC-%s", uuid.NewString()[:8]),
		Status:        status,
		AccessType:    access,
		AcquiredAt:    &now,
	}
	if err := tx.Create(copy).Error; err != nil {
		t.Fatalf("create copy: %v", err)
	}
	return copy
}
