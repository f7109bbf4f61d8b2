package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/barthig/Biblioteka-sub002/pkg/db/models"
	"github.com/barthig/Biblioteka-sub002/pkg/enums"
	"github.com/barthig/Biblioteka-sub002/pkg/pagination"
)

// Repository defines persistence operations for books, copies, and weeding
// records.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateBook(ctx context.Context, book *models.Book) (*models.Book, error)
	UpdateBook(ctx context.Context, book *models.Book) error
	FindBookByID(ctx context.Context, id uuid.UUID) (*models.Book, error)
	ListBooks(ctx context.Context, params pagination.Params, filters BookFilters) (*BookList, error)
	SoftDeleteBook(ctx context.Context, id uuid.UUID, deletedAt time.Time) error

	CreateCopy(ctx context.Context, copy *models.BookCopy) (*models.BookCopy, error)
	CreateCopies(ctx context.Context, copies []models.BookCopy) error
	UpdateCopy(ctx context.Context, copy *models.BookCopy) error
	UpdateCopyStatusGuarded(ctx context.Context, copy *models.BookCopy, from enums.CopyStatus) error
	DeleteCopy(ctx context.Context, id uuid.UUID) error
	FindCopyByID(ctx context.Context, id uuid.UUID) (*models.BookCopy, error)
	FindCopyByInventoryCode(ctx context.Context, code string) (*models.BookCopy, error)
	ListCopiesByBook(ctx context.Context, bookID uuid.UUID) ([]models.BookCopy, error)
	FindLendableCopy(ctx context.Context, bookID uuid.UUID) (*models.BookCopy, error)
	CountCopiesByStatus(ctx context.Context, bookID uuid.UUID, status enums.CopyStatus) (int64, error)

	InsertWeedingRecord(ctx context.Context, record *models.WeedingRecord) error
	ListWeedingRecords(ctx context.Context, bookID uuid.UUID) ([]models.WeedingRecord, error)

	RecalculateCounters(ctx context.Context, bookID uuid.UUID) error
}
