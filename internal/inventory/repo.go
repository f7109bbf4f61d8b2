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

type repository struct {
	db *gorm.DB
}

// NewRepository builds an inventory repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateBook(ctx context.Context, book *models.Book) (*models.Book, error) {
	if err := r.db.WithContext(ctx).Create(book).Error; err != nil {
		return nil, err
	}
	return book, nil
}

func (r *repository) UpdateBook(ctx context.Context, book *models.Book) error {
	return r.db.WithContext(ctx).Save(book).Error
}

func (r *repository) FindBookByID(ctx context.Context, id uuid.UUID) (*models.Book, error) {
	var book models.Book
	err := r.db.WithContext(ctx).
		Where("id = ? AND deleted_at IS NULL", id).
		First(&book).Error
	if err != nil {
		return nil, err
	}
	return &book, nil
}

func (r *repository) ListBooks(ctx context.Context, params pagination.Params, filters BookFilters) (*BookList, error) {
	normalizedLimit := pagination.NormalizeLimit(params.Limit)
	limitWithBuffer := pagination.LimitWithBuffer(params.Limit)
	decodedCursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}

	query := r.db.WithContext(ctx).
		Model(&models.Book{}).
		Where("deleted_at IS NULL")

	if filters.Query != "" {
		pattern := "%" + filters.Query + "%"
		query = query.Where("title LIKE ? OR author LIKE ? OR isbn LIKE ?", pattern, pattern, pattern)
	}
	if filters.Author != "" {
		query = query.Where("author = ?", filters.Author)
	}
	if filters.AvailableOnly {
		query = query.Where("available_copies + open_stack_copies > 0")
	}
	if decodedCursor != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)",
			decodedCursor.CreatedAt, decodedCursor.CreatedAt, decodedCursor.ID)
	}

	var books []models.Book
	err = query.Order("created_at DESC").Order("id DESC").Limit(limitWithBuffer).Find(&books).Error
	if err != nil {
		return nil, err
	}

	nextCursor := ""
	if len(books) > normalizedLimit {
		books = books[:normalizedLimit]
		last := books[len(books)-1]
		nextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}

	summaries := make([]BookSummary, 0, len(books))
	for _, book := range books {
		summaries = append(summaries, BookSummary{
			ID:              book.ID,
			Title:           book.Title,
			Author:          book.Author,
			ISBN:            book.ISBN,
			TotalCopies:     book.TotalCopies,
			AvailableCopies: book.AvailableCopies,
			OpenStackCopies: book.OpenStackCopies,
		})
	}
	return &BookList{Books: summaries, NextCursor: nextCursor}, nil
}

func (r *repository) SoftDeleteBook(ctx context.Context, id uuid.UUID, deletedAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Book{}).
		Where("id = ? AND deleted_at IS NULL", id).
		Update("deleted_at", deletedAt).Error
}

func (r *repository) CreateCopy(ctx context.Context, copy *models.BookCopy) (*models.BookCopy, error) {
	if err := r.db.WithContext(ctx).Create(copy).Error; err != nil {
		return nil, err
	}
	return copy, nil
}

func (r *repository) CreateCopies(ctx context.Context, copies []models.BookCopy) error {
	if len(copies) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&copies).Error
}

func (r *repository) UpdateCopy(ctx context.Context, copy *models.BookCopy) error {
	return r.db.WithContext(ctx).Save(copy).Error
}

// UpdateCopyStatusGuarded writes the new status only when the row still holds
// the expected prior status, so two transactions racing over the same copy
// cannot both win. Zero rows affected means the copy changed under us.
func (r *repository) UpdateCopyStatusGuarded(ctx context.Context, copy *models.BookCopy, from enums.CopyStatus) error {
	res := r.db.WithContext(ctx).
		Model(&models.BookCopy{}).
		Where("id = ? AND status = ?", copy.ID, from).
		Updates(map[string]any{
			"status":     copy.Status,
			"updated_at": copy.UpdatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) DeleteCopy(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.BookCopy{}, "id = ?", id).Error
}

func (r *repository) FindCopyByID(ctx context.Context, id uuid.UUID) (*models.BookCopy, error) {
	var copy models.BookCopy
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&copy).Error
	if err != nil {
		return nil, err
	}
	return &copy, nil
}

func (r *repository) FindCopyByInventoryCode(ctx context.Context, code string) (*models.BookCopy, error) {
	var copy models.BookCopy
	err := r.db.WithContext(ctx).
		Where("inventory_code = ?", code).
		First(&copy).Error
	if err != nil {
		return nil, err
	}
	return &copy, nil
}

func (r *repository) ListCopiesByBook(ctx context.Context, bookID uuid.UUID) ([]models.BookCopy, error) {
	var copies []models.BookCopy
	err := r.db.WithContext(ctx).
		Where("book_id = ?", bookID).
		Order("inventory_code ASC").
		Find(&copies).Error
	if err != nil {
		return nil, err
	}
	return copies, nil
}

// FindLendableCopy picks one AVAILABLE circulating copy for a title.
// REFERENCE copies never leave the building so they are excluded here.
func (r *repository) FindLendableCopy(ctx context.Context, bookID uuid.UUID) (*models.BookCopy, error) {
	var copy models.BookCopy
	err := r.db.WithContext(ctx).
		Where("book_id = ? AND status = ? AND access_type <> ?",
			bookID, enums.CopyStatusAvailable, enums.CopyAccessReference).
		Order("inventory_code ASC").
		First(&copy).Error
	if err != nil {
		return nil, err
	}
	return &copy, nil
}

func (r *repository) CountCopiesByStatus(ctx context.Context, bookID uuid.UUID, status enums.CopyStatus) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.BookCopy{}).
		Where("book_id = ? AND status = ?", bookID, status).
		Count(&count).Error
	return count, err
}

func (r *repository) InsertWeedingRecord(ctx context.Context, record *models.WeedingRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *repository) ListWeedingRecords(ctx context.Context, bookID uuid.UUID) ([]models.WeedingRecord, error) {
	var records []models.WeedingRecord
	err := r.db.WithContext(ctx).
		Where("book_id = ?", bookID).
		Order("withdrawn_at DESC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

// RecalculateCounters overwrites the book's three counters from the current
// copy rows. It is the single authority for the counters: every copy
// mutation calls it inside the same transaction, and nothing applies deltas.
func (r *repository) RecalculateCounters(ctx context.Context, bookID uuid.UUID) error {
	return r.db.WithContext(ctx).Exec(`
		UPDATE books
		SET total_copies = (
				SELECT COUNT(*) FROM book_copies WHERE book_copies.book_id = books.id
			),
			available_copies = (
				SELECT COUNT(*) FROM book_copies
				WHERE book_copies.book_id = books.id
				  AND book_copies.status = 'AVAILABLE'
				  AND book_copies.access_type = 'STORAGE'
			),
			open_stack_copies = (
				SELECT COUNT(*) FROM book_copies
				WHERE book_copies.book_id = books.id
				  AND book_copies.status = 'AVAILABLE'
				  AND book_copies.access_type = 'OPEN_STACK'
			),
			updated_at = CURRENT_TIMESTAMP
		WHERE books.id = ?
	`, bookID).Error
}
