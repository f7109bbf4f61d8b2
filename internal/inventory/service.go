package inventory

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/barthig/Biblioteka-sub002/pkg/config"
	dbpkg "github.com/barthig/Biblioteka-sub002/pkg/db"
	"github.com/barthig/Biblioteka-sub002/pkg/db/models"
	"github.com/barthig/Biblioteka-sub002/pkg/enums"
	pkgerrors "github.com/barthig/Biblioteka-sub002/pkg/errors"
	"github.com/barthig/Biblioteka-sub002/pkg/outbox"
	"github.com/barthig/Biblioteka-sub002/pkg/outbox/payloads"
	"github.com/barthig/Biblioteka-sub002/pkg/pagination"
)

var inventoryCodePattern = regexp.MustCompile(`^[A-Z0-9\-_.]+$`)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service defines catalog and copy operations beyond repository reads.
type Service interface {
	CreateBook(ctx context.Context, input CreateBookInput) (*models.Book, error)
	UpdateBook(ctx context.Context, input UpdateBookInput) (*models.Book, error)
	GetBook(ctx context.Context, id uuid.UUID) (*models.Book, error)
	ListBooks(ctx context.Context, params pagination.Params, filters BookFilters) (*BookList, error)
	DeleteBook(ctx context.Context, id uuid.UUID) error

	CreateCopy(ctx context.Context, input CreateCopyInput) (*models.BookCopy, error)
	UpdateCopy(ctx context.Context, input UpdateCopyInput) (*models.BookCopy, error)
	DeleteCopy(ctx context.Context, id uuid.UUID) error
	ListCopies(ctx context.Context, bookID uuid.UUID) ([]CopySummary, error)
	ImportCopies(ctx context.Context, input ImportCopiesInput) (*ImportCopiesResult, error)
	WithdrawCopy(ctx context.Context, input WithdrawCopyInput) error
	ListWeedingRecords(ctx context.Context, bookID uuid.UUID) ([]models.WeedingRecord, error)
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
	cfg    config.CirculationConfig
}

// NewService builds an inventory service with the required dependencies.
func NewService(repo Repository, tx txRunner, outboxSvc outboxPublisher, cfg config.CirculationConfig) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{repo: repo, tx: tx, outbox: outboxSvc, cfg: cfg}, nil
}

func (s *service) CreateBook(ctx context.Context, input CreateBookInput) (*models.Book, error) {
	if input.Title == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title required")
	}
	if input.Author == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "author required")
	}

	book := &models.Book{
		Title:         input.Title,
		Author:        input.Author,
		ISBN:          input.ISBN,
		Publisher:     input.Publisher,
		PublishedYear: input.PublishedYear,
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.CreateBook(ctx, book); err != nil {
			if dbpkg.IsUniqueViolation(err, "ux_books_isbn") {
				return pkgerrors.New(pkgerrors.CodeConflict, "a book with this ISBN already exists")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create book")
		}
		if len(input.InitialCopies) == 0 {
			return nil
		}
		copies := make([]models.BookCopy, 0, len(input.InitialCopies))
		for _, copyInput := range input.InitialCopies {
			copyInput.BookID = book.ID
			copy, err := s.buildCopy(copyInput)
			if err != nil {
				return err
			}
			copies = append(copies, *copy)
		}
		if err := repo.CreateCopies(ctx, copies); err != nil {
			if dbpkg.IsUniqueViolation(err, "uq_book_copies_inventory_code") {
				return pkgerrors.New(pkgerrors.CodeConflict, "inventory code already in use")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create initial copies")
		}
		return repo.RecalculateCounters(ctx, book.ID)
	})
	if err != nil {
		return nil, err
	}
	return book, nil
}

func (s *service) UpdateBook(ctx context.Context, input UpdateBookInput) (*models.Book, error) {
	if input.BookID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "book id required")
	}

	var updated *models.Book
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		book, err := repo.FindBookByID(ctx, input.BookID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "book not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load book")
		}
		if input.Title != nil {
			book.Title = *input.Title
		}
		if input.Author != nil {
			book.Author = *input.Author
		}
		if input.ISBN != nil {
			book.ISBN = input.ISBN
		}
		if input.Publisher != nil {
			book.Publisher = input.Publisher
		}
		if input.PublishedYear != nil {
			book.PublishedYear = input.PublishedYear
		}
		if err := repo.UpdateBook(ctx, book); err != nil {
			if dbpkg.IsUniqueViolation(err, "ux_books_isbn") {
				return pkgerrors.New(pkgerrors.CodeConflict, "a book with this ISBN already exists")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update book")
		}
		updated = book
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *service) GetBook(ctx context.Context, id uuid.UUID) (*models.Book, error) {
	book, err := s.repo.FindBookByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "book not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load book")
	}
	return book, nil
}

func (s *service) ListBooks(ctx context.Context, params pagination.Params, filters BookFilters) (*BookList, error) {
	list, err := s.repo.ListBooks(ctx, params, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list books")
	}
	return list, nil
}

func (s *service) DeleteBook(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "book id required")
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.FindBookByID(ctx, id); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "book not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load book")
		}
		borrowed, err := repo.CountCopiesByStatus(ctx, id, enums.CopyStatusBorrowed)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count borrowed copies")
		}
		if borrowed > 0 {
			return pkgerrors.New(pkgerrors.CodeConflict, "cannot delete a book with copies on loan")
		}
		reserved, err := repo.CountCopiesByStatus(ctx, id, enums.CopyStatusReserved)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count reserved copies")
		}
		if reserved > 0 {
			return pkgerrors.New(pkgerrors.CodeConflict, "cannot delete a book with copies held for pickup")
		}
		return repo.SoftDeleteBook(ctx, id, time.Now().UTC())
	})
}

func (s *service) CreateCopy(ctx context.Context, input CreateCopyInput) (*models.BookCopy, error) {
	if input.BookID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "book id required")
	}
	copy, err := s.buildCopy(input)
	if err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.FindBookByID(ctx, input.BookID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "book not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load book")
		}
		if _, err := repo.CreateCopy(ctx, copy); err != nil {
			if dbpkg.IsUniqueViolation(err, "uq_book_copies_inventory_code") {
				return pkgerrors.New(pkgerrors.CodeConflict, "inventory code already in use")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create copy")
		}
		return repo.RecalculateCounters(ctx, input.BookID)
	})
	if err != nil {
		return nil, err
	}
	return copy, nil
}

func (s *service) UpdateCopy(ctx context.Context, input UpdateCopyInput) (*models.BookCopy, error) {
	if input.CopyID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "copy id required")
	}

	var updated *models.BookCopy
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		copy, err := repo.FindCopyByID(ctx, input.CopyID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "copy not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load copy")
		}
		now := time.Now().UTC()
		if input.Status != nil {
			target, err := enums.ParseCopyStatus(*input.Status)
			if err != nil {
				return pkgerrors.New(pkgerrors.CodeValidation, err.Error())
			}
			if target != copy.Status {
				if err := Transition(copy, target, now); err != nil {
					return err
				}
			}
		}
		if input.AccessType != nil {
			access, err := enums.ParseCopyAccessType(*input.AccessType)
			if err != nil {
				return pkgerrors.New(pkgerrors.CodeValidation, err.Error())
			}
			copy.AccessType = access
		}
		if input.Location != nil {
			copy.Location = input.Location
		}
		if err := repo.UpdateCopy(ctx, copy); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update copy")
		}
		if err := repo.RecalculateCounters(ctx, copy.BookID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "recalculate counters")
		}
		updated = copy
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *service) DeleteCopy(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "copy id required")
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		copy, err := repo.FindCopyByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "copy not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load copy")
		}
		switch copy.Status {
		case enums.CopyStatusBorrowed:
			return pkgerrors.New(pkgerrors.CodeConflict, "cannot remove a copy that is on loan")
		case enums.CopyStatusReserved:
			return pkgerrors.New(pkgerrors.CodeConflict, "cannot remove a copy held for a reservation")
		}
		if err := repo.DeleteCopy(ctx, id); err != nil {
			if dbpkg.IsForeignKeyViolation(err) {
				return pkgerrors.New(pkgerrors.CodeConflict, "copy has loan history, withdraw it instead")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete copy")
		}
		return repo.RecalculateCounters(ctx, copy.BookID)
	})
}

func (s *service) ListCopies(ctx context.Context, bookID uuid.UUID) ([]CopySummary, error) {
	copies, err := s.repo.ListCopiesByBook(ctx, bookID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list copies")
	}
	summaries := make([]CopySummary, 0, len(copies))
	for _, copy := range copies {
		summaries = append(summaries, CopySummary{
			ID:            copy.ID,
			InventoryCode: copy.InventoryCode,
			Status:        copy.Status,
			AccessType:    copy.AccessType,
			Location:      copy.Location,
		})
	}
	return summaries, nil
}

// ImportCopies registers copies in bulk. Unlike the single-copy path, bad
// status or access values fall back to AVAILABLE/STORAGE and duplicate codes
// are skipped, so one bad row never sinks the whole file.
func (s *service) ImportCopies(ctx context.Context, input ImportCopiesInput) (*ImportCopiesResult, error) {
	if input.BookID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "book id required")
	}
	if len(input.Rows) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no rows to import")
	}

	result := &ImportCopiesResult{}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.FindBookByID(ctx, input.BookID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "book not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load book")
		}
		for i, row := range input.Rows {
			code := normalizeInventoryCode(row.InventoryCode)
			if code == "" {
				code = s.generateInventoryCode()
			}
			if err := s.validateInventoryCode(code); err != nil {
				result.Skipped++
				result.Errors = append(result.Errors, fmt.Sprintf("row %d: %s", i+1, pkgerrors.As(err).Message()))
				continue
			}
			copy := models.BookCopy{
				BookID:        input.BookID,
				InventoryCode: code,
				Status:        enums.NormalizeCopyStatus(row.Status),
				AccessType:    enums.NormalizeCopyAccessType(row.AccessType),
				Location:      row.Location,
			}
			if _, err := repo.CreateCopy(ctx, &copy); err != nil {
				if dbpkg.IsUniqueViolation(err, "uq_book_copies_inventory_code") {
					result.Skipped++
					result.Errors = append(result.Errors, fmt.Sprintf("row %d: inventory code %s already in use", i+1, code))
					continue
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "import copy")
			}
			result.Created++
		}
		if result.Created == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "no importable rows").WithDetails(result.Errors)
		}
		return repo.RecalculateCounters(ctx, input.BookID)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) WithdrawCopy(ctx context.Context, input WithdrawCopyInput) error {
	if input.CopyID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "copy id required")
	}
	if input.Reason == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "weeding reason required")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		copy, err := repo.FindCopyByID(ctx, input.CopyID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "copy not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load copy")
		}
		switch copy.Status {
		case enums.CopyStatusWithdrawn:
			return pkgerrors.New(pkgerrors.CodeStateConflict, "copy already withdrawn")
		case enums.CopyStatusBorrowed:
			return pkgerrors.New(pkgerrors.CodeConflict, "cannot weed a copy with an active loan")
		case enums.CopyStatusReserved:
			return pkgerrors.New(pkgerrors.CodeConflict, "cannot weed a copy held for a reservation")
		}

		now := time.Now().UTC()
		if err := Transition(copy, enums.CopyStatusWithdrawn, now); err != nil {
			return err
		}
		if err := repo.UpdateCopy(ctx, copy); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "withdraw copy")
		}
		record := &models.WeedingRecord{
			BookCopyID:    copy.ID,
			BookID:        copy.BookID,
			InventoryCode: copy.InventoryCode,
			Reason:        input.Reason,
			WithdrawnAt:   now,
		}
		if input.ActorUserID != uuid.Nil {
			actorID := input.ActorUserID
			record.WithdrawnBy = &actorID
		}
		if err := repo.InsertWeedingRecord(ctx, record); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert weeding record")
		}
		if err := repo.RecalculateCounters(ctx, copy.BookID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "recalculate counters")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventCopyWithdrawn,
			AggregateType: enums.AggregateBookCopy,
			AggregateID:   copy.ID,
			Actor:         buildActor(input.ActorUserID, input.ActorRole),
			Data: payloads.CopyWithdrawnEvent{
				BookCopyID:    copy.ID,
				BookID:        copy.BookID,
				InventoryCode: copy.InventoryCode,
				Reason:        input.Reason,
				WithdrawnAt:   now,
			},
		}
		return s.outbox.Emit(ctx, tx, event)
	})
}

func (s *service) ListWeedingRecords(ctx context.Context, bookID uuid.UUID) ([]models.WeedingRecord, error) {
	records, err := s.repo.ListWeedingRecords(ctx, bookID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list weeding records")
	}
	return records, nil
}

func (s *service) buildCopy(input CreateCopyInput) (*models.BookCopy, error) {
	code := normalizeInventoryCode(input.InventoryCode)
	if code == "" {
		code = s.generateInventoryCode()
	}
	if err := s.validateInventoryCode(code); err != nil {
		return nil, err
	}
	access := enums.CopyAccessStorage
	if input.AccessType != "" {
		parsed, err := enums.ParseCopyAccessType(input.AccessType)
		if err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, err.Error())
		}
		access = parsed
	}
	return &models.BookCopy{
		BookID:        input.BookID,
		InventoryCode: code,
		Status:        enums.CopyStatusAvailable,
		AccessType:    access,
		Location:      input.Location,
		AcquiredAt:    input.AcquiredAt,
	}, nil
}

// normalizeInventoryCode folds labels scanned or typed at the desk into the
// canonical upper-case form before validation, so "abc-1 " and "ABC-1" are
// the same copy.
func normalizeInventoryCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (s *service) validateInventoryCode(code string) error {
	maxLen := s.cfg.InventoryCodeMaxLength
	if maxLen <= 0 {
		maxLen = 60
	}
	if len(code) > maxLen {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("inventory code longer than %d characters", maxLen))
	}
	if !inventoryCodePattern.MatchString(code) {
		return pkgerrors.New(pkgerrors.CodeValidation, "inventory code may only contain A-Z, 0-9, dash, underscore, and dot")
	}
	return nil
}

func (s *service) generateInventoryCode() string {
	prefix := s.cfg.InventoryCodeAutoPrefix
	if prefix == "" {
		prefix = "BC"
	}
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
	}
	return fmt.Sprintf("%s-%s", prefix, strings.ToUpper(hex.EncodeToString(buf)))
}

func buildActor(userID uuid.UUID, role string) *outbox.ActorRef {
	if userID == uuid.Nil {
		return nil
	}
	return &outbox.ActorRef{UserID: userID, Role: role}
}
