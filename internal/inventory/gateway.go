package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/barthig/Biblioteka-sub002/pkg/db/models"
	"github.com/barthig/Biblioteka-sub002/pkg/enums"
	pkgerrors "github.com/barthig/Biblioteka-sub002/pkg/errors"
)

// CopyGateway exposes transaction-scoped copy operations to the circulation
// services, so borrowing and hand-offs share one transition and counter
// authority with the catalog.
type CopyGateway interface {
	GetBook(ctx context.Context, tx *gorm.DB, bookID uuid.UUID) (*models.Book, error)
	GetCopy(ctx context.Context, tx *gorm.DB, copyID uuid.UUID) (*models.BookCopy, error)
	PickLendableCopy(ctx context.Context, tx *gorm.DB, bookID uuid.UUID) (*models.BookCopy, error)
	TransitionCopy(ctx context.Context, tx *gorm.DB, copy *models.BookCopy, target enums.CopyStatus, now time.Time) error
	Recalculate(ctx context.Context, tx *gorm.DB, bookID uuid.UUID) error
}

type copyGateway struct {
	repo Repository
}

// NewCopyGateway exposes the default copy gateway implementation.
func NewCopyGateway(repo Repository) CopyGateway {
	return &copyGateway{repo: repo}
}

func (g *copyGateway) GetBook(ctx context.Context, tx *gorm.DB, bookID uuid.UUID) (*models.Book, error) {
	book, err := g.repo.WithTx(tx).FindBookByID(ctx, bookID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "book not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load book")
	}
	return book, nil
}

func (g *copyGateway) GetCopy(ctx context.Context, tx *gorm.DB, copyID uuid.UUID) (*models.BookCopy, error) {
	copy, err := g.repo.WithTx(tx).FindCopyByID(ctx, copyID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "copy not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load copy")
	}
	return copy, nil
}

// PickLendableCopy returns nil without error when the title has no
// circulating AVAILABLE copy left.
func (g *copyGateway) PickLendableCopy(ctx context.Context, tx *gorm.DB, bookID uuid.UUID) (*models.BookCopy, error) {
	copy, err := g.repo.WithTx(tx).FindLendableCopy(ctx, bookID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "pick lendable copy")
	}
	return copy, nil
}

func (g *copyGateway) TransitionCopy(ctx context.Context, tx *gorm.DB, copy *models.BookCopy, target enums.CopyStatus, now time.Time) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for copy transition")
	}
	from := copy.Status
	if err := Transition(copy, target, now); err != nil {
		return err
	}
	if err := g.repo.WithTx(tx).UpdateCopyStatusGuarded(ctx, copy, from); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "copy was modified by a concurrent operation")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist copy transition")
	}
	return nil
}

func (g *copyGateway) Recalculate(ctx context.Context, tx *gorm.DB, bookID uuid.UUID) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for counter recalculation")
	}
	if err := g.repo.WithTx(tx).RecalculateCounters(ctx, bookID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "recalculate counters")
	}
	return nil
}
