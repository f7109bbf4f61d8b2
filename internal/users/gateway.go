package users

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/barthig/Biblioteka-sub002/pkg/db/models"
	pkgerrors "github.com/barthig/Biblioteka-sub002/pkg/errors"
)

// Directory exposes transaction-scoped user lookups to the circulation
// services.
type Directory interface {
	GetUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*models.User, error)
}

type directory struct {
	repo Repository
}

// NewDirectory exposes the default user directory implementation.
func NewDirectory(repo Repository) Directory {
	return &directory{repo: repo}
}

func (d *directory) GetUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*models.User, error) {
	user, err := d.repo.WithTx(tx).FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	return user, nil
}
