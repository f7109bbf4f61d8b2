package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/barthig/Biblioteka-sub002/api/responses"
	"github.com/barthig/Biblioteka-sub002/api/validators"
	"github.com/barthig/Biblioteka-sub002/internal/inventory"
	pkgerrors "github.com/barthig/Biblioteka-sub002/pkg/errors"
	"github.com/barthig/Biblioteka-sub002/pkg/logger"
)

type createCopyRequest struct {
	BookID        uuid.UUID  `json:"book_id" validate:"required"`
	InventoryCode string     `json:"inventory_code,omitempty"`
	AccessType    string     `json:"access_type,omitempty"`
	Location      *string    `json:"location,omitempty"`
	AcquiredAt    *time.Time `json:"acquired_at,omitempty"`
}

type updateCopyRequest struct {
	Status     *string `json:"status,omitempty"`
	AccessType *string `json:"access_type,omitempty"`
	Location   *string `json:"location,omitempty"`
}

type importCopiesRequest struct {
	BookID uuid.UUID          `json:"book_id" validate:"required"`
	Rows   []importCopyRowReq `json:"rows" validate:"required,min=1,dive"`
}

type importCopyRowReq struct {
	InventoryCode string  `json:"inventory_code" validate:"required"`
	Status        string  `json:"status,omitempty"`
	AccessType    string  `json:"access_type,omitempty"`
	Location      *string `json:"location,omitempty"`
}

type withdrawCopyRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// CreateCopy registers one physical copy of a title.
func CreateCopy(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}

		var body createCopyRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		copyModel, err := svc.CreateCopy(r.Context(), inventory.CreateCopyInput{
			BookID:        body.BookID,
			InventoryCode: body.InventoryCode,
			AccessType:    body.AccessType,
			Location:      body.Location,
			AcquiredAt:    body.AcquiredAt,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, copyModel)
	}
}

// UpdateCopy edits a copy's status, access type, or shelf location. Status
// changes here are strict; only bulk import tolerates unknown values.
func UpdateCopy(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}

		copyID, err := pathUUID(r, "copyId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body updateCopyRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		copyModel, err := svc.UpdateCopy(r.Context(), inventory.UpdateCopyInput{
			CopyID:     copyID,
			Status:     body.Status,
			AccessType: body.AccessType,
			Location:   body.Location,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, copyModel)
	}
}

// DeleteCopy removes a copy that never circulated.
func DeleteCopy(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}

		copyID, err := pathUUID(r, "copyId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.DeleteCopy(r.Context(), copyID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}

// ListCopies returns the inventory page for one title.
func ListCopies(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}

		bookID, err := pathUUID(r, "bookId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		copies, err := svc.ListCopies(r.Context(), bookID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, copies)
	}
}

// ImportCopies bulk-registers copies for one title. Unknown status or
// access values fall back to defaults instead of failing the file.
func ImportCopies(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}

		actorID, actorRole, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body importCopiesRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := inventory.ImportCopiesInput{
			BookID:      body.BookID,
			ActorUserID: actorID,
			ActorRole:   actorRole,
		}
		for _, row := range body.Rows {
			input.Rows = append(input.Rows, inventory.ImportCopyRow{
				InventoryCode: row.InventoryCode,
				Status:        row.Status,
				AccessType:    row.AccessType,
				Location:      row.Location,
			})
		}

		result, err := svc.ImportCopies(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// WithdrawCopy weeds a copy out of circulation permanently.
func WithdrawCopy(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}

		actorID, actorRole, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		copyID, err := pathUUID(r, "copyId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body withdrawCopyRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.WithdrawCopy(r.Context(), inventory.WithdrawCopyInput{
			CopyID:      copyID,
			Reason:      body.Reason,
			ActorUserID: actorID,
			ActorRole:   actorRole,
		}); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "withdrawn"})
	}
}

// ListWeedingRecords returns the withdrawal audit trail for one title.
func ListWeedingRecords(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}

		bookID, err := pathUUID(r, "bookId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		records, err := svc.ListWeedingRecords(r.Context(), bookID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, records)
	}
}
