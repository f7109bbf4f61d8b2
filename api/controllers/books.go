package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/barthig/Biblioteka-sub002/api/responses"
	"github.com/barthig/Biblioteka-sub002/api/validators"
	"github.com/barthig/Biblioteka-sub002/internal/inventory"
	pkgerrors "github.com/barthig/Biblioteka-sub002/pkg/errors"
	"github.com/barthig/Biblioteka-sub002/pkg/logger"
	"github.com/barthig/Biblioteka-sub002/pkg/pagination"
)

type createBookRequest struct {
	Title         string             `json:"title" validate:"required"`
	Author        string             `json:"author" validate:"required"`
	ISBN          *string            `json:"isbn,omitempty"`
	Publisher     *string            `json:"publisher,omitempty"`
	PublishedYear *int               `json:"published_year,omitempty"`
	InitialCopies []createCopyOnBook `json:"initial_copies,omitempty" validate:"dive"`
}

type createCopyOnBook struct {
	InventoryCode string  `json:"inventory_code,omitempty"`
	AccessType    string  `json:"access_type,omitempty"`
	Location      *string `json:"location,omitempty"`
}

type updateBookRequest struct {
	Title         *string `json:"title,omitempty"`
	Author        *string `json:"author,omitempty"`
	ISBN          *string `json:"isbn,omitempty"`
	Publisher     *string `json:"publisher,omitempty"`
	PublishedYear *int    `json:"published_year,omitempty"`
}

// CreateBook registers a catalog title, optionally with starting inventory.
func CreateBook(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
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

		var body createBookRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := inventory.CreateBookInput{
			Title:         body.Title,
			Author:        body.Author,
			ISBN:          body.ISBN,
			Publisher:     body.Publisher,
			PublishedYear: body.PublishedYear,
			ActorUserID:   actorID,
			ActorRole:     actorRole,
		}
		for _, copyReq := range body.InitialCopies {
			input.InitialCopies = append(input.InitialCopies, inventory.CreateCopyInput{
				InventoryCode: copyReq.InventoryCode,
				AccessType:    copyReq.AccessType,
				Location:      copyReq.Location,
			})
		}

		book, err := svc.CreateBook(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, book)
	}
}

// UpdateBook edits the bibliographic fields of a title.
func UpdateBook(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
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

		var body updateBookRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		book, err := svc.UpdateBook(r.Context(), inventory.UpdateBookInput{
			BookID:        bookID,
			Title:         body.Title,
			Author:        body.Author,
			ISBN:          body.ISBN,
			Publisher:     body.Publisher,
			PublishedYear: body.PublishedYear,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, book)
	}
}

// GetBook returns one catalog title with its derived counters.
func GetBook(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
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

		book, err := svc.GetBook(r.Context(), bookID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, book)
	}
}

// ListBooks serves the paginated catalog with optional filters.
func ListBooks(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 0, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		filters := inventory.BookFilters{
			Query:  strings.TrimSpace(r.URL.Query().Get("q")),
			Author: strings.TrimSpace(r.URL.Query().Get("author")),
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("available")); raw != "" {
			value, parseErr := strconv.ParseBool(raw)
			if parseErr != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, parseErr, "invalid available value"))
				return
			}
			filters.AvailableOnly = value
		}

		params := pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		}

		list, err := svc.ListBooks(r.Context(), params, filters)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// DeleteBook removes a title that has no copies left.
func DeleteBook(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
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

		if err := svc.DeleteBook(r.Context(), bookID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}
