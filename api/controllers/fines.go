package controllers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/barthig/Biblioteka-sub002/api/responses"
	"github.com/barthig/Biblioteka-sub002/api/validators"
	"github.com/barthig/Biblioteka-sub002/internal/fines"
	pkgerrors "github.com/barthig/Biblioteka-sub002/pkg/errors"
	"github.com/barthig/Biblioteka-sub002/pkg/logger"
)

type cancelFineRequest struct {
	Reason string `json:"reason" validate:"required"`
}

type issueFineRequest struct {
	LoanID string `json:"loanId" validate:"required,uuid"`
	Amount string `json:"amount" validate:"required"`
}

// IssueFine records a manual charge against a loan, for staff.
func IssueFine(svc fines.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "fines service unavailable"))
			return
		}

		actorID, actorRole, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body issueFineRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		loanID, err := uuid.Parse(body.LoanID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "loanId must be a uuid"))
			return
		}
		amount, err := decimal.NewFromString(body.Amount)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "amount must be a decimal"))
			return
		}

		fine, err := svc.Issue(r.Context(), fines.IssueFineInput{
			LoanID:      loanID,
			Amount:      amount,
			ActorUserID: actorID,
			ActorRole:   actorRole,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, fine)
	}
}

// PayFine settles a pending fine at the desk.
func PayFine(svc fines.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "fines service unavailable"))
			return
		}

		actorID, actorRole, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		fineID, err := pathUUID(r, "fineId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		fine, err := svc.Pay(r.Context(), fines.PayFineInput{
			FineID:      fineID,
			ActorUserID: actorID,
			ActorRole:   actorRole,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, fine)
	}
}

// CancelFine waives a pending fine, for staff.
func CancelFine(svc fines.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "fines service unavailable"))
			return
		}

		actorID, actorRole, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		fineID, err := pathUUID(r, "fineId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body cancelFineRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		fine, err := svc.Cancel(r.Context(), fines.CancelFineInput{
			FineID:      fineID,
			Reason:      body.Reason,
			ActorUserID: actorID,
			ActorRole:   actorRole,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, fine)
	}
}

// GetFine returns one fine. Patrons may only see their own.
func GetFine(svc fines.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "fines service unavailable"))
			return
		}

		actorID, actorRole, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		fineID, err := pathUUID(r, "fineId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		fine, err := svc.Get(r.Context(), fineID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if !isStaffRole(actorRole) && fine.UserID != actorID {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "fine belongs to another reader"))
			return
		}
		responses.WriteSuccess(w, fine)
	}
}

// ListMyFines returns the caller's fines plus the outstanding total.
func ListMyFines(svc fines.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "fines service unavailable"))
			return
		}

		actorID, _, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params, err := paginationFromQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListByUser(r.Context(), actorID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// ListUserFines returns any patron's fines, for staff.
func ListUserFines(svc fines.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "fines service unavailable"))
			return
		}

		userID, err := pathUUID(r, "userId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params, err := paginationFromQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListByUser(r.Context(), userID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}
