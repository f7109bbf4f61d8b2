package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/barthig/Biblioteka-sub002/api/middleware"
	"github.com/barthig/Biblioteka-sub002/pkg/enums"
	pkgerrors "github.com/barthig/Biblioteka-sub002/pkg/errors"
)

func isStaffRole(role string) bool {
	return enums.UserRole(role).IsStaff()
}

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "missing path parameter").WithDetails(map[string]string{"param": name})
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid path parameter").WithDetails(map[string]string{"param": name})
	}
	return id, nil
}

// actorFromContext resolves the authenticated caller seeded by the auth
// middleware.
func actorFromContext(r *http.Request) (uuid.UUID, string, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, "", pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	actorID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, "", pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
	}
	return actorID, middleware.RoleFromContext(r.Context()), nil
}
