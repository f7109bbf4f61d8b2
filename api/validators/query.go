package validators

import (
	"net/http"
	"strconv"
	"strings"

	pkgerrors "github.com/barthig/Biblioteka-sub002/pkg/errors"
)

// ParseQueryInt reads an integer query parameter, falling back to
// defaultVal when the parameter is absent and rejecting values outside
// [min, max] with a validation error naming the field.
func ParseQueryInt(r *http.Request, key string, defaultVal, min, max int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return defaultVal, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "query parameter must be numeric").
			WithDetails(map[string]any{"field": key})
	}
	if value < min || value > max {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "query parameter out of range").
			WithDetails(map[string]any{"field": key, "min": min, "max": max})
	}
	return value, nil
}
