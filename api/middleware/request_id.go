package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/barthig/Biblioteka-sub002/pkg/logger"
)

const requestIDHeader = "X-Request-Id"

// RequestID adopts the caller's X-Request-Id or mints one, echoes it on
// the response, and threads it through the request logger.
func RequestID(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := strings.TrimSpace(r.Header.Get(requestIDHeader))
			if reqID == "" {
				reqID = uuid.NewString()
			}
			w.Header().Set(requestIDHeader, reqID)

			ctx := r.Context()
			if logg != nil {
				ctx = logg.WithRequestID(ctx, reqID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
