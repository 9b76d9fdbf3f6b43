package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/vasapolrittideah/movie-discovery-api/shared/utilities"
)

// RequestID propagates the caller's X-Request-ID or generates a new one, and
// echoes it on the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(utilities.RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		w.Header().Set(utilities.RequestIDHeader, requestID)

		ctx := utilities.ContextWithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
