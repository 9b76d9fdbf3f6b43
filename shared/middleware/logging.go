package middleware

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/vasapolrittideah/movie-discovery-api/shared/utilities"
)

type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    int
}

func wrapResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.written += n
	return n, err
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Logger logs one line per request and attaches a request-scoped logger to the
// context, retrievable with zerolog.Ctx.
func Logger(logger *zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			reqLogger := logger.With().
				Str("request_id", utilities.RequestIDFromContext(r.Context())).
				Logger()
			r = r.WithContext(reqLogger.WithContext(r.Context()))

			wrapped := wrapResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			event := reqLogger.Info()
			if wrapped.statusCode >= http.StatusInternalServerError {
				event = reqLogger.Error()
			} else if wrapped.statusCode >= http.StatusBadRequest {
				event = reqLogger.Warn()
			}

			event.
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("remote_addr", r.RemoteAddr).
				Int("status", wrapped.statusCode).
				Int("bytes", wrapped.written).
				Dur("duration", time.Since(start)).
				Msg("http request")
		})
	}
}
