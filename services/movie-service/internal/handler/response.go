package handler

import (
	"net/http"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/vasapolrittideah/movie-discovery-api/services/movie-service/pkg/types"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, types.ErrorResponse{Error: message})
}

func writeErrorDetails(w http.ResponseWriter, status int, message string, err error) {
	resp := types.ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

// requestLogger prefers the logger attached by the logging middleware.
func requestLogger(r *http.Request, fallback *zerolog.Logger) *zerolog.Logger {
	l := zerolog.Ctx(r.Context())
	if l.GetLevel() == zerolog.Disabled && fallback != nil {
		return fallback
	}
	return l
}
