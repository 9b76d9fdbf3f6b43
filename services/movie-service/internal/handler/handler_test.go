package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/vasapolrittideah/movie-discovery-api/shared/auth"
	"github.com/vasapolrittideah/movie-discovery-api/shared/interceptor"
	"github.com/vasapolrittideah/movie-discovery-api/shared/provider"
	"github.com/vasapolrittideah/movie-discovery-api/shared/validator"
)

func nopLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

func newValidator(t *testing.T) *validator.Validator {
	t.Helper()
	v, err := validator.New()
	require.NoError(t, err)
	return v
}

func newIdentity(id string) *provider.IdentityUser {
	return &provider.IdentityUser{
		ID:        id,
		FirstName: "Grace",
		LastName:  "Hopper",
		ImageURL:  "https://img.example/grace.png",
		EmailAddresses: []provider.EmailAddress{
			{ID: "idn_1", EmailAddress: "grace@example.com"},
		},
	}
}

func newRequest(method, target, body string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

func withSession(req *http.Request, externalID string) *http.Request {
	claims := &auth.SessionClaims{RegisteredClaims: jwt.RegisteredClaims{Subject: externalID}}
	return req.WithContext(interceptor.WithClaims(req.Context(), claims))
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}
