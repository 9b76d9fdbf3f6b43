package interceptor

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/vasapolrittideah/movie-discovery-api/shared/auth"
)

// SessionCookieName is the cookie the identity provider's frontend SDK stores the session token in.
const SessionCookieName = "__session"

type contextKey struct{}

var SessionClaimsKey = contextKey{}

var (
	errMissingToken       = errors.New("missing session token")
	errInvalidAuthzHeader = errors.New("invalid authorization header format")
)

// NewSessionInterceptor returns middleware that authenticates the request's
// session token when one is present and stores its claims in the context.
// Requests without a valid session are passed through anonymously; use
// RequireSession on routes that need an identity.
func NewSessionInterceptor(jwtAuth auth.JWTAuthenticator, logger *zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := extractAndValidateJWT(r, jwtAuth)
			if err != nil {
				if !errors.Is(err, errMissingToken) {
					logger.Debug().Err(err).Str("path", r.URL.Path).Msg("rejected session token")
				}
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// RequireSession rejects requests that carry no authenticated session with 401.
func RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := ClaimsFromContext(r.Context()); !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "Unauthorized"})
			return
		}

		next.ServeHTTP(w, r)
	})
}

// WithClaims returns a copy of ctx carrying the session claims.
func WithClaims(ctx context.Context, claims *auth.SessionClaims) context.Context {
	return context.WithValue(ctx, SessionClaimsKey, claims)
}

// ClaimsFromContext returns the authenticated session claims, if any.
func ClaimsFromContext(ctx context.Context) (*auth.SessionClaims, bool) {
	claims, ok := ctx.Value(SessionClaimsKey).(*auth.SessionClaims)
	return claims, ok && claims != nil
}

func extractAndValidateJWT(r *http.Request, jwtAuth auth.JWTAuthenticator) (*auth.SessionClaims, error) {
	tokenString, err := sessionToken(r)
	if err != nil {
		return nil, err
	}

	return jwtAuth.ValidateSessionToken(tokenString)
}

func sessionToken(r *http.Request) (string, error) {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || parts[1] == "" {
			return "", errInvalidAuthzHeader
		}
		return parts[1], nil
	}

	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value, nil
	}

	return "", errMissingToken
}
