package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingSubject = errors.New("session token has no subject")
	ErrInvalidToken   = errors.New("invalid session token")
)

// SessionClaims are the claims carried by an identity provider session token.
// Subject holds the provider's user ID.
type SessionClaims struct {
	SessionID string `json:"sid,omitempty"`
	jwt.RegisteredClaims
}

// ExternalID returns the identity provider user ID the session belongs to.
func (c *SessionClaims) ExternalID() string {
	return c.Subject
}

// JWTAuthenticator verifies (and, for tooling and tests, issues) HS256 session
// tokens shared with the identity provider.
type JWTAuthenticator struct {
	audience string
	issuer   string
	secret   []byte
	leeway   time.Duration
}

// NewJWTAuthenticator creates a new JWTAuthenticator instance.
func NewJWTAuthenticator(audience, issuer, secret string) JWTAuthenticator {
	return JWTAuthenticator{
		audience: audience,
		issuer:   issuer,
		secret:   []byte(secret),
		leeway:   5 * time.Second,
	}
}

// GenerateSessionToken issues a token for the given provider user.
func (a *JWTAuthenticator) GenerateSessionToken(externalID, sessionID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := SessionClaims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   externalID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    a.issuer,
			Audience:  jwt.ClaimStrings{a.audience},
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenStr, err := token.SignedString(a.secret)
	if err != nil {
		return "", err
	}

	return tokenStr, nil
}

// ValidateSessionToken parses and verifies a session token and returns its claims.
func (a *JWTAuthenticator) ValidateSessionToken(tokenString string) (*SessionClaims, error) {
	claims := &SessionClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}

		return a.secret, nil
	},
		jwt.WithExpirationRequired(),
		jwt.WithAudience(a.audience),
		jwt.WithIssuer(a.issuer),
		jwt.WithLeeway(a.leeway),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
	)
	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, ErrInvalidToken
	}

	if claims.Subject == "" {
		return nil, ErrMissingSubject
	}

	return claims, nil
}
