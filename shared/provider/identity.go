package provider

import (
	"context"
	stdjson "encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/clerk/clerk-sdk-go/v2"
	"github.com/clerk/clerk-sdk-go/v2/user"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/vasapolrittideah/movie-discovery-api/shared/utilities"
)

var (
	ErrIdentityUserNotFound = errors.New("identity user not found")
)

// IdentityProvider is the subset of the identity provider's backend API the
// application relies on: current-user lookup and metadata updates.
type IdentityProvider interface {
	GetUser(ctx context.Context, userID string) (*IdentityUser, error)
	UpdateMetadata(ctx context.Context, userID string, metadata PublicMetadata) (*IdentityUser, error)
}

// EmailAddress is one of a user's addresses as reported by the provider.
type EmailAddress struct {
	ID           string `json:"id"`
	EmailAddress string `json:"email_address"`
}

// IdentityUser is a user as the identity provider sees it.
type IdentityUser struct {
	ID                    string         `json:"id"`
	FirstName             string         `json:"first_name"`
	LastName              string         `json:"last_name"`
	ImageURL              string         `json:"image_url"`
	ProfileImageURL       string         `json:"profile_image_url"`
	PrimaryEmailAddressID string         `json:"primary_email_address_id"`
	EmailAddresses        []EmailAddress `json:"email_addresses"`
	PublicMetadata        PublicMetadata `json:"public_metadata"`
}

// PrimaryEmail returns the primary email address, falling back to the first one.
func (u *IdentityUser) PrimaryEmail() string {
	for _, e := range u.EmailAddresses {
		if e.ID != "" && e.ID == u.PrimaryEmailAddressID {
			return e.EmailAddress
		}
	}
	if len(u.EmailAddresses) > 0 {
		return u.EmailAddresses[0].EmailAddress
	}
	return ""
}

// AvatarURL returns the best available profile image.
func (u *IdentityUser) AvatarURL() string {
	if u.ImageURL != "" {
		return u.ImageURL
	}
	return u.ProfileImageURL
}

// APIError is returned for non-2xx responses from the provider.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("identity provider error (%d): %s", e.StatusCode, e.Message)
}

// BackendClient talks to the Clerk backend API through the Clerk SDK.
type BackendClient struct {
	users  *user.Client
	logger *zerolog.Logger
}

// NewBackendClient creates a new identity provider client.
func NewBackendClient(baseURL, secretKey string, timeout time.Duration, logger *zerolog.Logger) *BackendClient {
	config := &clerk.ClientConfig{}
	config.Key = clerk.String(secretKey)
	if baseURL != "" {
		config.URL = clerk.String(strings.TrimRight(baseURL, "/"))
	}
	config.HTTPClient = &http.Client{
		Timeout:   timeout,
		Transport: &requestIDTransport{base: http.DefaultTransport},
	}

	return &BackendClient{
		users:  user.NewClient(config),
		logger: logger,
	}
}

func (c *BackendClient) GetUser(ctx context.Context, userID string) (*IdentityUser, error) {
	u, err := c.users.Get(ctx, userID)
	if err != nil {
		return nil, c.mapError("get_user", err)
	}

	return fromClerkUser(u)
}

// UpdateMetadata writes metadata into the user's public metadata. The provider
// merges top-level keys, so callers send the full merged view to be safe either way.
func (c *BackendClient) UpdateMetadata(
	ctx context.Context,
	userID string,
	metadata PublicMetadata,
) (*IdentityUser, error) {
	if metadata == nil {
		metadata = PublicMetadata{}
	}
	payload, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to encode metadata: %w", err)
	}
	raw := stdjson.RawMessage(payload)

	u, err := c.users.UpdateMetadata(ctx, userID, &user.UpdateMetadataParams{PublicMetadata: &raw})
	if err != nil {
		return nil, c.mapError("update_metadata", err)
	}

	return fromClerkUser(u)
}

// mapError turns SDK errors into ErrIdentityUserNotFound or *APIError.
func (c *BackendClient) mapError(operation string, err error) error {
	var apiResp *clerk.APIErrorResponse
	if !errors.As(err, &apiResp) {
		return fmt.Errorf("identity provider request failed: %w", err)
	}

	if apiResp.HTTPStatusCode == http.StatusNotFound {
		return ErrIdentityUserNotFound
	}

	apiErr := &APIError{StatusCode: apiResp.HTTPStatusCode, Message: errorMessage(apiResp)}
	c.logger.Warn().
		Str("operation", operation).
		Int("status", apiErr.StatusCode).
		Str("message", apiErr.Message).
		Str("trace_id", apiResp.TraceID).
		Msg("identity provider returned an error")
	return apiErr
}

// errorMessage picks the most descriptive message from a provider error body.
func errorMessage(resp *clerk.APIErrorResponse) string {
	if len(resp.Errors) > 0 {
		if resp.Errors[0].LongMessage != "" {
			return resp.Errors[0].LongMessage
		}
		if resp.Errors[0].Message != "" {
			return resp.Errors[0].Message
		}
	}
	return http.StatusText(resp.HTTPStatusCode)
}

func fromClerkUser(u *clerk.User) (*IdentityUser, error) {
	identity := &IdentityUser{
		ID:                    u.ID,
		FirstName:             deref(u.FirstName),
		LastName:              deref(u.LastName),
		ImageURL:              deref(u.ImageURL),
		PrimaryEmailAddressID: deref(u.PrimaryEmailAddressID),
	}

	for _, e := range u.EmailAddresses {
		if e == nil {
			continue
		}
		identity.EmailAddresses = append(identity.EmailAddresses, EmailAddress{ID: e.ID, EmailAddress: e.EmailAddress})
	}

	if len(u.PublicMetadata) > 0 {
		if err := json.Unmarshal(u.PublicMetadata, &identity.PublicMetadata); err != nil {
			return nil, fmt.Errorf("failed to decode public metadata: %w", err)
		}
	}

	return identity, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// requestIDTransport forwards the inbound request ID to the provider.
type requestIDTransport struct {
	base http.RoundTripper
}

func (t *requestIDTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if id := utilities.RequestIDFromContext(req.Context()); id != "" {
		req = req.Clone(req.Context())
		utilities.ForwardRequestID(req.Context(), req)
	}
	return t.base.RoundTrip(req)
}
