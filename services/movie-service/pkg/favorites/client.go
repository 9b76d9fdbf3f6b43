package favorites

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/vasapolrittideah/movie-discovery-api/services/movie-service/pkg/types"
)

const favoritesPath = "/api/user/fav"

// ErrUnauthorized matches an APIError for a request without a valid session.
var ErrUnauthorized = errors.New("favorites: unauthorized")

// APIError is returned for non-2xx responses of the favorites API.
type APIError struct {
	StatusCode int
	Message    string
	Details    string
}

func (e *APIError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("favorites API error (%d): %s: %s", e.StatusCode, e.Message, e.Details)
	}
	return fmt.Sprintf("favorites API error (%d): %s", e.StatusCode, e.Message)
}

func (e *APIError) Is(target error) bool {
	return target == ErrUnauthorized && e.StatusCode == http.StatusUnauthorized
}

// TokenFunc returns the session token sent as a bearer token.
type TokenFunc func(ctx context.Context) (string, error)

// Client talks to the favorites API on behalf of the signed-in user. It
// satisfies Store.
type Client struct {
	baseURL    string
	token      TokenFunc
	httpClient *http.Client
}

func NewClient(baseURL string, token TokenFunc, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: httpClient,
	}
}

// List returns the favorites of the signed-in user.
func (c *Client) List(ctx context.Context) ([]types.Favorite, error) {
	var resp types.ListFavoritesResponse
	if err := c.do(ctx, http.MethodGet, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Favs, nil
}

// Toggle flips the membership of req.MovieID. The response reports which
// action the server applied.
func (c *Client) Toggle(ctx context.Context, req types.ToggleFavoriteRequest) (*types.ToggleFavoriteResponse, error) {
	var resp types.ToggleFavoriteResponse
	if err := c.do(ctx, http.MethodPut, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) do(ctx context.Context, method string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+favoritesPath, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.token != nil {
		token, err := c.token(ctx)
		if err != nil {
			return fmt.Errorf("failed to get session token: %w", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("favorites request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: resp.Status}
		var errBody types.ErrorResponse
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		if json.Unmarshal(raw, &errBody) == nil && errBody.Error != "" {
			apiErr.Message = errBody.Error
			apiErr.Details = errBody.Details
		}
		return apiErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode favorites response: %w", err)
	}
	return nil
}
