// Package catalog is a read-only client for a TMDB-compatible movie catalog API.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/vasapolrittideah/movie-discovery-api/shared/cache"
	"github.com/vasapolrittideah/movie-discovery-api/shared/metrics"
	"github.com/vasapolrittideah/movie-discovery-api/shared/utilities"
)

const (
	breakerName      = "catalog-api"
	maxErrorBodySize = 64 * 1024
	defaultTimeout   = 10 * time.Second
)

var (
	ErrMissingAPIKey  = errors.New("catalog API key is missing")
	ErrInvalidMovieID = errors.New("invalid movie id")
	ErrUnavailable    = errors.New("catalog API unavailable")
)

// APIError is returned when the catalog answers with a non-2xx status.
type APIError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return "catalog API error: " + e.Message
	}
	return "failed to fetch: " + e.Status
}

// Options configures a Client.
type Options struct {
	BaseURL    string
	APIKey     string
	Language   string
	CacheTTL   time.Duration
	CacheSize  int
	Timeout    time.Duration
	RateLimit  float64
	RateBurst  int
	HTTPClient *http.Client
}

// Client issues cached, rate-limited requests to the catalog. Responses are
// cached by full request URL; concurrent misses for one URL share a single
// upstream call.
type Client struct {
	baseURL    string
	apiKey     string
	language   string
	httpClient *http.Client
	timeout    time.Duration
	cache      cache.Cacher[[]byte]
	group      singleflight.Group
	breaker    *gobreaker.CircuitBreaker[[]byte]
	limiter    *rate.Limiter
	logger     *zerolog.Logger
}

// NewClient creates a new catalog client.
func NewClient(opts Options, logger *zerolog.Logger) (*Client, error) {
	if opts.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 5 * time.Minute
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 40
	}
	if opts.RateBurst <= 0 {
		opts.RateBurst = 20
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}

	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)

	c := &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		apiKey:     opts.APIKey,
		language:   opts.Language,
		httpClient: httpClient,
		timeout:    opts.Timeout,
		cache:      cache.NewLRU[[]byte]("catalog", opts.CacheSize, opts.CacheTTL),
		limiter:    rate.NewLimiter(rate.Limit(opts.RateLimit), opts.RateBurst),
		logger:     logger,
	}

	c.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		IsSuccessful: isBreakerSuccess,
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("catalog circuit breaker state changed")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
	})

	return c, nil
}

// TopRated returns a page of the highest rated movies.
func (c *Client) TopRated(ctx context.Context, page int) (*MoviePage, error) {
	return fetch[MoviePage](ctx, c, "top_rated", "/movie/top_rated", pageParams(page))
}

// Trending returns a page of this week's trending movies and shows.
func (c *Client) Trending(ctx context.Context, page int) (*MoviePage, error) {
	return fetch[MoviePage](ctx, c, "trending", "/trending/all/week", pageParams(page))
}

// MovieByID returns the details and credits of a movie.
func (c *Client) MovieByID(ctx context.Context, id int) (*MovieDetails, error) {
	if id <= 0 {
		return nil, ErrInvalidMovieID
	}

	params := url.Values{}
	params.Set("append_to_response", "credits")

	return fetch[MovieDetails](ctx, c, "movie", "/movie/"+strconv.Itoa(id), params)
}

// Search finds movies matching query. An empty query matches nothing and does
// not reach the catalog.
func (c *Client) Search(ctx context.Context, query string, page int) (*MoviePage, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return &MoviePage{Page: 1, Results: []Movie{}}, nil
	}

	params := pageParams(page)
	params.Set("query", query)
	params.Set("include_adult", "false")

	return fetch[MoviePage](ctx, c, "search", "/search/movie", params)
}

// CacheStats exposes the response cache counters.
func (c *Client) CacheStats() cache.Stats {
	return c.cache.Stats()
}

func fetch[T any](ctx context.Context, c *Client, endpoint, path string, params url.Values) (*T, error) {
	body, err := c.get(ctx, endpoint, c.buildURL(path, params))
	if err != nil {
		c.logger.Error().Err(err).Str("endpoint", endpoint).Str("path", path).Msg("catalog API call failed")
		return nil, err
	}

	var out T
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to decode catalog response: %w", err)
	}

	return &out, nil
}

func (c *Client) buildURL(path string, params url.Values) string {
	if params == nil {
		params = url.Values{}
	}
	if c.language != "" {
		params.Set("language", c.language)
	}
	params.Set("api_key", c.apiKey)

	return c.baseURL + path + "?" + params.Encode()
}

// get serves fullURL from the cache or fetches and caches it. The shared
// fetch is detached from any single caller, so one caller going away does not
// fail the others waiting on the same URL.
func (c *Client) get(ctx context.Context, endpoint, fullURL string) ([]byte, error) {
	if body, ok := c.cache.Get(fullURL); ok {
		return body, nil
	}

	ch := c.group.DoChan(fullURL, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()

		body, err := c.breaker.Execute(func() ([]byte, error) {
			return c.doRequest(fetchCtx, endpoint, fullURL)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				metrics.CatalogRequestsTotal.WithLabelValues(endpoint, "rejected").Inc()
				return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
			}
			return nil, err
		}

		c.cache.Set(fullURL, body)
		return body, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	}
}

func (c *Client) doRequest(ctx context.Context, endpoint, fullURL string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	utilities.ForwardRequestID(ctx, req)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.CatalogRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.CatalogRequestsTotal.WithLabelValues(endpoint, "error").Inc()
		return nil, fmt.Errorf("catalog request failed: %w", redactURLError(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.CatalogRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()
		return nil, readAPIError(resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.CatalogRequestsTotal.WithLabelValues(endpoint, "error").Inc()
		return nil, fmt.Errorf("failed to read catalog response: %w", err)
	}

	metrics.CatalogRequestsTotal.WithLabelValues(endpoint, "ok").Inc()
	return body, nil
}

// readAPIError builds an APIError, preferring the catalog's status_message.
func readAPIError(resp *http.Response) *APIError {
	apiErr := &APIError{StatusCode: resp.StatusCode, Status: resp.Status}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
	if err != nil || len(raw) == 0 {
		return apiErr
	}

	var payload struct {
		StatusMessage string `json:"status_message"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil {
		apiErr.Message = payload.StatusMessage
	}

	return apiErr
}

// redactURLError strips the request URL, which carries the API key, from
// transport errors.
func redactURLError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("%s: %w", urlErr.Op, urlErr.Err)
	}
	return err
}

// isBreakerSuccess counts client errors as successes: they say nothing about
// the catalog's health.
func isBreakerSuccess(err error) bool {
	if err == nil {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode < 500 && apiErr.StatusCode != http.StatusTooManyRequests
	}
	return errors.Is(err, context.Canceled)
}

func pageParams(page int) url.Values {
	if page < 1 {
		page = 1
	}
	params := url.Values{}
	params.Set("page", strconv.Itoa(page))
	return params
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
