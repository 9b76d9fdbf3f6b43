package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vasapolrittideah/movie-discovery-api/services/movie-service/internal/catalog"
	"github.com/vasapolrittideah/movie-discovery-api/services/movie-service/pkg/types"
)

type stubCatalog struct {
	calls   []string
	lastArg any
	page    *catalog.MoviePage
	details *catalog.MovieDetails
	err     error
}

func (s *stubCatalog) TopRated(_ context.Context, page int) (*catalog.MoviePage, error) {
	s.calls = append(s.calls, "top_rated")
	s.lastArg = page
	return s.page, s.err
}

func (s *stubCatalog) Trending(_ context.Context, page int) (*catalog.MoviePage, error) {
	s.calls = append(s.calls, "trending")
	s.lastArg = page
	return s.page, s.err
}

func (s *stubCatalog) MovieByID(_ context.Context, id int) (*catalog.MovieDetails, error) {
	s.calls = append(s.calls, "movie")
	s.lastArg = id
	return s.details, s.err
}

func (s *stubCatalog) Search(_ context.Context, query string, _ int) (*catalog.MoviePage, error) {
	s.calls = append(s.calls, "search")
	s.lastArg = query
	return s.page, s.err
}

func newMovieRouter(t *testing.T, c MovieCatalog) http.Handler {
	t.Helper()
	h := NewMovieHandler(c, newValidator(t), nopLogger())

	r := chi.NewRouter()
	r.Get("/api/movies/trending", h.ListTrending)
	r.Get("/api/movies/top-rated", h.ListTopRated)
	r.Get("/api/movies/top/{category}", h.ListByCategory)
	r.Get("/api/movies/search", h.Search)
	r.Get("/api/movies/search/{query}", h.Search)
	r.Get("/api/movies/{id}", h.GetMovie)
	return r
}

func serve(h http.Handler, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestMovieHandler_Listings(t *testing.T) {
	tests := []struct {
		target   string
		wantCall string
		wantPage int
	}{
		{target: "/api/movies/trending", wantCall: "trending", wantPage: 1},
		{target: "/api/movies/top-rated?page=3", wantCall: "top_rated", wantPage: 3},
		{target: "/api/movies/top/rated?page=2", wantCall: "top_rated", wantPage: 2},
		{target: "/api/movies/top/popular", wantCall: "trending", wantPage: 1},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			stub := &stubCatalog{page: &catalog.MoviePage{
				Page:         tt.wantPage,
				Results:      []catalog.Movie{{ID: 550, Title: "Fight Club"}},
				TotalPages:   41230,
				TotalResults: 824590,
			}}

			rec := serve(newMovieRouter(t, stub), tt.target)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, []string{tt.wantCall}, stub.calls)
			assert.Equal(t, tt.wantPage, stub.lastArg)

			page := decodeBody[catalog.MoviePage](t, rec)
			assert.Equal(t, catalog.MaxPages, page.TotalPages)
			assert.Equal(t, 824590, page.TotalResults)
			require.Len(t, page.Results, 1)
			assert.Equal(t, "Fight Club", page.Results[0].Title)
		})
	}
}

func TestMovieHandler_Search(t *testing.T) {
	stub := &stubCatalog{page: &catalog.MoviePage{Page: 1, TotalPages: 2}}
	router := newMovieRouter(t, stub)

	rec := serve(router, "/api/movies/search/fight%20club")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "fight club", stub.lastArg)
	assert.Equal(t, 2, decodeBody[catalog.MoviePage](t, rec).TotalPages)

	rec = serve(router, "/api/movies/search?q=heat")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "heat", stub.lastArg)

	rec = serve(router, "/api/movies/search?q=%20")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Len(t, stub.calls, 2)
}

func TestMovieHandler_GetMovie(t *testing.T) {
	stub := &stubCatalog{details: &catalog.MovieDetails{
		Movie:   catalog.Movie{ID: 550, Title: "Fight Club"},
		Runtime: 139,
	}}
	router := newMovieRouter(t, stub)

	rec := serve(router, "/api/movies/550")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 550, stub.lastArg)

	details := decodeBody[catalog.MovieDetails](t, rec)
	assert.Equal(t, "Fight Club", details.Title)
	assert.Equal(t, 139, details.Runtime)
}

func TestMovieHandler_BadInput(t *testing.T) {
	for _, target := range []string{
		"/api/movies/abc",
		"/api/movies/0",
		"/api/movies/trending?page=x",
		"/api/movies/trending?page=0",
		"/api/movies/top-rated?page=501",
	} {
		t.Run(target, func(t *testing.T) {
			stub := &stubCatalog{}
			rec := serve(newMovieRouter(t, stub), target)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Empty(t, stub.calls)
		})
	}
}

func TestMovieHandler_CatalogErrors(t *testing.T) {
	t.Run("unavailable", func(t *testing.T) {
		stub := &stubCatalog{err: &catalog.APIError{StatusCode: 503, Status: "503 Service Unavailable"}}
		rec := serve(newMovieRouter(t, stub), "/api/movies/trending")

		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.Equal(t, "failed to fetch: 503 Service Unavailable", decodeBody[types.ErrorResponse](t, rec).Error)
	})

	t.Run("not found", func(t *testing.T) {
		stub := &stubCatalog{err: &catalog.APIError{
			StatusCode: 404,
			Status:     "404 Not Found",
			Message:    "The resource you requested could not be found.",
		}}
		rec := serve(newMovieRouter(t, stub), "/api/movies/999999999")

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t,
			"catalog API error: The resource you requested could not be found.",
			decodeBody[types.ErrorResponse](t, rec).Error,
		)
	})
}
