package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/vasapolrittideah/movie-discovery-api/services/movie-service/internal/catalog"
	"github.com/vasapolrittideah/movie-discovery-api/services/movie-service/internal/payload"
	"github.com/vasapolrittideah/movie-discovery-api/shared/validator"
)

// MovieCatalog is the read side of the movie catalog used by the views.
type MovieCatalog interface {
	TopRated(ctx context.Context, page int) (*catalog.MoviePage, error)
	Trending(ctx context.Context, page int) (*catalog.MoviePage, error)
	MovieByID(ctx context.Context, id int) (*catalog.MovieDetails, error)
	Search(ctx context.Context, query string, page int) (*catalog.MoviePage, error)
}

type MovieHandler struct {
	catalog   MovieCatalog
	validator *validator.Validator
	logger    *zerolog.Logger
}

func NewMovieHandler(catalog MovieCatalog, validator *validator.Validator, logger *zerolog.Logger) *MovieHandler {
	return &MovieHandler{
		catalog:   catalog,
		validator: validator,
		logger:    logger,
	}
}

func (h *MovieHandler) ListTopRated(w http.ResponseWriter, r *http.Request) {
	h.listPage(w, r, h.catalog.TopRated)
}

func (h *MovieHandler) ListTrending(w http.ResponseWriter, r *http.Request) {
	h.listPage(w, r, h.catalog.Trending)
}

// ListByCategory handles /top/{category}: "rated" selects top rated, every
// other category falls back to trending.
func (h *MovieHandler) ListByCategory(w http.ResponseWriter, r *http.Request) {
	if chi.URLParam(r, "category") == "rated" {
		h.ListTopRated(w, r)
		return
	}
	h.ListTrending(w, r)
}

// Search handles both /search/{query} and /search?q=.
func (h *MovieHandler) Search(w http.ResponseWriter, r *http.Request) {
	page, ok := h.parsePage(w, r)
	if !ok {
		return
	}

	query := chi.URLParam(r, "query")
	if query == "" {
		query = r.URL.Query().Get("q")
	}
	params := payload.SearchQuery{Query: strings.TrimSpace(query), Page: page}
	if err := h.validator.Struct(params); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.catalog.Search(r.Context(), params.Query, params.Page)
	if err != nil {
		h.writeCatalogError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, capPages(result))
}

func (h *MovieHandler) GetMovie(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "id must be a number")
		return
	}
	if err := h.validator.Struct(payload.MovieIDParam{ID: id}); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	movie, err := h.catalog.MovieByID(r.Context(), id)
	if err != nil {
		h.writeCatalogError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, movie)
}

func (h *MovieHandler) listPage(
	w http.ResponseWriter,
	r *http.Request,
	fetch func(ctx context.Context, page int) (*catalog.MoviePage, error),
) {
	page, ok := h.parsePage(w, r)
	if !ok {
		return
	}

	result, err := fetch(r.Context(), page)
	if err != nil {
		h.writeCatalogError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, capPages(result))
}

func (h *MovieHandler) parsePage(w http.ResponseWriter, r *http.Request) (int, bool) {
	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "page must be a number")
			return 0, false
		}
		page = n
	}
	if err := h.validator.Struct(payload.MovieListQuery{Page: page}); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return 0, false
	}
	return page, true
}

func (h *MovieHandler) writeCatalogError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *catalog.APIError
	switch {
	case errors.Is(err, catalog.ErrInvalidMovieID):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound:
		writeError(w, http.StatusNotFound, apiErr.Error())
	default:
		requestLogger(r, h.logger).Error().Err(err).Msg("catalog request failed")
		writeError(w, http.StatusBadGateway, err.Error())
	}
}

func capPages(p *catalog.MoviePage) *catalog.MoviePage {
	out := *p
	if out.TotalPages > catalog.MaxPages {
		out.TotalPages = catalog.MaxPages
	}
	if out.Results == nil {
		out.Results = []catalog.Movie{}
	}
	return &out
}
