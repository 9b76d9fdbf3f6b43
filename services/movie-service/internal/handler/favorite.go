package handler

import (
	"errors"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/vasapolrittideah/movie-discovery-api/services/movie-service/internal/usecase"
	"github.com/vasapolrittideah/movie-discovery-api/services/movie-service/pkg/types"
	"github.com/vasapolrittideah/movie-discovery-api/shared/interceptor"
	"github.com/vasapolrittideah/movie-discovery-api/shared/validator"
)

// FavoriteHandler serves /api/user/fav.
type FavoriteHandler struct {
	favoriteUsecase usecase.FavoriteUsecase
	validator       *validator.Validator
	logger          *zerolog.Logger
}

func NewFavoriteHandler(
	favoriteUsecase usecase.FavoriteUsecase,
	validator *validator.Validator,
	logger *zerolog.Logger,
) *FavoriteHandler {
	return &FavoriteHandler{
		favoriteUsecase: favoriteUsecase,
		validator:       validator,
		logger:          logger,
	}
}

// ListFavorites handles GET /api/user/fav.
func (h *FavoriteHandler) ListFavorites(w http.ResponseWriter, r *http.Request) {
	claims, ok := interceptor.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	favs, err := h.favoriteUsecase.ListFavorites(r.Context(), claims.ExternalID())
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrIdentityNotFound):
			writeError(w, http.StatusUnauthorized, "Unauthorized")
		case errors.Is(err, usecase.ErrUserNotFound):
			writeError(w, http.StatusNotFound, "User not found")
		default:
			requestLogger(r, h.logger).Error().Err(err).Msg("failed to list favorites")
			writeErrorDetails(w, http.StatusInternalServerError, "Internal Server Error", err)
		}
		return
	}

	writeJSON(w, http.StatusOK, types.ListFavoritesResponse{Favs: toFavoriteResponses(favs)})
}

// ToggleFavorite handles PUT /api/user/fav.
func (h *FavoriteHandler) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	claims, ok := interceptor.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req types.ToggleFavoriteRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON data")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	params := usecase.ToggleFavoriteParams{
		MovieID:     req.MovieID.String(),
		Title:       req.Title,
		Description: req.Overview,
		ReleaseDate: types.ParseReleaseDate(req.ReleaseDate),
		PosterImage: req.Image,
	}
	if req.VoteCount != nil {
		params.Rating = *req.VoteCount
	}

	result, err := h.favoriteUsecase.ToggleFavorite(r.Context(), claims.ExternalID(), params)
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrTitleRequired):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, usecase.ErrIdentityNotFound):
			writeError(w, http.StatusUnauthorized, "Unauthorized")
		case errors.Is(err, usecase.ErrUserNotFound):
			writeError(w, http.StatusNotFound, "User not found in database")
		default:
			requestLogger(r, h.logger).Error().Err(err).Str("movie_id", params.MovieID).Msg("failed to toggle favorite")
			writeErrorDetails(w, http.StatusInternalServerError, "Internal Server Error", err)
		}
		return
	}

	writeJSON(w, http.StatusOK, types.ToggleFavoriteResponse{
		Success: true,
		User:    toUserResponse(result.User),
		Action:  string(result.Action),
	})
}
