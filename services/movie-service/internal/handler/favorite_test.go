package handler

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vasapolrittideah/movie-discovery-api/services/movie-service/internal/fake"
	"github.com/vasapolrittideah/movie-discovery-api/services/movie-service/internal/usecase"
	"github.com/vasapolrittideah/movie-discovery-api/services/movie-service/pkg/types"
	"github.com/vasapolrittideah/movie-discovery-api/shared/provider"
)

const fightClubBody = `{
	"movieId": 550,
	"title": "Fight Club",
	"overview": "An insomniac office worker...",
	"releaseDate": "1999-10-15",
	"voteCount": 27252,
	"image": "/pB8BM7pdSp6B6Ih7QZ4DrQ3PmJK.jpg"
}`

func newFavoriteHandler(
	t *testing.T,
	identities ...*provider.IdentityUser,
) (*FavoriteHandler, *fake.UserRepository, *fake.IdentityProvider) {
	t.Helper()
	repo := fake.NewUserRepository()
	idp := fake.NewIdentityProvider(identities...)
	provisioning := usecase.NewProvisioningUsecase(repo, idp, nopLogger())
	favorites := usecase.NewFavoriteUsecase(repo, idp, provisioning, nopLogger())
	return NewFavoriteHandler(favorites, newValidator(t), nopLogger()), repo, idp
}

func TestFavoriteHandler_ToggleFavorite(t *testing.T) {
	h, repo, idp := newFavoriteHandler(t, newIdentity("user_1"))

	rec := httptest.NewRecorder()
	h.ToggleFavorite(rec, withSession(newRequest(http.MethodPut, "/api/user/fav", fightClubBody), "user_1"))
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeBody[types.ToggleFavoriteResponse](t, rec)
	assert.True(t, resp.Success)
	assert.Equal(t, types.ActionAdded, resp.Action)
	assert.Equal(t, "user_1", resp.User.ExternalIdentityID)
	require.Len(t, resp.User.Favorites, 1)
	fav := resp.User.Favorites[0]
	assert.Equal(t, "550", fav.MovieID)
	assert.Equal(t, "Fight Club", fav.Title)
	assert.Equal(t, "An insomniac office worker...", fav.Description)
	assert.Equal(t, 27252.0, fav.Rating)
	require.NotNil(t, fav.ReleaseDate)
	assert.Equal(t, "1999-10-15", fav.ReleaseDate.Format("2006-01-02"))
	assert.Equal(t, []string{"550"}, idp.Metadata("user_1").FavoriteMovieIDs())
	assert.Equal(t, resp.User.ID, idp.Metadata("user_1").InternalUserID())

	rec = httptest.NewRecorder()
	h.ToggleFavorite(rec, withSession(newRequest(http.MethodPut, "/api/user/fav", `{"movieId":"550"}`), "user_1"))
	require.Equal(t, http.StatusOK, rec.Code)

	resp = decodeBody[types.ToggleFavoriteResponse](t, rec)
	assert.Equal(t, types.ActionRemoved, resp.Action)
	assert.Empty(t, resp.User.Favorites)
	assert.Empty(t, idp.Metadata("user_1").FavoriteMovieIDs())
	assert.Equal(t, 1, repo.Count())
}

func TestFavoriteHandler_ToggleFavoriteRejectsBadInput(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantError string
	}{
		{name: "empty object", body: `{}`, wantError: "movieId is required"},
		{name: "empty body", body: "", wantError: "Invalid JSON data"},
		{name: "malformed", body: `{"movieId":`, wantError: "Invalid JSON data"},
		{name: "movie id of wrong type", body: `{"movieId":true}`, wantError: "Invalid JSON data"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, repo, idp := newFavoriteHandler(t, newIdentity("user_1"))

			rec := httptest.NewRecorder()
			h.ToggleFavorite(rec, withSession(newRequest(http.MethodPut, "/api/user/fav", tt.body), "user_1"))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.wantError, decodeBody[types.ErrorResponse](t, rec).Error)
			assert.Zero(t, repo.Mutations)
			assert.Zero(t, repo.Count())
			assert.Zero(t, idp.UpdateCalls)
		})
	}
}

func TestFavoriteHandler_AddWithoutTitle(t *testing.T) {
	h, repo, _ := newFavoriteHandler(t, newIdentity("user_1"))

	rec := httptest.NewRecorder()
	h.ToggleFavorite(rec, withSession(newRequest(http.MethodPut, "/api/user/fav", `{"movieId":"550"}`), "user_1"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, usecase.ErrTitleRequired.Error(), decodeBody[types.ErrorResponse](t, rec).Error)

	user, err := repo.GetUserByExternalID(t.Context(), "user_1")
	require.NoError(t, err)
	assert.Empty(t, user.Favorites)
}

func TestFavoriteHandler_Unauthenticated(t *testing.T) {
	h, repo, _ := newFavoriteHandler(t, newIdentity("user_1"))

	rec := httptest.NewRecorder()
	h.ToggleFavorite(rec, newRequest(http.MethodPut, "/api/user/fav", fightClubBody))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	h.ListFavorites(rec, newRequest(http.MethodGet, "/api/user/fav", ""))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	h.ListFavorites(rec, withSession(newRequest(http.MethodGet, "/api/user/fav", ""), "user_unknown"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	assert.Zero(t, repo.Count())
}

func TestFavoriteHandler_ListFavorites(t *testing.T) {
	h, _, _ := newFavoriteHandler(t, newIdentity("user_1"))

	rec := httptest.NewRecorder()
	h.ListFavorites(rec, withSession(newRequest(http.MethodGet, "/api/user/fav", ""), "user_1"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"favs":[]}`, rec.Body.String())

	rec = httptest.NewRecorder()
	h.ToggleFavorite(rec, withSession(newRequest(http.MethodPut, "/api/user/fav", fightClubBody), "user_1"))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ListFavorites(rec, withSession(newRequest(http.MethodGet, "/api/user/fav", ""), "user_1"))
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeBody[types.ListFavoritesResponse](t, rec)
	require.Len(t, resp.Favs, 1)
	assert.Equal(t, "550", resp.Favs[0].MovieID)
}

func TestFavoriteHandler_StoreFailure(t *testing.T) {
	h, repo, _ := newFavoriteHandler(t, newIdentity("user_1"))
	repo.UpsertErrs = []error{errors.New("connection reset")}

	rec := httptest.NewRecorder()
	h.ToggleFavorite(rec, withSession(newRequest(http.MethodPut, "/api/user/fav", fightClubBody), "user_1"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decodeBody[types.ErrorResponse](t, rec)
	assert.Equal(t, "Internal Server Error", resp.Error)
	assert.Contains(t, resp.Details, "connection reset")
}
