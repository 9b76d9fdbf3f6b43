package handler

import (
	"github.com/vasapolrittideah/movie-discovery-api/services/movie-service/internal/model"
	"github.com/vasapolrittideah/movie-discovery-api/services/movie-service/pkg/types"
)

func toFavoriteResponses(favs []model.Favorite) []types.Favorite {
	out := make([]types.Favorite, 0, len(favs))
	for _, f := range favs {
		out = append(out, types.Favorite{
			MovieID:     f.MovieID,
			Title:       f.Title,
			Description: f.Description,
			ReleaseDate: f.ReleaseDate,
			Rating:      f.Rating,
			PosterImage: f.PosterImage,
			AddedAt:     f.AddedAt,
		})
	}
	return out
}

func toUserResponse(u *model.User) types.User {
	return types.User{
		ID:                 u.ID.Hex(),
		ExternalIdentityID: u.ExternalIdentityID,
		Email:              u.Email,
		FirstName:          u.FirstName,
		LastName:           u.LastName,
		ProfileImageURL:    u.ProfileImageURL,
		Favorites:          toFavoriteResponses(u.Favorites),
		CreatedAt:          u.CreatedAt,
		UpdatedAt:          u.UpdatedAt,
	}
}
