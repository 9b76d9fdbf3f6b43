package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUser_Favorites(t *testing.T) {
	u := &User{Favorites: []Favorite{{MovieID: "550"}, {MovieID: "603"}}}

	assert.True(t, u.HasFavorite("550"))
	assert.False(t, u.HasFavorite("13"))
	assert.Equal(t, []string{"550", "603"}, u.FavoriteMovieIDs())

	empty := &User{}
	assert.False(t, empty.HasFavorite("550"))
	assert.Equal(t, []string{}, empty.FavoriteMovieIDs())
}
