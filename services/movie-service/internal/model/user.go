package model

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// User is the application's record of an identity provider user. It is keyed
// by the provider's user ID and owns the user's favorite movies.
type User struct {
	ID                 bson.ObjectID `bson:"_id,omitempty"        json:"id"`
	ExternalIdentityID string        `bson:"external_identity_id" json:"externalIdentityId"`
	Email              string        `bson:"email"                json:"email"`
	FirstName          string        `bson:"first_name"           json:"firstName"`
	LastName           string        `bson:"last_name"            json:"lastName"`
	ProfileImageURL    string        `bson:"profile_image_url"    json:"profileImageUrl"`
	Favorites          []Favorite    `bson:"favorites"            json:"favorites"`
	CreatedAt          time.Time     `bson:"created_at"           json:"createdAt"`
	UpdatedAt          time.Time     `bson:"updated_at"           json:"updatedAt"`
}

// HasFavorite reports whether movieID is among the user's favorites.
func (u *User) HasFavorite(movieID string) bool {
	for _, f := range u.Favorites {
		if f.MovieID == movieID {
			return true
		}
	}
	return false
}

// FavoriteMovieIDs returns the movie IDs of the user's favorites in stored order.
func (u *User) FavoriteMovieIDs() []string {
	ids := make([]string, 0, len(u.Favorites))
	for _, f := range u.Favorites {
		ids = append(ids, f.MovieID)
	}
	return ids
}
