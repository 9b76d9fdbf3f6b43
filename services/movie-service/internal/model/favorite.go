package model

import "time"

// Favorite is a movie a user has marked as a favorite. Movie fields are
// denormalized from the catalog at the time the favorite was added.
type Favorite struct {
	MovieID     string     `bson:"movie_id"     json:"movieId"`
	Title       string     `bson:"title"        json:"title"`
	Description string     `bson:"description"  json:"description"`
	ReleaseDate *time.Time `bson:"release_date" json:"releaseDate"`
	Rating      float64    `bson:"rating"       json:"rating"`
	PosterImage string     `bson:"poster_image" json:"posterImage"`
	AddedAt     time.Time  `bson:"added_at"     json:"addedAt"`
}
