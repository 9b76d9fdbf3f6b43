// Package types holds the JSON contract of the favorites API, shared by the
// server handlers and the Go client.
package types

import (
	"bytes"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

var errInvalidMovieID = errors.New("movieId must be a string or a number")

// MovieID is a catalog movie ID in string form. It decodes from either a JSON
// string or a JSON number so that 550 and "550" name the same movie.
type MovieID string

func (id *MovieID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || string(b) == "null":
		*id = ""
		return nil
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = MovieID(strings.TrimSpace(s))
		return nil
	default:
		var f float64
		if err := json.Unmarshal(b, &f); err != nil {
			return errInvalidMovieID
		}
		*id = MovieID(strconv.FormatFloat(f, 'f', -1, 64))
		return nil
	}
}

func (id MovieID) String() string { return string(id) }

// ToggleFavoriteRequest is the body of PUT /api/user/fav. Only MovieID is
// needed to remove a favorite; Title is additionally required to add one.
type ToggleFavoriteRequest struct {
	MovieID     MovieID  `json:"movieId"               validate:"required"`
	Title       string   `json:"title,omitempty"       validate:"max=500"`
	Overview    string   `json:"overview,omitempty"`
	ReleaseDate string   `json:"releaseDate,omitempty"`
	VoteCount   *float64 `json:"voteCount,omitempty"`
	Image       string   `json:"image,omitempty"`
}

// Action values reported by a toggle.
const (
	ActionAdded   = "added"
	ActionRemoved = "removed"
)

// ToggleFavoriteResponse is the success body of PUT /api/user/fav.
type ToggleFavoriteResponse struct {
	Success bool   `json:"success"`
	User    User   `json:"user"`
	Action  string `json:"action"`
}

// ListFavoritesResponse is the success body of GET /api/user/fav.
type ListFavoritesResponse struct {
	Favs []Favorite `json:"favs"`
}

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// Favorite is one favorite movie of a user.
type Favorite struct {
	MovieID     string     `json:"movieId"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	ReleaseDate *time.Time `json:"releaseDate"`
	Rating      float64    `json:"rating"`
	PosterImage string     `json:"posterImage"`
	AddedAt     time.Time  `json:"addedAt"`
}

// User is a user record as exposed by the API.
type User struct {
	ID                 string     `json:"id"`
	ExternalIdentityID string     `json:"externalIdentityId"`
	Email              string     `json:"email"`
	FirstName          string     `json:"firstName"`
	LastName           string     `json:"lastName"`
	ProfileImageURL    string     `json:"profileImageUrl"`
	Favorites          []Favorite `json:"favorites"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

// ParseReleaseDate accepts a calendar date or an RFC 3339 timestamp. Anything
// else, including an empty string, yields nil.
func ParseReleaseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range []string{time.DateOnly, time.RFC3339Nano} {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}
