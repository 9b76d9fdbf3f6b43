package provider

import (
	"maps"
	"strconv"
)

// Keys the application owns inside the provider's public metadata blob.
const (
	MetadataInternalUserID   = "internalUserId"
	MetadataFavoriteMovieIDs = "favoriteMovieIds"
)

// PublicMetadata is the provider's per-user key/value blob. Only the keys above
// belong to this application; everything else must be preserved on update.
type PublicMetadata map[string]any

// InternalUserID returns the persistent user record ID, or "" if unresolved.
func (m PublicMetadata) InternalUserID() string {
	id, _ := m[MetadataInternalUserID].(string)
	return id
}

// FavoriteMovieIDs returns the mirrored favorite movie IDs as strings,
// regardless of whether they were stored as numbers or strings.
func (m PublicMetadata) FavoriteMovieIDs() []string {
	raw, ok := m[MetadataFavoriteMovieIDs].([]any)
	if !ok {
		if ids, ok := m[MetadataFavoriteMovieIDs].([]string); ok {
			return append([]string(nil), ids...)
		}
		return nil
	}

	ids := make([]string, 0, len(raw))
	for _, v := range raw {
		switch id := v.(type) {
		case string:
			ids = append(ids, id)
		case float64:
			ids = append(ids, strconv.FormatFloat(id, 'f', -1, 64))
		case int:
			ids = append(ids, strconv.Itoa(id))
		case int64:
			ids = append(ids, strconv.FormatInt(id, 10))
		}
	}
	return ids
}

// HasFavorite reports whether movieID is in the mirrored favorites.
func (m PublicMetadata) HasFavorite(movieID string) bool {
	for _, id := range m.FavoriteMovieIDs() {
		if id == movieID {
			return true
		}
	}
	return false
}

// Merge returns a copy of m with the entries of other written over it.
func (m PublicMetadata) Merge(other PublicMetadata) PublicMetadata {
	out := make(PublicMetadata, len(m)+len(other))
	maps.Copy(out, m)
	maps.Copy(out, other)
	return out
}
