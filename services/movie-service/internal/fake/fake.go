// Package fake provides in-memory stand-ins for the user store and the identity
// provider, shared by usecase and handler tests.
package fake

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/vasapolrittideah/movie-discovery-api/services/movie-service/internal/model"
	"github.com/vasapolrittideah/movie-discovery-api/services/movie-service/internal/repository"
	"github.com/vasapolrittideah/movie-discovery-api/shared/provider"
)

// UserRepository is an in-memory repository.UserRepository with the same
// set semantics for favorites as the Mongo implementation.
type UserRepository struct {
	mu         sync.Mutex
	users      map[string]*model.User
	byExternal map[string]string

	// Mutations counts successful writes.
	Mutations int
	// GetUserErr, when set, is returned by GetUser.
	GetUserErr error
	// UpsertErrs are returned, in order, by the next UpsertUserByExternalID calls.
	UpsertErrs []error
	// BeforeFavoriteWrite, when set, runs at the start of AddFavorite and
	// RemoveFavorite, outside the lock.
	BeforeFavoriteWrite func()
}

var _ repository.UserRepository = (*UserRepository)(nil)

func NewUserRepository() *UserRepository {
	return &UserRepository{
		users:      make(map[string]*model.User),
		byExternal: make(map[string]string),
	}
}

// Count returns the number of stored users.
func (r *UserRepository) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users)
}

// Delete removes a record behind the caller's back, simulating corruption.
func (r *UserRepository) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		delete(r.byExternal, u.ExternalIdentityID)
		delete(r.users, id)
	}
}

func (r *UserRepository) GetUser(_ context.Context, id string) (*model.User, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.GetUserErr != nil {
		return nil, r.GetUserErr
	}

	u, ok := r.users[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	return clone(u), nil
}

func (r *UserRepository) GetUserByExternalID(_ context.Context, externalID string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byExternal[externalID]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	return clone(r.users[id]), nil
}

func (r *UserRepository) UpsertUserByExternalID(
	_ context.Context,
	externalID string,
	params repository.UpsertUserParams,
) (*model.User, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.UpsertErrs) > 0 {
		err := r.UpsertErrs[0]
		r.UpsertErrs = r.UpsertErrs[1:]
		if err != nil {
			return nil, false, err
		}
	}

	now := time.Now()
	if id, ok := r.byExternal[externalID]; ok {
		u := r.users[id]
		if params.Overwrite {
			u.Email = params.Email
			u.FirstName = params.FirstName
			u.LastName = params.LastName
			u.ProfileImageURL = params.ProfileImageURL
			u.UpdatedAt = now
			r.Mutations++
		}
		return clone(u), false, nil
	}

	u := &model.User{
		ID:                 bson.NewObjectID(),
		ExternalIdentityID: externalID,
		Email:              params.Email,
		FirstName:          params.FirstName,
		LastName:           params.LastName,
		ProfileImageURL:    params.ProfileImageURL,
		Favorites:          []model.Favorite{},
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	r.users[u.ID.Hex()] = u
	r.byExternal[externalID] = u.ID.Hex()
	r.Mutations++

	return clone(u), true, nil
}

func (r *UserRepository) DeleteUserByExternalID(_ context.Context, externalID string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byExternal[externalID]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}

	u := r.users[id]
	delete(r.users, id)
	delete(r.byExternal, externalID)
	r.Mutations++

	return u, nil
}

func (r *UserRepository) AddFavorite(_ context.Context, id string, favorite model.Favorite) (*model.User, error) {
	if r.BeforeFavoriteWrite != nil {
		r.BeforeFavoriteWrite()
	}
	if err := checkID(id); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}

	if !u.HasFavorite(favorite.MovieID) {
		u.Favorites = append(u.Favorites, favorite)
		u.UpdatedAt = time.Now()
		r.Mutations++
	}

	return clone(u), nil
}

func (r *UserRepository) RemoveFavorite(_ context.Context, id string, movieID string) (*model.User, error) {
	if r.BeforeFavoriteWrite != nil {
		r.BeforeFavoriteWrite()
	}
	if err := checkID(id); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}

	kept := u.Favorites[:0:0]
	for _, f := range u.Favorites {
		if f.MovieID != movieID {
			kept = append(kept, f)
		}
	}
	u.Favorites = kept
	u.UpdatedAt = time.Now()
	r.Mutations++

	return clone(u), nil
}

func clone(u *model.User) *model.User {
	c := *u
	if u.Favorites != nil {
		c.Favorites = append([]model.Favorite{}, u.Favorites...)
	}
	return &c
}

// IdentityProvider is an in-memory provider.IdentityProvider. UpdateMetadata
// merges top-level keys like the real provider does.
type IdentityProvider struct {
	mu    sync.Mutex
	users map[string]*provider.IdentityUser

	GetErr      error
	UpdateErr   error
	UpdateCalls int
}

var _ provider.IdentityProvider = (*IdentityProvider)(nil)

func NewIdentityProvider(users ...*provider.IdentityUser) *IdentityProvider {
	p := &IdentityProvider{users: make(map[string]*provider.IdentityUser)}
	for _, u := range users {
		p.Put(u)
	}
	return p
}

// Put stores or replaces an identity.
func (p *IdentityProvider) Put(u *provider.IdentityUser) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c := *u
	c.PublicMetadata = maps.Clone(u.PublicMetadata)
	p.users[u.ID] = &c
}

// Metadata returns a copy of the stored metadata for id.
func (p *IdentityProvider) Metadata(id string) provider.PublicMetadata {
	p.mu.Lock()
	defer p.mu.Unlock()
	if u, ok := p.users[id]; ok {
		return maps.Clone(u.PublicMetadata)
	}
	return nil
}

func (p *IdentityProvider) GetUser(_ context.Context, userID string) (*provider.IdentityUser, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.GetErr != nil {
		return nil, p.GetErr
	}

	u, ok := p.users[userID]
	if !ok {
		return nil, provider.ErrIdentityUserNotFound
	}

	c := *u
	c.PublicMetadata = maps.Clone(u.PublicMetadata)
	return &c, nil
}

func (p *IdentityProvider) UpdateMetadata(
	_ context.Context,
	userID string,
	metadata provider.PublicMetadata,
) (*provider.IdentityUser, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.UpdateCalls++
	if p.UpdateErr != nil {
		return nil, p.UpdateErr
	}

	u, ok := p.users[userID]
	if !ok {
		return nil, provider.ErrIdentityUserNotFound
	}

	u.PublicMetadata = u.PublicMetadata.Merge(metadata)

	c := *u
	c.PublicMetadata = maps.Clone(u.PublicMetadata)
	return &c, nil
}

func checkID(id string) error {
	if _, err := bson.ObjectIDFromHex(id); err != nil {
		return fmt.Errorf("%w: %v", repository.ErrInvalidID, err)
	}
	return nil
}
