package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/vasapolrittideah/movie-discovery-api/services/movie-service/internal/model"
	"github.com/vasapolrittideah/movie-discovery-api/services/movie-service/internal/repository"
	"github.com/vasapolrittideah/movie-discovery-api/shared/metrics"
	"github.com/vasapolrittideah/movie-discovery-api/shared/provider"
)

// FavoriteAction is the membership change a toggle produced.
type FavoriteAction string

const (
	ActionAdded   FavoriteAction = "added"
	ActionRemoved FavoriteAction = "removed"
)

// FavoriteUsecase defines the favorites operations of a signed-in user.
type FavoriteUsecase interface {
	ListFavorites(ctx context.Context, externalID string) ([]model.Favorite, error)
	ToggleFavorite(ctx context.Context, externalID string, params ToggleFavoriteParams) (*ToggleFavoriteResult, error)
}

// ToggleFavoriteParams identifies the movie to toggle. The remaining fields
// are only used when the toggle adds the movie.
type ToggleFavoriteParams struct {
	MovieID     string
	Title       string
	Description string
	ReleaseDate *time.Time
	Rating      float64
	PosterImage string
}

// ToggleFavoriteResult reports the updated record and what happened to it.
type ToggleFavoriteResult struct {
	User   *model.User
	Action FavoriteAction
}

type favoriteUsecase struct {
	userRepo         repository.UserRepository
	identityProvider provider.IdentityProvider
	provisioning     ProvisioningUsecase
	logger           *zerolog.Logger
}

func NewFavoriteUsecase(
	userRepo repository.UserRepository,
	identityProvider provider.IdentityProvider,
	provisioning ProvisioningUsecase,
	logger *zerolog.Logger,
) FavoriteUsecase {
	return &favoriteUsecase{
		userRepo:         userRepo,
		identityProvider: identityProvider,
		provisioning:     provisioning,
		logger:           logger,
	}
}

func (u *favoriteUsecase) ListFavorites(ctx context.Context, externalID string) ([]model.Favorite, error) {
	_, user, err := u.resolveUser(ctx, externalID)
	if err != nil {
		return nil, err
	}

	if user.Favorites == nil {
		return []model.Favorite{}, nil
	}

	return user.Favorites, nil
}

// ToggleFavorite adds the movie when it is not a favorite and removes it
// otherwise. The store decides; callers learn the outcome from the result.
func (u *favoriteUsecase) ToggleFavorite(
	ctx context.Context,
	externalID string,
	params ToggleFavoriteParams,
) (*ToggleFavoriteResult, error) {
	identity, user, err := u.resolveUser(ctx, externalID)
	if err != nil {
		return nil, err
	}

	internalID := user.ID.Hex()

	var (
		updated *model.User
		action  FavoriteAction
	)

	if user.HasFavorite(params.MovieID) {
		action = ActionRemoved
		updated, err = u.userRepo.RemoveFavorite(ctx, internalID, params.MovieID)
	} else {
		if params.Title == "" {
			return nil, ErrTitleRequired
		}

		action = ActionAdded
		updated, err = u.userRepo.AddFavorite(ctx, internalID, model.Favorite{
			MovieID:     params.MovieID,
			Title:       params.Title,
			Description: params.Description,
			ReleaseDate: params.ReleaseDate,
			Rating:      params.Rating,
			PosterImage: params.PosterImage,
			AddedAt:     time.Now(),
		})
	}
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to update favorites: %w", err)
	}
	if updated == nil {
		return nil, ErrUserUpdateFailed
	}

	metrics.FavoriteTogglesTotal.WithLabelValues(string(action)).Inc()

	u.syncMetadata(ctx, identity, internalID, updated)

	return &ToggleFavoriteResult{User: updated, Action: action}, nil
}

// resolveUser looks up the signed-in identity, provisions its record if needed
// and loads it. A record that cannot be loaded after provisioning is reported
// as ErrUserNotFound rather than recreated.
func (u *favoriteUsecase) resolveUser(
	ctx context.Context,
	externalID string,
) (*provider.IdentityUser, *model.User, error) {
	identity, err := u.identityProvider.GetUser(ctx, externalID)
	if err != nil {
		if errors.Is(err, provider.ErrIdentityUserNotFound) {
			return nil, nil, ErrIdentityNotFound
		}
		return nil, nil, fmt.Errorf("failed to get identity: %w", err)
	}

	internalID, err := u.provisioning.EnsureUser(ctx, identity)
	if err != nil {
		return nil, nil, err
	}

	user, err := u.userRepo.GetUser(ctx, internalID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil, ErrUserNotFound
		}
		return nil, nil, fmt.Errorf("failed to get user: %w", err)
	}

	return identity, user, nil
}

// syncMetadata mirrors the favorite IDs into the identity metadata. The store
// is authoritative, so failures are only logged.
func (u *favoriteUsecase) syncMetadata(
	ctx context.Context,
	identity *provider.IdentityUser,
	internalID string,
	user *model.User,
) {
	metadata := identity.PublicMetadata.Merge(provider.PublicMetadata{
		provider.MetadataInternalUserID:   internalID,
		provider.MetadataFavoriteMovieIDs: user.FavoriteMovieIDs(),
	})

	if _, err := u.identityProvider.UpdateMetadata(ctx, identity.ID, metadata); err != nil {
		metrics.MetadataSyncFailures.WithLabelValues("favorite_movie_ids").Inc()
		u.logger.Error().Err(err).Str("external_id", identity.ID).Msg("failed to sync favorites to identity metadata")
	}
}
