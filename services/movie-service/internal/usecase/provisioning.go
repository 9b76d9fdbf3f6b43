package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/vasapolrittideah/movie-discovery-api/services/movie-service/internal/model"
	"github.com/vasapolrittideah/movie-discovery-api/services/movie-service/internal/repository"
	"github.com/vasapolrittideah/movie-discovery-api/shared/metrics"
	"github.com/vasapolrittideah/movie-discovery-api/shared/provider"
)

// Placeholders stored when the identity provider omits a profile field.
const (
	DefaultEmail           = "noemail@example.com"
	DefaultFirstName       = "User"
	DefaultLastName        = "Lastname"
	DefaultProfileImageURL = "https://img.clerk.com/default-avatar.png"
)

// ProvisioningUsecase keeps user records in step with the identity provider.
// The lazy path (EnsureUser) and the webhook path (SyncUser, DeleteUser) share
// one upsert keyed by the provider's user ID, so either may run first and both
// are safe to repeat.
type ProvisioningUsecase interface {
	EnsureUser(ctx context.Context, identity *provider.IdentityUser) (string, error)
	SyncUser(ctx context.Context, identity *provider.IdentityUser) (*model.User, bool, error)
	DeleteUser(ctx context.Context, externalID string) error
}

type provisioningUsecase struct {
	userRepo         repository.UserRepository
	identityProvider provider.IdentityProvider
	logger           *zerolog.Logger
}

func NewProvisioningUsecase(
	userRepo repository.UserRepository,
	identityProvider provider.IdentityProvider,
	logger *zerolog.Logger,
) ProvisioningUsecase {
	return &provisioningUsecase{
		userRepo:         userRepo,
		identityProvider: identityProvider,
		logger:           logger,
	}
}

// EnsureUser resolves identity to an internal user ID, creating the record on
// first use and recording its ID in the identity metadata.
func (u *provisioningUsecase) EnsureUser(ctx context.Context, identity *provider.IdentityUser) (string, error) {
	if id := identity.PublicMetadata.InternalUserID(); id != "" {
		user, err := u.userRepo.GetUser(ctx, id)
		switch {
		case err == nil:
			return user.ID.Hex(), nil
		case errors.Is(err, mongo.ErrNoDocuments), errors.Is(err, repository.ErrInvalidID):
			u.logger.Warn().
				Str("external_id", identity.ID).
				Str("internal_user_id", id).
				Msg("metadata points at a missing user record, re-provisioning")
		default:
			return "", fmt.Errorf("failed to look up user: %w", err)
		}
	}

	user, created, err := u.provision(ctx, identity, false)
	if err != nil {
		return "", err
	}

	internalID := user.ID.Hex()
	if created {
		metrics.UsersProvisioned.WithLabelValues("lazy").Inc()
		u.logger.Info().Str("external_id", identity.ID).Str("user_id", internalID).Msg("created user record")
	}

	if identity.PublicMetadata.InternalUserID() != internalID {
		u.writeInternalID(ctx, identity, internalID)
	}

	return internalID, nil
}

// SyncUser applies a provider profile to the user record, creating it if needed.
func (u *provisioningUsecase) SyncUser(
	ctx context.Context,
	identity *provider.IdentityUser,
) (*model.User, bool, error) {
	user, created, err := u.provision(ctx, identity, true)
	if err != nil {
		return nil, false, err
	}

	if created {
		metrics.UsersProvisioned.WithLabelValues("webhook").Inc()
		u.writeInternalID(ctx, identity, user.ID.Hex())
	}

	return user, created, nil
}

// DeleteUser removes the record for externalID. A missing record is not an error.
func (u *provisioningUsecase) DeleteUser(ctx context.Context, externalID string) error {
	if _, err := u.userRepo.DeleteUserByExternalID(ctx, externalID); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			u.logger.Warn().Str("external_id", externalID).Msg("user not found for deletion")
			return nil
		}
		return fmt.Errorf("could not delete user: %w", err)
	}

	return nil
}

func (u *provisioningUsecase) provision(
	ctx context.Context,
	identity *provider.IdentityUser,
	overwrite bool,
) (*model.User, bool, error) {
	if identity.ID == "" {
		return nil, false, ErrIdentityNotFound
	}

	params := profileParams(identity)
	params.Overwrite = overwrite

	user, created, err := u.userRepo.UpsertUserByExternalID(ctx, identity.ID, params)
	if err != nil && mongo.IsDuplicateKeyError(err) {
		// A concurrent upsert inserted the record first; the retry matches it.
		user, created, err = u.userRepo.UpsertUserByExternalID(ctx, identity.ID, params)
	}
	if err != nil {
		return nil, false, fmt.Errorf("could not create/update user: %w", err)
	}

	return user, created, nil
}

// writeInternalID records internalID in the identity metadata, preserving
// other keys. The metadata is advisory, so a failure is logged and swallowed.
func (u *provisioningUsecase) writeInternalID(ctx context.Context, identity *provider.IdentityUser, internalID string) {
	metadata := identity.PublicMetadata.Merge(provider.PublicMetadata{
		provider.MetadataInternalUserID: internalID,
	})

	if _, err := u.identityProvider.UpdateMetadata(ctx, identity.ID, metadata); err != nil {
		metrics.MetadataSyncFailures.WithLabelValues("internal_user_id").Inc()
		u.logger.Error().Err(err).Str("external_id", identity.ID).Msg("failed to update identity metadata")
		return
	}

	identity.PublicMetadata = metadata
}

func profileParams(identity *provider.IdentityUser) repository.UpsertUserParams {
	return repository.UpsertUserParams{
		Email:           withDefault(identity.PrimaryEmail(), DefaultEmail),
		FirstName:       withDefault(identity.FirstName, DefaultFirstName),
		LastName:        withDefault(identity.LastName, DefaultLastName),
		ProfileImageURL: withDefault(identity.AvatarURL(), DefaultProfileImageURL),
	}
}

func withDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
