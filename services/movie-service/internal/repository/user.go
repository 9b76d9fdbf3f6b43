package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/vasapolrittideah/movie-discovery-api/services/movie-service/internal/model"
)

// ErrInvalidID is returned when an internal user ID is not a valid ObjectID.
var ErrInvalidID = errors.New("invalid user id")

// UserRepository defines the interface for user and favorite persistence.
type UserRepository interface {
	GetUser(ctx context.Context, id string) (*model.User, error)
	GetUserByExternalID(ctx context.Context, externalID string) (*model.User, error)
	UpsertUserByExternalID(ctx context.Context, externalID string, params UpsertUserParams) (*model.User, bool, error)
	DeleteUserByExternalID(ctx context.Context, externalID string) (*model.User, error)
	AddFavorite(ctx context.Context, id string, favorite model.Favorite) (*model.User, error)
	RemoveFavorite(ctx context.Context, id string, movieID string) (*model.User, error)
}

// UpsertUserParams carries the profile fields copied from the identity provider.
// With Overwrite unset, the fields are written only when the record is created
// and an existing record is returned untouched.
type UpsertUserParams struct {
	Email           string
	FirstName       string
	LastName        string
	ProfileImageURL string
	Overwrite       bool
}

const userCollection = "users"

type userMongoRepository struct {
	db *mongo.Database
}

func NewUserMongoRepository(ctx context.Context, logger *zerolog.Logger, db *mongo.Database) UserRepository {
	collection := db.Collection(userCollection)

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "external_identity_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "favorites.movie_id", Value: 1}},
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create user indexes")
	}

	return &userMongoRepository{db: db}
}

func (r *userMongoRepository) GetUser(ctx context.Context, id string) (*model.User, error) {
	objectID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	return r.findOne(ctx, bson.M{"_id": objectID})
}

func (r *userMongoRepository) GetUserByExternalID(ctx context.Context, externalID string) (*model.User, error) {
	return r.findOne(ctx, bson.M{"external_identity_id": externalID})
}

// UpsertUserByExternalID creates or updates the user keyed by externalID in a
// single atomic operation. The returned bool reports whether a new record was created.
func (r *userMongoRepository) UpsertUserByExternalID(
	ctx context.Context,
	externalID string,
	params UpsertUserParams,
) (*model.User, bool, error) {
	result, err := r.db.Collection(userCollection).UpdateOne(
		ctx,
		bson.M{"external_identity_id": externalID},
		buildUpsertUpdate(externalID, params, time.Now()),
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		return nil, false, err
	}

	user, err := r.GetUserByExternalID(ctx, externalID)
	if err != nil {
		return nil, false, err
	}

	return user, result.UpsertedCount > 0, nil
}

func (r *userMongoRepository) DeleteUserByExternalID(ctx context.Context, externalID string) (*model.User, error) {
	result := r.db.Collection(userCollection).FindOneAndDelete(ctx, bson.M{"external_identity_id": externalID})
	if result.Err() != nil {
		return nil, result.Err()
	}

	var user model.User
	if err := result.Decode(&user); err != nil {
		return nil, err
	}

	return &user, nil
}

// AddFavorite appends favorite unless an entry with the same movie ID already
// exists. The guard is part of the update filter, so concurrent adds of the
// same movie cannot both succeed.
func (r *userMongoRepository) AddFavorite(
	ctx context.Context,
	id string,
	favorite model.Favorite,
) (*model.User, error) {
	objectID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	if favorite.AddedAt.IsZero() {
		favorite.AddedAt = time.Now()
	}

	result := r.db.Collection(userCollection).FindOneAndUpdate(
		ctx,
		bson.M{
			"_id":                objectID,
			"favorites.movie_id": bson.M{"$ne": favorite.MovieID},
		},
		bson.M{
			"$push": bson.M{"favorites": favorite},
			"$set":  bson.M{"updated_at": time.Now()},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)
	if err := result.Err(); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			// Either the user is gone or the movie is already there.
			return r.findOne(ctx, bson.M{"_id": objectID})
		}
		return nil, err
	}

	var user model.User
	if err := result.Decode(&user); err != nil {
		return nil, err
	}

	return &user, nil
}

func (r *userMongoRepository) RemoveFavorite(ctx context.Context, id string, movieID string) (*model.User, error) {
	objectID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	result := r.db.Collection(userCollection).FindOneAndUpdate(
		ctx,
		bson.M{"_id": objectID},
		bson.M{
			"$pull": bson.M{"favorites": bson.M{"movie_id": movieID}},
			"$set":  bson.M{"updated_at": time.Now()},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)
	if result.Err() != nil {
		return nil, result.Err()
	}

	var user model.User
	if err := result.Decode(&user); err != nil {
		return nil, err
	}

	return &user, nil
}

func (r *userMongoRepository) findOne(ctx context.Context, filter bson.M) (*model.User, error) {
	result := r.db.Collection(userCollection).FindOne(ctx, filter)
	if result.Err() != nil {
		return nil, result.Err()
	}

	var user model.User
	if err := result.Decode(&user); err != nil {
		return nil, err
	}

	return &user, nil
}

// buildUpsertUpdate builds the update document for UpsertUserByExternalID.
func buildUpsertUpdate(externalID string, params UpsertUserParams, now time.Time) bson.M {
	profile := bson.M{
		"email":             params.Email,
		"first_name":        params.FirstName,
		"last_name":         params.LastName,
		"profile_image_url": params.ProfileImageURL,
	}

	onInsert := bson.M{
		"external_identity_id": externalID,
		"favorites":            bson.A{},
		"created_at":           now,
	}

	if params.Overwrite {
		profile["updated_at"] = now
		return bson.M{
			"$set":         profile,
			"$setOnInsert": onInsert,
		}
	}

	for k, v := range profile {
		onInsert[k] = v
	}
	onInsert["updated_at"] = now

	return bson.M{"$setOnInsert": onInsert}
}

func parseID(id string) (bson.ObjectID, error) {
	objectID, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return bson.NilObjectID, fmt.Errorf("%w: %v", ErrInvalidID, err)
	}
	return objectID, nil
}
