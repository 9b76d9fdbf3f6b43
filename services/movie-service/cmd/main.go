package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/vasapolrittideah/movie-discovery-api/services/movie-service/internal/catalog"
	"github.com/vasapolrittideah/movie-discovery-api/services/movie-service/internal/config"
	"github.com/vasapolrittideah/movie-discovery-api/services/movie-service/internal/handler"
	"github.com/vasapolrittideah/movie-discovery-api/services/movie-service/internal/repository"
	"github.com/vasapolrittideah/movie-discovery-api/services/movie-service/internal/server"
	"github.com/vasapolrittideah/movie-discovery-api/services/movie-service/internal/usecase"
	"github.com/vasapolrittideah/movie-discovery-api/shared/auth"
	applog "github.com/vasapolrittideah/movie-discovery-api/shared/logger"
	"github.com/vasapolrittideah/movie-discovery-api/shared/provider"
	"github.com/vasapolrittideah/movie-discovery-api/shared/utilities"
	"github.com/vasapolrittideah/movie-discovery-api/shared/validator"
	"github.com/vasapolrittideah/movie-discovery-api/shared/webhook"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatal().Err(err).Msg("failed to load .env file")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	logger := applog.New(cfg.Log, "movie-service")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("movie service exited with error")
	}
}

func run(ctx context.Context, cfg *config.MovieServiceConfig, logger *zerolog.Logger) error {
	client, err := mongo.Connect(options.Client().
		ApplyURI(cfg.Mongo.URI).
		SetConnectTimeout(cfg.Mongo.ConnectTimeout))
	if err != nil {
		return fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := client.Disconnect(disconnectCtx); err != nil {
			logger.Error().Err(err).Msg("failed to disconnect from MongoDB")
		}
	}()

	pingCtx, cancel := context.WithTimeout(ctx, cfg.Mongo.ConnectTimeout)
	err = client.Ping(pingCtx, readpref.Primary())
	cancel()
	if err != nil {
		return fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	logger.Info().Str("database", cfg.Mongo.Database).Msg("connected to MongoDB")

	db := client.Database(cfg.Mongo.Database)
	userRepo := repository.NewUserMongoRepository(ctx, logger, db)

	identityProvider := provider.NewBackendClient(
		cfg.Identity.APIURL,
		cfg.Identity.SecretKey,
		cfg.Identity.RequestTimeout,
		logger,
	)

	provisioningUsecase := usecase.NewProvisioningUsecase(userRepo, identityProvider, logger)
	favoriteUsecase := usecase.NewFavoriteUsecase(userRepo, identityProvider, provisioningUsecase, logger)

	catalogClient, err := catalog.NewClient(catalog.Options{
		BaseURL:   cfg.Catalog.BaseURL,
		APIKey:    cfg.Catalog.APIKey,
		Language:  cfg.Catalog.Language,
		CacheTTL:  cfg.Catalog.CacheTTL,
		CacheSize: cfg.Catalog.CacheSize,
		Timeout:   cfg.Catalog.RequestTimeout,
		RateLimit: cfg.Catalog.RateLimit,
		RateBurst: cfg.Catalog.RateBurst,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to create catalog client: %w", err)
	}

	verifier, err := webhook.NewVerifier(cfg.Webhook.SigningSecret)
	if err != nil {
		return fmt.Errorf("failed to create webhook verifier: %w", err)
	}

	v, err := validator.New()
	if err != nil {
		return fmt.Errorf("failed to create validator: %w", err)
	}

	jwtAuth := auth.NewJWTAuthenticator(cfg.Session.Audience, cfg.Session.Issuer, cfg.Session.Secret)

	srv := server.New(cfg, server.Handlers{
		Movie:    handler.NewMovieHandler(catalogClient, v, logger),
		Favorite: handler.NewFavoriteHandler(favoriteUsecase, v, logger),
		Webhook:  handler.NewWebhookHandler(provisioningUsecase, verifier, v, logger),
	}, jwtAuth, utilities.PingerFunc(func(ctx context.Context) error {
		return client.Ping(ctx, readpref.Primary())
	}), logger)

	return srv.Run(ctx)
}
