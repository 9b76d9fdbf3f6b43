package handler

import (
	"io"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/vasapolrittideah/movie-discovery-api/services/movie-service/internal/payload"
	"github.com/vasapolrittideah/movie-discovery-api/services/movie-service/internal/usecase"
	"github.com/vasapolrittideah/movie-discovery-api/shared/metrics"
	"github.com/vasapolrittideah/movie-discovery-api/shared/provider"
	"github.com/vasapolrittideah/movie-discovery-api/shared/validator"
	"github.com/vasapolrittideah/movie-discovery-api/shared/webhook"
)

// WebhookHandler receives identity provider lifecycle events and mirrors
// them into the user store.
type WebhookHandler struct {
	provisioningUsecase usecase.ProvisioningUsecase
	verifier            *webhook.Verifier
	validator           *validator.Validator
	logger              *zerolog.Logger
}

func NewWebhookHandler(
	provisioningUsecase usecase.ProvisioningUsecase,
	verifier *webhook.Verifier,
	validator *validator.Validator,
	logger *zerolog.Logger,
) *WebhookHandler {
	return &WebhookHandler{
		provisioningUsecase: provisioningUsecase,
		verifier:            verifier,
		validator:           validator,
		logger:              logger,
	}
}

// HandleIdentityEvent handles POST /api/webhooks/identity.
func (h *WebhookHandler) HandleIdentityEvent(w http.ResponseWriter, r *http.Request) {
	log := requestLogger(r, h.logger)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		metrics.WebhookEventsTotal.WithLabelValues("unknown", "unreadable").Inc()
		writeText(w, http.StatusBadRequest, "Error reading webhook")
		return
	}

	if err := h.verifier.Verify(body, r.Header); err != nil {
		log.Warn().Err(err).Msg("webhook signature verification failed")
		metrics.WebhookEventsTotal.WithLabelValues("unknown", "unverified").Inc()
		writeText(w, http.StatusBadRequest, "Error verifying webhook")
		return
	}

	var event payload.WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		metrics.WebhookEventsTotal.WithLabelValues("unknown", "malformed").Inc()
		writeText(w, http.StatusBadRequest, "Error parsing webhook")
		return
	}
	if err := h.validator.Struct(event); err != nil {
		metrics.WebhookEventsTotal.WithLabelValues("unknown", "malformed").Inc()
		writeText(w, http.StatusBadRequest, "Error parsing webhook")
		return
	}

	switch event.Type {
	case payload.EventUserCreated, payload.EventUserUpdated:
		var identity provider.IdentityUser
		if err := json.Unmarshal(event.Data, &identity); err != nil || identity.ID == "" {
			metrics.WebhookEventsTotal.WithLabelValues(event.Type, "malformed").Inc()
			writeText(w, http.StatusBadRequest, "Error parsing webhook")
			return
		}

		user, created, err := h.provisioningUsecase.SyncUser(r.Context(), &identity)
		if err != nil {
			log.Error().Err(err).Str("external_id", identity.ID).Str("event", event.Type).Msg("failed to sync user")
			metrics.WebhookEventsTotal.WithLabelValues(event.Type, "failed").Inc()
			writeText(w, http.StatusBadRequest, "Error processing user")
			return
		}
		log.Info().
			Str("external_id", identity.ID).
			Str("user_id", user.ID.Hex()).
			Bool("created", created).
			Msg("user synchronized from webhook")

	case payload.EventUserDeleted:
		var deleted payload.DeletedObject
		if err := json.Unmarshal(event.Data, &deleted); err != nil || deleted.ID == "" {
			metrics.WebhookEventsTotal.WithLabelValues(event.Type, "malformed").Inc()
			writeText(w, http.StatusBadRequest, "Error parsing webhook")
			return
		}

		if err := h.provisioningUsecase.DeleteUser(r.Context(), deleted.ID); err != nil {
			log.Error().Err(err).Str("external_id", deleted.ID).Msg("failed to delete user")
			metrics.WebhookEventsTotal.WithLabelValues(event.Type, "failed").Inc()
			writeText(w, http.StatusBadRequest, "Error deleting user")
			return
		}
		log.Info().Str("external_id", deleted.ID).Msg("user deleted from webhook")

	default:
		log.Debug().Str("event", event.Type).Msg("ignoring webhook event")
		metrics.WebhookEventsTotal.WithLabelValues(event.Type, "ignored").Inc()
		writeText(w, http.StatusOK, "Webhook received")
		return
	}

	metrics.WebhookEventsTotal.WithLabelValues(event.Type, "processed").Inc()
	writeText(w, http.StatusOK, "Webhook received")
}
