package payload

import "github.com/goccy/go-json"

// Identity lifecycle event types delivered by the webhook.
const (
	EventUserCreated = "user.created"
	EventUserUpdated = "user.updated"
	EventUserDeleted = "user.deleted"
)

// WebhookEvent is the envelope of an identity provider webhook delivery.
type WebhookEvent struct {
	Type   string          `json:"type"   validate:"required"`
	Object string          `json:"object"`
	Data   json.RawMessage `json:"data"   validate:"required"`
}

// DeletedObject is the data of a user.deleted event.
type DeletedObject struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}
