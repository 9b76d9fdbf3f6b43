// Package webhook verifies signed webhook deliveries from the identity provider.
// Deliveries are signed with the Svix scheme and checked by the Svix library.
package webhook

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	svix "github.com/svix/svix-webhooks/go"
)

const (
	HeaderID        = "svix-id"
	HeaderTimestamp = "svix-timestamp"
	HeaderSignature = "svix-signature"

	secretPrefix = "whsec_"
)

var (
	ErrEmptySecret      = errors.New("empty webhook signing secret")
	ErrInvalidSignature = errors.New("invalid webhook signature")
)

// Verifier checks webhook signatures and timestamps.
type Verifier struct {
	wh *svix.Webhook
}

// NewVerifier creates a Verifier from a signing secret, with or without the "whsec_" prefix.
func NewVerifier(secret string) (*Verifier, error) {
	if strings.TrimPrefix(secret, secretPrefix) == "" {
		return nil, ErrEmptySecret
	}

	wh, err := svix.NewWebhook(secret)
	if err != nil {
		return nil, fmt.Errorf("invalid webhook signing secret: %w", err)
	}

	return &Verifier{wh: wh}, nil
}

// Verify checks that payload was signed by the provider and is recent.
func (v *Verifier) Verify(payload []byte, headers http.Header) error {
	if err := v.wh.Verify(payload, headers); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return nil
}

// Sign produces the signature header value for a delivery. It is used by
// tests and local tooling that replay events.
func (v *Verifier) Sign(msgID string, ts time.Time, payload []byte) (string, error) {
	return v.wh.Sign(msgID, ts, payload)
}
