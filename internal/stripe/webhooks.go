package stripe

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	stripeapi "github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"
)

var (
	ErrInvalidSignature = errors.New("invalid-signature")
	ErrInvalidPayload   = errors.New("invalid-payload")
)

const (
	EventCheckoutSessionCompleted             = string(stripeapi.EventTypeCheckoutSessionCompleted)
	EventCheckoutSessionAsyncPaymentSucceeded = string(stripeapi.EventTypeCheckoutSessionAsyncPaymentSucceeded)
	EventCheckoutSessionExpired               = string(stripeapi.EventTypeCheckoutSessionExpired)
)

// WebhookEvent is a verified Stripe event reduced to the fields the
// storefront reconciles on. Session fields are empty for non-session events.
type WebhookEvent struct {
	ID              string
	Type            string
	SessionID       string
	PaymentIntentID string
	PaymentStatus   string
	CartID          string
}

// ReadWebhookEvent reads the request body, verifies its signature and
// decodes it. Errors wrap ErrInvalidSignature or ErrInvalidPayload.
func ReadWebhookEvent(r *http.Request, secret string) (*WebhookEvent, error) {
	signature := r.Header.Get("Stripe-Signature")
	if signature == "" {
		return nil, fmt.Errorf("%w: missing stripe signature header", ErrInvalidSignature)
	}

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read request body: %v", ErrInvalidPayload, err)
	}

	if err := VerifyPayload(payload, signature, secret); err != nil {
		return nil, err
	}
	return DecodeEvent(payload)
}

// VerifyPayload checks the signature header against payload.
func VerifyPayload(payload []byte, signature, secret string) error {
	if err := webhook.ValidatePayload(payload, signature, secret); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return nil
}

type sessionObject struct {
	ID            string            `json:"id"`
	Object        string            `json:"object"`
	PaymentStatus string            `json:"payment_status"`
	Metadata      map[string]string `json:"metadata"`
	PaymentIntent json.RawMessage   `json:"payment_intent"`
}

// DecodeEvent parses a verified payload.
func DecodeEvent(payload []byte) (*WebhookEvent, error) {
	var event stripeapi.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if event.ID == "" || event.Type == "" {
		return nil, fmt.Errorf("%w: missing event id or type", ErrInvalidPayload)
	}

	decoded := &WebhookEvent{ID: event.ID, Type: string(event.Type)}
	if event.Data == nil || len(event.Data.Raw) == 0 {
		return decoded, nil
	}

	var obj sessionObject
	if err := json.Unmarshal(event.Data.Raw, &obj); err != nil {
		return nil, fmt.Errorf("%w: invalid event object: %v", ErrInvalidPayload, err)
	}
	if !isSessionObject(obj.Object, decoded.Type) {
		return decoded, nil
	}
	if obj.ID == "" {
		return nil, fmt.Errorf("%w: missing session id", ErrInvalidPayload)
	}

	decoded.SessionID = obj.ID
	decoded.PaymentStatus = obj.PaymentStatus
	decoded.CartID = obj.Metadata[MetadataCartID]
	decoded.PaymentIntentID = paymentIntentID(obj.PaymentIntent)
	return decoded, nil
}

// isSessionObject reports whether the event object is a checkout session.
// Payloads without the object discriminator are identified by event type.
func isSessionObject(object, eventType string) bool {
	if object == "" {
		return strings.HasPrefix(eventType, "checkout.session.")
	}
	return object == "checkout.session"
}

// paymentIntentID accepts both the bare id and the expanded object form.
func paymentIntentID(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var id string
	if err := json.Unmarshal(raw, &id); err == nil {
		return id
	}
	var expanded struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &expanded); err == nil {
		return expanded.ID
	}
	return ""
}
