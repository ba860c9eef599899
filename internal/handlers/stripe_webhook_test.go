package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v84/webhook"

	"github.com/gitshopapp/storefront/internal/services"
	"github.com/gitshopapp/storefront/internal/stripe"
)

func completedPayload(eventID string) []byte {
	return []byte(fmt.Sprintf(`{"id":%q,"object":"event","type":"checkout.session.completed","data":{"object":{"id":"cs_test_1","object":"checkout.session","payment_status":"paid","payment_intent":"pi_123","metadata":{"cart_id":"0b6c1c8e-4a55-4a3b-9a59-6c2b4f0f9d11"}}}}`, eventID))
}

func signedWebhookRequest(t *testing.T, payload []byte, secret string) *http.Request {
	t.Helper()

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: time.Now(),
		Scheme:    "v1",
	})
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", signed.Header)
	return req
}

func TestStripeWebhook_InvalidSignature(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	rec := httptest.NewRecorder()
	env.handlers.StripeWebhook(rec, signedWebhookRequest(t, completedPayload("evt_1"), "whsec_wrong"))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Body.String(); got != "{\"error\":\"invalid-signature\"}\n" {
		t.Fatalf("body = %q", got)
	}
	if env.reconciler.callCount() != 0 {
		t.Fatal("reconciler must not run for unsigned deliveries")
	}
}

func TestStripeWebhook_MissingSignatureHeader(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader(completedPayload("evt_1")))
	rec := httptest.NewRecorder()
	env.handlers.StripeWebhook(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestStripeWebhook_MalformedPayload(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	rec := httptest.NewRecorder()
	env.handlers.StripeWebhook(rec, signedWebhookRequest(t, []byte(`{"object":"event"}`), testWebhookSecret))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Body.String(); got != "{\"error\":\"invalid-payload\"}\n" {
		t.Fatalf("body = %q", got)
	}
}

func TestStripeWebhook_Processed(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.reconciler.outcome = services.WebhookOutcome{State: services.WebhookProcessed, OrderIdentifier: "SF-20260301-ABCDEF12"}

	rec := httptest.NewRecorder()
	env.handlers.StripeWebhook(rec, signedWebhookRequest(t, completedPayload("evt_1"), testWebhookSecret))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if got := rec.Body.String(); got != "{\"received\":true,\"order_identifier\":\"SF-20260301-ABCDEF12\"}\n" {
		t.Fatalf("body = %q", got)
	}

	event := env.reconciler.events[0]
	if event.ID != "evt_1" || event.SessionID != "cs_test_1" || event.PaymentIntentID != "pi_123" {
		t.Fatalf("decoded event = %+v", event)
	}
}

// A redelivery of a payment that already produced an order returns the
// existing identifier.
func TestStripeWebhook_DuplicateDelivery(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.reconciler.outcome = services.WebhookOutcome{State: services.WebhookDuplicate, OrderIdentifier: "SF-EXISTING"}

	rec := httptest.NewRecorder()
	env.handlers.StripeWebhook(rec, signedWebhookRequest(t, completedPayload("evt_retry"), testWebhookSecret))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Body.String(); got != "{\"received\":true,\"order_identifier\":\"SF-EXISTING\"}\n" {
		t.Fatalf("body = %q", got)
	}
}

// Events carrying a bare session object still reach the reconciler with
// the session fields decoded.
func TestStripeWebhook_MinimalSessionObject(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.reconciler.outcome = services.WebhookOutcome{State: services.WebhookDuplicate, OrderIdentifier: "SF-EXISTING"}

	payload := []byte(`{"id":"evt_min","type":"checkout.session.completed","data":{"object":{"id":"cs_min","payment_intent":"pi_min","payment_status":"paid","metadata":{"cart_id":"0b6c1c8e-4a55-4a3b-9a59-6c2b4f0f9d11"}}}}`)
	rec := httptest.NewRecorder()
	env.handlers.StripeWebhook(rec, signedWebhookRequest(t, payload, testWebhookSecret))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if got := rec.Body.String(); got != "{\"received\":true,\"order_identifier\":\"SF-EXISTING\"}\n" {
		t.Fatalf("body = %q", got)
	}

	event := env.reconciler.events[0]
	if event.SessionID != "cs_min" || event.PaymentIntentID != "pi_min" || event.CartID != "0b6c1c8e-4a55-4a3b-9a59-6c2b4f0f9d11" {
		t.Fatalf("decoded event = %+v", event)
	}
}

func TestStripeWebhook_EventCacheShortCircuits(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.reconciler.outcome = services.WebhookOutcome{State: services.WebhookProcessed, OrderIdentifier: "SF-1"}

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		env.handlers.StripeWebhook(rec, signedWebhookRequest(t, completedPayload("evt_same"), testWebhookSecret))
		if rec.Code != http.StatusOK {
			t.Fatalf("delivery %d: status = %d", i, rec.Code)
		}
		if got := rec.Body.String(); got != "{\"received\":true,\"order_identifier\":\"SF-1\"}\n" {
			t.Fatalf("delivery %d: body = %q", i, got)
		}
	}
	if calls := env.reconciler.callCount(); calls != 1 {
		t.Fatalf("reconciler calls = %d, want 1", calls)
	}
}

func TestStripeWebhook_IgnoredEvent(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.reconciler.outcome = services.WebhookOutcome{State: services.WebhookIgnored}

	payload := []byte(`{"id":"evt_exp","object":"event","type":"checkout.session.expired","data":{"object":{"id":"cs_1","object":"checkout.session","metadata":{}}}}`)
	rec := httptest.NewRecorder()
	env.handlers.StripeWebhook(rec, signedWebhookRequest(t, payload, testWebhookSecret))

	if rec.Code != http.StatusOK || rec.Body.String() != "{\"received\":true}\n" {
		t.Fatalf("status = %d, body = %q", rec.Code, rec.Body.String())
	}
}

func TestStripeWebhook_ProcessingFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{
			name:       "retryable failure",
			err:        errors.New("database unavailable"),
			wantStatus: http.StatusInternalServerError,
			wantBody:   `{"error":"processing-failed"}`,
		},
		{
			name:       "processor failure is retried",
			err:        &stripe.ProcessorError{Op: "retrieve_session", Err: errors.New("timeout")},
			wantStatus: http.StatusInternalServerError,
			wantBody:   `{"error":"processing-failed"}`,
		},
		{
			name:       "invalid payload",
			err:        fmt.Errorf("%w: missing cart", stripe.ErrInvalidPayload),
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"error":"invalid-payload"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			env := newTestEnv(t)
			env.reconciler.err = tt.err

			rec := httptest.NewRecorder()
			env.handlers.StripeWebhook(rec, signedWebhookRequest(t, completedPayload("evt_fail"), testWebhookSecret))

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := rec.Body.String(); got != tt.wantBody+"\n" {
				t.Fatalf("body = %q, want %q", got, tt.wantBody)
			}

			// Failed deliveries are not cached, so a retry reaches the reconciler.
			env.reconciler.err = nil
			env.reconciler.outcome = services.WebhookOutcome{State: services.WebhookProcessed, OrderIdentifier: "SF-2"}
			retry := httptest.NewRecorder()
			env.handlers.StripeWebhook(retry, signedWebhookRequest(t, completedPayload("evt_fail"), testWebhookSecret))
			if retry.Code != http.StatusOK || env.reconciler.callCount() != 2 {
				t.Fatalf("retry status = %d, calls = %d", retry.Code, env.reconciler.callCount())
			}
		})
	}
}
