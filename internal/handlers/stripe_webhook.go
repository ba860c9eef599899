package handlers

import (
	"errors"
	"net/http"

	"github.com/gitshopapp/storefront/internal/stripe"
)

type webhookResponse struct {
	Received        bool   `json:"received"`
	OrderIdentifier string `json:"order_identifier,omitempty"`
}

func (h *Handlers) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.loggerFromContext(ctx)
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes)

	event, err := stripe.ReadWebhookEvent(r, h.config.StripeWebhookSecret)
	if err != nil {
		logger.Warn("rejected Stripe webhook", "error", err)
		h.writeError(w, r, err)
		return
	}
	logger = logger.With("event_id", event.ID, "event_type", event.Type)

	orderIdentifier, seen, err := h.webhookEvents.Seen(ctx, event.ID)
	if err != nil {
		logger.Warn("webhook event cache unavailable", "error", err)
	}
	if seen {
		logger.Info("webhook already processed")
		writeJSON(w, logger, http.StatusOK, webhookResponse{Received: true, OrderIdentifier: orderIdentifier})
		return
	}

	outcome, err := h.stripeRouter.Handle(ctx, event)
	if err != nil {
		if errors.Is(err, stripe.ErrInvalidPayload) {
			logger.Warn("rejected Stripe webhook payload", "error", err)
			h.writeError(w, r, err)
			return
		}
		// Any other failure is retried by Stripe.
		logger.Error("failed to process Stripe webhook", "error", err)
		writeJSON(w, logger, http.StatusInternalServerError, errorResponse{Error: "processing-failed"})
		return
	}

	if err := h.webhookEvents.Record(ctx, event.ID, outcome.OrderIdentifier); err != nil {
		logger.Error("failed to mark webhook as processed in cache", "error", err)
	}

	logger.Info("stripe webhook handled", "state", outcome.State, "order_identifier", outcome.OrderIdentifier)
	writeJSON(w, logger, http.StatusOK, webhookResponse{Received: true, OrderIdentifier: outcome.OrderIdentifier})
}
