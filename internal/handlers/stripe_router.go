package handlers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/getsentry/sentry-go"
	"github.com/getsentry/sentry-go/attribute"

	"github.com/gitshopapp/storefront/internal/logging"
	"github.com/gitshopapp/storefront/internal/observability"
	"github.com/gitshopapp/storefront/internal/services"
	"github.com/gitshopapp/storefront/internal/stripe"
)

// StripeEventRouter hands verified Stripe events to the reconciler.
type StripeEventRouter struct {
	reconciler WebhookReconciler
	logger     *slog.Logger
}

func NewStripeEventRouter(reconciler WebhookReconciler, logger *slog.Logger) *StripeEventRouter {
	return &StripeEventRouter{
		reconciler: reconciler,
		logger:     logger,
	}
}

func (r *StripeEventRouter) Handle(ctx context.Context, event *stripe.WebhookEvent) (services.WebhookOutcome, error) {
	span := sentry.StartSpan(
		ctx,
		"handler.stripe_router.handle",
		sentry.WithOpName("handler.stripe_router"),
		sentry.WithDescription("StripeEventRouter.Handle"),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	defer span.Finish()
	ctx = span.Context()

	meter := observability.MeterFromContext(ctx)
	meter.SetAttributes(attribute.String("webhook.provider", "stripe"))
	meter.Count("webhook.router.received", 1)
	recordFailed := func(reason string) {
		meter.Count("webhook.router.failed", 1, sentry.WithAttributes(attribute.String("reason", reason)))
	}

	if event == nil {
		recordFailed("missing_event")
		return services.WebhookOutcome{State: services.WebhookReceived}, fmt.Errorf("%w: missing stripe event", stripe.ErrInvalidPayload)
	}
	meter.SetAttributes(attribute.String("webhook.event_type", event.Type))

	outcome, err := r.reconciler.Reconcile(ctx, event)
	if err != nil {
		recordFailed("reconcile_failed")
		return outcome, err
	}

	switch outcome.State {
	case services.WebhookIgnored:
		logging.FromContext(ctx, r.logger).Info("stripe event ignored", "type", event.Type, "event_id", event.ID)
		meter.Count("webhook.router.unhandled", 1)
	default:
		meter.Count("webhook.router.processed", 1, sentry.WithAttributes(attribute.String("state", string(outcome.State))))
	}
	span.Status = sentry.SpanStatusOK
	return outcome, nil
}
