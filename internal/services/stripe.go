package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/getsentry/sentry-go/attribute"
	"github.com/google/uuid"

	"github.com/gitshopapp/storefront/internal/cart"
	"github.com/gitshopapp/storefront/internal/logging"
	"github.com/gitshopapp/storefront/internal/observability"
	"github.com/gitshopapp/storefront/internal/order"
	"github.com/gitshopapp/storefront/internal/pricing"
	"github.com/gitshopapp/storefront/internal/stripe"
)

// WebhookState is where a webhook delivery ended up. Deliveries rejected
// before verification never reach the reconciler.
type WebhookState string

const (
	WebhookReceived  WebhookState = "received"
	WebhookVerified  WebhookState = "verified"
	WebhookDuplicate WebhookState = "duplicate"
	WebhookProcessed WebhookState = "processed"
	WebhookIgnored   WebhookState = "ignored"
)

type WebhookOutcome struct {
	State WebhookState
	// OrderIdentifier is set for processed and duplicate deliveries.
	OrderIdentifier string
}

// WebhookReconciler turns verified Stripe events into orders exactly once
// per payment intent.
type WebhookReconciler struct {
	carts     CartRepository
	orders    OrderRepository
	catalog   CatalogReader
	totals    TotalsCalculator
	processor PaymentProcessor
	notifier  OrderNotifier
	logger    *slog.Logger
	now       func() time.Time
}

func NewWebhookReconciler(carts CartRepository, orders OrderRepository, catalogReader CatalogReader, totals TotalsCalculator, processor PaymentProcessor, notifier OrderNotifier, logger *slog.Logger) *WebhookReconciler {
	if notifier == nil {
		notifier = noopOrderNotifier{}
	}
	return &WebhookReconciler{
		carts:     carts,
		orders:    orders,
		catalog:   catalogReader,
		totals:    totals,
		processor: processor,
		notifier:  notifier,
		logger:    logger,
		now:       time.Now,
	}
}

func (r *WebhookReconciler) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, r.logger)
}

// Reconcile handles a verified event. A returned error means the delivery
// should be retried by the processor, except for errors wrapping
// stripe.ErrInvalidPayload.
func (r *WebhookReconciler) Reconcile(ctx context.Context, event *stripe.WebhookEvent) (WebhookOutcome, error) {
	span := sentry.StartSpan(
		ctx,
		"service.webhook.reconcile",
		sentry.WithOpName("service.webhook"),
		sentry.WithDescription("WebhookReconciler.Reconcile"),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	defer span.Finish()
	ctx = span.Context()

	if event == nil {
		return WebhookOutcome{State: WebhookReceived}, fmt.Errorf("%w: missing event", stripe.ErrInvalidPayload)
	}

	logger := r.loggerFromContext(ctx).With("event_id", event.ID, "event_type", event.Type)
	meter := observability.MeterFromContext(ctx)

	var (
		outcome WebhookOutcome
		err     error
	)
	switch event.Type {
	case stripe.EventCheckoutSessionCompleted, stripe.EventCheckoutSessionAsyncPaymentSucceeded:
		outcome, err = r.sessionCompleted(ctx, logger, event)
	case stripe.EventCheckoutSessionExpired:
		logger.Info("checkout session expired", "session_id", event.SessionID, "cart_id", event.CartID)
		outcome = WebhookOutcome{State: WebhookIgnored}
	default:
		logger.Info("unhandled stripe event type")
		outcome = WebhookOutcome{State: WebhookIgnored}
	}

	if err != nil {
		meter.Count("webhook.reconcile.failed", 1, sentry.WithAttributes(
			attribute.String("event_type", event.Type),
		))
		return outcome, err
	}

	meter.Count("webhook.reconcile.outcome", 1, sentry.WithAttributes(
		attribute.String("event_type", event.Type),
		attribute.String("state", string(outcome.State)),
	))
	span.Status = sentry.SpanStatusOK
	return outcome, nil
}

func (r *WebhookReconciler) sessionCompleted(ctx context.Context, logger *slog.Logger, event *stripe.WebhookEvent) (WebhookOutcome, error) {
	verified := WebhookOutcome{State: WebhookVerified}
	if event.SessionID == "" {
		return verified, fmt.Errorf("%w: event carries no checkout session", stripe.ErrInvalidPayload)
	}

	if event.PaymentIntentID != "" {
		if existing, err := r.existingOrder(ctx, event.PaymentIntentID); err != nil || existing != nil {
			return duplicateOutcome(existing), err
		}
	}

	detail, err := r.processor.RetrieveSession(ctx, event.SessionID)
	if err != nil {
		return verified, fmt.Errorf("failed to retrieve checkout session: %w", err)
	}
	logger = logger.With("session_id", detail.ID, "payment_intent_id", detail.PaymentIntentID)

	if !detail.IsPaid() {
		logger.Info("checkout session completed without payment, waiting for async payment", "payment_status", detail.PaymentStatus)
		return WebhookOutcome{State: WebhookIgnored}, nil
	}
	if detail.PaymentIntentID == "" {
		return verified, fmt.Errorf("%w: paid session %s has no payment intent", stripe.ErrInvalidPayload, detail.ID)
	}
	if event.PaymentIntentID != detail.PaymentIntentID {
		if existing, err := r.existingOrder(ctx, detail.PaymentIntentID); err != nil || existing != nil {
			return duplicateOutcome(existing), err
		}
	}

	cartRef := detail.CartID
	if cartRef == "" {
		cartRef = event.CartID
	}
	cartID, err := uuid.Parse(cartRef)
	if err != nil {
		return verified, fmt.Errorf("%w: session %s has invalid cart_id %q", stripe.ErrInvalidPayload, detail.ID, cartRef)
	}

	c, err := r.carts.GetByID(ctx, cartID)
	if errors.Is(err, cart.ErrCartNotFound) {
		// The cart is removed together with order creation, so a concurrent
		// delivery may have just finished.
		if existing, lookupErr := r.existingOrder(ctx, detail.PaymentIntentID); lookupErr != nil || existing != nil {
			return duplicateOutcome(existing), lookupErr
		}
		logger.Error("paid checkout session references a missing cart", "cart_id", cartID)
		return verified, fmt.Errorf("cart %s for paid session %s: %w", cartID, detail.ID, err)
	}
	if err != nil {
		return verified, fmt.Errorf("failed to load cart: %w", err)
	}
	if c.IsEmpty() {
		// A retry cannot produce an order from an emptied cart.
		logger.Error("paid checkout session references an empty cart", "cart_id", c.ID)
		return WebhookOutcome{State: WebhookIgnored}, nil
	}

	now := r.now()
	totals, err := r.totals.ComputeTotals(ctx, c.EngineInput(now))
	if err != nil {
		return verified, fmt.Errorf("failed to compute order totals: %w", err)
	}
	if charged := pricing.FromMinorUnits(detail.AmountTotal); !charged.Equal(totals.Total) {
		logger.Warn("processor amount differs from recomputed total",
			"amount_total", pricing.Format(charged),
			"recomputed_total", pricing.Format(totals.Total),
			"cart_id", c.ID,
		)
	}

	skus, err := r.catalog.GetSKUs(ctx, skuIDs(c.Lines))
	if err != nil {
		return verified, fmt.Errorf("failed to load cart skus: %w", err)
	}
	names := make(map[string]string, len(skus))
	for id, sku := range skus {
		names[id] = sku.ProductName
	}

	o, err := order.New(order.Draft{
		Cart:            c,
		Totals:          totals,
		ProductNames:    names,
		CustomerEmail:   detail.CustomerEmail,
		BillingAddress:  orderAddress(detail.BillingAddress),
		ShippingAddress: orderAddress(detail.ShippingAddress),
		Payment: order.Payment{
			Provider:          "stripe",
			PaymentIntentID:   detail.PaymentIntentID,
			CheckoutSessionID: detail.ID,
			Amount:            pricing.FromMinorUnits(detail.AmountTotal),
			Status:            detail.PaymentStatus,
		},
		PaidAt: now,
	})
	if err != nil {
		return verified, fmt.Errorf("failed to build order from cart %s: %w", c.ID, err)
	}

	if err := r.orders.CreateFromCart(ctx, o); err != nil {
		if errors.Is(err, order.ErrDuplicatePaymentIntent) {
			existing, lookupErr := r.existingOrder(ctx, detail.PaymentIntentID)
			if lookupErr == nil && existing == nil {
				lookupErr = fmt.Errorf("order for payment intent %s reported as duplicate but not found", detail.PaymentIntentID)
			}
			return duplicateOutcome(existing), lookupErr
		}
		return verified, fmt.Errorf("failed to create order: %w", err)
	}

	logger.Info("order created", "order_identifier", o.Identifier, "cart_id", c.ID, "total", pricing.Format(o.Total))

	if err := r.notifier.OrderPlaced(ctx, o); err != nil {
		logger.Error("failed to send order confirmation", "error", err, "order_identifier", o.Identifier)
	}

	return WebhookOutcome{State: WebhookProcessed, OrderIdentifier: o.Identifier}, nil
}

// existingOrder returns the order for paymentIntentID, or nil when there is
// none.
func (r *WebhookReconciler) existingOrder(ctx context.Context, paymentIntentID string) (*order.Order, error) {
	existing, err := r.orders.GetByPaymentIntentID(ctx, paymentIntentID)
	if errors.Is(err, order.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up order by payment intent: %w", err)
	}
	return existing, nil
}

func duplicateOutcome(existing *order.Order) WebhookOutcome {
	if existing == nil {
		return WebhookOutcome{State: WebhookVerified}
	}
	return WebhookOutcome{State: WebhookDuplicate, OrderIdentifier: existing.Identifier}
}

func orderAddress(address stripe.Address) order.Address {
	return order.Address{
		Name:       address.Name,
		Email:      address.Email,
		Phone:      address.Phone,
		Line1:      address.Line1,
		Line2:      address.Line2,
		City:       address.City,
		State:      address.State,
		PostalCode: address.PostalCode,
		Country:    address.Country,
	}
}
