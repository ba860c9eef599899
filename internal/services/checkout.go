package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"net/url"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/getsentry/sentry-go/attribute"

	"github.com/gitshopapp/storefront/internal/cart"
	"github.com/gitshopapp/storefront/internal/logging"
	"github.com/gitshopapp/storefront/internal/observability"
	"github.com/gitshopapp/storefront/internal/pricing"
	"github.com/gitshopapp/storefront/internal/stripe"
)

var ErrCheckoutNotAllowed = errors.New("checkout not allowed")

// CheckoutPolicy gates who may start a checkout. The zero value allows
// everyone.
type CheckoutPolicy struct {
	MembersOnly bool
	// AllowedNetworks restricts checkout to client addresses inside one of
	// the prefixes. Empty means any address.
	AllowedNetworks []netip.Prefix
}

func (p CheckoutPolicy) Allows(owner Owner, clientIP netip.Addr) bool {
	if p.MembersOnly && owner.MemberID == "" {
		return false
	}
	if len(p.AllowedNetworks) == 0 {
		return true
	}
	if !clientIP.IsValid() {
		return false
	}
	clientIP = clientIP.Unmap()
	for _, prefix := range p.AllowedNetworks {
		if prefix.Contains(clientIP) {
			return true
		}
	}
	return false
}

type CheckoutConfig struct {
	// BaseURL is the public storefront origin, e.g. https://shop.example.com.
	BaseURL     string
	SuccessPath string
	CancelPath  string
	Policy      CheckoutPolicy
}

type CheckoutRequest struct {
	Owner         Owner
	CustomerEmail string
	ClientIP      netip.Addr
}

type CheckoutService struct {
	carts     CartRepository
	catalog   CatalogReader
	totals    TotalsCalculator
	processor PaymentProcessor
	config    CheckoutConfig
	logger    *slog.Logger
	now       func() time.Time
}

func NewCheckoutService(carts CartRepository, catalogReader CatalogReader, totals TotalsCalculator, processor PaymentProcessor, config CheckoutConfig, logger *slog.Logger) *CheckoutService {
	return &CheckoutService{
		carts:     carts,
		catalog:   catalogReader,
		totals:    totals,
		processor: processor,
		config:    config,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *CheckoutService) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, s.logger)
}

// CreateSession checks the policy gate, builds the session request for the
// owner's cart and creates it with the processor.
func (s *CheckoutService) CreateSession(ctx context.Context, req CheckoutRequest) (*stripe.Session, error) {
	span := sentry.StartSpan(
		ctx,
		"service.checkout.create_session",
		sentry.WithOpName("service.checkout"),
		sentry.WithDescription("CreateSession"),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	defer span.Finish()
	ctx = span.Context()

	logger := s.loggerFromContext(ctx)
	meter := observability.MeterFromContext(ctx)
	recordFailure := func(reason string) {
		meter.Count("checkout.session.failed", 1, sentry.WithAttributes(
			attribute.String("reason", reason),
		))
	}

	if !s.config.Policy.Allows(req.Owner, req.ClientIP) {
		recordFailure("not_allowed")
		logger.Info("checkout rejected by policy", "member", req.Owner.MemberID != "", "client_ip", req.ClientIP.String())
		return nil, ErrCheckoutNotAllowed
	}

	c, err := loadCart(ctx, s.carts, req.Owner)
	if err != nil {
		if errors.Is(err, cart.ErrCartNotFound) {
			recordFailure("cart_not_found")
			return nil, cart.CartNotFound
		}
		recordFailure("cart_lookup_failed")
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}

	sessionReq, err := s.BuildSession(ctx, c, req.CustomerEmail)
	if err != nil {
		recordFailure("build_failed")
		return nil, err
	}

	session, err := s.processor.CreateCheckoutSession(ctx, sessionReq)
	if err != nil {
		recordFailure("processor_error")
		logger.Error("failed to create checkout session", "error", err, "cart_id", c.ID)
		return nil, err
	}

	meter.Count("checkout.session.created", 1)
	span.Status = sentry.SpanStatusOK
	logger.Info("checkout session created", "cart_id", c.ID, "session_id", session.ID)
	return session, nil
}

// BuildSession prices c with the discount engine and converts it into a
// processor session request. It makes no processor calls.
func (s *CheckoutService) BuildSession(ctx context.Context, c *cart.Cart, customerEmail string) (stripe.SessionRequest, error) {
	if c == nil {
		return stripe.SessionRequest{}, cart.CartNotFound
	}
	if c.IsEmpty() {
		return stripe.SessionRequest{}, cart.ErrCartIsEmpty
	}

	totals, err := s.totals.ComputeTotals(ctx, c.EngineInput(s.now()))
	if err != nil {
		return stripe.SessionRequest{}, fmt.Errorf("failed to compute cart totals: %w", err)
	}

	skus, err := s.catalog.GetSKUs(ctx, skuIDs(c.Lines))
	if err != nil {
		return stripe.SessionRequest{}, fmt.Errorf("failed to load cart skus: %w", err)
	}

	req := stripe.SessionRequest{
		CartID:        c.ID.String(),
		Lines:         make([]stripe.LineItem, 0, len(totals.Lines)+1),
		CustomerEmail: strings.TrimSpace(customerEmail),
		SuccessURL:    s.absoluteURL(s.config.SuccessPath) + "?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:     s.absoluteURL(s.config.CancelPath),
		ItemDiscount:  pricing.ToMinorUnits(totals.ItemDiscount),
		DiscountCode:  totals.ItemCode,
	}

	for _, line := range totals.Lines {
		sku := skus[line.SKU]
		name := sku.ProductName
		if name == "" {
			name = line.SKU
		}
		req.Lines = append(req.Lines, stripe.LineItem{
			SKU:        line.SKU,
			Name:       name,
			ImageURL:   s.imageURL(sku.ImagePath),
			UnitAmount: pricing.ToMinorUnits(line.UnitPrice),
			Quantity:   int64(line.Quantity),
		})
	}

	// Shipping is charged net of any shipping discount.
	if method := c.ShippingMethod; method != nil && method.Cost.IsPositive() {
		req.Lines = append(req.Lines, stripe.LineItem{
			Name:       stripe.ShippingLineName,
			UnitAmount: pricing.ToMinorUnits(totals.ShippingSubtotal.Sub(totals.ShippingDiscount)),
			Quantity:   1,
		})
	}

	return req, nil
}

func (s *CheckoutService) absoluteURL(path string) string {
	base := strings.TrimRight(s.config.BaseURL, "/")
	path = strings.TrimSpace(path)
	if path == "" {
		return base + "/"
	}
	return base + "/" + strings.TrimLeft(path, "/")
}

// imageURL rewrites a relative catalog image path against the public base
// URL. Absolute URLs pass through.
func (s *CheckoutService) imageURL(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	if parsed, err := url.Parse(path); err == nil && parsed.IsAbs() {
		return path
	}
	return s.absoluteURL(path)
}
