package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/gitshopapp/storefront/internal/auth"
	"github.com/gitshopapp/storefront/internal/cache"
	"github.com/gitshopapp/storefront/internal/cart"
	"github.com/gitshopapp/storefront/internal/config"
	"github.com/gitshopapp/storefront/internal/logging"
	"github.com/gitshopapp/storefront/internal/order"
	"github.com/gitshopapp/storefront/internal/services"
	"github.com/gitshopapp/storefront/internal/session"
	"github.com/gitshopapp/storefront/internal/stripe"
)

const (
	maxWebhookBodyBytes = 1 << 20 // 1 MB
	maxJSONBodyBytes    = 64 << 10
)

type CartService interface {
	Summary(ctx context.Context, owner services.Owner) (*services.CartSummary, error)
	AddLine(ctx context.Context, owner services.Owner, sku, quantity string) (*cart.Cart, error)
	SelectShippingMethod(ctx context.Context, owner services.Owner, methodID string) (*cart.Cart, error)
	ApplyDiscountCode(ctx context.Context, owner services.Owner, code string) (*cart.Cart, error)
	MergeOnLogin(ctx context.Context, memberID, anonymousID string) (int, error)
}

type CheckoutService interface {
	CreateSession(ctx context.Context, req services.CheckoutRequest) (*stripe.Session, error)
}

type OrderService interface {
	GetForMember(ctx context.Context, memberID, identifier string) (*order.Order, error)
}

type WebhookReconciler interface {
	Reconcile(ctx context.Context, event *stripe.WebhookEvent) (services.WebhookOutcome, error)
}

type MemberVerifier interface {
	FromRequest(r *http.Request) (auth.Member, error)
}

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers serves the storefront JSON API.
type Handlers struct {
	config         *config.Config
	db             Pinger
	carts          CartService
	checkout       CheckoutService
	orders         OrderService
	stripeRouter   *StripeEventRouter
	webhookEvents  *cache.EventLedger
	members        MemberVerifier
	sessionManager *session.Manager
	logger         *slog.Logger
}

type Dependencies struct {
	Config          *config.Config
	DB              Pinger
	CartService     CartService
	CheckoutService CheckoutService
	OrderService    OrderService
	StripeRouter    *StripeEventRouter
	WebhookEvents   *cache.EventLedger
	Members         MemberVerifier
	SessionManager  *session.Manager
	Logger          *slog.Logger
}

func New(deps Dependencies) (*Handlers, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if deps.Config == nil {
		return nil, fmt.Errorf("handlers dependencies: config is required")
	}
	if deps.DB == nil {
		return nil, fmt.Errorf("handlers dependencies: db is required")
	}
	if deps.CartService == nil {
		return nil, fmt.Errorf("handlers dependencies: cartService is required")
	}
	if deps.CheckoutService == nil {
		return nil, fmt.Errorf("handlers dependencies: checkoutService is required")
	}
	if deps.OrderService == nil {
		return nil, fmt.Errorf("handlers dependencies: orderService is required")
	}
	if deps.StripeRouter == nil {
		return nil, fmt.Errorf("handlers dependencies: stripeRouter is required")
	}
	if deps.Members == nil {
		return nil, fmt.Errorf("handlers dependencies: members is required")
	}
	if deps.SessionManager == nil {
		return nil, fmt.Errorf("handlers dependencies: sessionManager is required")
	}

	return &Handlers{
		config:         deps.Config,
		db:             deps.DB,
		carts:          deps.CartService,
		checkout:       deps.CheckoutService,
		orders:         deps.OrderService,
		stripeRouter:   deps.StripeRouter,
		webhookEvents:  deps.WebhookEvents,
		members:        deps.Members,
		sessionManager: deps.SessionManager,
		logger:         logger.With("component", "handlers"),
	}, nil
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.loggerFromContext(ctx)

	if err := h.db.Ping(ctx); err != nil {
		logger.Error("database health check failed", "error", err)
		writeJSON(w, logger, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
		return
	}

	writeJSON(w, logger, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *Handlers) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, h.logger)
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil && logger != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

// decodeJSON reads a small JSON request body into dst. An empty body leaves
// dst untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(dst); err != nil {
		if err == io.EOF {
			return nil
		}
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// SessionMiddleware adds an existing visitor session to the request context.
func (h *Handlers) SessionMiddleware(next http.Handler) http.Handler {
	return h.sessionManager.Middleware(next)
}
