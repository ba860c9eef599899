package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gitshopapp/storefront/internal/auth"
	"github.com/gitshopapp/storefront/internal/cache"
	"github.com/gitshopapp/storefront/internal/cart"
	"github.com/gitshopapp/storefront/internal/config"
	"github.com/gitshopapp/storefront/internal/discount"
	"github.com/gitshopapp/storefront/internal/order"
	"github.com/gitshopapp/storefront/internal/services"
	"github.com/gitshopapp/storefront/internal/session"
	"github.com/gitshopapp/storefront/internal/stripe"
)

const (
	testWebhookSecret = "whsec_test_secret"
	testMemberSecret  = "0123456789abcdef0123456789abcdef"
)

type fakeCartService struct {
	mu          sync.Mutex
	owners      []services.Owner
	lastSKU     string
	lastQty     string
	lastMethod  string
	lastCode    string
	mergeMember string
	mergeAnon   string
	mergeMoved  int
	err         error
	summary     *services.CartSummary
}

func (f *fakeCartService) record(owner services.Owner) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.owners = append(f.owners, owner)
}

func (f *fakeCartService) lastOwner() services.Owner {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.owners) == 0 {
		return services.Owner{}
	}
	return f.owners[len(f.owners)-1]
}

func (f *fakeCartService) Summary(_ context.Context, owner services.Owner) (*services.CartSummary, error) {
	f.record(owner)
	if f.summary != nil {
		return f.summary, nil
	}
	return &services.CartSummary{
		Lines:         []services.SummaryLine{},
		DiscountCodes: []string{},
		Totals: discount.Totals{
			ItemSubtotal:     decimal.Zero,
			ItemDiscount:     decimal.Zero,
			ShippingSubtotal: decimal.Zero,
			ShippingDiscount: decimal.Zero,
			Total:            decimal.Zero,
		},
	}, nil
}

func (f *fakeCartService) AddLine(_ context.Context, owner services.Owner, sku, quantity string) (*cart.Cart, error) {
	f.record(owner)
	f.lastSKU, f.lastQty = sku, quantity
	return &cart.Cart{}, f.err
}

func (f *fakeCartService) SelectShippingMethod(_ context.Context, owner services.Owner, methodID string) (*cart.Cart, error) {
	f.record(owner)
	f.lastMethod = methodID
	return &cart.Cart{}, f.err
}

func (f *fakeCartService) ApplyDiscountCode(_ context.Context, owner services.Owner, code string) (*cart.Cart, error) {
	f.record(owner)
	f.lastCode = code
	return &cart.Cart{}, f.err
}

func (f *fakeCartService) MergeOnLogin(_ context.Context, memberID, anonymousID string) (int, error) {
	f.mergeMember, f.mergeAnon = memberID, anonymousID
	return f.mergeMoved, f.err
}

type fakeCheckoutService struct {
	req     services.CheckoutRequest
	session *stripe.Session
	err     error
}

func (f *fakeCheckoutService) CreateSession(_ context.Context, req services.CheckoutRequest) (*stripe.Session, error) {
	f.req = req
	if f.err != nil {
		return nil, f.err
	}
	return f.session, nil
}

type fakeOrderService struct {
	memberID   string
	identifier string
	order      *order.Order
	err        error
}

func (f *fakeOrderService) GetForMember(_ context.Context, memberID, identifier string) (*order.Order, error) {
	f.memberID, f.identifier = memberID, identifier
	if f.err != nil {
		return nil, f.err
	}
	return f.order, nil
}

type fakeReconciler struct {
	mu      sync.Mutex
	calls   int
	events  []*stripe.WebhookEvent
	outcome services.WebhookOutcome
	err     error
}

func (f *fakeReconciler) Reconcile(_ context.Context, event *stripe.WebhookEvent) (services.WebhookOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.events = append(f.events, event)
	return f.outcome, f.err
}

func (f *fakeReconciler) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakePinger struct {
	err error
}

func (f fakePinger) Ping(context.Context) error {
	return f.err
}

type testEnv struct {
	handlers   *Handlers
	carts      *fakeCartService
	checkout   *fakeCheckoutService
	orders     *fakeOrderService
	reconciler *fakeReconciler
	verifier   *auth.Verifier
	sessions   *session.Manager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	verifier, err := auth.NewVerifier(testMemberSecret)
	if err != nil {
		t.Fatalf("NewVerifier() error = %v", err)
	}
	cacheProvider, err := cache.NewMemoryProvider()
	if err != nil {
		t.Fatalf("NewMemoryProvider() error = %v", err)
	}

	env := &testEnv{
		carts:      &fakeCartService{},
		checkout:   &fakeCheckoutService{session: &stripe.Session{ID: "cs_test_1", URL: "https://checkout.stripe.com/c/pay/cs_test_1"}},
		orders:     &fakeOrderService{},
		reconciler: &fakeReconciler{},
		verifier:   verifier,
		sessions:   session.NewManager(session.NewMemoryStore(), true),
	}

	h, err := New(Dependencies{
		Config: &config.Config{
			BaseURL:             "https://shop.example.com",
			StripeWebhookSecret: testWebhookSecret,
		},
		DB:              fakePinger{},
		CartService:     env.carts,
		CheckoutService: env.checkout,
		OrderService:    env.orders,
		StripeRouter:    NewStripeEventRouter(env.reconciler, logger),
		WebhookEvents:   cache.NewEventLedger(cacheProvider, "stripe", time.Hour),
		Members:         verifier,
		SessionManager:  env.sessions,
		Logger:          logger,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	env.handlers = h
	return env
}

// identified wraps a handler the way the router wraps cart routes.
func (e *testEnv) identified(next http.HandlerFunc) http.Handler {
	return e.handlers.SessionMiddleware(e.handlers.ResolveIdentity(next))
}

func (e *testEnv) memberToken(t *testing.T, memberID, email string) string {
	t.Helper()
	token, err := e.verifier.Issue(memberID, email, time.Hour)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	return token
}

func jsonBody(body string) io.Reader {
	return strings.NewReader(body)
}

func testOrder() *order.Order {
	return &order.Order{
		ID:                 uuid.MustParse("5a0f3c1e-2b8d-4d6e-9f00-1a2b3c4d5e6f"),
		Identifier:         "SF-20260301-ABCDEF12",
		MemberID:           "member-1",
		CustomerEmail:      "ada@example.com",
		ShippingMethodName: "USPS Ground",
		Lines: []order.LineItem{
			{SKU: "MUG-1", ProductName: "Mug", Quantity: 2, UnitPrice: decimal.RequireFromString("100"), LineTotal: decimal.RequireFromString("200")},
		},
		ItemSubtotal:     decimal.RequireFromString("200"),
		ItemDiscount:     decimal.RequireFromString("20"),
		ItemDiscountCode: "SAVE10",
		ShippingSubtotal: decimal.RequireFromString("10"),
		ShippingDiscount: decimal.Zero,
		Total:            decimal.RequireFromString("190"),
		ShippingAddress:  order.Address{Name: "Ada", Line1: "1 Main St", City: "Springfield", Country: "US"},
		StatusHistory: []order.StatusEntry{
			{Status: order.StatusPaid, CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
		},
		CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}
