package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gitshopapp/storefront/internal/cart"
	"github.com/gitshopapp/storefront/internal/catalog"
	"github.com/gitshopapp/storefront/internal/discount"
	"github.com/gitshopapp/storefront/internal/email"
	"github.com/gitshopapp/storefront/internal/order"
	"github.com/gitshopapp/storefront/internal/stripe"
)

var testNow = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

func dec(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func fixedNow() time.Time {
	return testNow
}

func cloneCart(c *cart.Cart) *cart.Cart {
	out := *c
	out.Lines = slices.Clone(c.Lines)
	out.DiscountCodes = slices.Clone(c.DiscountCodes)
	if c.ShippingMethod != nil {
		method := *c.ShippingMethod
		out.ShippingMethod = &method
	}
	return &out
}

type fakeCartRepo struct {
	mu      sync.Mutex
	carts   map[uuid.UUID]*cart.Cart
	saveErr error
	saves   int
}

func newFakeCartRepo(carts ...*cart.Cart) *fakeCartRepo {
	repo := &fakeCartRepo{carts: make(map[uuid.UUID]*cart.Cart)}
	for _, c := range carts {
		repo.carts[c.ID] = cloneCart(c)
	}
	return repo
}

func (r *fakeCartRepo) GetByID(_ context.Context, id uuid.UUID) (*cart.Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.carts[id]; ok {
		return cloneCart(c), nil
	}
	return nil, cart.ErrCartNotFound
}

func (r *fakeCartRepo) find(match func(*cart.Cart) bool) (*cart.Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.carts {
		if match(c) {
			return cloneCart(c), nil
		}
	}
	return nil, cart.ErrCartNotFound
}

func (r *fakeCartRepo) GetByMemberID(_ context.Context, memberID string) (*cart.Cart, error) {
	return r.find(func(c *cart.Cart) bool { return c.MemberID == memberID })
}

func (r *fakeCartRepo) GetByAnonymousID(_ context.Context, anonymousID string) (*cart.Cart, error) {
	return r.find(func(c *cart.Cart) bool { return c.AnonymousID == anonymousID })
}

func (r *fakeCartRepo) saveLocked(c *cart.Cart) error {
	if err := c.Validate(); err != nil {
		return err
	}
	for id, existing := range r.carts {
		if id == c.ID {
			continue
		}
		if (c.MemberID != "" && existing.MemberID == c.MemberID) ||
			(c.AnonymousID != "" && existing.AnonymousID == c.AnonymousID) {
			return cart.ErrOwnerHasCart
		}
	}
	r.carts[c.ID] = cloneCart(c)
	r.saves++
	return nil
}

func (r *fakeCartRepo) Save(_ context.Context, c *cart.Cart) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	return r.saveLocked(c)
}

func (r *fakeCartRepo) SaveMerged(_ context.Context, member *cart.Cart, anonymousCartID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	if err := r.saveLocked(member); err != nil {
		return err
	}
	delete(r.carts, anonymousCartID)
	return nil
}

func (r *fakeCartRepo) delete(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.carts, id)
}

func (r *fakeCartRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.carts)
}

type fakeOrderRepo struct {
	mu        sync.Mutex
	carts     *fakeCartRepo
	orders    map[string]*order.Order
	createErr error
	// beforeCreate runs before the uniqueness check, outside the lock.
	beforeCreate func()
}

func newFakeOrderRepo(carts *fakeCartRepo) *fakeOrderRepo {
	return &fakeOrderRepo{carts: carts, orders: make(map[string]*order.Order)}
}

func (r *fakeOrderRepo) CreateFromCart(_ context.Context, o *order.Order) error {
	if r.beforeCreate != nil {
		r.beforeCreate()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	if _, ok := r.orders[o.Payment.PaymentIntentID]; ok {
		return order.ErrDuplicatePaymentIntent
	}
	stored := *o
	r.orders[o.Payment.PaymentIntentID] = &stored
	if r.carts != nil {
		r.carts.delete(o.CartID)
	}
	return nil
}

func (r *fakeOrderRepo) GetByPaymentIntentID(_ context.Context, paymentIntentID string) (*order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o, ok := r.orders[paymentIntentID]; ok {
		return o, nil
	}
	return nil, order.ErrNotFound
}

func (r *fakeOrderRepo) GetByIdentifier(_ context.Context, identifier string) (*order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.Identifier == identifier {
			return o, nil
		}
	}
	return nil, order.ErrNotFound
}

func (r *fakeOrderRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.orders)
}

func (r *fakeOrderRepo) only() *order.Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		return o
	}
	return nil
}

type fakeCatalog struct {
	skus    map[string]catalog.SKU
	methods map[string]catalog.ShippingMethod
	codes   map[string]discount.Code
	prices  map[string]decimal.Decimal
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		skus: map[string]catalog.SKU{
			"MUG-1": {ID: "MUG-1", ProductName: "Mug", ImagePath: "/images/mug.png"},
			"TEE-M": {ID: "TEE-M", ProductName: "T-Shirt", ImagePath: "https://cdn.example.com/tee.png"},
		},
		methods: map[string]catalog.ShippingMethod{
			discount.USPSGroundMethodID: {ID: discount.USPSGroundMethodID, Name: "USPS Ground", Carrier: "usps", Cost: dec("10.00")},
			"ups-2day":                  {ID: "ups-2day", Name: "UPS 2nd Day", Carrier: "ups", Cost: dec("25.00")},
			"pickup":                    {ID: "pickup", Name: "Local pickup", Carrier: "local", Cost: decimal.Zero},
		},
		codes: map[string]discount.Code{
			"SAVE10":   activeCode("SAVE10", discount.KindPercentOff, "10", "0"),
			"HALF":     activeCode("HALF", discount.KindPercentOff, "50", "0"),
			"FREESHIP": activeCode("FREESHIP", discount.KindFreeShippingUSPSGround, "0", "0"),
		},
		prices: map[string]decimal.Decimal{
			"MUG-1": dec("100.00"),
			"TEE-M": dec("25.50"),
		},
	}
}

func activeCode(code string, kind discount.Kind, amount, minimum string) discount.Code {
	return discount.Code{
		Code:         code,
		Kind:         kind,
		Amount:       dec(amount),
		OrderMinimum: dec(minimum),
		ValidFrom:    testNow.Add(-24 * time.Hour),
		ValidUntil:   testNow.Add(24 * time.Hour),
	}
}

func (f *fakeCatalog) GetSKU(_ context.Context, id string) (*catalog.SKU, error) {
	sku, ok := f.skus[id]
	if !ok {
		return nil, fmt.Errorf("%w: sku %s", catalog.ErrNotFound, id)
	}
	return &sku, nil
}

func (f *fakeCatalog) GetSKUs(_ context.Context, ids []string) (map[string]catalog.SKU, error) {
	out := make(map[string]catalog.SKU, len(ids))
	for _, id := range ids {
		if sku, ok := f.skus[id]; ok {
			out[id] = sku
		}
	}
	return out, nil
}

func (f *fakeCatalog) GetShippingMethod(_ context.Context, id string) (*catalog.ShippingMethod, error) {
	method, ok := f.methods[id]
	if !ok {
		return nil, fmt.Errorf("%w: shipping method %s", catalog.ErrNotFound, id)
	}
	return &method, nil
}

func (f *fakeCatalog) GetDiscountCode(_ context.Context, code string) (*discount.Code, error) {
	found, ok := f.codes[code]
	if !ok {
		return nil, fmt.Errorf("%w: discount code %s", catalog.ErrNotFound, code)
	}
	return &found, nil
}

func (f *fakeCatalog) PriceAt(_ context.Context, sku string, _ time.Time) (decimal.Decimal, error) {
	price, ok := f.prices[sku]
	if !ok {
		return decimal.Zero, errors.New("price not found")
	}
	return price, nil
}

func (f *fakeCatalog) engine() *discount.Engine {
	return discount.NewEngine(f)
}

type fakeProcessor struct {
	mu          sync.Mutex
	sessions    map[string]*stripe.SessionDetail
	created     []stripe.SessionRequest
	createErr   error
	retrieveErr error
	retrievals  int
}

func newFakeProcessor() *fakeProcessor {
	return &fakeProcessor{sessions: make(map[string]*stripe.SessionDetail)}
}

func (p *fakeProcessor) CreateCheckoutSession(_ context.Context, req stripe.SessionRequest) (*stripe.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.createErr != nil {
		return nil, p.createErr
	}
	p.created = append(p.created, req)
	id := fmt.Sprintf("cs_test_%d", len(p.created))
	return &stripe.Session{ID: id, URL: "https://checkout.stripe.com/c/pay/" + id}, nil
}

func (p *fakeProcessor) RetrieveSession(_ context.Context, sessionID string) (*stripe.SessionDetail, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.retrievals++
	if p.retrieveErr != nil {
		return nil, p.retrieveErr
	}
	detail, ok := p.sessions[sessionID]
	if !ok {
		return nil, &stripe.ProcessorError{Op: "retrieve checkout session", Err: errors.New("no such session")}
	}
	copied := *detail
	return &copied, nil
}

func (p *fakeProcessor) retrievalCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.retrievals
}

type fakeNotifier struct {
	mu     sync.Mutex
	orders []*order.Order
	err    error
}

func (n *fakeNotifier) OrderPlaced(_ context.Context, o *order.Order) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.orders = append(n.orders, o)
	return n.err
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.orders)
}

// anonymousCart builds an anonymous cart with the given sku quantities.
func anonymousCart(anonymousID string, lines map[string]int) *cart.Cart {
	c, err := cart.NewAnonymousCart(anonymousID, testNow)
	if err != nil {
		panic(err)
	}
	for _, sku := range []string{"MUG-1", "TEE-M"} {
		if qty, ok := lines[sku]; ok {
			if err := c.AddLine(sku, qty, testNow); err != nil {
				panic(err)
			}
		}
	}
	return c
}

type recordingEmailProvider struct {
	mu   sync.Mutex
	sent []*email.Email
}

func (p *recordingEmailProvider) SendEmail(_ context.Context, e *email.Email) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, e)
	return nil
}
