package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gitshopapp/storefront/internal/cart"
	"github.com/gitshopapp/storefront/internal/catalog"
	"github.com/gitshopapp/storefront/internal/discount"
	"github.com/gitshopapp/storefront/internal/logging"
)

var ErrMissingOwner = errors.New("cart owner is required")

// Owner identifies whose cart a request operates on. A member id wins over
// the anonymous id.
type Owner struct {
	MemberID    string
	AnonymousID string
}

func (o Owner) IsZero() bool {
	return o.MemberID == "" && o.AnonymousID == ""
}

type CartService struct {
	carts   CartRepository
	catalog CatalogReader
	totals  TotalsCalculator
	logger  *slog.Logger
	now     func() time.Time
}

func NewCartService(carts CartRepository, catalogReader CatalogReader, totals TotalsCalculator, logger *slog.Logger) *CartService {
	return &CartService{
		carts:   carts,
		catalog: catalogReader,
		totals:  totals,
		logger:  logger,
		now:     time.Now,
	}
}

func (s *CartService) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, s.logger)
}

// Load returns the owner's cart or cart.ErrCartNotFound.
func (s *CartService) Load(ctx context.Context, owner Owner) (*cart.Cart, error) {
	return loadCart(ctx, s.carts, owner)
}

func loadCart(ctx context.Context, carts CartRepository, owner Owner) (*cart.Cart, error) {
	switch {
	case owner.MemberID != "":
		return carts.GetByMemberID(ctx, owner.MemberID)
	case owner.AnonymousID != "":
		return carts.GetByAnonymousID(ctx, owner.AnonymousID)
	default:
		return nil, cart.ErrCartNotFound
	}
}

func (s *CartService) loadOrCreate(ctx context.Context, owner Owner) (*cart.Cart, bool, error) {
	if owner.IsZero() {
		return nil, false, ErrMissingOwner
	}

	c, err := s.Load(ctx, owner)
	if err == nil {
		return c, false, nil
	}
	if !errors.Is(err, cart.ErrCartNotFound) {
		return nil, false, fmt.Errorf("failed to load cart: %w", err)
	}

	now := s.now()
	if owner.MemberID != "" {
		c, err = cart.NewMemberCart(owner.MemberID, now)
	} else {
		c, err = cart.NewAnonymousCart(owner.AnonymousID, now)
	}
	if err != nil {
		return nil, false, err
	}
	return c, true, nil
}

// mutate applies fn to the owner's cart, creating the cart on first use, and
// saves it. A new cart that loses the creation race to a concurrent request
// is reloaded and fn applied once more.
func (s *CartService) mutate(ctx context.Context, owner Owner, fn func(c *cart.Cart) error) (*cart.Cart, error) {
	for attempt := 0; ; attempt++ {
		c, created, err := s.loadOrCreate(ctx, owner)
		if err != nil {
			return nil, err
		}
		if err := fn(c); err != nil {
			return nil, err
		}

		err = s.carts.Save(ctx, c)
		if err == nil {
			return c, nil
		}
		if created && attempt == 0 && errors.Is(err, cart.ErrOwnerHasCart) {
			s.loggerFromContext(ctx).Info("cart created concurrently, retrying on existing cart", "cart_id", c.ID)
			continue
		}
		return nil, fmt.Errorf("failed to save cart: %w", err)
	}
}

// AddLine sets the quantity of sku in the owner's cart. quantity is the raw
// client value; zero removes the line.
func (s *CartService) AddLine(ctx context.Context, owner Owner, sku, quantity string) (*cart.Cart, error) {
	qty, err := cart.ParseQuantity(quantity)
	if err != nil {
		return nil, err
	}
	sku = strings.TrimSpace(sku)
	if sku == "" {
		return nil, &cart.ValidationError{Field: "sku", Code: cart.CodeRequired}
	}

	if _, err := s.catalog.GetSKU(ctx, sku); err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return nil, cart.SKUNotFound
		}
		return nil, fmt.Errorf("failed to look up sku: %w", err)
	}

	return s.mutate(ctx, owner, func(c *cart.Cart) error {
		return c.AddLine(sku, qty, s.now())
	})
}

func (s *CartService) SelectShippingMethod(ctx context.Context, owner Owner, methodID string) (*cart.Cart, error) {
	methodID = strings.TrimSpace(methodID)
	if methodID == "" {
		return nil, &cart.ValidationError{Field: "shipping_method_id", Code: cart.CodeRequired}
	}

	method, err := s.catalog.GetShippingMethod(ctx, methodID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return nil, cart.ShippingMethodNotFound
		}
		return nil, fmt.Errorf("failed to look up shipping method: %w", err)
	}

	return s.mutate(ctx, owner, func(c *cart.Cart) error {
		c.SelectShippingMethod(*method, s.now())
		return nil
	})
}

// ApplyDiscountCode appends code to the cart's applied codes. Validity and
// order minimums are checked when totals are computed, not here.
func (s *CartService) ApplyDiscountCode(ctx context.Context, owner Owner, code string) (*cart.Cart, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, &cart.ValidationError{Field: "code", Code: cart.CodeRequired}
	}

	found, err := s.catalog.GetDiscountCode(ctx, code)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return nil, cart.DiscountCodeNotFound
		}
		return nil, fmt.Errorf("failed to look up discount code: %w", err)
	}

	return s.mutate(ctx, owner, func(c *cart.Cart) error {
		if !c.ApplyDiscountCode(*found, s.now()) {
			s.loggerFromContext(ctx).Debug("discount code already applied", "cart_id", c.ID, "code", found.Code)
		}
		return nil
	})
}

type SummaryLine struct {
	SKU         string
	ProductName string
	ImagePath   string
	Quantity    int
	UnitPrice   decimal.Decimal
	LineTotal   decimal.Decimal
}

// CartSummary is the cart as the storefront displays it. Cart is nil when the
// owner has no cart yet.
type CartSummary struct {
	Cart           *cart.Cart
	Lines          []SummaryLine
	ShippingMethod *catalog.ShippingMethod
	DiscountCodes  []string
	Totals         discount.Totals
}

// Summary prices the owner's cart with the same engine the webhook uses.
func (s *CartService) Summary(ctx context.Context, owner Owner) (*CartSummary, error) {
	summary := &CartSummary{
		Lines: []SummaryLine{},
		Totals: discount.Totals{
			Lines:            []discount.PricedLine{},
			ItemSubtotal:     decimal.Zero,
			ItemDiscount:     decimal.Zero,
			ShippingSubtotal: decimal.Zero,
			ShippingDiscount: decimal.Zero,
			Total:            decimal.Zero,
		},
		DiscountCodes: []string{},
	}

	c, err := s.Load(ctx, owner)
	if errors.Is(err, cart.ErrCartNotFound) {
		return summary, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	summary.Cart = c
	summary.ShippingMethod = c.ShippingMethod
	for _, code := range c.DiscountCodes {
		summary.DiscountCodes = append(summary.DiscountCodes, code.Code)
	}

	totals, err := s.totals.ComputeTotals(ctx, c.EngineInput(s.now()))
	if err != nil {
		return nil, fmt.Errorf("failed to compute cart totals: %w", err)
	}
	summary.Totals = totals

	skus, err := s.catalog.GetSKUs(ctx, skuIDs(c.Lines))
	if err != nil {
		return nil, fmt.Errorf("failed to load cart skus: %w", err)
	}
	for _, line := range totals.Lines {
		sku := skus[line.SKU]
		name := sku.ProductName
		if name == "" {
			name = line.SKU
		}
		summary.Lines = append(summary.Lines, SummaryLine{
			SKU:         line.SKU,
			ProductName: name,
			ImagePath:   sku.ImagePath,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			LineTotal:   line.LineTotal,
		})
	}
	return summary, nil
}

// MergeOnLogin folds the anonymous cart into the member's cart and deletes
// it. It returns how many lines moved; a missing anonymous cart is not an
// error.
func (s *CartService) MergeOnLogin(ctx context.Context, memberID, anonymousID string) (int, error) {
	memberID = strings.TrimSpace(memberID)
	if memberID == "" {
		return 0, ErrMissingOwner
	}
	if strings.TrimSpace(anonymousID) == "" {
		return 0, nil
	}

	logger := s.loggerFromContext(ctx)
	anonymous, err := s.carts.GetByAnonymousID(ctx, anonymousID)
	if errors.Is(err, cart.ErrCartNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to load anonymous cart: %w", err)
	}

	for attempt := 0; ; attempt++ {
		member, created, err := s.loadOrCreate(ctx, Owner{MemberID: memberID})
		if err != nil {
			return 0, err
		}

		moved, err := anonymous.MergeInto(member, s.now())
		if err != nil {
			return 0, err
		}

		err = s.carts.SaveMerged(ctx, member, anonymous.ID)
		if err == nil {
			logger.Info("merged anonymous cart", "member_cart_id", member.ID, "anonymous_cart_id", anonymous.ID, "moved_lines", moved)
			return moved, nil
		}
		if created && attempt == 0 && errors.Is(err, cart.ErrOwnerHasCart) {
			continue
		}
		return 0, fmt.Errorf("failed to save merged cart: %w", err)
	}
}
