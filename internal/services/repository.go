package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/gitshopapp/storefront/internal/cart"
	"github.com/gitshopapp/storefront/internal/catalog"
	"github.com/gitshopapp/storefront/internal/discount"
	"github.com/gitshopapp/storefront/internal/order"
	"github.com/gitshopapp/storefront/internal/stripe"
)

// CartRepository persists cart aggregates. Lookups return
// cart.ErrCartNotFound when no cart exists and Save returns
// cart.ErrOwnerHasCart when a new cart collides with an existing one.
type CartRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*cart.Cart, error)
	GetByMemberID(ctx context.Context, memberID string) (*cart.Cart, error)
	GetByAnonymousID(ctx context.Context, anonymousID string) (*cart.Cart, error)
	Save(ctx context.Context, c *cart.Cart) error
	// SaveMerged saves member and deletes the anonymous cart atomically.
	SaveMerged(ctx context.Context, member *cart.Cart, anonymousCartID uuid.UUID) error
}

// OrderRepository persists orders. CreateFromCart returns
// order.ErrDuplicatePaymentIntent when an order already exists for the
// payment intent; lookups return order.ErrNotFound.
type OrderRepository interface {
	CreateFromCart(ctx context.Context, o *order.Order) error
	GetByPaymentIntentID(ctx context.Context, paymentIntentID string) (*order.Order, error)
	GetByIdentifier(ctx context.Context, identifier string) (*order.Order, error)
}

// CatalogReader resolves catalog references. Missing entries return an error
// wrapping catalog.ErrNotFound.
type CatalogReader interface {
	GetSKU(ctx context.Context, id string) (*catalog.SKU, error)
	GetSKUs(ctx context.Context, ids []string) (map[string]catalog.SKU, error)
	GetShippingMethod(ctx context.Context, id string) (*catalog.ShippingMethod, error)
	GetDiscountCode(ctx context.Context, code string) (*discount.Code, error)
}

// TotalsCalculator computes cart totals.
type TotalsCalculator interface {
	ComputeTotals(ctx context.Context, in discount.Input) (discount.Totals, error)
}

// PaymentProcessor is the checkout session API of the payment processor.
type PaymentProcessor interface {
	CreateCheckoutSession(ctx context.Context, req stripe.SessionRequest) (*stripe.Session, error)
	RetrieveSession(ctx context.Context, sessionID string) (*stripe.SessionDetail, error)
}

// OrderNotifier tells the customer about a new order.
type OrderNotifier interface {
	OrderPlaced(ctx context.Context, o *order.Order) error
}

type noopOrderNotifier struct{}

func (noopOrderNotifier) OrderPlaced(context.Context, *order.Order) error {
	return nil
}

func skuIDs(lines []cart.Line) []string {
	ids := make([]string, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.SKU)
	}
	return ids
}
