package services

import (
	"context"
	"fmt"

	"github.com/gitshopapp/storefront/internal/email"
	"github.com/gitshopapp/storefront/internal/order"
)

// OrderEmailNotifier sends the order confirmation email.
type OrderEmailNotifier struct {
	provider email.Provider
	renderer *email.Renderer
	shop     ShopInfo
}

// NewOrderEmailNotifier returns a notifier for provider. A nil provider
// disables email and every send succeeds.
func NewOrderEmailNotifier(provider email.Provider, shop ShopInfo) (*OrderEmailNotifier, error) {
	renderer, err := email.NewRenderer()
	if err != nil {
		return nil, fmt.Errorf("failed to create email renderer: %w", err)
	}
	return &OrderEmailNotifier{
		provider: provider,
		renderer: renderer,
		shop:     shop,
	}, nil
}

func (n *OrderEmailNotifier) OrderPlaced(ctx context.Context, o *order.Order) error {
	if n == nil || n.provider == nil {
		return nil
	}
	if o == nil {
		return fmt.Errorf("order is required")
	}
	if o.CustomerEmail == "" {
		return fmt.Errorf("order %s has no customer email", o.Identifier)
	}
	return email.SendOrderConfirmation(ctx, n.provider, n.renderer, BuildOrderInfo(n.shop, o))
}
