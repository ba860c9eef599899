package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gitshopapp/storefront/internal/cart"
	"github.com/gitshopapp/storefront/internal/logging"
	"github.com/gitshopapp/storefront/internal/order"
)

type OrderService struct {
	orders OrderRepository
	logger *slog.Logger
}

func NewOrderService(orders OrderRepository, logger *slog.Logger) *OrderService {
	return &OrderService{orders: orders, logger: logger}
}

func (s *OrderService) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, s.logger)
}

// GetForMember returns the order with identifier when memberID placed it.
// Orders of other members are reported as not found.
func (s *OrderService) GetForMember(ctx context.Context, memberID, identifier string) (*order.Order, error) {
	identifier = strings.TrimSpace(identifier)
	if memberID == "" || identifier == "" {
		return nil, cart.OrderNotFound
	}

	o, err := s.orders.GetByIdentifier(ctx, identifier)
	if errors.Is(err, order.ErrNotFound) {
		return nil, cart.OrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	if !o.OwnedBy(memberID) {
		s.loggerFromContext(ctx).Warn("order requested by non-owner", "order_identifier", identifier)
		return nil, cart.OrderNotFound
	}
	return o, nil
}
