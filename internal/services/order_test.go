package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/gitshopapp/storefront/internal/cart"
	"github.com/gitshopapp/storefront/internal/order"
)

func TestOrderServiceGetForMember(t *testing.T) {
	t.Parallel()

	orders := newFakeOrderRepo(nil)
	orders.orders["pi_1"] = &order.Order{
		Identifier: "SF-20260504-AAAAAAAA",
		MemberID:   "member-1",
		Payment:    order.Payment{PaymentIntentID: "pi_1"},
	}
	orders.orders["pi_2"] = &order.Order{
		Identifier: "SF-20260504-BBBBBBBB",
		Payment:    order.Payment{PaymentIntentID: "pi_2"},
	}
	svc := NewOrderService(orders, nil)

	tests := []struct {
		name       string
		memberID   string
		identifier string
		wantErr    error
	}{
		{name: "owner", memberID: "member-1", identifier: "SF-20260504-AAAAAAAA"},
		{name: "other member", memberID: "member-2", identifier: "SF-20260504-AAAAAAAA", wantErr: cart.OrderNotFound},
		{name: "anonymous order", memberID: "member-1", identifier: "SF-20260504-BBBBBBBB", wantErr: cart.OrderNotFound},
		{name: "unknown", memberID: "member-1", identifier: "SF-20260504-CCCCCCCC", wantErr: cart.OrderNotFound},
		{name: "no member", identifier: "SF-20260504-AAAAAAAA", wantErr: cart.OrderNotFound},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			o, err := svc.GetForMember(context.Background(), tc.memberID, tc.identifier)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("error = %v, want %v", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("GetForMember() error = %v", err)
			}
			if o.Identifier != tc.identifier {
				t.Fatalf("identifier = %q", o.Identifier)
			}
		})
	}
}

func TestBuildOrderInfo(t *testing.T) {
	t.Parallel()

	o := &order.Order{
		Identifier:         "SF-20260504-AAAAAAAA",
		CustomerEmail:      " buyer@example.com ",
		ShippingMethodName: "USPS Ground",
		Lines: []order.LineItem{
			{SKU: "MUG-1", ProductName: "Mug", Quantity: 2, UnitPrice: dec("12.50"), LineTotal: dec("25.00")},
		},
		ItemSubtotal:     dec("25"),
		ItemDiscount:     dec("2.5"),
		ItemDiscountCode: "SAVE10",
		ShippingSubtotal: dec("10"),
		ShippingDiscount: dec("10"),
		Total:            dec("22.5"),
		BillingAddress:   order.Address{Name: "Billing Name"},
		ShippingAddress: order.Address{
			Line1:      "1 Main St",
			Line2:      "Apt 2",
			City:       "Springfield",
			State:      "IL",
			PostalCode: "62701",
			Country:    "US",
		},
		CreatedAt: testNow,
	}

	info := BuildOrderInfo(ShopInfo{Name: "Storefront", URL: "https://shop.example.com"}, o)
	if info.OrderNumber != "SF-20260504-AAAAAAAA" || info.CustomerEmail != "buyer@example.com" {
		t.Fatalf("unexpected info: %+v", info)
	}
	if info.CustomerName != "Billing Name" {
		t.Fatalf("CustomerName = %q", info.CustomerName)
	}
	if info.OrderDate != "May 4, 2026" {
		t.Fatalf("OrderDate = %q", info.OrderDate)
	}
	if info.ItemDiscount != "$2.50" || info.Total != "$22.50" || info.Shipping != "$10.00" || info.Tax != "$0.00" {
		t.Fatalf("amounts = %+v", info)
	}
	if len(info.Items) != 1 || info.Items[0].TotalPrice != "$25.00" || info.Items[0].UnitPrice != "$12.50" {
		t.Fatalf("items = %+v", info.Items)
	}
	wantAddress := strings.Join([]string{"1 Main St", "Apt 2", "Springfield, IL 62701", "US"}, "\n")
	if info.ShippingAddress != wantAddress {
		t.Fatalf("ShippingAddress = %q, want %q", info.ShippingAddress, wantAddress)
	}
}

func TestOrderEmailNotifier(t *testing.T) {
	t.Parallel()

	t.Run("disabled provider", func(t *testing.T) {
		t.Parallel()

		notifier, err := NewOrderEmailNotifier(nil, ShopInfo{})
		if err != nil {
			t.Fatal(err)
		}
		if err := notifier.OrderPlaced(context.Background(), &order.Order{}); err != nil {
			t.Fatalf("OrderPlaced() error = %v", err)
		}
	})

	t.Run("missing email", func(t *testing.T) {
		t.Parallel()

		notifier, err := NewOrderEmailNotifier(&recordingEmailProvider{}, ShopInfo{})
		if err != nil {
			t.Fatal(err)
		}
		if err := notifier.OrderPlaced(context.Background(), &order.Order{Identifier: "SF-1"}); err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("sends confirmation", func(t *testing.T) {
		t.Parallel()

		provider := &recordingEmailProvider{}
		notifier, err := NewOrderEmailNotifier(provider, ShopInfo{Name: "Storefront"})
		if err != nil {
			t.Fatal(err)
		}
		o := &order.Order{Identifier: "SF-20260504-AAAAAAAA", CustomerEmail: "buyer@example.com", CreatedAt: testNow}
		if err := notifier.OrderPlaced(context.Background(), o); err != nil {
			t.Fatalf("OrderPlaced() error = %v", err)
		}
		if len(provider.sent) != 1 || provider.sent[0].To != "buyer@example.com" {
			t.Fatalf("sent = %+v", provider.sent)
		}
		if !strings.Contains(provider.sent[0].Subject, "SF-20260504-AAAAAAAA") {
			t.Fatalf("subject = %q", provider.sent[0].Subject)
		}
	})
}
