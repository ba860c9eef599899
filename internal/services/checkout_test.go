package services

import (
	"context"
	"errors"
	"net/netip"
	"testing"

	"github.com/gitshopapp/storefront/internal/cart"
	"github.com/gitshopapp/storefront/internal/stripe"
)

func newTestCheckoutService(repo *fakeCartRepo, cat *fakeCatalog, processor *fakeProcessor, policy CheckoutPolicy) *CheckoutService {
	svc := NewCheckoutService(repo, cat, cat.engine(), processor, CheckoutConfig{
		BaseURL:     "https://shop.example.com/",
		SuccessPath: "/checkout/success",
		CancelPath:  "checkout/cancel",
		Policy:      policy,
	}, nil)
	svc.now = fixedNow
	return svc
}

func TestCheckoutPolicyAllows(t *testing.T) {
	t.Parallel()

	office := netip.MustParsePrefix("10.1.0.0/16")
	tests := []struct {
		name   string
		policy CheckoutPolicy
		owner  Owner
		ip     string
		want   bool
	}{
		{name: "zero policy allows anonymous", owner: Owner{AnonymousID: "a"}, want: true},
		{name: "members only rejects anonymous", policy: CheckoutPolicy{MembersOnly: true}, owner: Owner{AnonymousID: "a"}, want: false},
		{name: "members only allows member", policy: CheckoutPolicy{MembersOnly: true}, owner: Owner{MemberID: "m"}, want: true},
		{name: "cidr allows inside", policy: CheckoutPolicy{AllowedNetworks: []netip.Prefix{office}}, owner: Owner{MemberID: "m"}, ip: "10.1.2.3", want: true},
		{name: "cidr allows mapped ipv4", policy: CheckoutPolicy{AllowedNetworks: []netip.Prefix{office}}, owner: Owner{MemberID: "m"}, ip: "::ffff:10.1.2.3", want: true},
		{name: "cidr rejects outside", policy: CheckoutPolicy{AllowedNetworks: []netip.Prefix{office}}, owner: Owner{MemberID: "m"}, ip: "192.168.1.1", want: false},
		{name: "cidr rejects unknown address", policy: CheckoutPolicy{AllowedNetworks: []netip.Prefix{office}}, owner: Owner{MemberID: "m"}, want: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var ip netip.Addr
			if tc.ip != "" {
				ip = netip.MustParseAddr(tc.ip)
			}
			if got := tc.policy.Allows(tc.owner, ip); got != tc.want {
				t.Fatalf("Allows() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestCheckoutServiceCreateSessionErrors(t *testing.T) {
	t.Parallel()

	t.Run("policy gate", func(t *testing.T) {
		t.Parallel()

		processor := newFakeProcessor()
		repo := newFakeCartRepo(anonymousCart("anon-1", map[string]int{"MUG-1": 1}))
		svc := newTestCheckoutService(repo, newFakeCatalog(), processor, CheckoutPolicy{MembersOnly: true})

		_, err := svc.CreateSession(context.Background(), CheckoutRequest{Owner: Owner{AnonymousID: "anon-1"}})
		if !errors.Is(err, ErrCheckoutNotAllowed) {
			t.Fatalf("expected ErrCheckoutNotAllowed, got %v", err)
		}
		if len(processor.created) != 0 {
			t.Fatal("processor must not be called")
		}
	})

	t.Run("cart not found", func(t *testing.T) {
		t.Parallel()

		svc := newTestCheckoutService(newFakeCartRepo(), newFakeCatalog(), newFakeProcessor(), CheckoutPolicy{})
		_, err := svc.CreateSession(context.Background(), CheckoutRequest{Owner: Owner{AnonymousID: "anon-1"}})
		if !errors.Is(err, cart.CartNotFound) || !errors.Is(err, cart.ErrCartNotFound) {
			t.Fatalf("expected cart-not-found, got %v", err)
		}
	})

	t.Run("cart is empty", func(t *testing.T) {
		t.Parallel()

		repo := newFakeCartRepo(anonymousCart("anon-1", nil))
		svc := newTestCheckoutService(repo, newFakeCatalog(), newFakeProcessor(), CheckoutPolicy{})
		_, err := svc.CreateSession(context.Background(), CheckoutRequest{Owner: Owner{AnonymousID: "anon-1"}})
		if !errors.Is(err, cart.ErrCartIsEmpty) {
			t.Fatalf("expected ErrCartIsEmpty, got %v", err)
		}
	})

	t.Run("processor error", func(t *testing.T) {
		t.Parallel()

		processor := newFakeProcessor()
		processor.createErr = &stripe.ProcessorError{Op: "create checkout session", Err: errors.New("timeout")}
		repo := newFakeCartRepo(anonymousCart("anon-1", map[string]int{"MUG-1": 1}))
		svc := newTestCheckoutService(repo, newFakeCatalog(), processor, CheckoutPolicy{})

		_, err := svc.CreateSession(context.Background(), CheckoutRequest{Owner: Owner{AnonymousID: "anon-1"}})
		var processorErr *stripe.ProcessorError
		if !errors.As(err, &processorErr) {
			t.Fatalf("expected ProcessorError, got %v", err)
		}
	})
}

func TestCheckoutServiceBuildSession(t *testing.T) {
	t.Parallel()

	c := anonymousCart("anon-1", map[string]int{"MUG-1": 1, "TEE-M": 2})
	cat := newFakeCatalog()
	c.SelectShippingMethod(cat.methods["usps-ground"], testNow)
	c.ApplyDiscountCode(cat.codes["SAVE10"], testNow)

	svc := newTestCheckoutService(newFakeCartRepo(c), cat, newFakeProcessor(), CheckoutPolicy{})
	req, err := svc.BuildSession(context.Background(), c, "")
	if err != nil {
		t.Fatalf("BuildSession() error = %v", err)
	}

	if req.CartID != c.ID.String() {
		t.Fatalf("CartID = %q", req.CartID)
	}
	if req.CustomerEmail != "" {
		t.Fatalf("CustomerEmail = %q, want empty", req.CustomerEmail)
	}
	if req.SuccessURL != "https://shop.example.com/checkout/success?session_id={CHECKOUT_SESSION_ID}" {
		t.Fatalf("SuccessURL = %q", req.SuccessURL)
	}
	if req.CancelURL != "https://shop.example.com/checkout/cancel" {
		t.Fatalf("CancelURL = %q", req.CancelURL)
	}

	want := []stripe.LineItem{
		{SKU: "MUG-1", Name: "Mug", ImageURL: "https://shop.example.com/images/mug.png", UnitAmount: 10000, Quantity: 1},
		{SKU: "TEE-M", Name: "T-Shirt", ImageURL: "https://cdn.example.com/tee.png", UnitAmount: 2550, Quantity: 2},
		{Name: stripe.ShippingLineName, UnitAmount: 1000, Quantity: 1},
	}
	if len(req.Lines) != len(want) {
		t.Fatalf("lines = %+v", req.Lines)
	}
	for i := range want {
		if req.Lines[i] != want[i] {
			t.Errorf("line %d = %+v, want %+v", i, req.Lines[i], want[i])
		}
	}

	// 10% of 151.00
	if req.ItemDiscount != 1510 || req.DiscountCode != "SAVE10" {
		t.Fatalf("discount = %d %q", req.ItemDiscount, req.DiscountCode)
	}
}

func TestCheckoutServiceBuildSessionShipping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		method     string
		codes      []string
		wantLine   bool
		wantAmount int64
	}{
		{name: "no method", wantLine: false},
		{name: "free method", method: "pickup", wantLine: false},
		{name: "paid method", method: "ups-2day", wantLine: true, wantAmount: 2500},
		{name: "free usps ground", method: "usps-ground", codes: []string{"FREESHIP"}, wantLine: true, wantAmount: 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cat := newFakeCatalog()
			c := anonymousCart("anon-1", map[string]int{"MUG-1": 1})
			if tc.method != "" {
				c.SelectShippingMethod(cat.methods[tc.method], testNow)
			}
			for _, code := range tc.codes {
				c.ApplyDiscountCode(cat.codes[code], testNow)
			}

			svc := newTestCheckoutService(newFakeCartRepo(c), cat, newFakeProcessor(), CheckoutPolicy{})
			req, err := svc.BuildSession(context.Background(), c, "buyer@example.com")
			if err != nil {
				t.Fatalf("BuildSession() error = %v", err)
			}
			if req.CustomerEmail != "buyer@example.com" {
				t.Fatalf("CustomerEmail = %q", req.CustomerEmail)
			}

			last := req.Lines[len(req.Lines)-1]
			hasLine := last.Name == stripe.ShippingLineName
			if hasLine != tc.wantLine {
				t.Fatalf("shipping line present = %v, want %v", hasLine, tc.wantLine)
			}
			if hasLine && last.UnitAmount != tc.wantAmount {
				t.Fatalf("shipping amount = %d, want %d", last.UnitAmount, tc.wantAmount)
			}
		})
	}
}

func TestCheckoutServiceCreateSession(t *testing.T) {
	t.Parallel()

	processor := newFakeProcessor()
	repo := newFakeCartRepo(anonymousCart("anon-1", map[string]int{"MUG-1": 2}))
	svc := newTestCheckoutService(repo, newFakeCatalog(), processor, CheckoutPolicy{})

	session, err := svc.CreateSession(context.Background(), CheckoutRequest{
		Owner:         Owner{AnonymousID: "anon-1"},
		CustomerEmail: " buyer@example.com ",
	})
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	if session.ID == "" || session.URL == "" {
		t.Fatalf("session = %+v", session)
	}
	if len(processor.created) != 1 {
		t.Fatalf("expected one session, got %d", len(processor.created))
	}
	if got := processor.created[0]; got.CustomerEmail != "buyer@example.com" || got.Lines[0].Quantity != 2 {
		t.Fatalf("unexpected request: %+v", got)
	}
}
