package stripe

import (
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v84"
)

const (
	currency = "usd"

	// MetadataCartID is the session metadata key linking a session to its cart.
	MetadataCartID = "cart_id"

	// ShippingLineName labels the synthetic shipping line item.
	ShippingLineName = "Shipping"
)

type LineItem struct {
	SKU      string
	Name     string
	ImageURL string
	// UnitAmount is in cents.
	UnitAmount int64
	Quantity   int64
}

// SessionRequest is a fully priced checkout session ready to send to Stripe.
type SessionRequest struct {
	CartID        string
	Lines         []LineItem
	CustomerEmail string
	SuccessURL    string
	CancelURL     string
	// ItemDiscount is the engine's item discount in cents and DiscountCode
	// the code that produced it.
	ItemDiscount int64
	DiscountCode string
}

// ItemSubtotal sums the non-shipping lines in cents.
func (r SessionRequest) ItemSubtotal() int64 {
	var subtotal int64
	for _, line := range r.Lines {
		if line.SKU == "" {
			continue
		}
		subtotal += line.UnitAmount * line.Quantity
	}
	return subtotal
}

// CouponAmount is the item discount clamped to the item subtotal, since
// Stripe cannot charge a negative amount.
func (r SessionRequest) CouponAmount() int64 {
	if r.ItemDiscount <= 0 {
		return 0
	}
	return min(r.ItemDiscount, r.ItemSubtotal())
}

func (r SessionRequest) discountLabel() string {
	if r.DiscountCode == "" {
		return "Discount"
	}
	return "Discount " + r.DiscountCode
}

// BuildCheckoutParams converts req into Stripe create params. It performs no
// network calls.
func BuildCheckoutParams(req SessionRequest) (*stripe.CheckoutSessionCreateParams, error) {
	if strings.TrimSpace(req.CartID) == "" {
		return nil, errors.New("cart id is required")
	}
	if len(req.Lines) == 0 {
		return nil, errors.New("at least one line item is required")
	}

	lineItems := make([]*stripe.CheckoutSessionCreateLineItemParams, 0, len(req.Lines))
	for _, line := range req.Lines {
		if line.Quantity <= 0 {
			return nil, fmt.Errorf("line %q: quantity must be positive", line.Name)
		}
		if line.UnitAmount < 0 {
			return nil, fmt.Errorf("line %q: unit amount must not be negative", line.Name)
		}

		productData := &stripe.CheckoutSessionCreateLineItemPriceDataProductDataParams{
			Name: stripe.String(line.Name),
		}
		if line.ImageURL != "" {
			productData.Images = stripe.StringSlice([]string{line.ImageURL})
		}
		if line.SKU != "" {
			productData.Metadata = map[string]string{"sku": line.SKU}
		}

		lineItems = append(lineItems, &stripe.CheckoutSessionCreateLineItemParams{
			PriceData: &stripe.CheckoutSessionCreateLineItemPriceDataParams{
				Currency:    stripe.String(currency),
				ProductData: productData,
				UnitAmount:  stripe.Int64(line.UnitAmount),
			},
			Quantity: stripe.Int64(line.Quantity),
		})
	}

	params := &stripe.CheckoutSessionCreateParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
		LineItems:  lineItems,
		ShippingAddressCollection: &stripe.CheckoutSessionCreateShippingAddressCollectionParams{
			AllowedCountries: stripe.StringSlice([]string{"US"}),
		},
		BillingAddressCollection: stripe.String(string(stripe.CheckoutSessionBillingAddressCollectionRequired)),
		ClientReferenceID:        stripe.String(req.CartID),
		Metadata: map[string]string{
			MetadataCartID: req.CartID,
		},
		PaymentIntentData: &stripe.CheckoutSessionCreatePaymentIntentDataParams{
			Metadata: map[string]string{
				MetadataCartID: req.CartID,
			},
		},
	}

	if email := strings.TrimSpace(req.CustomerEmail); email != "" {
		params.CustomerEmail = stripe.String(email)
	}

	return params, nil
}
