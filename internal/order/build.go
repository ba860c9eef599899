package order

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gitshopapp/storefront/internal/cart"
	"github.com/gitshopapp/storefront/internal/discount"
)

// Draft carries everything needed to snapshot a paid cart into an order.
type Draft struct {
	Cart            *cart.Cart
	Totals          discount.Totals
	ProductNames    map[string]string
	CustomerEmail   string
	BillingAddress  Address
	ShippingAddress Address
	Payment         Payment
	PaidAt          time.Time
}

// New snapshots the draft into a paid order with a fresh identifier.
func New(d Draft) (*Order, error) {
	if d.Cart == nil {
		return nil, errors.New("cart is required")
	}
	if d.Cart.IsEmpty() {
		return nil, cart.ErrCartIsEmpty
	}
	if d.Payment.PaymentIntentID == "" {
		return nil, errors.New("payment intent id is required")
	}

	o := &Order{
		ID:                   uuid.New(),
		Identifier:           NewIdentifier(d.PaidAt),
		CartID:               d.Cart.ID,
		MemberID:             d.Cart.MemberID,
		CustomerEmail:        d.CustomerEmail,
		Lines:                make([]LineItem, 0, len(d.Totals.Lines)),
		ShippingCost:         decimal.Zero,
		ItemSubtotal:         d.Totals.ItemSubtotal,
		ItemDiscount:         d.Totals.ItemDiscount,
		ItemDiscountCode:     d.Totals.ItemCode,
		ShippingSubtotal:     d.Totals.ShippingSubtotal,
		ShippingDiscount:     d.Totals.ShippingDiscount,
		ShippingDiscountCode: d.Totals.ShippingCode,
		Tax:                  decimal.Zero,
		Total:                d.Totals.Total,
		BillingAddress:       d.BillingAddress,
		ShippingAddress:      d.ShippingAddress,
		Payment:              d.Payment,
		CreatedAt:            d.PaidAt,
	}

	if method := d.Cart.ShippingMethod; method != nil {
		o.ShippingMethodID = method.ID
		o.ShippingMethodName = method.Name
		o.ShippingCost = method.Cost
	}

	for _, line := range d.Totals.Lines {
		name := d.ProductNames[line.SKU]
		if name == "" {
			name = line.SKU
		}
		o.Lines = append(o.Lines, LineItem{
			SKU:         line.SKU,
			ProductName: name,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			LineTotal:   line.LineTotal,
		})
	}

	if _, err := o.AppendStatus(StatusPaid, "payment confirmed", d.PaidAt); err != nil {
		return nil, err
	}
	return o, nil
}
