package discount

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// PriceLookup resolves the price of a SKU at a given instant.
type PriceLookup interface {
	PriceAt(ctx context.Context, sku string, at time.Time) (decimal.Decimal, error)
}

type Line struct {
	SKU      string
	Quantity int
}

type Input struct {
	Lines            []Line
	ShippingMethodID string
	ShippingCost     decimal.Decimal
	// Codes must be in the order they were applied to the cart.
	Codes []Code
	Now   time.Time
}

type PricedLine struct {
	SKU       string
	Quantity  int
	UnitPrice decimal.Decimal
	LineTotal decimal.Decimal
}

type Totals struct {
	Lines            []PricedLine
	ItemSubtotal     decimal.Decimal
	ItemDiscount     decimal.Decimal
	ShippingSubtotal decimal.Decimal
	ShippingDiscount decimal.Decimal
	Total            decimal.Decimal
	// ItemCode and ShippingCode name the codes that produced each discount.
	ItemCode     string
	ShippingCode string
}

type Engine struct {
	prices PriceLookup
}

func NewEngine(prices PriceLookup) *Engine {
	return &Engine{prices: prices}
}

// ComputeTotals prices the lines and applies at most one item discount and at
// most one shipping discount. Neither discount is clamped, so a dollar-off
// code larger than the item subtotal yields a negative total.
func (e *Engine) ComputeTotals(ctx context.Context, in Input) (Totals, error) {
	totals := Totals{
		Lines:            make([]PricedLine, 0, len(in.Lines)),
		ItemSubtotal:     decimal.Zero,
		ItemDiscount:     decimal.Zero,
		ShippingSubtotal: decimal.Zero,
		ShippingDiscount: decimal.Zero,
	}

	for _, line := range in.Lines {
		price, err := e.prices.PriceAt(ctx, line.SKU, in.Now)
		if err != nil {
			return Totals{}, err
		}
		lineTotal := price.Mul(decimal.NewFromInt(int64(line.Quantity)))
		totals.Lines = append(totals.Lines, PricedLine{
			SKU:       line.SKU,
			Quantity:  line.Quantity,
			UnitPrice: price,
			LineTotal: lineTotal,
		})
		totals.ItemSubtotal = totals.ItemSubtotal.Add(lineTotal)
	}

	if in.ShippingMethodID != "" {
		totals.ShippingSubtotal = in.ShippingCost
	}

	itemCode, err := firstEligible(in.Codes, TargetItemTotal, totals.ItemSubtotal, in.Now, func(Code) bool { return true })
	if err != nil {
		return Totals{}, err
	}
	if itemCode != nil {
		discount, err := itemDiscount(*itemCode, totals.ItemSubtotal)
		if err != nil {
			return Totals{}, err
		}
		totals.ItemDiscount = discount
		totals.ItemCode = itemCode.Code
	}

	shippingCode, err := firstEligible(in.Codes, TargetShipping, totals.ItemSubtotal, in.Now, func(c Code) bool {
		return shippingMethodQualifies(c, in.ShippingMethodID)
	})
	if err != nil {
		return Totals{}, err
	}
	if shippingCode != nil {
		totals.ShippingDiscount = totals.ShippingSubtotal
		totals.ShippingCode = shippingCode.Code
	}

	totals.Total = totals.ItemSubtotal.
		Sub(totals.ItemDiscount).
		Add(totals.ShippingSubtotal).
		Sub(totals.ShippingDiscount)

	return totals, nil
}

// firstEligible scans codes in application order and returns the first one
// aimed at target that is valid, meets its order minimum and passes extra.
func firstEligible(codes []Code, target Target, itemSubtotal decimal.Decimal, now time.Time, extra func(Code) bool) (*Code, error) {
	for i := range codes {
		code := codes[i]
		codeTarget, err := code.Kind.Target()
		if err != nil {
			return nil, err
		}
		if codeTarget != target {
			continue
		}
		if !code.ValidAt(now) {
			continue
		}
		if itemSubtotal.LessThan(code.OrderMinimum) {
			continue
		}
		if !extra(code) {
			continue
		}
		return &code, nil
	}
	return nil, nil
}

func itemDiscount(code Code, itemSubtotal decimal.Decimal) (decimal.Decimal, error) {
	switch code.Kind {
	case KindPercentOff:
		return itemSubtotal.Mul(code.Amount).Div(hundred).Round(2), nil
	case KindDollarOff:
		return code.Amount, nil
	case KindFreeShippingUSPSGround:
		return decimal.Zero, fmt.Errorf("discount %s does not reduce the item total", code.Code)
	default:
		return decimal.Zero, fmt.Errorf("unknown discount kind %d", int(code.Kind))
	}
}

func shippingMethodQualifies(code Code, shippingMethodID string) bool {
	switch code.Kind {
	case KindFreeShippingUSPSGround:
		return shippingMethodID == USPSGroundMethodID
	default:
		return false
	}
}
