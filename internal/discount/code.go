// Package discount implements the storefront discount policy.
package discount

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// USPSGroundMethodID is the only shipping method free-shipping codes apply to.
const USPSGroundMethodID = "usps-ground"

// Kind is the closed set of discount actions.
type Kind int

const (
	KindPercentOff Kind = iota + 1
	KindDollarOff
	KindFreeShippingUSPSGround
)

func ParseKind(value string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "percent_off":
		return KindPercentOff, nil
	case "dollar_off":
		return KindDollarOff, nil
	case "free_shipping_usps_ground":
		return KindFreeShippingUSPSGround, nil
	default:
		return 0, fmt.Errorf("unknown discount kind %q", value)
	}
}

func (k Kind) String() string {
	switch k {
	case KindPercentOff:
		return "percent_off"
	case KindDollarOff:
		return "dollar_off"
	case KindFreeShippingUSPSGround:
		return "free_shipping_usps_ground"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Target is the part of the cart a discount reduces.
type Target int

const (
	TargetItemTotal Target = iota + 1
	TargetShipping
)

func (k Kind) Target() (Target, error) {
	switch k {
	case KindPercentOff, KindDollarOff:
		return TargetItemTotal, nil
	case KindFreeShippingUSPSGround:
		return TargetShipping, nil
	default:
		return 0, fmt.Errorf("unknown discount kind %d", int(k))
	}
}

type Code struct {
	Code         string
	Kind         Kind
	Amount       decimal.Decimal
	OrderMinimum decimal.Decimal
	// Combinable is stored with the code but not evaluated by the policy.
	Combinable bool
	ValidFrom  time.Time
	ValidUntil time.Time
}

// ValidAt reports whether now falls inside [ValidFrom, ValidUntil).
func (c Code) ValidAt(now time.Time) bool {
	return !now.Before(c.ValidFrom) && now.Before(c.ValidUntil)
}

// Validate checks a code definition before it is stored.
func (c Code) Validate() error {
	if strings.TrimSpace(c.Code) == "" {
		return fmt.Errorf("discount code is required")
	}
	if _, err := c.Kind.Target(); err != nil {
		return err
	}
	if c.Amount.IsNegative() {
		return fmt.Errorf("discount %s: amount must be zero or positive", c.Code)
	}
	if c.Kind == KindPercentOff && c.Amount.GreaterThan(decimal.NewFromInt(100)) {
		return fmt.Errorf("discount %s: percent off cannot exceed 100", c.Code)
	}
	if c.OrderMinimum.IsNegative() {
		return fmt.Errorf("discount %s: order minimum must be zero or positive", c.Code)
	}
	if !c.ValidUntil.After(c.ValidFrom) {
		return fmt.Errorf("discount %s: validity window end must be after start", c.Code)
	}
	return nil
}
