// Package cart holds the shopping cart aggregate.
package cart

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gitshopapp/storefront/internal/catalog"
	"github.com/gitshopapp/storefront/internal/discount"
)

const MaxQuantity = 99

type Line struct {
	SKU      string
	Quantity int
	AddedAt  time.Time
}

// Cart is owned by exactly one of a member or an anonymous visitor.
type Cart struct {
	ID             uuid.UUID
	MemberID       string
	AnonymousID    string
	Lines          []Line
	ShippingMethod *catalog.ShippingMethod
	// DiscountCodes keeps application order.
	DiscountCodes []discount.Code
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func NewMemberCart(memberID string, now time.Time) (*Cart, error) {
	memberID = strings.TrimSpace(memberID)
	if memberID == "" {
		return nil, &ValidationError{Field: "member_id", Code: CodeRequired}
	}
	return &Cart{
		ID:        uuid.New(),
		MemberID:  memberID,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func NewAnonymousCart(anonymousID string, now time.Time) (*Cart, error) {
	anonymousID = strings.TrimSpace(anonymousID)
	if anonymousID == "" {
		return nil, &ValidationError{Field: "anonymous_id", Code: CodeRequired}
	}
	return &Cart{
		ID:          uuid.New(),
		AnonymousID: anonymousID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func (c *Cart) IsMember() bool {
	return c.MemberID != ""
}

func (c *Cart) IsEmpty() bool {
	return len(c.Lines) == 0
}

// Validate checks the aggregate invariants before it is persisted.
func (c *Cart) Validate() error {
	if (c.MemberID == "") == (c.AnonymousID == "") {
		return fmt.Errorf("cart %s must have exactly one owner", c.ID)
	}
	seen := make(map[string]struct{}, len(c.Lines))
	for _, line := range c.Lines {
		if line.Quantity < 1 || line.Quantity > MaxQuantity {
			return fmt.Errorf("cart %s: quantity %d for %s out of range", c.ID, line.Quantity, line.SKU)
		}
		if _, dup := seen[line.SKU]; dup {
			return fmt.Errorf("cart %s: duplicate line for %s", c.ID, line.SKU)
		}
		seen[line.SKU] = struct{}{}
	}
	return nil
}

// ParseQuantity parses a client-supplied quantity. Fractions and
// non-numeric input are not_an_int; anything outside [0, 99] is out_of_range.
func ParseQuantity(value string) (int, error) {
	trimmed := strings.TrimSpace(value)
	quantity, err := strconv.Atoi(trimmed)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return 0, &ValidationError{Field: "quantity", Code: CodeOutOfRange}
		}
		return 0, &ValidationError{Field: "quantity", Code: CodeNotAnInt}
	}
	if quantity < 0 || quantity > MaxQuantity {
		return 0, &ValidationError{Field: "quantity", Code: CodeOutOfRange}
	}
	return quantity, nil
}

// AddLine sets the quantity for sku, replacing any existing line. A quantity
// of zero removes the line. The caller resolves sku against the catalog.
func (c *Cart) AddLine(sku string, quantity int, now time.Time) error {
	if quantity < 0 || quantity > MaxQuantity {
		return &ValidationError{Field: "quantity", Code: CodeOutOfRange}
	}
	sku = strings.TrimSpace(sku)
	if sku == "" {
		return &ValidationError{Field: "sku", Code: CodeRequired}
	}

	idx := slices.IndexFunc(c.Lines, func(line Line) bool { return line.SKU == sku })
	switch {
	case quantity == 0 && idx >= 0:
		c.Lines = slices.Delete(c.Lines, idx, idx+1)
	case quantity == 0:
		return nil
	case idx >= 0:
		c.Lines[idx].Quantity = quantity
	default:
		c.Lines = append(c.Lines, Line{SKU: sku, Quantity: quantity, AddedAt: now})
	}
	c.UpdatedAt = now
	return nil
}

func (c *Cart) SelectShippingMethod(method catalog.ShippingMethod, now time.Time) {
	c.ShippingMethod = &method
	c.UpdatedAt = now
}

// ApplyDiscountCode appends code to the applied sequence. Applying a code
// that is already present is a no-op and reports false.
func (c *Cart) ApplyDiscountCode(code discount.Code, now time.Time) bool {
	for _, applied := range c.DiscountCodes {
		if strings.EqualFold(applied.Code, code.Code) {
			return false
		}
	}
	c.DiscountCodes = append(c.DiscountCodes, code)
	c.UpdatedAt = now
	return true
}

// MergeInto moves lines whose SKU is absent from member into member and
// returns how many moved. Lines for SKUs the member already has are dropped.
// Shipping selection and discount codes stay with the anonymous cart, which
// the caller deletes afterwards.
func (c *Cart) MergeInto(member *Cart, now time.Time) (int, error) {
	if c.IsMember() {
		return 0, fmt.Errorf("cart %s is not anonymous", c.ID)
	}
	if !member.IsMember() {
		return 0, fmt.Errorf("cart %s is not a member cart", member.ID)
	}

	present := make(map[string]struct{}, len(member.Lines))
	for _, line := range member.Lines {
		present[line.SKU] = struct{}{}
	}

	moved := 0
	for _, line := range c.Lines {
		if _, ok := present[line.SKU]; ok {
			continue
		}
		member.Lines = append(member.Lines, line)
		present[line.SKU] = struct{}{}
		moved++
	}
	if moved > 0 {
		member.UpdatedAt = now
	}
	return moved, nil
}

// EngineInput describes the cart to the discount engine.
func (c *Cart) EngineInput(now time.Time) discount.Input {
	in := discount.Input{
		Lines: make([]discount.Line, 0, len(c.Lines)),
		Codes: slices.Clone(c.DiscountCodes),
		Now:   now,
	}
	for _, line := range c.Lines {
		in.Lines = append(in.Lines, discount.Line{SKU: line.SKU, Quantity: line.Quantity})
	}
	if c.ShippingMethod != nil {
		in.ShippingMethodID = c.ShippingMethod.ID
		in.ShippingCost = c.ShippingMethod.Cost
	}
	return in
}
