// Package order holds the immutable order snapshot created from a paid cart.
package order

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound = errors.New("order not found")
	// ErrDuplicatePaymentIntent is returned when an order already exists for
	// the payment intent.
	ErrDuplicatePaymentIntent  = errors.New("order already exists for payment intent")
	ErrInvalidStatusTransition = errors.New("invalid order status transition")
)

type Status string

const (
	StatusPaid      Status = "paid"
	StatusFulfilled Status = "fulfilled"
	StatusShipped   Status = "shipped"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

var allowedTransitions = map[Status][]Status{
	StatusPaid:      {StatusFulfilled, StatusShipped, StatusCancelled},
	StatusFulfilled: {StatusShipped, StatusCancelled},
	StatusShipped:   {StatusDelivered},
}

type StatusEntry struct {
	Status    Status
	Note      string
	CreatedAt time.Time
}

type Address struct {
	Name       string `json:"name,omitempty"`
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
	Line1      string `json:"line1,omitempty"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country,omitempty"`
}

func (a Address) IsZero() bool {
	return a == Address{}
}

type LineItem struct {
	SKU         string
	ProductName string
	Quantity    int
	UnitPrice   decimal.Decimal
	LineTotal   decimal.Decimal
}

type Payment struct {
	Provider          string
	PaymentIntentID   string
	CheckoutSessionID string
	Amount            decimal.Decimal
	Status            string
}

type Order struct {
	ID                   uuid.UUID
	Identifier           string
	CartID               uuid.UUID
	MemberID             string
	CustomerEmail        string
	Lines                []LineItem
	ShippingMethodID     string
	ShippingMethodName   string
	ShippingCost         decimal.Decimal
	ItemSubtotal         decimal.Decimal
	ItemDiscount         decimal.Decimal
	ItemDiscountCode     string
	ShippingSubtotal     decimal.Decimal
	ShippingDiscount     decimal.Decimal
	ShippingDiscountCode string
	Tax                  decimal.Decimal
	Total                decimal.Decimal
	BillingAddress       Address
	ShippingAddress      Address
	Payment              Payment
	StatusHistory        []StatusEntry
	CreatedAt            time.Time
}

// NewIdentifier returns a human-readable order identifier such as
// "SF-20260504-3F9A1C2B".
func NewIdentifier(createdAt time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:8]
	return fmt.Sprintf("SF-%s-%s", createdAt.UTC().Format("20060102"), suffix)
}

// Status returns the latest status, or the empty status for an order that
// has no history yet.
func (o *Order) Status() Status {
	if len(o.StatusHistory) == 0 {
		return ""
	}
	return o.StatusHistory[len(o.StatusHistory)-1].Status
}

// AppendStatus records a status change. The first entry must be paid.
func (o *Order) AppendStatus(status Status, note string, at time.Time) (StatusEntry, error) {
	current := o.Status()
	if current == "" {
		if status != StatusPaid {
			return StatusEntry{}, fmt.Errorf("%w: initial status must be %s, got %s", ErrInvalidStatusTransition, StatusPaid, status)
		}
	} else if !canTransition(current, status) {
		return StatusEntry{}, fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, current, status)
	}

	entry := StatusEntry{Status: status, Note: note, CreatedAt: at}
	o.StatusHistory = append(o.StatusHistory, entry)
	return entry, nil
}

func canTransition(from, to Status) bool {
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// OwnedBy reports whether memberID placed the order.
func (o *Order) OwnedBy(memberID string) bool {
	return memberID != "" && o.MemberID == memberID
}
