package stripe

import (
	"github.com/stripe/stripe-go/v84"
)

type Address struct {
	Name       string
	Email      string
	Phone      string
	Line1      string
	Line2      string
	City       string
	State      string
	PostalCode string
	Country    string
}

// SessionDetail is the retrieved state of a completed checkout session.
type SessionDetail struct {
	ID              string
	CartID          string
	PaymentIntentID string
	PaymentStatus   string
	AmountTotal     int64
	CustomerEmail   string
	CustomerName    string
	BillingAddress  Address
	ShippingAddress Address
}

const (
	PaymentStatusPaid              = string(stripe.CheckoutSessionPaymentStatusPaid)
	PaymentStatusNoPaymentRequired = string(stripe.CheckoutSessionPaymentStatusNoPaymentRequired)
)

// IsPaid reports whether the session's funds are captured.
func (d *SessionDetail) IsPaid() bool {
	return d.PaymentStatus == PaymentStatusPaid || d.PaymentStatus == PaymentStatusNoPaymentRequired
}

func sessionDetailFrom(sess *stripe.CheckoutSession) *SessionDetail {
	detail := &SessionDetail{
		ID:            sess.ID,
		CartID:        sess.Metadata[MetadataCartID],
		PaymentStatus: string(sess.PaymentStatus),
		AmountTotal:   sess.AmountTotal,
		CustomerEmail: sess.CustomerEmail,
	}
	if sess.PaymentIntent != nil {
		detail.PaymentIntentID = sess.PaymentIntent.ID
	}

	if customer := sess.CustomerDetails; customer != nil {
		if customer.Email != "" {
			detail.CustomerEmail = customer.Email
		}
		detail.CustomerName = customer.Name
		detail.BillingAddress = addressFrom(customer.Address)
		detail.BillingAddress.Name = customer.Name
		detail.BillingAddress.Email = customer.Email
		detail.BillingAddress.Phone = customer.Phone
	}

	if info := sess.CollectedInformation; info != nil && info.ShippingDetails != nil {
		detail.ShippingAddress = addressFrom(info.ShippingDetails.Address)
		detail.ShippingAddress.Name = info.ShippingDetails.Name
		if detail.CustomerName == "" {
			detail.CustomerName = info.ShippingDetails.Name
		}
	}

	return detail
}

func addressFrom(address *stripe.Address) Address {
	if address == nil {
		return Address{}
	}
	return Address{
		Line1:      address.Line1,
		Line2:      address.Line2,
		City:       address.City,
		State:      address.State,
		PostalCode: address.PostalCode,
		Country:    address.Country,
	}
}
