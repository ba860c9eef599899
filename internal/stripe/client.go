// Package stripe wraps the Stripe API calls the storefront makes.
package stripe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v84"

	"github.com/gitshopapp/storefront/internal/observability"
)

// ProcessorError wraps a failed Stripe API call. Err is kept for logs only.
type ProcessorError struct {
	Op  string
	Err error
}

func (e *ProcessorError) Error() string {
	return fmt.Sprintf("stripe %s failed: %v", e.Op, e.Err)
}

func (e *ProcessorError) Unwrap() error {
	return e.Err
}

// Client talks to the Stripe API with a bounded timeout and no automatic
// retries.
type Client struct {
	client *stripe.Client
}

func NewClient(secretKey string, timeout time.Duration) *Client {
	return newClientWithHTTP(secretKey, observability.NewHTTPClient(timeout))
}

func newClientWithHTTP(secretKey string, httpClient *http.Client) *Client {
	backends := stripe.NewBackendsWithConfig(&stripe.BackendConfig{
		HTTPClient:        httpClient,
		MaxNetworkRetries: stripe.Int64(0),
	})
	return &Client{
		client: stripe.NewClient(secretKey, stripe.WithBackends(backends)),
	}
}

// Session is the part of a created checkout session the storefront returns.
type Session struct {
	ID  string
	URL string
}

// CreateCheckoutSession creates a hosted checkout session for req. When the
// request carries an item discount a single-use coupon is created first.
func (c *Client) CreateCheckoutSession(ctx context.Context, req SessionRequest) (*Session, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	params, err := BuildCheckoutParams(req)
	if err != nil {
		return nil, err
	}

	if amount := req.CouponAmount(); amount > 0 {
		coupon, err := c.client.V1Coupons.Create(ctx, &stripe.CouponCreateParams{
			AmountOff:      stripe.Int64(amount),
			Currency:       stripe.String(currency),
			Duration:       stripe.String(string(stripe.CouponDurationOnce)),
			MaxRedemptions: stripe.Int64(1),
			Name:           stripe.String(req.discountLabel()),
			Metadata:       map[string]string{MetadataCartID: req.CartID},
		})
		if err != nil {
			return nil, &ProcessorError{Op: "create coupon", Err: err}
		}
		params.Discounts = []*stripe.CheckoutSessionCreateDiscountParams{
			{Coupon: stripe.String(coupon.ID)},
		}
	}

	sess, err := c.client.V1CheckoutSessions.Create(ctx, params)
	if err != nil {
		return nil, &ProcessorError{Op: "create checkout session", Err: err}
	}

	return &Session{ID: sess.ID, URL: sess.URL}, nil
}

// RetrieveSession loads a checkout session with its payment intent expanded.
func (c *Client) RetrieveSession(ctx context.Context, sessionID string) (*SessionDetail, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	params := &stripe.CheckoutSessionRetrieveParams{}
	params.AddExpand("payment_intent")

	sess, err := c.client.V1CheckoutSessions.Retrieve(ctx, sessionID, params)
	if err != nil {
		return nil, &ProcessorError{Op: "retrieve checkout session", Err: err}
	}

	return sessionDetailFrom(sess), nil
}
