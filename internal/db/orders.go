package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gitshopapp/storefront/internal/crypto"
	"github.com/gitshopapp/storefront/internal/order"
)

const (
	addressKindBilling  = "billing"
	addressKindShipping = "shipping"
)

type OrderStore struct {
	pool   *pgxpool.Pool
	sealer crypto.Sealer
}

func NewOrderStore(pool *pgxpool.Pool, sealer crypto.Sealer) (*OrderStore, error) {
	if sealer == nil {
		return nil, fmt.Errorf("sealer is required")
	}
	return &OrderStore{pool: pool, sealer: sealer}, nil
}

func addressBinding(orderID uuid.UUID, kind string) string {
	return orderID.String() + "/" + kind
}

// CreateFromCart persists o with its lines, addresses, payment and status
// history and deletes the source cart, all in one transaction. It returns
// order.ErrDuplicatePaymentIntent when an order already exists for the
// payment intent, leaving the database untouched.
func (s *OrderStore) CreateFromCart(ctx context.Context, o *order.Order) error {
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			INSERT INTO orders (
				id, identifier, cart_id, member_id, customer_email,
				shipping_method_id, shipping_method_name, shipping_cost,
				item_subtotal, item_discount, item_discount_code,
				shipping_subtotal, shipping_discount, shipping_discount_code,
				tax, total, payment_intent_id, created_at
			) VALUES (
				$1, $2, $3, $4, $5,
				$6, $7, $8::numeric,
				$9::numeric, $10::numeric, $11,
				$12::numeric, $13::numeric, $14,
				$15::numeric, $16::numeric, $17, $18
			)
			ON CONFLICT (payment_intent_id) DO NOTHING
		`,
			o.ID, o.Identifier, o.CartID, nullableText(o.MemberID), o.CustomerEmail,
			o.ShippingMethodID, o.ShippingMethodName, numeric(o.ShippingCost),
			numeric(o.ItemSubtotal), numeric(o.ItemDiscount), o.ItemDiscountCode,
			numeric(o.ShippingSubtotal), numeric(o.ShippingDiscount), o.ShippingDiscountCode,
			numeric(o.Tax), numeric(o.Total), o.Payment.PaymentIntentID, o.CreatedAt,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return order.ErrDuplicatePaymentIntent
		}

		for i, line := range o.Lines {
			if _, err := tx.Exec(ctx, `
				INSERT INTO order_lines (order_id, position, sku_id, product_name, quantity, unit_price, line_total)
				VALUES ($1, $2, $3, $4, $5, $6::numeric, $7::numeric)
			`, o.ID, i, line.SKU, line.ProductName, line.Quantity, numeric(line.UnitPrice), numeric(line.LineTotal)); err != nil {
				return err
			}
		}

		for kind, address := range map[string]order.Address{
			addressKindBilling:  o.BillingAddress,
			addressKindShipping: o.ShippingAddress,
		} {
			if address.IsZero() {
				continue
			}
			sealed, err := crypto.SealJSON(s.sealer, address, addressBinding(o.ID, kind))
			if err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, `
				INSERT INTO order_addresses (order_id, kind, ciphertext) VALUES ($1, $2, $3)
			`, o.ID, kind, sealed); err != nil {
				return err
			}
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO payments (id, order_id, provider, payment_intent_id, checkout_session_id, amount, status, created_at)
			VALUES ($1, $2, $3, $4, $5, $6::numeric, $7, $8)
		`, uuid.New(), o.ID, o.Payment.Provider, o.Payment.PaymentIntentID, o.Payment.CheckoutSessionID,
			numeric(o.Payment.Amount), o.Payment.Status, o.CreatedAt); err != nil {
			return err
		}

		for _, entry := range o.StatusHistory {
			if err := insertStatus(ctx, tx, o.ID, entry); err != nil {
				return err
			}
		}

		_, err = tx.Exec(ctx, `DELETE FROM carts WHERE id = $1`, o.CartID)
		return err
	})
	if isUniqueViolation(err, "orders_payment_intent_id_key") {
		return order.ErrDuplicatePaymentIntent
	}
	return err
}

func insertStatus(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, entry order.StatusEntry) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO order_status_history (order_id, status, note, created_at) VALUES ($1, $2, $3, $4)
	`, orderID, string(entry.Status), entry.Note, entry.CreatedAt)
	return err
}

const orderSelect = `
	SELECT o.id, o.identifier, o.cart_id, COALESCE(o.member_id, ''), o.customer_email,
	       o.shipping_method_id, o.shipping_method_name, o.shipping_cost::text,
	       o.item_subtotal::text, o.item_discount::text, o.item_discount_code,
	       o.shipping_subtotal::text, o.shipping_discount::text, o.shipping_discount_code,
	       o.tax::text, o.total::text, o.created_at,
	       p.provider, p.payment_intent_id, p.checkout_session_id, p.amount::text, p.status
	FROM orders o
	JOIN payments p ON p.order_id = o.id
`

func (s *OrderStore) GetByPaymentIntentID(ctx context.Context, paymentIntentID string) (*order.Order, error) {
	return s.getOne(ctx, orderSelect+` WHERE o.payment_intent_id = $1`, paymentIntentID)
}

func (s *OrderStore) GetByIdentifier(ctx context.Context, identifier string) (*order.Order, error) {
	return s.getOne(ctx, orderSelect+` WHERE o.identifier = $1`, identifier)
}

func (s *OrderStore) getOne(ctx context.Context, query string, arg any) (*order.Order, error) {
	var o order.Order
	var money [8]string
	err := s.pool.QueryRow(ctx, query, arg).Scan(
		&o.ID, &o.Identifier, &o.CartID, &o.MemberID, &o.CustomerEmail,
		&o.ShippingMethodID, &o.ShippingMethodName, &money[0],
		&money[1], &money[2], &o.ItemDiscountCode,
		&money[3], &money[4], &o.ShippingDiscountCode,
		&money[5], &money[6], &o.CreatedAt,
		&o.Payment.Provider, &o.Payment.PaymentIntentID, &o.Payment.CheckoutSessionID, &money[7], &o.Payment.Status,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, order.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	targets := []*decimalTarget{
		{&money[0], &o.ShippingCost},
		{&money[1], &o.ItemSubtotal},
		{&money[2], &o.ItemDiscount},
		{&money[3], &o.ShippingSubtotal},
		{&money[4], &o.ShippingDiscount},
		{&money[5], &o.Tax},
		{&money[6], &o.Total},
		{&money[7], &o.Payment.Amount},
	}
	for _, target := range targets {
		if err := target.parse(); err != nil {
			return nil, err
		}
	}

	if err := s.loadLines(ctx, &o); err != nil {
		return nil, fmt.Errorf("failed to load order lines: %w", err)
	}
	if err := s.loadAddresses(ctx, &o); err != nil {
		return nil, fmt.Errorf("failed to load order addresses: %w", err)
	}
	if err := s.loadStatusHistory(ctx, &o); err != nil {
		return nil, fmt.Errorf("failed to load order status history: %w", err)
	}
	return &o, nil
}

func (s *OrderStore) loadLines(ctx context.Context, o *order.Order) error {
	rows, err := s.pool.Query(ctx, `
		SELECT sku_id, product_name, quantity, unit_price::text, line_total::text
		FROM order_lines WHERE order_id = $1 ORDER BY position
	`, o.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var line order.LineItem
		var unitPrice, lineTotal string
		if err := rows.Scan(&line.SKU, &line.ProductName, &line.Quantity, &unitPrice, &lineTotal); err != nil {
			return err
		}
		if line.UnitPrice, err = parseNumeric(unitPrice); err != nil {
			return err
		}
		if line.LineTotal, err = parseNumeric(lineTotal); err != nil {
			return err
		}
		o.Lines = append(o.Lines, line)
	}
	return rows.Err()
}

func (s *OrderStore) loadAddresses(ctx context.Context, o *order.Order) error {
	rows, err := s.pool.Query(ctx, `SELECT kind, ciphertext FROM order_addresses WHERE order_id = $1`, o.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var kind, ciphertext string
		if err := rows.Scan(&kind, &ciphertext); err != nil {
			return err
		}
		var address order.Address
		if err := crypto.OpenJSON(s.sealer, ciphertext, addressBinding(o.ID, kind), &address); err != nil {
			return fmt.Errorf("%s address: %w", kind, err)
		}
		switch kind {
		case addressKindBilling:
			o.BillingAddress = address
		case addressKindShipping:
			o.ShippingAddress = address
		}
	}
	return rows.Err()
}

func (s *OrderStore) loadStatusHistory(ctx context.Context, o *order.Order) error {
	rows, err := s.pool.Query(ctx, `
		SELECT status, note, created_at FROM order_status_history WHERE order_id = $1 ORDER BY id
	`, o.ID)
	if err != nil {
		return err
	}
	history, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (order.StatusEntry, error) {
		var entry order.StatusEntry
		var status string
		err := row.Scan(&status, &entry.Note, &entry.CreatedAt)
		entry.Status = order.Status(status)
		return entry, err
	})
	if err != nil {
		return err
	}
	o.StatusHistory = history
	return nil
}
