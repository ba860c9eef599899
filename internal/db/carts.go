package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gitshopapp/storefront/internal/cart"
	"github.com/gitshopapp/storefront/internal/catalog"
)

type CartStore struct {
	pool *pgxpool.Pool
}

func NewCartStore(pool *pgxpool.Pool) *CartStore {
	return &CartStore{pool: pool}
}

const cartSelect = `
	SELECT c.id, COALESCE(c.member_id, ''), COALESCE(c.anonymous_id, ''), c.created_at, c.updated_at,
	       sm.id, sm.name, sm.carrier, sm.cost::text
	FROM carts c
	LEFT JOIN shipping_methods sm ON sm.id = c.shipping_method_id
`

func (s *CartStore) GetByID(ctx context.Context, id uuid.UUID) (*cart.Cart, error) {
	return s.getOne(ctx, cartSelect+` WHERE c.id = $1`, id)
}

func (s *CartStore) GetByMemberID(ctx context.Context, memberID string) (*cart.Cart, error) {
	return s.getOne(ctx, cartSelect+` WHERE c.member_id = $1`, memberID)
}

func (s *CartStore) GetByAnonymousID(ctx context.Context, anonymousID string) (*cart.Cart, error) {
	return s.getOne(ctx, cartSelect+` WHERE c.anonymous_id = $1`, anonymousID)
}

func (s *CartStore) getOne(ctx context.Context, query string, arg any) (*cart.Cart, error) {
	var c cart.Cart
	var methodID, methodName, methodCarrier, methodCost *string
	err := s.pool.QueryRow(ctx, query, arg).Scan(
		&c.ID, &c.MemberID, &c.AnonymousID, &c.CreatedAt, &c.UpdatedAt,
		&methodID, &methodName, &methodCarrier, &methodCost,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, cart.ErrCartNotFound
	}
	if err != nil {
		return nil, err
	}

	if methodID != nil {
		cost, err := parseNumeric(*methodCost)
		if err != nil {
			return nil, err
		}
		c.ShippingMethod = &catalog.ShippingMethod{
			ID:      *methodID,
			Name:    *methodName,
			Carrier: *methodCarrier,
			Cost:    cost,
		}
	}

	if err := s.loadLines(ctx, &c); err != nil {
		return nil, fmt.Errorf("failed to load cart lines: %w", err)
	}
	if err := s.loadDiscounts(ctx, &c); err != nil {
		return nil, fmt.Errorf("failed to load cart discounts: %w", err)
	}
	return &c, nil
}

func (s *CartStore) loadLines(ctx context.Context, c *cart.Cart) error {
	rows, err := s.pool.Query(ctx, `
		SELECT sku_id, quantity, added_at FROM cart_lines WHERE cart_id = $1 ORDER BY position
	`, c.ID)
	if err != nil {
		return err
	}
	lines, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (cart.Line, error) {
		var line cart.Line
		err := row.Scan(&line.SKU, &line.Quantity, &line.AddedAt)
		return line, err
	})
	if err != nil {
		return err
	}
	c.Lines = lines
	return nil
}

func (s *CartStore) loadDiscounts(ctx context.Context, c *cart.Cart) error {
	rows, err := s.pool.Query(ctx, `
		SELECT dc.code, dc.kind, dc.amount::text, dc.order_minimum::text, dc.combinable, dc.valid_from, dc.valid_until
		FROM cart_discounts cd
		JOIN discount_codes dc ON dc.code = cd.code
		WHERE cd.cart_id = $1
		ORDER BY cd.position
	`, c.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		code, err := scanDiscountCode(rows)
		if err != nil {
			return err
		}
		c.DiscountCodes = append(c.DiscountCodes, *code)
	}
	return rows.Err()
}

// Save writes the whole aggregate, replacing any previous state of the cart.
func (s *CartStore) Save(ctx context.Context, c *cart.Cart) error {
	if err := c.Validate(); err != nil {
		return err
	}
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return saveCart(ctx, tx, c)
	})
	return mapCartOwnerConflict(err)
}

// SaveMerged saves member and deletes the anonymous cart in one transaction.
func (s *CartStore) SaveMerged(ctx context.Context, member *cart.Cart, anonymousCartID uuid.UUID) error {
	if err := member.Validate(); err != nil {
		return err
	}
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if err := saveCart(ctx, tx, member); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `DELETE FROM carts WHERE id = $1`, anonymousCartID)
		return err
	})
	return mapCartOwnerConflict(err)
}

func (s *CartStore) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM carts WHERE id = $1`, id)
	return err
}

func saveCart(ctx context.Context, tx pgx.Tx, c *cart.Cart) error {
	var shippingMethodID *string
	if c.ShippingMethod != nil {
		shippingMethodID = &c.ShippingMethod.ID
	}

	_, err := tx.Exec(ctx, `
		INSERT INTO carts (id, member_id, anonymous_id, shipping_method_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE
		SET member_id = EXCLUDED.member_id,
		    anonymous_id = EXCLUDED.anonymous_id,
		    shipping_method_id = EXCLUDED.shipping_method_id,
		    updated_at = EXCLUDED.updated_at
	`, c.ID, nullableText(c.MemberID), nullableText(c.AnonymousID), shippingMethodID, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM cart_lines WHERE cart_id = $1`, c.ID); err != nil {
		return err
	}
	for i, line := range c.Lines {
		if _, err := tx.Exec(ctx, `
			INSERT INTO cart_lines (cart_id, sku_id, position, quantity, added_at) VALUES ($1, $2, $3, $4, $5)
		`, c.ID, line.SKU, i, line.Quantity, line.AddedAt); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(ctx, `DELETE FROM cart_discounts WHERE cart_id = $1`, c.ID); err != nil {
		return err
	}
	for i, code := range c.DiscountCodes {
		if _, err := tx.Exec(ctx, `
			INSERT INTO cart_discounts (cart_id, code, position) VALUES ($1, $2, $3)
		`, c.ID, code.Code, i); err != nil {
			return err
		}
	}
	return nil
}

func mapCartOwnerConflict(err error) error {
	if isUniqueViolation(err, "carts_member_id_key") || isUniqueViolation(err, "carts_anonymous_id_key") {
		return fmt.Errorf("%w: %v", cart.ErrOwnerHasCart, err)
	}
	return err
}
