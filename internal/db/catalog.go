package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/gitshopapp/storefront/internal/catalog"
	"github.com/gitshopapp/storefront/internal/discount"
	"github.com/gitshopapp/storefront/internal/pricing"
)

type CatalogStore struct {
	pool *pgxpool.Pool
}

func NewCatalogStore(pool *pgxpool.Pool) *CatalogStore {
	return &CatalogStore{pool: pool}
}

func (s *CatalogStore) UpsertSKU(ctx context.Context, sku catalog.SKU) error {
	attributes, err := json.Marshal(sku.Attributes)
	if err != nil {
		return err
	}
	if sku.Attributes == nil {
		attributes = []byte("{}")
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO skus (id, product_name, image_path, attributes, inventory_status)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET product_name = EXCLUDED.product_name,
		    image_path = EXCLUDED.image_path,
		    attributes = EXCLUDED.attributes,
		    inventory_status = EXCLUDED.inventory_status,
		    updated_at = NOW()
	`, sku.ID, sku.ProductName, sku.ImagePath, attributes, string(sku.InventoryStatus))
	return err
}

func (s *CatalogStore) UpsertShippingMethod(ctx context.Context, method catalog.ShippingMethod) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO shipping_methods (id, name, carrier, cost)
		VALUES ($1, $2, $3, $4::numeric)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, carrier = EXCLUDED.carrier, cost = EXCLUDED.cost, updated_at = NOW()
	`, method.ID, method.Name, method.Carrier, numeric(method.Cost))
	return err
}

func (s *CatalogStore) UpsertDiscountCode(ctx context.Context, code discount.Code) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO discount_codes (code, kind, amount, order_minimum, combinable, valid_from, valid_until)
		VALUES ($1, $2, $3::numeric, $4::numeric, $5, $6, $7)
		ON CONFLICT (code) DO UPDATE
		SET kind = EXCLUDED.kind,
		    amount = EXCLUDED.amount,
		    order_minimum = EXCLUDED.order_minimum,
		    combinable = EXCLUDED.combinable,
		    valid_from = EXCLUDED.valid_from,
		    valid_until = EXCLUDED.valid_until,
		    updated_at = NOW()
	`, code.Code, code.Kind.String(), numeric(code.Amount), numeric(code.OrderMinimum), code.Combinable, code.ValidFrom, code.ValidUntil)
	return err
}

// CurrentPrices returns the effective price of every SKU that has one at at.
func (s *CatalogStore) CurrentPrices(ctx context.Context, at time.Time) (map[string]decimal.Decimal, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT ON (sku_id) sku_id, price::text
		FROM price_history
		WHERE effective_at <= $1
		ORDER BY sku_id, effective_at DESC, seq DESC
	`, at)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	prices := map[string]decimal.Decimal{}
	for rows.Next() {
		var sku, priceText string
		if err := rows.Scan(&sku, &priceText); err != nil {
			return nil, err
		}
		price, err := parseNumeric(priceText)
		if err != nil {
			return nil, err
		}
		prices[sku] = price
	}
	return prices, rows.Err()
}

func (s *CatalogStore) AppendPrice(ctx context.Context, sku string, price decimal.Decimal, effectiveAt time.Time) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO price_history (sku_id, price, effective_at) VALUES ($1, $2::numeric, $3)
	`, sku, numeric(price), effectiveAt)
	return err
}

// PriceHistory returns every entry for sku in insertion order.
func (s *CatalogStore) PriceHistory(ctx context.Context, sku string) ([]pricing.Entry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT sku_id, price::text, effective_at, seq
		FROM price_history
		WHERE sku_id = $1
		ORDER BY seq
	`, sku)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []pricing.Entry
	for rows.Next() {
		var entry pricing.Entry
		var priceText string
		if err := rows.Scan(&entry.SKU, &priceText, &entry.EffectiveAt, &entry.Seq); err != nil {
			return nil, err
		}
		if entry.Price, err = parseNumeric(priceText); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (s *CatalogStore) GetSKU(ctx context.Context, id string) (*catalog.SKU, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, product_name, image_path, attributes, inventory_status
		FROM skus WHERE id = $1
	`, id)
	sku, err := scanSKU(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: sku %s", catalog.ErrNotFound, id)
	}
	return sku, err
}

func scanSKU(row rowScanner) (*catalog.SKU, error) {
	var sku catalog.SKU
	var attributes []byte
	var status string
	if err := row.Scan(&sku.ID, &sku.ProductName, &sku.ImagePath, &attributes, &status); err != nil {
		return nil, err
	}
	sku.InventoryStatus = catalog.InventoryStatus(status)
	if len(attributes) > 0 {
		if err := json.Unmarshal(attributes, &sku.Attributes); err != nil {
			return nil, fmt.Errorf("invalid attributes for sku %s: %w", sku.ID, err)
		}
	}
	return &sku, nil
}

// GetSKUs returns the SKUs among ids that exist, keyed by id.
func (s *CatalogStore) GetSKUs(ctx context.Context, ids []string) (map[string]catalog.SKU, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, product_name, image_path, attributes, inventory_status
		FROM skus WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	skus := make(map[string]catalog.SKU, len(ids))
	for rows.Next() {
		sku, err := scanSKU(rows)
		if err != nil {
			return nil, err
		}
		skus[sku.ID] = *sku
	}
	return skus, rows.Err()
}

func (s *CatalogStore) GetShippingMethod(ctx context.Context, id string) (*catalog.ShippingMethod, error) {
	var method catalog.ShippingMethod
	var costText string
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, carrier, cost::text FROM shipping_methods WHERE id = $1
	`, id).Scan(&method.ID, &method.Name, &method.Carrier, &costText)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: shipping method %s", catalog.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	if method.Cost, err = parseNumeric(costText); err != nil {
		return nil, err
	}
	return &method, nil
}

func (s *CatalogStore) GetDiscountCode(ctx context.Context, code string) (*discount.Code, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT code, kind, amount::text, order_minimum::text, combinable, valid_from, valid_until
		FROM discount_codes WHERE code = $1
	`, code)
	out, err := scanDiscountCode(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: discount code %s", catalog.ErrNotFound, code)
	}
	return out, err
}

func scanDiscountCode(row rowScanner) (*discount.Code, error) {
	var code discount.Code
	var kind, amountText, minimumText string
	if err := row.Scan(&code.Code, &kind, &amountText, &minimumText, &code.Combinable, &code.ValidFrom, &code.ValidUntil); err != nil {
		return nil, err
	}

	var err error
	if code.Kind, err = discount.ParseKind(kind); err != nil {
		return nil, err
	}
	if code.Amount, err = parseNumeric(amountText); err != nil {
		return nil, err
	}
	if code.OrderMinimum, err = parseNumeric(minimumText); err != nil {
		return nil, err
	}
	return &code, nil
}
