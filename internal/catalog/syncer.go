package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gitshopapp/storefront/internal/discount"
)

// Store persists catalog entities. Price history is append-only.
type Store interface {
	UpsertSKU(ctx context.Context, sku SKU) error
	UpsertShippingMethod(ctx context.Context, method ShippingMethod) error
	UpsertDiscountCode(ctx context.Context, code discount.Code) error
	CurrentPrices(ctx context.Context, at time.Time) (map[string]decimal.Decimal, error)
	AppendPrice(ctx context.Context, sku string, price decimal.Decimal, effectiveAt time.Time) error
}

type SyncResult struct {
	SKUs            int
	PriceChanges    int
	ShippingMethods int
	DiscountCodes   int
}

type Syncer struct {
	store     Store
	parser    *Parser
	validator *Validator
	logger    *slog.Logger
	now       func() time.Time
}

func NewSyncer(store Store, logger *slog.Logger) *Syncer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{
		store:     store,
		parser:    NewParser(),
		validator: NewValidator(),
		logger:    logger.With("component", "catalog_syncer"),
		now:       time.Now,
	}
}

func (s *Syncer) SyncFile(ctx context.Context, path string) (SyncResult, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return SyncResult{}, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}
	file, err := s.parser.Parse(content)
	if err != nil {
		return SyncResult{}, err
	}
	return s.Sync(ctx, file)
}

// Sync upserts every entity in file and appends a price history entry for
// each SKU whose listed price differs from its current price.
func (s *Syncer) Sync(ctx context.Context, file *File) (SyncResult, error) {
	catalog, err := s.validator.Validate(file)
	if err != nil {
		return SyncResult{}, fmt.Errorf("invalid catalog: %w", err)
	}

	now := s.now().UTC()
	result := SyncResult{}

	for _, sku := range catalog.SKUs {
		if err := s.store.UpsertSKU(ctx, sku); err != nil {
			return result, fmt.Errorf("failed to upsert sku %s: %w", sku.ID, err)
		}
		result.SKUs++
	}

	current, err := s.store.CurrentPrices(ctx, now)
	if err != nil {
		return result, fmt.Errorf("failed to load current prices: %w", err)
	}
	for _, change := range PriceChanges(catalog, current) {
		if err := s.store.AppendPrice(ctx, change.SKU, change.Price, now); err != nil {
			return result, fmt.Errorf("failed to append price for %s: %w", change.SKU, err)
		}
		s.logger.InfoContext(ctx, "catalog price changed",
			"sku", change.SKU,
			"previous_price", change.Previous.StringFixed(2),
			"price", change.Price.StringFixed(2),
		)
		result.PriceChanges++
	}

	for _, method := range catalog.ShippingMethods {
		if err := s.store.UpsertShippingMethod(ctx, method); err != nil {
			return result, fmt.Errorf("failed to upsert shipping method %s: %w", method.ID, err)
		}
		result.ShippingMethods++
	}

	for _, code := range catalog.DiscountCodes {
		if err := s.store.UpsertDiscountCode(ctx, code); err != nil {
			return result, fmt.Errorf("failed to upsert discount code %s: %w", code.Code, err)
		}
		result.DiscountCodes++
	}

	s.logger.InfoContext(ctx, "catalog synced",
		"skus", result.SKUs,
		"price_changes", result.PriceChanges,
		"shipping_methods", result.ShippingMethods,
		"discount_codes", result.DiscountCodes,
	)
	return result, nil
}

type PriceChange struct {
	SKU      string
	Previous decimal.Decimal
	Price    decimal.Decimal
}

// PriceChanges lists SKUs whose catalog price is new or differs from current,
// in catalog order.
func PriceChanges(catalog *Catalog, current map[string]decimal.Decimal) []PriceChange {
	var changes []PriceChange
	for _, sku := range catalog.SKUs {
		price := catalog.Prices[sku.ID]
		previous, ok := current[sku.ID]
		if ok && previous.Equal(price) {
			continue
		}
		changes = append(changes, PriceChange{SKU: sku.ID, Previous: previous, Price: price})
	}
	return changes
}
