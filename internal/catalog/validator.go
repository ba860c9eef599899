package catalog

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gitshopapp/storefront/internal/discount"
	"github.com/gitshopapp/storefront/internal/pricing"
)

var skuIDPattern = regexp.MustCompile(`^[A-Z0-9][A-Z0-9_-]{0,63}$`)

// IsValidSKUID reports whether id is an uppercase SKU identifier.
func IsValidSKUID(id string) bool {
	return skuIDPattern.MatchString(id)
}

// Catalog is a validated catalog file converted to domain values.
type Catalog struct {
	SKUs            []SKU
	Prices          map[string]decimal.Decimal
	ShippingMethods []ShippingMethod
	DiscountCodes   []discount.Code
}

type Validator struct{}

func NewValidator() *Validator {
	return &Validator{}
}

func (v *Validator) Validate(file *File) (*Catalog, error) {
	if file == nil {
		return nil, fmt.Errorf("catalog is required")
	}
	if len(file.SKUs) == 0 {
		return nil, fmt.Errorf("at least one SKU is required")
	}

	out := &Catalog{Prices: make(map[string]decimal.Decimal, len(file.SKUs))}

	for i, cfg := range file.SKUs {
		sku, price, err := v.validateSKU(cfg)
		if err != nil {
			return nil, fmt.Errorf("sku %d validation failed: %w", i, err)
		}
		if _, dup := out.Prices[sku.ID]; dup {
			return nil, fmt.Errorf("duplicate SKU: %s", sku.ID)
		}
		out.SKUs = append(out.SKUs, sku)
		out.Prices[sku.ID] = price
	}

	methodIDs := make(map[string]bool)
	for i, cfg := range file.ShippingMethods {
		method, err := v.validateShippingMethod(cfg)
		if err != nil {
			return nil, fmt.Errorf("shipping method %d validation failed: %w", i, err)
		}
		if methodIDs[method.ID] {
			return nil, fmt.Errorf("duplicate shipping method: %s", method.ID)
		}
		methodIDs[method.ID] = true
		out.ShippingMethods = append(out.ShippingMethods, method)
	}

	codes := make(map[string]bool)
	for i, cfg := range file.DiscountCodes {
		code, err := v.validateDiscountCode(cfg)
		if err != nil {
			return nil, fmt.Errorf("discount code %d validation failed: %w", i, err)
		}
		if codes[code.Code] {
			return nil, fmt.Errorf("duplicate discount code: %s", code.Code)
		}
		codes[code.Code] = true
		out.DiscountCodes = append(out.DiscountCodes, code)
	}

	return out, nil
}

func (v *Validator) validateSKU(cfg SKUConfig) (SKU, decimal.Decimal, error) {
	id := strings.TrimSpace(cfg.ID)
	if !IsValidSKUID(id) {
		return SKU{}, decimal.Zero, fmt.Errorf("sku id %q must be uppercase letters, digits, '-' or '_'", cfg.ID)
	}
	if strings.TrimSpace(cfg.ProductName) == "" {
		return SKU{}, decimal.Zero, fmt.Errorf("product name is required")
	}

	price, err := pricing.ParsePrice(cfg.Price)
	if err != nil {
		return SKU{}, decimal.Zero, err
	}
	if !price.IsPositive() {
		return SKU{}, decimal.Zero, fmt.Errorf("price must be positive")
	}

	status := InventoryStatus(strings.TrimSpace(cfg.InventoryStatus))
	switch status {
	case "":
		status = InventoryInStock
	case InventoryInStock, InventoryLowStock, InventoryOutOfStock:
	default:
		return SKU{}, decimal.Zero, fmt.Errorf("unknown inventory status %q", cfg.InventoryStatus)
	}

	return SKU{
		ID:              id,
		ProductName:     strings.TrimSpace(cfg.ProductName),
		ImagePath:       strings.TrimSpace(cfg.ImagePath),
		Attributes:      cfg.Attributes,
		InventoryStatus: status,
	}, price, nil
}

func (v *Validator) validateShippingMethod(cfg ShippingMethodConfig) (ShippingMethod, error) {
	id := strings.TrimSpace(cfg.ID)
	if id == "" {
		return ShippingMethod{}, fmt.Errorf("shipping method id is required")
	}
	if strings.TrimSpace(cfg.Name) == "" {
		return ShippingMethod{}, fmt.Errorf("shipping method name is required")
	}

	cost, err := pricing.ParsePrice(cfg.Cost)
	if err != nil {
		return ShippingMethod{}, fmt.Errorf("shipping cost: %w", err)
	}

	carrier := NormalizeCarrierName(cfg.Carrier)
	if carrier == "" {
		return ShippingMethod{}, fmt.Errorf("shipping carrier is required")
	}

	return ShippingMethod{
		ID:      id,
		Name:    strings.TrimSpace(cfg.Name),
		Carrier: carrier,
		Cost:    cost,
	}, nil
}

func (v *Validator) validateDiscountCode(cfg DiscountCodeConfig) (discount.Code, error) {
	kind, err := discount.ParseKind(cfg.Kind)
	if err != nil {
		return discount.Code{}, err
	}

	amount := decimal.Zero
	if strings.TrimSpace(cfg.Amount) != "" {
		amount, err = decimal.NewFromString(strings.TrimSpace(cfg.Amount))
		if err != nil {
			return discount.Code{}, fmt.Errorf("invalid amount %q", cfg.Amount)
		}
	}

	minimum := decimal.Zero
	if strings.TrimSpace(cfg.OrderMinimum) != "" {
		minimum, err = pricing.ParsePrice(cfg.OrderMinimum)
		if err != nil {
			return discount.Code{}, fmt.Errorf("order minimum: %w", err)
		}
	}

	validFrom, err := time.Parse(time.RFC3339, strings.TrimSpace(cfg.ValidFrom))
	if err != nil {
		return discount.Code{}, fmt.Errorf("valid_from must be RFC 3339: %w", err)
	}
	validUntil, err := time.Parse(time.RFC3339, strings.TrimSpace(cfg.ValidUntil))
	if err != nil {
		return discount.Code{}, fmt.Errorf("valid_until must be RFC 3339: %w", err)
	}

	code := discount.Code{
		Code:         strings.ToUpper(strings.TrimSpace(cfg.Code)),
		Kind:         kind,
		Amount:       amount,
		OrderMinimum: minimum,
		Combinable:   cfg.Combinable,
		ValidFrom:    validFrom.UTC(),
		ValidUntil:   validUntil.UTC(),
	}
	if err := code.Validate(); err != nil {
		return discount.Code{}, err
	}
	return code, nil
}
