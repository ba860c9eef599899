// Package catalog describes what the storefront sells and loads it from a
// YAML catalog file.
package catalog

import (
	"errors"

	"github.com/shopspring/decimal"
)

var ErrNotFound = errors.New("catalog entry not found")

// InventoryStatus is informational; carts do not reserve stock.
type InventoryStatus string

const (
	InventoryInStock    InventoryStatus = "in_stock"
	InventoryLowStock   InventoryStatus = "low_stock"
	InventoryOutOfStock InventoryStatus = "out_of_stock"
)

// SKU is a unit of sale. Its price lives in the price history.
type SKU struct {
	ID              string
	ProductName     string
	ImagePath       string
	Attributes      map[string]string
	InventoryStatus InventoryStatus
}

type ShippingMethod struct {
	ID      string
	Name    string
	Carrier string
	Cost    decimal.Decimal
}
