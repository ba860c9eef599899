package catalog

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// File is the on-disk catalog document.
type File struct {
	SKUs            []SKUConfig            `yaml:"skus"`
	ShippingMethods []ShippingMethodConfig `yaml:"shipping_methods"`
	DiscountCodes   []DiscountCodeConfig   `yaml:"discount_codes"`
}

type SKUConfig struct {
	ID              string            `yaml:"id"`
	ProductName     string            `yaml:"product_name"`
	ImagePath       string            `yaml:"image_path"`
	Price           string            `yaml:"price"`
	InventoryStatus string            `yaml:"inventory_status"`
	Attributes      map[string]string `yaml:"attributes"`
}

type ShippingMethodConfig struct {
	ID      string `yaml:"id"`
	Name    string `yaml:"name"`
	Carrier string `yaml:"carrier"`
	Cost    string `yaml:"cost"`
}

type DiscountCodeConfig struct {
	Code         string `yaml:"code"`
	Kind         string `yaml:"kind"`
	Amount       string `yaml:"amount"`
	OrderMinimum string `yaml:"order_minimum"`
	Combinable   bool   `yaml:"combinable"`
	ValidFrom    string `yaml:"valid_from"`
	ValidUntil   string `yaml:"valid_until"`
}

type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

func (p *Parser) Parse(content []byte) (*File, error) {
	var file File
	if err := yaml.Unmarshal(content, &file); err != nil {
		return nil, fmt.Errorf("failed to parse catalog YAML: %w", err)
	}

	return &file, nil
}
