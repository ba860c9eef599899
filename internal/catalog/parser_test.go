package catalog

import (
	"testing"
)

const sampleCatalog = `
skus:
  - id: "TEE-BLK-M"
    product_name: "Logo Tee"
    image_path: "/images/tee-black.png"
    price: "25.00"
    attributes:
      color: black
      size: M
  - id: "MUG-WHT"
    product_name: "Enamel Mug"
    image_path: "https://cdn.example.com/mug.png"
    price: "12.50"
    inventory_status: low_stock
shipping_methods:
  - id: "usps-ground"
    name: "USPS Ground"
    carrier: "usps"
    cost: "7.00"
  - id: "ups-2day"
    name: "UPS 2nd Day Air"
    carrier: "United Parcel Service"
    cost: "18.00"
discount_codes:
  - code: "welcome10"
    kind: percent_off
    amount: "10"
    order_minimum: "20.00"
    valid_from: "2026-01-01T00:00:00Z"
    valid_until: "2027-01-01T00:00:00Z"
  - code: "SHIPFREE"
    kind: free_shipping_usps_ground
    combinable: true
    valid_from: "2026-01-01T00:00:00Z"
    valid_until: "2027-01-01T00:00:00Z"
`

func TestParser_Parse(t *testing.T) {
	tests := []struct {
		name     string
		yaml     string
		wantErr  bool
		wantSKUs int
	}{
		{
			name:     "valid catalog",
			yaml:     sampleCatalog,
			wantSKUs: 2,
		},
		{
			name:    "invalid yaml",
			yaml:    "skus: [unterminated",
			wantErr: true,
		},
	}

	parser := NewParser()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			file, err := parser.Parse([]byte(tt.yaml))

			if tt.wantErr {
				if err == nil {
					t.Error("expected error but got none")
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(file.SKUs) != tt.wantSKUs {
				t.Fatalf("expected %d skus, got %d", tt.wantSKUs, len(file.SKUs))
			}
			if file.SKUs[0].Attributes["color"] != "black" {
				t.Errorf("expected color attribute 'black', got %q", file.SKUs[0].Attributes["color"])
			}
			if len(file.DiscountCodes) != 2 {
				t.Errorf("expected 2 discount codes, got %d", len(file.DiscountCodes))
			}
		})
	}
}
