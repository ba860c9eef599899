package services

import (
	"strings"

	"github.com/gitshopapp/storefront/internal/email"
	"github.com/gitshopapp/storefront/internal/order"
	"github.com/gitshopapp/storefront/internal/pricing"
)

// ShopInfo names the storefront in customer email.
type ShopInfo struct {
	Name string
	URL  string
}

// BuildOrderInfo builds the email template payload for o.
func BuildOrderInfo(shop ShopInfo, o *order.Order) *email.OrderInfo {
	if o == nil {
		return &email.OrderInfo{ShopName: shop.Name, ShopURL: shop.URL}
	}

	customerName := strings.TrimSpace(o.ShippingAddress.Name)
	if customerName == "" {
		customerName = strings.TrimSpace(o.BillingAddress.Name)
	}

	info := &email.OrderInfo{
		OrderNumber:          o.Identifier,
		CustomerName:         customerName,
		CustomerEmail:        strings.TrimSpace(o.CustomerEmail),
		ShopName:             shop.Name,
		ShopURL:              shop.URL,
		OrderDate:            o.CreatedAt.Format("January 2, 2006"),
		Items:                make([]email.OrderItem, 0, len(o.Lines)),
		ItemSubtotal:         pricing.Format(o.ItemSubtotal),
		ItemDiscount:         pricing.Format(o.ItemDiscount),
		ItemDiscountCode:     o.ItemDiscountCode,
		ShippingMethod:       o.ShippingMethodName,
		Shipping:             pricing.Format(o.ShippingSubtotal),
		ShippingDiscount:     pricing.Format(o.ShippingDiscount),
		ShippingDiscountCode: o.ShippingDiscountCode,
		Tax:                  pricing.Format(o.Tax),
		Total:                pricing.Format(o.Total),
		ShippingAddress:      formatAddress(o.ShippingAddress),
	}
	for _, line := range o.Lines {
		info.Items = append(info.Items, email.OrderItem{
			Name:       line.ProductName,
			SKU:        line.SKU,
			Quantity:   line.Quantity,
			UnitPrice:  pricing.Format(line.UnitPrice),
			TotalPrice: pricing.Format(line.LineTotal),
		})
	}
	return info
}

// formatAddress renders a postal address one component per line.
func formatAddress(address order.Address) string {
	if strings.TrimSpace(address.Line1) == "" {
		return ""
	}

	var lines []string
	if name := strings.TrimSpace(address.Name); name != "" {
		lines = append(lines, name)
	}
	lines = append(lines, strings.TrimSpace(address.Line1))
	if line2 := strings.TrimSpace(address.Line2); line2 != "" {
		lines = append(lines, line2)
	}

	cityStatePostal := strings.TrimSpace(strings.TrimSpace(address.City) + ", " + strings.TrimSpace(address.State) + " " + strings.TrimSpace(address.PostalCode))
	cityStatePostal = strings.Trim(cityStatePostal, ", ")
	if cityStatePostal != "" {
		lines = append(lines, cityStatePostal)
	}
	if country := strings.TrimSpace(address.Country); country != "" {
		lines = append(lines, country)
	}
	return strings.Join(lines, "\n")
}
