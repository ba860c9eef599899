package email

import (
	"bytes"
	"context"
	"fmt"
	htmltemplate "html/template"
	"strings"
	"text/template"
)

// OrderInfo is the data rendered into order emails. Amounts are preformatted.
type OrderInfo struct {
	OrderNumber          string
	CustomerName         string
	CustomerEmail        string
	ShopName             string
	ShopURL              string
	OrderDate            string
	Items                []OrderItem
	ItemSubtotal         string
	ItemDiscount         string
	ItemDiscountCode     string
	ShippingMethod       string
	Shipping             string
	ShippingDiscount     string
	ShippingDiscountCode string
	Tax                  string
	Total                string
	ShippingAddress      string
}

type OrderItem struct {
	Name       string
	SKU        string
	Quantity   int
	UnitPrice  string
	TotalPrice string
}

// ShippingAddressLines splits the formatted address for the HTML template.
func (o *OrderInfo) ShippingAddressLines() []string {
	if strings.TrimSpace(o.ShippingAddress) == "" {
		return nil
	}
	return strings.Split(o.ShippingAddress, "\n")
}

// Renderer renders the order confirmation templates.
type Renderer struct {
	text *template.Template
	html *htmltemplate.Template
}

func NewRenderer() (*Renderer, error) {
	text, err := template.New("order_confirmation_text").Parse(orderConfirmationText)
	if err != nil {
		return nil, fmt.Errorf("failed to parse text template: %w", err)
	}
	html, err := htmltemplate.New("order_confirmation_html").Parse(orderConfirmationHTML)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML template: %w", err)
	}
	return &Renderer{text: text, html: html}, nil
}

// RenderOrderConfirmation renders the confirmation email addressed to the
// order's customer.
func (r *Renderer) RenderOrderConfirmation(_ context.Context, data *OrderInfo) (*Email, error) {
	if data == nil {
		return nil, fmt.Errorf("order info is required")
	}

	var htmlBuf, textBuf bytes.Buffer
	if err := r.html.Execute(&htmlBuf, data); err != nil {
		return nil, fmt.Errorf("failed to render HTML template: %w", err)
	}
	if err := r.text.Execute(&textBuf, data); err != nil {
		return nil, fmt.Errorf("failed to render text template: %w", err)
	}

	subject := fmt.Sprintf("Order Confirmed - %s", data.OrderNumber)
	if data.ShopName != "" {
		subject += " - " + data.ShopName
	}

	return &Email{
		To:      data.CustomerEmail,
		Subject: subject,
		Text:    textBuf.String(),
		HTML:    htmlBuf.String(),
	}, nil
}

// SendOrderConfirmation renders and sends the confirmation email. A nil
// provider means email is disabled.
func SendOrderConfirmation(ctx context.Context, p Provider, renderer *Renderer, orderInfo *OrderInfo) error {
	if p == nil {
		return nil
	}
	if orderInfo == nil || strings.TrimSpace(orderInfo.CustomerEmail) == "" {
		return fmt.Errorf("order confirmation requires a customer email")
	}
	if renderer == nil {
		var err error
		renderer, err = NewRenderer()
		if err != nil {
			return fmt.Errorf("failed to create renderer: %w", err)
		}
	}

	email, err := renderer.RenderOrderConfirmation(ctx, orderInfo)
	if err != nil {
		return fmt.Errorf("failed to render template: %w", err)
	}
	return p.SendEmail(ctx, email)
}

const orderConfirmationText = `Thank you for your order!

Order Number: {{.OrderNumber}}
Order Date: {{.OrderDate}}

Items:
{{range .Items}}- {{.Name}} ({{.SKU}}) x{{.Quantity}} @ {{.UnitPrice}} = {{.TotalPrice}}
{{end}}
Items: {{.ItemSubtotal}}
{{if .ItemDiscountCode}}Discount ({{.ItemDiscountCode}}): -{{.ItemDiscount}}
{{end}}Shipping{{if .ShippingMethod}} ({{.ShippingMethod}}){{end}}: {{.Shipping}}
{{if .ShippingDiscountCode}}Shipping discount ({{.ShippingDiscountCode}}): -{{.ShippingDiscount}}
{{end}}Tax: {{.Tax}}
Total: {{.Total}}
{{if .ShippingAddress}}
Shipping to:
{{.ShippingAddress}}
{{end}}
We'll send you another email when your order ships.
{{if .ShopName}}
Thank you for shopping with {{.ShopName}}!
{{end}}{{.ShopURL}}
`

const orderConfirmationHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>Order Confirmation</title>
  <style>
    body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
    .header { background: #2563eb; color: white; padding: 20px; text-align: center; border-radius: 8px 8px 0 0; }
    .content { background: #f9fafb; padding: 20px; border: 1px solid #e5e7eb; }
    .order-info { background: white; padding: 15px; border-radius: 6px; margin: 15px 0; }
    .items-table { width: 100%; border-collapse: collapse; margin: 15px 0; }
    .items-table th { text-align: left; padding: 10px; background: #f3f4f6; border-bottom: 2px solid #e5e7eb; }
    .items-table td { padding: 10px; border-bottom: 1px solid #e5e7eb; }
    .totals { text-align: right; padding: 15px 0; }
    .total { font-size: 18px; font-weight: bold; }
    .footer { text-align: center; padding: 20px; color: #6b7280; font-size: 14px; }
  </style>
</head>
<body>
  <div class="header">
    <h1>Order Confirmed!</h1>
    <p>Thank you for your order{{if .CustomerName}}, {{.CustomerName}}{{end}}</p>
  </div>
  <div class="content">
    <div class="order-info">
      <strong>Order Number:</strong> {{.OrderNumber}}<br>
      <strong>Order Date:</strong> {{.OrderDate}}
    </div>

    <h3>Order Summary</h3>
    <table class="items-table">
      <thead>
        <tr>
          <th>Item</th>
          <th>Qty</th>
          <th>Price</th>
        </tr>
      </thead>
      <tbody>
        {{range .Items}}
        <tr>
          <td>{{.Name}}<br><small>{{.SKU}}</small></td>
          <td>{{.Quantity}}</td>
          <td>{{.TotalPrice}}</td>
        </tr>
        {{end}}
      </tbody>
    </table>

    <div class="totals">
      <p>Items: {{.ItemSubtotal}}</p>
      {{if .ItemDiscountCode}}<p>Discount ({{.ItemDiscountCode}}): -{{.ItemDiscount}}</p>{{end}}
      <p>Shipping{{if .ShippingMethod}} ({{.ShippingMethod}}){{end}}: {{.Shipping}}</p>
      {{if .ShippingDiscountCode}}<p>Shipping discount ({{.ShippingDiscountCode}}): -{{.ShippingDiscount}}</p>{{end}}
      <p>Tax: {{.Tax}}</p>
      <p class="total">Total: {{.Total}}</p>
    </div>

    {{with .ShippingAddressLines}}
    <h3>Shipping Address</h3>
    <p>{{range $i, $line := .}}{{if $i}}<br>{{end}}{{$line}}{{end}}</p>
    {{end}}

    <p>We'll send you another email when your order ships.</p>
  </div>
  <div class="footer">
    <p>Thank you for shopping{{if .ShopName}} with {{if .ShopURL}}<a href="{{.ShopURL}}">{{.ShopName}}</a>{{else}}{{.ShopName}}{{end}}{{end}}</p>
  </div>
</body>
</html>
`
