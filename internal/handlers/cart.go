package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/gitshopapp/storefront/internal/cart"
	"github.com/gitshopapp/storefront/internal/services"
)

type cartLineResponse struct {
	SKU         string `json:"sku"`
	ProductName string `json:"product_name"`
	ImagePath   string `json:"image_path,omitempty"`
	Quantity    int    `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
	LineTotal   string `json:"line_total"`
}

type shippingMethodResponse struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Carrier string `json:"carrier,omitempty"`
	Cost    string `json:"cost"`
}

type totalsResponse struct {
	ItemSubtotal         string `json:"item_subtotal"`
	ItemDiscount         string `json:"item_discount"`
	ItemDiscountCode     string `json:"item_discount_code,omitempty"`
	ShippingSubtotal     string `json:"shipping_subtotal"`
	ShippingDiscount     string `json:"shipping_discount"`
	ShippingDiscountCode string `json:"shipping_discount_code,omitempty"`
	Total                string `json:"total"`
}

type cartResponse struct {
	CartID         string                  `json:"cart_id,omitempty"`
	Lines          []cartLineResponse      `json:"lines"`
	ShippingMethod *shippingMethodResponse `json:"shipping_method,omitempty"`
	DiscountCodes  []string                `json:"discount_codes"`
	Totals         totalsResponse          `json:"totals"`
}

func amount(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func newCartResponse(summary *services.CartSummary) cartResponse {
	resp := cartResponse{
		Lines:         make([]cartLineResponse, 0, len(summary.Lines)),
		DiscountCodes: summary.DiscountCodes,
		Totals: totalsResponse{
			ItemSubtotal:         amount(summary.Totals.ItemSubtotal),
			ItemDiscount:         amount(summary.Totals.ItemDiscount),
			ItemDiscountCode:     summary.Totals.ItemCode,
			ShippingSubtotal:     amount(summary.Totals.ShippingSubtotal),
			ShippingDiscount:     amount(summary.Totals.ShippingDiscount),
			ShippingDiscountCode: summary.Totals.ShippingCode,
			Total:                amount(summary.Totals.Total),
		},
	}
	if resp.DiscountCodes == nil {
		resp.DiscountCodes = []string{}
	}
	if summary.Cart != nil {
		resp.CartID = summary.Cart.ID.String()
	}
	for _, line := range summary.Lines {
		resp.Lines = append(resp.Lines, cartLineResponse{
			SKU:         line.SKU,
			ProductName: line.ProductName,
			ImagePath:   line.ImagePath,
			Quantity:    line.Quantity,
			UnitPrice:   amount(line.UnitPrice),
			LineTotal:   amount(line.LineTotal),
		})
	}
	if method := summary.ShippingMethod; method != nil {
		resp.ShippingMethod = &shippingMethodResponse{
			ID:      method.ID,
			Name:    method.Name,
			Carrier: method.Carrier,
			Cost:    amount(method.Cost),
		}
	}
	return resp
}

func (h *Handlers) GetCart(w http.ResponseWriter, r *http.Request) {
	h.writeCart(w, r)
}

func (h *Handlers) writeCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	summary, err := h.carts.Summary(ctx, identityFromContext(ctx).Owner())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, h.loggerFromContext(ctx), http.StatusOK, newCartResponse(summary))
}

type addLineRequest struct {
	SKU string `json:"sku"`
	// Quantity accepts a JSON number or string so non-integers reach the
	// quantity validation instead of failing to decode.
	Quantity json.RawMessage `json:"quantity"`
}

func rawQuantity(raw json.RawMessage) (string, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return "", nil
	}
	if strings.HasPrefix(trimmed, `"`) {
		var value string
		if err := json.Unmarshal(raw, &value); err != nil {
			return "", fmt.Errorf("invalid quantity: %w", err)
		}
		return value, nil
	}
	return trimmed, nil
}

func (h *Handlers) AddCartLine(w http.ResponseWriter, r *http.Request) {
	var req addLineRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeBadRequest(w, r, err)
		return
	}
	quantity, err := rawQuantity(req.Quantity)
	if err != nil {
		h.writeError(w, r, &cart.ValidationError{Field: "quantity", Code: cart.CodeNotAnInt})
		return
	}

	ctx := r.Context()
	if _, err := h.carts.AddLine(ctx, identityFromContext(ctx).Owner(), req.SKU, quantity); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeCart(w, r)
}

type shippingRequest struct {
	ShippingMethodID string `json:"shipping_method_id"`
}

func (h *Handlers) SelectShippingMethod(w http.ResponseWriter, r *http.Request) {
	var req shippingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeBadRequest(w, r, err)
		return
	}

	ctx := r.Context()
	if _, err := h.carts.SelectShippingMethod(ctx, identityFromContext(ctx).Owner(), req.ShippingMethodID); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeCart(w, r)
}

type discountRequest struct {
	Code string `json:"code"`
}

func (h *Handlers) ApplyDiscountCode(w http.ResponseWriter, r *http.Request) {
	var req discountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeBadRequest(w, r, err)
		return
	}

	ctx := r.Context()
	if _, err := h.carts.ApplyDiscountCode(ctx, identityFromContext(ctx).Owner(), req.Code); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeCart(w, r)
}

// MergeCart moves the visitor's anonymous cart into the signed-in member's
// cart and ends the anonymous session.
func (h *Handlers) MergeCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity := identityFromContext(ctx)

	moved, err := h.carts.MergeOnLogin(ctx, identity.Member.ID, identity.AnonymousID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if identity.AnonymousID != "" {
		h.sessionManager.Destroy(ctx, w, r)
	}

	summary, err := h.carts.Summary(ctx, identity.Owner())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, h.loggerFromContext(ctx), http.StatusOK, struct {
		MovedLines int `json:"moved_lines"`
		cartResponse
	}{
		MovedLines:   moved,
		cartResponse: newCartResponse(summary),
	})
}
