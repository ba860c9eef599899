package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/gitshopapp/storefront/internal/order"
)

type orderLineResponse struct {
	SKU         string `json:"sku"`
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
	LineTotal   string `json:"line_total"`
}

type orderStatusResponse struct {
	Status    string    `json:"status"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type orderResponse struct {
	Identifier      string                `json:"identifier"`
	Status          string                `json:"status"`
	CustomerEmail   string                `json:"customer_email,omitempty"`
	Lines           []orderLineResponse   `json:"lines"`
	ShippingMethod  string                `json:"shipping_method,omitempty"`
	Totals          totalsResponse        `json:"totals"`
	ShippingAddress *order.Address        `json:"shipping_address,omitempty"`
	StatusHistory   []orderStatusResponse `json:"status_history"`
	CreatedAt       time.Time             `json:"created_at"`
}

func newOrderResponse(o *order.Order) orderResponse {
	resp := orderResponse{
		Identifier:     o.Identifier,
		Status:         string(o.Status()),
		CustomerEmail:  o.CustomerEmail,
		Lines:          make([]orderLineResponse, 0, len(o.Lines)),
		ShippingMethod: o.ShippingMethodName,
		Totals: totalsResponse{
			ItemSubtotal:         amount(o.ItemSubtotal),
			ItemDiscount:         amount(o.ItemDiscount),
			ItemDiscountCode:     o.ItemDiscountCode,
			ShippingSubtotal:     amount(o.ShippingSubtotal),
			ShippingDiscount:     amount(o.ShippingDiscount),
			ShippingDiscountCode: o.ShippingDiscountCode,
			Total:                amount(o.Total),
		},
		StatusHistory: make([]orderStatusResponse, 0, len(o.StatusHistory)),
		CreatedAt:     o.CreatedAt,
	}
	for _, line := range o.Lines {
		resp.Lines = append(resp.Lines, orderLineResponse{
			SKU:         line.SKU,
			ProductName: line.ProductName,
			Quantity:    line.Quantity,
			UnitPrice:   amount(line.UnitPrice),
			LineTotal:   amount(line.LineTotal),
		})
	}
	for _, entry := range o.StatusHistory {
		resp.StatusHistory = append(resp.StatusHistory, orderStatusResponse{
			Status:    string(entry.Status),
			Note:      entry.Note,
			CreatedAt: entry.CreatedAt,
		})
	}
	if !o.ShippingAddress.IsZero() {
		address := o.ShippingAddress
		resp.ShippingAddress = &address
	}
	return resp
}

func (h *Handlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity := identityFromContext(ctx)

	o, err := h.orders.GetForMember(ctx, identity.Member.ID, mux.Vars(r)["identifier"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, h.loggerFromContext(ctx), http.StatusOK, newOrderResponse(o))
}
