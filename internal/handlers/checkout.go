package handlers

import (
	"net/http"
	"net/netip"

	"github.com/gitshopapp/storefront/internal/services"
)

type checkoutRequest struct {
	Email string `json:"email"`
}

type checkoutResponse struct {
	SessionID   string `json:"session_id"`
	CheckoutURL string `json:"checkout_url"`
}

func (h *Handlers) CreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeBadRequest(w, r, err)
		return
	}

	ctx := r.Context()
	identity := identityFromContext(ctx)
	email := req.Email
	if email == "" && identity.Member != nil {
		email = identity.Member.Email
	}

	// An unparseable address stays invalid and fails any network allow-list.
	addr, _ := netip.ParseAddr(clientIP(r))

	session, err := h.checkout.CreateSession(ctx, services.CheckoutRequest{
		Owner:         identity.Owner(),
		CustomerEmail: email,
		ClientIP:      addr,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, h.loggerFromContext(ctx), http.StatusOK, checkoutResponse{
		SessionID:   session.ID,
		CheckoutURL: session.URL,
	})
}
