package handlers

import (
	"errors"
	"net/http"

	"github.com/gitshopapp/storefront/internal/auth"
	"github.com/gitshopapp/storefront/internal/cart"
	"github.com/gitshopapp/storefront/internal/services"
	"github.com/gitshopapp/storefront/internal/stripe"
)

type fieldError struct {
	Field string `json:"field"`
	Code  string `json:"code"`
}

type errorResponse struct {
	Error  string       `json:"error,omitempty"`
	Errors []fieldError `json:"errors,omitempty"`
}

// errorCodeBadRequest is returned for request bodies that are not JSON.
const errorCodeBadRequest = "invalid-request"

// writeError maps service errors onto the API's error responses. Not-found
// references are reported with a 200 so clients handle them as data.
func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	logger := h.loggerFromContext(r.Context())

	var (
		validationErr *cart.ValidationError
		notFoundErr   cart.NotFoundError
		processorErr  *stripe.ProcessorError
	)
	switch {
	case errors.As(err, &validationErr):
		writeJSON(w, logger, http.StatusUnprocessableEntity, errorResponse{
			Errors: []fieldError{{Field: validationErr.Field, Code: validationErr.Code}},
		})
	case errors.As(err, &notFoundErr):
		writeJSON(w, logger, http.StatusOK, errorResponse{Error: string(notFoundErr)})
	case errors.Is(err, cart.ErrCartIsEmpty):
		writeJSON(w, logger, http.StatusUnprocessableEntity, errorResponse{Error: "cart-is-empty"})
	case errors.Is(err, services.ErrCheckoutNotAllowed):
		writeJSON(w, logger, http.StatusForbidden, errorResponse{Error: "checkout-not-allowed"})
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrMissingToken):
		writeJSON(w, logger, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
	case errors.As(err, &processorErr):
		logger.Error("payment processor call failed", "error", err, "op", processorErr.Op)
		writeJSON(w, logger, http.StatusBadGateway, errorResponse{Error: "processor-error"})
	case errors.Is(err, stripe.ErrInvalidSignature):
		writeJSON(w, logger, http.StatusBadRequest, errorResponse{Error: "invalid-signature"})
	case errors.Is(err, stripe.ErrInvalidPayload):
		writeJSON(w, logger, http.StatusBadRequest, errorResponse{Error: "invalid-payload"})
	default:
		logger.Error("request failed", "error", err)
		writeJSON(w, logger, http.StatusInternalServerError, errorResponse{Error: "internal-error"})
	}
}

func (h *Handlers) writeBadRequest(w http.ResponseWriter, r *http.Request, err error) {
	logger := h.loggerFromContext(r.Context())
	logger.Warn("rejected request body", "error", err)
	writeJSON(w, logger, http.StatusBadRequest, errorResponse{Error: errorCodeBadRequest})
}
