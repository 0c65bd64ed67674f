package handlers

import (
	"errors"
	"net/http"

	"github.com/paycartapp/paycart/internal/checkout"
)

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// writeCheckoutError translates the checkout error taxonomy into HTTP
// responses. Anything unrecognized is a 500 with a generic message; the
// detail stays in the logs.
func (h *Handlers) writeCheckoutError(w http.ResponseWriter, r *http.Request, err error) {
	var validationErr *checkout.ValidationError
	if errors.As(err, &validationErr) {
		h.writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: validationErr.Message, Field: validationErr.Field})
		return
	}

	var unavailableErr *checkout.ProductUnavailableError
	if errors.As(err, &unavailableErr) {
		h.writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: unavailableErr.Error()})
		return
	}

	switch {
	case errors.Is(err, checkout.ErrOrderNotFound):
		h.writeJSON(w, r, http.StatusNotFound, errorResponse{Error: "order not found"})
	case errors.Is(err, checkout.ErrDiscountInvalid),
		errors.Is(err, checkout.ErrDiscountExpired),
		errors.Is(err, checkout.ErrDiscountNotYet),
		errors.Is(err, checkout.ErrDiscountExhausted):
		h.writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: err.Error(), Field: "discountCode"})
	case errors.Is(err, checkout.ErrAmountTooLow):
		h.writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, checkout.ErrPaymentProcessing):
		// Wrapped provider detail stays in the logs.
		h.loggerFromContext(r.Context()).Error("payment processing failed", "error", err, "path", r.URL.Path)
		h.writeJSON(w, r, http.StatusBadGateway, errorResponse{Error: checkout.ErrPaymentProcessing.Error()})
	case errors.Is(err, checkout.ErrPaymentActionFailed):
		h.loggerFromContext(r.Context()).Error("payment action failed", "error", err, "path", r.URL.Path)
		h.writeJSON(w, r, http.StatusBadGateway, errorResponse{Error: checkout.ErrPaymentActionFailed.Error()})
	case errors.Is(err, checkout.ErrAccessDenied):
		h.writeJSON(w, r, http.StatusForbidden, errorResponse{Error: "access denied"})
	default:
		h.loggerFromContext(r.Context()).Error("request failed", "error", err, "path", r.URL.Path)
		h.writeJSON(w, r, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}
