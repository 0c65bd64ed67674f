package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
)

func (h *Handlers) CapturePayment(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(mux.Vars(r)["orderId"])
	if err != nil {
		h.writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: "invalid order ID"})
		return
	}

	result, err := h.paymentService.Capture(r.Context(), orderID)
	if err != nil {
		h.writeCheckoutError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, result)
}

type refundPayload struct {
	// Amount is optional; empty or "0" means a full refund.
	Amount string `json:"amount" validate:"omitempty,numeric"`
	Reason string `json:"reason" validate:"omitempty,max=500"`
}

func (h *Handlers) RefundPayment(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(mux.Vars(r)["orderId"])
	if err != nil {
		h.writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: "invalid order ID"})
		return
	}

	var payload refundPayload
	if err := decodeJSON(r, &payload); err != nil {
		h.writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}
	if err := requestValidator.Struct(payload); err != nil {
		h.writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	amount := decimal.Decimal{}
	if payload.Amount != "" {
		amount, err = decimal.NewFromString(payload.Amount)
		if err != nil {
			h.writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: "invalid refund amount", Field: "amount"})
			return
		}
	}

	result, err := h.paymentService.Refund(r.Context(), orderID, amount, payload.Reason)
	if err != nil {
		h.writeCheckoutError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, result)
}

func (h *Handlers) PaymentStatus(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(mux.Vars(r)["orderId"])
	if err != nil {
		h.writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: "invalid order ID"})
		return
	}

	report, err := h.paymentService.Status(r.Context(), orderID)
	if err != nil {
		h.writeCheckoutError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, report)
}
