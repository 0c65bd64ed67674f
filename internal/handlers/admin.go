package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/paycartapp/paycart/internal/db"
	"github.com/paycartapp/paycart/internal/models"
)

type orphanLister interface {
	ListUnresolved(ctx context.Context) ([]*db.PaymentOrphan, error)
	MarkResolved(ctx context.Context, id uuid.UUID) error
}

type overrideStatusPayload struct {
	Status        string `json:"status" validate:"required,oneof=pending paid completed failed refunded"`
	PaymentStatus string `json:"payment_status" validate:"required,oneof=pending succeeded failed refunded"`
}

func (h *Handlers) AdminOverrideOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		h.writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: "invalid order ID"})
		return
	}

	var payload overrideStatusPayload
	if err := decodeJSON(r, &payload); err != nil {
		h.writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}
	if err := requestValidator.Struct(payload); err != nil {
		h.writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	order, err := h.orderService.OverrideStatus(r.Context(), orderID,
		models.OrderStatus(payload.Status), models.PaymentStatus(payload.PaymentStatus))
	if err != nil {
		h.writeCheckoutError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, order)
}

func (h *Handlers) AdminListOrders(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			h.writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: "invalid limit", Field: "limit"})
			return
		}
		limit = parsed
	}

	orders, err := h.orderService.ListOrders(r.Context(), limit)
	if err != nil {
		h.writeCheckoutError(w, r, err)
		return
	}
	if orders == nil {
		orders = []*models.Order{}
	}

	h.writeJSON(w, r, http.StatusOK, map[string]any{"orders": orders})
}

func (h *Handlers) AdminListOrphans(w http.ResponseWriter, r *http.Request) {
	orphans, err := h.orphans.ListUnresolved(r.Context())
	if err != nil {
		h.writeCheckoutError(w, r, err)
		return
	}
	if orphans == nil {
		orphans = []*db.PaymentOrphan{}
	}

	h.writeJSON(w, r, http.StatusOK, map[string]any{"orphans": orphans})
}

func (h *Handlers) AdminResolveOrphan(w http.ResponseWriter, r *http.Request) {
	orphanID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		h.writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: "invalid orphan ID"})
		return
	}

	if err := h.orphans.MarkResolved(r.Context(), orphanID); err != nil {
		h.writeCheckoutError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) AdminCurrencyCacheStats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, h.converter.Stats())
}

func (h *Handlers) AdminCurrencyCacheClear(w http.ResponseWriter, r *http.Request) {
	h.converter.ClearCache()
	h.loggerFromContext(r.Context()).Info("currency rate cache cleared")
	w.WriteHeader(http.StatusNoContent)
}
