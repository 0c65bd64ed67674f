package handlers

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/paycartapp/paycart/internal/models"
	"github.com/paycartapp/paycart/internal/services"
)

var requestValidator = validator.New()

type createOrderItemPayload struct {
	ProductID string `json:"product_id" validate:"required,uuid4"`
	Quantity  int    `json:"quantity" validate:"required,min=1"`
}

type createOrderPayload struct {
	CustomerEmail   string                   `json:"customer_email" validate:"required,email"`
	CustomerName    string                   `json:"customer_name" validate:"omitempty,max=200"`
	Items           []createOrderItemPayload `json:"items" validate:"required,min=1,dive"`
	DiscountCode    string                   `json:"discount_code" validate:"omitempty,max=64"`
	PaymentProvider string                   `json:"payment_provider" validate:"omitempty,oneof=stripe paypal"`
	Currency        string                   `json:"currency" validate:"omitempty,len=3"`
}

type createOrderResponse struct {
	Order        *models.Order `json:"order"`
	ClientHandle string        `json:"client_handle"`
}

func (h *Handlers) CreateOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var payload createOrderPayload
	if err := decodeJSON(r, &payload); err != nil {
		h.writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}
	if err := requestValidator.Struct(payload); err != nil {
		h.writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	items := make([]services.CreateOrderItem, len(payload.Items))
	for i, item := range payload.Items {
		productID, err := uuid.Parse(item.ProductID)
		if err != nil {
			h.writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: "invalid product ID", Field: "items"})
			return
		}
		items[i] = services.CreateOrderItem{ProductID: productID, Quantity: item.Quantity}
	}

	input := services.CreateOrderInput{
		CustomerEmail: payload.CustomerEmail,
		CustomerName:  payload.CustomerName,
		Items:         items,
		DiscountCode:  payload.DiscountCode,
		Provider:      models.PaymentProvider(payload.PaymentProvider),
		Currency:      payload.Currency,
	}
	if claims := claimsFromContext(ctx); claims != nil && claims.UserID != uuid.Nil {
		userID := claims.UserID
		input.UserID = &userID
	}

	order, clientHandle, err := h.orderService.CreateOrder(ctx, input)
	if err != nil {
		h.writeCheckoutError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusCreated, createOrderResponse{Order: order, ClientHandle: clientHandle})
}

func (h *Handlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	orderID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		h.writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: "invalid order ID"})
		return
	}

	order, err := h.orderService.GetOrder(ctx, orderID)
	if err != nil {
		h.writeCheckoutError(w, r, err)
		return
	}

	claims := claimsFromContext(ctx)
	if claims == nil || !claims.Admin {
		h.writeJSON(w, r, http.StatusOK, redactOrder(order))
		return
	}

	h.writeJSON(w, r, http.StatusOK, order)
}

// redactOrder strips provider references and internal bookkeeping from the
// buyer-facing order view.
func redactOrder(order *models.Order) *models.Order {
	redacted := *order
	redacted.StripePaymentIntentID = ""
	redacted.PayPalOrderID = ""
	redacted.UserID = nil
	redacted.FailureReason = ""
	return &redacted
}
