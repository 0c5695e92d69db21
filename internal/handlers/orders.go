package handlers

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/exstoreapp/exstore/internal/auth"
	"github.com/exstoreapp/exstore/internal/services"
)

// CreateOrder handles POST /orders.
func (h *Handlers) CreateOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity := auth.FromContext(ctx)
	if identity == nil {
		h.respond(ctx, w, http.StatusUnauthorized, response{Success: false, Message: "authentication required"})
		return
	}

	var input services.CreateOrderInput
	if err := h.decodeJSON(w, r, &input); err != nil {
		h.respond(ctx, w, http.StatusBadRequest, response{Success: false, Message: err.Error()})
		return
	}

	order, err := h.orders.CreateOrder(ctx, identity.UserID, input)
	if err != nil {
		h.writeServiceError(ctx, w, err)
		return
	}

	h.loggerFromContext(ctx).Info("order created", "order_id", order.ID, "order_number", order.OrderNumber)
	h.respond(ctx, w, http.StatusCreated, response{Success: true, Order: order})
}

// ListOrders handles GET /orders for the authenticated owner.
func (h *Handlers) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity := auth.FromContext(ctx)
	if identity == nil {
		h.respond(ctx, w, http.StatusUnauthorized, response{Success: false, Message: "authentication required"})
		return
	}

	page, limit := pageParams(r)
	orders, pagination, err := h.orders.ListOrders(ctx, identity.UserID, page, limit)
	if err != nil {
		h.writeServiceError(ctx, w, err)
		return
	}

	h.respond(ctx, w, http.StatusOK, response{Success: true, Orders: orders, Pagination: &pagination})
}

// GetOrder handles GET /orders/{id}, scoped to the authenticated owner.
func (h *Handlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity := auth.FromContext(ctx)
	if identity == nil {
		h.respond(ctx, w, http.StatusUnauthorized, response{Success: false, Message: "authentication required"})
		return
	}

	orderID, ok := h.orderIDFromRequest(w, r)
	if !ok {
		return
	}

	order, err := h.orders.GetOrder(ctx, orderID, identity.UserID)
	if err != nil {
		h.writeServiceError(ctx, w, err)
		return
	}

	h.respond(ctx, w, http.StatusOK, response{Success: true, Order: order})
}

// CancelOrder handles PUT /orders/{id}/cancel.
func (h *Handlers) CancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity := auth.FromContext(ctx)
	if identity == nil {
		h.respond(ctx, w, http.StatusUnauthorized, response{Success: false, Message: "authentication required"})
		return
	}

	orderID, ok := h.orderIDFromRequest(w, r)
	if !ok {
		return
	}

	order, err := h.orders.CancelOrder(ctx, orderID, identity.UserID)
	if err != nil {
		h.writeServiceError(ctx, w, err)
		return
	}

	h.loggerFromContext(ctx).Info("order cancelled", "order_id", order.ID, "order_number", order.OrderNumber)
	h.respond(ctx, w, http.StatusOK, response{Success: true, Message: "order cancelled", Order: order})
}

// PayOrder handles POST /orders/{id}/payment. An empty body charges the
// order's stored payment method.
func (h *Handlers) PayOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity := auth.FromContext(ctx)
	if identity == nil {
		h.respond(ctx, w, http.StatusUnauthorized, response{Success: false, Message: "authentication required"})
		return
	}

	orderID, ok := h.orderIDFromRequest(w, r)
	if !ok {
		return
	}

	var input services.PaymentInput
	if r.ContentLength > 0 {
		if err := h.decodeJSON(w, r, &input); err != nil {
			h.respond(ctx, w, http.StatusBadRequest, response{Success: false, Message: err.Error()})
			return
		}
	}

	order, err := h.orders.PayOrder(ctx, orderID, identity.UserID, input)
	if err != nil {
		h.writeServiceError(ctx, w, err)
		return
	}

	h.loggerFromContext(ctx).Info("order paid", "order_id", order.ID, "payment_id", order.PaymentID)
	h.respond(ctx, w, http.StatusOK, response{Success: true, Message: "payment successful", Order: order})
}

// UpdateOrderStatus handles PUT /orders/{id}/status (admin).
func (h *Handlers) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	orderID, ok := h.orderIDFromRequest(w, r)
	if !ok {
		return
	}

	var input services.UpdateOrderStatusInput
	if err := h.decodeJSON(w, r, &input); err != nil {
		h.respond(ctx, w, http.StatusBadRequest, response{Success: false, Message: err.Error()})
		return
	}

	order, err := h.orders.UpdateOrderStatus(ctx, orderID, input)
	if err != nil {
		h.writeServiceError(ctx, w, err)
		return
	}

	h.loggerFromContext(ctx).Info("order status updated", "order_id", order.ID, "status", order.Status)
	h.respond(ctx, w, http.StatusOK, response{Success: true, Order: order})
}

// ListAllOrders handles GET /admin/orders with an optional status filter.
func (h *Handlers) ListAllOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	page, limit := pageParams(r)
	status := r.URL.Query().Get("status")

	orders, pagination, err := h.orders.ListAllOrders(ctx, status, page, limit)
	if err != nil {
		h.writeServiceError(ctx, w, err)
		return
	}

	h.respond(ctx, w, http.StatusOK, response{Success: true, Orders: orders, Pagination: &pagination})
}

// GetOrderAdmin handles GET /admin/orders/{id} without the ownership check.
func (h *Handlers) GetOrderAdmin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	orderID, ok := h.orderIDFromRequest(w, r)
	if !ok {
		return
	}

	order, err := h.orders.GetOrderAdmin(ctx, orderID)
	if err != nil {
		h.writeServiceError(ctx, w, err)
		return
	}

	h.respond(ctx, w, http.StatusOK, response{Success: true, Order: order})
}

// TrackOrder handles GET /orders/number/{orderNumber}. Public: the response
// is the reduced tracking projection, never the full order.
func (h *Handlers) TrackOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderNumber := mux.Vars(r)["orderNumber"]

	tracked, err := h.orders.TrackOrder(ctx, orderNumber)
	if err != nil {
		h.writeServiceError(ctx, w, err)
		return
	}

	h.respond(ctx, w, http.StatusOK, response{Success: true, Tracking: tracked})
}

func (h *Handlers) orderIDFromRequest(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	orderID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		h.respond(r.Context(), w, http.StatusBadRequest, response{Success: false, Message: "invalid order id"})
		return uuid.Nil, false
	}
	return orderID, true
}

func pageParams(r *http.Request) (int, int) {
	query := r.URL.Query()
	page, _ := strconv.Atoi(query.Get("page"))
	limit, _ := strconv.Atoi(query.Get("limit"))
	return page, limit
}
