package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/modestmuse/museshop/internal/middleware"
	"github.com/modestmuse/museshop/internal/model"
)

type orderItemPayload struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Image     string  `json:"image,omitempty"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
	Size      string  `json:"size,omitempty"`
	Color     string  `json:"color,omitempty"`
	SKU       string  `json:"sku,omitempty"`
}

type paymentResultPayload struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	ReceiptURL string `json:"receiptUrl,omitempty"`
}

type createOrderRequest struct {
	Items           []orderItemPayload    `json:"items"`
	ShippingAddress model.ShippingAddress `json:"shippingAddress"`
	PaymentMethod   string                `json:"paymentMethod"`
	PaymentResult   *paymentResultPayload `json:"paymentResult,omitempty"`
	GuestEmail      string                `json:"guestEmail,omitempty"`
	ItemsPrice      float64               `json:"itemsPrice"`
	ShippingPrice   float64               `json:"shippingPrice"`
	TaxPrice        float64               `json:"taxPrice"`
	TotalPrice      float64               `json:"totalPrice"`
}

type orderResponse struct {
	ID              string                `json:"id"`
	Number          string                `json:"orderNumber"`
	Items           []orderItemPayload    `json:"items"`
	ShippingAddress model.ShippingAddress `json:"shippingAddress"`
	PaymentMethod   string                `json:"paymentMethod"`
	PaymentResult   *paymentResultPayload `json:"paymentResult,omitempty"`
	ItemsPrice      float64               `json:"itemsPrice"`
	ShippingPrice   float64               `json:"shippingPrice"`
	TaxPrice        float64               `json:"taxPrice"`
	TotalPrice      float64               `json:"totalPrice"`
	Status          string                `json:"status"`
	IsPaid          bool                  `json:"isPaid"`
	PaidAt          *string               `json:"paidAt,omitempty"`
	IsDelivered     bool                  `json:"isDelivered"`
	DeliveredAt     *string               `json:"deliveredAt,omitempty"`
	CreatedAt       string                `json:"createdAt"`
}

func toOrderResponse(o *model.Order) orderResponse {
	items := make([]orderItemPayload, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, orderItemPayload{
			ProductID: item.ProductID,
			Name:      item.Name,
			Image:     item.Image,
			Price:     toMajor(item.Price),
			Quantity:  item.Quantity,
			Size:      item.Size,
			Color:     item.Color,
			SKU:       item.SKU,
		})
	}

	var result *paymentResultPayload
	if o.PaymentResult != nil {
		result = &paymentResultPayload{
			ID:         o.PaymentResult.ID,
			Status:     o.PaymentResult.Status,
			ReceiptURL: o.PaymentResult.ReceiptURL,
		}
	}

	return orderResponse{
		ID:              o.ID,
		Number:          o.Number,
		Items:           items,
		ShippingAddress: o.ShippingAddress,
		PaymentMethod:   string(o.PaymentMethod),
		PaymentResult:   result,
		ItemsPrice:      toMajor(o.ItemsPrice),
		ShippingPrice:   toMajor(o.ShippingPrice),
		TaxPrice:        toMajor(o.TaxPrice),
		TotalPrice:      toMajor(o.TotalPrice),
		Status:          string(o.Status),
		IsPaid:          o.IsPaid,
		PaidAt:          formatTime(o.PaidAt),
		IsDelivered:     o.IsDelivered,
		DeliveredAt:     formatTime(o.DeliveredAt),
		CreatedAt:       o.CreatedAt.Format(time.RFC3339),
	}
}

// CreateOrder places an order for the authenticated user or, when the
// request is anonymous, for the guest email in the payload.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if !h.decode(w, r, &req) {
		return
	}

	items := make([]model.OrderItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, model.OrderItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			Image:     item.Image,
			Price:     toMinor(item.Price),
			Quantity:  item.Quantity,
			Size:      item.Size,
			Color:     item.Color,
			SKU:       item.SKU,
		})
	}

	order := &model.Order{
		Items:           items,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   model.PaymentMethod(req.PaymentMethod),
		GuestEmail:      req.GuestEmail,
		ItemsPrice:      toMinor(req.ItemsPrice),
		ShippingPrice:   toMinor(req.ShippingPrice),
		TaxPrice:        toMinor(req.TaxPrice),
		TotalPrice:      toMinor(req.TotalPrice),
	}
	if req.PaymentResult != nil {
		order.PaymentResult = &model.PaymentResult{
			ID:     req.PaymentResult.ID,
			Status: req.PaymentResult.Status,
		}
	}

	if user, ok := middleware.GetUserFromContext(r.Context()); ok {
		order.UserID = user.ID
		order.GuestEmail = ""
	}

	if err := h.service.CreateOrder(r.Context(), order); err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respond(w, http.StatusCreated, toOrderResponse(order), nil)
}

// MyOrders returns one page of the authenticated user's orders.
func (h *Handler) MyOrders(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		h.respondMessage(w, http.StatusUnauthorized, "authentication required")
		return
	}

	page, limit := pageParams(r)
	orders, total, err := h.service.ListOrdersForUser(r.Context(), user.ID, page, limit)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondOrderPage(w, orders, total, page, limit)
}

// GetOrder returns one order to its owner or an admin.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		h.respondMessage(w, http.StatusUnauthorized, "authentication required")
		return
	}

	order, err := h.service.GetOrderForOwner(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respond(w, http.StatusOK, toOrderResponse(order), nil)
}

// ListOrders returns one admin page of all orders, optionally filtered by
// status.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		h.respondMessage(w, http.StatusUnauthorized, "authentication required")
		return
	}

	page, limit := pageParams(r)
	status := model.OrderStatus(r.URL.Query().Get("status"))

	orders, total, err := h.service.ListOrders(r.Context(), user, status, page, limit)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondOrderPage(w, orders, total, page, limit)
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

// UpdateOrderStatus moves an order along the lifecycle. Admin only.
func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		h.respondMessage(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req updateStatusRequest
	if !h.decode(w, r, &req) {
		return
	}

	order, err := h.service.UpdateStatus(r.Context(), user, chi.URLParam(r, "id"), model.OrderStatus(req.Status))
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respond(w, http.StatusOK, toOrderResponse(order), nil)
}

type trackOrderRequest struct {
	OrderNumber string `json:"orderNumber"`
	Email       string `json:"email"`
}

// TrackOrder is the public self-service lookup by order number and email.
func (h *Handler) TrackOrder(w http.ResponseWriter, r *http.Request) {
	var req trackOrderRequest
	if !h.decode(w, r, &req) {
		return
	}

	order, err := h.service.TrackOrder(r.Context(), req.OrderNumber, req.Email)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respond(w, http.StatusOK, toOrderResponse(order), nil)
}

func (h *Handler) respondOrderPage(w http.ResponseWriter, orders []model.Order, total int64, page, limit int) {
	resp := make([]orderResponse, 0, len(orders))
	for i := range orders {
		resp = append(resp, toOrderResponse(&orders[i]))
	}
	h.respond(w, http.StatusOK, resp, &meta{Page: page, Limit: limit, Total: total})
}

func pageParams(r *http.Request) (int, int) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	return page, limit
}
