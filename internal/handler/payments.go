package handler

import (
	"io"
	"net/http"

	"github.com/modestmuse/museshop/internal/middleware"
	"github.com/modestmuse/museshop/internal/model"
)

type createIntentRequest struct {
	OrderID string `json:"orderId"`
}

type intentResponse struct {
	ID           string `json:"id"`
	ClientSecret string `json:"clientSecret"`
	Status       string `json:"status"`
}

// CreatePaymentIntent starts a card payment for an order.
func (h *Handler) CreatePaymentIntent(w http.ResponseWriter, r *http.Request) {
	var req createIntentRequest
	if !h.decode(w, r, &req) {
		return
	}

	// Nil actor means a guest paying by order id.
	actor, _ := middleware.GetUserFromContext(r.Context())

	intent, err := h.service.CreatePaymentIntent(r.Context(), actor, req.OrderID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respond(w, http.StatusOK, intentResponse{
		ID:           intent.ID,
		ClientSecret: intent.ClientSecret,
		Status:       intent.Status,
	}, nil)
}

// Webhook receives signed card-processor deliveries. The body must stay
// raw; the signature covers the exact bytes.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.respondMessage(w, http.StatusBadRequest, "unreadable body")
		return
	}

	if err := h.service.ProcessWebhook(r.Context(), body, r.Header.Get("Stripe-Signature")); err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respond(w, http.StatusOK, map[string]bool{"received": true}, nil)
}

type walletRequest struct {
	MobileNumber string  `json:"mobileNumber"`
	Amount       float64 `json:"amount"`
}

type walletResponse struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
}

func (h *Handler) initiateWallet(w http.ResponseWriter, r *http.Request, method model.PaymentMethod) {
	var req walletRequest
	if !h.decode(w, r, &req) {
		return
	}

	init, err := h.service.InitiateWallet(r.Context(), method, req.MobileNumber, toMinor(req.Amount))
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respond(w, http.StatusOK, walletResponse{Reference: init.Reference, Status: init.Status}, nil)
}

// JazzCash starts a JazzCash wallet payment.
func (h *Handler) JazzCash(w http.ResponseWriter, r *http.Request) {
	h.initiateWallet(w, r, model.PaymentMethodJazzCash)
}

// EasyPaisa starts an EasyPaisa wallet payment.
func (h *Handler) EasyPaisa(w http.ResponseWriter, r *http.Request) {
	h.initiateWallet(w, r, model.PaymentMethodEasyPaisa)
}
