// Package handler contains the HTTP API of the shop backend.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/modestmuse/museshop/internal/assistant"
	"github.com/modestmuse/museshop/internal/middleware"
	"github.com/modestmuse/museshop/internal/model"
	"github.com/modestmuse/museshop/internal/payment"
	"github.com/modestmuse/museshop/internal/repository"
	"github.com/modestmuse/museshop/internal/service"
)

// Service is the business logic contract used by the HTTP handlers.
type Service interface {
	Register(ctx context.Context, name, email, password string) (*model.User, error)
	Authenticate(ctx context.Context, email, password string) (*model.User, error)

	CreateOrder(ctx context.Context, order *model.Order) error
	UpdateStatus(ctx context.Context, actor *model.User, orderID string, next model.OrderStatus) (*model.Order, error)
	TrackOrder(ctx context.Context, number, email string) (*model.Order, error)
	GetOrderForOwner(ctx context.Context, actor *model.User, orderID string) (*model.Order, error)
	ListOrdersForUser(ctx context.Context, userID string, page, limit int) ([]model.Order, int64, error)
	ListOrders(ctx context.Context, actor *model.User, status model.OrderStatus, page, limit int) ([]model.Order, int64, error)

	CreatePaymentIntent(ctx context.Context, actor *model.User, orderID string) (*payment.Intent, error)
	InitiateWallet(ctx context.Context, method model.PaymentMethod, mobileNumber string, amountMinor int64) (payment.Initiation, error)
	ProcessWebhook(ctx context.Context, body []byte, sigHeader string) error

	CreateReview(ctx context.Context, actor *model.User, rev *model.Review) error
	DeleteReview(ctx context.Context, actor *model.User, reviewID string) error
	AdjustVariantStock(ctx context.Context, actor *model.User, productID, sku string, delta int) (*model.Product, error)
}

// Assistant answers one customer chat turn.
type Assistant interface {
	Chat(ctx context.Context, history []assistant.ChatMessage) (string, error)
}

// Handler implements the HTTP handlers of the API.
type Handler struct {
	service        Service
	assistant      Assistant
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler creates the HTTP handler set.
func NewHandler(s Service, a Assistant, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{
		service:        s,
		assistant:      a,
		logger:         logger,
		authMiddleware: auth,
	}
}

// envelope is the uniform JSON response shape.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Meta    *meta  `json:"meta,omitempty"`
}

type meta struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
}

func (h *Handler) respond(w http.ResponseWriter, status int, data any, m *meta) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(envelope{Success: true, Data: data, Meta: m}); err != nil {
		h.logger.Error("encode response", zap.Error(err))
	}
}

func (h *Handler) respondMessage(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(envelope{Success: status < 400, Message: message}); err != nil {
		h.logger.Error("encode response", zap.Error(err))
	}
}

// respondError maps domain errors onto HTTP statuses. Anything unmapped is
// logged and hidden behind a generic 500.
func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, service.ErrGuestCheckoutDisabled),
		errors.Is(err, payment.ErrInvalidMobileNumber),
		errors.Is(err, payment.ErrInvalidAmount),
		errors.Is(err, payment.ErrBadSignature),
		errors.Is(err, assistant.ErrInvalidHistory),
		errors.Is(err, repository.ErrDuplicateReview),
		errors.Is(err, repository.ErrEmailTaken):
		h.respondMessage(w, http.StatusBadRequest, err.Error())

	case errors.Is(err, service.ErrInvalidCredentials):
		h.respondMessage(w, http.StatusUnauthorized, err.Error())

	case errors.Is(err, service.ErrForbidden),
		errors.Is(err, service.ErrAccountDisabled):
		h.respondMessage(w, http.StatusForbidden, err.Error())

	case errors.Is(err, repository.ErrOrderNotFound),
		errors.Is(err, repository.ErrUserNotFound),
		errors.Is(err, repository.ErrProductNotFound),
		errors.Is(err, repository.ErrReviewNotFound),
		errors.Is(err, repository.ErrVariantNotFound):
		h.respondMessage(w, http.StatusNotFound, err.Error())

	case errors.Is(err, repository.ErrIllegalTransition),
		errors.Is(err, repository.ErrPaymentConflict):
		h.respondMessage(w, http.StatusConflict, err.Error())

	case errors.Is(err, payment.ErrProcessor):
		h.respondMessage(w, http.StatusBadGateway, "payment processor unavailable")

	default:
		h.logger.Error("request failed", zap.Error(err), zap.String("path", r.URL.Path))
		h.respondMessage(w, http.StatusInternalServerError, "something went wrong")
	}
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.respondMessage(w, http.StatusBadRequest, "malformed request body")
		return false
	}
	return true
}

// Money crosses the JSON boundary in major units; storage is minor units.

func toMinor(major float64) int64 {
	return int64(math.Round(major * 100))
}

func toMajor(minor int64) float64 {
	return float64(minor) / 100
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.respond(w, http.StatusOK, map[string]string{"status": "ok"}, nil)
}
