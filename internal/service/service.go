// Package service implements the business logic of the shop backend.
package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/modestmuse/museshop/internal/model"
	"github.com/modestmuse/museshop/internal/payment"
)

// Repository is the data access contract used by the service.
type Repository interface {
	Close() error

	CreateUser(ctx context.Context, u *model.User) error
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByID(ctx context.Context, id string) (*model.User, error)

	CreateOrder(ctx context.Context, o *model.Order) error
	GetOrderByID(ctx context.Context, id string) (*model.Order, error)
	GetOrderByNumber(ctx context.Context, number string) (*model.Order, error)
	GetOrderForTracking(ctx context.Context, number string) (*model.Order, string, error)
	ListOrdersByUser(ctx context.Context, userID string, page, limit int) ([]model.Order, int64, error)
	ListOrders(ctx context.Context, status model.OrderStatus, page, limit int) ([]model.Order, int64, error)
	ConfirmOrderPayment(ctx context.Context, orderID string, receipt model.PaymentResult, paidAt time.Time) error
	SetOrderStatus(ctx context.Context, orderID string, next model.OrderStatus, now time.Time) (*model.Order, error)

	SearchProducts(ctx context.Context, query string, limit int) ([]model.Product, error)
	GetProductByID(ctx context.Context, id string) (*model.Product, error)
	CreateReview(ctx context.Context, rev *model.Review) error
	GetReviewByID(ctx context.Context, id string) (*model.Review, error)
	DeleteReview(ctx context.Context, id string) error
	AdjustVariantStock(ctx context.Context, productID, sku string, delta int) (*model.Product, error)
}

// CardProcessor creates payment intents on the card rail.
type CardProcessor interface {
	CreateIntent(ctx context.Context, amountMinor int64, currency, orderID string) (*payment.Intent, error)
}

// WebhookVerifier authenticates raw webhook deliveries from the card
// processor.
type WebhookVerifier interface {
	VerifyAndParse(body []byte, sigHeader string) (*payment.Event, error)
}

var (
	// ErrInvalidInput covers request payloads that fail validation.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidCredentials is returned for a failed login.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrAccountDisabled is returned when a deactivated account logs in.
	ErrAccountDisabled = errors.New("account deactivated")
	// ErrForbidden is returned when the actor lacks permission.
	ErrForbidden = errors.New("forbidden")
	// ErrGuestCheckoutDisabled is returned for anonymous orders while the
	// toggle is off.
	ErrGuestCheckoutDisabled = errors.New("guest checkout is disabled")
)

// Service holds the business logic over the repository and the payment
// rails.
type Service struct {
	repo     Repository
	card     CardProcessor
	verifier WebhookVerifier

	jazzcash  *payment.WalletAdapter
	easypaisa *payment.WalletAdapter
	cod       *payment.CODAdapter

	guestCheckout bool
	logger        *zap.Logger
	now           func() time.Time
}

// NewService creates the service. card and verifier may be nil when the
// card rail is not configured.
func NewService(repo Repository, card CardProcessor, verifier WebhookVerifier, guestCheckout bool, logger *zap.Logger) *Service {
	return &Service{
		repo:          repo,
		card:          card,
		verifier:      verifier,
		jazzcash:      payment.NewJazzCash(),
		easypaisa:     payment.NewEasyPaisa(),
		cod:           payment.NewCOD(),
		guestCheckout: guestCheckout,
		logger:        logger,
		now:           time.Now,
	}
}

// Close releases the service resources.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}
