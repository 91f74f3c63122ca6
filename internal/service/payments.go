package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/modestmuse/museshop/internal/model"
	"github.com/modestmuse/museshop/internal/payment"
)

// CreatePaymentIntent starts a card payment for an order and returns the
// processor intent. actor may be nil for guest orders.
func (s *Service) CreatePaymentIntent(ctx context.Context, actor *model.User, orderID string) (*payment.Intent, error) {
	if s.card == nil {
		return nil, fmt.Errorf("%w: card payments are not configured", payment.ErrProcessor)
	}

	order, err := s.repo.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	// Account orders stay private to their owner; guest orders are reachable
	// by anyone holding the order id.
	if order.UserID != "" && !actor.IsAdmin() && (actor == nil || actor.ID != order.UserID) {
		return nil, ErrForbidden
	}
	if order.PaymentMethod != model.PaymentMethodCard {
		return nil, fmt.Errorf("%w: order is not a card order", ErrInvalidInput)
	}
	if order.IsPaid {
		return nil, fmt.Errorf("%w: order is already paid", ErrInvalidInput)
	}

	return s.card.CreateIntent(ctx, order.TotalPrice, "usd", order.ID)
}

// InitiateWallet starts a mobile-wallet payment and returns its pending
// reference. No wallet payment is ever confirmed through this path.
func (s *Service) InitiateWallet(ctx context.Context, method model.PaymentMethod, mobileNumber string, amountMinor int64) (payment.Initiation, error) {
	switch method {
	case model.PaymentMethodJazzCash:
		return s.jazzcash.Initiate(mobileNumber, amountMinor)
	case model.PaymentMethodEasyPaisa:
		return s.easypaisa.Initiate(mobileNumber, amountMinor)
	default:
		return payment.Initiation{}, fmt.Errorf("%w: %q is not a wallet method", ErrInvalidInput, method)
	}
}

// ProcessWebhook authenticates a raw card-processor delivery and confirms
// the referenced order on a successful payment event. Other event types
// are acknowledged without touching state.
func (s *Service) ProcessWebhook(ctx context.Context, body []byte, sigHeader string) error {
	event, err := s.verifier.VerifyAndParse(body, sigHeader)
	if err != nil {
		return err
	}

	if event.Type != payment.EventPaymentSucceeded {
		s.logger.Debug("ignoring webhook event", zap.String("type", event.Type))
		return nil
	}

	orderID := event.OrderID()
	if orderID == "" {
		return fmt.Errorf("%w: event %s carries no order id", ErrInvalidInput, event.ID)
	}

	receipt := model.PaymentResult{
		ID:         event.Data.Object.ID,
		Status:     event.Data.Object.Status,
		ReceiptURL: event.ReceiptURL(),
	}
	return s.ConfirmPayment(ctx, orderID, receipt)
}
