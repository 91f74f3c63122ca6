package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/modestmuse/museshop/internal/model"
	"github.com/modestmuse/museshop/internal/repository"
	"github.com/modestmuse/museshop/internal/validation"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// CreateOrder validates and persists a new order. The order always starts
// unpaid in the pending state; for COD a synthetic offline reference is
// recorded at placement.
func (s *Service) CreateOrder(ctx context.Context, order *model.Order) error {
	if order.UserID != "" && order.GuestEmail != "" {
		return fmt.Errorf("%w: an order belongs to an account or a guest email, not both", ErrInvalidInput)
	}
	if order.UserID == "" {
		if !s.guestCheckout {
			return ErrGuestCheckoutDisabled
		}
		order.GuestEmail = validation.NormalizeEmail(order.GuestEmail)
		if !validation.IsValidEmail(order.GuestEmail) {
			return fmt.Errorf("%w: a guest order requires a valid email", ErrInvalidInput)
		}
	}

	if !order.PaymentMethod.Valid() {
		return fmt.Errorf("%w: unsupported payment method %q", ErrInvalidInput, order.PaymentMethod)
	}

	if len(order.Items) == 0 {
		return fmt.Errorf("%w: order has no items", ErrInvalidInput)
	}
	var itemsTotal int64
	for i, item := range order.Items {
		if item.ProductID == "" || item.Name == "" {
			return fmt.Errorf("%w: item %d is missing its product", ErrInvalidInput, i)
		}
		if item.Quantity < 1 {
			return fmt.Errorf("%w: item %d has quantity %d", ErrInvalidInput, i, item.Quantity)
		}
		if item.Price < 0 {
			return fmt.Errorf("%w: item %d has a negative price", ErrInvalidInput, i)
		}
		itemsTotal += item.Price * int64(item.Quantity)
	}

	if order.ItemsPrice < 0 || order.ShippingPrice < 0 || order.TaxPrice < 0 || order.TotalPrice < 0 {
		return fmt.Errorf("%w: negative price component", ErrInvalidInput)
	}
	if order.ItemsPrice != itemsTotal {
		return fmt.Errorf("%w: items price %d does not match item sum %d", ErrInvalidInput, order.ItemsPrice, itemsTotal)
	}
	if order.TotalPrice != order.ItemsPrice+order.ShippingPrice+order.TaxPrice {
		return fmt.Errorf("%w: total price does not match its components", ErrInvalidInput)
	}

	if order.ShippingAddress.FullName == "" || order.ShippingAddress.Street == "" ||
		order.ShippingAddress.City == "" || order.ShippingAddress.Country == "" {
		return fmt.Errorf("%w: incomplete shipping address", ErrInvalidInput)
	}

	order.ID = uuid.NewString()
	order.Status = model.OrderStatusPending
	order.IsPaid = false
	order.PaidAt = nil
	order.IsDelivered = false
	order.DeliveredAt = nil

	// Placement never marks an order paid. COD gets its offline reference
	// here; a wallet initiation reference may be carried in, card orders
	// receive theirs from the webhook.
	if order.PaymentMethod == model.PaymentMethodCOD {
		init := s.cod.Initiate()
		order.PaymentResult = &model.PaymentResult{ID: init.Reference, Status: init.Status}
	}

	return s.repo.CreateOrder(ctx, order)
}

// ConfirmPayment marks an order paid with the given receipt. Safe to call
// more than once with the same receipt.
func (s *Service) ConfirmPayment(ctx context.Context, orderID string, receipt model.PaymentResult) error {
	if orderID == "" || receipt.ID == "" {
		return fmt.Errorf("%w: order id and receipt id are required", ErrInvalidInput)
	}
	return s.repo.ConfirmOrderPayment(ctx, orderID, receipt, s.now())
}

// UpdateStatus moves an order along the lifecycle. Admin only.
func (s *Service) UpdateStatus(ctx context.Context, actor *model.User, orderID string, next model.OrderStatus) (*model.Order, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	if !next.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, next)
	}
	return s.repo.SetOrderStatus(ctx, orderID, next, s.now())
}

// TrackOrder is the public self-service lookup by order number and the
// email the order was placed under. A wrong email is indistinguishable
// from a missing order, and the returned order carries no account linkage.
func (s *Service) TrackOrder(ctx context.Context, number, email string) (*model.Order, error) {
	number = validation.NormalizeOrderNumber(number)
	email = validation.NormalizeEmail(email)
	if !validation.IsValidOrderNumber(number) || !validation.IsValidEmail(email) {
		return nil, fmt.Errorf("%w: order number and email are required", ErrInvalidInput)
	}

	order, ownerEmail, err := s.repo.GetOrderForTracking(ctx, number)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(ownerEmail, email) {
		return nil, repository.ErrOrderNotFound
	}

	order.UserID = ""
	order.GuestEmail = ""
	return order, nil
}

// GetOrderForOwner returns an order to its owner or to an admin. Anyone
// else sees a not-found, never a forbidden, so order ids stay unguessable.
func (s *Service) GetOrderForOwner(ctx context.Context, actor *model.User, orderID string) (*model.Order, error) {
	order, err := s.repo.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && order.UserID != actor.ID {
		return nil, repository.ErrOrderNotFound
	}
	return order, nil
}

// ListOrdersForUser returns one page of the user's orders, newest first,
// with the total count.
func (s *Service) ListOrdersForUser(ctx context.Context, userID string, page, limit int) ([]model.Order, int64, error) {
	page, limit = clampPage(page, limit)
	return s.repo.ListOrdersByUser(ctx, userID, page, limit)
}

// ListOrders returns one admin page of all orders, optionally filtered by
// status.
func (s *Service) ListOrders(ctx context.Context, actor *model.User, status model.OrderStatus, page, limit int) ([]model.Order, int64, error) {
	if !actor.IsAdmin() {
		return nil, 0, ErrForbidden
	}
	if status != "" && !status.Valid() {
		return nil, 0, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, status)
	}
	page, limit = clampPage(page, limit)
	return s.repo.ListOrders(ctx, status, page, limit)
}

func clampPage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return page, limit
}
