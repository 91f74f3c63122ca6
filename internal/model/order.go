// Package model contains the domain entities of the Modest Muse Style shop.
package model

import "time"

// OrderStatus describes the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusRefunded   OrderStatus = "refunded"
)

// Valid reports whether s is a known order status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped,
		OrderStatusDelivered, OrderStatusCancelled, OrderStatusRefunded:
		return true
	}
	return false
}

// transitions is the full table of legal status moves. Cancellation and
// refund are side exits from every non-terminal state; a delivered order
// can still be refunded.
var transitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusShipped, OrderStatusCancelled, OrderStatusRefunded},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled, OrderStatusRefunded},
	OrderStatusShipped:    {OrderStatusDelivered, OrderStatusCancelled, OrderStatusRefunded},
	OrderStatusDelivered:  {OrderStatusRefunded},
	OrderStatusCancelled:  {},
	OrderStatusRefunded:   {},
}

// CanTransitionTo reports whether moving from s to next is legal.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions are possible from s.
func (s OrderStatus) Terminal() bool {
	return len(transitions[s]) == 0
}

// PaymentMethod identifies the payment rail chosen at checkout.
type PaymentMethod string

const (
	PaymentMethodCard      PaymentMethod = "card"
	PaymentMethodJazzCash  PaymentMethod = "jazzcash"
	PaymentMethodEasyPaisa PaymentMethod = "easypaisa"
	PaymentMethodCOD       PaymentMethod = "cod"
)

// Valid reports whether m is a supported payment method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCard, PaymentMethodJazzCash, PaymentMethodEasyPaisa, PaymentMethodCOD:
		return true
	}
	return false
}

// OrderItem is a point-in-time snapshot of a purchased variant. Prices are
// in minor currency units. The snapshot is intentionally denormalized so
// historical orders stay stable when the catalog changes.
type OrderItem struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	Image     string `json:"image,omitempty"`
	Price     int64  `json:"price"`
	Quantity  int    `json:"quantity"`
	Size      string `json:"size,omitempty"`
	Color     string `json:"color,omitempty"`
	SKU       string `json:"sku,omitempty"`
}

// ShippingAddress is the embedded delivery address of an order.
type ShippingAddress struct {
	FullName   string `json:"fullName"`
	Phone      string `json:"phone,omitempty"`
	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

// PaymentResult is the adapter-specific receipt stored on a paid or
// initiated order.
type PaymentResult struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	ReceiptURL string `json:"receiptUrl,omitempty"`
}

// Order is the central entity. Exactly one of UserID and GuestEmail is
// set. Money fields are minor units and TotalPrice must equal the sum of
// the other three; the service enforces that at creation.
type Order struct {
	ID              string
	Number          string
	UserID          string
	GuestEmail      string
	Items           []OrderItem
	ShippingAddress ShippingAddress
	PaymentMethod   PaymentMethod
	PaymentResult   *PaymentResult
	ItemsPrice      int64
	ShippingPrice   int64
	TaxPrice        int64
	TotalPrice      int64
	Status          OrderStatus
	IsPaid          bool
	PaidAt          *time.Time
	IsDelivered     bool
	DeliveredAt     *time.Time
	CreatedAt       time.Time
}
