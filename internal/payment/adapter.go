// Package payment contains the payment-rail adapters: the card processor
// client with its webhook verification, the two mobile-wallet stubs, and
// cash on delivery.
package payment

import "errors"

// Capability declares how an adapter's confirmation works. Initiation
// never marks an order paid; only the card rail has a real confirmation
// path today.
type Capability string

const (
	// CapabilityAsynchronousConfirmed: the processor pushes a signed
	// webhook once the payment succeeds.
	CapabilityAsynchronousConfirmed Capability = "asynchronous-confirmed"
	// CapabilitySynchronousUnconfirmed: initiation returns a pending
	// reference and no confirmation callback exists yet. A real wallet
	// integration must add one before any order is marked paid.
	CapabilitySynchronousUnconfirmed Capability = "synchronous-unconfirmed"
	// CapabilityOffline: payment happens outside the system entirely.
	CapabilityOffline Capability = "offline"
)

// Initiation is the result of starting a payment on any rail.
type Initiation struct {
	Reference string
	Status    string
}

var (
	// ErrInvalidMobileNumber is returned for a malformed wallet account number.
	ErrInvalidMobileNumber = errors.New("invalid mobile number")
	// ErrInvalidAmount is returned for a non-positive amount.
	ErrInvalidAmount = errors.New("invalid payment amount")
	// ErrProcessor is returned when the card processor call fails.
	ErrProcessor = errors.New("payment processor error")
	// ErrBadSignature is returned for a webhook whose signature does not verify.
	ErrBadSignature = errors.New("webhook signature verification failed")
)
