package payment

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/modestmuse/museshop/internal/validation"
)

// WalletAdapter initiates a mobile-wallet payment. Both providers are
// simulation boundaries: they validate input and hand back a synthetic
// pending reference, and nothing ever confirms it out of band.
type WalletAdapter struct {
	name   string
	prefix string
}

// NewJazzCash returns the JazzCash wallet adapter.
func NewJazzCash() *WalletAdapter {
	return &WalletAdapter{name: "jazzcash", prefix: "JC"}
}

// NewEasyPaisa returns the EasyPaisa wallet adapter.
func NewEasyPaisa() *WalletAdapter {
	return &WalletAdapter{name: "easypaisa", prefix: "EP"}
}

// Name returns the payment-method name of the wallet.
func (w *WalletAdapter) Name() string {
	return w.name
}

// Capability of the wallets is synchronous-unconfirmed.
func (w *WalletAdapter) Capability() Capability {
	return CapabilitySynchronousUnconfirmed
}

// Initiate validates the account number and amount and returns a pending
// transaction reference.
func (w *WalletAdapter) Initiate(mobileNumber string, amountMinor int64) (Initiation, error) {
	if !validation.IsValidWalletNumber(mobileNumber) {
		return Initiation{}, fmt.Errorf("%w: %q", ErrInvalidMobileNumber, mobileNumber)
	}
	if amountMinor <= 0 {
		return Initiation{}, ErrInvalidAmount
	}

	return Initiation{
		Reference: fmt.Sprintf("%s-%s", w.prefix, uuid.NewString()),
		Status:    "pending",
	}, nil
}

// CODAdapter represents cash on delivery. It records a reference at
// placement and no electronic confirmation ever happens.
type CODAdapter struct{}

// NewCOD returns the cash-on-delivery adapter.
func NewCOD() *CODAdapter {
	return &CODAdapter{}
}

// Capability of cash on delivery is offline.
func (c *CODAdapter) Capability() Capability {
	return CapabilityOffline
}

// Initiate returns the synthetic reference stored on the order.
func (c *CODAdapter) Initiate() Initiation {
	return Initiation{
		Reference: fmt.Sprintf("COD-%s", uuid.NewString()),
		Status:    "offline",
	}
}
