package wallet

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when no wallet exists for an account.
	ErrNotFound = errors.New("wallet not found")
	// ErrExists is returned when creating a wallet for an account that already has one.
	ErrExists = errors.New("wallet already exists")
	// ErrMethodNotFound is returned when a payment method id is not on the wallet.
	ErrMethodNotFound = errors.New("payment method not found")
)

// Store persists wallets. CompareAndSetBalance is the only balance mutation
// entry point; there is deliberately no unconditional "set balance" so a lost
// update cannot be expressed against this interface.
type Store interface {
	Create(ctx context.Context, w Wallet) error
	Get(ctx context.Context, accountID string) (Wallet, error)

	// CompareAndSetBalance writes newBalance only if the stored version still
	// equals expectedVersion. It returns ok=false when the version moved, in
	// which case the caller must re-read and retry or abort.
	CompareAndSetBalance(ctx context.Context, accountID string, expectedVersion int64, newBalance decimal.Decimal) (ok bool, newVersion int64, err error)

	AddPaymentMethod(ctx context.Context, accountID string, method PaymentMethod) error
	RemovePaymentMethod(ctx context.Context, accountID, methodID string) error
}
