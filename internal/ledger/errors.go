package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidAmount occurs when an operation is requested with a
	// non-positive amount.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrEntryNotFound occurs when no ledger entry matches the given id.
	ErrEntryNotFound = errors.New("ledger entry not found")

	// ErrConcurrencyConflict indicates the engine exhausted its CAS retries
	// against concurrent balance writes. The attempt is terminal; the caller
	// may start a fresh one.
	ErrConcurrencyConflict = errors.New("concurrent balance conflict, retries exhausted")

	// ErrNotRefundable occurs when MarkRefunded targets an entry that is not
	// a completed payment.
	ErrNotRefundable = errors.New("entry is not a refundable payment")

	// ErrTimeout indicates the caller's deadline expired before settlement
	// finished. The entry is left in whatever state the last completed step
	// produced.
	ErrTimeout = errors.New("settlement deadline exceeded")
)

// InsufficientBalanceError reports a rejected debit with the amounts involved.
type InsufficientBalanceError struct {
	Required  decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: required %s, available %s", e.Required, e.Available)
}

// StorageError wraps an underlying store failure. Callers should treat the
// operation as indeterminate rather than failed.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
