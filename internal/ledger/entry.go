package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// Kind classifies a money movement.
type Kind string

const (
	KindPayment Kind = "payment"
	KindTopUp   Kind = "top_up"
	KindRefund  Kind = "refund"
)

// Valid reports whether the kind is one of the closed set.
func (k Kind) Valid() bool {
	switch k {
	case KindPayment, KindTopUp, KindRefund:
		return true
	default:
		return false
	}
}

// Status is the lifecycle state of an entry.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusRefunded  Status = "refunded"
)

// Terminal reports whether an entry in this status can never change again.
func (s Status) Terminal() bool {
	return s == StatusFailed || s == StatusRefunded
}

// CanTransition reports whether a status change is legal. Pending entries
// settle to completed or failed; completed payments may later be refunded.
// Terminal entries are frozen.
func (s Status) CanTransition(to Status) bool {
	if s.Terminal() {
		return false
	}
	switch s {
	case StatusPending:
		return to == StatusCompleted || to == StatusFailed
	case StatusCompleted:
		return to == StatusRefunded
	default:
		return false
	}
}

// Entry is one durable record of an attempted balance change. Amount is
// signed: negative for debits, positive for credits. Once an entry reaches a
// terminal status it is immutable.
type Entry struct {
	ID          string
	AccountID   string
	Amount      decimal.Decimal
	Kind        Kind
	Status      Status
	Description string
	Metadata    map[string]string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Metadata keys the engine and resolver write.
const (
	MetaRejectionReason = "rejection_reason"
	MetaRouteCode       = "route_code"
	MetaRouteName       = "route_name"
	MetaDriverID        = "driver_id"
	MetaDriverName      = "driver_name"
	MetaQRPayload       = "qr_payload"
	MetaPaymentMethodID = "payment_method_id"
	MetaRefundOf        = "refund_of"
)

// Rejection reasons recorded on failed entries.
const (
	ReasonInsufficientBalance = "insufficient_balance"
	ReasonConcurrentConflict  = "concurrent_conflict"
)
