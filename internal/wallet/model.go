package wallet

import (
	"time"

	"github.com/shopspring/decimal"
)

// Wallet is the stored-value balance for one account. Balance is held as a
// fixed-point decimal; Version increases by one on every successful balance
// write and guards against lost updates.
type Wallet struct {
	AccountID      string
	Balance        decimal.Decimal
	Version        int64
	PaymentMethods []PaymentMethod
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// PaymentMethod is a stored card record. Cards are stored, never charged.
type PaymentMethod struct {
	ID         string
	CardHolder string
	CardNumber string
	Expiry     string
	CreatedAt  time.Time
}
