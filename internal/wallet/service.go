package wallet

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Service exposes wallet provisioning and payment-method management. Balance
// mutation is not offered here; that is the ledger engine's sole privilege.
type Service struct {
	store Store
}

// NewService builds a wallet service instance.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Provision creates an empty wallet for a newly registered account.
func (s *Service) Provision(ctx context.Context, accountID string) (Wallet, error) {
	if _, err := uuid.Parse(accountID); err != nil {
		return Wallet{}, err
	}
	w := Wallet{
		AccountID: accountID,
		Balance:   decimal.Zero,
		Version:   0,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.Create(ctx, w); err != nil {
		return Wallet{}, err
	}
	return w, nil
}

// Get retrieves the wallet for an account.
func (s *Service) Get(ctx context.Context, accountID string) (Wallet, error) {
	return s.store.Get(ctx, accountID)
}

// AddPaymentMethodInput captures a card to store on the wallet.
type AddPaymentMethodInput struct {
	CardHolder string
	CardNumber string
	Expiry     string
}

// AddPaymentMethod validates and stores a card record.
func (s *Service) AddPaymentMethod(ctx context.Context, accountID string, input AddPaymentMethodInput) (PaymentMethod, error) {
	if err := validateCardNumber(input.CardNumber); err != nil {
		return PaymentMethod{}, err
	}
	if strings.TrimSpace(input.CardHolder) == "" {
		return PaymentMethod{}, fmt.Errorf("card holder is required")
	}
	method := PaymentMethod{
		ID:         uuid.New().String(),
		CardHolder: strings.TrimSpace(input.CardHolder),
		CardNumber: maskCardNumber(input.CardNumber),
		Expiry:     strings.TrimSpace(input.Expiry),
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.store.AddPaymentMethod(ctx, accountID, method); err != nil {
		return PaymentMethod{}, err
	}
	return method, nil
}

// RemovePaymentMethod deletes a stored card by id.
func (s *Service) RemovePaymentMethod(ctx context.Context, accountID, methodID string) error {
	return s.store.RemovePaymentMethod(ctx, accountID, methodID)
}

// HasPaymentMethod reports whether the wallet holds the given method id.
func (s *Service) HasPaymentMethod(ctx context.Context, accountID, methodID string) (bool, error) {
	w, err := s.store.Get(ctx, accountID)
	if err != nil {
		return false, err
	}
	for _, m := range w.PaymentMethods {
		if m.ID == methodID {
			return true, nil
		}
	}
	return false, nil
}

func validateCardNumber(card string) error {
	digits := strings.ReplaceAll(card, " ", "")
	if len(digits) < 12 || len(digits) > 19 {
		return fmt.Errorf("card number must be between 12 and 19 digits")
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return fmt.Errorf("card number must be numeric")
		}
	}
	return nil
}

// maskCardNumber keeps only the last four digits on record.
func maskCardNumber(card string) string {
	digits := strings.ReplaceAll(card, " ", "")
	if len(digits) <= 4 {
		return digits
	}
	return strings.Repeat("*", len(digits)-4) + digits[len(digits)-4:]
}
