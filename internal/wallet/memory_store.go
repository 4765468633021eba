package wallet

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

type memoryStore struct {
	mu      sync.RWMutex
	wallets map[string]Wallet
}

// NewMemoryStore constructs a concurrency-safe in-memory wallet store for
// tests and dev mode.
func NewMemoryStore() Store {
	return &memoryStore{wallets: make(map[string]Wallet)}
}

func (s *memoryStore) Create(_ context.Context, w Wallet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.wallets[w.AccountID]; exists {
		return ErrExists
	}
	if w.CreatedAt.IsZero() {
		w.CreatedAt = time.Now().UTC()
	}
	w.UpdatedAt = w.CreatedAt
	s.wallets[w.AccountID] = cloneWallet(w)
	return nil
}

func (s *memoryStore) Get(_ context.Context, accountID string) (Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.wallets[accountID]
	if !ok {
		return Wallet{}, ErrNotFound
	}
	return cloneWallet(w), nil
}

func (s *memoryStore) CompareAndSetBalance(_ context.Context, accountID string, expectedVersion int64, newBalance decimal.Decimal) (bool, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[accountID]
	if !ok {
		return false, 0, ErrNotFound
	}
	if w.Version != expectedVersion {
		return false, w.Version, nil
	}
	w.Balance = newBalance
	w.Version++
	w.UpdatedAt = time.Now().UTC()
	s.wallets[accountID] = w
	return true, w.Version, nil
}

func (s *memoryStore) AddPaymentMethod(_ context.Context, accountID string, method PaymentMethod) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[accountID]
	if !ok {
		return ErrNotFound
	}
	w.PaymentMethods = append(w.PaymentMethods, method)
	w.UpdatedAt = time.Now().UTC()
	s.wallets[accountID] = w
	return nil
}

func (s *memoryStore) RemovePaymentMethod(_ context.Context, accountID, methodID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[accountID]
	if !ok {
		return ErrNotFound
	}
	for i, m := range w.PaymentMethods {
		if m.ID == methodID {
			w.PaymentMethods = append(w.PaymentMethods[:i], w.PaymentMethods[i+1:]...)
			w.UpdatedAt = time.Now().UTC()
			s.wallets[accountID] = w
			return nil
		}
	}
	return ErrMethodNotFound
}

func cloneWallet(w Wallet) Wallet {
	methods := make([]PaymentMethod, len(w.PaymentMethods))
	copy(methods, w.PaymentMethods)
	w.PaymentMethods = methods
	return w
}
