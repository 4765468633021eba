package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/transitpago/transitpago/internal/wallet"
)

const defaultMaxAttempts = 5

// Engine is the only component allowed to change a wallet balance, and the
// sole authority on whether a debit goes through. Every attempt leaves a
// ledger entry behind, including rejected ones, so the attempt history stays
// complete.
//
// Coordination happens entirely through the stores' compare-and-set
// primitives: settlement attempts against one wallet are serialized by the
// balance version, and entry finalization is serialized by the status CAS.
type Engine struct {
	wallets     wallet.Store
	entries     EntryStore
	logger      *slog.Logger
	maxAttempts int
}

// NewEngine wires the engine to its stores. maxAttempts bounds the
// read-check-write retries after losing a balance CAS race; values below 1
// fall back to the default of 5.
func NewEngine(wallets wallet.Store, entries EntryStore, logger *slog.Logger, maxAttempts int) *Engine {
	if maxAttempts < 1 {
		maxAttempts = defaultMaxAttempts
	}
	return &Engine{wallets: wallets, entries: entries, logger: logger, maxAttempts: maxAttempts}
}

// ReserveAndSettleDebit records a pending payment entry, then attempts to
// debit the wallet under optimistic concurrency control. Exactly one terminal
// entry exists per attempt; the balance is decremented iff the entry ends up
// completed.
func (e *Engine) ReserveAndSettleDebit(ctx context.Context, accountID string, amount decimal.Decimal, description string, metadata map[string]string) (Entry, error) {
	if !amount.IsPositive() {
		return Entry{}, ErrInvalidAmount
	}

	entry := newEntry(accountID, amount.Neg(), KindPayment, description, metadata)
	if err := e.entries.Create(ctx, entry); err != nil {
		return Entry{}, &StorageError{Op: "create entry", Err: err}
	}

	for attempt := 0; attempt < e.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			// Deadline passed: stop retrying. The entry stays pending and is
			// picked up by out-of-band reconciliation.
			return entry, fmt.Errorf("%w: %v", ErrTimeout, err)
		}

		w, err := e.wallets.Get(ctx, accountID)
		if err != nil {
			if errors.Is(err, wallet.ErrNotFound) {
				e.failEntry(ctx, &entry, "wallet_not_found")
				return entry, err
			}
			return entry, &StorageError{Op: "read wallet", Err: err}
		}

		if w.Balance.LessThan(amount) {
			e.failEntry(ctx, &entry, ReasonInsufficientBalance)
			return entry, &InsufficientBalanceError{Required: amount, Available: w.Balance}
		}

		ok, _, err := e.wallets.CompareAndSetBalance(ctx, accountID, w.Version, w.Balance.Sub(amount))
		if err != nil {
			if errors.Is(err, wallet.ErrNotFound) {
				e.failEntry(ctx, &entry, "wallet_not_found")
				return entry, err
			}
			// Indeterminate: the write may or may not have landed. Leave the
			// entry pending rather than guessing.
			return entry, &StorageError{Op: "compare-and-set balance", Err: err}
		}
		if ok {
			e.completeEntry(ctx, &entry)
			return entry, nil
		}
		// Lost the race to a concurrent mutation; re-read and retry.
	}

	e.failEntry(ctx, &entry, ReasonConcurrentConflict)
	return entry, ErrConcurrencyConflict
}

// Credit applies a top-up or refund to the wallet with the same CAS-retry
// discipline as debits, minus the sufficiency check.
func (e *Engine) Credit(ctx context.Context, accountID string, amount decimal.Decimal, kind Kind, description string, metadata map[string]string) (Entry, error) {
	if !amount.IsPositive() {
		return Entry{}, ErrInvalidAmount
	}
	if kind != KindTopUp && kind != KindRefund {
		return Entry{}, fmt.Errorf("credit kind must be %s or %s, got %s", KindTopUp, KindRefund, kind)
	}

	entry := newEntry(accountID, amount, kind, description, metadata)
	if err := e.entries.Create(ctx, entry); err != nil {
		return Entry{}, &StorageError{Op: "create entry", Err: err}
	}

	for attempt := 0; attempt < e.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return entry, fmt.Errorf("%w: %v", ErrTimeout, err)
		}

		w, err := e.wallets.Get(ctx, accountID)
		if err != nil {
			if errors.Is(err, wallet.ErrNotFound) {
				e.failEntry(ctx, &entry, "wallet_not_found")
				return entry, err
			}
			return entry, &StorageError{Op: "read wallet", Err: err}
		}

		ok, _, err := e.wallets.CompareAndSetBalance(ctx, accountID, w.Version, w.Balance.Add(amount))
		if err != nil {
			if errors.Is(err, wallet.ErrNotFound) {
				e.failEntry(ctx, &entry, "wallet_not_found")
				return entry, err
			}
			return entry, &StorageError{Op: "compare-and-set balance", Err: err}
		}
		if ok {
			e.completeEntry(ctx, &entry)
			return entry, nil
		}
	}

	e.failEntry(ctx, &entry, ReasonConcurrentConflict)
	return entry, ErrConcurrencyConflict
}

// MarkRefunded transitions a completed payment entry to refunded and credits
// the account by the absolute value of the original amount. It returns the
// refund credit entry.
func (e *Engine) MarkRefunded(ctx context.Context, entryID string) (Entry, error) {
	original, err := e.entries.FindByID(ctx, entryID)
	if err != nil {
		if errors.Is(err, ErrEntryNotFound) {
			return Entry{}, err
		}
		return Entry{}, &StorageError{Op: "read entry", Err: err}
	}
	if original.Kind != KindPayment || original.Status != StatusCompleted {
		return Entry{}, ErrNotRefundable
	}

	ok, err := e.entries.UpdateStatus(ctx, entryID, StatusCompleted, StatusRefunded, nil)
	if err != nil {
		return Entry{}, &StorageError{Op: "mark refunded", Err: err}
	}
	if !ok {
		// Someone else finalized the entry between our read and the CAS.
		return Entry{}, ErrNotRefundable
	}

	credit, err := e.Credit(ctx, original.AccountID, original.Amount.Abs(), KindRefund,
		"Refund of "+original.Description, map[string]string{MetaRefundOf: original.ID})
	if err != nil {
		// The entry is already refunded but the money has not come back.
		e.logger.Error("refund credit failed after status transition; reconciliation required",
			slog.String("entry_id", original.ID),
			slog.String("account_id", original.AccountID),
			slog.Any("error", err))
		return credit, err
	}
	return credit, nil
}

func newEntry(accountID string, amount decimal.Decimal, kind Kind, description string, metadata map[string]string) Entry {
	meta := make(map[string]string, len(metadata))
	for k, v := range metadata {
		meta[k] = v
	}
	now := time.Now().UTC()
	return Entry{
		ID:          uuid.New().String(),
		AccountID:   accountID,
		Amount:      amount,
		Kind:        kind,
		Status:      StatusPending,
		Description: description,
		Metadata:    meta,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// completeEntry finalizes a settled entry. The balance has already moved, so
// a failure here is a ledger inconsistency: flagged loudly, never surfaced as
// a payment failure to the caller.
func (e *Engine) completeEntry(ctx context.Context, entry *Entry) {
	ok, err := e.entries.UpdateStatus(ctx, entry.ID, StatusPending, StatusCompleted, nil)
	if err != nil || !ok {
		e.logger.Error("entry completion write failed after balance mutation; reconciliation required",
			slog.String("entry_id", entry.ID),
			slog.String("account_id", entry.AccountID),
			slog.Bool("cas_ok", ok),
			slog.Any("error", err))
	}
	entry.Status = StatusCompleted
	entry.UpdatedAt = time.Now().UTC()
}

// failEntry records a rejected attempt. No money moved; a failure to record
// the rejection loses audit detail but nothing else.
func (e *Engine) failEntry(ctx context.Context, entry *Entry, reason string) {
	ok, err := e.entries.UpdateStatus(ctx, entry.ID, StatusPending, StatusFailed,
		map[string]string{MetaRejectionReason: reason})
	if err != nil || !ok {
		e.logger.Warn("could not record failed entry",
			slog.String("entry_id", entry.ID),
			slog.String("reason", reason),
			slog.Any("error", err))
	}
	entry.Status = StatusFailed
	if entry.Metadata == nil {
		entry.Metadata = make(map[string]string, 1)
	}
	entry.Metadata[MetaRejectionReason] = reason
	entry.UpdatedAt = time.Now().UTC()
}
