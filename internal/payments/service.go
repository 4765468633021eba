package payments

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/transitpago/transitpago/internal/identity"
	"github.com/transitpago/transitpago/internal/ledger"
	"github.com/transitpago/transitpago/internal/notification"
	"github.com/transitpago/transitpago/internal/wallet"
)

var (
	// ErrPaymentMethodNotFound occurs when a top-up references a method id
	// that is not stored on the payer's wallet.
	ErrPaymentMethodNotFound = errors.New("payment method not found")

	// ErrRefundNotAllowed occurs when the caller is not the party that
	// collected the payment being reversed.
	ErrRefundNotAllowed = errors.New("not authorized to refund this entry")
)

// Service is the settlement facade: the three money-movement use cases plus
// the history views built on top of them.
type Service struct {
	engine        *ledger.Engine
	resolver      *Resolver
	wallets       *wallet.Service
	entries       ledger.EntryStore
	accounts      identity.Repository
	notifier      notification.Notifier
	settleTimeout time.Duration
}

// NewService wires the settlement facade. settleTimeout caps each money
// movement end to end; zero disables the cap.
func NewService(engine *ledger.Engine, resolver *Resolver, wallets *wallet.Service, entries ledger.EntryStore, accounts identity.Repository, notifier notification.Notifier, settleTimeout time.Duration) *Service {
	return &Service{
		engine:        engine,
		resolver:      resolver,
		wallets:       wallets,
		entries:       entries,
		accounts:      accounts,
		notifier:      notifier,
		settleTimeout: settleTimeout,
	}
}

// settleContext bounds a settlement attempt by the configured timeout.
func (s *Service) settleContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.settleTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.settleTimeout)
}

// Receipt is the outcome of a settled (or rejected) payment.
type Receipt struct {
	Entry      ledger.Entry
	NewBalance decimal.Decimal
	Payer      identity.Account
}

// DriverReceipt extends Receipt with the collection context for the driver's
// record.
type DriverReceipt struct {
	Receipt
	RouteCode  string
	RouteName  string
	FareAmount decimal.Decimal
	DriverID   string
	DriverName string
}

// SelfServiceScan settles a rider-presented QR payment at a fixed reader.
func (s *Service) SelfServiceScan(ctx context.Context, qrPayload string, amount decimal.Decimal) (Receipt, error) {
	req, err := s.resolver.ResolveSelfService(ctx, qrPayload, amount)
	if err != nil {
		return Receipt{}, err
	}
	return s.settleDebit(ctx, req)
}

// DriverScan settles a driver-collected fare. The amount is the route's
// server-side fare resolved by the Resolver.
func (s *Service) DriverScan(ctx context.Context, driverID, qrPayload, routeCode string) (DriverReceipt, error) {
	driver, err := s.accounts.FindByID(ctx, driverID)
	if err != nil {
		return DriverReceipt{}, err
	}

	req, err := s.resolver.ResolveDriverCollected(ctx, qrPayload, routeCode, driverID)
	if err != nil {
		return DriverReceipt{}, err
	}
	req.Metadata[ledger.MetaDriverName] = driver.Name

	receipt, err := s.settleDebit(ctx, req)
	if err != nil {
		return DriverReceipt{}, err
	}

	return DriverReceipt{
		Receipt:    receipt,
		RouteCode:  req.Metadata[ledger.MetaRouteCode],
		RouteName:  req.Metadata[ledger.MetaRouteName],
		FareAmount: req.Amount,
		DriverID:   driver.ID,
		DriverName: driver.Name,
	}, nil
}

// TopUp credits the wallet after validating the referenced payment method
// exists on the account. Cards are stored, never charged.
func (s *Service) TopUp(ctx context.Context, accountID string, amount decimal.Decimal, paymentMethodID string) (Receipt, error) {
	has, err := s.wallets.HasPaymentMethod(ctx, accountID, paymentMethodID)
	if err != nil {
		return Receipt{}, err
	}
	if !has {
		return Receipt{}, ErrPaymentMethodNotFound
	}

	settleCtx, cancel := s.settleContext(ctx)
	defer cancel()
	entry, err := s.engine.Credit(settleCtx, accountID, amount, ledger.KindTopUp,
		fmt.Sprintf("Balance top-up - method: %s", paymentMethodID),
		map[string]string{ledger.MetaPaymentMethodID: paymentMethodID})
	if err != nil {
		return Receipt{Entry: entry}, err
	}

	s.notify(ctx, notification.KindTopUp, accountID,
		fmt.Sprintf("Your wallet was topped up by %s", amount))

	w, werr := s.wallets.Get(ctx, accountID)
	if werr != nil {
		return Receipt{Entry: entry}, nil
	}
	return Receipt{Entry: entry, NewBalance: w.Balance}, nil
}

// Refund reverses a completed payment entry. Only the driver who collected
// the fare may initiate it; self-service payments carry no collecting party
// and cannot be reversed through this path.
func (s *Service) Refund(ctx context.Context, driverID, entryID string) (ledger.Entry, error) {
	entry, err := s.entries.FindByID(ctx, entryID)
	if err != nil {
		return ledger.Entry{}, err
	}
	if driverID == "" || entry.Metadata[ledger.MetaDriverID] != driverID {
		return ledger.Entry{}, ErrRefundNotAllowed
	}

	settleCtx, cancel := s.settleContext(ctx)
	defer cancel()
	return s.engine.MarkRefunded(settleCtx, entryID)
}

// History returns the account's ledger entries, newest first.
func (s *Service) History(ctx context.Context, accountID string, limit, offset int) ([]ledger.Entry, error) {
	return s.entries.ListByAccount(ctx, accountID, limit, offset)
}

// DriverHistory returns payments collected by the driver, newest first.
func (s *Service) DriverHistory(ctx context.Context, driverID string, limit, offset int) ([]ledger.Entry, error) {
	return s.entries.ListByDriver(ctx, driverID, limit, offset)
}

// DailySummary aggregates the driver's completed collections for one UTC day.
type DailySummary struct {
	Date           string
	TotalCollected decimal.Decimal
	Transactions   int
	RouteCodes     []string
}

// DriverDailySummary totals completed fare collections for the given day.
func (s *Service) DriverDailySummary(ctx context.Context, driverID string, day time.Time) (DailySummary, error) {
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.Add(24 * time.Hour)

	summary := DailySummary{
		Date:           dayStart.Format("2006-01-02"),
		TotalCollected: decimal.Zero,
	}
	routes := make(map[string]struct{})

	const pageSize = 200
	for offset := 0; ; offset += pageSize {
		page, err := s.entries.ListByDriver(ctx, driverID, pageSize, offset)
		if err != nil {
			return DailySummary{}, err
		}
		for _, entry := range page {
			if entry.Status != ledger.StatusCompleted {
				continue
			}
			if entry.CreatedAt.Before(dayStart) || !entry.CreatedAt.Before(dayEnd) {
				continue
			}
			summary.TotalCollected = summary.TotalCollected.Add(entry.Amount.Abs())
			summary.Transactions++
			if code := entry.Metadata[ledger.MetaRouteCode]; code != "" {
				routes[code] = struct{}{}
			}
		}
		if len(page) < pageSize {
			break
		}
	}

	for code := range routes {
		summary.RouteCodes = append(summary.RouteCodes, code)
	}
	sort.Strings(summary.RouteCodes)
	return summary, nil
}

func (s *Service) settleDebit(ctx context.Context, req DebitRequest) (Receipt, error) {
	settleCtx, cancel := s.settleContext(ctx)
	defer cancel()
	entry, err := s.engine.ReserveAndSettleDebit(settleCtx, req.AccountID, req.Amount, req.Description, req.Metadata)
	if err != nil {
		return Receipt{Entry: entry}, err
	}

	receipt := Receipt{Entry: entry}
	if w, werr := s.wallets.Get(ctx, req.AccountID); werr == nil {
		receipt.NewBalance = w.Balance
	}
	if payer, perr := s.accounts.FindByID(ctx, req.AccountID); perr == nil {
		receipt.Payer = payer
	}

	s.notify(ctx, notification.KindFarePayment, req.AccountID,
		fmt.Sprintf("Payment of %s settled: %s", req.Amount, req.Description))

	return receipt, nil
}

func (s *Service) notify(ctx context.Context, kind, destination, body string) {
	if s.notifier == nil {
		return
	}
	_ = s.notifier.Send(ctx, notification.Message{Kind: kind, Destination: destination, Body: body})
}
