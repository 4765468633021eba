package payments

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/transitpago/transitpago/internal/identity"
	"github.com/transitpago/transitpago/internal/ledger"
	"github.com/transitpago/transitpago/internal/logging"
	"github.com/transitpago/transitpago/internal/notification"
	"github.com/transitpago/transitpago/internal/transit"
	"github.com/transitpago/transitpago/internal/wallet"
)

type fixture struct {
	service  *Service
	accounts identity.Repository
	routes   transit.Repository
	wallets  *wallet.Service
	entries  ledger.EntryStore
	notes    *recordingNotifier
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []notification.Message
}

func (n *recordingNotifier) Send(_ context.Context, message notification.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, message)
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.messages)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	accounts := identity.NewMemoryRepository()
	routes := transit.NewMemoryRepository()
	walletStore := wallet.NewMemoryStore()
	entries := ledger.NewMemoryEntryStore()
	notes := &recordingNotifier{}

	walletSvc := wallet.NewService(walletStore)
	engine := ledger.NewEngine(walletStore, entries, logging.Discard(), 5)
	resolver := NewResolver(accounts, routes)

	return &fixture{
		service:  NewService(engine, resolver, walletSvc, entries, accounts, notes, 10*time.Second),
		accounts: accounts,
		routes:   routes,
		wallets:  walletSvc,
		entries:  entries,
		notes:    notes,
	}
}

func (f *fixture) rider(t *testing.T, balance string) identity.Account {
	t.Helper()
	rider := seedAccount(t, f.accounts, identity.RoleRider)
	if _, err := f.wallets.Provision(context.Background(), rider.ID); err != nil {
		t.Fatalf("provision wallet: %v", err)
	}
	if balance != "0" && balance != "0.00" {
		engineTopUp(t, f, rider.ID, balance)
	}
	return rider
}

// engineTopUp funds a wallet through a stored method so test balances follow
// the same path production money does.
func engineTopUp(t *testing.T, f *fixture, accountID, amount string) {
	t.Helper()
	method, err := f.wallets.AddPaymentMethod(context.Background(), accountID, wallet.AddPaymentMethodInput{
		CardHolder: "Fixture",
		CardNumber: "4242424242424242",
		Expiry:     "12/27",
	})
	if err != nil {
		t.Fatalf("add method: %v", err)
	}
	if _, err := f.service.TopUp(context.Background(), accountID, decimal.RequireFromString(amount), method.ID); err != nil {
		t.Fatalf("top up: %v", err)
	}
}

func TestSelfServiceScan(t *testing.T) {
	f := newFixture(t)
	rider := f.rider(t, "10.00")

	receipt, err := f.service.SelfServiceScan(context.Background(), rider.QRToken, decimal.RequireFromString("2.50"))
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if receipt.Entry.Status != ledger.StatusCompleted {
		t.Fatalf("expected completed entry, got %s", receipt.Entry.Status)
	}
	if !receipt.NewBalance.Equal(decimal.RequireFromString("7.50")) {
		t.Fatalf("expected balance 7.50, got %s", receipt.NewBalance)
	}
	if receipt.Payer.ID != rider.ID {
		t.Fatalf("payer not resolved: %+v", receipt.Payer)
	}
	if f.notes.count() == 0 {
		t.Fatal("expected a payment notification")
	}
}

func TestSelfServiceScanInvalidQRCreatesNoEntry(t *testing.T) {
	f := newFixture(t)
	rider := f.rider(t, "0.00")

	if _, err := f.service.SelfServiceScan(context.Background(), uuid.NewString(), decimal.NewFromInt(1)); !errors.Is(err, ErrInvalidQRCode) {
		t.Fatalf("expected ErrInvalidQRCode, got %v", err)
	}

	history, err := f.service.History(context.Background(), rider.ID, 10, 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("rejected resolution must not create entries, got %d", len(history))
	}
}

func TestDriverScan(t *testing.T) {
	f := newFixture(t)
	rider := f.rider(t, "10.00")
	driver := seedAccount(t, f.accounts, identity.RoleDriver)
	route := seedRoute(t, f.routes, transit.Route{
		Code:              "L1",
		Name:              "Centre - Gare",
		FareAmount:        decimal.RequireFromString("1.50"),
		AssignedDriverIDs: []string{driver.ID},
		Active:            true,
	})

	receipt, err := f.service.DriverScan(context.Background(), driver.ID, rider.QRToken, route.Code)
	if err != nil {
		t.Fatalf("driver scan: %v", err)
	}
	if !receipt.FareAmount.Equal(route.FareAmount) {
		t.Fatalf("expected route fare %s, got %s", route.FareAmount, receipt.FareAmount)
	}
	if receipt.DriverName != driver.Name || receipt.Entry.Metadata[ledger.MetaDriverName] != driver.Name {
		t.Fatalf("driver context missing: %+v", receipt)
	}
	if !receipt.NewBalance.Equal(decimal.RequireFromString("8.50")) {
		t.Fatalf("expected balance 8.50, got %s", receipt.NewBalance)
	}
}

func TestDriverScanInactiveRouteCreatesNoEntry(t *testing.T) {
	f := newFixture(t)
	rider := f.rider(t, "10.00")
	driver := seedAccount(t, f.accounts, identity.RoleDriver)
	seedRoute(t, f.routes, transit.Route{
		Code:              "L9",
		Name:              "Dormant",
		FareAmount:        decimal.RequireFromString("1.50"),
		AssignedDriverIDs: []string{driver.ID},
		Active:            false,
	})

	if _, err := f.service.DriverScan(context.Background(), driver.ID, rider.QRToken, "L9"); !errors.Is(err, ErrRouteInactive) {
		t.Fatalf("expected ErrRouteInactive, got %v", err)
	}

	history, _ := f.service.History(context.Background(), rider.ID, 10, 0)
	for _, e := range history {
		if e.Kind == ledger.KindPayment {
			t.Fatalf("rejected scan left a payment entry: %+v", e)
		}
	}
}

func TestTopUpRequiresStoredMethod(t *testing.T) {
	f := newFixture(t)
	rider := f.rider(t, "0.00")

	_, err := f.service.TopUp(context.Background(), rider.ID, decimal.NewFromInt(20), uuid.NewString())
	if !errors.Is(err, ErrPaymentMethodNotFound) {
		t.Fatalf("expected ErrPaymentMethodNotFound, got %v", err)
	}

	history, _ := f.service.History(context.Background(), rider.ID, 10, 0)
	if len(history) != 0 {
		t.Fatalf("rejected top-up must not create entries, got %d", len(history))
	}
}

func TestTopUp(t *testing.T) {
	f := newFixture(t)
	rider := f.rider(t, "0.00")

	method, err := f.wallets.AddPaymentMethod(context.Background(), rider.ID, wallet.AddPaymentMethodInput{
		CardHolder: "A Rider",
		CardNumber: "4242424242424242",
		Expiry:     "12/27",
	})
	if err != nil {
		t.Fatalf("add method: %v", err)
	}

	receipt, err := f.service.TopUp(context.Background(), rider.ID, decimal.RequireFromString("50.00"), method.ID)
	if err != nil {
		t.Fatalf("top up: %v", err)
	}
	if receipt.Entry.Kind != ledger.KindTopUp || receipt.Entry.Status != ledger.StatusCompleted {
		t.Fatalf("unexpected entry: %+v", receipt.Entry)
	}
	if receipt.Entry.Metadata[ledger.MetaPaymentMethodID] != method.ID {
		t.Fatalf("method not recorded: %+v", receipt.Entry.Metadata)
	}
	if !receipt.NewBalance.Equal(decimal.RequireFromString("50.00")) {
		t.Fatalf("expected balance 50.00, got %s", receipt.NewBalance)
	}
}

func TestRefundByCollectingDriver(t *testing.T) {
	f := newFixture(t)
	rider := f.rider(t, "10.00")
	driver := seedAccount(t, f.accounts, identity.RoleDriver)
	route := seedRoute(t, f.routes, transit.Route{
		Code: "L1", Name: "Centre - Gare",
		FareAmount:        decimal.RequireFromString("4.00"),
		AssignedDriverIDs: []string{driver.ID},
		Active:            true,
	})

	receipt, err := f.service.DriverScan(context.Background(), driver.ID, rider.QRToken, route.Code)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}

	credit, err := f.service.Refund(context.Background(), driver.ID, receipt.Entry.ID)
	if err != nil {
		t.Fatalf("refund: %v", err)
	}
	if credit.Kind != ledger.KindRefund || !credit.Amount.Equal(decimal.RequireFromString("4.00")) {
		t.Fatalf("unexpected refund entry: %+v", credit)
	}

	w, err := f.wallets.Get(context.Background(), rider.ID)
	if err != nil {
		t.Fatalf("get wallet: %v", err)
	}
	if !w.Balance.Equal(decimal.RequireFromString("10.00")) {
		t.Fatalf("expected balance restored to 10.00, got %s", w.Balance)
	}
}

func TestRefundDeniedForNonCollector(t *testing.T) {
	f := newFixture(t)
	rider := f.rider(t, "10.00")
	collector := seedAccount(t, f.accounts, identity.RoleDriver)
	other := seedAccount(t, f.accounts, identity.RoleDriver)
	route := seedRoute(t, f.routes, transit.Route{
		Code: "L1", Name: "Centre - Gare",
		FareAmount:        decimal.RequireFromString("4.00"),
		AssignedDriverIDs: []string{collector.ID},
		Active:            true,
	})

	receipt, err := f.service.DriverScan(context.Background(), collector.ID, rider.QRToken, route.Code)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}

	// Neither the paying rider nor an uninvolved driver may reverse the fare.
	for _, caller := range []string{rider.ID, other.ID, ""} {
		if _, err := f.service.Refund(context.Background(), caller, receipt.Entry.ID); !errors.Is(err, ErrRefundNotAllowed) {
			t.Fatalf("caller %q: expected ErrRefundNotAllowed, got %v", caller, err)
		}
	}

	stored, err := f.entries.FindByID(context.Background(), receipt.Entry.ID)
	if err != nil {
		t.Fatalf("find entry: %v", err)
	}
	if stored.Status != ledger.StatusCompleted {
		t.Fatalf("entry mutated by denied refund: %s", stored.Status)
	}
	w, _ := f.wallets.Get(context.Background(), rider.ID)
	if !w.Balance.Equal(decimal.RequireFromString("6.00")) {
		t.Fatalf("balance changed by denied refund: %s", w.Balance)
	}
}

func TestRefundDeniedForSelfServicePayment(t *testing.T) {
	f := newFixture(t)
	rider := f.rider(t, "10.00")
	driver := seedAccount(t, f.accounts, identity.RoleDriver)

	receipt, err := f.service.SelfServiceScan(context.Background(), rider.QRToken, decimal.RequireFromString("4.00"))
	if err != nil {
		t.Fatalf("scan: %v", err)
	}

	// No collecting party exists, so nobody can reverse it through this path.
	for _, caller := range []string{rider.ID, driver.ID} {
		if _, err := f.service.Refund(context.Background(), caller, receipt.Entry.ID); !errors.Is(err, ErrRefundNotAllowed) {
			t.Fatalf("caller %q: expected ErrRefundNotAllowed, got %v", caller, err)
		}
	}
}

// brittleReadStore serves a bounded number of reads, then fails. CAS and
// writes keep working, so money still moves.
type brittleReadStore struct {
	wallet.Store
	reads    int
	maxReads int
}

func (s *brittleReadStore) Get(ctx context.Context, accountID string) (wallet.Wallet, error) {
	s.reads++
	if s.reads > s.maxReads {
		return wallet.Wallet{}, errors.New("wallet read unavailable")
	}
	return s.Store.Get(ctx, accountID)
}

func TestTopUpNotifiesWhenBalanceReadFails(t *testing.T) {
	accounts := identity.NewMemoryRepository()
	store := &brittleReadStore{Store: wallet.NewMemoryStore(), maxReads: 2}
	entries := ledger.NewMemoryEntryStore()
	notes := &recordingNotifier{}

	walletSvc := wallet.NewService(store)
	engine := ledger.NewEngine(store, entries, logging.Discard(), 5)
	svc := NewService(engine, NewResolver(accounts, transit.NewMemoryRepository()),
		walletSvc, entries, accounts, notes, 10*time.Second)

	rider := seedAccount(t, accounts, identity.RoleRider)
	if _, err := walletSvc.Provision(context.Background(), rider.ID); err != nil {
		t.Fatalf("provision: %v", err)
	}
	method, err := walletSvc.AddPaymentMethod(context.Background(), rider.ID, wallet.AddPaymentMethodInput{
		CardHolder: "A Rider",
		CardNumber: "4242424242424242",
		Expiry:     "12/27",
	})
	if err != nil {
		t.Fatalf("add method: %v", err)
	}

	// Reads 1 and 2 cover the method check and the engine's settlement read;
	// the facade's post-credit balance read is the one that fails.
	receipt, err := svc.TopUp(context.Background(), rider.ID, decimal.RequireFromString("20.00"), method.ID)
	if err != nil {
		t.Fatalf("top up: %v", err)
	}
	if receipt.Entry.Status != ledger.StatusCompleted {
		t.Fatalf("expected completed entry, got %s", receipt.Entry.Status)
	}
	if notes.count() != 1 {
		t.Fatalf("expected top-up notification despite failed balance read, got %d", notes.count())
	}
	if !receipt.NewBalance.IsZero() {
		t.Fatalf("expected zero NewBalance when read fails, got %s", receipt.NewBalance)
	}
}

func TestHistoryNewestFirst(t *testing.T) {
	f := newFixture(t)
	rider := f.rider(t, "10.00")

	if _, err := f.service.SelfServiceScan(context.Background(), rider.QRToken, decimal.RequireFromString("1.00")); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if _, err := f.service.SelfServiceScan(context.Background(), rider.QRToken, decimal.RequireFromString("2.00")); err != nil {
		t.Fatalf("scan: %v", err)
	}

	history, err := f.service.History(context.Background(), rider.ID, 10, 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	for i := 1; i < len(history); i++ {
		if history[i].CreatedAt.After(history[i-1].CreatedAt) {
			t.Fatalf("history not newest-first at position %d", i)
		}
	}
}

func TestDriverDailySummary(t *testing.T) {
	f := newFixture(t)
	driver := seedAccount(t, f.accounts, identity.RoleDriver)
	routeA := seedRoute(t, f.routes, transit.Route{
		Code: "L1", Name: "Centre - Gare",
		FareAmount:        decimal.RequireFromString("1.50"),
		AssignedDriverIDs: []string{driver.ID},
		Active:            true,
	})
	routeB := seedRoute(t, f.routes, transit.Route{
		Code: "L2", Name: "Gare - Marche",
		FareAmount:        decimal.RequireFromString("2.00"),
		AssignedDriverIDs: []string{driver.ID},
		Active:            true,
	})

	riderA := f.rider(t, "10.00")
	riderB := f.rider(t, "10.00")

	if _, err := f.service.DriverScan(context.Background(), driver.ID, riderA.QRToken, routeA.Code); err != nil {
		t.Fatalf("scan A: %v", err)
	}
	if _, err := f.service.DriverScan(context.Background(), driver.ID, riderB.QRToken, routeA.Code); err != nil {
		t.Fatalf("scan B: %v", err)
	}
	if _, err := f.service.DriverScan(context.Background(), driver.ID, riderA.QRToken, routeB.Code); err != nil {
		t.Fatalf("scan C: %v", err)
	}
	// A failed collection must not count toward the total.
	broke := f.rider(t, "0.00")
	var insufficient *ledger.InsufficientBalanceError
	if _, err := f.service.DriverScan(context.Background(), driver.ID, broke.QRToken, routeA.Code); !errors.As(err, &insufficient) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}

	summary, err := f.service.DriverDailySummary(context.Background(), driver.ID, time.Now().UTC())
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.Transactions != 3 {
		t.Fatalf("expected 3 completed collections, got %d", summary.Transactions)
	}
	if !summary.TotalCollected.Equal(decimal.RequireFromString("5.00")) {
		t.Fatalf("expected total 5.00, got %s", summary.TotalCollected)
	}
	if len(summary.RouteCodes) != 2 || summary.RouteCodes[0] != "L1" || summary.RouteCodes[1] != "L2" {
		t.Fatalf("expected sorted distinct routes [L1 L2], got %v", summary.RouteCodes)
	}

	// A different day has nothing.
	yesterday, err := f.service.DriverDailySummary(context.Background(), driver.ID, time.Now().UTC().AddDate(0, 0, -1))
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if yesterday.Transactions != 0 || !yesterday.TotalCollected.IsZero() {
		t.Fatalf("expected empty summary, got %+v", yesterday)
	}
}

func TestDriverHistoryExcludesOtherDrivers(t *testing.T) {
	f := newFixture(t)
	rider := f.rider(t, "10.00")
	driverA := seedAccount(t, f.accounts, identity.RoleDriver)
	driverB := seedAccount(t, f.accounts, identity.RoleDriver)
	route := seedRoute(t, f.routes, transit.Route{
		Code: "L1", Name: "Centre - Gare",
		FareAmount:        decimal.RequireFromString("1.50"),
		AssignedDriverIDs: []string{driverA.ID, driverB.ID},
		Active:            true,
	})

	if _, err := f.service.DriverScan(context.Background(), driverA.ID, rider.QRToken, route.Code); err != nil {
		t.Fatalf("scan: %v", err)
	}

	collections, err := f.service.DriverHistory(context.Background(), driverB.ID, 10, 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(collections) != 0 {
		t.Fatalf("driver B should have no collections, got %d", len(collections))
	}
}
