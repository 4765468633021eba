package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/transitpago/transitpago/internal/identity"
	"github.com/transitpago/transitpago/internal/ledger"
	"github.com/transitpago/transitpago/internal/transit"
)

var (
	// ErrInvalidQRCode occurs when a scan payload does not resolve to a
	// registered account.
	ErrInvalidQRCode = errors.New("invalid QR code")

	// ErrRouteNotFound occurs when no route matches the given code.
	ErrRouteNotFound = errors.New("route not found")

	// ErrRouteInactive occurs when the route exists but is not in service.
	ErrRouteInactive = errors.New("route is not active")

	// ErrDriverNotAssigned occurs when the collecting driver is not on the
	// route's roster.
	ErrDriverNotAssigned = errors.New("driver not assigned to route")

	// ErrInvalidRouteFare occurs when the route has no positive fare configured.
	ErrInvalidRouteFare = errors.New("route has no valid fare configured")
)

// DebitRequest is a fully resolved charge: who pays, how much, and why.
type DebitRequest struct {
	AccountID   string
	Amount      decimal.Decimal
	Description string
	Metadata    map[string]string
}

// Resolver turns raw scan payloads into concrete debit requests, keeping
// amount determination out of the ledger engine.
type Resolver struct {
	accounts identity.Repository
	routes   transit.Repository
}

// NewResolver builds a payment resolver.
func NewResolver(accounts identity.Repository, routes transit.Repository) *Resolver {
	return &Resolver{accounts: accounts, routes: routes}
}

// ResolveSelfService handles a rider-presented QR at a fixed reader. The
// payload identifies the payer; the amount comes from the terminal.
func (r *Resolver) ResolveSelfService(ctx context.Context, qrPayload string, amount decimal.Decimal) (DebitRequest, error) {
	payer, err := r.resolvePayer(ctx, qrPayload)
	if err != nil {
		return DebitRequest{}, err
	}
	return DebitRequest{
		AccountID:   payer.ID,
		Amount:      amount,
		Description: fmt.Sprintf("QR payment - code: %s", qrPayload),
		Metadata: map[string]string{
			ledger.MetaQRPayload: qrPayload,
		},
	}, nil
}

// ResolveDriverCollected handles a driver scanning a rider's QR on a route.
// The charge is always the route's server-side fare; nothing in the request
// payload can influence the amount.
func (r *Resolver) ResolveDriverCollected(ctx context.Context, qrPayload, routeCode, driverID string) (DebitRequest, error) {
	route, err := r.routes.FindByCode(ctx, routeCode)
	if err != nil {
		if errors.Is(err, transit.ErrNotFound) {
			return DebitRequest{}, ErrRouteNotFound
		}
		return DebitRequest{}, err
	}
	if !route.Active {
		return DebitRequest{}, ErrRouteInactive
	}
	if !route.HasDriver(driverID) {
		return DebitRequest{}, ErrDriverNotAssigned
	}
	if !route.FareAmount.IsPositive() {
		return DebitRequest{}, ErrInvalidRouteFare
	}

	payer, err := r.resolvePayer(ctx, qrPayload)
	if err != nil {
		return DebitRequest{}, err
	}

	return DebitRequest{
		AccountID:   payer.ID,
		Amount:      route.FareAmount,
		Description: fmt.Sprintf("Fare payment - route: %s (%s)", route.Name, route.Code),
		Metadata: map[string]string{
			ledger.MetaQRPayload: qrPayload,
			ledger.MetaRouteCode: route.Code,
			ledger.MetaRouteName: route.Name,
			ledger.MetaDriverID:  driverID,
		},
	}, nil
}

func (r *Resolver) resolvePayer(ctx context.Context, qrPayload string) (identity.Account, error) {
	payload := strings.TrimSpace(qrPayload)
	if payload == "" {
		return identity.Account{}, ErrInvalidQRCode
	}
	account, err := r.accounts.FindByQRToken(ctx, payload)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, identity.ErrNotFound) {
		return identity.Account{}, err
	}
	return identity.Account{}, ErrInvalidQRCode
}
