package ledger

import "context"

// EntryStore is the durable, append-mostly record of every attempted money
// movement. Status changes go through UpdateStatus, a compare-and-swap on the
// current status, so two settlement paths can never both finalize one entry.
type EntryStore interface {
	Create(ctx context.Context, entry Entry) error

	// UpdateStatus transitions the entry from one status to another, merging
	// annotations into its metadata. It returns ok=false without mutating
	// anything when the entry is not currently in from, or when the
	// transition itself is illegal.
	UpdateStatus(ctx context.Context, id string, from, to Status, annotations map[string]string) (ok bool, err error)

	FindByID(ctx context.Context, id string) (Entry, error)

	// ListByAccount returns the account's entries newest first.
	ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]Entry, error)

	// ListByDriver returns payment entries collected by the given driver,
	// newest first, matched on the driver_id metadata key.
	ListByDriver(ctx context.Context, driverID string, limit, offset int) ([]Entry, error)
}
