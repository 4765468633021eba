package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PostgresEntryStore persists ledger entries in PostgreSQL. Metadata is a
// jsonb column; status transitions are single guarded UPDATEs.
type PostgresEntryStore struct {
	db *pgxpool.Pool
}

// NewPostgresEntryStore builds a Postgres-backed entry store.
func NewPostgresEntryStore(db *pgxpool.Pool) *PostgresEntryStore {
	return &PostgresEntryStore{db: db}
}

// Create inserts an entry row.
func (s *PostgresEntryStore) Create(ctx context.Context, entry Entry) error {
	entryID, err := uuid.Parse(entry.ID)
	if err != nil {
		return err
	}
	accountID, err := uuid.Parse(entry.AccountID)
	if err != nil {
		return err
	}
	if entry.Metadata == nil {
		entry.Metadata = map[string]string{}
	}
	meta, err := json.Marshal(entry.Metadata)
	if err != nil {
		return err
	}
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err = s.db.Exec(ctx, `INSERT INTO ledger_entries (id, account_id, amount, kind, status, description, metadata, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)`,
		entryID, accountID, entry.Amount, string(entry.Kind), string(entry.Status),
		entry.Description, meta, createdAt)
	return err
}

// UpdateStatus performs the status CAS, merging annotations into metadata.
func (s *PostgresEntryStore) UpdateStatus(ctx context.Context, id string, from, to Status, annotations map[string]string) (bool, error) {
	if !from.CanTransition(to) {
		return false, nil
	}
	entryID, err := uuid.Parse(id)
	if err != nil {
		return false, ErrEntryNotFound
	}
	if annotations == nil {
		// jsonb || null is an error in Postgres; merge an empty object instead.
		annotations = map[string]string{}
	}
	extra, err := json.Marshal(annotations)
	if err != nil {
		return false, err
	}
	tag, err := s.db.Exec(ctx, `UPDATE ledger_entries
        SET status = $1, metadata = metadata || $2::jsonb, updated_at = now()
        WHERE id = $3 AND status = $4`,
		string(to), extra, entryID, string(from))
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		// Stale status or missing entry.
		var exists bool
		if err := s.db.QueryRow(ctx, `SELECT true FROM ledger_entries WHERE id = $1`, entryID).Scan(&exists); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return false, ErrEntryNotFound
			}
			return false, err
		}
		return false, nil
	}
	return true, nil
}

// FindByID fetches an entry by identifier.
func (s *PostgresEntryStore) FindByID(ctx context.Context, id string) (Entry, error) {
	entryID, err := uuid.Parse(id)
	if err != nil {
		return Entry{}, ErrEntryNotFound
	}
	row := s.db.QueryRow(ctx, selectEntry+` WHERE id = $1`, entryID)
	entry, err := scanEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Entry{}, ErrEntryNotFound
	}
	return entry, err
}

// ListByAccount returns the account's entries newest first.
func (s *PostgresEntryStore) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]Entry, error) {
	id, err := uuid.Parse(accountID)
	if err != nil {
		return nil, nil
	}
	rows, err := s.db.Query(ctx, selectEntry+` WHERE account_id = $1
        ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`, id, normalizeLimit(limit), normalizeOffset(offset))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntries(rows)
}

// ListByDriver returns payment entries collected by the driver, newest first.
func (s *PostgresEntryStore) ListByDriver(ctx context.Context, driverID string, limit, offset int) ([]Entry, error) {
	rows, err := s.db.Query(ctx, selectEntry+` WHERE kind = $1 AND metadata->>'driver_id' = $2
        ORDER BY created_at DESC, id DESC LIMIT $3 OFFSET $4`,
		string(KindPayment), driverID, normalizeLimit(limit), normalizeOffset(offset))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntries(rows)
}

const selectEntry = `SELECT id, account_id, amount, kind, status, description, metadata, created_at, updated_at FROM ledger_entries`

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	return limit
}

func normalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}

func scanEntries(rows pgx.Rows) ([]Entry, error) {
	var out []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

func scanEntry(row pgx.Row) (Entry, error) {
	var (
		id        uuid.UUID
		accountID uuid.UUID
		amount    decimal.Decimal
		kind      string
		status    string
		meta      []byte
		createdAt time.Time
		updatedAt time.Time
		entry     Entry
	)
	if err := row.Scan(&id, &accountID, &amount, &kind, &status, &entry.Description, &meta, &createdAt, &updatedAt); err != nil {
		return Entry{}, err
	}
	entry.ID = id.String()
	entry.AccountID = accountID.String()
	entry.Amount = amount
	entry.Kind = Kind(kind)
	entry.Status = Status(status)
	entry.CreatedAt = createdAt.UTC()
	entry.UpdatedAt = updatedAt.UTC()
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &entry.Metadata); err != nil {
			return Entry{}, err
		}
	}
	return entry, nil
}
