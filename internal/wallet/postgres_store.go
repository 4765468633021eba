package wallet

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PostgresStore persists wallets in PostgreSQL. The balance column is NUMERIC
// and writes are guarded by the version column.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore builds a Postgres-backed wallet store.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// Create inserts a wallet row.
func (s *PostgresStore) Create(ctx context.Context, w Wallet) error {
	accountID, err := uuid.Parse(w.AccountID)
	if err != nil {
		return err
	}
	createdAt := w.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err = s.db.Exec(ctx, `INSERT INTO wallets (account_id, balance, version, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $4)`, accountID, w.Balance, w.Version, createdAt)
	return err
}

// Get fetches a wallet and its payment methods.
func (s *PostgresStore) Get(ctx context.Context, accountID string) (Wallet, error) {
	id, err := uuid.Parse(accountID)
	if err != nil {
		return Wallet{}, ErrNotFound
	}

	row := s.db.QueryRow(ctx, `SELECT account_id, balance, version, created_at, updated_at
        FROM wallets WHERE account_id = $1`, id)
	var (
		acc       uuid.UUID
		balance   decimal.Decimal
		w         Wallet
		createdAt time.Time
		updatedAt time.Time
	)
	if err := row.Scan(&acc, &balance, &w.Version, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Wallet{}, ErrNotFound
		}
		return Wallet{}, err
	}
	w.AccountID = acc.String()
	w.Balance = balance
	w.CreatedAt = createdAt.UTC()
	w.UpdatedAt = updatedAt.UTC()

	rows, err := s.db.Query(ctx, `SELECT id, card_holder, card_number, expiry, created_at
        FROM payment_methods WHERE account_id = $1 ORDER BY created_at`, id)
	if err != nil {
		return Wallet{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			mid uuid.UUID
			m   PaymentMethod
			ts  time.Time
		)
		if err := rows.Scan(&mid, &m.CardHolder, &m.CardNumber, &m.Expiry, &ts); err != nil {
			return Wallet{}, err
		}
		m.ID = mid.String()
		m.CreatedAt = ts.UTC()
		w.PaymentMethods = append(w.PaymentMethods, m)
	}
	return w, rows.Err()
}

// CompareAndSetBalance performs a version-guarded balance write in one statement.
func (s *PostgresStore) CompareAndSetBalance(ctx context.Context, accountID string, expectedVersion int64, newBalance decimal.Decimal) (bool, int64, error) {
	id, err := uuid.Parse(accountID)
	if err != nil {
		return false, 0, ErrNotFound
	}

	var newVersion int64
	err = s.db.QueryRow(ctx, `UPDATE wallets
        SET balance = $1, version = version + 1, updated_at = now()
        WHERE account_id = $2 AND version = $3
        RETURNING version`, newBalance, id, expectedVersion).Scan(&newVersion)
	if err == nil {
		return true, newVersion, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return false, 0, err
	}

	// The guarded update matched nothing: either the version moved or the
	// wallet is missing. Distinguish the two for the caller.
	var current int64
	err = s.db.QueryRow(ctx, `SELECT version FROM wallets WHERE account_id = $1`, id).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, 0, ErrNotFound
	}
	if err != nil {
		return false, 0, err
	}
	return false, current, nil
}

// AddPaymentMethod stores a card record for the account.
func (s *PostgresStore) AddPaymentMethod(ctx context.Context, accountID string, method PaymentMethod) error {
	id, err := uuid.Parse(accountID)
	if err != nil {
		return ErrNotFound
	}
	methodID, err := uuid.Parse(method.ID)
	if err != nil {
		return err
	}
	tag, err := s.db.Exec(ctx, `INSERT INTO payment_methods (id, account_id, card_holder, card_number, expiry, created_at)
        SELECT $1, account_id, $3, $4, $5, $6 FROM wallets WHERE account_id = $2`,
		methodID, id, method.CardHolder, method.CardNumber, method.Expiry, method.CreatedAt.UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RemovePaymentMethod deletes a stored card by id.
func (s *PostgresStore) RemovePaymentMethod(ctx context.Context, accountID, methodID string) error {
	id, err := uuid.Parse(accountID)
	if err != nil {
		return ErrNotFound
	}
	mid, err := uuid.Parse(methodID)
	if err != nil {
		return ErrMethodNotFound
	}
	tag, err := s.db.Exec(ctx, `DELETE FROM payment_methods WHERE id = $1 AND account_id = $2`, mid, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrMethodNotFound
	}
	return nil
}
