package identity

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when no account matches the lookup key.
var ErrNotFound = errors.New("account not found")

// Repository persists rider and driver accounts.
type Repository interface {
	Create(ctx context.Context, account Account) error
	FindByID(ctx context.Context, id string) (Account, error)
	FindByEmail(ctx context.Context, email string) (Account, error)
	FindByQRToken(ctx context.Context, token string) (Account, error)
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed account repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new account.
func (r *PostgresRepository) Create(ctx context.Context, account Account) error {
	accountID, err := uuid.Parse(account.ID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO accounts (id, name, email, role, password_hash, qr_token, license_number, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		accountID, account.Name, account.Email, account.Role, account.PasswordHash,
		account.QRToken, account.LicenseNumber, account.CreatedAt.UTC())
	return err
}

// FindByID fetches an account by identifier.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (Account, error) {
	accountID, err := uuid.Parse(id)
	if err != nil {
		return Account{}, ErrNotFound
	}
	return r.scanOne(r.db.QueryRow(ctx, selectAccount+` WHERE id = $1`, accountID))
}

// FindByEmail fetches an account by email.
func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (Account, error) {
	return r.scanOne(r.db.QueryRow(ctx, selectAccount+` WHERE email = $1`, email))
}

// FindByQRToken resolves a scanned QR payload to the owning account.
func (r *PostgresRepository) FindByQRToken(ctx context.Context, token string) (Account, error) {
	return r.scanOne(r.db.QueryRow(ctx, selectAccount+` WHERE qr_token = $1`, token))
}

const selectAccount = `SELECT id, name, email, role, password_hash, qr_token, license_number, created_at FROM accounts`

func (r *PostgresRepository) scanOne(row pgx.Row) (Account, error) {
	var (
		id        uuid.UUID
		createdAt time.Time
		account   Account
	)
	if err := row.Scan(&id, &account.Name, &account.Email, &account.Role, &account.PasswordHash,
		&account.QRToken, &account.LicenseNumber, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrNotFound
		}
		return Account{}, err
	}
	account.ID = id.String()
	account.CreatedAt = createdAt.UTC()
	return account, nil
}
