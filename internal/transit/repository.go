package transit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when no route matches the lookup code.
var ErrNotFound = errors.New("route not found")

// Repository persists transit routes.
type Repository interface {
	Create(ctx context.Context, route Route) error
	FindByCode(ctx context.Context, code string) (Route, error)
}

// PostgresRepository stores routes in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a route record.
func (r *PostgresRepository) Create(ctx context.Context, route Route) error {
	routeID, err := uuid.Parse(route.ID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO routes (id, code, name, origin, destination, fare_amount, assigned_driver_ids, active, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		routeID, route.Code, route.Name, route.Origin, route.Destination,
		route.FareAmount, route.AssignedDriverIDs, route.Active, route.CreatedAt.UTC())
	return err
}

// FindByCode fetches a route by its public code.
func (r *PostgresRepository) FindByCode(ctx context.Context, code string) (Route, error) {
	row := r.db.QueryRow(ctx, `SELECT id, code, name, origin, destination, fare_amount, assigned_driver_ids, active, created_at
        FROM routes WHERE code = $1`, code)
	var (
		id        uuid.UUID
		fare      decimal.Decimal
		createdAt time.Time
		route     Route
	)
	if err := row.Scan(&id, &route.Code, &route.Name, &route.Origin, &route.Destination,
		&fare, &route.AssignedDriverIDs, &route.Active, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Route{}, ErrNotFound
		}
		return Route{}, err
	}
	route.ID = id.String()
	route.FareAmount = fare
	route.CreatedAt = createdAt.UTC()
	return route, nil
}
