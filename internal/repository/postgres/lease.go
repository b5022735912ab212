package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/leaselink/leaselink/internal/models"
)

type LeaseStore struct {
	pool *pgxpool.Pool
}

func NewLeaseStore(pool *pgxpool.Pool) *LeaseStore {
	return &LeaseStore{pool: pool}
}

const leaseColumns = `id, property_id, tenant_id, status, start_date, end_date, created_at`

func (s *LeaseStore) Create(ctx context.Context, lease models.Lease) (*models.Lease, error) {
	query := `
		INSERT INTO leases (property_id, tenant_id, status, start_date, end_date, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
		RETURNING ` + leaseColumns

	var l models.Lease
	err := s.pool.QueryRow(ctx, query,
		lease.PropertyID,
		lease.TenantID,
		lease.Status,
		lease.StartDate,
		lease.EndDate,
	).Scan(
		&l.ID, &l.PropertyID, &l.TenantID, &l.Status,
		&l.StartDate, &l.EndDate, &l.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert lease: %w", err)
	}
	return &l, nil
}

func (s *LeaseStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Lease, error) {
	query := `SELECT ` + leaseColumns + ` FROM leases WHERE id = $1`

	var l models.Lease
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&l.ID, &l.PropertyID, &l.TenantID, &l.Status,
		&l.StartDate, &l.EndDate, &l.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get lease: %w", err)
	}
	return &l, nil
}

// TransitionStatus is the single-statement compare-and-swap that keeps
// lease transitions one-directional under concurrency. The guarded
// UPDATE only matches while the status is still in `from`, so of two
// racing callers exactly one gets a row back; the loser re-reads the
// lease to report the state it lost to.
func (s *LeaseStore) TransitionStatus(ctx context.Context, id uuid.UUID, from []models.LeaseStatus, to models.LeaseStatus) (*models.Lease, bool, error) {
	states := make([]string, len(from))
	for i, st := range from {
		states[i] = string(st)
	}

	query := `
		UPDATE leases
		SET status = $2
		WHERE id = $1 AND status = ANY($3)
		RETURNING ` + leaseColumns

	var l models.Lease
	err := s.pool.QueryRow(ctx, query, id, to, states).Scan(
		&l.ID, &l.PropertyID, &l.TenantID, &l.Status,
		&l.StartDate, &l.EndDate, &l.CreatedAt,
	)
	if err == nil {
		return &l, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("transition lease: %w", err)
	}

	// No row matched: the lease is missing, or its status already moved.
	current, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return current, false, nil
}

func (s *LeaseStore) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]models.Lease, error) {
	query := `SELECT ` + leaseColumns + ` FROM leases WHERE tenant_id = $1 ORDER BY created_at DESC`
	return s.queryMany(ctx, query, tenantID)
}

func (s *LeaseStore) ListByProperty(ctx context.Context, propertyID uuid.UUID) ([]models.Lease, error) {
	query := `SELECT ` + leaseColumns + ` FROM leases WHERE property_id = $1 ORDER BY created_at DESC`
	return s.queryMany(ctx, query, propertyID)
}

func (s *LeaseStore) queryMany(ctx context.Context, query string, args ...any) ([]models.Lease, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list leases: %w", err)
	}
	defer rows.Close()

	leases := make([]models.Lease, 0)
	for rows.Next() {
		var l models.Lease
		if err := rows.Scan(
			&l.ID, &l.PropertyID, &l.TenantID, &l.Status,
			&l.StartDate, &l.EndDate, &l.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan lease: %w", err)
		}
		leases = append(leases, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate leases: %w", err)
	}
	return leases, nil
}
