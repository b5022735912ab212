package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/leaselink/leaselink/internal/models"
	"github.com/leaselink/leaselink/internal/repository"
)

type PropertyStore struct {
	pool *pgxpool.Pool
}

func NewPropertyStore(pool *pgxpool.Pool) *PropertyStore {
	return &PropertyStore{pool: pool}
}

const propertyColumns = `id, title, description, address, rent_amount, available_from, landlord_id, created_at`

func (s *PropertyStore) Create(ctx context.Context, property models.Property) (*models.Property, error) {
	query := `
		INSERT INTO properties (title, description, address, rent_amount, available_from, landlord_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		RETURNING ` + propertyColumns

	var p models.Property
	err := s.pool.QueryRow(ctx, query,
		property.Title,
		property.Description,
		property.Address,
		property.RentAmount,
		property.AvailableFrom,
		property.LandlordID,
	).Scan(
		&p.ID, &p.Title, &p.Description, &p.Address,
		&p.RentAmount, &p.AvailableFrom, &p.LandlordID, &p.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert property: %w", err)
	}
	return &p, nil
}

func (s *PropertyStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Property, error) {
	query := `SELECT ` + propertyColumns + ` FROM properties WHERE id = $1`

	var p models.Property
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.Title, &p.Description, &p.Address,
		&p.RentAmount, &p.AvailableFrom, &p.LandlordID, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get property: %w", err)
	}
	return &p, nil
}

func (s *PropertyStore) List(ctx context.Context) ([]models.Property, error) {
	query := `SELECT ` + propertyColumns + ` FROM properties ORDER BY created_at DESC`
	return s.queryMany(ctx, query)
}

func (s *PropertyStore) ListByLandlord(ctx context.Context, landlordID uuid.UUID) ([]models.Property, error) {
	query := `SELECT ` + propertyColumns + ` FROM properties WHERE landlord_id = $1 ORDER BY created_at DESC`
	return s.queryMany(ctx, query, landlordID)
}

// Search builds the WHERE clause from whichever filters are set. Every
// condition is parameterized; the clause list only grows, so the
// placeholder numbering stays aligned with args.
func (s *PropertyStore) Search(ctx context.Context, filter repository.PropertyFilter) ([]models.Property, error) {
	query := `SELECT ` + propertyColumns + ` FROM properties WHERE 1=1`
	args := []any{}

	next := func() string { return fmt.Sprintf("$%d", len(args)) }

	if filter.Title != "" {
		args = append(args, "%"+filter.Title+"%")
		query += ` AND title ILIKE ` + next()
	}
	if filter.Address != "" {
		args = append(args, "%"+filter.Address+"%")
		query += ` AND address ILIKE ` + next()
	}
	if filter.MinRent != nil {
		args = append(args, *filter.MinRent)
		query += ` AND rent_amount >= ` + next()
	}
	if filter.MaxRent != nil {
		args = append(args, *filter.MaxRent)
		query += ` AND rent_amount <= ` + next()
	}
	if filter.AvailableFrom != nil {
		args = append(args, *filter.AvailableFrom)
		query += ` AND available_from <= ` + next()
	}
	query += ` ORDER BY created_at DESC`

	return s.queryMany(ctx, query, args...)
}

func (s *PropertyStore) Update(ctx context.Context, property models.Property) (*models.Property, error) {
	query := `
		UPDATE properties
		SET title = $2, description = $3, address = $4, rent_amount = $5, available_from = $6
		WHERE id = $1
		RETURNING ` + propertyColumns

	var p models.Property
	err := s.pool.QueryRow(ctx, query,
		property.ID,
		property.Title,
		property.Description,
		property.Address,
		property.RentAmount,
		property.AvailableFrom,
	).Scan(
		&p.ID, &p.Title, &p.Description, &p.Address,
		&p.RentAmount, &p.AvailableFrom, &p.LandlordID, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("update property: %w", err)
	}
	return &p, nil
}

func (s *PropertyStore) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM properties WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete property: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PropertyStore) queryMany(ctx context.Context, query string, args ...any) ([]models.Property, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list properties: %w", err)
	}
	defer rows.Close()

	properties := make([]models.Property, 0)
	for rows.Next() {
		var p models.Property
		if err := rows.Scan(
			&p.ID, &p.Title, &p.Description, &p.Address,
			&p.RentAmount, &p.AvailableFrom, &p.LandlordID, &p.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan property: %w", err)
		}
		properties = append(properties, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate properties: %w", err)
	}
	return properties, nil
}
