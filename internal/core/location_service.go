package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LocationService manages the physical sites stock is held at.
type LocationService interface {
	CreateLocation(ctx context.Context, orgID int, code, name string) (*Location, error)
	GetLocation(ctx context.Context, orgID, id int) (*Location, error)
	ListLocations(ctx context.Context, orgID int) ([]Location, error)
}

type locationService struct {
	pool *pgxpool.Pool
}

func NewLocationService(pool *pgxpool.Pool) LocationService {
	return &locationService{pool: pool}
}

func (s *locationService) CreateLocation(ctx context.Context, orgID int, code, name string) (*Location, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	name = strings.TrimSpace(name)
	if code == "" || name == "" {
		return nil, validationf("location code and name are required")
	}

	var l Location
	err := s.pool.QueryRow(ctx, `
		INSERT INTO locations (organization_id, code, name)
		VALUES ($1, $2, $3)
		RETURNING id, organization_id, code, name, is_active, created_at
	`, orgID, code, name).Scan(&l.ID, &l.OrganizationID, &l.Code, &l.Name, &l.IsActive, &l.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: location %s / %q already exists", ErrDuplicate, code, name)
		}
		return nil, fmt.Errorf("failed to create location: %w", err)
	}
	return &l, nil
}

func (s *locationService) GetLocation(ctx context.Context, orgID, id int) (*Location, error) {
	return loadLocation(ctx, s.pool, orgID, id)
}

func (s *locationService) ListLocations(ctx context.Context, orgID int) ([]Location, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, organization_id, code, name, is_active, created_at
		FROM locations
		WHERE organization_id = $1
		ORDER BY code
	`, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to query locations: %w", err)
	}
	defer rows.Close()

	var locations []Location
	for rows.Next() {
		var l Location
		if err := rows.Scan(&l.ID, &l.OrganizationID, &l.Code, &l.Name, &l.IsActive, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan location: %w", err)
		}
		locations = append(locations, l)
	}
	return locations, rows.Err()
}

// loadLocation fetches an active location owned by orgID.
func loadLocation(ctx context.Context, q pgxQuerier, orgID, id int) (*Location, error) {
	var l Location
	err := q.QueryRow(ctx, `
		SELECT id, organization_id, code, name, is_active, created_at
		FROM locations
		WHERE id = $1 AND organization_id = $2 AND is_active = true
	`, id, orgID).Scan(&l.ID, &l.OrganizationID, &l.Code, &l.Name, &l.IsActive, &l.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: id %d", ErrLocationNotFound, id)
		}
		return nil, fmt.Errorf("failed to fetch location %d: %w", id, err)
	}
	return &l, nil
}
