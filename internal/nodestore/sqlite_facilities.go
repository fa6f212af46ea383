package nodestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/starford/facdocs/internal/apperr"
	"github.com/starford/facdocs/internal/models"
)

// CreateFacility inserts f. A taken id is a conflict.
func (db *SQLite) CreateFacility(ctx context.Context, f *models.Facility) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO facilities (id, name, company, address, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.Name, f.Company, f.Address, f.Status, f.CreatedAt.UTC(), f.UpdatedAt.UTC())
	if err != nil {
		if isConstraint(err) {
			return apperr.Conflict("facility %q already exists", f.ID)
		}
		return fmt.Errorf("nodestore: insert facility: %w", err)
	}
	return nil
}

// GetFacility returns the facility with the given id.
func (db *SQLite) GetFacility(ctx context.Context, id string) (*models.Facility, error) {
	var f models.Facility
	err := db.conn.QueryRowContext(ctx, `
		SELECT id, name, company, address, status, created_at, updated_at
		FROM facilities WHERE id = ?`, id).
		Scan(&f.ID, &f.Name, &f.Company, &f.Address, &f.Status, &f.CreatedAt, &f.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("facility %q not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("nodestore: get facility: %w", err)
	}
	return &f, nil
}

// ListFacilities returns all facilities ordered by name.
func (db *SQLite) ListFacilities(ctx context.Context) ([]models.Facility, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, name, company, address, status, created_at, updated_at
		FROM facilities ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("nodestore: list facilities: %w", err)
	}
	defer rows.Close()

	out := []models.Facility{}
	for rows.Next() {
		var f models.Facility
		if err := rows.Scan(&f.ID, &f.Name, &f.Company, &f.Address, &f.Status, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
