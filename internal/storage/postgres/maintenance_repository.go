package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/opsdesk/server/internal/storage"
)

var _ storage.MaintenanceRepository = (*MaintenanceRepository)(nil)

// MaintenanceRepository stores headings with their issues embedded as a JSONB
// document, so an issue edit is a single-row read-modify-write. Concurrent
// edits to the same heading resolve last-write-wins at the row level.
type MaintenanceRepository struct {
	db dbtx
}

const maintenanceColumns = `
	m.id, m.heading, m.issues,
	COALESCE(m.created_by, ''), COALESCE(u.username, ''), m.created_at`

func scanMaintenanceHeading(row pgx.Row) (storage.MaintenanceHeading, error) {
	var heading storage.MaintenanceHeading
	var issuesJSON []byte
	var createdAt pgtype.Timestamptz
	err := row.Scan(
		&heading.ID, &heading.Heading, &issuesJSON,
		&heading.CreatedBy, &heading.CreatedByName, &createdAt,
	)
	if err != nil {
		return storage.MaintenanceHeading{}, err
	}
	heading.CreatedAt = createdAt.Time
	heading.Issues = []storage.MaintenanceIssue{}
	if len(issuesJSON) > 0 {
		if err := json.Unmarshal(issuesJSON, &heading.Issues); err != nil {
			return storage.MaintenanceHeading{}, fmt.Errorf("decode issues: %w", err)
		}
	}
	return heading, nil
}

func (r *MaintenanceRepository) List(ctx context.Context) ([]storage.MaintenanceHeading, error) {
	query := `
SELECT ` + maintenanceColumns + `
FROM maintenance_headings m
LEFT JOIN users u ON u.id = m.created_by
ORDER BY m.created_at DESC, m.id DESC`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list maintenance headings: %w", err)
	}
	defer rows.Close()

	var headings []storage.MaintenanceHeading
	for rows.Next() {
		heading, err := scanMaintenanceHeading(rows)
		if err != nil {
			return nil, fmt.Errorf("scan maintenance heading: %w", err)
		}
		headings = append(headings, heading)
	}
	return headings, rows.Err()
}

func (r *MaintenanceRepository) GetByID(ctx context.Context, id string) (storage.MaintenanceHeading, error) {
	query := `
SELECT ` + maintenanceColumns + `
FROM maintenance_headings m
LEFT JOIN users u ON u.id = m.created_by
WHERE m.id = $1`

	heading, err := scanMaintenanceHeading(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return storage.MaintenanceHeading{}, storage.ErrNotFound
		}
		return storage.MaintenanceHeading{}, fmt.Errorf("get maintenance heading: %w", err)
	}
	return heading, nil
}

func (r *MaintenanceRepository) Insert(ctx context.Context, heading storage.MaintenanceHeading) error {
	issuesJSON, err := encodeIssues(heading.Issues)
	if err != nil {
		return err
	}

	query := `
INSERT INTO maintenance_headings (id, heading, issues, created_by, created_at)
VALUES ($1, $2, $3, NULLIF($4, ''), $5)`

	if _, err := r.db.Exec(ctx, query,
		heading.ID, heading.Heading, issuesJSON, heading.CreatedBy, heading.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert maintenance heading: %w", err)
	}
	return nil
}

func (r *MaintenanceRepository) Update(ctx context.Context, heading storage.MaintenanceHeading) error {
	issuesJSON, err := encodeIssues(heading.Issues)
	if err != nil {
		return err
	}

	query := `
UPDATE maintenance_headings
SET heading = $2, issues = $3
WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, heading.ID, heading.Heading, issuesJSON)
	if err != nil {
		return fmt.Errorf("update maintenance heading: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (r *MaintenanceRepository) DeleteByID(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM maintenance_headings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete maintenance heading: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func encodeIssues(issues []storage.MaintenanceIssue) ([]byte, error) {
	if issues == nil {
		issues = []storage.MaintenanceIssue{}
	}
	encoded, err := json.Marshal(issues)
	if err != nil {
		return nil, fmt.Errorf("encode issues: %w", err)
	}
	return encoded, nil
}
