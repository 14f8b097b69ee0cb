package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/opsdesk/server/internal/storage"
)

var _ storage.DashboardItemRepository = (*DashboardItemRepository)(nil)

type DashboardItemRepository struct {
	db dbtx
}

const dashboardItemColumns = `
	i.id, i.item_type, i.title, i.description, i.priority, i.status,
	COALESCE(i.created_by, ''), COALESCE(u.username, ''), i.created_at, i.updated_at`

func scanDashboardItem(row pgx.Row) (storage.DashboardItem, error) {
	var item storage.DashboardItem
	var createdAt, updatedAt pgtype.Timestamptz
	err := row.Scan(
		&item.ID, &item.Type, &item.Title, &item.Description, &item.Priority, &item.Status,
		&item.CreatedBy, &item.CreatedByName, &createdAt, &updatedAt,
	)
	if err != nil {
		return storage.DashboardItem{}, err
	}
	item.CreatedAt = createdAt.Time
	item.UpdatedAt = updatedAt.Time
	return item, nil
}

func (r *DashboardItemRepository) List(ctx context.Context) ([]storage.DashboardItem, error) {
	query := `
SELECT ` + dashboardItemColumns + `
FROM dashboard_items i
LEFT JOIN users u ON u.id = i.created_by
ORDER BY i.created_at DESC, i.id DESC`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list dashboard items: %w", err)
	}
	defer rows.Close()

	var items []storage.DashboardItem
	for rows.Next() {
		item, err := scanDashboardItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan dashboard item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *DashboardItemRepository) GetByID(ctx context.Context, id string) (storage.DashboardItem, error) {
	query := `
SELECT ` + dashboardItemColumns + `
FROM dashboard_items i
LEFT JOIN users u ON u.id = i.created_by
WHERE i.id = $1`

	item, err := scanDashboardItem(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return storage.DashboardItem{}, storage.ErrNotFound
		}
		return storage.DashboardItem{}, fmt.Errorf("get dashboard item: %w", err)
	}
	return item, nil
}

func (r *DashboardItemRepository) Insert(ctx context.Context, item storage.DashboardItem) error {
	query := `
INSERT INTO dashboard_items (id, item_type, title, description, priority, status, created_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9)`

	_, err := r.db.Exec(ctx, query,
		item.ID, item.Type, item.Title, item.Description, item.Priority, item.Status,
		item.CreatedBy, item.CreatedAt, item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert dashboard item: %w", err)
	}
	return nil
}

func (r *DashboardItemRepository) Update(ctx context.Context, item storage.DashboardItem) error {
	query := `
UPDATE dashboard_items
SET title = $2, description = $3, priority = $4, status = $5, updated_at = $6
WHERE id = $1`

	tag, err := r.db.Exec(ctx, query,
		item.ID, item.Title, item.Description, item.Priority, item.Status, item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update dashboard item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (r *DashboardItemRepository) DeleteByID(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM dashboard_items WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete dashboard item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}
