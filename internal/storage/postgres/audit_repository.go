package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/opsdesk/server/internal/storage"
)

var _ storage.AuditLogRepository = (*AuditLogRepository)(nil)

type AuditLogRepository struct {
	db dbtx
}

// Append inserts one immutable record. A single INSERT is atomic, so two
// concurrent appends can never interleave partial records.
func (r *AuditLogRepository) Append(ctx context.Context, record storage.AuditRecord) error {
	query := `
INSERT INTO audit_logs (id, action, entity_kind, entity_id, actor_id, actor_name, detail, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	if _, err := r.db.Exec(ctx, query,
		record.ID, record.Action, record.EntityKind, record.EntityID,
		record.ActorID, record.ActorName, record.Detail, record.Timestamp,
	); err != nil {
		return fmt.Errorf("append audit record: %w", err)
	}
	return nil
}

func (r *AuditLogRepository) Query(ctx context.Context, filters storage.AuditFilters) ([]storage.AuditRecord, error) {
	var conditions []string
	var args []any

	if filters.Action != "" {
		args = append(args, filters.Action)
		conditions = append(conditions, fmt.Sprintf("action = $%d", len(args)))
	}
	if filters.ActorID != "" {
		args = append(args, filters.ActorID)
		conditions = append(conditions, fmt.Sprintf("actor_id = $%d", len(args)))
	}
	if filters.Start != nil {
		args = append(args, *filters.Start)
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filters.End != nil {
		args = append(args, *filters.End)
		conditions = append(conditions, fmt.Sprintf("created_at <= $%d", len(args)))
	}

	query := `SELECT id, action, entity_kind, entity_id, actor_id, actor_name, detail, created_at FROM audit_logs`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT %d", storage.AuditQueryLimit)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit records: %w", err)
	}
	defer rows.Close()

	var records []storage.AuditRecord
	for rows.Next() {
		var record storage.AuditRecord
		var ts pgtype.Timestamptz
		if err := rows.Scan(
			&record.ID, &record.Action, &record.EntityKind, &record.EntityID,
			&record.ActorID, &record.ActorName, &record.Detail, &ts,
		); err != nil {
			return nil, fmt.Errorf("scan audit record: %w", err)
		}
		record.Timestamp = ts.Time
		records = append(records, record)
	}
	return records, rows.Err()
}

func (r *AuditLogRepository) CountByAction(ctx context.Context) ([]storage.ActionCount, error) {
	rows, err := r.db.Query(ctx,
		`SELECT action, COUNT(*) FROM audit_logs GROUP BY action ORDER BY action`)
	if err != nil {
		return nil, fmt.Errorf("count by action: %w", err)
	}
	defer rows.Close()

	var counts []storage.ActionCount
	for rows.Next() {
		var count storage.ActionCount
		if err := rows.Scan(&count.Action, &count.Count); err != nil {
			return nil, fmt.Errorf("scan action count: %w", err)
		}
		counts = append(counts, count)
	}
	return counts, rows.Err()
}

func (r *AuditLogRepository) TopActors(ctx context.Context, limit int) ([]storage.ActorCount, error) {
	if limit <= 0 {
		limit = 5
	}

	// Prefer the live username; fall back to the name captured at append time
	// for actors whose account has since been deleted.
	query := `
SELECT a.actor_id,
       COALESCE(MAX(u.username), NULLIF(MAX(a.actor_name), ''), 'Unknown User'),
       COUNT(*) AS total
FROM audit_logs a
LEFT JOIN users u ON u.id = a.actor_id
GROUP BY a.actor_id
ORDER BY total DESC, a.actor_id
LIMIT $1`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("top actors: %w", err)
	}
	defer rows.Close()

	var counts []storage.ActorCount
	for rows.Next() {
		var count storage.ActorCount
		if err := rows.Scan(&count.ActorID, &count.Username, &count.Count); err != nil {
			return nil, fmt.Errorf("scan actor count: %w", err)
		}
		counts = append(counts, count)
	}
	return counts, rows.Err()
}

func (r *AuditLogRepository) CountByEntityKind(ctx context.Context) ([]storage.KindCount, error) {
	rows, err := r.db.Query(ctx,
		`SELECT entity_kind, COUNT(*) FROM audit_logs GROUP BY entity_kind ORDER BY entity_kind`)
	if err != nil {
		return nil, fmt.Errorf("count by entity kind: %w", err)
	}
	defer rows.Close()

	var counts []storage.KindCount
	for rows.Next() {
		var count storage.KindCount
		if err := rows.Scan(&count.EntityKind, &count.Count); err != nil {
			return nil, fmt.Errorf("scan kind count: %w", err)
		}
		counts = append(counts, count)
	}
	return counts, rows.Err()
}
