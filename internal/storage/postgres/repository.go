package postgres

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/opsdesk/server/internal/storage"
)

var _ storage.Repository = (*Repository)(nil)

// Repository implements storage.Repository with a PostgreSQL backend.
type Repository struct {
	pool *pgxpool.Pool

	dashboard   *DashboardItemRepository
	maintenance *MaintenanceRepository
	users       *UserRepository
	audit       *AuditLogRepository
}

func NewRepository(pool *pgxpool.Pool) (*Repository, error) {
	if pool == nil {
		return nil, fmt.Errorf("postgres repository: pool is nil")
	}
	return &Repository{
		pool:        pool,
		dashboard:   &DashboardItemRepository{db: pool},
		maintenance: &MaintenanceRepository{db: pool},
		users:       &UserRepository{db: pool},
		audit:       &AuditLogRepository{db: pool},
	}, nil
}

func (r *Repository) DashboardItems() storage.DashboardItemRepository { return r.dashboard }
func (r *Repository) Maintenance() storage.MaintenanceRepository      { return r.maintenance }
func (r *Repository) Users() storage.UserRepository                   { return r.users }
func (r *Repository) AuditLogs() storage.AuditLogRepository           { return r.audit }
