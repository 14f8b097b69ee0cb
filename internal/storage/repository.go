package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned when an entity id does not resolve.
var ErrNotFound = errors.New("not found")

// AuditQueryLimit caps audit query responses to bound their size.
const AuditQueryLimit = 100

// Repository groups data access by domain.
type Repository interface {
	DashboardItems() DashboardItemRepository
	Maintenance() MaintenanceRepository
	Users() UserRepository
	AuditLogs() AuditLogRepository
}

type DashboardItemRepository interface {
	List(ctx context.Context) ([]DashboardItem, error)
	GetByID(ctx context.Context, id string) (DashboardItem, error)
	Insert(ctx context.Context, item DashboardItem) error
	Update(ctx context.Context, item DashboardItem) error
	DeleteByID(ctx context.Context, id string) error
}

type MaintenanceRepository interface {
	List(ctx context.Context) ([]MaintenanceHeading, error)
	GetByID(ctx context.Context, id string) (MaintenanceHeading, error)
	Insert(ctx context.Context, heading MaintenanceHeading) error
	// Update writes the full heading document including embedded issues.
	Update(ctx context.Context, heading MaintenanceHeading) error
	DeleteByID(ctx context.Context, id string) error
}

type UserRepository interface {
	List(ctx context.Context) ([]User, error)
	GetByID(ctx context.Context, id string) (User, error)
	GetByUsername(ctx context.Context, username string) (User, error)
	Insert(ctx context.Context, user User) error
	Update(ctx context.Context, user User) error
	DeleteByID(ctx context.Context, id string) error
	TouchLastLogin(ctx context.Context, id string) error
}

// AuditLogRepository is append-only: each append is atomic as a whole and
// records are never modified afterwards.
type AuditLogRepository interface {
	Append(ctx context.Context, record AuditRecord) error
	// Query returns newest-first (timestamp, then id), capped at AuditQueryLimit.
	Query(ctx context.Context, filters AuditFilters) ([]AuditRecord, error)
	CountByAction(ctx context.Context) ([]ActionCount, error)
	TopActors(ctx context.Context, limit int) ([]ActorCount, error)
	CountByEntityKind(ctx context.Context) ([]KindCount, error)
}
