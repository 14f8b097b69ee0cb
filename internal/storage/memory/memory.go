// Package memory provides in-memory storage.Repository implementations.
// They back unit tests and local development without Postgres; semantics
// mirror the postgres package (newest-first listings, last-write-wins
// document updates, capped audit queries).
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/opsdesk/server/internal/storage"
)

func nowUTC() time.Time { return time.Now().UTC() }

type Repository struct {
	dashboard   *DashboardItemStore
	maintenance *MaintenanceStore
	users       *UserStore
	audit       *AuditLogStore
}

func NewRepository() *Repository {
	return &Repository{
		dashboard:   &DashboardItemStore{items: map[string]storage.DashboardItem{}},
		maintenance: &MaintenanceStore{headings: map[string]storage.MaintenanceHeading{}},
		users:       &UserStore{users: map[string]storage.User{}},
		audit:       &AuditLogStore{},
	}
}

func (r *Repository) DashboardItems() storage.DashboardItemRepository { return r.dashboard }
func (r *Repository) Maintenance() storage.MaintenanceRepository      { return r.maintenance }
func (r *Repository) Users() storage.UserRepository                   { return r.users }
func (r *Repository) AuditLogs() storage.AuditLogRepository           { return r.audit }

type DashboardItemStore struct {
	mu    sync.RWMutex
	items map[string]storage.DashboardItem
}

func (s *DashboardItemStore) List(_ context.Context) ([]storage.DashboardItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]storage.DashboardItem, 0, len(s.items))
	for _, item := range s.items {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *DashboardItemStore) GetByID(_ context.Context, id string) (storage.DashboardItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[id]
	if !ok {
		return storage.DashboardItem{}, storage.ErrNotFound
	}
	return item, nil
}

func (s *DashboardItemStore) Insert(_ context.Context, item storage.DashboardItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[item.ID] = item
	return nil
}

func (s *DashboardItemStore) Update(_ context.Context, item storage.DashboardItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[item.ID]; !ok {
		return storage.ErrNotFound
	}
	s.items[item.ID] = item
	return nil
}

func (s *DashboardItemStore) DeleteByID(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.items, id)
	return nil
}

type MaintenanceStore struct {
	mu       sync.RWMutex
	headings map[string]storage.MaintenanceHeading
}

func (s *MaintenanceStore) List(_ context.Context) ([]storage.MaintenanceHeading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]storage.MaintenanceHeading, 0, len(s.headings))
	for _, heading := range s.headings {
		out = append(out, cloneHeading(heading))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MaintenanceStore) GetByID(_ context.Context, id string) (storage.MaintenanceHeading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	heading, ok := s.headings[id]
	if !ok {
		return storage.MaintenanceHeading{}, storage.ErrNotFound
	}
	return cloneHeading(heading), nil
}

func (s *MaintenanceStore) Insert(_ context.Context, heading storage.MaintenanceHeading) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.headings[heading.ID] = cloneHeading(heading)
	return nil
}

func (s *MaintenanceStore) Update(_ context.Context, heading storage.MaintenanceHeading) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.headings[heading.ID]; !ok {
		return storage.ErrNotFound
	}
	s.headings[heading.ID] = cloneHeading(heading)
	return nil
}

func (s *MaintenanceStore) DeleteByID(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.headings[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.headings, id)
	return nil
}

func cloneHeading(h storage.MaintenanceHeading) storage.MaintenanceHeading {
	out := h
	out.Issues = append([]storage.MaintenanceIssue(nil), h.Issues...)
	return out
}

type UserStore struct {
	mu    sync.RWMutex
	users map[string]storage.User
}

func (s *UserStore) List(_ context.Context) ([]storage.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]storage.User, 0, len(s.users))
	for _, user := range s.users {
		out = append(out, user)
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Username) < strings.ToLower(out[j].Username)
	})
	return out, nil
}

func (s *UserStore) GetByID(_ context.Context, id string) (storage.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	if !ok {
		return storage.User{}, storage.ErrNotFound
	}
	return user, nil
}

func (s *UserStore) GetByUsername(_ context.Context, username string) (storage.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, user := range s.users {
		if strings.EqualFold(user.Username, username) {
			return user, nil
		}
	}
	return storage.User{}, storage.ErrNotFound
}

func (s *UserStore) Insert(_ context.Context, user storage.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = user
	return nil
}

func (s *UserStore) Update(_ context.Context, user storage.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; !ok {
		return storage.ErrNotFound
	}
	s.users[user.ID] = user
	return nil
}

func (s *UserStore) DeleteByID(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.users, id)
	return nil
}

func (s *UserStore) TouchLastLogin(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return storage.ErrNotFound
	}
	now := nowUTC()
	user.LastLogin = &now
	s.users[id] = user
	return nil
}

type AuditLogStore struct {
	mu      sync.RWMutex
	records []storage.AuditRecord
}

func (s *AuditLogStore) Append(_ context.Context, record storage.AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
	return nil
}

func (s *AuditLogStore) Query(_ context.Context, filters storage.AuditFilters) ([]storage.AuditRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]storage.AuditRecord, 0, len(s.records))
	for _, record := range s.records {
		if filters.Action != "" && record.Action != filters.Action {
			continue
		}
		if filters.ActorID != "" && record.ActorID != filters.ActorID {
			continue
		}
		if filters.Start != nil && record.Timestamp.Before(*filters.Start) {
			continue
		}
		if filters.End != nil && record.Timestamp.After(*filters.End) {
			continue
		}
		matched = append(matched, record)
	}

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Timestamp.Equal(matched[j].Timestamp) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].Timestamp.After(matched[j].Timestamp)
	})

	if len(matched) > storage.AuditQueryLimit {
		matched = matched[:storage.AuditQueryLimit]
	}
	return matched, nil
}

func (s *AuditLogStore) CountByAction(_ context.Context) ([]storage.ActionCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := map[string]int64{}
	for _, record := range s.records {
		counts[record.Action]++
	}
	out := make([]storage.ActionCount, 0, len(counts))
	for action, count := range counts {
		out = append(out, storage.ActionCount{Action: action, Count: count})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Action < out[j].Action })
	return out, nil
}

func (s *AuditLogStore) TopActors(_ context.Context, limit int) ([]storage.ActorCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := map[string]*storage.ActorCount{}
	for _, record := range s.records {
		actor, ok := counts[record.ActorID]
		if !ok {
			actor = &storage.ActorCount{ActorID: record.ActorID, Username: record.ActorName}
			counts[record.ActorID] = actor
		}
		actor.Count++
		if actor.Username == "" {
			actor.Username = record.ActorName
		}
	}
	out := make([]storage.ActorCount, 0, len(counts))
	for _, actor := range counts {
		if actor.Username == "" {
			actor.Username = "Unknown User"
		}
		out = append(out, *actor)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count == out[j].Count {
			return out[i].ActorID < out[j].ActorID
		}
		return out[i].Count > out[j].Count
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *AuditLogStore) CountByEntityKind(_ context.Context) ([]storage.KindCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := map[string]int64{}
	for _, record := range s.records {
		counts[record.EntityKind]++
	}
	out := make([]storage.KindCount, 0, len(counts))
	for kind, count := range counts {
		out = append(out, storage.KindCount{EntityKind: kind, Count: count})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntityKind < out[j].EntityKind })
	return out, nil
}
