// Package dashboard manages the shared hand-off board: pass-on notes,
// complaints, and reminders that staff see in real time.
package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/opsdesk/server/internal/audit"
	"github.com/opsdesk/server/internal/domain"
	"github.com/opsdesk/server/internal/domain/ids"
	"github.com/opsdesk/server/internal/realtime"
	"github.com/opsdesk/server/internal/sanitize"
	"github.com/opsdesk/server/internal/storage"
	"github.com/opsdesk/server/internal/tracked"
)

const (
	TypePassOn    = "pass-on"
	TypeComplaint = "complaint"
	TypeReminder  = "reminder"

	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"

	StatusPending    = "pending"
	StatusInProgress = "in-progress"
	StatusResolved   = "resolved"
)

// CreateParams carries a new board item. Priority and status fall back to
// their defaults when omitted.
type CreateParams struct {
	Type        string `json:"type" validate:"required,oneof=pass-on complaint reminder"`
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"max=2000"`
	Priority    string `json:"priority" validate:"omitempty,oneof=low medium high"`
}

// UpdateParams uses pointers so callers can distinguish "leave alone" from
// "set to this value". The item's type never changes after creation.
type UpdateParams struct {
	Title       *string `json:"title" validate:"omitempty,max=200"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
	Priority    *string `json:"priority" validate:"omitempty,oneof=low medium high"`
	Status      *string `json:"status" validate:"omitempty,oneof=pending in-progress resolved"`
}

type Service struct {
	repo      storage.DashboardItemRepository
	coord     *tracked.Coordinator
	validator *validator.Validate
	logger    zerolog.Logger
}

func NewService(repo storage.DashboardItemRepository, coord *tracked.Coordinator, logger zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		coord:     coord,
		validator: validator.New(),
		logger:    logger.With().Str("component", "dashboard").Logger(),
	}
}

// List returns all items, newest first.
func (s *Service) List(ctx context.Context) ([]storage.DashboardItem, error) {
	items, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list dashboard items: %w", err)
	}
	if items == nil {
		items = []storage.DashboardItem{}
	}
	return items, nil
}

func (s *Service) Create(ctx context.Context, actor tracked.Actor, params CreateParams) (storage.DashboardItem, error) {
	params.Type = sanitize.Text(params.Type)
	params.Title = sanitize.Text(params.Title)
	params.Description = sanitize.Text(params.Description)

	if err := s.validator.Struct(params); err != nil {
		return storage.DashboardItem{}, fmt.Errorf("%w: %v", domain.ErrInvalid, err)
	}
	if params.Priority == "" {
		params.Priority = PriorityMedium
	}

	id, err := ids.NewULID()
	if err != nil {
		return storage.DashboardItem{}, fmt.Errorf("dashboard item id: %w", err)
	}

	now := time.Now().UTC()
	item := storage.DashboardItem{
		ID:            id,
		Type:          params.Type,
		Title:         params.Title,
		Description:   params.Description,
		Priority:      params.Priority,
		Status:        StatusPending,
		CreatedBy:     actor.ID,
		CreatedByName: actor.Username,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	outcome, err := s.coord.Perform(ctx, tracked.Request{
		Action:     audit.ActionCreate,
		EntityKind: item.Type,
		Actor:      actor,
		Apply: func(ctx context.Context) (tracked.Outcome, error) {
			if err := s.repo.Insert(ctx, item); err != nil {
				return tracked.Outcome{}, fmt.Errorf("insert dashboard item: %w", err)
			}
			stored, err := s.repo.GetByID(ctx, item.ID)
			if err != nil {
				return tracked.Outcome{}, fmt.Errorf("reload dashboard item: %w", err)
			}
			return tracked.Outcome{
				EntityID: stored.ID,
				Detail:   fmt.Sprintf("Created new %s: %s", stored.Type, stored.Title),
				Event:    realtime.NewEvent(realtime.EventDashboardItemAdded, stored),
				Audience: tracked.AudienceAll,
			}, nil
		},
	})
	if err != nil {
		return storage.DashboardItem{}, err
	}
	return outcome.Event.Payload.(storage.DashboardItem), nil
}

func (s *Service) Update(ctx context.Context, actor tracked.Actor, id string, params UpdateParams) (storage.DashboardItem, error) {
	if err := s.validator.Struct(params); err != nil {
		return storage.DashboardItem{}, fmt.Errorf("%w: %v", domain.ErrInvalid, err)
	}

	outcome, err := s.coord.Perform(ctx, tracked.Request{
		Action: audit.ActionUpdate,
		Actor:  actor,
		Apply: func(ctx context.Context) (tracked.Outcome, error) {
			item, err := s.repo.GetByID(ctx, id)
			if err != nil {
				return tracked.Outcome{}, err
			}
			if params.Title != nil {
				item.Title = sanitize.Text(*params.Title)
			}
			if params.Description != nil {
				item.Description = sanitize.Text(*params.Description)
			}
			if params.Priority != nil {
				item.Priority = *params.Priority
			}
			if params.Status != nil {
				item.Status = *params.Status
			}
			if item.Title == "" {
				return tracked.Outcome{}, fmt.Errorf("%w: title cannot be cleared", domain.ErrInvalid)
			}
			item.UpdatedAt = time.Now().UTC()
			if err := s.repo.Update(ctx, item); err != nil {
				return tracked.Outcome{}, fmt.Errorf("update dashboard item: %w", err)
			}
			stored, err := s.repo.GetByID(ctx, item.ID)
			if err != nil {
				return tracked.Outcome{}, fmt.Errorf("reload dashboard item: %w", err)
			}
			return tracked.Outcome{
				EntityID:   stored.ID,
				EntityKind: stored.Type,
				Detail:     fmt.Sprintf("Updated %s: %s", stored.Type, stored.Title),
				Event:    realtime.NewEvent(realtime.EventDashboardItemUpdated, stored),
				Audience: tracked.AudienceAll,
			}, nil
		},
	})
	if err != nil {
		return storage.DashboardItem{}, err
	}
	return outcome.Event.Payload.(storage.DashboardItem), nil
}

func (s *Service) Delete(ctx context.Context, actor tracked.Actor, id string) error {
	_, err := s.coord.Perform(ctx, tracked.Request{
		Action: audit.ActionDelete,
		Actor:  actor,
		Apply: func(ctx context.Context) (tracked.Outcome, error) {
			item, err := s.repo.GetByID(ctx, id)
			if err != nil {
				return tracked.Outcome{}, err
			}
			if err := s.repo.DeleteByID(ctx, id); err != nil {
				return tracked.Outcome{}, err
			}
			return tracked.Outcome{
				EntityID:   item.ID,
				EntityKind: item.Type,
				Detail:     fmt.Sprintf("Deleted %s: %s", item.Type, item.Title),
				Event:    realtime.NewEvent(realtime.EventDashboardItemDeleted, map[string]string{"id": item.ID}),
				Audience: tracked.AudienceAll,
			}, nil
		},
	})
	return err
}
