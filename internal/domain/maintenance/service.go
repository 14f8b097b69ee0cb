// Package maintenance manages room maintenance tracking: headings that group
// per-room issues, with issue status worked through pending to resolved.
package maintenance

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
	StatusPending    = "pending"
	StatusInProgress = "in-progress"
	StatusResolved   = "resolved"
)

type CreateHeadingParams struct {
	Heading string `json:"heading" validate:"required,max=200"`
}

type AddIssueParams struct {
	RoomNumber  string `json:"roomNumber" validate:"required,max=20"`
	Description string `json:"description" validate:"max=2000"`
}

type UpdateIssueParams struct {
	Status string `json:"status" validate:"required,oneof=pending in-progress resolved"`
}

// IssueEventPayload is broadcast for every issue mutation so clients can
// replace the affected heading wholesale.
type IssueEventPayload struct {
	HeadingID      string                     `json:"headingId"`
	UpdatedHeading storage.MaintenanceHeading `json:"updatedHeading"`
}

type Service struct {
	repo      storage.MaintenanceRepository
	coord     *tracked.Coordinator
	validator *validator.Validate
	logger    zerolog.Logger
}

func NewService(repo storage.MaintenanceRepository, coord *tracked.Coordinator, logger zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		coord:     coord,
		validator: validator.New(),
		logger:    logger.With().Str("component", "maintenance").Logger(),
	}
}

func (s *Service) List(ctx context.Context) ([]storage.MaintenanceHeading, error) {
	headings, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list maintenance headings: %w", err)
	}
	if headings == nil {
		headings = []storage.MaintenanceHeading{}
	}
	return headings, nil
}

func (s *Service) CreateHeading(ctx context.Context, actor tracked.Actor, params CreateHeadingParams) (storage.MaintenanceHeading, error) {
	params.Heading = sanitize.Text(params.Heading)
	if err := s.validator.Struct(params); err != nil {
		return storage.MaintenanceHeading{}, fmt.Errorf("%w: %v", domain.ErrInvalid, err)
	}

	id, err := ids.NewULID()
	if err != nil {
		return storage.MaintenanceHeading{}, fmt.Errorf("heading id: %w", err)
	}

	heading := storage.MaintenanceHeading{
		ID:            id,
		Heading:       params.Heading,
		Issues:        []storage.MaintenanceIssue{},
		CreatedBy:     actor.ID,
		CreatedByName: actor.Username,
		CreatedAt:     time.Now().UTC(),
	}

	outcome, err := s.coord.Perform(ctx, tracked.Request{
		Action:     audit.ActionCreate,
		EntityKind: audit.KindMaintenance,
		Actor:      actor,
		Apply: func(ctx context.Context) (tracked.Outcome, error) {
			if err := s.repo.Insert(ctx, heading); err != nil {
				return tracked.Outcome{}, fmt.Errorf("insert maintenance heading: %w", err)
			}
			stored, err := s.repo.GetByID(ctx, heading.ID)
			if err != nil {
				return tracked.Outcome{}, fmt.Errorf("reload maintenance heading: %w", err)
			}
			return tracked.Outcome{
				EntityID: stored.ID,
				Detail:   fmt.Sprintf("Created new maintenance heading: %s", stored.Heading),
				Event:    realtime.NewEvent(realtime.EventMaintenanceHeadingAdded, stored),
				Audience: tracked.AudienceAll,
			}, nil
		},
	})
	if err != nil {
		return storage.MaintenanceHeading{}, err
	}
	return outcome.Event.Payload.(storage.MaintenanceHeading), nil
}

func (s *Service) DeleteHeading(ctx context.Context, actor tracked.Actor, id string) error {
	_, err := s.coord.Perform(ctx, tracked.Request{
		Action:     audit.ActionDelete,
		EntityKind: audit.KindMaintenance,
		Actor:      actor,
		Apply: func(ctx context.Context) (tracked.Outcome, error) {
			heading, err := s.repo.GetByID(ctx, id)
			if err != nil {
				return tracked.Outcome{}, err
			}
			if err := s.repo.DeleteByID(ctx, id); err != nil {
				return tracked.Outcome{}, err
			}
			return tracked.Outcome{
				EntityID: heading.ID,
				Detail:   fmt.Sprintf("Deleted maintenance heading: %s", heading.Heading),
				Event:    realtime.NewEvent(realtime.EventMaintenanceHeadingDeleted, heading.ID),
				Audience: tracked.AudienceAll,
			}, nil
		},
	})
	return err
}

func (s *Service) AddIssue(ctx context.Context, actor tracked.Actor, headingID string, params AddIssueParams) (storage.MaintenanceHeading, error) {
	params.RoomNumber = sanitize.Text(params.RoomNumber)
	params.Description = sanitize.Text(params.Description)
	if err := s.validator.Struct(params); err != nil {
		return storage.MaintenanceHeading{}, fmt.Errorf("%w: %v", domain.ErrInvalid, err)
	}

	issueID, err := ids.NewULID()
	if err != nil {
		return storage.MaintenanceHeading{}, fmt.Errorf("issue id: %w", err)
	}

	outcome, err := s.coord.Perform(ctx, tracked.Request{
		Action:     audit.ActionCreate,
		EntityKind: audit.KindMaintenance,
		Actor:      actor,
		Apply: func(ctx context.Context) (tracked.Outcome, error) {
			heading, err := s.repo.GetByID(ctx, headingID)
			if err != nil {
				return tracked.Outcome{}, err
			}
			now := time.Now().UTC()
			heading.Issues = append(heading.Issues, storage.MaintenanceIssue{
				ID:          issueID,
				RoomNumber:  params.RoomNumber,
				Description: params.Description,
				Status:      StatusPending,
				CreatedAt:   now,
				UpdatedAt:   now,
			})
			if err := s.repo.Update(ctx, heading); err != nil {
				return tracked.Outcome{}, fmt.Errorf("update maintenance heading: %w", err)
			}
			return tracked.Outcome{
				EntityID: heading.ID,
				Detail:   fmt.Sprintf("Added issue for room %s under %s", params.RoomNumber, heading.Heading),
				Event: realtime.NewEvent(realtime.EventMaintenanceIssueAdded, IssueEventPayload{
					HeadingID:      heading.ID,
					UpdatedHeading: heading,
				}),
				Audience: tracked.AudienceAll,
			}, nil
		},
	})
	if err != nil {
		return storage.MaintenanceHeading{}, err
	}
	return outcome.Event.Payload.(IssueEventPayload).UpdatedHeading, nil
}

func (s *Service) UpdateIssue(ctx context.Context, actor tracked.Actor, headingID, issueID string, params UpdateIssueParams) (storage.MaintenanceHeading, error) {
	if err := s.validator.Struct(params); err != nil {
		return storage.MaintenanceHeading{}, fmt.Errorf("%w: %v", domain.ErrInvalid, err)
	}

	outcome, err := s.coord.Perform(ctx, tracked.Request{
		Action:     audit.ActionUpdate,
		EntityKind: audit.KindMaintenance,
		Actor:      actor,
		Apply: func(ctx context.Context) (tracked.Outcome, error) {
			heading, err := s.repo.GetByID(ctx, headingID)
			if err != nil {
				return tracked.Outcome{}, err
			}
			idx := indexOfIssue(heading.Issues, issueID)
			if idx < 0 {
				return tracked.Outcome{}, storage.ErrNotFound
			}
			heading.Issues[idx].Status = params.Status
			heading.Issues[idx].UpdatedAt = time.Now().UTC()
			if err := s.repo.Update(ctx, heading); err != nil {
				return tracked.Outcome{}, fmt.Errorf("update maintenance heading: %w", err)
			}
			return tracked.Outcome{
				EntityID: heading.ID,
				Detail:   fmt.Sprintf("Updated issue status to %s for room %s", params.Status, heading.Issues[idx].RoomNumber),
				Event: realtime.NewEvent(realtime.EventMaintenanceIssueUpdated, IssueEventPayload{
					HeadingID:      heading.ID,
					UpdatedHeading: heading,
				}),
				Audience: tracked.AudienceAll,
			}, nil
		},
	})
	if err != nil {
		return storage.MaintenanceHeading{}, err
	}
	return outcome.Event.Payload.(IssueEventPayload).UpdatedHeading, nil
}

func (s *Service) DeleteIssue(ctx context.Context, actor tracked.Actor, headingID, issueID string) (storage.MaintenanceHeading, error) {
	outcome, err := s.coord.Perform(ctx, tracked.Request{
		Action:     audit.ActionDelete,
		EntityKind: audit.KindMaintenance,
		Actor:      actor,
		Apply: func(ctx context.Context) (tracked.Outcome, error) {
			heading, err := s.repo.GetByID(ctx, headingID)
			if err != nil {
				return tracked.Outcome{}, err
			}
			idx := indexOfIssue(heading.Issues, issueID)
			if idx < 0 {
				return tracked.Outcome{}, storage.ErrNotFound
			}
			roomNumber := heading.Issues[idx].RoomNumber
			heading.Issues = append(heading.Issues[:idx], heading.Issues[idx+1:]...)
			if err := s.repo.Update(ctx, heading); err != nil {
				return tracked.Outcome{}, fmt.Errorf("update maintenance heading: %w", err)
			}
			return tracked.Outcome{
				EntityID: heading.ID,
				Detail:   fmt.Sprintf("Deleted issue for room %s", roomNumber),
				Event: realtime.NewEvent(realtime.EventMaintenanceIssueDeleted, IssueEventPayload{
					HeadingID:      heading.ID,
					UpdatedHeading: heading,
				}),
				Audience: tracked.AudienceAll,
			}, nil
		},
	})
	if err != nil {
		return storage.MaintenanceHeading{}, err
	}
	return outcome.Event.Payload.(IssueEventPayload).UpdatedHeading, nil
}

func indexOfIssue(issues []storage.MaintenanceIssue, issueID string) int {
	for i := range issues {
		if issues[i].ID == issueID {
			return i
		}
	}
	return -1
}
