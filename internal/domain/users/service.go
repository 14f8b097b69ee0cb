// Package users manages staff accounts and credential checks. Account
// mutations are admin-only surface and broadcast to the admin group.
package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/opsdesk/server/internal/audit"
	"github.com/opsdesk/server/internal/auth"
	"github.com/opsdesk/server/internal/domain"
	"github.com/opsdesk/server/internal/domain/ids"
	"github.com/opsdesk/server/internal/realtime"
	"github.com/opsdesk/server/internal/sanitize"
	"github.com/opsdesk/server/internal/storage"
	"github.com/opsdesk/server/internal/tracked"
)

const bcryptCost = 12

var (
	ErrUsernameTaken = errors.New("username already taken")

	// ErrInvalidCredentials covers both unknown username and wrong
	// password so login responses don't reveal which.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

type CreateParams struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Password string `json:"password" validate:"required,min=8,max=128"`
	Role     string `json:"role" validate:"omitempty,oneof=staff admin"`
}

// UpdateParams patches an account; omitted fields keep their value.
type UpdateParams struct {
	Username *string `json:"username" validate:"omitempty,min=3,max=50"`
	Password *string `json:"password" validate:"omitempty,min=8,max=128"`
	Role     *string `json:"role" validate:"omitempty,oneof=staff admin"`
}

type Service struct {
	repo      storage.UserRepository
	coord     *tracked.Coordinator
	jwt       *auth.JWTManager
	validator *validator.Validate
	logger    zerolog.Logger
}

func NewService(repo storage.UserRepository, coord *tracked.Coordinator, jwt *auth.JWTManager, logger zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		coord:     coord,
		jwt:       jwt,
		validator: validator.New(),
		logger:    logger.With().Str("component", "users").Logger(),
	}
}

func (s *Service) List(ctx context.Context) ([]storage.User, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	if users == nil {
		users = []storage.User{}
	}
	return users, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (storage.User, error) {
	return s.repo.GetByID(ctx, id)
}

// Login checks credentials and issues a token. Failures collapse to
// ErrInvalidCredentials; a successful login updates the last-login stamp
// best effort.
func (s *Service) Login(ctx context.Context, username, password string) (string, storage.User, error) {
	user, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", storage.User{}, ErrInvalidCredentials
		}
		return "", storage.User{}, fmt.Errorf("look up user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", storage.User{}, ErrInvalidCredentials
	}

	token, err := s.jwt.Generate(user.ID, user.Username, user.Role)
	if err != nil {
		return "", storage.User{}, fmt.Errorf("issue token: %w", err)
	}

	if err := s.repo.TouchLastLogin(ctx, user.ID); err != nil {
		s.logger.Warn().Err(err).Str("user_id", user.ID).Msg("updating last login failed")
	}
	return token, user, nil
}

func (s *Service) Create(ctx context.Context, actor tracked.Actor, params CreateParams) (storage.User, error) {
	params.Username = sanitize.Text(params.Username)
	if err := s.validator.Struct(params); err != nil {
		return storage.User{}, fmt.Errorf("%w: %v", domain.ErrInvalid, err)
	}
	role := auth.NormalizeRole(params.Role)

	if _, err := s.repo.GetByUsername(ctx, params.Username); err == nil {
		return storage.User{}, ErrUsernameTaken
	} else if !errors.Is(err, storage.ErrNotFound) {
		return storage.User{}, fmt.Errorf("check username: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(params.Password), bcryptCost)
	if err != nil {
		return storage.User{}, fmt.Errorf("hash password: %w", err)
	}

	id, err := ids.NewULID()
	if err != nil {
		return storage.User{}, fmt.Errorf("user id: %w", err)
	}

	user := storage.User{
		ID:           id,
		Username:     params.Username,
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    time.Now().UTC(),
	}

	outcome, err := s.coord.Perform(ctx, tracked.Request{
		Action:     audit.ActionCreate,
		EntityKind: audit.KindUser,
		Actor:      actor,
		Apply: func(ctx context.Context) (tracked.Outcome, error) {
			if err := s.repo.Insert(ctx, user); err != nil {
				return tracked.Outcome{}, fmt.Errorf("insert user: %w", err)
			}
			return tracked.Outcome{
				EntityID: user.ID,
				Detail:   fmt.Sprintf("Created new user: %s", user.Username),
				Event:    realtime.NewEvent(realtime.EventUserAdded, user),
				Audience: tracked.AudienceAdmins,
			}, nil
		},
	})
	if err != nil {
		return storage.User{}, err
	}
	return outcome.Event.Payload.(storage.User), nil
}

func (s *Service) Update(ctx context.Context, actor tracked.Actor, id string, params UpdateParams) (storage.User, error) {
	if err := s.validator.Struct(params); err != nil {
		return storage.User{}, fmt.Errorf("%w: %v", domain.ErrInvalid, err)
	}

	outcome, err := s.coord.Perform(ctx, tracked.Request{
		Action:     audit.ActionUpdate,
		EntityKind: audit.KindUser,
		Actor:      actor,
		Apply: func(ctx context.Context) (tracked.Outcome, error) {
			user, err := s.repo.GetByID(ctx, id)
			if err != nil {
				return tracked.Outcome{}, err
			}
			if params.Username != nil {
				username := sanitize.Text(*params.Username)
				if username != user.Username {
					if existing, err := s.repo.GetByUsername(ctx, username); err == nil && existing.ID != user.ID {
						return tracked.Outcome{}, ErrUsernameTaken
					} else if err != nil && !errors.Is(err, storage.ErrNotFound) {
						return tracked.Outcome{}, fmt.Errorf("check username: %w", err)
					}
				}
				user.Username = username
			}
			if params.Password != nil {
				hash, err := bcrypt.GenerateFromPassword([]byte(*params.Password), bcryptCost)
				if err != nil {
					return tracked.Outcome{}, fmt.Errorf("hash password: %w", err)
				}
				user.PasswordHash = string(hash)
			}
			if params.Role != nil {
				user.Role = auth.NormalizeRole(*params.Role)
			}
			if err := s.repo.Update(ctx, user); err != nil {
				return tracked.Outcome{}, fmt.Errorf("update user: %w", err)
			}
			return tracked.Outcome{
				EntityID: user.ID,
				Detail:   fmt.Sprintf("Updated user: %s", user.Username),
				Event:    realtime.NewEvent(realtime.EventUserUpdated, user),
				Audience: tracked.AudienceAdmins,
			}, nil
		},
	})
	if err != nil {
		return storage.User{}, err
	}
	return outcome.Event.Payload.(storage.User), nil
}

func (s *Service) Delete(ctx context.Context, actor tracked.Actor, id string) error {
	if actor.ID == id {
		return fmt.Errorf("%w: cannot delete your own account", domain.ErrInvalid)
	}
	_, err := s.coord.Perform(ctx, tracked.Request{
		Action:     audit.ActionDelete,
		EntityKind: audit.KindUser,
		Actor:      actor,
		Apply: func(ctx context.Context) (tracked.Outcome, error) {
			user, err := s.repo.GetByID(ctx, id)
			if err != nil {
				return tracked.Outcome{}, err
			}
			if err := s.repo.DeleteByID(ctx, id); err != nil {
				return tracked.Outcome{}, err
			}
			return tracked.Outcome{
				EntityID: user.ID,
				Detail:   fmt.Sprintf("Deleted user: %s", user.Username),
				Event:    realtime.NewEvent(realtime.EventUserDeleted, map[string]string{"id": user.ID}),
				Audience: tracked.AudienceAdmins,
			}, nil
		},
	})
	return err
}

// EnsureAdmin creates the bootstrap admin account if the username is free.
// Used by the create-admin command and optional startup bootstrap; calling it
// again with the same username is a no-op.
func (s *Service) EnsureAdmin(ctx context.Context, username, password string) (storage.User, bool, error) {
	username = sanitize.Text(username)
	existing, err := s.repo.GetByUsername(ctx, username)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return storage.User{}, false, fmt.Errorf("check username: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return storage.User{}, false, fmt.Errorf("hash password: %w", err)
	}
	id, err := ids.NewULID()
	if err != nil {
		return storage.User{}, false, fmt.Errorf("user id: %w", err)
	}

	user := storage.User{
		ID:           id,
		Username:     username,
		PasswordHash: string(hash),
		Role:         string(auth.RoleAdmin),
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.repo.Insert(ctx, user); err != nil {
		return storage.User{}, false, fmt.Errorf("insert admin user: %w", err)
	}
	return user, true, nil
}
