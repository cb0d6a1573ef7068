package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/account-service/internal/auth"
	"github.com/spec-kit/account-service/internal/cache"
	"github.com/spec-kit/account-service/internal/domain"
	"github.com/spec-kit/account-service/internal/events"
	"github.com/spec-kit/account-service/internal/repository"
	apperrors "github.com/spec-kit/account-service/pkg/util/errorutil"
)

const (
	msgEmailTaken        = "An account with this email already exists."
	msgUsernameTaken     = "An account with this username already exists."
	msgRegisterNameTaken = "This username already exists."
	msgUsernameRequired  = "Username is required."
	msgEmailRequired     = "Email is required."
	msgPasswordRequired  = "Password is required."
	msgUserNotFound      = "Not found this user"
	msgIncorrectPassword = "Incorrect password"
	msgAdminWelcome      = "Welcome, superuser!"
)

// AdminProbe is the fixed payload returned to superusers by AdminOnlyProbe.
type AdminProbe struct {
	Message string `json:"message"`
}

// AccountDependencies encapsulates collaborators for the account service.
type AccountDependencies struct {
	Store  repository.Store
	Hasher auth.PasswordHasher
	Cache  cache.UserCache
	Events events.Dispatcher
	Logger *zap.Logger
}

// AccountService orchestrates account creation, lookup and mutation.
// Every store interaction runs inside a single Store.WithinTx call.
type AccountService struct {
	store  repository.Store
	hasher auth.PasswordHasher
	cache  cache.UserCache
	events events.Dispatcher
	logger *zap.Logger
}

// NewAccountService builds the service.
func NewAccountService(deps AccountDependencies) *AccountService {
	s := &AccountService{
		store:  deps.Store,
		hasher: deps.Hasher,
		cache:  deps.Cache,
		events: deps.Events,
		logger: deps.Logger,
	}
	if s.cache == nil {
		s.cache = cache.Nop()
	}
	if s.events == nil {
		s.events = events.NewInMemoryDispatcher(nil)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// CreateSuperuser creates an admin account. Email conflicts are reported before username conflicts.
func (s *AccountService) CreateSuperuser(ctx context.Context, email, username, plainPassword string) (*domain.User, error) {
	email = strings.TrimSpace(email)
	username = strings.TrimSpace(username)
	if email == "" {
		return nil, apperrors.NewValidationError(msgEmailRequired, map[string]any{"field": "email"})
	}
	if username == "" {
		return nil, apperrors.NewValidationError(msgUsernameRequired, map[string]any{"field": "username"})
	}
	if plainPassword == "" {
		return nil, apperrors.NewValidationError(msgPasswordRequired, map[string]any{"field": "password"})
	}

	hash, err := s.hasher.Hash(plainPassword)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	user := &domain.User{
		Email:        email,
		Username:     username,
		PasswordHash: hash,
		IsSuperuser:  true,
		Roles:        []string{domain.RoleAdmin},
	}

	err = s.store.WithinTx(ctx, func(ctx context.Context, users repository.UserRepository) error {
		if err := ensureAbsent(ctx, users.GetByEmail, email, msgEmailTaken, "email"); err != nil {
			return err
		}
		if err := ensureAbsent(ctx, users.GetByUsername, username, msgUsernameTaken, "username"); err != nil {
			return err
		}
		return users.Create(ctx, user)
	})
	if err != nil {
		return nil, mapStoreError(err, msgUsernameTaken)
	}

	s.logger.Info("superuser created", zap.Int64("user_id", user.ID), zap.String("username", user.Username))
	s.publish(ctx, events.Event{
		Type:    events.EventSuperuserCreated,
		UserID:  user.ID,
		Payload: events.AccountCreatedPayload{Username: user.Username, Email: user.Email},
	})
	return sanitize(user), nil
}

// Register creates a regular account from a signup payload.
func (s *AccountService) Register(ctx context.Context, reg domain.Registration) (*domain.User, error) {
	user := reg.ToUser()
	if user.Username == "" {
		return nil, apperrors.NewValidationError(msgUsernameRequired, map[string]any{"field": "username"})
	}
	if reg.Password == "" {
		return nil, apperrors.NewValidationError(msgPasswordRequired, map[string]any{"field": "password"})
	}

	hash, err := s.hasher.Hash(reg.Password)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	user.PasswordHash = hash

	err = s.store.WithinTx(ctx, func(ctx context.Context, users repository.UserRepository) error {
		if err := ensureAbsent(ctx, users.GetByUsername, user.Username, msgRegisterNameTaken, "username"); err != nil {
			return err
		}
		return users.Create(ctx, user)
	})
	if err != nil {
		return nil, mapStoreError(err, msgRegisterNameTaken)
	}

	s.logger.Info("user registered", zap.Int64("user_id", user.ID), zap.String("username", user.Username))
	s.publish(ctx, events.Event{
		Type:    events.EventUserRegistered,
		UserID:  user.ID,
		Payload: events.AccountCreatedPayload{Username: user.Username, Email: user.Email},
	})
	return sanitize(user), nil
}

// GetSelf returns the caller's resolved identity.
func (s *AccountService) GetSelf(identity *domain.User) (*domain.User, error) {
	if identity == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	return sanitize(identity), nil
}

// AdminOnlyProbe confirms superuser access.
func (s *AccountService) AdminOnlyProbe(identity *domain.User) (*AdminProbe, error) {
	if identity == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	if !identity.IsSuperuser {
		return nil, apperrors.NewForbidden("The user doesn't have enough privileges")
	}
	return &AdminProbe{Message: msgAdminWelcome}, nil
}

// GetByID returns any user by id. Reads go through the user cache.
func (s *AccountService) GetByID(ctx context.Context, userID int64, identity *domain.User) (*domain.User, error) {
	if identity == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	if cached, ok := s.cache.Get(ctx, userID); ok {
		return cached, nil
	}

	var user *domain.User
	err := s.store.WithinTx(ctx, func(ctx context.Context, users repository.UserRepository) error {
		var err error
		user, err = loadUser(ctx, users, userID)
		return err
	})
	if err != nil {
		return nil, mapLookupError(err)
	}

	view := sanitize(user)
	s.cache.Set(ctx, view)
	return view, nil
}

// ChangePassword replaces the stored verifier after checking currentPassword.
// On a failed check nothing is written.
func (s *AccountService) ChangePassword(ctx context.Context, userID int64, currentPassword, newPassword string, identity *domain.User) error {
	if identity == nil {
		return apperrors.NewUnauthorized("authentication required")
	}
	if newPassword == "" {
		return apperrors.NewValidationError("New password is required.", map[string]any{"field": "new_password"})
	}

	var changed *domain.User
	err := s.store.WithinTx(ctx, func(ctx context.Context, users repository.UserRepository) error {
		user, err := loadUser(ctx, users, userID)
		if err != nil {
			return err
		}
		if !s.hasher.Verify(currentPassword, user.PasswordHash) {
			return apperrors.NewUnauthorized(msgIncorrectPassword)
		}
		hash, err := s.hasher.Hash(newPassword)
		if err != nil {
			return apperrors.NewInternalError(err)
		}
		user.PasswordHash = hash
		if err := users.Update(ctx, user); err != nil {
			return err
		}
		changed = user
		return nil
	})
	if err != nil {
		if apperrors.HasCode(err, apperrors.CodeUnauth) {
			s.logger.Info("password change rejected",
				zap.Int64("user_id", userID), zap.Int64("actor_id", identity.ID))
		}
		return mapLookupError(err)
	}

	s.cache.Invalidate(ctx, changed)
	s.publish(ctx, events.Event{Type: events.EventPasswordChanged, UserID: userID, ActorID: identity.ID})
	return nil
}

// UpdateProfile merges the supplied fields onto the user after checking verifyPassword.
func (s *AccountService) UpdateProfile(ctx context.Context, userID int64, verifyPassword string, update domain.ProfileUpdate, identity *domain.User) (*domain.User, error) {
	if identity == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	update = update.Normalize()
	if update.Username != nil && *update.Username == "" {
		return nil, apperrors.NewValidationError(msgUsernameRequired, map[string]any{"field": "username"})
	}

	var (
		refreshed *domain.User
		fields    []string
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, users repository.UserRepository) error {
		user, err := loadUser(ctx, users, userID)
		if err != nil {
			return err
		}
		if !s.hasher.Verify(verifyPassword, user.PasswordHash) {
			return apperrors.NewUnauthorized(msgIncorrectPassword)
		}
		if user.IsSuperuser && update.Email != nil && *update.Email == "" {
			return apperrors.NewValidationError(msgEmailRequired, map[string]any{"field": "email"})
		}

		before := *user
		if !update.ApplyTo(user) {
			refreshed = user
			return nil
		}
		fields = changedFields(&before, user)

		if user.Email != before.Email && user.Email != "" {
			if err := ensureAbsent(ctx, users.GetByEmail, user.Email, msgEmailTaken, "email"); err != nil {
				return err
			}
		}
		if user.Username != before.Username {
			if err := ensureAbsent(ctx, users.GetByUsername, user.Username, msgUsernameTaken, "username"); err != nil {
				return err
			}
		}
		if err := users.Update(ctx, user); err != nil {
			return err
		}
		refreshed, err = loadUser(ctx, users, userID)
		return err
	})
	if err != nil {
		return nil, mapStoreError(err, msgUsernameTaken)
	}

	if len(fields) > 0 {
		s.cache.Invalidate(ctx, refreshed)
		s.publish(ctx, events.Event{
			Type:    events.EventProfileUpdated,
			UserID:  userID,
			ActorID: identity.ID,
			Payload: events.ProfileUpdatedPayload{Fields: fields},
		})
	}
	return sanitize(refreshed), nil
}

// ResolveIdentity loads the user behind an authenticated token. It bypasses the
// cache so that superuser status is always current.
func (s *AccountService) ResolveIdentity(ctx context.Context, userID int64) (*domain.User, error) {
	var user *domain.User
	err := s.store.WithinTx(ctx, func(ctx context.Context, users repository.UserRepository) error {
		var err error
		user, err = loadUser(ctx, users, userID)
		return err
	})
	if err != nil {
		return nil, mapLookupError(err)
	}
	return sanitize(user), nil
}

// Authenticate checks a username/password pair.
func (s *AccountService) Authenticate(ctx context.Context, username, password string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, apperrors.NewUnauthorized("invalid credentials")
	}

	var user *domain.User
	err := s.store.WithinTx(ctx, func(ctx context.Context, users repository.UserRepository) error {
		var err error
		user, err = users.GetByUsername(ctx, username)
		return err
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, apperrors.NewInternalError(err)
	}
	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, apperrors.NewUnauthorized("invalid credentials")
	}
	return sanitize(user), nil
}

func (s *AccountService) publish(ctx context.Context, event events.Event) {
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn("publish event", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}

func loadUser(ctx context.Context, users repository.UserRepository, id int64) (*domain.User, error) {
	user, err := users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound(msgUserNotFound)
		}
		return nil, err
	}
	return user, nil
}

// ensureAbsent fails with a Conflict when lookup finds a row for value.
func ensureAbsent(ctx context.Context, lookup func(context.Context, string) (*domain.User, error), value, message, field string) error {
	_, err := lookup(ctx, value)
	switch {
	case err == nil:
		return apperrors.NewConflict(message, map[string]any{"field": field})
	case errors.Is(err, repository.ErrNotFound):
		return nil
	default:
		return err
	}
}

// mapStoreError converts repository sentinels that escaped the explicit checks
// (a concurrent insert won the race) into Conflicts; anything unknown is internal.
func mapStoreError(err error, usernameMessage string) error {
	var domainErr *apperrors.DomainError
	switch {
	case errors.As(err, &domainErr):
		return domainErr
	case errors.Is(err, repository.ErrDuplicateEmail):
		return apperrors.NewConflict(msgEmailTaken, map[string]any{"field": "email"})
	case errors.Is(err, repository.ErrDuplicateUsername):
		return apperrors.NewConflict(usernameMessage, map[string]any{"field": "username"})
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NewNotFound(msgUserNotFound)
	default:
		return apperrors.NewInternalError(err)
	}
}

// mapLookupError is mapStoreError for paths that never write identity fields.
func mapLookupError(err error) error {
	var domainErr *apperrors.DomainError
	switch {
	case errors.As(err, &domainErr):
		return domainErr
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NewNotFound(msgUserNotFound)
	default:
		return apperrors.NewInternalError(err)
	}
}

func changedFields(before, after *domain.User) []string {
	var fields []string
	if before.Email != after.Email {
		fields = append(fields, "email")
	}
	if before.Username != after.Username {
		fields = append(fields, "username")
	}
	if before.FirstName != after.FirstName {
		fields = append(fields, "first_name")
	}
	if before.LastName != after.LastName {
		fields = append(fields, "last_name")
	}
	return fields
}

// sanitize copies u without the password hash.
func sanitize(u *domain.User) *domain.User {
	if u == nil {
		return nil
	}
	out := *u
	out.PasswordHash = ""
	out.Roles = append([]string(nil), u.Roles...)
	return &out
}
