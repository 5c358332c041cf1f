// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/taibuivan/keygate/internal/platform/dberr"
	"github.com/taibuivan/keygate/internal/platform/sec"
	"github.com/taibuivan/keygate/internal/platform/validate"
	"github.com/taibuivan/keygate/pkg/normalize"
	"github.com/taibuivan/keygate/pkg/uuid"
)

// ActivationManager handles registration and the activation code lifecycle.
//
// # State Machine
//
// A registered account starts unactivated and moves to active once a valid code
// is presented before its expiry. Resending replaces the code, so earlier codes
// stop matching entirely.
type ActivationManager struct {
	users    UserRepository
	roles    roleResolver
	hasher   sec.PasswordHasher
	notifier Notifier
	logger   *zap.Logger
	now      Clock
}

// NewActivationManager constructs an [ActivationManager].
func NewActivationManager(
	users UserRepository,
	roles RoleRepository,
	hasher sec.PasswordHasher,
	notifier Notifier,
	logger *zap.Logger,
	clock Clock,
) *ActivationManager {
	return &ActivationManager{
		users:    users,
		roles:    roleResolver{roles: roles},
		hasher:   hasher,
		notifier: notifier,
		logger:   logger,
		now:      clock.orDefault(),
	}
}

// RegisterInput holds the data required to enroll a new member.
type RegisterInput struct {
	Email    string
	Password string
	Name     string
}

/*
Register creates an unactivated account and sends its first activation code.

Parameters:
  - context: context.Context
  - input: RegisterInput

Returns:
  - *User: Created entity
  - error: ErrDuplicateEmail, a VALIDATION_ERROR for an over-long password, or storage failures
*/
func (manager *ActivationManager) Register(context context.Context, input RegisterInput) (*User, error) {
	email := normalize.Email(input.Email)

	// 1. Fast-path uniqueness check
	_, err := manager.users.FindByEmail(context, email)
	if err == nil {
		return nil, ErrDuplicateEmail
	}
	if !errors.Is(err, dberr.ErrNotFound) {
		return nil, fmt.Errorf("auth_service_register_lookup_failed: %w", err)
	}

	passwordHash, err := manager.hasher.Hash(input.Password)
	if errors.Is(err, sec.ErrPasswordTooLong) {
		return nil, validate.RequiredError(FieldPassword, fmt.Sprintf("Maximum %d bytes", sec.MaxPasswordBytes)).WithCause(err)
	}
	if err != nil {
		return nil, fmt.Errorf("auth_service_hash_failed: %w", err)
	}

	role, err := manager.roles.resolve(context, DefaultRoleName)
	if err != nil {
		return nil, err
	}

	// 2. Unactivated account with a fresh code
	now := manager.now()
	expiresAt := now.Add(ActivationWindow)
	user := &User{
		ID:                  uuid.New(),
		Email:               email,
		PasswordHash:        passwordHash,
		Name:                normalize.Name(input.Name),
		RoleID:              role.ID,
		RoleName:            role.Name,
		Status:              StatusUnactivated,
		ActivationCode:      uuid.NewRandom(),
		ActivationExpiresAt: &expiresAt,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	// 3. The unique index settles races with the check above
	if err := manager.users.Create(context, user); err != nil {
		if errors.Is(err, dberr.ErrConflict) {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("auth_service_register_failed: %w", err)
	}

	manager.notify(context, user)

	return user, nil
}

/*
Activate moves the account to active when code matches and has not expired.

Description: The code is expired from the instant now reaches its expiry.
Activating an account that is already active succeeds without changes.

Parameters:
  - context: context.Context
  - userID: string
  - code: string

Returns:
  - error: ErrUserNotFound, ErrCodeMismatch, ErrCodeExpired or storage failures
*/
func (manager *ActivationManager) Activate(context context.Context, userID, code string) error {
	user, err := manager.users.FindByIDAndActivationCode(context, userID, code)
	if err != nil {
		if errors.Is(err, dberr.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("auth_service_activate_lookup_failed: %w", err)
	}

	if user.ActivationCode != code {
		return ErrCodeMismatch
	}

	if user.IsActive() {
		return nil
	}

	if user.ActivationExpiresAt == nil || !manager.now().Before(*user.ActivationExpiresAt) {
		return ErrCodeExpired
	}

	user.Status = StatusActive
	user.EmailVerified = true
	user.UpdatedAt = manager.now()

	if err := manager.users.Update(context, user); err != nil {
		return fmt.Errorf("auth_service_activate_failed: %w", err)
	}

	manager.logger.Info("account_activated", zap.String("user_id", user.ID))
	return nil
}

/*
ResendVerificationCode replaces the activation code of an unactivated account
and sends it again.

Parameters:
  - context: context.Context
  - userID: string
  - email: string (must belong to userID)

Returns:
  - *ActivationCode: The new code and its expiry
  - error: ErrUserNotFound, ErrAlreadyActivated or storage failures
*/
func (manager *ActivationManager) ResendVerificationCode(context context.Context, userID, email string) (*ActivationCode, error) {
	return manager.resend(context, userID, email, nil)
}

// resend runs admit, when set, only after the pair is validated and the account
// is still pending. A non-nil result from admit aborts the resend.
func (manager *ActivationManager) resend(context context.Context, userID, email string, admit func(context.Context, string) error) (*ActivationCode, error) {
	user, err := manager.users.FindByID(context, userID)
	if err != nil {
		if errors.Is(err, dberr.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("auth_service_resend_lookup_failed: %w", err)
	}

	// The pair must match; a wrong email looks exactly like an unknown id
	if user.Email == "" || user.Email != normalize.Email(email) {
		return nil, ErrUserNotFound
	}

	if user.IsActive() {
		return nil, ErrAlreadyActivated
	}

	if admit != nil {
		if err := admit(context, user.ID); err != nil {
			return nil, err
		}
	}

	now := manager.now()
	expiresAt := now.Add(ActivationWindow)
	user.ActivationCode = uuid.NewRandom()
	user.ActivationExpiresAt = &expiresAt
	user.UpdatedAt = now

	if err := manager.users.Update(context, user); err != nil {
		return nil, fmt.Errorf("auth_service_resend_failed: %w", err)
	}

	manager.notify(context, user)

	return &ActivationCode{Code: user.ActivationCode, ExpiresAt: expiresAt}, nil
}

// notify sends the activation mail. Failures are logged and swallowed.
func (manager *ActivationManager) notify(context context.Context, user *User) {
	if manager.notifier == nil {
		return
	}

	if err := manager.notifier.SendActivationEmail(context, user.Email, user.Name, user.ActivationCode); err != nil {
		manager.logger.Warn("activation_email_failed",
			zap.String("user_id", user.ID),
			zap.Error(err),
		)
	}
}
