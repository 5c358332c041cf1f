// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/taibuivan/keygate/internal/platform/apperr"
	"github.com/taibuivan/keygate/internal/platform/dberr"
	"github.com/taibuivan/keygate/internal/platform/sec"
	"github.com/taibuivan/keygate/pkg/normalize"
)

// # Contracts & Types

// Options carries the collaborators and tunables of a [Service].
type Options struct {
	Signer   TokenSigner
	Hasher   sec.PasswordHasher
	Notifier Notifier

	// Throttle gates ResendVerificationCode. Nil disables throttling.
	Throttle       ResendThrottle
	ResendCooldown time.Duration

	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Policy     LinkingPolicy

	Logger *zap.Logger
	Clock  Clock
}

// Service implements the authentication use cases exposed to the transport layer.
type Service struct {
	users      UserRepository
	issuer     *Issuer
	rotator    *Rotator
	activation *ActivationManager
	linker     *Linker
	throttle   ResendThrottle
	cooldown   time.Duration
	logger     *zap.Logger
}

// NewService wires the engine components over the given repositories.
func NewService(users UserRepository, tokens RefreshTokenRepository, roles RoleRepository, options Options) *Service {
	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	hasher := options.Hasher
	if hasher == nil {
		hasher = sec.BcryptHasher{}
	}

	issuer := NewIssuer(options.Signer, tokens, options.AccessTTL, options.RefreshTTL, options.Clock)

	return &Service{
		users:      users,
		issuer:     issuer,
		rotator:    NewRotator(tokens, users, issuer, logger, options.Clock),
		activation: NewActivationManager(users, roles, hasher, options.Notifier, logger, options.Clock),
		linker:     NewLinker(users, roles, options.Policy, logger, options.Clock),
		throttle:   options.Throttle,
		cooldown:   options.ResendCooldown,
		logger:     logger,
	}
}

// AccessTTL is the lifetime of issued access tokens.
func (service *Service) AccessTTL() time.Duration {
	return service.issuer.AccessTTL()
}

// # Registration & Activation

/*
Register enrolls a new unactivated account.

Parameters:
  - context: context.Context
  - input: RegisterInput

Returns:
  - *User: Created entity
  - error: ErrDuplicateEmail or storage failures
*/
func (service *Service) Register(context context.Context, input RegisterInput) (*User, error) {
	return service.activation.Register(context, input)
}

/*
Activate confirms an account with its activation code.

Parameters:
  - context: context.Context
  - userID: string
  - code: string

Returns:
  - error: ErrUserNotFound, ErrCodeMismatch, ErrCodeExpired or storage failures
*/
func (service *Service) Activate(context context.Context, userID, code string) error {
	return service.activation.Activate(context, userID, code)
}

/*
ResendVerificationCode issues a replacement activation code, at most once per cooldown.

Description: The cooldown is only claimed for a valid, still pending pair, so a
wrong email never burns the owner's slot. A throttle backend failure lets the
request through.

Parameters:
  - context: context.Context
  - userID: string
  - email: string

Returns:
  - *ActivationCode: New code and expiry
  - error: apperr RATE_LIMITED, ErrUserNotFound, ErrAlreadyActivated or storage failures
*/
func (service *Service) ResendVerificationCode(context context.Context, userID, email string) (*ActivationCode, error) {
	return service.activation.resend(context, userID, email, service.admitResend)
}

func (service *Service) admitResend(context context.Context, userID string) error {
	if service.throttle == nil {
		return nil
	}

	allowed, err := service.throttle.Allow(context, userID)
	switch {
	case err != nil:
		service.logger.Warn("resend_throttle_unavailable", zap.String("user_id", userID), zap.Error(err))
	case !allowed:
		return apperr.RateLimited(int(service.cooldown / time.Second))
	}
	return nil
}

// # Authentication Flow

// LoginInput defines credentials for an authentication attempt.
type LoginInput struct {
	Email    string
	Password string
	Meta     ClientMeta
}

/*
Login validates credentials and issues a session.

Description: Unknown email, provider-only account, wrong password and inactive
account are indistinguishable to the caller.

Parameters:
  - context: context.Context
  - input: LoginInput

Returns:
  - *Session: Access token and raw refresh token
  - error: ErrInvalidCredentials, ErrHashFormat or internal failures
*/
func (service *Service) Login(context context.Context, input LoginInput) (*Session, error) {
	user, err := service.users.FindByEmail(context, normalize.Email(input.Email))
	if err != nil {
		if errors.Is(err, dberr.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("auth_service_login_lookup_failed: %w", err)
	}

	if user.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}

	matched, err := sec.VerifyPassword(input.Password, user.PasswordHash)
	if err != nil {
		service.logger.Error("password_hash_malformed", zap.String("user_id", user.ID), zap.Error(err))
		return nil, ErrHashFormat.WithCause(err)
	}
	if !matched || !user.IsActive() {
		return nil, ErrInvalidCredentials
	}

	session, err := service.issuer.IssueSession(context, user, input.Meta)
	if err != nil {
		return nil, fmt.Errorf("auth_service_login_failed: %w", err)
	}
	return session, nil
}

/*
OAuthLogin resolves the local account for an identity-provider assertion and issues a session.

Parameters:
  - context: context.Context
  - assertion: OAuthAssertion
  - meta: ClientMeta

Returns:
  - *Session: Access token and raw refresh token
  - error: Linking policy errors, ErrInvalidCredentials for inactive accounts, or storage failures
*/
func (service *Service) OAuthLogin(context context.Context, assertion OAuthAssertion, meta ClientMeta) (*Session, error) {
	user, err := service.linker.ResolveOAuthUser(context, assertion)
	if err != nil {
		return nil, err
	}

	if !user.IsActive() {
		return nil, ErrInvalidCredentials
	}

	session, err := service.issuer.IssueSession(context, user, meta)
	if err != nil {
		return nil, fmt.Errorf("auth_service_oauth_login_failed: %w", err)
	}
	return session, nil
}

// # Session Management

/*
Refresh rotates a refresh token into a new session.

Parameters:
  - context: context.Context
  - refreshToken: string
  - meta: ClientMeta

Returns:
  - *Session: New credentials
  - error: ErrInvalidRefreshToken or storage failures
*/
func (service *Service) Refresh(context context.Context, refreshToken string, meta ClientMeta) (*Session, error) {
	return service.rotator.Rotate(context, refreshToken, meta)
}

/*
Logout revokes a single refresh token. It is idempotent.

Parameters:
  - context: context.Context
  - refreshToken: string

Returns:
  - error: Storage failures
*/
func (service *Service) Logout(context context.Context, refreshToken string) error {
	return service.rotator.Revoke(context, refreshToken)
}

/*
LogoutAll revokes every refresh token of the user.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - error: Storage failures
*/
func (service *Service) LogoutAll(context context.Context, userID string) error {
	revoked, err := service.rotator.RevokeAll(context, userID)
	if err != nil {
		return err
	}

	service.logger.Info("sessions_revoked", zap.String("user_id", userID), zap.Int64("revoked", revoked))
	return nil
}

/*
CurrentUser returns the account behind an access token.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - *User: Hydrated entity
  - error: ErrUserNotFound or storage failures
*/
func (service *Service) CurrentUser(context context.Context, userID string) (*User, error) {
	user, err := service.users.FindByID(context, userID)
	if err != nil {
		if errors.Is(err, dberr.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("auth_service_current_user_failed: %w", err)
	}
	return user, nil
}
