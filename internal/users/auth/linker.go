// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/taibuivan/keygate/internal/platform/apperr"
	"github.com/taibuivan/keygate/internal/platform/dberr"
	"github.com/taibuivan/keygate/pkg/normalize"
	"github.com/taibuivan/keygate/pkg/uuid"
)

// # Contracts & Types

// OAuthAssertion is the identity an external provider vouches for.
type OAuthAssertion struct {
	Provider      string
	ProviderID    string
	Email         string
	EmailVerified bool
	Name          string
}

// LinkingPolicy decides when an assertion may attach to, or create, a local account.
type LinkingPolicy struct {
	// RequireVerifiedEmail refuses to link by email unless the provider verified it.
	RequireVerifiedEmail bool

	// AllowLinking permits attaching a provider identity to an existing email match.
	AllowLinking bool

	// AllowSignup permits creating a new account from an unknown identity.
	AllowSignup bool
}

// DefaultLinkingPolicy links and signs up, but only trusts verified emails.
func DefaultLinkingPolicy() LinkingPolicy {
	return LinkingPolicy{
		RequireVerifiedEmail: true,
		AllowLinking:         true,
		AllowSignup:          true,
	}
}

// Linker resolves a local user from an identity-provider assertion. It never mints tokens.
type Linker struct {
	users  UserRepository
	roles  roleResolver
	policy LinkingPolicy
	logger *zap.Logger
	now    Clock
}

// NewLinker constructs a [Linker].
func NewLinker(users UserRepository, roles RoleRepository, policy LinkingPolicy, logger *zap.Logger, clock Clock) *Linker {
	return &Linker{
		users:  users,
		roles:  roleResolver{roles: roles},
		policy: policy,
		logger: logger,
		now:    clock.orDefault(),
	}
}

/*
ResolveOAuthUser returns the local account for assertion, linking or creating one as needed.

Description: Resolution order is provider identity, then email match (subject to
the [LinkingPolicy]), then sign-up. Repeated calls with the same provider identity
return the same user.

Parameters:
  - context: context.Context
  - assertion: OAuthAssertion

Returns:
  - *User: Resolved entity
  - error: Policy errors (ErrEmailNotVerified, ErrLinkingNotAllowed, ErrSignupNotAllowed) or storage failures
*/
func (linker *Linker) ResolveOAuthUser(context context.Context, assertion OAuthAssertion) (*User, error) {
	if assertion.Provider == "" || assertion.ProviderID == "" {
		return nil, apperr.ValidationError("Provider identity is required")
	}

	// 1. Already linked
	user, err := linker.users.FindByProviderIdentity(context, assertion.Provider, assertion.ProviderID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, dberr.ErrNotFound) {
		return nil, fmt.Errorf("auth_linker_find_identity_failed: %w", err)
	}

	// 2. Existing account with the same email
	email := normalize.Email(assertion.Email)
	if email != "" {
		existing, err := linker.users.FindByEmail(context, email)
		if err == nil {
			return linker.link(context, existing, assertion)
		}
		if !errors.Is(err, dberr.ErrNotFound) {
			return nil, fmt.Errorf("auth_linker_find_email_failed: %w", err)
		}
	}

	// 3. Brand new account
	return linker.signup(context, email, assertion)
}

func (linker *Linker) link(context context.Context, user *User, assertion OAuthAssertion) (*User, error) {
	if !linker.policy.AllowLinking {
		return nil, ErrLinkingNotAllowed
	}
	if linker.policy.RequireVerifiedEmail && !assertion.EmailVerified {
		return nil, ErrEmailNotVerified
	}

	if user.Provider != "" && user.Provider != assertion.Provider {
		linker.logger.Warn("oauth_identity_replaced",
			zap.String("user_id", user.ID),
			zap.String("previous_provider", user.Provider),
			zap.String("provider", assertion.Provider),
		)
	}

	user.Provider = assertion.Provider
	user.ProviderID = assertion.ProviderID
	user.EmailVerified = user.EmailVerified || assertion.EmailVerified
	user.UpdatedAt = linker.now()

	// A provider-verified email counts as activation
	if assertion.EmailVerified {
		user.Status = StatusActive
	}

	if err := linker.users.Update(context, user); err != nil {
		if errors.Is(err, dberr.ErrConflict) {
			return linker.refind(context, assertion)
		}
		return nil, fmt.Errorf("auth_linker_link_failed: %w", err)
	}

	linker.logger.Info("oauth_identity_linked",
		zap.String("user_id", user.ID),
		zap.String("provider", assertion.Provider),
	)

	linked, err := linker.users.FindByID(context, user.ID)
	if err != nil {
		return nil, fmt.Errorf("auth_linker_reread_failed: %w", err)
	}
	return linked, nil
}

func (linker *Linker) signup(context context.Context, email string, assertion OAuthAssertion) (*User, error) {
	if !linker.policy.AllowSignup {
		return nil, ErrSignupNotAllowed
	}

	role, err := linker.roles.resolve(context, DefaultRoleName)
	if err != nil {
		return nil, err
	}

	now := linker.now()
	user := &User{
		ID:            uuid.New(),
		Email:         email,
		Name:          normalize.Name(assertion.Name),
		RoleID:        role.ID,
		RoleName:      role.Name,
		Status:        StatusActive,
		Provider:      assertion.Provider,
		ProviderID:    assertion.ProviderID,
		EmailVerified: assertion.EmailVerified,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := linker.users.Create(context, user); err != nil {
		if errors.Is(err, dberr.ErrConflict) {
			return linker.refind(context, assertion)
		}
		return nil, fmt.Errorf("auth_linker_signup_failed: %w", err)
	}

	linker.logger.Info("oauth_user_created",
		zap.String("user_id", user.ID),
		zap.String("provider", assertion.Provider),
	)
	return user, nil
}

// refind resolves the winner of a concurrent first sign-in. If the conflict was on
// the email rather than the provider identity, the email is already taken.
func (linker *Linker) refind(context context.Context, assertion OAuthAssertion) (*User, error) {
	user, err := linker.users.FindByProviderIdentity(context, assertion.Provider, assertion.ProviderID)
	if err != nil {
		if errors.Is(err, dberr.ErrNotFound) {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("auth_linker_refind_failed: %w", err)
	}
	return user, nil
}
