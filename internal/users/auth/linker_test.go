// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth_test

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/taibuivan/keygate/internal/platform/apperr"
	"github.com/taibuivan/keygate/internal/platform/dberr"
	"github.com/taibuivan/keygate/internal/users/auth"
)

// lateIdentityRepository misses the first provider-identity lookup, as if a
// concurrent sign-in committed right after it.
type lateIdentityRepository struct {
	auth.UserRepository
	misses atomic.Int32
}

func (repository *lateIdentityRepository) FindByProviderIdentity(context context.Context, provider, providerID string) (*auth.User, error) {
	if repository.misses.Add(1) == 1 {
		return nil, dberr.ErrNotFound
	}
	return repository.UserRepository.FindByProviderIdentity(context, provider, providerID)
}

func googleAssertion(email string, verified bool) auth.OAuthAssertion {
	return auth.OAuthAssertion{
		Provider:      "google",
		ProviderID:    "g-123",
		Email:         email,
		EmailVerified: verified,
		Name:          "Grace",
	}
}

func newLinker(store *auth.MemoryStore, policy auth.LinkingPolicy) *auth.Linker {
	return auth.NewLinker(store.Users, store.Roles, policy, zap.NewNop(), newFakeClock().Now)
}

/*
TestLinker_SignupIsIdempotent creates one account and returns it on every later call.
*/
func TestLinker_SignupIsIdempotent(t *testing.T) {
	store := auth.NewMemoryStore()
	linker := newLinker(store, auth.DefaultLinkingPolicy())
	ctx := context.Background()

	first, err := linker.ResolveOAuthUser(ctx, googleAssertion("Grace@X.com", true))
	require.NoError(t, err)
	assert.Equal(t, "grace@x.com", first.Email)
	assert.Equal(t, auth.StatusActive, first.Status)
	assert.Equal(t, "USER", first.RoleName)
	assert.Empty(t, first.PasswordHash)

	// Role was created lazily
	_, err = store.Roles.FindByName(ctx, "USER")
	assert.NoError(t, err)

	second, err := linker.ResolveOAuthUser(ctx, googleAssertion("grace@x.com", true))
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

/*
TestLinker_LinksVerifiedEmail attaches the identity to the existing account.
*/
func TestLinker_LinksVerifiedEmail(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	registered, err := env.service.Register(ctx, auth.RegisterInput{Email: "grace@x.com", Password: "password123"})
	require.NoError(t, err)

	linker := newLinker(env.store, auth.DefaultLinkingPolicy())
	linked, err := linker.ResolveOAuthUser(ctx, googleAssertion("grace@x.com", true))
	require.NoError(t, err)

	assert.Equal(t, registered.ID, linked.ID)
	assert.Equal(t, "google", linked.Provider)
	assert.Equal(t, "g-123", linked.ProviderID)
	assert.True(t, linked.EmailVerified)
	assert.Equal(t, auth.StatusActive, linked.Status)

	// Password login keeps working
	session, err := env.service.Login(ctx, auth.LoginInput{Email: "grace@x.com", Password: "password123"})
	require.NoError(t, err)
	assert.Equal(t, registered.ID, session.User.ID)
}

/*
TestLinker_PolicyRefusals covers each refusal in the linking policy.
*/
func TestLinker_PolicyRefusals(t *testing.T) {
	tests := []struct {
		name      string
		policy    auth.LinkingPolicy
		existing  bool
		verified  bool
		wantError error
	}{
		{"unverified_email_match", auth.DefaultLinkingPolicy(), true, false, auth.ErrEmailNotVerified},
		{"linking_disabled", auth.LinkingPolicy{AllowSignup: true}, true, true, auth.ErrLinkingNotAllowed},
		{"signup_disabled", auth.LinkingPolicy{AllowLinking: true}, false, true, auth.ErrSignupNotAllowed},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t)
			ctx := context.Background()

			if tc.existing {
				_, err := env.service.Register(ctx, auth.RegisterInput{Email: "grace@x.com", Password: "password123"})
				require.NoError(t, err)
			}

			_, err := newLinker(env.store, tc.policy).ResolveOAuthUser(ctx, googleAssertion("grace@x.com", tc.verified))
			assert.ErrorIs(t, err, tc.wantError)

			_, err = env.store.Users.FindByProviderIdentity(ctx, "google", "g-123")
			assert.ErrorIs(t, err, dberr.ErrNotFound)
		})
	}
}

/*
TestLinker_UnverifiedAllowedWhenPolicyPermits links without activating.
*/
func TestLinker_UnverifiedAllowedWhenPolicyPermits(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	registered, err := env.service.Register(ctx, auth.RegisterInput{Email: "grace@x.com", Password: "password123"})
	require.NoError(t, err)

	policy := auth.LinkingPolicy{AllowLinking: true, AllowSignup: true}
	linked, err := newLinker(env.store, policy).ResolveOAuthUser(ctx, googleAssertion("grace@x.com", false))
	require.NoError(t, err)

	assert.Equal(t, registered.ID, linked.ID)
	assert.False(t, linked.EmailVerified)
	assert.Equal(t, auth.StatusUnactivated, linked.Status)
}

/*
TestLinker_ConcurrentSignup returns the winner after losing the insert race.
*/
func TestLinker_ConcurrentSignup(t *testing.T) {
	store := auth.NewMemoryStore()
	ctx := context.Background()

	winner, err := newLinker(store, auth.DefaultLinkingPolicy()).ResolveOAuthUser(ctx, googleAssertion("", true))
	require.NoError(t, err)

	late := &lateIdentityRepository{UserRepository: store.Users}
	linker := auth.NewLinker(late, store.Roles, auth.DefaultLinkingPolicy(), zap.NewNop(), nil)

	resolved, err := linker.ResolveOAuthUser(ctx, googleAssertion("", true))
	require.NoError(t, err)
	assert.Equal(t, winner.ID, resolved.ID)
}

/*
TestLinker_SignupEmailTaken reports a duplicate when the email belongs to someone else.
*/
func TestLinker_SignupEmailTaken(t *testing.T) {
	store := auth.NewMemoryStore()
	ctx := context.Background()

	_, err := newLinker(store, auth.DefaultLinkingPolicy()).ResolveOAuthUser(ctx, auth.OAuthAssertion{
		Provider: "github", ProviderID: "gh-1", Email: "grace@x.com", EmailVerified: true,
	})
	require.NoError(t, err)

	// Email lookup is blinded so the insert hits the unique email index
	linker := auth.NewLinker(blindEmailRepository{store.Users}, store.Roles, auth.DefaultLinkingPolicy(), zap.NewNop(), nil)
	_, err = linker.ResolveOAuthUser(ctx, googleAssertion("grace@x.com", true))
	assert.ErrorIs(t, err, auth.ErrDuplicateEmail)
}

/*
TestLinker_RequiresProviderIdentity rejects incomplete assertions.
*/
func TestLinker_RequiresProviderIdentity(t *testing.T) {
	linker := newLinker(auth.NewMemoryStore(), auth.DefaultLinkingPolicy())

	for _, assertion := range []auth.OAuthAssertion{
		{ProviderID: "g-123", Email: "grace@x.com"},
		{Provider: "google", Email: "grace@x.com"},
	} {
		_, err := linker.ResolveOAuthUser(context.Background(), assertion)
		appError := apperr.As(err)
		require.NotNil(t, appError)
		assert.Equal(t, "VALIDATION_ERROR", appError.Code)
	}
}
