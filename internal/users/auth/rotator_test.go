// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/keygate/internal/users/auth"
)

func assertAllRevoked(t *testing.T, env *testEnv, userID string) {
	t.Helper()
	tokens := env.store.RefreshTokens.ListByUser(context.Background(), userID)
	require.NotEmpty(t, tokens)
	for _, token := range tokens {
		assert.True(t, token.IsRevoked, "token %s should be revoked", token.ID)
	}
}

/*
TestRotator_Rotate replaces the token and revokes the old one.
*/
func TestRotator_Rotate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.activeUser(t, "bob@x.com")
	first := env.login(t, "bob@x.com")

	second, err := env.service.Refresh(ctx, first.RefreshToken, auth.ClientMeta{UserAgent: "ua-2"})
	require.NoError(t, err)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)

	tokens := env.store.RefreshTokens.ListByUser(ctx, user.ID)
	require.Len(t, tokens, 2)

	revoked := 0
	for _, token := range tokens {
		if token.IsRevoked {
			revoked++
		}
	}
	assert.Equal(t, 1, revoked)
}

/*
TestRotator_Rotate_RereadsClaims signs the new access token with the current role.
*/
func TestRotator_Rotate_RereadsClaims(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.activeUser(t, "carol@x.com")
	session := env.login(t, "carol@x.com")

	// Promote the user between login and refresh
	admin := &auth.Role{ID: "b86dd951-4a46-4295-97f1-82015d02f672", Name: "ADMIN"}
	require.NoError(t, env.store.Roles.Create(ctx, admin))
	user.RoleID = admin.ID
	require.NoError(t, env.store.Users.Update(ctx, user))

	rotated, err := env.service.Refresh(ctx, session.RefreshToken, auth.ClientMeta{})
	require.NoError(t, err)

	claims, err := env.signer.Verify(rotated.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "ADMIN", claims.Role)
}

/*
TestRotator_ReuseDetection revokes the whole family when a consumed token comes back.
*/
func TestRotator_ReuseDetection(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.activeUser(t, "dave@x.com")
	first := env.login(t, "dave@x.com")
	other := env.login(t, "dave@x.com")

	second, err := env.service.Refresh(ctx, first.RefreshToken, auth.ClientMeta{})
	require.NoError(t, err)

	_, err = env.service.Refresh(ctx, first.RefreshToken, auth.ClientMeta{})
	assert.ErrorIs(t, err, auth.ErrInvalidRefreshToken)
	assertAllRevoked(t, env, user.ID)

	// Descendant and sibling sessions are gone too
	_, err = env.service.Refresh(ctx, second.RefreshToken, auth.ClientMeta{})
	assert.ErrorIs(t, err, auth.ErrInvalidRefreshToken)
	_, err = env.service.Refresh(ctx, other.RefreshToken, auth.ClientMeta{})
	assert.ErrorIs(t, err, auth.ErrInvalidRefreshToken)
}

/*
TestRotator_Expired treats a token past its expiry as reuse.
*/
func TestRotator_Expired(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.activeUser(t, "erin@x.com")
	session := env.login(t, "erin@x.com")
	sibling := env.login(t, "erin@x.com")

	env.clock.Set(session.RefreshExpiresAt.Add(time.Millisecond))

	_, err := env.service.Refresh(ctx, session.RefreshToken, auth.ClientMeta{})
	assert.ErrorIs(t, err, auth.ErrInvalidRefreshToken)
	assertAllRevoked(t, env, user.ID)

	// The sibling was still in its window but is revoked with the family
	env.clock.Set(sibling.RefreshExpiresAt.Add(-time.Minute))
	_, err = env.service.Refresh(ctx, sibling.RefreshToken, auth.ClientMeta{})
	assert.ErrorIs(t, err, auth.ErrInvalidRefreshToken)
}

/*
TestRotator_ExpiryBoundary still accepts a token at its exact expiry instant.
*/
func TestRotator_ExpiryBoundary(t *testing.T) {
	env := newTestEnv(t)
	env.activeUser(t, "ivan@x.com")
	session := env.login(t, "ivan@x.com")

	env.clock.Set(session.RefreshExpiresAt)
	_, err := env.service.Refresh(context.Background(), session.RefreshToken, auth.ClientMeta{})
	assert.NoError(t, err)
}

/*
TestRotator_UnknownToken fails without side effects.
*/
func TestRotator_UnknownToken(t *testing.T) {
	env := newTestEnv(t)
	user := env.activeUser(t, "frank@x.com")
	env.login(t, "frank@x.com")

	for _, raw := range []string{"", "deadbeef"} {
		_, err := env.service.Refresh(context.Background(), raw, auth.ClientMeta{})
		assert.ErrorIs(t, err, auth.ErrInvalidRefreshToken)
	}

	tokens := env.store.RefreshTokens.ListByUser(context.Background(), user.ID)
	require.Len(t, tokens, 1)
	assert.False(t, tokens[0].IsRevoked)
}

/*
TestRotator_ConcurrentRotation lets exactly one of many concurrent rotations win.
*/
func TestRotator_ConcurrentRotation(t *testing.T) {
	env := newTestEnv(t)
	env.activeUser(t, "grace@x.com")
	session := env.login(t, "grace@x.com")

	const attempts = 16
	var (
		wg        sync.WaitGroup
		successes atomic.Int32
		failures  atomic.Int32
		start     = make(chan struct{})
	)

	for range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := env.service.Refresh(context.Background(), session.RefreshToken, auth.ClientMeta{})
			if err == nil {
				successes.Add(1)
				return
			}
			if assert.ErrorIs(t, err, auth.ErrInvalidRefreshToken) {
				failures.Add(1)
			}
		}()
	}

	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), successes.Load())
	assert.Equal(t, int32(attempts-1), failures.Load())
}

/*
TestRotator_Revoke is idempotent and single-token.
*/
func TestRotator_Revoke(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.activeUser(t, "heidi@x.com")
	kept := env.login(t, "heidi@x.com")
	dropped := env.login(t, "heidi@x.com")

	require.NoError(t, env.service.Logout(ctx, dropped.RefreshToken))
	require.NoError(t, env.service.Logout(ctx, dropped.RefreshToken))
	require.NoError(t, env.service.Logout(ctx, "unknown"))

	_, err := env.service.Refresh(ctx, kept.RefreshToken, auth.ClientMeta{})
	assert.NoError(t, err)
}
