// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/taibuivan/keygate/internal/platform/sec"
	"github.com/taibuivan/keygate/pkg/uuid"
)

// # Contracts & Types

// TokenSigner produces signed access tokens. [*sec.TokenService] satisfies it.
type TokenSigner interface {
	Sign(claims sec.Claims, timeToLive time.Duration) (string, error)
}

// Clock returns the current time. A nil Clock means [time.Now].
type Clock func() time.Time

func (clock Clock) orDefault() Clock {
	if clock == nil {
		return time.Now
	}
	return clock
}

// Issuer mints a new access token and refresh token pair for an authenticated user.
type Issuer struct {
	signer     TokenSigner
	tokens     RefreshTokenRepository
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        Clock
}

// NewIssuer constructs an [Issuer]. Zero TTLs fall back to the package defaults.
func NewIssuer(signer TokenSigner, tokens RefreshTokenRepository, accessTTL, refreshTTL time.Duration, clock Clock) *Issuer {
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTokenTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTokenTTL
	}
	return &Issuer{
		signer:     signer,
		tokens:     tokens,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        clock.orDefault(),
	}
}

// AccessTTL is the lifetime of the access tokens this issuer signs.
func (issuer *Issuer) AccessTTL() time.Duration {
	return issuer.accessTTL
}

/*
IssueSession signs an access token for user and persists a new refresh token record.

Description: The raw refresh token is 512 random bits, hex encoded. Only its sha256
digest is stored. The returned [Session] is the only place the raw value is exposed.

Parameters:
  - context: context.Context
  - user: *User (RoleName must be populated)
  - meta: ClientMeta

Returns:
  - *Session: Access token, raw refresh token and its expiry
  - error: Signing, entropy or persistence failures
*/
func (issuer *Issuer) IssueSession(context context.Context, user *User, meta ClientMeta) (*Session, error) {

	// 1. Access token from the user's current claims
	accessToken, err := issuer.signer.Sign(sec.Claims{
		Subject: user.ID,
		Email:   user.Email,
		Role:    user.RoleName,
	}, issuer.accessTTL)
	if err != nil {
		return nil, fmt.Errorf("auth_issuer_sign_failed: %w", err)
	}

	// 2. Raw refresh value
	rawToken, err := sec.GenerateSecureToken(RefreshTokenLength)
	if err != nil {
		return nil, fmt.Errorf("auth_issuer_refresh_token_failed: %w", err)
	}

	// 3. Only the digest is persisted
	now := issuer.now()
	record := &RefreshToken{
		ID:        uuid.New(),
		UserID:    user.ID,
		TokenHash: sec.HashToken(rawToken),
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
		ExpiresAt: now.Add(issuer.refreshTTL),
		CreatedAt: now,
	}

	if err := issuer.tokens.Create(context, record); err != nil {
		return nil, fmt.Errorf("auth_issuer_persist_failed: %w", err)
	}

	return &Session{
		AccessToken:      accessToken,
		RefreshToken:     rawToken,
		RefreshExpiresAt: record.ExpiresAt,
		User:             user,
	}, nil
}
