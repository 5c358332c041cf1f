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
)

// Rotator exchanges refresh tokens and enforces single use.
//
// # State Machine
//
// A refresh token is Active until it is revoked (terminal) or passes its expiry
// (terminal, derived from the clock). Presenting a token in either terminal state
// is treated as theft: every active token of its owner is revoked.
type Rotator struct {
	tokens RefreshTokenRepository
	users  UserRepository
	issuer *Issuer
	logger *zap.Logger
	now    Clock
}

// NewRotator constructs a [Rotator].
func NewRotator(tokens RefreshTokenRepository, users UserRepository, issuer *Issuer, logger *zap.Logger, clock Clock) *Rotator {
	return &Rotator{
		tokens: tokens,
		users:  users,
		issuer: issuer,
		logger: logger,
		now:    clock.orDefault(),
	}
}

/*
Rotate consumes rawToken and returns a replacement session.

Description: The presented record is revoked with a compare-and-set before the new
one is created. Only one of several concurrent rotations of the same token can win
that race; every loser is handled as a reuse.

Parameters:
  - context: context.Context
  - rawToken: string
  - meta: ClientMeta

Returns:
  - *Session: New pair, claims re-read from the user record
  - error: ErrInvalidRefreshToken or storage failures
*/
func (rotator *Rotator) Rotate(context context.Context, rawToken string, meta ClientMeta) (*Session, error) {
	if rawToken == "" {
		return nil, ErrInvalidRefreshToken
	}

	// 1. Look the digest up, whatever its state
	record, err := rotator.tokens.FindByHash(context, sec.HashToken(rawToken))
	if err != nil {
		if errors.Is(err, dberr.ErrNotFound) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, fmt.Errorf("auth_rotator_find_failed: %w", err)
	}

	// 2. A consumed or expired token is a compromise signal
	if record.IsRevoked || record.IsExpired(rotator.now()) {
		return nil, rotator.revokeFamily(context, record, reuseReason(record))
	}

	// 3. Revoke before issue; losing the CAS means someone else consumed it first
	won, err := rotator.tokens.Revoke(context, record.ID)
	if err != nil {
		return nil, fmt.Errorf("auth_rotator_revoke_failed: %w", err)
	}
	if !won {
		return nil, rotator.revokeFamily(context, record, "concurrent_rotation")
	}

	// 4. Current role and email, not the ones from the old access token
	user, err := rotator.users.FindByID(context, record.UserID)
	if err != nil {
		if errors.Is(err, dberr.ErrNotFound) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, fmt.Errorf("auth_rotator_find_user_failed: %w", err)
	}

	return rotator.issuer.IssueSession(context, user, meta)
}

/*
Revoke invalidates a single refresh token. Unknown or already revoked tokens are
not an error.

Parameters:
  - context: context.Context
  - rawToken: string

Returns:
  - error: Storage failures
*/
func (rotator *Rotator) Revoke(context context.Context, rawToken string) error {
	if rawToken == "" {
		return nil
	}

	record, err := rotator.tokens.FindByHash(context, sec.HashToken(rawToken))
	if err != nil {
		if errors.Is(err, dberr.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("auth_rotator_logout_find_failed: %w", err)
	}

	if _, err := rotator.tokens.Revoke(context, record.ID); err != nil {
		return fmt.Errorf("auth_rotator_logout_revoke_failed: %w", err)
	}
	return nil
}

/*
RevokeAll invalidates every active refresh token of userID.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - int64: Number of tokens revoked
  - error: Storage failures
*/
func (rotator *Rotator) RevokeAll(context context.Context, userID string) (int64, error) {
	revoked, err := rotator.tokens.RevokeAllForUser(context, userID)
	if err != nil {
		return 0, fmt.Errorf("auth_rotator_revoke_all_failed: %w", err)
	}
	return revoked, nil
}

// revokeFamily revokes every token of the record's owner and returns the error
// the caller must report.
func (rotator *Rotator) revokeFamily(context context.Context, record *RefreshToken, reason string) error {
	revoked, err := rotator.tokens.RevokeAllForUser(context, record.UserID)
	if err != nil {
		rotator.logger.Error("refresh_token_family_revoke_failed",
			zap.String("user_id", record.UserID),
			zap.String("token_id", record.ID),
			zap.Error(err),
		)
		return fmt.Errorf("auth_rotator_revoke_family_failed: %w", err)
	}

	rotator.logger.Warn("refresh_token_reuse_detected",
		zap.String("user_id", record.UserID),
		zap.String("token_id", record.ID),
		zap.String("reason", reason),
		zap.Int64("revoked", revoked),
	)
	return ErrInvalidRefreshToken
}

func reuseReason(record *RefreshToken) string {
	if record.IsRevoked {
		return "revoked"
	}
	return "expired"
}
