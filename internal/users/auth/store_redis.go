// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taibuivan/keygate/internal/platform/constants"
)

// # Resend Throttle

// RedisResendThrottle implements ResendThrottle with one expiring key per user.
type RedisResendThrottle struct {
	client   redis.Cmdable
	cooldown time.Duration
}

// NewResendThrottle creates a Redis-backed ResendThrottle.
func NewResendThrottle(client redis.Cmdable, cooldown time.Duration) *RedisResendThrottle {
	return &RedisResendThrottle{client: client, cooldown: cooldown}
}

/*
Allow claims the cooldown slot for userID.

Description: SET NX with the cooldown as TTL. The first caller in a window
creates the key and is allowed; everyone else finds it present.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - bool: true if the resend may proceed
  - error: Connectivity errors
*/
func (throttle *RedisResendThrottle) Allow(context context.Context, userID string) (bool, error) {
	if throttle.cooldown <= 0 {
		return true, nil
	}

	key := constants.RedisPrefixResendThrottle + userID

	created, err := throttle.client.SetNX(context, key, time.Now().Unix(), throttle.cooldown).Result()
	if err != nil {
		return false, fmt.Errorf("redis_resend_throttle_set_failed: %w", err)
	}

	return created, nil
}
