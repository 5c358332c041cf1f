// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import "time"

// # Session Constraints

const (
	// DefaultAccessTokenTTL applies when no access TTL is configured.
	DefaultAccessTokenTTL = 15 * time.Minute

	// DefaultRefreshTokenTTL applies when no refresh lifetime is configured.
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour

	// RefreshTokenLength is the number of random bytes in a raw refresh token (512 bits).
	RefreshTokenLength = 64
)

// # Activation Constraints

const (
	// ActivationWindow is how long an activation code stays valid.
	// Fixed; resend exists for users who miss it.
	ActivationWindow = time.Minute

	// DefaultRoleName is assigned to every self-registered or provider-created user.
	DefaultRoleName = "USER"

	// MinPasswordLength is enforced at registration.
	MinPasswordLength = 8
)

// # Notification Templates

const (
	// TemplateRegister is the activation mail template name.
	TemplateRegister = "register"
)
