// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package auth implements the session and credential lifecycle of keygate.

It owns the domain entities (User, Role, RefreshToken) and the engine built on
top of them: session issuance, refresh rotation with reuse detection, account
activation and identity-provider linking.

# Architecture

Each component receives its collaborators through its constructor:

  - Issuer: signs access tokens and persists refresh token hashes.
  - Rotator: exchanges a refresh token for a new pair, revoking the family on reuse.
  - ActivationManager: registration, activation codes and resend.
  - Linker: resolves a local user from an identity-provider assertion.
  - Service: the facade used by the HTTP layer.

Storage is reached only through the interfaces in store.go.
*/
package auth

import (
	"time"
)

// # Account Status

// Status is the activation state of an account.
type Status string

const (
	// StatusUnactivated accounts exist but cannot log in yet.
	StatusUnactivated Status = "unactivated"

	// StatusActive is terminal; there is no transition back.
	StatusActive Status = "active"
)

// # Domain Entities

// User is a local identity record.
type User struct {
	ID                  string     `json:"id"`
	Email               string     `json:"email,omitempty"`
	PasswordHash        string     `json:"-"` // Empty for identity-provider only accounts.
	Name                string     `json:"name,omitempty"`
	RoleID              string     `json:"role_id"`
	RoleName            string     `json:"role"`
	Status              Status     `json:"status"`
	ActivationCode      string     `json:"-"`
	ActivationExpiresAt *time.Time `json:"-"`
	Provider            string     `json:"provider,omitempty"`
	ProviderID          string     `json:"-"`
	EmailVerified       bool       `json:"email_verified"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// IsActive reports whether the account has passed activation.
func (user *User) IsActive() bool {
	return user.Status == StatusActive
}

// Role is a named permission group. Immutable once seeded.
type Role struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// RefreshToken is the stored record of an issued refresh token.
// The raw token value is never persisted; only its digest.
type RefreshToken struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	TokenHash string    `json:"-"`
	IPAddress string    `json:"ip_address,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
	IsRevoked bool      `json:"is_revoked"`
	CreatedAt time.Time `json:"created_at"`
}

// IsExpired reports whether the token is past its expiry at now.
func (token *RefreshToken) IsExpired(now time.Time) bool {
	return now.After(token.ExpiresAt)
}

// # Value Objects

// ClientMeta describes the client a session is issued to.
type ClientMeta struct {
	IPAddress string
	UserAgent string
}

// Session is the credential pair handed back to the caller.
//
// RefreshToken holds the raw value. This is the only place it ever exists.
type Session struct {
	AccessToken      string
	RefreshToken     string
	RefreshExpiresAt time.Time
	User             *User
}

// ActivationCode is a freshly issued one-time code.
type ActivationCode struct {
	Code      string
	ExpiresAt time.Time
}

// # Field Identifiers

const (
	FieldUserID      = "user_id"
	FieldEmail       = "email"
	FieldPassword    = "password"
	FieldName        = "name"
	FieldCode        = "code"
	FieldAccessToken = "access_token"
	FieldTokenType   = "token_type"
	FieldExpiresIn   = "expires_in"
	FieldUser        = "user"
)
