// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
)

// # User Data Access

// UserRepository defines the data access contract for user accounts.
//
// Lookups that match nothing return [dberr.ErrNotFound]. Writes that violate a
// unique key (email, provider identity) return [dberr.ErrConflict].
type UserRepository interface {

	/*
		FindByID returns the account with the given ID.

		Parameters:
		  - context: context.Context
		  - id: string

		Returns:
		  - *User: Hydrated entity, RoleName included
		  - error: dberr.ErrNotFound or retrieval failures
	*/
	FindByID(context context.Context, id string) (*User, error)

	/*
		FindByEmail returns the account with the given (normalized) email.

		Parameters:
		  - context: context.Context
		  - email: string

		Returns:
		  - *User: Hydrated entity
		  - error: dberr.ErrNotFound or retrieval failures
	*/
	FindByEmail(context context.Context, email string) (*User, error)

	/*
		FindByIDAndActivationCode returns the account only if both id and code match.

		Parameters:
		  - context: context.Context
		  - id: string
		  - code: string

		Returns:
		  - *User: Hydrated entity
		  - error: dberr.ErrNotFound or retrieval failures
	*/
	FindByIDAndActivationCode(context context.Context, id, code string) (*User, error)

	/*
		FindByProviderIdentity returns the account linked to an identity provider subject.

		Parameters:
		  - context: context.Context
		  - provider: string
		  - providerID: string

		Returns:
		  - *User: Hydrated entity
		  - error: dberr.ErrNotFound or retrieval failures
	*/
	FindByProviderIdentity(context context.Context, provider, providerID string) (*User, error)

	/*
		Create persists a brand-new user account.

		Parameters:
		  - context: context.Context
		  - user: *User

		Returns:
		  - error: dberr.ErrConflict or persistence failures
	*/
	Create(context context.Context, user *User) error

	/*
		Update persists the mutable fields: status, activation code and expiry,
		provider identity, email-verified flag, name and role.

		Parameters:
		  - context: context.Context
		  - user: *User

		Returns:
		  - error: dberr.ErrNotFound, dberr.ErrConflict or persistence failures
	*/
	Update(context context.Context, user *User) error
}

// # Refresh Token Data Access

// RefreshTokenRepository defines the data access contract for refresh token records.
type RefreshTokenRepository interface {

	/*
		FindByHash returns the record for a token digest, whatever its state.
		Revoked and expired records are returned so reuse can be detected.

		Parameters:
		  - context: context.Context
		  - tokenHash: string

		Returns:
		  - *RefreshToken: Hydrated entity
		  - error: dberr.ErrNotFound or retrieval failures
	*/
	FindByHash(context context.Context, tokenHash string) (*RefreshToken, error)

	/*
		Create persists a new refresh token record.

		Parameters:
		  - context: context.Context
		  - token: *RefreshToken

		Returns:
		  - error: Persistence failures
	*/
	Create(context context.Context, token *RefreshToken) error

	/*
		Revoke atomically flips a record from active to revoked.

		Parameters:
		  - context: context.Context
		  - id: string

		Returns:
		  - bool: true only if this call performed the transition
		  - error: Persistence failures
	*/
	Revoke(context context.Context, id string) (bool, error)

	/*
		RevokeAllForUser revokes every active record owned by userID in one statement.

		Parameters:
		  - context: context.Context
		  - userID: string

		Returns:
		  - int64: Number of records revoked
		  - error: Persistence failures
	*/
	RevokeAllForUser(context context.Context, userID string) (int64, error)
}

// # Role Data Access

// RoleRepository defines the data access contract for roles.
type RoleRepository interface {

	/*
		FindByName returns the role with the given name.

		Parameters:
		  - context: context.Context
		  - name: string

		Returns:
		  - *Role: Hydrated entity
		  - error: dberr.ErrNotFound or retrieval failures
	*/
	FindByName(context context.Context, name string) (*Role, error)

	/*
		Create persists a new role.

		Parameters:
		  - context: context.Context
		  - role: *Role

		Returns:
		  - error: dberr.ErrConflict or persistence failures
	*/
	Create(context context.Context, role *Role) error
}

// # Volatile Data Access

// ResendThrottle bounds how often an activation code may be re-sent per user.
type ResendThrottle interface {

	/*
		Allow reports whether a resend for userID may proceed now, and records it if so.

		Parameters:
		  - context: context.Context
		  - userID: string

		Returns:
		  - bool: false while the cooldown is running
		  - error: Backend failures
	*/
	Allow(context context.Context, userID string) (bool, error)
}
