// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/taibuivan/keygate/internal/platform/dberr"
	"github.com/taibuivan/keygate/internal/platform/sec"
	"github.com/taibuivan/keygate/pkg/normalize"
	"github.com/taibuivan/keygate/pkg/uuid"
)

// SeedAdminInput describes the administrator account ensured by cmd/seed.
type SeedAdminInput struct {
	Email    string
	Password string
	Name     string
}

/*
SeedAdmin creates the administrator account, or resets an existing one to an
active ADMIN with the given password.

Parameters:
  - context: context.Context
  - users: UserRepository
  - roles: RoleRepository
  - hasher: sec.PasswordHasher
  - input: SeedAdminInput

Returns:
  - *User: The ensured account
  - bool: true if the account was created
  - error: Hashing or storage failures
*/
func SeedAdmin(context context.Context, users UserRepository, roles RoleRepository, hasher sec.PasswordHasher, input SeedAdminInput) (*User, bool, error) {
	email := normalize.Email(input.Email)
	if email == "" || input.Password == "" {
		return nil, false, errors.New("auth_seed_admin_invalid_input: email and password are required")
	}

	role, err := roleResolver{roles: roles}.resolve(context, string(sec.RoleAdmin))
	if err != nil {
		return nil, false, err
	}

	passwordHash, err := hasher.Hash(input.Password)
	if err != nil {
		return nil, false, fmt.Errorf("auth_seed_admin_hash_failed: %w", err)
	}

	now := time.Now()
	user, err := users.FindByEmail(context, email)
	switch {
	case err == nil:
		user.PasswordHash = passwordHash
		user.RoleID = role.ID
		user.RoleName = role.Name
		user.Status = StatusActive
		user.EmailVerified = true
		user.ActivationCode = ""
		user.ActivationExpiresAt = nil
		user.UpdatedAt = now
		if input.Name != "" {
			user.Name = normalize.Name(input.Name)
		}

		if err := users.Update(context, user); err != nil {
			return nil, false, fmt.Errorf("auth_seed_admin_update_failed: %w", err)
		}
		return user, false, nil

	case errors.Is(err, dberr.ErrNotFound):
		user = &User{
			ID:            uuid.New(),
			Email:         email,
			PasswordHash:  passwordHash,
			Name:          normalize.Name(input.Name),
			RoleID:        role.ID,
			RoleName:      role.Name,
			Status:        StatusActive,
			EmailVerified: true,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := users.Create(context, user); err != nil {
			return nil, false, fmt.Errorf("auth_seed_admin_create_failed: %w", err)
		}
		return user, true, nil

	default:
		return nil, false, fmt.Errorf("auth_seed_admin_lookup_failed: %w", err)
	}
}
