// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

// # PostgreSQL Repositories
//
// Repositories here implement the interfaces in store.go over a [pgxpool.Pool].
// Every error leaves through [dberr.Wrap], so callers only ever see
// dberr.ErrNotFound, dberr.ErrConflict or a wrapped driver failure.
//
// Optional text columns are stored as NULL and read back as "" so that the
// unique indexes on email and (provider, providerid) ignore absent values.

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taibuivan/keygate/internal/platform/dberr"
)

// # User Repository

// PostgresUserRepository implements the UserRepository interface using pgx.
type PostgresUserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new PostgreSQL implementation of the UserRepository.
func NewUserRepository(pool *pgxpool.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

const userColumns = `
	a.id, COALESCE(a.email, ''), COALESCE(a.passwordhash, ''), a.name, a.roleid, r.name,
	a.status, COALESCE(a.activationcode, ''), a.activationexpiresat,
	COALESCE(a.provider, ''), COALESCE(a.providerid, ''), a.emailverified,
	a.createdat, a.updatedat`

const userFrom = `
	FROM users.account a
	JOIN users.role r ON r.id = a.roleid`

func scanUser(row pgx.Row) (*User, error) {
	user := &User{}
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.Name,
		&user.RoleID,
		&user.RoleName,
		&user.Status,
		&user.ActivationCode,
		&user.ActivationExpiresAt,
		&user.Provider,
		&user.ProviderID,
		&user.EmailVerified,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (repository *PostgresUserRepository) findOne(context context.Context, action, where string, args ...any) (*User, error) {
	query := "SELECT " + userColumns + userFrom + " WHERE " + where

	user, err := scanUser(repository.pool.QueryRow(context, query, args...))
	if err != nil {
		return nil, dberr.Wrap(err, action)
	}
	return user, nil
}

/*
FindByID retrieves a user record by its primary key.

Parameters:
  - context: context.Context
  - id: string (UUIDv7)

Returns:
  - *User: Hydrated account entity with its role name
  - error: dberr.ErrNotFound or execution errors
*/
func (repository *PostgresUserRepository) FindByID(context context.Context, id string) (*User, error) {
	return repository.findOne(context, "postgres_user_repo_find_by_id_failed", "a.id = $1", id)
}

// FindByEmail retrieves a user record by its unique email address.
func (repository *PostgresUserRepository) FindByEmail(context context.Context, email string) (*User, error) {
	if email == "" {
		return nil, dberr.ErrNotFound
	}
	return repository.findOne(context, "postgres_user_repo_find_by_email_failed", "a.email = $1", email)
}

// FindByIDAndActivationCode retrieves a user only when both id and current code match.
func (repository *PostgresUserRepository) FindByIDAndActivationCode(context context.Context, id, code string) (*User, error) {
	return repository.findOne(context, "postgres_user_repo_find_by_code_failed",
		"a.id = $1 AND a.activationcode = $2", id, code)
}

// FindByProviderIdentity retrieves a user linked to an identity-provider subject.
func (repository *PostgresUserRepository) FindByProviderIdentity(context context.Context, provider, providerID string) (*User, error) {
	if provider == "" || providerID == "" {
		return nil, dberr.ErrNotFound
	}
	return repository.findOne(context, "postgres_user_repo_find_by_provider_failed",
		"a.provider = $1 AND a.providerid = $2", provider, providerID)
}

/*
Create persists a new user record into the users.account table.

Description: Timestamps default to now when not provided. A duplicate email or
provider identity surfaces as dberr.ErrConflict.

Parameters:
  - context: context.Context
  - user: *User (Entity to persist)

Returns:
  - error: dberr.ErrConflict or connectivity errors
*/
func (repository *PostgresUserRepository) Create(context context.Context, user *User) error {
	const query = `
		INSERT INTO users.account (
			id, email, passwordhash, name, roleid, status, activationcode, activationexpiresat,
			provider, providerid, emailverified, createdat, updatedat
		) VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), $4, $5, $6, NULLIF($7, ''), $8,
			NULLIF($9, ''), NULLIF($10, ''), $11, $12, $13)`

	now := time.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = now
	}

	_, err := repository.pool.Exec(context, query,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.Name,
		user.RoleID,
		user.Status,
		user.ActivationCode,
		user.ActivationExpiresAt,
		user.Provider,
		user.ProviderID,
		user.EmailVerified,
		user.CreatedAt,
		user.UpdatedAt,
	)

	return dberr.Wrap(err, "postgres_user_repo_create_failed")
}

/*
Update persists the mutable fields of a user.

Parameters:
  - context: context.Context
  - user: *User

Returns:
  - error: dberr.ErrNotFound, dberr.ErrConflict or execution errors
*/
func (repository *PostgresUserRepository) Update(context context.Context, user *User) error {
	const query = `
		UPDATE users.account
		SET name = $2, roleid = $3, status = $4, activationcode = NULLIF($5, ''),
			activationexpiresat = $6, provider = NULLIF($7, ''), providerid = NULLIF($8, ''),
			emailverified = $9, updatedat = $10, passwordhash = NULLIF($11, '')
		WHERE id = $1`

	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = time.Now()
	}
	tag, err := repository.pool.Exec(context, query,
		user.ID,
		user.Name,
		user.RoleID,
		user.Status,
		user.ActivationCode,
		user.ActivationExpiresAt,
		user.Provider,
		user.ProviderID,
		user.EmailVerified,
		user.UpdatedAt,
		user.PasswordHash,
	)
	if err != nil {
		return dberr.Wrap(err, "postgres_user_repo_update_failed")
	}
	if tag.RowsAffected() == 0 {
		return dberr.ErrNotFound
	}

	return nil
}

// # Refresh Token Repository

// PostgresRefreshTokenRepository implements the RefreshTokenRepository interface.
type PostgresRefreshTokenRepository struct {
	pool *pgxpool.Pool
}

// NewRefreshTokenRepository creates a new PostgreSQL implementation of RefreshTokenRepository.
func NewRefreshTokenRepository(pool *pgxpool.Pool) *PostgresRefreshTokenRepository {
	return &PostgresRefreshTokenRepository{pool: pool}
}

/*
FindByHash returns the record matching tokenHash, revoked or not.

Parameters:
  - context: context.Context
  - tokenHash: string

Returns:
  - *RefreshToken: Hydrated entity
  - error: dberr.ErrNotFound or execution errors
*/
func (repository *PostgresRefreshTokenRepository) FindByHash(context context.Context, tokenHash string) (*RefreshToken, error) {
	const query = `
		SELECT id, userid, tokenhash, COALESCE(ipaddress, ''), COALESCE(useragent, ''),
			expiresat, isrevoked, createdat
		FROM users.refreshtoken
		WHERE tokenhash = $1`

	token := &RefreshToken{}
	err := repository.pool.QueryRow(context, query, tokenHash).Scan(
		&token.ID,
		&token.UserID,
		&token.TokenHash,
		&token.IPAddress,
		&token.UserAgent,
		&token.ExpiresAt,
		&token.IsRevoked,
		&token.CreatedAt,
	)
	if err != nil {
		return nil, dberr.Wrap(err, "postgres_refresh_token_repo_find_failed")
	}

	return token, nil
}

/*
Create persists a new refresh token record.

Parameters:
  - context: context.Context
  - token: *RefreshToken

Returns:
  - error: Storage failures
*/
func (repository *PostgresRefreshTokenRepository) Create(context context.Context, token *RefreshToken) error {
	const query = `
		INSERT INTO users.refreshtoken (
			id, userid, tokenhash, ipaddress, useragent, expiresat, isrevoked, createdat
		) VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6, $7, $8)`

	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now()
	}

	_, err := repository.pool.Exec(context, query,
		token.ID,
		token.UserID,
		token.TokenHash,
		token.IPAddress,
		token.UserAgent,
		token.ExpiresAt,
		token.IsRevoked,
		token.CreatedAt,
	)

	return dberr.Wrap(err, "postgres_refresh_token_repo_create_failed")
}

/*
Revoke flips a record to revoked only if it is still active.

Description: The WHERE clause is the compare-and-set; concurrent callers are
serialized by the row lock and exactly one sees a row affected.

Parameters:
  - context: context.Context
  - id: string

Returns:
  - bool: true if this call revoked the record
  - error: Execution errors
*/
func (repository *PostgresRefreshTokenRepository) Revoke(context context.Context, id string) (bool, error) {
	const query = `
		UPDATE users.refreshtoken
		SET isrevoked = TRUE
		WHERE id = $1 AND isrevoked = FALSE`

	tag, err := repository.pool.Exec(context, query, id)
	if err != nil {
		return false, dberr.Wrap(err, "postgres_refresh_token_repo_revoke_failed")
	}

	return tag.RowsAffected() == 1, nil
}

/*
RevokeAllForUser revokes every active record of userID in a single statement.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - int64: Rows revoked
  - error: Execution errors
*/
func (repository *PostgresRefreshTokenRepository) RevokeAllForUser(context context.Context, userID string) (int64, error) {
	const query = `
		UPDATE users.refreshtoken
		SET isrevoked = TRUE
		WHERE userid = $1 AND isrevoked = FALSE`

	tag, err := repository.pool.Exec(context, query, userID)
	if err != nil {
		return 0, dberr.Wrap(err, "postgres_refresh_token_repo_revoke_all_failed")
	}

	return tag.RowsAffected(), nil
}

// # Role Repository

// PostgresRoleRepository implements the RoleRepository interface.
type PostgresRoleRepository struct {
	pool *pgxpool.Pool
}

// NewRoleRepository creates a new PostgreSQL implementation of RoleRepository.
func NewRoleRepository(pool *pgxpool.Pool) *PostgresRoleRepository {
	return &PostgresRoleRepository{pool: pool}
}

// FindByName retrieves a role by its unique name.
func (repository *PostgresRoleRepository) FindByName(context context.Context, name string) (*Role, error) {
	const query = `SELECT id, name FROM users.role WHERE name = $1`

	role := &Role{}
	if err := repository.pool.QueryRow(context, query, name).Scan(&role.ID, &role.Name); err != nil {
		return nil, dberr.Wrap(err, "postgres_role_repo_find_failed")
	}
	return role, nil
}

// Create persists a new role. A duplicate name surfaces as dberr.ErrConflict.
func (repository *PostgresRoleRepository) Create(context context.Context, role *Role) error {
	const query = `INSERT INTO users.role (id, name, createdat) VALUES ($1, $2, $3)`

	_, err := repository.pool.Exec(context, query, role.ID, role.Name, time.Now())
	return dberr.Wrap(err, "postgres_role_repo_create_failed")
}
