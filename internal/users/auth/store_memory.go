// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/taibuivan/keygate/internal/platform/dberr"
)

// # In-Memory Store
//
// MemoryStore keeps users, roles and refresh tokens in process memory with the
// same uniqueness and compare-and-set guarantees as the Postgres repositories.
// It backs STORAGE_DRIVER=memory and the engine tests.

// MemoryStore groups the three in-memory repositories over one shared state.
type MemoryStore struct {
	Users         *MemoryUserRepository
	RefreshTokens *MemoryRefreshTokenRepository
	Roles         *MemoryRoleRepository
}

type memoryState struct {
	mu     sync.Mutex
	users  map[string]*User
	tokens map[string]*RefreshToken
	roles  map[string]*Role
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	state := &memoryState{
		users:  make(map[string]*User),
		tokens: make(map[string]*RefreshToken),
		roles:  make(map[string]*Role),
	}
	return &MemoryStore{
		Users:         &MemoryUserRepository{state: state},
		RefreshTokens: &MemoryRefreshTokenRepository{state: state},
		Roles:         &MemoryRoleRepository{state: state},
	}
}

// # Users

// MemoryUserRepository implements [UserRepository].
type MemoryUserRepository struct {
	state *memoryState
}

func (repository *MemoryUserRepository) FindByID(_ context.Context, id string) (*User, error) {
	return repository.findOne(func(user *User) bool { return user.ID == id })
}

func (repository *MemoryUserRepository) FindByEmail(_ context.Context, email string) (*User, error) {
	if email == "" {
		return nil, dberr.ErrNotFound
	}
	return repository.findOne(func(user *User) bool { return strings.EqualFold(user.Email, email) })
}

func (repository *MemoryUserRepository) FindByIDAndActivationCode(_ context.Context, id, code string) (*User, error) {
	return repository.findOne(func(user *User) bool {
		return user.ID == id && user.ActivationCode != "" && user.ActivationCode == code
	})
}

func (repository *MemoryUserRepository) FindByProviderIdentity(_ context.Context, provider, providerID string) (*User, error) {
	if provider == "" || providerID == "" {
		return nil, dberr.ErrNotFound
	}
	return repository.findOne(func(user *User) bool {
		return user.Provider == provider && user.ProviderID == providerID
	})
}

func (repository *MemoryUserRepository) Create(_ context.Context, user *User) error {
	state := repository.state
	state.mu.Lock()
	defer state.mu.Unlock()

	if _, exists := state.users[user.ID]; exists {
		return dberr.ErrConflict
	}
	if state.conflicts(user) {
		return dberr.ErrConflict
	}

	now := time.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = now
	}

	state.users[user.ID] = cloneUser(user)
	return nil
}

func (repository *MemoryUserRepository) Update(_ context.Context, user *User) error {
	state := repository.state
	state.mu.Lock()
	defer state.mu.Unlock()

	if _, exists := state.users[user.ID]; !exists {
		return dberr.ErrNotFound
	}
	if state.conflicts(user) {
		return dberr.ErrConflict
	}

	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = time.Now()
	}
	state.users[user.ID] = cloneUser(user)
	return nil
}

func (repository *MemoryUserRepository) findOne(match func(*User) bool) (*User, error) {
	state := repository.state
	state.mu.Lock()
	defer state.mu.Unlock()

	for _, user := range state.users {
		if match(user) {
			found := cloneUser(user)
			if role, ok := state.roles[found.RoleID]; ok {
				found.RoleName = role.Name
			}
			return found, nil
		}
	}
	return nil, dberr.ErrNotFound
}

// conflicts reports whether another user already owns user's email or provider identity.
// Caller holds mu.
func (state *memoryState) conflicts(user *User) bool {
	for id, other := range state.users {
		if id == user.ID {
			continue
		}
		if user.Email != "" && strings.EqualFold(other.Email, user.Email) {
			return true
		}
		if user.Provider != "" && user.ProviderID != "" &&
			other.Provider == user.Provider && other.ProviderID == user.ProviderID {
			return true
		}
	}
	return false
}

// # Refresh Tokens

// MemoryRefreshTokenRepository implements [RefreshTokenRepository].
type MemoryRefreshTokenRepository struct {
	state *memoryState
}

func (repository *MemoryRefreshTokenRepository) FindByHash(_ context.Context, tokenHash string) (*RefreshToken, error) {
	state := repository.state
	state.mu.Lock()
	defer state.mu.Unlock()

	for _, token := range state.tokens {
		if token.TokenHash == tokenHash {
			found := *token
			return &found, nil
		}
	}
	return nil, dberr.ErrNotFound
}

func (repository *MemoryRefreshTokenRepository) Create(_ context.Context, token *RefreshToken) error {
	state := repository.state
	state.mu.Lock()
	defer state.mu.Unlock()

	for _, existing := range state.tokens {
		if existing.ID == token.ID || existing.TokenHash == token.TokenHash {
			return dberr.ErrConflict
		}
	}

	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now()
	}

	stored := *token
	state.tokens[token.ID] = &stored
	return nil
}

func (repository *MemoryRefreshTokenRepository) Revoke(_ context.Context, id string) (bool, error) {
	state := repository.state
	state.mu.Lock()
	defer state.mu.Unlock()

	token, ok := state.tokens[id]
	if !ok || token.IsRevoked {
		return false, nil
	}
	token.IsRevoked = true
	return true, nil
}

func (repository *MemoryRefreshTokenRepository) RevokeAllForUser(_ context.Context, userID string) (int64, error) {
	state := repository.state
	state.mu.Lock()
	defer state.mu.Unlock()

	var revoked int64
	for _, token := range state.tokens {
		if token.UserID == userID && !token.IsRevoked {
			token.IsRevoked = true
			revoked++
		}
	}
	return revoked, nil
}

// ListByUser returns copies of every record owned by userID, oldest first.
func (repository *MemoryRefreshTokenRepository) ListByUser(_ context.Context, userID string) []RefreshToken {
	state := repository.state
	state.mu.Lock()
	defer state.mu.Unlock()

	var tokens []RefreshToken
	for _, token := range state.tokens {
		if token.UserID == userID {
			tokens = append(tokens, *token)
		}
	}

	slices.SortFunc(tokens, func(a, b RefreshToken) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return tokens
}

// # Roles

// MemoryRoleRepository implements [RoleRepository].
type MemoryRoleRepository struct {
	state *memoryState
}

func (repository *MemoryRoleRepository) FindByName(_ context.Context, name string) (*Role, error) {
	state := repository.state
	state.mu.Lock()
	defer state.mu.Unlock()

	for _, role := range state.roles {
		if role.Name == name {
			found := *role
			return &found, nil
		}
	}
	return nil, dberr.ErrNotFound
}

func (repository *MemoryRoleRepository) Create(_ context.Context, role *Role) error {
	state := repository.state
	state.mu.Lock()
	defer state.mu.Unlock()

	for _, existing := range state.roles {
		if existing.ID == role.ID || existing.Name == role.Name {
			return dberr.ErrConflict
		}
	}

	stored := *role
	state.roles[role.ID] = &stored
	return nil
}

func cloneUser(user *User) *User {
	clone := *user
	if user.ActivationExpiresAt != nil {
		expiresAt := *user.ActivationExpiresAt
		clone.ActivationExpiresAt = &expiresAt
	}
	return &clone
}
