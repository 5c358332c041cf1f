// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// Supported password hashing algorithms.
const (
	AlgorithmBcrypt   = "bcrypt"
	AlgorithmArgon2id = "argon2id"
)

// MaxPasswordBytes is the longest password bcrypt accepts, counted in bytes.
const MaxPasswordBytes = 72

var (
	// ErrMalformedHash is returned when a stored password hash cannot be parsed.
	ErrMalformedHash = errors.New("sec: malformed password hash")

	// ErrPasswordTooLong is returned by [BcryptHasher.Hash] for passwords over [MaxPasswordBytes].
	ErrPasswordTooLong = errors.New("sec: password exceeds 72 bytes")
)

const argon2idPrefix = "$argon2id$"

// # Hashing

// PasswordHasher produces one-way password hashes for storage.
type PasswordHasher interface {
	Hash(password string) (string, error)
}

// NewPasswordHasher returns the hasher for the named algorithm.
func NewPasswordHasher(algorithm string) (PasswordHasher, error) {
	switch strings.ToLower(algorithm) {
	case "", AlgorithmBcrypt:
		return BcryptHasher{Cost: bcrypt.DefaultCost}, nil
	case AlgorithmArgon2id:
		return DefaultArgon2idHasher(), nil
	default:
		return nil, fmt.Errorf("sec: unsupported password algorithm %q", algorithm)
	}
}

// BcryptHasher hashes passwords with bcrypt at the given cost.
type BcryptHasher struct {
	Cost int
}

// Hash implements [PasswordHasher].
func (hasher BcryptHasher) Hash(password string) (string, error) {
	if len(password) > MaxPasswordBytes {
		return "", ErrPasswordTooLong
	}

	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), hasher.Cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", ErrPasswordTooLong
	}
	if err != nil {
		return "", fmt.Errorf("sec: failed to hash password: %w", err)
	}
	return string(hashedBytes), nil
}

// Argon2idHasher hashes passwords with argon2id and encodes them in PHC string format.
type Argon2idHasher struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  int
	KeyLength   uint32
}

// DefaultArgon2idHasher returns the parameters used by node-argon2 defaults.
func DefaultArgon2idHasher() Argon2idHasher {
	return Argon2idHasher{
		Memory:      64 * 1024,
		Iterations:  3,
		Parallelism: 4,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// Hash implements [PasswordHasher].
func (hasher Argon2idHasher) Hash(password string) (string, error) {
	salt := make([]byte, hasher.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("sec: failed to read salt: %w", err)
	}

	key := argon2.IDKey([]byte(password), salt, hasher.Iterations, hasher.Memory, hasher.Parallelism, hasher.KeyLength)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		hasher.Memory,
		hasher.Iterations,
		hasher.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// # Verification

// VerifyPassword reports whether password matches the stored hash.
//
// A mismatch is (false, nil). Only a structurally invalid hash yields an error,
// which always wraps [ErrMalformedHash]. The algorithm is detected from the hash prefix.
func VerifyPassword(password, hash string) (bool, error) {
	switch {
	case strings.HasPrefix(hash, argon2idPrefix):
		return verifyArgon2id(password, hash)
	case strings.HasPrefix(hash, "$2"):
		return verifyBcrypt(password, hash)
	default:
		return false, ErrMalformedHash
	}
}

func verifyBcrypt(password, hash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, fmt.Errorf("%w: %v", ErrMalformedHash, err)
}

func verifyArgon2id(password, hash string) (bool, error) {

	// "", "argon2id", "v=19", "m=..,t=..,p=..", salt, key
	parts := strings.Split(hash, "$")
	if len(parts) != 6 {
		return false, ErrMalformedHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return false, ErrMalformedHash
	}

	var memory, iterations uint32
	var parallelism uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &parallelism); err != nil {
		return false, ErrMalformedHash
	}

	// argon2.IDKey panics on zero rounds or threads.
	if memory == 0 || iterations == 0 || parallelism == 0 {
		return false, ErrMalformedHash
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, ErrMalformedHash
	}

	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(expected) == 0 {
		return false, ErrMalformedHash
	}

	actual := argon2.IDKey([]byte(password), salt, iterations, memory, parallelism, uint32(len(expected)))
	return subtle.ConstantTimeCompare(actual, expected) == 1, nil
}
