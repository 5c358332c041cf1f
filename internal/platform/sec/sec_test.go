// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec_test

import (
	"crypto/rand"
	"crypto/rsa"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/taibuivan/keygate/internal/platform/sec"
)

/*
TestVerifyPassword covers both supported formats, mismatches, and malformed hashes.
*/
func TestVerifyPassword(t *testing.T) {
	bcryptHash, err := sec.BcryptHasher{Cost: 4}.Hash("correct horse")
	require.NoError(t, err)

	argonHasher := sec.DefaultArgon2idHasher()
	argonHasher.Memory = 8 * 1024
	argonHash, err := argonHasher.Hash("correct horse")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(argonHash, "$argon2id$v=19$"))

	tests := []struct {
		name      string
		password  string
		hash      string
		want      bool
		malformed bool
	}{
		{"bcrypt_match", "correct horse", bcryptHash, true, false},
		{"bcrypt_mismatch", "battery staple", bcryptHash, false, false},
		{"argon2id_match", "correct horse", argonHash, true, false},
		{"argon2id_mismatch", "battery staple", argonHash, false, false},
		{"empty_hash", "correct horse", "", false, true},
		{"unknown_prefix", "correct horse", "plaintext", false, true},
		{"truncated_bcrypt", "correct horse", "$2a$10$short", false, true},
		{"argon2id_missing_parts", "correct horse", "$argon2id$v=19$m=65536", false, true},
		{"argon2id_zero_threads", "correct horse", "$argon2id$v=19$m=8192,t=3,p=0$c2FsdHNhbHQ$a2V5a2V5", false, true},
		{"argon2id_bad_salt", "correct horse", "$argon2id$v=19$m=8192,t=3,p=1$!!!$a2V5a2V5", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := sec.VerifyPassword(tt.password, tt.hash)

			assert.Equal(t, tt.want, ok)
			if tt.malformed {
				assert.ErrorIs(t, err, sec.ErrMalformedHash)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

/*
TestNewPasswordHasher resolves configured algorithm names.
*/
func TestNewPasswordHasher(t *testing.T) {
	hasher, err := sec.NewPasswordHasher("bcrypt")
	require.NoError(t, err)
	assert.IsType(t, sec.BcryptHasher{}, hasher)

	hasher, err = sec.NewPasswordHasher("ARGON2ID")
	require.NoError(t, err)
	assert.IsType(t, sec.Argon2idHasher{}, hasher)

	_, err = sec.NewPasswordHasher("md5")
	assert.Error(t, err)
}

/*
TestBcryptHasher_PasswordTooLong counts the limit in bytes, not characters.
*/
func TestBcryptHasher_PasswordTooLong(t *testing.T) {
	hasher := sec.BcryptHasher{Cost: bcrypt.MinCost}

	_, err := hasher.Hash(strings.Repeat("p", sec.MaxPasswordBytes))
	assert.NoError(t, err)

	_, err = hasher.Hash(strings.Repeat("é", 40))
	assert.ErrorIs(t, err, sec.ErrPasswordTooLong)
}

/*
TestGenerateSecureToken checks length, encoding, and uniqueness of refresh token values.
*/
func TestGenerateSecureToken(t *testing.T) {
	first, err := sec.GenerateSecureToken(64)
	require.NoError(t, err)
	second, err := sec.GenerateSecureToken(64)
	require.NoError(t, err)

	assert.Len(t, first, 128)
	assert.Regexp(t, "^[0-9a-f]+$", first)
	assert.NotEqual(t, first, second)
}

/*
TestHashToken is deterministic and never echoes the input.
*/
func TestHashToken(t *testing.T) {
	raw := "refresh-token-value"

	assert.Equal(t, sec.HashToken(raw), sec.HashToken(raw))
	assert.NotEqual(t, raw, sec.HashToken(raw))
	assert.Len(t, sec.HashToken(raw), 64)
	assert.NotEqual(t, sec.HashToken(raw), sec.HashToken(raw+"x"))
}

func newTokenService(t *testing.T) *sec.TokenService {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return sec.NewTokenServiceFromKeys(key, "keygate-test")
}

/*
TestTokenService_SignVerify round-trips the identity payload.
*/
func TestTokenService_SignVerify(t *testing.T) {
	service := newTokenService(t)

	token, err := service.Sign(sec.Claims{Subject: "user-1", Email: "alice@x.com", Role: "USER"}, time.Minute)
	require.NoError(t, err)

	claims, err := service.Verify(token)
	require.NoError(t, err)

	assert.Equal(t, "user-1", claims.UserID())
	assert.Equal(t, "alice@x.com", claims.Email)
	assert.Equal(t, "USER", claims.Role)
	assert.Equal(t, "keygate-test", claims.Issuer)
	assert.NotEmpty(t, claims.ID)
}

/*
TestTokenService_Expired maps an elapsed token to ErrTokenExpired.
*/
func TestTokenService_Expired(t *testing.T) {
	service := newTokenService(t)

	token, err := service.Sign(sec.Claims{Subject: "user-1", Role: "USER"}, -time.Second)
	require.NoError(t, err)

	_, err = service.Verify(token)
	assert.ErrorIs(t, err, sec.ErrTokenExpired)
}

/*
TestTokenService_Invalid rejects foreign keys, tampering, and other algorithms.
*/
func TestTokenService_Invalid(t *testing.T) {
	service := newTokenService(t)
	other := newTokenService(t)

	foreign, err := other.Sign(sec.Claims{Subject: "user-1", Role: "ADMIN"}, time.Minute)
	require.NoError(t, err)

	hmacToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "user-1",
		Issuer:    "keygate-test",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	valid, err := service.Sign(sec.Claims{Subject: "user-1", Role: "USER"}, time.Minute)
	require.NoError(t, err)
	tampered := valid[:len(valid)-4] + "AAAA"

	for name, token := range map[string]string{
		"foreign_key": foreign,
		"hmac":        hmacToken,
		"tampered":    tampered,
		"garbage":     "not-a-jwt",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := service.Verify(token)
			assert.ErrorIs(t, err, sec.ErrTokenInvalid)
		})
	}
}
