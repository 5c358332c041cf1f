// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// GenerateSecureToken returns length random bytes encoded as lowercase hex.
//
// The result is 2*length characters long.
func GenerateSecureToken(length int) (string, error) {
	buffer := make([]byte, length)
	if _, err := rand.Read(buffer); err != nil {
		return "", fmt.Errorf("sec: failed to read random bytes: %w", err)
	}
	return hex.EncodeToString(buffer), nil
}

// HashToken returns the sha256 hex digest of an opaque token.
//
// It is deterministic so that stored hashes can be looked up by exact match.
// Never use it for passwords.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
