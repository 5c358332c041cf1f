// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package sec provides cryptographic primitives and token management.
//
// # Architecture
//
// This package isolates security-sensitive code (password hashing, refresh token
// digests, JWT signing) from the domain logic. It acts as an Infrastructure
// service injected into the Application layer through small interfaces.
package sec

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrTokenExpired is returned by [TokenService.Verify] for a token past its exp claim.
	ErrTokenExpired = errors.New("sec: token expired")

	// ErrTokenInvalid is returned by [TokenService.Verify] for any other verification failure.
	ErrTokenInvalid = errors.New("sec: token invalid")
)

// Claims is the identity payload signed into an access token.
type Claims struct {
	Subject string
	Email   string
	Role    string
}

// AuthClaims represents the payload embedded inside a JWT Access Token.
//
// By embedding the email and role name directly inside the JWT, the
// [middleware.Authenticate] can reconstruct the active user context
// without querying the database on every request.
type AuthClaims struct {
	jwt.RegisteredClaims

	Email string `json:"email,omitempty"`
	Role  string `json:"role"`
}

// UserID returns the subject of the token.
func (claims *AuthClaims) UserID() string {
	return claims.Subject
}

// TokenService handles generation and verification of JWT tokens using RS256.
type TokenService struct {
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	issuer     string
	now        func() time.Time
}

// NewTokenService creates a new TokenService.
// It reads RSA keys from the provided filesystem paths.
func NewTokenService(privateKeyPath, publicKeyPath, issuer string) (*TokenService, error) {
	privateKeyData, err := os.ReadFile(privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("sec: failed to read private key from %s: %w", privateKeyPath, err)
	}

	privateKey, err := jwt.ParseRSAPrivateKeyFromPEM(privateKeyData)
	if err != nil {
		return nil, fmt.Errorf("sec: failed to parse private key: %w", err)
	}

	publicKeyData, err := os.ReadFile(publicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("sec: failed to read public key from %s: %w", publicKeyPath, err)
	}

	publicKey, err := jwt.ParseRSAPublicKeyFromPEM(publicKeyData)
	if err != nil {
		return nil, fmt.Errorf("sec: failed to parse public key: %w", err)
	}

	if !privateKey.PublicKey.Equal(publicKey) {
		return nil, errors.New("sec: public key does not match private key")
	}

	return NewTokenServiceFromKeys(privateKey, issuer), nil
}

// NewTokenServiceFromKeys builds a TokenService from an in-memory key pair.
func NewTokenServiceFromKeys(privateKey *rsa.PrivateKey, issuer string) *TokenService {
	return &TokenService{
		privateKey: privateKey,
		publicKey:  &privateKey.PublicKey,
		issuer:     issuer,
		now:        time.Now,
	}
}

// Sign creates a new RS256 access token carrying claims, valid for timeToLive.
func (service *TokenService) Sign(claims Claims, timeToLive time.Duration) (string, error) {
	currentTime := service.now()
	payload := AuthClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   claims.Subject,
			Issuer:    service.issuer,
			IssuedAt:  jwt.NewNumericDate(currentTime),
			ExpiresAt: jwt.NewNumericDate(currentTime.Add(timeToLive)),
		},
		Email: claims.Email,
		Role:  claims.Role,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, payload)
	signedToken, err := token.SignedString(service.privateKey)
	if err != nil {
		return "", fmt.Errorf("sec: failed to sign token: %w", err)
	}

	return signedToken, nil
}

// Verify checks the signature, issuer, and validity window of a JWT string.
//
// It returns [ErrTokenExpired] or [ErrTokenInvalid] on failure.
func (service *TokenService) Verify(tokenString string) (*AuthClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AuthClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return service.publicKey, nil
	},
		jwt.WithIssuer(service.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(service.now),
	)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*AuthClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}
