// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"net/http"

	"github.com/taibuivan/keygate/internal/platform/apperr"
)

// # Domain Errors
//
// Every failure the engine can report is one of these sentinels. Compare with
// [errors.Is]; values wrapped through [apperr.AppError.WithCause] still match.

var (
	ErrDuplicateEmail      = apperr.New("DUPLICATE_EMAIL", "Email is already registered", http.StatusConflict)
	ErrInvalidCredentials  = apperr.New("INVALID_CREDENTIALS", "Invalid email or password", http.StatusUnauthorized)
	ErrUserNotFound        = apperr.New("USER_NOT_FOUND", "User not found", http.StatusNotFound)
	ErrCodeMismatch        = apperr.New("CODE_MISMATCH", "Activation code does not match", http.StatusBadRequest)
	ErrCodeExpired         = apperr.New("CODE_EXPIRED", "Activation code has expired", http.StatusBadRequest)
	ErrInvalidRefreshToken = apperr.New("INVALID_REFRESH_TOKEN", "Invalid or expired refresh token", http.StatusUnauthorized)
	ErrAlreadyActivated    = apperr.New("ALREADY_ACTIVATED", "Account is already activated", http.StatusConflict)

	// Identity linking policy
	ErrEmailNotVerified  = apperr.New("EMAIL_NOT_VERIFIED", "Provider email is not verified", http.StatusForbidden)
	ErrLinkingNotAllowed = apperr.New("LINKING_NOT_ALLOWED", "An account with this email already exists", http.StatusConflict)
	ErrSignupNotAllowed  = apperr.New("SIGNUP_NOT_ALLOWED", "Sign-up through this provider is disabled", http.StatusForbidden)

	// ErrHashFormat marks a stored password hash that cannot be parsed. It is an
	// integrity fault, so it renders as a 500 and always carries its cause.
	ErrHashFormat = apperr.New("HASH_FORMAT_ERROR", "An unexpected error occurred", http.StatusInternalServerError)
)
