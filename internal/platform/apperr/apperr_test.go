// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package apperr_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/keygate/internal/platform/apperr"
)

/*
TestAppError_IsMatchesByCode verifies that sentinels are matched by Code, even
after a cause is attached or the error is wrapped again.
*/
func TestAppError_IsMatchesByCode(t *testing.T) {
	sentinel := apperr.New("CODE_EXPIRED", "Activation code has expired", http.StatusBadRequest)
	cause := errors.New("clock says no")

	withCause := sentinel.WithCause(cause)
	wrapped := fmt.Errorf("auth_service_activate_failed: %w", withCause)

	assert.ErrorIs(t, withCause, sentinel)
	assert.ErrorIs(t, wrapped, sentinel)
	assert.ErrorIs(t, wrapped, cause)
	assert.NotErrorIs(t, wrapped, apperr.NotFound("User"))

	// The sentinel itself must stay untouched.
	assert.Nil(t, sentinel.Cause)
}

/*
TestAppError_As extracts the AppError from a wrapped chain.
*/
func TestAppError_As(t *testing.T) {
	err := fmt.Errorf("outer: %w", apperr.Conflict("Email taken"))

	ae := apperr.As(err)
	require.NotNil(t, ae)
	assert.Equal(t, "CONFLICT", ae.Code)
	assert.Equal(t, http.StatusConflict, ae.HTTPStatus)

	assert.Nil(t, apperr.As(errors.New("plain")))
}

/*
TestAppError_Internal hides the cause from the client message.
*/
func TestAppError_Internal(t *testing.T) {
	cause := errors.New("pq: connection refused")
	ae := apperr.Internal(cause)

	assert.Equal(t, "An unexpected error occurred", ae.Error())
	assert.ErrorIs(t, ae, cause)
	assert.Equal(t, http.StatusInternalServerError, ae.HTTPStatus)
}
