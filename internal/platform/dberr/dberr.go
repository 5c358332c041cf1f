// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package dberr provides a bridge between low-level database errors and
// higher-level application errors.
package dberr

import (
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/taibuivan/keygate/internal/platform/apperr"
)

var (
	// ErrNotFound is returned when a queried row doesn't exist.
	ErrNotFound = apperr.NotFound("Resource")

	// ErrConflict is returned when a write violates a unique constraint.
	ErrConflict = apperr.Conflict("Resource already exists")
)

// Wrap inspects a database error and classifies it.
//
// Missing rows become [ErrNotFound], unique violations become [ErrConflict]
// (carrying the constraint name in the cause), anything else is wrapped with action.
func Wrap(err error, action string) error {
	if err == nil {
		return nil
	}

	// 1. Not Found mapping
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}

	// 2. Unique constraint (SQLSTATE 23505)
	var pgError *pgconn.PgError
	if errors.As(err, &pgError) && pgError.Code == pgerrcode.UniqueViolation {
		return ErrConflict.WithCause(fmt.Errorf("%s: constraint %s: %w", action, pgError.ConstraintName, err))
	}

	// 3. Everything else keeps its cause for logging
	return fmt.Errorf("%s: %w", action, err)
}
