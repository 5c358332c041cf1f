// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package uuid provides the identifier generators used across keygate.

Two flavours are exposed:

  - New: Version 7, time-ordered. Used for every primary key so B-tree
    indexes stay append-mostly.
  - NewRandom: Version 4, fully random. Used for activation codes, which
    must not leak their issue time.
*/
package uuid

import "github.com/google/uuid"

// # Generators

// New generates a new UUIDv7 string.
func New() string {

	// Create a new version 7 UUID (time-sortable)
	id, err := uuid.NewV7()

	// entropy failure is an unrecoverable system-level error
	if err != nil {
		panic("uuid: failed to generate v7: " + err.Error())
	}

	return id.String()
}

// NewRandom generates a new UUIDv4 string.
func NewRandom() string {
	return uuid.NewString()
}

// # Validation

// IsValid reports whether value parses as a UUID of any version.
func IsValid(value string) bool {
	return uuid.Validate(value) == nil
}
