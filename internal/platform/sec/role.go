// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec

// # User Roles

// UserRole is the role name carried in the access token payload.
type UserRole string

const (
	// Unrestricted system access
	RoleAdmin UserRole = "ADMIN"

	// Default role for registered and identity-provider users
	RoleUser UserRole = "USER"
)
