// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/taibuivan/keygate/internal/platform/dberr"
	"github.com/taibuivan/keygate/pkg/uuid"
)

// roleResolver finds a role by name and creates it on first use.
type roleResolver struct {
	roles RoleRepository
}

// resolve returns the named role. Two callers racing on creation both end up
// with the winner's row.
func (resolver roleResolver) resolve(context context.Context, name string) (*Role, error) {
	role, err := resolver.roles.FindByName(context, name)
	if err == nil {
		return role, nil
	}
	if !errors.Is(err, dberr.ErrNotFound) {
		return nil, fmt.Errorf("auth_role_find_failed: %w", err)
	}

	role = &Role{ID: uuid.New(), Name: name}
	if err := resolver.roles.Create(context, role); err != nil {
		if !errors.Is(err, dberr.ErrConflict) {
			return nil, fmt.Errorf("auth_role_create_failed: %w", err)
		}

		role, err = resolver.roles.FindByName(context, name)
		if err != nil {
			return nil, fmt.Errorf("auth_role_refind_failed: %w", err)
		}
	}

	return role, nil
}
