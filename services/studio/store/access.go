// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/AleutianAI/AleutianStudio/pkg/extensions"
)

// AccessChecker authorizes app access against the membership records in
// a Store. It is the store-backed extensions.AuthzProvider: the websocket
// gateway consults it before upgrading a connection.
//
// Admins bypass membership; everyone else must be a recorded member of
// an existing app.
type AccessChecker struct {
	store *Store
}

// NewAccessChecker wraps a store as an authorization provider.
func NewAccessChecker(s *Store) *AccessChecker {
	return &AccessChecker{store: s}
}

// Authorize allows the action when the app exists and the user is a
// member (or carries the admin role). Denials wrap
// extensions.ErrUnauthorized; a missing app surfaces ErrAppNotFound so
// callers can answer 404 instead of 403.
func (c *AccessChecker) Authorize(ctx context.Context, req extensions.AuthzRequest) error {
	if req.User == nil || req.User.UserID == "" {
		return fmt.Errorf("missing identity: %w", extensions.ErrUnauthorized)
	}
	if _, err := c.store.GetApp(ctx, req.AppID); err != nil {
		if errors.Is(err, ErrAppNotFound) {
			return err
		}
		return fmt.Errorf("look up app %s: %w", req.AppID, err)
	}
	if req.User.HasRole("admin") {
		return nil
	}
	ok, err := c.store.IsMember(ctx, req.AppID, req.User.UserID)
	if err != nil {
		return fmt.Errorf("check membership: %w", err)
	}
	if !ok {
		return fmt.Errorf("user %s has no access to app %s: %w",
			req.User.UserID, req.AppID, extensions.ErrUnauthorized)
	}
	return nil
}

// Compile-time interface check.
var _ extensions.AuthzProvider = (*AccessChecker)(nil)
