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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianStudio/pkg/extensions"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_CreateAndGetApp(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.CreateApp(ctx, App{Name: "landing page", OwnerID: "u1"})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID, "blank ID gets a generated UUID")
	assert.False(t, created.CreatedAt.IsZero())

	got, err := s.GetApp(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "landing page", got.Name)
	assert.Equal(t, "u1", got.OwnerID)

	// The owner is automatically a member.
	ok, err := s.IsMember(ctx, created.ID, "u1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStore_CreateAppRejectsDuplicates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.CreateApp(ctx, App{ID: "app-1", Name: "one", OwnerID: "u1"})
	require.NoError(t, err)
	_, err = s.CreateApp(ctx, App{ID: "app-1", Name: "two", OwnerID: "u2"})
	assert.ErrorIs(t, err, ErrAppExists)
}

func TestStore_CreateAppValidation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.CreateApp(ctx, App{OwnerID: "u1"})
	assert.Error(t, err, "name is required")
	_, err = s.CreateApp(ctx, App{Name: "x"})
	assert.Error(t, err, "owner is required")
	_, err = s.CreateApp(ctx, App{ID: "a:b", Name: "x", OwnerID: "u1"})
	assert.Error(t, err, "colons would corrupt key construction")
}

func TestStore_GetAppNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetApp(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrAppNotFound)
}

func TestStore_SaveCodeContent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.CreateApp(ctx, App{Name: "app", OwnerID: "u1"})
	require.NoError(t, err)

	require.NoError(t, s.SaveCodeContent(ctx, created.ID, "<div>done</div>"))
	got, err := s.GetApp(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "<div>done</div>", got.CodeContent)
	assert.True(t, got.UpdatedAt.After(created.UpdatedAt) || got.UpdatedAt.Equal(created.UpdatedAt))

	assert.ErrorIs(t, s.SaveCodeContent(ctx, "missing", "x"), ErrAppNotFound)
}

func TestStore_ListApps(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	apps, err := s.ListApps(ctx)
	require.NoError(t, err)
	assert.Empty(t, apps)

	_, err = s.CreateApp(ctx, App{ID: "a", Name: "one", OwnerID: "u1"})
	require.NoError(t, err)
	_, err = s.CreateApp(ctx, App{ID: "b", Name: "two", OwnerID: "u1"})
	require.NoError(t, err)

	apps, err = s.ListApps(ctx)
	require.NoError(t, err)
	require.Len(t, apps, 2)
	assert.Equal(t, "a", apps[0].ID)
	assert.Equal(t, "b", apps[1].ID)
}

func TestStore_Membership(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.CreateApp(ctx, App{Name: "app", OwnerID: "u1"})
	require.NoError(t, err)

	require.NoError(t, s.AddMember(ctx, created.ID, "u2", "editor"))
	ok, err := s.IsMember(ctx, created.ID, "u2")
	require.NoError(t, err)
	assert.True(t, ok)

	members, err := s.ListMembers(ctx, created.ID)
	require.NoError(t, err)
	assert.Len(t, members, 2)

	require.NoError(t, s.RemoveMember(ctx, created.ID, "u2"))
	ok, err = s.IsMember(ctx, created.ID, "u2")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.ErrorIs(t, s.AddMember(ctx, "missing", "u2", "editor"), ErrAppNotFound)
}

func TestStore_DeleteAppRemovesMembership(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.CreateApp(ctx, App{Name: "app", OwnerID: "u1"})
	require.NoError(t, err)
	require.NoError(t, s.AddMember(ctx, created.ID, "u2", "editor"))

	require.NoError(t, s.DeleteApp(ctx, created.ID))
	_, err = s.GetApp(ctx, created.ID)
	assert.ErrorIs(t, err, ErrAppNotFound)
	ok, err := s.IsMember(ctx, created.ID, "u2")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.ErrorIs(t, s.DeleteApp(ctx, created.ID), ErrAppNotFound)
}

func TestStore_CancelledContext(t *testing.T) {
	s := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.GetApp(ctx, "any")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAccessChecker_Authorize(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	checker := NewAccessChecker(s)

	created, err := s.CreateApp(ctx, App{Name: "app", OwnerID: "owner"})
	require.NoError(t, err)

	// Owner is a member via CreateApp.
	err = checker.Authorize(ctx, extensions.AuthzRequest{
		User:  &extensions.AuthInfo{UserID: "owner"},
		AppID: created.ID,
	})
	assert.NoError(t, err)

	// Non-members are denied.
	err = checker.Authorize(ctx, extensions.AuthzRequest{
		User:  &extensions.AuthInfo{UserID: "stranger"},
		AppID: created.ID,
	})
	assert.ErrorIs(t, err, extensions.ErrUnauthorized)

	// Admin role bypasses membership.
	err = checker.Authorize(ctx, extensions.AuthzRequest{
		User:  &extensions.AuthInfo{UserID: "root", Roles: []string{"admin"}},
		AppID: created.ID,
	})
	assert.NoError(t, err)

	// Missing app is a distinct failure from denial.
	err = checker.Authorize(ctx, extensions.AuthzRequest{
		User:  &extensions.AuthInfo{UserID: "owner"},
		AppID: "missing",
	})
	assert.ErrorIs(t, err, ErrAppNotFound)

	// Missing identity is denied outright.
	err = checker.Authorize(ctx, extensions.AuthzRequest{AppID: created.ID})
	assert.ErrorIs(t, err, extensions.ErrUnauthorized)
}
