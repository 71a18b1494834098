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
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianStudio/pkg/extensions"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrUserNotFound is returned when the requested user does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrUserExists is returned when creating a user whose ID is taken.
	ErrUserExists = errors.New("user already exists")
)

// =============================================================================
// Records
// =============================================================================

// User is a registered identity with an opaque bearer token.
//
// The token is generated at creation and never rotated here; revoking a
// user deletes both the record and the token index.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Token     string    `json:"token,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

const (
	userKeyPrefix  = "user:"
	tokenKeyPrefix = "token:"
)

func userKey(userID string) []byte {
	return []byte(userKeyPrefix + userID)
}

func tokenKey(token string) []byte {
	return []byte(tokenKeyPrefix + token)
}

// =============================================================================
// User Operations
// =============================================================================

// CreateUser registers a user. A blank ID or token gets a generated
// UUID. Returns ErrUserExists if the ID is already taken.
func (s *Store) CreateUser(ctx context.Context, user User) (*User, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled: %w", err)
	}
	if user.Name == "" {
		return nil, errors.New("user name is required")
	}
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if !validID(user.ID) {
		return nil, errors.New("ids must be non-empty and must not contain ':'")
	}
	if user.Token == "" {
		user.Token = uuid.New().String()
	}
	user.CreatedAt = time.Now().UTC()

	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(userKey(user.ID)); err == nil {
			return fmt.Errorf("user %s: %w", user.ID, ErrUserExists)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("check existing user: %w", err)
		}
		if err := putJSON(txn, userKey(user.ID), user); err != nil {
			return err
		}
		// Token index points back at the user ID.
		return txn.Set(tokenKey(user.Token), []byte(user.ID))
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUser loads a user by ID. Returns ErrUserNotFound if absent.
func (s *Store) GetUser(ctx context.Context, userID string) (*User, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled: %w", err)
	}
	var user User
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, userKey(userID), &user)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("user %s: %w", userID, ErrUserNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUserByToken resolves a bearer token to its user. An unknown token
// returns ErrUserNotFound.
func (s *Store) GetUserByToken(ctx context.Context, token string) (*User, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled: %w", err)
	}
	var user User
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(tokenKey(token))
		if err != nil {
			return err
		}
		var userID string
		if err := item.Value(func(val []byte) error {
			userID = string(val)
			return nil
		}); err != nil {
			return err
		}
		return getJSON(txn, userKey(userID), &user)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// DeleteUser removes a user and its token index. Deleting a missing user
// returns ErrUserNotFound.
func (s *Store) DeleteUser(ctx context.Context, userID string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		var user User
		if err := getJSON(txn, userKey(userID), &user); err != nil {
			return err
		}
		if err := txn.Delete(tokenKey(user.Token)); err != nil {
			return err
		}
		return txn.Delete(userKey(userID))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("user %s: %w", userID, ErrUserNotFound)
	}
	return err
}

// =============================================================================
// TokenAuthProvider
// =============================================================================

// TokenAuthProvider resolves bearer tokens against the user store. It is
// the persistent counterpart of extensions.NopAuthProvider, enabled with
// the requireAuth configuration flag.
type TokenAuthProvider struct {
	store *Store
}

// NewTokenAuthProvider wires token authentication over the store.
func NewTokenAuthProvider(s *Store) *TokenAuthProvider {
	return &TokenAuthProvider{store: s}
}

// Validate resolves the token to a registered user. Unknown or empty
// tokens fail with ErrUnauthorized.
func (p *TokenAuthProvider) Validate(ctx context.Context, token string) (*extensions.AuthInfo, error) {
	if token == "" {
		return nil, fmt.Errorf("missing token: %w", extensions.ErrUnauthorized)
	}
	user, err := p.store.GetUserByToken(ctx, token)
	if errors.Is(err, ErrUserNotFound) {
		return nil, fmt.Errorf("invalid token: %w", extensions.ErrUnauthorized)
	}
	if err != nil {
		return nil, fmt.Errorf("resolve token: %w", err)
	}
	return &extensions.AuthInfo{
		UserID: user.ID,
		Name:   user.Name,
		Email:  user.Email,
	}, nil
}

var _ extensions.AuthProvider = (*TokenAuthProvider)(nil)
