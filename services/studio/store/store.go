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
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrAppNotFound is returned when the requested app does not exist.
	ErrAppNotFound = errors.New("app not found")

	// ErrAppExists is returned when creating an app whose ID is taken.
	ErrAppExists = errors.New("app already exists")
)

// =============================================================================
// Records
// =============================================================================

// App is a single collaboratively edited document with its generated code.
type App struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	OwnerID     string    `json:"ownerId"`
	CodeContent string    `json:"codeContent,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Member records one user's access to an app.
type Member struct {
	AppID   string    `json:"appId"`
	UserID  string    `json:"userId"`
	Role    string    `json:"role"`
	AddedAt time.Time `json:"addedAt"`
}

const (
	appKeyPrefix    = "app:"
	memberKeyPrefix = "member:"
)

func appKey(appID string) []byte {
	return []byte(appKeyPrefix + appID)
}

func memberKey(appID, userID string) []byte {
	return []byte(memberKeyPrefix + appID + ":" + userID)
}

// =============================================================================
// Struct Definition
// =============================================================================

// Store persists apps and membership over an embedded BadgerDB.
//
// # Thread Safety
//
// Safe for concurrent use. Badger transactions give each operation a
// consistent snapshot; conflicting writes retry at the caller's level
// (the returned error from Commit surfaces as a wrapped error).
type Store struct {
	db *badger.DB
}

// =============================================================================
// Constructor
// =============================================================================

// Open opens a store with the given configuration.
// Caller must call Close when done.
func Open(cfg Config) (*Store, error) {
	db, err := openBadger(cfg)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// OpenInMemory opens a throwaway in-memory store for testing.
func OpenInMemory() (*Store, error) {
	return Open(InMemoryConfig())
}

// Close releases the underlying database. Safe to call once.
func (s *Store) Close() error {
	return s.db.Close()
}

// =============================================================================
// App Operations
// =============================================================================

// CreateApp persists a new app. A blank ID gets a generated UUID; the
// owner is always recorded as a member with role "owner".
//
// Returns ErrAppExists if the ID is already taken.
func (s *Store) CreateApp(ctx context.Context, app App) (*App, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled: %w", err)
	}
	if app.Name == "" {
		return nil, errors.New("app name is required")
	}
	if app.OwnerID == "" {
		return nil, errors.New("app owner is required")
	}
	if app.ID == "" {
		app.ID = uuid.New().String()
	}
	if !validID(app.ID) || !validID(app.OwnerID) {
		return nil, errors.New("ids must be non-empty and must not contain ':'")
	}
	now := time.Now().UTC()
	app.CreatedAt = now
	app.UpdatedAt = now

	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(appKey(app.ID)); err == nil {
			return fmt.Errorf("app %s: %w", app.ID, ErrAppExists)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("check existing app: %w", err)
		}
		if err := putJSON(txn, appKey(app.ID), app); err != nil {
			return err
		}
		owner := Member{AppID: app.ID, UserID: app.OwnerID, Role: "owner", AddedAt: now}
		return putJSON(txn, memberKey(app.ID, app.OwnerID), owner)
	})
	if err != nil {
		return nil, err
	}
	return &app, nil
}

// GetApp loads an app by ID. Returns ErrAppNotFound if absent.
func (s *Store) GetApp(ctx context.Context, appID string) (*App, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled: %w", err)
	}
	var app App
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, appKey(appID), &app)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("app %s: %w", appID, ErrAppNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &app, nil
}

// ListApps returns every stored app, ordered by key (app ID).
func (s *Store) ListApps(ctx context.Context) ([]App, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled: %w", err)
	}
	var apps []App
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(appKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			var app App
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &app)
			}); err != nil {
				return fmt.Errorf("decode app record: %w", err)
			}
			apps = append(apps, app)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return apps, nil
}

// SaveCodeContent replaces the app's generated code and bumps UpdatedAt.
// Returns ErrAppNotFound if the app does not exist.
func (s *Store) SaveCodeContent(ctx context.Context, appID, code string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		var app App
		if err := getJSON(txn, appKey(appID), &app); err != nil {
			return err
		}
		app.CodeContent = code
		app.UpdatedAt = time.Now().UTC()
		return putJSON(txn, appKey(appID), app)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("app %s: %w", appID, ErrAppNotFound)
	}
	return err
}

// DeleteApp removes an app and all of its membership records.
// Deleting a missing app returns ErrAppNotFound.
func (s *Store) DeleteApp(ctx context.Context, appID string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(appKey(appID)); err != nil {
			return err
		}
		if err := txn.Delete(appKey(appID)); err != nil {
			return err
		}
		// Collect member keys first; deleting under an open iterator is
		// not allowed.
		prefix := []byte(memberKeyPrefix + appID + ":")
		var keys [][]byte
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		it.Close()
		for _, k := range keys {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("app %s: %w", appID, ErrAppNotFound)
	}
	return err
}

// =============================================================================
// Membership Operations
// =============================================================================

// AddMember grants a user access to an app.
// Returns ErrAppNotFound if the app does not exist.
func (s *Store) AddMember(ctx context.Context, appID, userID, role string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}
	if !validID(userID) {
		return errors.New("ids must be non-empty and must not contain ':'")
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(appKey(appID)); err != nil {
			return err
		}
		m := Member{AppID: appID, UserID: userID, Role: role, AddedAt: time.Now().UTC()}
		return putJSON(txn, memberKey(appID, userID), m)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("app %s: %w", appID, ErrAppNotFound)
	}
	return err
}

// RemoveMember revokes a user's access. Removing an absent member is a
// no-op.
func (s *Store) RemoveMember(ctx context.Context, appID, userID string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(memberKey(appID, userID))
	})
}

// IsMember reports whether the user has access to the app.
func (s *Store) IsMember(ctx context.Context, appID, userID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("context cancelled: %w", err)
	}
	var found bool
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(memberKey(appID, userID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	return found, err
}

// ListMembers returns every member of the app.
func (s *Store) ListMembers(ctx context.Context, appID string) ([]Member, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled: %w", err)
	}
	var members []Member
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(memberKeyPrefix + appID + ":")
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			var m Member
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &m)
			}); err != nil {
				return fmt.Errorf("decode member record: %w", err)
			}
			members = append(members, m)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return members, nil
}

// =============================================================================
// Helpers
// =============================================================================

func putJSON(txn *badger.Txn, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode record %s: %w", key, err)
	}
	return txn.Set(key, data)
}

func getJSON(txn *badger.Txn, key []byte, v any) error {
	item, err := txn.Get(key)
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		if err := json.Unmarshal(val, v); err != nil {
			return fmt.Errorf("decode record %s: %w", key, err)
		}
		return nil
	})
}

// sanity guard for key construction; IDs come from uuid or config
func validID(id string) bool {
	return id != "" && !strings.ContainsRune(id, ':')
}
