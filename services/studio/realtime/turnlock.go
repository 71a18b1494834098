// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package realtime

import "sync"

// =============================================================================
// TurnLock
// =============================================================================

// TurnLock enforces a single editing-turn holder per app.
//
// # Description
//
// Whichever user holds the turn for an app is the one whose in-progress
// AI generation is broadcast as the authoritative live stream. Acquire
// and release are compare-and-set operations on a sync.Map, so unrelated
// apps never serialize on a shared lock.
//
// Invariant: at most one holder per app at any time.
//
// # Thread Safety
//
// Safe for concurrent use.
type TurnLock struct {
	holders sync.Map // app ID -> holder user ID
}

// NewTurnLock returns a TurnLock with no holders.
func NewTurnLock() *TurnLock {
	return &TurnLock{}
}

// TryAcquire makes userID the holder for appID iff no holder exists.
// Returns false with no state change otherwise; a losing requester is
// silently ignored, never an error and never a takeover.
func (t *TurnLock) TryAcquire(appID, userID string) bool {
	_, loaded := t.holders.LoadOrStore(appID, userID)
	return !loaded
}

// Release clears the holder for appID only if it is currently userID.
// A stale or duplicate release from a previous holder is a no-op and
// cannot clobber a later holder.
func (t *TurnLock) Release(appID, userID string) bool {
	return t.holders.CompareAndDelete(appID, userID)
}

// Holder returns the current holder for appID, if any.
func (t *TurnLock) Holder(appID string) (string, bool) {
	v, ok := t.holders.Load(appID)
	if !ok {
		return "", false
	}
	return v.(string), true
}
