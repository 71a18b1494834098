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
// Registry
// =============================================================================

// Registry tracks live sessions grouped by app ID.
//
// # Description
//
// Connect and disconnect mutate the registry concurrently from many
// connection goroutines while workers snapshot membership for broadcast.
// Apps are kept in a sync.Map so unrelated apps never contend; each app's
// member set has its own small lock, held only for map operations, never
// while writing to a transport.
//
// # Thread Safety
//
// Safe for concurrent use.
type Registry struct {
	apps sync.Map // app ID -> *sessionSet
}

// sessionSet is one app's membership. The zero set is never stored;
// empty sets are removed so the apps map does not grow unboundedly.
type sessionSet struct {
	mu      sync.RWMutex
	members map[*Session]struct{}
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Add registers the session under its app.
func (r *Registry) Add(s *Session) {
	for {
		set, _ := r.apps.LoadOrStore(s.AppID, &sessionSet{members: make(map[*Session]struct{})})
		ss := set.(*sessionSet)
		ss.mu.Lock()
		ss.members[s] = struct{}{}
		ss.mu.Unlock()

		// A concurrent Remove of the app's last session can drop the set
		// between LoadOrStore and the insert above, orphaning this
		// session. Verify the set is still mapped and retry if not.
		if cur, ok := r.apps.Load(s.AppID); ok && cur == set {
			return
		}
		ss.mu.Lock()
		delete(ss.members, s)
		ss.mu.Unlock()
	}
}

// Remove deregisters the session and reports whether it was present, so
// concurrent disconnect paths observe exactly one successful removal.
// The app entry is dropped once its last session leaves.
func (r *Registry) Remove(s *Session) bool {
	set, ok := r.apps.Load(s.AppID)
	if !ok {
		return false
	}
	ss := set.(*sessionSet)

	ss.mu.Lock()
	_, present := ss.members[s]
	delete(ss.members, s)
	empty := len(ss.members) == 0
	ss.mu.Unlock()

	if empty {
		// Another connect may have re-added between the unlock and this
		// delete; re-check under the set lock before dropping the entry.
		ss.mu.Lock()
		if len(ss.members) == 0 {
			r.apps.CompareAndDelete(s.AppID, set)
		}
		ss.mu.Unlock()
	}
	return present
}

// Snapshot returns a copied slice of the app's sessions, safe to iterate
// while other goroutines mutate the registry.
func (r *Registry) Snapshot(appID string) []*Session {
	set, ok := r.apps.Load(appID)
	if !ok {
		return nil
	}
	ss := set.(*sessionSet)

	ss.mu.RLock()
	out := make([]*Session, 0, len(ss.members))
	for s := range ss.members {
		out = append(out, s)
	}
	ss.mu.RUnlock()
	return out
}

// Count returns the number of sessions currently attached to the app.
func (r *Registry) Count(appID string) int {
	set, ok := r.apps.Load(appID)
	if !ok {
		return 0
	}
	ss := set.(*sessionSet)
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	return len(ss.members)
}
