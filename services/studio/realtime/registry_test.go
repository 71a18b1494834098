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

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianStudio/services/studio/datatypes"
)

func TestRegistry_AddAndSnapshot(t *testing.T) {
	r := NewRegistry()
	s1, _ := newTestSession("app-1", datatypes.User{ID: "u1", Name: "alice"})
	s2, _ := newTestSession("app-1", datatypes.User{ID: "u2", Name: "bob"})
	s3, _ := newTestSession("app-2", datatypes.User{ID: "u3", Name: "carol"})

	r.Add(s1)
	r.Add(s2)
	r.Add(s3)

	assert.Equal(t, 2, r.Count("app-1"))
	assert.Equal(t, 1, r.Count("app-2"))
	assert.Equal(t, 0, r.Count("app-none"))

	snap := r.Snapshot("app-1")
	require.Len(t, snap, 2)
	assert.Contains(t, snap, s1)
	assert.Contains(t, snap, s2)
	assert.NotContains(t, snap, s3)
}

func TestRegistry_RemoveIsExactlyOnce(t *testing.T) {
	r := NewRegistry()
	s, _ := newTestSession("app-1", datatypes.User{ID: "u1"})
	r.Add(s)

	assert.True(t, r.Remove(s))
	assert.False(t, r.Remove(s), "second remove must report absence")
	assert.Equal(t, 0, r.Count("app-1"))
	assert.Empty(t, r.Snapshot("app-1"))
}

func TestRegistry_RemoveUnknownSession(t *testing.T) {
	r := NewRegistry()
	s, _ := newTestSession("app-1", datatypes.User{ID: "u1"})
	assert.False(t, r.Remove(s))
}

// Concurrent removers racing on the same session: exactly one wins.
func TestRegistry_ConcurrentRemoveSingleWinner(t *testing.T) {
	r := NewRegistry()
	s, _ := newTestSession("app-1", datatypes.User{ID: "u1"})
	r.Add(s)

	const removers = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < removers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if r.Remove(s) {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

// Churn across many goroutines must leave the registry empty and never
// lose a session mid-flight (the add/remove orphan race).
func TestRegistry_ConcurrentChurn(t *testing.T) {
	r := NewRegistry()
	const workers = 8
	const perWorker = 200

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				s, _ := newTestSession("app-1", datatypes.User{
					ID: fmt.Sprintf("u-%d-%d", w, i),
				})
				r.Add(s)
				require.True(t, r.Remove(s), "added session must be removable")
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, 0, r.Count("app-1"))
}

func TestRegistry_SnapshotIsACopy(t *testing.T) {
	r := NewRegistry()
	s1, _ := newTestSession("app-1", datatypes.User{ID: "u1"})
	s2, _ := newTestSession("app-1", datatypes.User{ID: "u2"})
	r.Add(s1)
	r.Add(s2)

	snap := r.Snapshot("app-1")
	r.Remove(s1)

	// The earlier snapshot is unaffected by later mutation.
	assert.Len(t, snap, 2)
	assert.Len(t, r.Snapshot("app-1"), 1)
}
