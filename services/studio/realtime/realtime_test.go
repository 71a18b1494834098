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
	"errors"
	"sync"

	"github.com/AleutianAI/AleutianStudio/services/studio/datatypes"
)

// fakeTransport records everything written through it. Implements
// Transport for tests without a real websocket.
type fakeTransport struct {
	mu        sync.Mutex
	writes    []any
	failWrite bool
	closed    bool
}

func (f *fakeTransport) WriteJSON(v any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrite {
		return errors.New("write failed")
	}
	f.writes = append(f.writes, v)
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeTransport) Writes() []any {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]any, len(f.writes))
	copy(out, f.writes)
	return out
}

func newTestSession(appID string, user datatypes.User) (*Session, *fakeTransport) {
	ft := &fakeTransport{}
	return NewSession(appID, user, ft), ft
}
