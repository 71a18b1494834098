// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package realtime implements the concurrency core of the studio service:
// live sessions grouped by app, the per-app editing turn lock, and the
// bounded event pipeline that decouples connection I/O from broadcast
// fan-out.
package realtime

import (
	"sync"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/AleutianStudio/services/studio/datatypes"
)

// =============================================================================
// Transport
// =============================================================================

// Transport is the subset of *websocket.Conn a session writes to.
// Narrowed to an interface so pipeline tests can observe sends without a
// network connection.
type Transport interface {
	WriteJSON(v any) error
	Close() error
}

// =============================================================================
// Session
// =============================================================================

// Default per-session inbound rate: sustained and burst frames. Segments
// relayed between clients arrive fast, so the limit is generous; it only
// exists to stop one hot client from monopolizing the shared queue.
const (
	inboundRatePerSecond = 200
	inboundRateBurst     = 400
)

// Session is a single live client connection bound to one app and one
// user identity.
//
// # Description
//
// The session owns the only write path to its transport. Two workers may
// target the same session during concurrent broadcasts, so every write
// goes through a mutex; the peer never sees interleaved frames.
//
// # Thread Safety
//
// Safe for concurrent use. Send serializes writes; Close is idempotent
// via sync.Once.
type Session struct {
	ID    string
	AppID string
	User  datatypes.User

	conn      Transport
	writeMu   sync.Mutex
	closeOnce sync.Once
	limiter   *rate.Limiter
}

// NewSession binds a transport to an app and identity. A fresh UUID names
// the session for logging and metrics.
func NewSession(appID string, user datatypes.User, conn Transport) *Session {
	return &Session{
		ID:      uuid.New().String(),
		AppID:   appID,
		User:    user,
		conn:    conn,
		limiter: rate.NewLimiter(rate.Limit(inboundRatePerSecond), inboundRateBurst),
	}
}

// Send marshals v and writes it to the transport. Writes are serialized;
// a failed write leaves the session to be torn down by its read loop.
func (s *Session) Send(v any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(v)
}

// Close shuts the transport down exactly once. Safe to call from any
// goroutine, including concurrently with Send.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		_ = s.conn.Close()
	})
}

// AllowInbound reports whether the session is within its inbound rate
// budget for one more frame.
func (s *Session) AllowInbound() bool {
	return s.limiter.Allow()
}
