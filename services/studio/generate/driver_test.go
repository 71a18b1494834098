// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package generate

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianStudio/services/llm"
	"github.com/AleutianAI/AleutianStudio/services/studio/datatypes"
	"github.com/AleutianAI/AleutianStudio/services/studio/realtime"
)

// recordingTransport collects frames written to one fake peer.
type recordingTransport struct {
	mu     sync.Mutex
	writes []any
}

func (r *recordingTransport) WriteJSON(v any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes = append(r.writes, v)
	return nil
}

func (r *recordingTransport) Close() error { return nil }

func (r *recordingTransport) Writes() []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]any, len(r.writes))
	copy(out, r.writes)
	return out
}

// memorySaver records SaveCodeContent calls.
type memorySaver struct {
	mu    sync.Mutex
	saved map[string]string
	err   error
}

func (m *memorySaver) SaveCodeContent(_ context.Context, appID, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.saved == nil {
		m.saved = map[string]string{}
	}
	m.saved[appID] = code
	return nil
}

func (m *memorySaver) Saved(appID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saved[appID]
}

// failingClient errors mid-stream after one chunk.
type failingClient struct{}

func (f *failingClient) Generate(context.Context, string, llm.GenerationParams) (string, error) {
	return "", errors.New("backend down")
}

func (f *failingClient) GenerateStream(_ context.Context, _ string, _ llm.GenerationParams, onChunk func(string) error) error {
	if err := onChunk("partial "); err != nil {
		return err
	}
	return errors.New("backend down")
}

func setup(t *testing.T, client llm.StreamingClient, saver CodeSaver) (*Driver, *realtime.Session, *recordingTransport, *recordingTransport) {
	t.Helper()
	// One worker keeps dispatch order deterministic for assertions.
	p, err := realtime.NewPipeline(realtime.NewRegistry(), realtime.NewTurnLock(), realtime.PipelineConfig{
		QueueSize: 64,
		Workers:   1,
	})
	require.NoError(t, err)
	p.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = p.Shutdown(ctx)
	})

	d := NewDriver(p, client, saver, time.Second)

	holderT := &recordingTransport{}
	peerT := &recordingTransport{}
	holder := realtime.NewSession("app-1", datatypes.User{ID: "u1", Name: "alice"}, holderT)
	peer := realtime.NewSession("app-1", datatypes.User{ID: "u2", Name: "bob"}, peerT)
	p.Registry().Add(holder)
	p.Registry().Add(peer)
	require.True(t, p.TurnLock().TryAcquire("app-1", "u1"))

	return d, holder, holderT, peerT
}

func turnEvent(holder *realtime.Session, prompt string) realtime.Event {
	return realtime.Event{
		Msg:     datatypes.InboundMessage{Type: datatypes.EventEnterTurn, EditAction: prompt},
		Session: holder,
		User:    holder.User,
		AppID:   holder.AppID,
	}
}

func TestDriver_StreamsSegmentsAndReleasesTurn(t *testing.T) {
	client := &llm.ScriptedClient{
		Response:  "Making a page.\n```html\n<h1>Hi</h1>\n```\nAll done.",
		ChunkSize: 7,
	}
	saver := &memorySaver{}
	d, holder, holderT, peerT := setup(t, client, saver)

	d.TurnEntered(turnEvent(holder, "build me a page"))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, d.Wait(ctx))

	// The exited broadcast arrives after the stream; wait for it.
	require.Eventually(t, func() bool {
		for _, w := range peerT.Writes() {
			if out, ok := w.(datatypes.OutboundMessage); ok && out.Type == datatypes.MessageTypeExited {
				return true
			}
		}
		return false
	}, 2*time.Second, 5*time.Millisecond)

	var explanation, code strings.Builder
	var doneSeen bool
	for _, w := range peerT.Writes() {
		switch f := w.(type) {
		case datatypes.StreamFrame:
			if f.Type == datatypes.StreamTypeCode {
				code.WriteString(f.D)
			} else {
				explanation.WriteString(f.D)
			}
		case datatypes.StreamDoneFrame:
			doneSeen = true
		}
	}
	assert.Contains(t, explanation.String(), "Making a page.")
	assert.Contains(t, explanation.String(), "All done.")
	assert.Contains(t, code.String(), "<h1>Hi</h1>")
	assert.NotContains(t, code.String(), "```")
	assert.True(t, doneSeen, "peers get the stream-done frame")

	// The holder's own transport got no stream frames, but did get the
	// exited broadcast and the stream-done frame.
	for _, w := range holderT.Writes() {
		_, isStream := w.(datatypes.StreamFrame)
		assert.False(t, isStream, "originator must not echo its own stream")
	}

	// Turn released, code persisted.
	_, held := d.pipeline.TurnLock().Holder("app-1")
	assert.False(t, held)
	assert.Equal(t, "<h1>Hi</h1>", saver.Saved("app-1"))
}

func TestDriver_EmptyPromptIsInteractiveTurn(t *testing.T) {
	client := &llm.ScriptedClient{}
	d, holder, _, peerT := setup(t, client, nil)

	d.TurnEntered(turnEvent(holder, "   "))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, d.Wait(ctx))

	// No generation ran: the turn stays held for manual editing.
	holderID, held := d.pipeline.TurnLock().Holder("app-1")
	assert.True(t, held)
	assert.Equal(t, "u1", holderID)
	assert.Empty(t, peerT.Writes())
}

func TestDriver_StreamErrorReleasesTurnAndNotifies(t *testing.T) {
	d, holder, _, peerT := setup(t, &failingClient{}, nil)

	d.TurnEntered(turnEvent(holder, "build me a page"))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, d.Wait(ctx))

	require.Eventually(t, func() bool {
		_, held := d.pipeline.TurnLock().Holder("app-1")
		return !held
	}, 2*time.Second, 5*time.Millisecond, "failed generation must release the turn")

	require.Eventually(t, func() bool {
		var errSeen bool
		for _, w := range peerT.Writes() {
			if out, ok := w.(datatypes.OutboundMessage); ok && out.Type == datatypes.MessageTypeError {
				errSeen = true
			}
			if _, ok := w.(datatypes.StreamDoneFrame); ok {
				t.Error("failed generation must not signal stream-done")
			}
		}
		return errSeen
	}, 2*time.Second, 5*time.Millisecond)
}

func TestDriver_NoCodeMeansNothingPersisted(t *testing.T) {
	client := &llm.ScriptedClient{Response: "Just prose, no code today.", ChunkSize: 5}
	saver := &memorySaver{}
	d, holder, _, _ := setup(t, client, saver)

	d.TurnEntered(turnEvent(holder, "tell me something"))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, d.Wait(ctx))

	assert.Empty(t, saver.Saved("app-1"))
}
