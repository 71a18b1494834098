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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/AleutianAI/AleutianStudio/services/studio/datatypes"
	"github.com/AleutianAI/AleutianStudio/services/studio/observability"
)

// =============================================================================
// Event
// =============================================================================

// Event is the envelope handed from a connection's read loop (or the
// generation driver) to the worker pool. Consumed exactly once by exactly
// one worker; not retained afterward.
type Event struct {
	Msg     datatypes.InboundMessage
	Session *Session
	User    datatypes.User
	AppID   string
}

// =============================================================================
// Pipeline
// =============================================================================

// ErrPipelineClosed is returned by Publish after Shutdown has begun.
var ErrPipelineClosed = errors.New("event pipeline is closed")

const (
	// DefaultQueueSize is the bounded event queue capacity. Power of two,
	// sized so bursty inbound traffic is throttled rather than dropped.
	DefaultQueueSize = 1024

	// DefaultWorkers is the fixed worker pool size.
	DefaultWorkers = 4
)

// PipelineConfig configures queue capacity, worker count, and hooks.
type PipelineConfig struct {
	// QueueSize is the event queue capacity. Must be a power of two.
	// Zero selects DefaultQueueSize.
	QueueSize int

	// Workers is the worker pool size. Zero selects DefaultWorkers.
	Workers int

	// TurnEntered is invoked after a successful enter-turn has been
	// broadcast, with the event that won the turn. The generation driver
	// hooks in here. May be nil. Must not block: implementations spawn
	// their own goroutine.
	TurnEntered func(ev Event)
}

// Pipeline decouples connection I/O from event processing and broadcast
// fan-out.
//
// # Description
//
// Any number of producers (one per connection read loop, plus the
// generation driver) publish Events into a bounded queue; a fixed worker
// pool drains it. A full queue blocks the producer: backpressure, never
// loss. Broadcasting to N sessions happens on worker goroutines, so a
// slow peer never stalls another connection's read loop.
//
// Ordering: only the producer-to-queue hand-off preserves order. Two
// events enqueued back to back for the same app may be processed by two
// idle workers concurrently. Each control event is a no-op on failure,
// so the protocol tolerates this; see DESIGN.md for the trade-off record.
//
// # Thread Safety
//
// Safe for concurrent use after Start.
type Pipeline struct {
	registry *Registry
	lock     *TurnLock

	queue       chan Event
	done        chan struct{}
	workers     int
	turnEntered func(ev Event)
	wg          sync.WaitGroup
	startOnce   sync.Once
	stopOnce    sync.Once
}

// NewPipeline wires a pipeline over the shared registry and turn lock.
// Returns an error if the queue size is not a power of two.
func NewPipeline(registry *Registry, lock *TurnLock, cfg PipelineConfig) (*Pipeline, error) {
	if cfg.QueueSize == 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.QueueSize < 0 || cfg.QueueSize&(cfg.QueueSize-1) != 0 {
		return nil, fmt.Errorf("queue size must be a power of two, got %d", cfg.QueueSize)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	return &Pipeline{
		registry:    registry,
		lock:        lock,
		queue:       make(chan Event, cfg.QueueSize),
		done:        make(chan struct{}),
		workers:     cfg.Workers,
		turnEntered: cfg.TurnEntered,
	}, nil
}

// SetTurnEntered installs the turn-entered hook. The generation driver
// needs the pipeline to exist first, so the hook arrives after
// construction. Must be called before Start; not synchronized.
func (p *Pipeline) SetTurnEntered(fn func(ev Event)) {
	p.turnEntered = fn
}

// Start launches the worker pool. Idempotent.
func (p *Pipeline) Start() {
	p.startOnce.Do(func() {
		for i := 0; i < p.workers; i++ {
			p.wg.Add(1)
			go p.runWorker(i)
		}
		slog.Info("event pipeline started",
			"workers", p.workers,
			"queue_size", cap(p.queue),
		)
	})
}

// Publish hands an event to the worker pool, blocking while the queue is
// full. Returns ErrPipelineClosed once shutdown has begun.
func (p *Pipeline) Publish(ev Event) error {
	select {
	case <-p.done:
		return ErrPipelineClosed
	default:
	}
	select {
	case p.queue <- ev:
		if m := observability.DefaultMetrics; m != nil {
			m.SetQueueDepth(len(p.queue))
		}
		return nil
	case <-p.done:
		return ErrPipelineClosed
	}
}

// Shutdown stops accepting events and waits for the workers to finish
// their in-flight work, up to the context deadline. Events still queued
// at shutdown are discarded.
func (p *Pipeline) Shutdown(ctx context.Context) error {
	p.stopOnce.Do(func() {
		close(p.done)
	})

	finished := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// runWorker drains the queue until shutdown. Each event is handled by
// exactly one worker.
func (p *Pipeline) runWorker(id int) {
	defer p.wg.Done()
	for {
		select {
		case <-p.done:
			return
		case ev := <-p.queue:
			if m := observability.DefaultMetrics; m != nil {
				m.SetQueueDepth(len(p.queue))
			}
			p.dispatch(ev)
		}
	}
}

// =============================================================================
// Dispatch
// =============================================================================

// dispatch routes one event by kind. Turn-lock contention is a silent
// no-op, not an error; only unrecognized kinds answer the sender.
func (p *Pipeline) dispatch(ev Event) {
	switch ev.Msg.Type {
	case datatypes.EventEnterTurn:
		p.handleEnterTurn(ev)
	case datatypes.EventExitTurn:
		p.handleExitTurn(ev)
	case datatypes.EventStreamSegment:
		p.handleStreamSegment(ev)
	case datatypes.EventStreamDone:
		p.handleStreamDone(ev)
	default:
		p.recordEvent(ev.Msg.Type, observability.OutcomeRejected)
		p.notifySender(ev.Session, datatypes.OutboundMessage{
			Type:    datatypes.MessageTypeError,
			Message: "unknown message type",
			User:    ev.User.View(),
		})
	}
}

// handleEnterTurn acquires the editing turn. The loser of a race gets
// nothing: no notification, no state change.
func (p *Pipeline) handleEnterTurn(ev Event) {
	if !p.lock.TryAcquire(ev.AppID, ev.User.ID) {
		p.recordEvent(ev.Msg.Type, observability.OutcomeIgnored)
		return
	}
	p.recordEvent(ev.Msg.Type, observability.OutcomeHandled)
	p.Broadcast(ev.AppID, datatypes.OutboundMessage{
		Type:       datatypes.MessageTypeEntered,
		Message:    fmt.Sprintf("AI is answering %s", ev.User.Name),
		EditAction: ev.Msg.EditAction,
		User:       ev.User.View(),
	}, nil)

	if p.turnEntered != nil {
		p.turnEntered(ev)
	}
}

// handleExitTurn releases the turn only for the current holder; a stale
// release is ignored.
func (p *Pipeline) handleExitTurn(ev Event) {
	if !p.lock.Release(ev.AppID, ev.User.ID) {
		p.recordEvent(ev.Msg.Type, observability.OutcomeIgnored)
		return
	}
	p.recordEvent(ev.Msg.Type, observability.OutcomeHandled)
	p.Broadcast(ev.AppID, datatypes.OutboundMessage{
		Type:    datatypes.MessageTypeExited,
		Message: fmt.Sprintf("AI finished answering %s", ev.User.Name),
		User:    ev.User.View(),
	}, nil)
}

// handleStreamSegment forwards a classified segment verbatim to every
// session of the app except the originator, so a client never echoes its
// own stream back to itself.
func (p *Pipeline) handleStreamSegment(ev Event) {
	if ev.Msg.StreamType != datatypes.StreamTypeExplanation &&
		ev.Msg.StreamType != datatypes.StreamTypeCode {
		p.recordEvent(ev.Msg.Type, observability.OutcomeRejected)
		p.notifySender(ev.Session, datatypes.OutboundMessage{
			Type:    datatypes.MessageTypeError,
			Message: "invalid stream type",
			User:    ev.User.View(),
		})
		return
	}
	p.recordEvent(ev.Msg.Type, observability.OutcomeHandled)
	if m := observability.DefaultMetrics; m != nil {
		m.RecordSegment(ev.Msg.StreamType)
	}
	p.Broadcast(ev.AppID, datatypes.StreamFrame{
		Type: ev.Msg.StreamType,
		D:    ev.Msg.EditAction,
	}, ev.Session)
}

// handleStreamDone signals stream completion to every session of the app.
func (p *Pipeline) handleStreamDone(ev Event) {
	p.recordEvent(ev.Msg.Type, observability.OutcomeHandled)
	p.Broadcast(ev.AppID, datatypes.StreamDoneFrame{
		Type: datatypes.EventStreamDone,
	}, nil)
}

// =============================================================================
// Broadcast
// =============================================================================

// Broadcast sends v to every session of the app, skipping exclude if
// non-nil. A write failing for one recipient (peer already gone) is
// logged and skipped; the rest of the batch still gets the message.
func (p *Pipeline) Broadcast(appID string, v any, exclude *Session) {
	for _, s := range p.registry.Snapshot(appID) {
		if s == exclude {
			continue
		}
		if err := s.Send(v); err != nil {
			slog.Warn("broadcast write failed, skipping recipient",
				"app_id", appID,
				"session_id", s.ID,
				"error", err,
			)
			if m := observability.DefaultMetrics; m != nil {
				m.RecordBroadcastError()
			}
		}
	}
}

// notifySender answers only the originating session. In-flight events may
// reference a session that already closed; a failed send is not an error
// worth more than a debug line.
func (p *Pipeline) notifySender(s *Session, msg datatypes.OutboundMessage) {
	if s == nil {
		return
	}
	if err := s.Send(msg); err != nil {
		slog.Debug("failed to notify sender", "session_id", s.ID, "error", err)
	}
}

func (p *Pipeline) recordEvent(kind, outcome string) {
	if m := observability.DefaultMetrics; m != nil {
		m.RecordEvent(kind, outcome)
	}
}

// Registry exposes the session registry the pipeline broadcasts through.
func (p *Pipeline) Registry() *Registry { return p.registry }

// TurnLock exposes the shared editing-turn lock.
func (p *Pipeline) TurnLock() *TurnLock { return p.lock }
