// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package generate drives one AI answer per editing turn.
//
// When a user wins the editing turn with a prompt, the driver streams
// the model's raw chunks through the live segmenter, publishes each
// classified segment to the app's peers, persists the finished code,
// and releases the turn. The whole lifecycle of a turn after the
// enter-turn broadcast lives here.
package generate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/AleutianAI/AleutianStudio/services/llm"
	"github.com/AleutianAI/AleutianStudio/services/studio/codeparse"
	"github.com/AleutianAI/AleutianStudio/services/studio/datatypes"
	"github.com/AleutianAI/AleutianStudio/services/studio/observability"
	"github.com/AleutianAI/AleutianStudio/services/studio/realtime"
	"github.com/AleutianAI/AleutianStudio/services/studio/segment"
)

// DefaultGenerationTimeout bounds one model answer end to end.
const DefaultGenerationTimeout = 5 * time.Minute

// CodeSaver persists the finished code for an app. Satisfied by
// store.Store.
type CodeSaver interface {
	SaveCodeContent(ctx context.Context, appID, code string) error
}

// Driver runs generations on their own goroutines, one per granted turn.
//
// # Thread Safety
//
// Safe for concurrent use. Turns for different apps run concurrently;
// the turn lock guarantees at most one per app.
type Driver struct {
	pipeline *realtime.Pipeline
	client   llm.StreamingClient
	saver    CodeSaver
	timeout  time.Duration
	params   llm.GenerationParams
	wg       sync.WaitGroup
}

// NewDriver wires a driver over the pipeline and model client.
// saver may be nil when persistence is not configured.
func NewDriver(pipeline *realtime.Pipeline, client llm.StreamingClient, saver CodeSaver, timeout time.Duration) *Driver {
	if timeout <= 0 {
		timeout = DefaultGenerationTimeout
	}
	return &Driver{
		pipeline: pipeline,
		client:   client,
		saver:    saver,
		timeout:  timeout,
	}
}

// SetParams overrides the sampling parameters passed to the model.
// Call before the first turn is granted; not synchronized with running
// generations.
func (d *Driver) SetParams(p llm.GenerationParams) {
	d.params = p
}

// TurnEntered starts a generation for the turn that was just granted.
// Plug this into realtime.PipelineConfig.TurnEntered. A turn entered
// without a prompt is interactive editing; nothing is generated and the
// user releases the turn themselves.
func (d *Driver) TurnEntered(ev realtime.Event) {
	if strings.TrimSpace(ev.Msg.EditAction) == "" {
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.run(ev)
	}()
}

// Wait blocks until in-flight generations finish or the context expires.
func (d *Driver) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run streams one answer, publishes its segments, persists the result,
// and always releases the turn.
func (d *Driver) run(ev realtime.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	log := slog.With("app_id", ev.AppID, "user_id", ev.User.ID)
	log.Info("generation started")
	start := time.Now()

	seg := segment.New()
	var full strings.Builder

	err := d.client.GenerateStream(ctx, ev.Msg.EditAction, d.params, func(chunk string) error {
		full.WriteString(chunk)
		return d.publishSegments(ev, seg.Accept(chunk))
	})
	if err == nil {
		err = d.publishSegments(ev, seg.Finish())
	}

	if err != nil {
		log.Error("generation failed", "error", err, "duration", time.Since(start))
		if m := observability.DefaultMetrics; m != nil {
			m.RecordGeneration(observability.GenerationError)
		}
		d.pipeline.Broadcast(ev.AppID, datatypes.OutboundMessage{
			Type:    datatypes.MessageTypeError,
			Message: "generation failed",
			User:    ev.User.View(),
		}, nil)
		d.finishTurn(ev)
		return
	}

	d.persist(ctx, ev, full.String())

	if pubErr := d.pipeline.Publish(realtime.Event{
		Msg:     datatypes.InboundMessage{Type: datatypes.EventStreamDone},
		Session: ev.Session,
		User:    ev.User,
		AppID:   ev.AppID,
	}); pubErr != nil {
		log.Warn("could not publish stream completion", "error", pubErr)
	}

	if m := observability.DefaultMetrics; m != nil {
		m.RecordGeneration(observability.GenerationSuccess)
	}
	log.Info("generation finished", "duration", time.Since(start), "answer_bytes", full.Len())
	d.finishTurn(ev)
}

// publishSegments forwards classified segments into the pipeline as
// stream-segment events originating from the turn holder's session.
func (d *Driver) publishSegments(ev realtime.Event, segs []segment.Segment) error {
	for _, s := range segs {
		streamType := datatypes.StreamTypeExplanation
		if s.Kind == segment.KindCode {
			streamType = datatypes.StreamTypeCode
		}
		err := d.pipeline.Publish(realtime.Event{
			Msg: datatypes.InboundMessage{
				Type:       datatypes.EventStreamSegment,
				StreamType: streamType,
				EditAction: s.Text,
			},
			Session: ev.Session,
			User:    ev.User,
			AppID:   ev.AppID,
		})
		if err != nil {
			return fmt.Errorf("publish segment: %w", err)
		}
	}
	return nil
}

// persist saves the extracted code when the answer contained any.
func (d *Driver) persist(ctx context.Context, ev realtime.Event, answer string) {
	if d.saver == nil {
		return
	}
	parsed := codeparse.Parse(answer)
	if !parsed.HasCode() {
		return
	}
	if err := d.saver.SaveCodeContent(ctx, ev.AppID, parsed.HTML); err != nil {
		slog.Warn("could not persist generated code",
			"app_id", ev.AppID,
			"error", err,
		)
	}
}

// finishTurn releases the holder's turn through the normal exit-turn
// path, so peers get the same exited broadcast as a manual exit.
func (d *Driver) finishTurn(ev realtime.Event) {
	err := d.pipeline.Publish(realtime.Event{
		Msg:     datatypes.InboundMessage{Type: datatypes.EventExitTurn},
		Session: ev.Session,
		User:    ev.User,
		AppID:   ev.AppID,
	})
	if err != nil {
		// Shutdown race: release directly so the lock never leaks.
		d.pipeline.TurnLock().Release(ev.AppID, ev.User.ID)
	}
}
