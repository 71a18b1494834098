// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes provides wire-level data structures for the studio
// service.
//
// This file contains the websocket message schemas exchanged with
// collaborative editing clients. Inbound messages are validated with
// go-playground/validator before they enter the event pipeline.
package datatypes

import (
	"github.com/go-playground/validator/v10"
)

// =============================================================================
// Constants
// =============================================================================

// Inbound event kinds sent by clients.
const (
	// EventEnterTurn requests the editing turn for the app. Carries the
	// editAction prompt that drives the AI generation once acquired.
	EventEnterTurn = "enter-turn"

	// EventExitTurn releases the editing turn if the sender holds it.
	EventExitTurn = "exit-turn"

	// EventStreamSegment relays a classified segment of in-progress
	// content. Also produced internally by the generation driver.
	EventStreamSegment = "stream-segment"

	// EventStreamDone terminates a generation stream. Internal only;
	// clients receive it but never send it.
	EventStreamDone = "stream-done"
)

// Outbound control message types.
const (
	MessageTypeInfo    = "info"
	MessageTypeError   = "error"
	MessageTypeEntered = "entered"
	MessageTypeExited  = "exited"
)

// Stream content types, matching segment kinds.
const (
	StreamTypeExplanation = "explanation"
	StreamTypeCode        = "code"
)

const (
	// MaxEditActionBytes bounds the editAction payload. Checked by byte
	// length to keep a single inbound frame from exhausting memory.
	MaxEditActionBytes = 32 * 1024 // 32KB
)

// =============================================================================
// Shared Validator Instance
// =============================================================================

// messageValidate is the validator instance for websocket datatypes.
var messageValidate *validator.Validate

func init() {
	messageValidate = validator.New()

	_ = messageValidate.RegisterValidation("maxbytes", validateMaxBytes)
}

// validateMaxBytes checks byte length (not rune count) against
// MaxEditActionBytes.
func validateMaxBytes(fl validator.FieldLevel) bool {
	return len(fl.Field().String()) <= MaxEditActionBytes
}

// =============================================================================
// Inbound Schema
// =============================================================================

// InboundMessage is the envelope every client frame must match.
//
// # Description
//
// Clients send control frames to take or release the editing turn and to
// relay in-progress edit content. The Type field selects the handler in
// the event pipeline; unrecognized types produce an error notification
// sent only to the originating session.
//
// # Fields
//
//   - Type: Event kind. Required.
//   - EditAction: Prompt or relayed content. Size-bounded.
//   - StreamType: Segment classification for stream-segment frames.
type InboundMessage struct {
	Type       string `json:"type" validate:"required"`
	EditAction string `json:"editAction,omitempty" validate:"maxbytes"`
	StreamType string `json:"streamType,omitempty" validate:"omitempty,oneof=explanation code"`
}

// Validate validates the InboundMessage fields.
//
// Note that an unknown Type passes validation on purpose: the pipeline
// answers unknown kinds with an error notification to the sender, which
// is a different failure mode than a malformed frame.
func (m *InboundMessage) Validate() error {
	return messageValidate.Struct(m)
}

// =============================================================================
// Outbound Schemas
// =============================================================================

// OutboundMessage is a control notification broadcast to an app's
// sessions.
type OutboundMessage struct {
	Type       string    `json:"type"`
	Message    string    `json:"message,omitempty"`
	EditAction string    `json:"editAction,omitempty"`
	User       *UserView `json:"user,omitempty"`
}

// StreamFrame carries one classified segment of streamed content. The
// Type field is the segment kind ("explanation" or "code") and D is the
// raw text, forwarded verbatim.
type StreamFrame struct {
	Type string `json:"type"`
	D    string `json:"d"`
}

// StreamDoneFrame is the terminal event of a generation stream. No
// payload beyond the type tag.
type StreamDoneFrame struct {
	Type string `json:"type"`
}
