// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package segment classifies an incrementally-arriving model output stream
// into alternating explanation and code segments.
//
// The model is prompted to wrap generated code in a ```html fence. A
// Segmenter consumes raw text chunks as they arrive from the LLM and emits
// typed segments, discarding the fence markers themselves. Markers may be
// split across chunk boundaries, so the Segmenter keeps a short
// undelivered tail between calls.
package segment

import "strings"

// =============================================================================
// Types
// =============================================================================

// Kind identifies the classification of a segment.
type Kind string

const (
	// KindExplanation is prose surrounding the generated code.
	KindExplanation Kind = "explanation"

	// KindCode is content inside a ```html fence.
	KindCode Kind = "code"
)

// Segment is a classified, contiguous span of streamed text.
// Segments are immutable once emitted and never empty.
type Segment struct {
	Kind Kind
	Text string
}

// Fence markers. The open marker is matched case-insensitively; the close
// marker is the bare fence.
const (
	openFence    = "```html"
	openFenceTag = "html"
	closeFence   = "```"
)

// Tail lengths retained between Accept calls so a marker split across two
// chunks is still detected. A partial marker can be at most len(marker)-1
// characters.
const (
	keepExplanationTail = len(openFence) - 1
	keepCodeTail        = len(closeFence) - 1
)

// =============================================================================
// Segmenter
// =============================================================================

// Segmenter is a stateful fence classifier for one generation request.
//
// # Description
//
// A Segmenter converts a stream of arbitrary text chunks into an ordered
// sequence of Segments. An open fence switches the mode from explanation
// to code; a close fence switches back. The fence line itself (marker,
// trailing spaces and tabs after the open marker, and a single following
// newline) is discarded.
//
// # Thread Safety
//
// NOT safe for concurrent use. Construct one Segmenter per in-flight
// generation request and discard it after Finish.
//
// # Limitations
//
//   - Nested fences are not supported; a second open marker inside a code
//     region is treated as literal code text.
//
// # Assumptions
//
//   - Chunks arrive in stream order.
type Segmenter struct {
	buf    strings.Builder
	inCode bool
}

// New returns a Segmenter ready to accept the first chunk.
func New() *Segmenter {
	return &Segmenter{}
}

// Accept appends chunk to the internal buffer and returns every segment
// that can be emitted without risking an undelivered marker hiding in the
// unflushed tail. Empty chunks are ignored. A chunk containing several
// markers is fully drained in one call.
func (s *Segmenter) Accept(chunk string) []Segment {
	if chunk == "" {
		return nil
	}
	s.buf.WriteString(chunk)
	return s.drain(false)
}

// Finish flushes all remaining buffered text as a final segment of the
// current mode. An unterminated code fence is treated as still open: the
// tail is emitted as code. The Segmenter must not be reused afterwards.
func (s *Segmenter) Finish() []Segment {
	return s.drain(true)
}

// drain scans the buffer left to right, emitting segments and flipping
// mode at each marker, until no marker remains or a tail must be held
// back. flushAll disables the tail retention.
func (s *Segmenter) drain(flushAll bool) []Segment {
	var out []Segment
	buf := s.buf.String()

	for {
		if !s.inCode {
			idx := indexOpenFence(buf)
			if idx >= 0 {
				out = appendSegment(out, KindExplanation, buf[:idx])
				cut := idx + len(openFence)
				cut = skipSpaces(buf, cut)
				cut = skipSingleNewline(buf, cut)
				buf = buf[cut:]
				s.inCode = true
				continue
			}
			if flushAll {
				out = appendSegment(out, KindExplanation, buf)
				buf = ""
				break
			}
			// Hold back enough characters that a partial ```html
			// arriving in the next chunk is still recognized.
			safe := len(buf) - keepExplanationTail
			if safe > 0 {
				out = appendSegment(out, KindExplanation, buf[:safe])
				buf = buf[safe:]
			}
			break
		}

		idx := strings.Index(buf, closeFence)
		if idx >= 0 {
			out = appendSegment(out, KindCode, buf[:idx])
			cut := idx + len(closeFence)
			cut = skipSingleNewline(buf, cut)
			buf = buf[cut:]
			s.inCode = false
			continue
		}
		if flushAll {
			out = appendSegment(out, KindCode, buf)
			buf = ""
			break
		}
		safe := len(buf) - keepCodeTail
		if safe > 0 {
			out = appendSegment(out, KindCode, buf[:safe])
			buf = buf[safe:]
		}
		break
	}

	s.buf.Reset()
	s.buf.WriteString(buf)
	return out
}

// =============================================================================
// Helpers
// =============================================================================

func appendSegment(out []Segment, kind Kind, text string) []Segment {
	if text == "" {
		return out
	}
	return append(out, Segment{Kind: kind, Text: text})
}

// indexOpenFence reports the first open fence in s, or -1. The backticks
// match exactly; the language tag matches ASCII letters
// case-insensitively, since model output occasionally capitalizes it
// (```HTML). The scan never case-folds the buffer itself: Unicode
// folding can change byte length (U+212A shrinks, U+0130 grows), which
// would misalign the returned offset against s.
func indexOpenFence(s string) int {
	from := 0
	for {
		idx := strings.Index(s[from:], closeFence)
		if idx < 0 {
			return -1
		}
		start := from + idx
		tag := start + len(closeFence)
		if tag+len(openFenceTag) <= len(s) && asciiEqualFold(s[tag:tag+len(openFenceTag)], openFenceTag) {
			return start
		}
		from = start + 1
	}
}

// asciiEqualFold compares equal-length strings, folding A-Z only.
func asciiEqualFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

// skipSpaces advances past spaces and tabs trailing an open fence so that
// "```html   \n" is discarded as a unit.
func skipSpaces(s string, i int) int {
	for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
		i++
	}
	return i
}

// skipSingleNewline consumes at most one line terminator (LF, CR, or CRLF)
// immediately after a fence marker.
func skipSingleNewline(s string, i int) int {
	if i >= len(s) {
		return i
	}
	switch s[i] {
	case '\n':
		return i + 1
	case '\r':
		if i+1 < len(s) && s[i+1] == '\n' {
			return i + 2
		}
		return i + 1
	}
	return i
}
