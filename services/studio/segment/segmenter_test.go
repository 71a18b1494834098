// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package segment

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// feed runs a full accept/finish cycle over the given chunks and returns
// the emitted segments with adjacent same-kind segments merged, since
// chunking may split one logical segment into several emissions.
func feed(chunks ...string) []Segment {
	s := New()
	var raw []Segment
	for _, c := range chunks {
		raw = append(raw, s.Accept(c)...)
	}
	raw = append(raw, s.Finish()...)

	var merged []Segment
	for _, seg := range raw {
		if n := len(merged); n > 0 && merged[n-1].Kind == seg.Kind {
			merged[n-1].Text += seg.Text
			continue
		}
		merged = append(merged, seg)
	}
	return merged
}

func TestSegmenter_SingleChunk(t *testing.T) {
	got := feed("Hello ```html\n<div>x</div>\n``` bye")

	require.Len(t, got, 3)
	assert.Equal(t, Segment{KindExplanation, "Hello "}, got[0])
	assert.Equal(t, Segment{KindCode, "<div>x</div>\n"}, got[1])
	assert.Equal(t, Segment{KindExplanation, " bye"}, got[2])
}

func TestSegmenter_MarkerSplitAcrossChunks(t *testing.T) {
	// Same logical input as the single-chunk case, but with the open and
	// close fences straddling chunk boundaries.
	got := feed("Hel", "lo ```htm", "l\n<div>x</div>\n", "```", " bye")

	require.Len(t, got, 3)
	assert.Equal(t, Segment{KindExplanation, "Hello "}, got[0])
	assert.Equal(t, Segment{KindCode, "<div>x</div>\n"}, got[1])
	assert.Equal(t, Segment{KindExplanation, " bye"}, got[2])
}

func TestSegmenter_RoundTripAnyChunking(t *testing.T) {
	explain1 := "First the page structure is described here. "
	code1 := "<!DOCTYPE html>\n<html><body><h1>Hi</h1></body></html>\n"
	explain2 := "\nThat is the whole document."
	input := explain1 + "```html\n" + code1 + "```" + explain2
	want := explain1 + code1 + explain2

	// Every possible split into two pieces, plus byte-at-a-time.
	for cut := 0; cut <= len(input); cut++ {
		got := feed(input[:cut], input[cut:])
		var b strings.Builder
		for _, seg := range got {
			b.WriteString(seg.Text)
		}
		require.Equalf(t, want, b.String(), "round trip failed at cut %d", cut)
	}

	var bytes []string
	for i := 0; i < len(input); i++ {
		bytes = append(bytes, input[i:i+1])
	}
	got := feed(bytes...)
	var b strings.Builder
	for _, seg := range got {
		b.WriteString(seg.Text)
	}
	assert.Equal(t, want, b.String())
}

func TestSegmenter_OpenFenceCaseInsensitive(t *testing.T) {
	got := feed("see ```HTML\n<p>a</p>\n```")

	require.Len(t, got, 2)
	assert.Equal(t, KindExplanation, got[0].Kind)
	assert.Equal(t, Segment{KindCode, "<p>a</p>\n"}, got[1])
}

func TestSegmenter_FoldShrinkingRuneBeforeFence(t *testing.T) {
	// U+212A (Kelvin sign) lowercases to a 1-byte 'k', so any marker
	// search over a case-folded copy of the buffer would misalign its
	// offsets and split the rune.
	got := feed("temp in K ```html\n<div>x</div>\n``` done")

	require.Len(t, got, 3)
	assert.Equal(t, Segment{KindExplanation, "temp in K "}, got[0])
	assert.Equal(t, Segment{KindCode, "<div>x</div>\n"}, got[1])
	assert.Equal(t, Segment{KindExplanation, " done"}, got[2])
}

func TestSegmenter_FoldGrowingRuneRoundTrip(t *testing.T) {
	// U+0130 grows under lowercasing; the reassembled stream must equal
	// the input with only the fence lines removed, at every split point.
	explain1 := "İstanbul ſlow "
	code1 := "<p>a</p>\n"
	input := explain1 + "```HTML\n" + code1 + "```"
	want := explain1 + code1

	for cut := 0; cut <= len(input); cut++ {
		got := feed(input[:cut], input[cut:])
		var b strings.Builder
		for _, seg := range got {
			b.WriteString(seg.Text)
		}
		require.Equalf(t, want, b.String(), "round trip failed at cut %d", cut)
	}
}

func TestSegmenter_TrailingWhitespaceAfterOpenFence(t *testing.T) {
	got := feed("```html  \t\n<p>a</p>\n```\nafter")

	require.Len(t, got, 2)
	assert.Equal(t, Segment{KindCode, "<p>a</p>\n"}, got[0])
	assert.Equal(t, Segment{KindExplanation, "after"}, got[1])
}

func TestSegmenter_CRLFAfterFence(t *testing.T) {
	got := feed("```html\r\n<p>a</p>\r\n```\r\ndone")

	require.Len(t, got, 2)
	assert.Equal(t, Segment{KindCode, "<p>a</p>\r\n"}, got[0])
	assert.Equal(t, Segment{KindExplanation, "done"}, got[1])
}

func TestSegmenter_UnterminatedFenceFlushesAsCode(t *testing.T) {
	s := New()
	got := s.Accept("intro ```html\n<div>")
	got = append(got, s.Finish()...)

	require.NotEmpty(t, got)
	last := got[len(got)-1]
	assert.Equal(t, KindCode, last.Kind)

	var code strings.Builder
	for _, seg := range got {
		if seg.Kind == KindCode {
			code.WriteString(seg.Text)
		}
	}
	assert.Equal(t, "<div>", code.String())
}

func TestSegmenter_MultipleMarkersInOneChunk(t *testing.T) {
	got := feed("a```html\nb\n```c```html\nd\n```e")

	require.Len(t, got, 5)
	assert.Equal(t, Segment{KindExplanation, "a"}, got[0])
	assert.Equal(t, Segment{KindCode, "b\n"}, got[1])
	assert.Equal(t, Segment{KindExplanation, "c"}, got[2])
	assert.Equal(t, Segment{KindCode, "d\n"}, got[3])
	assert.Equal(t, Segment{KindExplanation, "e"}, got[4])
}

func TestSegmenter_EmptyChunksIgnored(t *testing.T) {
	s := New()
	assert.Nil(t, s.Accept(""))
	assert.Nil(t, s.Accept(""))
	assert.Empty(t, s.Finish())
}

func TestSegmenter_NeverEmitsEmptySegments(t *testing.T) {
	// Fences back to back with nothing between them.
	got := feed("```html\n```")
	for _, seg := range got {
		assert.NotEmpty(t, seg.Text)
	}
	assert.Empty(t, got)
}

func TestSegmenter_TailRetainedUntilFinish(t *testing.T) {
	s := New()

	// "```htm" could be the start of an open fence, so nothing beyond the
	// safe prefix may be emitted yet.
	segs := s.Accept("x```htm")
	require.Len(t, segs, 1)
	assert.Equal(t, Segment{KindExplanation, "x"}, segs[0])

	// It was not a fence after all.
	segs = append(segs, s.Accept("z not a fence")...)
	segs = append(segs, s.Finish()...)
	var b strings.Builder
	for _, seg := range segs {
		require.Equal(t, KindExplanation, seg.Kind)
		b.WriteString(seg.Text)
	}
	assert.Equal(t, "x```htmz not a fence", b.String())
}
