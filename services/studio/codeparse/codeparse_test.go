// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package codeparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse_SingleHTMLBlock(t *testing.T) {
	answer := "Here is the page.\n```html\n<div>hi</div>\n```\nDone."
	res := Parse(answer)

	assert.Equal(t, "<div>hi</div>", res.HTML)
	assert.Empty(t, res.CSS)
	assert.Empty(t, res.JS)
	assert.Equal(t, "Here is the page.\n\nDone.", res.Description)
	assert.True(t, res.HasCode())
}

func TestParse_AllThreeLanguages(t *testing.T) {
	answer := "```html\n<p>x</p>\n```\n" +
		"```css\np { color: red; }\n```\n" +
		"```js\nconsole.log(1);\n```"
	res := Parse(answer)

	assert.Equal(t, "<p>x</p>", res.HTML)
	assert.Equal(t, "p { color: red; }", res.CSS)
	assert.Equal(t, "console.log(1);", res.JS)
}

func TestParse_JavascriptAliasAndCase(t *testing.T) {
	answer := "```JavaScript\nalert(1);\n```\n```JS\nalert(2);\n```"
	res := Parse(answer)
	assert.Equal(t, "alert(1);\nalert(2);", res.JS)
}

func TestParse_UntaggedFenceCountsAsHTML(t *testing.T) {
	res := Parse("```\n<span>u</span>\n```")
	assert.Equal(t, "<span>u</span>", res.HTML)
}

func TestParse_MultipleHTMLBlocksConcatenate(t *testing.T) {
	answer := "```html\n<a>1</a>\n```\nmiddle\n```html\n<b>2</b>\n```"
	res := Parse(answer)
	assert.Equal(t, "<a>1</a>\n<b>2</b>", res.HTML)
	assert.Equal(t, "middle", res.Description)
}

func TestParse_UnterminatedFence(t *testing.T) {
	res := Parse("intro\n```html\n<div>open</div>")
	assert.Equal(t, "<div>open</div>", res.HTML)
	assert.Equal(t, "intro", res.Description)
}

func TestParse_ProseOnly(t *testing.T) {
	res := Parse("No code at all here.")
	assert.False(t, res.HasCode())
	assert.Equal(t, "No code at all here.", res.Description)
}

func TestParse_EmptyFenceIgnored(t *testing.T) {
	res := Parse("```html\n```")
	assert.False(t, res.HasCode())
}

func TestParse_CRLFBodies(t *testing.T) {
	res := Parse("```html\r\n<div>w</div>\r\n```")
	assert.Equal(t, "<div>w</div>", res.HTML)
}
