// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package codeparse extracts code blocks from a completed model answer.
//
// A finished generation is one markdown-ish document mixing prose with
// fenced code blocks. This package pulls out the html, css, and js
// blocks so they can be persisted and served as the app's content,
// independent of the live segment stream.
package codeparse

import (
	"regexp"
	"strings"
)

// Result holds the code blocks recovered from one answer.
//
// Multiple fences of the same language are concatenated in document
// order, separated by one newline. Description is the prose outside
// all fences, trimmed.
type Result struct {
	HTML        string
	CSS         string
	JS          string
	Description string
}

// HasCode reports whether any code block was found.
func (r Result) HasCode() bool {
	return r.HTML != "" || r.CSS != "" || r.JS != ""
}

// fencePattern matches one fenced block with an optional language tag.
// (?s) lets the body span newlines; the body match is lazy so adjacent
// fences don't merge.
var fencePattern = regexp.MustCompile("(?s)```([a-zA-Z]*)[ \t]*\r?\n?(.*?)```")

// Parse splits an answer into prose and per-language code blocks.
//
// Language tags are matched case-insensitively; "js" and "javascript"
// are the same bucket. Blocks with no tag or an unrecognized tag count
// as html, matching how models commonly omit the tag for the main
// document. An unterminated trailing fence is treated as closed at the
// end of input.
func Parse(answer string) Result {
	var res Result
	var prose strings.Builder

	rest := answer
	for {
		loc := fencePattern.FindStringSubmatchIndex(rest)
		if loc == nil {
			break
		}
		prose.WriteString(rest[:loc[0]])
		lang := strings.ToLower(rest[loc[2]:loc[3]])
		body := rest[loc[4]:loc[5]]
		res.add(lang, body)
		rest = rest[loc[1]:]
	}

	// A final unterminated fence still yields its body.
	if open := strings.Index(rest, "```"); open >= 0 {
		prose.WriteString(rest[:open])
		tail := rest[open+3:]
		lang := ""
		if nl := strings.IndexByte(tail, '\n'); nl >= 0 {
			lang = strings.ToLower(strings.TrimSpace(tail[:nl]))
			tail = tail[nl+1:]
		} else {
			lang = strings.ToLower(strings.TrimSpace(tail))
			tail = ""
		}
		res.add(lang, tail)
	} else {
		prose.WriteString(rest)
	}

	res.Description = strings.TrimSpace(prose.String())
	return res
}

func (r *Result) add(lang, body string) {
	body = strings.Trim(body, "\r\n")
	if body == "" {
		return
	}
	switch lang {
	case "css":
		appendBlock(&r.CSS, body)
	case "js", "javascript":
		appendBlock(&r.JS, body)
	default:
		appendBlock(&r.HTML, body)
	}
}

func appendBlock(dst *string, body string) {
	if *dst == "" {
		*dst = body
		return
	}
	*dst = *dst + "\n" + body
}
