// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Attune Contributors

package oracle

import (
	"encoding/json"
	"strings"

	attuneerr "github.com/attune-dev/attune/pkg/errors"
)

// ExtractPayload decodes a JSON value buried in model output into dst.
// Models wrap structured answers in markdown fences, prose preambles, or
// trailing commentary, so candidates are tried in order of decreasing
// specificity:
//
//  1. a ```json fenced block
//  2. any ``` fenced block
//  3. the first balanced {...} or [...] span
//  4. the whole text, trimmed
//
// The first candidate that unmarshals cleanly wins. If none do, the error
// carries CodeOracleResponseParseFailure and a snippet of the raw text.
func ExtractPayload(text string, dst any) error {
	for _, candidate := range payloadCandidates(text) {
		if json.Unmarshal([]byte(candidate), dst) == nil {
			return nil
		}
	}
	return attuneerr.New(
		attuneerr.CodeOracleResponseParseFailure,
		"no JSON payload found in oracle output",
		attuneerr.Field("snippet", snippet(text, 160)),
	)
}

func payloadCandidates(text string) []string {
	var candidates []string
	if c, ok := fencedBlock(text, "```json"); ok {
		candidates = append(candidates, c)
	}
	if c, ok := fencedBlock(text, "```"); ok {
		candidates = append(candidates, c)
	}
	if c, ok := balancedSpan(text); ok {
		candidates = append(candidates, c)
	}
	if trimmed := strings.TrimSpace(text); trimmed != "" {
		candidates = append(candidates, trimmed)
	}
	return candidates
}

// fencedBlock extracts the contents of the first fence opened by marker.
func fencedBlock(text, marker string) (string, bool) {
	start := strings.Index(text, marker)
	if start < 0 {
		return "", false
	}
	rest := text[start+len(marker):]
	end := strings.Index(rest, "```")
	if end < 0 {
		return "", false
	}
	block := strings.TrimSpace(rest[:end])
	if block == "" {
		return "", false
	}
	return block, true
}

// balancedSpan finds the first balanced JSON object or array in text. The
// scanner tracks string literals and escapes so braces inside quoted values
// do not skew the depth count.
func balancedSpan(text string) (string, bool) {
	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return "", false
	}
	open := text[start]
	var close byte = '}'
	if open == '[' {
		close = ']'
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == open:
			depth++
		case c == close:
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

func snippet(text string, max int) string {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) <= max {
		return trimmed
	}
	return trimmed[:max] + "..."
}
