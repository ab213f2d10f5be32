// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Attune Contributors

package oracle_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attune-dev/attune/internal/oracle"
	attuneerr "github.com/attune-dev/attune/pkg/errors"
)

func TestExtractPayload_StringList(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "bare json array",
			input: `["The Earth orbits the Sun", "Water freezes at 0 degrees Celsius"]`,
			want:  []string{"The Earth orbits the Sun", "Water freezes at 0 degrees Celsius"},
		},
		{
			name:  "json fenced block",
			input: "Here are the claims:\n```json\n[\"Paris is in France\"]\n```\nLet me know if you need more.",
			want:  []string{"Paris is in France"},
		},
		{
			name:  "anonymous fenced block",
			input: "```\n[\"Go compiles to native code\"]\n```",
			want:  []string{"Go compiles to native code"},
		},
		{
			name:  "array embedded in prose",
			input: `Sure! The factual claims are ["Honey never spoils"] as requested.`,
			want:  []string{"Honey never spoils"},
		},
		{
			name:  "brackets inside string values",
			input: `["The array syntax is [1, 2, 3]", "plain claim"]`,
			want:  []string{"The array syntax is [1, 2, 3]", "plain claim"},
		},
		{
			name:  "escaped quotes inside values",
			input: `["She said \"hello\" twice"]`,
			want:  []string{`She said "hello" twice`},
		},
		{
			name:  "empty array",
			input: "```json\n[]\n```",
			want:  []string{},
		},
		{
			name:  "surrounding whitespace",
			input: "\n\n  [\"trimmed\"]  \n",
			want:  []string{"trimmed"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			require.NoError(t, oracle.ExtractPayload(tt.input, &got))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractPayload_Object(t *testing.T) {
	var got struct {
		HasPreference bool   `json:"has_preference"`
		Type          string `json:"preference_type"`
		Value         string `json:"preference_value"`
		Confidence    float64 `json:"confidence"`
	}

	input := "The user expressed a preference.\n```json\n{\"has_preference\": true, \"preference_type\": \"communication_style\", \"preference_value\": \"concise\", \"confidence\": 0.92}\n```"
	require.NoError(t, oracle.ExtractPayload(input, &got))
	assert.True(t, got.HasPreference)
	assert.Equal(t, "communication_style", got.Type)
	assert.Equal(t, "concise", got.Value)
	assert.InDelta(t, 0.92, got.Confidence, 1e-9)
}

func TestExtractPayload_ObjectInProse(t *testing.T) {
	var got map[string]any
	input := `Based on my analysis, the answer is {"is_valid": true, "reason": "well known fact"} with high certainty.`
	require.NoError(t, oracle.ExtractPayload(input, &got))
	assert.Equal(t, true, got["is_valid"])
}

func TestExtractPayload_BrokenFenceFallsThrough(t *testing.T) {
	// The fence never closes, so the balanced-span scan must pick the
	// payload out instead.
	var got []string
	input := "```json\n[\"claim one\"]"
	require.NoError(t, oracle.ExtractPayload(input, &got))
	assert.Equal(t, []string{"claim one"}, got)
}

func TestExtractPayload_PrefersFencedOverProse(t *testing.T) {
	// When both a fence and earlier prose brackets are present, the fence
	// wins because it is the more deliberate signal.
	var got []string
	input := "I considered [1, 2] first.\n```json\n[\"the real answer\"]\n```"
	require.NoError(t, oracle.ExtractPayload(input, &got))
	assert.Equal(t, []string{"the real answer"}, got)
}

func TestExtractPayload_NoPayload(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "plain prose", input: "I could not find any factual claims in that message."},
		{name: "empty string", input: ""},
		{name: "whitespace only", input: "   \n\t  "},
		{name: "unbalanced bracket", input: "here is a stray [ bracket"},
		{name: "malformed json", input: `["unterminated`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			err := oracle.ExtractPayload(tt.input, &got)
			require.Error(t, err)
			assert.True(t, attuneerr.IsParseFailure(err))
			assert.True(t, attuneerr.HasCode(err, attuneerr.CodeOracleResponseParseFailure))
		})
	}
}

func TestExtractPayload_TypeMismatchStillFails(t *testing.T) {
	// A well-formed object cannot satisfy a []string destination.
	var got []string
	err := oracle.ExtractPayload(`{"not": "a list"}`, &got)
	require.Error(t, err)
	assert.True(t, attuneerr.IsParseFailure(err))
}
