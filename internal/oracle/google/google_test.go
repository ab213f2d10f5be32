// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Attune Contributors

package google_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attune-dev/attune/internal/oracle"
	"github.com/attune-dev/attune/internal/oracle/google"
	attuneerr "github.com/attune-dev/attune/pkg/errors"
)

var _ oracle.Oracle = (*google.Oracle)(nil)

func TestGoogle_MissingAPIKey(t *testing.T) {
	_, err := google.New(google.Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api_key")
	assert.True(t, attuneerr.HasCode(err, attuneerr.CodeOracleRequestInvalid))
}

func TestGoogle_BuildConfig(t *testing.T) {
	req := oracle.CompletionRequest{
		Model:        "gemini-2.5-flash",
		SystemPrompt: "You are a helpful assistant.",
		Options:      oracle.Options{Temperature: 0.7, MaxTokens: 1024},
	}

	cfg := google.BuildConfig(req)
	require.NotNil(t, cfg.Temperature)
	assert.InDelta(t, 0.7, float64(*cfg.Temperature), 1e-6)
	assert.Equal(t, int32(1024), cfg.MaxOutputTokens)
	require.NotNil(t, cfg.SystemInstruction)
	require.Len(t, cfg.SystemInstruction.Parts, 1)
	assert.Equal(t, "You are a helpful assistant.", cfg.SystemInstruction.Parts[0].Text)
}

func TestGoogle_BuildConfig_DefaultsOmitted(t *testing.T) {
	cfg := google.BuildConfig(oracle.Prompt("hello", oracle.Options{}))
	assert.Nil(t, cfg.Temperature)
	assert.Equal(t, int32(0), cfg.MaxOutputTokens)
	assert.Nil(t, cfg.SystemInstruction)
}

func TestGoogle_ConvertMessages(t *testing.T) {
	contents, err := google.ConvertMessages([]oracle.Message{
		oracle.UserMessage("question"),
		oracle.AssistantMessage("answer"),
		{Role: oracle.RoleSystem, Content: "dropped from the list"},
	})
	require.NoError(t, err)
	// The Gemini API names the assistant role "model"; system content is
	// excluded here and carried by SystemInstruction.
	require.Len(t, contents, 2)
	assert.Equal(t, "user", contents[0].Role)
	assert.Equal(t, "model", contents[1].Role)
	require.Len(t, contents[0].Parts, 1)
	assert.Equal(t, "question", contents[0].Parts[0].Text)
}

func TestGoogle_ConvertMessages_UnsupportedRole(t *testing.T) {
	_, err := google.ConvertMessages([]oracle.Message{
		{Role: oracle.Role("tool"), Content: "nope"},
	})
	require.Error(t, err)
	assert.True(t, attuneerr.HasCode(err, attuneerr.CodeOracleRequestInvalid))
}
