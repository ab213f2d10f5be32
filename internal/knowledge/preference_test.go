// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Attune Contributors

package knowledge_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attune-dev/attune/internal/knowledge"
	"github.com/attune-dev/attune/internal/oracle"
)

func TestExtractor_Identify_AcceptsConfidentPreference(t *testing.T) {
	completer := &scriptedCompleter{
		respond: func(oracle.CompletionRequest) (string, error) {
			return `{"contains_preference": true, "preference_type": "tone", "preference_value": "formal", "confidence": 0.9}`, nil
		},
	}
	extractor := knowledge.NewExtractor(completer)

	pref, err := extractor.Identify(context.Background(), "I prefer formal responses")
	require.NoError(t, err)
	require.NotNil(t, pref)
	assert.Equal(t, "tone", pref.Type)
	assert.Equal(t, "formal", pref.Value)
	assert.InDelta(t, 0.9, pref.Confidence, 1e-9)
}

func TestExtractor_Identify_ConfidenceBoundaryIsStrict(t *testing.T) {
	completer := &scriptedCompleter{
		respond: func(oracle.CompletionRequest) (string, error) {
			return `{"contains_preference": true, "preference_type": "tone", "preference_value": "formal", "confidence": 0.7}`, nil
		},
	}
	extractor := knowledge.NewExtractor(completer)

	pref, err := extractor.Identify(context.Background(), "I guess formal is fine")
	require.NoError(t, err)
	assert.Nil(t, pref, "confidence of exactly 0.7 must be rejected")
}

func TestExtractor_Identify_NoPreference(t *testing.T) {
	completer := &scriptedCompleter{
		respond: func(oracle.CompletionRequest) (string, error) {
			return noPreferenceJSON, nil
		},
	}
	extractor := knowledge.NewExtractor(completer)

	pref, err := extractor.Identify(context.Background(), "What is the capital of France?")
	require.NoError(t, err)
	assert.Nil(t, pref)
}

func TestExtractor_Identify_FencedPayload(t *testing.T) {
	completer := &scriptedCompleter{
		respond: func(oracle.CompletionRequest) (string, error) {
			return "Here is my assessment:\n```json\n{\"contains_preference\": true, \"preference_type\": \"verbosity\", \"preference_value\": \"concise\", \"confidence\": 0.85}\n```", nil
		},
	}
	extractor := knowledge.NewExtractor(completer)

	pref, err := extractor.Identify(context.Background(), "keep it short please")
	require.NoError(t, err)
	require.NotNil(t, pref)
	assert.Equal(t, "verbosity", pref.Type)
	assert.Equal(t, "concise", pref.Value)
}

func TestExtractor_Identify_MalformedPayloadIsSoft(t *testing.T) {
	completer := &scriptedCompleter{
		respond: func(oracle.CompletionRequest) (string, error) {
			return "I could not really tell whether that was a preference.", nil
		},
	}
	extractor := knowledge.NewExtractor(completer)

	pref, err := extractor.Identify(context.Background(), "hmm")
	require.NoError(t, err)
	assert.Nil(t, pref)
}

func TestExtractor_Identify_MissingFieldsAreSoft(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{
			name:  "empty type",
			reply: `{"contains_preference": true, "preference_type": "", "preference_value": "formal", "confidence": 0.9}`,
		},
		{
			name:  "empty value",
			reply: `{"contains_preference": true, "preference_type": "tone", "preference_value": "", "confidence": 0.9}`,
		},
		{
			name:  "missing confidence",
			reply: `{"contains_preference": true, "preference_type": "tone", "preference_value": "formal"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			completer := &scriptedCompleter{
				respond: func(oracle.CompletionRequest) (string, error) {
					return tt.reply, nil
				},
			}
			extractor := knowledge.NewExtractor(completer)

			pref, err := extractor.Identify(context.Background(), "something")
			require.NoError(t, err)
			assert.Nil(t, pref)
		})
	}
}

func TestExtractor_Identify_OracleFailureIsSoft(t *testing.T) {
	completer := &scriptedCompleter{
		respond: func(oracle.CompletionRequest) (string, error) {
			return "", errors.New("backend exploded")
		},
	}
	extractor := knowledge.NewExtractor(completer)

	pref, err := extractor.Identify(context.Background(), "I prefer formal responses")
	require.NoError(t, err)
	assert.Nil(t, pref)
}

func TestExtractor_Identify_ContextCancellationPropagates(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	completer := &scriptedCompleter{
		respond: func(oracle.CompletionRequest) (string, error) {
			cancel()
			return "", ctx.Err()
		},
	}
	extractor := knowledge.NewExtractor(completer)

	pref, err := extractor.Identify(ctx, "I prefer formal responses")
	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, pref)
}

func TestExtractor_Identify_UsesAnalysisTemperature(t *testing.T) {
	completer := &scriptedCompleter{
		respond: func(oracle.CompletionRequest) (string, error) {
			return noPreferenceJSON, nil
		},
	}
	extractor := knowledge.NewExtractor(completer)

	_, err := extractor.Identify(context.Background(), "anything")
	require.NoError(t, err)

	calls := completer.allCalls()
	require.Len(t, calls, 1)
	assert.InDelta(t, 0.2, calls[0].Options.Temperature, 1e-9)
	assert.Contains(t, promptOf(calls[0]), `"anything"`)
}
