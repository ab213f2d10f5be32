// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Attune Contributors

package knowledge

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/attune-dev/attune/internal/oracle"
)

// confidenceThreshold is the minimum extractor confidence for a
// preference to be accepted. Strictly greater-than: a report of exactly
// 0.7 is rejected.
const confidenceThreshold = 0.7

// analysisTemperature is the sampling temperature for extraction and
// validation calls. Analysis stays deterministic even when chat
// generation runs hot.
const analysisTemperature = 0.2

// Preference is a typed behavioral preference extracted from an
// utterance.
type Preference struct {
	Type       string
	Value      string
	Confidence float64
}

const identifyPreferencePrompt = `Determine if the following message contains a user preference about how they want the chatbot to behave.
Examples of preferences include:
- Preferred tone (formal, casual, friendly, professional)
- Verbosity (concise, detailed)
- Style of responses (technical, simple)
- Specific topics of interest or topics to avoid

Message: %q

Provide your assessment as JSON with these fields:
- contains_preference: true/false
- preference_type: the type of preference (if any)
- preference_value: the specific value for this preference
- confidence: 0-1 value of how confident you are in this assessment

Response (JSON):`

// Extractor asks the oracle whether an utterance expresses a behavioral
// preference and extracts a typed key/value pair when confidence clears
// the threshold.
type Extractor struct {
	oracle oracle.Completer
}

// NewExtractor returns an Extractor bound to the given completer.
func NewExtractor(completer oracle.Completer) *Extractor {
	return &Extractor{oracle: completer}
}

// Identify reports the preference contained in utterance, or nil when
// none was found. Malformed oracle output, missing fields, low
// confidence, and oracle failures all yield a nil preference without an
// error: extraction is best-effort and must not abort a turn. Context
// cancellation is the one exception and propagates.
func (e *Extractor) Identify(ctx context.Context, utterance string) (*Preference, error) {
	req := oracle.Prompt(
		fmt.Sprintf(identifyPreferencePrompt, utterance),
		oracle.Options{Temperature: analysisTemperature},
	)

	text, err := e.oracle.Complete(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		slog.Warn("preference extraction failed", "error", err)
		return nil, nil
	}

	var report struct {
		ContainsPreference bool    `json:"contains_preference"`
		PreferenceType     string  `json:"preference_type"`
		PreferenceValue    string  `json:"preference_value"`
		Confidence         float64 `json:"confidence"`
	}
	if err := oracle.ExtractPayload(text, &report); err != nil {
		slog.Debug("preference payload unparseable", "error", err)
		return nil, nil
	}

	if !report.ContainsPreference || report.Confidence <= confidenceThreshold {
		return nil, nil
	}
	if report.PreferenceType == "" || report.PreferenceValue == "" {
		return nil, nil
	}

	return &Preference{
		Type:       report.PreferenceType,
		Value:      report.PreferenceValue,
		Confidence: report.Confidence,
	}, nil
}
