// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Attune Contributors

package knowledge

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/attune-dev/attune/internal/oracle"
)

const extractClaimsPrompt = `Extract any factual claims from the following message. A factual claim is a statement that asserts something about the world that can be verified as true or false.

Message: %q

Extract each distinct factual claim, ignoring opinions, questions, and subjective statements.
Return the results as a JSON list of strings, with each string being a single factual claim.
If there are no factual claims, return an empty list.

Example output: ["The Earth orbits the Sun", "Water freezes at 0 degrees Celsius"]

Response (JSON list):`

const validateClaimPrompt = `Determine if the following statement is factually accurate based on general knowledge.
If it's a subjective preference, opinion, or a personal experience, indicate that it's not a factual statement.

Statement: %q

Provide your assessment as JSON with these fields:
- is_factual: true/false (is this a factual claim rather than an opinion or preference)
- is_accurate: true/false (if factual, is it generally accurate)
- reason: brief explanation

Response (JSON):`

// Outcome is the result of validating one utterance.
type Outcome struct {
	// Preference extracted from the utterance, nil when none was found.
	// The caller decides whether to persist it.
	Preference *Preference

	// ValidatedFacts holds the claims the oracle confirmed factual and
	// accurate. Each has already been written to the knowledge base.
	ValidatedFacts []string
}

// Validator extracts candidate factual claims from utterances and checks
// each against the oracle before admitting it to the knowledge base.
type Validator struct {
	oracle    oracle.Completer
	extractor *Extractor
	base      *Base
}

// NewValidator builds a Validator that writes accepted facts into base.
func NewValidator(completer oracle.Completer, base *Base) *Validator {
	return &Validator{
		oracle:    completer,
		extractor: NewExtractor(completer),
		base:      base,
	}
}

// Process runs the full validation pass over one utterance: a preference
// check, claim extraction, and per-claim validation. Accepted claims are
// written to the knowledge base as validated facts; rejected claims leave
// no trace. The conversation history is not yet consulted; claims are
// judged in isolation.
//
// Oracle failures during extraction or validation degrade to fewer (or
// zero) facts and never surface as errors. A knowledge-base write failure
// does surface: losing a validated fact is a real storage fault.
func (v *Validator) Process(ctx context.Context, utterance string, history []oracle.Message) (Outcome, error) {
	pref, err := v.extractor.Identify(ctx, utterance)
	if err != nil {
		return Outcome{}, err
	}

	outcome := Outcome{Preference: pref}

	for _, claim := range v.extractClaims(ctx, utterance) {
		if err := ctx.Err(); err != nil {
			return Outcome{}, err
		}

		valid, reason := v.validateClaim(ctx, claim)
		if !valid {
			slog.Debug("claim rejected", "claim", claim, "reason", reason)
			continue
		}

		added, err := v.base.AddFact(ctx, claim, true, SourceUser)
		if err != nil {
			return Outcome{}, err
		}
		if added {
			outcome.ValidatedFacts = append(outcome.ValidatedFacts, claim)
		}
	}

	return outcome, nil
}

// extractClaims asks the oracle for the factual claims contained in the
// utterance. Any failure yields zero claims.
func (v *Validator) extractClaims(ctx context.Context, utterance string) []string {
	req := oracle.Prompt(
		fmt.Sprintf(extractClaimsPrompt, utterance),
		oracle.Options{Temperature: analysisTemperature},
	)

	text, err := v.oracle.Complete(ctx, req)
	if err != nil {
		slog.Warn("claim extraction failed", "error", err)
		return nil
	}

	var claims []string
	if err := oracle.ExtractPayload(text, &claims); err != nil {
		slog.Debug("claim payload unparseable", "error", err)
		return nil
	}
	return claims
}

// validateClaim asks the oracle whether a single claim is both factual
// and accurate. Malformed output and oracle failures count as rejections:
// a claim that cannot be verified must not enter the knowledge base.
func (v *Validator) validateClaim(ctx context.Context, claim string) (bool, string) {
	req := oracle.Prompt(
		fmt.Sprintf(validateClaimPrompt, claim),
		oracle.Options{Temperature: analysisTemperature},
	)

	text, err := v.oracle.Complete(ctx, req)
	if err != nil {
		slog.Warn("claim validation failed", "claim", claim, "error", err)
		return false, "validation call failed"
	}

	var verdict struct {
		IsFactual  bool   `json:"is_factual"`
		IsAccurate bool   `json:"is_accurate"`
		Reason     string `json:"reason"`
	}
	if err := oracle.ExtractPayload(text, &verdict); err != nil {
		return false, "unparseable validation response"
	}

	reason := verdict.Reason
	if reason == "" {
		reason = "no reason provided"
	}
	return verdict.IsFactual && verdict.IsAccurate, reason
}
