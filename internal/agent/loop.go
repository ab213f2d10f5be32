// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Attune Contributors

// Package agent runs the conversation pipeline: a fixed four-stage state
// machine executed once per incoming message, plus the keyword router
// that short-circuits correction and preference messages around it.
package agent

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/attune-dev/attune/internal/knowledge"
	"github.com/attune-dev/attune/internal/oracle"
	attuneerr "github.com/attune-dev/attune/pkg/errors"
)

// defaultMaxHistory is the number of conversation messages kept when
// MaxHistory is not configured.
const defaultMaxHistory = 10

// DefaultFallbackResponse is served when response generation fails. The
// turn still completes; only the learning stages may have succeeded.
const DefaultFallbackResponse = "I'm not sure how to respond to that."

// State is the typed per-turn pipeline state. A fresh State is built for
// every message and discarded when the turn ends; nothing in it is
// persisted directly.
type State struct {
	// Messages holds the prior conversation turns, oldest first.
	Messages []oracle.Message
	// CurrentInput is the utterance being processed.
	CurrentInput string
	// Preference is the candidate preference stage 1 extracted, if any.
	Preference *knowledge.Preference
	// ValidatedFacts lists the facts stage 1 admitted this turn.
	ValidatedFacts []string
	// Preferences is the current preference snapshot after stage 2.
	Preferences map[string]string
	// RelevantFacts holds the grounding facts stage 3 retrieved.
	RelevantFacts []string
	// Response is the generated (or fallback) reply after stage 4.
	Response string
}

// LoopHooks provides optional test hooks fired before each pipeline
// stage.
type LoopHooks struct {
	OnValidateInput      func()
	OnProcessPreferences func()
	OnRetrieveContext    func()
	OnGenerateResponse   func()
}

// LoopConfig holds dependencies and tuning for the Loop. Base, Validator,
// and Oracle are required.
type LoopConfig struct {
	Base      *knowledge.Base
	Validator *knowledge.Validator
	Oracle    oracle.Completer

	// Temperature and MaxTokens shape response generation only; the
	// validation stages always run cold.
	Temperature float64
	MaxTokens   int

	// MaxHistory caps the rolling conversation history in messages.
	// Zero selects 10.
	MaxHistory int

	// RetrievalK is the grounding-fact fan-out. Zero selects the
	// knowledge base default.
	RetrievalK int

	// Fallback overrides the reply served when generation fails.
	Fallback string

	Hooks *LoopHooks
}

// Loop executes the four-stage conversation pipeline:
// validate input → process preferences → retrieve context → generate
// response. The stages run strictly in order with no branching; the only
// deviation is the fallback reply when stage 4's oracle call fails.
type Loop struct {
	base       *knowledge.Base
	validator  *knowledge.Validator
	oracle     oracle.Completer
	maxTokens  int
	maxHistory int
	retrievalK int
	fallback   string
	hooks      *LoopHooks

	// mu guards temperature and the rolling history.
	mu          sync.Mutex
	temperature float64
	history     []oracle.Message
}

// NewLoop creates a Loop with the given dependencies.
func NewLoop(cfg LoopConfig) *Loop {
	maxHistory := cfg.MaxHistory
	if maxHistory <= 0 {
		maxHistory = defaultMaxHistory
	}
	fallback := cfg.Fallback
	if fallback == "" {
		fallback = DefaultFallbackResponse
	}

	return &Loop{
		base:        cfg.Base,
		validator:   cfg.Validator,
		oracle:      cfg.Oracle,
		maxTokens:   cfg.MaxTokens,
		maxHistory:  maxHistory,
		retrievalK:  cfg.RetrievalK,
		fallback:    fallback,
		hooks:       cfg.Hooks,
		temperature: cfg.Temperature,
	}
}

// ProcessMessage runs one utterance through the full pipeline and returns
// the reply. Oracle failures in the learning stages degrade to "nothing
// learned this turn"; an oracle failure during generation yields the
// fallback reply, never an error. Store and embedding failures propagate
// from any stage.
func (l *Loop) ProcessMessage(ctx context.Context, input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", attuneerr.New(attuneerr.CodeAgentLoopInvalidInput, "agent: input is empty")
	}

	state := &State{
		Messages:     l.History(),
		CurrentInput: input,
		Preferences:  l.base.Preferences(),
	}

	l.fireHook(hookValidateInput)
	if err := l.validateInput(ctx, state); err != nil {
		return "", err
	}

	l.fireHook(hookProcessPreferences)
	if err := l.processPreferences(ctx, state); err != nil {
		return "", err
	}

	l.fireHook(hookRetrieveContext)
	if err := l.retrieveContext(ctx, state); err != nil {
		return "", err
	}

	l.fireHook(hookGenerateResponse)
	if err := l.generateResponse(ctx, state); err != nil {
		return "", err
	}

	l.appendHistory(state.CurrentInput, state.Response)
	return state.Response, nil
}

// Learn runs only the validation and preference stages. The router's
// correction and preference branches use it so short-circuited turns
// still update the knowledge base.
func (l *Loop) Learn(ctx context.Context, input string) (knowledge.Outcome, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return knowledge.Outcome{}, attuneerr.New(attuneerr.CodeAgentLoopInvalidInput, "agent: input is empty")
	}

	state := &State{
		Messages:     l.History(),
		CurrentInput: input,
	}
	if err := l.validateInput(ctx, state); err != nil {
		return knowledge.Outcome{}, err
	}
	if err := l.processPreferences(ctx, state); err != nil {
		return knowledge.Outcome{}, err
	}

	return knowledge.Outcome{
		Preference:     state.Preference,
		ValidatedFacts: state.ValidatedFacts,
	}, nil
}

// hookKind identifies which hook to fire.
type hookKind int

const (
	hookValidateInput hookKind = iota
	hookProcessPreferences
	hookRetrieveContext
	hookGenerateResponse
)

func (l *Loop) fireHook(kind hookKind) {
	if l.hooks == nil {
		return
	}

	var fn func()
	switch kind {
	case hookValidateInput:
		fn = l.hooks.OnValidateInput
	case hookProcessPreferences:
		fn = l.hooks.OnProcessPreferences
	case hookRetrieveContext:
		fn = l.hooks.OnRetrieveContext
	case hookGenerateResponse:
		fn = l.hooks.OnGenerateResponse
	}

	if fn != nil {
		fn()
	}
}

// validateInput is stage 1: run the fact validator over the utterance,
// collecting admitted facts and the candidate preference.
func (l *Loop) validateInput(ctx context.Context, state *State) error {
	outcome, err := l.validator.Process(ctx, state.CurrentInput, state.Messages)
	if err != nil {
		return err
	}

	state.Preference = outcome.Preference
	state.ValidatedFacts = append(state.ValidatedFacts, outcome.ValidatedFacts...)
	return nil
}

// processPreferences is stage 2: persist the extracted preference and
// refresh the snapshot the generation stage will see.
func (l *Loop) processPreferences(ctx context.Context, state *State) error {
	if p := state.Preference; p != nil && p.Type != "" && p.Value != "" {
		if err := l.base.AddPreference(ctx, p.Type, p.Value); err != nil {
			return err
		}
	}

	state.Preferences = l.base.Preferences()
	return nil
}

// retrieveContext is stage 3: fetch the facts most relevant to the
// current input.
func (l *Loop) retrieveContext(ctx context.Context, state *State) error {
	facts, err := l.base.RelevantFacts(ctx, state.CurrentInput, l.retrievalK)
	if err != nil {
		return err
	}

	state.RelevantFacts = facts
	return nil
}

// generateResponse is stage 4: compose the grounded prompt and call the
// oracle. An oracle failure here becomes the fallback reply rather than
// an error; only caller cancellation propagates.
func (l *Loop) generateResponse(ctx context.Context, state *State) error {
	messages := make([]oracle.Message, 0, len(state.Messages)+1)
	messages = append(messages, state.Messages...)
	messages = append(messages, oracle.UserMessage(state.CurrentInput))

	req := oracle.CompletionRequest{
		SystemPrompt: buildSystemPrompt(state.RelevantFacts, state.Preferences),
		Messages:     messages,
		Options: oracle.Options{
			Temperature: l.Temperature(),
			MaxTokens:   l.maxTokens,
		},
	}

	text, err := l.oracle.Complete(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		slog.Warn("response generation failed, serving fallback", "error", err)
		state.Response = l.fallback
		return nil
	}
	if strings.TrimSpace(text) == "" {
		slog.Warn("oracle returned an empty response, serving fallback")
		state.Response = l.fallback
		return nil
	}

	state.Response = text
	return nil
}

// buildSystemPrompt composes the grounded generation prompt: retrieved
// facts as context, then current preferences as behavioral instructions.
func buildSystemPrompt(facts []string, prefs map[string]string) string {
	var b strings.Builder
	b.WriteString("You are an adaptive and helpful chatbot assistant. Respond to the user's message thoughtfully.\n")

	if len(facts) > 0 {
		b.WriteString("\nBased on these facts I've learned:\n")
		for _, fact := range facts {
			b.WriteString("- " + fact + "\n")
		}
	}

	b.WriteString("\nUser preferences:\n")
	if len(prefs) == 0 {
		b.WriteString("No specific preferences set yet.\n")
	} else {
		for _, key := range slices.Sorted(maps.Keys(prefs)) {
			b.WriteString("- " + key + ": " + prefs[key] + "\n")
		}
	}

	b.WriteString("\nAlways be accurate, helpful, and adapt to the user's preferences.")
	return b.String()
}

// SetTemperature adjusts the generation temperature for subsequent turns.
func (l *Loop) SetTemperature(temp float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.temperature = temp
}

// Temperature returns the current generation temperature.
func (l *Loop) Temperature() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.temperature
}

// History returns a snapshot of the rolling conversation history.
func (l *Loop) History() []oracle.Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]oracle.Message(nil), l.history...)
}

// ClearHistory drops the rolling conversation history. Stored facts and
// preferences are unaffected.
func (l *Loop) ClearHistory() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.history = nil
}

// appendHistory records one exchange, trimming the oldest messages once
// the cap is exceeded.
func (l *Loop) appendHistory(input, response string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.history = append(l.history, oracle.UserMessage(input), oracle.AssistantMessage(response))
	if over := len(l.history) - l.maxHistory; over > 0 {
		l.history = append([]oracle.Message(nil), l.history[over:]...)
	}
}
