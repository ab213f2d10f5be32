// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Attune Contributors

// Package oracle defines the interface to the external text-completion
// service and the registry that routes completion requests to a configured
// backend. The oracle is a black box: it takes a prompt and returns
// free-form text with no structured-output guarantee; payload.go
// recovers structured answers from whatever comes back.
package oracle

import (
	"context"
)

// Oracle is a single completion backend (one vendor SDK).
type Oracle interface {
	Name() string
	// Complete sends one blocking completion request and returns the
	// response text. There is no streaming; the conversation flow is
	// strictly request/response.
	Complete(ctx context.Context, req CompletionRequest) (string, error)
	Close() error
}

// Completer is the narrow surface consumed by the pipeline and the
// knowledge layer: a completion function already bound to a backend and
// model. The Registry's Client satisfies it; tests substitute scripted
// implementations.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// CompletionRequest represents one request to the oracle.
type CompletionRequest struct {
	Model        string
	SystemPrompt string
	Messages     []Message
	Options      Options
}

// Options contains per-request generation parameters.
type Options struct {
	Temperature float64
	MaxTokens   int
}

// Message is one conversation turn.
type Message struct {
	Role    Role
	Content string
}

// Role identifies a message sender.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// UserMessage builds a user-role message.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage builds an assistant-role message.
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// Prompt is shorthand for a request consisting of a single user message.
func Prompt(text string, opts Options) CompletionRequest {
	return CompletionRequest{
		Messages: []Message{UserMessage(text)},
		Options:  opts,
	}
}
