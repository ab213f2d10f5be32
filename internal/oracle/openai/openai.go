// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Attune Contributors

// Package openai implements the oracle interface over any OpenAI-compatible
// chat completions API. Pointing BaseURL at a compatible service (Groq, a
// local vLLM, an inference gateway) swaps the inference vendor without code
// changes, which is how the default Groq configuration works.
package openai

import (
	"context"
	"errors"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/attune-dev/attune/internal/oracle"
	attuneerr "github.com/attune-dev/attune/pkg/errors"
)

// Config holds OpenAI-compatible backend configuration.
type Config struct {
	APIKey  string
	BaseURL string // optional, e.g. https://api.groq.com/openai/v1
}

// Oracle implements oracle.Oracle using the OpenAI chat completions API.
type Oracle struct {
	client openaisdk.Client
	config Config
}

var _ oracle.Oracle = (*Oracle)(nil)

// New creates an OpenAI-compatible backend. Returns an error if the API key
// is missing.
func New(cfg Config) (*Oracle, error) {
	if cfg.APIKey == "" {
		return nil, attuneerr.New(attuneerr.CodeOracleRequestInvalid, "openai: missing api_key in config", attuneerr.FieldBackend("openai"))
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Oracle{
		client: openaisdk.NewClient(opts...),
		config: cfg,
	}, nil
}

func (o *Oracle) Name() string { return "openai" }

func (o *Oracle) Complete(ctx context.Context, req oracle.CompletionRequest) (string, error) {
	params, err := buildParams(req)
	if err != nil {
		return "", err
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", classify(err, req.Model)
	}
	if len(resp.Choices) == 0 {
		return "", attuneerr.New(attuneerr.CodeOracleResponseInvalid, "openai: completion returned no choices",
			attuneerr.FieldBackend("openai"),
			attuneerr.FieldModel(req.Model),
		)
	}
	return resp.Choices[0].Message.Content, nil
}

func (o *Oracle) Close() error { return nil }

// buildParams converts an oracle.CompletionRequest into OpenAI SDK ChatCompletionNewParams.
func buildParams(req oracle.CompletionRequest) (openaisdk.ChatCompletionNewParams, error) {
	msgs, err := convertMessages(req.Messages, req.SystemPrompt)
	if err != nil {
		return openaisdk.ChatCompletionNewParams{}, err
	}

	params := openaisdk.ChatCompletionNewParams{
		Model:    shared.ChatModel(req.Model),
		Messages: msgs,
	}

	if req.Options.MaxTokens > 0 {
		params.MaxCompletionTokens = param.NewOpt(int64(req.Options.MaxTokens))
	}

	if req.Options.Temperature > 0 {
		params.Temperature = param.NewOpt(req.Options.Temperature)
	}

	return params, nil
}

// convertMessages transforms oracle.Message slices into OpenAI SDK message param slices.
// The system prompt is prepended as a system message if present.
func convertMessages(msgs []oracle.Message, systemPrompt string) ([]openaisdk.ChatCompletionMessageParamUnion, error) {
	var result []openaisdk.ChatCompletionMessageParamUnion

	if systemPrompt != "" {
		result = append(result, openaisdk.SystemMessage(systemPrompt))
	}

	for _, msg := range msgs {
		switch msg.Role {
		case oracle.RoleUser:
			result = append(result, openaisdk.UserMessage(msg.Content))
		case oracle.RoleAssistant:
			result = append(result, openaisdk.AssistantMessage(msg.Content))
		case oracle.RoleSystem:
			result = append(result, openaisdk.SystemMessage(msg.Content))
		default:
			return nil, attuneerr.Errorf(attuneerr.CodeOracleRequestInvalid, "openai: unsupported message role %q", msg.Role)
		}
	}

	return result, nil
}

// classify maps SDK failures onto the oracle error taxonomy. Context
// cancellation and deadline errors pass through untouched so the registry
// can attach the timeout code itself.
func classify(err error, model string) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apierr *openaisdk.Error
	if errors.As(err, &apierr) {
		code := attuneerr.CodeOracleRequestUnavailable
		transient := apierr.StatusCode == 408 || apierr.StatusCode == 429 || apierr.StatusCode >= 500
		if !transient {
			code = attuneerr.CodeOracleRequestInvalid
		}
		return attuneerr.Wrap(err, code, "openai: chat completion failed",
			attuneerr.FieldBackend("openai"),
			attuneerr.FieldModel(model),
			attuneerr.Field("status", apierr.StatusCode),
		)
	}

	return attuneerr.Wrap(err, attuneerr.CodeOracleRequestUnavailable, "openai: chat completion transport failure",
		attuneerr.FieldBackend("openai"),
		attuneerr.FieldModel(model),
	)
}
