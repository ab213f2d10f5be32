// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Attune Contributors

// Package anthropic implements the oracle interface using the Anthropic
// Messages API.
package anthropic

import (
	"context"
	"errors"
	"strings"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/attune-dev/attune/internal/oracle"
	attuneerr "github.com/attune-dev/attune/pkg/errors"
)

// defaultMaxTokens bounds output when the caller does not set a budget.
// The Messages API requires max_tokens on every request.
const defaultMaxTokens = 4096

// Config holds Anthropic backend configuration.
type Config struct {
	APIKey  string
	BaseURL string // optional, useful for testing against a mock server
}

// Oracle implements oracle.Oracle using the Anthropic Messages API.
type Oracle struct {
	client anthropicsdk.Client
	config Config
}

var _ oracle.Oracle = (*Oracle)(nil)

// New creates an Anthropic backend. Returns an error if the API key is missing.
func New(cfg Config) (*Oracle, error) {
	if cfg.APIKey == "" {
		return nil, attuneerr.New(attuneerr.CodeOracleRequestInvalid, "anthropic: missing api_key in config", attuneerr.FieldBackend("anthropic"))
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Oracle{
		client: anthropicsdk.NewClient(opts...),
		config: cfg,
	}, nil
}

func (o *Oracle) Name() string { return "anthropic" }

func (o *Oracle) Complete(ctx context.Context, req oracle.CompletionRequest) (string, error) {
	params, err := buildParams(req)
	if err != nil {
		return "", err
	}

	resp, err := o.client.Messages.New(ctx, params)
	if err != nil {
		return "", classify(err, req.Model)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if variant, ok := block.AsAny().(anthropicsdk.TextBlock); ok {
			sb.WriteString(variant.Text)
		}
	}
	if sb.Len() == 0 {
		return "", attuneerr.New(attuneerr.CodeOracleResponseInvalid, "anthropic: message contained no text blocks",
			attuneerr.FieldBackend("anthropic"),
			attuneerr.FieldModel(req.Model),
		)
	}
	return sb.String(), nil
}

func (o *Oracle) Close() error { return nil }

// buildParams converts an oracle.CompletionRequest into Anthropic SDK MessageNewParams.
func buildParams(req oracle.CompletionRequest) (anthropicsdk.MessageNewParams, error) {
	msgs, err := convertMessages(req.Messages)
	if err != nil {
		return anthropicsdk.MessageNewParams{}, err
	}

	maxTokens := int64(req.Options.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	params := anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(req.Model),
		Messages:  msgs,
		MaxTokens: maxTokens,
	}

	if req.SystemPrompt != "" {
		params.System = []anthropicsdk.TextBlockParam{
			{Text: req.SystemPrompt},
		}
	}

	if req.Options.Temperature > 0 {
		params.Temperature = anthropicsdk.Float(req.Options.Temperature)
	}

	return params, nil
}

// convertMessages transforms oracle.Message slices into Anthropic SDK MessageParam slices.
func convertMessages(msgs []oracle.Message) ([]anthropicsdk.MessageParam, error) {
	var result []anthropicsdk.MessageParam

	for _, msg := range msgs {
		switch msg.Role {
		case oracle.RoleUser:
			result = append(result, anthropicsdk.NewUserMessage(
				anthropicsdk.NewTextBlock(msg.Content),
			))
		case oracle.RoleAssistant:
			result = append(result, anthropicsdk.NewAssistantMessage(
				anthropicsdk.NewTextBlock(msg.Content),
			))
		case oracle.RoleSystem:
			// System content rides the top-level system param, not the
			// message list.
			continue
		default:
			return nil, attuneerr.Errorf(attuneerr.CodeOracleRequestInvalid, "anthropic: unsupported message role %q", msg.Role)
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

	var apierr *anthropicsdk.Error
	if errors.As(err, &apierr) {
		code := attuneerr.CodeOracleRequestUnavailable
		transient := apierr.StatusCode == 408 || apierr.StatusCode == 429 || apierr.StatusCode >= 500
		if !transient {
			code = attuneerr.CodeOracleRequestInvalid
		}
		return attuneerr.Wrap(err, code, "anthropic: message request failed",
			attuneerr.FieldBackend("anthropic"),
			attuneerr.FieldModel(model),
			attuneerr.Field("status", apierr.StatusCode),
		)
	}

	return attuneerr.Wrap(err, attuneerr.CodeOracleRequestUnavailable, "anthropic: message transport failure",
		attuneerr.FieldBackend("anthropic"),
		attuneerr.FieldModel(model),
	)
}
