// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Attune Contributors

// Package google implements the oracle interface using the Google Gemini API.
package google

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/genai"

	"github.com/attune-dev/attune/internal/oracle"
	attuneerr "github.com/attune-dev/attune/pkg/errors"
)

// Config holds Google backend configuration.
type Config struct {
	APIKey string
}

// Oracle implements oracle.Oracle using the Google Gemini API.
type Oracle struct {
	client *genai.Client
	config Config
}

var _ oracle.Oracle = (*Oracle)(nil)

// New creates a Google backend. Returns an error if the API key is missing.
func New(cfg Config) (*Oracle, error) {
	if cfg.APIKey == "" {
		return nil, attuneerr.New(attuneerr.CodeOracleRequestInvalid, "google: missing api_key in config", attuneerr.FieldBackend("google"))
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, attuneerr.Wrapf(err, attuneerr.CodeOracleRequestUnavailable, "google: creating client")
	}

	return &Oracle{
		client: client,
		config: cfg,
	}, nil
}

func (o *Oracle) Name() string { return "google" }

func (o *Oracle) Complete(ctx context.Context, req oracle.CompletionRequest) (string, error) {
	contents, err := convertMessages(req.Messages)
	if err != nil {
		return "", err
	}

	resp, err := o.client.Models.GenerateContent(ctx, req.Model, contents, buildConfig(req))
	if err != nil {
		return "", classify(err, req.Model)
	}

	var sb strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			sb.WriteString(part.Text)
		}
		// Only the first candidate is surfaced.
		break
	}
	if sb.Len() == 0 {
		return "", attuneerr.New(attuneerr.CodeOracleResponseInvalid, "google: response contained no text parts",
			attuneerr.FieldBackend("google"),
			attuneerr.FieldModel(req.Model),
		)
	}
	return sb.String(), nil
}

func (o *Oracle) Close() error { return nil }

// buildConfig converts an oracle.CompletionRequest into a genai.GenerateContentConfig.
func buildConfig(req oracle.CompletionRequest) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}

	if req.Options.Temperature > 0 {
		cfg.Temperature = genai.Ptr(float32(req.Options.Temperature))
	}

	if req.Options.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.Options.MaxTokens)
	}

	if req.SystemPrompt != "" {
		cfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{
				{Text: req.SystemPrompt},
			},
		}
	}

	return cfg
}

// convertMessages transforms oracle.Message slices into genai.Content slices.
// The Gemini API names the assistant role "model"; system content rides
// SystemInstruction in the config instead of the content list.
func convertMessages(msgs []oracle.Message) ([]*genai.Content, error) {
	var result []*genai.Content

	for _, msg := range msgs {
		switch msg.Role {
		case oracle.RoleUser:
			result = append(result, &genai.Content{
				Role: "user",
				Parts: []*genai.Part{
					{Text: msg.Content},
				},
			})
		case oracle.RoleAssistant:
			result = append(result, &genai.Content{
				Role: "model",
				Parts: []*genai.Part{
					{Text: msg.Content},
				},
			})
		case oracle.RoleSystem:
			continue
		default:
			return nil, attuneerr.Errorf(attuneerr.CodeOracleRequestInvalid, "google: unsupported message role %q", msg.Role)
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

	var apierr genai.APIError
	if errors.As(err, &apierr) {
		code := attuneerr.CodeOracleRequestUnavailable
		transient := apierr.Code == 408 || apierr.Code == 429 || apierr.Code >= 500
		if !transient {
			code = attuneerr.CodeOracleRequestInvalid
		}
		return attuneerr.Wrap(err, code, "google: generate content failed",
			attuneerr.FieldBackend("google"),
			attuneerr.FieldModel(model),
			attuneerr.Field("status", apierr.Code),
		)
	}

	return attuneerr.Wrap(err, attuneerr.CodeOracleRequestUnavailable, "google: generate content transport failure",
		attuneerr.FieldBackend("google"),
		attuneerr.FieldModel(model),
	)
}
