// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Attune Contributors

// Package embedding wraps the external text→vector service behind a small
// interface. The service is a black box to the rest of the system; the only
// contract is a fixed output dimensionality for the process lifetime.
package embedding

import (
	"context"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"

	attuneerr "github.com/attune-dev/attune/pkg/errors"
)

// Embedder converts text into a fixed-dimension vector.
type Embedder interface {
	// Embed returns the embedding for text. The returned slice always has
	// exactly Dims() elements on success.
	Embed(ctx context.Context, text string) ([]float32, error)
	// Dims returns the configured vector dimensionality.
	Dims() int
}

// Config holds embedding client configuration.
type Config struct {
	APIKey     string
	BaseURL    string // optional, any OpenAI-compatible endpoint
	Model      string
	Dimensions int
}

// OpenAIEmbedder implements Embedder using the OpenAI embeddings API (or any
// compatible endpoint via Config.BaseURL).
type OpenAIEmbedder struct {
	client openaisdk.Client
	model  string
	dims   int
}

var _ Embedder = (*OpenAIEmbedder)(nil)

// NewOpenAI creates an embedding client. Returns an error if the API key is
// missing or the dimensionality is not positive.
func NewOpenAI(cfg Config) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, attuneerr.New(attuneerr.CodeConfigValidateInvalidValue, "embedding: missing api key")
	}
	if cfg.Dimensions <= 0 {
		return nil, attuneerr.New(attuneerr.CodeConfigValidateInvalidValue, "embedding: dimensions must be positive",
			attuneerr.Field("dimensions", cfg.Dimensions))
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIEmbedder{
		client: openaisdk.NewClient(opts...),
		model:  cfg.Model,
		dims:   cfg.Dimensions,
	}, nil
}

func (e *OpenAIEmbedder) Dims() int { return e.dims }

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, attuneerr.New(attuneerr.CodeStoreInvalidInput, "embedding: empty text")
	}

	resp, err := e.client.Embeddings.New(ctx, openaisdk.EmbeddingNewParams{
		Input: openaisdk.EmbeddingNewParamsInputUnion{
			OfString: param.NewOpt(text),
		},
		Model:      openaisdk.EmbeddingModel(e.model),
		Dimensions: param.NewOpt(int64(e.dims)),
	})
	if err != nil {
		return nil, attuneerr.Wrap(err, attuneerr.CodeEmbeddingServiceUnavailable, "embedding request failed",
			attuneerr.FieldModel(e.model))
	}

	if len(resp.Data) == 0 {
		return nil, attuneerr.New(attuneerr.CodeEmbeddingResponseInvalid, "embedding response contained no vectors",
			attuneerr.FieldModel(e.model))
	}

	raw := resp.Data[0].Embedding
	if len(raw) != e.dims {
		return nil, attuneerr.New(attuneerr.CodeEmbeddingResponseInvalid, "embedding dimensionality mismatch",
			attuneerr.FieldModel(e.model),
			attuneerr.Field("want", e.dims),
			attuneerr.Field("got", len(raw)),
		)
	}

	vec := make([]float32, len(raw))
	for i, v := range raw {
		vec[i] = float32(v)
	}
	return vec, nil
}
