// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Attune Contributors

package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/attune-dev/attune/internal/secrets"
	attuneerr "github.com/attune-dev/attune/pkg/errors"
)

// Config is the top-level Attune configuration.
type Config struct {
	Oracle       OracleConfig       `mapstructure:"oracle"`
	Generation   GenerationConfig   `mapstructure:"generation"`
	Conversation ConversationConfig `mapstructure:"conversation"`
	Embedding    EmbeddingConfig    `mapstructure:"embedding"`
	Store        StoreConfig        `mapstructure:"store"`
	Retrieval    RetrievalConfig    `mapstructure:"retrieval"`
}

// OracleConfig selects and tunes the completion backend.
type OracleConfig struct {
	Backend    string        `mapstructure:"backend"`
	BaseURL    string        `mapstructure:"base_url"`
	Model      string        `mapstructure:"model"`
	APIKey     string        `mapstructure:"api_key"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
}

// GenerationConfig tunes reply generation.
type GenerationConfig struct {
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// ConversationConfig controls history and the keyword router.
type ConversationConfig struct {
	MaxHistory   int    `mapstructure:"max_history"`
	Locale       string `mapstructure:"locale"`
	KeywordPacks string `mapstructure:"keyword_packs"`
}

// EmbeddingConfig selects the embedding endpoint and model.
type EmbeddingConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	Model      string `mapstructure:"model"`
	APIKey     string `mapstructure:"api_key"`
	Dimensions int    `mapstructure:"dimensions"`
}

// StoreConfig selects the knowledge store backend and its base path.
type StoreConfig struct {
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"`
}

// RetrievalConfig tunes semantic fact retrieval.
type RetrievalConfig struct {
	K                   int     `mapstructure:"k"`
	SimilarityThreshold float64 `mapstructure:"similarity_threshold"`
}

// Load reads configuration from the given path (or defaults) with
// environment variable overrides (prefix ATTUNE_). The store path has
// a leading ~ expanded to the user's home directory.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("oracle.backend", "openai")
	v.SetDefault("oracle.base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("oracle.model", "llama-3.1-8b-instant")
	v.SetDefault("oracle.api_key", "")
	v.SetDefault("oracle.timeout", "30s")
	v.SetDefault("oracle.max_retries", 2)
	v.SetDefault("generation.temperature", 0.7)
	v.SetDefault("generation.max_tokens", 1024)
	v.SetDefault("conversation.max_history", 10)
	v.SetDefault("conversation.locale", "en")
	v.SetDefault("conversation.keyword_packs", "")
	v.SetDefault("embedding.base_url", "https://api.openai.com/v1")
	v.SetDefault("embedding.model", "text-embedding-3-small")
	v.SetDefault("embedding.api_key", "")
	v.SetDefault("embedding.dimensions", 1536)
	v.SetDefault("store.backend", "flat")
	v.SetDefault("store.path", "~/.attune/knowledge")
	v.SetDefault("retrieval.k", 3)
	v.SetDefault("retrieval.similarity_threshold", 0.75)

	// Environment
	v.SetEnvPrefix("ATTUNE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// File
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var parseErr viper.ConfigParseError
			if errors.As(err, &parseErr) {
				return nil, attuneerr.Wrap(err, attuneerr.CodeConfigParseInvalidFormat, "config: parsing config file",
					attuneerr.FieldPath(path),
				)
			}
			return nil, attuneerr.Wrap(err, attuneerr.CodeConfigLoadReadFailure, "config: reading config file",
				attuneerr.FieldPath(path),
			)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, attuneerr.Wrap(err, attuneerr.CodeConfigParseInvalidFormat, "config: unmarshalling config")
	}

	expanded, err := expandHome(cfg.Store.Path)
	if err != nil {
		return nil, attuneerr.Wrap(err, attuneerr.CodeConfigLoadReadFailure, "config: expanding store path")
	}
	cfg.Store.Path = expanded

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, attuneerr.Wrap(errors.Join(errs...), attuneerr.CodeConfigValidateInvalidValue, "config: validating config")
	}

	return &cfg, nil
}

// Validate checks the configuration for logical errors. It returns a
// slice of all validation errors found, collecting all issues rather
// than stopping at the first one.
func (c *Config) Validate() []error {
	var errs []error

	errs = append(errs, c.validateOracle()...)
	errs = append(errs, c.validateGeneration()...)
	errs = append(errs, c.validateConversation()...)
	errs = append(errs, c.validateEmbedding()...)
	errs = append(errs, c.validateStore()...)
	errs = append(errs, c.validateRetrieval()...)

	return errs
}

func (c *Config) validateOracle() []error {
	var errs []error

	validBackends := map[string]bool{"openai": true, "anthropic": true, "google": true}
	if !validBackends[c.Oracle.Backend] {
		errs = append(errs, attuneerr.Errorf(attuneerr.CodeConfigValidateInvalidValue,
			"config: oracle.backend must be one of [openai, anthropic, google], got %q",
			c.Oracle.Backend,
		))
	}

	if c.Oracle.Model == "" {
		errs = append(errs, attuneerr.Errorf(attuneerr.CodeConfigValidateInvalidValue,
			"config: oracle.model must not be empty"))
	}

	if c.Oracle.Timeout <= 0 {
		errs = append(errs, attuneerr.Errorf(attuneerr.CodeConfigValidateInvalidValue,
			"config: oracle.timeout must be greater than 0, got %s",
			c.Oracle.Timeout,
		))
	}

	if c.Oracle.MaxRetries < 0 {
		errs = append(errs, attuneerr.Errorf(attuneerr.CodeConfigValidateInvalidValue,
			"config: oracle.max_retries must not be negative, got %d",
			c.Oracle.MaxRetries,
		))
	}

	return errs
}

func (c *Config) validateGeneration() []error {
	var errs []error

	if c.Generation.Temperature < 0 || c.Generation.Temperature > 2 {
		errs = append(errs, attuneerr.Errorf(attuneerr.CodeConfigValidateInvalidValue,
			"config: generation.temperature must be between 0 and 2, got %g",
			c.Generation.Temperature,
		))
	}

	if c.Generation.MaxTokens <= 0 {
		errs = append(errs, attuneerr.Errorf(attuneerr.CodeConfigValidateInvalidValue,
			"config: generation.max_tokens must be greater than 0, got %d",
			c.Generation.MaxTokens,
		))
	}

	return errs
}

func (c *Config) validateConversation() []error {
	var errs []error

	if c.Conversation.MaxHistory <= 0 {
		errs = append(errs, attuneerr.Errorf(attuneerr.CodeConfigValidateInvalidValue,
			"config: conversation.max_history must be greater than 0, got %d",
			c.Conversation.MaxHistory,
		))
	}

	if c.Conversation.Locale == "" {
		errs = append(errs, attuneerr.Errorf(attuneerr.CodeConfigValidateInvalidValue,
			"config: conversation.locale must not be empty"))
	}

	return errs
}

func (c *Config) validateEmbedding() []error {
	var errs []error

	if c.Embedding.Model == "" {
		errs = append(errs, attuneerr.Errorf(attuneerr.CodeConfigValidateInvalidValue,
			"config: embedding.model must not be empty"))
	}

	if c.Embedding.Dimensions <= 0 {
		errs = append(errs, attuneerr.Errorf(attuneerr.CodeConfigValidateInvalidValue,
			"config: embedding.dimensions must be greater than 0, got %d",
			c.Embedding.Dimensions,
		))
	}

	return errs
}

func (c *Config) validateStore() []error {
	var errs []error

	validBackends := map[string]bool{"flat": true, "sqlite": true, "memory": true}
	if !validBackends[c.Store.Backend] {
		errs = append(errs, attuneerr.Errorf(attuneerr.CodeConfigValidateInvalidValue,
			"config: store.backend must be one of [flat, sqlite, memory], got %q",
			c.Store.Backend,
		))
	}

	if c.Store.Backend != "memory" && c.Store.Path == "" {
		errs = append(errs, attuneerr.Errorf(attuneerr.CodeConfigValidateInvalidValue,
			"config: store.path must not be empty for backend %q",
			c.Store.Backend,
		))
	}

	return errs
}

func (c *Config) validateRetrieval() []error {
	var errs []error

	if c.Retrieval.K <= 0 {
		errs = append(errs, attuneerr.Errorf(attuneerr.CodeConfigValidateInvalidValue,
			"config: retrieval.k must be greater than 0, got %d",
			c.Retrieval.K,
		))
	}

	if c.Retrieval.SimilarityThreshold <= 0 || c.Retrieval.SimilarityThreshold >= 1 {
		errs = append(errs, attuneerr.Errorf(attuneerr.CodeConfigValidateInvalidValue,
			"config: retrieval.similarity_threshold must be between 0 and 1 exclusive, got %g",
			c.Retrieval.SimilarityThreshold,
		))
	}

	return errs
}

// HoldsPlaintextKey reports whether any API key is stored inline in the
// configuration. Empty values and keyring: references do not count;
// those keep the secret out of the file.
func (c *Config) HoldsPlaintextKey() bool {
	for _, v := range []string{c.Oracle.APIKey, c.Embedding.APIKey} {
		if v != "" && !secrets.IsReference(v) {
			return true
		}
	}
	return false
}

// expandHome resolves a leading ~/ in path against the user's home
// directory. A bare ~ resolves to the home directory itself.
func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	if path == "~" {
		return home, nil
	}
	return filepath.Join(home, path[2:]), nil
}
