// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Attune Contributors

package secrets

import (
	"log/slog"
	"os"
	"strings"

	attuneerr "github.com/attune-dev/attune/pkg/errors"
)

// referencePrefix marks a config value that names a keyring entry
// instead of holding the secret inline.
const referencePrefix = "keyring:"

// Keyring entry names for the two API keys Attune manages. The oracle
// key is stored under the backend name so switching backends keeps
// previously entered keys around.
const EmbeddingKeyName = "embedding"

// Source identifies where a resolved API key came from.
type Source string

const (
	SourceEnvironment Source = "environment"
	SourceKeyring     Source = "keyring"
	SourceConfig      Source = "config"
)

// oracleEnvVars lists the conventional provider environment variables
// consulted per oracle backend, most specific first.
var oracleEnvVars = map[string][]string{
	"openai":    {"GROQ_API_KEY", "OPENAI_API_KEY"},
	"anthropic": {"ANTHROPIC_API_KEY"},
	"google":    {"GEMINI_API_KEY"},
}

// IsReference reports whether value uses the keyring: reference syntax.
func IsReference(value string) bool {
	return strings.HasPrefix(value, referencePrefix)
}

// ResolveReference resolves a keyring:<name> reference to its secret
// value. Values without the prefix pass through unchanged.
func ResolveReference(store Store, value string) (string, error) {
	if !IsReference(value) {
		return value, nil
	}

	name := strings.TrimPrefix(value, referencePrefix)
	if name == "" {
		return "", attuneerr.New(attuneerr.CodeSecretsInvalidInput,
			"secrets: keyring reference is missing an entry name")
	}
	if store == nil {
		return "", attuneerr.New(attuneerr.CodeSecretsBackendFailure,
			"secrets: no keyring store available to resolve reference",
			attuneerr.Field("reference", value),
		)
	}

	secret, err := store.Retrieve(name)
	if err != nil {
		return "", attuneerr.With(err, attuneerr.Field("reference", value))
	}
	return secret, nil
}

// ResolveOracleKey returns the API key for the given oracle backend.
// Sources are consulted in order: the ATTUNE_ORACLE_API_KEY environment
// variable, the conventional provider variables for the backend, the
// system keyring (entry named after the backend), and finally the
// config value, which may itself be a keyring: reference.
func ResolveOracleKey(store Store, backend, configValue string) (string, Source, error) {
	envVars := append([]string{"ATTUNE_ORACLE_API_KEY"}, oracleEnvVars[backend]...)
	return resolveChain(store, envVars, backend, configValue)
}

// ResolveEmbeddingKey returns the API key for the embedding endpoint,
// following the same chain with ATTUNE_EMBEDDING_API_KEY, then
// OPENAI_API_KEY, then the keyring "embedding" entry, then the config
// value.
func ResolveEmbeddingKey(store Store, configValue string) (string, Source, error) {
	envVars := []string{"ATTUNE_EMBEDDING_API_KEY", "OPENAI_API_KEY"}
	return resolveChain(store, envVars, EmbeddingKeyName, configValue)
}

func resolveChain(store Store, envVars []string, keyringKey, configValue string) (string, Source, error) {
	for _, name := range envVars {
		if val := os.Getenv(name); val != "" {
			return val, SourceEnvironment, nil
		}
	}

	if store != nil {
		val, err := store.Retrieve(keyringKey)
		switch {
		case err == nil && val != "":
			return val, SourceKeyring, nil
		case err != nil && !attuneerr.IsNotFound(err):
			// A broken keyring (no D-Bus session, locked keychain) must
			// not block resolution through the config file.
			slog.Debug("keyring lookup failed", "key", keyringKey, "error", err)
		}
	}

	if configValue != "" {
		resolved, err := ResolveReference(store, configValue)
		if err != nil {
			return "", "", err
		}
		return resolved, SourceConfig, nil
	}

	return "", "", attuneerr.New(attuneerr.CodeSecretsKeyNotFound, "secrets: no API key found",
		attuneerr.Field("keyring_key", keyringKey),
	)
}
