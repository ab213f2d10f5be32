// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Attune Contributors

package config

import (
	_ "embed"
	"log/slog"
	"os"
	"path/filepath"

	attuneerr "github.com/attune-dev/attune/pkg/errors"
)

// DefaultConfigYAML is the commented configuration written on first run.
//
//go:embed attune.yaml.default
var DefaultConfigYAML []byte

// DefaultConfigPath returns ~/.config/attune/attune.yaml.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", attuneerr.Wrap(err, attuneerr.CodeConfigLoadReadFailure, "config: resolving home directory")
	}
	return filepath.Join(home, ".config", "attune", "attune.yaml"), nil
}

// DiscoverPath returns the config file to load when no explicit path
// was given: the default path when the file exists, otherwise a freshly
// bootstrapped default config. An empty string means running on
// built-in defaults; bootstrap failures are logged, never fatal.
func DiscoverPath() string {
	path, err := DefaultConfigPath()
	if err != nil {
		slog.Debug("cannot resolve default config path", "error", err)
		return ""
	}
	if _, err := os.Stat(path); err == nil {
		return path
	}
	return bootstrap(path)
}

// bootstrap writes the commented default config to path on first run.
func bootstrap(path string) string {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		slog.Debug("skipping config bootstrap", "path", path, "error", err)
		return ""
	}
	if err := os.WriteFile(path, DefaultConfigYAML, 0o600); err != nil {
		slog.Debug("skipping config bootstrap", "path", path, "error", err)
		return ""
	}

	slog.Info("created default config", "path", path)
	return path
}
