// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Attune Contributors

//go:build windows

package config

import "log/slog"

// WarnInsecurePermissions is a no-op on Windows, which controls file
// access through ACLs rather than Unix mode bits.
func WarnInsecurePermissions(path string, cfg *Config) {
	if path != "" && cfg != nil && cfg.HoldsPlaintextKey() {
		slog.Debug("config permission check not implemented on Windows", "path", path)
	}
}
