// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Attune Contributors

//go:build !windows

package config

import (
	"io/fs"
	"log/slog"
	"os"
)

// readableByOthers matches the group-read and world-read mode bits.
const readableByOthers fs.FileMode = 0o044

// WarnInsecurePermissions warns when the config file at path is group-
// or world-readable while holding a plaintext API key. Keys resolved
// from the environment or the keyring never appear in the file, so a
// loose mode on a keyless file stays quiet. The check never fails
// startup.
func WarnInsecurePermissions(path string, cfg *Config) {
	if path == "" || cfg == nil || !cfg.HoldsPlaintextKey() {
		return
	}

	info, err := os.Stat(path)
	if err != nil {
		slog.Debug("could not stat config file for permission check", "path", path, "error", err)
		return
	}

	if info.Mode().Perm()&readableByOthers != 0 {
		slog.Warn(
			"config file has insecure permissions, API keys may be exposed to other users",
			"path", path,
			"mode", info.Mode(),
			"recommended", "0600",
		)
	}
}
