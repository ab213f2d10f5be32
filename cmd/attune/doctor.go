// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Attune Contributors

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"

	"github.com/attune-dev/attune/internal/config"
	"github.com/attune-dev/attune/internal/secrets"
)

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostics",
		Long:  "Check binary health, configuration, API key resolution, the knowledge store artifacts, and disk space.",
		Args:  cobra.NoArgs,
		RunE:  runDoctor,
	}
}

type check struct {
	name string
	fn   func() string
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	w := cmd.OutOrStdout()

	cfg, cfgPath, cfgErr := loadConfig(cmd)

	checks := []check{
		{"Binary", checkBinary},
		{"Platform", checkPlatform},
		{"Config", func() string { return checkConfig(cfgPath, cfgErr) }},
	}
	if cfgErr == nil {
		keys := secrets.NewKeyringStore(secrets.DefaultService)
		checks = append(checks,
			check{"Oracle Key", func() string { return checkOracleKey(keys, cfg) }},
			check{"Embedding Key", func() string { return checkEmbeddingKey(keys, cfg) }},
			check{"Store", func() string { return checkStore(cfg) }},
			check{"Store Artifacts", func() string { return checkStoreArtifacts(cfg) }},
			check{"Disk Space", func() string { return checkDiskSpace(cfg.Store.Path) }},
		)
	}

	for _, c := range checks {
		if _, err := fmt.Fprintf(w, "%-20s %s\n", c.name+":", c.fn()); err != nil {
			return err
		}
	}

	return nil
}

func checkBinary() string {
	return fmt.Sprintf("attune %s (%s/%s)", version, runtime.GOOS, runtime.GOARCH)
}

func checkPlatform() string {
	return fmt.Sprintf("%s/%s, Go %s", runtime.GOOS, runtime.GOARCH, runtime.Version())
}

func checkConfig(cfgPath string, cfgErr error) string {
	if cfgErr != nil {
		return fmt.Sprintf("error: %s", cfgErr)
	}
	if cfgPath != "" {
		return fmt.Sprintf("loaded from %s", cfgPath)
	}
	return "using defaults (no config file found)"
}

func checkOracleKey(keys secrets.Store, cfg *config.Config) string {
	_, src, err := secrets.ResolveOracleKey(keys, cfg.Oracle.Backend, cfg.Oracle.APIKey)
	if err != nil {
		return fmt.Sprintf("missing for backend %s (run 'attune init' or set ATTUNE_ORACLE_API_KEY)", cfg.Oracle.Backend)
	}
	return fmt.Sprintf("found (from %s)", src)
}

func checkEmbeddingKey(keys secrets.Store, cfg *config.Config) string {
	_, src, err := secrets.ResolveEmbeddingKey(keys, cfg.Embedding.APIKey)
	if err != nil {
		return "missing (set OPENAI_API_KEY or ATTUNE_EMBEDDING_API_KEY)"
	}
	return fmt.Sprintf("found (from %s)", src)
}

// checkStore verifies the store directory exists or can be created, and
// that it is writable.
func checkStore(cfg *config.Config) string {
	if cfg.Store.Backend == "memory" {
		return "in-memory (nothing persisted)"
	}

	dir := filepath.Dir(cfg.Store.Path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Sprintf("cannot create %s: %s", dir, err)
	}
	probe, err := os.CreateTemp(dir, ".attune-doctor-*")
	if err != nil {
		return fmt.Sprintf("%s is not writable: %s", dir, err)
	}
	name := probe.Name()
	_ = probe.Close()
	_ = os.Remove(name)
	return fmt.Sprintf("%s backend at %s", cfg.Store.Backend, cfg.Store.Path)
}

// checkStoreArtifacts looks for a half-written artifact pair, the one
// on-disk state the flat store refuses to load.
func checkStoreArtifacts(cfg *config.Config) string {
	switch cfg.Store.Backend {
	case "flat":
		vec := cfg.Store.Path + ".vec"
		items := cfg.Store.Path + ".items"
		vecInfo, vecErr := os.Stat(vec)
		itemsInfo, itemsErr := os.Stat(items)
		switch {
		case vecErr == nil && itemsErr == nil:
			return fmt.Sprintf("consistent (%s vectors, %s items)",
				formatBytes(uint64(vecInfo.Size())), formatBytes(uint64(itemsInfo.Size())))
		case os.IsNotExist(vecErr) && os.IsNotExist(itemsErr):
			return "empty store (no artifacts yet)"
		case vecErr == nil:
			return fmt.Sprintf("CORRUPT: %s exists but %s is missing (delete %s to reset)", vec, items, vec)
		case itemsErr == nil:
			return fmt.Sprintf("CORRUPT: %s exists but %s is missing (delete %s to reset)", items, vec, items)
		default:
			return fmt.Sprintf("unable to check: %s", vecErr)
		}
	case "sqlite":
		db := cfg.Store.Path + ".db"
		if info, err := os.Stat(db); err == nil {
			return fmt.Sprintf("database %s (%s)", db, formatBytes(uint64(info.Size())))
		}
		return "empty store (no database yet)"
	default:
		return "not applicable"
	}
}

func checkDiskSpace(storePath string) string {
	path := filepath.Dir(storePath)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		// Fall back to home directory if the store dir doesn't exist yet.
		path, _ = os.UserHomeDir()
	}

	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return fmt.Sprintf("unable to check: %s", err)
	}

	availBytes := stat.Bavail * uint64(stat.Bsize)
	return formatBytes(availBytes) + " available"
}

// formatBytes formats a byte count as a human-readable string.
func formatBytes(b uint64) string {
	const (
		gb = 1024 * 1024 * 1024
		mb = 1024 * 1024
	)
	switch {
	case b >= gb:
		return fmt.Sprintf("%.1f GB", float64(b)/float64(gb))
	case b >= mb:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(mb))
	default:
		return fmt.Sprintf("%d bytes", b)
	}
}
