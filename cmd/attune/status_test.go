// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Attune Contributors

package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runStatusWithConfig(t *testing.T, cfgPath string) string {
	t.Helper()
	root := NewRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetArgs([]string{"status", "--config", cfgPath})
	require.NoError(t, root.Execute())
	return buf.String()
}

func TestStatus_ShowsConfiguration(t *testing.T) {
	clearKeyEnv(t)
	cfgPath := writeTestConfig(t, t.TempDir(), "")

	output := runStatusWithConfig(t, cfgPath)
	assert.Contains(t, output, "Config:")
	assert.Contains(t, output, cfgPath)
	assert.Contains(t, output, "openai/llama-3.1-8b-instant")
	assert.Contains(t, output, "flat")
}

func TestStatus_MissingKeys(t *testing.T) {
	clearKeyEnv(t)
	cfgPath := writeTestConfig(t, t.TempDir(), "")

	output := runStatusWithConfig(t, cfgPath)
	assert.Contains(t, output, "not found (run attune init)")
	assert.Contains(t, output, "unavailable (no embedding API key)")
}

func TestStatus_CountsWithMemoryBackend(t *testing.T) {
	clearKeyEnv(t)
	setTestKeys(t)
	cfgPath := writeTestConfig(t, t.TempDir(), "  backend: memory\n")

	output := runStatusWithConfig(t, cfgPath)
	assert.Contains(t, output, "configured (from environment)")
	assert.Contains(t, output, "0 validated fact(s)")
	assert.Contains(t, output, "0 preference update(s)")
}
