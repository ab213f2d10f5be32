// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Attune Contributors

package agent

// BuildSystemPrompt exposes buildSystemPrompt for white-box testing.
var BuildSystemPrompt = buildSystemPrompt

// Acknowledgment exposes acknowledgment for white-box testing.
var Acknowledgment = acknowledgment
