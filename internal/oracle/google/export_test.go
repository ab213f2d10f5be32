// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Attune Contributors

package google

import (
	"google.golang.org/genai"

	"github.com/attune-dev/attune/internal/oracle"
)

// BuildConfig exposes buildConfig for white-box testing.
var BuildConfig = func(req oracle.CompletionRequest) *genai.GenerateContentConfig {
	return buildConfig(req)
}

// ConvertMessages exposes convertMessages for white-box testing.
var ConvertMessages = func(msgs []oracle.Message) ([]*genai.Content, error) {
	return convertMessages(msgs)
}
