// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Attune Contributors

package openai

import (
	openaisdk "github.com/openai/openai-go"

	"github.com/attune-dev/attune/internal/oracle"
)

// BuildParams exposes buildParams for white-box testing.
var BuildParams = func(req oracle.CompletionRequest) (openaisdk.ChatCompletionNewParams, error) {
	return buildParams(req)
}

// ConvertMessages exposes convertMessages for white-box testing.
var ConvertMessages = func(msgs []oracle.Message, systemPrompt string) ([]openaisdk.ChatCompletionMessageParamUnion, error) {
	return convertMessages(msgs, systemPrompt)
}
