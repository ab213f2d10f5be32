// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Attune Contributors

package anthropic

import (
	anthropicsdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/attune-dev/attune/internal/oracle"
)

// BuildParams exposes buildParams for white-box testing.
var BuildParams = func(req oracle.CompletionRequest) (anthropicsdk.MessageNewParams, error) {
	return buildParams(req)
}

// ConvertMessages exposes convertMessages for white-box testing.
var ConvertMessages = func(msgs []oracle.Message) ([]anthropicsdk.MessageParam, error) {
	return convertMessages(msgs)
}
