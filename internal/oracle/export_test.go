// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Attune Contributors

package oracle

import "time"

// Delay exposes RetryPolicy.delay for white-box testing.
var Delay = func(p RetryPolicy, attempt int) time.Duration {
	return p.delay(attempt)
}

// IsRetryable exposes retryable for white-box testing.
var IsRetryable = retryable
