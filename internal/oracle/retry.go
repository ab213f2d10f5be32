// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Attune Contributors

package oracle

import (
	"context"
	"errors"
	"strings"
	"time"

	attuneerr "github.com/attune-dev/attune/pkg/errors"
)

// RetryPolicy bounds how transport failures are retried: 3 attempts total
// by default with exponential backoff, aborted early on context
// cancellation.
type RetryPolicy struct {
	MaxRetries int           // retries after the first attempt
	BaseDelay  time.Duration // delay before the first retry
	MaxDelay   time.Duration // backoff ceiling
}

// DefaultRetryPolicy returns the standard policy: 2 retries, 500ms base,
// 30s cap.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 2,
		BaseDelay:  500 * time.Millisecond,
		MaxDelay:   30 * time.Second,
	}
}

// delay returns the backoff delay before retry attempt n (0-based).
func (p RetryPolicy) delay(attempt int) time.Duration {
	d := p.BaseDelay
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// retryable reports whether err is a transport-level failure worth another
// attempt. Coded errors answer via their taxonomy; raw SDK errors are
// sniffed for rate-limit and server-failure markers. Parse failures are
// never retried; repeating the call cannot fix malformed output.
func retryable(err error) bool {
	if err == nil {
		return false
	}
	if attuneerr.IsParseFailure(err) {
		return false
	}
	if attuneerr.Retryable(err) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"429", "500", "502", "503", "504",
		"rate limit", "overloaded", "timeout",
		"connection reset", "connection refused", "eof",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// sleepCtx waits for d or until ctx is done, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
