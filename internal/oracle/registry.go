// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Attune Contributors

package oracle

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	attuneerr "github.com/attune-dev/attune/pkg/errors"
)

// Registry manages backend registration and routes completion requests.
// It owns the two cross-cutting call policies: the per-call timeout budget
// and the transport retry loop. Backends stay policy-free.
type Registry struct {
	mu       sync.RWMutex
	backends map[string]Oracle

	defaultRef string // "backend/model" format
	timeout    time.Duration
	retry      RetryPolicy
}

// NewRegistry creates an empty Registry. A zero timeout disables the
// per-call budget; callers normally pass the configured oracle.timeout.
func NewRegistry(timeout time.Duration, retry RetryPolicy) *Registry {
	return &Registry{
		backends: make(map[string]Oracle),
		timeout:  timeout,
		retry:    retry,
	}
}

// Register adds a backend to the registry.
func (r *Registry) Register(name string, o Oracle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backends[name] = o
}

// Get retrieves a backend by name.
func (r *Registry) Get(name string) (Oracle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	o, ok := r.backends[name]
	if !ok {
		return nil, attuneerr.New(
			attuneerr.CodeOracleBackendNotFound,
			"oracle backend not found: "+name,
			attuneerr.FieldBackend(name),
		)
	}
	return o, nil
}

// SetDefault sets the default "backend/model" reference used when a request
// does not name a model. The backend portion must already be registered.
func (r *Registry) SetDefault(ref string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	backend, _ := parseRef(ref)
	if _, ok := r.backends[backend]; !ok {
		return attuneerr.New(
			attuneerr.CodeOracleBackendNotFound,
			"SetDefault: backend not registered: "+backend,
			attuneerr.FieldBackend(backend),
		)
	}
	r.defaultRef = ref
	return nil
}

// Complete resolves modelRef (empty or "default" means the configured
// default), applies the timeout budget and retry policy, and calls the
// backend. The request's Model field is overwritten with the resolved model.
func (r *Registry) Complete(ctx context.Context, modelRef string, req CompletionRequest) (string, error) {
	backend, model, err := r.resolve(modelRef)
	if err != nil {
		return "", err
	}
	req.Model = model

	var lastErr error
	for attempt := 0; ; attempt++ {
		text, err := r.completeOnce(ctx, backend, req)
		if err == nil {
			return text, nil
		}
		lastErr = err

		if attempt >= r.retry.MaxRetries || !retryable(err) {
			break
		}
		// The parent ctx governs the backoff wait; each attempt gets a
		// fresh per-call budget inside completeOnce.
		if ctx.Err() != nil {
			break
		}
		delay := r.retry.delay(attempt)
		slog.Warn("oracle call failed, retrying",
			"backend", backend.Name(),
			"model", req.Model,
			"attempt", attempt+1,
			"delay", delay,
			"error", err,
		)
		if err := sleepCtx(ctx, delay); err != nil {
			break
		}
	}
	return "", lastErr
}

// completeOnce runs a single attempt under the per-call timeout budget.
func (r *Registry) completeOnce(ctx context.Context, backend Oracle, req CompletionRequest) (string, error) {
	callCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	text, err := backend.Complete(callCtx, req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || callCtx.Err() == context.DeadlineExceeded {
			return "", attuneerr.Wrap(err, attuneerr.CodeOracleRequestTimeout, "oracle call exceeded timeout budget",
				attuneerr.FieldBackend(backend.Name()),
				attuneerr.FieldModel(req.Model),
				attuneerr.Field("timeout", r.timeout),
			)
		}
		return "", err
	}

	slog.Debug("oracle completion",
		"backend", backend.Name(),
		"model", req.Model,
		"elapsed", time.Since(start),
	)
	return text, nil
}

// Client returns a Completer bound to modelRef, for components that issue
// completions without caring about routing.
func (r *Registry) Client(modelRef string) *Client {
	return &Client{registry: r, ref: modelRef}
}

// Close shuts down all registered backends.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for _, o := range r.backends {
		if err := o.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return attuneerr.Join(errs...)
	}
	return nil
}

// resolve maps a model reference to a registered backend and model name.
// Caller-facing refs use "backend/model"; a bare ref with no slash is
// rejected so misconfigured model names fail loudly instead of silently
// hitting the wrong backend.
func (r *Registry) resolve(modelRef string) (Oracle, string, error) {
	r.mu.RLock()
	ref := r.defaultRef
	r.mu.RUnlock()

	if modelRef != "" && modelRef != "default" {
		if !strings.Contains(modelRef, "/") {
			return nil, "", attuneerr.Errorf(
				attuneerr.CodeOracleInvalidModelRef,
				"model reference %q must use backend/model format", modelRef,
			)
		}
		ref = modelRef
	}
	if ref == "" {
		return nil, "", attuneerr.New(
			attuneerr.CodeOracleBackendNotFound,
			"no default oracle backend configured",
		)
	}

	backendName, model := parseRef(ref)
	backend, err := r.Get(backendName)
	if err != nil {
		return nil, "", err
	}
	return backend, model, nil
}

// Client is a Completer bound to one model reference.
type Client struct {
	registry *Registry
	ref      string
}

var _ Completer = (*Client)(nil)

func (c *Client) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	return c.registry.Complete(ctx, c.ref, req)
}

// parseRef splits a "backend/model" reference on the first "/".
func parseRef(ref string) (backend, model string) {
	idx := strings.Index(ref, "/")
	if idx < 0 {
		return ref, ""
	}
	return ref[:idx], ref[idx+1:]
}
