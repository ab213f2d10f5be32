// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Attune Contributors

package oracle_test

import (
	"context"
	"sync"

	"github.com/attune-dev/attune/internal/oracle"
)

// mockOracle is a scriptable Oracle for registry tests.
type mockOracle struct {
	name string

	mu     sync.Mutex
	calls  int
	closed bool

	respond func(ctx context.Context, req oracle.CompletionRequest) (string, error)
}

// newMockOracle returns a backend that always answers with reply.
func newMockOracle(name, reply string) *mockOracle {
	return &mockOracle{
		name: name,
		respond: func(context.Context, oracle.CompletionRequest) (string, error) {
			return reply, nil
		},
	}
}

// newMockOracleError returns a backend that always fails with err.
func newMockOracleError(name string, err error) *mockOracle {
	return &mockOracle{
		name: name,
		respond: func(context.Context, oracle.CompletionRequest) (string, error) {
			return "", err
		},
	}
}

// newMockOracleScript returns a backend driven by fn, which sees the
// per-attempt context and the resolved request.
func newMockOracleScript(name string, fn func(ctx context.Context, req oracle.CompletionRequest) (string, error)) *mockOracle {
	return &mockOracle{name: name, respond: fn}
}

func (m *mockOracle) Name() string { return m.name }

func (m *mockOracle) Complete(ctx context.Context, req oracle.CompletionRequest) (string, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	return m.respond(ctx, req)
}

func (m *mockOracle) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockOracle) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *mockOracle) wasClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
