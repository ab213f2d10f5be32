// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Attune Contributors

package main

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attune-dev/attune/internal/agent"
	"github.com/attune-dev/attune/internal/config"
	"github.com/attune-dev/attune/internal/knowledge"
	"github.com/attune-dev/attune/internal/oracle"
	"github.com/attune-dev/attune/internal/store"
	attuneerr "github.com/attune-dev/attune/pkg/errors"
)

// stubStore is an in-memory store.Store with no vector search; Search
// always comes back empty, which exercises the ungrounded reply path.
type stubStore struct {
	mu    sync.Mutex
	items []store.Item
}

func (s *stubStore) Insert(_ context.Context, text string, meta store.Metadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, store.Item{
		ID:       fmt.Sprintf("item-%d", len(s.items)),
		Text:     text,
		Metadata: meta,
	})
	return nil
}

func (s *stubStore) Search(context.Context, string, int) ([]store.Match, error) {
	return nil, nil
}

func (s *stubStore) DeleteWhere(_ context.Context, pred func(store.Metadata) bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.items[:0]
	for _, it := range s.items {
		if !pred(it.Metadata) {
			kept = append(kept, it)
		}
	}
	s.items = kept
	return nil
}

func (s *stubStore) Count(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items), nil
}

func (s *stubStore) CountWhere(_ context.Context, pred func(store.Metadata) bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, it := range s.items {
		if pred(it.Metadata) {
			n++
		}
	}
	return n, nil
}

func (s *stubStore) Close() error { return nil }

// scriptedOracle answers every completion with the same text. The
// learning stages cannot parse it and degrade to learning nothing, so
// the text surfaces as the generated reply.
type scriptedOracle struct{ reply string }

func (o *scriptedOracle) Complete(context.Context, oracle.CompletionRequest) (string, error) {
	return o.reply, nil
}

func newTestApp(t *testing.T, reply string) *App {
	t.Helper()

	st := &stubStore{}
	base, err := knowledge.NewBase(knowledge.Config{Store: st})
	require.NoError(t, err)

	completer := &scriptedOracle{reply: reply}
	loop := agent.NewLoop(agent.LoopConfig{
		Base:        base,
		Validator:   knowledge.NewValidator(completer, base),
		Oracle:      completer,
		Temperature: 0.7,
	})

	cfg := &config.Config{}
	cfg.Oracle.Backend = "openai"
	cfg.Oracle.Model = "llama-3.1-8b-instant"

	return &App{
		Config:     cfg,
		Store:      st,
		Base:       base,
		Loop:       loop,
		Dispatcher: agent.NewDispatcher(agent.NewRouter("en"), loop),
	}
}

func TestRunREPL_QuitImmediately(t *testing.T) {
	app := newTestApp(t, "unused")
	out := new(bytes.Buffer)

	err := runREPL(context.Background(), strings.NewReader("/quit\n"), out, app)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "ready")
}

func TestRunREPL_EOFEndsSession(t *testing.T) {
	app := newTestApp(t, "unused")
	out := new(bytes.Buffer)

	err := runREPL(context.Background(), strings.NewReader(""), out, app)
	require.NoError(t, err)
}

func TestRunREPL_ChatTurn(t *testing.T) {
	app := newTestApp(t, "Hello there, how can I help?")
	out := new(bytes.Buffer)

	err := runREPL(context.Background(), strings.NewReader("hi\n/quit\n"), out, app)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "attune> Hello there, how can I help?")
}

func TestRunREPL_SkipsBlankLines(t *testing.T) {
	app := newTestApp(t, "reply")
	out := new(bytes.Buffer)

	err := runREPL(context.Background(), strings.NewReader("\n   \n/quit\n"), out, app)
	require.NoError(t, err)
	assert.NotContains(t, out.String(), "attune>")
}

func TestRunREPL_UnknownMetaCommandReportsError(t *testing.T) {
	app := newTestApp(t, "unused")
	out := new(bytes.Buffer)

	err := runREPL(context.Background(), strings.NewReader("/bogus\n/quit\n"), out, app)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "error:")
	assert.Contains(t, out.String(), "unknown command")
}

func TestRunMetaCommand_Quit(t *testing.T) {
	app := newTestApp(t, "unused")
	for _, cmd := range []string{"/quit", "/exit"} {
		quit, err := runMetaCommand(context.Background(), new(bytes.Buffer), app, cmd)
		require.NoError(t, err)
		assert.True(t, quit)
	}
}

func TestRunMetaCommand_Facts(t *testing.T) {
	app := newTestApp(t, "unused")
	ctx := context.Background()

	added, err := app.Base.AddFact(ctx, "The capital of Brazil is Brasília", true, knowledge.SourceUser)
	require.NoError(t, err)
	require.True(t, added)

	out := new(bytes.Buffer)
	quit, err := runMetaCommand(ctx, out, app, "/facts")
	require.NoError(t, err)
	assert.False(t, quit)
	assert.Contains(t, out.String(), "1 validated fact(s)")
}

func TestRunMetaCommand_PrefsEmpty(t *testing.T) {
	app := newTestApp(t, "unused")
	out := new(bytes.Buffer)

	_, err := runMetaCommand(context.Background(), out, app, "/prefs")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "No preferences learned")
}

func TestRunMetaCommand_PrefsSorted(t *testing.T) {
	app := newTestApp(t, "unused")
	ctx := context.Background()
	require.NoError(t, app.Base.AddPreference(ctx, "verbosity", "concise"))
	require.NoError(t, app.Base.AddPreference(ctx, "tone", "formal"))

	out := new(bytes.Buffer)
	_, err := runMetaCommand(ctx, out, app, "/prefs")
	require.NoError(t, err)

	text := out.String()
	assert.Contains(t, text, "tone: formal")
	assert.Contains(t, text, "verbosity: concise")
	assert.Less(t, strings.Index(text, "tone"), strings.Index(text, "verbosity"))
}

func TestRunMetaCommand_Temp(t *testing.T) {
	app := newTestApp(t, "unused")
	out := new(bytes.Buffer)

	_, err := runMetaCommand(context.Background(), out, app, "/temp 0.2")
	require.NoError(t, err)
	assert.InDelta(t, 0.2, app.Loop.Temperature(), 1e-9)
	assert.Contains(t, out.String(), "0.20")
}

func TestRunMetaCommand_TempRejectsBadValues(t *testing.T) {
	app := newTestApp(t, "unused")

	for _, line := range []string{"/temp", "/temp abc", "/temp 2.5", "/temp -1", "/temp 0.5 extra"} {
		_, err := runMetaCommand(context.Background(), new(bytes.Buffer), app, line)
		require.Error(t, err, "line %q should be rejected", line)
		assert.True(t, attuneerr.HasCode(err, attuneerr.CodeCLIInputInvalid))
	}
	assert.InDelta(t, 0.7, app.Loop.Temperature(), 1e-9, "temperature must be unchanged after rejected input")
}

func TestRunMetaCommand_Clear(t *testing.T) {
	app := newTestApp(t, "a reply")
	ctx := context.Background()

	_, err := app.Dispatcher.Handle(ctx, "hello")
	require.NoError(t, err)
	require.NotEmpty(t, app.Loop.History())

	out := new(bytes.Buffer)
	_, err = runMetaCommand(ctx, out, app, "/clear")
	require.NoError(t, err)
	assert.Empty(t, app.Loop.History())
	assert.Contains(t, out.String(), "cleared")
}
