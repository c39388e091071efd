package fallback

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"friday/pkg/api"
)

type mapLookup map[string]api.Capability

func (m mapLookup) Get(name string) (api.Capability, bool) {
	c, ok := m[name]
	return c, ok
}

// scriptedExecutor returns a fixed outcome per capability and records calls.
type scriptedExecutor struct {
	outcomes map[string]api.Outcome
	calls    []string
}

func (s *scriptedExecutor) Execute(_ context.Context, name string, _ api.Args, _ time.Duration) api.Outcome {
	s.calls = append(s.calls, name)
	return s.outcomes[name]
}

var question = []api.Param{{Name: "question", Type: api.ParamString, Required: true}}

func providers(names ...string) mapLookup {
	m := mapLookup{}
	for _, n := range names {
		m[n] = api.Capability{Name: n, Params: question, Effect: api.EffectNetwork}
	}
	return m
}

func chainOf(t *testing.T, names ...string) Chain {
	t.Helper()
	c, err := NewChain(providers(names...), "ask_ai", "Answer a question", names...)
	require.NoError(t, err)
	return c
}

func TestNewChain_SchemaMismatch(t *testing.T) {
	lookup := providers("a")
	lookup["b"] = api.Capability{Name: "b", Params: []api.Param{{Name: "prompt", Type: api.ParamString, Required: true}}}

	_, err := NewChain(lookup, "ask_ai", "", "a", "b")
	assert.ErrorContains(t, err, "schema differs")
}

func TestNewChain_UnknownProvider(t *testing.T) {
	_, err := NewChain(providers("a"), "ask_ai", "", "a", "ghost")
	assert.ErrorContains(t, err, "not registered")
}

func TestResolve_FirstSuccessWins(t *testing.T) {
	exec := &scriptedExecutor{outcomes: map[string]api.Outcome{
		"a": api.Fail("a", api.KindExternalUnavailable, "a is down"),
		"b": api.Succeed("b", api.Result{Text: "answer from b"}),
		"c": api.Succeed("c", api.Result{Text: "answer from c"}),
	}}

	out := NewResolver(exec).Resolve(context.Background(), chainOf(t, "a", "b", "c"), api.Args{"question": "hi"})

	require.True(t, out.OK)
	assert.Equal(t, "answer from b", out.Text)
	assert.Equal(t, []string{"a", "b"}, exec.calls)
	assert.Equal(t, 2, out.Attempts)
}

func TestResolve_TimeoutMovesOn(t *testing.T) {
	exec := &scriptedExecutor{outcomes: map[string]api.Outcome{
		"a": api.Fail("a", api.KindTimeout, "timed out"),
		"b": api.Succeed("b", api.Result{Text: "ok"}),
	}}

	out := NewResolver(exec).Resolve(context.Background(), chainOf(t, "a", "b"), api.Args{})
	assert.True(t, out.OK)
}

func TestResolve_InvalidArgumentStopsImmediately(t *testing.T) {
	exec := &scriptedExecutor{outcomes: map[string]api.Outcome{
		"a": api.Fail("a", api.KindInvalidArgument, "question is required"),
		"b": api.Succeed("b", api.Result{Text: "never"}),
	}}

	out := NewResolver(exec).Resolve(context.Background(), chainOf(t, "a", "b"), api.Args{})

	assert.False(t, out.OK)
	assert.Equal(t, api.KindInvalidArgument, out.Kind())
	assert.Equal(t, []string{"a"}, exec.calls)
}

func TestResolve_AllFail(t *testing.T) {
	exec := &scriptedExecutor{outcomes: map[string]api.Outcome{
		"a": api.Fail("a", api.KindExternalUnavailable, "connection refused"),
		"b": api.Fail("b", api.KindTimeout, "timed out"),
	}}

	out := NewResolver(exec).Resolve(context.Background(), chainOf(t, "a", "b"), api.Args{})

	require.False(t, out.OK)
	assert.Equal(t, api.KindExternalUnavailable, out.Kind())
	assert.Contains(t, out.Failure.Message, "a: connection refused")
	assert.Contains(t, out.Failure.Message, "b: timed out")
	assert.Equal(t, "ask_ai", out.Capability)
}
