package workflow

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"friday/pkg/api"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeInvoker answers from a fixed table and records every call.
type fakeInvoker struct {
	mu       sync.Mutex
	outcomes map[string]func(api.Args) api.Outcome
	calls    []string
	args     []api.Args
}

func (f *fakeInvoker) Invoke(_ context.Context, name string, args api.Args) api.Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
	f.args = append(f.args, args)
	if fn, ok := f.outcomes[name]; ok {
		return fn(args)
	}
	return api.Fail(name, api.KindNotFound, "unknown capability %q", name)
}

func ok(text string) func(api.Args) api.Outcome {
	return func(api.Args) api.Outcome { return api.Succeed("", api.Result{Text: text}) }
}

func fails(kind api.FailureKind, msg string) func(api.Args) api.Outcome {
	return func(api.Args) api.Outcome { return api.Fail("", kind, "%s", msg) }
}

type recordingObserver struct {
	states []StepState
}

func (r *recordingObserver) OnStep(_ string, res StepResult) {
	r.states = append(r.states, res.State)
}

func TestRun_NonCriticalFailureContinues(t *testing.T) {
	inv := &fakeInvoker{outcomes: map[string]func(api.Args) api.Outcome{
		"set_volume": ok("Volume set to 40%"),
		"read_file":  ok("hello"),
	}}
	wf := Workflow{Name: "evening", Steps: []Step{
		{Capability: "set_volume", Arguments: api.Args{"level": 40}},
		{Capability: "open_app", Arguments: api.Args{"app_name": "NonexistentApp"}},
		{Capability: "read_file", Arguments: api.Args{"file_path": "/tmp/x.txt"}},
	}}

	report := NewEngine(inv, nil).Run(context.Background(), wf)

	require.Len(t, report.Results, 3)
	assert.True(t, report.Results[0].Outcome.OK)
	assert.Equal(t, api.KindNotFound, report.Results[1].Outcome.Kind())
	assert.True(t, report.Results[2].Outcome.OK)
	assert.False(t, report.Halted)
	assert.Equal(t, 2, report.Succeeded())
	assert.Equal(t, []string{"set_volume", "open_app", "read_file"}, inv.calls)
}

func TestRun_CriticalFailureHalts(t *testing.T) {
	inv := &fakeInvoker{outcomes: map[string]func(api.Args) api.Outcome{
		"a": ok("first"),
		"b": fails(api.KindPermissionDenied, "not allowed"),
		"c": ok("never"),
	}}
	obs := &recordingObserver{}
	wf := Workflow{Name: "halting", Steps: []Step{
		{Capability: "a"},
		{Capability: "b", Critical: true},
		{Capability: "c"},
	}}

	report := NewEngine(inv, obs).Run(context.Background(), wf)

	require.Len(t, report.Results, 2)
	assert.True(t, report.Halted)
	assert.Equal(t, api.KindPermissionDenied, report.Results[1].Outcome.Kind())
	assert.Equal(t, []string{"a", "b"}, inv.calls)
	assert.Equal(t, []StepState{
		StepPending, StepRunning, StepSucceeded,
		StepPending, StepRunning, StepFailed,
	}, obs.states)
}

func TestRun_CriticalSuccessContinues(t *testing.T) {
	inv := &fakeInvoker{outcomes: map[string]func(api.Args) api.Outcome{
		"a": ok("first"),
		"b": ok("second"),
	}}
	wf := Workflow{Steps: []Step{{Capability: "a", Critical: true}, {Capability: "b", Critical: true}}}

	report := NewEngine(inv, nil).Run(context.Background(), wf)
	assert.Len(t, report.Results, 2)
	assert.False(t, report.Halted)
}

func TestRun_Templated(t *testing.T) {
	inv := &fakeInvoker{outcomes: map[string]func(api.Args) api.Outcome{
		"read_file":    ok("buy milk"),
		"send_message": ok("sent"),
	}}
	wf := Workflow{Name: "forward", Templated: true, Steps: []Step{
		{Capability: "read_file", Arguments: api.Args{"file_path": "/tmp/todo.txt"}},
		{Capability: "send_message", Arguments: api.Args{
			"contact": "Mom",
			"message": "Reminder: {{ .Last.Text | upper }}",
		}},
	}}

	report := NewEngine(inv, nil).Run(context.Background(), wf)

	require.Len(t, report.Results, 2)
	assert.True(t, report.Results[1].Outcome.OK)
	assert.Equal(t, "Reminder: BUY MILK", inv.args[1]["message"])
}

func TestRun_TemplateErrorIsStepFailure(t *testing.T) {
	inv := &fakeInvoker{outcomes: map[string]func(api.Args) api.Outcome{"b": ok("fine")}}
	wf := Workflow{Templated: true, Steps: []Step{
		{Capability: "a", Arguments: api.Args{"x": "{{ .Nope }}"}},
		{Capability: "b"},
	}}

	report := NewEngine(inv, nil).Run(context.Background(), wf)

	require.Len(t, report.Results, 2)
	assert.Equal(t, api.KindInvalidArgument, report.Results[0].Outcome.Kind())
	assert.Equal(t, []string{"b"}, inv.calls)
}

func TestRun_UntemplatedArgsPassThrough(t *testing.T) {
	inv := &fakeInvoker{outcomes: map[string]func(api.Args) api.Outcome{"a": ok("")}}
	wf := Workflow{Steps: []Step{{Capability: "a", Arguments: api.Args{"x": "{{ .Last.Text }}"}}}}

	NewEngine(inv, nil).Run(context.Background(), wf)
	assert.Equal(t, "{{ .Last.Text }}", inv.args[0]["x"])
}

func TestReportRender(t *testing.T) {
	report := Report{Workflow: "evening", Total: 3, Halted: true, Results: []StepResult{
		{Index: 1, Step: Step{Capability: "set_volume"}, Outcome: api.Succeed("set_volume", api.Result{Text: "Volume set to 40%"})},
		{Index: 2, Step: Step{Capability: "open_app"}, Outcome: api.Fail("open_app", api.KindNotFound, "app not found")},
	}}

	want := "Workflow \"evening\": 1/3 steps succeeded\n" +
		"1. set_volume: OK - Volume set to 40%\n" +
		"2. open_app: FAILED (NotFound) - app not found\n" +
		"Stopped: critical step 2 failed, 1 step(s) skipped"
	assert.Equal(t, want, report.Render())
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "morning.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
steps:
  - capability: set_volume
    arguments:
      level: 30
  - capability: open_app
    arguments:
      app_name: Safari
    critical: true
`), 0o644))

	wf, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "morning", wf.Name)
	require.Len(t, wf.Steps, 2)
	assert.Equal(t, 30, wf.Steps[0].Arguments["level"])
	assert.True(t, wf.Steps[1].Critical)
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse([]byte("name: empty\nsteps: []\n"))
	assert.ErrorContains(t, err, "no steps")

	_, err = Parse([]byte("steps:\n  - arguments: {a: 1}\n"))
	assert.ErrorContains(t, err, "no capability")
}
