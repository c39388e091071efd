package handler

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"friday/pkg/api"
	"friday/pkg/executor"
	"friday/pkg/fallback"
	"friday/pkg/registry"
)

func newDispatcher(t *testing.T) (*Dispatcher, *[]string) {
	t.Helper()
	var calls []string
	reg := registry.New()

	echo := func(name string) api.Handler {
		return func(_ context.Context, args api.Args) (api.Result, error) {
			calls = append(calls, name)
			return api.Textf("%s: %s", name, args.String("text")), nil
		}
	}
	reg.Register(api.Capability{
		Name:    "say",
		Params:  []api.Param{{Name: "text", Type: api.ParamString, Required: true}},
		Effect:  api.EffectRead,
		Handler: echo("say"),
	})
	reg.Register(api.Capability{
		Name:   "set_volume",
		Params: []api.Param{{Name: "level", Type: api.ParamPercent, Required: true}},
		Effect: api.EffectOSAutomation,
		Handler: func(_ context.Context, args api.Args) (api.Result, error) {
			calls = append(calls, "set_volume")
			return api.Textf("Volume set to %d%%", args.Int("level")), nil
		},
	})
	reg.Register(api.Capability{
		Name:   "shout_primary",
		Params: []api.Param{{Name: "text", Type: api.ParamString, Required: true}},
		Effect: api.EffectNetwork,
		Handler: func(context.Context, api.Args) (api.Result, error) {
			calls = append(calls, "shout_primary")
			return api.Result{}, api.Errorf(api.KindExternalUnavailable, "primary is down").AsPermanent()
		},
	})
	reg.Register(api.Capability{
		Name:    "shout_backup",
		Params:  []api.Param{{Name: "text", Type: api.ParamString, Required: true}},
		Effect:  api.EffectNetwork,
		Handler: echo("shout_backup"),
	})
	chain, err := fallback.NewChain(reg, "shout", "Shout through any provider", "shout_primary", "shout_backup")
	require.NoError(t, err)
	reg.RegisterChain(chain)
	reg.Seal()

	exec := executor.New(reg, executor.Policy{
		Timeouts:   map[api.EffectClass]time.Duration{},
		RetryDelay: time.Millisecond,
	})
	return New(reg, exec), &calls
}

func TestInvoke_RoutesFamiliesToResolver(t *testing.T) {
	d, calls := newDispatcher(t)

	out := d.Invoke(context.Background(), "shout", api.Args{"text": "hi"})
	require.True(t, out.OK, out.Render())
	assert.Equal(t, "shout_backup: hi", out.Text)
	assert.Equal(t, []string{"shout_primary", "shout_backup"}, *calls)
}

func TestInvoke_UnknownCapability(t *testing.T) {
	d, _ := newDispatcher(t)
	got := d.Call(context.Background(), "fly", nil)
	assert.Equal(t, `Error (NotFound): unknown capability "fly"`, got)
}

func TestCatalogAndDescribe(t *testing.T) {
	d, _ := newDispatcher(t)
	assert.Equal(t, d.Catalog(), d.Catalog())
	assert.Len(t, d.Catalog(), 5)

	desc := d.Describe()
	assert.True(t, strings.HasPrefix(desc, "Available capabilities:\n"))
	assert.Contains(t, desc, "- shout(text: string) [NETWORK]: Shout through any provider (tries shout_primary, shout_backup)")
}

func TestRunWorkflow_NonCriticalFailureContinues(t *testing.T) {
	d, calls := newDispatcher(t)

	report := d.RunWorkflow(context.Background(), "morning", []api.WorkflowStep{
		{Capability: "set_volume", Arguments: api.Args{"level": 30}},
		{Capability: "does_not_exist"},
		{Capability: "say", Arguments: api.Args{"text": "done"}},
	})
	assert.Equal(t, `Workflow "morning": 2/3 steps succeeded
1. set_volume: OK - Volume set to 30%
2. does_not_exist: FAILED (NotFound) - unknown capability "does_not_exist"
3. say: OK - say: done`, report)
	assert.Equal(t, []string{"set_volume", "say"}, *calls)
}

func TestRunWorkflow_Empty(t *testing.T) {
	d, _ := newDispatcher(t)
	got := d.RunWorkflow(context.Background(), "nothing", nil)
	assert.Equal(t, `Error (InvalidArgument): workflow "nothing" has no steps`, got)
}

func TestParseCommand(t *testing.T) {
	d, _ := newDispatcher(t)

	for _, tc := range []struct {
		in   string
		name string
		args api.Args
		err  string
	}{
		{in: "/set_volume {\"level\": 40}", name: "set_volume", args: api.Args{"level": float64(40)}},
		{in: "  /say hello there  ", name: "say", args: api.Args{"text": "hello there"}},
		{in: "/shout wake up", name: "shout", args: api.Args{"text": "wake up"}},
		{in: "/help", name: "help", args: api.Args{}},
		{in: "/set_volume 40", err: "set_volume needs JSON arguments"},
		{in: "/say {broken", err: "not valid JSON"},
		{in: "/", err: "missing capability name"},
		{in: "say hi", err: "commands start with /"},
	} {
		name, args, err := d.ParseCommand(tc.in)
		if tc.err != "" {
			require.Error(t, err, tc.in)
			assert.Contains(t, err.Error(), tc.err, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.name, name, tc.in)
		assert.Equal(t, tc.args, args, tc.in)
	}
}

func TestHandleCommand(t *testing.T) {
	d, _ := newDispatcher(t)
	ctx := context.Background()

	assert.Equal(t, "Volume set to 100%", d.HandleCommand(ctx, `/set_volume {"level": 140}`))
	assert.Equal(t, d.Describe(), d.HandleCommand(ctx, "/help"))
	assert.Contains(t, d.HandleCommand(ctx, "/set_volume loud"), "Error (InvalidArgument)")
	assert.True(t, IsCommand(" /say x"))
	assert.False(t, IsCommand("say x"))
}
