// Package handler is the single entry point transports use to reach the
// core: it routes invocations to plain capabilities or fallback families,
// runs workflows, and interprets slash commands.
package handler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"friday/pkg/api"
	"friday/pkg/fallback"
	"friday/pkg/registry"
	"friday/pkg/workflow"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Dispatcher implements api.ChannelContext on top of the registry, the
// executor and the workflow engine.
type Dispatcher struct {
	reg      *registry.Registry
	exec     fallback.Executor
	resolver *fallback.Resolver
	engine   *workflow.Engine
}

var _ api.ChannelContext = (*Dispatcher)(nil)

// Option customizes a Dispatcher.
type Option func(*dispatcherOptions)

type dispatcherOptions struct {
	observer workflow.StepObserver
}

// WithStepObserver reports workflow step transitions to o.
func WithStepObserver(o workflow.StepObserver) Option {
	return func(d *dispatcherOptions) { d.observer = o }
}

// New creates a Dispatcher. exec is normally an *executor.Executor.
func New(reg *registry.Registry, exec fallback.Executor, opts ...Option) *Dispatcher {
	var o dispatcherOptions
	for _, opt := range opts {
		opt(&o)
	}
	d := &Dispatcher{
		reg:      reg,
		exec:     exec,
		resolver: fallback.NewResolver(exec),
	}
	d.engine = workflow.NewEngine(d, o.observer)
	return d
}

// Invoke runs a capability or a fallback family by name.
func (d *Dispatcher) Invoke(ctx context.Context, name string, args api.Args) api.Outcome {
	name = strings.TrimSpace(name)
	if args == nil {
		args = api.Args{}
	}
	if chain, ok := d.reg.Chain(name); ok {
		return d.resolver.Resolve(ctx, chain, args)
	}
	return d.exec.Execute(ctx, name, args, 0)
}

// Call invokes name and renders the outcome as text for the caller.
func (d *Dispatcher) Call(ctx context.Context, name string, args api.Args) string {
	return d.Invoke(ctx, name, args).Render()
}

// Catalog returns the registry listing.
func (d *Dispatcher) Catalog() []api.Descriptor {
	return d.reg.List()
}

// Describe renders the catalog as help text.
func (d *Dispatcher) Describe() string {
	return "Available capabilities:\n" + d.reg.Describe()
}

// RunWorkflow executes steps in order and returns the numbered report.
func (d *Dispatcher) RunWorkflow(ctx context.Context, name string, steps []api.WorkflowStep) string {
	report, err := d.Run(ctx, workflow.Workflow{Name: name, Steps: steps})
	if err != nil {
		return fmt.Sprintf("Error (%s): %s", api.KindInvalidArgument, err)
	}
	return report.Render()
}

// Run executes a full workflow definition. Only a malformed workflow is an
// error; step failures are part of the report.
func (d *Dispatcher) Run(ctx context.Context, wf workflow.Workflow) (workflow.Report, error) {
	if err := wf.Validate(); err != nil {
		return workflow.Report{}, err
	}
	return d.engine.Run(ctx, wf), nil
}

// IsCommand reports whether text is a slash command.
func IsCommand(text string) bool {
	return strings.HasPrefix(strings.TrimSpace(text), "/")
}

// HandleCommand executes a slash command and returns the reply text.
//
// Forms:
//
//	/help                       catalog description
//	/name                       invoke with no arguments
//	/name {"key": "value"}      invoke with JSON arguments
//	/name free text             free text fills the only required string parameter
func (d *Dispatcher) HandleCommand(ctx context.Context, text string) string {
	name, args, err := d.ParseCommand(text)
	if err != nil {
		return fmt.Sprintf("Error (%s): %s", api.KindInvalidArgument, err)
	}
	if name == "help" {
		if _, ok := d.reg.Get(name); !ok {
			return d.Describe()
		}
	}
	slog.Info("Slash command received", "capability", name, "args", len(args))
	return d.Call(ctx, name, args)
}

// ParseCommand splits a slash command into a capability name and
// arguments.
func (d *Dispatcher) ParseCommand(text string) (string, api.Args, error) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", nil, fmt.Errorf("commands start with /, e.g. /set_volume {\"level\": 40}")
	}
	name, rest, _ := strings.Cut(strings.TrimPrefix(text, "/"), " ")
	name = strings.TrimSpace(name)
	rest = strings.TrimSpace(rest)
	if name == "" {
		return "", nil, fmt.Errorf("missing capability name after /")
	}

	args := api.Args{}
	if rest == "" {
		return name, args, nil
	}
	if strings.HasPrefix(rest, "{") {
		if err := json.Unmarshal([]byte(rest), &args); err != nil {
			return "", nil, fmt.Errorf("arguments are not valid JSON: %w", err)
		}
		return name, args, nil
	}

	param, ok := d.soleStringParam(name)
	if !ok {
		return "", nil, fmt.Errorf("%s needs JSON arguments, e.g. /%s {\"name\": \"value\"}", name, name)
	}
	args[param] = rest
	return name, args, nil
}

// soleStringParam returns the only required string parameter of a
// capability or family, if it has exactly one.
func (d *Dispatcher) soleStringParam(name string) (string, bool) {
	var params []api.Param
	if c, ok := d.reg.Get(name); ok {
		params = c.Params
	} else if chain, ok := d.reg.Chain(name); ok {
		params = chain.Params
	} else {
		return "", false
	}

	found := ""
	for _, p := range params {
		if !p.Required {
			continue
		}
		if p.Type != api.ParamString || found != "" {
			return "", false
		}
		found = p.Name
	}
	return found, found != ""
}
