package api

import "context"

// Channel defines the standardized lifecycle interface for transports that
// expose the capability catalog to an external conversational runtime.
type Channel interface {
	ID() string
	Start(ctx ChannelContext) error
	Stop() error
}

// ChannelContext is what a Channel can do with the core: invoke
// capabilities, describe the catalog, and run workflows.
type ChannelContext interface {
	Invoker
	// Catalog returns the registry listing, identical on every call.
	Catalog() []Descriptor
	// Describe renders the catalog as help text.
	Describe() string
	// RunWorkflow executes the steps in order and returns the numbered report.
	RunWorkflow(ctx context.Context, name string, steps []WorkflowStep) string
}

// Invoker resolves a capability or fallback family by name and runs it.
type Invoker interface {
	Invoke(ctx context.Context, name string, args Args) Outcome
}

// WorkflowStep is one action of a workflow.
type WorkflowStep struct {
	Capability string `json:"capability" yaml:"capability"`
	Arguments  Args   `json:"arguments,omitempty" yaml:"arguments,omitempty"`
	// Critical steps halt the workflow when they fail.
	Critical bool `json:"critical,omitempty" yaml:"critical,omitempty"`
}
