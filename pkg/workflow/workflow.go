// Package workflow runs ordered lists of capability invocations with
// partial-failure semantics.
package workflow

import (
	"fmt"
	"strings"

	"friday/pkg/api"
)

// Step is one action of a workflow.
type Step = api.WorkflowStep

// Workflow is an ordered list of steps.
type Workflow struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	// Templated enables rendering of string arguments against earlier step
	// outputs before each step runs.
	Templated bool   `yaml:"templated,omitempty" json:"templated,omitempty"`
	Steps     []Step `yaml:"steps" json:"steps"`
}

// Validate checks the workflow structure.
func (w Workflow) Validate() error {
	if len(w.Steps) == 0 {
		return fmt.Errorf("workflow %q has no steps", w.Name)
	}
	for i, s := range w.Steps {
		if strings.TrimSpace(s.Capability) == "" {
			return fmt.Errorf("workflow %q step %d has no capability", w.Name, i+1)
		}
	}
	return nil
}

// StepState is the lifecycle of a single step.
type StepState string

const (
	StepPending   StepState = "PENDING"
	StepRunning   StepState = "RUNNING"
	StepSucceeded StepState = "SUCCEEDED"
	StepFailed    StepState = "FAILED"
)

// StepResult pairs a step with its outcome.
type StepResult struct {
	Index    int // 1-based
	Step     Step
	State    StepState
	Outcome  api.Outcome
	Critical bool
}

// Report is the per-step record of one workflow run. It has one entry per
// step, or a prefix ending at the first failed critical step.
type Report struct {
	Workflow string
	Results  []StepResult
	// Halted is set when a critical step failed and the rest was skipped.
	Halted bool
	Total  int
}

// Succeeded counts successful steps.
func (r Report) Succeeded() int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome.OK {
			n++
		}
	}
	return n
}

// Render formats the report as numbered lines.
func (r Report) Render() string {
	var sb strings.Builder
	name := r.Workflow
	if name == "" {
		name = "workflow"
	}
	fmt.Fprintf(&sb, "Workflow %q: %d/%d steps succeeded\n", name, r.Succeeded(), r.Total)
	for _, res := range r.Results {
		if res.Outcome.OK {
			fmt.Fprintf(&sb, "%d. %s: OK - %s\n", res.Index, res.Step.Capability, firstLine(res.Outcome.Render()))
			continue
		}
		fmt.Fprintf(&sb, "%d. %s: FAILED (%s) - %s\n", res.Index, res.Step.Capability, res.Outcome.Kind(), firstLine(res.Outcome.Failure.Message))
	}
	if r.Halted {
		last := r.Results[len(r.Results)-1]
		fmt.Fprintf(&sb, "Stopped: critical step %d failed, %d step(s) skipped\n", last.Index, r.Total-len(r.Results))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " ..."
	}
	return s
}
