package workflow

import (
	"context"
	"log/slog"

	"friday/pkg/api"
)

// StepObserver is notified of every step state change.
type StepObserver interface {
	OnStep(workflow string, result StepResult)
}

// NopObserver provides a no-operation implementation of StepObserver.
type NopObserver struct{}

func (NopObserver) OnStep(string, StepResult) {}

// Engine runs workflows one step at a time through an Invoker.
type Engine struct {
	invoker  api.Invoker
	observer StepObserver
}

// NewEngine creates a workflow engine.
func NewEngine(invoker api.Invoker, observer StepObserver) *Engine {
	if observer == nil {
		observer = NopObserver{}
	}
	return &Engine{invoker: invoker, observer: observer}
}

// Run executes the steps in order. Failures of non-critical steps are
// recorded and execution continues; a failed critical step ends the run.
// Run never fails as a whole: every problem is a step result.
func (e *Engine) Run(ctx context.Context, wf Workflow) Report {
	report := Report{Workflow: wf.Name, Total: len(wf.Steps)}
	slog.DebugContext(ctx, "Executing workflow", "workflow", wf.Name, "steps", len(wf.Steps))

	for i, step := range wf.Steps {
		res := StepResult{Index: i + 1, Step: step, State: StepPending, Critical: step.Critical}
		e.observer.OnStep(wf.Name, res)

		args := step.Arguments
		if wf.Templated {
			rendered, err := renderArgs(args, newTemplateData(wf.Name, report.Results))
			if err != nil {
				res.State = StepFailed
				res.Outcome = api.Fail(step.Capability, api.KindInvalidArgument, "template: %v", err)
				report = e.record(ctx, wf, report, res)
				if report.Halted {
					return report
				}
				continue
			}
			args = rendered
		}

		res.State = StepRunning
		e.observer.OnStep(wf.Name, res)

		res.Outcome = e.invoker.Invoke(ctx, step.Capability, args)
		if res.Outcome.OK {
			res.State = StepSucceeded
		} else {
			res.State = StepFailed
		}

		report = e.record(ctx, wf, report, res)
		if report.Halted {
			return report
		}
	}

	slog.InfoContext(ctx, "Workflow finished", "workflow", wf.Name, "succeeded", report.Succeeded(), "total", report.Total)
	return report
}

func (e *Engine) record(ctx context.Context, wf Workflow, report Report, res StepResult) Report {
	e.observer.OnStep(wf.Name, res)
	report.Results = append(report.Results, res)

	if res.State == StepFailed {
		slog.WarnContext(ctx, "Workflow step failed",
			"workflow", wf.Name, "step", res.Index, "capability", res.Step.Capability,
			"kind", res.Outcome.Kind(), "critical", res.Critical)
		if res.Critical {
			report.Halted = true
		}
	}
	return report
}
