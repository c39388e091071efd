package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"friday/pkg/handler"
	"friday/pkg/monitor"
	"friday/pkg/workflow"
)

var workflowCmd = &cobra.Command{
	Use:   "workflow",
	Short: "Run workflow definitions",
}

var workflowRunCmd = &cobra.Command{
	Use:   "run <file>",
	Short: "Run a YAML or JSON workflow file and print the step report",
	Args:  cobra.ExactArgs(1),
	RunE:  runWorkflow,
}

func init() {
	workflowCmd.AddCommand(workflowRunCmd)
	rootCmd.AddCommand(workflowCmd)
}

// stepLogger logs step transitions.
type stepLogger struct{}

func (stepLogger) OnStep(name string, res workflow.StepResult) {
	slog.Info("Workflow step", "workflow", name, "step", res.Index, "capability", res.Step.Capability, "state", res.State)
}

func runWorkflow(cmd *cobra.Command, args []string) error {
	wf, err := workflow.LoadFile(args[0])
	if err != nil {
		return err
	}

	cfg, sys, err := loadConfig(false)
	if err != nil {
		return err
	}
	monitor.SetupSlog(sys.LogLevel)

	a, err := newApp(cfg, sys, monitor.NewCLIMonitorTo(os.Stderr), handler.WithStepObserver(stepLogger{}))
	if err != nil {
		return err
	}

	report, err := a.dispatcher.Run(cmd.Context(), wf)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), report.Render())
	if report.Halted {
		return fmt.Errorf("workflow %q halted", wf.Name)
	}
	return nil
}
