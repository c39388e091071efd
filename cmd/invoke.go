package cmd

import (
	"fmt"
	"os"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"friday/pkg/api"
	"friday/pkg/monitor"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	invokeArgs []string
	invokeJSON string
	invokeRaw  bool
)

var invokeCmd = &cobra.Command{
	Use:   "invoke <capability>",
	Short: "Run one capability or fallback family and print the result",
	Example: `  friday invoke set_volume --arg level=40
  friday invoke send_message --arg contact=Alice --arg message="running late"
  friday invoke web_search --json '{"query": "golang"}'`,
	Args: cobra.ExactArgs(1),
	RunE: runInvoke,
}

func init() {
	invokeCmd.Flags().StringArrayVar(&invokeArgs, "arg", nil, "Argument as key=value, repeatable")
	invokeCmd.Flags().StringVar(&invokeJSON, "json", "", "Arguments as a JSON object")
	invokeCmd.Flags().BoolVar(&invokeRaw, "output-json", false, "Print the full outcome as JSON")
	rootCmd.AddCommand(invokeCmd)
}

func runInvoke(cmd *cobra.Command, args []string) error {
	callArgs, err := parseInvokeArgs(invokeJSON, invokeArgs)
	if err != nil {
		return err
	}

	cfg, sys, err := loadConfig(false)
	if err != nil {
		return err
	}
	monitor.SetupSlog(sys.LogLevel)

	a, err := newApp(cfg, sys, monitor.NewCLIMonitorTo(os.Stderr))
	if err != nil {
		return err
	}

	out := a.dispatcher.Invoke(cmd.Context(), args[0], callArgs)
	if invokeRaw {
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), out.Render())
	}
	if !out.OK {
		return fmt.Errorf("%s failed", args[0])
	}
	return nil
}

// parseInvokeArgs merges a JSON object with key=value pairs. Pair values
// stay strings and are coerced against the schema by the executor.
func parseInvokeArgs(rawJSON string, pairs []string) (api.Args, error) {
	args := api.Args{}
	if strings.TrimSpace(rawJSON) != "" {
		if err := json.Unmarshal([]byte(rawJSON), &args); err != nil {
			return nil, fmt.Errorf("--json is not a valid JSON object: %w", err)
		}
	}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("--arg %q must be key=value", pair)
		}
		args[key] = value
	}
	return args, nil
}
