package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"friday/pkg/channels"
	_ "friday/pkg/channels/autoload"
	"friday/pkg/config"
	"friday/pkg/executor"
	"friday/pkg/gateway"
	"friday/pkg/monitor"
	"friday/pkg/supervisor"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the configured channels and serve capabilities until interrupted",
	Long: `Loads config.json and system.json, builds the capability catalog and
starts every channel configured under "channels" (mcp, web).

When the mcp channel is enabled, stdout carries the MCP protocol, so the
invocation monitor writes to stderr instead.

Changes to system.json are picked up while running: timeouts, the retry
delay and the log level are reloaded.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, sys, err := loadConfig(true)
	if err != nil {
		return err
	}
	monitor.SetupSlog(sys.LogLevel)

	var mon monitor.Monitor = monitor.NewCLIMonitor()
	if channels.Enabled(cfg.Channels, "mcp") {
		mon = monitor.NewCLIMonitorTo(os.Stderr)
	}

	a, err := newApp(cfg, sys, mon)
	if err != nil {
		return err
	}
	slog.Info("Capability catalog ready", "entries", len(a.reg.List()))

	sup := supervisor.New(cfg.Agent)
	deps := channels.Deps{System: sys}
	if len(cfg.Agent.Command) > 0 {
		deps.Supervisor = sup
	}

	list := channels.LoadFromConfig(cfg.Channels, deps)
	if len(list) == 0 {
		return fmt.Errorf("no channels enabled in %s", configPath)
	}

	gw, err := gateway.NewGatewayBuilder().
		WithMonitor(mon).
		WithCore(a.dispatcher).
		WithChannel(list...).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build gateway: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go watchSystemConfig(ctx, a.exec)

	<-ctx.Done()
	slog.Info("Received shutdown signal. Stopping services...")

	gw.StopAll()
	if deps.Supervisor != nil {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := sup.Stop(stopCtx); err != nil && !errors.Is(err, supervisor.ErrNotRunning) {
			slog.Warn("Failed to stop agent", "error", err)
		}
	}
	slog.Info("Bye!")
	return nil
}

// watchSystemConfig reapplies system.json whenever it changes.
func watchSystemConfig(ctx context.Context, exec *executor.Executor) {
	for range config.WatchConfig(ctx, systemPath) {
		sys := config.LoadSystemConfig(systemPath)
		monitor.SetupSlog(sys.LogLevel)
		exec.SetPolicy(executor.PolicyFromConfig(sys))
		slog.Info("System config reloaded", "path", systemPath)
	}
}
