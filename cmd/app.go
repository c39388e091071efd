package cmd

import (
	"fmt"
	"log/slog"

	"friday/pkg/automation"
	"friday/pkg/catalog"
	"friday/pkg/config"
	"friday/pkg/executor"
	"friday/pkg/handler"
	"friday/pkg/llm"
	_ "friday/pkg/llm/autoload"
	"friday/pkg/monitor"
	"friday/pkg/perception"
	"friday/pkg/registry"
)

// app is the wired core shared by every subcommand.
type app struct {
	cfg        *config.Config
	sys        *config.SystemConfig
	reg        *registry.Registry
	exec       *executor.Executor
	dispatcher *handler.Dispatcher
}

// loadConfig reads both config files. A missing application config is
// tolerated outside serve: the catalog still works without credentials.
func loadConfig(strict bool) (*config.Config, *config.SystemConfig, error) {
	cfg, sys, err := config.Load(configPath, systemPath)
	if err == nil {
		return cfg, sys, nil
	}
	if strict {
		return nil, nil, err
	}
	slog.Warn("Using empty application config", "error", err)
	return &config.Config{}, config.LoadSystemConfig(systemPath), nil
}

func newApp(cfg *config.Config, sys *config.SystemConfig, mon monitor.Monitor, opts ...handler.Option) (*app, error) {
	providers, err := llm.NewFromConfig(cfg.AI, sys)
	if err != nil {
		return nil, fmt.Errorf("failed to init AI providers: %w", err)
	}

	ctrl := automation.New()
	screen := perception.NewEngine(ctrl, perception.NewTesseract(sys.TesseractPath, sys.OCRLanguages),
		perception.WithWindowLocator(ctrl),
		perception.WithAccessibility(ctrl),
	)

	reg := registry.New()
	if err := catalog.Build(reg, catalog.Deps{
		Controller: ctrl,
		Screen:     screen,
		AI:         providers,
		Messaging:  cfg.Messaging,
	}); err != nil {
		return nil, fmt.Errorf("failed to build catalog: %w", err)
	}
	reg.Seal()

	exec := executor.New(reg, executor.PolicyFromConfig(sys), executor.WithMonitor(mon))
	return &app{
		cfg:        cfg,
		sys:        sys,
		reg:        reg,
		exec:       exec,
		dispatcher: handler.New(reg, exec, opts...),
	}, nil
}
