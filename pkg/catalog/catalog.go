// Package catalog builds the static capability catalog: system control,
// files, screen reading, web lookups, AI questions and messaging, plus the
// ask_ai and send_message fallback families.
package catalog

import (
	"context"
	"fmt"
	"log/slog"

	"friday/pkg/api"
	"friday/pkg/automation"
	"friday/pkg/config"
	"friday/pkg/fallback"
	"friday/pkg/llm"
	"friday/pkg/perception"
	"friday/pkg/registry"
)

// Family names.
const (
	FamilyAskAI       = "ask_ai"
	FamilySendMessage = "send_message"
)

// ScreenReader captures and reads regions of the screen.
type ScreenReader interface {
	CaptureRegions(ctx context.Context, regions ...perception.Region) (*perception.Snapshot, error)
}

// Deps are the collaborators the capability handlers close over.
type Deps struct {
	Controller automation.Controller
	Screen     ScreenReader
	AI         []llm.Provider
	Messaging  config.MessagingConfig
	// Telegram defaults to a bot built from Messaging.TelegramToken.
	Telegram TelegramSender
	// Web defaults to DefaultWeb().
	Web *Web
	// Files defaults to DefaultFiles().
	Files *Files
}

// Build registers every capability and family into reg. Chain schema
// mismatches are reported as errors; duplicate names panic in the registry.
func Build(reg *registry.Registry, d Deps) error {
	if d.Web == nil {
		d.Web = DefaultWeb()
	}
	if d.Files == nil {
		d.Files = DefaultFiles()
	}
	if d.Telegram == nil {
		d.Telegram = NewTelegramSender(d.Messaging.TelegramToken)
	}

	groups := [][]api.Capability{
		systemCapabilities(d.Controller),
		d.Files.capabilities(),
		screenCapabilities(d.Screen),
		d.Web.capabilities(),
		aiCapabilities(d.AI),
		messagingCapabilities(d.Controller, d.Messaging, d.Telegram),
	}
	for _, group := range groups {
		for _, c := range group {
			reg.Register(c)
		}
	}

	if len(d.AI) > 0 {
		names := make([]string, len(d.AI))
		for i, p := range d.AI {
			names[i] = askAIName(p)
		}
		if err := registerChain(reg, FamilyAskAI,
			"Ask a question to the configured AI providers, trying each in order until one answers.", names...); err != nil {
			return err
		}
	} else {
		slog.Warn("No AI providers configured, ask_ai is unavailable")
	}

	return registerChain(reg, FamilySendMessage,
		"Send a message to a contact, trying WhatsApp desktop, WhatsApp web, then Telegram.",
		"send_whatsapp_desktop", "send_whatsapp_web", "send_telegram")
}

func registerChain(reg *registry.Registry, family, description string, providers ...string) error {
	chain, err := fallback.NewChain(reg, family, description, providers...)
	if err != nil {
		return fmt.Errorf("failed to build %s family: %w", family, err)
	}
	reg.RegisterChain(chain)
	return nil
}

func stringParam(name, description string) api.Param {
	return api.Param{Name: name, Type: api.ParamString, Required: true, Description: description}
}

func done(err error, format string, args ...any) (api.Result, error) {
	if err != nil {
		return api.Result{}, err
	}
	return api.Textf(format, args...), nil
}
