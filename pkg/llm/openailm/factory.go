package openailm

import (
	"log/slog"

	"friday/pkg/config"
	"friday/pkg/llm"
)

// OpenAIFactory handles creation of OpenAI-compatible clients. Vendors
// other than OpenAI get their own type with a default base URL.
type OpenAIFactory struct {
	Provider       string
	DefaultBaseURL string
}

// Create implements ProviderFactory
func (f *OpenAIFactory) Create(cfg llm.ProviderGroupConfig, sys *config.SystemConfig) ([]llm.Completer, error) {
	var clients []llm.Completer

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = f.DefaultBaseURL
	}

	for _, model := range cfg.Models {
		client, err := NewClient(f.Provider, cfg.APIKey(), model, baseURL, cfg.Options)
		if err != nil {
			slog.Error("Failed to create OpenAI client", "provider", f.Provider, "model", model, "error", err)
			continue
		}
		clients = append(clients, client)
	}
	return clients, nil
}

func init() {
	llm.RegisterProvider("openai", &OpenAIFactory{Provider: "openai"})
	llm.RegisterProvider("deepseek", &OpenAIFactory{Provider: "deepseek", DefaultBaseURL: "https://api.deepseek.com"})
}
