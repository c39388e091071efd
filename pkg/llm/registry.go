package llm

import (
	"friday/pkg/config"
)

// ProviderGroupConfig is one entry of the "ai" array in config.json. The
// factory turns it into one completer per model.
type ProviderGroupConfig struct {
	Type string `json:"type"`
	// Name overrides the capability suffix; defaults to Type.
	Name    string         `json:"name,omitempty"`
	APIKeys []string       `json:"api_keys,omitempty"`
	Models  []string       `json:"models"`
	BaseURL string         `json:"base_url,omitempty"`
	System  string         `json:"system_prompt,omitempty"`
	Options map[string]any `json:"options,omitempty"`
}

// APIKey returns the first configured key, or "".
func (g ProviderGroupConfig) APIKey() string {
	if len(g.APIKeys) > 0 {
		return g.APIKeys[0]
	}
	return ""
}

// ProviderFactory builds completers from a provider group.
type ProviderFactory interface {
	Create(groupConfig ProviderGroupConfig, systemConfig *config.SystemConfig) ([]Completer, error)
}

var providerRegistry = make(map[string]ProviderFactory)

// RegisterProvider registers a factory under a provider type.
func RegisterProvider(name string, factory ProviderFactory) {
	providerRegistry[name] = factory
}

// GetProviderFactory returns the factory for a provider type.
func GetProviderFactory(name string) (ProviderFactory, bool) {
	f, ok := providerRegistry[name]
	return f, ok
}
