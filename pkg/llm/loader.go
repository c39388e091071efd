package llm

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"friday/pkg/config"
)

var unsafeName = regexp.MustCompile(`[^a-z0-9_]+`)

// NewFromConfig builds the providers of the "ai" config array, in order.
// Groups with an unknown type or that fail to initialize are skipped with a
// warning. A missing "ai" section yields no providers.
func NewFromConfig(rawAI jsoniter.RawMessage, system *config.SystemConfig) ([]Provider, error) {
	if len(rawAI) == 0 {
		return nil, nil
	}

	var groups []ProviderGroupConfig
	if err := json.Unmarshal(rawAI, &groups); err != nil {
		return nil, fmt.Errorf("failed to parse 'ai' config: %w", err)
	}

	var providers []Provider
	used := map[string]int{}
	for _, group := range groups {
		slog.Debug("Loading AI provider group", "type", group.Type, "models", len(group.Models))

		factory, ok := GetProviderFactory(group.Type)
		if !ok {
			slog.Warn("Unknown AI provider type", "type", group.Type)
			continue
		}

		completers, err := factory.Create(group, system)
		if err != nil {
			slog.Warn("Failed to create AI provider", "type", group.Type, "error", err)
			continue
		}

		base := group.Name
		if base == "" {
			base = group.Type
		}
		for _, c := range completers {
			if system != nil && system.DebugResponses {
				c = newDebugCompleter(c)
			}
			providers = append(providers, Provider{
				Name:      uniqueName(used, base),
				System:    group.System,
				Completer: c,
			})
		}
	}

	slog.Info("AI providers initialized", "count", len(providers))
	return providers, nil
}

// uniqueName sanitizes base into a capability suffix and numbers repeats:
// openai, openai_2, openai_3.
func uniqueName(used map[string]int, base string) string {
	name := strings.Trim(unsafeName.ReplaceAllString(strings.ToLower(base), "_"), "_")
	if name == "" {
		name = "provider"
	}
	if used[name] == 0 {
		used[name] = 1
		return name
	}
	for n := used[name] + 1; ; n++ {
		candidate := fmt.Sprintf("%s_%d", name, n)
		if used[candidate] == 0 {
			used[name] = n
			used[candidate] = 1
			return candidate
		}
	}
}
