package channels

import (
	"log/slog"
	"sort"

	jsoniter "github.com/json-iterator/go"

	"friday/pkg/api"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// baseConfig holds the fields every channel section understands.
type baseConfig struct {
	Enabled *bool `json:"enabled"`
}

// LoadFromConfig creates a channel for every configured section, in name
// order. Unknown names, disabled sections and failing factories are logged
// and skipped.
func LoadFromConfig(configs map[string]jsoniter.RawMessage, deps Deps) []api.Channel {
	names := make([]string, 0, len(configs))
	for name := range configs {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []api.Channel
	for _, name := range names {
		rawConfig := configs[name]

		var base baseConfig
		if err := json.Unmarshal(rawConfig, &base); err == nil && base.Enabled != nil && !*base.Enabled {
			slog.Info("Channel disabled", "name", name)
			continue
		}

		factory, ok := GetChannelFactory(name)
		if !ok {
			slog.Warn("Unknown channel type", "name", name)
			continue
		}

		channel, err := factory.Create(rawConfig, deps)
		if err != nil {
			slog.Error("Failed to create channel", "name", name, "error", err)
			continue
		}
		if channel == nil {
			continue
		}

		out = append(out, channel)
		slog.Info("Channel created", "name", name)
	}
	return out
}

// Enabled reports whether name has a config section that is not disabled.
func Enabled(configs map[string]jsoniter.RawMessage, name string) bool {
	rawConfig, ok := configs[name]
	if !ok {
		return false
	}
	var base baseConfig
	if err := json.Unmarshal(rawConfig, &base); err != nil {
		return true
	}
	return base.Enabled == nil || *base.Enabled
}
