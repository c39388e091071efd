// Package channels builds the transports named in the "channels" section of
// config.json. Each transport package registers a factory from init.
package channels

import (
	jsoniter "github.com/json-iterator/go"

	"friday/pkg/api"
	"friday/pkg/config"
	"friday/pkg/supervisor"
)

// Deps are the shared resources a channel may need besides its own config.
type Deps struct {
	System *config.SystemConfig
	// Supervisor is nil when no agent command is configured.
	Supervisor *supervisor.Supervisor
}

// ChannelFactory creates a channel from its raw config section.
type ChannelFactory interface {
	Create(rawConfig jsoniter.RawMessage, deps Deps) (api.Channel, error)
}

var channelRegistry = make(map[string]ChannelFactory)

// RegisterChannel adds a factory. It is called from init.
func RegisterChannel(name string, factory ChannelFactory) {
	channelRegistry[name] = factory
}

// GetChannelFactory retrieves a registered factory by name.
func GetChannelFactory(name string) (ChannelFactory, bool) {
	f, ok := channelRegistry[name]
	return f, ok
}
