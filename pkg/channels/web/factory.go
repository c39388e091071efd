package web

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"

	"friday/pkg/api"
	"friday/pkg/channels"
)

// WebFactory creates the websocket channel.
type WebFactory struct{}

// Create implements channels.ChannelFactory.
func (f *WebFactory) Create(rawConfig jsoniter.RawMessage, deps channels.Deps) (api.Channel, error) {
	cfg := WebConfig{Host: DefaultHost, Port: DefaultPort}
	if len(rawConfig) > 0 {
		if err := json.Unmarshal(rawConfig, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse web config: %w", err)
		}
	}

	var agent AgentControl
	if deps.Supervisor != nil {
		agent = deps.Supervisor
	}
	return NewWebChannel(cfg, agent), nil
}

func init() {
	channels.RegisterChannel("web", &WebFactory{})
}
