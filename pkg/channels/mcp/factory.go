package mcp

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"

	"friday/pkg/api"
	"friday/pkg/channels"
)

type MCPFactory struct{}

func (f *MCPFactory) Create(rawConfig jsoniter.RawMessage, _ channels.Deps) (api.Channel, error) {
	var cfg MCPConfig
	if len(rawConfig) > 0 {
		if err := json.Unmarshal(rawConfig, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse mcp config: %w", err)
		}
	}
	return Stdio(cfg), nil
}

func init() {
	channels.RegisterChannel("mcp", &MCPFactory{})
}
