// Package gateway assembles the transports, the monitor and the core into
// one running service.
package gateway

import (
	"fmt"

	"friday/pkg/api"
	"friday/pkg/monitor"
)

// GatewayBuilder provides a fluent builder for a GatewayManager.
//
// All components are pre-built and injected as instances; the builder only
// assembles and starts them.
type GatewayBuilder struct {
	gw       *GatewayManager
	monitor  monitor.Monitor
	core     api.ChannelContext
	channels []api.Channel
}

// NewGatewayBuilder creates a fresh GatewayBuilder.
func NewGatewayBuilder() *GatewayBuilder {
	return &GatewayBuilder{
		gw: NewGatewayManager(),
	}
}

// WithMonitor injects a monitor. It is started by Build and stopped by
// StopAll.
func (b *GatewayBuilder) WithMonitor(m monitor.Monitor) *GatewayBuilder {
	b.monitor = m
	return b
}

// WithCore sets what the channels serve, normally a *handler.Dispatcher.
func (b *GatewayBuilder) WithCore(core api.ChannelContext) *GatewayBuilder {
	b.core = core
	return b
}

// WithChannel adds pre-built channel instances.
func (b *GatewayBuilder) WithChannel(channels ...api.Channel) *GatewayBuilder {
	b.channels = append(b.channels, channels...)
	return b
}

// Build wires the dependencies, starts the monitor and then every channel.
func (b *GatewayBuilder) Build() (*GatewayManager, error) {
	if b.core == nil {
		return nil, fmt.Errorf("gateway needs a core, call WithCore")
	}
	b.gw.SetCore(b.core)

	if b.monitor != nil {
		b.gw.SetMonitor(b.monitor)
		if err := b.monitor.Start(); err != nil {
			return nil, fmt.Errorf("failed to start monitor: %w", err)
		}
	}

	for _, c := range b.channels {
		b.gw.Register(c)
	}

	if err := b.gw.StartAll(); err != nil {
		return nil, fmt.Errorf("failed to start channels: %w", err)
	}
	return b.gw, nil
}
