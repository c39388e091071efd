package gateway

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"friday/pkg/api"
	"friday/pkg/monitor"
)

// GatewayManager owns the transports that expose the capability catalog and
// hands each of them the same ChannelContext.
type GatewayManager struct {
	channels map[string]api.Channel
	started  []string
	core     api.ChannelContext
	monitor  monitor.Monitor
	mu       sync.RWMutex
}

// NewGatewayManager creates an empty GatewayManager.
func NewGatewayManager() *GatewayManager {
	return &GatewayManager{
		channels: make(map[string]api.Channel),
		monitor:  monitor.Nop{},
	}
}

// SetCore sets the context every channel is started with.
func (g *GatewayManager) SetCore(core api.ChannelContext) {
	g.core = core
}

// SetMonitor sets the monitor stopped together with the channels.
func (g *GatewayManager) SetMonitor(m monitor.Monitor) {
	g.monitor = m
}

// Register adds a channel. A second channel with the same ID replaces the
// first.
func (g *GatewayManager) Register(c api.Channel) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, exists := g.channels[c.ID()]; exists {
		slog.Warn("Replacing channel with duplicate ID", "channel", c.ID())
	}
	g.channels[c.ID()] = c
}

// GetChannel returns a registered channel.
func (g *GatewayManager) GetChannel(id string) (api.Channel, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	c, ok := g.channels[id]
	return c, ok
}

// IDs lists the registered channel IDs in sorted order.
func (g *GatewayManager) IDs() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	ids := make([]string, 0, len(g.channels))
	for id := range g.channels {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// StartAll starts every channel in ID order. When one fails, the channels
// already started are stopped again.
func (g *GatewayManager) StartAll() error {
	if g.core == nil {
		return errors.New("gateway has no core to serve")
	}
	for _, id := range g.IDs() {
		c, _ := g.GetChannel(id)
		slog.Info("Starting channel", "channel", id)
		if err := c.Start(g.core); err != nil {
			g.StopAll()
			return fmt.Errorf("failed to start channel %s: %w", id, err)
		}
		g.mu.Lock()
		g.started = append(g.started, id)
		g.mu.Unlock()
	}
	return nil
}

// StopAll stops the started channels in reverse order, then the monitor.
func (g *GatewayManager) StopAll() {
	g.mu.Lock()
	started := g.started
	g.started = nil
	g.mu.Unlock()

	for i := len(started) - 1; i >= 0; i-- {
		id := started[i]
		c, ok := g.GetChannel(id)
		if !ok {
			continue
		}
		slog.Info("Stopping channel", "channel", id)
		if err := c.Stop(); err != nil {
			slog.Error("Error stopping channel", "channel", id, "error", err)
		}
	}
	if err := g.monitor.Stop(); err != nil {
		slog.Error("Error stopping monitor", "error", err)
	}
}
