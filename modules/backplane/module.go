package backplane

import (
	"context"
	"fmt"
	"log"

	"github.com/go-monolith/mono"
)

// Module exposes the backplane client as a mono module.
type Module struct {
	client     *Client
	dispatcher Dispatcher
}

// Compile-time interface checks.
var _ mono.Module = (*Module)(nil)
var _ mono.HealthCheckableModule = (*Module)(nil)

// NewModule creates the backplane module.
func NewModule(cfg Config) *Module {
	return &Module{
		client: NewClient(cfg),
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "backplane"
}

// SetDispatcher injects the local delivery sink (called from main.go).
func (m *Module) SetDispatcher(d Dispatcher) {
	m.dispatcher = d
}

// Start connects to NATS and begins forwarding routed events.
func (m *Module) Start(ctx context.Context) error {
	if m.dispatcher == nil {
		return fmt.Errorf("backplane dispatcher not set")
	}
	if err := m.client.Connect(ctx); err != nil {
		return err
	}
	if err := m.client.Subscribe(m.dispatcher); err != nil {
		return err
	}
	log.Println("[backplane] Module started")
	return nil
}

// Stop drains the NATS connection.
func (m *Module) Stop(_ context.Context) error {
	if err := m.client.Close(); err != nil {
		log.Printf("[backplane] Error closing NATS connection: %v", err)
		return err
	}
	log.Println("[backplane] Module stopped")
	return nil
}

// Health reports the NATS connection status.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	if !m.client.Connected() {
		return mono.HealthStatus{
			Healthy: false,
			Message: "not connected to NATS",
		}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
	}
}

// Client returns the backplane client for publishers.
func (m *Module) Client() *Client {
	return m.client
}
