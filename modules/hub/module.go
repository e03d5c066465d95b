package hub

import (
	"context"
	"log"

	"github.com/go-monolith/mono"
)

// Module runs the hub's dispatch loop as a mono module.
type Module struct {
	hub    *Hub
	cancel context.CancelFunc
}

// Compile-time interface checks.
var _ mono.Module = (*Module)(nil)
var _ mono.HealthCheckableModule = (*Module)(nil)

// NewModule creates the hub module.
func NewModule() *Module {
	return &Module{
		hub: NewHub(),
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "hub"
}

// Start launches the dispatch loop.
func (m *Module) Start(_ context.Context) error {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	go m.hub.Run(ctx)
	log.Println("[hub] Module started - dispatch loop running")
	return nil
}

// Stop shuts down the dispatch loop and closes every socket.
func (m *Module) Stop(_ context.Context) error {
	clientCount := m.hub.ClientCount()
	if m.cancel != nil {
		m.cancel()
		m.hub.Wait()
	}
	log.Printf("[hub] Module stopped - %d clients were connected", clientCount)
	return nil
}

// Health returns the health status.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"connected_clients": m.hub.ClientCount(),
		},
	}
}

// Hub returns the hub for other components.
func (m *Module) Hub() *Hub {
	return m.hub
}
