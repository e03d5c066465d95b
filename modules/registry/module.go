package registry

import (
	"context"
	"fmt"
	"log"

	"github.com/go-monolith/mono"
	"github.com/redis/go-redis/v9"
)

// Module exposes the connection registry as a mono module.
type Module struct {
	registry *Registry
	client   *redis.Client
	cfg      Config
}

// Compile-time interface checks.
var _ mono.Module = (*Module)(nil)
var _ mono.HealthCheckableModule = (*Module)(nil)

// NewModule creates the registry module. The Redis client is built
// eagerly so dependent components can hold the registry before Start.
func NewModule(cfg Config) *Module {
	if cfg.RedisAddr == "" {
		cfg = DefaultConfig()
	}
	client := NewRedisClient(cfg.RedisAddr)
	return &Module{
		registry: New(client, cfg.Prefix),
		client:   client,
		cfg:      cfg,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "registry"
}

// Start verifies the Redis connection.
func (m *Module) Start(ctx context.Context) error {
	if err := m.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	log.Printf("[registry] Connected to Redis at %s (prefix: %s)", m.cfg.RedisAddr, m.cfg.Prefix)
	return nil
}

// Stop closes the Redis connection.
func (m *Module) Stop(_ context.Context) error {
	if err := m.client.Close(); err != nil {
		log.Printf("[registry] Error closing Redis connection: %v", err)
		return fmt.Errorf("failed to close Redis connection: %w", err)
	}
	log.Println("[registry] Module stopped")
	return nil
}

// Health reports whether the registry store is reachable.
func (m *Module) Health(ctx context.Context) mono.HealthStatus {
	if err := m.registry.Ping(ctx); err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: err.Error(),
		}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"redis_addr": m.cfg.RedisAddr,
		},
	}
}

// Registry returns the registry instance for other components.
func (m *Module) Registry() *Registry {
	return m.registry
}
