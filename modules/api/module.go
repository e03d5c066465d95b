// Package api hosts the Fiber HTTP server: the /chat WebSocket
// endpoint that drives the connection lifecycle, and a small REST
// surface for server-side sends and lookups.
package api

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/example/distributed-chat-demo/modules/hub"
	"github.com/example/distributed-chat-demo/modules/session"
	"github.com/go-monolith/mono"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// ConnectionResolver looks up a user's live connections, cluster-wide.
type ConnectionResolver interface {
	Resolve(ctx context.Context, userID string) ([]string, error)
}

// Module is the HTTP API module with WebSocket support.
type Module struct {
	app        *fiber.App
	controller *session.Controller
	hub        *hub.Hub
	resolver   ConnectionResolver
	port       string
}

// Compile-time interface checks.
var _ mono.Module = (*Module)(nil)
var _ mono.HealthCheckableModule = (*Module)(nil)

// NewModule creates the API module.
func NewModule(port string) *Module {
	if port == "" {
		port = "3000"
	}
	return &Module{
		port: port,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "api"
}

// SetController sets the lifecycle controller (called from main.go).
func (m *Module) SetController(c *session.Controller) {
	m.controller = c
}

// SetHub sets the local hub (called from main.go).
func (m *Module) SetHub(h *hub.Hub) {
	m.hub = h
}

// SetResolver sets the registry lookup used by the REST surface.
func (m *Module) SetResolver(r ConnectionResolver) {
	m.resolver = r
}

// Start initializes the Fiber HTTP server.
func (m *Module) Start(_ context.Context) error {
	if m.controller == nil {
		return fmt.Errorf("session controller dependency not set")
	}
	if m.hub == nil {
		return fmt.Errorf("hub dependency not set")
	}
	if m.resolver == nil {
		return fmt.Errorf("connection resolver dependency not set")
	}

	m.app = fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          customErrorHandler,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          60 * time.Second,
		IdleTimeout:           120 * time.Second,
	})

	m.app.Use(recover.New())
	m.app.Use(loggerMiddleware())

	m.setupRoutes()

	go func() {
		if err := m.app.Listen(":" + m.port); err != nil {
			log.Printf("[api] HTTP server error: %v", err)
		}
	}()

	log.Printf("[api] HTTP server started on :%s", m.port)
	return nil
}

// Stop shuts down the Fiber HTTP server.
func (m *Module) Stop(_ context.Context) error {
	if m.app == nil {
		return nil
	}
	log.Println("[api] Shutting down HTTP server...")
	return m.app.Shutdown()
}

// Health returns the health status.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: m.app != nil,
		Message: "operational",
		Details: map[string]any{
			"port":              m.port,
			"connected_clients": m.hub.ClientCount(),
		},
	}
}

// customErrorHandler handles Fiber errors.
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(ErrorResponse{
		Error:   "server_error",
		Message: message,
	})
}

// loggerMiddleware returns a Fiber middleware for request logging.
func loggerMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		// Skip logging for WebSocket upgrade requests
		if c.Get("Upgrade") == "websocket" {
			return c.Next()
		}
		err := c.Next()
		log.Printf("[api] %s %s %d", c.Method(), c.Path(), c.Response().StatusCode())
		return err
	}
}
