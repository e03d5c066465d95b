package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/example/distributed-chat-demo/modules/api"
	"github.com/example/distributed-chat-demo/modules/backplane"
	"github.com/example/distributed-chat-demo/modules/hub"
	"github.com/example/distributed-chat-demo/modules/registry"
	"github.com/example/distributed-chat-demo/modules/router"
	"github.com/example/distributed-chat-demo/modules/session"
	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-monolith/mono"
)

const shutdownTimeout = 30 * time.Second

func main() {
	log.Println("=== Distributed Chat - Fiber + Redis Registry + NATS Backplane ===")

	// Create mono application
	app, err := mono.NewMonoApplication(
		mono.WithShutdownTimeout(shutdownTimeout),
		mono.WithLogLevel(mono.LogLevelInfo),
		mono.WithLogFormat(mono.LogFormatText),
	)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	// Create modules
	registryModule := registry.NewModule(registry.Config{
		RedisAddr: envOr("REDIS_ADDR", "localhost:6379"),
		Prefix:    registry.DefaultKeyPrefix,
	})
	backplaneModule := backplane.NewModule(backplane.Config{
		URL: envOr("NATS_URL", "nats://localhost:4222"),
	})
	hubModule := hub.NewModule()
	apiModule := api.NewModule(os.Getenv("PORT"))

	// Wire the routing core. The router publishes every event to the
	// backplane; each instance's hub receives its own copy and
	// delivers to locally hosted connections.
	rtr := router.New(registryModule.Registry(), backplaneModule.Client())
	controller := session.NewController(registryModule.Registry(), hubModule.Hub(), rtr)

	backplaneModule.SetDispatcher(hubModule.Hub())
	apiModule.SetController(controller)
	apiModule.SetHub(hubModule.Hub())
	apiModule.SetResolver(registryModule.Registry())

	// Register modules with the framework.
	// Order: infrastructure first, then the API that serves traffic.
	app.Register(hubModule)       // local connection table + dispatch loop
	app.Register(registryModule)  // Redis-backed connection registry
	app.Register(backplaneModule) // NATS backplane pub/sub
	app.Register(apiModule)       // HTTP/WebSocket API

	// Start application
	if err := app.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	printStartupInfo()

	// Graceful shutdown
	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"mono-app": func(ctx context.Context) error {
				log.Println("Graceful shutdown initiated...")
				return app.Stop(ctx)
			},
		},
	)

	exitCode := <-wait
	log.Printf("Application exited with code: %d", exitCode)
	os.Exit(exitCode)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func printStartupInfo() {
	port := envOr("PORT", "3000")

	log.Println("")
	log.Println("Application started successfully!")
	log.Println("")
	log.Println("Architecture:")
	log.Println("  - HTTP Framework: Fiber with WebSocket support")
	log.Println("  - Connection Registry: Redis lists (user -> connection IDs)")
	log.Printf("  - Redis: %s", envOr("REDIS_ADDR", "localhost:6379"))
	log.Println("  - Backplane: NATS pub/sub (cross-instance event fan-out)")
	log.Printf("  - NATS: %s", envOr("NATS_URL", "nats://localhost:4222"))
	log.Println("")
	log.Printf("REST API Endpoints (http://localhost:%s):", port)
	log.Println("  GET    /health                        - Health check")
	log.Println("  GET    /api/v1/users/:id/connections  - Resolve a user's connections")
	log.Println("  GET    /api/v1/rooms/:id/members      - Local member count of a room")
	log.Println("  POST   /api/v1/messages               - Send to one user (all devices)")
	log.Println("  POST   /api/v1/broadcast              - Send to everyone")
	log.Println("")
	log.Printf("WebSocket Endpoint (ws://localhost:%s/chat):", port)
	log.Println("  Connect with: ws://localhost:3000/chat?UserId=alice&RoomId=lobby")
	log.Println("  Frame types: send_to, send_all")
	log.Println("")
	log.Println("Press Ctrl+C to shutdown gracefully")
}
