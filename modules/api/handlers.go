package api

import (
	"context"
	"encoding/json"
	"log"

	"github.com/example/distributed-chat-demo/modules/hub"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const maxMessageLength = 4096

// setupRoutes configures all HTTP routes.
func (m *Module) setupRoutes() {
	// Health check
	m.app.Get("/health", m.healthHandler)

	// WebSocket endpoint
	m.app.Use("/chat", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	m.app.Get("/chat", websocket.New(m.handleWebSocket))

	// REST API v1
	api := m.app.Group("/api/v1")
	api.Get("/users/:id/connections", m.getUserConnections)
	api.Get("/rooms/:id/members", m.getRoomMembers)
	api.Post("/messages", m.sendMessage)
	api.Post("/broadcast", m.broadcast)
}

// healthHandler handles GET /health.
func (m *Module) healthHandler(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{
		Status: "healthy",
		Details: map[string]any{
			"module":            "api",
			"connected_clients": m.hub.ClientCount(),
		},
	})
}

// getUserConnections handles GET /api/v1/users/:id/connections.
func (m *Module) getUserConnections(c *fiber.Ctx) error {
	userID := c.Params("id")

	connIDs, err := m.resolver.Resolve(c.UserContext(), userID)
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{
			Error:   "registry_unavailable",
			Message: "Failed to resolve user connections",
		})
	}

	if connIDs == nil {
		connIDs = []string{}
	}
	return c.JSON(ConnectionsResponse{
		UserID:  userID,
		ConnIDs: connIDs,
	})
}

// getRoomMembers handles GET /api/v1/rooms/:id/members. Membership is
// instance-local: the count covers connections hosted by this server.
func (m *Module) getRoomMembers(c *fiber.Ctx) error {
	roomID := c.Params("id")

	return c.JSON(RoomMembersResponse{
		RoomID:  roomID,
		Members: m.hub.RoomClientCount(roomID),
	})
}

// sendMessage handles POST /api/v1/messages: a server-side SendTo.
func (m *Module) sendMessage(c *fiber.Ctx) error {
	var req SendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body",
		})
	}

	if req.UserID == "" || req.Content == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "validation_error",
			Message: "user_id and content are required",
		})
	}
	if len(req.Content) > maxMessageLength {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "validation_error",
			Message: "Message too long",
		})
	}

	if err := m.controller.SendTo(c.UserContext(), req.UserID, req.Content, req.SendBy); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{
			Error:   "routing_failed",
			Message: "Failed to route message",
		})
	}

	return c.Status(fiber.StatusAccepted).JSON(AcceptedResponse{Status: "accepted"})
}

// broadcast handles POST /api/v1/broadcast: a server-side SendAll.
func (m *Module) broadcast(c *fiber.Ctx) error {
	var req BroadcastRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body",
		})
	}

	if req.Content == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "validation_error",
			Message: "content is required",
		})
	}

	if err := m.controller.SendAll(c.UserContext(), req.Content, req.SendBy, ""); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{
			Error:   "routing_failed",
			Message: "Failed to route broadcast",
		})
	}

	return c.Status(fiber.StatusAccepted).JSON(AcceptedResponse{Status: "accepted"})
}

// handleWebSocket handles WebSocket connections at /chat. UserId and
// RoomId query parameters are read here, once, and captured into the
// client for the whole connection lifetime.
func (m *Module) handleWebSocket(c *websocket.Conn) {
	connID := uuid.New().String()
	userID := c.Query("UserId")
	roomID := c.Query("RoomId")

	client, err := m.controller.Connect(context.Background(), connID, userID, roomID, c)
	if err != nil {
		log.Printf("[api] Rejecting connection %s: %v", connID, err)
		_ = c.Close()
		return
	}

	// Cleanup is unconditional: it runs whether the loop below ends
	// with a clean close or an abrupt transport failure.
	var readErr error
	defer func() {
		m.controller.Disconnect(context.Background(), client, readErr)
	}()

	log.Printf("[api] WebSocket client connected: %s (user %s)", connID, client.UserID)

	for {
		_, msgBytes, err := c.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[api] Client %s closed connection", connID)
			} else {
				log.Printf("[api] Read error from %s: %v", connID, err)
				readErr = err
			}
			break
		}

		var req WSRequest
		if err := json.Unmarshal(msgBytes, &req); err != nil {
			m.sendError(client, "Invalid message format")
			continue
		}

		switch req.Type {
		case WSTypeSendTo:
			m.handleSendTo(client, req)
		case WSTypeSendAll:
			m.handleSendAll(client, req)
		default:
			m.sendError(client, "Unknown message type: "+req.Type)
		}
	}
}

func (m *Module) handleSendTo(client *hub.Client, req WSRequest) {
	if req.UserID == "" {
		m.sendError(client, "user_id is required")
		return
	}
	if req.Content == "" || len(req.Content) > maxMessageLength {
		m.sendError(client, "Invalid message content")
		return
	}

	if err := m.controller.SendTo(context.Background(), req.UserID, req.Content, client.UserID); err != nil {
		log.Printf("[api] SendTo from %s failed: %v", client.UserID, err)
		m.sendError(client, "Failed to route message")
	}
}

func (m *Module) handleSendAll(client *hub.Client, req WSRequest) {
	if req.Content == "" || len(req.Content) > maxMessageLength {
		m.sendError(client, "Invalid message content")
		return
	}

	if err := m.controller.SendAll(context.Background(), req.Content, client.UserID, client.ID); err != nil {
		log.Printf("[api] SendAll from %s failed: %v", client.UserID, err)
		m.sendError(client, "Failed to route broadcast")
	}
}

// sendError writes an error frame to the caller's own socket only.
func (m *Module) sendError(client *hub.Client, message string) {
	if err := client.SendEvent("Error", map[string]string{"message": message}); err != nil {
		log.Printf("[api] Failed to send error to %s: %v", client.ID, err)
	}
}
