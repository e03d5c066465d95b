// Package session sequences the per-connection lifecycle: registration
// and room join on connect, unconditional cleanup on disconnect, and
// the client-facing send operations in between.
package session

import (
	"context"
	"fmt"
	"log"

	"github.com/example/distributed-chat-demo/domain/chat"
	"github.com/example/distributed-chat-demo/events"
	"github.com/example/distributed-chat-demo/modules/hub"
)

// Binder is the cluster-wide connection registry.
type Binder interface {
	Bind(ctx context.Context, userID, connID string) error
	Unbind(ctx context.Context, userID, connID string) error
}

// ConnectionTable is the local hub's registration and grouping surface.
type ConnectionTable interface {
	Register(client *hub.Client)
	Unregister(connID string)
	JoinRoom(connID, roomID string)
	LeaveRoom(connID, roomID string)
}

// EventRouter emits events to resolved targets.
type EventRouter interface {
	SendToUser(ctx context.Context, userID string, msg chat.ChatMessage) error
	SendToRoom(ctx context.Context, roomID, event string, payload any) error
	Broadcast(ctx context.Context, event string, payload any, excludeConn string) error
}

// Controller coordinates connect/disconnect sequencing and message
// dispatch for one server instance.
type Controller struct {
	registry Binder
	table    ConnectionTable
	router   EventRouter
}

// NewController creates a lifecycle controller.
func NewController(registry Binder, table ConnectionTable, router EventRouter) *Controller {
	return &Controller{
		registry: registry,
		table:    table,
		router:   router,
	}
}

// Connect admits a new connection. The user identity defaults to the
// connection ID when no UserId was supplied, so every connection has a
// usable identity key. Identity and room are captured once, into the
// returned client; disconnect never re-reads transport metadata.
//
// Registration is fail-closed: a connection whose binding or join
// notice cannot be confirmed cluster-wide is rejected rather than
// admitted with broken routing.
func (c *Controller) Connect(ctx context.Context, connID, userID, roomID string, sender hub.Sender) (*hub.Client, error) {
	if userID == "" {
		userID = connID
	}

	client := hub.NewClient(connID, userID, roomID, sender)
	c.table.Register(client)

	if err := c.registry.Bind(ctx, userID, connID); err != nil {
		c.table.Unregister(connID)
		return nil, fmt.Errorf("connect %s: %w", connID, err)
	}

	c.table.JoinRoom(connID, roomID)

	if err := c.routeSystemEvent(ctx, events.EventUserJoined, chat.NewJoinEvent(userID, roomID), roomID); err != nil {
		c.unwind(ctx, client)
		return nil, fmt.Errorf("connect %s: %w", connID, err)
	}

	log.Printf("[session] User %s connected (conn %s, room %q)", userID, connID, roomID)
	return client, nil
}

// Disconnect tears a connection down. Cleanup is unconditional and
// best-effort: it runs to completion even when the socket died
// abruptly, and a registry failure is logged rather than escalated so
// the transport's shutdown path never stalls.
func (c *Controller) Disconnect(ctx context.Context, client *hub.Client, reason error) {
	if reason != nil {
		log.Printf("[session] Connection %s closing after error: %v", client.ID, reason)
	}

	if err := c.registry.Unbind(ctx, client.UserID, client.ID); err != nil {
		log.Printf("[session] Failed to unbind user %s conn %s: %v", client.UserID, client.ID, err)
	}

	c.table.LeaveRoom(client.ID, client.RoomID)
	c.table.Unregister(client.ID)

	if err := c.routeSystemEvent(ctx, events.EventUserLeaved, chat.NewLeaveEvent(client.UserID, client.RoomID), client.RoomID); err != nil {
		log.Printf("[session] Failed to route leave notice for %s: %v", client.UserID, err)
	}

	log.Printf("[session] User %s disconnected (conn %s)", client.UserID, client.ID)
}

// SendTo delivers a message to every live connection of the target
// user, anywhere in the cluster.
func (c *Controller) SendTo(ctx context.Context, targetUserID, message, sendBy string) error {
	return c.router.SendToUser(ctx, targetUserID, chat.NewChatMessage(sendBy, message))
}

// SendAll delivers a message to every connected client except the
// sender's own connection.
func (c *Controller) SendAll(ctx context.Context, message, sendBy, senderConnID string) error {
	return c.router.Broadcast(ctx, events.EventReceiveMessage,
		chat.NewChatMessage(sendBy, message), senderConnID)
}

// routeSystemEvent scopes a join/leave notice to the room when one was
// supplied, or to the whole cluster otherwise. Connect and disconnect
// use the same rule so the pair is always scoped identically.
func (c *Controller) routeSystemEvent(ctx context.Context, event string, payload chat.SystemEvent, roomID string) error {
	if roomID != "" {
		return c.router.SendToRoom(ctx, roomID, event, payload)
	}
	return c.router.Broadcast(ctx, event, payload, "")
}

// unwind reverses a partially completed connect.
func (c *Controller) unwind(ctx context.Context, client *hub.Client) {
	if err := c.registry.Unbind(ctx, client.UserID, client.ID); err != nil {
		log.Printf("[session] Failed to unwind binding for %s: %v", client.UserID, err)
	}
	c.table.LeaveRoom(client.ID, client.RoomID)
	c.table.Unregister(client.ID)
}
