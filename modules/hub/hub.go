// Package hub holds the per-instance connection table and room
// membership, and delivers routed events to locally hosted sockets.
package hub

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/example/distributed-chat-demo/events"
	"github.com/gofiber/contrib/websocket"
)

// Sender is the outbound half of a client socket. Satisfied by
// *websocket.Conn; tests substitute a fake.
type Sender interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client is one live connection. UserID and RoomID are captured once
// at connect time and never re-read from the transport.
type Client struct {
	ID     string
	UserID string
	RoomID string

	sender Sender
	mu     sync.Mutex
}

// NewClient wraps a socket in a Client.
func NewClient(id, userID, roomID string, sender Sender) *Client {
	return &Client{
		ID:     id,
		UserID: userID,
		RoomID: roomID,
		sender: sender,
	}
}

// Send writes one text frame. Serialized per client: the dispatch
// loop and the connection's own reader both reply on this socket.
func (c *Client) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sender.WriteMessage(websocket.TextMessage, data)
}

// SendEvent writes a named event frame to this client only.
func (c *Client) SendEvent(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	frame, err := json.Marshal(ClientFrame{Event: event, Data: data})
	if err != nil {
		return err
	}
	return c.Send(frame)
}

// Close closes the underlying socket.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sender.Close()
}

// ClientFrame is the envelope written to client sockets.
type ClientFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Hub manages local connections and room membership, and fans routed
// events out to them.
type Hub struct {
	clients  map[string]*Client         // connID -> Client
	rooms    map[string]map[string]bool // roomID -> set of connIDs
	dispatch chan events.RoutedEvent
	done     chan struct{}
	mu       sync.RWMutex
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		clients:  make(map[string]*Client),
		rooms:    make(map[string]map[string]bool),
		dispatch: make(chan events.RoutedEvent, 256),
		done:     make(chan struct{}),
	}
}

// Run drains the dispatch queue until the context is canceled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			log.Println("[hub] Shutting down...")
			h.closeAllClients()
			close(h.done)
			return
		case evt := <-h.dispatch:
			h.deliver(evt)
		}
	}
}

// Wait blocks until the hub has stopped.
func (h *Hub) Wait() {
	<-h.done
}

// Dispatch queues a routed event for local delivery. Every instance's
// hub sees every event; delivery goes only to targets hosted here.
// Events arriving after shutdown are dropped rather than blocking the
// caller (a late backplane callback must not hang its goroutine).
func (h *Hub) Dispatch(evt events.RoutedEvent) {
	select {
	case h.dispatch <- evt:
	case <-h.done:
	}
}

// Register adds a client to the connection table.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client.ID] = client
	log.Printf("[hub] Client %s (user %s) registered", client.ID, client.UserID)
}

// Unregister removes a client. Unknown IDs are ignored: the disconnect
// path must never fail.
func (h *Hub) Unregister(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client, ok := h.clients[connID]
	if !ok {
		return
	}
	delete(h.clients, connID)
	log.Printf("[hub] Client %s (user %s) unregistered", connID, client.UserID)
}

// JoinRoom adds a connection to a room. No-op when roomID is empty
// (global scope) or the connection is not registered.
func (h *Hub) JoinRoom(connID, roomID string) {
	if roomID == "" {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[connID]; !ok {
		return
	}
	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[string]bool)
	}
	h.rooms[roomID][connID] = true
	log.Printf("[hub] Client %s joined room %s", connID, roomID)
}

// LeaveRoom removes a connection from a room, mirroring JoinRoom's
// no-op rules. Empty rooms are dropped from the table.
func (h *Hub) LeaveRoom(connID, roomID string) {
	if roomID == "" {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.rooms[roomID] == nil {
		return
	}
	delete(h.rooms[roomID], connID)
	if len(h.rooms[roomID]) == 0 {
		delete(h.rooms, roomID)
	}
	log.Printf("[hub] Client %s left room %s", connID, roomID)
}

// deliver fans one routed event out to the local targets it names.
// A failed write to one socket never blocks delivery to the rest.
func (h *Hub) deliver(evt events.RoutedEvent) {
	frame, err := json.Marshal(ClientFrame{Event: evt.Event, Data: evt.Payload})
	if err != nil {
		log.Printf("[hub] Failed to marshal event %s: %v", evt.Event, err)
		return
	}

	h.mu.RLock()
	targets := h.resolveLocked(evt.Target)
	h.mu.RUnlock()

	for _, client := range targets {
		if err := client.Send(frame); err != nil {
			log.Printf("[hub] Failed to send %s to client %s: %v", evt.Event, client.ID, err)
		}
	}
}

// resolveLocked collects the locally hosted clients a target names.
// Callers hold at least a read lock.
func (h *Hub) resolveLocked(target events.Target) []*Client {
	var targets []*Client
	switch target.Kind {
	case events.TargetConnections:
		for _, connID := range target.ConnIDs {
			if client, ok := h.clients[connID]; ok {
				targets = append(targets, client)
			}
		}
	case events.TargetRoom:
		for connID := range h.rooms[target.RoomID] {
			if client, ok := h.clients[connID]; ok {
				targets = append(targets, client)
			}
		}
	case events.TargetBroadcast:
		for connID, client := range h.clients {
			if connID == target.ExcludeConn {
				continue
			}
			targets = append(targets, client)
		}
	default:
		log.Printf("[hub] Unknown target kind %q", target.Kind)
	}
	return targets
}

// closeAllClients closes every connected socket.
func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.clients {
		_ = client.Close()
	}
	h.clients = make(map[string]*Client)
	h.rooms = make(map[string]map[string]bool)
}

// client returns a client by connection ID.
func (h *Hub) client(connID string) *Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.clients[connID]
}

// ClientCount returns the number of locally hosted connections.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// RoomClientCount returns the number of local connections in a room.
func (h *Hub) RoomClientCount(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}
