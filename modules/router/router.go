// Package router resolves delivery targets (single user, room,
// broadcast) and emits routed events onto the backplane.
package router

import (
	"context"
	"fmt"
	"log"

	"github.com/example/distributed-chat-demo/domain/chat"
	"github.com/example/distributed-chat-demo/events"
)

// Resolver looks up the cluster-wide connection set of a user.
type Resolver interface {
	Resolve(ctx context.Context, userID string) ([]string, error)
}

// Publisher emits routed events onto the backplane.
type Publisher interface {
	Publish(ctx context.Context, evt events.RoutedEvent) error
}

// Router fans messages out to resolved connection targets. All
// emission goes through the backplane; connections hosted by this
// instance are reached the same way as remote ones, via the
// instance's own subscription. No caching: every call publishes.
type Router struct {
	resolver  Resolver
	publisher Publisher
}

// New creates a router.
func New(resolver Resolver, publisher Publisher) *Router {
	return &Router{
		resolver:  resolver,
		publisher: publisher,
	}
}

// SendToUser delivers msg to every live connection of userID, on this
// instance or any other. When the user has no connections, exactly one
// visible not-found notice is broadcast instead and the call succeeds
// (policy: notice over silent drop, applied at every call site).
func (r *Router) SendToUser(ctx context.Context, userID string, msg chat.ChatMessage) error {
	connIDs, err := r.resolver.Resolve(ctx, userID)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", userID, err)
	}

	if len(connIDs) == 0 {
		log.Printf("[router] User %s has no live connections", userID)
		return r.publish(ctx, events.EventBroadcast,
			events.ToAll(""), chat.NewUserNotFoundEvent(userID))
	}

	return r.publish(ctx, events.EventReceiveMessage,
		events.ToConnections(connIDs), msg)
}

// SendToRoom delivers an event to every connection joined to roomID,
// cluster-wide.
func (r *Router) SendToRoom(ctx context.Context, roomID, event string, payload any) error {
	return r.publish(ctx, event, events.ToRoom(roomID), payload)
}

// Broadcast delivers an event to every connection in the cluster,
// optionally excluding the caller's own connection.
func (r *Router) Broadcast(ctx context.Context, event string, payload any, excludeConn string) error {
	return r.publish(ctx, event, events.ToAll(excludeConn), payload)
}

func (r *Router) publish(ctx context.Context, event string, target events.Target, payload any) error {
	evt, err := events.NewRoutedEvent(event, target, payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", event, err)
	}
	if err := r.publisher.Publish(ctx, evt); err != nil {
		return fmt.Errorf("route %s: %w", event, err)
	}
	return nil
}
