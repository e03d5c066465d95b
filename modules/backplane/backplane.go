// Package backplane propagates routed events between server instances
// over NATS. Every instance publishes here and every instance,
// including the publisher, receives its own subscription copy and
// delivers to the connections it hosts.
package backplane

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/example/distributed-chat-demo/events"
	"github.com/nats-io/nats.go"
)

// Dispatcher receives every routed event seen on the backplane and
// delivers it to locally hosted connections.
type Dispatcher interface {
	Dispatch(evt events.RoutedEvent)
}

// Config holds backplane configuration.
type Config struct {
	URL string
}

// DefaultConfig returns the default backplane configuration.
func DefaultConfig() Config {
	return Config{
		URL: "nats://localhost:4222",
	}
}

// Client wraps the NATS connection used as the cluster backplane.
type Client struct {
	nc  *nats.Conn
	sub *nats.Subscription
	url string
}

// NewClient creates an unconnected backplane client.
func NewClient(cfg Config) *Client {
	if cfg.URL == "" {
		cfg = DefaultConfig()
	}
	return &Client{url: cfg.URL}
}

// Connect establishes the NATS connection.
func (c *Client) Connect(_ context.Context) error {
	nc, err := nats.Connect(c.url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(10),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	c.nc = nc

	log.Printf("[backplane] Connected to NATS at %s", c.url)
	return nil
}

// Subscribe starts forwarding every routed event to the dispatcher.
// Malformed payloads are logged and dropped; they never tear down the
// subscription.
func (c *Client) Subscribe(dispatcher Dispatcher) error {
	sub, err := c.nc.Subscribe(events.SubjectRouted, func(msg *nats.Msg) {
		c.handleMessage(dispatcher, msg.Data)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", events.SubjectRouted, err)
	}
	c.sub = sub

	log.Printf("[backplane] Subscribed to %s", events.SubjectRouted)
	return nil
}

// handleMessage decodes one wire payload and hands it to the
// dispatcher. Malformed payloads are logged and dropped.
func (c *Client) handleMessage(dispatcher Dispatcher, data []byte) {
	var evt events.RoutedEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		log.Printf("[backplane] Dropping malformed event: %v", err)
		return
	}
	dispatcher.Dispatch(evt)
}

// Publish sends a routed event to every instance. A failure here means
// cluster-wide delivery is broken, so it is returned rather than
// swallowed.
func (c *Client) Publish(_ context.Context, evt events.RoutedEvent) error {
	if c.nc == nil || !c.nc.IsConnected() {
		return fmt.Errorf("backplane unavailable: not connected to NATS")
	}

	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal routed event: %w", err)
	}

	if err := c.nc.Publish(events.SubjectRouted, data); err != nil {
		return fmt.Errorf("backplane publish: %w", err)
	}
	return nil
}

// Connected reports whether the NATS connection is live.
func (c *Client) Connected() bool {
	return c.nc != nil && c.nc.IsConnected()
}

// Close drains the subscription and connection so in-flight events are
// handed to the dispatcher before shutdown.
func (c *Client) Close() error {
	if c.nc == nil {
		return nil
	}
	if err := c.nc.Drain(); err != nil {
		return fmt.Errorf("failed to drain NATS connection: %w", err)
	}
	return nil
}
