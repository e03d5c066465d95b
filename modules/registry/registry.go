// Package registry maps user identities to their live connection IDs
// across all server instances, backed by Redis lists.
package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces registry keys in the shared store.
const DefaultKeyPrefix = "chat:user:"

// Registry is the cluster-wide user -> connections mapping. One Redis
// list per user, append on connect, targeted remove on disconnect, so
// concurrent binds from different instances never clobber each other.
type Registry struct {
	client *redis.Client
	prefix string
}

// New creates a registry on top of an existing Redis client.
func New(client *redis.Client, prefix string) *Registry {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &Registry{client: client, prefix: prefix}
}

// Bind appends connID to the connection list for userID. Duplicate
// binds append again rather than corrupting order. A store failure is
// returned so the caller can refuse the connection instead of
// accepting it with broken cluster-wide routing.
func (r *Registry) Bind(ctx context.Context, userID, connID string) error {
	if err := r.client.RPush(ctx, r.key(userID), connID).Err(); err != nil {
		return fmt.Errorf("registry bind %s: %w", userID, err)
	}
	return nil
}

// Unbind removes exactly one occurrence of connID from the list for
// userID. A missing key or element is success: the disconnect path
// must tolerate connections that were never bound or already removed.
// Redis drops the key itself once the list is empty.
func (r *Registry) Unbind(ctx context.Context, userID, connID string) error {
	if err := r.client.LRem(ctx, r.key(userID), 1, connID).Err(); err != nil {
		return fmt.Errorf("registry unbind %s: %w", userID, err)
	}
	return nil
}

// Resolve returns the connection IDs currently bound to userID in
// append order. An unknown user yields an empty slice, not an error;
// only store unavailability is reported.
func (r *Registry) Resolve(ctx context.Context, userID string) ([]string, error) {
	connIDs, err := r.client.LRange(ctx, r.key(userID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("registry resolve %s: %w", userID, err)
	}
	return connIDs, nil
}

// Ping checks the Redis connection.
func (r *Registry) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Registry) key(userID string) string {
	return r.prefix + userID
}

// Config holds registry store configuration.
type Config struct {
	RedisAddr string
	Prefix    string
}

// DefaultConfig returns the default registry configuration.
func DefaultConfig() Config {
	return Config{
		RedisAddr: "localhost:6379",
		Prefix:    DefaultKeyPrefix,
	}
}

// NewRedisClient builds the Redis client the registry runs on.
func NewRedisClient(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		PoolSize:     50,
		MinIdleConns: 5,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
}
