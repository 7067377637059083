/**
 * @description
 * This package provides the realtime fan-out used to push alert events to
 * creator overlays. Each creator has a single channel named
 * `stream-{handle}`; named events ('donation', 'goal-progress') are wrapped in
 * a small JSON envelope and delivered at-most-once with no persistence; a
 * missed delivery is not retried.
 *
 * The Publisher interface is injected wherever events are emitted so no
 * global client state leaks into the business logic, and tests can capture
 * publishes with a stub.
 *
 * @dependencies
 * - context, encoding/json: Standard Go libraries.
 * - github.com/redis/go-redis/v9: Redis client; PUBLISH gives exactly the
 *   fire-and-forget semantics the overlay channel needs.
 */

package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"
)

// Publisher delivers a named event on a channel.
type Publisher interface {
	Publish(ctx context.Context, channel, event string, payload any) error
	Close() error
}

// Channel returns the overlay channel name for a creator handle.
func Channel(handle string) string {
	return "stream-" + handle
}

// Envelope is the wire format carried on overlay channels.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// RedisPublisher publishes overlay events over Redis pub/sub.
type RedisPublisher struct {
	client redis.UniversalClient
}

// NewRedisPublisher wraps an already-connected Redis client.
func NewRedisPublisher(client redis.UniversalClient) *RedisPublisher {
	return &RedisPublisher{client: client}
}

// Publish marshals the payload into an envelope and fires it on the channel.
func (p *RedisPublisher) Publish(ctx context.Context, channel, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", event, err)
	}
	body, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		return fmt.Errorf("marshal %s envelope: %w", event, err)
	}
	return p.client.Publish(ctx, channel, body).Err()
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

// NoopPublisher is a minimal publisher used when Redis is unavailable at
// startup. Alert delivery degrades; money correctness is unaffected.
type NoopPublisher struct{}

func (NoopPublisher) Publish(ctx context.Context, channel, event string, payload any) error {
	log.Printf("level=warn component=pubsub mode=fallback msg=\"publish skipped\" channel=%s event=%s", channel, event)
	return nil
}

func (NoopPublisher) Close() error { return nil }
