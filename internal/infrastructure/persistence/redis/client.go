// Package redis implements the Redis-backed pieces of the economy engine: a
// distributed per-account lock and stream publishing for events and audit
// records.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrConnection is returned when Redis connection fails.
	ErrConnection = errors.New("redis: connection failed")

	// ErrSerialization is returned when a message cannot be encoded.
	ErrSerialization = errors.New("redis: serialization failed")

	// ErrKeyEmpty is returned when an empty key or stream name is provided.
	ErrKeyEmpty = errors.New("redis: key cannot be empty")
)

// ══════════════════════════════════════════════════════════════════════════════
// KEY PREFIXES
// ══════════════════════════════════════════════════════════════════════════════

// Key prefixes for namespacing Redis keys.
const (
	// PrefixLock is the prefix for distributed lock keys.
	PrefixLock = "economy:lock:"

	// PrefixStream is the prefix for stream names.
	PrefixStream = "economy:stream:"
)

// TTLAccountLock is the default account lock TTL. It bounds how long a crashed
// holder can block an account.
const TTLAccountLock = 30 * time.Second

// LockKey generates a key for an account lock.
func LockKey(accountID string) string {
	return PrefixLock + accountID
}

// StreamName generates a stream name.
func StreamName(name string) string {
	return PrefixStream + name
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client wraps a go-redis client.
type Client struct {
	client *redis.Client
}

// Connect parses a redis:// URL, connects and pings.
func Connect(ctx context.Context, url string) (*Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis: invalid URL: %w", err)
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}
	return &Client{client: client}, nil
}

// Raw returns the underlying client.
func (c *Client) Raw() *redis.Client {
	return c.client
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.client.Close()
}

// Ping checks if Redis is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// ══════════════════════════════════════════════════════════════════════════════
// STREAMS
// ══════════════════════════════════════════════════════════════════════════════

// StreamAdder is the subset of the client used for publishing.
type StreamAdder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// Envelope is the stream message format.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// StreamPublisher appends JSON envelopes to a capped stream.
type StreamPublisher struct {
	client StreamAdder
	stream string
	maxLen int64
}

// NewStreamPublisher creates a publisher for the named stream. maxLen caps
// the stream approximately; 0 means uncapped.
func NewStreamPublisher(client StreamAdder, name string, maxLen int64) *StreamPublisher {
	return &StreamPublisher{client: client, stream: StreamName(name), maxLen: maxLen}
}

// Stream returns the full stream name.
func (p *StreamPublisher) Stream() string {
	return p.stream
}

// Publish appends one message and returns its stream ID.
func (p *StreamPublisher) Publish(ctx context.Context, msgType string, payload interface{}) (string, error) {
	if msgType == "" {
		return "", ErrKeyEmpty
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	env, err := json.Marshal(Envelope{Type: msgType, Payload: data})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSerialization, err)
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{"type": msgType, "message": string(env)},
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}
	id, err := p.client.XAdd(ctx, args).Result()
	if err != nil {
		return "", fmt.Errorf("redis: xadd %s: %w", p.stream, err)
	}
	return id, nil
}
