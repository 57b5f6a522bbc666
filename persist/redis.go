package persist

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisOptions configures the Redis connection.
type RedisOptions struct {
	// URL is the Redis connection string (e.g., "redis://localhost:6379")
	URL string

	// Namespace prefixes every key so multiple deployments can share one
	// Redis instance. Defaults to "knowledge".
	Namespace string

	// TLS configuration for secure connections
	TLS *tls.Config

	// ConnectTimeout is the maximum time to wait for connection establishment
	ConnectTimeout time.Duration

	// ReadTimeout is the maximum time to wait for read operations
	ReadTimeout time.Duration

	// WriteTimeout is the maximum time to wait for write operations
	WriteTimeout time.Duration
}

// RedisBackend implements Backend using go-redis/v9.
//
// Each record lives under <namespace>:<kind>:<id>, and a set at
// <namespace>:<kind> tracks the IDs of that kind so List does not need
// a SCAN over the whole keyspace.
type RedisBackend struct {
	client    *redis.Client
	namespace string
}

// NewRedisBackend creates a Redis persistence backend with the given options.
func NewRedisBackend(opts RedisOptions) (*RedisBackend, error) {
	if opts.URL == "" {
		opts.URL = "redis://localhost:6379"
	}
	if opts.Namespace == "" {
		opts.Namespace = "knowledge"
	}
	if opts.ConnectTimeout == 0 {
		opts.ConnectTimeout = 5 * time.Second
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = 30 * time.Second
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = 5 * time.Second
	}

	redisOpts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	redisOpts.TLSConfig = opts.TLS
	redisOpts.DialTimeout = opts.ConnectTimeout
	redisOpts.ReadTimeout = opts.ReadTimeout
	redisOpts.WriteTimeout = opts.WriteTimeout

	client := redis.NewClient(redisOpts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), opts.ConnectTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisBackend{client: client, namespace: opts.Namespace}, nil
}

// NewRedisBackendFromClient wraps an existing Redis client. Used by tests
// and by callers that manage the client lifecycle themselves.
func NewRedisBackendFromClient(client *redis.Client, namespace string) *RedisBackend {
	if namespace == "" {
		namespace = "knowledge"
	}
	return &RedisBackend{client: client, namespace: namespace}
}

func (b *RedisBackend) recordKey(kind, id string) string {
	return fmt.Sprintf("%s:%s:%s", b.namespace, kind, id)
}

func (b *RedisBackend) indexKey(kind string) string {
	return fmt.Sprintf("%s:%s", b.namespace, kind)
}

// Save writes the record and adds its ID to the kind index set.
func (b *RedisBackend) Save(ctx context.Context, kind, id string, data []byte) error {
	if err := b.client.Set(ctx, b.recordKey(kind, id), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save %s %s: %w", kind, id, err)
	}
	if err := b.client.SAdd(ctx, b.indexKey(kind), id).Err(); err != nil {
		return fmt.Errorf("failed to index %s %s: %w", kind, id, err)
	}
	return nil
}

// Load reads the record for (kind, id).
func (b *RedisBackend) Load(ctx context.Context, kind, id string) ([]byte, error) {
	data, err := b.client.Get(ctx, b.recordKey(kind, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s %s: %w", kind, id, err)
	}
	return data, nil
}

// Delete removes the record and its index entry.
func (b *RedisBackend) Delete(ctx context.Context, kind, id string) error {
	if err := b.client.Del(ctx, b.recordKey(kind, id)).Err(); err != nil {
		return fmt.Errorf("failed to delete %s %s: %w", kind, id, err)
	}
	if err := b.client.SRem(ctx, b.indexKey(kind), id).Err(); err != nil {
		return fmt.Errorf("failed to unindex %s %s: %w", kind, id, err)
	}
	return nil
}

// List returns all records of the given kind. IDs present in the index set
// but missing their record are skipped.
func (b *RedisBackend) List(ctx context.Context, kind string) (map[string][]byte, error) {
	ids, err := b.client.SMembers(ctx, b.indexKey(kind)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list %s records: %w", kind, err)
	}

	out := make(map[string][]byte, len(ids))
	for _, id := range ids {
		data, err := b.client.Get(ctx, b.recordKey(kind, id)).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load %s %s: %w", kind, id, err)
		}
		out[id] = data
	}
	return out, nil
}

// Close closes the Redis connection.
func (b *RedisBackend) Close() error {
	return b.client.Close()
}
