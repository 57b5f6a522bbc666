package persist

import (
	"context"
	"fmt"
	"strings"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// EtcdOptions configures the etcd connection.
type EtcdOptions struct {
	// Endpoints is the list of etcd cluster endpoints.
	Endpoints []string

	// Namespace prefixes every key. Defaults to "knowledge".
	Namespace string

	// DialTimeout is the maximum time to wait for connection establishment.
	DialTimeout time.Duration
}

// EtcdBackend implements Backend using the etcd v3 KV API.
//
// Records live under /<namespace>/<kind>/<id>. List uses a prefix range
// query, so it scales with the number of records of that kind only.
type EtcdBackend struct {
	client    *clientv3.Client
	namespace string
}

// NewEtcdBackend creates an etcd persistence backend with the given options.
func NewEtcdBackend(opts EtcdOptions) (*EtcdBackend, error) {
	if len(opts.Endpoints) == 0 {
		return nil, fmt.Errorf("etcd endpoints cannot be empty")
	}
	if opts.Namespace == "" {
		opts.Namespace = "knowledge"
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = 5 * time.Second
	}

	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   opts.Endpoints,
		DialTimeout: opts.DialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create etcd client: %w", err)
	}

	// Verify connectivity with a quick health check
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if _, err := cli.Get(ctx, "health-check"); err != nil && err != context.DeadlineExceeded {
		cli.Close()
		return nil, fmt.Errorf("etcd health check failed: %w", err)
	}

	return &EtcdBackend{client: cli, namespace: opts.Namespace}, nil
}

func (b *EtcdBackend) recordKey(kind, id string) string {
	return fmt.Sprintf("/%s/%s/%s", b.namespace, kind, id)
}

func (b *EtcdBackend) kindPrefix(kind string) string {
	return fmt.Sprintf("/%s/%s/", b.namespace, kind)
}

// Save writes the record for (kind, id).
func (b *EtcdBackend) Save(ctx context.Context, kind, id string, data []byte) error {
	if _, err := b.client.Put(ctx, b.recordKey(kind, id), string(data)); err != nil {
		return fmt.Errorf("failed to save %s %s: %w", kind, id, err)
	}
	return nil
}

// Load reads the record for (kind, id).
func (b *EtcdBackend) Load(ctx context.Context, kind, id string) ([]byte, error) {
	resp, err := b.client.Get(ctx, b.recordKey(kind, id))
	if err != nil {
		return nil, fmt.Errorf("failed to load %s %s: %w", kind, id, err)
	}
	if len(resp.Kvs) == 0 {
		return nil, ErrNotFound
	}
	return resp.Kvs[0].Value, nil
}

// Delete removes the record for (kind, id).
func (b *EtcdBackend) Delete(ctx context.Context, kind, id string) error {
	if _, err := b.client.Delete(ctx, b.recordKey(kind, id)); err != nil {
		return fmt.Errorf("failed to delete %s %s: %w", kind, id, err)
	}
	return nil
}

// List returns all records of the given kind via a prefix range query.
func (b *EtcdBackend) List(ctx context.Context, kind string) (map[string][]byte, error) {
	prefix := b.kindPrefix(kind)
	resp, err := b.client.Get(ctx, prefix, clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("failed to list %s records: %w", kind, err)
	}

	out := make(map[string][]byte, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		id := strings.TrimPrefix(string(kv.Key), prefix)
		out[id] = kv.Value
	}
	return out, nil
}

// Close closes the etcd connection.
func (b *EtcdBackend) Close() error {
	return b.client.Close()
}
