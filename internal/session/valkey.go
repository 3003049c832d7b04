package session

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/valkey-io/valkey-go"
)

// ValkeyConfig holds connection settings for the Valkey backend.
type ValkeyConfig struct {
	// Address is the Valkey server address (e.g. "valkey.namespace.svc:6379").
	Address string

	// Password is the optional authentication password.
	Password string

	// DB is the database number.
	DB int

	// TLSEnabled enables TLS for the connection.
	TLSEnabled bool
}

// ValkeyBackend stores sessions and credentials in a Valkey server so that
// multiple dispatcher instances can share one session space. TTL enforcement
// is delegated to the server via SET EX / KEEPTTL.
type ValkeyBackend struct {
	client valkey.Client
}

// NewValkeyBackend connects to the configured Valkey server.
func NewValkeyBackend(config ValkeyConfig) (*ValkeyBackend, error) {
	if config.Address == "" {
		return nil, fmt.Errorf("valkey address is required")
	}

	option := valkey.ClientOption{
		InitAddress: []string{config.Address},
		Password:    config.Password,
		SelectDB:    config.DB,
	}
	if config.TLSEnabled {
		option.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	client, err := valkey.NewClient(option)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to valkey at %s: %w", config.Address, err)
	}

	return &ValkeyBackend{client: client}, nil
}

// Set implements Backend.
func (b *ValkeyBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	cmd := b.client.B().Set().Key(key).Value(string(value)).Ex(ttl).Build()
	if err := b.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("valkey set %s: %w", key, err)
	}
	return nil
}

// SetKeepTTL implements Backend. XX restricts the write to existing keys so
// an expired record cannot be resurrected without a TTL.
func (b *ValkeyBackend) SetKeepTTL(ctx context.Context, key string, value []byte) error {
	cmd := b.client.B().Set().Key(key).Value(string(value)).Xx().Keepttl().Build()
	if err := b.client.Do(ctx, cmd).Error(); err != nil && !valkey.IsValkeyNil(err) {
		return fmt.Errorf("valkey set keepttl %s: %w", key, err)
	}
	return nil
}

// Get implements Backend.
func (b *ValkeyBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := b.client.Do(ctx, b.client.B().Get().Key(key).Build()).AsBytes()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("valkey get %s: %w", key, err)
	}
	return value, true, nil
}

// Delete implements Backend.
func (b *ValkeyBackend) Delete(ctx context.Context, key string) error {
	if err := b.client.Do(ctx, b.client.B().Del().Key(key).Build()).Error(); err != nil {
		return fmt.Errorf("valkey del %s: %w", key, err)
	}
	return nil
}

// Close implements Backend.
func (b *ValkeyBackend) Close() error {
	b.client.Close()
	return nil
}
