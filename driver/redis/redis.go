// driver/redis/redis.go
package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/chmenegatti/typeprefs/pkg/backends"
	"github.com/chmenegatti/typeprefs/pkg/backends/common"
	"github.com/chmenegatti/typeprefs/pkg/config"
)

// Name is the registry name of this backend.
const Name = "redis"

var _ common.Backend = (*Backend)(nil)

func init() {
	backends.Register(Name, func() common.Backend { return New() })
}

// Backend keeps every preference as a field of one Redis hash.
type Backend struct {
	mu     sync.RWMutex
	client *redis.Client
	hash   string
}

// New returns an unopened Redis backend.
func New() *Backend {
	return &Backend{}
}

// NewWithClient wraps an existing client; hash names the Redis hash used.
func NewWithClient(client *redis.Client, hash string) (*Backend, error) {
	if client == nil {
		return nil, errors.New("redis: client is required")
	}
	if hash == "" {
		return nil, errors.New("redis: hash name (table) is required")
	}
	return &Backend{client: client, hash: hash}, nil
}

func (b *Backend) Name() string { return Name }

// Open parses cfg.DSN as a redis:// URL and stores values in hash cfg.Table.
func (b *Backend) Open(cfg config.StoreConfig) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.client != nil {
		return fmt.Errorf("redis: %w", common.ErrAlreadyOpen)
	}
	if cfg.Table == "" {
		return errors.New("redis: hash name (table) is required")
	}
	opts, err := redis.ParseURL(cfg.DSN)
	if err != nil {
		return fmt.Errorf("redis: invalid DSN: %w", err)
	}
	if cfg.Pool.MaxOpenConns > 0 {
		opts.PoolSize = cfg.Pool.MaxOpenConns
	}
	if cfg.Pool.MaxIdleConns > 0 {
		opts.MaxIdleConns = cfg.Pool.MaxIdleConns
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return fmt.Errorf("redis: failed to verify connection: %w", err)
	}
	b.client = client
	b.hash = cfg.Table
	zap.L().Info("redis backend opened", zap.String("addr", opts.Addr), zap.String("hash", b.hash))
	return nil
}

func (b *Backend) conn() (*redis.Client, string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.client == nil {
		return nil, "", fmt.Errorf("redis: %w", common.ErrNotOpen)
	}
	return b.client, b.hash, nil
}

func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.client == nil {
		return fmt.Errorf("redis: %w", common.ErrNotOpen)
	}
	err := b.client.Close()
	b.client = nil
	if err != nil {
		return fmt.Errorf("redis: close: %w", err)
	}
	return nil
}

func (b *Backend) Ping(ctx context.Context) error {
	client, _, err := b.conn()
	if err != nil {
		return err
	}
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: ping: %w", err)
	}
	return nil
}

func (b *Backend) GetInt(ctx context.Context, key string) (int, bool, error) {
	client, hash, err := b.conn()
	if err != nil {
		return 0, false, err
	}
	v, err := client.HGet(ctx, hash, key).Int()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("redis: get '%s': %w", key, err)
	}
	return v, true, nil
}

func (b *Backend) PutInt(ctx context.Context, key string, value int) error {
	client, hash, err := b.conn()
	if err != nil {
		return err
	}
	if err := client.HSet(ctx, hash, key, value).Err(); err != nil {
		return fmt.Errorf("redis: put '%s': %w", key, err)
	}
	return nil
}

func (b *Backend) Delete(ctx context.Context, key string) error {
	client, hash, err := b.conn()
	if err != nil {
		return err
	}
	if err := client.HDel(ctx, hash, key).Err(); err != nil {
		return fmt.Errorf("redis: delete '%s': %w", key, err)
	}
	return nil
}

func (b *Backend) Keys(ctx context.Context) ([]string, error) {
	client, hash, err := b.conn()
	if err != nil {
		return nil, err
	}
	keys, err := client.HKeys(ctx, hash).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: list keys: %w", err)
	}
	sort.Strings(keys)
	return keys, nil
}
