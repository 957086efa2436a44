// driver/memory/memory.go
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/chmenegatti/typeprefs/pkg/backends"
	"github.com/chmenegatti/typeprefs/pkg/backends/common"
	"github.com/chmenegatti/typeprefs/pkg/config"
)

// Name is the registry name of this backend.
const Name = "memory"

var _ common.Backend = (*Backend)(nil)

func init() {
	backends.Register(Name, func() common.Backend { return New() })
}

// Backend keeps values in a process-local map. Nothing survives Close.
type Backend struct {
	mu     sync.RWMutex
	values map[string]int
}

// New returns an unopened memory backend.
func New() *Backend {
	return &Backend{}
}

func (b *Backend) Name() string { return Name }

func (b *Backend) Open(cfg config.StoreConfig) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.values != nil {
		return fmt.Errorf("memory: %w", common.ErrAlreadyOpen)
	}
	b.values = make(map[string]int)
	zap.L().Debug("memory backend opened")
	return nil
}

func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.values == nil {
		return fmt.Errorf("memory: %w", common.ErrNotOpen)
	}
	b.values = nil
	return nil
}

func (b *Backend) Ping(ctx context.Context) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.values == nil {
		return fmt.Errorf("memory: %w", common.ErrNotOpen)
	}
	return ctx.Err()
}

func (b *Backend) GetInt(ctx context.Context, key string) (int, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.values == nil {
		return 0, false, fmt.Errorf("memory: %w", common.ErrNotOpen)
	}
	v, ok := b.values[key]
	return v, ok, nil
}

func (b *Backend) PutInt(ctx context.Context, key string, value int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.values == nil {
		return fmt.Errorf("memory: %w", common.ErrNotOpen)
	}
	b.values[key] = value
	return nil
}

func (b *Backend) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.values == nil {
		return fmt.Errorf("memory: %w", common.ErrNotOpen)
	}
	delete(b.values, key)
	return nil
}

func (b *Backend) Keys(ctx context.Context) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.values == nil {
		return nil, fmt.Errorf("memory: %w", common.ErrNotOpen)
	}
	keys := make([]string, 0, len(b.values))
	for k := range b.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}
