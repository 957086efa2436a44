// pkg/backends/common/interfaces.go
package common

import (
	"context"
	"errors"
	"io"

	"github.com/chmenegatti/typeprefs/pkg/config"
)

var (
	ErrNotOpen     = errors.New("backend is not open")
	ErrAlreadyOpen = errors.New("backend is already open")
)

// Backend stores integer preference values under string keys.
// Implementations must be safe for concurrent use once opened.
type Backend interface {
	io.Closer

	// Name returns the registry name of the backend (e.g. "sqlite").
	Name() string

	// Open connects using cfg. Calling Open twice returns ErrAlreadyOpen.
	Open(cfg config.StoreConfig) error

	// Ping checks that the store is reachable.
	Ping(ctx context.Context) error

	// GetInt returns the stored value; found is false when the key is absent.
	GetInt(ctx context.Context, key string) (value int, found bool, err error)

	// PutInt stores value under key, replacing any previous value.
	PutInt(ctx context.Context, key string, value int) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Keys lists every stored key in ascending order.
	Keys(ctx context.Context) ([]string, error)
}
