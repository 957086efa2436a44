// pkg/backends/registry.go
package backends

import (
	"sort"
	"sync"

	"github.com/chmenegatti/typeprefs/pkg/backends/common"
)

// Factory returns a new, unopened Backend.
type Factory func() common.Backend

var (
	backendsMu sync.RWMutex
	backends   = make(map[string]Factory)
)

// Register makes a backend available under name. Driver packages call it
// from init. It panics if factory is nil or name is already taken.
func Register(name string, factory Factory) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	if factory == nil {
		panic("backends: Register factory is nil")
	}
	if _, dup := backends[name]; dup {
		panic("backends: Register called twice for backend " + name)
	}
	backends[name] = factory
}

// Get returns the factory registered under name, or nil.
func Get(name string) Factory {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	return backends[name]
}

// RegisteredBackends returns the sorted names of every registered backend.
func RegisteredBackends() []string {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	list := make([]string, 0, len(backends))
	for name := range backends {
		list = append(list, name)
	}
	sort.Strings(list)
	return list
}
