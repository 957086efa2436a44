// Package typeprefs declares integer preferences on struct fields and keeps
// their values in a pluggable store.
//
// Fields are tagged with `pref:"id:N;default:M"` (see package metadata),
// turned into handles by package prefs and stored by a backend opened
// with Open. Backends register themselves when their driver package is
// imported:
//
//	import _ "github.com/chmenegatti/typeprefs/driver/sqlite"
package typeprefs

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/chmenegatti/typeprefs/pkg/backends"
	"github.com/chmenegatti/typeprefs/pkg/backends/common"
	"github.com/chmenegatti/typeprefs/pkg/config"
)

// Open builds the backend named by cfg.Store.Backend and opens it.
func Open(cfg config.Config) (common.Backend, error) {
	name := cfg.Store.Backend
	if name == "" {
		return nil, fmt.Errorf("typeprefs: no backend specified in configuration")
	}

	factory := backends.Get(name)
	if factory == nil {
		return nil, fmt.Errorf("typeprefs: unknown backend '%s' (registered: %v); import its driver package", name, backends.RegisteredBackends())
	}

	b := factory()
	if b == nil {
		return nil, fmt.Errorf("typeprefs: factory for backend '%s' returned nil", name)
	}

	if err := b.Open(cfg.Store); err != nil {
		return nil, fmt.Errorf("typeprefs: failed to open backend '%s': %w", name, err)
	}
	zap.L().Debug("backend ready", zap.String("backend", name))
	return b, nil
}
