// pkg/prefs/prefs.go
package prefs

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/chmenegatti/typeprefs/metadata"
	"github.com/chmenegatti/typeprefs/pkg/backends/common"
)

var (
	// ErrNilBackend is returned when a handle is built without a backend.
	ErrNilBackend = errors.New("prefs: backend is nil")
	// ErrEmptyKey is returned when a handle is built with an empty key.
	ErrEmptyKey = errors.New("prefs: key is empty")
	// ErrUnknownField is returned when the registry has no declaration for a field.
	ErrUnknownField = errors.New("prefs: field has no preference declared")
)

// KeyResolver maps a preference id to its storage key.
type KeyResolver func(id int) (string, error)

// Option customizes how handles are built.
type Option func(*options)

type options struct {
	resolver KeyResolver
}

// WithKeyResolver derives keys from the declared id instead of the field name.
func WithKeyResolver(r KeyResolver) Option {
	return func(o *options) { o.resolver = r }
}

func buildOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

func (o options) key(derived string, id int) (string, error) {
	if o.resolver == nil {
		return derived, nil
	}
	key, err := o.resolver(id)
	if err != nil {
		return "", fmt.Errorf("prefs: resolve key for id %d: %w", id, err)
	}
	return key, nil
}

// IntPreference reads and writes one integer preference. When nothing is
// stored under its key, Get returns the declared default.
type IntPreference struct {
	backend common.Backend
	key     string
	tag     metadata.PreferenceInt
}

// New builds a handle for key with the given tag.
func New(backend common.Backend, key string, tag metadata.PreferenceInt) (*IntPreference, error) {
	if backend == nil {
		return nil, ErrNilBackend
	}
	if key == "" {
		return nil, ErrEmptyKey
	}
	return &IntPreference{backend: backend, key: key, tag: tag}, nil
}

// FromField builds a handle for a field returned by metadata.Parse.
func FromField(backend common.Backend, f metadata.FieldMetadata, opts ...Option) (*IntPreference, error) {
	key, err := buildOptions(opts).key(f.Key, f.Tag.ID)
	if err != nil {
		return nil, err
	}
	return New(backend, key, f.Tag)
}

// FromRegistry builds a handle for a field declared in reg.
func FromRegistry(backend common.Backend, reg *metadata.Registry, typeName, field string, opts ...Option) (*IntPreference, error) {
	d, ok := reg.Declaration(typeName, field)
	if !ok {
		return nil, fmt.Errorf("prefs: %s.%s: %w", typeName, field, ErrUnknownField)
	}
	return fromDeclaration(backend, d, opts)
}

// FromRegistryType builds a handle for a field of target's struct type
// declared in reg with DeclareType.
func FromRegistryType(backend common.Backend, reg *metadata.Registry, target any, field string, opts ...Option) (*IntPreference, error) {
	d, ok := reg.DeclarationOf(target, field)
	if !ok {
		return nil, fmt.Errorf("prefs: %T.%s: %w", target, field, ErrUnknownField)
	}
	return fromDeclaration(backend, d, opts)
}

func fromDeclaration(backend common.Backend, d metadata.Declaration, opts []Option) (*IntPreference, error) {
	key, err := buildOptions(opts).key(d.Key, d.Tag.ID)
	if err != nil {
		return nil, err
	}
	return New(backend, key, d.Tag)
}

// ForType builds one handle per tagged field of meta, in declaration order.
func ForType(backend common.Backend, meta *metadata.TypeMetadata, opts ...Option) ([]*IntPreference, error) {
	if meta == nil {
		return nil, fmt.Errorf("prefs: type metadata is nil: %w", metadata.ErrInvalidTarget)
	}
	fields := meta.Fields()
	out := make([]*IntPreference, 0, len(fields))
	for _, f := range fields {
		p, err := FromField(backend, f, opts...)
		if err != nil {
			return nil, fmt.Errorf("prefs: %s.%s: %w", f.TypeName, f.FieldName, err)
		}
		out = append(out, p)
	}
	return out, nil
}

// Key returns the storage key.
func (p *IntPreference) Key() string { return p.key }

// ID returns the declared preference id.
func (p *IntPreference) ID() int { return p.tag.ID }

// Default returns the value Get falls back to.
func (p *IntPreference) Default() int { return p.tag.Default }

// Tag returns the declared tag.
func (p *IntPreference) Tag() metadata.PreferenceInt { return p.tag }

// Get returns the stored value, or the default when none is stored.
func (p *IntPreference) Get(ctx context.Context) (int, error) {
	v, found, err := p.backend.GetInt(ctx, p.key)
	if err != nil {
		return p.tag.Default, fmt.Errorf("prefs: get '%s': %w", p.key, err)
	}
	if !found {
		return p.tag.Default, nil
	}
	return v, nil
}

// IsSet reports whether a value is stored for the preference.
func (p *IntPreference) IsSet(ctx context.Context) (bool, error) {
	_, found, err := p.backend.GetInt(ctx, p.key)
	if err != nil {
		return false, fmt.Errorf("prefs: get '%s': %w", p.key, err)
	}
	return found, nil
}

// Set stores value.
func (p *IntPreference) Set(ctx context.Context, value int) error {
	if err := p.backend.PutInt(ctx, p.key, value); err != nil {
		return fmt.Errorf("prefs: set '%s': %w", p.key, err)
	}
	zap.L().Debug("preference saved", zap.String("key", p.key), zap.Int("value", value))
	return nil
}

// Reset removes the stored value so Get falls back to the default.
func (p *IntPreference) Reset(ctx context.Context) error {
	if err := p.backend.Delete(ctx, p.key); err != nil {
		return fmt.Errorf("prefs: reset '%s': %w", p.key, err)
	}
	zap.L().Debug("preference reset", zap.String("key", p.key))
	return nil
}
