// metadata/registry.go
package metadata

import (
	"fmt"
	"reflect"
	"sync"

	"go.uber.org/zap"
)

// Registry maps host fields to their PreferenceInt. It is filled during
// program initialization and sealed afterwards; once sealed it only serves
// reads. Safe for concurrent use.
//
// Fields declared by name (Declare) are identified by type and field name.
// Fields declared from a struct (DeclareType) are identified by the struct's
// reflect.Type, so two distinct types that share a name never see each
// other's tags. Every declaration owns a distinct storage key.
type Registry struct {
	mu     sync.RWMutex
	sealed bool
	named  map[FieldRef]bool // fields declared with Declare
	byRef  map[FieldRef][]*Declaration
	byKey  map[string]*Declaration
	byType map[reflect.Type]map[string]*Declaration
	order  []*Declaration
}

// Declaration is one declared field.
type Declaration struct {
	Ref FieldRef
	Key string // storage key
	Tag PreferenceInt
}

// NewRegistry returns an empty, unsealed registry.
func NewRegistry() *Registry {
	return &Registry{
		named:  make(map[FieldRef]bool),
		byRef:  make(map[FieldRef][]*Declaration),
		byKey:  make(map[string]*Declaration),
		byType: make(map[reflect.Type]map[string]*Declaration),
	}
}

// Declare attaches a PreferenceInt built from opts to typeName.field.
// Its storage key is KeyFor(typeName, field). A field can be declared once;
// nothing can be declared after Seal.
func (r *Registry) Declare(typeName, field string, opts ...Option) error {
	if typeName == "" || field == "" {
		return fmt.Errorf("metadata: declare requires type and field names (got %q, %q): %w", typeName, field, ErrInvalidTarget)
	}
	d := &Declaration{
		Ref: FieldRef{Type: typeName, Field: field},
		Key: KeyFor(typeName, field),
		Tag: NewPreferenceInt(opts...),
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return fmt.Errorf("metadata: declare %s.%s: %w", typeName, field, ErrRegistrySealed)
	}
	if r.named[d.Ref] {
		return fmt.Errorf("metadata: declare %s.%s: %w", typeName, field, ErrDuplicateField)
	}
	if owner, taken := r.byKey[d.Key]; taken {
		return fmt.Errorf("metadata: declare %s.%s: key '%s' is used by %s.%s: %w",
			typeName, field, d.Key, owner.Ref.Type, owner.Ref.Field, ErrKeyConflict)
	}
	r.named[d.Ref] = true
	r.add(d)
	zap.L().Debug("preference declared",
		zap.String("type", typeName), zap.String("field", field), zap.String("key", d.Key),
		zap.Int("id", d.Tag.ID), zap.Int("default", d.Tag.Default))
	return nil
}

// DeclareType parses the `pref` tags of target and declares every tagged field.
// Either all fields are declared or none are.
func (r *Registry) DeclareType(target any) error {
	meta, err := Parse(target)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return fmt.Errorf("metadata: declare %s: %w", meta.QualifiedName(), ErrRegistrySealed)
	}
	if _, dup := r.byType[meta.typ]; dup {
		return fmt.Errorf("metadata: declare %s: %w", meta.QualifiedName(), ErrDuplicateField)
	}
	for _, f := range meta.fields {
		if owner, taken := r.byKey[f.Key]; taken {
			return fmt.Errorf("metadata: declare %s.%s: key '%s' is used by %s.%s; rename one type or implement PreferenceNamespace: %w",
				meta.QualifiedName(), f.FieldName, f.Key, owner.Ref.Type, owner.Ref.Field, ErrKeyConflict)
		}
	}

	fields := make(map[string]*Declaration, len(meta.fields))
	for _, f := range meta.fields {
		d := &Declaration{Ref: f.Ref(), Key: f.Key, Tag: f.Tag}
		fields[f.FieldName] = d
		r.add(d)
	}
	r.byType[meta.typ] = fields
	zap.L().Debug("preference type declared",
		zap.String("type", meta.QualifiedName()), zap.String("namespace", meta.Namespace()), zap.Int("fields", meta.Len()))
	return nil
}

// add indexes d. Callers hold the write lock.
func (r *Registry) add(d *Declaration) {
	r.byRef[d.Ref] = append(r.byRef[d.Ref], d)
	r.byKey[d.Key] = d
	r.order = append(r.order, d)
}

// Seal ends the declaration phase. Calling it more than once is harmless.
func (r *Registry) Seal() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sealed = true
}

// Sealed reports whether Seal has been called.
func (r *Registry) Sealed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sealed
}

// Lookup returns the tag declared for typeName.field.
func (r *Registry) Lookup(typeName, field string) (PreferenceInt, bool) {
	d, ok := r.Declaration(typeName, field)
	return d.Tag, ok
}

// Declaration returns the declaration of typeName.field. When distinct
// struct types named typeName declare the field, the name is ambiguous and
// nothing is returned; use DeclarationOf instead.
func (r *Registry) Declaration(typeName, field string) (Declaration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	decls := r.byRef[FieldRef{Type: typeName, Field: field}]
	if len(decls) != 1 {
		return Declaration{}, false
	}
	return *decls[0], true
}

// DeclarationOf returns the declaration of field on the struct type of
// target (a struct or pointer to struct) declared with DeclareType.
func (r *Registry) DeclarationOf(target any, field string) (Declaration, bool) {
	t := reflect.TypeOf(target)
	if t == nil {
		return Declaration{}, false
	}
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byType[t][field]
	if !ok {
		return Declaration{}, false
	}
	return *d, true
}

// LookupKey returns the declaration owning a storage key.
func (r *Registry) LookupKey(key string) (Declaration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byKey[key]
	if !ok {
		return Declaration{}, false
	}
	return *d, true
}

// Fields returns the declared fields of typeName in declaration order.
func (r *Registry) Fields(typeName string) []FieldRef {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var refs []FieldRef
	for _, d := range r.order {
		if d.Ref.Type == typeName {
			refs = append(refs, d.Ref)
		}
	}
	return refs
}

// All returns every declared field in declaration order.
func (r *Registry) All() []FieldRef {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]FieldRef, len(r.order))
	for i, d := range r.order {
		out[i] = d.Ref
	}
	return out
}

// Len returns the number of declared fields.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

var defaultRegistry = NewRegistry()

// Default returns the process-wide registry used by the package functions.
func Default() *Registry { return defaultRegistry }

// Declare declares a field on the default registry.
func Declare(typeName, field string, opts ...Option) error {
	return defaultRegistry.Declare(typeName, field, opts...)
}

// MustDeclare is Declare for init functions: it panics on error.
func MustDeclare(typeName, field string, opts ...Option) {
	if err := defaultRegistry.Declare(typeName, field, opts...); err != nil {
		panic(err)
	}
}

// DeclareType declares every tagged field of target on the default registry.
func DeclareType(target any) error {
	return defaultRegistry.DeclareType(target)
}

// Lookup reads the default registry.
func Lookup(typeName, field string) (PreferenceInt, bool) {
	return defaultRegistry.Lookup(typeName, field)
}

// Seal seals the default registry.
func Seal() {
	defaultRegistry.Seal()
}
