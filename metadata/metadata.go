// metadata/metadata.go
package metadata

import (
	"errors"
	"fmt"
	"path"
	"reflect"

	"github.com/iancoleman/strcase"
)

// TagName is the struct tag key read by Parse.
const TagName = "pref"

// Values a PreferenceInt carries when declared without options.
const (
	DefaultID    = 0
	DefaultValue = -1
)

var (
	// ErrInvalidTarget is returned for nil, non-struct or anonymous struct targets
	// and for empty type or field names.
	ErrInvalidTarget = errors.New("metadata: invalid target")
	// ErrInvalidTag is returned for malformed tag values and tags on non-integer fields.
	ErrInvalidTag = errors.New("metadata: invalid tag")
	// ErrDuplicateTag is returned when one tag sets the same option twice.
	ErrDuplicateTag = errors.New("metadata: duplicate tag key")
	// ErrDuplicateField is returned when a field or type is declared twice.
	ErrDuplicateField = errors.New("metadata: field already declared")
	// ErrKeyConflict is returned when two declarations derive the same storage key.
	ErrKeyConflict = errors.New("metadata: storage key already used by another declaration")
	// ErrRegistrySealed is returned by declarations made after Seal.
	ErrRegistrySealed = errors.New("metadata: registry is sealed")
)

// PreferenceInt is the metadata attached to an integer preference field.
// ID and Default are opaque to this package: they are stored exactly as
// declared and handed to whoever consumes them.
type PreferenceInt struct {
	ID      int // Identifier of the preference (default 0)
	Default int // Value used when nothing is stored (default -1)
}

// Option sets one attribute of a PreferenceInt at declaration time.
type Option func(*PreferenceInt)

// WithID sets the preference identifier.
func WithID(id int) Option {
	return func(p *PreferenceInt) { p.ID = id }
}

// WithDefault sets the default value.
func WithDefault(value int) Option {
	return func(p *PreferenceInt) { p.Default = value }
}

// NewPreferenceInt declares a tag. Without options it is (DefaultID, DefaultValue).
func NewPreferenceInt(opts ...Option) PreferenceInt {
	p := PreferenceInt{ID: DefaultID, Default: DefaultValue}
	for _, opt := range opts {
		if opt != nil {
			opt(&p)
		}
	}
	return p
}

// FieldRef identifies a host field by type and field name.
type FieldRef struct {
	Type  string
	Field string
}

// Key returns the storage key derived for the field.
func (r FieldRef) Key() string {
	return KeyFor(r.Type, r.Field)
}

// KeyFor derives a storage key from a type and field name, e.g.
// ("CameraSettings", "BitrateKbps") -> "camera_settings.bitrate_kbps".
func KeyFor(typeName, fieldName string) string {
	return strcase.ToSnake(typeName) + "." + strcase.ToSnake(fieldName)
}

// Namespacer overrides the storage key prefix of a struct's preferences,
// the way TableName overrides a table name.
//
//	func (CameraSettings) PreferenceNamespace() string { return "camera" }
type Namespacer interface {
	PreferenceNamespace() string
}

var namespacerType = reflect.TypeOf((*Namespacer)(nil)).Elem()

// namespaceFor returns the key prefix of a named struct type: its
// PreferenceNamespace when implemented, otherwise snake(package).snake(type),
// e.g. "camera.settings" for camera.Settings.
func namespaceFor(t reflect.Type) (string, error) {
	if reflect.PointerTo(t).Implements(namespacerType) {
		ns := reflect.New(t).Interface().(Namespacer).PreferenceNamespace()
		if ns == "" {
			return "", fmt.Errorf("%s.PreferenceNamespace returned an empty namespace: %w", t.Name(), ErrInvalidTarget)
		}
		return ns, nil
	}
	if t.PkgPath() == "" {
		return strcase.ToSnake(t.Name()), nil
	}
	return strcase.ToSnake(path.Base(t.PkgPath())) + "." + strcase.ToSnake(t.Name()), nil
}

// FieldMetadata describes one tagged field of a struct.
type FieldMetadata struct {
	Package    string       // Import path of the package declaring the struct
	TypeName   string       // Name of the host struct
	FieldName  string       // Go field name
	FieldType  reflect.Type // reflect.Type of the field
	FieldIndex int          // Index usable with reflect.Value.Field
	Key        string       // Storage key: namespace + "." + snake(FieldName)
	Tag        PreferenceInt
}

// Ref returns the FieldRef of the field.
func (f FieldMetadata) Ref() FieldRef {
	return FieldRef{Type: f.TypeName, Field: f.FieldName}
}

// TypeMetadata holds every tagged field of one struct type. It is built once
// by Parse and never modified afterwards; accessors hand out copies.
type TypeMetadata struct {
	name         string
	namespace    string
	typ          reflect.Type
	fields       []FieldMetadata
	fieldsByName map[string]int
}

// Name returns the struct name.
func (m *TypeMetadata) Name() string { return m.name }

// QualifiedName returns the import path and name, e.g. "example.com/camera.Settings".
func (m *TypeMetadata) QualifiedName() string {
	if m.typ.PkgPath() == "" {
		return m.name
	}
	return m.typ.PkgPath() + "." + m.name
}

// Namespace returns the prefix shared by the storage keys of the fields.
func (m *TypeMetadata) Namespace() string { return m.namespace }

// Type returns the struct's reflect.Type.
func (m *TypeMetadata) Type() reflect.Type { return m.typ }

// Len returns the number of tagged fields.
func (m *TypeMetadata) Len() int { return len(m.fields) }

// Fields returns the tagged fields in declaration order.
func (m *TypeMetadata) Fields() []FieldMetadata {
	out := make([]FieldMetadata, len(m.fields))
	copy(out, m.fields)
	return out
}

// Field looks a tagged field up by its Go name.
func (m *TypeMetadata) Field(name string) (FieldMetadata, bool) {
	i, ok := m.fieldsByName[name]
	if !ok {
		return FieldMetadata{}, false
	}
	return m.fields[i], true
}

var intKinds = map[reflect.Kind]bool{
	reflect.Int:   true,
	reflect.Int8:  true,
	reflect.Int16: true,
	reflect.Int32: true,
	reflect.Int64: true,
}

// isIntField reports whether t (or what it points to) is a signed integer.
func isIntField(t reflect.Type) bool {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return intKinds[t.Kind()]
}
