// metadata/parser.go
package metadata

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/iancoleman/strcase"
	"go.uber.org/zap"
)

// metadataCache keeps parse results per struct type, guarded by cacheMutex.
var (
	metadataCache = make(map[reflect.Type]*TypeMetadata)
	cacheMutex    sync.RWMutex
)

// Parse reads the `pref` tags of a struct (or pointer to struct) and returns
// the metadata of every tagged field. Results are cached per type.
//
// Tag grammar is a ';' separated list of key:value options:
//
//	Volume  int `pref:""`                  // (0, -1)
//	Quality int `pref:"id:7"`              // (7, -1)
//	Bitrate int `pref:"id:7;default:42"`   // (7, 42)
//	Scratch int `pref:"-"`                 // ignored
//
// Each field's storage key is the type's namespace (see Namespacer) joined
// with the snake-cased field name. Anonymous structs are rejected.
//
// Untagged and unexported fields are skipped. Every problem found in a type
// is reported in the returned error and nothing is cached for that type.
// Safe for concurrent use.
func Parse(target any) (*TypeMetadata, error) {
	if target == nil {
		return nil, fmt.Errorf("metadata.Parse: target cannot be nil: %w", ErrInvalidTarget)
	}

	structType := reflect.TypeOf(target)
	if structType.Kind() == reflect.Ptr {
		structType = structType.Elem()
	}
	if structType.Kind() != reflect.Struct {
		return nil, fmt.Errorf("metadata.Parse: target must be a struct or pointer to struct, got %s: %w",
			reflect.TypeOf(target).Kind(), ErrInvalidTarget)
	}
	if structType.Name() == "" {
		return nil, fmt.Errorf("metadata.Parse: anonymous struct %s has no name to derive keys from: %w", structType, ErrInvalidTarget)
	}

	cacheMutex.RLock()
	meta, found := metadataCache[structType]
	cacheMutex.RUnlock()
	if found {
		zap.L().Debug("metadata cache hit", zap.String("type", structType.Name()))
		return meta, nil
	}

	namespace, err := namespaceFor(structType)
	if err != nil {
		return nil, fmt.Errorf("metadata.Parse: %w", err)
	}

	cacheMutex.Lock()
	defer cacheMutex.Unlock()

	// Another goroutine may have parsed it while we waited for the lock.
	if meta, found = metadataCache[structType]; found {
		return meta, nil
	}

	log := zap.L().With(zap.String("type", structType.Name()))
	log.Debug("metadata cache miss, parsing")

	typeMeta := &TypeMetadata{
		name:         structType.Name(),
		namespace:    namespace,
		typ:          structType,
		fields:       make([]FieldMetadata, 0),
		fieldsByName: make(map[string]int),
	}

	var allParseErrors []error
	for i := 0; i < structType.NumField(); i++ {
		field := structType.Field(i)
		if !field.IsExported() {
			continue
		}

		tagValue, tagged := field.Tag.Lookup(TagName)
		if !tagged || tagValue == "-" {
			continue
		}

		if !isIntField(field.Type) {
			allParseErrors = append(allParseErrors,
				fmt.Errorf("field %s.%s has type %s, expected an integer: %w", typeMeta.name, field.Name, field.Type, ErrInvalidTag))
			continue
		}

		tag, errs := parseTag(tagValue, typeMeta.name, field.Name)
		if len(errs) > 0 {
			for _, err := range errs {
				log.Warn("invalid preference tag", zap.String("field", field.Name), zap.Error(err))
			}
			allParseErrors = append(allParseErrors, errs...)
			continue
		}

		typeMeta.fieldsByName[field.Name] = len(typeMeta.fields)
		typeMeta.fields = append(typeMeta.fields, FieldMetadata{
			Package:    structType.PkgPath(),
			TypeName:   typeMeta.name,
			FieldName:  field.Name,
			FieldType:  field.Type,
			FieldIndex: i,
			Key:        namespace + "." + strcase.ToSnake(field.Name),
			Tag:        tag,
		})
		log.Debug("preference field added",
			zap.String("field", field.Name), zap.Int("id", tag.ID), zap.Int("default", tag.Default))
	}

	if len(allParseErrors) > 0 {
		return nil, fmt.Errorf("metadata.Parse: %d error(s) parsing tags of %s: %w",
			len(allParseErrors), structType.Name(), errors.Join(allParseErrors...))
	}

	metadataCache[structType] = typeMeta
	log.Debug("metadata cached", zap.Int("fields", len(typeMeta.fields)))
	return typeMeta, nil
}

// parseTag turns one tag value into a PreferenceInt, collecting every problem.
func parseTag(tagValue, typeName, fieldName string) (PreferenceInt, []error) {
	tag := NewPreferenceInt()
	var errs []error
	seen := make(map[string]bool)

	for _, opt := range strings.Split(tagValue, ";") {
		opt = strings.TrimSpace(opt)
		if opt == "" {
			continue
		}

		key, value, _ := strings.Cut(opt, ":")
		key = canonicalKey(key)
		value = strings.TrimSpace(value)

		if seen[key] {
			errs = append(errs, fmt.Errorf("key '%s' repeated on %s.%s: %w", key, typeName, fieldName, ErrDuplicateTag))
			continue
		}
		seen[key] = true

		switch key {
		case "id":
			n, err := parseInt32(value)
			if err != nil {
				errs = append(errs, fmt.Errorf("parse 'id' (%s) %s.%s: %w", value, typeName, fieldName, err))
				continue
			}
			tag.ID = n
		case "default":
			n, err := parseInt32(value)
			if err != nil {
				errs = append(errs, fmt.Errorf("parse 'default' (%s) %s.%s: %w", value, typeName, fieldName, err))
				continue
			}
			tag.Default = n
		default:
			errs = append(errs, fmt.Errorf("unknown key '%s' on %s.%s: %w", key, typeName, fieldName, ErrInvalidTag))
		}
	}
	return tag, errs
}

// canonicalKey lowercases a tag key and folds its aliases, so that
// "default" and "defaultObject" count as the same option.
func canonicalKey(key string) string {
	key = strings.ToLower(strings.TrimSpace(key))
	switch key {
	case "defaultobject", "default_object":
		return "default"
	}
	return key
}

// parseInt32 parses a decimal literal that must fit a 32-bit signed integer.
func parseInt32(s string) (int, error) {
	n, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, errors.Join(ErrInvalidTag, err)
	}
	return int(n), nil
}

// ClearMetadataCache empties the parse cache. Mostly useful in tests.
func ClearMetadataCache() {
	cacheMutex.Lock()
	defer cacheMutex.Unlock()
	metadataCache = make(map[reflect.Type]*TypeMetadata)
}
