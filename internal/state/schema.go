package state

import (
	"errors"
	"fmt"
	"sort"
)

// ErrUnknownField is returned when a field is not declared by the schema.
var ErrUnknownField = errors.New("unknown setup field")

// ErrImmutableField is returned when an immutable field is changed after the setup left New.
var ErrImmutableField = errors.New("immutable setup field")

// FieldSpec declares one field of a setup state.
type FieldSpec struct {
	Key string
	// Immutable fields are fixed once the setup leaves New.
	Immutable bool
	Default   string
	Help      string
}

// Schema declares the fields a setup kind may persist.
type Schema struct {
	Kind   string
	Fields []FieldSpec
}

// Field returns the declaration of key.
func (s Schema) Field(key string) (FieldSpec, bool) {
	for _, f := range s.Fields {
		if f.Key == key {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// Immutable returns the keys of all immutable fields in declaration order.
func (s Schema) Immutable() []string {
	var keys []string
	for _, f := range s.Fields {
		if f.Immutable {
			keys = append(keys, f.Key)
		}
	}
	return keys
}

// Validate checks that every key in fields is declared.
func (s Schema) Validate(fields map[string]string) error {
	var unknown []string
	for key := range fields {
		if _, ok := s.Field(key); !ok {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	sort.Strings(unknown)
	return fmt.Errorf("%w for %s setups: %v", ErrUnknownField, s.Kind, unknown)
}

// Merge layers schemas: fields of later schemas are appended unless already
// declared. The kind of the first schema wins.
func Merge(schemas ...Schema) Schema {
	var out Schema
	for i, s := range schemas {
		if i == 0 {
			out.Kind = s.Kind
		}
		for _, f := range s.Fields {
			if _, ok := out.Field(f.Key); ok {
				continue
			}
			out.Fields = append(out.Fields, f)
		}
	}
	return out
}
