// Package state persists the record describing one configured setup instance.
//
// A record is created the first time a setup directory is referenced and is
// written to disk immediately, so the file (not an in-memory flag) is the
// source of truth across runs. Every save replaces the whole file.
package state

import (
	"errors"
	"fmt"
)

// Status is the lifecycle status of a setup.
type Status string

const (
	// StatusNew is the status of a freshly created setup that never applied successfully.
	StatusNew Status = "New"
	// StatusCurrent is the status after a successful provider apply.
	StatusCurrent Status = "Current"
	// StatusClosed is terminal; no operation may touch a closed setup.
	StatusClosed Status = "Closed"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusNew, StatusCurrent, StatusClosed:
		return true
	}
	return false
}

// ErrClosed is returned for any operation attempted against a closed setup.
var ErrClosed = errors.New("setup is closed")

// ClosedError names the closed setup.
type ClosedError struct {
	SetupName string
	Path      string
}

func (e *ClosedError) Error() string {
	return fmt.Sprintf("setup %q is closed (%s); no further changes are allowed", e.SetupName, e.Path)
}

func (e *ClosedError) Is(target error) bool { return target == ErrClosed }

// SetupState is the persisted record of one setup instance.
type SetupState struct {
	SetupName    string            `yaml:"setup_name,omitempty"`
	Status       Status            `yaml:"info_status"`
	ProviderName string            `yaml:"provider_name,omitempty"`
	Kind         string            `yaml:"kind,omitempty"`
	Fields       map[string]string `yaml:"fields,omitempty"`

	path   string
	schema Schema
}

// newSetupState returns the default record for schema.
func newSetupState(path string, schema Schema) *SetupState {
	return &SetupState{
		Status: StatusNew,
		Kind:   schema.Kind,
		Fields: map[string]string{},
		path:   path,
		schema: schema,
	}
}

// Path returns the file the record is persisted to.
func (s *SetupState) Path() string { return s.path }

// Schema returns the schema the record was loaded with.
func (s *SetupState) Schema() Schema { return s.schema }

// IsNew reports whether the setup never applied successfully.
func (s *SetupState) IsNew() bool { return s.Status == StatusNew }

// IsClosed reports whether the setup is closed.
func (s *SetupState) IsClosed() bool { return s.Status == StatusClosed }

// CheckOpen returns a ClosedError when the setup is closed.
func (s *SetupState) CheckOpen() error {
	if s.IsClosed() {
		return &ClosedError{SetupName: s.SetupName, Path: s.path}
	}
	return nil
}

// Get returns the value of a declared field, or its default when unset.
func (s *SetupState) Get(key string) (string, error) {
	spec, ok := s.schema.Field(key)
	if !ok {
		return "", fmt.Errorf("%w %q for %s setups", ErrUnknownField, key, s.schema.Kind)
	}
	if v, ok := s.Fields[key]; ok {
		return v, nil
	}
	return spec.Default, nil
}

// Set assigns a declared field. Immutable fields can only change while the
// setup is New, and nothing changes once it is closed.
func (s *SetupState) Set(key, value string) error {
	if err := s.CheckOpen(); err != nil {
		return err
	}
	spec, ok := s.schema.Field(key)
	if !ok {
		return fmt.Errorf("%w %q for %s setups", ErrUnknownField, key, s.schema.Kind)
	}
	if spec.Immutable && !s.IsNew() {
		if current := s.Fields[key]; current != value {
			return fmt.Errorf("%w %q: persisted %q, got %q", ErrImmutableField, key, current, value)
		}
		return nil
	}
	if s.Fields == nil {
		s.Fields = map[string]string{}
	}
	s.Fields[key] = value
	return nil
}

// Unset removes a mutable field so that it reads as its default again.
func (s *SetupState) Unset(key string) error {
	if err := s.CheckOpen(); err != nil {
		return err
	}
	spec, ok := s.schema.Field(key)
	if !ok {
		return fmt.Errorf("%w %q for %s setups", ErrUnknownField, key, s.schema.Kind)
	}
	if spec.Immutable && !s.IsNew() {
		return fmt.Errorf("%w %q cannot be cleared", ErrImmutableField, key)
	}
	delete(s.Fields, key)
	return nil
}

// validate checks a record decoded from disk against its schema.
func (s *SetupState) validate() error {
	if !s.Status.Valid() {
		return fmt.Errorf("invalid info_status %q", s.Status)
	}
	if s.Kind != "" && s.schema.Kind != "" && s.Kind != s.schema.Kind {
		return fmt.Errorf("state kind %q does not match expected kind %q", s.Kind, s.schema.Kind)
	}
	return s.schema.Validate(s.Fields)
}
