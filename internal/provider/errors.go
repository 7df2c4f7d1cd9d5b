package provider

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDuplicateName is returned when two directories normalize to the same canonical name.
	ErrDuplicateName = errors.New("duplicate provider name")
	// ErrNotFound is returned when a provider or its entry point cannot be located.
	ErrNotFound = errors.New("provider not found")
	// ErrAmbiguous is returned when no provider was requested and several are available.
	ErrAmbiguous = errors.New("ambiguous provider")
	// ErrDeclined is returned when a provider reports it cannot handle a setup.
	ErrDeclined = errors.New("provider declined")
	// ErrApplyFailed is returned when a provider fails while provisioning.
	ErrApplyFailed = errors.New("provider apply failed")
)

// DuplicateNameError names the canonical name and both offending directories.
type DuplicateNameError struct {
	Name   string
	First  string
	Second string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("duplicate provider name %q: directories %s and %s", e.Name, e.First, e.Second)
}

func (e *DuplicateNameError) Is(target error) bool { return target == ErrDuplicateName }

// NotFoundError describes what could not be found.
type NotFoundError struct {
	// Name is the requested provider or manifest kind, if any.
	Name string
	// Dir is the scan root or the provider directory that was searched.
	Dir       string
	SetupName string
	Available []string
}

func (e *NotFoundError) Error() string {
	var b strings.Builder
	switch {
	case e.Name != "":
		fmt.Fprintf(&b, "provider %q not found", e.Name)
	default:
		b.WriteString("no provider found")
	}
	if e.Dir != "" {
		fmt.Fprintf(&b, " in %s", e.Dir)
	}
	if e.SetupName != "" {
		fmt.Fprintf(&b, " for %s", e.SetupName)
	}
	if len(e.Available) > 0 {
		fmt.Fprintf(&b, " (available: %s)", strings.Join(e.Available, ", "))
	}
	return b.String()
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// AmbiguousError names every candidate when a provider must be chosen explicitly.
type AmbiguousError struct {
	Candidates []string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("more than one provider available, choose one of: %s", strings.Join(e.Candidates, ", "))
}

func (e *AmbiguousError) Is(target error) bool { return target == ErrAmbiguous }

// DeclinedError is not fatal to a chain: the step is skipped.
type DeclinedError struct {
	Provider  string
	SetupName string
}

func (e *DeclinedError) Error() string {
	return fmt.Sprintf("provider %q declined setup %s", e.Provider, e.SetupName)
}

func (e *DeclinedError) Is(target error) bool { return target == ErrDeclined }

// ApplyError wraps the cause of a failed apply.
type ApplyError struct {
	Provider string
	Err      error
}

func (e *ApplyError) Error() string {
	return fmt.Sprintf("provider %q failed: %v", e.Provider, e.Err)
}

func (e *ApplyError) Is(target error) bool { return target == ErrApplyFailed }

func (e *ApplyError) Unwrap() error { return e.Err }
