// Package naming parses provider and command directory names.
//
// Directory names follow the convention
//
//	[PREFIX--]STEM[--SUFFIX]
//
// PREFIX is free-form and only helps with local sorting. STEM identifies the
// provider and yields its canonical name. SUFFIX is a local hint, e.g. the
// version a checkout was made at. Runs of three or more hyphens count as a
// single "--" separator.
package naming

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Separator splits the structural parts of a directory name.
const Separator = "--"

// MaxParts is the largest number of structural parts a directory name may have.
const MaxParts = 3

// ErrMalformed is returned for directory names that cannot be parsed.
var ErrMalformed = errors.New("malformed provider directory name")

// MalformedError describes a directory name that has too many structural
// parts, or whose stem has no usable characters.
type MalformedError struct {
	Name  string
	Parts int
}

func (e *MalformedError) Error() string {
	if e.Parts > MaxParts {
		return fmt.Sprintf("provider directory %q has %d parts separated by %q (at most %d allowed)",
			e.Name, e.Parts, Separator, MaxParts)
	}
	return fmt.Sprintf("provider directory %q has an empty provider name", e.Name)
}

func (e *MalformedError) Is(target error) bool { return target == ErrMalformed }

// hyphenRunsRegexp matches three or more consecutive hyphens.
var hyphenRunsRegexp = regexp.MustCompile(`-{3,}`)

// nonAlnumRegexp matches every character that may not appear in a canonical name.
var nonAlnumRegexp = regexp.MustCompile(`[^a-zA-Z0-9]`)

// underscoreRunsRegexp matches consecutive underscores.
var underscoreRunsRegexp = regexp.MustCompile(`_{2,}`)

// Name is a parsed directory name.
type Name struct {
	// Raw is the directory name as found on disk.
	Raw string
	// Parts holds the structural parts after separator cleanup (1 to 3 entries).
	Parts []string

	Prefix    string
	Stem      string
	Suffix    string
	Canonical string
}

// Parse splits a raw directory name into its structural parts and derives the
// canonical name from the stem.
func Parse(raw string) (Name, error) {
	clean := hyphenRunsRegexp.ReplaceAllString(raw, Separator)
	parts := strings.Split(clean, Separator)
	if len(parts) > MaxParts {
		return Name{}, &MalformedError{Name: raw, Parts: len(parts)}
	}

	n := Name{Raw: raw, Parts: parts}
	switch len(parts) {
	case 1:
		n.Stem = parts[0]
	case 2:
		n.Prefix, n.Stem = parts[0], parts[1]
	default:
		n.Prefix, n.Stem, n.Suffix = parts[0], parts[1], parts[2]
	}

	n.Canonical = Canonical(n.Stem)
	return n, nil
}

// Valid reports an error when the canonical name carries no alphanumeric
// character and therefore cannot identify a provider.
func (n Name) Valid() error {
	if strings.Trim(n.Canonical, "_") == "" {
		return &MalformedError{Name: n.Raw, Parts: len(n.Parts)}
	}
	return nil
}

// Canonical normalizes a single name portion: every character outside
// [A-Za-z0-9] becomes "_", runs of "_" collapse and the result is lowercased.
// Canonical(Canonical(s)) == Canonical(s).
func Canonical(s string) string {
	s = nonAlnumRegexp.ReplaceAllString(s, "_")
	s = underscoreRunsRegexp.ReplaceAllString(s, "_")
	return strings.ToLower(s)
}

// Normalize parses raw and returns only its canonical name.
func Normalize(raw string) (string, error) {
	n, err := Parse(raw)
	if err != nil {
		return "", err
	}
	return n.Canonical, nil
}

// EntryStem returns the file stem of the entry point expected inside the
// directory: the middle part for three-part names, otherwise the first part.
func (n Name) EntryStem() string {
	if len(n.Parts) == MaxParts {
		return n.Parts[1]
	}
	return n.Parts[0]
}

// Identity builds the synthetic identity a directory is loaded under for the
// given setup. The same directory used by two setups yields two identities.
func Identity(setupName string, n Name) string {
	return setupName + "/" + strings.Join(n.Parts, Separator)
}
