// Package dialect provides SQL dialect configuration for the parser and
// the breaking-change analyzer.
//
// A dialect carries two things the analyzer cares about: how unquoted
// identifiers are normalized (Snowflake folds them to uppercase before
// matching against metadata), and which functions are table-valued
// (set-returning constructs that change cardinality when inserted).
package dialect

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// NormalizationStrategy defines how a dialect treats unquoted identifiers.
type NormalizationStrategy int

const (
	// NormCaseInsensitive preserves the written case and compares
	// case-insensitively (DuckDB and most others).
	NormCaseInsensitive NormalizationStrategy = iota
	// NormLowercase folds unquoted identifiers to lowercase (Postgres).
	NormLowercase
	// NormUppercase folds unquoted identifiers to uppercase (Snowflake).
	NormUppercase
)

// ErrUnknownDialect is returned when a dialect name is not registered.
var ErrUnknownDialect = errors.New("unknown dialect")

// Dialect represents a SQL dialect configuration.
type Dialect struct {
	Name          string
	Normalization NormalizationStrategy

	tableFunctions map[string]struct{}
}

// NormalizeName normalizes an identifier according to dialect rules.
func (d *Dialect) NormalizeName(name string) string {
	switch d.Normalization {
	case NormUppercase:
		return strings.ToUpper(name)
	case NormLowercase:
		return strings.ToLower(name)
	default:
		return name
	}
}

// LookupKey returns the string used when querying external metadata for
// the identifier. Folding applies only here; callers keep the written
// form for internal bookkeeping.
func (d *Dialect) LookupKey(name string) string {
	return d.NormalizeName(name)
}

// IsTableFunction returns true if the function name is table-valued in
// this dialect (generate_series, unnest, flatten, ...).
func (d *Dialect) IsTableFunction(name string) bool {
	_, ok := d.tableFunctions[strings.ToUpper(name)]
	return ok
}

// ---------- Registry ----------

var (
	dialectsMu sync.RWMutex
	dialects   = make(map[string]*Dialect)
)

// Get returns a dialect by name.
func Get(name string) (*Dialect, error) {
	dialectsMu.RLock()
	defer dialectsMu.RUnlock()
	d, ok := dialects[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDialect, name)
	}
	return d, nil
}

// Register registers a dialect in the global registry.
// Called by the builtin definitions in their package init.
func Register(d *Dialect) {
	dialectsMu.Lock()
	defer dialectsMu.Unlock()
	dialects[strings.ToLower(d.Name)] = d
}

// List returns all registered dialect names (sorted).
func List() []string {
	dialectsMu.RLock()
	defer dialectsMu.RUnlock()
	names := make([]string, 0, len(dialects))
	for name := range dialects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New creates a dialect with the given normalization strategy and
// table-valued function names.
func New(name string, norm NormalizationStrategy, tableFuncs ...string) *Dialect {
	d := &Dialect{
		Name:           name,
		Normalization:  norm,
		tableFunctions: make(map[string]struct{}, len(tableFuncs)),
	}
	for _, f := range tableFuncs {
		d.tableFunctions[strings.ToUpper(f)] = struct{}{}
	}
	return d
}
