// SPDX-License-Identifier: MPL-2.0

package registry

import (
	"strconv"
)

// Field is one parsed declaration field: either a scalar value or an
// ordered array of values, matching the two accepted shapes
// ("key=value" and "key=(v1 v2 ...)").
type Field struct {
	Array  bool
	Values []string
}

// Scalar returns a Field holding a single value.
func Scalar(v string) Field { return Field{Values: []string{v}} }

// ArrayField returns a Field holding an ordered array of values.
func ArrayField(vs ...string) Field { return Field{Array: true, Values: vs} }

// First returns the field's first value, or "" if empty. Used for scalar
// fields, and to tolerate mixing a scalar assignment into an array-typed
// field (stored as a one-element array).
func (f Field) First() string {
	if len(f.Values) == 0 {
		return ""
	}
	return f.Values[0]
}

// Fields is the full set of parsed fields for one declaration, keyed by
// field name as written by the user (e.g. "depends", "as", "env").
type Fields map[string]Field

// knownFields lists every field name the registry interprets. Anything
// else is reported as a warning but never fails the declaration.
var knownFields = map[string]bool{
	"source": true, "branch": true, "tag": true, "commit": true,
	"as": true, "local": true, "load": true, "build": true,
	"disabled": true, "source_file": true, "rc": true, "url": true,
	"env": true, "path": true, "fpath": true, "alias": true, "depends": true,
}

// UnknownFieldNames returns the names in f that the registry does not
// recognize, in an arbitrary but deterministic-per-call order.
func (f Fields) UnknownFieldNames() []string {
	var names []string
	for name := range f {
		if !knownFields[name] {
			names = append(names, name)
		}
	}
	return names
}

func (f Fields) scalar(name string) (string, bool) {
	field, ok := f[name]
	if !ok {
		return "", false
	}
	return field.First(), true
}

func (f Fields) array(name string) []string {
	field, ok := f[name]
	if !ok {
		return nil
	}
	return field.Values
}

func (f Fields) boolean(name string) bool {
	v, ok := f.scalar(name)
	if !ok {
		return false
	}
	b, _ := strconv.ParseBool(v)
	return b
}
