package problem

import (
	"fmt"
	"strconv"
	"time"
)

// keyKind discriminates the value held by a Key.
type keyKind uint8

const (
	kindInvalid keyKind = iota
	kindString
	kindInt
	kindTime
)

// Key is a single index key value: a string, an integer or a timestamp.
// Keys are small comparable values, so they can be used directly as map
// keys and compared with ==.
type Key struct {
	kind keyKind
	str  string
	num  int64
}

// StringKey returns a string-valued key.
func StringKey(s string) Key {
	return Key{kind: kindString, str: s}
}

// IntKey returns an integer-valued key.
func IntKey(i int) Key {
	return Key{kind: kindInt, num: int64(i)}
}

// TimeKey returns a timestamp-valued key. The timestamp is normalized to
// UTC nanosecond precision, so two keys built from equal instants compare
// equal regardless of location.
func TimeKey(t time.Time) Key {
	return Key{kind: kindTime, num: t.UnixNano()}
}

// IsValid reports whether the key holds a value.
func (k Key) IsValid() bool {
	return k.kind != kindInvalid
}

// Time returns the timestamp held by the key, or the zero time if the key
// is not time-valued.
func (k Key) Time() time.Time {
	if k.kind != kindTime {
		return time.Time{}
	}
	return time.Unix(0, k.num).UTC()
}

// String renders the key value for table labels and error messages.
func (k Key) String() string {
	switch k.kind {
	case kindString:
		return k.str
	case kindInt:
		return strconv.FormatInt(k.num, 10)
	case kindTime:
		return time.Unix(0, k.num).UTC().Format(time.RFC3339Nano)
	default:
		return "<invalid>"
	}
}

// Strings builds a key list from string values.
func Strings(values ...string) []Key {
	keys := make([]Key, len(values))
	for i, v := range values {
		keys[i] = StringKey(v)
	}
	return keys
}

// Ints builds a key list from integer values.
func Ints(values ...int) []Key {
	keys := make([]Key, len(values))
	for i, v := range values {
		keys[i] = IntKey(v)
	}
	return keys
}

// IntRange builds the key list 0, 1, ..., n-1.
func IntRange(n int) []Key {
	keys := make([]Key, n)
	for i := range keys {
		keys[i] = IntKey(i)
	}
	return keys
}

// Times builds a key list from timestamps.
func Times(values ...time.Time) []Key {
	keys := make([]Key, len(values))
	for i, v := range values {
		keys[i] = TimeKey(v)
	}
	return keys
}

// KeySet names one key column together with its ordered value list. In
// DefineVariable and Label calls, the cartesian product of all key sets
// determines the declared rows.
type KeySet struct {
	Column string
	Values []Key
}

// Set is shorthand for constructing a KeySet.
func Set(column string, values ...Key) KeySet {
	return KeySet{Column: column, Values: values}
}

// Selector addresses a slice of a named variable (or constraint) by
// constraining any subset of its key columns. Constraints combine with
// logical AND across columns and membership (OR) within one column's
// value list.
type Selector struct {
	Name    string
	keys    []KeySet
	relaxed bool
}

// Sel constructs a selector for the named variable, optionally narrowed
// by key sets.
func Sel(name string, keys ...KeySet) Selector {
	return Selector{Name: name, keys: keys}
}

// Relax returns a copy of the selector for which an empty lookup result
// is a legitimate no-op instead of an EmptyIndexError.
func (s Selector) Relax() Selector {
	s.relaxed = true
	return s
}

// Keys returns the selector's key sets.
func (s Selector) Keys() []KeySet {
	return s.keys
}

// hasEmptyKeySet reports whether any key column is constrained to an
// explicitly empty value list. Such selections are declared no-ops, e.g.
// an empty list of units of a given type.
func (s Selector) hasEmptyKeySet() bool {
	for _, ks := range s.keys {
		if len(ks.Values) == 0 {
			return true
		}
	}
	return false
}

func (s Selector) describe() string {
	out := s.Name
	for _, ks := range s.keys {
		out += fmt.Sprintf(" %s=%v", ks.Column, ks.Values)
	}
	return out
}

// cartesianRows expands key sets into the cartesian product of their
// values, preserving declaration order (last key set varies fastest).
func cartesianRows(keys []KeySet) [][]cell {
	total := 1
	for _, ks := range keys {
		total *= len(ks.Values)
	}
	if total == 0 {
		return nil
	}
	rows := make([][]cell, 0, total)
	current := make([]cell, len(keys))
	var expand func(depth int)
	expand = func(depth int) {
		if depth == len(keys) {
			row := make([]cell, len(keys))
			copy(row, current)
			rows = append(rows, row)
			return
		}
		for _, key := range keys[depth].Values {
			current[depth] = cell{column: keys[depth].Column, key: key}
			expand(depth + 1)
		}
	}
	expand(0)
	return rows
}
