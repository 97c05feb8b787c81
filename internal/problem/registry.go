package problem

import (
	"strconv"
	"strings"
)

// cell is one key column value of a registered row.
type cell struct {
	column string
	key    Key
}

// varRow is one variable entry. Its position in the registry is its slot
// in the standard-form x vector.
type varRow struct {
	name  string
	cells []cell
}

// variableRegistry maintains the ordered variable table. Rows are
// deduplicated on insert; the order of first insertion defines the slot.
type variableRegistry struct {
	rows    []varRow
	byName  map[string][]int
	order   []string
	columns map[string][]string
	dedup   map[string]int
}

func newVariableRegistry() *variableRegistry {
	return &variableRegistry{
		byName:  make(map[string][]int),
		columns: make(map[string][]string),
		dedup:   make(map[string]int),
	}
}

func (r *variableRegistry) size() int {
	return len(r.rows)
}

// names returns variable names in first-declared order.
func (r *variableRegistry) names() []string {
	return r.order
}

func columnsOf(keys []KeySet) []string {
	cols := make([]string, len(keys))
	for i, ks := range keys {
		cols[i] = ks.Column
	}
	return cols
}

func sameColumns(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func encodeRow(name string, cells []cell) string {
	var sb strings.Builder
	sb.WriteString(name)
	for _, c := range cells {
		sb.WriteByte(0x1f)
		sb.WriteString(c.column)
		sb.WriteByte(0x1e)
		sb.WriteByte(byte('0' + c.key.kind))
		// Encode the raw numeric value for int and time keys: the display
		// form truncates timestamps to second precision, which would merge
		// distinct sub-second keys.
		switch c.key.kind {
		case kindInt, kindTime:
			sb.WriteString(strconv.FormatInt(c.key.num, 10))
		default:
			sb.WriteString(c.key.str)
		}
	}
	return sb.String()
}

// define registers the cartesian product of the key sets under the given
// name. Rows identical to already-registered rows are silently absorbed,
// so repeated identical declarations are idempotent. A name must use the
// same key columns in every call; anything else would make later
// partial-key lookups ambiguous.
func (r *variableRegistry) define(name string, keys []KeySet) error {
	cols := columnsOf(keys)
	if known, ok := r.columns[name]; ok {
		if !sameColumns(known, cols) {
			return structErrorf("variable %q redeclared with key columns %v, previously %v",
				name, cols, known)
		}
	} else {
		r.columns[name] = cols
		r.order = append(r.order, name)
	}
	for _, cells := range cartesianRows(keys) {
		enc := encodeRow(name, cells)
		if _, exists := r.dedup[enc]; exists {
			continue
		}
		slot := len(r.rows)
		r.rows = append(r.rows, varRow{name: name, cells: cells})
		r.byName[name] = append(r.byName[name], slot)
		r.dedup[enc] = slot
	}
	return nil
}

func matchCells(cells []cell, keys []KeySet) bool {
	for _, ks := range keys {
		found := false
		for _, c := range cells {
			if c.column != ks.Column {
				continue
			}
			for _, k := range ks.Values {
				if c.key == k {
					found = true
					break
				}
			}
			break
		}
		if !found {
			return false
		}
	}
	return true
}

// index returns the slot array matching the selector, in ascending slot
// order. An empty result is an EmptyIndexError unless the selector is
// relaxed.
func (r *variableRegistry) index(sel Selector) ([]int, error) {
	var slots []int
	for _, slot := range r.byName[sel.Name] {
		if matchCells(r.rows[slot].cells, sel.keys) {
			slots = append(slots, slot)
		}
	}
	if len(slots) == 0 && !sel.relaxed {
		return nil, &EmptyIndexError{Selection: sel.describe()}
	}
	return slots, nil
}

// conRow is one labeled constraint entry, owning the slot'th row of the
// A matrix and b vector.
type conRow struct {
	slot  int
	name  string
	ctype string
	cells []cell
}

// constraintRegistry tracks the constraint row count and the labeled
// constraint rows. Slots are assigned sequentially at declaration time
// and never reused or reordered. Unlabeled constraints only advance the
// count; labeling is what makes duals addressable by name.
type constraintRegistry struct {
	count   int
	rows    []conRow
	byName  map[string][]int
	order   []string
	columns map[string][]string
}

func newConstraintRegistry() *constraintRegistry {
	return &constraintRegistry{
		byName:  make(map[string][]int),
		columns: make(map[string][]string),
	}
}

// reserve allocates n fresh row slots.
func (r *constraintRegistry) reserve(n int) []int {
	slots := make([]int, n)
	for i := range slots {
		slots[i] = r.count + i
	}
	r.count += n
	return slots
}

// checkLabel validates a prospective label against a row count without
// registering anything, so callers can validate before reserving slots.
func (r *constraintRegistry) checkLabel(name string, keys []KeySet, n int) error {
	expanded := len(cartesianRows(keys))
	if len(keys) == 0 {
		expanded = 1
	}
	if expanded != n {
		return structErrorf("constraint %q key set dimension (%d) does not align with row dimension (%d)",
			name, expanded, n)
	}
	if known, ok := r.columns[name]; ok {
		if !sameColumns(known, columnsOf(keys)) {
			return structErrorf("constraint %q redeclared with key columns %v, previously %v",
				name, columnsOf(keys), known)
		}
	}
	return nil
}

// label attaches name and cartesian-expanded keys to already-reserved
// slots. The key product must align with the slot count.
func (r *constraintRegistry) label(name, ctype string, keys []KeySet, slots []int) error {
	if err := r.checkLabel(name, keys, len(slots)); err != nil {
		return err
	}
	expanded := cartesianRows(keys)
	if len(keys) == 0 {
		expanded = [][]cell{nil}
	}
	if _, ok := r.columns[name]; !ok {
		r.columns[name] = columnsOf(keys)
		r.order = append(r.order, name)
	}
	for i, slot := range slots {
		r.rows = append(r.rows, conRow{slot: slot, name: name, ctype: ctype, cells: expanded[i]})
		r.byName[name] = append(r.byName[name], len(r.rows)-1)
	}
	return nil
}

// names returns labeled constraint names in first-declared order.
func (r *constraintRegistry) names() []string {
	return r.order
}

// slotsFor returns the slots of the labeled rows with the given name and
// constraint type, in declaration order.
func (r *constraintRegistry) slotsFor(name, ctype string) []int {
	var slots []int
	for _, i := range r.byName[name] {
		if r.rows[i].ctype == ctype {
			slots = append(slots, r.rows[i].slot)
		}
	}
	return slots
}

// rowsFor returns the labeled rows with the given name and constraint
// type, in declaration order.
func (r *constraintRegistry) rowsFor(name, ctype string) []conRow {
	var rows []conRow
	for _, i := range r.byName[name] {
		if r.rows[i].ctype == ctype {
			rows = append(rows, r.rows[i])
		}
	}
	return rows
}

// typesFor returns the distinct constraint types registered under name.
func (r *constraintRegistry) typesFor(name string) []string {
	seen := make(map[string]bool)
	var types []string
	for _, i := range r.byName[name] {
		t := r.rows[i].ctype
		if !seen[t] {
			seen[t] = true
			types = append(types, t)
		}
	}
	return types
}
