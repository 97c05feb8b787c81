package problem

import "fmt"

// StructureError reports a malformed declaration: missing or misplaced
// operator, constraint without variables, inconsistent key columns, and
// similar structural defects. It is always raised at declaration time.
type StructureError struct {
	Message string
}

// Error returns the string representation of the error.
func (e *StructureError) Error() string {
	return "problem: " + e.Message
}

func structErrorf(format string, args ...interface{}) *StructureError {
	return &StructureError{Message: fmt.Sprintf(format, args...)}
}

// DimensionError reports a coefficient whose shape is inconsistent with
// the declared constraint or variable slice size.
type DimensionError struct {
	Context  string
	WantRows int
	WantCols int
	GotRows  int
	GotCols  int
}

// Error returns the string representation of the error.
func (e *DimensionError) Error() string {
	return fmt.Sprintf("problem: dimension mismatch at %s: want (%d, %d), got (%d, %d)",
		e.Context, e.WantRows, e.WantCols, e.GotRows, e.GotCols)
}

// ShapeMismatchError reports a parameter redefinition that changes the
// parameter's shape.
type ShapeMismatchError struct {
	Name string
	Want string
	Got  string
}

// Error returns the string representation of the error.
func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("problem: redefinition of parameter %q changes shape from %s to %s",
		e.Name, e.Want, e.Got)
}

// EmptyIndexError reports a key lookup that matched zero rows. Callers
// for which an empty selection is a legitimate no-op opt out by relaxing
// the selector.
type EmptyIndexError struct {
	Selection string
}

// Error returns the string representation of the error.
func (e *EmptyIndexError) Error() string {
	return fmt.Sprintf("problem: empty index for selection: %s", e.Selection)
}
