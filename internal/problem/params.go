package problem

// parameterStore is the named coefficient indirection layer. Values can
// be swapped between solves without re-declaring problem structure, as
// long as the shape stays fixed.
type parameterStore struct {
	values map[string]Coefficient
}

func newParameterStore() *parameterStore {
	return &parameterStore{values: make(map[string]Coefficient)}
}

// define sets or overwrites the named parameter. Redefinition with a
// different shape fails, because deferred references compiled against the
// old shape would silently corrupt the standard form.
func (s *parameterStore) define(name string, value Coefficient) error {
	if _, isRef := value.(paramRef); isRef {
		return structErrorf("parameter %q cannot be defined as a parameter reference", name)
	}
	if existing, ok := s.values[name]; ok {
		if !sameShape(existing, value) {
			return &ShapeMismatchError{Name: name, Want: shapeString(existing), Got: shapeString(value)}
		}
	}
	s.values[name] = value
	return nil
}

// get resolves the named parameter's current value.
func (s *parameterStore) get(name string) (Coefficient, error) {
	value, ok := s.values[name]
	if !ok {
		return nil, structErrorf("undefined parameter: %q", name)
	}
	return value, nil
}
