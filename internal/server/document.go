package server

import (
	"fmt"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/voltmesh/gridform/internal/problem"
	"github.com/voltmesh/gridform/internal/solver"
)

// Document is the JSON problem description accepted by the solve
// endpoint. Variable terms are taken as the left-hand side, constants as
// the right-hand side of each constraint.
type Document struct {
	Variables   []VariableDoc             `json:"variables"`
	Parameters  map[string]CoefficientDoc `json:"parameters,omitempty"`
	Constraints []ConstraintDoc           `json:"constraints"`
	Objective   ObjectiveDoc              `json:"objective"`
}

// KeySetDoc is one key column with its values.
type KeySetDoc struct {
	Column string   `json:"column"`
	Values []string `json:"values"`
}

// VariableDoc declares one indexed variable.
type VariableDoc struct {
	Name string      `json:"name"`
	Keys []KeySetDoc `json:"keys,omitempty"`
}

// CoefficientDoc is a scalar, vector or dense matrix coefficient, or a
// reference to a declared parameter. Exactly one field may be set.
type CoefficientDoc struct {
	Scalar    *float64    `json:"scalar,omitempty"`
	Vector    []float64   `json:"vector,omitempty"`
	Matrix    [][]float64 `json:"matrix,omitempty"`
	Parameter string      `json:"parameter,omitempty"`
}

// TermDoc is one variable term: a factor applied to a variable slice.
type TermDoc struct {
	Variable string         `json:"variable"`
	Keys     []KeySetDoc    `json:"keys,omitempty"`
	Factor   CoefficientDoc `json:"factor"`
	Relax    bool           `json:"relax,omitempty"`
}

// ConstantDoc is one constant term.
type ConstantDoc struct {
	Value CoefficientDoc `json:"value"`
	Keys  []KeySetDoc    `json:"keys,omitempty"`
}

// ConstraintDoc declares one constraint in normalized form: variable
// terms ⟨operator⟩ constants.
type ConstraintDoc struct {
	Name      string        `json:"name,omitempty"`
	Keys      []KeySetDoc   `json:"keys,omitempty"`
	Variables []TermDoc     `json:"variables"`
	Operator  string        `json:"operator"`
	Constants []ConstantDoc `json:"constants"`
	Broadcast []string      `json:"broadcast,omitempty"`
}

// QuadTermDoc is one quadratic objective term over a variable pair.
type QuadTermDoc struct {
	Variable1 string         `json:"variable1"`
	Keys1     []KeySetDoc    `json:"keys1,omitempty"`
	Variable2 string         `json:"variable2"`
	Keys2     []KeySetDoc    `json:"keys2,omitempty"`
	Factor    CoefficientDoc `json:"factor"`
}

// ObjectiveDoc declares the objective terms.
type ObjectiveDoc struct {
	Linear    []TermDoc     `json:"linear,omitempty"`
	Quadratic []QuadTermDoc `json:"quadratic,omitempty"`
	Constants []ConstantDoc `json:"constants,omitempty"`
	Broadcast []string      `json:"broadcast,omitempty"`
}

func (c CoefficientDoc) toCoefficient() (problem.Coefficient, error) {
	set := 0
	if c.Scalar != nil {
		set++
	}
	if c.Vector != nil {
		set++
	}
	if c.Matrix != nil {
		set++
	}
	if c.Parameter != "" {
		set++
	}
	if set != 1 {
		return nil, fmt.Errorf("coefficient must set exactly one of scalar, vector, matrix or parameter")
	}
	switch {
	case c.Scalar != nil:
		return problem.Scalar(*c.Scalar), nil
	case c.Vector != nil:
		return problem.Vector(c.Vector), nil
	case c.Parameter != "":
		return problem.Param(c.Parameter), nil
	default:
		rows := len(c.Matrix)
		if rows == 0 {
			return nil, fmt.Errorf("matrix coefficient is empty")
		}
		cols := len(c.Matrix[0])
		data := make([]float64, 0, rows*cols)
		for _, row := range c.Matrix {
			if len(row) != cols {
				return nil, fmt.Errorf("matrix coefficient rows have uneven lengths")
			}
			data = append(data, row...)
		}
		return problem.Mat(mat.NewDense(rows, cols, data)), nil
	}
}

func toKeySets(docs []KeySetDoc) []problem.KeySet {
	sets := make([]problem.KeySet, len(docs))
	for i, d := range docs {
		keys := make([]problem.Key, len(d.Values))
		for j, v := range d.Values {
			keys[j] = problem.StringKey(v)
		}
		sets[i] = problem.KeySet{Column: d.Column, Values: keys}
	}
	return sets
}

func toSelector(name string, keys []KeySetDoc, relax bool) problem.Selector {
	sel := problem.Sel(name, toKeySets(keys)...)
	if relax {
		sel = sel.Relax()
	}
	return sel
}

// buildProblem assembles a Problem from the document.
func buildProblem(doc *Document, backend solver.Backend, logger *zap.Logger) (*problem.Problem, error) {
	p := problem.New(problem.WithLogger(logger), problem.WithBackend(backend))

	for _, v := range doc.Variables {
		if err := p.DefineVariable(v.Name, toKeySets(v.Keys)...); err != nil {
			return nil, err
		}
	}
	for name, c := range doc.Parameters {
		value, err := c.toCoefficient()
		if err != nil {
			return nil, fmt.Errorf("parameter %q: %w", name, err)
		}
		if err := p.DefineParameter(name, value); err != nil {
			return nil, err
		}
	}

	for i, con := range doc.Constraints {
		variables := make([]problem.VariableTerm, 0, len(con.Variables))
		for _, t := range con.Variables {
			factor, err := t.Factor.toCoefficient()
			if err != nil {
				return nil, fmt.Errorf("constraint %d: %w", i, err)
			}
			variables = append(variables, problem.VariableTerm{
				Sign:   1,
				Factor: factor,
				Sel:    toSelector(t.Variable, t.Keys, t.Relax),
			})
		}
		constants := make([]problem.ConstantTerm, 0, len(con.Constants))
		for _, c := range con.Constants {
			value, err := c.Value.toCoefficient()
			if err != nil {
				return nil, fmt.Errorf("constraint %d: %w", i, err)
			}
			constants = append(constants, problem.ConstantTerm{
				Sign:  1,
				Value: value,
				Keys:  toKeySets(c.Keys),
			})
		}
		var options []problem.Element
		if con.Name != "" {
			options = append(options, problem.Label(con.Name, toKeySets(con.Keys)...))
		}
		if len(con.Broadcast) > 0 {
			options = append(options, problem.Broadcast(con.Broadcast...))
		}
		if err := p.DefineConstraintTerms(variables, problem.Operator(con.Operator), constants, options...); err != nil {
			return nil, err
		}
	}

	var linear []problem.VariableTerm
	for _, t := range doc.Objective.Linear {
		factor, err := t.Factor.toCoefficient()
		if err != nil {
			return nil, fmt.Errorf("objective: %w", err)
		}
		linear = append(linear, problem.VariableTerm{
			Sign:   1,
			Factor: factor,
			Sel:    toSelector(t.Variable, t.Keys, t.Relax),
		})
	}
	var quadratic []problem.QuadraticTerm
	for _, t := range doc.Objective.Quadratic {
		factor, err := t.Factor.toCoefficient()
		if err != nil {
			return nil, fmt.Errorf("objective: %w", err)
		}
		quadratic = append(quadratic, problem.QuadraticTerm{
			Factor: factor,
			Sel1:   toSelector(t.Variable1, t.Keys1, false),
			Sel2:   toSelector(t.Variable2, t.Keys2, false),
		})
	}
	var constants []problem.ConstantTerm
	for _, c := range doc.Objective.Constants {
		value, err := c.Value.toCoefficient()
		if err != nil {
			return nil, fmt.Errorf("objective: %w", err)
		}
		constants = append(constants, problem.ConstantTerm{
			Sign:  1,
			Value: value,
			Keys:  toKeySets(c.Keys),
		})
	}
	if err := p.DefineObjectiveTerms(linear, quadratic, constants, doc.Objective.Broadcast); err != nil {
		return nil, err
	}
	return p, nil
}
