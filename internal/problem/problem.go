// Package problem implements an indexed algebraic modeling engine for
// linear and quadratic convex optimization. A Problem is populated
// additively with variables, parameters, constraints and objective terms
// indexed by arbitrary multi-dimensional keys, compiles into the sparse
// standard form
//
//	minimize cᵀx + ½xᵀQx + d  subject to  Ax ≤ b : μ
//
// and maps solver output back into named, multi-indexed result tables
// including constraint duals.
package problem

import (
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/voltmesh/gridform/internal/solver"
)

// Element is one entry of a constraint or objective declaration: a
// variable or constant term, an operator token, or a trailing option.
type Element interface {
	element()
}

// Operator is a constraint relation token.
type Operator string

// Constraint relation tokens. Equality constraints are internally
// decomposed into a paired upper and lower inequality.
const (
	OpEqual        Operator = "=="
	OpLessEqual    Operator = "<="
	OpGreaterEqual Operator = ">="
)

func (Operator) element() {}

// Constraint operator elements for use in DefineConstraint calls.
var (
	Equal        Element = OpEqual
	LessEqual    Element = OpLessEqual
	GreaterEqual Element = OpGreaterEqual
)

// VariableTerm is a factor applied to a variable slice. Sign is the side
// factor applied during normalization; the high-level element parser
// fills it in (+1 left of the operator, -1 right).
type VariableTerm struct {
	Sign   float64
	Factor Coefficient
	Sel    Selector
}

func (VariableTerm) element() {}

// Var declares a variable term with the given factor and selector.
func Var(factor Coefficient, sel Selector) Element {
	return VariableTerm{Sign: 1, Factor: factor, Sel: sel}
}

// ConstantTerm is a constant contribution. Keys are only consulted for
// broadcast dimension lengths.
type ConstantTerm struct {
	Sign  float64
	Value Coefficient
	Keys  []KeySet
}

func (ConstantTerm) element() {}

// Const declares a constant term. Key sets may be attached so a
// broadcast dimension can size the term.
func Const(value Coefficient, keys ...KeySet) Element {
	return ConstantTerm{Sign: 1, Value: value, Keys: keys}
}

// QuadraticTerm is a quadratic objective contribution referencing a
// variable pair.
type QuadraticTerm struct {
	Factor Coefficient
	Sel1   Selector
	Sel2   Selector
}

func (QuadraticTerm) element() {}

// QuadVar declares a quadratic objective term between two variable
// slices. Only valid in DefineObjective.
func QuadVar(factor Coefficient, sel1, sel2 Selector) Element {
	return QuadraticTerm{Factor: factor, Sel1: sel1, Sel2: sel2}
}

// labelOption names a constraint so its duals become addressable.
type labelOption struct {
	name string
	keys []KeySet
}

func (labelOption) element() {}

// Label names the declared constraint rows and attaches cartesian-
// expanded key columns to them, one combination per row.
func Label(name string, keys ...KeySet) Element {
	return labelOption{name: name, keys: keys}
}

// broadcastOption tiles coefficient blocks across repeated key
// dimensions.
type broadcastOption struct {
	dims []string
}

func (broadcastOption) element() {}

// Broadcast requests that each term's coefficient block, supplied once,
// be tiled across the named key dimensions' cardinality instead of being
// re-specified per repetition.
func Broadcast(dims ...string) Element {
	return broadcastOption{dims: dims}
}

// coeffTerm is one accumulated contribution. Literal coefficients are
// normalized at declaration time; parameter references are re-resolved
// and re-normalized on every compilation.
type coeffTerm struct {
	factor  float64
	entries *entryBlock // literal matrix contribution
	column  []float64   // literal vector contribution
	param   string      // parameter reference, if any
	bcast   int
}

// aBlock accumulates A matrix contributions for one (constraint-slice,
// variable-slice) pair. Contributions are kept as an ordered list so
// repeated declarations touching the same slots sum in declaration order
// instead of overwriting each other.
type aBlock struct {
	rows  []int
	cols  []int
	terms []coeffTerm
}

// vecBlock accumulates b or c vector contributions for one slot slice.
type vecBlock struct {
	slots []int
	terms []coeffTerm
}

// dTerm is one scalar contribution to the constant objective term.
type dTerm struct {
	value float64
	param string
	bcast int
}

// Problem is the indexed algebraic model container. It is populated
// additively (declare-only, no retraction), compiled on demand, and
// remains valid for repeated solves after parameter updates.
//
// A Problem is not safe for concurrent declaration; compile accessors
// are read-only over the accumulators once declaration has ceased.
type Problem struct {
	logger  *zap.Logger
	backend solver.Backend

	vars   *variableRegistry
	cons   *constraintRegistry
	params *parameterStore

	aBlocks []*aBlock
	aLookup map[string]int
	bBlocks []*vecBlock
	bLookup map[string]int
	cBlocks []*vecBlock
	cLookup map[string]int
	qBlocks []*aBlock
	qLookup map[string]int
	dTerms  []dTerm

	solved         bool
	status         solver.Status
	x              []float64
	mu             []float64
	objective      float64
	dualsAvailable bool
}

// Option configures a Problem.
type Option func(*Problem)

// WithLogger injects the structured logger used for solve statistics and
// warnings.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Problem) {
		p.logger = logger.Named("problem")
	}
}

// WithBackend selects the solver backend used by Solve.
func WithBackend(backend solver.Backend) Option {
	return func(p *Problem) {
		p.backend = backend
	}
}

// New creates an empty optimization problem.
func New(opts ...Option) *Problem {
	p := &Problem{
		logger:  zap.NewNop(),
		vars:    newVariableRegistry(),
		cons:    newConstraintRegistry(),
		params:  newParameterStore(),
		aLookup: make(map[string]int),
		bLookup: make(map[string]int),
		cLookup: make(map[string]int),
		qLookup: make(map[string]int),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// DefineVariable registers a decision variable with the given name and
// key sets. The cartesian product of the key set values produces one row
// per combination; duplicate rows are absorbed, so identical declarations
// are idempotent.
func (p *Problem) DefineVariable(name string, keys ...KeySet) error {
	return p.vars.define(name, keys)
}

// DefineParameter sets or overwrites the named parameter value.
// Redefinition with a mismatched shape fails with ShapeMismatchError.
func (p *Problem) DefineParameter(name string, value Coefficient) error {
	return p.params.define(name, value)
}

// VariableCount returns the number of registered variable rows, i.e. the
// standard-form dimension n.
func (p *Problem) VariableCount() int {
	return p.vars.size()
}

// ConstraintCount returns the number of constraint rows, i.e. the
// standard-form dimension m.
func (p *Problem) ConstraintCount() int {
	return p.cons.count
}

// Index returns the variable slot array matching the selector.
func (p *Problem) Index(sel Selector) ([]int, error) {
	return p.vars.index(sel)
}

// ConstraintIndex returns the constraint row slots registered under the
// given label and constraint type ("<=", ">=", "==>=" or "==<=").
func (p *Problem) ConstraintIndex(name, ctype string) []int {
	return p.cons.slotsFor(name, ctype)
}

// broadcastLen computes the tiling cardinality of the broadcast
// dimensions within the given key sets. Dimensions missing from the key
// sets are a structural error when required is true (variable terms);
// constants silently skip absent dimensions, matching their looser key
// contract.
func broadcastLen(dims []string, keys []KeySet, required bool) (int, error) {
	n := 1
	for _, dim := range dims {
		found := false
		for _, ks := range keys {
			if ks.Column == dim {
				n *= len(ks.Values)
				found = true
				break
			}
		}
		if !found && required {
			return 0, structErrorf("invalid broadcast dimension: %q", dim)
		}
	}
	return n, nil
}

// resolveFactor splits a coefficient into its literal value and, when it
// is a parameter reference, the referenced name. The parameter's current
// value is returned so declarations can shape-check eagerly; compilation
// re-resolves from the store.
func (p *Problem) resolveFactor(v Coefficient) (Coefficient, string, error) {
	ref, ok := v.(paramRef)
	if !ok {
		return v, "", nil
	}
	value, err := p.params.get(ref.name)
	if err != nil {
		return nil, "", err
	}
	return value, ref.name, nil
}

func encodeSlots(slots []int) string {
	var sb strings.Builder
	for i, s := range slots {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.Itoa(s))
	}
	return sb.String()
}

func (p *Problem) appendA(rows, cols []int, term coeffTerm) {
	key := encodeSlots(rows) + "|" + encodeSlots(cols)
	if i, ok := p.aLookup[key]; ok {
		p.aBlocks[i].terms = append(p.aBlocks[i].terms, term)
		return
	}
	p.aLookup[key] = len(p.aBlocks)
	p.aBlocks = append(p.aBlocks, &aBlock{rows: rows, cols: cols, terms: []coeffTerm{term}})
}

func (p *Problem) appendB(slots []int, term coeffTerm) {
	key := encodeSlots(slots)
	if i, ok := p.bLookup[key]; ok {
		p.bBlocks[i].terms = append(p.bBlocks[i].terms, term)
		return
	}
	p.bLookup[key] = len(p.bBlocks)
	p.bBlocks = append(p.bBlocks, &vecBlock{slots: slots, terms: []coeffTerm{term}})
}

func (p *Problem) appendC(slots []int, term coeffTerm) {
	key := encodeSlots(slots)
	if i, ok := p.cLookup[key]; ok {
		p.cBlocks[i].terms = append(p.cBlocks[i].terms, term)
		return
	}
	p.cLookup[key] = len(p.cBlocks)
	p.cBlocks = append(p.cBlocks, &vecBlock{slots: slots, terms: []coeffTerm{term}})
}

func (p *Problem) appendQ(rows, cols []int, term coeffTerm) {
	key := encodeSlots(rows) + "|" + encodeSlots(cols)
	if i, ok := p.qLookup[key]; ok {
		p.qBlocks[i].terms = append(p.qBlocks[i].terms, term)
		return
	}
	p.qLookup[key] = len(p.qBlocks)
	p.qBlocks = append(p.qBlocks, &aBlock{rows: rows, cols: cols, terms: []coeffTerm{term}})
}
