package problem

// Constraint type tags recorded in the constraint registry. Equality
// declarations register their two synthetic inequality halves under the
// dedicated pair tags.
const (
	ctypeEqualGE = "==>="
	ctypeEqualLE = "==<="
)

// DefineConstraint declares a linear constraint from an ordered element
// list: variable and constant terms interleaved with exactly one operator
// token, optionally followed by Label and Broadcast options.
//
// Terms left of the operator keep their sign; variable terms right of the
// operator are negated (moved to the left-hand side) and constant terms
// are treated mirror-wise, normalizing the declaration to Ax ≤ b form.
func (p *Problem) DefineConstraint(elements ...Element) error {
	var (
		variables []VariableTerm
		constants []ConstantTerm
		operator  Operator
		label     *labelOption
		broadcast []string
	)
	side := 1.0 // left-hand side until the operator is seen

	for i, element := range elements {
		switch e := element.(type) {
		case VariableTerm:
			e.Sign = side
			variables = append(variables, e)
		case ConstantTerm:
			// Left-hand constants move to the right-hand side.
			e.Sign = -side
			constants = append(constants, e)
		case Operator:
			if i == 0 {
				return structErrorf("operator is first element of a constraint")
			}
			if i == len(elements)-1 {
				return structErrorf("operator is last element of a constraint")
			}
			if operator != "" {
				return structErrorf("multiple operators defined in one constraint")
			}
			operator = e
			side = -1.0
		case labelOption:
			label = &e
		case broadcastOption:
			broadcast = append(broadcast, e.dims...)
		case QuadraticTerm:
			return structErrorf("quadratic terms are not valid in constraints")
		default:
			return structErrorf("invalid constraint element of type %T", element)
		}
	}

	if operator == "" {
		return structErrorf("cannot define constraint without operator (==, <= or >=)")
	}
	var opts []Element
	if label != nil {
		opts = append(opts, *label)
	}
	if len(broadcast) > 0 {
		opts = append(opts, Broadcast(broadcast...))
	}
	return p.DefineConstraintTerms(variables, operator, constants, opts...)
}

// DefineConstraintTerms is the low-level constraint declaration: term
// signs are already normalized to the left-hand side. The high-level
// element parser calls it; callers assembling term lists programmatically
// can use it directly. Options are restricted to Label and Broadcast.
func (p *Problem) DefineConstraintTerms(
	variables []VariableTerm,
	operator Operator,
	constants []ConstantTerm,
	options ...Element,
) error {
	var label *labelOption
	var broadcast []string
	for _, option := range options {
		switch o := option.(type) {
		case labelOption:
			label = &o
		case broadcastOption:
			broadcast = append(broadcast, o.dims...)
		default:
			return structErrorf("invalid constraint option of type %T", option)
		}
	}
	if len(variables) == 0 {
		return structErrorf("cannot define constraint without variables")
	}

	// An equality constraint fans out into an upper and lower inequality
	// pair. Primal feasibility and dual-sign bookkeeping then reduce to
	// the single inequality code path; the duals are recombined in
	// Duals().
	if operator == OpEqual {
		if err := p.defineInequality(variables, OpGreaterEqual, constants, label, broadcast, ctypeEqualGE); err != nil {
			return err
		}
		return p.defineInequality(variables, OpLessEqual, constants, label, broadcast, ctypeEqualLE)
	}
	if operator != OpLessEqual && operator != OpGreaterEqual {
		return structErrorf("invalid constraint operator: %q", operator)
	}
	return p.defineInequality(variables, operator, constants, label, broadcast, string(operator))
}

func (p *Problem) defineInequality(
	variables []VariableTerm,
	operator Operator,
	constants []ConstantTerm,
	label *labelOption,
	broadcast []string,
	ctype string,
) error {
	// Greater-than-or-equal rows are sign-inverted into ≤ rows.
	operatorFactor := 1.0
	if operator == OpGreaterEqual {
		operatorFactor = -1.0
	}

	// The first variable term processed determines the constraint row
	// count; every subsequent term must match it exactly. Slots are
	// reserved only after every term and the label validate, so a failed
	// declaration never leaves phantom all-zero rows in A and b.
	rowCount := -1

	type pendingA struct {
		cols []int
		term coeffTerm
	}
	type pendingB struct {
		term coeffTerm
	}
	var aPending []pendingA
	var bPending []pendingB

	for _, v := range variables {
		// A selector carrying an explicitly empty key list is a declared
		// no-op (e.g. an empty unit list); skip the term.
		if v.Sel.hasEmptyKeySet() {
			continue
		}
		varSlots, err := p.vars.index(v.Sel)
		if err != nil {
			return err
		}
		if len(varSlots) == 0 {
			continue
		}

		bcast, err := broadcastLen(broadcast, v.Sel.keys, true)
		if err != nil {
			return err
		}

		value, paramName, err := p.resolveFactor(v.Factor)
		if err != nil {
			return err
		}
		entries, err := matrixEntries(value, len(varSlots), bcast)
		if err != nil {
			return err
		}

		if rowCount < 0 {
			rowCount = entries.rows
		}
		if entries.rows != rowCount || entries.cols != len(varSlots) {
			return &DimensionError{
				Context:  "variable " + v.Sel.describe(),
				WantRows: rowCount, WantCols: len(varSlots),
				GotRows: entries.rows, GotCols: entries.cols,
			}
		}

		term := coeffTerm{factor: operatorFactor * v.Sign, param: paramName, bcast: bcast}
		if paramName == "" {
			term.entries = entries
		}
		aPending = append(aPending, pendingA{cols: varSlots, term: term})
	}

	if rowCount < 0 {
		// Every variable term resolved to an empty selection: the whole
		// constraint is a no-op.
		return nil
	}

	for _, c := range constants {
		bcast, err := broadcastLen(broadcast, c.Keys, false)
		if err != nil {
			return err
		}
		value, paramName, err := p.resolveFactor(c.Value)
		if err != nil {
			return err
		}
		column, err := columnEntries(value, rowCount, bcast, "constraint constant")
		if err != nil {
			return err
		}
		if len(column) != rowCount {
			return &DimensionError{
				Context:  "constraint constant",
				WantRows: rowCount, WantCols: 1,
				GotRows: len(column), GotCols: 1,
			}
		}
		term := coeffTerm{factor: operatorFactor * c.Sign, param: paramName, bcast: bcast}
		if paramName == "" {
			term.column = column
		}
		bPending = append(bPending, pendingB{term: term})
	}

	if label != nil {
		if err := p.cons.checkLabel(label.name, label.keys, rowCount); err != nil {
			return err
		}
	}
	rowSlots := p.cons.reserve(rowCount)
	if label != nil {
		if err := p.cons.label(label.name, ctype, label.keys, rowSlots); err != nil {
			return err
		}
	}

	for _, a := range aPending {
		p.appendA(rowSlots, a.cols, a.term)
	}
	for _, b := range bPending {
		p.appendB(rowSlots, b.term)
	}
	return nil
}
