package problem

// DefineObjective declares objective terms from an element list: linear
// variable terms, quadratic variable-pair terms and scalar constants,
// optionally followed by a Broadcast option. Each term must evaluate to a
// scalar; multiple terms are summed.
func (p *Problem) DefineObjective(elements ...Element) error {
	var (
		linear    []VariableTerm
		quadratic []QuadraticTerm
		constants []ConstantTerm
		broadcast []string
	)
	for _, element := range elements {
		switch e := element.(type) {
		case VariableTerm:
			e.Sign = 1
			linear = append(linear, e)
		case QuadraticTerm:
			quadratic = append(quadratic, e)
		case ConstantTerm:
			e.Sign = 1
			constants = append(constants, e)
		case broadcastOption:
			broadcast = append(broadcast, e.dims...)
		case Operator:
			return structErrorf("operators are not valid in objective declarations")
		case labelOption:
			return structErrorf("labels are not valid in objective declarations")
		default:
			return structErrorf("invalid objective element of type %T", element)
		}
	}
	return p.DefineObjectiveTerms(linear, quadratic, constants, broadcast)
}

// DefineObjectiveTerms is the low-level objective declaration used by the
// element parser and by callers assembling term lists programmatically.
func (p *Problem) DefineObjectiveTerms(
	linear []VariableTerm,
	quadratic []QuadraticTerm,
	constants []ConstantTerm,
	broadcast []string,
) error {
	for _, v := range linear {
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
		row, err := rowEntries(value, len(varSlots), bcast, "objective factor "+v.Sel.describe())
		if err != nil {
			return err
		}
		if len(row) != len(varSlots) {
			return &DimensionError{
				Context:  "objective factor " + v.Sel.describe(),
				WantRows: 1, WantCols: len(varSlots),
				GotRows: 1, GotCols: len(row),
			}
		}
		term := coeffTerm{factor: v.Sign, param: paramName, bcast: bcast}
		if paramName == "" {
			term.column = row
		}
		p.appendC(varSlots, term)
	}

	for _, q := range quadratic {
		if q.Sel1.hasEmptyKeySet() || q.Sel2.hasEmptyKeySet() {
			continue
		}
		slots1, err := p.vars.index(q.Sel1)
		if err != nil {
			return err
		}
		slots2, err := p.vars.index(q.Sel2)
		if err != nil {
			return err
		}
		if len(slots1) == 0 || len(slots2) == 0 {
			continue
		}
		bcast, err := broadcastLen(broadcast, q.Sel1.keys, true)
		if err != nil {
			return err
		}
		value, paramName, err := p.resolveFactor(q.Factor)
		if err != nil {
			return err
		}
		entries, err := quadraticEntries(value, len(slots1), bcast)
		if err != nil {
			return err
		}
		if entries.rows != len(slots1) || entries.cols != len(slots2) {
			return &DimensionError{
				Context:  "quadratic objective factor " + q.Sel1.describe() + " × " + q.Sel2.describe(),
				WantRows: len(slots1), WantCols: len(slots2),
				GotRows: entries.rows, GotCols: entries.cols,
			}
		}
		term := coeffTerm{factor: 1, param: paramName, bcast: bcast}
		if paramName == "" {
			term.entries = entries
		}
		p.appendQ(slots1, slots2, term)
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
		if paramName != "" {
			p.dTerms = append(p.dTerms, dTerm{param: paramName, bcast: bcast})
			continue
		}
		val, err := scalarValue(value, bcast)
		if err != nil {
			return err
		}
		p.dTerms = append(p.dTerms, dTerm{value: val})
	}
	return nil
}
