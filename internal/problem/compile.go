package problem

import (
	"github.com/james-bowman/sparse"
)

// resolveEntries produces the final entry block for one accumulated A or
// Q contribution, re-normalizing parameter references against the store's
// current values.
func (p *Problem) resolveEntries(term coeffTerm, rows, cols int, quadratic bool, context string) (*entryBlock, error) {
	entries := term.entries
	if term.param != "" {
		value, err := p.params.get(term.param)
		if err != nil {
			return nil, err
		}
		if quadratic {
			entries, err = quadraticEntries(value, cols, term.bcast)
		} else {
			entries, err = matrixEntries(value, cols, term.bcast)
		}
		if err != nil {
			return nil, err
		}
	}
	if entries.rows != rows || entries.cols != cols {
		return nil, &DimensionError{
			Context:  context,
			WantRows: rows, WantCols: cols,
			GotRows: entries.rows, GotCols: entries.cols,
		}
	}
	return entries, nil
}

// resolveColumn produces the final value column for one accumulated b or
// c contribution.
func (p *Problem) resolveColumn(term coeffTerm, size int, row bool, context string) ([]float64, error) {
	column := term.column
	if term.param != "" {
		value, err := p.params.get(term.param)
		if err != nil {
			return nil, err
		}
		if row {
			column, err = rowEntries(value, size, term.bcast, context)
		} else {
			column, err = columnEntries(value, size, term.bcast, context)
		}
		if err != nil {
			return nil, err
		}
	}
	if len(column) != size {
		return nil, &DimensionError{
			Context:  context,
			WantRows: size, WantCols: 1,
			GotRows: len(column), GotCols: 1,
		}
	}
	return column, nil
}

// AMatrix compiles the standard-form constraint matrix A from the
// accumulated declarations. Contributions touching the same entries sum.
func (p *Problem) AMatrix() (*sparse.CSR, error) {
	m, n := p.cons.count, p.vars.size()
	dok := sparse.NewDOK(m, n)
	for _, block := range p.aBlocks {
		for _, term := range block.terms {
			entries, err := p.resolveEntries(term, len(block.rows), len(block.cols), false, "constraint coefficient")
			if err != nil {
				return nil, err
			}
			for e := range entries.vals {
				i := block.rows[entries.idxI[e]]
				j := block.cols[entries.idxJ[e]]
				dok.Set(i, j, dok.At(i, j)+term.factor*entries.vals[e])
			}
		}
	}
	return dok.ToCSR(), nil
}

// BVector compiles the standard-form constraint bound vector b.
func (p *Problem) BVector() ([]float64, error) {
	b := make([]float64, p.cons.count)
	for _, block := range p.bBlocks {
		for _, term := range block.terms {
			column, err := p.resolveColumn(term, len(block.slots), false, "constraint constant")
			if err != nil {
				return nil, err
			}
			for i, slot := range block.slots {
				b[slot] += term.factor * column[i]
			}
		}
	}
	return b, nil
}

// CVector compiles the standard-form linear objective vector c.
func (p *Problem) CVector() ([]float64, error) {
	c := make([]float64, p.vars.size())
	for _, block := range p.cBlocks {
		for _, term := range block.terms {
			row, err := p.resolveColumn(term, len(block.slots), true, "objective factor")
			if err != nil {
				return nil, err
			}
			for i, slot := range block.slots {
				c[slot] += term.factor * row[i]
			}
		}
	}
	return c, nil
}

// QMatrix compiles the standard-form quadratic objective matrix Q.
func (p *Problem) QMatrix() (*sparse.CSR, error) {
	n := p.vars.size()
	dok := sparse.NewDOK(n, n)
	for _, block := range p.qBlocks {
		for _, term := range block.terms {
			entries, err := p.resolveEntries(term, len(block.rows), len(block.cols), true, "quadratic objective factor")
			if err != nil {
				return nil, err
			}
			for e := range entries.vals {
				i := block.rows[entries.idxI[e]]
				j := block.cols[entries.idxJ[e]]
				dok.Set(i, j, dok.At(i, j)+term.factor*entries.vals[e])
			}
		}
	}
	return dok.ToCSR(), nil
}

// DConstant compiles the constant objective offset d.
func (p *Problem) DConstant() (float64, error) {
	var d float64
	for _, term := range p.dTerms {
		if term.param == "" {
			d += term.value
			continue
		}
		value, err := p.params.get(term.param)
		if err != nil {
			return 0, err
		}
		val, err := scalarValue(value, term.bcast)
		if err != nil {
			return 0, err
		}
		d += val
	}
	return d, nil
}
