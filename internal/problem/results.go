package problem

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// TimeColumn is the key column name that pivots result tables: when a
// variable or constraint carries a key column with this name, its result
// table uses the time values as rows and the remaining key combinations
// as columns.
const TimeColumn = "timestep"

// Table is a labeled value matrix.
type Table struct {
	RowLabels []string
	Columns   []string
	Values    [][]float64
}

// MarshalJSON encodes the table with NaN entries rendered as null.
func (t *Table) MarshalJSON() ([]byte, error) {
	values := make([][]*float64, len(t.Values))
	for i, row := range t.Values {
		values[i] = make([]*float64, len(row))
		for j := range row {
			if !math.IsNaN(row[j]) {
				v := row[j]
				values[i][j] = &v
			}
		}
	}
	return json.Marshal(struct {
		Rows    []string     `json:"rows"`
		Columns []string     `json:"columns"`
		Values  [][]*float64 `json:"values"`
	}{t.RowLabels, t.Columns, values})
}

// At returns the value at the named row and column, NaN when absent.
func (t *Table) At(row, column string) float64 {
	for i, r := range t.RowLabels {
		if r != row {
			continue
		}
		for j, c := range t.Columns {
			if c == column {
				return t.Values[i][j]
			}
		}
	}
	return math.NaN()
}

// Result is one variable's solution values or one constraint's dual
// values: a bare scalar for key-less entries, a table otherwise.
type Result struct {
	Scalar   float64
	IsScalar bool
	Table    *Table
}

// MarshalJSON encodes a scalar result as a bare number and a tabular one
// as its table, with NaN rendered as null.
func (r Result) MarshalJSON() ([]byte, error) {
	if r.IsScalar {
		if math.IsNaN(r.Scalar) {
			return []byte("null"), nil
		}
		return json.Marshal(r.Scalar)
	}
	return json.Marshal(r.Table)
}

// Results maps the solution vector back to the declared variables,
// pivoted on the time column where present.
func (p *Problem) Results() (map[string]Result, error) {
	if !p.solved {
		return nil, structErrorf("problem has not been solved")
	}
	results := make(map[string]Result, len(p.vars.names()))
	for _, name := range p.vars.names() {
		slots := p.vars.byName[name]
		cells := make([][]cell, len(slots))
		values := make([]float64, len(slots))
		for i, slot := range slots {
			cells[i] = p.vars.rows[slot].cells
			values[i] = p.x[slot]
		}
		results[name] = buildResult(name, p.vars.columns[name], cells, values)
	}
	return results, nil
}

// Duals maps the multiplier vector back to the labeled constraints. An
// equality constraint's two inequality halves are recombined into the
// signed Lagrange multiplier −(μ_ge + μ_le); a plain inequality reports
// −μ. Unlabeled constraint rows are not addressable and are omitted.
// When a label carries both plain ">=" and "<=" declarations, only the
// ">=" rows are reported; use distinct labels to read both directions.
func (p *Problem) Duals() (map[string]Result, error) {
	if !p.solved {
		return nil, structErrorf("problem has not been solved")
	}
	duals := make(map[string]Result, len(p.cons.names()))
	for _, name := range p.cons.names() {
		var rows []conRow
		var values []float64
		switch {
		case containsType(p.cons.typesFor(name), ctypeEqualGE):
			ge := p.cons.rowsFor(name, ctypeEqualGE)
			le := p.cons.rowsFor(name, ctypeEqualLE)
			if len(ge) != len(le) {
				return nil, structErrorf("constraint %q equality halves misaligned", name)
			}
			rows = ge
			values = make([]float64, len(ge))
			for i := range ge {
				values[i] = -(p.mu[ge[i].slot] + p.mu[le[i].slot])
			}
		case containsType(p.cons.typesFor(name), string(OpGreaterEqual)):
			rows = p.cons.rowsFor(name, string(OpGreaterEqual))
			values = make([]float64, len(rows))
			for i, row := range rows {
				values[i] = -p.mu[row.slot]
			}
		default:
			rows = p.cons.rowsFor(name, string(OpLessEqual))
			values = make([]float64, len(rows))
			for i, row := range rows {
				values[i] = -p.mu[row.slot]
			}
		}
		cells := make([][]cell, len(rows))
		for i, row := range rows {
			cells[i] = row.cells
		}
		duals[name] = buildResult(name, p.cons.columns[name], cells, values)
	}
	return duals, nil
}

// DualsAvailable reports whether the last solve produced usable
// multipliers. When false, Duals still returns tables, filled with NaN.
func (p *Problem) DualsAvailable() bool {
	return p.solved && p.dualsAvailable
}

func containsType(types []string, t string) bool {
	for _, x := range types {
		if x == t {
			return true
		}
	}
	return false
}

// buildResult shapes one entry's values: a scalar for key-less entries,
// a time-pivoted table when the time column is present, and a
// single-column table otherwise.
func buildResult(name string, columns []string, cells [][]cell, values []float64) Result {
	if len(columns) == 0 {
		if len(values) == 1 {
			return Result{Scalar: values[0], IsScalar: true}
		}
		// Labeled without keys but spanning several rows: fall through
		// to a positionless table.
	}

	timeIdx := -1
	for i, col := range columns {
		if col == TimeColumn {
			timeIdx = i
			break
		}
	}
	if timeIdx < 0 {
		table := &Table{Columns: []string{name}}
		for i, rowCells := range cells {
			label := compositeLabel(rowCells, -1)
			if label == "" {
				label = strconv.Itoa(i)
			}
			table.RowLabels = append(table.RowLabels, label)
			table.Values = append(table.Values, []float64{values[i]})
		}
		return Result{Table: table}
	}

	rowIdx := make(map[string]int)
	colIdx := make(map[string]int)
	table := &Table{}
	for _, rowCells := range cells {
		r := rowCells[timeIdx].key.String()
		if _, ok := rowIdx[r]; !ok {
			rowIdx[r] = len(table.RowLabels)
			table.RowLabels = append(table.RowLabels, r)
		}
		c := compositeLabel(rowCells, timeIdx)
		if c == "" {
			c = name
		}
		if _, ok := colIdx[c]; !ok {
			colIdx[c] = len(table.Columns)
			table.Columns = append(table.Columns, c)
		}
	}
	table.Values = make([][]float64, len(table.RowLabels))
	for i := range table.Values {
		row := make([]float64, len(table.Columns))
		for j := range row {
			row[j] = math.NaN()
		}
		table.Values[i] = row
	}
	for i, rowCells := range cells {
		r := rowIdx[rowCells[timeIdx].key.String()]
		c := compositeLabel(rowCells, timeIdx)
		if c == "" {
			c = name
		}
		table.Values[r][colIdx[c]] = values[i]
	}
	return Result{Table: table}
}

// compositeLabel joins a row's key values, skipping the cell at the
// given index (the pivot column), into a single label.
func compositeLabel(cells []cell, skip int) string {
	var parts []string
	for i, c := range cells {
		if i == skip {
			continue
		}
		parts = append(parts, c.key.String())
	}
	return strings.Join(parts, "/")
}
