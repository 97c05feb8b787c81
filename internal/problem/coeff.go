package problem

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Coefficient is a tagged numeric value used as a factor in constraint
// and objective terms: a scalar, a flat array, a dense or sparse matrix,
// or a named parameter reference whose numeric resolution is deferred to
// compile time.
type Coefficient interface {
	coefficient()
}

// Scalar is a scalar coefficient. In matrix positions it expands to the
// scalar times an identity of appropriate size; in vector positions to a
// constant vector.
type Scalar float64

func (Scalar) coefficient() {}

// Vector is a flat array coefficient. In matrix positions it is
// interpreted as the first (and only) row of a coefficient matrix;
// multi-row coefficients must be passed as an explicit matrix.
type Vector []float64

func (Vector) coefficient() {}

// Matrix wraps any gonum matrix, dense or sparse, as a coefficient.
type Matrix struct {
	M mat.Matrix
}

func (Matrix) coefficient() {}

// Mat is shorthand for wrapping a gonum matrix.
func Mat(m mat.Matrix) Matrix {
	return Matrix{M: m}
}

// paramRef defers numeric resolution of a coefficient to compile time.
type paramRef struct {
	name string
}

func (paramRef) coefficient() {}

// Param references the named parameter. The parameter's current value is
// substituted on every compilation, so the same declared structure can be
// re-solved after updating parameter values.
func Param(name string) Coefficient {
	return paramRef{name: name}
}

// shapeString renders a coefficient's shape for error messages.
func shapeString(v Coefficient) string {
	switch c := v.(type) {
	case Scalar:
		return "scalar"
	case Vector:
		return fmt.Sprintf("(%d,)", len(c))
	case Matrix:
		r, cols := c.M.Dims()
		return fmt.Sprintf("(%d, %d)", r, cols)
	case paramRef:
		return fmt.Sprintf("parameter %q", c.name)
	default:
		return "unknown"
	}
}

func sameShape(a, b Coefficient) bool {
	switch av := a.(type) {
	case Scalar:
		_, ok := b.(Scalar)
		return ok
	case Vector:
		bv, ok := b.(Vector)
		return ok && len(av) == len(bv)
	case Matrix:
		bv, ok := b.(Matrix)
		if !ok {
			return false
		}
		ar, ac := av.M.Dims()
		br, bc := bv.M.Dims()
		return ar == br && ac == bc
	default:
		return false
	}
}

// entryBlock holds the nonzero entries of a normalized coefficient,
// positioned relative to the block's local (rows × cols) shape.
type entryBlock struct {
	rows, cols int
	idxI, idxJ []int
	vals       []float64
}

func (b *entryBlock) add(i, j int, v float64) {
	if v == 0 {
		return
	}
	b.idxI = append(b.idxI, i)
	b.idxJ = append(b.idxJ, j)
	b.vals = append(b.vals, v)
}

// nonZeroDoer is satisfied by sparse matrix types that can iterate their
// nonzero entries without materializing zeros.
type nonZeroDoer interface {
	DoNonZero(fn func(i, j int, v float64))
}

func collectMatrix(m mat.Matrix) *entryBlock {
	r, c := m.Dims()
	block := &entryBlock{rows: r, cols: c}
	if doer, ok := m.(nonZeroDoer); ok {
		doer.DoNonZero(func(i, j int, v float64) {
			block.add(i, j, v)
		})
		return block
	}
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			block.add(i, j, m.At(i, j))
		}
	}
	return block
}

// tileBlockDiagonal repeats the block n times along the diagonal, the
// broadcasting rule for matrix-valued factors over a repeated key
// dimension.
func tileBlockDiagonal(block *entryBlock, n int) *entryBlock {
	if n <= 1 {
		return block
	}
	tiled := &entryBlock{
		rows: block.rows * n,
		cols: block.cols * n,
		idxI: make([]int, 0, len(block.vals)*n),
		idxJ: make([]int, 0, len(block.vals)*n),
		vals: make([]float64, 0, len(block.vals)*n),
	}
	for k := 0; k < n; k++ {
		for e := range block.vals {
			tiled.idxI = append(tiled.idxI, block.idxI[e]+k*block.rows)
			tiled.idxJ = append(tiled.idxJ, block.idxJ[e]+k*block.cols)
			tiled.vals = append(tiled.vals, block.vals[e])
		}
	}
	return tiled
}

// matrixEntries normalizes a literal coefficient for a matrix position
// (A matrix variable factor):
//   - a scalar f expands to f·I over the variable slice,
//   - a flat array becomes a single-row matrix,
//   - a matrix is taken as-is,
//   - non-scalar shapes are tiled block-diagonally when broadcasting.
func matrixEntries(v Coefficient, sliceLen, broadcastLen int) (*entryBlock, error) {
	switch c := v.(type) {
	case Scalar:
		block := &entryBlock{rows: sliceLen, cols: sliceLen}
		for i := 0; i < sliceLen; i++ {
			block.add(i, i, float64(c))
		}
		return block, nil
	case Vector:
		block := &entryBlock{rows: 1, cols: len(c)}
		for j, val := range c {
			block.add(0, j, val)
		}
		return tileBlockDiagonal(block, broadcastLen), nil
	case Matrix:
		return tileBlockDiagonal(collectMatrix(c.M), broadcastLen), nil
	default:
		return nil, structErrorf("unresolved coefficient in matrix position: %s", shapeString(v))
	}
}

// quadraticEntries normalizes a literal coefficient for a Q matrix
// position. Flat arrays are interpreted as diagonal matrices here.
func quadraticEntries(v Coefficient, sliceLen, broadcastLen int) (*entryBlock, error) {
	switch c := v.(type) {
	case Scalar:
		block := &entryBlock{rows: sliceLen, cols: sliceLen}
		for i := 0; i < sliceLen; i++ {
			block.add(i, i, float64(c))
		}
		return block, nil
	case Vector:
		block := &entryBlock{rows: len(c), cols: len(c)}
		for i, val := range c {
			block.add(i, i, val)
		}
		return tileBlockDiagonal(block, broadcastLen), nil
	case Matrix:
		return tileBlockDiagonal(collectMatrix(c.M), broadcastLen), nil
	default:
		return nil, structErrorf("unresolved coefficient in quadratic position: %s", shapeString(v))
	}
}

// columnEntries normalizes a literal coefficient for a column-vector
// position (b vector constant). Scalars expand to a constant column over
// the constraint slice; broadcasting concatenates copies. Row vectors are
// rejected rather than silently transposed.
func columnEntries(v Coefficient, sliceLen, broadcastLen int, context string) ([]float64, error) {
	switch c := v.(type) {
	case Scalar:
		out := make([]float64, sliceLen)
		for i := range out {
			out[i] = float64(c)
		}
		return out, nil
	case Vector:
		return tileConcat(c, broadcastLen), nil
	case Matrix:
		r, cols := c.M.Dims()
		if cols > 1 {
			return nil, &DimensionError{Context: context + " (constant must be column vector, not row vector)",
				WantRows: r, WantCols: 1, GotRows: r, GotCols: cols}
		}
		out := make([]float64, r)
		for i := 0; i < r; i++ {
			out[i] = c.M.At(i, 0)
		}
		return tileConcat(out, broadcastLen), nil
	default:
		return nil, structErrorf("unresolved coefficient in constant position: %s", shapeString(v))
	}
}

// rowEntries normalizes a literal coefficient for a row-vector position
// (c vector objective factor). Scalars expand to a row of the scalar over
// the variable slice; column vectors and matrices are rejected rather
// than silently transposed.
func rowEntries(v Coefficient, sliceLen, broadcastLen int, context string) ([]float64, error) {
	switch c := v.(type) {
	case Scalar:
		out := make([]float64, sliceLen)
		for i := range out {
			out[i] = float64(c)
		}
		return out, nil
	case Vector:
		return tileConcat(c, broadcastLen), nil
	case Matrix:
		r, cols := c.M.Dims()
		if r > 1 {
			return nil, &DimensionError{Context: context + " (objective factor must be row vector or flat array)",
				WantRows: 1, WantCols: cols, GotRows: r, GotCols: cols}
		}
		out := make([]float64, cols)
		for j := 0; j < cols; j++ {
			out[j] = c.M.At(0, j)
		}
		return tileConcat(out, broadcastLen), nil
	default:
		return nil, structErrorf("unresolved coefficient in objective position: %s", shapeString(v))
	}
}

// scalarValue normalizes a literal coefficient for the d constant.
func scalarValue(v Coefficient, broadcastLen int) (float64, error) {
	var val float64
	switch c := v.(type) {
	case Scalar:
		val = float64(c)
	case Vector:
		if len(c) != 1 {
			return 0, structErrorf("objective constant must be scalar, got shape (%d,)", len(c))
		}
		val = c[0]
	case Matrix:
		r, cols := c.M.Dims()
		if r != 1 || cols != 1 {
			return 0, structErrorf("objective constant must be scalar, got shape (%d, %d)", r, cols)
		}
		val = c.M.At(0, 0)
	default:
		return 0, structErrorf("unresolved coefficient in objective constant position: %s", shapeString(v))
	}
	if broadcastLen > 1 {
		val *= float64(broadcastLen)
	}
	return val, nil
}

func tileConcat(v []float64, n int) []float64 {
	if n <= 1 {
		out := make([]float64, len(v))
		copy(out, v)
		return out
	}
	out := make([]float64, 0, len(v)*n)
	for k := 0; k < n; k++ {
		out = append(out, v...)
	}
	return out
}
