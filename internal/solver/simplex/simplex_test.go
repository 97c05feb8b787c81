package simplex

import (
	"context"
	"testing"

	"github.com/james-bowman/sparse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voltmesh/gridform/internal/solver"
)

func csr(rows, cols int, data []float64) *sparse.CSR {
	dok := sparse.NewDOK(rows, cols)
	for i := 0; data != nil && i < rows; i++ {
		for j := 0; j < cols; j++ {
			if v := data[i*cols+j]; v != 0 {
				dok.Set(i, j, v)
			}
		}
	}
	return dok.ToCSR()
}

func TestSolveBoxLP(t *testing.T) {
	// min −x₁ − x₂ s.t. x ≤ (2, 3), −x ≤ 0. Free variables must be
	// handled even though the tableau works on nonnegative ones.
	p := &solver.Problem{
		A: csr(4, 2, []float64{
			1, 0,
			0, 1,
			-1, 0,
			0, -1,
		}),
		B: []float64{2, 3, 0, 0},
		C: []float64{-1, -1},
		Q: csr(2, 2, nil),
	}

	sol, err := New(nil).Solve(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, solver.StatusOptimal, sol.Status)
	assert.InDelta(t, 2.0, sol.X[0], 1e-8)
	assert.InDelta(t, 3.0, sol.X[1], 1e-8)
	assert.InDelta(t, -5.0, sol.Objective, 1e-8)

	require.True(t, sol.DualsAvailable)
	assert.InDelta(t, 1.0, sol.Duals[0], 1e-6)
	assert.InDelta(t, 1.0, sol.Duals[1], 1e-6)
	assert.InDelta(t, 0.0, sol.Duals[2], 1e-6)
	assert.InDelta(t, 0.0, sol.Duals[3], 1e-6)
}

func TestSolveNegativeSolution(t *testing.T) {
	// min x s.t. −x ≤ 5: the optimum is x = −5, exercising the split
	// x = u − v.
	p := &solver.Problem{
		A: csr(1, 1, []float64{-1}),
		B: []float64{5},
		C: []float64{1},
		Q: csr(1, 1, nil),
	}

	sol, err := New(nil).Solve(context.Background(), p)
	require.NoError(t, err)
	assert.InDelta(t, -5.0, sol.X[0], 1e-8)
	assert.InDelta(t, -5.0, sol.Objective, 1e-8)
}

func TestSolveInfeasible(t *testing.T) {
	p := &solver.Problem{
		A: csr(2, 1, []float64{1, -1}),
		B: []float64{1, -2},
		C: []float64{1},
		Q: csr(1, 1, nil),
	}
	_, err := New(nil).Solve(context.Background(), p)
	var solveErr *solver.SolveError
	require.ErrorAs(t, err, &solveErr)
	assert.Equal(t, solver.StatusInfeasible, solveErr.Status)
}

func TestSolveUnbounded(t *testing.T) {
	// min −x s.t. −x ≤ 0 grows without bound.
	p := &solver.Problem{
		A: csr(1, 1, []float64{-1}),
		B: []float64{0},
		C: []float64{-1},
		Q: csr(1, 1, nil),
	}
	_, err := New(nil).Solve(context.Background(), p)
	var solveErr *solver.SolveError
	require.ErrorAs(t, err, &solveErr)
	assert.Equal(t, solver.StatusUnbounded, solveErr.Status)
}

func TestRejectsQuadratic(t *testing.T) {
	p := &solver.Problem{
		A: csr(1, 1, []float64{1}),
		B: []float64{1},
		C: []float64{0},
		Q: csr(1, 1, []float64{1}),
	}
	_, err := New(nil).Solve(context.Background(), p)
	var solveErr *solver.SolveError
	require.ErrorAs(t, err, &solveErr)
}
