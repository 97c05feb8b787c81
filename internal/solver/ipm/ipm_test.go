package ipm

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
	// min −x₁ − x₂ s.t. x ≤ (2, 3), −x ≤ 0.
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

	sol, err := New(DefaultConfig(), nil).Solve(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, solver.StatusOptimal, sol.Status)
	assert.InDelta(t, 2.0, sol.X[0], 1e-5)
	assert.InDelta(t, 3.0, sol.X[1], 1e-5)
	assert.InDelta(t, -5.0, sol.Objective, 1e-5)

	// Upper bounds bind with multiplier 1, lower bounds are slack.
	require.True(t, sol.DualsAvailable)
	assert.InDelta(t, 1.0, sol.Duals[0], 1e-4)
	assert.InDelta(t, 1.0, sol.Duals[1], 1e-4)
	assert.InDelta(t, 0.0, sol.Duals[2], 1e-4)
	assert.InDelta(t, 0.0, sol.Duals[3], 1e-4)
}

func TestSolveQP(t *testing.T) {
	// min ½(x₁² + x₂²) − x₁ s.t. x₁ + x₂ ≤ 0.
	// Unconstrained minimum (1, 0) violates the constraint; the
	// solution is (0.5, −0.5).
	p := &solver.Problem{
		A: csr(1, 2, []float64{1, 1}),
		B: []float64{0},
		C: []float64{-1, 0},
		Q: csr(2, 2, []float64{1, 0, 0, 1}),
	}

	sol, err := New(DefaultConfig(), nil).Solve(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, solver.StatusOptimal, sol.Status)
	assert.InDelta(t, 0.5, sol.X[0], 1e-5)
	assert.InDelta(t, -0.5, sol.X[1], 1e-5)
	assert.InDelta(t, -0.25, sol.Objective, 1e-5)
}

func TestSolveUnconstrained(t *testing.T) {
	t.Run("quadratic", func(t *testing.T) {
		// min ½·2(x−2)² rewritten as x² − 4x + 4.
		p := &solver.Problem{
			A: csr(0, 1, nil),
			B: nil,
			C: []float64{-4},
			Q: csr(1, 1, []float64{2}),
			D: 4,
		}
		sol, err := New(DefaultConfig(), nil).Solve(context.Background(), p)
		require.NoError(t, err)
		assert.InDelta(t, 2.0, sol.X[0], 1e-8)
		assert.InDelta(t, 0.0, sol.Objective, 1e-8)
	})

	t.Run("linear is unbounded", func(t *testing.T) {
		p := &solver.Problem{
			A: csr(0, 1, nil),
			C: []float64{1},
			Q: csr(1, 1, nil),
		}
		_, err := New(DefaultConfig(), nil).Solve(context.Background(), p)
		var solveErr *solver.SolveError
		require.ErrorAs(t, err, &solveErr)
		assert.Equal(t, solver.StatusUnbounded, solveErr.Status)
	})

	t.Run("flat objective", func(t *testing.T) {
		p := &solver.Problem{
			A: csr(0, 2, nil),
			C: []float64{0, 0},
			Q: csr(2, 2, nil),
			D: 7,
		}
		sol, err := New(DefaultConfig(), nil).Solve(context.Background(), p)
		require.NoError(t, err)
		assert.Equal(t, []float64{0, 0}, sol.X)
		assert.InDelta(t, 7.0, sol.Objective, 1e-12)
	})
}

func TestSolveInfeasibleDiverges(t *testing.T) {
	// x ≤ 1 and −x ≤ −2 cannot both hold.
	p := &solver.Problem{
		A: csr(2, 1, []float64{1, -1}),
		B: []float64{1, -2},
		C: []float64{1},
		Q: csr(1, 1, nil),
	}
	_, err := New(DefaultConfig(), nil).Solve(context.Background(), p)
	var solveErr *solver.SolveError
	require.ErrorAs(t, err, &solveErr)
	assert.True(t, solveErr.Status.IsFatal())
}

func TestSolveContextCancelled(t *testing.T) {
	p := &solver.Problem{
		A: csr(1, 1, []float64{1}),
		B: []float64{1},
		C: []float64{-1},
		Q: csr(1, 1, nil),
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(DefaultConfig(), nil).Solve(ctx, p)
	assert.ErrorIs(t, err, context.Canceled)
}
