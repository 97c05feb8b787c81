package solver

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// PolishDuals recovers inequality multipliers from a primal point by
// solving the stationarity system on the active constraint set:
//
//	min ‖A_Jᵀ μ_J + (c + Qx)‖₂  subject to  μ_J ≥ 0
//
// where J = {i : bᵢ − (Ax)ᵢ ≤ tol}. Equality rows declared as paired
// inequalities are degenerate at the solution; the non-negative least
// squares split keeps the pair's recombined multiplier well defined.
// The second return value is false when no multipliers could be
// recovered.
func PolishDuals(p *Problem, x []float64, tol float64) ([]float64, bool) {
	m, n := p.Dims()
	duals := make([]float64, m)
	if m == 0 {
		return duals, true
	}

	// Slack per row.
	slack := make([]float64, m)
	copy(slack, p.B)
	p.A.DoNonZero(func(i, j int, v float64) {
		slack[i] -= v * x[j]
	})

	active := make([]int, 0, m)
	for i := 0; i < m; i++ {
		if slack[i] <= tol {
			active = append(active, i)
		}
	}
	if len(active) == 0 {
		return duals, true
	}

	// Gradient of the objective at x.
	grad := make([]float64, n)
	copy(grad, p.C)
	if p.Q != nil {
		p.Q.DoNonZero(func(i, j int, v float64) {
			grad[i] += v * x[j]
		})
	}

	// Stationarity: A_Jᵀ μ_J = −(c + Qx).
	at := mat.NewDense(n, len(active), nil)
	for k, row := range active {
		for j := 0; j < n; j++ {
			at.Set(j, k, p.A.At(row, j))
		}
	}
	rhs := make([]float64, n)
	for j := range rhs {
		rhs[j] = -grad[j]
	}

	muActive, err := NNLS(at, rhs)
	if err != nil {
		return nil, false
	}
	for k, row := range active {
		if math.IsNaN(muActive[k]) {
			return nil, false
		}
		duals[row] = muActive[k]
	}
	return duals, true
}
