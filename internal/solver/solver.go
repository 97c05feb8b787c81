package solver

import (
	"context"
	"fmt"
	"math"

	"github.com/james-bowman/sparse"
)

// Problem is a convex program in standard form:
//
//	minimize   cᵀx + ½ xᵀQx + d
//	subject to Ax ≤ b
//
// with Q symmetric positive semidefinite. A linear program has an empty
// (all-zero) Q.
type Problem struct {
	A *sparse.CSR
	B []float64
	C []float64
	Q *sparse.CSR
	D float64
}

// Dims returns (m, n): constraint rows and variable columns.
func (p *Problem) Dims() (m, n int) {
	return p.A.Dims()
}

// HasQuadratic reports whether Q carries any nonzero entry.
func (p *Problem) HasQuadratic() bool {
	if p.Q == nil {
		return false
	}
	return p.Q.NNZ() > 0
}

// Objective evaluates cᵀx + ½xᵀQx + d at the given point.
func (p *Problem) Objective(x []float64) float64 {
	obj := p.D
	for i, ci := range p.C {
		obj += ci * x[i]
	}
	if p.Q != nil {
		var quad float64
		p.Q.DoNonZero(func(i, j int, v float64) {
			quad += x[i] * v * x[j]
		})
		obj += 0.5 * quad
	}
	return obj
}

// Solution is a solved standard-form problem. Duals are the multipliers
// μ ≥ 0 of the ≤ rows; when the backend cannot recover them they are NaN
// and DualsAvailable is false.
type Solution struct {
	X              []float64
	Duals          []float64
	Objective      float64
	Status         Status
	Iterations     int
	DualsAvailable bool
}

// Backend solves standard-form problems. Implementations return a
// Solution for optimal and suboptimal outcomes and a *SolveError for
// fatal ones (infeasible, unbounded, numeric failure).
type Backend interface {
	Name() string
	Solve(ctx context.Context, p *Problem) (*Solution, error)
}

// SolveError is a fatal solve outcome: the backend terminated without a
// usable primal point.
type SolveError struct {
	Backend string
	Status  Status
	Message string
}

func (e *SolveError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("solver %s: %s", e.Backend, e.Status)
	}
	return fmt.Sprintf("solver %s: %s: %s", e.Backend, e.Status, e.Message)
}

// NaNDuals returns an m-length dual vector of NaN sentinels for backends
// that produced a primal point but no usable multipliers.
func NaNDuals(m int) []float64 {
	duals := make([]float64, m)
	for i := range duals {
		duals[i] = math.NaN()
	}
	return duals
}
