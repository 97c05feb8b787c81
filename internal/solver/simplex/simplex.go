// Package simplex adapts gonum's dense simplex to standard-form
// problems. The free variables are split into positive parts and a slack
// is added per row, giving the equality form lp.Simplex expects:
//
//	x = u − v,  A(u − v) + w = b,  u, v, w ≥ 0.
//
// The backend handles linear programs only; quadratic objectives are
// rejected.
package simplex

import (
	"context"
	"errors"
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"

	"github.com/voltmesh/gridform/internal/solver"
)

const lpTolerance = 1e-10

// Backend is the simplex solver backend.
type Backend struct {
	logger *zap.Logger
}

// New creates a simplex backend.
func New(logger *zap.Logger) *Backend {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Backend{logger: logger.Named("simplex")}
}

// Name identifies the backend in configuration and solve reports.
func (b *Backend) Name() string { return "simplex" }

// Solve converts the problem to equality form and runs lp.Simplex.
func (b *Backend) Solve(ctx context.Context, p *solver.Problem) (*solver.Solution, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.HasQuadratic() {
		return nil, &solver.SolveError{Backend: b.Name(), Status: solver.StatusUnknown,
			Message: "quadratic objectives are not supported by the simplex backend"}
	}
	m, n := p.Dims()
	if n == 0 {
		return nil, &solver.SolveError{Backend: b.Name(), Status: solver.StatusUnknown, Message: "problem has no variables"}
	}
	if m == 0 {
		for _, ci := range p.C {
			if ci != 0 {
				return nil, &solver.SolveError{Backend: b.Name(), Status: solver.StatusUnbounded,
					Message: "linear objective without constraints"}
			}
		}
		return &solver.Solution{
			X:              make([]float64, n),
			Duals:          []float64{},
			Objective:      p.D,
			Status:         solver.StatusOptimal,
			DualsAvailable: true,
		}, nil
	}

	// Equality form over [u; v; w].
	cols := 2*n + m
	cs := make([]float64, cols)
	for j, cj := range p.C {
		cs[j] = cj
		cs[n+j] = -cj
	}
	as := mat.NewDense(m, cols, nil)
	p.A.DoNonZero(func(i, j int, v float64) {
		as.Set(i, j, v)
		as.Set(i, n+j, -v)
	})
	for i := 0; i < m; i++ {
		as.Set(i, 2*n+i, 1)
	}
	bs := make([]float64, m)
	copy(bs, p.B)

	opt, xs, err := lp.Simplex(cs, as, bs, lpTolerance, nil)
	if err != nil {
		switch {
		case errors.Is(err, lp.ErrInfeasible):
			return nil, &solver.SolveError{Backend: b.Name(), Status: solver.StatusInfeasible}
		case errors.Is(err, lp.ErrUnbounded):
			return nil, &solver.SolveError{Backend: b.Name(), Status: solver.StatusUnbounded}
		default:
			return nil, &solver.SolveError{Backend: b.Name(), Status: solver.StatusUnknown, Message: err.Error()}
		}
	}

	x := make([]float64, n)
	for j := 0; j < n; j++ {
		x[j] = xs[j] - xs[n+j]
	}

	// The simplex tableau does not expose the inequality multipliers;
	// recover them from the primal point.
	duals, ok := solver.PolishDuals(p, x, math.Sqrt(lpTolerance)*(1+maxAbs(p.B)))
	if !ok {
		b.logger.Warn("dual recovery failed, reporting NaN multipliers")
		duals = solver.NaNDuals(m)
	}

	return &solver.Solution{
		X:              x,
		Duals:          duals,
		Objective:      opt + p.D,
		Status:         solver.StatusOptimal,
		DualsAvailable: ok,
	}, nil
}

func maxAbs(v []float64) float64 {
	max := 0.0
	for _, x := range v {
		if a := math.Abs(x); a > max {
			max = a
		}
	}
	return max
}
