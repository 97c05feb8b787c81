package problem

import (
	"context"

	"go.uber.org/zap"

	"github.com/voltmesh/gridform/internal/solver"
	"github.com/voltmesh/gridform/internal/solver/ipm"
)

// compile assembles the standard form from the accumulated declarations,
// resolving parameter references against their current values.
func (p *Problem) compile() (*solver.Problem, error) {
	a, err := p.AMatrix()
	if err != nil {
		return nil, err
	}
	b, err := p.BVector()
	if err != nil {
		return nil, err
	}
	c, err := p.CVector()
	if err != nil {
		return nil, err
	}
	q, err := p.QMatrix()
	if err != nil {
		return nil, err
	}
	d, err := p.DConstant()
	if err != nil {
		return nil, err
	}
	return &solver.Problem{A: a, B: b, C: c, Q: q, D: d}, nil
}

// Solve compiles the standard form and dispatches it to the configured
// backend. Compilation errors and fatal solve outcomes (*solver.
// SolveError) are returned; a suboptimal outcome is logged and the point
// stored like an optimal one. Solve may be called repeatedly after
// parameter updates; each call recompiles.
func (p *Problem) Solve(ctx context.Context) error {
	sp, err := p.compile()
	if err != nil {
		return err
	}
	backend := p.backend
	if backend == nil {
		backend = ipm.New(ipm.DefaultConfig(), p.logger)
		p.backend = backend
	}
	m, n := sp.Dims()
	p.logger.Info("solving",
		zap.String("backend", backend.Name()),
		zap.Int("variables", n),
		zap.Int("constraints", m),
		zap.Bool("quadratic", sp.HasQuadratic()))

	sol, err := backend.Solve(ctx, sp)
	if err != nil {
		return err
	}
	if sol.Status == solver.StatusSuboptimal {
		p.logger.Warn("solution is suboptimal",
			zap.String("backend", backend.Name()),
			zap.Int("iterations", sol.Iterations))
	}
	if !sol.DualsAvailable {
		p.logger.Warn("solution carries no dual values",
			zap.String("backend", backend.Name()))
	}
	p.logger.Info("solved",
		zap.String("status", sol.Status.String()),
		zap.Int("iterations", sol.Iterations),
		zap.Float64("objective", sol.Objective))

	p.x = sol.X
	p.mu = sol.Duals
	p.objective = sol.Objective
	p.dualsAvailable = sol.DualsAvailable
	p.status = sol.Status
	p.solved = true
	return nil
}

// Status returns the outcome status of the last solve.
func (p *Problem) Status() solver.Status {
	if !p.solved {
		return solver.StatusUnknown
	}
	return p.status
}

// Objective returns the objective value of the last solve.
func (p *Problem) Objective() (float64, error) {
	if !p.solved {
		return 0, structErrorf("problem has not been solved")
	}
	return p.objective, nil
}

// XVector returns the raw standard-form solution vector of the last
// solve, aligned with the variable registry slots.
func (p *Problem) XVector() ([]float64, error) {
	if !p.solved {
		return nil, structErrorf("problem has not been solved")
	}
	return p.x, nil
}

// EvaluateObjective computes cᵀx + ½xᵀQx + d for an arbitrary point
// using the current parameter values, without solving.
func (p *Problem) EvaluateObjective(x []float64) (float64, error) {
	if len(x) != p.vars.size() {
		return 0, &DimensionError{
			Context:  "objective evaluation point",
			WantRows: p.vars.size(), WantCols: 1,
			GotRows: len(x), GotCols: 1,
		}
	}
	c, err := p.CVector()
	if err != nil {
		return 0, err
	}
	q, err := p.QMatrix()
	if err != nil {
		return 0, err
	}
	d, err := p.DConstant()
	if err != nil {
		return 0, err
	}
	obj := d
	for i, ci := range c {
		obj += ci * x[i]
	}
	var quad float64
	q.DoNonZero(func(i, j int, v float64) {
		quad += x[i] * v * x[j]
	})
	return obj + 0.5*quad, nil
}

// SetBackend replaces the solver backend used by subsequent Solve calls.
func (p *Problem) SetBackend(backend solver.Backend) {
	p.backend = backend
}
