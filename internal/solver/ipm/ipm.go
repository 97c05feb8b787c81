// Package ipm implements a Mehrotra predictor-corrector primal-dual
// interior point method for standard-form problems
//
//	minimize   cᵀx + ½xᵀQx + d
//	subject to Ax ≤ b
//
// using slack variables s > 0 and multipliers μ > 0 with the normal
// equations (Q + AᵀDA) dx = rhs, D = diag(μ/s), factorized by dense
// Cholesky with escalating diagonal jitter.
package ipm

import (
	"context"
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/voltmesh/gridform/internal/solver"
)

// Config tunes the interior point iteration.
type Config struct {
	MaxIterations int
	Tolerance     float64
}

// DefaultConfig returns the iteration limits used when none are
// configured.
func DefaultConfig() Config {
	return Config{MaxIterations: 200, Tolerance: 1e-8}
}

// Backend is the in-process interior point solver backend.
type Backend struct {
	cfg    Config
	logger *zap.Logger
	pool   *workspacePool
}

// New creates an interior point backend.
func New(cfg Config, logger *zap.Logger) *Backend {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultConfig().MaxIterations
	}
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = DefaultConfig().Tolerance
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Backend{
		cfg:    cfg,
		logger: logger.Named("ipm"),
		pool:   newWorkspacePool(),
	}
}

// Name identifies the backend in configuration and solve reports.
func (b *Backend) Name() string { return "interior-point" }

// sparseRows is a row-major view of a CSR matrix used for the repeated
// matrix-vector products of the iteration.
type sparseRows struct {
	idx [][]int
	val [][]float64
}

func newSparseRows(m int, doer interface {
	DoNonZero(func(i, j int, v float64))
}) *sparseRows {
	rows := &sparseRows{
		idx: make([][]int, m),
		val: make([][]float64, m),
	}
	doer.DoNonZero(func(i, j int, v float64) {
		rows.idx[i] = append(rows.idx[i], j)
		rows.val[i] = append(rows.val[i], v)
	})
	return rows
}

// mulVec computes out = M·x.
func (r *sparseRows) mulVec(out, x []float64) {
	for i := range r.idx {
		var sum float64
		for k, j := range r.idx[i] {
			sum += r.val[i][k] * x[j]
		}
		out[i] = sum
	}
}

// mulVecT accumulates out += Mᵀ·y.
func (r *sparseRows) mulVecT(out, y []float64) {
	for i := range r.idx {
		if y[i] == 0 {
			continue
		}
		for k, j := range r.idx[i] {
			out[j] += r.val[i][k] * y[i]
		}
	}
}

// Solve runs the predictor-corrector iteration. Optimal and suboptimal
// outcomes return a solution; infeasible, unbounded and non-converged
// outcomes return a *solver.SolveError.
func (b *Backend) Solve(ctx context.Context, p *solver.Problem) (*solver.Solution, error) {
	m, n := p.Dims()
	if n == 0 {
		return nil, &solver.SolveError{Backend: b.Name(), Status: solver.StatusUnknown, Message: "problem has no variables"}
	}
	if m == 0 {
		return b.solveUnconstrained(p, n)
	}

	aRows := newSparseRows(m, p.A)
	var qRows *sparseRows
	if p.HasQuadratic() {
		qRows = newSparseRows(n, p.Q)
	}

	tol := b.cfg.Tolerance
	bScale := 1 + normInf(p.B)
	cScale := 1 + normInf(p.C)

	x := make([]float64, n)
	s := make([]float64, m)
	mu := make([]float64, m)
	for i := range s {
		s[i] = math.Max(1, p.B[i])
		mu[i] = 1
	}

	rd := make([]float64, n)
	rp := make([]float64, m)
	ax := make([]float64, m)
	d := make([]float64, m)
	rc := make([]float64, m)
	dx := make([]float64, n)
	ds := make([]float64, m)
	dmu := make([]float64, m)
	dxAff := make([]float64, n)
	dsAff := make([]float64, m)
	dmuAff := make([]float64, m)

	var gap, rdInf, rpInf float64
	for iter := 0; iter < b.cfg.MaxIterations; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// Residuals: rd = Qx + c + Aᵀμ, rp = Ax + s − b.
		copy(rd, p.C)
		if qRows != nil {
			qRows.mulVecT(rd, x)
		}
		aRows.mulVecT(rd, mu)
		aRows.mulVec(ax, x)
		for i := range rp {
			rp[i] = ax[i] + s[i] - p.B[i]
		}
		gap = dot(mu, s) / float64(m)
		rdInf = normInf(rd)
		rpInf = normInf(rp)

		if rdInf <= tol*cScale && rpInf <= tol*bScale && gap <= tol {
			return b.finish(p, x, mu, iter, solver.StatusOptimal)
		}

		if status, diverged := classifyDivergence(x, mu, rpInf, rdInf, tol, bScale, cScale); diverged {
			b.logger.Warn("iteration diverged",
				zap.Int("iterations", iter),
				zap.String("status", status.String()))
			return nil, &solver.SolveError{Backend: b.Name(), Status: status}
		}

		for i := range d {
			d[i] = mu[i] / s[i]
		}
		normal := b.buildNormalMatrix(qRows, aRows, d, n)
		chol, ok := b.factorize(normal, n)
		if !ok {
			b.pool.putSym(normal)
			return nil, &solver.SolveError{Backend: b.Name(), Status: solver.StatusUnknown,
				Message: "normal equations factorization failed"}
		}

		// Affine predictor step.
		for i := range rc {
			rc[i] = mu[i] * s[i]
		}
		if err := b.newtonStep(chol, aRows, rd, rp, rc, s, mu, dxAff, dsAff, dmuAff, n); err != nil {
			b.pool.putSym(normal)
			return nil, &solver.SolveError{Backend: b.Name(), Status: solver.StatusUnknown, Message: err.Error()}
		}
		alphaP := stepLength(s, dsAff)
		alphaD := stepLength(mu, dmuAff)
		var gapAff float64
		for i := range s {
			gapAff += (mu[i] + alphaD*dmuAff[i]) * (s[i] + alphaP*dsAff[i])
		}
		gapAff /= float64(m)
		sigma := math.Pow(gapAff/gap, 3)
		sigma = math.Min(1, math.Max(0, sigma))

		// Corrector with the same factorization.
		for i := range rc {
			rc[i] = mu[i]*s[i] + dmuAff[i]*dsAff[i] - sigma*gap
		}
		if err := b.newtonStep(chol, aRows, rd, rp, rc, s, mu, dx, ds, dmu, n); err != nil {
			b.pool.putSym(normal)
			return nil, &solver.SolveError{Backend: b.Name(), Status: solver.StatusUnknown, Message: err.Error()}
		}
		b.pool.putSym(normal)

		alphaP = 0.995 * stepLength(s, ds)
		alphaD = 0.995 * stepLength(mu, dmu)
		for j := range x {
			x[j] += alphaP * dx[j]
		}
		for i := range s {
			s[i] += alphaP * ds[i]
			mu[i] += alphaD * dmu[i]
		}
	}

	// Iteration budget exhausted. A point with loose residuals is still
	// reported, flagged suboptimal; anything worse is a hard failure.
	loose := math.Sqrt(tol)
	if rdInf <= loose*cScale && rpInf <= loose*bScale && gap <= loose {
		b.logger.Warn("maximum iterations reached, returning suboptimal point",
			zap.Int("iterations", b.cfg.MaxIterations),
			zap.Float64("dual_residual", rdInf),
			zap.Float64("primal_residual", rpInf),
			zap.Float64("gap", gap))
		return b.finish(p, x, mu, b.cfg.MaxIterations, solver.StatusSuboptimal)
	}
	return nil, &solver.SolveError{Backend: b.Name(), Status: solver.StatusUnknown,
		Message: "maximum iterations reached without convergence"}
}

// finish polishes the duals and assembles the solution. When polishing
// fails the raw interior point multipliers are reported instead.
func (b *Backend) finish(p *solver.Problem, x, mu []float64, iterations int, status solver.Status) (*solver.Solution, error) {
	m, _ := p.Dims()
	duals := make([]float64, m)
	copy(duals, mu)
	tol := math.Sqrt(b.cfg.Tolerance) * (1 + normInf(p.B))
	if polished, ok := solver.PolishDuals(p, x, tol); ok {
		duals = polished
	} else {
		b.logger.Warn("dual polishing failed, reporting interior point multipliers")
	}
	return &solver.Solution{
		X:              x,
		Duals:          duals,
		Objective:      p.Objective(x),
		Status:         status,
		Iterations:     iterations,
		DualsAvailable: true,
	}, nil
}

// solveUnconstrained handles problems with no constraint rows: a strictly
// convex quadratic has the unique stationary point Qx = −c, a flat
// objective is optimal anywhere, anything else is unbounded.
func (b *Backend) solveUnconstrained(p *solver.Problem, n int) (*solver.Solution, error) {
	if !p.HasQuadratic() {
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

	qRows := newSparseRows(n, p.Q)
	normal := b.buildNormalMatrix(qRows, nil, nil, n)
	chol, ok := b.factorize(normal, n)
	if !ok {
		b.pool.putSym(normal)
		return nil, &solver.SolveError{Backend: b.Name(), Status: solver.StatusUnbounded,
			Message: "quadratic objective is not positive definite without constraints"}
	}
	rhs := b.pool.getVec(n)
	sol := b.pool.getVec(n)
	for j := 0; j < n; j++ {
		rhs.SetVec(j, -p.C[j])
	}
	err := chol.SolveVecTo(sol, rhs)
	x := make([]float64, n)
	for j := 0; j < n; j++ {
		x[j] = sol.AtVec(j)
	}
	b.pool.putVec(rhs)
	b.pool.putVec(sol)
	b.pool.putSym(normal)
	if err != nil {
		return nil, &solver.SolveError{Backend: b.Name(), Status: solver.StatusUnknown, Message: err.Error()}
	}
	return &solver.Solution{
		X:              x,
		Duals:          []float64{},
		Objective:      p.Objective(x),
		Status:         solver.StatusOptimal,
		DualsAvailable: true,
	}, nil
}

// buildNormalMatrix assembles Q + AᵀDA into a pooled symmetric matrix.
// aRows may be nil for the unconstrained case.
func (b *Backend) buildNormalMatrix(qRows, aRows *sparseRows, d []float64, n int) *mat.SymDense {
	normal := b.pool.getSym(n)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			normal.SetSym(i, j, 0)
		}
	}
	if qRows != nil {
		for i := range qRows.idx {
			for k, j := range qRows.idx[i] {
				if j >= i {
					normal.SetSym(i, j, normal.At(i, j)+qRows.val[i][k])
				}
			}
		}
	}
	if aRows != nil {
		for i := range aRows.idx {
			di := d[i]
			for k1, j1 := range aRows.idx[i] {
				v1 := di * aRows.val[i][k1]
				for k2, j2 := range aRows.idx[i] {
					if j2 >= j1 {
						normal.SetSym(j1, j2, normal.At(j1, j2)+v1*aRows.val[i][k2])
					}
				}
			}
		}
	}
	return normal
}

// factorize attempts a Cholesky factorization, escalating a diagonal
// jitter until the matrix becomes numerically positive definite.
func (b *Backend) factorize(normal *mat.SymDense, n int) (*mat.Cholesky, bool) {
	scale := 0.0
	for i := 0; i < n; i++ {
		if v := math.Abs(normal.At(i, i)); v > scale {
			scale = v
		}
	}
	jitter := 1e-12 * math.Max(1, scale)

	var chol mat.Cholesky
	if chol.Factorize(normal) {
		return &chol, true
	}
	for attempt := 0; attempt < 10; attempt++ {
		for i := 0; i < n; i++ {
			normal.SetSym(i, i, normal.At(i, i)+jitter)
		}
		if chol.Factorize(normal) {
			if attempt > 0 {
				b.logger.Debug("added jitter for factorization",
					zap.Int("attempts", attempt+1),
					zap.Float64("jitter", jitter))
			}
			return &chol, true
		}
		jitter *= 10
	}
	return nil, false
}

// newtonStep solves one Newton system for the current factorization:
//
//	w_i  = (μᵢ·rpᵢ − rcᵢ)/sᵢ
//	M·dx = −rd − Aᵀw
//	ds   = −rp − A·dx
//	dμᵢ  = (−rcᵢ − μᵢ·dsᵢ)/sᵢ
func (b *Backend) newtonStep(chol *mat.Cholesky, aRows *sparseRows, rd, rp, rc, s, mu, dx, ds, dmu []float64, n int) error {
	w := make([]float64, len(s))
	for i := range w {
		w[i] = (mu[i]*rp[i] - rc[i]) / s[i]
	}
	rhs := b.pool.getVec(n)
	sol := b.pool.getVec(n)
	defer b.pool.putVec(rhs)
	defer b.pool.putVec(sol)

	tmp := make([]float64, n)
	for j := range tmp {
		tmp[j] = -rd[j]
	}
	neg := make([]float64, len(w))
	for i := range w {
		neg[i] = -w[i]
	}
	aRows.mulVecT(tmp, neg)
	for j := 0; j < n; j++ {
		rhs.SetVec(j, tmp[j])
	}
	if err := chol.SolveVecTo(sol, rhs); err != nil {
		return err
	}
	for j := 0; j < n; j++ {
		dx[j] = sol.AtVec(j)
	}
	aRows.mulVec(ds, dx)
	for i := range ds {
		ds[i] = -rp[i] - ds[i]
		dmu[i] = (-rc[i] - mu[i]*ds[i]) / s[i]
	}
	return nil
}

// stepLength returns the largest α ∈ (0, 1] keeping v + α·dv ≥ 0.
func stepLength(v, dv []float64) float64 {
	alpha := 1.0
	for i := range v {
		if dv[i] < 0 {
			if step := -v[i] / dv[i]; step < alpha {
				alpha = step
			}
		}
	}
	return alpha
}

// classifyDivergence inspects a blown-up iterate: exploding multipliers
// with an unresolved primal residual indicate infeasibility, exploding
// primal variables with an unresolved dual residual indicate an
// unbounded objective.
func classifyDivergence(x, mu []float64, rpInf, rdInf, tol, bScale, cScale float64) (solver.Status, bool) {
	const blowup = 1e10
	xBig := normInf(x) > blowup
	muBig := normInf(mu) > blowup
	if !xBig && !muBig {
		return solver.StatusUnknown, false
	}
	primalBad := rpInf > math.Sqrt(tol)*bScale
	dualBad := rdInf > math.Sqrt(tol)*cScale
	switch {
	case muBig && primalBad && !(xBig && dualBad):
		return solver.StatusInfeasible, true
	case xBig && dualBad && !(muBig && primalBad):
		return solver.StatusUnbounded, true
	default:
		return solver.StatusInfeasibleOrUnbounded, true
	}
}

func normInf(v []float64) float64 {
	max := 0.0
	for _, x := range v {
		if a := math.Abs(x); a > max {
			max = a
		}
	}
	return max
}

func dot(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
