package problem

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voltmesh/gridform/internal/solver"
	"github.com/voltmesh/gridform/internal/solver/ipm"
	"github.com/voltmesh/gridform/internal/solver/simplex"
)

func backends() map[string]solver.Backend {
	return map[string]solver.Backend{
		"interior-point": ipm.New(ipm.DefaultConfig(), nil),
		"simplex":        simplex.New(nil),
	}
}

func TestSolveLinearProgram(t *testing.T) {
	for name, backend := range backends() {
		t.Run(name, func(t *testing.T) {
			p := New(WithBackend(backend))
			require.NoError(t, p.DefineVariable("x", Set("unit", Strings("u1", "u2", "u3", "u4", "u5")...)))
			require.NoError(t, p.DefineConstraint(
				Var(Scalar(1), Sel("x")),
				LessEqual,
				Const(Scalar(5)),
				Label("cap", Set("unit", Strings("u1", "u2", "u3", "u4", "u5")...)),
			))
			require.NoError(t, p.DefineObjective(Var(Scalar(-2), Sel("x"))))

			require.NoError(t, p.Solve(context.Background()))
			assert.Equal(t, solver.StatusOptimal, p.Status())

			obj, err := p.Objective()
			require.NoError(t, err)
			assert.InDelta(t, -50.0, obj, 1e-5)

			results, err := p.Results()
			require.NoError(t, err)
			x := results["x"]
			require.NotNil(t, x.Table)
			for _, row := range x.Table.Values {
				assert.InDelta(t, 5.0, row[0], 1e-5)
			}

			// Each cap row binds with multiplier 2; reported as −μ.
			duals, err := p.Duals()
			require.NoError(t, err)
			cap := duals["cap"]
			require.NotNil(t, cap.Table)
			for _, row := range cap.Table.Values {
				assert.InDelta(t, -2.0, row[0], 1e-4)
			}
		})
	}
}

func TestSolveEqualityDual(t *testing.T) {
	for name, backend := range backends() {
		t.Run(name, func(t *testing.T) {
			p := New(WithBackend(backend))
			require.NoError(t, p.DefineVariable("x"))
			require.NoError(t, p.DefineConstraint(
				Var(Scalar(1), Sel("x")),
				Equal,
				Const(Scalar(3)),
				Label("fix"),
			))
			require.NoError(t, p.DefineObjective(Var(Scalar(1), Sel("x"))))

			require.NoError(t, p.Solve(context.Background()))

			results, err := p.Results()
			require.NoError(t, err)
			require.True(t, results["x"].IsScalar)
			assert.InDelta(t, 3.0, results["x"].Scalar, 1e-3)

			// The recombined equality multiplier equals the Lagrange
			// multiplier of min x s.t. x = 3, which is −1.
			duals, err := p.Duals()
			require.NoError(t, err)
			require.True(t, duals["fix"].IsScalar)
			assert.InDelta(t, -1.0, duals["fix"].Scalar, 1e-3)
		})
	}
}

func TestSolveInfeasible(t *testing.T) {
	for name, backend := range backends() {
		t.Run(name, func(t *testing.T) {
			p := New(WithBackend(backend))
			require.NoError(t, p.DefineVariable("x"))
			require.NoError(t, p.DefineConstraint(Var(Scalar(1), Sel("x")), LessEqual, Const(Scalar(1))))
			require.NoError(t, p.DefineConstraint(Var(Scalar(1), Sel("x")), GreaterEqual, Const(Scalar(2))))
			require.NoError(t, p.DefineObjective(Var(Scalar(1), Sel("x"))))

			err := p.Solve(context.Background())
			var solveErr *solver.SolveError
			require.ErrorAs(t, err, &solveErr)
			assert.True(t, solveErr.Status.IsFatal())
		})
	}
}

func TestSolveQuadratic(t *testing.T) {
	// min (x−2)² s.t. x ≤ 1: the constraint binds at x = 1.
	p := New(WithBackend(ipm.New(ipm.DefaultConfig(), nil)))
	require.NoError(t, p.DefineVariable("x"))
	require.NoError(t, p.DefineConstraint(Var(Scalar(1), Sel("x")), LessEqual, Const(Scalar(1))))
	require.NoError(t, p.DefineObjective(
		QuadVar(Scalar(2), Sel("x"), Sel("x")),
		Var(Scalar(-4), Sel("x")),
		Const(Scalar(4)),
	))

	require.NoError(t, p.Solve(context.Background()))

	results, err := p.Results()
	require.NoError(t, err)
	assert.InDelta(t, 1.0, results["x"].Scalar, 1e-5)

	obj, err := p.Objective()
	require.NoError(t, err)
	assert.InDelta(t, 1.0, obj, 1e-5)
}

func TestSolveUnconstrainedQuadratic(t *testing.T) {
	// min (x−2)² without constraints: the stationary point x = 2.
	p := New(WithBackend(ipm.New(ipm.DefaultConfig(), nil)))
	require.NoError(t, p.DefineVariable("x"))
	require.NoError(t, p.DefineObjective(
		QuadVar(Scalar(2), Sel("x"), Sel("x")),
		Var(Scalar(-4), Sel("x")),
		Const(Scalar(4)),
	))

	require.NoError(t, p.Solve(context.Background()))

	results, err := p.Results()
	require.NoError(t, err)
	assert.InDelta(t, 2.0, results["x"].Scalar, 1e-6)

	obj, err := p.Objective()
	require.NoError(t, err)
	assert.InDelta(t, 0.0, obj, 1e-6)
}

func TestSolveParameterUpdate(t *testing.T) {
	p := New(WithBackend(simplex.New(nil)))
	require.NoError(t, p.DefineVariable("x"))
	require.NoError(t, p.DefineParameter("cap", Scalar(5)))
	require.NoError(t, p.DefineConstraint(Var(Scalar(1), Sel("x")), LessEqual, Const(Param("cap"))))
	require.NoError(t, p.DefineObjective(Var(Scalar(-1), Sel("x"))))

	require.NoError(t, p.Solve(context.Background()))
	obj, err := p.Objective()
	require.NoError(t, err)
	assert.InDelta(t, -5.0, obj, 1e-8)

	// Updating the parameter and re-solving reuses the declared
	// structure against the new value.
	require.NoError(t, p.DefineParameter("cap", Scalar(10)))
	require.NoError(t, p.Solve(context.Background()))
	obj, err = p.Objective()
	require.NoError(t, err)
	assert.InDelta(t, -10.0, obj, 1e-8)
}

func TestEvaluateObjective(t *testing.T) {
	p := New(WithBackend(ipm.New(ipm.DefaultConfig(), nil)))
	require.NoError(t, p.DefineVariable("x"))
	require.NoError(t, p.DefineConstraint(Var(Scalar(1), Sel("x")), LessEqual, Const(Scalar(1))))
	require.NoError(t, p.DefineObjective(
		QuadVar(Scalar(2), Sel("x"), Sel("x")),
		Var(Scalar(-4), Sel("x")),
		Const(Scalar(4)),
	))
	require.NoError(t, p.Solve(context.Background()))

	x, err := p.XVector()
	require.NoError(t, err)
	obj, err := p.Objective()
	require.NoError(t, err)

	// Evaluating the objective at the solution must reproduce the
	// reported optimum.
	eval, err := p.EvaluateObjective(x)
	require.NoError(t, err)
	assert.InDelta(t, obj, eval, 1e-9)

	_, err = p.EvaluateObjective([]float64{1, 2})
	var dimErr *DimensionError
	require.ErrorAs(t, err, &dimErr)
}

func TestResultsTimePivot(t *testing.T) {
	p := New(WithBackend(simplex.New(nil)))
	require.NoError(t, p.DefineVariable("power",
		Set("timestep", Strings("t1", "t2")...),
		Set("unit", Strings("u1", "u2")...),
	))
	require.NoError(t, p.DefineConstraint(
		Var(Scalar(1), Sel("power")),
		Equal,
		Const(Vector{1, 2, 3, 4}),
	))
	require.NoError(t, p.DefineObjective(Var(Scalar(1), Sel("power"))))

	require.NoError(t, p.Solve(context.Background()))

	results, err := p.Results()
	require.NoError(t, err)
	table := results["power"].Table
	require.NotNil(t, table)
	assert.Equal(t, []string{"t1", "t2"}, table.RowLabels)
	assert.Equal(t, []string{"u1", "u2"}, table.Columns)
	assert.InDelta(t, 1.0, table.At("t1", "u1"), 1e-6)
	assert.InDelta(t, 2.0, table.At("t1", "u2"), 1e-6)
	assert.InDelta(t, 3.0, table.At("t2", "u1"), 1e-6)
	assert.InDelta(t, 4.0, table.At("t2", "u2"), 1e-6)
}
