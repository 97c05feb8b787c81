package solver

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ErrNNLS is returned when the non-negative least squares iteration does
// not terminate within its iteration budget.
var ErrNNLS = errors.New("solver: nnls did not converge")

// NNLS solves min ‖Ex − f‖₂ subject to x ≥ 0 with the Lawson–Hanson
// active-set method. E is m×n dense or sparse; the returned x has length
// n.
func NNLS(E mat.Matrix, f []float64) ([]float64, error) {
	m, n := E.Dims()
	if len(f) != m {
		return nil, errors.New("solver: nnls dimension mismatch")
	}

	x := make([]float64, n)
	passive := make([]bool, n)
	w := make([]float64, n)
	resid := make([]float64, m)

	tol := 10 * machineEps * float64(n) * matrixMaxAbs(E)
	maxIter := 3 * n
	if maxIter < 30 {
		maxIter = 30
	}

	for iter := 0; iter < maxIter; iter++ {
		// Gradient w = Eᵀ(f − Ex).
		for i := range resid {
			resid[i] = f[i]
		}
		for j := 0; j < n; j++ {
			if x[j] == 0 {
				continue
			}
			for i := 0; i < m; i++ {
				resid[i] -= E.At(i, j) * x[j]
			}
		}
		for j := 0; j < n; j++ {
			w[j] = 0
			for i := 0; i < m; i++ {
				w[j] += E.At(i, j) * resid[i]
			}
		}

		// Most violated inactive coordinate enters the passive set.
		t := -1
		wMax := tol
		for j := 0; j < n; j++ {
			if !passive[j] && w[j] > wMax {
				wMax = w[j]
				t = j
			}
		}
		if t < 0 {
			return x, nil
		}
		passive[t] = true

		// Inner loop: unconstrained least squares on the passive set,
		// stepping back along the segment when a coordinate would go
		// negative.
		for {
			z, err := lsqPassive(E, f, passive)
			if err != nil {
				return nil, err
			}
			alpha := 1.0
			blocked := false
			for j := 0; j < n; j++ {
				if passive[j] && z[j] <= 0 {
					blocked = true
					if step := x[j] / (x[j] - z[j]); step < alpha {
						alpha = step
					}
				}
			}
			if !blocked {
				copy(x, z)
				break
			}
			for j := 0; j < n; j++ {
				if passive[j] {
					x[j] += alpha * (z[j] - x[j])
					if x[j] <= tol {
						x[j] = 0
						passive[j] = false
					}
				}
			}
		}
	}
	return nil, ErrNNLS
}

const machineEps = 2.220446049250313e-16

func matrixMaxAbs(a mat.Matrix) float64 {
	m, n := a.Dims()
	max := 0.0
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			if v := math.Abs(a.At(i, j)); v > max {
				max = v
			}
		}
	}
	return max
}

// lsqPassive solves the unconstrained least squares restricted to the
// passive columns, scattering the result back to full length with zeros
// on the active set.
func lsqPassive(E mat.Matrix, f []float64, passive []bool) ([]float64, error) {
	m, n := E.Dims()
	cols := make([]int, 0, n)
	for j := 0; j < n; j++ {
		if passive[j] {
			cols = append(cols, j)
		}
	}
	sub := mat.NewDense(m, len(cols), nil)
	for k, j := range cols {
		for i := 0; i < m; i++ {
			sub.Set(i, k, E.At(i, j))
		}
	}
	rhs := mat.NewVecDense(m, f)
	var sol mat.VecDense
	var qr mat.QR
	qr.Factorize(sub)
	if err := qr.SolveVecTo(&sol, false, rhs); err != nil {
		// Ill-conditioned passive sets still yield a usable least
		// squares point; only hard failures abort.
		if _, ok := err.(mat.Condition); !ok {
			return nil, err
		}
	}
	z := make([]float64, n)
	for k, j := range cols {
		z[j] = sol.AtVec(k)
	}
	return z, nil
}
