package solver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestNNLS(t *testing.T) {
	tests := []struct {
		name string
		e    *mat.Dense
		f    []float64
		want []float64
	}{
		{
			name: "identity stays nonnegative",
			e:    mat.NewDense(2, 2, []float64{1, 0, 0, 1}),
			f:    []float64{2, 3},
			want: []float64{2, 3},
		},
		{
			name: "negative component clamped",
			e:    mat.NewDense(3, 2, []float64{1, 0, 0, 1, 1, 1}),
			f:    []float64{1, -1, 0},
			want: []float64{0.5, 0},
		},
		{
			name: "degenerate pair picks vertex split",
			// One equation over an opposite-sign pair: the unconstrained
			// minimum-norm solution would be (−0.5, 0.5); the
			// non-negative one is (1, 0).
			e:    mat.NewDense(1, 2, []float64{-1, 1}),
			f:    []float64{-1},
			want: []float64{1, 0},
		},
		{
			name: "all zero when gradient points away",
			e:    mat.NewDense(2, 2, []float64{1, 0, 0, 1}),
			f:    []float64{-1, -2},
			want: []float64{0, 0},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NNLS(tt.e, tt.f)
			require.NoError(t, err)
			require.Len(t, got, len(tt.want))
			for i := range tt.want {
				assert.InDelta(t, tt.want[i], got[i], 1e-8)
				assert.GreaterOrEqual(t, got[i], 0.0)
			}
		})
	}
}

func TestNNLSDimensionMismatch(t *testing.T) {
	_, err := NNLS(mat.NewDense(2, 2, nil), []float64{1})
	assert.Error(t, err)
}
