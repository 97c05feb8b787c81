package ipm

import "gonum.org/v1/gonum/mat"

// workspacePool recycles the dense factorization workspaces across
// iterations and solves to reduce allocations.
type workspacePool struct {
	sym []*mat.SymDense
	vec []*mat.VecDense
}

func newWorkspacePool() *workspacePool {
	return &workspacePool{
		sym: make([]*mat.SymDense, 0, 4),
		vec: make([]*mat.VecDense, 0, 4),
	}
}

func (p *workspacePool) getSym(n int) *mat.SymDense {
	for i := len(p.sym) - 1; i >= 0; i-- {
		m := p.sym[i]
		if r, _ := m.Dims(); r == n {
			p.sym = append(p.sym[:i], p.sym[i+1:]...)
			return m
		}
	}
	return mat.NewSymDense(n, nil)
}

func (p *workspacePool) putSym(m *mat.SymDense) {
	p.sym = append(p.sym, m)
}

func (p *workspacePool) getVec(n int) *mat.VecDense {
	for i := len(p.vec) - 1; i >= 0; i-- {
		v := p.vec[i]
		if v.Len() == n {
			p.vec = append(p.vec[:i], p.vec[i+1:]...)
			return v
		}
	}
	return mat.NewVecDense(n, nil)
}

func (p *workspacePool) putVec(v *mat.VecDense) {
	p.vec = append(p.vec, v)
}
