package field

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Theta blends an implicit estimate (backward-time tridiagonal solve over the
// interior nodes) with the explicit forward estimate: sigma=1 is fully
// implicit, sigma=0 reproduces the explicit scheme.
type Theta struct {
	grid
	sigma float64

	scratch []float64
	expl    []float64
	dl      []float64
	d       []float64
	du      []float64
	rhs     []float64
}

func NewTheta(start, left, right, coeff Evaluator, sigma, length float64, nodeCount int, timeStep float64) (*Theta, error) {
	if sigma < 0 || sigma > 1 {
		return nil, fmt.Errorf("sigma must be in [0,1], got %g", sigma)
	}
	g, err := newGrid(start, left, right, coeff, length, nodeCount, timeStep)
	if err != nil {
		return nil, err
	}
	m := nodeCount - 2
	t := &Theta{
		grid:    g,
		sigma:   sigma,
		scratch: make([]float64, nodeCount),
		expl:    make([]float64, nodeCount),
		dl:      make([]float64, m-1),
		d:       make([]float64, m),
		du:      make([]float64, m-1),
		rhs:     make([]float64, m),
	}
	if err := t.Reset(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Theta) Reset() error {
	if err := t.restore(t.scratch); err != nil {
		return err
	}
	copy(t.nodes, t.scratch)
	t.tick = 0
	return nil
}

func (t *Theta) Step() error {
	newT := float64(t.tick+1) * t.timeStep

	// Explicit estimate from the current snapshot; it also carries the
	// boundary values for the new time.
	if err := t.explicit(t.expl, newT); err != nil {
		return err
	}

	implicit, err := t.solveImplicit(newT)
	if err != nil {
		return err
	}

	n := len(t.nodes)
	t.scratch[0] = t.expl[0]
	t.scratch[n-1] = t.expl[n-1]
	for i := 1; i < n-1; i++ {
		t.scratch[i] = t.sigma*implicit.AtVec(i-1) + (1-t.sigma)*t.expl[i]
	}
	copy(t.nodes, t.scratch)
	t.tick++
	return nil
}

// solveImplicit solves the backward-time system over the interior nodes. Row
// k covers interior node k+1; the first and last right-hand-side entries are
// shifted by the Dirichlet values at the new time.
func (t *Theta) solveImplicit(newT float64) (*mat.VecDense, error) {
	n := len(t.nodes)
	m := n - 2
	th := t.timeStep / (t.nodeStep * t.nodeStep)

	for k := 0; k < m; k++ {
		a, err := t.coeff.Eval(t.position(k + 1))
		if err != nil {
			return nil, fmt.Errorf("diffusivity at node %d: %w", k+1, err)
		}
		c := th * a * a
		t.d[k] = 2*c + 1
		if k > 0 {
			t.dl[k-1] = -c
		}
		if k < m-1 {
			t.du[k] = -c
		}
		t.rhs[k] = t.nodes[k+1]
	}
	t.rhs[0] -= t.expl[0]
	t.rhs[m-1] -= t.expl[n-1]

	sol := mat.NewVecDense(m, nil)
	tri := mat.NewTridiag(m, t.dl, t.d, t.du)
	if err := tri.SolveVecTo(sol, false, mat.NewVecDense(m, t.rhs)); err != nil {
		return nil, fmt.Errorf("tridiagonal solve: %w", err)
	}
	return sol, nil
}
