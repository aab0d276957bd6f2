package field

import "fmt"

// grid is the discretized domain shared by the finite-difference models:
// evaluators for the initial condition, the two Dirichlet boundaries and the
// diffusivity profile, plus the node array itself.
type grid struct {
	start Evaluator // u(0, x)
	left  Evaluator // u(t, 0)
	right Evaluator // u(t, length)
	coeff Evaluator // a(x), diffusivity

	length   float64
	timeStep float64
	nodeStep float64
	nodes    []float64
	tick     int
}

func newGrid(start, left, right, coeff Evaluator, length float64, nodeCount int, timeStep float64) (grid, error) {
	if err := checkGeometry(length, nodeCount, timeStep); err != nil {
		return grid{}, err
	}
	for _, e := range []struct {
		ev   Evaluator
		role string
	}{
		{start, "start"},
		{left, "left boundary"},
		{right, "right boundary"},
		{coeff, "diffusivity"},
	} {
		if err := checkArity(e.ev, 1, e.role); err != nil {
			return grid{}, err
		}
	}
	return grid{
		start:    start,
		left:     left,
		right:    right,
		coeff:    coeff,
		length:   length,
		timeStep: timeStep,
		nodeStep: length / float64(nodeCount-1),
		nodes:    make([]float64, nodeCount),
	}, nil
}

func (g *grid) position(i int) float64 { return float64(i) * g.nodeStep }

// restore fills dst with the t=0 condition: boundaries from the boundary
// evaluators, interior from the starting condition.
func (g *grid) restore(dst []float64) error {
	n := len(dst)
	v, err := g.left.Eval(0)
	if err != nil {
		return fmt.Errorf("left boundary: %w", err)
	}
	dst[0] = v
	if v, err = g.right.Eval(0); err != nil {
		return fmt.Errorf("right boundary: %w", err)
	}
	dst[n-1] = v
	for i := 1; i < n-1; i++ {
		if v, err = g.start.Eval(g.position(i)); err != nil {
			return fmt.Errorf("start at node %d: %w", i, err)
		}
		dst[i] = v
	}
	return nil
}

// explicit writes the forward-time centered-space estimate for time t into
// dst, reading only g.nodes (one consistent snapshot, no aliasing).
func (g *grid) explicit(dst []float64, t float64) error {
	n := len(g.nodes)
	v, err := g.left.Eval(t)
	if err != nil {
		return fmt.Errorf("left boundary: %w", err)
	}
	dst[0] = v
	if v, err = g.right.Eval(t); err != nil {
		return fmt.Errorf("right boundary: %w", err)
	}
	dst[n-1] = v
	h2 := g.nodeStep * g.nodeStep
	for i := 1; i < n-1; i++ {
		a, err := g.coeff.Eval(g.position(i))
		if err != nil {
			return fmt.Errorf("diffusivity at node %d: %w", i, err)
		}
		r := a * a * g.timeStep / h2
		dst[i] = g.nodes[i] + r*(g.nodes[i-1]-2*g.nodes[i]+g.nodes[i+1])
	}
	return nil
}

func (g *grid) Nodes() []float64     { return g.nodes }
func (g *grid) Length() float64      { return g.length }
func (g *grid) NodeStep() float64    { return g.nodeStep }
func (g *grid) ElapsedTime() float64 { return float64(g.tick) * g.timeStep }

// Explicit advances the diffusion equation u_t = a(x)² u_xx with the
// forward-time centered-space scheme. Stability of the update (the ratio
// a²·dt/h² staying below one half) is the caller's responsibility.
type Explicit struct {
	grid
	scratch []float64
}

func NewExplicit(start, left, right, coeff Evaluator, length float64, nodeCount int, timeStep float64) (*Explicit, error) {
	g, err := newGrid(start, left, right, coeff, length, nodeCount, timeStep)
	if err != nil {
		return nil, err
	}
	e := &Explicit{grid: g, scratch: make([]float64, nodeCount)}
	if err := e.Reset(); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Explicit) Reset() error {
	if err := e.restore(e.scratch); err != nil {
		return err
	}
	copy(e.nodes, e.scratch)
	e.tick = 0
	return nil
}

func (e *Explicit) Step() error {
	t := float64(e.tick+1) * e.timeStep
	if err := e.explicit(e.scratch, t); err != nil {
		return err
	}
	copy(e.nodes, e.scratch)
	e.tick++
	return nil
}
