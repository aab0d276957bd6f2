package field

import "fmt"

// Analytic evaluates a closed-form solution f(t, x) at every node. There is
// no boundary/interior distinction: each step re-samples the whole grid.
type Analytic struct {
	fn Evaluator // f(t, x)

	length   float64
	timeStep float64
	nodeStep float64
	nodes    []float64
	scratch  []float64
	tick     int
}

func NewAnalytic(fn Evaluator, length float64, nodeCount int, timeStep float64) (*Analytic, error) {
	if err := checkGeometry(length, nodeCount, timeStep); err != nil {
		return nil, err
	}
	if err := checkArity(fn, 2, "analytic"); err != nil {
		return nil, err
	}
	a := &Analytic{
		fn:       fn,
		length:   length,
		timeStep: timeStep,
		nodeStep: length / float64(nodeCount-1),
		nodes:    make([]float64, nodeCount),
		scratch:  make([]float64, nodeCount),
	}
	if err := a.Reset(); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *Analytic) sample(dst []float64, t float64) error {
	for i := range dst {
		v, err := a.fn.Eval(t, float64(i)*a.nodeStep)
		if err != nil {
			return fmt.Errorf("node %d: %w", i, err)
		}
		dst[i] = v
	}
	return nil
}

func (a *Analytic) Reset() error {
	if err := a.sample(a.scratch, 0); err != nil {
		return err
	}
	copy(a.nodes, a.scratch)
	a.tick = 0
	return nil
}

func (a *Analytic) Step() error {
	t := float64(a.tick+1) * a.timeStep
	if err := a.sample(a.scratch, t); err != nil {
		return err
	}
	copy(a.nodes, a.scratch)
	a.tick++
	return nil
}

func (a *Analytic) Nodes() []float64     { return a.nodes }
func (a *Analytic) Length() float64      { return a.length }
func (a *Analytic) NodeStep() float64    { return a.nodeStep }
func (a *Analytic) ElapsedTime() float64 { return float64(a.tick) * a.timeStep }
