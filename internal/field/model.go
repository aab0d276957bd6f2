// Package field implements 1-D time-dependent field models on a fixed
// spatial grid: a closed-form analytic model and two finite-difference
// diffusion schemes (explicit and theta-blended implicit/explicit).
package field

import "fmt"

// Evaluator is a compiled numeric function of a fixed arity. Models receive
// their initial conditions, boundary conditions and diffusivity profiles as
// evaluators and never see the formula syntax behind them.
type Evaluator interface {
	Eval(args ...float64) (float64, error)
	Arity() int
}

// Model is one simulated field. A model owns its node array; callers must
// not mutate the slice returned by Nodes. Step advances by one time step,
// and on error leaves the node array and elapsed time unchanged.
type Model interface {
	Reset() error
	Step() error
	Nodes() []float64
	Length() float64
	NodeStep() float64
	ElapsedTime() float64
}

func checkArity(e Evaluator, want int, role string) error {
	if e == nil {
		return fmt.Errorf("%s evaluator is nil", role)
	}
	if e.Arity() != want {
		return fmt.Errorf("%s evaluator takes %d argument(s), want %d", role, e.Arity(), want)
	}
	return nil
}

func checkGeometry(length float64, nodeCount int, timeStep float64) error {
	if nodeCount < 3 {
		return fmt.Errorf("node count must be at least 3, got %d", nodeCount)
	}
	if length <= 0 {
		return fmt.Errorf("length must be positive, got %g", length)
	}
	if timeStep == 0 {
		return fmt.Errorf("time step must be nonzero")
	}
	return nil
}
