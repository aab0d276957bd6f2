package field

import "fmt"

var (
	_ Model = (*Analytic)(nil)
	_ Model = (*Explicit)(nil)
	_ Model = (*Theta)(nil)
)

type evalFunc struct {
	arity int
	fn    func(args []float64) float64
}

func (e evalFunc) Arity() int { return e.arity }

func (e evalFunc) Eval(args ...float64) (float64, error) {
	if len(args) != e.arity {
		return 0, fmt.Errorf("expected %d args, got %d", e.arity, len(args))
	}
	return e.fn(args), nil
}

type failEval struct{}

func (failEval) Arity() int                       { return 1 }
func (failEval) Eval(...float64) (float64, error) { return 0, fmt.Errorf("evaluation failed") }

func constant(v float64) evalFunc {
	return evalFunc{1, func([]float64) float64 { return v }}
}

func of1(fn func(float64) float64) evalFunc {
	return evalFunc{1, func(args []float64) float64 { return fn(args[0]) }}
}

func of2(fn func(float64, float64) float64) evalFunc {
	return evalFunc{2, func(args []float64) float64 { return fn(args[0], args[1]) }}
}
