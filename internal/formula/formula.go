// Package formula compiles textual math formulas into fixed-arity numeric
// functions. A formula may reference only the variables it is compiled with
// plus the math builtins; anything else is a compile error, so malformed
// input never reaches a running model.
package formula

import (
	"fmt"
	"math"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

var unaryFuncs = map[string]func(float64) float64{
	"sin":  math.Sin,
	"cos":  math.Cos,
	"tan":  math.Tan,
	"sinh": math.Sinh,
	"cosh": math.Cosh,
	"tanh": math.Tanh,
	"exp":  math.Exp,
	"log":  math.Log,
	"sqrt": math.Sqrt,
}

var binaryFuncs = map[string]func(float64, float64) float64{
	"pow": math.Pow,
}

// Program is a compiled formula. It satisfies the evaluator capability the
// field models consume.
type Program struct {
	src  string
	vars []string
	prog *vm.Program
}

// Compile builds src into a program over the given free variables, in order.
// The variable names become the positional arguments of Eval.
func Compile(src string, vars ...string) (*Program, error) {
	env := map[string]any{"pi": math.Pi, "e": math.E}
	for _, v := range vars {
		if _, ok := env[v]; ok {
			return nil, fmt.Errorf("variable %q shadows a builtin", v)
		}
		if _, ok := unaryFuncs[v]; ok {
			return nil, fmt.Errorf("variable %q shadows a builtin", v)
		}
		if _, ok := binaryFuncs[v]; ok {
			return nil, fmt.Errorf("variable %q shadows a builtin", v)
		}
		env[v] = float64(0)
	}

	opts := []expr.Option{expr.Env(env), expr.AsFloat64()}
	for name, fn := range unaryFuncs {
		opts = append(opts, expr.Function(name, unary(name, fn)))
	}
	for name, fn := range binaryFuncs {
		opts = append(opts, expr.Function(name, binary(name, fn)))
	}

	prog, err := expr.Compile(src, opts...)
	if err != nil {
		return nil, fmt.Errorf("compile %q: %w", src, err)
	}
	return &Program{src: src, vars: append([]string(nil), vars...), prog: prog}, nil
}

func (p *Program) Arity() int     { return len(p.vars) }
func (p *Program) String() string { return p.src }

func (p *Program) Eval(args ...float64) (float64, error) {
	if len(args) != len(p.vars) {
		return 0, fmt.Errorf("formula %q takes %d argument(s), got %d", p.src, len(p.vars), len(args))
	}
	env := map[string]any{"pi": math.Pi, "e": math.E}
	for i, v := range p.vars {
		env[v] = args[i]
	}
	out, err := expr.Run(p.prog, env)
	if err != nil {
		return 0, fmt.Errorf("eval %q: %w", p.src, err)
	}
	return out.(float64), nil
}

func unary(name string, fn func(float64) float64) func(...any) (any, error) {
	return func(args ...any) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("%s takes 1 argument, got %d", name, len(args))
		}
		v, err := toFloat(args[0])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		return fn(v), nil
	}
}

func binary(name string, fn func(float64, float64) float64) func(...any) (any, error) {
	return func(args ...any) (any, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("%s takes 2 arguments, got %d", name, len(args))
		}
		a, err := toFloat(args[0])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		b, err := toFloat(args[1])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		return fn(a, b), nil
	}
}

func toFloat(v any) (float64, error) {
	switch v := v.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("not a number: %v", v)
	}
}
