// Package config loads declarative simulation scenarios: which models to
// register, their formulas and grid parameters, and which pairs to compare.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/avolkov/fieldsim/internal/field"
	"github.com/avolkov/fieldsim/internal/formula"
)

const (
	KindAnalytic = "analytic"
	KindExplicit = "explicit"
	KindTheta    = "theta"

	DefaultMinTickMS = 10
	DefaultNodes     = 101
	DefaultLength    = 200.0
	DefaultTimeStep  = 0.1
	DefaultSigma     = 0.5
)

// ModelSpec describes one model. Formula is the analytic closed form f(t,x);
// Start, Left, Right and Coefficient are the finite-difference inputs u(0,x),
// u(t,0), u(t,L) and a(x).
type ModelSpec struct {
	Name        string  `yaml:"name"`
	Kind        string  `yaml:"kind"`
	Length      float64 `yaml:"length"`
	Nodes       int     `yaml:"nodes"`
	TimeStep    float64 `yaml:"time_step"`
	Sigma       float64 `yaml:"sigma,omitempty"`
	Formula     string  `yaml:"formula,omitempty"`
	Start       string  `yaml:"start,omitempty"`
	Left        string  `yaml:"left,omitempty"`
	Right       string  `yaml:"right,omitempty"`
	Coefficient string  `yaml:"coefficient,omitempty"`
}

type Comparison struct {
	A string `yaml:"a"`
	B string `yaml:"b"`
}

type Scenario struct {
	MinTickMS   int          `yaml:"min_tick_ms"`
	Models      []ModelSpec  `yaml:"models"`
	Comparisons []Comparison `yaml:"comparisons,omitempty"`
}

func Default() *Scenario {
	return &Scenario{
		MinTickMS: DefaultMinTickMS,
		Models: []ModelSpec{
			{
				Name:        "explicit",
				Kind:        KindExplicit,
				Length:      DefaultLength,
				Nodes:       DefaultNodes,
				TimeStep:    DefaultTimeStep,
				Start:       "100*sin(pi*x/200)",
				Left:        "0",
				Right:       "0",
				Coefficient: "1",
			},
			{
				Name:        "blended",
				Kind:        KindTheta,
				Length:      DefaultLength,
				Nodes:       DefaultNodes,
				TimeStep:    DefaultTimeStep,
				Sigma:       DefaultSigma,
				Start:       "100*sin(pi*x/200)",
				Left:        "0",
				Right:       "0",
				Coefficient: "1",
			},
		},
		Comparisons: []Comparison{{A: "explicit", B: "blended"}},
	}
}

func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	s := &Scenario{MinTickMS: DefaultMinTickMS}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

func Save(path string, s *Scenario) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (s *Scenario) Validate() error {
	if s.MinTickMS < 0 {
		return fmt.Errorf("min_tick_ms must not be negative, got %d", s.MinTickMS)
	}
	if len(s.Models) == 0 {
		return fmt.Errorf("scenario has no models")
	}
	seen := make(map[string]bool, len(s.Models))
	for i := range s.Models {
		m := &s.Models[i]
		if err := m.Validate(); err != nil {
			return fmt.Errorf("model %q: %w", m.Name, err)
		}
		if seen[m.Name] {
			return fmt.Errorf("duplicate model name %q", m.Name)
		}
		seen[m.Name] = true
	}
	for _, c := range s.Comparisons {
		if !seen[c.A] || !seen[c.B] {
			return fmt.Errorf("comparison %s/%s references an undefined model", c.A, c.B)
		}
	}
	return nil
}

func (m *ModelSpec) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("missing name")
	}
	if m.Nodes < 3 {
		return fmt.Errorf("nodes must be at least 3, got %d", m.Nodes)
	}
	if m.Length <= 0 {
		return fmt.Errorf("length must be positive, got %g", m.Length)
	}
	if m.TimeStep <= 0 {
		return fmt.Errorf("time_step must be positive, got %g", m.TimeStep)
	}
	switch m.Kind {
	case KindAnalytic:
		if m.Formula == "" {
			return fmt.Errorf("analytic model needs a formula")
		}
	case KindExplicit, KindTheta:
		for _, f := range []struct{ name, src string }{
			{"start", m.Start},
			{"left", m.Left},
			{"right", m.Right},
			{"coefficient", m.Coefficient},
		} {
			if f.src == "" {
				return fmt.Errorf("%s model needs a %s formula", m.Kind, f.name)
			}
		}
		if m.Kind == KindTheta && (m.Sigma < 0 || m.Sigma > 1) {
			return fmt.Errorf("sigma must be in [0,1], got %g", m.Sigma)
		}
	default:
		return fmt.Errorf("unknown kind %q", m.Kind)
	}
	return nil
}

// Build compiles the spec's formulas and constructs the model.
func (m *ModelSpec) Build() (field.Model, error) {
	switch m.Kind {
	case KindAnalytic:
		fn, err := formula.Compile(m.Formula, "t", "x")
		if err != nil {
			return nil, err
		}
		return field.NewAnalytic(fn, m.Length, m.Nodes, m.TimeStep)
	case KindExplicit, KindTheta:
		start, err := formula.Compile(m.Start, "x")
		if err != nil {
			return nil, fmt.Errorf("start: %w", err)
		}
		left, err := formula.Compile(m.Left, "t")
		if err != nil {
			return nil, fmt.Errorf("left: %w", err)
		}
		right, err := formula.Compile(m.Right, "t")
		if err != nil {
			return nil, fmt.Errorf("right: %w", err)
		}
		coeff, err := formula.Compile(m.Coefficient, "x")
		if err != nil {
			return nil, fmt.Errorf("coefficient: %w", err)
		}
		if m.Kind == KindExplicit {
			return field.NewExplicit(start, left, right, coeff, m.Length, m.Nodes, m.TimeStep)
		}
		return field.NewTheta(start, left, right, coeff, m.Sigma, m.Length, m.Nodes, m.TimeStep)
	default:
		return nil, fmt.Errorf("unknown kind %q", m.Kind)
	}
}

// StabilityRatio reports the largest a(x)²·dt/h² over the interior nodes of
// a finite-difference spec. Values above one half make the explicit update
// unstable; the schemes themselves never check this.
func (m *ModelSpec) StabilityRatio() (float64, error) {
	if m.Kind == KindAnalytic {
		return 0, nil
	}
	coeff, err := formula.Compile(m.Coefficient, "x")
	if err != nil {
		return 0, fmt.Errorf("coefficient: %w", err)
	}
	h := m.Length / float64(m.Nodes-1)
	h2 := h * h
	var worst float64
	for i := 1; i < m.Nodes-1; i++ {
		a, err := coeff.Eval(float64(i) * h)
		if err != nil {
			return 0, err
		}
		if r := a * a * m.TimeStep / h2; r > worst {
			worst = r
		}
	}
	return worst, nil
}
