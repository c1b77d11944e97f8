// Package cost computes the weighted edge cost between a provider and a
// requester and balances the weights of its components.
package cost

import (
	"fmt"

	"github.com/okian/matchflow/internal/domain/model"
)

const defaultCoefficient = 1.0

type term struct {
	component   Component
	coefficient float64
	fn          Func
}

// Model is a registry of weighted cost components. It is not safe for
// concurrent mutation; each run owns its own Model.
type Model struct {
	terms []term
	index map[Component]int
}

// Option applies a configuration option to a Model built by NewStandardModel.
type Option func(*Model) error

// WithCoefficients overrides coefficients of registered components.
func WithCoefficients(coefficients map[Component]float64) Option {
	return func(m *Model) error {
		for c, v := range coefficients {
			if err := m.SetCoefficient(c, v); err != nil {
				return err
			}
		}
		return nil
	}
}

// NewModel returns an empty model.
func NewModel() *Model {
	return &Model{index: make(map[Component]int)}
}

// NewStandardModel registers the four standard components with coefficient 1
// and applies opts.
func NewStandardModel(opts ...Option) (*Model, error) {
	m := NewModel()
	for _, c := range Components() {
		fn, err := StandardFunc(c)
		if err != nil {
			return nil, err
		}
		if err := m.Register(c, defaultCoefficient, fn); err != nil {
			return nil, err
		}
	}
	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Register adds a component. Each component may be registered once.
func (m *Model) Register(c Component, coefficient float64, fn Func) error {
	if _, ok := m.index[c]; ok {
		return fmt.Errorf("%w: %v", ErrAlreadyRegistered, c)
	}
	if coefficient < 0 {
		return fmt.Errorf("%w: %v=%g", ErrNegativeWeight, c, coefficient)
	}
	m.index[c] = len(m.terms)
	m.terms = append(m.terms, term{component: c, coefficient: coefficient, fn: fn})
	return nil
}

// Total is the weighted sum of all registered components.
func (m *Model) Total(p *model.Provider, r *model.Requester) float64 {
	var total float64
	for _, t := range m.terms {
		total += t.coefficient * t.fn(p, r)
	}
	return total
}

// Component is the weighted value of a single component, 0 when unregistered.
func (m *Model) Component(p *model.Provider, r *model.Requester, c Component) float64 {
	i, ok := m.index[c]
	if !ok {
		return 0
	}
	t := m.terms[i]
	return t.coefficient * t.fn(p, r)
}

// SetCoefficient replaces the coefficient of a registered component.
func (m *Model) SetCoefficient(c Component, v float64) error {
	i, ok := m.index[c]
	if !ok {
		return fmt.Errorf("%w: %v", ErrNotRegistered, c)
	}
	if v < 0 {
		return fmt.Errorf("%w: %v=%g", ErrNegativeWeight, c, v)
	}
	m.terms[i].coefficient = v
	return nil
}

// Coefficient returns the coefficient of c, 0 when unregistered.
func (m *Model) Coefficient(c Component) float64 {
	if i, ok := m.index[c]; ok {
		return m.terms[i].coefficient
	}
	return 0
}

// Registered lists components in registration order.
func (m *Model) Registered() []Component {
	out := make([]Component, len(m.terms))
	for i, t := range m.terms {
		out[i] = t.component
	}
	return out
}
