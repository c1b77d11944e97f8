package cost

import (
	"github.com/okian/matchflow/internal/domain/model"
)

// Pairs exposes the eligible pairs a Model is balanced against.
type Pairs interface {
	Len() int
	Pair(i int) (*model.Provider, *model.Requester)
}

// Adjustment records how one coefficient moved during balancing.
type Adjustment struct {
	Component Component
	Target    float64
	Share     float64 // fraction of the combined weighted cost before balancing
	Coverage  float64 // fraction of pairs with a non-zero weighted cost
	Before    float64
	After     float64
}

// Balance rescales the coefficients named in targets so that each component's
// share of the combined cost moves toward its target share, damped by how many
// pairs the component touches at all. It is a single pass, not a fixed point.
// When the combined cost over all targeted components is zero nothing changes.
func (m *Model) Balance(targets map[Component]float64, pairs Pairs) []Adjustment {
	n := pairs.Len()
	if n == 0 || len(targets) == 0 {
		return nil
	}

	// Iterate in a fixed order so logs and float sums are reproducible.
	order := make([]Component, 0, len(targets))
	for _, c := range Components() {
		if _, ok := targets[c]; ok {
			order = append(order, c)
		}
	}

	sums := make([]float64, len(order))
	covered := make([]int, len(order))
	var grand float64
	for k, c := range order {
		for i := 0; i < n; i++ {
			p, r := pairs.Pair(i)
			v := m.Component(p, r, c)
			sums[k] += v
			if v > 0 {
				covered[k]++
			}
		}
		grand += sums[k]
	}
	if grand == 0 {
		return nil
	}

	var out []Adjustment
	for k, c := range order {
		if sums[k] == 0 {
			continue
		}
		share := sums[k] / grand
		coverage := float64(covered[k]) / float64(n)
		before := m.Coefficient(c)
		after := before * (targets[c] / share) * coverage
		if err := m.SetCoefficient(c, after); err != nil {
			// Non-zero sum implies registration; a negative target is the only way here.
			continue
		}
		out = append(out, Adjustment{
			Component: c,
			Target:    targets[c],
			Share:     share,
			Coverage:  coverage,
			Before:    before,
			After:     after,
		})
	}
	return out
}
