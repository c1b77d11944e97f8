// Package graph turns requesters and providers into the weighted bipartite
// graph of eligible pairs.
package graph

import (
	"fmt"

	"github.com/okian/matchflow/internal/domain/cost"
	"github.com/okian/matchflow/internal/domain/model"
)

// Edge is an eligible (requester, provider) pair with its cached cost.
type Edge struct {
	Requester int
	Provider  int
	Cost      float64
}

// Graph holds both sides, the cost model and the eligible edges. Requester
// and provider ids are their indices in the respective slices.
type Graph struct {
	requesters []model.Requester
	providers  []model.Provider
	costs      *cost.Model
	edges      []Edge
}

// Build evaluates eligibility for every pair, requester-major, and caches edge
// costs. Ids must be dense: requesters[i].ID == i and providers[j].ID == j.
func Build(requesters []model.Requester, providers []model.Provider, costs *cost.Model) (*Graph, error) {
	for i := range requesters {
		if requesters[i].ID != i {
			return nil, fmt.Errorf("%w: requester at index %d has id %d", ErrInvalidReference, i, requesters[i].ID)
		}
	}
	for j := range providers {
		if providers[j].ID != j {
			return nil, fmt.Errorf("%w: provider at index %d has id %d", ErrInvalidReference, j, providers[j].ID)
		}
		if providers[j].Capacity < 0 {
			return nil, fmt.Errorf("%w: provider %s has capacity %d", ErrNegativeCapacity, providers[j].UUID, providers[j].Capacity)
		}
	}

	g := &Graph{requesters: requesters, providers: providers, costs: costs}
	for i := range requesters {
		r := &requesters[i]
		for j := range providers {
			if Eligible(&providers[j], r) {
				g.edges = append(g.edges, Edge{Requester: i, Provider: j})
			}
		}
	}
	g.Recache()
	return g, nil
}

// Recache recomputes every edge cost from the current cost model. Topology is
// left untouched.
func (g *Graph) Recache() {
	for k := range g.edges {
		e := &g.edges[k]
		e.Cost = g.costs.Total(&g.providers[e.Provider], &g.requesters[e.Requester])
	}
}

// Balance rebalances the cost model against this graph's edges and re-caches.
func (g *Graph) Balance(targets map[cost.Component]float64) []cost.Adjustment {
	adj := g.costs.Balance(targets, g)
	if len(adj) > 0 {
		g.Recache()
	}
	return adj
}

// Edges returns the eligible edges. Callers must not modify them.
func (g *Graph) Edges() []Edge { return g.edges }

// Len implements cost.Pairs.
func (g *Graph) Len() int { return len(g.edges) }

// Pair implements cost.Pairs.
func (g *Graph) Pair(i int) (*model.Provider, *model.Requester) {
	e := g.edges[i]
	return &g.providers[e.Provider], &g.requesters[e.Requester]
}

// Costs returns the cost model edges are cached from.
func (g *Graph) Costs() *cost.Model { return g.costs }

// Requesters returns all requesters.
func (g *Graph) Requesters() []model.Requester { return g.requesters }

// Providers returns all providers.
func (g *Graph) Providers() []model.Provider { return g.providers }

// Requester looks up a requester by id.
func (g *Graph) Requester(id int) (*model.Requester, error) {
	if id < 0 || id >= len(g.requesters) {
		return nil, fmt.Errorf("%w: requester %d of %d", ErrInvalidReference, id, len(g.requesters))
	}
	return &g.requesters[id], nil
}

// Provider looks up a provider by id.
func (g *Graph) Provider(id int) (*model.Provider, error) {
	if id < 0 || id >= len(g.providers) {
		return nil, fmt.Errorf("%w: provider %d of %d", ErrInvalidReference, id, len(g.providers))
	}
	return &g.providers[id], nil
}

// MaxFlowValue is the largest number of pairs any matching can contain:
// the smaller of the requester count and the summed provider capacity.
func (g *Graph) MaxFlowValue() int {
	return min(len(g.requesters), model.TotalCapacity(g.providers))
}

// MaxEdgeCost is the largest cached edge cost, 0 for an empty graph.
func (g *Graph) MaxEdgeCost() float64 {
	var m float64
	for _, e := range g.edges {
		m = max(m, e.Cost)
	}
	return m
}

// Validate checks a matching against the graph: every endpoint exists, no
// requester is used twice, no provider beyond its capacity, and every pair is
// eligible. Any violation is reported as ErrIntegrity.
func (g *Graph) Validate(matching []Edge) error {
	reqUsed := make([]bool, len(g.requesters))
	provUsed := make([]int, len(g.providers))
	for _, e := range matching {
		r, err := g.Requester(e.Requester)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrIntegrity, err)
		}
		p, err := g.Provider(e.Provider)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrIntegrity, err)
		}
		if reqUsed[e.Requester] {
			return fmt.Errorf("%w: requester %s matched more than once", ErrIntegrity, r.UUID)
		}
		reqUsed[e.Requester] = true
		provUsed[e.Provider]++
		if provUsed[e.Provider] > p.Capacity {
			return fmt.Errorf("%w: provider %s matched beyond capacity %d", ErrIntegrity, p.UUID, p.Capacity)
		}
		if !Eligible(p, r) {
			return fmt.Errorf("%w: pair %s/%s is not eligible", ErrIntegrity, r.UUID, p.UUID)
		}
	}
	return nil
}
