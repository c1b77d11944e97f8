// Package matching solves the capacitated maximum-cost bipartite matching of
// a graph.Graph as a min-cost flow problem.
//
// Network layout: requesters occupy nodes [0,R), providers [R,R+P), followed
// by the source and the sink.
package matching

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/okian/matchflow/internal/domain/flow"
	"github.com/okian/matchflow/internal/domain/graph"
	"github.com/okian/matchflow/pkg/logger"
)

// Result is a validated matching.
type Result struct {
	Edges     []graph.Edge
	Cost      float64
	Algorithm Algorithm

	WarmStart      int // pairs placed by the greedy start (cycle-canceling only)
	CyclesCanceled int
	Augmentations  int
	Elapsed        time.Duration
}

// Matcher runs one of the flow algorithms against a graph.
type Matcher struct {
	algorithm Algorithm
	log       logger.Logger
}

// Option applies a configuration option to the Matcher.
type Option func(*Matcher)

// WithAlgorithm selects the algorithm (default successive shortest paths).
func WithAlgorithm(a Algorithm) Option {
	return func(m *Matcher) { m.algorithm = a }
}

// WithLogger sets the logger used for solver diagnostics.
func WithLogger(l logger.Logger) Option {
	return func(m *Matcher) {
		if l != nil {
			m.log = l
		}
	}
}

// New creates a Matcher.
func New(opts ...Option) *Matcher {
	m := &Matcher{algorithm: SuccessiveShortestPaths, log: logger.Nop()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Match is a convenience wrapper around New(WithAlgorithm(a)).Match.
func Match(ctx context.Context, g *graph.Graph, a Algorithm) (Result, error) {
	return New(WithAlgorithm(a)).Match(ctx, g)
}

// Match computes a maximum-cost matching of g. The matching is validated
// against g before it is returned; a violation is an error, never a result.
func (m *Matcher) Match(ctx context.Context, g *graph.Graph) (Result, error) {
	start := time.Now()

	var (
		res Result
		err error
	)
	switch m.algorithm {
	case SuccessiveShortestPaths:
		res, err = solveShortestPaths(ctx, g)
	case CycleCanceling:
		res, err = solveCycleCanceling(ctx, g)
	default:
		return Result{}, fmt.Errorf("%w: %v", ErrUnknownAlgorithm, m.algorithm)
	}
	if err != nil {
		return Result{}, err
	}
	if err := g.Validate(res.Edges); err != nil {
		return Result{}, err
	}
	res.Algorithm = m.algorithm
	res.Elapsed = time.Since(start)

	m.log.Debug(ctx, "matching solved",
		logger.String("algorithm", m.algorithm.String()),
		logger.Int("requesters", len(g.Requesters())),
		logger.Int("providers", len(g.Providers())),
		logger.Int("edges", g.Len()),
		logger.Int("matches", len(res.Edges)),
		logger.Float64("cost", res.Cost),
		logger.Int("warm_start", res.WarmStart),
		logger.Int("cycles_canceled", res.CyclesCanceled),
		logger.Int("augmentations", res.Augmentations),
		logger.Duration("elapsed", res.Elapsed),
	)
	return res, nil
}

// network is the flow network of a graph plus the arc ids needed to read the
// solution back.
type network struct {
	*flow.Network
	source, sink int
	requesterArc []int // source -> requester
	edgeArc      []int // requester -> provider, indexed like g.Edges()
	providerArc  []int // provider -> sink
}

// buildNetwork lays out the common part of both formulations. arcCost maps an
// edge's fixed-point cost to the cost of its requester->provider arc.
func buildNetwork(g *graph.Graph, fixed []int64, arcCost func(int64) int64) (*network, error) {
	nr, np := len(g.Requesters()), len(g.Providers())
	n := &network{
		Network:      flow.NewNetwork(nr + np + 2),
		source:       nr + np,
		sink:         nr + np + 1,
		requesterArc: make([]int, nr),
		edgeArc:      make([]int, g.Len()),
		providerArc:  make([]int, np),
	}
	n.Grow(nr + np + g.Len() + max(nr, np) + 1)

	var err error
	for r := 0; r < nr; r++ {
		if n.requesterArc[r], err = n.AddArc(n.source, r, 1, 0); err != nil {
			return nil, err
		}
	}
	for i, e := range g.Edges() {
		if n.edgeArc[i], err = n.AddArc(e.Requester, nr+e.Provider, 1, arcCost(fixed[i])); err != nil {
			return nil, err
		}
	}
	for p, prov := range g.Providers() {
		if n.providerArc[p], err = n.AddArc(nr+p, n.sink, int64(prov.Capacity), 0); err != nil {
			return nil, err
		}
	}
	return n, nil
}

// matched collects edges whose requester->provider arc is saturated.
func (n *network) matched(g *graph.Graph) []graph.Edge {
	var out []graph.Edge
	for i, e := range g.Edges() {
		if n.Residual(n.edgeArc[i]) == 0 {
			out = append(out, e)
		}
	}
	return out
}

func fixedCosts(g *graph.Graph) (costs []int64, maxCost int64) {
	costs = make([]int64, g.Len())
	for i, e := range g.Edges() {
		costs[i] = toFixed(e.Cost)
		maxCost = max(maxCost, costs[i])
	}
	return costs, maxCost
}

// solveCycleCanceling seeds the network with a greedy matching, routes the
// remaining flow through a zero-cost source->sink shortcut and cancels
// negative cycles until the flow is cost-optimal.
func solveCycleCanceling(ctx context.Context, g *graph.Graph) (Result, error) {
	fixed, _ := fixedCosts(g)
	n, err := buildNetwork(g, fixed, func(c int64) int64 { return -c })
	if err != nil {
		return Result{}, err
	}
	target := int64(g.MaxFlowValue())
	shortcut, err := n.AddArc(n.source, n.sink, target, 0)
	if err != nil {
		return Result{}, err
	}

	seed := greedy(g, fixed)
	for _, i := range seed {
		e := g.Edges()[i]
		for _, arc := range []int{n.requesterArc[e.Requester], n.edgeArc[i], n.providerArc[e.Provider]} {
			if err := n.Push(arc, 1); err != nil {
				return Result{}, err
			}
		}
	}
	if err := n.Push(shortcut, target-int64(len(seed))); err != nil {
		return Result{}, err
	}

	canceled, err := flow.CancelNegativeCycles(ctx, n.Network)
	if err != nil {
		return Result{}, err
	}
	if err := n.Validate(); err != nil {
		return Result{}, fmt.Errorf("%w: %w", graph.ErrIntegrity, err)
	}
	return Result{
		Edges:          n.matched(g),
		Cost:           fromFixed(-n.Cost()),
		WarmStart:      len(seed),
		CyclesCanceled: canceled,
	}, nil
}

// greedy returns edge indices of a feasible matching built by taking edges in
// descending cost order while both endpoints have room left.
func greedy(g *graph.Graph, fixed []int64) []int {
	order := make([]int, g.Len())
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int { return cmp.Compare(fixed[b], fixed[a]) })

	covered := make([]bool, len(g.Requesters()))
	load := make([]int, len(g.Providers()))
	var picked []int
	for _, i := range order {
		e := g.Edges()[i]
		if covered[e.Requester] || load[e.Provider] >= g.Providers()[e.Provider].Capacity {
			continue
		}
		covered[e.Requester] = true
		load[e.Provider]++
		picked = append(picked, i)
	}
	return picked
}

// solveShortestPaths shifts every edge arc by twice the largest edge cost so
// that all costs are non-negative, adds bypass arcs on the tighter side so the
// full flow value is always reachable, and runs successive shortest paths.
// All arc costs are scaled by target+1 and each bypass pays one unit more than
// the shift, so among maximum-cost matchings the one with the most pairs wins.
func solveShortestPaths(ctx context.Context, g *graph.Graph) (Result, error) {
	fixed, maxCost := fixedCosts(g)
	target := int64(g.MaxFlowValue())
	scale := target + 1
	additional := 2 * maxCost
	n, err := buildNetwork(g, fixed, func(c int64) int64 { return scale * (additional - c) })
	if err != nil {
		return Result{}, err
	}

	bypass := scale*additional + 1
	nr := len(g.Requesters())
	if int64(nr) <= target {
		for r := 0; r < nr; r++ {
			if _, err := n.AddArc(r, n.sink, 1, bypass); err != nil {
				return Result{}, err
			}
		}
	} else {
		for p, prov := range g.Providers() {
			if _, err := n.AddArc(n.source, nr+p, int64(prov.Capacity), bypass); err != nil {
				return Result{}, err
			}
		}
	}

	res, err := flow.SuccessiveShortestPaths(ctx, n.Network, n.source, n.sink)
	if err != nil {
		return Result{}, err
	}
	if res.Flow != target {
		return Result{}, fmt.Errorf("%w: sent %d, expected %d", ErrFlowValue, res.Flow, target)
	}
	if err := n.Validate(); err != nil {
		return Result{}, fmt.Errorf("%w: %w", graph.ErrIntegrity, err)
	}
	var cost int64
	for i := range g.Edges() {
		if n.Residual(n.edgeArc[i]) == 0 {
			cost += fixed[i]
		}
	}
	return Result{
		Edges:         n.matched(g),
		Cost:          fromFixed(cost),
		Augmentations: res.Augmentations,
	}, nil
}
