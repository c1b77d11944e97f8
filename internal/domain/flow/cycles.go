package flow

import (
	"context"
	"fmt"
)

// CancelNegativeCycles improves the current feasible flow by repeatedly
// detecting a negative-cost cycle in the residual network (Bellman-Ford) and
// saturating it, until none remains. The flow value is unchanged; the result
// is a minimum-cost flow of that value. It returns the number of cycles
// canceled.
func CancelNegativeCycles(ctx context.Context, n *Network) (int, error) {
	dist := make([]int64, n.nodes)
	pred := make([]int, n.nodes)

	canceled := 0
	for {
		if err := ctx.Err(); err != nil {
			return canceled, fmt.Errorf("cancel negative cycles: %w", err)
		}
		cycle := n.negativeCycle(dist, pred)
		if cycle == nil {
			return canceled, nil
		}
		amount := n.residual[cycle[0]]
		for _, e := range cycle[1:] {
			amount = min(amount, n.residual[e])
		}
		for _, e := range cycle {
			if err := n.Push(e, amount); err != nil {
				return canceled, err
			}
		}
		canceled++
	}
}

// negativeCycle returns the arcs of a negative residual cycle, or nil.
// dist and pred are scratch buffers of length Nodes().
func (n *Network) negativeCycle(dist []int64, pred []int) []int {
	for v := range dist {
		dist[v] = 0 // virtual source connected to every node
		pred[v] = -1
	}

	last := -1
	for i := 0; i < n.nodes; i++ {
		last = -1
		for e := range n.tail {
			if n.residual[e] <= 0 {
				continue
			}
			u, v := n.tail[e], n.head[e]
			if d := dist[u] + n.cost[e]; d < dist[v] {
				dist[v] = d
				pred[v] = e
				last = v
			}
		}
		if last == -1 {
			return nil
		}
	}

	// A relaxation in the final round means last is on, or hangs off, a
	// cycle of the predecessor graph. Walking back Nodes() steps lands on it.
	v := last
	for i := 0; i < n.nodes; i++ {
		if pred[v] < 0 {
			return nil
		}
		v = n.tail[pred[v]]
	}

	var cycle []int
	var total int64
	for u := v; ; {
		e := pred[u]
		if e < 0 || len(cycle) > n.nodes {
			return nil
		}
		cycle = append(cycle, e)
		total += n.cost[e]
		u = n.tail[e]
		if u == v {
			break
		}
	}
	if total >= 0 {
		return nil
	}
	// Collected head-to-tail; order does not matter for pushing.
	return cycle
}
