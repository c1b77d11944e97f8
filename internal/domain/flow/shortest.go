package flow

import (
	"container/heap"
	"context"
	"fmt"
	"math"
)

const unreachable = math.MaxInt64

// Result summarizes a successive-shortest-paths run.
type Result struct {
	Flow          int64 // total units sent from source to sink
	Augmentations int   // number of augmenting paths used
}

// SuccessiveShortestPaths sends as much flow as possible from source to sink,
// always along a cheapest residual path, yielding a minimum-cost maximum flow.
// Paths are found with Dijkstra over reduced costs (Johnson potentials). If the
// residual network starts with negative-cost arcs, potentials are seeded with
// Bellman-Ford first; negative cycles are not supported.
func SuccessiveShortestPaths(ctx context.Context, n *Network, source, sink int) (Result, error) {
	var res Result
	if source < 0 || source >= n.nodes || sink < 0 || sink >= n.nodes || source == sink {
		return res, fmt.Errorf("%w: source %d sink %d", ErrInvalidNode, source, sink)
	}

	potential, err := n.initialPotential(source)
	if err != nil {
		return res, err
	}
	dist := make([]int64, n.nodes)
	prev := make([]int, n.nodes)
	done := make([]bool, n.nodes)
	pq := &nodeQueue{}

	for {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("successive shortest paths: %w", err)
		}
		if !n.dijkstra(source, sink, potential, dist, prev, done, pq) {
			return res, nil
		}

		// Keep reduced costs non-negative: nodes settled beyond the sink are
		// shifted by the sink distance only.
		ds := dist[sink]
		for v := range potential {
			potential[v] += min(dist[v], ds)
		}

		amount := int64(math.MaxInt64)
		for v := sink; v != source; v = n.tail[prev[v]] {
			amount = min(amount, n.residual[prev[v]])
		}
		for v := sink; v != source; v = n.tail[prev[v]] {
			if err := n.Push(prev[v], amount); err != nil {
				return res, err
			}
		}
		res.Flow += amount
		res.Augmentations++
	}
}

// dijkstra computes reduced-cost distances from source and stops once sink is
// settled. It reports whether sink is reachable.
func (n *Network) dijkstra(source, sink int, potential, dist []int64, prev []int, done []bool, pq *nodeQueue) bool {
	for v := range dist {
		dist[v] = unreachable
		prev[v] = -1
		done[v] = false
	}
	*pq = (*pq)[:0]
	dist[source] = 0
	heap.Push(pq, queued{node: source})

	for pq.Len() > 0 {
		it := heap.Pop(pq).(queued)
		u := it.node
		if done[u] || it.dist > dist[u] {
			continue
		}
		done[u] = true
		if u == sink {
			return true
		}
		for _, e := range n.out[u] {
			if n.residual[e] <= 0 {
				continue
			}
			v := n.head[e]
			if done[v] {
				continue
			}
			nd := dist[u] + n.cost[e] + potential[u] - potential[v]
			if nd < dist[v] {
				dist[v] = nd
				prev[v] = e
				heap.Push(pq, queued{node: v, dist: nd})
			}
		}
	}
	return false
}

// initialPotential returns zero potentials when every residual arc is
// non-negative, and Bellman-Ford distances from source otherwise.
func (n *Network) initialPotential(source int) ([]int64, error) {
	potential := make([]int64, n.nodes)
	negative := false
	for e := range n.tail {
		if n.residual[e] > 0 && n.cost[e] < 0 {
			negative = true
			break
		}
	}
	if !negative {
		return potential, nil
	}

	for v := range potential {
		potential[v] = unreachable
	}
	potential[source] = 0
	for i := 0; i < n.nodes; i++ {
		changed := false
		for e := range n.tail {
			u := n.tail[e]
			if n.residual[e] <= 0 || potential[u] == unreachable {
				continue
			}
			if d := potential[u] + n.cost[e]; d < potential[n.head[e]] {
				potential[n.head[e]] = d
				changed = true
			}
		}
		if !changed {
			break
		}
		if i == n.nodes-1 {
			return nil, fmt.Errorf("%w: negative cycle in residual network", ErrCorrupt)
		}
	}
	// Unreachable nodes never join a path; any finite value keeps them inert.
	for v := range potential {
		if potential[v] == unreachable {
			potential[v] = 0
		}
	}
	return potential, nil
}

type queued struct {
	node int
	dist int64
}

type nodeQueue []queued

func (q nodeQueue) Len() int            { return len(q) }
func (q nodeQueue) Less(i, j int) bool  { return q[i].dist < q[j].dist }
func (q nodeQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *nodeQueue) Push(x interface{}) { *q = append(*q, x.(queued)) }
func (q *nodeQueue) Pop() interface{} {
	old := *q
	it := old[len(old)-1]
	*q = old[:len(old)-1]
	return it
}
