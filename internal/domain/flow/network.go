// Package flow implements a capacitated min-cost flow network stored as
// parallel arrays, and the solvers that operate on it.
//
// Every arc added with AddArc is paired with a reverse arc of zero capacity
// and negated cost. Forward arcs have even ids, their reverse is id^1.
package flow

import (
	"fmt"
)

// Network is an arena-allocated residual network. Node ids are dense integers
// in [0, Nodes()). It is not safe for concurrent use.
type Network struct {
	nodes int

	tail     []int
	head     []int
	capacity []int64
	residual []int64
	cost     []int64
	reverse  []int

	out [][]int // arc ids leaving each node, forward and reverse
}

// NewNetwork allocates a network with the given number of nodes.
func NewNetwork(nodes int) *Network {
	return &Network{nodes: nodes, out: make([][]int, nodes)}
}

// Grow reserves room for arcs more forward arcs.
func (n *Network) Grow(arcs int) {
	total := len(n.tail) + 2*arcs
	if total <= cap(n.tail) {
		return
	}
	grow := func(s []int64) []int64 { return append(make([]int64, 0, total), s...) }
	growInt := func(s []int) []int { return append(make([]int, 0, total), s...) }
	n.tail, n.head, n.reverse = growInt(n.tail), growInt(n.head), growInt(n.reverse)
	n.capacity, n.residual, n.cost = grow(n.capacity), grow(n.residual), grow(n.cost)
}

// Nodes returns the node count.
func (n *Network) Nodes() int { return n.nodes }

// Arcs returns the number of arcs, reverse arcs included.
func (n *Network) Arcs() int { return len(n.tail) }

// AddArc adds tail->head with the given capacity and per-unit cost and
// returns the forward arc id.
func (n *Network) AddArc(tail, head int, capacity, cost int64) (int, error) {
	if tail < 0 || tail >= n.nodes || head < 0 || head >= n.nodes {
		return -1, fmt.Errorf("%w: arc %d->%d in network of %d nodes", ErrInvalidNode, tail, head, n.nodes)
	}
	if capacity < 0 {
		return -1, fmt.Errorf("%w: %d on arc %d->%d", ErrInvalidCapacity, capacity, tail, head)
	}
	e := len(n.tail)
	n.tail = append(n.tail, tail, head)
	n.head = append(n.head, head, tail)
	n.capacity = append(n.capacity, capacity, 0)
	n.residual = append(n.residual, capacity, 0)
	n.cost = append(n.cost, cost, -cost)
	n.reverse = append(n.reverse, e+1, e)
	n.out[tail] = append(n.out[tail], e)
	n.out[head] = append(n.out[head], e+1)
	return e, nil
}

// Tail returns the node arc e leaves.
func (n *Network) Tail(e int) int { return n.tail[e] }

// Head returns the node arc e enters.
func (n *Network) Head(e int) int { return n.head[e] }

// Reverse returns the paired arc of e.
func (n *Network) Reverse(e int) int { return n.reverse[e] }

// Capacity returns the original capacity of e (0 for reverse arcs).
func (n *Network) Capacity(e int) int64 { return n.capacity[e] }

// Residual returns the remaining capacity of e.
func (n *Network) Residual(e int) int64 { return n.residual[e] }

// ArcCost returns the per-unit cost of e.
func (n *Network) ArcCost(e int) int64 { return n.cost[e] }

// Flow returns the flow on a forward arc.
func (n *Network) Flow(e int) int64 { return n.capacity[e] - n.residual[e] }

// Push sends amount units along e, updating its reverse.
func (n *Network) Push(e int, amount int64) error {
	if e < 0 || e >= len(n.tail) {
		return fmt.Errorf("%w: %d", ErrInvalidArc, e)
	}
	if amount > n.residual[e] {
		return fmt.Errorf("%w: push %d exceeds residual %d on arc %d", ErrInvalidCapacity, amount, n.residual[e], e)
	}
	n.residual[e] -= amount
	n.residual[n.reverse[e]] += amount
	return nil
}

// Cost is the total cost of the current flow, summed over forward arcs.
func (n *Network) Cost() int64 {
	var total int64
	for e := 0; e < len(n.tail); e += 2 {
		total += n.cost[e] * (n.capacity[e] - n.residual[e])
	}
	return total
}

// Excess returns inflow minus outflow at node v.
func (n *Network) Excess(v int) int64 {
	var x int64
	for _, e := range n.out[v] {
		if e%2 == 0 {
			x -= n.Flow(e)
		} else {
			x += n.Flow(n.reverse[e])
		}
	}
	return x
}

// Validate checks the structural invariants of the arena: reverse pairing,
// mirrored endpoints and costs, and residual bounds.
func (n *Network) Validate() error {
	for e := range n.tail {
		r := n.reverse[e]
		switch {
		case r < 0 || r >= len(n.tail):
			return fmt.Errorf("%w: arc %d has reverse %d out of range", ErrCorrupt, e, r)
		case n.reverse[r] != e:
			return fmt.Errorf("%w: reverse of reverse of arc %d is %d", ErrCorrupt, e, n.reverse[r])
		case n.tail[e] != n.head[r] || n.head[e] != n.tail[r]:
			return fmt.Errorf("%w: arc %d endpoints do not mirror its reverse", ErrCorrupt, e)
		case n.cost[e] != -n.cost[r]:
			return fmt.Errorf("%w: arc %d cost does not negate its reverse", ErrCorrupt, e)
		case n.residual[e] < 0:
			return fmt.Errorf("%w: arc %d has negative residual", ErrCorrupt, e)
		case n.residual[e]+n.residual[r] != n.capacity[e]+n.capacity[r]:
			return fmt.Errorf("%w: arc %d residuals do not add up to its capacity", ErrCorrupt, e)
		}
	}
	return nil
}
