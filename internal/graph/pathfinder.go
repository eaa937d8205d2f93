package graph

import (
	"container/heap"

	"street-coverage-router/internal/models"
)

// PathResult is the outcome of an early-exit shortest-path search
type PathResult struct {
	Target   int64
	Distance float64
	Edges    []models.EdgeRef
}

type pqItem struct {
	node int64
	dist float64
}

type pathHeap []pqItem

func (h pathHeap) Len() int            { return len(h) }
func (h pathHeap) Less(i, j int) bool  { return h[i].dist < h[j].dist }
func (h pathHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *pathHeap) Push(x any)         { *h = append(*h, x.(pqItem)) }
func (h *pathHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// ShortestPathToAny runs Dijkstra from source over the directed
// multigraph, weighted by edge length, and stops the moment any popped
// node belongs to targets. This bounds the cost of a call to the
// distance of the nearest target rather than the network diameter.
//
// If source is itself a target the zero-length result is returned
// immediately. Returns false if no target is reachable.
func ShortestPathToAny(n *Network, source int64, targets map[int64]struct{}) (*PathResult, bool) {
	if _, ok := targets[source]; ok {
		return &PathResult{Target: source, Distance: 0, Edges: nil}, true
	}
	if len(targets) == 0 || !n.HasNode(source) {
		return nil, false
	}

	dist := map[int64]float64{source: 0}
	settled := map[int64]struct{}{}
	// Predecessor edge per visited node, for path reconstruction.
	pred := map[int64]models.EdgeRef{}

	h := &pathHeap{{node: source, dist: 0}}
	heap.Init(h)

	for h.Len() > 0 {
		cur := heap.Pop(h).(pqItem)
		if _, done := settled[cur.node]; done {
			continue
		}
		settled[cur.node] = struct{}{}

		if _, hit := targets[cur.node]; hit {
			return &PathResult{
				Target:   cur.node,
				Distance: cur.dist,
				Edges:    reconstruct(pred, source, cur.node),
			}, true
		}

		n.VisitOutgoing(cur.node, func(ref models.EdgeRef, length float64) {
			if _, done := settled[ref.V]; done {
				return
			}
			d := cur.dist + length
			if best, seen := dist[ref.V]; !seen || d < best {
				dist[ref.V] = d
				pred[ref.V] = ref
				heap.Push(h, pqItem{node: ref.V, dist: d})
			}
		})
	}
	return nil, false
}

// reconstruct walks predecessor edges from target back to source and
// reverses the result into forward order.
func reconstruct(pred map[int64]models.EdgeRef, source, target int64) []models.EdgeRef {
	var edges []models.EdgeRef
	for at := target; at != source; {
		ref, ok := pred[at]
		if !ok {
			return nil
		}
		edges = append(edges, ref)
		at = ref.U
	}
	for i, j := 0, len(edges)-1; i < j; i, j = i+1, j-1 {
		edges[i], edges[j] = edges[j], edges[i]
	}
	return edges
}
