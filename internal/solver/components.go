package solver

import (
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// partition splits requirements into connectivity components. An
// auxiliary undirected graph gets one edge per requirement (its
// representative option's endpoints); requirements whose
// representatives touch end up in the same component, so the solver
// can finish one region before bridging to the next.
func (s *solver) partition() {
	aux := simple.NewUndirectedGraph()

	addNode := func(id int64) {
		if aux.Node(id) == nil {
			aux.AddNode(simple.Node(id))
		}
	}

	for id := range s.options {
		rep := s.shortestOption(id)
		addNode(rep.U)
		addNode(rep.V)
		if rep.U != rep.V && !aux.HasEdgeBetween(rep.U, rep.V) {
			aux.SetEdge(aux.NewEdge(aux.Node(rep.U), aux.Node(rep.V)))
		}
	}

	for compIdx, nodes := range topo.ConnectedComponents(aux) {
		for _, n := range nodes {
			s.nodeComp[n.ID()] = compIdx
		}
	}

	for id := range s.options {
		rep := s.shortestOption(id)
		comp := s.nodeComp[rep.U]
		s.compOf[id] = comp
		s.compUnvisited[comp]++
		if s.compNodes[comp] == nil {
			s.compNodes[comp] = make(map[int64]int)
		}
		for _, start := range s.reqStarts[id] {
			s.compNodes[comp][start]++
		}
	}
}
