package graph

import (
	"fmt"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"gonum.org/v1/gonum/graph/multi"

	"street-coverage-router/internal/models"
)

// Network is a directed road multigraph: parallel edges between the
// same node pair are kept as separate weighted lines, and each edge
// carries an optional stored geometry and OSM way id. The graph is
// loaded once by the caller and read-only during a solve.
type Network struct {
	g      *multi.WeightedDirectedGraph
	coords map[int64]models.Coordinates
	geoms  map[models.EdgeRef]orb.LineString
	osmIDs map[models.EdgeRef]int64
	byOSM  map[int64][]models.EdgeRef
	edges  []models.EdgeRef
}

// NewNetwork creates an empty road network
func NewNetwork() *Network {
	return &Network{
		g:      multi.NewWeightedDirectedGraph(),
		coords: make(map[int64]models.Coordinates),
		geoms:  make(map[models.EdgeRef]orb.LineString),
		osmIDs: make(map[models.EdgeRef]int64),
		byOSM:  make(map[int64][]models.EdgeRef),
	}
}

// AddNode registers a graph vertex with its coordinates. Adding the
// same id twice updates the coordinates.
func (n *Network) AddNode(id int64, lat, lng float64) {
	if n.g.Node(id) == nil {
		n.g.AddNode(multi.Node(id))
	}
	n.coords[id] = models.Coordinates{Lat: lat, Lng: lng}
}

// AddEdge adds a directed edge from u to v with its length in meters.
// geom may be nil (a straight line between the nodes is assumed) and
// osmID may be 0 (no id known). The returned EdgeRef's key is unique
// within the network.
func (n *Network) AddEdge(u, v int64, lengthMeters float64, geom orb.LineString, osmID int64) (models.EdgeRef, error) {
	if u == v {
		return models.EdgeRef{}, fmt.Errorf("self-loop edge at node %d is not supported", u)
	}
	if _, ok := n.coords[u]; !ok {
		return models.EdgeRef{}, fmt.Errorf("edge references unknown node %d", u)
	}
	if _, ok := n.coords[v]; !ok {
		return models.EdgeRef{}, fmt.Errorf("edge references unknown node %d", v)
	}

	l := n.g.NewWeightedLine(n.g.Node(u), n.g.Node(v), lengthMeters)
	n.g.SetWeightedLine(l)

	ref := models.EdgeRef{U: u, V: v, Key: l.ID()}
	if len(geom) > 0 {
		n.geoms[ref] = geom
	}
	if osmID != 0 {
		n.osmIDs[ref] = osmID
		n.byOSM[osmID] = append(n.byOSM[osmID], ref)
	}
	n.edges = append(n.edges, ref)
	return ref, nil
}

// NodeCoords returns the coordinates of a node
func (n *Network) NodeCoords(id int64) (models.Coordinates, bool) {
	c, ok := n.coords[id]
	return c, ok
}

// HasNode reports whether the node id exists in the network
func (n *Network) HasNode(id int64) bool {
	_, ok := n.coords[id]
	return ok
}

// NodeCount returns the number of nodes
func (n *Network) NodeCount() int { return len(n.coords) }

// EdgeCount returns the number of directed edges
func (n *Network) EdgeCount() int { return len(n.edges) }

// Edges returns all directed edge refs in insertion order
func (n *Network) Edges() []models.EdgeRef { return n.edges }

// EdgeLength returns the length in meters of the referenced edge, or
// 0.0 if the edge does not exist. It never errors.
func (n *Network) EdgeLength(ref models.EdgeRef) float64 {
	it := n.g.WeightedLines(ref.U, ref.V)
	if it == nil {
		return 0
	}
	for it.Next() {
		wl := it.WeightedLine()
		if wl.ID() == ref.Key {
			return wl.Weight()
		}
	}
	return 0
}

// MinEdgeLength returns the minimum length among parallel edges from
// u to v, the best-effort fallback when no key is known. Returns 0.0
// if no such edge exists.
func (n *Network) MinEdgeLength(u, v int64) float64 {
	it := n.g.WeightedLines(u, v)
	if it == nil {
		return 0
	}
	best := 0.0
	found := false
	for it.Next() {
		w := it.WeightedLine().Weight()
		if !found || w < best {
			best = w
			found = true
		}
	}
	return best
}

// OSMCandidates returns the directed edges recorded for an OSM way id
func (n *Network) OSMCandidates(osmID int64) []models.EdgeRef {
	return n.byOSM[osmID]
}

// OSMID returns the OSM way id stored for an edge, or 0
func (n *Network) OSMID(ref models.EdgeRef) int64 {
	return n.osmIDs[ref]
}

// ReverseCandidates returns directed edges v -> u for the given edge.
// If the forward edge carries an OSM id, reverse edges sharing that id
// are preferred; otherwise all reverse edges at the node pair are
// returned.
func (n *Network) ReverseCandidates(ref models.EdgeRef) []models.EdgeRef {
	it := n.g.WeightedLines(ref.V, ref.U)
	if it == nil {
		return nil
	}
	var all []models.EdgeRef
	for it.Next() {
		wl := it.WeightedLine()
		all = append(all, models.EdgeRef{U: ref.V, V: ref.U, Key: wl.ID()})
	}
	if len(all) == 0 {
		return nil
	}

	osmID := n.osmIDs[ref]
	if osmID != 0 {
		var sameWay []models.EdgeRef
		for _, r := range all {
			if n.osmIDs[r] == osmID {
				sameWay = append(sameWay, r)
			}
		}
		if len(sameWay) > 0 {
			return sameWay
		}
	}
	return all
}

// HasOutgoing reports whether any directed edge leaves the node
func (n *Network) HasOutgoing(id int64) bool {
	it := n.g.From(id)
	return it != nil && it.Len() != 0
}

// VisitOutgoing calls fn for every directed edge leaving the node,
// including each parallel edge separately.
func (n *Network) VisitOutgoing(id int64, fn func(ref models.EdgeRef, lengthMeters float64)) {
	nodes := n.g.From(id)
	if nodes == nil {
		return
	}
	for nodes.Next() {
		to := nodes.Node().ID()
		lines := n.g.WeightedLines(id, to)
		if lines == nil {
			continue
		}
		for lines.Next() {
			wl := lines.WeightedLine()
			fn(models.EdgeRef{U: id, V: to, Key: wl.ID()}, wl.Weight())
		}
	}
}

// edgeGeometry returns the stored geometry of an edge oriented so the
// first point is nearer the edge's U node, falling back to a straight
// line between the node coordinates.
func (n *Network) edgeGeometry(ref models.EdgeRef) orb.LineString {
	uc, uok := n.coords[ref.U]
	vc, vok := n.coords[ref.V]

	geom, ok := n.geoms[ref]
	if !ok || len(geom) < 2 {
		if !uok || !vok {
			return nil
		}
		return orb.LineString{uc.Point(), vc.Point()}
	}
	if !uok {
		return geom
	}

	// Orient so the first point is the U end.
	up := uc.Point()
	if planar.DistanceSquared(geom[0], up) > planar.DistanceSquared(geom[len(geom)-1], up) {
		rev := make(orb.LineString, len(geom))
		for i, p := range geom {
			rev[len(geom)-1-i] = p
		}
		return rev
	}
	return geom
}

// GeometryCache memoizes oriented edge geometries for one solve. It is
// created per solve and shared across mapper workers; concurrent
// writes store identical values, so last-write-wins is fine, but the
// map itself still needs locking.
type GeometryCache struct {
	mu sync.Mutex
	m  map[models.EdgeRef]orb.LineString
}

// NewGeometryCache creates an empty solve-scoped geometry cache
func NewGeometryCache() *GeometryCache {
	return &GeometryCache{m: make(map[models.EdgeRef]orb.LineString)}
}

// EdgeGeometry returns the oriented geometry for an edge, memoized
func (c *GeometryCache) EdgeGeometry(n *Network, ref models.EdgeRef) orb.LineString {
	c.mu.Lock()
	if g, ok := c.m[ref]; ok {
		c.mu.Unlock()
		return g
	}
	c.mu.Unlock()

	g := n.edgeGeometry(ref)

	c.mu.Lock()
	c.m[ref] = g
	c.mu.Unlock()
	return g
}
