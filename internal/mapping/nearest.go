package mapping

import (
	"math"

	"github.com/paulmach/orb"

	"street-coverage-router/internal/graph"
	"street-coverage-router/internal/models"
)

// nearestEdgeIndex is a uniform-grid spatial index over edge
// geometries, built once per solve so the fallback pass can answer a
// whole batch of nearest-edge queries without scanning every edge per
// query.
type nearestEdgeIndex struct {
	net      *graph.Network
	cache    *graph.GeometryCache
	proj     feetProjection
	cellFeet float64
	cells    map[[2]int][]models.EdgeRef
}

type nearestHit struct {
	ref          models.EdgeRef
	distanceFeet float64
}

func buildNearestEdgeIndex(net *graph.Network, cache *graph.GeometryCache, cellFeet float64) *nearestEdgeIndex {
	idx := &nearestEdgeIndex{
		net:      net,
		cache:    cache,
		cellFeet: cellFeet,
		cells:    make(map[[2]int][]models.EdgeRef),
	}

	edges := net.Edges()
	if len(edges) == 0 {
		return idx
	}

	// Anchor the planar frame at the first edge's U node.
	if c, ok := net.NodeCoords(edges[0].U); ok {
		idx.proj = newFeetProjection(c.Point())
	} else {
		idx.proj = newFeetProjection(orb.Point{})
	}

	for _, ref := range edges {
		geom := cache.EdgeGeometry(net, ref)
		if len(geom) == 0 {
			continue
		}
		minC, maxC := idx.cellRange(geom)
		for cx := minC[0]; cx <= maxC[0]; cx++ {
			for cy := minC[1]; cy <= maxC[1]; cy++ {
				key := [2]int{cx, cy}
				idx.cells[key] = append(idx.cells[key], ref)
			}
		}
	}
	return idx
}

func (idx *nearestEdgeIndex) cellOf(pt orb.Point) [2]int {
	p := idx.proj.point(pt)
	return [2]int{int(math.Floor(p[0] / idx.cellFeet)), int(math.Floor(p[1] / idx.cellFeet))}
}

func (idx *nearestEdgeIndex) cellRange(ls orb.LineString) ([2]int, [2]int) {
	minC := idx.cellOf(ls[0])
	maxC := minC
	for _, pt := range ls[1:] {
		c := idx.cellOf(pt)
		if c[0] < minC[0] {
			minC[0] = c[0]
		}
		if c[1] < minC[1] {
			minC[1] = c[1]
		}
		if c[0] > maxC[0] {
			maxC[0] = c[0]
		}
		if c[1] > maxC[1] {
			maxC[1] = c[1]
		}
	}
	return minC, maxC
}

// nearestBatch resolves the nearest edge within maxFeet for each query
// point in one bulk call. A miss is reported with an infinite
// distance.
func (idx *nearestEdgeIndex) nearestBatch(points []orb.Point, maxFeet float64) []nearestHit {
	hits := make([]nearestHit, len(points))
	for i, pt := range points {
		hits[i] = idx.nearest(pt, maxFeet)
	}
	return hits
}

func (idx *nearestEdgeIndex) nearest(pt orb.Point, maxFeet float64) nearestHit {
	best := nearestHit{distanceFeet: math.Inf(1)}
	if len(idx.cells) == 0 {
		return best
	}

	center := idx.cellOf(pt)
	radius := int(math.Ceil(maxFeet/idx.cellFeet)) + 1
	seen := make(map[models.EdgeRef]struct{})

	for cx := center[0] - radius; cx <= center[0]+radius; cx++ {
		for cy := center[1] - radius; cy <= center[1]+radius; cy++ {
			for _, ref := range idx.cells[[2]int{cx, cy}] {
				if _, dup := seen[ref]; dup {
					continue
				}
				seen[ref] = struct{}{}
				d := pointToLineDistanceFeet(pt, idx.cache.EdgeGeometry(idx.net, ref))
				if d < best.distanceFeet {
					best = nearestHit{ref: ref, distanceFeet: d}
				}
			}
		}
	}
	if best.distanceFeet > maxFeet {
		return nearestHit{distanceFeet: math.Inf(1)}
	}
	return best
}
