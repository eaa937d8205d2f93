package models

import (
	"fmt"

	"github.com/paulmach/orb"
)

// Coordinates represents a geographic point
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Point returns the coordinates as an orb point ([lon, lat] order)
func (c Coordinates) Point() orb.Point {
	return orb.Point{c.Lng, c.Lat}
}

// RoundCoordinate rounds a coordinate to 5 decimal places (~1m precision).
// Cache keys and same-point checks must round the same way.
func RoundCoordinate(v float64) float64 {
	if v < 0 {
		return float64(int(v*100000-0.5)) / 100000
	}
	return float64(int(v*100000+0.5)) / 100000
}

// Segment is an undriven street record supplied by the caller.
// Geometry points are [lon, lat]. OSMID of 0 means no id is known.
type Segment struct {
	Geometry orb.LineString `json:"geometry"`
	OSMID    int64          `json:"osm_id,omitempty"`
}

// EdgeRef identifies one directed edge instance in the road graph.
// Key discriminates parallel edges between the same node pair.
type EdgeRef struct {
	U   int64 `json:"u"`
	V   int64 `json:"v"`
	Key int64 `json:"key"`
}

func (e EdgeRef) String() string {
	return fmt.Sprintf("%d->%d#%d", e.U, e.V, e.Key)
}

// less orders EdgeRefs lexicographically by (U, V, Key).
func (e EdgeRef) less(o EdgeRef) bool {
	if e.U != o.U {
		return e.U < o.U
	}
	if e.V != o.V {
		return e.V < o.V
	}
	return e.Key < o.Key
}

// RequirementID identifies one physical street segment that must be
// traversed. It wraps a canonically ordered pair of directed edge
// options (or a single option for one-way streets) and is comparable,
// so it can be used directly as a map key. Constructing the id from
// either direction of the same street yields an equal value.
type RequirementID struct {
	a, b   EdgeRef
	paired bool
}

// SingleRequirement builds a requirement id for an edge with no
// matched reverse direction.
func SingleRequirement(ref EdgeRef) RequirementID {
	return RequirementID{a: ref}
}

// PairedRequirement builds a requirement id for a street traversable
// in both directions. Argument order does not matter.
func PairedRequirement(fwd, rev EdgeRef) RequirementID {
	if rev.less(fwd) {
		fwd, rev = rev, fwd
	}
	return RequirementID{a: fwd, b: rev, paired: true}
}

// Edges returns the edge refs the id was built from.
func (id RequirementID) Edges() []EdgeRef {
	if id.paired {
		return []EdgeRef{id.a, id.b}
	}
	return []EdgeRef{id.a}
}

// Contains reports whether ref is one of the id's edges.
func (id RequirementID) Contains(ref EdgeRef) bool {
	return id.a == ref || (id.paired && id.b == ref)
}

func (id RequirementID) String() string {
	if id.paired {
		return fmt.Sprintf("req[%s|%s]", id.a, id.b)
	}
	return fmt.Sprintf("req[%s]", id.a)
}

// RouteLeg is a routing capability's answer for one leg between two
// points. Geometry points are [lon, lat].
type RouteLeg struct {
	Geometry       orb.LineString `json:"geometry"`
	DistanceMeters float64        `json:"distance_meters"`
	DurationSecs   float64        `json:"duration_secs"`
}

// RouteCacheEntry is a cached routing-service leg between two points
type RouteCacheEntry struct {
	Origin           Coordinates `json:"origin"`
	Destination      Coordinates `json:"destination"`
	GeometryPolyline string      `json:"geometry_polyline"`
	DistanceMeters   float64     `json:"distance_meters"`
	DurationSecs     float64     `json:"duration_secs"`
}

// RouteStats summarizes one solved route. Distances are meters.
type RouteStats struct {
	TotalDistance            float64 `json:"total_distance"`
	RequiredDistance         float64 `json:"required_distance"`
	DeadheadDistance         float64 `json:"deadhead_distance"`
	DeadheadPercentage       float64 `json:"deadhead_percentage"`
	RequiredCount            int     `json:"required_count"`
	CompletedCount           int     `json:"completed_count"`
	SkippedDisconnectedCount int     `json:"skipped_disconnected_count"`
	Iterations               int     `json:"iterations"`
}

// RouteResult is the solver output: one continuous coordinate path
// covering the mapped requirements, plus traversal stats.
type RouteResult struct {
	Coordinates    orb.LineString `json:"coordinates"`
	Stats          RouteStats     `json:"stats"`
	TraversedEdges []EdgeRef      `json:"traversed_edges"`
}
