package mapping

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// feetPerDegreeLat approximates one degree of latitude in feet. Good
// enough for match tolerances of a few hundred feet.
const feetPerDegreeLat = 364000.0

// feetProjection scales [lon, lat] degrees into a local planar frame
// measured in feet, anchored at ref.
type feetProjection struct {
	ref    orb.Point
	lonFt  float64
	latFt  float64
}

func newFeetProjection(ref orb.Point) feetProjection {
	return feetProjection{
		ref:   ref,
		lonFt: feetPerDegreeLat * math.Cos(ref[1]*math.Pi/180),
		latFt: feetPerDegreeLat,
	}
}

func (p feetProjection) point(pt orb.Point) orb.Point {
	return orb.Point{(pt[0] - p.ref[0]) * p.lonFt, (pt[1] - p.ref[1]) * p.latFt}
}

func (p feetProjection) line(ls orb.LineString) orb.LineString {
	out := make(orb.LineString, len(ls))
	for i, pt := range ls {
		out[i] = p.point(pt)
	}
	return out
}

// lineToLineDistanceFeet measures how far apart two polylines are in a
// local planar frame: the larger of the two directed average
// vertex-to-polyline distances. Small values mean the lines trace the
// same street.
func lineToLineDistanceFeet(a, b orb.LineString) float64 {
	if len(a) == 0 || len(b) == 0 {
		return math.Inf(1)
	}
	proj := newFeetProjection(a[0])
	pa := proj.line(a)
	pb := proj.line(b)
	return math.Max(directedAvgDistance(pa, pb), directedAvgDistance(pb, pa))
}

func directedAvgDistance(from, to orb.LineString) float64 {
	if len(to) == 1 {
		to = orb.LineString{to[0], to[0]}
	}
	sum := 0.0
	for _, pt := range from {
		sum += planar.DistanceFrom(to, pt)
	}
	return sum / float64(len(from))
}

// pointToLineDistanceFeet measures the planar distance from a point to
// a polyline in feet.
func pointToLineDistanceFeet(pt orb.Point, line orb.LineString) float64 {
	if len(line) == 0 {
		return math.Inf(1)
	}
	proj := newFeetProjection(pt)
	scaled := proj.line(line)
	if len(scaled) == 1 {
		scaled = orb.LineString{scaled[0], scaled[0]}
	}
	return planar.DistanceFrom(scaled, proj.point(pt))
}

// midpoint returns the middle vertex of a polyline
func midpoint(ls orb.LineString) orb.Point {
	return ls[len(ls)/2]
}
