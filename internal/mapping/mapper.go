package mapping

import (
	"context"
	"fmt"
	"log"
	"math"
	"runtime"

	"github.com/paulmach/orb"
	"golang.org/x/sync/errgroup"

	"street-coverage-router/internal/graph"
	"street-coverage-router/internal/models"
)

// Config holds mapper tunables
type Config struct {
	// MaxSegments caps how many input segments are considered.
	MaxSegments int
	// MaxOSMMatchDistanceFeet is the pass-1 acceptance tolerance.
	MaxOSMMatchDistanceFeet float64
	// MaxSpatialMatchDistanceFeet is the pass-2 acceptance tolerance.
	MaxSpatialMatchDistanceFeet float64
	// Workers bounds the pass-1 pool; 0 means GOMAXPROCS.
	Workers int
}

// Result is the mapper output: deduplicated requirements keyed by
// identity, plus how many input segments backed each one.
type Result struct {
	Requirements  map[models.RequirementID][]models.EdgeRef
	SegmentCounts map[models.RequirementID]int
	Matched       int
	Skipped       int
}

// ErrMappingFailed is returned when no requirement could be produced
// from any input segment
type ErrMappingFailed struct {
	TotalSegments int
	Skipped       int
}

func (e *ErrMappingFailed) Error() string {
	return fmt.Sprintf("segment mapping failed: 0 of %d segments matched (%d skipped)", e.TotalSegments, e.Skipped)
}

// Mapper matches undriven street segments onto directed graph edges
type Mapper struct {
	net   *graph.Network
	cache *graph.GeometryCache
	cfg   Config
}

// NewMapper creates a segment mapper over a loaded network. The
// geometry cache must be the solve-scoped cache shared with the
// solver.
func NewMapper(net *graph.Network, cache *graph.GeometryCache, cfg Config) *Mapper {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	return &Mapper{net: net, cache: cache, cfg: cfg}
}

// Map runs the two matching passes and builds requirements. Matching
// is best-effort per segment; only producing zero requirements from a
// non-empty input is an error.
func (m *Mapper) Map(ctx context.Context, segments []models.Segment) (*Result, error) {
	if m.cfg.MaxSegments > 0 && len(segments) > m.cfg.MaxSegments {
		log.Printf("[MAPPER] Capping segments: %d -> %d", len(segments), m.cfg.MaxSegments)
		segments = segments[:m.cfg.MaxSegments]
	}

	res := &Result{
		Requirements:  make(map[models.RequirementID][]models.EdgeRef),
		SegmentCounts: make(map[models.RequirementID]int),
	}
	if len(segments) == 0 {
		return res, nil
	}

	matched := make([]*models.EdgeRef, len(segments))
	usable := make([]bool, len(segments))
	for i, seg := range segments {
		if len(seg.Geometry) >= 2 {
			usable[i] = true
		} else {
			res.Skipped++
		}
	}

	// Pass 1: exact OSM-id match. Per-segment geometry work is
	// independent and CPU-bound, so it runs on a bounded pool.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.cfg.Workers)
	for i := range segments {
		if !usable[i] || segments[i].OSMID == 0 {
			continue
		}
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			matched[i] = m.matchByOSMID(segments[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("segment mapping aborted: %w", err)
	}

	pass1 := 0
	for i := range matched {
		if matched[i] != nil {
			pass1++
		}
	}
	log.Printf("[MAPPER] Pass 1 (osm id): matched=%d of %d segments", pass1, len(segments))

	// Pass 2: spatial fallback by polyline midpoint, one batched
	// nearest-edge query for all leftovers.
	var fallbackIdx []int
	var fallbackPts []orb.Point
	for i := range segments {
		if usable[i] && matched[i] == nil {
			fallbackIdx = append(fallbackIdx, i)
			fallbackPts = append(fallbackPts, midpoint(segments[i].Geometry))
		}
	}
	if len(fallbackPts) > 0 {
		idx := buildNearestEdgeIndex(m.net, m.cache, 2*m.cfg.MaxSpatialMatchDistanceFeet)
		hits := idx.nearestBatch(fallbackPts, m.cfg.MaxSpatialMatchDistanceFeet)
		pass2 := 0
		for j, hit := range hits {
			if math.IsInf(hit.distanceFeet, 1) {
				continue
			}
			ref := hit.ref
			matched[fallbackIdx[j]] = &ref
			pass2++
		}
		log.Printf("[MAPPER] Pass 2 (spatial): matched=%d of %d leftover segments", pass2, len(fallbackPts))
	}

	for i := range segments {
		if !usable[i] {
			continue
		}
		if matched[i] == nil {
			res.Skipped++
			continue
		}
		id, options := MakeRequirement(m.net, *matched[i])
		if _, exists := res.Requirements[id]; !exists {
			res.Requirements[id] = options
		}
		res.SegmentCounts[id]++
		res.Matched++
	}

	if res.Matched == 0 {
		return nil, &ErrMappingFailed{TotalSegments: len(segments), Skipped: res.Skipped}
	}

	log.Printf("[MAPPER] Done: segments=%d matched=%d skipped=%d requirements=%d",
		len(segments), res.Matched, res.Skipped, len(res.Requirements))
	return res, nil
}

// matchByOSMID returns the candidate edge sharing the segment's OSM id
// that lies closest to the segment geometry, or nil when none is
// within tolerance.
func (m *Mapper) matchByOSMID(seg models.Segment) *models.EdgeRef {
	var best *models.EdgeRef
	bestDist := math.Inf(1)
	for _, cand := range m.net.OSMCandidates(seg.OSMID) {
		geom := m.cache.EdgeGeometry(m.net, cand)
		d := lineToLineDistanceFeet(seg.Geometry, geom)
		if d < bestDist {
			bestDist = d
			c := cand
			best = &c
		}
	}
	if best == nil || bestDist > m.cfg.MaxOSMMatchDistanceFeet {
		return nil
	}
	return best
}

// MakeRequirement builds the requirement identity for a matched
// forward edge. If reverse candidates exist, the shortest one becomes
// the paired option, so matching from either direction of the street
// produces an equal id. Options are returned forward-first.
func MakeRequirement(net *graph.Network, fwd models.EdgeRef) (models.RequirementID, []models.EdgeRef) {
	revs := net.ReverseCandidates(fwd)
	if len(revs) == 0 {
		return models.SingleRequirement(fwd), []models.EdgeRef{fwd}
	}

	best := revs[0]
	bestLen := net.EdgeLength(best)
	for _, r := range revs[1:] {
		if l := net.EdgeLength(r); l < bestLen {
			best = r
			bestLen = l
		}
	}
	return models.PairedRequirement(fwd, best), []models.EdgeRef{fwd, best}
}
