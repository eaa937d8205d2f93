package solver

import (
	"fmt"
	"log"
	"sort"

	"github.com/paulmach/orb"

	"street-coverage-router/internal/graph"
	"street-coverage-router/internal/models"
)

// Config holds solver tunables
type Config struct {
	// StartNode forces the route origin; negative means the solver
	// picks the first requirement's start.
	StartNode int64
	// AllowDisconnectedJump restores the legacy behavior of jumping
	// to an unreachable requirement's start node instead of skipping
	// its component. The jump is a discontinuity in the route and is
	// reported as a warning.
	AllowDisconnectedJump bool
}

// Input is the mapper's requirement set
type Input struct {
	Requirements  map[models.RequirementID][]models.EdgeRef
	SegmentCounts map[models.RequirementID]int
}

type solveState int

const (
	stateSeekGlobal solveState = iota
	stateSeekComponent
	stateTraverse
	stateDisconnected
	stateDone
)

type solver struct {
	net   *graph.Network
	cache *graph.GeometryCache
	cfg   Config

	options   map[models.RequirementID][]models.EdgeRef
	segCounts map[models.RequirementID]int

	unvisited map[models.RequirementID]struct{}
	// Distinct nodes any of a requirement's options start from.
	reqStarts map[models.RequirementID][]int64
	// node -> unvisited requirements with an option starting there.
	nodeReqs map[int64]map[models.RequirementID]struct{}

	compOf        map[models.RequirementID]int
	nodeComp      map[int64]int
	compUnvisited map[int]int
	// component -> node -> count of unvisited requirements starting there.
	compNodes map[int]map[int64]int

	current    int64
	activeComp int

	coords    orb.LineString
	traversed []models.EdgeRef
	deadhead  float64
	total     float64
	completed int
	skipped   int
	iters     int
	warnings  []string
}

// Solve sequences every requirement into one continuous route,
// bridging gaps with early-exit shortest-path searches. Requirements
// whose component cannot be reached are skipped, never fatal. Returns
// the route, solver warnings, and an error only for invalid input.
func Solve(net *graph.Network, cache *graph.GeometryCache, in *Input, cfg Config) (*models.RouteResult, []string, error) {
	if len(in.Requirements) == 0 {
		return &models.RouteResult{Coordinates: orb.LineString{}}, nil, nil
	}

	s := &solver{
		net:           net,
		cache:         cache,
		cfg:           cfg,
		options:       in.Requirements,
		segCounts:     in.SegmentCounts,
		unvisited:     make(map[models.RequirementID]struct{}),
		reqStarts:     make(map[models.RequirementID][]int64),
		nodeReqs:      make(map[int64]map[models.RequirementID]struct{}),
		compOf:        make(map[models.RequirementID]int),
		nodeComp:      make(map[int64]int),
		compUnvisited: make(map[int]int),
		compNodes:     make(map[int]map[int64]int),
		activeComp:    -1,
	}
	s.indexRequirements()
	s.partition()

	if cfg.StartNode >= 0 {
		if !net.HasNode(cfg.StartNode) {
			return nil, nil, fmt.Errorf("start node %d not in graph", cfg.StartNode)
		}
		s.current = cfg.StartNode
	} else {
		s.current = s.defaultStart()
	}
	log.Printf("[SOLVER] Starting: requirements=%d components=%d start_node=%d",
		len(s.unvisited), len(s.compUnvisited), s.current)

	s.run()

	stats := models.RouteStats{
		TotalDistance:            s.total,
		RequiredDistance:         s.requiredDistance(),
		DeadheadDistance:         s.deadhead,
		RequiredCount:            len(in.Requirements),
		CompletedCount:           s.completed,
		SkippedDisconnectedCount: s.skipped,
		Iterations:               s.iters,
	}
	if s.total > 0 {
		stats.DeadheadPercentage = 100 * s.deadhead / s.total
	}
	log.Printf("[SOLVER] Done: completed=%d skipped=%d total=%.0fm deadhead=%.0fm iterations=%d",
		stats.CompletedCount, stats.SkippedDisconnectedCount, stats.TotalDistance, stats.DeadheadDistance, stats.Iterations)

	return &models.RouteResult{
		Coordinates:    s.coords,
		Stats:          stats,
		TraversedEdges: s.traversed,
	}, s.warnings, nil
}

// run drives the explicit gap-handling state machine until every
// requirement is visited or skipped.
func (s *solver) run() {
	iterCap := 3 * len(s.unvisited)
	st := stateSeekGlobal

	for st != stateDone {
		if len(s.unvisited) == 0 {
			return
		}
		s.iters++
		if s.iters > iterCap {
			s.warnf("iteration limit %d exceeded, skipping %d remaining requirements", iterCap, len(s.unvisited))
			s.skipAllRemaining()
			return
		}

		switch st {
		case stateSeekGlobal:
			st = s.seekGlobal()
		case stateSeekComponent:
			st = s.seekComponent()
		case stateTraverse:
			st = s.traverse()
		case stateDisconnected:
			st = s.disconnected()
		}
	}
}

func (s *solver) seekGlobal() solveState {
	if len(s.unvisited) == 0 {
		return stateDone
	}
	res, ok := graph.ShortestPathToAny(s.net, s.current, s.globalTargets())
	if !ok {
		return stateDisconnected
	}
	s.appendPath(res)
	s.activeComp = s.nodeComp[res.Target]
	return stateTraverse
}

func (s *solver) seekComponent() solveState {
	if s.compUnvisited[s.activeComp] == 0 {
		s.activeComp = -1
		return stateSeekGlobal
	}
	res, ok := graph.ShortestPathToAny(s.net, s.current, s.componentTargets(s.activeComp))
	if !ok {
		n := s.skipComponent(s.activeComp)
		s.warnf("component %d unreachable from node %d, skipped %d requirements", s.activeComp, s.current, n)
		s.activeComp = -1
		return stateSeekGlobal
	}
	s.appendPath(res)
	return stateTraverse
}

func (s *solver) traverse() solveState {
	id, ok := s.pickAtCurrent()
	if !ok {
		if s.compUnvisited[s.activeComp] > 0 {
			return stateSeekComponent
		}
		s.activeComp = -1
		return stateSeekGlobal
	}

	opt := s.optionFrom(id, s.current)
	length := s.net.EdgeLength(opt)
	s.appendEdgeGeometry(opt)
	s.traversed = append(s.traversed, opt)
	s.total += length
	s.current = opt.V
	s.markVisited(id)
	s.completed++
	return stateTraverse
}

// disconnected handles a failed global seek: nothing with pending
// requirements is reachable from the current position.
func (s *solver) disconnected() solveState {
	if s.cfg.AllowDisconnectedJump {
		if id, node, ok := s.jumpTarget(); ok {
			s.warnf("graph disconnected at node %d: jumping to node %d without a connecting path", s.current, node)
			s.current = node
			s.activeComp = s.compOf[id]
			return stateTraverse
		}
	}
	n := len(s.unvisited)
	s.skipAllRemaining()
	s.warnf("no remaining requirement reachable from node %d, skipped %d", s.current, n)
	return stateDone
}

// jumpTarget finds any unvisited requirement whose start node has
// outgoing edges. Deterministic: smallest requirement id wins.
func (s *solver) jumpTarget() (models.RequirementID, int64, bool) {
	ids := make([]models.RequirementID, 0, len(s.unvisited))
	for id := range s.unvisited {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	for _, id := range ids {
		for _, start := range s.reqStarts[id] {
			if s.net.HasOutgoing(start) {
				return id, start, true
			}
		}
	}
	return models.RequirementID{}, 0, false
}

// pickAtCurrent selects the next requirement starting exactly at the
// current node within the active component, preferring requirements
// backed by more input segments, then longer edges. The ordering is a
// tie-break heuristic with no optimality claim.
func (s *solver) pickAtCurrent() (models.RequirementID, bool) {
	var best models.RequirementID
	bestCount := -1
	bestLen := -1.0
	found := false
	for id := range s.nodeReqs[s.current] {
		if s.compOf[id] != s.activeComp {
			continue
		}
		count := s.segCounts[id]
		length := s.net.EdgeLength(s.optionFrom(id, s.current))
		if !found ||
			count > bestCount ||
			(count == bestCount && length > bestLen) ||
			(count == bestCount && length == bestLen && id.String() < best.String()) {
			best, bestCount, bestLen = id, count, length
			found = true
		}
	}
	return best, found
}

// optionFrom returns the shortest option of a requirement starting at
// the given node.
func (s *solver) optionFrom(id models.RequirementID, node int64) models.EdgeRef {
	var best models.EdgeRef
	bestLen := -1.0
	for _, opt := range s.options[id] {
		if opt.U != node {
			continue
		}
		l := s.net.EdgeLength(opt)
		if bestLen < 0 || l < bestLen {
			best = opt
			bestLen = l
		}
	}
	return best
}

func (s *solver) indexRequirements() {
	for id, opts := range s.options {
		s.unvisited[id] = struct{}{}
		seen := map[int64]struct{}{}
		for _, opt := range opts {
			if _, dup := seen[opt.U]; dup {
				continue
			}
			seen[opt.U] = struct{}{}
			s.reqStarts[id] = append(s.reqStarts[id], opt.U)
			if s.nodeReqs[opt.U] == nil {
				s.nodeReqs[opt.U] = make(map[models.RequirementID]struct{})
			}
			s.nodeReqs[opt.U][id] = struct{}{}
		}
	}
}

func (s *solver) markVisited(id models.RequirementID) {
	delete(s.unvisited, id)
	comp := s.compOf[id]
	s.compUnvisited[comp]--
	for _, start := range s.reqStarts[id] {
		if reqs := s.nodeReqs[start]; reqs != nil {
			delete(reqs, id)
			if len(reqs) == 0 {
				delete(s.nodeReqs, start)
			}
		}
		if nodes := s.compNodes[comp]; nodes != nil {
			nodes[start]--
			if nodes[start] <= 0 {
				delete(nodes, start)
			}
		}
	}
}

func (s *solver) skipComponent(comp int) int {
	n := 0
	for id := range s.unvisited {
		if s.compOf[id] == comp {
			s.markVisited(id)
			s.skipped++
			n++
		}
	}
	return n
}

func (s *solver) skipAllRemaining() {
	for id := range s.unvisited {
		s.markVisited(id)
		s.skipped++
	}
}

func (s *solver) globalTargets() map[int64]struct{} {
	t := make(map[int64]struct{}, len(s.nodeReqs))
	for node := range s.nodeReqs {
		t[node] = struct{}{}
	}
	return t
}

func (s *solver) componentTargets(comp int) map[int64]struct{} {
	nodes := s.compNodes[comp]
	t := make(map[int64]struct{}, len(nodes))
	for node := range nodes {
		t[node] = struct{}{}
	}
	return t
}

func (s *solver) requiredDistance() float64 {
	sum := 0.0
	for id := range s.options {
		sum += s.shortestOptionLength(id)
	}
	return sum
}

func (s *solver) shortestOptionLength(id models.RequirementID) float64 {
	best := -1.0
	for _, opt := range s.options[id] {
		l := s.net.EdgeLength(opt)
		if best < 0 || l < best {
			best = l
		}
	}
	if best < 0 {
		return 0
	}
	return best
}

// shortestOption returns the requirement's representative option.
func (s *solver) shortestOption(id models.RequirementID) models.EdgeRef {
	best := s.options[id][0]
	bestLen := s.net.EdgeLength(best)
	for _, opt := range s.options[id][1:] {
		if l := s.net.EdgeLength(opt); l < bestLen {
			best = opt
			bestLen = l
		}
	}
	return best
}

// defaultStart picks the start node of the first requirement in
// canonical order, so runs without an explicit start are repeatable.
func (s *solver) defaultStart() int64 {
	ids := make([]models.RequirementID, 0, len(s.options))
	for id := range s.options {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return s.shortestOption(ids[0]).U
}

func (s *solver) appendPath(res *graph.PathResult) {
	for _, ref := range res.Edges {
		s.appendEdgeGeometry(ref)
		s.traversed = append(s.traversed, ref)
	}
	s.deadhead += res.Distance
	s.total += res.Distance
	s.current = res.Target
}

// appendEdgeGeometry stitches an edge's coordinates onto the route,
// dropping a duplicated shared endpoint.
func (s *solver) appendEdgeGeometry(ref models.EdgeRef) {
	geom := s.cache.EdgeGeometry(s.net, ref)
	if len(geom) == 0 {
		return
	}
	if len(s.coords) > 0 && s.coords[len(s.coords)-1] == geom[0] {
		geom = geom[1:]
	}
	s.coords = append(s.coords, geom...)
}

func (s *solver) warnf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	log.Printf("[SOLVER] WARNING: %s", msg)
	s.warnings = append(s.warnings, msg)
}
