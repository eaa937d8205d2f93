package solver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"street-coverage-router/internal/graph"
	"street-coverage-router/internal/mapping"
	"street-coverage-router/internal/models"
)

func inputFor(net *graph.Network, refs ...models.EdgeRef) *Input {
	in := &Input{
		Requirements:  make(map[models.RequirementID][]models.EdgeRef),
		SegmentCounts: make(map[models.RequirementID]int),
	}
	for _, ref := range refs {
		id, opts := mapping.MakeRequirement(net, ref)
		if _, ok := in.Requirements[id]; !ok {
			in.Requirements[id] = opts
		}
		in.SegmentCounts[id]++
	}
	return in
}

func startAt(node int64) Config {
	return Config{StartNode: node}
}

func TestSolveTrivialSingleEdge(t *testing.T) {
	// Scenario: two nodes, one 100m edge, one requirement.
	net := graph.NewNetwork()
	net.AddNode(0, 40.0, -75.0)
	net.AddNode(1, 40.001, -75.0)
	ref, err := net.AddEdge(0, 1, 100, nil, 0)
	require.NoError(t, err)

	res, warnings, err := Solve(net, graph.NewGeometryCache(), inputFor(net, ref), startAt(0))
	require.NoError(t, err)
	assert.Empty(t, warnings)

	assert.Equal(t, 100.0, res.Stats.TotalDistance)
	assert.Equal(t, 0.0, res.Stats.DeadheadDistance)
	assert.Equal(t, 100.0, res.Stats.RequiredDistance)
	assert.Equal(t, 1, res.Stats.CompletedCount)
	assert.Equal(t, 0, res.Stats.SkippedDisconnectedCount)
	assert.Equal(t, 1, res.Stats.RequiredCount)
	assert.Equal(t, []models.EdgeRef{ref}, res.TraversedEdges)
	require.Len(t, res.Coordinates, 2)
}

func TestSolveFullyConnectedCompletesEverything(t *testing.T) {
	// 0 -> 1 -> 2 -> 3 chain, all three edges required.
	net := graph.NewNetwork()
	for i := int64(0); i < 4; i++ {
		net.AddNode(i, 40.0+float64(i)*0.001, -75.0)
	}
	var refs []models.EdgeRef
	for i := int64(0); i < 3; i++ {
		ref, err := net.AddEdge(i, i+1, 100, nil, 0)
		require.NoError(t, err)
		refs = append(refs, ref)
	}

	res, _, err := Solve(net, graph.NewGeometryCache(), inputFor(net, refs...), startAt(0))
	require.NoError(t, err)

	assert.Equal(t, 3, res.Stats.CompletedCount)
	assert.Equal(t, 0, res.Stats.SkippedDisconnectedCount)
	assert.Equal(t, 300.0, res.Stats.TotalDistance)
	assert.Equal(t, 0.0, res.Stats.DeadheadDistance)
	assert.Equal(t, refs, res.TraversedEdges)
}

func TestSolveBridgesGapWithDeadhead(t *testing.T) {
	// Required: 0->1 and 2->3. Connective edge 1->2 is not required,
	// so traversing it is deadhead.
	net := graph.NewNetwork()
	for i := int64(0); i < 4; i++ {
		net.AddNode(i, 40.0+float64(i)*0.001, -75.0)
	}
	reqA, err := net.AddEdge(0, 1, 100, nil, 0)
	require.NoError(t, err)
	link, err := net.AddEdge(1, 2, 50, nil, 0)
	require.NoError(t, err)
	reqB, err := net.AddEdge(2, 3, 100, nil, 0)
	require.NoError(t, err)

	res, _, err := Solve(net, graph.NewGeometryCache(), inputFor(net, reqA, reqB), startAt(0))
	require.NoError(t, err)

	assert.Equal(t, 2, res.Stats.CompletedCount)
	assert.Equal(t, 250.0, res.Stats.TotalDistance)
	assert.Equal(t, 50.0, res.Stats.DeadheadDistance)
	assert.Equal(t, 200.0, res.Stats.RequiredDistance)
	assert.InDelta(t, 20.0, res.Stats.DeadheadPercentage, 1e-9)
	assert.Equal(t, []models.EdgeRef{reqA, link, reqB}, res.TraversedEdges)
}

func TestSolveDisconnectedComponentsSkippedByDefault(t *testing.T) {
	// Scenario: components {0->1} and {2->3}, no connection between
	// them. Default policy: the reachable requirement completes, the
	// unreachable one is skipped, and the route stays continuous.
	net := graph.NewNetwork()
	net.AddNode(0, 40.0, -75.0)
	net.AddNode(1, 40.001, -75.0)
	net.AddNode(2, 41.0, -76.0)
	net.AddNode(3, 41.001, -76.0)
	reqA, err := net.AddEdge(0, 1, 100, nil, 0)
	require.NoError(t, err)
	reqB, err := net.AddEdge(2, 3, 100, nil, 0)
	require.NoError(t, err)

	res, warnings, err := Solve(net, graph.NewGeometryCache(), inputFor(net, reqA, reqB), startAt(0))
	require.NoError(t, err)

	assert.Equal(t, 1, res.Stats.CompletedCount)
	assert.Equal(t, 1, res.Stats.SkippedDisconnectedCount)
	assert.Equal(t, 2, res.Stats.RequiredCount)
	assert.Equal(t, []models.EdgeRef{reqA}, res.TraversedEdges)
	assert.NotEmpty(t, warnings)
	assert.LessOrEqual(t, res.Stats.Iterations, 3*2)
}

func TestSolveDisconnectedJumpWhenAllowed(t *testing.T) {
	net := graph.NewNetwork()
	net.AddNode(0, 40.0, -75.0)
	net.AddNode(1, 40.001, -75.0)
	net.AddNode(2, 41.0, -76.0)
	net.AddNode(3, 41.001, -76.0)
	reqA, err := net.AddEdge(0, 1, 100, nil, 0)
	require.NoError(t, err)
	reqB, err := net.AddEdge(2, 3, 100, nil, 0)
	require.NoError(t, err)

	cfg := Config{StartNode: 0, AllowDisconnectedJump: true}
	res, warnings, err := Solve(net, graph.NewGeometryCache(), inputFor(net, reqA, reqB), cfg)
	require.NoError(t, err)

	// Both requirements complete; the jump itself adds no distance
	// but is reported as a discontinuity warning.
	assert.Equal(t, 2, res.Stats.CompletedCount)
	assert.Equal(t, 0, res.Stats.SkippedDisconnectedCount)
	assert.Equal(t, 200.0, res.Stats.TotalDistance)
	assert.Equal(t, []models.EdgeRef{reqA, reqB}, res.TraversedEdges)
	assert.NotEmpty(t, warnings)
}

func TestSolveBidirectionalRequirementSatisfiedOnce(t *testing.T) {
	// A two-way street is one requirement; driving it in one
	// direction discharges it.
	net := graph.NewNetwork()
	net.AddNode(0, 40.0, -75.0)
	net.AddNode(1, 40.001, -75.0)
	fwd, err := net.AddEdge(0, 1, 100, nil, 77)
	require.NoError(t, err)
	_, err = net.AddEdge(1, 0, 100, nil, 77)
	require.NoError(t, err)

	res, _, err := Solve(net, graph.NewGeometryCache(), inputFor(net, fwd), startAt(0))
	require.NoError(t, err)

	assert.Equal(t, 1, res.Stats.RequiredCount)
	assert.Equal(t, 1, res.Stats.CompletedCount)
	assert.Equal(t, 100.0, res.Stats.TotalDistance)
	assert.Len(t, res.TraversedEdges, 1)
}

func TestSolveBidirectionalStartsFromEitherEnd(t *testing.T) {
	// Starting at node 1, the solver should use the reverse option
	// instead of deadheading around.
	net := graph.NewNetwork()
	net.AddNode(0, 40.0, -75.0)
	net.AddNode(1, 40.001, -75.0)
	fwd, err := net.AddEdge(0, 1, 100, nil, 77)
	require.NoError(t, err)
	rev, err := net.AddEdge(1, 0, 100, nil, 77)
	require.NoError(t, err)

	res, _, err := Solve(net, graph.NewGeometryCache(), inputFor(net, fwd), startAt(1))
	require.NoError(t, err)

	assert.Equal(t, 1, res.Stats.CompletedCount)
	assert.Equal(t, 0.0, res.Stats.DeadheadDistance)
	assert.Equal(t, []models.EdgeRef{rev}, res.TraversedEdges)
}

func TestSolveTieBreakPrefersMoreSegments(t *testing.T) {
	// Two requirements start at node 0; the one backed by more input
	// segments goes first.
	net := graph.NewNetwork()
	net.AddNode(0, 40.0, -75.0)
	net.AddNode(1, 40.001, -75.0)
	net.AddNode(2, 40.0, -75.001)
	popular, err := net.AddEdge(0, 1, 100, nil, 0)
	require.NoError(t, err)
	_, err = net.AddEdge(1, 0, 100, nil, 0)
	require.NoError(t, err)
	lone, err := net.AddEdge(0, 2, 500, nil, 0)
	require.NoError(t, err)
	_, err = net.AddEdge(2, 0, 500, nil, 0)
	require.NoError(t, err)

	in := inputFor(net, popular, popular, popular, lone)
	res, _, err := Solve(net, graph.NewGeometryCache(), in, startAt(0))
	require.NoError(t, err)

	require.NotEmpty(t, res.TraversedEdges)
	assert.Equal(t, popular, res.TraversedEdges[0])
	assert.Equal(t, 2, res.Stats.CompletedCount)
}

func TestSolveTieBreakPrefersLongerEdgeAtEqualCount(t *testing.T) {
	net := graph.NewNetwork()
	net.AddNode(0, 40.0, -75.0)
	net.AddNode(1, 40.001, -75.0)
	net.AddNode(2, 40.0, -75.001)
	short, err := net.AddEdge(0, 1, 100, nil, 0)
	require.NoError(t, err)
	_, err = net.AddEdge(1, 0, 100, nil, 0)
	require.NoError(t, err)
	long, err := net.AddEdge(0, 2, 500, nil, 0)
	require.NoError(t, err)
	_, err = net.AddEdge(2, 0, 500, nil, 0)
	require.NoError(t, err)

	in := inputFor(net, short, long)
	res, _, err := Solve(net, graph.NewGeometryCache(), in, startAt(0))
	require.NoError(t, err)

	require.NotEmpty(t, res.TraversedEdges)
	assert.Equal(t, long, res.TraversedEdges[0])
}

func TestSolveEmptyRequirements(t *testing.T) {
	net := graph.NewNetwork()
	in := &Input{
		Requirements:  map[models.RequirementID][]models.EdgeRef{},
		SegmentCounts: map[models.RequirementID]int{},
	}
	res, warnings, err := Solve(net, graph.NewGeometryCache(), in, Config{StartNode: -1})
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Empty(t, res.Coordinates)
	assert.Equal(t, 0, res.Stats.RequiredCount)
}

func TestSolveInvalidStartNode(t *testing.T) {
	net := graph.NewNetwork()
	net.AddNode(0, 40.0, -75.0)
	net.AddNode(1, 40.001, -75.0)
	ref, err := net.AddEdge(0, 1, 100, nil, 0)
	require.NoError(t, err)

	_, _, err = Solve(net, graph.NewGeometryCache(), inputFor(net, ref), startAt(99))
	assert.Error(t, err)
}

func TestSolveCountsAddUp(t *testing.T) {
	// Invariant: completed + skipped == required, whatever happens.
	net := graph.NewNetwork()
	net.AddNode(0, 40.0, -75.0)
	net.AddNode(1, 40.001, -75.0)
	net.AddNode(2, 41.0, -76.0)
	net.AddNode(3, 41.001, -76.0)
	net.AddNode(4, 42.0, -77.0)
	net.AddNode(5, 42.001, -77.0)
	a, err := net.AddEdge(0, 1, 100, nil, 0)
	require.NoError(t, err)
	b, err := net.AddEdge(2, 3, 100, nil, 0)
	require.NoError(t, err)
	c, err := net.AddEdge(4, 5, 100, nil, 0)
	require.NoError(t, err)

	res, _, err := Solve(net, graph.NewGeometryCache(), inputFor(net, a, b, c), startAt(0))
	require.NoError(t, err)

	assert.Equal(t, res.Stats.RequiredCount,
		res.Stats.CompletedCount+res.Stats.SkippedDisconnectedCount)
	assert.LessOrEqual(t, res.Stats.Iterations, 3*3)
}
