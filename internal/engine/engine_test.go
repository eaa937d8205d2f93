package engine

import (
	"context"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"street-coverage-router/internal/graph"
	"street-coverage-router/internal/models"
	"street-coverage-router/internal/testutil"
)

type recordedReport struct {
	phase   string
	percent int
}

type recordingSink struct {
	reports []recordedReport
}

func (r *recordingSink) Report(phase string, percent int, message string) {
	r.reports = append(r.reports, recordedReport{phase: phase, percent: percent})
}

// twoStreetNetwork builds a three-node chain at latitude 40 with two
// bidirectional streets, and segments matching each by OSM id.
func twoStreetNetwork(t *testing.T) (*graph.Network, []models.Segment) {
	t.Helper()

	net := graph.NewNetwork()
	net.AddNode(1, 40.0, -75.000)
	net.AddNode(2, 40.0, -74.999)
	net.AddNode(3, 40.0, -74.998)

	first := orb.LineString{{-75.000, 40.0}, {-74.999, 40.0}}
	second := orb.LineString{{-74.999, 40.0}, {-74.998, 40.0}}

	_, err := net.AddEdge(1, 2, 85, first, 101)
	require.NoError(t, err)
	_, err = net.AddEdge(2, 1, 85, first, 101)
	require.NoError(t, err)
	_, err = net.AddEdge(2, 3, 85, second, 102)
	require.NoError(t, err)
	_, err = net.AddEdge(3, 2, 85, second, 102)
	require.NoError(t, err)

	segments := []models.Segment{
		{Geometry: first, OSMID: 101},
		{Geometry: second, OSMID: 102},
	}
	return net, segments
}

func TestSolveCompletesConnectedStreets(t *testing.T) {
	net, segments := twoStreetNetwork(t)

	eng := New(net, testutil.NewMockRouter(), DefaultConfig())
	sink := &recordingSink{}
	eng.SetProgressSink(sink)

	result, err := eng.Solve(context.Background(), segments)
	require.NoError(t, err)
	require.NotNil(t, result.Route)

	assert.Equal(t, 2, result.Route.Stats.RequiredCount)
	assert.Equal(t, 2, result.Route.Stats.CompletedCount)
	assert.Equal(t, 0, result.Route.Stats.SkippedDisconnectedCount)
	assert.InDelta(t, 170, result.Route.Stats.TotalDistance, 0.001)
	assert.Zero(t, result.Route.Stats.DeadheadDistance)
	assert.GreaterOrEqual(t, len(result.Route.Coordinates), 3)

	require.NotNil(t, result.Validation)
	assert.True(t, result.Validation.OK(), "validation errors: %v", result.Validation.Errors)
	assert.Empty(t, result.Warnings)

	require.NotEmpty(t, sink.reports)
	assert.Equal(t, "mapping", sink.reports[0].phase)
	last := sink.reports[len(sink.reports)-1]
	assert.Equal(t, "done", last.phase)
	assert.Equal(t, 100, last.percent)

	prev := -1
	for _, r := range sink.reports {
		assert.GreaterOrEqual(t, r.percent, prev)
		prev = r.percent
	}
}

func TestSolveWithoutRouterSkipsGapFilling(t *testing.T) {
	net, segments := twoStreetNetwork(t)

	eng := New(net, nil, DefaultConfig())
	sink := &recordingSink{}
	eng.SetProgressSink(sink)

	result, err := eng.Solve(context.Background(), segments)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Route.Stats.CompletedCount)

	for _, r := range sink.reports {
		assert.NotEqual(t, "gap_filling", r.phase)
	}
}

func TestSolveEmptySegments(t *testing.T) {
	net, _ := twoStreetNetwork(t)

	eng := New(net, nil, DefaultConfig())
	result, err := eng.Solve(context.Background(), nil)
	require.NoError(t, err)

	assert.Empty(t, result.Route.Coordinates)
	assert.Zero(t, result.Route.Stats.RequiredCount)
	assert.True(t, result.Validation.OK())
}

func TestSolveCancelledContext(t *testing.T) {
	net, segments := twoStreetNetwork(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	eng := New(net, nil, DefaultConfig())
	_, err := eng.Solve(ctx, segments)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSolveForcedStartNode(t *testing.T) {
	net, segments := twoStreetNetwork(t)

	cfg := DefaultConfig()
	cfg.StartNode = 3
	eng := New(net, nil, cfg)

	result, err := eng.Solve(context.Background(), segments)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Route.Stats.CompletedCount)

	start := result.Route.Coordinates[0]
	assert.InDelta(t, -74.998, start[0], 1e-9)
	assert.InDelta(t, 40.0, start[1], 1e-9)
}

func TestSolveUnknownStartNode(t *testing.T) {
	net, segments := twoStreetNetwork(t)

	cfg := DefaultConfig()
	cfg.StartNode = 99
	eng := New(net, nil, cfg)

	_, err := eng.Solve(context.Background(), segments)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "start node")
}
