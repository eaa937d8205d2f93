package testutil

import (
	"context"
	"fmt"
	"math"

	"github.com/paulmach/orb"

	"street-coverage-router/internal/models"
)

// RouterCall tracks a call to the mock routing capability
type RouterCall struct {
	Points []models.Coordinates
}

// MockRouter is a deterministic routing capability for tests. By
// default it returns a straight leg between the endpoints with a
// scaled Euclidean distance; specific legs can be overridden.
type MockRouter struct {
	ScaleFactor float64
	FailAll     bool
	Overrides   map[string]*models.RouteLeg
	Calls       []RouterCall
}

// NewMockRouter creates a mock router
func NewMockRouter() *MockRouter {
	return &MockRouter{
		ScaleFactor: 111000, // 1 degree ≈ 111km in meters
		Overrides:   make(map[string]*models.RouteLeg),
		Calls:       []RouterCall{},
	}
}

func legKey(origin, dest models.Coordinates) string {
	return fmt.Sprintf("%.5f,%.5f->%.5f,%.5f", origin.Lat, origin.Lng, dest.Lat, dest.Lng)
}

// SetLeg overrides the response for a specific origin-destination pair
func (m *MockRouter) SetLeg(origin, dest models.Coordinates, geom orb.LineString, distMeters, durSecs float64) {
	m.Overrides[legKey(origin, dest)] = &models.RouteLeg{
		Geometry:       geom,
		DistanceMeters: distMeters,
		DurationSecs:   durSecs,
	}
}

// Route returns the overridden leg if one is set, else a straight leg
func (m *MockRouter) Route(ctx context.Context, points []models.Coordinates) (*models.RouteLeg, error) {
	m.Calls = append(m.Calls, RouterCall{Points: points})

	if m.FailAll {
		return nil, fmt.Errorf("mock router: routing disabled")
	}
	if len(points) < 2 {
		return nil, fmt.Errorf("mock router: need at least 2 points, got %d", len(points))
	}

	origin, dest := points[0], points[len(points)-1]
	if leg, ok := m.Overrides[legKey(origin, dest)]; ok {
		return leg, nil
	}

	dLat := dest.Lat - origin.Lat
	dLng := dest.Lng - origin.Lng
	dist := math.Sqrt(dLat*dLat+dLng*dLng) * m.ScaleFactor
	return &models.RouteLeg{
		Geometry:       orb.LineString{origin.Point(), dest.Point()},
		DistanceMeters: dist,
		DurationSecs:   dist / 10,
	}, nil
}
