package validate

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"

	"street-coverage-router/internal/models"
)

const (
	feetPerMeter = 3.28084
	feetPerMile  = 5280.0
)

// Thresholds holds the acceptance limits applied to a finished route
type Thresholds struct {
	// MinSegmentCoverageRatio is the minimum matched/total ratio.
	MinSegmentCoverageRatio float64
	// MaxRouteGapFeet is the largest allowed consecutive-point jump.
	MaxRouteGapFeet float64
	// MaxDeadheadRatioError and MaxDeadheadRatioWarn bound
	// total/required distance.
	MaxDeadheadRatioError float64
	MaxDeadheadRatioWarn  float64
}

// Report is the validation outcome. Errors and warnings are both
// returned with the route; the caller decides whether errors block
// acceptance.
type Report struct {
	Errors   []string           `json:"errors"`
	Warnings []string           `json:"warnings"`
	Details  map[string]float64 `json:"details"`
}

// OK reports whether the route passed without errors
func (r *Report) OK() bool { return len(r.Errors) == 0 }

// Route checks a finished route against coverage, gap, and efficiency
// thresholds. Pure function: no side effects, no logging.
func Route(coords orb.LineString, stats models.RouteStats, matchedSegments, totalSegments int, th Thresholds) *Report {
	r := &Report{Details: map[string]float64{}}

	if len(coords) < 2 {
		r.Errors = append(r.Errors, fmt.Sprintf("route has %d coordinates, need at least 2", len(coords)))
	}

	if totalSegments > 0 {
		ratio := float64(matchedSegments) / float64(totalSegments)
		r.Details["coverage_ratio"] = ratio
		if ratio < th.MinSegmentCoverageRatio {
			r.Errors = append(r.Errors, fmt.Sprintf(
				"segment coverage %.1f%% (%d of %d) below minimum %.1f%%",
				100*ratio, matchedSegments, totalSegments, 100*th.MinSegmentCoverageRatio))
		}
	}

	if maxGap := maxGapFeet(coords); maxGap > 0 {
		r.Details["max_gap_feet"] = maxGap
		if maxGap > th.MaxRouteGapFeet {
			r.Errors = append(r.Errors, fmt.Sprintf(
				"route gap of %.0f ft (%.2f mi) exceeds maximum %.0f ft (%.2f mi)",
				maxGap, maxGap/feetPerMile, th.MaxRouteGapFeet, th.MaxRouteGapFeet/feetPerMile))
		}
	}

	if stats.TotalDistance <= 0 {
		r.Errors = append(r.Errors, fmt.Sprintf("route total distance is %.1f m", stats.TotalDistance))
	}

	if stats.RequiredDistance > 0 && stats.TotalDistance > 0 {
		ratio := stats.TotalDistance / stats.RequiredDistance
		r.Details["deadhead_ratio"] = ratio
		switch {
		case ratio > th.MaxDeadheadRatioError:
			r.Errors = append(r.Errors, fmt.Sprintf(
				"route is %.2fx the required distance, above the %.2fx limit", ratio, th.MaxDeadheadRatioError))
		case ratio > th.MaxDeadheadRatioWarn:
			r.Warnings = append(r.Warnings, fmt.Sprintf(
				"route is %.2fx the required distance, above the %.2fx advisory limit", ratio, th.MaxDeadheadRatioWarn))
		}
	}

	return r
}

// maxGapFeet returns the largest great-circle distance between
// consecutive route points, in feet.
func maxGapFeet(coords orb.LineString) float64 {
	maxGap := 0.0
	for i := 1; i < len(coords); i++ {
		d := geo.DistanceHaversine(coords[i-1], coords[i]) * feetPerMeter
		if d > maxGap {
			maxGap = d
		}
	}
	return maxGap
}
