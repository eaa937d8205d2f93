package gapfill

import (
	"context"
	"fmt"
	"log"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"

	"street-coverage-router/internal/models"
)

const feetPerMeter = 3.28084

// Router is the injected routing capability used to replace straight
// jumps with real road geometry. Any backend can satisfy it.
type Router interface {
	Route(ctx context.Context, points []models.Coordinates) (*models.RouteLeg, error)
}

// Filler splices routed geometry over route gaps
type Filler struct {
	router        Router
	thresholdFeet float64
}

// NewFiller creates a gap filler. thresholdFeet is the straight-line
// distance above which a consecutive point pair counts as a gap.
func NewFiller(router Router, thresholdFeet float64) *Filler {
	return &Filler{router: router, thresholdFeet: thresholdFeet}
}

// Fill scans consecutive coordinate pairs and replaces any jump longer
// than the threshold with the routed polyline. Each gap is handled
// independently; a failed routing call leaves that gap untouched and
// is reported as a warning, never an error. Route order is preserved.
func (f *Filler) Fill(ctx context.Context, coords orb.LineString) (orb.LineString, []string) {
	if f.router == nil || len(coords) < 2 {
		return coords, nil
	}

	var warnings []string
	out := make(orb.LineString, 0, len(coords))
	out = append(out, coords[0])
	filled := 0

	for i := 1; i < len(coords); i++ {
		prev, cur := coords[i-1], coords[i]
		gapFeet := geo.DistanceHaversine(prev, cur) * feetPerMeter
		if gapFeet <= f.thresholdFeet {
			out = append(out, cur)
			continue
		}

		leg, err := f.router.Route(ctx, []models.Coordinates{
			{Lat: prev[1], Lng: prev[0]},
			{Lat: cur[1], Lng: cur[0]},
		})
		if err != nil {
			msg := fmt.Sprintf("gap fill failed for %.0f ft jump at point %d: %v", gapFeet, i, err)
			log.Printf("[GAPFILL] WARNING: %s", msg)
			warnings = append(warnings, msg)
			out = append(out, cur)
			continue
		}

		out = append(out, splice(prev, cur, leg.Geometry)...)
		filled++
	}

	if filled > 0 || len(warnings) > 0 {
		log.Printf("[GAPFILL] Done: filled=%d failed=%d", filled, len(warnings))
	}
	return out, warnings
}

// splice returns the routed geometry trimmed of endpoints duplicating
// the surrounding route points, always ending at cur.
func splice(prev, cur orb.Point, geom orb.LineString) orb.LineString {
	out := make(orb.LineString, 0, len(geom)+1)
	for _, p := range geom {
		if p == prev || p == cur {
			continue
		}
		out = append(out, p)
	}
	return append(out, cur)
}
