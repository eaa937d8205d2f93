package engine

import (
	"context"
	"fmt"
	"log"

	"github.com/paulmach/orb"

	"street-coverage-router/internal/gapfill"
	"street-coverage-router/internal/graph"
	"street-coverage-router/internal/mapping"
	"street-coverage-router/internal/models"
	"street-coverage-router/internal/solver"
	"street-coverage-router/internal/validate"
)

// Config holds every tunable of one solve
type Config struct {
	MaxSegments                 int
	MaxOSMMatchDistanceFeet     float64
	MaxSpatialMatchDistanceFeet float64
	MinSegmentCoverageRatio     float64
	MaxRouteGapFeet             float64
	MaxDeadheadRatioError       float64
	MaxDeadheadRatioWarn        float64
	GapFillThresholdFeet        float64
	AllowDisconnectedJump       bool
	MapperWorkers               int
	// StartNode forces the route origin; negative means auto.
	StartNode int64
}

// DefaultConfig returns the standard thresholds
func DefaultConfig() Config {
	return Config{
		MaxSegments:                 5000,
		MaxOSMMatchDistanceFeet:     100,
		MaxSpatialMatchDistanceFeet: 250,
		MinSegmentCoverageRatio:     0.5,
		MaxRouteGapFeet:             1000,
		MaxDeadheadRatioError:       3.0,
		MaxDeadheadRatioWarn:        2.0,
		GapFillThresholdFeet:        500,
		StartNode:                   -1,
	}
}

// ProgressSink receives coarse progress between solve phases
type ProgressSink interface {
	Report(phase string, percent int, message string)
}

// Result bundles the solved route with its validation outcome.
// Validation errors do not fail the solve; the caller decides.
type Result struct {
	Route      *models.RouteResult `json:"route"`
	Validation *validate.Report    `json:"validation"`
	Warnings   []string            `json:"warnings"`
}

// Solver runs the full pipeline: map segments onto the graph, sequence
// the requirements into one route, fill gaps through the injected
// routing capability, and validate.
type Solver struct {
	net      *graph.Network
	router   gapfill.Router
	cfg      Config
	progress ProgressSink
}

// New creates an engine over a loaded network. router may be nil to
// disable gap filling.
func New(net *graph.Network, router gapfill.Router, cfg Config) *Solver {
	return &Solver{net: net, router: router, cfg: cfg}
}

// SetProgressSink installs an optional progress receiver
func (s *Solver) SetProgressSink(p ProgressSink) {
	s.progress = p
}

func (s *Solver) report(phase string, percent int, format string, args ...any) {
	if s.progress != nil {
		s.progress.Report(phase, percent, fmt.Sprintf(format, args...))
	}
}

// checkpoint is the cooperative cancellation point between phases.
// The solver's inner loops never suspend; callers own the wall-clock
// timeout.
func checkpoint(ctx context.Context, phase string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("solve cancelled before %s: %w", phase, err)
	}
	return nil
}

// Solve executes one complete solve. All state is scoped to the call;
// nothing survives into the next invocation.
func (s *Solver) Solve(ctx context.Context, segments []models.Segment) (*Result, error) {
	log.Printf("[ENGINE] Starting solve: segments=%d nodes=%d edges=%d",
		len(segments), s.net.NodeCount(), s.net.EdgeCount())

	if len(segments) == 0 {
		s.report("done", 100, "nothing to solve")
		return &Result{
			Route:      &models.RouteResult{Coordinates: orb.LineString{}},
			Validation: &validate.Report{},
		}, nil
	}

	cache := graph.NewGeometryCache()

	if err := checkpoint(ctx, "mapping"); err != nil {
		return nil, err
	}
	s.report("mapping", 0, "matching %d segments", len(segments))

	mapper := mapping.NewMapper(s.net, cache, mapping.Config{
		MaxSegments:                 s.cfg.MaxSegments,
		MaxOSMMatchDistanceFeet:     s.cfg.MaxOSMMatchDistanceFeet,
		MaxSpatialMatchDistanceFeet: s.cfg.MaxSpatialMatchDistanceFeet,
		Workers:                     s.cfg.MapperWorkers,
	})
	mapped, err := mapper.Map(ctx, segments)
	if err != nil {
		return nil, err
	}

	if err := checkpoint(ctx, "solving"); err != nil {
		return nil, err
	}
	s.report("solving", 25, "sequencing %d requirements", len(mapped.Requirements))

	route, solveWarnings, err := solver.Solve(s.net, cache, &solver.Input{
		Requirements:  mapped.Requirements,
		SegmentCounts: mapped.SegmentCounts,
	}, solver.Config{
		StartNode:             s.cfg.StartNode,
		AllowDisconnectedJump: s.cfg.AllowDisconnectedJump,
	})
	if err != nil {
		return nil, err
	}
	warnings := append([]string{}, solveWarnings...)

	if err := checkpoint(ctx, "gap filling"); err != nil {
		return nil, err
	}
	if s.router != nil {
		s.report("gap_filling", 60, "scanning %d route points", len(route.Coordinates))
		filler := gapfill.NewFiller(s.router, s.cfg.GapFillThresholdFeet)
		filled, fillWarnings := filler.Fill(ctx, route.Coordinates)
		route.Coordinates = filled
		warnings = append(warnings, fillWarnings...)
	}

	if err := checkpoint(ctx, "validation"); err != nil {
		return nil, err
	}
	s.report("validating", 85, "validating route")

	report := validate.Route(route.Coordinates, route.Stats, mapped.Matched, len(segments), validate.Thresholds{
		MinSegmentCoverageRatio: s.cfg.MinSegmentCoverageRatio,
		MaxRouteGapFeet:         s.cfg.MaxRouteGapFeet,
		MaxDeadheadRatioError:   s.cfg.MaxDeadheadRatioError,
		MaxDeadheadRatioWarn:    s.cfg.MaxDeadheadRatioWarn,
	})

	s.report("done", 100, "completed %d of %d requirements",
		route.Stats.CompletedCount, route.Stats.RequiredCount)
	log.Printf("[ENGINE] Solve finished: completed=%d/%d validation_errors=%d warnings=%d",
		route.Stats.CompletedCount, route.Stats.RequiredCount, len(report.Errors), len(warnings))

	return &Result{Route: route, Validation: report, Warnings: warnings}, nil
}
