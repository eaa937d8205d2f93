package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/paulmach/orb"

	"street-coverage-router/internal/engine"
	"street-coverage-router/internal/gapfill"
	"street-coverage-router/internal/graph"
	"street-coverage-router/internal/models"
	"street-coverage-router/internal/routing"
	"street-coverage-router/internal/sqlite"
)

type graphNode struct {
	ID  int64   `json:"id"`
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type graphEdge struct {
	From         int64       `json:"from"`
	To           int64       `json:"to"`
	LengthMeters float64     `json:"length_meters"`
	Geometry     [][]float64 `json:"geometry,omitempty"`
	OSMID        int64       `json:"osm_id,omitempty"`
}

type graphFile struct {
	Nodes []graphNode `json:"nodes"`
	Edges []graphEdge `json:"edges"`
}

type logProgress struct{}

func (logProgress) Report(phase string, percent int, message string) {
	log.Printf("[PROGRESS] %s %d%% %s", phase, percent, message)
}

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	graphPath := flag.String("graph", "", "path to graph JSON (nodes and edges)")
	segmentsPath := flag.String("segments", "", "path to required segments JSON")
	outputPath := flag.String("output", "route.json", "path to write the solved route JSON, or - for stdout")
	startNode := flag.Int64("start", -1, "graph node id to start from (negative for automatic)")
	allowJump := flag.Bool("allow-disconnected-jump", false, "jump between disconnected components instead of skipping them")
	noGapFill := flag.Bool("no-gap-fill", false, "disable gap filling through the routing service")
	flag.Parse()

	if *graphPath == "" || *segmentsPath == "" {
		flag.Usage()
		return fmt.Errorf("both -graph and -segments are required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	net, err := loadGraph(*graphPath)
	if err != nil {
		return fmt.Errorf("failed to load graph: %w", err)
	}
	segments, err := loadSegments(*segmentsPath)
	if err != nil {
		return fmt.Errorf("failed to load segments: %w", err)
	}

	var router gapfill.Router
	if !*noGapFill {
		dbPath := getEnv("ROUTE_CACHE_DB", filepath.Join(".", sqlite.DefaultDBFileName))
		store, err := sqlite.New(dbPath)
		if err != nil {
			return fmt.Errorf("failed to open route cache: %w", err)
		}
		defer store.Close()
		router = routing.NewOSRMRouter(getEnv("OSRM_BASE_URL", ""), store.RouteCache())
	}

	cfg := engine.DefaultConfig()
	cfg.StartNode = *startNode
	cfg.AllowDisconnectedJump = *allowJump

	eng := engine.New(net, router, cfg)
	eng.SetProgressSink(logProgress{})

	result, err := eng.Solve(ctx, segments)
	if err != nil {
		return fmt.Errorf("solve failed: %w", err)
	}

	for _, w := range result.Warnings {
		log.Printf("[WARN] %s", w)
	}
	for _, e := range result.Validation.Errors {
		log.Printf("[VALIDATION] %s", e)
	}

	if err := writeResult(*outputPath, result); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}
	log.Printf("Route solved (completed %d/%d requirements, %.1f km)",
		result.Route.Stats.CompletedCount, result.Route.Stats.RequiredCount,
		result.Route.Stats.TotalDistance/1000)

	if !result.Validation.OK() {
		return fmt.Errorf("route failed validation with %d errors", len(result.Validation.Errors))
	}
	return nil
}

func loadGraph(path string) (*graph.Network, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var gf graphFile
	if err := json.Unmarshal(data, &gf); err != nil {
		return nil, fmt.Errorf("invalid graph file %s: %w", path, err)
	}
	if len(gf.Nodes) == 0 {
		return nil, fmt.Errorf("graph file %s contains no nodes", path)
	}

	net := graph.NewNetwork()
	for _, n := range gf.Nodes {
		net.AddNode(n.ID, n.Lat, n.Lng)
	}
	for i, e := range gf.Edges {
		geom := make(orb.LineString, 0, len(e.Geometry))
		for _, pt := range e.Geometry {
			if len(pt) != 2 {
				return nil, fmt.Errorf("edge %d has a malformed geometry point", i)
			}
			geom = append(geom, orb.Point{pt[0], pt[1]})
		}
		if _, err := net.AddEdge(e.From, e.To, e.LengthMeters, geom, e.OSMID); err != nil {
			return nil, fmt.Errorf("edge %d (%d->%d): %w", i, e.From, e.To, err)
		}
	}
	log.Printf("[LOADER] Graph loaded: nodes=%d edges=%d", net.NodeCount(), net.EdgeCount())
	return net, nil
}

func loadSegments(path string) ([]models.Segment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var segments []models.Segment
	if err := json.Unmarshal(data, &segments); err != nil {
		return nil, fmt.Errorf("invalid segments file %s: %w", path, err)
	}
	return segments, nil
}

func writeResult(path string, result *engine.Result) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	if path == "-" {
		_, err = os.Stdout.Write(append(data, '\n'))
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
