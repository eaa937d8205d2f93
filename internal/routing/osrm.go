package routing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/twpayne/go-polyline"

	"street-coverage-router/internal/database"
	"street-coverage-router/internal/gapfill"
	"street-coverage-router/internal/models"
)

// ErrRouteRequestFailed is returned when the OSRM API fails
type ErrRouteRequestFailed struct {
	Origin models.Coordinates
	Dest   models.Coordinates
	Reason string
}

func (e *ErrRouteRequestFailed) Error() string {
	return fmt.Sprintf("route request failed: %s", e.Reason)
}

type osrmRouter struct {
	baseURL    string
	httpClient *http.Client
	cache      database.RouteCacheRepository
}

type osrmRouteResponse struct {
	Code   string `json:"code"`
	Routes []struct {
		Geometry string  `json:"geometry"`
		Distance float64 `json:"distance"`
		Duration float64 `json:"duration"`
	} `json:"routes"`
}

// NewOSRMRouter creates a routing capability backed by an OSRM route
// service. baseURL may be empty to use the public instance; cache may
// be nil to disable leg caching.
func NewOSRMRouter(baseURL string, cache database.RouteCacheRepository) gapfill.Router {
	if baseURL == "" {
		baseURL = "https://router.project-osrm.org"
	}
	return &osrmRouter{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		cache: cache,
	}
}

func (c *osrmRouter) Route(ctx context.Context, points []models.Coordinates) (*models.RouteLeg, error) {
	if len(points) < 2 {
		return nil, &ErrRouteRequestFailed{Reason: fmt.Sprintf("need at least 2 points, got %d", len(points))}
	}
	origin := points[0]
	dest := points[len(points)-1]

	// Same point to same point = empty leg (with rounding tolerance).
	if models.RoundCoordinate(origin.Lat) == models.RoundCoordinate(dest.Lat) &&
		models.RoundCoordinate(origin.Lng) == models.RoundCoordinate(dest.Lng) {
		return &models.RouteLeg{Geometry: orb.LineString{origin.Point(), dest.Point()}}, nil
	}

	// Two-point legs are cacheable.
	if len(points) == 2 && c.cache != nil {
		cached, err := c.cache.Get(ctx, origin, dest)
		if err != nil && !errors.Is(err, database.ErrNotFound) {
			return nil, err
		}
		if cached != nil {
			geom, err := decodeGeometry(cached.GeometryPolyline)
			if err == nil {
				return &models.RouteLeg{
					Geometry:       geom,
					DistanceMeters: cached.DistanceMeters,
					DurationSecs:   cached.DurationSecs,
				}, nil
			}
			log.Printf("[OSRM] Dropping corrupt cache entry: %v", err)
		}
	}

	leg, encoded, err := c.fetchRoute(ctx, points)
	if err != nil {
		return nil, err
	}

	if len(points) == 2 && c.cache != nil {
		entry := &models.RouteCacheEntry{
			Origin:           origin,
			Destination:      dest,
			GeometryPolyline: encoded,
			DistanceMeters:   leg.DistanceMeters,
			DurationSecs:     leg.DurationSecs,
		}
		if err := c.cache.Set(ctx, entry); err != nil {
			log.Printf("[OSRM] Failed to cache leg: %v", err)
		}
	}
	return leg, nil
}

func (c *osrmRouter) fetchRoute(ctx context.Context, points []models.Coordinates) (*models.RouteLeg, string, error) {
	origin := points[0]
	dest := points[len(points)-1]

	coords := make([]string, len(points))
	for i, p := range points {
		coords[i] = fmt.Sprintf("%.6f,%.6f", p.Lng, p.Lat)
	}
	queryURL := fmt.Sprintf("%s/route/v1/driving/%s?overview=full&geometries=polyline",
		c.baseURL, strings.Join(coords, ";"))

	req, err := http.NewRequestWithContext(ctx, "GET", queryURL, nil)
	if err != nil {
		return nil, "", &ErrRouteRequestFailed{Origin: origin, Dest: dest, Reason: err.Error()}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("[ERROR] OSRM route request failed: origin=(%.6f,%.6f) dest=(%.6f,%.6f) err=%v",
			origin.Lat, origin.Lng, dest.Lat, dest.Lng, err)
		return nil, "", &ErrRouteRequestFailed{Origin: origin, Dest: dest, Reason: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		log.Printf("[ERROR] OSRM route API error: status=%d body=%s", resp.StatusCode, string(body))
		return nil, "", &ErrRouteRequestFailed{
			Origin: origin,
			Dest:   dest,
			Reason: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, string(body)),
		}
	}

	var osrmResp osrmRouteResponse
	if err := json.NewDecoder(resp.Body).Decode(&osrmResp); err != nil {
		return nil, "", &ErrRouteRequestFailed{Origin: origin, Dest: dest, Reason: err.Error()}
	}
	if osrmResp.Code != "Ok" || len(osrmResp.Routes) == 0 {
		return nil, "", &ErrRouteRequestFailed{
			Origin: origin,
			Dest:   dest,
			Reason: fmt.Sprintf("OSRM error: code=%s routes=%d", osrmResp.Code, len(osrmResp.Routes)),
		}
	}

	route := osrmResp.Routes[0]
	geom, err := decodeGeometry(route.Geometry)
	if err != nil {
		return nil, "", &ErrRouteRequestFailed{Origin: origin, Dest: dest, Reason: err.Error()}
	}

	log.Printf("[OSRM] Route fetched: origin=(%.6f,%.6f) dest=(%.6f,%.6f) distance=%.0f points=%d",
		origin.Lat, origin.Lng, dest.Lat, dest.Lng, route.Distance, len(geom))
	return &models.RouteLeg{
		Geometry:       geom,
		DistanceMeters: route.Distance,
		DurationSecs:   route.Duration,
	}, route.Geometry, nil
}

// decodeGeometry converts an encoded polyline (lat,lng order) into an
// orb line string ([lon, lat] order).
func decodeGeometry(encoded string) (orb.LineString, error) {
	coords, _, err := polyline.DecodeCoords([]byte(encoded))
	if err != nil {
		return nil, fmt.Errorf("failed to decode polyline: %w", err)
	}
	geom := make(orb.LineString, len(coords))
	for i, c := range coords {
		geom[i] = orb.Point{c[1], c[0]}
	}
	return geom, nil
}
