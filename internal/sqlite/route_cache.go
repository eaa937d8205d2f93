package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"street-coverage-router/internal/database"
	"street-coverage-router/internal/models"
)

type routeCacheRepository struct {
	store *Store
}

func (r *routeCacheRepository) Get(ctx context.Context, origin, dest models.Coordinates) (*models.RouteCacheEntry, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	query := `SELECT origin_lat, origin_lng, dest_lat, dest_lng, geometry_polyline, distance_meters, duration_secs
	          FROM route_cache
	          WHERE origin_lat = ? AND origin_lng = ? AND dest_lat = ? AND dest_lng = ?`

	originLat := models.RoundCoordinate(origin.Lat)
	originLng := models.RoundCoordinate(origin.Lng)
	destLat := models.RoundCoordinate(dest.Lat)
	destLng := models.RoundCoordinate(dest.Lng)

	var entry models.RouteCacheEntry
	err := r.store.db.QueryRowContext(ctx, query, originLat, originLng, destLat, destLng).Scan(
		&entry.Origin.Lat, &entry.Origin.Lng,
		&entry.Destination.Lat, &entry.Destination.Lng,
		&entry.GeometryPolyline, &entry.DistanceMeters, &entry.DurationSecs,
	)
	if err == sql.ErrNoRows {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get route cache entry: %w", err)
	}
	return &entry, nil
}

func (r *routeCacheRepository) Set(ctx context.Context, entry *models.RouteCacheEntry) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	query := `INSERT OR REPLACE INTO route_cache
	          (origin_lat, origin_lng, dest_lat, dest_lng, geometry_polyline, distance_meters, duration_secs)
	          VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := r.store.db.ExecContext(ctx, query,
		models.RoundCoordinate(entry.Origin.Lat),
		models.RoundCoordinate(entry.Origin.Lng),
		models.RoundCoordinate(entry.Destination.Lat),
		models.RoundCoordinate(entry.Destination.Lng),
		entry.GeometryPolyline, entry.DistanceMeters, entry.DurationSecs,
	)
	if err != nil {
		return fmt.Errorf("failed to set route cache entry: %w", err)
	}
	return nil
}
