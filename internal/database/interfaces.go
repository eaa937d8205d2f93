package database

import (
	"context"

	"street-coverage-router/internal/models"
)

// DataStore is the interface for data persistence
type DataStore interface {
	Close() error
	HealthCheck(ctx context.Context) error
	RouteCache() RouteCacheRepository
}

// RouteCacheRepository caches routing-service legs between rounded
// coordinate pairs so repeated gap fills skip the network round trip
type RouteCacheRepository interface {
	Get(ctx context.Context, origin, dest models.Coordinates) (*models.RouteCacheEntry, error)
	Set(ctx context.Context, entry *models.RouteCacheEntry) error
}
