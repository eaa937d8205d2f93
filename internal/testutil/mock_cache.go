package testutil

import (
	"context"
	"fmt"

	"street-coverage-router/internal/database"
	"street-coverage-router/internal/models"
)

// MockRouteCache is an in-memory RouteCacheRepository for tests
type MockRouteCache struct {
	entries map[string]*models.RouteCacheEntry
	Gets    int
	Sets    int
}

// NewMockRouteCache creates an empty mock cache
func NewMockRouteCache() *MockRouteCache {
	return &MockRouteCache{entries: make(map[string]*models.RouteCacheEntry)}
}

func cacheKey(origin, dest models.Coordinates) string {
	return fmt.Sprintf("%.5f,%.5f->%.5f,%.5f",
		models.RoundCoordinate(origin.Lat), models.RoundCoordinate(origin.Lng),
		models.RoundCoordinate(dest.Lat), models.RoundCoordinate(dest.Lng))
}

// Get returns a cached entry or database.ErrNotFound
func (m *MockRouteCache) Get(ctx context.Context, origin, dest models.Coordinates) (*models.RouteCacheEntry, error) {
	m.Gets++
	if e, ok := m.entries[cacheKey(origin, dest)]; ok {
		return e, nil
	}
	return nil, database.ErrNotFound
}

// Set stores an entry
func (m *MockRouteCache) Set(ctx context.Context, entry *models.RouteCacheEntry) error {
	m.Sets++
	m.entries[cacheKey(entry.Origin, entry.Destination)] = entry
	return nil
}
