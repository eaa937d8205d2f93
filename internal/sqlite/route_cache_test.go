package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"street-coverage-router/internal/database"
	"street-coverage-router/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStoreHealthCheck(t *testing.T) {
	store := newTestStore(t)
	assert.NoError(t, store.HealthCheck(context.Background()))
}

func TestRouteCacheSetGet(t *testing.T) {
	store := newTestStore(t)
	repo := store.RouteCache()
	ctx := context.Background()

	entry := &models.RouteCacheEntry{
		Origin:           models.Coordinates{Lat: 40.123456, Lng: -75.123456},
		Destination:      models.Coordinates{Lat: 40.2, Lng: -75.2},
		GeometryPolyline: "_p~iF~ps|U_ulLnnqC",
		DistanceMeters:   1234.5,
		DurationSecs:     98.7,
	}
	require.NoError(t, repo.Set(ctx, entry))

	got, err := repo.Get(ctx, entry.Origin, entry.Destination)
	require.NoError(t, err)
	assert.Equal(t, entry.GeometryPolyline, got.GeometryPolyline)
	assert.Equal(t, entry.DistanceMeters, got.DistanceMeters)
	assert.Equal(t, entry.DurationSecs, got.DurationSecs)

	// Keys are rounded to 5 decimals; a ~1m wobble still hits.
	wobbled := models.Coordinates{Lat: 40.123457, Lng: -75.123457}
	_, err = repo.Get(ctx, wobbled, entry.Destination)
	assert.NoError(t, err)
}

func TestRouteCacheMiss(t *testing.T) {
	store := newTestStore(t)

	_, err := store.RouteCache().Get(context.Background(),
		models.Coordinates{Lat: 1, Lng: 2}, models.Coordinates{Lat: 3, Lng: 4})
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestRouteCacheReplace(t *testing.T) {
	store := newTestStore(t)
	repo := store.RouteCache()
	ctx := context.Background()

	entry := &models.RouteCacheEntry{
		Origin:         models.Coordinates{Lat: 40.0, Lng: -75.0},
		Destination:    models.Coordinates{Lat: 40.1, Lng: -75.1},
		DistanceMeters: 100,
	}
	require.NoError(t, repo.Set(ctx, entry))

	entry.DistanceMeters = 200
	require.NoError(t, repo.Set(ctx, entry))

	got, err := repo.Get(ctx, entry.Origin, entry.Destination)
	require.NoError(t, err)
	assert.Equal(t, 200.0, got.DistanceMeters)
}
