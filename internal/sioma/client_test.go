package sioma

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sioma/spot-ingest/internal/spots"
)

func TestClientLotes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "/lotes", r.URL.Path)
		assert.Equal(t, "9", r.URL.Query().Get("finca_id"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"id": 17, "nombre": "La Esperanza", "sigla": "LE"}, {"id": 23, "nombre": "El Roble"}]`))
	}))
	defer server.Close()

	c := NewClient(server.URL, "test-token", server.Client())
	lotes, err := c.Lotes(context.Background(), "9")
	require.NoError(t, err)

	require.Len(t, lotes, 2)
	assert.Equal(t, spots.Lote{ID: "17", Nombre: "La Esperanza", Sigla: "LE"}, lotes[0])
	assert.Equal(t, "23", lotes[1].ID)
}

func TestClientFincas(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/fincas", r.URL.Path)
		w.Write([]byte(`[{"id": 9, "nombre": "Finca Norte"}]`))
	}))
	defer server.Close()

	c := NewClient(server.URL, "t", server.Client())
	fincas, err := c.Fincas(context.Background())
	require.NoError(t, err)
	require.Len(t, fincas, 1)
	assert.Equal(t, "Finca Norte", fincas[0].Nombre)
	assert.Equal(t, "9", fincas[0].ID.String())
}

func TestClientUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer server.Close()

	c := NewClient(server.URL, "bad-token", server.Client())
	_, err := c.Lotes(context.Background(), "9")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestClientSubmit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/submit", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Len(t, body["data"], 2)

		w.Write([]byte(`{"status": "ok", "received": 2}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, "t", server.Client())
	resp, err := c.Submit(context.Background(), []spots.CleanedRow{
		{Lat: 1, Lng: 2, Linea: "1", Posicion: "1", LoteID: "17"},
		{Lat: 3, Lng: 4, Linea: "1", Posicion: "2", LoteID: "17"},
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp["status"])
}

func newCacheTest(t *testing.T) (*CatalogCache, *atomic.Int32, *miniredis.Miniredis) {
	t.Helper()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`[{"id": 17, "nombre": "La Esperanza"}]`))
	}))
	t.Cleanup(server.Close)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	client := NewClient(server.URL, "t", server.Client())
	return NewCatalogCache(client, rdb, time.Minute), &calls, mr
}

func TestCatalogCacheReadThrough(t *testing.T) {
	cache, calls, _ := newCacheTest(t)
	ctx := context.Background()

	first, err := cache.Lotes(ctx, "9")
	require.NoError(t, err)
	second, err := cache.Lotes(ctx, "9")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), calls.Load(), "second call should hit the cache")
}

func TestCatalogCacheExpiry(t *testing.T) {
	cache, calls, mr := newCacheTest(t)
	ctx := context.Background()

	_, err := cache.Lotes(ctx, "9")
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	_, err = cache.Lotes(ctx, "9")
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load(), "expired entry should refetch")
}

func TestCatalogCacheInvalidate(t *testing.T) {
	cache, calls, _ := newCacheTest(t)
	ctx := context.Background()

	_, err := cache.Lotes(ctx, "9")
	require.NoError(t, err)
	cache.Invalidate(ctx, "9")
	_, err = cache.Lotes(ctx, "9")
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestCatalogCacheWithoutRedis(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	cache := NewCatalogCache(NewClient(server.URL, "t", server.Client()), nil, time.Minute)
	_, err := cache.Lotes(context.Background(), "9")
	require.NoError(t, err)
	_, err = cache.Lotes(context.Background(), "9")
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load(), "no redis means direct fetches")
}
