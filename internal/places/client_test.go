package places

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restroom-api/internal/cache"
	"restroom-api/internal/logger"
	"restroom-api/internal/model"
	"restroom-api/internal/providers"
)

var center = model.Coordinates{Lat: 12.97, Lng: 77.59}

// northOf：中心点正北约 m 米
func northOf(m float64) (float64, float64) { return center.Lat + m/111195.0, center.Lng }

func place(id, name string, meters float64, rating float64, reviews int, types ...string) map[string]any {
	lat, lng := northOf(meters)
	return map[string]any{
		"place_id":           id,
		"name":               name,
		"vicinity":           "MG Road",
		"types":              types,
		"rating":             rating,
		"user_ratings_total": reviews,
		"geometry":           map[string]any{"location": map[string]any{"lat": lat, "lng": lng}},
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := New(Config{BaseURL: srv.URL, APIKey: "k", Logger: logger.Nop()})
	c.sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	return c
}

func TestSearch_MergesFiltersAndSorts(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "k", q.Get("key"))
		assert.Equal(t, "500", q.Get("radius"))
		switch {
		case strings.HasSuffix(r.URL.Path, "/nearbysearch/json") && q.Get("type") == "restaurant":
			writeJSON(w, map[string]any{"status": "OK", "results": []any{
				place("cafe-x", "Cafe X", 120, 4.0, 10, "cafe", "restaurant"),
				place("far", "Far Diner", 900, 5.0, 99, "restaurant"),
			}})
		case strings.HasSuffix(r.URL.Path, "/nearbysearch/json") && q.Get("type") == "park":
			writeJSON(w, map[string]any{"status": "OK", "results": []any{
				place("atm-1", "ATM", 50, 0, 0),
				place("bus-1", "Bus Stop 5", 60, 0, 0),
				map[string]any{"place_id": "zero", "name": "Zero", "geometry": map[string]any{"location": map[string]any{"lat": 0, "lng": 0}}},
				place("cafe-x", "Cafe X dup", 120, 4.0, 10, "cafe"),
			}})
		case strings.HasSuffix(r.URL.Path, "/textsearch/json") && q.Get("query") == "public toilet near me":
			writeJSON(w, map[string]any{"status": "OK", "results": []any{
				place("wc-1", "Public Toilet", 300, 3.0, 2),
			}})
		default:
			writeJSON(w, map[string]any{"status": "ZERO_RESULTS", "results": []any{}})
		}
	})

	got, err := c.Search(context.Background(), center, 500)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "wc-1", got[0].ID)
	assert.Equal(t, model.CategoryPublicToilet, got[0].Category)

	assert.Equal(t, "Cafe X", got[1].Name)
	assert.Equal(t, "cafe-x", got[1].CommercialPlaceID)
	assert.Equal(t, model.CategoryRestaurantCafe, got[1].Category)
	assert.Equal(t, model.SourceCommercial, got[1].Source)
	assert.InDelta(t, 120, got[1].DistanceFromUser, 1)
	assert.False(t, got[1].IsWheelchairAccessible)
	for _, c := range got {
		assert.LessOrEqual(t, c.DistanceFromUser, 500.0)
	}
}

func TestSearch_PaginatesWithDelayAndCap(t *testing.T) {
	var pages atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("type") != "hotel" {
			writeJSON(w, map[string]any{"status": "ZERO_RESULTS"})
			return
		}
		n := pages.Add(1)
		if n > 1 {
			assert.Equal(t, "tok", q.Get("pagetoken"))
		}
		writeJSON(w, map[string]any{
			"status":          "OK",
			"next_page_token": "tok",
			"results":         []any{place("h"+string(rune('0'+n)), "Hotel", float64(n)*10, 4, 1, "hotel")},
		})
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, APIKey: "k", Logger: logger.Nop()})
	var mu sync.Mutex
	var delays []time.Duration
	c.sleep = func(ctx context.Context, d time.Duration) error {
		mu.Lock()
		delays = append(delays, d)
		mu.Unlock()
		return nil
	}

	got, err := c.Search(context.Background(), center, 500)
	require.NoError(t, err)
	assert.Len(t, got, DefaultMaxPages)
	assert.Equal(t, int32(DefaultMaxPages), pages.Load())
	require.Len(t, delays, DefaultMaxPages-1)
	for _, d := range delays {
		assert.GreaterOrEqual(t, d, 2*time.Second)
	}
}

func TestSearch_CancelledMidPaginationIsNotCached(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch {
		case q.Get("type") != "hotel":
			writeJSON(w, map[string]any{"status": "ZERO_RESULTS"})
		case q.Get("pagetoken") == "":
			writeJSON(w, map[string]any{"status": "OK", "next_page_token": "tok",
				"results": []any{place("h1", "Hotel One", 10, 4, 1, "hotel")}})
		default:
			writeJSON(w, map[string]any{"status": "OK",
				"results": []any{place("h2", "Hotel Two", 20, 4, 1, "hotel")}})
		}
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, APIKey: "k", Logger: logger.Nop()})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var superseded atomic.Bool
	c.sleep = func(sctx context.Context, d time.Duration) error {
		if superseded.CompareAndSwap(false, true) {
			cancel()
		}
		return sctx.Err()
	}
	cached := providers.NewCached(c, cache.NewMemory(5*time.Minute), "places")

	_, err := cached.Search(ctx, center, 500)
	require.ErrorIs(t, err, context.Canceled)

	got, err := cached.Search(context.Background(), center, 500)
	require.NoError(t, err)
	fresh, err := c.Search(context.Background(), center, 500)
	require.NoError(t, err)
	require.Len(t, fresh, 2)
	assert.Equal(t, fresh, got)
}

func TestSearch_AllQueriesFail(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"status": "REQUEST_DENIED", "error_message": "key invalid"})
	})
	_, err := c.Search(context.Background(), center, 500)
	require.Error(t, err)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "REQUEST_DENIED", se.Status)
	assert.Contains(t, err.Error(), "key invalid")
}

func TestSearch_PartialFailureIsIsolated(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("type") == "gas_station" {
			writeJSON(w, map[string]any{"status": "OK", "results": []any{place("g1", "Shell", 200, 3.5, 4, "gas_station")}})
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	})
	got, err := c.Search(context.Background(), center, 500)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, model.CategoryGasStation, got[0].Category)
}

func TestSearch_MissingKey(t *testing.T) {
	c := New(Config{Logger: logger.Nop()})
	_, err := c.Search(context.Background(), center, 500)
	assert.ErrorIs(t, err, ErrMissingKey)
}

func TestSearch_CapsResults(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("type") != "restaurant" {
			writeJSON(w, map[string]any{"status": "ZERO_RESULTS"})
			return
		}
		var res []any
		for i := 0; i < 40; i++ {
			res = append(res, place("r"+string(rune('A'+i)), "Restaurant", float64(10+i), 4, i, "restaurant"))
		}
		writeJSON(w, map[string]any{"status": "OK", "results": res})
	})
	got, err := c.Search(context.Background(), center, 500)
	require.NoError(t, err)
	assert.Len(t, got, DefaultLimit)
	assert.Equal(t, 39, got[0].ReviewCount)
}

func TestPlausible(t *testing.T) {
	assert.False(t, Plausible("ATM", ""))
	assert.False(t, Plausible("Old Cemetery", "Hill Rd"))
	assert.True(t, Plausible("Cemetery Restroom", ""))
	assert.True(t, Plausible("Central Train Station", ""))
	assert.True(t, Plausible("Joe's", "12 Main St"))
}
