package directions

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restroom-api/internal/logger"
	"restroom-api/internal/model"
)

var (
	from = model.Coordinates{Lat: 12.97, Lng: 77.59}
	to   = model.Coordinates{Lat: 12.9711, Lng: 77.59}
)

const okBody = `{
  "status": "OK",
  "routes": [{
    "overview_polyline": {"points": "_p~iF~ps|U_ulLnnqC"},
    "legs": [{
      "distance": {"text": "0.1 km", "value": 122},
      "duration": {"text": "2 mins", "value": 95},
      "start_location": {"lat": 12.97, "lng": 77.59},
      "end_location": {"lat": 12.9711, "lng": 77.59},
      "steps": [
        {"html_instructions": "Head <b>north</b> on <div style=\"x\">MG Road</div>",
         "distance": {"text": "0.1 km", "value": 122}, "duration": {"text": "2 mins", "value": 95},
         "maneuver": "", "start_location": {"lat": 12.97, "lng": 77.59}, "end_location": {"lat": 12.9711, "lng": 77.59}}
      ]
    }]
  }]
}`

func newServer(t *testing.T, body string, check func(r *http.Request)) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			check(r)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return New(Config{BaseURL: srv.URL, APIKey: "k", Logger: logger.Nop()})
}

func TestRoute_ParsesLegAndDecodesPolyline(t *testing.T) {
	c := newServer(t, okBody, func(r *http.Request) {
		assert.Equal(t, "/json", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "12.97,77.59", q.Get("origin"))
		assert.Equal(t, "12.9711,77.59", q.Get("destination"))
		assert.Equal(t, "walking", q.Get("mode"))
		assert.Equal(t, "k", q.Get("key"))
		assert.Empty(t, q.Get("alternatives"))
	})

	route, err := c.Route(context.Background(), from, to, ModeWalking)
	require.NoError(t, err)
	assert.Equal(t, "0.1 km", route.Distance)
	assert.Equal(t, 95, route.DurationSeconds)
	require.Len(t, route.Steps, 1)
	assert.Equal(t, "Head north on MG Road", route.Steps[0].Instruction)
	require.Len(t, route.Path, 2)
	assert.InDelta(t, 38.5, route.Path[0].Lat, 1e-9)
	assert.Equal(t, to, route.End)
}

func TestAlternatives_SetsFlag(t *testing.T) {
	c := newServer(t, okBody, func(r *http.Request) {
		assert.Equal(t, "true", r.URL.Query().Get("alternatives"))
		assert.Equal(t, "driving", r.URL.Query().Get("mode"))
	})
	routes, err := c.Alternatives(context.Background(), from, to, "")
	require.NoError(t, err)
	assert.Len(t, routes, 1)
}

func TestRoute_StatusErrors(t *testing.T) {
	c := newServer(t, `{"status":"REQUEST_DENIED","error_message":"bad key"}`, nil)
	_, err := c.Route(context.Background(), from, to, ModeDriving)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "REQUEST_DENIED", se.Status)
	assert.Equal(t, "directions: bad key", err.Error())

	c = newServer(t, `{"status":"ZERO_RESULTS","routes":[]}`, nil)
	_, err = c.Route(context.Background(), from, to, ModeDriving)
	assert.ErrorIs(t, err, ErrNoRoute)

	_, err = New(Config{}).Route(context.Background(), from, to, ModeDriving)
	assert.ErrorIs(t, err, ErrMissingKey)
}

func TestParseModeAndStripHTML(t *testing.T) {
	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeDriving, m)
	m, err = ParseMode(" Bicycling ")
	require.NoError(t, err)
	assert.Equal(t, ModeBicycling, m)
	_, err = ParseMode("teleport")
	assert.ErrorIs(t, err, ErrInvalidMode)

	assert.Equal(t, "Turn left", StripHTML("<b>Turn</b> left"))
}
