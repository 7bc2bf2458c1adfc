package routing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const okResponse = `{
  "code": "Ok",
  "routes": [{
    "distance": 7512.4,
    "duration": 5400.5,
    "geometry": {"type": "LineString", "coordinates": [[2.3522,48.8566],[2.3600,48.8600],[2.3522,48.8566]]},
    "legs": [
      {"steps": [
        {"maneuver": {"type": "depart", "modifier": "left", "location": [2.3522,48.8566]}},
        {"maneuver": {"type": "turn", "modifier": "left", "location": [2.3530,48.8570]}},
        {"maneuver": {"type": "turn", "modifier": "straight", "location": [2.3531,48.8571]}},
        {"maneuver": {"type": "fork", "modifier": "slight right", "location": [2.3540,48.8580]}}
      ]},
      {"steps": [
        {"maneuver": {"type": "end of road", "modifier": "sharp left", "location": [2.3550,48.8590]}},
        {"maneuver": {"type": "roundabout turn", "modifier": "uturn", "location": [2.3560,48.8595]}},
        {"maneuver": {"type": "new name", "modifier": "right", "location": [2.3570,48.8598]}},
        {"maneuver": {"type": "arrive", "location": [2.3522,48.8566]}}
      ]}
    ]
  }]
}`

var loop = []orb.Point{{2.3522, 48.8566}, {2.36, 48.86}, {2.3522, 48.8566}}

func newTestClient(t *testing.T, handler http.HandlerFunc, locale string) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	logger, _ := test.NewNullLogger()
	return NewHTTPClient(HTTPConfig{BaseURL: srv.URL + "/", Locale: locale, Timeout: 5 * time.Second}, logger)
}

func TestHTTPClientRoute(t *testing.T) {
	var gotPath, gotQuery string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(okResponse))
	}, "en")

	route, err := client.Route(context.Background(), loop)
	require.NoError(t, err)

	assert.Equal(t, "/route/v1/foot/2.352200,48.856600;2.360000,48.860000;2.352200,48.856600", gotPath)
	assert.Contains(t, gotQuery, "overview=full")
	assert.Contains(t, gotQuery, "geometries=geojson")
	assert.Contains(t, gotQuery, "steps=true")

	assert.Equal(t, 7512.4, route.Distance)
	assert.Equal(t, 5400.5, route.Duration)
	assert.Equal(t, orb.LineString{{2.3522, 48.8566}, {2.36, 48.86}, {2.3522, 48.8566}}, route.Geometry)

	types := make([]ManeuverType, 0, len(route.Maneuvers))
	for _, m := range route.Maneuvers {
		types = append(types, m.Type)
	}
	assert.Equal(t, []ManeuverType{Left, SlightRight, Left, UTurn}, types)
	assert.Equal(t, "Turn left", route.Maneuvers[0].Instruction)
	assert.Equal(t, orb.Point{2.3530, 48.8570}, route.Maneuvers[0].Location)
}

func TestHTTPClientLocalizedInstructions(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(okResponse))
	}, "fr")

	route, err := client.Route(context.Background(), loop)
	require.NoError(t, err)
	assert.Equal(t, "Tournez à gauche", route.Maneuvers[0].Instruction)
	assert.Equal(t, "Légèrement à droite", route.Maneuvers[1].Instruction)
}

func TestHTTPClientErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"engine no route", http.StatusBadRequest, `{"code":"NoRoute","message":"Impossible route"}`, ErrNoRoute},
		{"non ok code", http.StatusOK, `{"code":"NoSegment","routes":[]}`, ErrNoRoute},
		{"empty routes", http.StatusOK, `{"code":"Ok","routes":[]}`, ErrNoRoute},
		{"short geometry", http.StatusOK, `{"code":"Ok","routes":[{"distance":1,"geometry":{"type":"LineString","coordinates":[[0,0]]}}]}`, ErrNoRoute},
		{"server error", http.StatusInternalServerError, `oops`, ErrTransport},
		{"bad json", http.StatusOK, `{"code":`, ErrTransport},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}, "en")

			_, err := client.Route(context.Background(), loop)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestHTTPClientMissingDistance(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":"Ok","routes":[{"duration":60,"geometry":{"type":"LineString","coordinates":[[2.3522,48.8566],[2.3600,48.8600]]}}]}`))
	}, "en")

	route, err := client.Route(context.Background(), loop)
	require.NoError(t, err)
	assert.InDelta(t, 685, route.Distance, 2)
}

func TestHTTPClientUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	logger, _ := test.NewNullLogger()
	client := NewHTTPClient(HTTPConfig{BaseURL: url}, logger)
	_, err := client.Route(context.Background(), loop)
	assert.ErrorIs(t, err, ErrTransport)
}

func TestHTTPClientHonoursCancellation(t *testing.T) {
	release := make(chan struct{})
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, "en")
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Route(ctx, loop)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, ErrTransport)
}

func TestHTTPClientRejectsSingleCoordinate(t *testing.T) {
	logger, _ := test.NewNullLogger()
	client := NewHTTPClient(HTTPConfig{BaseURL: "http://127.0.0.1:1"}, logger)
	_, err := client.Route(context.Background(), loop[:1])
	assert.ErrorIs(t, err, ErrNoRoute)
}

func TestClassifyModifier(t *testing.T) {
	tests := map[string]ManeuverType{
		"left":         Left,
		"sharp left":   Left,
		"right":        Right,
		"sharp right":  Right,
		"slight left":  SlightLeft,
		"slight right": SlightRight,
		"uturn":        UTurn,
	}
	for modifier, want := range tests {
		got, ok := classifyModifier(modifier)
		assert.True(t, ok, modifier)
		assert.Equal(t, want, got, modifier)
	}

	_, ok := classifyModifier("straight")
	assert.False(t, ok)
}

func TestEncodeCoordinates(t *testing.T) {
	assert.Equal(t, "1.500000,-2.250000;0.000000,0.000000",
		EncodeCoordinates([]orb.Point{{1.5, -2.25}, {0, 0}}))
	assert.Empty(t, EncodeCoordinates(nil))
}

func TestSupportedLocale(t *testing.T) {
	assert.True(t, SupportedLocale("en"))
	assert.True(t, SupportedLocale("fr"))
	assert.False(t, SupportedLocale("de"))
}
