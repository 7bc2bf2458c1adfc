package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/sirupsen/logrus"

	"loop-planner/internal/geo"
)

// statusOK is the engine's success sentinel.
const statusOK = "Ok"

// HTTPConfig configures an OSRM-compatible routing endpoint.
type HTTPConfig struct {
	BaseURL string
	Profile string
	Locale  string
	Timeout time.Duration
}

// HTTPClient calls the engine's route service over HTTP.
type HTTPClient struct {
	cfg  HTTPConfig
	http *http.Client
	log  logrus.FieldLogger
}

// NewHTTPClient creates a routing client. A zero Timeout leaves bounding
// latency to the caller's context.
func NewHTTPClient(cfg HTTPConfig, log logrus.FieldLogger) *HTTPClient {
	if cfg.Profile == "" {
		cfg.Profile = "foot"
	}
	if cfg.Locale == "" {
		cfg.Locale = "en"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &HTTPClient{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		log:  log,
	}
}

type osrmResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Routes  []osrmRoute `json:"routes"`
}

type osrmRoute struct {
	Distance float64           `json:"distance"`
	Duration float64           `json:"duration"`
	Geometry *geojson.Geometry `json:"geometry"`
	Legs     []struct {
		Steps []struct {
			Maneuver struct {
				Type     string    `json:"type"`
				Modifier string    `json:"modifier"`
				Location orb.Point `json:"location"`
			} `json:"maneuver"`
		} `json:"steps"`
	} `json:"legs"`
}

// Route requests a foot route through coords in order.
func (c *HTTPClient) Route(ctx context.Context, coords []orb.Point) (*Route, error) {
	if len(coords) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 coordinates, got %d", ErrNoRoute, len(coords))
	}

	requestURL := fmt.Sprintf("%s/route/v1/%s/%s?overview=full&geometries=geojson&steps=true",
		c.cfg.BaseURL, c.cfg.Profile, EncodeCoordinates(coords))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrTransport, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrTransport, err)
	}

	var apiResponse osrmResponse
	decodeErr := json.Unmarshal(body, &apiResponse)

	if resp.StatusCode != http.StatusOK {
		// The engine reports "no route" with a 400 and a code in the body.
		if decodeErr == nil && apiResponse.Code == "NoRoute" {
			return nil, fmt.Errorf("%w: %s", ErrNoRoute, apiResponse.Message)
		}
		c.log.WithFields(logrus.Fields{
			"status_code": resp.StatusCode,
			"respBody":    truncate(string(body), 256),
		}).Warn("Bad response from routing engine")
		return nil, fmt.Errorf("%w: status code %d", ErrTransport, resp.StatusCode)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrTransport, decodeErr)
	}

	return c.toRoute(apiResponse)
}

func (c *HTTPClient) toRoute(apiResponse osrmResponse) (*Route, error) {
	if apiResponse.Code != statusOK {
		return nil, fmt.Errorf("%w: engine status %q", ErrNoRoute, apiResponse.Code)
	}
	if len(apiResponse.Routes) == 0 {
		return nil, fmt.Errorf("%w: empty route list", ErrNoRoute)
	}

	first := apiResponse.Routes[0]
	var line orb.LineString
	if first.Geometry != nil {
		line, _ = first.Geometry.Coordinates.(orb.LineString)
	}
	if len(line) < 2 {
		return nil, fmt.Errorf("%w: geometry has %d coordinates", ErrNoRoute, len(line))
	}

	route := &Route{
		Distance: first.Distance,
		Duration: first.Duration,
		Geometry: line,
	}
	// Some engine builds omit the summary distance for foot profiles.
	if route.Distance <= 0 {
		route.Distance = geo.PathLength(line)
	}
	for _, leg := range first.Legs {
		for _, step := range leg.Steps {
			m := step.Maneuver
			if maneuver, ok := newManeuver(m.Type, m.Modifier, m.Location, c.cfg.Locale); ok {
				route.Maneuvers = append(route.Maneuvers, maneuver)
			}
		}
	}
	return route, nil
}

// EncodeCoordinates serializes coords as "lng,lat;lng,lat;...".
func EncodeCoordinates(coords []orb.Point) string {
	var b strings.Builder
	for i, p := range coords {
		if i > 0 {
			b.WriteByte(';')
		}
		b.WriteString(strconv.FormatFloat(p.Lon(), 'f', 6, 64))
		b.WriteByte(',')
		b.WriteString(strconv.FormatFloat(p.Lat(), 'f', 6, 64))
	}
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
