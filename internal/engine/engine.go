// Package engine runs the bounded search that turns a start point and a
// step goal into a closed walking loop.
package engine

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/paulmach/orb"
	"github.com/sirupsen/logrus"

	"loop-planner/internal/geo"
	"loop-planner/internal/logging"
	"loop-planner/internal/quality"
	"loop-planner/internal/routing"
	"loop-planner/internal/waypoints"
)

const (
	DefaultSteps       = 10000
	DefaultMaxAttempts = 20

	MinRadiusKm = 0.3
	MaxRadiusKm = 3.0

	// A 7.5 km loop starts from a 1.2 km waypoint ring.
	baseRadiusKm       = 1.2
	baseTargetDistance = 7500.0
)

// Zones is the unsafe-area classifier the search consults.
type Zones interface {
	Contains(p orb.Point) bool
	Crosses(geometry orb.LineString) bool
}

type noZones struct{}

func (noZones) Contains(orb.Point) bool     { return false }
func (noZones) Crosses(orb.LineString) bool { return false }

// Outcome describes what happened to one attempt.
type Outcome string

const (
	OutcomeAccepted      Outcome = "accepted"
	OutcomeScored        Outcome = "scored"
	OutcomeRoutingFailed Outcome = "routing_failed"
	OutcomeUnsafe        Outcome = "unsafe"
)

// Attempt records one iteration of the search.
type Attempt struct {
	Number   int     `json:"number"`
	RadiusKm float64 `json:"radiusKm"`
	Distance float64 `json:"distance,omitempty"`
	Score    float64 `json:"score,omitempty"`
	Outcome  Outcome `json:"outcome"`
}

// Result is the loop handed back to the caller.
type Result struct {
	Distance      float64            `json:"distance"`
	Duration      float64            `json:"duration"`
	Geometry      orb.LineString     `json:"geometry"`
	Waypoints     []orb.Point        `json:"waypoints"`
	StepsEstimate int                `json:"stepsEstimate"`
	Maneuvers     []routing.Maneuver `json:"maneuvers"`

	// Quality is nil when Unscored is set.
	Quality *quality.Report `json:"quality,omitempty"`
	// Unscored marks a route from the unguarded fallback call made after
	// every budgeted attempt failed. No quality check was applied to it.
	Unscored bool      `json:"unscored"`
	Attempts int       `json:"attempts"`
	Trace    []Attempt `json:"trace"`
}

// Observer receives search telemetry. Implementations must be safe for
// concurrent use.
type Observer interface {
	AttemptFinished(outcome Outcome)
	SearchFinished(elapsed time.Duration, result *Result, err error)
}

// Options tunes the search.
type Options struct {
	MaxAttempts int
	Spread      waypoints.Spread
	// NewSource returns the randomness for one invocation. Defaults to a
	// freshly seeded source per call.
	NewSource func() waypoints.Source
	Observer  Observer
}

// Engine is safe for concurrent use: every call owns its own search state
// and only reads the shared zones.
type Engine struct {
	router routing.Client
	zones  Zones
	opts   Options
	log    logrus.FieldLogger
}

// New creates an engine. A nil zones value means no unsafe areas.
func New(router routing.Client, zones Zones, log logrus.FieldLogger, opts Options) *Engine {
	if zones == nil {
		zones = noZones{}
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.NewSource == nil {
		opts.NewSource = func() waypoints.Source { return waypoints.RandomSource() }
	}
	if log == nil {
		log = logging.Discard()
	}
	return &Engine{router: router, zones: zones, opts: opts, log: log}
}

type candidate struct {
	route     *routing.Route
	waypoints []orb.Point
	report    quality.Report
}

// GenerateRoute searches for a loop of about targetSteps steps starting and
// ending at (lat, lng). A non-positive targetSteps uses DefaultSteps.
//
// Routing failures and routes through unsafe areas are absorbed per attempt.
// The search returns the first loop that passes every quality check, else
// the best scored loop. If nothing could be scored, one final unguarded
// routing call is made and its result (or error) is returned as-is.
// Cancelling ctx aborts the search with ctx.Err().
func (e *Engine) GenerateRoute(ctx context.Context, lat, lng float64, targetSteps int) (*Result, error) {
	started := time.Now()
	result, err := e.search(ctx, geo.NewPoint(lat, lng), targetSteps)
	if e.opts.Observer != nil {
		e.opts.Observer.SearchFinished(time.Since(started), result, err)
	}
	return result, err
}

func (e *Engine) search(ctx context.Context, start orb.Point, targetSteps int) (*Result, error) {
	if targetSteps <= 0 {
		targetSteps = DefaultSteps
	}
	target := quality.TargetDistance(targetSteps)
	radius := InitialRadius(target)
	count := waypoints.Count(target)
	gen := waypoints.NewGenerator(e.zones, e.opts.NewSource(), e.opts.Spread)

	log := logging.FromContext(ctx, e.log).WithFields(logrus.Fields{
		"target_m":  target,
		"waypoints": count,
	})

	var (
		best  *candidate
		trace = make([]Attempt, 0, e.opts.MaxAttempts)
	)

	for n := 1; n <= e.opts.MaxAttempts; n++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		attempt := Attempt{Number: n, RadiusKm: radius}
		points := gen.Generate(start, radius, count)

		route, err := e.router.Route(ctx, loopCoordinates(start, points))
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			log.WithError(err).WithField("attempt", n).Warn("Routing attempt failed")
			trace = e.record(trace, attempt, OutcomeRoutingFailed)
			continue
		}
		attempt.Distance = route.Distance

		if e.zones.Crosses(route.Geometry) {
			log.WithField("attempt", n).Debug("Route crosses an unsafe zone")
			trace = e.record(trace, attempt, OutcomeUnsafe)
			continue
		}

		report := quality.Evaluate(route.Geometry, route.Distance, target)
		attempt.Score = report.Score
		log.WithFields(logrus.Fields{
			"attempt":    n,
			"radius_km":  radius,
			"distance_m": route.Distance,
			"score":      report.Score,
		}).Debug("Scored candidate")

		c := &candidate{route: route, waypoints: points, report: report}
		if report.Acceptable() {
			trace = e.record(trace, attempt, OutcomeAccepted)
			log.WithField("attempt", n).Info("Loop accepted")
			return c.result(n, trace), nil
		}
		trace = e.record(trace, attempt, OutcomeScored)

		if best == nil || report.Score < best.report.Score {
			best = c
		}
		if !report.DistanceOK && route.Distance > 0 {
			radius = AdjustRadius(radius, target, route.Distance)
		}
	}

	if best != nil {
		log.WithField("score", best.report.Score).Info("Attempt budget exhausted, returning best loop")
		return best.result(e.opts.MaxAttempts, trace), nil
	}

	// Nothing could be scored: one last unguarded call.
	log.Warn("No attempt produced a usable loop, falling back to an unscored route")
	points := gen.Generate(start, radius, count)
	route, err := e.router.Route(ctx, loopCoordinates(start, points))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("fallback route: %w", err)
	}
	res := newResult(route, points, e.opts.MaxAttempts, trace)
	res.Unscored = true
	return res, nil
}

func (e *Engine) record(trace []Attempt, a Attempt, outcome Outcome) []Attempt {
	a.Outcome = outcome
	if e.opts.Observer != nil {
		e.opts.Observer.AttemptFinished(outcome)
	}
	return append(trace, a)
}

func (c *candidate) result(attempts int, trace []Attempt) *Result {
	res := newResult(c.route, c.waypoints, attempts, trace)
	report := c.report
	res.Quality = &report
	return res
}

func newResult(route *routing.Route, points []orb.Point, attempts int, trace []Attempt) *Result {
	return &Result{
		Distance:      route.Distance,
		Duration:      route.Duration,
		Geometry:      route.Geometry,
		Waypoints:     points,
		StepsEstimate: quality.StepsEstimate(route.Distance),
		Maneuvers:     route.Maneuvers,
		Attempts:      attempts,
		Trace:         trace,
	}
}

// loopCoordinates closes the waypoint ring at the start point.
func loopCoordinates(start orb.Point, points []orb.Point) []orb.Point {
	coords := make([]orb.Point, 0, len(points)+2)
	coords = append(coords, start)
	coords = append(coords, points...)
	return append(coords, start)
}

// InitialRadius is the first waypoint radius (km) for a target distance in
// meters.
func InitialRadius(targetDistance float64) float64 {
	return clampRadius(baseRadiusKm * targetDistance / baseTargetDistance)
}

// AdjustRadius rescales radius proportionally to the distance error. It does
// not account for shape penalties.
func AdjustRadius(radius, targetDistance, actualDistance float64) float64 {
	return clampRadius(radius * targetDistance / actualDistance)
}

func clampRadius(r float64) float64 {
	return math.Min(math.Max(r, MinRadiusKm), MaxRadiusKm)
}
