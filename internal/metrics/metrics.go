// Package metrics exposes Prometheus collectors for the loop search.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/paulmach/orb"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"loop-planner/internal/engine"
	"loop-planner/internal/routing"
)

// Collector bundles the planner's Prometheus metrics. It implements
// engine.Observer and routing.HitRecorder.
type Collector struct {
	gatherer prometheus.Gatherer

	Attempts        *prometheus.CounterVec
	Searches        *prometheus.CounterVec
	SearchDurations prometheus.Histogram
	RoutingCalls    *prometheus.CounterVec
	RoutingLatency  prometheus.Histogram
	CacheLookups    *prometheus.CounterVec
}

// NewCollector registers metrics against reg, defaulting to the global
// Prometheus registry when nil.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	attempts, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "loop_attempts_total",
		Help: "Search attempts, labeled by outcome.",
	}, []string{"outcome"}), "loop_attempts_total")
	if err != nil {
		return nil, err
	}

	searches, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "loop_searches_total",
		Help: "Completed searches, labeled by result (accepted, best_effort, unscored, error).",
	}, []string{"result"}), "loop_searches_total")
	if err != nil {
		return nil, err
	}

	searchDurations, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "loop_search_duration_seconds",
		Help:    "Wall time of a full loop search.",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 40},
	}), "loop_search_duration_seconds")
	if err != nil {
		return nil, err
	}

	routingCalls, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "routing_requests_total",
		Help: "Routing engine calls, labeled by result (ok, no_route, transport, canceled).",
	}, []string{"result"}), "routing_requests_total")
	if err != nil {
		return nil, err
	}

	routingLatency, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "routing_request_duration_seconds",
		Help:    "Routing engine call latency in seconds.",
		Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}), "routing_request_duration_seconds")
	if err != nil {
		return nil, err
	}

	cacheLookups, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "routing_cache_lookups_total",
		Help: "Route cache lookups, labeled by result (hit, miss).",
	}, []string{"result"}), "routing_cache_lookups_total")
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:        gatherer,
		Attempts:        attempts,
		Searches:        searches,
		SearchDurations: searchDurations,
		RoutingCalls:    routingCalls,
		RoutingLatency:  routingLatency,
		CacheLookups:    cacheLookups,
	}, nil
}

// AttemptFinished implements engine.Observer.
func (c *Collector) AttemptFinished(outcome engine.Outcome) {
	if c == nil {
		return
	}
	c.Attempts.WithLabelValues(string(outcome)).Inc()
}

// SearchFinished implements engine.Observer.
func (c *Collector) SearchFinished(elapsed time.Duration, result *engine.Result, err error) {
	if c == nil {
		return
	}
	c.SearchDurations.Observe(elapsed.Seconds())
	c.Searches.WithLabelValues(searchLabel(result, err)).Inc()
}

func searchLabel(result *engine.Result, err error) string {
	switch {
	case err != nil || result == nil:
		return "error"
	case result.Unscored:
		return "unscored"
	case result.Quality != nil && result.Quality.Acceptable():
		return "accepted"
	default:
		return "best_effort"
	}
}

// CacheHit implements routing.HitRecorder.
func (c *Collector) CacheHit() {
	if c != nil {
		c.CacheLookups.WithLabelValues("hit").Inc()
	}
}

// CacheMiss implements routing.HitRecorder.
func (c *Collector) CacheMiss() {
	if c != nil {
		c.CacheLookups.WithLabelValues("miss").Inc()
	}
}

// InstrumentClient wraps a routing client with call counts and latency.
func (c *Collector) InstrumentClient(next routing.Client) routing.Client {
	if c == nil {
		return next
	}
	return routing.ClientFunc(func(ctx context.Context, coords []orb.Point) (*routing.Route, error) {
		start := time.Now()
		route, err := next.Route(ctx, coords)
		c.RoutingLatency.Observe(time.Since(start).Seconds())
		c.RoutingCalls.WithLabelValues(routingLabel(err)).Inc()
		return route, err
	})
}

func routingLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, routing.ErrNoRoute):
		return "no_route"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "transport"
	}
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogram(reg prometheus.Registerer, h prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(h); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return h, nil
}
